package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"sort"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/annel0/eldara-server/internal/eventbus"
)

const timeFormat = "2006-01-02T15:04:05Z"

func main() {
	var (
		natsURL    = flag.String("nats", "nats://127.0.0.1:4222", "NATS server URL")
		stream     = flag.String("stream", "ELDARA_EVENTS", "JetStream stream name")
		command    = flag.String("cmd", "tail", "Command: tail, stats, types")
		eventTypes = flag.String("types", "", "Event types filter (comma-separated)")
		sources    = flag.String("sources", "", "Source filter (comma-separated)")
		since      = flag.String("since", "", "Replay from this long ago (e.g. 30m, 2h, 1d); empty - only new events")
		limit      = flag.Int("limit", 0, "Stop after N events (0 - no limit)")
		window     = flag.Duration("window", 10*time.Second, "Collection window for stats")
	)
	flag.Parse()

	if *command == "types" {
		for _, t := range knownTypes() {
			fmt.Println(t)
		}
		return
	}

	var start time.Time
	if *since != "" {
		d, err := parseSince(*since)
		if err != nil {
			log.Fatalf("❌ Invalid -since: %v", err)
		}
		start = time.Now().Add(-d)
	}

	bus, err := eventbus.NewJetStreamBus(*natsURL, *stream, 0)
	if err != nil {
		log.Fatalf("❌ Failed to connect to NATS: %v", err)
	}
	defer bus.Close()

	filter := eventbus.Filter{
		Types:   parseStringList(*eventTypes),
		Sources: parseStringList(*sources),
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	switch *command {
	case "tail":
		err = tailEvents(ctx, bus, filter, start, *limit)
	case "stats":
		err = showStats(ctx, bus, filter, start, *window)
	default:
		fmt.Printf("❌ Unknown command: %s\n", *command)
		fmt.Println("Available commands: tail, stats, types")
		os.Exit(1)
	}
	if err != nil {
		log.Fatalf("❌ %s failed: %v", *command, err)
	}
}

// tailEvents печатает события до Ctrl+C или до limit
func tailEvents(ctx context.Context, bus *eventbus.JetStreamBus, f eventbus.Filter, start time.Time, limit int) error {
	fmt.Printf("🎬 Tailing events (types: %v, limit: %d)\n", f.Types, limit)

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var mu sync.Mutex
	count := 0
	sub, err := bus.SubscribeFrom(ctx, f, start, func(_ context.Context, ev *eventbus.Envelope) {
		mu.Lock()
		defer mu.Unlock()
		if limit > 0 && count >= limit {
			return
		}
		printEvent(ev)
		count++
		if limit > 0 && count >= limit {
			cancel()
		}
	})
	if err != nil {
		return err
	}
	defer sub.Unsubscribe()

	<-ctx.Done()
	mu.Lock()
	fmt.Printf("\n📊 Total events: %d\n", count)
	mu.Unlock()
	return nil
}

// showStats собирает события в течение window и печатает разбивку по типам
func showStats(ctx context.Context, bus *eventbus.JetStreamBus, f eventbus.Filter, start time.Time, window time.Duration) error {
	fmt.Printf("📊 Collecting events for %s\n", window)

	var mu sync.Mutex
	byType := make(map[string]int)
	bySource := make(map[string]int)
	total := 0

	sub, err := bus.SubscribeFrom(ctx, f, start, func(_ context.Context, ev *eventbus.Envelope) {
		mu.Lock()
		byType[ev.EventType]++
		bySource[ev.Source]++
		total++
		mu.Unlock()
	})
	if err != nil {
		return err
	}
	defer sub.Unsubscribe()

	select {
	case <-ctx.Done():
	case <-time.After(window):
	}

	mu.Lock()
	defer mu.Unlock()
	fmt.Printf("Total: %d\n", total)
	fmt.Println("\nBy event type:")
	printCounts(byType)
	fmt.Println("\nBy source:")
	printCounts(bySource)
	return nil
}

func printCounts(m map[string]int) {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return m[keys[i]] > m[keys[j]] || (m[keys[i]] == m[keys[j]] && keys[i] < keys[j]) })
	for _, k := range keys {
		fmt.Printf("  %-22s %d\n", k, m[k])
	}
}

func printEvent(ev *eventbus.Envelope) {
	var payload interface{}
	body := string(ev.Payload)
	if json.Unmarshal(ev.Payload, &payload) == nil {
		if b, err := json.Marshal(payload); err == nil {
			body = string(b)
		}
	}
	fmt.Printf("%s %-20s src=%s prio=%d %s\n", ev.Timestamp.UTC().Format(timeFormat), ev.EventType, ev.Source, ev.Priority, body)
}

func knownTypes() []string {
	return []string{
		eventbus.EventPlayerEnteredWorld,
		eventbus.EventPlayerLeftWorld,
		eventbus.EventCharacterCreated,
		eventbus.EventEntityKilled,
		eventbus.EventQuestCompleted,
		eventbus.EventCharactersSaved,
		eventbus.EventChatMessage,
	}
}

// parseSince понимает time.ParseDuration и суффикс d (дни)
func parseSince(s string) (time.Duration, error) {
	if strings.HasSuffix(s, "d") {
		var days int
		if _, err := fmt.Sscanf(strings.TrimSuffix(s, "d"), "%d", &days); err != nil || days <= 0 {
			return 0, fmt.Errorf("bad day count %q", s)
		}
		return time.Duration(days) * 24 * time.Hour, nil
	}
	return time.ParseDuration(s)
}

func parseStringList(s string) []string {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
