package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/url"
	"sort"
	"sync"
	"time"

	"github.com/annel0/eldara-server/internal/eventbus"
	"github.com/annel0/eldara-server/internal/logging"
)

// ErrInvalidWebhook webhook без адреса или без подписки
var ErrInvalidWebhook = errors.New("webhook требует http(s) url и хотя бы одно событие")

// OutboundWebhook исходящий webhook
type OutboundWebhook struct {
	ID           uint64     `json:"id"`
	Name         string     `json:"name"`
	URL          string     `json:"url"`
	Secret       string     `json:"secret,omitempty"`
	Events       []string   `json:"events"` // типы событий шины, "*" - все
	Active       bool       `json:"active"`
	Timeout      int        `json:"timeout"` // секунды
	RetryCount   int        `json:"retry_count"`
	CreatedAt    time.Time  `json:"created_at"`
	LastUsed     *time.Time `json:"last_used,omitempty"`
	FailureCount int        `json:"failure_count"`
}

// OutboundWebhookEvent тело запроса к webhook'у
type OutboundWebhookEvent struct {
	ID        string          `json:"id"`
	EventType string          `json:"event_type"`
	Timestamp int64           `json:"timestamp"`
	ServerID  string          `json:"server_id"`
	Source    string          `json:"source"`
	Data      json.RawMessage `json:"data"`
}

// OutboundWebhookManager пересылает события шины во внешние webhook'и
type OutboundWebhookManager struct {
	mu         sync.RWMutex
	webhooks   map[uint64]*OutboundWebhook
	nextID     uint64
	serverID   string
	bus        eventbus.EventBus
	sub        eventbus.Subscription
	queue      chan OutboundWebhookEvent
	quit       chan struct{}
	wg         sync.WaitGroup
	httpClient *http.Client
	retryDelay time.Duration
	logger     *logging.Logger
}

// NewOutboundWebhookManager создаёт менеджер. bus может быть nil.
func NewOutboundWebhookManager(serverID string, bus eventbus.EventBus) *OutboundWebhookManager {
	return &OutboundWebhookManager{
		webhooks:   make(map[uint64]*OutboundWebhook),
		nextID:     1,
		serverID:   serverID,
		bus:        bus,
		queue:      make(chan OutboundWebhookEvent, 1000),
		quit:       make(chan struct{}),
		httpClient: &http.Client{Timeout: 30 * time.Second},
		retryDelay: time.Second,
		logger:     logging.GetComponentLogger("webhooks"),
	}
}

// Start подписывается на шину и запускает воркер доставки
func (owm *OutboundWebhookManager) Start() error {
	if owm.bus != nil {
		sub, err := owm.bus.Subscribe(context.Background(), eventbus.Filter{}, owm.onEvent)
		if err != nil {
			return err
		}
		owm.sub = sub
	}
	owm.wg.Add(1)
	go owm.eventWorker()
	return nil
}

// Stop отписывается и дожидается воркера. Недоставленные события отбрасываются.
func (owm *OutboundWebhookManager) Stop() {
	if owm.sub != nil {
		owm.sub.Unsubscribe()
		owm.sub = nil
	}
	select {
	case <-owm.quit:
	default:
		close(owm.quit)
	}
	owm.wg.Wait()
}

// AddWebhook регистрирует webhook
func (owm *OutboundWebhookManager) AddWebhook(w OutboundWebhook) (*OutboundWebhook, error) {
	u, err := url.Parse(w.URL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || len(w.Events) == 0 {
		return nil, ErrInvalidWebhook
	}

	owm.mu.Lock()
	defer owm.mu.Unlock()

	w.ID = owm.nextID
	owm.nextID++
	w.CreatedAt = time.Now()
	w.Active = true
	w.LastUsed = nil
	w.FailureCount = 0
	if w.Timeout <= 0 {
		w.Timeout = 10
	}
	if w.RetryCount <= 0 {
		w.RetryCount = 3
	}

	owm.webhooks[w.ID] = &w
	cp := w
	return &cp, nil
}

// GetWebhooks список webhook'ов по возрастанию ID
func (owm *OutboundWebhookManager) GetWebhooks() []OutboundWebhook {
	owm.mu.RLock()
	defer owm.mu.RUnlock()

	out := make([]OutboundWebhook, 0, len(owm.webhooks))
	for _, w := range owm.webhooks {
		out = append(out, *w)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// DeleteWebhook удаляет webhook
func (owm *OutboundWebhookManager) DeleteWebhook(id uint64) bool {
	owm.mu.Lock()
	defer owm.mu.Unlock()

	if _, ok := owm.webhooks[id]; !ok {
		return false
	}
	delete(owm.webhooks, id)
	return true
}

func (owm *OutboundWebhookManager) onEvent(_ context.Context, ev *eventbus.Envelope) {
	event := OutboundWebhookEvent{
		ID:        ev.ID,
		EventType: ev.EventType,
		Timestamp: ev.Timestamp.Unix(),
		ServerID:  owm.serverID,
		Source:    ev.Source,
		Data:      json.RawMessage(ev.Payload),
	}
	if len(event.Data) == 0 {
		event.Data = json.RawMessage("null")
	}

	select {
	case owm.queue <- event:
	default:
		owm.logger.Warn("⚠️ Очередь webhook'ов переполнена, событие %s пропущено", ev.EventType)
	}
}

func (owm *OutboundWebhookManager) eventWorker() {
	defer owm.wg.Done()
	for {
		select {
		case <-owm.quit:
			return
		case event := <-owm.queue:
			owm.processEvent(event)
		}
	}
}

func (owm *OutboundWebhookManager) processEvent(event OutboundWebhookEvent) {
	owm.mu.RLock()
	targets := make([]OutboundWebhook, 0)
	for _, w := range owm.webhooks {
		if w.Active && subscribed(w, event.EventType) {
			targets = append(targets, *w)
		}
	}
	owm.mu.RUnlock()

	for _, w := range targets {
		owm.deliver(w, event)
	}
}

func subscribed(w *OutboundWebhook, eventType string) bool {
	for _, e := range w.Events {
		if e == eventType || e == "*" {
			return true
		}
	}
	return false
}

// deliver отправляет событие с повторами, повтор только при сетевой ошибке или не-2xx ответе
func (owm *OutboundWebhookManager) deliver(w OutboundWebhook, event OutboundWebhookEvent) {
	body, err := json.Marshal(event)
	if err != nil {
		owm.logger.Error("❌ Ошибка маршалинга события для webhook %s: %v", w.Name, err)
		return
	}

	ok := false
	for attempt := 0; attempt <= w.RetryCount && !ok; attempt++ {
		if attempt > 0 {
			select {
			case <-owm.quit:
				return
			case <-time.After(time.Duration(attempt) * owm.retryDelay):
			}
		}
		ok = owm.post(w, event, body, attempt)
	}

	owm.mu.Lock()
	if live, exists := owm.webhooks[w.ID]; exists {
		now := time.Now()
		live.LastUsed = &now
		if !ok {
			live.FailureCount++
		}
	}
	owm.mu.Unlock()
}

func (owm *OutboundWebhookManager) post(w OutboundWebhook, event OutboundWebhookEvent, body []byte, attempt int) bool {
	ctx, cancel := context.WithTimeout(context.Background(), time.Duration(w.Timeout)*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, w.URL, bytes.NewReader(body))
	if err != nil {
		owm.logger.Error("❌ Ошибка создания запроса для webhook %s: %v", w.Name, err)
		return false
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", "Eldara-Server/1.0")
	req.Header.Set("X-Event-Type", event.EventType)
	req.Header.Set("X-Server-ID", event.ServerID)
	if w.Secret != "" {
		req.Header.Set("X-Webhook-Signature", Sign(body, w.Secret))
	}

	resp, err := owm.httpClient.Do(req)
	if err != nil {
		owm.logger.Warn("⚠️ Попытка %d/%d для webhook %s: %v", attempt+1, w.RetryCount+1, w.Name, err)
		return false
	}
	resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		owm.logger.Warn("⚠️ Webhook %s вернул статус %d на попытке %d", w.Name, resp.StatusCode, attempt+1)
		return false
	}
	owm.logger.Debug("✅ Событие %s доставлено в webhook %s", event.EventType, w.Name)
	return true
}

// EventTypes типы событий, на которые можно подписаться
func EventTypes() []string {
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
