package storage

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/annel0/eldara-server/internal/eventbus"
	"github.com/annel0/eldara-server/internal/gamedata"
	"github.com/annel0/eldara-server/internal/logging"
)

// SaveBatcher накапливает снимки изменённых персонажей и сохраняет их пакетами.
// Для одного персонажа в буфере живёт только последний снимок.
type SaveBatcher struct {
	mu       sync.Mutex
	pending  map[uint64]*gamedata.CharacterData
	capacity int

	flushEvery time.Duration
	store      CharacterStore
	bus        eventbus.EventBus // может быть nil
	source     string

	flushMu  sync.Mutex
	quit     chan struct{}
	done     chan struct{}
	stopOnce sync.Once
	logger   *logging.Logger
}

// NewSaveBatcher создаёт батчер и запускает периодический сброс
func NewSaveBatcher(store CharacterStore, bus eventbus.EventBus, source string, capacity int, flushEvery time.Duration) *SaveBatcher {
	if capacity <= 0 {
		capacity = 256
	}
	if flushEvery <= 0 {
		flushEvery = 30 * time.Second
	}
	b := &SaveBatcher{
		pending:    make(map[uint64]*gamedata.CharacterData),
		capacity:   capacity,
		flushEvery: flushEvery,
		store:      store,
		bus:        bus,
		source:     source,
		quit:       make(chan struct{}),
		done:       make(chan struct{}),
		logger:     logging.GetStorageLogger(),
	}
	go b.loop()
	return b
}

// MarkDirty ставит снимок персонажа в очередь на сохранение.
// При переполнении буфера сброс выполняется сразу в вызывающей горутине.
func (b *SaveBatcher) MarkDirty(data *gamedata.CharacterData) {
	if data == nil || data.CharacterID == 0 {
		return
	}
	b.mu.Lock()
	b.pending[data.CharacterID] = data.Clone()
	full := len(b.pending) >= b.capacity
	b.mu.Unlock()

	if full {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		b.Flush(ctx)
	}
}

// Pending размер буфера
func (b *SaveBatcher) Pending() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.pending)
}

func (b *SaveBatcher) loop() {
	ticker := time.NewTicker(b.flushEvery)
	defer ticker.Stop()
	defer close(b.done)

	for {
		select {
		case <-ticker.C:
			ctx, cancel := context.WithTimeout(context.Background(), b.flushEvery)
			b.Flush(ctx)
			cancel()
		case <-b.quit:
			return
		}
	}
}

// Flush сохраняет накопленные снимки и возвращает число сохранённых.
// Снимок, который не удалось сохранить, возвращается в буфер, если его не вытеснил более новый.
func (b *SaveBatcher) Flush(ctx context.Context) int {
	b.flushMu.Lock()
	defer b.flushMu.Unlock()

	b.mu.Lock()
	if len(b.pending) == 0 {
		b.mu.Unlock()
		return 0
	}
	batch := b.pending
	b.pending = make(map[uint64]*gamedata.CharacterData, len(batch))
	b.mu.Unlock()

	ids := make([]uint64, 0, len(batch))
	for id := range batch {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	saved := make([]uint64, 0, len(ids))
	failed := 0
	for _, id := range ids {
		if err := b.store.SaveCharacter(ctx, id, batch[id]); err != nil {
			failed++
			b.logger.Warn("⚠️ Персонаж %d не сохранён: %v", id, err)
			b.mu.Lock()
			if _, newer := b.pending[id]; !newer {
				b.pending[id] = batch[id]
			}
			b.mu.Unlock()
			continue
		}
		saved = append(saved, id)
	}

	b.logger.Debug("💾 Сохранено персонажей: %d, ошибок: %d", len(saved), failed)
	if err := eventbus.Emit(b.bus, b.source, eventbus.EventCharactersSaved, eventbus.PriorityNormal,
		eventbus.SaveEvent{CharacterIDs: saved, Failed: failed}); err != nil {
		b.logger.Debug("⚠️ Событие сохранения не опубликовано: %v", err)
	}
	return len(saved)
}

// Stop завершает периодический сброс и сохраняет оставшиеся снимки.
func (b *SaveBatcher) Stop(ctx context.Context) {
	b.stopOnce.Do(func() {
		close(b.quit)
		<-b.done
		if n := b.Flush(ctx); n > 0 {
			b.logger.Info("💾 При остановке сохранено персонажей: %d", n)
		}
	})
}
