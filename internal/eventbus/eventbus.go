package eventbus

import (
	"context"
	"slices"
	"time"
)

// Приоритеты доменных событий. Ниже PriorityHigh при переполнении очереди событие отбрасывается.
const (
	PriorityLow    = 1
	PriorityNormal = 3
	PriorityHigh   = 5
)

// Envelope конверт доменного события сервера
type Envelope struct {
	ID            string            // UUID
	Timestamp     time.Time         // UTC
	Source        string            // имя сервера-источника
	EventType     string            // EntityKilled, QuestCompleted...
	Version       int               // версия схемы Payload
	CorrelationID string
	Priority      int
	Payload       []byte // JSON
	Metadata      map[string]string
}

// Filter отбор событий для подписчика. Пустой список пропускает всё.
type Filter struct {
	Types   []string
	Sources []string
}

// Match проверяет, проходит ли событие фильтр
func (f Filter) Match(ev *Envelope) bool {
	return matchAny(ev.EventType, f.Types) && matchAny(ev.Source, f.Sources)
}

func matchAny(val string, allowed []string) bool {
	return len(allowed) == 0 || slices.Contains(allowed, val)
}

// Subscription возвращается при подписке
type Subscription interface {
	Unsubscribe()
}

// Handler обработчик события
type Handler func(ctx context.Context, ev *Envelope)

// Stats счётчики шины
type Stats struct {
	Published uint64 `json:"published"`
	Consumed  uint64 `json:"consumed"`
	Dropped   uint64 `json:"dropped"`
	InFlight  int    `json:"in_flight"`
}

// EventBus шина доменных событий: в памяти или NATS JetStream
type EventBus interface {
	Publish(ctx context.Context, ev *Envelope) error
	Subscribe(ctx context.Context, f Filter, h Handler) (Subscription, error)
	Metrics() Stats
	Close() error
}
