package eventbus

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// ErrClosed шина закрыта
var ErrClosed = errors.New("event bus closed")

// Типы доменных событий сервера
const (
	EventPlayerEnteredWorld = "PlayerEnteredWorld"
	EventPlayerLeftWorld    = "PlayerLeftWorld"
	EventCharacterCreated   = "CharacterCreated"
	EventEntityKilled       = "EntityKilled"
	EventQuestCompleted     = "QuestCompleted"
	EventCharactersSaved    = "CharactersSaved"
	EventChatMessage        = "ChatMessage"
)

// PlayerEvent вход и выход персонажа
type PlayerEvent struct {
	AccountID   uint64 `json:"account_id"`
	CharacterID uint64 `json:"character_id"`
	EntityID    uint64 `json:"entity_id"`
	Name        string `json:"name"`
	ZoneID      string `json:"zone_id"`
	Reason      string `json:"reason,omitempty"`
}

// KillEvent смерть сущности
type KillEvent struct {
	KillerID   uint64 `json:"killer_id"`
	KillerName string `json:"killer_name"`
	VictimID   uint64 `json:"victim_id"`
	VictimName string `json:"victim_name"`
	ZoneID     string `json:"zone_id"`
	AbilityID  int    `json:"ability_id"`
}

// QuestEvent завершение квеста
type QuestEvent struct {
	CharacterID uint64 `json:"character_id"`
	QuestID     int    `json:"quest_id"`
	Title       string `json:"title"`
}

// SaveEvent пакет сохранённых персонажей
type SaveEvent struct {
	CharacterIDs []uint64 `json:"character_ids"`
	Failed       int      `json:"failed"`
}

// NewEnvelope упаковывает полезную нагрузку в JSON конверт с новым UUID
func NewEnvelope(source, eventType string, priority int, payload any) (*Envelope, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal %s payload: %w", eventType, err)
	}
	return &Envelope{
		ID:        uuid.NewString(),
		Timestamp: time.Now().UTC(),
		Source:    source,
		EventType: eventType,
		Version:   1,
		Priority:  priority,
		Payload:   data,
	}, nil
}

// Emit упаковывает и публикует событие с таймаутом; без шины ничего не делает.
func Emit(bus EventBus, source, eventType string, priority int, payload any) error {
	if bus == nil {
		return nil
	}
	ev, err := NewEnvelope(source, eventType, priority, payload)
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	return bus.Publish(ctx, ev)
}

// Decode разбирает полезную нагрузку события
func Decode(ev *Envelope, out any) error {
	if err := json.Unmarshal(ev.Payload, out); err != nil {
		return fmt.Errorf("decode %s payload: %w", ev.EventType, err)
	}
	return nil
}
