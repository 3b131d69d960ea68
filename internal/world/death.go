package world

import (
	"time"

	"github.com/annel0/eldara-server/internal/combat"
	"github.com/annel0/eldara-server/internal/logging"
	"github.com/annel0/eldara-server/internal/protocol"
	"github.com/annel0/eldara-server/internal/world/entity"
	"github.com/annel0/eldara-server/internal/world/zone"
)

const (
	// CorpseDuration сколько тело NPC остаётся в мире после смерти
	CorpseDuration = 5 * time.Second
	// PlayerRespawnDelay задержка возрождения игрока
	PlayerRespawnDelay = 10 * time.Second
)

// DeathHandler убирает трупы NPC и возрождает игроков через планировщик.
// Точка появления NPC сама заметит пропажу и запустит таймер респауна.
type DeathHandler struct {
	entities  *entity.Manager
	zones     *zone.Directory
	scheduler *Scheduler
	sink      combat.EventSink
	logger    *logging.Logger
}

// NewDeathHandler создаёт обработчик; sink может быть nil
func NewDeathHandler(entities *entity.Manager, zones *zone.Directory, scheduler *Scheduler, sink combat.EventSink) *DeathHandler {
	return &DeathHandler{
		entities:  entities,
		zones:     zones,
		scheduler: scheduler,
		sink:      sink,
		logger:    logging.GetGameLogger(),
	}
}

// HandleKill подписывается на combat.Executor.OnKill
func (h *DeathHandler) HandleKill(ev combat.KillEvent) {
	switch v := ev.Victim.(type) {
	case *entity.NPC:
		id := v.ID()
		h.scheduler.ScheduleAfter(ev.At, CorpseDuration, "corpse", func(time.Time) {
			if h.entities.Remove(id) {
				h.logger.Debug("🪦 Тело %s (%d) убрано", v.Name(), id)
			}
		})
	case *entity.Player:
		id := v.ID()
		h.logger.Info("💀 Игрок %s (%d) погиб", v.Name(), id)
		h.scheduler.ScheduleAfter(ev.At, PlayerRespawnDelay, "player_respawn", func(time.Time) {
			h.respawnPlayer(id)
		})
	}
}

// zoneBinder обновляет зону в сессии игрока; его реализует маршрутизатор
type zoneBinder interface {
	SetZone(connID uint64, zoneID string)
}

func (h *DeathHandler) respawnPlayer(id uint64) {
	p, ok := h.entities.GetPlayer(id)
	if !ok || p.IsAlive() {
		// вышел из игры или уже воскрешён
		return
	}

	from := p.ZoneID()
	zoneID, pos := h.zones.RespawnPoint(from, p.Faction())
	p.Respawn(zoneID, pos)
	h.logger.Info("✨ Игрок %s (%d) возрождён в %s", p.Name(), id, zoneID)

	if h.sink == nil {
		return
	}
	if zoneID != from {
		if b, ok := h.sink.(zoneBinder); ok {
			b.SetZone(p.ConnectionID(), zoneID)
		}
		h.sink.BroadcastToZone(from, &protocol.EntityDespawn{EntityID: id}, 0)
	}
	h.sink.BroadcastToZone(zoneID, protocol.NewEntitySpawn(p), 0)
}
