package combat

import (
	"time"

	"github.com/google/uuid"

	"github.com/annel0/eldara-server/internal/protocol"
	"github.com/annel0/eldara-server/internal/world/entity"
)

// EventSink получатель боевых событий для рассылки по зоне
type EventSink interface {
	BroadcastToZone(zoneID string, p protocol.Packet, excludeConnID uint64)
}

// KillEvent смерть сущности от удара
type KillEvent struct {
	Killer    entity.Entity
	Victim    entity.Entity
	AbilityID int
	At        time.Time
}

// KillListener подписчик на убийства. Вызывается синхронно в горутине удара.
type KillListener func(ev KillEvent)

type nopSink struct{}

func (nopSink) BroadcastToZone(string, protocol.Packet, uint64) {}

func (x *Executor) metadata() protocol.CombatEventMetadata {
	return protocol.CombatEventMetadata{
		EventID:         uuid.NewString(),
		ServerTime:      x.serverTime(),
		ProtocolVersion: protocol.ProtocolVersion,
	}
}

func (x *Executor) publishDamage(src, dst entity.Entity, abilityID int, a damageApplied) {
	x.sink.BroadcastToZone(dst.ZoneID(), &protocol.Damage{
		SourceEntityID:  src.ID(),
		TargetEntityID:  dst.ID(),
		AbilityID:       abilityID,
		DamageType:      a.damageType,
		Amount:          a.amount,
		IsCritical:      a.critical,
		RemainingHealth: a.remaining,
		IsFatal:         a.killed,
		Metadata:        x.metadata(),
	}, 0)
}

func (x *Executor) publishHealing(src, dst entity.Entity, abilityID int, amount int, crit bool, remaining int) {
	x.sink.BroadcastToZone(dst.ZoneID(), &protocol.Healing{
		SourceEntityID:  src.ID(),
		TargetEntityID:  dst.ID(),
		AbilityID:       abilityID,
		Amount:          amount,
		IsCritical:      crit,
		RemainingHealth: remaining,
		Metadata:        x.metadata(),
	}, 0)
}

func (x *Executor) notifyKill(ev KillEvent) {
	x.listenersMu.RLock()
	listeners := append([]KillListener(nil), x.onKill...)
	x.listenersMu.RUnlock()

	for _, l := range listeners {
		func() {
			defer func() {
				if r := recover(); r != nil {
					x.logger.Error("❌ Паника в обработчике убийства %d: %v", ev.Victim.ID(), r)
				}
			}()
			l(ev)
		}()
	}
}
