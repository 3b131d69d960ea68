package world

import (
	"time"

	"github.com/annel0/eldara-server/internal/world/entity"
)

const (
	// playerRegenPerSecond доля максимума пулов игрока в секунду вне боя
	playerRegenPerSecond = 0.02
	// inputIdleAfter без ввода дольше этого игрок считается стоящим
	inputIdleAfter = 250 * time.Millisecond
)

// PlayerBehavior поведение игрока в тике: затухание движения и регенерация вне боя
type PlayerBehavior struct{}

func (PlayerBehavior) Update(e entity.Entity, dt float64, now time.Time) {
	p, ok := e.(*entity.Player)
	if !ok {
		return
	}
	if _, last := p.LastInput(); now.Sub(last) > inputIdleAfter {
		p.DecayMovement()
	}
	p.Regenerate(playerRegenPerSecond, dt, now)
}

// RegisterBehaviors подключает поведение игроков и ИИ NPC к реестру
func RegisterBehaviors(entities *entity.Manager, npcAI entity.Behavior) {
	entities.RegisterBehavior(entity.KindPlayer, PlayerBehavior{})
	if npcAI != nil {
		entities.RegisterBehavior(entity.KindNPC, npcAI)
	}
}
