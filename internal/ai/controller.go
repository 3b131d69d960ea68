package ai

import (
	"time"

	"github.com/annel0/eldara-server/internal/logging"
	"github.com/annel0/eldara-server/internal/world/clock"
	"github.com/annel0/eldara-server/internal/world/entity"
)

// Attacker наносит урон автоатакой NPC
type Attacker interface {
	NPCAttack(npc *entity.NPC, target entity.Entity, now time.Time) int
}

// Controller управляет всеми NPC. Регистрируется в реестре как поведение KindNPC
// и вызывается из тика симуляции.
type Controller struct {
	*machine

	entities *entity.Manager
	clock    *clock.Clock
	attacker Attacker
	logger   *logging.Logger
}

// NewController создаёт контроллер AI
func NewController(entities *entity.Manager, clk *clock.Clock, attacker Attacker) *Controller {
	return &Controller{
		machine:  newMachine(IdleState{}, PatrolState{}, CombatState{}, ReturningState{}),
		entities: entities,
		clock:    clk,
		attacker: attacker,
		logger:   logging.GetGameLogger(),
	}
}

// Update реализует entity.Behavior
func (c *Controller) Update(e entity.Entity, dt float64, now time.Time) {
	npc, ok := e.(*entity.NPC)
	if !ok || !npc.IsAlive() {
		return
	}
	ctx := &Context{NPC: npc, Dt: float32(dt), Now: now, c: c}
	attackerID, provoked := npc.TakeProvocation()

	if !npc.Window().Allows(c.clock) {
		c.updateOutsideWindow(ctx)
		return
	}
	if npc.Dormant() {
		npc.SetDormant(false)
		npc.SetAIState(entity.AIIdle)
		c.logger.Debug("🌅 NPC %s (%d) проснулся", npc.Name(), npc.ID())
	}
	if provoked {
		c.answerProvocation(ctx, attackerID)
	}

	if from, to := c.step(ctx); from != to {
		c.logger.Debug("🧠 NPC %s (%d): %s → %s", npc.Name(), npc.ID(), from, to)
	}
}

// updateOutsideWindow вне окна активности NPC идёт домой и засыпает
func (c *Controller) updateOutsideWindow(ctx *Context) {
	npc := ctx.NPC
	if npc.Dormant() {
		return
	}
	if npc.AIState() != entity.AIReturning {
		c.force(ctx, entity.AIReturning)
	}
	if _, to := c.step(ctx); to != entity.AIReturning {
		npc.SetDormant(true)
		c.logger.Debug("🌙 NPC %s (%d) уснул вне окна активности", npc.Name(), npc.ID())
	}
}

// answerProvocation переводит NPC в бой с ударившим игроком. NPC в бою
// цель не меняет.
func (c *Controller) answerProvocation(ctx *Context, attackerID uint64) {
	npc := ctx.NPC
	if npc.AIState() == entity.AICombat {
		return
	}
	p, ok := c.entities.GetPlayer(attackerID)
	if !ok || !p.IsAlive() || p.ZoneID() != npc.ZoneID() {
		return
	}
	from := npc.AIState()
	npc.Engage(attackerID, ctx.Now)
	c.force(ctx, entity.AICombat)
	c.logger.Debug("⚔️ NPC %s (%d) отвечает игроку %s (%d): %s → %s", npc.Name(), npc.ID(), p.Name(), p.ID(), from, entity.AICombat)
}

// effectiveAggro радиус агрессии с учётом напряжения Worldroot
func (c *Controller) effectiveAggro(npc *entity.NPC) float32 {
	strain := float32(c.clock.Strain())
	return npc.AggroRange() * (1 + 0.5*strain)
}

// acquireTarget ищет ближайшего живого игрока чужой фракции в радиусе агрессии.
// Неагрессивные NPC цель сами не выбирают.
func (c *Controller) acquireTarget(ctx *Context) bool {
	npc := ctx.NPC
	if !npc.IsHostile() {
		return false
	}

	pos := npc.Position()
	var (
		best   *entity.Player
		bestSq float32
	)
	for _, e := range c.entities.InRange(npc.ZoneID(), pos, c.effectiveAggro(npc)) {
		p, ok := e.(*entity.Player)
		if !ok || !p.IsAlive() || p.Faction() == npc.Faction() {
			continue
		}
		d := pos.DistanceSq(p.Position())
		if best == nil || d < bestSq {
			best, bestSq = p, d
		}
	}
	if best == nil {
		return false
	}

	npc.Engage(best.ID(), ctx.Now)
	c.logger.Debug("⚔️ NPC %s (%d) атакует игрока %s (%d)", npc.Name(), npc.ID(), best.Name(), best.ID())
	return true
}
