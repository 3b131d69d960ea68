package ai

import (
	"github.com/annel0/eldara-server/internal/gamedata"
	"github.com/annel0/eldara-server/internal/vec"
	"github.com/annel0/eldara-server/internal/world/entity"
)

const (
	// outOfCombatRegen доля максимума пулов в секунду вне боя
	outOfCombatRegen = 0.02
	// patrolSpeedFactor доля скорости бега при патрулировании
	patrolSpeedFactor = 0.5
	// disengageFactor множитель радиуса агрессии, за которым цель теряется
	disengageFactor = 1.5
)

// === Конкретные состояния ===

// IdleState - NPC стоит на месте и ждёт цель
type IdleState struct{}

func (IdleState) ID() entity.AIState { return entity.AIIdle }

func (IdleState) Enter(ctx *Context) {
	t := ctx.NPC.Transform()
	t.Velocity = vec.Zero
	t.State = entity.MovementIdle
	ctx.NPC.SetTransform(t)
}

func (s IdleState) Update(ctx *Context) State {
	ctx.NPC.Regenerate(outOfCombatRegen, float64(ctx.Dt), ctx.Now)

	if ctx.c.acquireTarget(ctx) {
		return ctx.c.states[entity.AICombat]
	}
	if ctx.NPC.HasPatrol() {
		return ctx.c.states[entity.AIPatrolling]
	}
	return s
}

func (IdleState) Exit(*Context) {}

// PatrolState - обход точек патруля по кругу
type PatrolState struct{}

func (PatrolState) ID() entity.AIState { return entity.AIPatrolling }

func (PatrolState) Enter(*Context) {}

func (s PatrolState) Update(ctx *Context) State {
	npc := ctx.NPC
	npc.Regenerate(outOfCombatRegen, float64(ctx.Dt), ctx.Now)

	if ctx.c.acquireTarget(ctx) {
		return ctx.c.states[entity.AICombat]
	}
	waypoint, ok := npc.NextWaypoint()
	if !ok {
		return ctx.c.states[entity.AIIdle]
	}

	pos := npc.StepTowards(waypoint, npc.MovementSpeed()*patrolSpeedFactor, ctx.Dt)
	if pos.WithinRange(waypoint, gamedata.NPCReturnTolerance) {
		npc.AdvancePatrol()
	}
	return s
}

func (PatrolState) Exit(ctx *Context) {
	ctx.NPC.DecayMovement()
}

// CombatState - преследование и атака цели
type CombatState struct{}

func (CombatState) ID() entity.AIState { return entity.AICombat }

func (CombatState) Enter(*Context) {}

func (s CombatState) Update(ctx *Context) State {
	npc := ctx.NPC
	returning := ctx.c.states[entity.AIReturning]

	target, ok := ctx.c.entities.Get(npc.TargetID())
	if !ok || !target.IsAlive() || target.ZoneID() != npc.ZoneID() {
		return returning
	}
	if npc.CombatDuration(ctx.Now) > gamedata.NPCMaxCombatDuration {
		return returning
	}

	pos := npc.Position()
	if !pos.WithinRange(npc.SpawnOrigin(), npc.LeashDistance()) {
		return returning
	}
	targetPos := target.Position()
	if !pos.WithinRange(targetPos, ctx.c.effectiveAggro(npc)*disengageFactor) {
		return returning
	}

	if !pos.WithinRange(targetPos, npc.AttackRange()) {
		npc.StepTowards(targetPos, npc.MovementSpeed(), ctx.Dt)
		return s
	}

	npc.DecayMovement()
	if npc.TryAttack(ctx.Now, gamedata.NPCAttackInterval) {
		ctx.c.attacker.NPCAttack(npc, target, ctx.Now)
	}
	return s
}

func (CombatState) Exit(*Context) {}

// ReturningState - возврат к точке появления со сбросом здоровья и кулдаунов
type ReturningState struct{}

func (ReturningState) ID() entity.AIState { return entity.AIReturning }

func (ReturningState) Enter(ctx *Context) {
	ctx.NPC.LeaveCombat()
}

func (s ReturningState) Update(ctx *Context) State {
	npc := ctx.NPC
	origin := npc.SpawnOrigin()

	pos := npc.StepTowards(origin, npc.MovementSpeed(), ctx.Dt)
	if !pos.WithinRange(origin, gamedata.NPCReturnTolerance) {
		return s
	}

	npc.ResetAfterReturn()
	npc.DecayMovement()
	if npc.HasPatrol() {
		return ctx.c.states[entity.AIPatrolling]
	}
	return ctx.c.states[entity.AIIdle]
}

func (ReturningState) Exit(*Context) {}
