package combat

import (
	"fmt"
	"sync"
	"time"

	"github.com/annel0/eldara-server/internal/gamedata"
	"github.com/annel0/eldara-server/internal/logging"
	"github.com/annel0/eldara-server/internal/protocol"
	"github.com/annel0/eldara-server/internal/vec"
	"github.com/annel0/eldara-server/internal/world/entity"
	"github.com/annel0/eldara-server/internal/world/zone"
)

// Request запрос игрока на применение способности
type Request struct {
	CasterID       uint64
	AbilityID      int
	TargetID       uint64 // 0 если цель не указана
	TargetPosition *vec.Vec3
	InputSequence  uint32
}

// Executor проверяет и применяет способности. Безопасен для вызова из горутин соединений
// и из тика симуляции одновременно: всё изменяемое состояние живёт в сущностях.
type Executor struct {
	entities   *entity.Manager
	zones      *zone.Directory
	sink       EventSink
	rng        Rand
	serverTime func() int64
	logger     *logging.Logger

	listenersMu sync.RWMutex
	onKill      []KillListener
}

// Option настройка исполнителя
type Option func(*Executor)

// WithRand подменяет источник случайности
func WithRand(r Rand) Option {
	return func(x *Executor) { x.rng = r }
}

// WithSink задаёт получателя боевых событий
func WithSink(s EventSink) Option {
	return func(x *Executor) { x.sink = s }
}

// WithServerTime задаёт часы сервера в миллисекундах
func WithServerTime(fn func() int64) Option {
	return func(x *Executor) { x.serverTime = fn }
}

// NewExecutor создаёт исполнитель способностей
func NewExecutor(entities *entity.Manager, zones *zone.Directory, opts ...Option) *Executor {
	start := time.Now()
	x := &Executor{
		entities:   entities,
		zones:      zones,
		sink:       nopSink{},
		rng:        defaultRand(),
		serverTime: func() int64 { return time.Since(start).Milliseconds() },
		logger:     logging.GetGameLogger(),
	}
	for _, opt := range opts {
		opt(x)
	}
	return x
}

// OnKill подписывает обработчик убийств (смерть, квесты, события)
func (x *Executor) OnKill(l KillListener) {
	x.listenersMu.Lock()
	x.onKill = append(x.onKill, l)
	x.listenersMu.Unlock()
}

type failure struct {
	code protocol.ResponseCode
	msg  string
}

// Execute проверяет запрос и применяет способность.
// Любой отказ возвращается кодом и сообщением и не меняет состояние мира.
func (x *Executor) Execute(req Request, now time.Time) *protocol.AbilityResult {
	result := &protocol.AbilityResult{
		CasterEntityID: req.CasterID,
		AbilityID:      req.AbilityID,
		InputSequence:  req.InputSequence,
	}

	caster, ability, targets, fail := x.validate(req, now)
	if fail != nil {
		result.Result = fail.code
		result.Message = fail.msg
		x.logger.Debug("🚫 Способность %d от %d отклонена: %s (%s)", req.AbilityID, req.CasterID, fail.code, fail.msg)
		return result
	}

	caster.EngageCombat(now)
	for _, target := range targets {
		outcome := Resolve(ability, caster.Stats(), x.rng)
		if target.ID() != caster.ID() {
			target.EngageCombat(now)
		}
		if outcome.IsHeal {
			healed, remaining := target.ApplyHealing(outcome.Value)
			x.publishHealing(caster, target, ability.ID, healed, outcome.IsCritical, remaining)
			continue
		}
		x.applyDamage(caster, target, ability.ID, ability.DamageType, outcome.Value, outcome.IsCritical, now)
	}

	result.Result = protocol.Success
	return result
}

func (x *Executor) validate(req Request, now time.Time) (*entity.Player, *gamedata.Ability, []entity.Entity, *failure) {
	caster, ok := x.entities.GetPlayer(req.CasterID)
	if !ok {
		return nil, nil, nil, &failure{protocol.InvalidRequest, "Caster not found"}
	}
	if !caster.IsAlive() {
		return nil, nil, nil, &failure{protocol.InvalidRequest, "You are dead"}
	}
	ability, ok := gamedata.GetAbility(req.AbilityID)
	if !ok {
		return nil, nil, nil, &failure{protocol.NotFound, "Unknown ability"}
	}
	if !ability.AllowsClass(caster.Class()) {
		return nil, nil, nil, &failure{protocol.InsufficientPermissions, "Your class cannot use this ability"}
	}
	if caster.Level() < ability.RequiredLevel {
		return nil, nil, nil, &failure{protocol.InsufficientPermissions,
			fmt.Sprintf("Requires level %d", ability.RequiredLevel)}
	}
	if !caster.Knows(ability.ID) {
		return nil, nil, nil, &failure{protocol.InvalidRequest, "Ability not known"}
	}

	targets, fail := x.resolveTargets(caster, ability, req)
	if fail != nil {
		return nil, nil, nil, fail
	}

	switch caster.BeginCast(ability, now) {
	case entity.CastOK:
	case entity.CastOnGlobalCooldown:
		return nil, nil, nil, &failure{protocol.OnCooldown, "Global cooldown active"}
	case entity.CastOnCooldown:
		return nil, nil, nil, &failure{protocol.OnCooldown,
			fmt.Sprintf("%s is on cooldown", ability.Name)}
	case entity.CastInsufficientResource:
		return nil, nil, nil, &failure{protocol.NotEnoughMana,
			fmt.Sprintf("Not enough %s", gamedata.ResourceTypeForClass(caster.Class()))}
	}
	return caster, ability, targets, nil
}

func (x *Executor) resolveTargets(caster *entity.Player, a *gamedata.Ability, req Request) ([]entity.Entity, *failure) {
	switch a.TargetType {
	case gamedata.TargetSelf:
		return []entity.Entity{caster}, nil
	case gamedata.TargetAreaOfEffect, gamedata.TargetAllEnemies, gamedata.TargetGroundTarget:
		return x.resolveArea(caster, a, req)
	}

	if req.TargetID == 0 {
		return nil, &failure{protocol.InvalidTarget, "No target selected"}
	}
	target, ok := x.entities.Get(req.TargetID)
	if !ok || target.ZoneID() != caster.ZoneID() {
		return nil, &failure{protocol.InvalidTarget, "Target not found"}
	}

	switch a.TargetType {
	case gamedata.TargetSingleEnemy:
		if !x.isEnemy(caster, target) {
			return nil, &failure{protocol.InvalidTarget, "Target is not hostile"}
		}
	case gamedata.TargetSingleAlly:
		if !x.isAlly(caster, target) {
			return nil, &failure{protocol.InvalidTarget, "Target is not friendly"}
		}
	}

	if !target.IsAlive() {
		return nil, &failure{protocol.InvalidTarget, "Target is dead"}
	}
	if target.ID() != caster.ID() && !caster.Position().WithinRange(target.Position(), a.Range) {
		return nil, &failure{protocol.NotInRange, "Target out of range"}
	}
	return []entity.Entity{target}, nil
}

func (x *Executor) resolveArea(caster *entity.Player, a *gamedata.Ability, req Request) ([]entity.Entity, *failure) {
	center := caster.Position()
	if req.TargetPosition != nil {
		if !center.WithinRange(*req.TargetPosition, a.Range) {
			return nil, &failure{protocol.NotInRange, "Target location out of range"}
		}
		center = *req.TargetPosition
	}
	radius := a.Radius
	if radius <= 0 {
		radius = a.Range
	}

	var targets []entity.Entity
	for _, e := range x.entities.InRange(caster.ZoneID(), center, radius) {
		if e.ID() == caster.ID() || !e.IsAlive() || !x.isEnemy(caster, e) {
			continue
		}
		targets = append(targets, e)
	}
	return targets, nil
}

// isEnemy NPC чужой фракции всегда враги; игроки чужой фракции только в PvP зонах
func (x *Executor) isEnemy(caster *entity.Player, target entity.Entity) bool {
	switch t := target.(type) {
	case *entity.NPC:
		return t.Faction() != caster.Faction()
	case *entity.Player:
		if t.ID() == caster.ID() || t.Faction() == caster.Faction() {
			return false
		}
		return x.zones.IsPvP(caster.ZoneID())
	default:
		return false
	}
}

func (x *Executor) isAlly(caster *entity.Player, target entity.Entity) bool {
	return target.Faction() == caster.Faction()
}

func (x *Executor) applyDamage(src, dst entity.Entity, abilityID int, dt gamedata.DamageType, raw int, crit bool, now time.Time) int {
	amount := MitigateDamage(raw, dt, dst.Stats())
	remaining, killed := dst.ApplyDamage(amount)

	x.publishDamage(src, dst, abilityID, damageApplied{
		amount:     amount,
		remaining:  remaining,
		killed:     killed,
		critical:   crit,
		damageType: dt,
	})

	// ответную агрессию включает AI на своём шаге
	if npc, ok := dst.(*entity.NPC); ok && !killed && remaining > 0 {
		if _, isPlayer := src.(*entity.Player); isPlayer {
			npc.Provoke(src.ID())
		}
	}

	if killed {
		x.logger.Info("💀 %s (%d) убит %s (%d)", dst.Name(), dst.ID(), src.Name(), src.ID())
		x.notifyKill(KillEvent{Killer: src, Victim: dst, AbilityID: abilityID, At: now})
	}
	return amount
}

// NPCAttack автоатака NPC: физический урон 8 + 2*уровень с учётом брони цели.
// Продлевает боевое состояние обоих участников.
func (x *Executor) NPCAttack(npc *entity.NPC, target entity.Entity, now time.Time) int {
	if !npc.IsAlive() || !target.IsAlive() {
		return 0
	}
	npc.EngageCombat(now)
	target.EngageCombat(now)

	return x.applyDamage(npc, target, gamedata.AbilityNPCMelee, gamedata.DamagePhysical, NPCAttackDamage(npc.Level()), false, now)
}

type damageApplied struct {
	amount     int
	remaining  int
	killed     bool
	critical   bool
	damageType gamedata.DamageType
}
