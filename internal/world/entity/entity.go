package entity

import (
	"sync"
	"time"

	"github.com/annel0/eldara-server/internal/gamedata"
	"github.com/annel0/eldara-server/internal/vec"
)

// Kind представляет вариант сущности
type Kind uint8

const (
	KindPlayer Kind = iota
	KindNPC
)

func (k Kind) String() string {
	switch k {
	case KindPlayer:
		return "Player"
	case KindNPC:
		return "NPC"
	default:
		return "Unknown"
	}
}

// MovementState состояние движения
type MovementState uint8

const (
	MovementIdle MovementState = iota
	MovementWalking
	MovementRunning
	MovementJumping
	MovementFalling
	MovementSwimming
	MovementFlying
	MovementMounted
	MovementStunned
	MovementRooted
)

var movementNames = [...]string{
	"Idle", "Walking", "Running", "Jumping", "Falling",
	"Swimming", "Flying", "Mounted", "Stunned", "Rooted",
}

func (m MovementState) String() string {
	if int(m) < len(movementNames) {
		return movementNames[m]
	}
	return "Unknown"
}

// Transform положение и ориентация сущности в зоне
type Transform struct {
	Position vec.Vec3
	Velocity vec.Vec3
	Yaw      float32
	Pitch    float32
	State    MovementState
}

// Entity закрытое множество вариантов: *Player и *NPC.
// Все методы потокобезопасны.
type Entity interface {
	ID() uint64
	Kind() Kind
	Name() string
	ZoneID() string
	Faction() gamedata.Faction
	Level() int

	Transform() Transform
	SetTransform(t Transform)
	Position() vec.Vec3
	Relocate(zoneID string, pos vec.Vec3)

	// Stats возвращает глубокую копию характеристик
	Stats() gamedata.CharacterStats
	IsAlive() bool
	// ApplyDamage вычитает урон, здоровье не опускается ниже нуля.
	// killed = true только для удара, который перевёл живую сущность в ноль.
	ApplyDamage(amount int) (remaining int, killed bool)
	// ApplyHealing добавляет здоровье не выше максимума; мёртвых не лечит
	ApplyHealing(amount int) (healed int, remaining int)

	EngageCombat(now time.Time)
	InCombat(now time.Time) bool

	base() *Base
}

// Base общая часть всех сущностей. Идентификатор неизменяем после создания.
type Base struct {
	mu sync.RWMutex

	id        uint64
	name      string
	zoneID    string
	transform Transform
	stats     gamedata.CharacterStats

	combatUntil time.Time
	regenCarry  [3]float64 // дробные остатки регенерации: здоровье, мана, выносливость
}

func newBase(id uint64, name, zoneID string, pos vec.Vec3, stats gamedata.CharacterStats) Base {
	stats = stats.Clone()
	stats.Clamp()
	return Base{
		id:        id,
		name:      name,
		zoneID:    zoneID,
		transform: Transform{Position: pos},
		stats:     stats,
	}
}

func (b *Base) base() *Base { return b }

// ID возвращает идентификатор сущности
func (b *Base) ID() uint64 { return b.id }

// Name возвращает отображаемое имя
func (b *Base) Name() string { return b.name }

// ZoneID возвращает текущую зону
func (b *Base) ZoneID() string {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.zoneID
}

func (b *Base) Transform() Transform {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.transform
}

func (b *Base) SetTransform(t Transform) {
	b.mu.Lock()
	b.transform = t
	b.mu.Unlock()
}

func (b *Base) Position() vec.Vec3 {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.transform.Position
}

// Relocate переносит сущность в другую зону (или точку той же зоны) и гасит скорость
func (b *Base) Relocate(zoneID string, pos vec.Vec3) {
	b.mu.Lock()
	b.zoneID = zoneID
	b.transform.Position = pos
	b.transform.Velocity = vec.Zero
	b.transform.State = MovementIdle
	b.mu.Unlock()
}

func (b *Base) Stats() gamedata.CharacterStats {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.stats.Clone()
}

func (b *Base) IsAlive() bool {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.stats.CurrentHealth > 0
}

func (b *Base) ApplyDamage(amount int) (int, bool) {
	if amount < 0 {
		amount = 0
	}
	b.mu.Lock()
	defer b.mu.Unlock()

	wasAlive := b.stats.CurrentHealth > 0
	b.stats.CurrentHealth -= amount
	if b.stats.CurrentHealth < 0 {
		b.stats.CurrentHealth = 0
	}
	return b.stats.CurrentHealth, wasAlive && b.stats.CurrentHealth == 0
}

func (b *Base) ApplyHealing(amount int) (int, int) {
	if amount < 0 {
		amount = 0
	}
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.stats.CurrentHealth <= 0 {
		return 0, 0
	}
	healed := b.stats.MaxHealth - b.stats.CurrentHealth
	if amount < healed {
		healed = amount
	}
	b.stats.CurrentHealth += healed
	return healed, b.stats.CurrentHealth
}

// RestoreFull восстанавливает все пулы до максимума
func (b *Base) RestoreFull() {
	b.mu.Lock()
	b.stats.RestoreFull()
	b.regenCarry = [3]float64{}
	b.mu.Unlock()
}

// EngageCombat продлевает боевое состояние на OutOfCombatDelay от now
func (b *Base) EngageCombat(now time.Time) {
	b.mu.Lock()
	b.combatUntil = now.Add(gamedata.OutOfCombatDelay)
	b.mu.Unlock()
}

func (b *Base) InCombat(now time.Time) bool {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return now.Before(b.combatUntil)
}

// Regenerate восстанавливает долю максимума пулов в секунду вне боя.
// Дробная часть копится между тиками, инвариант current <= max сохраняется.
func (b *Base) Regenerate(fractionPerSecond float64, dt float64, now time.Time) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.stats.CurrentHealth <= 0 || now.Before(b.combatUntil) {
		return
	}

	pools := [3]struct{ cur, max *int }{
		{&b.stats.CurrentHealth, &b.stats.MaxHealth},
		{&b.stats.CurrentMana, &b.stats.MaxMana},
		{&b.stats.CurrentStamina, &b.stats.MaxStamina},
	}
	for i, p := range pools {
		if *p.cur >= *p.max {
			b.regenCarry[i] = 0
			continue
		}
		b.regenCarry[i] += float64(*p.max) * fractionPerSecond * dt
		whole := int(b.regenCarry[i])
		if whole == 0 {
			continue
		}
		b.regenCarry[i] -= float64(whole)
		*p.cur += whole
		if *p.cur > *p.max {
			*p.cur = *p.max
		}
	}
}

// DecayMovement гасит скорость сущности, которая не получала ввода
func (b *Base) DecayMovement() {
	b.mu.Lock()
	b.transform.Velocity = vec.Zero
	if b.transform.State == MovementWalking || b.transform.State == MovementRunning {
		b.transform.State = MovementIdle
	}
	b.mu.Unlock()
}

// MovementSpeed базовая скорость из характеристик
func (b *Base) MovementSpeed() float32 {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.stats.MovementSpeed
}

// Health текущее и максимальное здоровье
func (b *Base) Health() (current, maximum int) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.stats.CurrentHealth, b.stats.MaxHealth
}
