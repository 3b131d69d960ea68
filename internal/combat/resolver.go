package combat

import (
	"math/rand"
	"sync"
	"time"

	"github.com/annel0/eldara-server/internal/gamedata"
)

// Rand источник случайности для бросков крита
type Rand interface {
	Float32() float32
}

// lockedRand потокобезопасная обёртка над math/rand
type lockedRand struct {
	mu  sync.Mutex
	rnd *rand.Rand
}

// NewRand создаёт потокобезопасный генератор с заданным зерном
func NewRand(seed int64) Rand {
	return &lockedRand{rnd: rand.New(rand.NewSource(seed))}
}

func (r *lockedRand) Float32() float32 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.rnd.Float32()
}

func defaultRand() Rand {
	return NewRand(time.Now().UnixNano())
}

// ArmorReduction доля снижения физического урона: armor/(armor+K), не больше MaxArmorReduction
func ArmorReduction(armor int) float32 {
	if armor <= 0 {
		return 0
	}
	a := float32(armor)
	reduction := a / (a + gamedata.ArmorMitigationConstant)
	if reduction > gamedata.MaxArmorReduction {
		return gamedata.MaxArmorReduction
	}
	return reduction
}

// ResistanceReduction доля снижения магического урона данного типа
func ResistanceReduction(target gamedata.CharacterStats, dt gamedata.DamageType) float32 {
	r := target.Resistances[dt]
	if r <= 0 {
		return 0
	}
	if r > gamedata.MaxResistanceReduction {
		return gamedata.MaxResistanceReduction
	}
	return r
}

// MitigateDamage применяет броню к физическому урону и сопротивление к остальным типам.
// Результат никогда не отрицателен.
func MitigateDamage(raw int, dt gamedata.DamageType, target gamedata.CharacterStats) int {
	if raw <= 0 {
		return 0
	}
	var reduction float32
	if dt == gamedata.DamagePhysical {
		reduction = ArmorReduction(target.Armor)
	} else {
		reduction = ResistanceReduction(target, dt)
	}
	out := int(float32(raw) * (1 - reduction))
	if out < 0 {
		return 0
	}
	return out
}

// RollCrit бросок крита: равномерное значение меньше шанса
func RollCrit(r Rand, chance float32) bool {
	if chance <= 0 {
		return false
	}
	return r.Float32() < chance
}

// Outcome результат расчёта способности до применения к цели
type Outcome struct {
	Value      int
	IsCritical bool
	IsHeal     bool
}

// Resolve считает значение способности: крит, base + power*scaling и тип применения
func Resolve(a *gamedata.Ability, caster gamedata.CharacterStats, r Rand) Outcome {
	crit := a.CanCrit && RollCrit(r, caster.CriticalChance)
	return Outcome{
		Value:      a.CalculateValue(caster, crit),
		IsCritical: crit,
		IsHeal:     a.Type == gamedata.AbilityHealing,
	}
}

// NPCAttackDamage урон автоатаки NPC заданного уровня
func NPCAttackDamage(level int) int {
	return 8 + 2*level
}
