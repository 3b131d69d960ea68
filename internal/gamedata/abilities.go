package gamedata

import "sort"

// Идентификаторы способностей
const (
	AbilityBasicStrike    = 1
	AbilityPiercingArrow  = 2
	AbilityArcaneBolt     = 3
	AbilityHealingWave    = 4
	AbilityVoidKnife      = 5
	AbilityDominionBolt   = 6
	AbilityRadiantMend    = 7
	AbilityTemporalSlice  = 8
	AbilityFrenziedStrike = 9
	AbilityTotemPulse     = 10
	AbilityNPCMelee       = 100
)

// Ability неизменяемая запись каталога способностей
type Ability struct {
	ID             int
	Name           string
	Description    string
	Type           AbilityType
	DamageType     DamageType
	TargetType     TargetType
	Range          float32
	Radius         float32
	ResourceCost   int
	Cooldown       float32
	GlobalCooldown float32
	CanCrit        bool
	TriggersGCD    bool
	BaseValue      int
	PowerScaling   float32
	RequiredLevel  int
	AllowedClasses []Class
}

// AllowsClass проверяет, разрешена ли способность классу
func (a *Ability) AllowsClass(c Class) bool {
	for _, allowed := range a.AllowedClasses {
		if allowed == c {
			return true
		}
	}
	return false
}

// CalculateValue base + power*scaling, на криты умножается на CriticalDamage.
// Сила берётся из AttackPower для физических и SpellPower для магических способностей.
func (a *Ability) CalculateValue(caster CharacterStats, isCrit bool) int {
	var power float32
	switch a.Type {
	case AbilityPhysicalDamage, AbilityMeleeDamage:
		power = float32(caster.AttackPower)
	case AbilitySpellDamage, AbilityHealing:
		power = float32(caster.SpellPower)
	}

	value := float32(a.BaseValue) + power*a.PowerScaling
	if isCrit && a.CanCrit {
		value *= caster.CriticalDamage
	}
	return int(value)
}

type abilityOpt func(*Ability)

func newAbility(id int, name, desc string, typ AbilityType, dmg DamageType, target TargetType,
	rng float32, cost int, cooldown, scaling float32, base int, classes []Class, opts ...abilityOpt) *Ability {
	a := &Ability{
		ID:             id,
		Name:           name,
		Description:    desc,
		Type:           typ,
		DamageType:     dmg,
		TargetType:     target,
		Range:          rng,
		ResourceCost:   cost,
		Cooldown:       cooldown,
		GlobalCooldown: DefaultGlobalCooldown,
		CanCrit:        true,
		TriggersGCD:    true,
		BaseValue:      base,
		PowerScaling:   scaling,
		RequiredLevel:  1,
		AllowedClasses: classes,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

func withRadius(r float32) abilityOpt {
	return func(a *Ability) { a.Radius = r }
}

var abilityBook = map[int]*Ability{
	AbilityBasicStrike: newAbility(AbilityBasicStrike, "Basic Strike", "A disciplined melee attack.",
		AbilityMeleeDamage, DamagePhysical, TargetSingleEnemy, MeleeRange, 0, 1.0, 0.8, 18,
		[]Class{ClassUnboundWarrior, ClassArchonKnight, ClassMemoryWarden, ClassBerserker, ClassFreeBlade}),
	AbilityPiercingArrow: newAbility(AbilityPiercingArrow, "Piercing Arrow", "A precise shot that ignores light armor.",
		AbilityPhysicalDamage, DamagePhysical, TargetSingleEnemy, 25, 0, 1.5, 0.6, 16,
		[]Class{ClassFreeBlade, ClassVoidStalker}),
	AbilityArcaneBolt: newAbility(AbilityArcaneBolt, "Arcane Bolt", "A quick shard of unstable arcane force.",
		AbilitySpellDamage, DamageArcane, TargetSingleEnemy, 30, 10, 1.2, 0.7, 20,
		[]Class{ClassTemporalMage, ClassMemoryThief}),
	AbilityHealingWave: newAbility(AbilityHealingWave, "Healing Wave", "A surge of Worldroot vitality.",
		AbilityHealing, DamageNature, TargetSingleAlly, 30, 18, 1.8, 0.9, 22,
		[]Class{ClassTotemShaman, ClassRootDruid, ClassMemoryWarden, ClassGodSeekerCleric}),
	AbilityVoidKnife: newAbility(AbilityVoidKnife, "Void Knife", "A blade that erases a sliver of existence.",
		AbilityMeleeDamage, DamageVoid, TargetSingleEnemy, MeleeRange, 0, 1.0, 0.7, 20,
		[]Class{ClassVoidStalker, ClassMemoryThief, ClassWitchKingAcolyte}),
	AbilityDominionBolt: newAbility(AbilityDominionBolt, "Dominion Bolt", "Consumed divinity hurled at a foe.",
		AbilitySpellDamage, DamageShadow, TargetSingleEnemy, 30, 14, 1.3, 0.65, 24,
		[]Class{ClassWitchKingAcolyte}),
	AbilityRadiantMend: newAbility(AbilityRadiantMend, "Radiant Mend", "Divine light knits wounds closed.",
		AbilityHealing, DamageRadiant, TargetSingleAlly, 30, 16, 1.8, 0.85, 26,
		[]Class{ClassGodSeekerCleric}),
	AbilityTemporalSlice: newAbility(AbilityTemporalSlice, "Temporal Slice", "A cut across several heartbeats at once.",
		AbilitySpellDamage, DamageTemporal, TargetSingleEnemy, 30, 12, 1.3, 0.75, 22,
		[]Class{ClassTemporalMage, ClassArchonKnight}),
	AbilityFrenziedStrike: newAbility(AbilityFrenziedStrike, "Frenzied Strike", "A reckless blow fuelled by instinct.",
		AbilityMeleeDamage, DamagePhysical, TargetSingleEnemy, MeleeRange, 0, 0.9, 0.9, 24,
		[]Class{ClassBerserker, ClassUnboundWarrior}),
	AbilityTotemPulse: newAbility(AbilityTotemPulse, "Totem Pulse", "A ring of primal force around the caster.",
		AbilitySpellDamage, DamageNature, TargetAreaOfEffect, MeleeRange, 14, 2.0, 0.6, 18,
		[]Class{ClassTotemShaman, ClassRootDruid, ClassMemoryWarden}, withRadius(8)),
	AbilityNPCMelee: newAbility(AbilityNPCMelee, "Claw", "A basic creature attack.",
		AbilityMeleeDamage, DamagePhysical, TargetSingleEnemy, MeleeRange, 0, 1.5, 0.4, 10,
		nil),
}

// GetAbility возвращает способность по id
func GetAbility(id int) (*Ability, bool) {
	a, ok := abilityBook[id]
	return a, ok
}

// AbilitiesForClass все способности класса, доступные на уровне, по возрастанию id
func AbilitiesForClass(c Class, level int) []*Ability {
	var out []*Ability
	for _, a := range abilityBook {
		if a.AllowsClass(c) && a.RequiredLevel <= level {
			out = append(out, a)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// KnownAbilityIDs набор id способностей, известных персонажу
func KnownAbilityIDs(c Class, level int) map[int]struct{} {
	known := make(map[int]struct{})
	for _, a := range AbilitiesForClass(c, level) {
		known[a.ID] = struct{}{}
	}
	for _, id := range ArchetypeFor(c).StartingAbilityIDs {
		if a, ok := abilityBook[id]; ok && a.AllowsClass(c) {
			known[id] = struct{}{}
		}
	}
	return known
}
