package gamedata

// Race раса персонажа
type Race int

const (
	RaceSylvaen     Race = 1
	RaceHighElf     Race = 2
	RaceHuman       Race = 3
	RaceTherakai    Race = 4
	RaceGronnak     Race = 5
	RaceVoidTouched Race = 6
)

func (r Race) String() string {
	switch r {
	case RaceSylvaen:
		return "Sylvaen"
	case RaceHighElf:
		return "HighElf"
	case RaceHuman:
		return "Human"
	case RaceTherakai:
		return "Therakai"
	case RaceGronnak:
		return "Gronnak"
	case RaceVoidTouched:
		return "VoidTouched"
	default:
		return "Unknown"
	}
}

// Valid проверяет, что значение входит в перечисление
func (r Race) Valid() bool {
	return r >= RaceSylvaen && r <= RaceVoidTouched
}

// Class класс персонажа
type Class int

const (
	ClassMemoryWarden     Class = 1
	ClassTemporalMage     Class = 2
	ClassUnboundWarrior   Class = 3
	ClassTotemShaman      Class = 4
	ClassBerserker        Class = 5
	ClassWitchKingAcolyte Class = 6
	ClassVoidStalker      Class = 7
	ClassRootDruid        Class = 8
	ClassArchonKnight     Class = 9
	ClassFreeBlade        Class = 10
	ClassGodSeekerCleric  Class = 11
	ClassMemoryThief      Class = 12
)

var classNames = map[Class]string{
	ClassMemoryWarden:     "MemoryWarden",
	ClassTemporalMage:     "TemporalMage",
	ClassUnboundWarrior:   "UnboundWarrior",
	ClassTotemShaman:      "TotemShaman",
	ClassBerserker:        "Berserker",
	ClassWitchKingAcolyte: "WitchKingAcolyte",
	ClassVoidStalker:      "VoidStalker",
	ClassRootDruid:        "RootDruid",
	ClassArchonKnight:     "ArchonKnight",
	ClassFreeBlade:        "FreeBlade",
	ClassGodSeekerCleric:  "GodSeekerCleric",
	ClassMemoryThief:      "MemoryThief",
}

func (c Class) String() string {
	if name, ok := classNames[c]; ok {
		return name
	}
	return "Unknown"
}

// Valid проверяет, что значение входит в перечисление
func (c Class) Valid() bool {
	_, ok := classNames[c]
	return ok
}

// Faction фракция
type Faction int

const (
	FactionNeutral             Faction = 0
	FactionVerdantCircles      Faction = 1
	FactionAscendantLeague     Faction = 2
	FactionUnitedKingdoms      Faction = 3
	FactionTotemClansWildborn  Faction = 4
	FactionTotemClansPathbound Faction = 5
	FactionDominionWarhost     Faction = 6
	FactionVoidCompact         Faction = 7
)

func (f Faction) String() string {
	switch f {
	case FactionNeutral:
		return "Neutral"
	case FactionVerdantCircles:
		return "VerdantCircles"
	case FactionAscendantLeague:
		return "AscendantLeague"
	case FactionUnitedKingdoms:
		return "UnitedKingdoms"
	case FactionTotemClansWildborn:
		return "TotemClansWildborn"
	case FactionTotemClansPathbound:
		return "TotemClansPathbound"
	case FactionDominionWarhost:
		return "DominionWarhost"
	case FactionVoidCompact:
		return "VoidCompact"
	default:
		return "Unknown"
	}
}

// FactionStanding отношение одной фракции к другой
type FactionStanding int

const (
	StandingHated      FactionStanding = -3
	StandingHostile    FactionStanding = -2
	StandingUnfriendly FactionStanding = -1
	StandingNeutral    FactionStanding = 0
	StandingFriendly   FactionStanding = 1
	StandingHonored    FactionStanding = 2
	StandingExalted    FactionStanding = 3
)

// TotemSpirit тотем Therakai
type TotemSpirit int

const (
	TotemNone   TotemSpirit = 0
	TotemFanged TotemSpirit = 1
	TotemHorned TotemSpirit = 2
	TotemClawed TotemSpirit = 3
	TotemWinged TotemSpirit = 4
)

// DamageType тип урона
type DamageType int

const (
	DamagePhysical DamageType = iota
	DamageNature
	DamageRadiant
	DamageHoly
	DamageNecrotic
	DamageArcane
	DamageFire
	DamageFrost
	DamageLightning
	DamageVoid
	DamageShadow
	DamageSpirit
	DamageTemporal
)

// ResourceType ресурс класса
type ResourceType int

const (
	ResourceMana ResourceType = iota
	ResourceRage
	ResourceEnergy
	ResourceFocus
	ResourceCorruption
)

func (r ResourceType) String() string {
	switch r {
	case ResourceMana:
		return "Mana"
	case ResourceRage:
		return "Rage"
	case ResourceEnergy:
		return "Energy"
	case ResourceFocus:
		return "Focus"
	case ResourceCorruption:
		return "Corruption"
	default:
		return "Unknown"
	}
}

// Pool реальный пул персонажа, из которого списывается ресурс
type Pool int

const (
	PoolMana Pool = iota
	PoolStamina
)

// PoolForResource отображает ресурс класса на пул персонажа.
// Rage, Energy и Focus пока живут в пуле выносливости, Corruption - в мане.
func PoolForResource(r ResourceType) Pool {
	switch r {
	case ResourceRage, ResourceEnergy, ResourceFocus:
		return PoolStamina
	default:
		return PoolMana
	}
}

// AbilityType тип способности
type AbilityType int

const (
	AbilityPhysicalDamage AbilityType = iota
	AbilityMeleeDamage
	AbilitySpellDamage
	AbilityHealing
	AbilityBuff
	AbilityDebuff
	AbilityUtility
	AbilitySummon
	AbilityShapeshift
	AbilityTeleport
	AbilityResurrection
)

// IsDamage true для всех типов, наносящих урон
func (t AbilityType) IsDamage() bool {
	return t == AbilityPhysicalDamage || t == AbilityMeleeDamage || t == AbilitySpellDamage
}

// TargetType способ выбора цели
type TargetType int

const (
	TargetSelf TargetType = iota
	TargetSingleEnemy
	TargetSingleAlly
	TargetSingleTarget
	TargetAreaOfEffect
	TargetCone
	TargetLine
	TargetGroundTarget
	TargetAllAllies
	TargetAllEnemies
)
