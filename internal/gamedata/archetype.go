package gamedata

// CoreClass базовый архетип, к которому сводятся лорные классы
type CoreClass int

const (
	CoreWarrior CoreClass = 1
	CoreRanger  CoreClass = 2
	CoreMage    CoreClass = 3
)

// Archetype стартовые характеристики и ресурс архетипа
type Archetype struct {
	ID                 CoreClass
	Name               string
	ResourceType       ResourceType
	BaseStats          CharacterStats
	StartingAbilityIDs []int
}

var archetypes = map[CoreClass]Archetype{
	CoreWarrior: {
		ID:           CoreWarrior,
		Name:         "Warrior",
		ResourceType: ResourceRage,
		BaseStats: withBase(func(s *CharacterStats) {
			s.Strength, s.Agility, s.Intellect, s.Stamina, s.Willpower = 14, 10, 8, 14, 10
			s.MaxHealth, s.CurrentHealth = 160, 160
			s.MaxMana, s.CurrentMana = 0, 0
			s.AttackPower, s.SpellPower = 20, 0
			s.MovementSpeed = 6.5
		}),
		StartingAbilityIDs: []int{AbilityBasicStrike},
	},
	CoreRanger: {
		ID:           CoreRanger,
		Name:         "Ranger",
		ResourceType: ResourceFocus,
		BaseStats: withBase(func(s *CharacterStats) {
			s.Strength, s.Agility, s.Intellect, s.Stamina, s.Willpower = 10, 14, 10, 12, 10
			s.MaxHealth, s.CurrentHealth = 140, 140
			s.MaxMana, s.CurrentMana = 0, 0
			s.AttackPower, s.SpellPower = 16, 0
			s.MovementSpeed = 7.2
		}),
		StartingAbilityIDs: []int{AbilityPiercingArrow},
	},
	CoreMage: {
		ID:           CoreMage,
		Name:         "Mage",
		ResourceType: ResourceMana,
		BaseStats: withBase(func(s *CharacterStats) {
			s.Strength, s.Agility, s.Intellect, s.Stamina, s.Willpower = 8, 9, 16, 11, 14
			s.MaxHealth, s.CurrentHealth = 130, 130
			s.MaxMana, s.CurrentMana = 160, 160
			s.AttackPower, s.SpellPower = 8, 22
			s.MovementSpeed = 6.8
		}),
		StartingAbilityIDs: []int{AbilityArcaneBolt},
	},
}

func withBase(apply func(*CharacterStats)) CharacterStats {
	s := DefaultStats()
	apply(&s)
	return s
}

// MapToArchetype сводит лорный класс к базовому архетипу
func MapToArchetype(c Class) CoreClass {
	switch c {
	case ClassTemporalMage:
		return CoreMage
	case ClassMemoryWarden, ClassUnboundWarrior, ClassArchonKnight:
		return CoreWarrior
	case ClassVoidStalker, ClassFreeBlade:
		return CoreRanger
	default:
		return CoreWarrior
	}
}

// ArchetypeFor возвращает архетип класса
func ArchetypeFor(c Class) Archetype {
	return archetypes[MapToArchetype(c)]
}

// ResourceTypeForClass ресурс, которым класс оплачивает способности
func ResourceTypeForClass(c Class) ResourceType {
	return ArchetypeFor(c).ResourceType
}

// IsClassAvailableForRace проверяет доступность класса расе
func IsClassAvailableForRace(c Class, r Race) bool {
	switch c {
	case ClassMemoryWarden:
		return r == RaceSylvaen
	case ClassTemporalMage:
		return r == RaceHighElf
	case ClassUnboundWarrior:
		return r == RaceHuman
	case ClassTotemShaman, ClassBerserker:
		return r == RaceTherakai
	case ClassWitchKingAcolyte:
		return r == RaceGronnak
	case ClassVoidStalker:
		return r == RaceVoidTouched
	case ClassRootDruid:
		return r == RaceSylvaen || r == RaceTherakai
	case ClassArchonKnight:
		return r == RaceHighElf || r == RaceHuman
	case ClassFreeBlade:
		return r == RaceHuman || r == RaceVoidTouched
	case ClassGodSeekerCleric, ClassMemoryThief:
		return r.Valid()
	default:
		return false
	}
}
