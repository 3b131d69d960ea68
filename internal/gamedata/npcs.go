package gamedata

// Шаблоны NPC
const (
	NPCWorldrootSentinel  = 1
	NPCBorderkeepGuard    = 2
	NPCBlightedThornling  = 3
	NPCElderTharivol      = 1001
	NPCInstructorLethril  = 1002
	NPCScoutMaerith       = 1003
	NPCKeeperAelwyn       = 1101
	NPCQuartermasterLiora = 1102
)

// NPCTemplate статическое описание NPC
type NPCTemplate struct {
	TemplateID  int
	Name        string
	MinLevel    int
	MaxLevel    int
	Faction     Faction
	Armor       int
	Speed       float32
	MaxHealth   int
	MaxStamina  int
	AbilityIDs  []int
	SpawnZoneID string
	Hostile     bool
	QuestGiver  bool
	Vendor      bool
	AggroRange  float32
	AttackRange float32
}

// StatsForLevel собирает характеристики NPC заданного уровня
func (t *NPCTemplate) StatsForLevel(level int) CharacterStats {
	s := DefaultStats()
	s.MaxHealth, s.CurrentHealth = t.MaxHealth, t.MaxHealth
	s.MaxMana, s.CurrentMana = 0, 0
	s.MaxStamina, s.CurrentStamina = t.MaxStamina, t.MaxStamina
	s.Armor = t.Armor
	s.MovementSpeed = t.Speed
	s.AttackPower = 8 + 2*level
	return s
}

const (
	sentinelArmor  = 10
	guardArmor     = 8
	sentinelSpeed  = BaseRunSpeed - 0.5
	guardSpeed     = BaseRunSpeed
	sentinelHealth = 220
	guardHealth    = 200
	sentinelStam   = 120
	guardStam      = 130
)

var npcTemplates = map[int]*NPCTemplate{
	NPCWorldrootSentinel: {
		TemplateID:  NPCWorldrootSentinel,
		Name:        "Worldroot Sentinel",
		MinLevel:    5,
		MaxLevel:    6,
		Faction:     FactionVerdantCircles,
		Armor:       sentinelArmor,
		Speed:       sentinelSpeed,
		MaxHealth:   sentinelHealth,
		MaxStamina:  sentinelStam,
		AbilityIDs:  []int{AbilityNPCMelee},
		SpawnZoneID: ZoneThornveilEnclave,
		AggroRange:  DefaultAggroRange,
		AttackRange: DefaultAttackRange,
	},
	NPCBorderkeepGuard: {
		TemplateID:  NPCBorderkeepGuard,
		Name:        "Borderkeep Guard",
		MinLevel:    3,
		MaxLevel:    4,
		Faction:     FactionUnitedKingdoms,
		Armor:       guardArmor,
		Speed:       guardSpeed,
		MaxHealth:   guardHealth,
		MaxStamina:  guardStam,
		AbilityIDs:  []int{AbilityBasicStrike},
		SpawnZoneID: ZoneBorderkeep,
		AggroRange:  DefaultAggroRange,
		AttackRange: DefaultAttackRange,
	},
	NPCBlightedThornling: {
		TemplateID:  NPCBlightedThornling,
		Name:        "Blighted Thornling",
		MinLevel:    2,
		MaxLevel:    3,
		Faction:     FactionNeutral,
		Speed:       BaseWalkSpeed,
		MaxHealth:   90,
		MaxStamina:  60,
		AbilityIDs:  []int{AbilityNPCMelee},
		SpawnZoneID: ZoneThornveilEnclave,
		Hostile:     true,
		AggroRange:  12,
		AttackRange: DefaultAttackRange,
	},
	NPCElderTharivol: {
		TemplateID:  NPCElderTharivol,
		Name:        "Elder Tharivol",
		MinLevel:    20,
		MaxLevel:    20,
		Faction:     FactionVerdantCircles,
		Speed:       BaseWalkSpeed,
		MaxHealth:   500,
		MaxStamina:  100,
		SpawnZoneID: ZoneThornveilEnclave,
		QuestGiver:  true,
	},
	NPCInstructorLethril: {
		TemplateID:  NPCInstructorLethril,
		Name:        "Instructor Lethril",
		MinLevel:    12,
		MaxLevel:    12,
		Faction:     FactionVerdantCircles,
		Speed:       BaseWalkSpeed,
		MaxHealth:   320,
		MaxStamina:  100,
		SpawnZoneID: ZoneThornveilEnclave,
		QuestGiver:  true,
	},
	NPCScoutMaerith: {
		TemplateID:  NPCScoutMaerith,
		Name:        "Scout Maerith",
		MinLevel:    8,
		MaxLevel:    8,
		Faction:     FactionVerdantCircles,
		Speed:       BaseRunSpeed,
		MaxHealth:   240,
		MaxStamina:  120,
		SpawnZoneID: ZoneThornveilEnclave,
		QuestGiver:  true,
	},
	NPCKeeperAelwyn: {
		TemplateID:  NPCKeeperAelwyn,
		Name:        "Keeper Aelwyn",
		MinLevel:    8,
		MaxLevel:    10,
		Faction:     FactionVerdantCircles,
		Speed:       guardSpeed,
		MaxHealth:   guardHealth,
		MaxStamina:  guardStam,
		SpawnZoneID: ZoneBriarwatch,
	},
	NPCQuartermasterLiora: {
		TemplateID:  NPCQuartermasterLiora,
		Name:        "Quartermaster Liora",
		MinLevel:    8,
		MaxLevel:    12,
		Faction:     FactionVerdantCircles,
		Speed:       guardSpeed,
		MaxHealth:   guardHealth + 20,
		MaxStamina:  guardStam + 10,
		SpawnZoneID: ZoneBriarwatch,
		Vendor:      true,
	},
}

// GetNPCTemplate возвращает шаблон NPC по id
func GetNPCTemplate(id int) (*NPCTemplate, bool) {
	t, ok := npcTemplates[id]
	return t, ok
}
