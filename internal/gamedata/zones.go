package gamedata

// ZoneType тип зоны
type ZoneType int

const (
	ZoneStarter ZoneType = iota
	ZoneOpenWorld
	ZoneDungeon
	ZoneRaid
	ZonePvPBattleground
	ZoneCity
	ZoneInstanced
)

// Идентификаторы зон
const (
	ZoneThornveilEnclave = "zone_thornveil_enclave"
	ZoneTemporalSteppes  = "zone_temporal_steppes"
	ZoneBorderkeep       = "zone_borderkeep"
	ZoneUntamedReaches   = "zone_untamed_reaches"
	ZoneCarvedValleys    = "zone_carved_valleys"
	ZoneScarredHighlands = "zone_scarred_highlands"
	ZoneBlackwakeHaven   = "zone_blackwake_haven"
	ZoneGreenwatch       = "zone_greenwatch_training"
	ZoneBriarwatch       = "zone_briarwatch_crossing"
	ZoneVharosWarfront   = "zone_vharos_warfront"
	ZoneRootCore         = "zone_root_core"
)

// Границы зоны по умолчанию: X/Y - горизонталь, Z - высота
const (
	DefaultZoneHalfExtent float32 = 1024
	DefaultZoneMinZ       float32 = -256
	DefaultZoneMaxZ       float32 = 512
)

// ZoneDefinition статическое описание зоны
type ZoneDefinition struct {
	ID                 string
	Name               string
	Description        string
	MinLevel           int
	MaxLevel           int
	Type               ZoneType
	ControllingFaction Faction
	WorldrootDensity   float32
	PvPEnabled         bool
	Contested          bool
	SafeSpawn          [3]float32
	Min                [3]float32
	Max                [3]float32
}

func starterZone(id, name, desc string, faction Faction, density float32, spawn [3]float32) ZoneDefinition {
	return ZoneDefinition{
		ID:                 id,
		Name:               name,
		Description:        desc,
		MinLevel:           1,
		MaxLevel:           10,
		Type:               ZoneStarter,
		ControllingFaction: faction,
		WorldrootDensity:   density,
		SafeSpawn:          spawn,
	}
}

// Zones каталог зон мира
var Zones = withBounds(map[string]ZoneDefinition{
	ZoneThornveilEnclave: starterZone(ZoneThornveilEnclave, "Thornveil Enclave",
		"Ancient forest where the Worldroot's presence is strongest",
		FactionVerdantCircles, 1.0, [3]float32{0, 0, 0}),
	ZoneTemporalSteppes: starterZone(ZoneTemporalSteppes, "Temporal Steppes",
		"Reality is thin here. Time flows inconsistently.",
		FactionAscendantLeague, 0.3, [3]float32{10, 5, 0}),
	ZoneBorderkeep: starterZone(ZoneBorderkeep, "Borderkeep",
		"A frontier fortress-town where humanity makes its stand",
		FactionUnitedKingdoms, 0.4, [3]float32{-8, -4, 0}),
	ZoneUntamedReaches: starterZone(ZoneUntamedReaches, "The Untamed Reaches",
		"Wildborn Therakai hunting grounds infused with totem spirits.",
		FactionTotemClansWildborn, 0.6, [3]float32{6, -12, 0}),
	ZoneCarvedValleys: starterZone(ZoneCarvedValleys, "The Carved Valleys",
		"Pathbound Therakai refuge that balances instinct with chosen memory.",
		FactionTotemClansPathbound, 0.55, [3]float32{-12, 3, 0}),
	ZoneScarredHighlands: func() ZoneDefinition {
		z := starterZone(ZoneScarredHighlands, "The Scarred Highlands",
			"Gronnak warfront built atop a reality wound.",
			FactionDominionWarhost, 0.2, [3]float32{4, 14, 0})
		z.PvPEnabled = true
		z.Contested = true
		return z
	}(),
	ZoneBlackwakeHaven: starterZone(ZoneBlackwakeHaven, "Blackwake Haven",
		"Void Compact enclave where outcasts study entropy safely.",
		FactionVoidCompact, 0.1, [3]float32{-2, 18, 0}),
	ZoneGreenwatch: func() ZoneDefinition {
		z := starterZone(ZoneGreenwatch, "Greenwatch Training Grounds",
			"Controlled grove where Verdant sentinels learn to respond to threats.",
			FactionVerdantCircles, 0.9, [3]float32{20, -8, 0})
		z.MaxLevel = 5
		return z
	}(),
	ZoneVharosWarfront: {
		ID:                 ZoneVharosWarfront,
		Name:               "Vharos Warfront",
		Description:        "The Therakai civil war rages here",
		MinLevel:           20,
		MaxLevel:           30,
		Type:               ZoneOpenWorld,
		ControllingFaction: FactionNeutral,
		WorldrootDensity:   0.5,
		PvPEnabled:         true,
		Contested:          true,
	},
	ZoneRootCore: {
		ID:                 ZoneRootCore,
		Name:               "The Root Core",
		Description:        "The Worldroot's heart",
		MinLevel:           60,
		MaxLevel:           60,
		Type:               ZoneRaid,
		ControllingFaction: FactionNeutral,
		WorldrootDensity:   2.0,
	},
})

func withBounds(zones map[string]ZoneDefinition) map[string]ZoneDefinition {
	for id, z := range zones {
		z.Min = [3]float32{-DefaultZoneHalfExtent, -DefaultZoneHalfExtent, DefaultZoneMinZ}
		z.Max = [3]float32{DefaultZoneHalfExtent, DefaultZoneHalfExtent, DefaultZoneMaxZ}
		zones[id] = z
	}
	return zones
}
