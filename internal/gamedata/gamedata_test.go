package gamedata

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPoolForResource(t *testing.T) {
	assert.Equal(t, PoolStamina, PoolForResource(ResourceRage))
	assert.Equal(t, PoolStamina, PoolForResource(ResourceEnergy))
	assert.Equal(t, PoolStamina, PoolForResource(ResourceFocus))
	assert.Equal(t, PoolMana, PoolForResource(ResourceMana))
	assert.Equal(t, PoolMana, PoolForResource(ResourceCorruption))
}

func TestArchetypeMapping(t *testing.T) {
	assert.Equal(t, CoreMage, MapToArchetype(ClassTemporalMage))
	assert.Equal(t, CoreWarrior, MapToArchetype(ClassArchonKnight))
	assert.Equal(t, CoreRanger, MapToArchetype(ClassFreeBlade))
	assert.Equal(t, CoreWarrior, MapToArchetype(ClassGodSeekerCleric), "остальные классы - воин")

	mage := ArchetypeFor(ClassTemporalMage)
	assert.Equal(t, 160, mage.BaseStats.MaxMana)
	assert.Equal(t, 22, mage.BaseStats.SpellPower)
	assert.Equal(t, ResourceMana, mage.ResourceType)
}

func TestClassRaceRules(t *testing.T) {
	assert.True(t, IsClassAvailableForRace(ClassMemoryWarden, RaceSylvaen))
	assert.False(t, IsClassAvailableForRace(ClassMemoryWarden, RaceHuman))
	assert.True(t, IsClassAvailableForRace(ClassRootDruid, RaceTherakai))
	assert.True(t, IsClassAvailableForRace(ClassGodSeekerCleric, RaceGronnak))
	assert.False(t, IsClassAvailableForRace(Class(99), RaceHuman))
}

func TestFactionRules(t *testing.T) {
	assert.Equal(t, StandingExalted, DefaultStanding(FactionVerdantCircles, FactionVerdantCircles))
	assert.Equal(t, StandingHostile, DefaultStanding(FactionVerdantCircles, FactionAscendantLeague))
	assert.Equal(t, StandingHostile, DefaultStanding(FactionTotemClansPathbound, FactionTotemClansWildborn))
	assert.Equal(t, StandingHostile, DefaultStanding(FactionDominionWarhost, FactionUnitedKingdoms))
	assert.Equal(t, StandingNeutral, DefaultStanding(FactionVoidCompact, FactionDominionWarhost))
	assert.Equal(t, StandingNeutral, DefaultStanding(FactionNeutral, FactionDominionWarhost))

	assert.True(t, IsRaceAvailableForFaction(RaceGronnak, FactionVoidCompact))
	assert.False(t, IsRaceAvailableForFaction(RaceGronnak, FactionVerdantCircles))
}

func TestValidateName(t *testing.T) {
	assert.True(t, ValidateName("Aelwyn"))
	assert.True(t, ValidateName("Kra'thu-un"))
	assert.False(t, ValidateName("Al"))
	assert.False(t, ValidateName("ThisNameIsWayTooLong"))
	assert.False(t, ValidateName("Bad Name"))
	assert.False(t, ValidateName("L33t"))
}

func TestLoreConsistency(t *testing.T) {
	ok := CharacterDefinition{Race: RaceTherakai, Class: ClassTotemShaman, Faction: FactionTotemClansWildborn, TotemSpirit: TotemFanged}
	assert.True(t, ok.IsLoreConsistent())

	noTotem := ok
	noTotem.TotemSpirit = TotemNone
	assert.False(t, noTotem.IsLoreConsistent())

	humanTotem := CharacterDefinition{Race: RaceHuman, Faction: FactionUnitedKingdoms, TotemSpirit: TotemWinged}
	assert.False(t, humanTotem.IsLoreConsistent())
}

func TestNewCharacterStartsInFactionZone(t *testing.T) {
	now := time.Now()
	c := NewCharacter(7, CharacterDefinition{
		Name:    "Brannoc",
		Race:    RaceHuman,
		Class:   ClassUnboundWarrior,
		Faction: FactionUnitedKingdoms,
	}, now)

	assert.Equal(t, ZoneBorderkeep, c.Position.ZoneID)
	assert.Equal(t, float32(-8), c.Position.X)
	assert.Equal(t, float32(-4), c.Position.Y)
	assert.Equal(t, 160, c.Stats.MaxHealth)
	assert.Equal(t, 100, c.Stats.MaxStamina)
	assert.Equal(t, StartingLevel, c.Level)
}

func TestAbilityValue(t *testing.T) {
	strike, ok := GetAbility(AbilityBasicStrike)
	require.True(t, ok)

	stats := DefaultStats()
	stats.AttackPower = 20
	assert.Equal(t, 34, strike.CalculateValue(stats, false))
	assert.Equal(t, 51, strike.CalculateValue(stats, true))

	pulse, ok := GetAbility(AbilityTotemPulse)
	require.True(t, ok)
	assert.Equal(t, TargetAreaOfEffect, pulse.TargetType)
	assert.Equal(t, float32(8), pulse.Radius)
}

func TestKnownAbilities(t *testing.T) {
	known := KnownAbilityIDs(ClassMemoryWarden, 1)
	assert.Contains(t, known, AbilityBasicStrike)
	assert.Contains(t, known, AbilityHealingWave)
	assert.Contains(t, known, AbilityTotemPulse)
	assert.NotContains(t, known, AbilityArcaneBolt)
}

func TestQuestCatalogLookups(t *testing.T) {
	byGiver := QuestsByGiver(NPCElderTharivol)
	require.Len(t, byGiver, 2)
	assert.Equal(t, QuestAwakeningID, byGiver[0].QuestID)
	assert.Equal(t, QuestWorldrootsPainID, byGiver[1].QuestID)

	byTurnIn := QuestsByTurnIn(NPCInstructorLethril)
	require.Len(t, byTurnIn, 1)
	assert.Equal(t, QuestAwakeningID, byTurnIn[0].QuestID)

	assert.True(t, IsQuestNPC(NPCScoutMaerith))
	assert.True(t, IsQuestNPC(NPCBlightedThornling))
	assert.False(t, IsQuestNPC(NPCBorderkeepGuard))
}

func TestStatsClone(t *testing.T) {
	s := DefaultStats()
	s.Resistances = map[DamageType]float32{DamageFire: 0.2}
	c := s.Clone()
	c.Resistances[DamageFire] = 0.9
	assert.Equal(t, float32(0.2), s.Resistances[DamageFire])
}
