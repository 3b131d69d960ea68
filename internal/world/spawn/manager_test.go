package spawn

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/annel0/eldara-server/internal/gamedata"
	"github.com/annel0/eldara-server/internal/vec"
	"github.com/annel0/eldara-server/internal/world/clock"
	"github.com/annel0/eldara-server/internal/world/entity"
)

const zone = gamedata.ZoneThornveilEnclave

func thornlingPoint(id int, x float32) PointConfig {
	return PointConfig{
		ID: id, ZoneID: zone, Position: vec.New(x, 0, 0),
		TemplateID: gamedata.NPCBlightedThornling, RespawnSeconds: 1, MaxAliveInZone: 2,
	}
}

func TestCapHoldsUnderChurn(t *testing.T) {
	entities := entity.NewManager()
	var points []PointConfig
	for i := 1; i <= 5; i++ {
		points = append(points, thornlingPoint(i, float32(i*10)))
	}
	m, err := NewManager(entities, clock.NewAt(0.5), 1, points)
	require.NoError(t, err)

	spawned := 0
	entities.OnEntityAdded(func(entity.Entity) { spawned++ })

	for tick := 0; tick < 1000; tick++ {
		m.Update(0.05)
		alive := entities.CountAliveNPCs(gamedata.NPCBlightedThornling, zone)
		require.LessOrEqual(t, alive, 2, "тик %d", tick)

		switch tick % 40 {
		case 10:
			// убиваем, труп остаётся в реестре
			for _, n := range entities.NPCs() {
				if n.IsAlive() {
					n.ApplyDamage(100_000)
					break
				}
			}
		case 30:
			for _, n := range entities.NPCs() {
				if !n.IsAlive() {
					entities.Remove(n.ID())
				}
			}
		}
	}
	assert.Greater(t, spawned, 2, "освобождённые места снова заселяются")
}

func TestSpawnedNPCFullyInitialized(t *testing.T) {
	entities := entity.NewManager()
	m, err := NewManager(entities, clock.NewAt(0.5), 3, []PointConfig{
		{ID: 3, ZoneID: zone, Position: vec.New(42, 18, 0), TemplateID: gamedata.NPCScoutMaerith, DisableJitter: true},
		{ID: 9, ZoneID: zone, Position: vec.New(70, 44, 0), TemplateID: gamedata.NPCBlightedThornling, Level: 4},
	})
	require.NoError(t, err)

	m.Update(0.05)
	npcs := entities.NPCs()
	require.Len(t, npcs, 2)

	tmpl, _ := gamedata.GetNPCTemplate(gamedata.NPCBlightedThornling)
	for _, n := range npcs {
		switch n.SpawnPointID() {
		case 3:
			assert.Equal(t, vec.New(42, 18, 0), n.Position())
			assert.True(t, n.IsQuestGiver())
			assert.Equal(t, entity.AIIdle, n.AIState())
		case 9:
			assert.Equal(t, 4, n.Level())
			assert.Equal(t, tmpl.Name, n.Name())
			assert.Equal(t, tmpl.Hostile, n.IsHostile())
			assert.True(t, n.Position().WithinRange(vec.New(70, 44, 0), JitterRadius+0.001))
			cur, maximum := n.Health()
			assert.Equal(t, tmpl.MaxHealth, maximum)
			assert.Equal(t, maximum, cur)
		default:
			t.Fatalf("неожиданная точка %d", n.SpawnPointID())
		}
	}
}

func TestHostileOverride(t *testing.T) {
	entities := entity.NewManager()
	m, err := NewManager(entities, clock.NewAt(0.5), 1, []PointConfig{
		{ID: 1, ZoneID: zone, TemplateID: gamedata.NPCScoutMaerith, Hostile: boolPtr(true)},
	})
	require.NoError(t, err)

	m.Update(0.05)
	npcs := entities.NPCs()
	require.Len(t, npcs, 1)
	assert.True(t, npcs[0].IsHostile())
}

func TestWindowGatesSpawning(t *testing.T) {
	entities := entity.NewManager()
	clk := clock.NewAt(0.5)
	p := thornlingPoint(1, 0)
	p.Window = clock.NightOnly
	m, err := NewManager(entities, clk, 1, []PointConfig{p})
	require.NoError(t, err)

	for i := 0; i < 100; i++ {
		m.Update(0.05)
	}
	assert.Empty(t, entities.NPCs(), "днём ночная точка пустует")

	clk.Set(0.9)
	m.Update(0.05)
	assert.Len(t, entities.NPCs(), 1)
}

func TestRespawnAfterRemoval(t *testing.T) {
	entities := entity.NewManager()
	p := thornlingPoint(1, 0)
	p.RespawnSeconds = 2
	m, err := NewManager(entities, clock.NewAt(0.5), 1, []PointConfig{p})
	require.NoError(t, err)

	m.Update(0.05)
	npcs := entities.NPCs()
	require.Len(t, npcs, 1)
	first := npcs[0].ID()

	// пока NPC в реестре, точка занята даже после смерти
	npcs[0].ApplyDamage(100_000)
	for i := 0; i < 60; i++ {
		m.Update(0.05)
	}
	assert.Len(t, entities.NPCs(), 1)

	require.True(t, entities.Remove(first))
	for i := 0; i < 39; i++ {
		m.Update(0.05)
	}
	assert.Empty(t, entities.NPCs(), "интервал ещё не истёк")

	m.Update(0.1)
	npcs = entities.NPCs()
	require.Len(t, npcs, 1)
	assert.NotEqual(t, first, npcs[0].ID())
}

func TestUnknownTemplateRejected(t *testing.T) {
	_, err := NewManager(entity.NewManager(), clock.New(), 1, []PointConfig{{ID: 1, ZoneID: zone, TemplateID: 9999}})
	assert.Error(t, err)
}

func TestDefaultPointsReferenceKnownTemplates(t *testing.T) {
	m, err := NewManager(entity.NewManager(), clock.New(), 1, DefaultPoints())
	require.NoError(t, err)
	assert.Equal(t, len(DefaultPoints()), m.Count())
	for _, p := range DefaultPoints() {
		assert.NotEqual(t, gamedata.ZoneBriarwatch, p.ZoneID)
	}
}
