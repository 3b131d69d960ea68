package entity

import (
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/annel0/eldara-server/internal/gamedata"
	"github.com/annel0/eldara-server/internal/vec"
)

func newTestNPC(m *Manager, zoneID string, pos vec.Vec3) *NPC {
	stats := gamedata.DefaultStats()
	return NewNPC(m.GenerateID(), NPCConfig{
		TemplateID: gamedata.NPCBlightedThornling,
		Name:       "Blighted Thornling",
		ZoneID:     zoneID,
		Position:   pos,
		Faction:    gamedata.FactionNeutral,
		Level:      2,
		Stats:      stats,
		Hostile:    true,
	})
}

func newTestPlayer(m *Manager, class gamedata.Class, faction gamedata.Faction) *Player {
	def := gamedata.CharacterDefinition{Name: "Tester", Race: gamedata.RaceHuman, Class: class, Faction: faction}
	data := gamedata.NewCharacter(1, def, time.Now())
	data.CharacterID = 42
	return NewPlayer(m.GenerateID(), 7, data)
}

func TestGenerateIDConcurrentMonotonic(t *testing.T) {
	m := NewManager()

	const workers = 16
	const perWorker = 500

	var wg sync.WaitGroup
	results := make([][]uint64, workers)
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			ids := make([]uint64, 0, perWorker)
			for i := 0; i < perWorker; i++ {
				n := newTestNPC(m, gamedata.ZoneThornveilEnclave, vec.Zero)
				assert.True(t, m.Add(n))
				ids = append(ids, n.ID())
			}
			results[w] = ids
		}(w)
	}
	wg.Wait()

	seen := make(map[uint64]bool)
	var all []uint64
	for _, ids := range results {
		for i := 1; i < len(ids); i++ {
			assert.Greater(t, ids[i], ids[i-1], "id внутри одной горутины должны возрастать")
		}
		for _, id := range ids {
			assert.False(t, seen[id], "id %d выдан дважды", id)
			seen[id] = true
			all = append(all, id)
		}
	}
	sort.Slice(all, func(i, j int) bool { return all[i] < all[j] })
	assert.Equal(t, uint64(1), all[0])
	assert.Equal(t, uint64(workers*perWorker), all[len(all)-1])
	assert.Equal(t, workers*perWorker, m.Count())
}

func TestAddRemoveAndListeners(t *testing.T) {
	m := NewManager()

	var added, removed []uint64
	m.OnEntityAdded(func(e Entity) { added = append(added, e.ID()) })
	m.OnEntityRemoved(func(e Entity) { removed = append(removed, e.ID()) })

	n := newTestNPC(m, gamedata.ZoneThornveilEnclave, vec.Zero)
	require.True(t, m.Add(n))
	assert.False(t, m.Add(n), "повторное добавление того же id должно отклоняться")

	got, ok := m.Get(n.ID())
	require.True(t, ok)
	assert.Same(t, n, got)

	assert.True(t, m.Remove(n.ID()))
	assert.False(t, m.Remove(n.ID()))

	assert.Equal(t, []uint64{n.ID()}, added)
	assert.Equal(t, []uint64{n.ID()}, removed)
}

func TestInRangeUsesZoneAndRadius(t *testing.T) {
	m := NewManager()
	near := newTestNPC(m, gamedata.ZoneThornveilEnclave, vec.New(3, 0, 0))
	edge := newTestNPC(m, gamedata.ZoneThornveilEnclave, vec.New(0, 5, 0))
	far := newTestNPC(m, gamedata.ZoneThornveilEnclave, vec.New(10, 0, 0))
	other := newTestNPC(m, gamedata.ZoneBorderkeep, vec.New(1, 0, 0))
	for _, n := range []*NPC{near, edge, far, other} {
		require.True(t, m.Add(n))
	}

	found := m.InRange(gamedata.ZoneThornveilEnclave, vec.Zero, 5)
	ids := make([]uint64, 0, len(found))
	for _, e := range found {
		ids = append(ids, e.ID())
	}
	assert.Equal(t, []uint64{near.ID(), edge.ID()}, ids)

	assert.Len(t, m.InZone(gamedata.ZoneBorderkeep), 1)
	assert.Equal(t, 3, m.CountAliveNPCs(gamedata.NPCBlightedThornling, gamedata.ZoneThornveilEnclave))
}

func TestHealthStaysWithinBounds(t *testing.T) {
	m := NewManager()
	n := newTestNPC(m, gamedata.ZoneThornveilEnclave, vec.Zero)

	check := func() {
		cur, maxHP := n.Health()
		assert.GreaterOrEqual(t, cur, 0)
		assert.LessOrEqual(t, cur, maxHP)
	}

	healed, _ := n.ApplyHealing(500)
	assert.Equal(t, 0, healed, "на полном здоровье лечение ничего не добавляет")
	check()

	remaining, killed := n.ApplyDamage(30)
	assert.Equal(t, 70, remaining)
	assert.False(t, killed)
	check()

	healed, remaining = n.ApplyHealing(1000)
	assert.Equal(t, 30, healed)
	assert.Equal(t, 100, remaining)
	check()

	remaining, killed = n.ApplyDamage(1000)
	assert.Equal(t, 0, remaining)
	assert.True(t, killed)
	check()

	_, killed = n.ApplyDamage(10)
	assert.False(t, killed, "повторный удар по мёртвому не считается убийством")

	healed, _ = n.ApplyHealing(50)
	assert.Equal(t, 0, healed, "мёртвых не лечим")
	check()

	_, _ = n.ApplyDamage(-20)
	check()
}

func TestPlayerBeginCastIsAtomic(t *testing.T) {
	m := NewManager()
	p := newTestPlayer(m, gamedata.ClassTemporalMage, gamedata.FactionUnitedKingdoms)
	bolt, ok := gamedata.GetAbility(gamedata.AbilityArcaneBolt)
	require.True(t, ok)

	now := time.Now()
	before := p.Stats()
	require.Equal(t, CastOK, p.BeginCast(bolt, now))
	after := p.Stats()
	assert.Equal(t, before.CurrentMana-bolt.ResourceCost, after.CurrentMana)

	assert.Equal(t, CastOnGlobalCooldown, p.BeginCast(bolt, now.Add(100*time.Millisecond)))
	assert.Equal(t, after, p.Stats(), "отказ не должен менять состояние")

	assert.Equal(t, CastOK, p.BeginCast(bolt, now.Add(2*time.Second)))
}

func TestPlayerRegenerateOutOfCombat(t *testing.T) {
	m := NewManager()
	p := newTestPlayer(m, gamedata.ClassUnboundWarrior, gamedata.FactionUnitedKingdoms)
	now := time.Now()

	p.ApplyDamage(50)
	p.EngageCombat(now)
	p.Regenerate(0.02, 1, now.Add(time.Second))
	cur, _ := p.Health()
	assert.Equal(t, 110, cur, "в бою регенерации нет")

	later := now.Add(gamedata.OutOfCombatDelay + time.Second)
	for i := 0; i < 20; i++ {
		p.Regenerate(0.02, 0.05, later)
	}
	cur, maxHP := p.Health()
	assert.Equal(t, 113, cur)
	assert.LessOrEqual(t, cur, maxHP)
}

func TestPlayerCharacterSnapshot(t *testing.T) {
	m := NewManager()
	p := newTestPlayer(m, gamedata.ClassUnboundWarrior, gamedata.FactionUnitedKingdoms)
	require.True(t, m.Add(p))

	p.Relocate(gamedata.ZoneBorderkeep, vec.New(5, 6, 0))
	p.ApplyDamage(10)

	c := p.Character()
	assert.Equal(t, float32(5), c.Position.X)
	assert.Equal(t, 150, c.Stats.CurrentHealth)

	found, ok := m.PlayerByCharacterID(42)
	require.True(t, ok)
	assert.Same(t, p, found)
}

func TestUpdateAllIsolatesPanics(t *testing.T) {
	m := NewManager()
	a := newTestNPC(m, gamedata.ZoneThornveilEnclave, vec.Zero)
	b := newTestNPC(m, gamedata.ZoneThornveilEnclave, vec.Zero)
	require.True(t, m.Add(a))
	require.True(t, m.Add(b))

	var updated []uint64
	m.RegisterBehavior(KindNPC, BehaviorFunc(func(e Entity, dt float64, now time.Time) {
		if e.ID() == a.ID() {
			panic("boom")
		}
		updated = append(updated, e.ID())
	}))

	faults := m.UpdateAll(0.05, time.Now())
	assert.Equal(t, 1, faults)
	assert.Equal(t, []uint64{b.ID()}, updated)
}
