package ai

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/annel0/eldara-server/internal/gamedata"
	"github.com/annel0/eldara-server/internal/vec"
	"github.com/annel0/eldara-server/internal/world/clock"
	"github.com/annel0/eldara-server/internal/world/entity"
)

const zoneID = gamedata.ZoneThornveilEnclave

type fakeAttacker struct {
	times []time.Time
}

func (a *fakeAttacker) NPCAttack(npc *entity.NPC, target entity.Entity, now time.Time) int {
	a.times = append(a.times, now)
	dmg := 8 + 2*npc.Level()
	target.ApplyDamage(dmg)
	return dmg
}

type aiFixture struct {
	entities *entity.Manager
	clock    *clock.Clock
	attacker *fakeAttacker
	ctrl     *Controller
	now      time.Time
}

func newAIFixture() *aiFixture {
	f := &aiFixture{
		entities: entity.NewManager(),
		clock:    clock.NewAt(0.5), // полдень
		attacker: &fakeAttacker{},
		now:      time.Unix(10_000, 0),
	}
	f.ctrl = NewController(f.entities, f.clock, f.attacker)
	return f
}

func (f *aiFixture) addNPC(t *testing.T, cfg entity.NPCConfig) *entity.NPC {
	if cfg.ZoneID == "" {
		cfg.ZoneID = zoneID
	}
	if cfg.Stats.MaxHealth == 0 {
		cfg.Stats = gamedata.DefaultStats()
	}
	n := entity.NewNPC(f.entities.GenerateID(), cfg)
	require.True(t, f.entities.Add(n))
	return n
}

func (f *aiFixture) addPlayer(t *testing.T, pos vec.Vec3) *entity.Player {
	data := gamedata.NewCharacter(1, gamedata.CharacterDefinition{
		Name: "Aelric", Race: gamedata.RaceHuman, Class: gamedata.ClassUnboundWarrior, Faction: gamedata.FactionUnitedKingdoms,
	}, time.Unix(0, 0))
	p := entity.NewPlayer(f.entities.GenerateID(), 1, data)
	p.Relocate(zoneID, pos)
	require.True(t, f.entities.Add(p))
	return p
}

func (f *aiFixture) tick(npc *entity.NPC, n int) {
	const dt = 0.05
	for i := 0; i < n; i++ {
		f.now = f.now.Add(50 * time.Millisecond)
		f.ctrl.Update(npc, dt, f.now)
	}
}

func hostile() entity.NPCConfig {
	return entity.NPCConfig{Name: "Thornling", Faction: gamedata.FactionNeutral, Level: 2, Hostile: true}
}

func TestHostileNPCAcquiresWithinStrainScaledAggro(t *testing.T) {
	f := newAIFixture()
	// днём напряжение 0.3: радиус 15 * 1.15 = 17.25
	npc := f.addNPC(t, hostile())
	player := f.addPlayer(t, vec.New(17, 0, 0))

	f.tick(npc, 1)
	assert.Equal(t, entity.AICombat, npc.AIState())
	assert.Equal(t, player.ID(), npc.TargetID())
}

func TestPlayerOutsideAggroIgnored(t *testing.T) {
	f := newAIFixture()
	npc := f.addNPC(t, hostile())
	f.addPlayer(t, vec.New(18, 0, 0))

	f.tick(npc, 5)
	assert.Equal(t, entity.AIIdle, npc.AIState())
	assert.Zero(t, npc.TargetID())
}

func TestPassiveNPCNeverAggroes(t *testing.T) {
	f := newAIFixture()
	cfg := hostile()
	cfg.Hostile = false
	npc := f.addNPC(t, cfg)
	f.addPlayer(t, vec.New(2, 0, 0))

	f.tick(npc, 5)
	assert.Equal(t, entity.AIIdle, npc.AIState())
}

func TestSameFactionIgnored(t *testing.T) {
	f := newAIFixture()
	cfg := hostile()
	cfg.Faction = gamedata.FactionUnitedKingdoms
	npc := f.addNPC(t, cfg)
	f.addPlayer(t, vec.New(2, 0, 0))

	f.tick(npc, 5)
	assert.Equal(t, entity.AIIdle, npc.AIState())
}

func TestCombatChasesAndAttacksOnInterval(t *testing.T) {
	f := newAIFixture()
	npc := f.addNPC(t, hostile())
	player := f.addPlayer(t, vec.New(10, 0, 0))
	hp := player.Stats().CurrentHealth

	// 5 секунд боя
	f.tick(npc, 100)

	assert.Equal(t, entity.AICombat, npc.AIState())
	assert.True(t, npc.Position().WithinRange(player.Position(), npc.AttackRange()+0.01))
	require.NotEmpty(t, f.attacker.times)
	for i := 1; i < len(f.attacker.times); i++ {
		assert.GreaterOrEqual(t, f.attacker.times[i].Sub(f.attacker.times[i-1]), gamedata.NPCAttackInterval)
	}
	assert.Equal(t, hp-12*len(f.attacker.times), player.Stats().CurrentHealth)
}

func TestTargetLossReturnsAndResets(t *testing.T) {
	f := newAIFixture()
	npc := f.addNPC(t, hostile())
	player := f.addPlayer(t, vec.New(5, 0, 0))

	f.tick(npc, 20)
	require.Equal(t, entity.AICombat, npc.AIState())
	npc.ApplyDamage(40)

	require.True(t, f.entities.Remove(player.ID()))
	f.tick(npc, 1)
	assert.Equal(t, entity.AIReturning, npc.AIState())
	assert.Zero(t, npc.TargetID())

	f.tick(npc, 100)
	assert.Equal(t, entity.AIIdle, npc.AIState())
	assert.True(t, npc.Position().WithinRange(npc.SpawnOrigin(), gamedata.NPCReturnTolerance))
	cur, maximum := npc.Health()
	assert.Equal(t, maximum, cur, "здоровье восстановлено по возвращении")
}

func TestDisengageBeyondAggroMultiplier(t *testing.T) {
	f := newAIFixture()
	npc := f.addNPC(t, hostile())
	player := f.addPlayer(t, vec.New(5, 0, 0))

	f.tick(npc, 1)
	require.Equal(t, entity.AICombat, npc.AIState())

	player.Relocate(zoneID, vec.New(40, 0, 0))
	f.tick(npc, 1)
	assert.Equal(t, entity.AIReturning, npc.AIState())
}

func TestCombatTimeout(t *testing.T) {
	f := newAIFixture()
	npc := f.addNPC(t, hostile())
	f.addPlayer(t, vec.New(2, 0, 0))

	f.tick(npc, 1)
	require.Equal(t, entity.AICombat, npc.AIState())

	f.now = f.now.Add(gamedata.NPCMaxCombatDuration)
	f.tick(npc, 1)
	assert.Equal(t, entity.AIReturning, npc.AIState())
}

func TestDeadTargetDropsCombat(t *testing.T) {
	f := newAIFixture()
	npc := f.addNPC(t, hostile())
	player := f.addPlayer(t, vec.New(2, 0, 0))

	f.tick(npc, 1)
	require.Equal(t, entity.AICombat, npc.AIState())
	player.ApplyDamage(100_000)

	f.tick(npc, 1)
	assert.Equal(t, entity.AIReturning, npc.AIState())
}

func TestPatrolCyclesWaypoints(t *testing.T) {
	f := newAIFixture()
	cfg := hostile()
	cfg.Hostile = false
	cfg.Patrol = []vec.Vec3{vec.New(2, 0, 0), vec.New(0, 0, 0)}
	npc := f.addNPC(t, cfg)

	f.tick(npc, 1)
	require.Equal(t, entity.AIPatrolling, npc.AIState())

	// 0.175 ед. за тик: первая точка засчитывается на 9-м тике
	f.tick(npc, 10)
	wp, ok := npc.NextWaypoint()
	require.True(t, ok)
	assert.Equal(t, vec.New(0, 0, 0), wp)
	assert.Greater(t, npc.Position().X, float32(1.3))

	f.tick(npc, 7)
	wp, _ = npc.NextWaypoint()
	assert.Equal(t, vec.New(2, 0, 0), wp, "путь цикличен")
}

func TestActivityWindowForcesDormancy(t *testing.T) {
	f := newAIFixture()
	cfg := hostile()
	cfg.Window = clock.NightOnly
	npc := f.addNPC(t, cfg)
	f.addPlayer(t, vec.New(2, 0, 0))

	f.tick(npc, 1)
	assert.True(t, npc.Dormant(), "днём ночной NPC спит")
	assert.Zero(t, npc.TargetID())

	f.tick(npc, 10)
	assert.True(t, npc.Dormant())
	assert.Empty(t, f.attacker.times)

	f.clock.Set(0.9) // ночь
	f.tick(npc, 1)
	assert.False(t, npc.Dormant())

	f.tick(npc, 1)
	assert.Equal(t, entity.AICombat, npc.AIState())
}

func TestProvocationEntersCombatOnTick(t *testing.T) {
	f := newAIFixture()
	cfg := hostile()
	cfg.Hostile = false
	cfg.Patrol = []vec.Vec3{vec.New(4, 0, 0), vec.New(0, 0, 0)}
	npc := f.addNPC(t, cfg)
	player := f.addPlayer(t, vec.New(3, 3, 0))

	f.tick(npc, 3)
	require.Equal(t, entity.AIPatrolling, npc.AIState())

	npc.Provoke(player.ID())
	assert.Equal(t, entity.AIPatrolling, npc.AIState(), "до шага AI состояние не меняется")

	f.tick(npc, 1)
	assert.Equal(t, entity.AICombat, npc.AIState())
	assert.Equal(t, player.ID(), npc.TargetID())
	_, pending := npc.TakeProvocation()
	assert.False(t, pending, "провокация израсходована")
}

func TestProvocationKeepsCurrentTarget(t *testing.T) {
	f := newAIFixture()
	npc := f.addNPC(t, hostile())
	first := f.addPlayer(t, vec.New(2, 0, 0))
	second := f.addPlayer(t, vec.New(12, 0, 0))

	f.tick(npc, 1)
	require.Equal(t, first.ID(), npc.TargetID())

	npc.Provoke(second.ID())
	f.tick(npc, 1)
	assert.Equal(t, entity.AICombat, npc.AIState())
	assert.Equal(t, first.ID(), npc.TargetID())
}

func TestProvocationFromAnotherZoneIgnored(t *testing.T) {
	f := newAIFixture()
	cfg := hostile()
	cfg.Hostile = false
	npc := f.addNPC(t, cfg)
	player := f.addPlayer(t, vec.New(2, 0, 0))
	player.Relocate(gamedata.ZoneBorderkeep, vec.New(2, 0, 0))

	npc.Provoke(player.ID())
	f.tick(npc, 1)
	assert.Equal(t, entity.AIIdle, npc.AIState())
	assert.Zero(t, npc.TargetID())
}
