package world

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/annel0/eldara-server/internal/combat"
	"github.com/annel0/eldara-server/internal/gamedata"
	"github.com/annel0/eldara-server/internal/protocol"
	"github.com/annel0/eldara-server/internal/vec"
	"github.com/annel0/eldara-server/internal/world/clock"
	"github.com/annel0/eldara-server/internal/world/entity"
	"github.com/annel0/eldara-server/internal/world/spawn"
	"github.com/annel0/eldara-server/internal/world/zone"
)

func TestSchedulerRunsInOrderAndCancels(t *testing.T) {
	s := NewScheduler()
	base := time.Unix(1000, 0)

	var order []string
	s.ScheduleAt(base.Add(3*time.Second), "c", func(time.Time) { order = append(order, "c") })
	s.ScheduleAt(base.Add(time.Second), "a", func(time.Time) { order = append(order, "a") })
	s.ScheduleAt(base.Add(time.Second), "b", func(time.Time) { order = append(order, "b") })
	cancelled := s.ScheduleAt(base.Add(2*time.Second), "x", func(time.Time) { order = append(order, "x") })

	assert.True(t, s.Cancel(cancelled))
	assert.False(t, s.Cancel(cancelled))

	assert.Equal(t, 0, s.RunDue(base))
	assert.Equal(t, 2, s.RunDue(base.Add(2*time.Second)))
	assert.Equal(t, []string{"a", "b"}, order)
	assert.Equal(t, 1, s.Pending())

	assert.Equal(t, 1, s.RunDue(base.Add(time.Hour)))
	assert.Equal(t, []string{"a", "b", "c"}, order)
	assert.Zero(t, s.Pending())
}

func TestSchedulerSurvivesPanicsAndReentry(t *testing.T) {
	s := NewScheduler()
	now := time.Unix(1000, 0)

	ran := false
	s.ScheduleAt(now, "boom", func(time.Time) { panic("boom") })
	s.ScheduleAt(now, "requeue", func(at time.Time) {
		s.ScheduleAfter(at, time.Second, "later", func(time.Time) { ran = true })
	})

	assert.Equal(t, 2, s.RunDue(now))
	assert.False(t, ran)
	assert.Equal(t, 1, s.RunDue(now.Add(time.Second)))
	assert.True(t, ran)
}

func TestTickOrderAndCount(t *testing.T) {
	entities := entity.NewManager()
	clk := clock.NewAt(0.5)
	sim := NewSimulation(Config{TickRate: 20, Entities: entities, Clock: clk})

	var calls atomic.Int32
	entities.RegisterBehavior(entity.KindNPC, entity.BehaviorFunc(func(entity.Entity, float64, time.Time) {
		calls.Add(1)
	}))
	npc := entity.NewNPC(entities.GenerateID(), entity.NPCConfig{Name: "Dummy", ZoneID: gamedata.ZoneGreenwatch, Stats: gamedata.DefaultStats()})
	require.True(t, entities.Add(npc))

	ranTask := false
	sim.Scheduler().ScheduleAt(time.Now().Add(-time.Second), "due", func(time.Time) {
		ranTask = calls.Load() == 1
	})

	before := clk.ElapsedDays()
	sim.Tick(0.05)

	assert.EqualValues(t, 1, sim.TickCount())
	assert.EqualValues(t, 1, calls.Load())
	assert.True(t, ranTask, "задачи выполняются после сущностей")
	assert.Greater(t, clk.ElapsedDays(), before)
}

func TestEntityPanicDoesNotStopTick(t *testing.T) {
	entities := entity.NewManager()
	sim := NewSimulation(Config{Entities: entities})
	entities.RegisterBehavior(entity.KindNPC, entity.BehaviorFunc(func(entity.Entity, float64, time.Time) {
		panic("ai fault")
	}))
	require.True(t, entities.Add(entity.NewNPC(entities.GenerateID(), entity.NPCConfig{Name: "Broken", Stats: gamedata.DefaultStats()})))

	for i := 0; i < 3; i++ {
		sim.Tick(0.05)
	}
	assert.EqualValues(t, 3, sim.TickCount())
}

func TestStartStopIdempotent(t *testing.T) {
	sim := NewSimulation(Config{TickRate: 100, Entities: entity.NewManager()})

	sim.Start()
	sim.Start()
	assert.True(t, sim.Running())

	require.Eventually(t, func() bool { return sim.TickCount() >= 5 }, 2*time.Second, 5*time.Millisecond)

	done := make(chan struct{})
	go func() {
		sim.Stop()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(6 * time.Second):
		t.Fatal("Stop не вернулся")
	}
	sim.Stop()
	assert.False(t, sim.Running())

	stopped := sim.TickCount()
	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, stopped, sim.TickCount())

	// перезапуск после остановки
	sim.Start()
	require.Eventually(t, func() bool { return sim.TickCount() > stopped }, 2*time.Second, 5*time.Millisecond)
	sim.Stop()
}

func TestLoopFollowsInjectedClock(t *testing.T) {
	var (
		mu  sync.Mutex
		cur = time.Unix(1000, 0)
	)
	now := func() time.Time {
		mu.Lock()
		defer mu.Unlock()
		return cur
	}
	sched := NewScheduler()
	sim := NewSimulation(Config{TickRate: 100, Entities: entity.NewManager(), Scheduler: sched, Now: now})

	var fired atomic.Bool
	sched.ScheduleAfter(cur, time.Second, "test", func(time.Time) { fired.Store(true) })

	sim.Start()
	defer sim.Stop()
	time.Sleep(100 * time.Millisecond)
	assert.Zero(t, sim.TickCount(), "время стоит, тиков нет")

	mu.Lock()
	cur = cur.Add(time.Second)
	mu.Unlock()
	require.Eventually(t, func() bool { return sim.TickCount() > 0 }, 2*time.Second, 5*time.Millisecond)
	assert.Eventually(t, fired.Load, 2*time.Second, 5*time.Millisecond)
	assert.EqualValues(t, 1000, sim.ServerTime())
}

func TestSpawnsRunInTick(t *testing.T) {
	entities := entity.NewManager()
	clk := clock.NewAt(0.5)
	spawns, err := spawn.NewManager(entities, clk, 1, []spawn.PointConfig{
		{ID: 1, ZoneID: gamedata.ZoneGreenwatch, TemplateID: gamedata.NPCWorldrootSentinel, DisableJitter: true},
	})
	require.NoError(t, err)

	sim := NewSimulation(Config{Entities: entities, Clock: clk, Spawns: spawns})
	sim.Tick(0.05)
	assert.Len(t, entities.NPCs(), 1)
	assert.Equal(t, 1, sim.Stats()["spawn_points"])
}

type sinkRecorder struct {
	packets []protocol.Packet
}

func (r *sinkRecorder) BroadcastToZone(_ string, p protocol.Packet, _ uint64) {
	r.packets = append(r.packets, p)
}

func TestDeathHandlerRemovesCorpseAndRespawnsPlayer(t *testing.T) {
	entities := entity.NewManager()
	zones := zone.NewDirectory()
	sched := NewScheduler()
	sink := &sinkRecorder{}
	h := NewDeathHandler(entities, zones, sched, sink)

	npc := entity.NewNPC(entities.GenerateID(), entity.NPCConfig{Name: "Thornling", ZoneID: gamedata.ZoneThornveilEnclave, Stats: gamedata.DefaultStats()})
	require.True(t, entities.Add(npc))

	data := gamedata.NewCharacter(7, gamedata.CharacterDefinition{
		Name: "Sylwen", Race: gamedata.RaceSylvaen, Class: gamedata.ClassMemoryWarden, Faction: gamedata.FactionVerdantCircles,
	}, time.Unix(0, 0))
	player := entity.NewPlayer(entities.GenerateID(), 1, data)
	player.Relocate(gamedata.ZoneThornveilEnclave, vec.New(80, 80, 0))
	require.True(t, entities.Add(player))

	now := time.Unix(5000, 0)
	npc.ApplyDamage(100_000)
	player.ApplyDamage(100_000)
	h.HandleKill(combat.KillEvent{Killer: player, Victim: npc, At: now})
	h.HandleKill(combat.KillEvent{Killer: npc, Victim: player, At: now})

	sched.RunDue(now.Add(CorpseDuration - time.Millisecond))
	_, ok := entities.Get(npc.ID())
	assert.True(t, ok, "тело ещё лежит")

	sched.RunDue(now.Add(CorpseDuration))
	_, ok = entities.Get(npc.ID())
	assert.False(t, ok)
	assert.False(t, player.IsAlive())

	sched.RunDue(now.Add(PlayerRespawnDelay))
	require.True(t, player.IsAlive())
	cur, maximum := player.Health()
	assert.Equal(t, maximum, cur)

	safe, _ := zones.SafeSpawn(gamedata.ZoneThornveilEnclave)
	assert.Equal(t, safe, player.Position())
	require.Len(t, sink.packets, 1)
	assert.Equal(t, player.ID(), sink.packets[0].(*protocol.EntitySpawn).EntityID)
}

// bindingSink запоминает пакеты по зонам и перепривязки сессий
type bindingSink struct {
	byZone map[string][]protocol.Packet
	zones  map[uint64]string
}

func (r *bindingSink) BroadcastToZone(zoneID string, p protocol.Packet, _ uint64) {
	r.byZone[zoneID] = append(r.byZone[zoneID], p)
}

func (r *bindingSink) SetZone(connID uint64, zoneID string) {
	r.zones[connID] = zoneID
}

func TestRespawnInAnotherZoneRebindsSession(t *testing.T) {
	entities := entity.NewManager()
	zones := zone.NewDirectory()
	sched := NewScheduler()
	sink := &bindingSink{byZone: map[string][]protocol.Packet{}, zones: map[uint64]string{}}
	h := NewDeathHandler(entities, zones, sched, sink)

	data := gamedata.NewCharacter(7, gamedata.CharacterDefinition{
		Name: "Sylwen", Race: gamedata.RaceSylvaen, Class: gamedata.ClassMemoryWarden, Faction: gamedata.FactionVerdantCircles,
	}, time.Unix(0, 0))
	const connID = 42
	player := entity.NewPlayer(entities.GenerateID(), connID, data)
	player.Relocate("zone_removed", vec.New(5, 5, 0))
	require.True(t, entities.Add(player))

	now := time.Unix(5000, 0)
	player.ApplyDamage(100_000)
	h.HandleKill(combat.KillEvent{Victim: player, At: now})
	sched.RunDue(now.Add(PlayerRespawnDelay))

	require.True(t, player.IsAlive())
	assert.Equal(t, gamedata.ZoneThornveilEnclave, player.ZoneID())
	assert.Equal(t, gamedata.ZoneThornveilEnclave, sink.zones[connID])

	require.Len(t, sink.byZone["zone_removed"], 1)
	assert.Equal(t, player.ID(), sink.byZone["zone_removed"][0].(*protocol.EntityDespawn).EntityID)
	require.Len(t, sink.byZone[gamedata.ZoneThornveilEnclave], 1)
	assert.Equal(t, player.ID(), sink.byZone[gamedata.ZoneThornveilEnclave][0].(*protocol.EntitySpawn).EntityID)
}

func TestPlayerBehaviorRegenOutOfCombat(t *testing.T) {
	data := gamedata.NewCharacter(1, gamedata.CharacterDefinition{
		Name: "Aelric", Race: gamedata.RaceHuman, Class: gamedata.ClassUnboundWarrior, Faction: gamedata.FactionUnitedKingdoms,
	}, time.Unix(0, 0))
	p := entity.NewPlayer(1, 1, data)
	now := time.Unix(10_000, 0)

	p.ApplyDamage(50)
	p.EngageCombat(now)
	PlayerBehavior{}.Update(p, 1, now)
	cur, _ := p.Health()
	assert.Equal(t, 110, cur, "в бою регенерации нет")

	later := now.Add(gamedata.OutOfCombatDelay)
	PlayerBehavior{}.Update(p, 1, later)
	// 2% от 160 за секунду, дробная часть копится
	cur, _ = p.Health()
	assert.Equal(t, 113, cur)
}
