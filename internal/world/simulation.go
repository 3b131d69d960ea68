// Package world ведёт авторитетную симуляцию: фиксированный тик, часы мира,
// поведение сущностей, появление NPC и отложенные задачи.
package world

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/annel0/eldara-server/internal/logging"
	"github.com/annel0/eldara-server/internal/world/clock"
	"github.com/annel0/eldara-server/internal/world/entity"
	"github.com/annel0/eldara-server/internal/world/spawn"
)

const (
	// DefaultTickRate тиков в секунду
	DefaultTickRate = 20
	// maxCatchUpTicks после стольких пропущенных тиков накопленное время сбрасывается
	maxCatchUpTicks = 10
	stopTimeout     = 5 * time.Second
	debugEveryTicks = 100
)

var (
	tickDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: "eldara",
		Subsystem: "world",
		Name:      "tick_duration_seconds",
		Help:      "Длительность одного тика симуляции.",
		Buckets:   []float64{0.0005, 0.001, 0.0025, 0.005, 0.01, 0.025, 0.05, 0.1},
	})
	tickOverruns = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "eldara",
		Subsystem: "world",
		Name:      "tick_overruns_total",
		Help:      "Сколько раз симуляция отстала и сбросила накопленное время.",
	})
	tickFaults = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "eldara",
		Subsystem: "world",
		Name:      "tick_faults_total",
		Help:      "Паники, перехваченные в тике или в поведении сущностей.",
	})
	entityGauge = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "eldara",
		Subsystem: "world",
		Name:      "entities",
		Help:      "Количество сущностей в мире по типу.",
	}, []string{"kind"})
)

// Simulation игровой цикл с фиксированным шагом
type Simulation struct {
	entities  *entity.Manager
	clock     *clock.Clock
	spawns    *spawn.Manager
	scheduler *Scheduler

	interval  time.Duration
	startedAt time.Time
	ticks     atomic.Uint64

	mu      sync.Mutex
	running bool
	stopCh  chan struct{}
	done    chan struct{}

	now    func() time.Time
	tracer trace.Tracer
	logger *logging.Logger
}

// Config зависимости симуляции. Spawns, Scheduler и Now необязательны.
type Config struct {
	TickRate  int
	Entities  *entity.Manager
	Clock     *clock.Clock
	Spawns    *spawn.Manager
	Scheduler *Scheduler
	// Now источник времени для цикла тиков и планировщика
	Now func() time.Time
}

// NewSimulation создаёт остановленную симуляцию
func NewSimulation(cfg Config) *Simulation {
	rate := cfg.TickRate
	if rate <= 0 {
		rate = DefaultTickRate
	}
	if cfg.Clock == nil {
		cfg.Clock = clock.New()
	}
	if cfg.Scheduler == nil {
		cfg.Scheduler = NewScheduler()
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &Simulation{
		entities:  cfg.Entities,
		clock:     cfg.Clock,
		spawns:    cfg.Spawns,
		scheduler: cfg.Scheduler,
		interval:  time.Second / time.Duration(rate),
		startedAt: cfg.Now(),
		now:       cfg.Now,
		tracer:    otel.Tracer("github.com/annel0/eldara-server/internal/world"),
		logger:    logging.GetServerLogger(),
	}
}

// Interval длительность одного тика
func (s *Simulation) Interval() time.Duration { return s.interval }

// TickCount число успешно завершённых тиков
func (s *Simulation) TickCount() uint64 { return s.ticks.Load() }

// Clock часы мира
func (s *Simulation) Clock() *clock.Clock { return s.clock }

// Scheduler планировщик отложенных задач
func (s *Simulation) Scheduler() *Scheduler { return s.scheduler }

// ServerTime миллисекунды с момента создания симуляции
func (s *Simulation) ServerTime() int64 {
	return s.now().Sub(s.startedAt).Milliseconds()
}

// Running запущен ли цикл
func (s *Simulation) Running() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

// Start запускает цикл в отдельной горутине. Повторный вызов ничего не делает.
func (s *Simulation) Start() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		return
	}
	s.running = true
	s.stopCh = make(chan struct{})
	s.done = make(chan struct{})
	go s.loop(s.stopCh, s.done)
	s.logger.Info("🌍 Симуляция запущена: %d тиков/с", time.Second/s.interval)
}

// Stop останавливает цикл и ждёт его завершения не дольше 5 секунд.
// Можно вызывать из любой горутины и повторно.
func (s *Simulation) Stop() {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	s.running = false
	close(s.stopCh)
	done := s.done
	s.mu.Unlock()

	select {
	case <-done:
		s.logger.Info("🛑 Симуляция остановлена после %d тиков", s.TickCount())
	case <-time.After(stopTimeout):
		s.logger.Warn("⚠️ Симуляция не остановилась за %v", stopTimeout)
	}
}

func (s *Simulation) loop(stop <-chan struct{}, done chan<- struct{}) {
	defer close(done)

	last := s.now()
	var acc time.Duration
	for {
		select {
		case <-stop:
			return
		default:
		}

		now := s.now()
		acc += now.Sub(last)
		last = now

		if acc > maxCatchUpTicks*s.interval {
			tickOverruns.Inc()
			s.logger.Warn("⚠️ Симуляция отстала на %v, накопленное время сброшено", acc)
			acc = s.interval
		}
		for acc >= s.interval {
			s.Tick(s.interval.Seconds())
			acc -= s.interval
		}

		slack := s.interval - acc
		if slack > time.Millisecond {
			select {
			case <-stop:
				return
			case <-time.After(slack * 9 / 10):
			}
		}
	}
}

// Tick выполняет один шаг: часы, сущности, появление NPC, отложенные задачи.
// Паника в тике перехватывается, счётчик тиков при этом не растёт.
func (s *Simulation) Tick(dt float64) {
	start := time.Now()
	_, span := s.tracer.Start(context.Background(), "world.tick")
	defer span.End()

	if err := s.step(dt); err != nil {
		tickFaults.Inc()
		span.RecordError(err)
		s.logger.Error("❌ Ошибка тика %d: %v", s.TickCount()+1, err)
		return
	}

	n := s.ticks.Add(1)
	elapsed := time.Since(start)
	tickDuration.Observe(elapsed.Seconds())
	span.SetAttributes(attribute.Int64("world.tick", int64(n)))

	if n%debugEveryTicks == 0 {
		players, npcs := 0, 0
		if s.entities != nil {
			players, npcs = len(s.entities.Players()), len(s.entities.NPCs())
		}
		entityGauge.WithLabelValues("player").Set(float64(players))
		entityGauge.WithLabelValues("npc").Set(float64(npcs))
		s.logger.Debug("⏱️ Тик %d за %v: игроков %d, NPC %d, %s", n, elapsed, players, npcs, s.clock)
	}
}

func (s *Simulation) step(dt float64) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
	}()

	s.clock.Advance(time.Duration(dt * float64(time.Second)))
	now := s.now()

	if s.entities != nil {
		if faults := s.entities.UpdateAll(dt, now); faults > 0 {
			tickFaults.Add(float64(faults))
		}
	}
	if s.spawns != nil {
		s.spawns.Update(dt)
	}
	s.scheduler.RunDue(now)
	return nil
}

// Stats сводка для статуса сервера
func (s *Simulation) Stats() map[string]interface{} {
	stats := map[string]interface{}{
		"running":    s.Running(),
		"ticks":      s.TickCount(),
		"tick_rate":  int(time.Second / s.interval),
		"world_time": s.clock.String(),
		"daytime":    s.clock.IsDaytime(),
		"strain":     s.clock.Strain(),
		"scheduled":  s.scheduler.Pending(),
		"uptime_ms":  s.ServerTime(),
	}
	if s.spawns != nil {
		for k, v := range s.spawns.Stats() {
			stats[k] = v
		}
	}
	return stats
}
