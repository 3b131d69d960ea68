package main

import (
	"context"
	"flag"
	"log"
	"net"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/annel0/eldara-server/internal/ai"
	"github.com/annel0/eldara-server/internal/api"
	"github.com/annel0/eldara-server/internal/auth"
	"github.com/annel0/eldara-server/internal/combat"
	"github.com/annel0/eldara-server/internal/config"
	"github.com/annel0/eldara-server/internal/eventbus"
	"github.com/annel0/eldara-server/internal/logging"
	"github.com/annel0/eldara-server/internal/network"
	"github.com/annel0/eldara-server/internal/observability"
	"github.com/annel0/eldara-server/internal/quest"
	"github.com/annel0/eldara-server/internal/session"
	"github.com/annel0/eldara-server/internal/storage"
	"github.com/annel0/eldara-server/internal/world"
	"github.com/annel0/eldara-server/internal/world/clock"
	"github.com/annel0/eldara-server/internal/world/entity"
	"github.com/annel0/eldara-server/internal/world/spawn"
	"github.com/annel0/eldara-server/internal/world/zone"
)

func main() {
	configPath := flag.String("config", "", "путь к YAML конфигурации (по умолчанию $ELDARA_CONFIG)")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("❌ Ошибка загрузки конфигурации: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		log.Fatalf("❌ Некорректная конфигурация: %v", err)
	}

	setupLogging(cfg.Logging)
	defer logging.CloseDefaultLogger()
	defer logging.GetLoggerManager().CloseAll()

	logging.Info("🎮 Запуск %s (%s)", cfg.Server.Name, cfg.Server.Region)

	ctx := context.Background()
	shutdownTelemetry, err := observability.InitTelemetry(ctx, cfg.Telemetry)
	if err != nil {
		logging.Warn("⚠️ Телеметрия отключена: %v", err)
		shutdownTelemetry = func(context.Context) error { return nil }
	}

	// === Шина событий ===
	bus := newEventBus(cfg.EventBus)
	if _, err := eventbus.StartLoggingListener(bus); err != nil {
		logging.Warn("⚠️ LoggingListener не запущен: %v", err)
	}
	busMetrics := eventbus.NewMetricsExporter(bus, nil)
	busMetrics.Start(5 * time.Second)

	// === Хранилища ===
	characters, err := storage.NewCharacterStore(cfg.Storage)
	if err != nil {
		log.Fatalf("❌ Хранилище персонажей: %v", err)
	}
	saves := storage.NewSaveBatcher(characters, bus, cfg.Server.Name, cfg.Storage.SaveBatchLimit,
		time.Duration(cfg.Storage.SaveEvery)*time.Second)

	users, err := auth.NewUserRepository(cfg.Auth)
	if err != nil {
		log.Fatalf("❌ Репозиторий аккаунтов: %v", err)
	}
	tokens, err := auth.NewTokenIssuer(cfg.Auth.JWTSecret, auth.DefaultTokenExpiry)
	if err != nil {
		log.Fatalf("❌ JWT: %v", err)
	}
	if cfg.Auth.JWTSecret == "" {
		logging.Warn("⚠️ auth.jwt_secret не задан: токены действительны до перезапуска")
	}
	authenticator := auth.NewAuthenticator(users, tokens, cfg.Auth.AutoRegister)

	// === Мир ===
	router := session.NewRouter()
	zones := zone.NewDirectory()
	entities := entity.NewManager()
	worldClock := clock.New()
	scheduler := world.NewScheduler()
	netMetrics := network.NewNetworkMetrics()

	var sim *world.Simulation
	serverTime := func() int64 {
		if sim == nil {
			return 0
		}
		return sim.ServerTime()
	}

	executor := combat.NewExecutor(entities, zones,
		combat.WithSink(router),
		combat.WithServerTime(serverTime),
	)
	world.RegisterBehaviors(entities, ai.NewController(entities, worldClock, executor))

	spawns, err := spawn.NewManager(entities, worldClock, time.Now().UnixNano(), spawn.DefaultPoints())
	if err != nil {
		log.Fatalf("❌ Точки появления NPC: %v", err)
	}

	death := world.NewDeathHandler(entities, zones, scheduler, router)
	executor.OnKill(death.HandleKill)

	sim = world.NewSimulation(world.Config{
		TickRate:  cfg.Server.TickRate,
		Entities:  entities,
		Clock:     worldClock,
		Spawns:    spawns,
		Scheduler: scheduler,
	})
	router.WatchEntities(entities)

	quests := quest.NewEngine(quest.StaticCatalog())
	movement := network.NewPredictionService(zones, netMetrics, sim.ServerTime)

	handler := network.NewGameHandler(network.GameHandlerDeps{
		Router:     router,
		Entities:   entities,
		Zones:      zones,
		Movement:   movement,
		Combat:     executor,
		Quests:     quests,
		Characters: characters,
		Saves:      saves,
		Auth:       authenticator,
		Bus:        bus,
		ServerTime: sim.ServerTime,
	})

	// === Запуск ===
	sim.Start()

	kcpAddr := ""
	if cfg.Server.EnableKCP {
		kcpAddr = hostPort(cfg.Server.Host, cfg.Server.GetKCPPort())
	}
	gameServer := network.NewGameServer(network.ServerConfig{
		TCPAddr:      hostPort(cfg.Server.Host, cfg.Server.GetTCPPort()),
		KCPAddr:      kcpAddr,
		MaxPlayers:   cfg.Server.MaxPlayers,
		WriteTimeout: cfg.Server.WriteDeadline(),
		IdleTimeout:  cfg.Server.IdleDeadline(),
	}, handler, netMetrics)
	if err := gameServer.Start(); err != nil {
		log.Fatalf("❌ Игровой сервер: %v", err)
	}

	rest := api.NewRestServer(api.Config{
		Addr:       hostPort(cfg.Server.Host, cfg.Server.GetRESTPort()),
		ServerName: cfg.Server.Name,
		Region:     cfg.Server.Region,
		MaxPlayers: cfg.Server.MaxPlayers,
		Auth:       authenticator,
		World: api.WorldSource{
			Router:     router,
			Entities:   entities,
			Zones:      zones,
			Simulation: sim,
			Network:    netMetrics,
			Bus:        bus,
		},
	})
	if err := rest.Start(); err != nil {
		logging.Error("❌ REST API не запущен: %v", err)
	}

	health := observability.NewHealthServer(sim.Running, time.Second)
	if err := health.Start(hostPort(cfg.Server.Host, cfg.Server.GetHealthPort())); err != nil {
		logging.Error("❌ gRPC health-check не запущен: %v", err)
	}

	autosaveStop := make(chan struct{})
	go autosave(handler, time.Duration(cfg.Storage.SaveEvery)*time.Second, autosaveStop)

	logging.Info("✅ Сервер готов: TCP %d, KCP %v, REST %d, health %d, тик %s",
		cfg.Server.GetTCPPort(), cfg.Server.EnableKCP, cfg.Server.GetRESTPort(),
		cfg.Server.GetHealthPort(), cfg.Server.TickInterval())

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigCh
	logging.Info("📡 Получен сигнал %v, завершение работы...", sig)

	// === Остановка ===
	// сначала соединения: выход из мира сохраняет персонажей через батчер
	health.Stop()
	close(autosaveStop)
	gameServer.Stop()
	sim.Stop()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	if err := rest.Stop(shutdownCtx); err != nil {
		logging.Warn("⚠️ Остановка REST API: %v", err)
	}
	saves.Stop(shutdownCtx)
	if err := characters.Close(); err != nil {
		logging.Warn("⚠️ Закрытие хранилища персонажей: %v", err)
	}
	if err := users.Close(); err != nil {
		logging.Warn("⚠️ Закрытие репозитория аккаунтов: %v", err)
	}
	busMetrics.Stop()
	if err := bus.Close(); err != nil {
		logging.Warn("⚠️ Закрытие шины событий: %v", err)
	}
	if err := shutdownTelemetry(shutdownCtx); err != nil {
		logging.Warn("⚠️ Остановка телеметрии: %v", err)
	}

	logging.Info("👋 Сервер успешно остановлен")
}

func setupLogging(cfg config.LoggingConfig) {
	if cfg.Dir != "" {
		logging.SetLogDir(cfg.Dir)
	}
	if err := logging.InitDefaultLogger("server"); err != nil {
		log.Fatalf("❌ Ошибка инициализации логирования: %v", err)
	}

	consoleLevel, err := logging.ParseLevel(cfg.ConsoleLevel)
	if err != nil {
		logging.Warn("⚠️ %v, используется INFO", err)
	}
	fileLevel, err := logging.ParseLevel(cfg.FileLevel)
	if err != nil {
		logging.Warn("⚠️ %v, используется INFO", err)
	}
	logging.SetDefaultLevels(consoleLevel, fileLevel)
	logging.GetLoggerManager().SetDefaultLevels(consoleLevel, fileLevel)
}

// newEventBus JetStream при заданном URL, иначе шина в памяти
func newEventBus(cfg config.EventBusConfig) eventbus.EventBus {
	if cfg.URL != "" {
		bus, err := eventbus.NewJetStreamBus(cfg.URL, cfg.Stream, time.Duration(cfg.Retention)*time.Hour)
		if err == nil {
			return bus
		}
		logging.Warn("⚠️ JetStream недоступен (%v), используется шина в памяти", err)
	}
	return eventbus.NewMemoryBus(cfg.Capacity)
}

// autosave раз в период ставит всех игроков в мире в очередь сохранения
func autosave(handler *network.GameHandler, every time.Duration, stop <-chan struct{}) {
	if every <= 0 {
		every = 30 * time.Second
	}
	ticker := time.NewTicker(every)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			if n := handler.MarkOnlineDirty(); n > 0 {
				logging.Debug("💾 Автосохранение: в очереди %d персонажей", n)
			}
		case <-stop:
			return
		}
	}
}

func hostPort(host string, port int) string {
	if host == "" {
		host = "0.0.0.0"
	}
	return net.JoinHostPort(host, strconv.Itoa(port))
}
