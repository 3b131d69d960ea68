package observability

import (
	"fmt"
	"net"
	"sync"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	"github.com/annel0/eldara-server/internal/logging"
)

// WorldService имя сервиса мира в gRPC health-check
const WorldService = "eldara.World"

// Probe сообщает, готов ли компонент обслуживать игроков
type Probe func() bool

// HealthServer gRPC health-check (grpc.health.v1) для оркестратора.
// Статус WorldService и общий статус "" обновляются опросом probe.
type HealthServer struct {
	grpc   *grpc.Server
	health *health.Server
	probe  Probe
	every  time.Duration

	lis      net.Listener
	quit     chan struct{}
	wg       sync.WaitGroup
	stopOnce sync.Once
	logger   *logging.Logger
}

// NewHealthServer создаёт сервер. every <= 0 означает опрос раз в секунду.
func NewHealthServer(probe Probe, every time.Duration) *HealthServer {
	if every <= 0 {
		every = time.Second
	}
	hs := health.NewServer()
	gs := grpc.NewServer()
	healthpb.RegisterHealthServer(gs, hs)

	h := &HealthServer{
		grpc:   gs,
		health: hs,
		probe:  probe,
		every:  every,
		quit:   make(chan struct{}),
		logger: logging.GetServerLogger(),
	}
	h.setServing(false)
	return h
}

// Start слушает addr и запускает опрос probe
func (h *HealthServer) Start(addr string) error {
	lis, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("health-check на %s: %w", addr, err)
	}
	h.lis = lis
	h.refresh()

	h.wg.Add(2)
	go func() {
		defer h.wg.Done()
		if err := h.grpc.Serve(lis); err != nil {
			h.logger.Warn("⚠️ gRPC health-check остановлен: %v", err)
		}
	}()
	go h.poll()

	h.logger.Info("💓 gRPC health-check слушает %s", lis.Addr())
	return nil
}

// Addr адрес слушателя (nil до Start)
func (h *HealthServer) Addr() net.Addr {
	if h.lis == nil {
		return nil
	}
	return h.lis.Addr()
}

func (h *HealthServer) poll() {
	defer h.wg.Done()
	ticker := time.NewTicker(h.every)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			h.refresh()
		case <-h.quit:
			return
		}
	}
}

func (h *HealthServer) refresh() {
	h.setServing(h.probe == nil || h.probe())
}

func (h *HealthServer) setServing(ok bool) {
	status := healthpb.HealthCheckResponse_NOT_SERVING
	if ok {
		status = healthpb.HealthCheckResponse_SERVING
	}
	h.health.SetServingStatus("", status)
	h.health.SetServingStatus(WorldService, status)
}

// Stop переводит сервисы в NOT_SERVING и останавливает сервер
func (h *HealthServer) Stop() {
	h.stopOnce.Do(func() {
		close(h.quit)
		h.health.Shutdown()
		h.grpc.GracefulStop()
		h.wg.Wait()
	})
}
