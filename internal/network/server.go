package network

import (
	"errors"
	"fmt"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/xtaci/kcp-go/v5"

	"github.com/annel0/eldara-server/internal/logging"
)

// acceptPollInterval дедлайн слушателя, чтобы цикл приёма замечал остановку
const acceptPollInterval = 100 * time.Millisecond

// ServerConfig параметры слушателей
type ServerConfig struct {
	TCPAddr      string
	KCPAddr      string // пусто - KCP выключен
	MaxPlayers   int
	WriteTimeout time.Duration
	IdleTimeout  time.Duration
}

// deadlineListener слушатель с дедлайном приёма (TCP и KCP)
type deadlineListener interface {
	Accept() (net.Conn, error)
	Close() error
	Addr() net.Addr
	SetDeadline(t time.Time) error
}

// GameServer принимает соединения по TCP и KCP и передаёт их в общий конвейер Connection
type GameServer struct {
	cfg     ServerConfig
	handler Handler
	metrics *NetworkMetrics
	logger  *logging.Logger

	nextConnID atomic.Uint64

	mu        sync.Mutex
	listeners []deadlineListener
	conns     map[uint64]*Connection
	running   bool

	quit chan struct{}
	wg   sync.WaitGroup
}

// NewGameServer создаёт остановленный сервер
func NewGameServer(cfg ServerConfig, handler Handler, metrics *NetworkMetrics) *GameServer {
	if metrics == nil {
		metrics = NewNetworkMetrics()
	}
	if cfg.MaxPlayers <= 0 {
		cfg.MaxPlayers = 5000
	}
	return &GameServer{
		cfg:     cfg,
		handler: handler,
		metrics: metrics,
		logger:  logging.GetNetworkLogger(),
		conns:   make(map[uint64]*Connection),
		quit:    make(chan struct{}),
	}
}

// Metrics сетевые метрики сервера
func (s *GameServer) Metrics() *NetworkMetrics { return s.metrics }

// Start открывает слушатели и запускает циклы приёма
func (s *GameServer) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		return errors.New("сервер уже запущен")
	}

	tcpAddr, err := net.ResolveTCPAddr("tcp", s.cfg.TCPAddr)
	if err != nil {
		return fmt.Errorf("неверный TCP адрес %q: %w", s.cfg.TCPAddr, err)
	}
	tcp, err := net.ListenTCP("tcp", tcpAddr)
	if err != nil {
		return fmt.Errorf("ошибка запуска TCP слушателя: %w", err)
	}
	s.listeners = append(s.listeners, tcp)
	s.logger.Info("🚀 TCP сервер слушает %s (до %d игроков)", tcp.Addr(), s.cfg.MaxPlayers)

	if s.cfg.KCPAddr != "" {
		kl, err := kcp.ListenWithOptions(s.cfg.KCPAddr, nil, 0, 0)
		if err != nil {
			tcp.Close()
			s.listeners = nil
			return fmt.Errorf("ошибка запуска KCP слушателя: %w", err)
		}
		s.listeners = append(s.listeners, &kcpListener{kl})
		s.logger.Info("🚀 KCP сервер слушает %s", kl.Addr())
	}

	s.running = true
	for _, l := range s.listeners {
		transport := TransportTCP
		if _, ok := l.(*kcpListener); ok {
			transport = TransportKCP
		}
		s.wg.Add(1)
		go s.acceptLoop(l, transport)
	}
	return nil
}

// Addr адрес TCP слушателя (для тестов с портом 0)
func (s *GameServer) Addr() net.Addr {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.listeners) == 0 {
		return nil
	}
	return s.listeners[0].Addr()
}

func (s *GameServer) acceptLoop(l deadlineListener, transport Transport) {
	defer s.wg.Done()

	for {
		select {
		case <-s.quit:
			return
		default:
		}

		if err := l.SetDeadline(time.Now().Add(acceptPollInterval)); err != nil {
			s.logger.Error("❌ Ошибка дедлайна слушателя %s: %v", transport, err)
			return
		}
		conn, err := l.Accept()
		if err != nil {
			var netErr net.Error
			if errors.As(err, &netErr) && netErr.Timeout() {
				continue
			}
			select {
			case <-s.quit:
				return
			default:
			}
			s.logger.Warn("⚠️ Ошибка приёма соединения %s: %v", transport, err)
			continue
		}

		if s.Count() >= s.cfg.MaxPlayers {
			s.metrics.RecordRejected()
			s.logger.Warn("⛔ Соединение от %s отклонено: достигнут предел %d", conn.RemoteAddr(), s.cfg.MaxPlayers)
			conn.Close()
			continue
		}

		if transport == TransportTCP {
			if tc, ok := conn.(*net.TCPConn); ok {
				tc.SetNoDelay(true)
			}
		}

		c := NewConnection(s.nextConnID.Add(1), conn, s.handler, ConnectionOptions{
			Transport:    transport,
			Metrics:      s.metrics,
			WriteTimeout: s.cfg.WriteTimeout,
			IdleTimeout:  s.cfg.IdleTimeout,
		})
		s.track(c)
		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			defer s.untrack(c.ID())
			c.Serve()
		}()
	}
}

func (s *GameServer) track(c *Connection) {
	s.mu.Lock()
	s.conns[c.ID()] = c
	s.mu.Unlock()
}

func (s *GameServer) untrack(id uint64) {
	s.mu.Lock()
	delete(s.conns, id)
	s.mu.Unlock()
}

// Count число открытых соединений
func (s *GameServer) Count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.conns)
}

// Stop закрывает слушатели и все соединения, ждёт завершения горутин
func (s *GameServer) Stop() {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	s.running = false
	close(s.quit)
	for _, l := range s.listeners {
		l.Close()
	}
	conns := make([]*Connection, 0, len(s.conns))
	for _, c := range s.conns {
		conns = append(conns, c)
	}
	s.mu.Unlock()

	for _, c := range conns {
		c.Close("остановка сервера")
	}
	s.wg.Wait()
	s.logger.Info("🛑 Сетевой сервер остановлен")
}

// kcpListener настраивает каждую KCP сессию под потоковый режим
type kcpListener struct {
	*kcp.Listener
}

func (l *kcpListener) Accept() (net.Conn, error) {
	sess, err := l.AcceptKCP()
	if err != nil {
		return nil, err
	}
	sess.SetStreamMode(true)
	sess.SetNoDelay(1, 20, 2, 1)
	sess.SetWindowSize(512, 512)
	sess.SetMtu(1400)
	return sess, nil
}
