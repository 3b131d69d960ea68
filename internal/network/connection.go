package network

import (
	"errors"
	"fmt"
	"io"
	"net"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/annel0/eldara-server/internal/logging"
	"github.com/annel0/eldara-server/internal/protocol"
)

// Handler обработчик событий соединения. Все методы вызываются в горутине приёма соединения.
type Handler interface {
	OnConnect(c *Connection)
	// HandlePacket обрабатывает пакет. Ошибка означает нарушение протокола и разрывает соединение.
	HandlePacket(c *Connection, p protocol.Packet) error
	OnDisconnect(c *Connection, reason string)
}

// ConnectionOptions параметры соединения
type ConnectionOptions struct {
	Transport    Transport
	Codec        *protocol.Codec
	Metrics      *NetworkMetrics
	WriteTimeout time.Duration
	IdleTimeout  time.Duration // 0 без таймаута чтения
}

// Connection клиентское соединение: цикл приёма и синхронная отправка в порядке очереди
type Connection struct {
	id        uint64
	conn      net.Conn
	transport Transport
	codec     *protocol.Codec
	handler   Handler
	metrics   *NetworkMetrics
	logger    *logging.Logger

	writeTimeout time.Duration
	idleTimeout  time.Duration

	// sendMu удерживается на время записи, запись ограничена дедлайном
	sendMu sync.Mutex
	queue  []protocol.Packet
	seq    uint32

	closed    atomic.Bool
	closeOnce sync.Once
	done      chan struct{}

	connectedAt  time.Time
	lastActivity atomic.Int64
}

// NewConnection оборачивает транспорт
func NewConnection(id uint64, conn net.Conn, handler Handler, opts ConnectionOptions) *Connection {
	if opts.Codec == nil {
		opts.Codec = protocol.DefaultCodec()
	}
	if opts.Metrics == nil {
		opts.Metrics = NewNetworkMetrics()
	}
	if opts.Transport == "" {
		opts.Transport = TransportTCP
	}
	if opts.WriteTimeout <= 0 {
		opts.WriteTimeout = 5 * time.Second
	}
	c := &Connection{
		id:           id,
		conn:         conn,
		transport:    opts.Transport,
		codec:        opts.Codec,
		handler:      handler,
		metrics:      opts.Metrics,
		logger:       logging.GetNetworkLogger(),
		writeTimeout: opts.WriteTimeout,
		idleTimeout:  opts.IdleTimeout,
		done:         make(chan struct{}),
		connectedAt:  time.Now(),
	}
	c.lastActivity.Store(c.connectedAt.UnixNano())
	return c
}

// ID идентификатор соединения
func (c *Connection) ID() uint64 { return c.id }

// RemoteAddr адрес клиента
func (c *Connection) RemoteAddr() string {
	if addr := c.conn.RemoteAddr(); addr != nil {
		return addr.String()
	}
	return "unknown"
}

// Transport тип транспорта
func (c *Connection) Transport() Transport { return c.transport }

// Closed закрыто ли соединение
func (c *Connection) Closed() bool { return c.closed.Load() }

// Done закрывается после разрыва соединения
func (c *Connection) Done() <-chan struct{} { return c.done }

// LastActivity время последнего полученного кадра
func (c *Connection) LastActivity() time.Time {
	return time.Unix(0, c.lastActivity.Load())
}

// Send ставит пакет в очередь и сразу отправляет очередь.
// После закрытия соединения это no-op и возвращает false.
func (c *Connection) Send(p protocol.Packet) bool {
	if c.closed.Load() {
		return false
	}

	c.sendMu.Lock()
	if c.closed.Load() {
		c.sendMu.Unlock()
		return false
	}
	c.queue = append(c.queue, p)
	err := c.flushLocked()
	c.sendMu.Unlock()

	if err != nil {
		c.metrics.RecordError(c.transport, "connection", err.Error(), c.id)
		c.Close(fmt.Sprintf("ошибка записи: %v", err))
		return false
	}
	return true
}

// flushLocked отправляет очередь по порядку. Пакет, который не удалось закодировать, отбрасывается.
func (c *Connection) flushLocked() error {
	for len(c.queue) > 0 {
		p := c.queue[0]
		c.queue[0] = nil
		c.queue = c.queue[1:]

		c.seq++
		data, err := c.codec.Encode(p, c.seq, time.Now())
		if err != nil {
			c.logger.Error("❌ Соединение %d: пакет %s не закодирован: %v", c.id, p.Type(), err)
			c.metrics.RecordError(c.transport, "protocol", err.Error(), c.id)
			continue
		}

		if err := c.conn.SetWriteDeadline(time.Now().Add(c.writeTimeout)); err != nil {
			return err
		}
		if err := protocol.WriteFrame(c.conn, data); err != nil {
			return err
		}
		c.metrics.RecordMessage(c.transport, p.Type(), len(data), true, 0)
	}
	c.queue = nil
	return nil
}

// Serve цикл приёма. Блокирует до разрыва соединения.
func (c *Connection) Serve() {
	c.metrics.RecordConnect(c.transport)
	c.logger.Info("🔌 Новое соединение %d от %s (%s)", c.id, c.RemoteAddr(), c.transport)
	c.handler.OnConnect(c)

	for !c.closed.Load() {
		if c.idleTimeout > 0 {
			if err := c.conn.SetReadDeadline(time.Now().Add(c.idleTimeout)); err != nil {
				c.Close(fmt.Sprintf("ошибка дедлайна чтения: %v", err))
				return
			}
		}

		frame, err := protocol.ReadFrame(c.conn)
		if err != nil {
			c.Close(c.readFailure(err))
			return
		}
		c.lastActivity.Store(time.Now().UnixNano())

		started := time.Now()
		p, env, err := c.codec.Decode(frame)
		if err != nil {
			logging.LogProtocolError(fmt.Sprintf("conn-%d", c.id), err, frame)
			c.metrics.RecordError(c.transport, "protocol", err.Error(), c.id)
			c.Close(fmt.Sprintf("некорректный пакет: %v", err))
			return
		}
		logging.LogPacket(fmt.Sprintf("conn-%d", c.id), "IN", env.Type, frame)

		if err := c.dispatch(p); err != nil {
			c.metrics.RecordError(c.transport, "protocol", err.Error(), c.id)
			c.Close(fmt.Sprintf("ошибка обработки %s: %v", p.Type(), err))
			return
		}
		c.metrics.RecordMessage(c.transport, p.Type(), len(frame), false, time.Since(started))
	}
}

// dispatch вызывает обработчик, паника обработчика разрывает только это соединение
func (c *Connection) dispatch(p protocol.Packet) (err error) {
	defer func() {
		if r := recover(); r != nil {
			c.logger.Error("❌ Паника в обработчике %s соединения %d: %v", p.Type(), c.id, r)
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	return c.handler.HandlePacket(c, p)
}

func (c *Connection) readFailure(err error) string {
	var netErr net.Error
	switch {
	case errors.Is(err, io.EOF), errors.Is(err, io.ErrUnexpectedEOF):
		return "клиент закрыл соединение"
	case errors.Is(err, net.ErrClosed):
		return "соединение закрыто"
	case errors.Is(err, os.ErrDeadlineExceeded), errors.As(err, &netErr) && netErr.Timeout():
		c.metrics.RecordError(c.transport, "timeout", err.Error(), c.id)
		return "таймаут простоя"
	case errors.Is(err, protocol.ErrEmptyFrame), errors.Is(err, protocol.ErrPacketTooLarge):
		c.metrics.RecordError(c.transport, "protocol", err.Error(), c.id)
		return fmt.Sprintf("нарушение кадрирования: %v", err)
	default:
		c.metrics.RecordError(c.transport, "connection", err.Error(), c.id)
		return fmt.Sprintf("ошибка чтения: %v", err)
	}
}

// Close разрывает соединение один раз и сообщает обработчику причину
func (c *Connection) Close(reason string) {
	c.closeOnce.Do(func() {
		c.closed.Store(true)
		if err := c.conn.Close(); err != nil && !errors.Is(err, net.ErrClosed) {
			c.logger.Debug("⚠️ Соединение %d: ошибка закрытия транспорта: %v", c.id, err)
		}
		c.logger.Info("🔌 Соединение %d закрыто: %s (%v)", c.id, reason, time.Since(c.connectedAt).Round(time.Millisecond))
		c.handler.OnDisconnect(c, reason)
		c.metrics.RecordDisconnect(c.transport)
		close(c.done)
	})
}
