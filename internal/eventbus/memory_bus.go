package eventbus

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/annel0/eldara-server/internal/logging"
)

const defaultQueueSize = 1024

// memoryBus шина в памяти процесса. Каждый подписчик получает события
// в порядке публикации через собственную очередь.
type memoryBus struct {
	mu        sync.RWMutex
	subs      map[int]*memSub
	nextID    int
	queueSize int

	published atomic.Uint64
	consumed  atomic.Uint64
	dropped   atomic.Uint64

	closed    atomic.Bool
	done      chan struct{}
	closeOnce sync.Once
	wg        sync.WaitGroup
}

type memSub struct {
	bus     *memoryBus
	id      int
	filter  Filter
	handler Handler
	ctx     context.Context
	cancel  context.CancelFunc
	queue   chan *Envelope
}

// NewMemoryBus создаёт шину в памяти; queueSize ограничивает очередь каждого подписчика
func NewMemoryBus(queueSize int) EventBus {
	if queueSize <= 0 {
		queueSize = defaultQueueSize
	}
	return &memoryBus{
		subs:      make(map[int]*memSub),
		queueSize: queueSize,
		done:      make(chan struct{}),
	}
}

func (mb *memoryBus) Publish(ctx context.Context, ev *Envelope) error {
	if mb.closed.Load() {
		return ErrClosed
	}
	mb.published.Add(1)

	mb.mu.RLock()
	targets := make([]*memSub, 0, len(mb.subs))
	for _, s := range mb.subs {
		if s.filter.Match(ev) {
			targets = append(targets, s)
		}
	}
	mb.mu.RUnlock()

	for _, s := range targets {
		if err := s.enqueue(ctx, ev); err != nil {
			return err
		}
	}
	return nil
}

// enqueue кладёт событие в очередь подписчика. Низкий приоритет при
// переполнении отбрасывается, высокий ждёт места.
func (s *memSub) enqueue(ctx context.Context, ev *Envelope) error {
	select {
	case s.queue <- ev:
		return nil
	default:
	}
	if ev.Priority < PriorityHigh {
		s.bus.dropped.Add(1)
		return nil
	}
	select {
	case s.queue <- ev:
		return nil
	case <-s.ctx.Done():
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-s.bus.done:
		return ErrClosed
	}
}

func (mb *memoryBus) Subscribe(ctx context.Context, f Filter, h Handler) (Subscription, error) {
	if mb.closed.Load() {
		return nil, ErrClosed
	}
	cctx, cancel := context.WithCancel(ctx)

	mb.mu.Lock()
	s := &memSub{
		bus:     mb,
		id:      mb.nextID,
		filter:  f,
		handler: h,
		ctx:     cctx,
		cancel:  cancel,
		queue:   make(chan *Envelope, mb.queueSize),
	}
	mb.subs[s.id] = s
	mb.nextID++
	mb.mu.Unlock()

	mb.wg.Add(1)
	go s.run()
	return s, nil
}

func (s *memSub) run() {
	defer s.bus.wg.Done()
	for {
		select {
		case <-s.ctx.Done():
			return
		case <-s.bus.done:
			return
		case ev := <-s.queue:
			s.deliver(ev)
		}
	}
}

func (s *memSub) deliver(ev *Envelope) {
	defer func() {
		if r := recover(); r != nil {
			logging.Error("❌ Паника в обработчике события %s: %v", ev.EventType, r)
		}
	}()
	s.handler(s.ctx, ev)
	s.bus.consumed.Add(1)
}

func (s *memSub) Unsubscribe() {
	s.bus.mu.Lock()
	delete(s.bus.subs, s.id)
	s.bus.mu.Unlock()
	s.cancel()
}

func (mb *memoryBus) Metrics() Stats {
	st := Stats{
		Published: mb.published.Load(),
		Consumed:  mb.consumed.Load(),
		Dropped:   mb.dropped.Load(),
	}
	mb.mu.RLock()
	for _, s := range mb.subs {
		st.InFlight += len(s.queue)
	}
	mb.mu.RUnlock()
	return st
}

// Close останавливает доставку; недоставленные события отбрасываются
func (mb *memoryBus) Close() error {
	mb.closeOnce.Do(func() {
		mb.closed.Store(true)
		close(mb.done)

		mb.mu.Lock()
		for id, s := range mb.subs {
			s.cancel()
			delete(mb.subs, id)
		}
		mb.mu.Unlock()

		mb.wg.Wait()
	})
	return nil
}
