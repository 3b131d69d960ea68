package world

import (
	"container/heap"
	"sync"
	"time"

	"github.com/annel0/eldara-server/internal/logging"
)

// TaskFunc отложенная задача симуляции
type TaskFunc func(now time.Time)

type task struct {
	id    uint64
	name  string
	at    time.Time
	fn    TaskFunc
	index int
}

// taskQueue мин-куча по времени запуска, при равенстве по порядку постановки
type taskQueue []*task

func (q taskQueue) Len() int { return len(q) }

func (q taskQueue) Less(i, j int) bool {
	if q[i].at.Equal(q[j].at) {
		return q[i].id < q[j].id
	}
	return q[i].at.Before(q[j].at)
}

func (q taskQueue) Swap(i, j int) {
	q[i], q[j] = q[j], q[i]
	q[i].index = i
	q[j].index = j
}

func (q *taskQueue) Push(x interface{}) {
	t := x.(*task)
	t.index = len(*q)
	*q = append(*q, t)
}

func (q *taskQueue) Pop() interface{} {
	old := *q
	n := len(old)
	t := old[n-1]
	old[n-1] = nil
	t.index = -1
	*q = old[:n-1]
	return t
}

// Scheduler одноразовые задачи, выполняемые в тике симуляции
type Scheduler struct {
	mu     sync.Mutex
	queue  taskQueue
	byID   map[uint64]*task
	nextID uint64
	logger *logging.Logger
}

// NewScheduler создаёт пустой планировщик
func NewScheduler() *Scheduler {
	return &Scheduler{
		byID:   make(map[uint64]*task),
		logger: logging.GetGameLogger(),
	}
}

// ScheduleAt ставит задачу на момент at и возвращает её id
func (s *Scheduler) ScheduleAt(at time.Time, name string, fn TaskFunc) uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.nextID++
	t := &task{id: s.nextID, name: name, at: at, fn: fn}
	heap.Push(&s.queue, t)
	s.byID[t.id] = t
	return t.id
}

// ScheduleAfter ставит задачу через delay от now
func (s *Scheduler) ScheduleAfter(now time.Time, delay time.Duration, name string, fn TaskFunc) uint64 {
	return s.ScheduleAt(now.Add(delay), name, fn)
}

// Cancel снимает задачу. false если она уже выполнена или неизвестна.
func (s *Scheduler) Cancel(id uint64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	t, ok := s.byID[id]
	if !ok {
		return false
	}
	heap.Remove(&s.queue, t.index)
	delete(s.byID, id)
	return true
}

// Pending количество ожидающих задач
func (s *Scheduler) Pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.queue)
}

// RunDue выполняет все задачи со временем <= now и возвращает их число.
// Задачи запускаются без блокировки и могут ставить новые.
func (s *Scheduler) RunDue(now time.Time) int {
	var due []*task
	s.mu.Lock()
	for len(s.queue) > 0 && !s.queue[0].at.After(now) {
		t := heap.Pop(&s.queue).(*task)
		delete(s.byID, t.id)
		due = append(due, t)
	}
	s.mu.Unlock()

	for _, t := range due {
		s.run(t, now)
	}
	return len(due)
}

func (s *Scheduler) run(t *task, now time.Time) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("❌ Паника в задаче %q (%d): %v", t.name, t.id, r)
		}
	}()
	t.fn(now)
}
