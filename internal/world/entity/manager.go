package entity

import (
	"fmt"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/annel0/eldara-server/internal/logging"
	"github.com/annel0/eldara-server/internal/vec"
)

// Behavior поведение, вызываемое для каждой сущности своего варианта на каждом тике
type Behavior interface {
	Update(e Entity, dt float64, now time.Time)
}

// BehaviorFunc адаптер функции к Behavior
type BehaviorFunc func(e Entity, dt float64, now time.Time)

func (f BehaviorFunc) Update(e Entity, dt float64, now time.Time) { f(e, dt, now) }

// Listener подписчик на добавление и удаление сущностей
type Listener func(e Entity)

// Manager потокобезопасный реестр всех живых сущностей мира.
// Порядок блокировок: реестр, затем сущность; две сущности одновременно не блокируются.
type Manager struct {
	entities  map[uint64]Entity // Хранилище всех сущностей
	behaviors map[Kind]Behavior // Поведения по вариантам
	nextID    atomic.Uint64     // Счетчик для генерации ID
	mu        sync.RWMutex

	listenersMu sync.RWMutex
	onAdded     []Listener
	onRemoved   []Listener

	logger *logging.Logger
}

// NewManager создаёт пустой реестр
func NewManager() *Manager {
	return &Manager{
		entities:  make(map[uint64]Entity),
		behaviors: make(map[Kind]Behavior),
		logger:    logging.GetGameLogger(),
	}
}

// GenerateID возвращает новый идентификатор. Значения строго возрастают и не переиспользуются.
func (m *Manager) GenerateID() uint64 {
	return m.nextID.Add(1)
}

// RegisterBehavior регистрирует поведение для варианта сущности
func (m *Manager) RegisterBehavior(kind Kind, b Behavior) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.behaviors[kind] = b
}

// OnEntityAdded подписка на добавление
func (m *Manager) OnEntityAdded(l Listener) {
	m.listenersMu.Lock()
	m.onAdded = append(m.onAdded, l)
	m.listenersMu.Unlock()
}

// OnEntityRemoved подписка на удаление
func (m *Manager) OnEntityRemoved(l Listener) {
	m.listenersMu.Lock()
	m.onRemoved = append(m.onRemoved, l)
	m.listenersMu.Unlock()
}

// Add добавляет полностью созданную сущность. false если id уже занят.
func (m *Manager) Add(e Entity) bool {
	m.mu.Lock()
	if _, exists := m.entities[e.ID()]; exists {
		m.mu.Unlock()
		m.logger.Warn("⚠️ Не удалось добавить сущность %d: id уже занят", e.ID())
		return false
	}
	m.entities[e.ID()] = e
	m.mu.Unlock()

	m.logger.Debug("➕ Сущность %d (%s) добавлена в %s", e.ID(), e.Name(), e.ZoneID())
	m.notify(m.addedListeners(), e)
	return true
}

// Remove удаляет сущность. false если её нет.
func (m *Manager) Remove(id uint64) bool {
	m.mu.Lock()
	e, exists := m.entities[id]
	if exists {
		delete(m.entities, id)
	}
	m.mu.Unlock()

	if !exists {
		m.logger.Debug("Сущность %d не найдена при удалении", id)
		return false
	}

	m.logger.Debug("➖ Сущность %d (%s) удалена", id, e.Name())
	m.notify(m.removedListeners(), e)
	return true
}

func (m *Manager) addedListeners() []Listener {
	m.listenersMu.RLock()
	defer m.listenersMu.RUnlock()
	return append([]Listener(nil), m.onAdded...)
}

func (m *Manager) removedListeners() []Listener {
	m.listenersMu.RLock()
	defer m.listenersMu.RUnlock()
	return append([]Listener(nil), m.onRemoved...)
}

func (m *Manager) notify(listeners []Listener, e Entity) {
	for _, l := range listeners {
		func() {
			defer func() {
				if r := recover(); r != nil {
					m.logger.Error("❌ Паника в подписчике реестра для сущности %d: %v", e.ID(), r)
				}
			}()
			l(e)
		}()
	}
}

// Get возвращает сущность по id
func (m *Manager) Get(id uint64) (Entity, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	e, ok := m.entities[id]
	return e, ok
}

// GetPlayer возвращает игрока по id сущности
func (m *Manager) GetPlayer(id uint64) (*Player, bool) {
	e, ok := m.Get(id)
	if !ok {
		return nil, false
	}
	p, ok := e.(*Player)
	return p, ok
}

// GetNPC возвращает NPC по id сущности
func (m *Manager) GetNPC(id uint64) (*NPC, bool) {
	e, ok := m.Get(id)
	if !ok {
		return nil, false
	}
	n, ok := e.(*NPC)
	return n, ok
}

// snapshot копия списка сущностей, отсортированная по id.
// Дальнейшая фильтрация идёт без блокировки реестра.
func (m *Manager) snapshot() []Entity {
	m.mu.RLock()
	out := make([]Entity, 0, len(m.entities))
	for _, e := range m.entities {
		out = append(out, e)
	}
	m.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool { return out[i].ID() < out[j].ID() })
	return out
}

// All все сущности
func (m *Manager) All() []Entity {
	return m.snapshot()
}

// InZone сущности зоны
func (m *Manager) InZone(zoneID string) []Entity {
	var out []Entity
	for _, e := range m.snapshot() {
		if e.ZoneID() == zoneID {
			out = append(out, e)
		}
	}
	return out
}

// InRange сущности зоны в радиусе от точки (сравнение квадратов расстояний)
func (m *Manager) InRange(zoneID string, center vec.Vec3, radius float32) []Entity {
	rangeSq := radius * radius
	var out []Entity
	for _, e := range m.snapshot() {
		if e.ZoneID() != zoneID {
			continue
		}
		if e.Position().DistanceSq(center) <= rangeSq {
			out = append(out, e)
		}
	}
	return out
}

// Players все игроки
func (m *Manager) Players() []*Player {
	var out []*Player
	for _, e := range m.snapshot() {
		if p, ok := e.(*Player); ok {
			out = append(out, p)
		}
	}
	return out
}

// NPCs все NPC
func (m *Manager) NPCs() []*NPC {
	var out []*NPC
	for _, e := range m.snapshot() {
		if n, ok := e.(*NPC); ok {
			out = append(out, n)
		}
	}
	return out
}

// PlayerByCharacterID ищет игрока по id персонажа
func (m *Manager) PlayerByCharacterID(characterID uint64) (*Player, bool) {
	for _, p := range m.Players() {
		if p.CharacterID() == characterID {
			return p, true
		}
	}
	return nil, false
}

// CountAliveNPCs число живых NPC шаблона в зоне
func (m *Manager) CountAliveNPCs(templateID int, zoneID string) int {
	count := 0
	for _, n := range m.NPCs() {
		if n.TemplateID() == templateID && n.ZoneID() == zoneID && n.IsAlive() {
			count++
		}
	}
	return count
}

// Count общее число сущностей
func (m *Manager) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.entities)
}

// UpdateAll вызывает поведения для всех сущностей. Паника одной сущности
// логируется и не мешает остальным. Возвращает число упавших обновлений.
func (m *Manager) UpdateAll(dt float64, now time.Time) int {
	m.mu.RLock()
	behaviors := make(map[Kind]Behavior, len(m.behaviors))
	for k, b := range m.behaviors {
		behaviors[k] = b
	}
	m.mu.RUnlock()

	faults := 0
	for _, e := range m.snapshot() {
		b, ok := behaviors[e.Kind()]
		if !ok {
			continue
		}
		if err := m.updateOne(b, e, dt, now); err != nil {
			faults++
			m.logger.Error("❌ Ошибка обновления сущности %d (%s): %v", e.ID(), e.Name(), err)
		}
	}
	return faults
}

func (m *Manager) updateOne(b Behavior, e Entity, dt float64, now time.Time) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	b.Update(e, dt, now)
	return nil
}

// Stats возвращает статистику по сущностям
func (m *Manager) Stats() map[string]interface{} {
	all := m.snapshot()

	stats := make(map[string]interface{})
	stats["total_entities"] = len(all)

	kinds := make(map[string]int)
	zones := make(map[string]int)
	alive := 0
	for _, e := range all {
		kinds[e.Kind().String()]++
		zones[e.ZoneID()]++
		if e.IsAlive() {
			alive++
		}
	}
	stats["alive_entities"] = alive
	stats["entity_kinds"] = kinds
	stats["zones"] = zones

	m.mu.RLock()
	stats["registered_behaviors"] = len(m.behaviors)
	m.mu.RUnlock()

	return stats
}
