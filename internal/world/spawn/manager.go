package spawn

import (
	"fmt"
	"sync"

	"github.com/annel0/eldara-server/internal/gamedata"
	"github.com/annel0/eldara-server/internal/logging"
	"github.com/annel0/eldara-server/internal/util"
	"github.com/annel0/eldara-server/internal/vec"
	"github.com/annel0/eldara-server/internal/world/clock"
	"github.com/annel0/eldara-server/internal/world/entity"
)

// JitterRadius максимальное смещение NPC от точки появления
const JitterRadius = 1.5

// point состояние точки появления. Меняется только из Update.
type point struct {
	cfg        PointConfig
	template   *gamedata.NPCTemplate
	interval   float64
	elapsed    float64
	spawnedID  uint64
	generation int
}

// Manager заселяет зоны NPC по точкам появления
type Manager struct {
	mu       sync.Mutex
	points   []*point
	entities *entity.Manager
	clock    *clock.Clock
	noise    *util.Noise
	logger   *logging.Logger
}

// NewManager создаёт менеджер; точки с неизвестным шаблоном отклоняются
func NewManager(entities *entity.Manager, clk *clock.Clock, seed int64, configs []PointConfig) (*Manager, error) {
	m := &Manager{
		entities: entities,
		clock:    clk,
		noise:    util.NewNoise(seed),
		logger:   logging.GetGameLogger(),
	}
	for _, cfg := range configs {
		tmpl, ok := gamedata.GetNPCTemplate(cfg.TemplateID)
		if !ok {
			return nil, fmt.Errorf("spawn point %d: unknown npc template %d", cfg.ID, cfg.TemplateID)
		}
		interval := float64(cfg.RespawnSeconds)
		if interval <= 0 {
			interval = float64(gamedata.DefaultRespawnSeconds)
		}
		p := &point{cfg: cfg, template: tmpl, interval: interval}
		if !cfg.InitiallyWaited {
			p.elapsed = interval
		}
		m.points = append(m.points, p)
	}
	m.logger.Info("🌱 Инициализировано %d точек появления", len(m.points))
	return m, nil
}

// Update вызывается из тика симуляции после обновления сущностей
func (m *Manager) Update(dt float64) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, p := range m.points {
		if p.spawnedID != 0 {
			if _, alive := m.entities.Get(p.spawnedID); alive {
				continue
			}
			// NPC убран из реестра: снова копим время
			p.spawnedID = 0
			p.elapsed = 0
		}

		p.elapsed += dt
		if p.elapsed < p.interval || !m.canSpawn(p) {
			continue
		}

		npc := m.build(p)
		if !m.entities.Add(npc) {
			m.logger.Error("❌ Не удалось добавить NPC %d с точки %d", npc.ID(), p.cfg.ID)
			continue
		}
		p.spawnedID = npc.ID()
		p.elapsed = 0
		p.generation++
		m.logger.Debug("🐾 %s (%d) появился в %s на точке %d", npc.Name(), npc.ID(), p.cfg.ZoneID, p.cfg.ID)
	}
}

func (m *Manager) canSpawn(p *point) bool {
	if !p.cfg.Window.Allows(m.clock) {
		return false
	}
	if p.cfg.MaxAliveInZone > 0 &&
		m.entities.CountAliveNPCs(p.cfg.TemplateID, p.cfg.ZoneID) >= p.cfg.MaxAliveInZone {
		return false
	}
	return true
}

// build собирает полностью инициализированного NPC до добавления в реестр
func (m *Manager) build(p *point) *entity.NPC {
	t := p.template

	level := p.cfg.Level
	if level <= 0 {
		level = t.MinLevel
		if span := t.MaxLevel - t.MinLevel + 1; span > 1 {
			level += p.generation % span
		}
	}
	hostile := t.Hostile
	if p.cfg.Hostile != nil {
		hostile = *p.cfg.Hostile
	}

	pos := p.cfg.Position
	if !p.cfg.DisableJitter {
		dx, dy := m.noise.Offset2D(float64(pos.X), float64(pos.Y), p.generation, JitterRadius)
		pos = pos.Add(vec.New(float32(dx), float32(dy), 0))
	}

	return entity.NewNPC(m.entities.GenerateID(), entity.NPCConfig{
		TemplateID:   t.TemplateID,
		Name:         t.Name,
		ZoneID:       p.cfg.ZoneID,
		Position:     pos,
		Faction:      t.Faction,
		Level:        level,
		Stats:        t.StatsForLevel(level),
		Hostile:      hostile,
		QuestGiver:   t.QuestGiver,
		Vendor:       t.Vendor,
		AggroRange:   t.AggroRange,
		AttackRange:  t.AttackRange,
		Patrol:       p.cfg.Patrol,
		Window:       p.cfg.Window,
		SpawnPointID: p.cfg.ID,
	})
}

// Count количество точек появления
func (m *Manager) Count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.points)
}

// Stats сводка по точкам для статуса сервера
func (m *Manager) Stats() map[string]interface{} {
	m.mu.Lock()
	defer m.mu.Unlock()

	occupied := 0
	for _, p := range m.points {
		if p.spawnedID != 0 {
			occupied++
		}
	}
	return map[string]interface{}{
		"spawn_points": len(m.points),
		"occupied":     occupied,
	}
}
