package entity

import (
	"time"

	"github.com/annel0/eldara-server/internal/gamedata"
	"github.com/annel0/eldara-server/internal/vec"
	"github.com/annel0/eldara-server/internal/world/clock"
)

// AIState состояние конечного автомата NPC
type AIState uint8

const (
	AIIdle AIState = iota
	AIPatrolling
	AICombat
	AIReturning
	AIEvading // зарезервировано, переходов в него нет
)

func (s AIState) String() string {
	switch s {
	case AIIdle:
		return "Idle"
	case AIPatrolling:
		return "Patrolling"
	case AICombat:
		return "Combat"
	case AIReturning:
		return "Returning"
	case AIEvading:
		return "Evading"
	default:
		return "Unknown"
	}
}

// NPCConfig полностью описывает NPC до добавления в реестр
type NPCConfig struct {
	TemplateID   int
	Name         string
	ZoneID       string
	Position     vec.Vec3
	Faction      gamedata.Faction
	Level        int
	Stats        gamedata.CharacterStats
	Hostile      bool
	QuestGiver   bool
	Vendor       bool
	AggroRange   float32
	AttackRange  float32
	Leash        float32
	Patrol       []vec.Vec3
	Window       clock.Window
	SpawnPointID int
}

// NPC неигровой персонаж. Цель хранится как id и может исчезнуть из реестра в любой момент.
type NPC struct {
	Base

	templateID   int
	faction      gamedata.Faction
	level        int
	hostile      bool
	questGiver   bool
	vendor       bool
	spawnPointID int

	aiState     AIState
	spawnOrigin vec.Vec3
	leash       float32
	patrol      []vec.Vec3
	patrolIndex int
	aggroRange  float32
	attackRange float32
	window      clock.Window
	dormant     bool

	targetID    uint64
	lastAttack  time.Time
	combatStart time.Time
	provokedBy  uint64
}

// NewNPC создаёт полностью инициализированного NPC
func NewNPC(id uint64, cfg NPCConfig) *NPC {
	if cfg.Leash <= 0 {
		cfg.Leash = gamedata.DefaultLeashDistance
	}
	if cfg.AggroRange <= 0 {
		cfg.AggroRange = gamedata.DefaultAggroRange
	}
	if cfg.AttackRange <= 0 {
		cfg.AttackRange = gamedata.DefaultAttackRange
	}
	if cfg.Level <= 0 {
		cfg.Level = 1
	}

	patrol := make([]vec.Vec3, len(cfg.Patrol))
	copy(patrol, cfg.Patrol)

	return &NPC{
		Base:         newBase(id, cfg.Name, cfg.ZoneID, cfg.Position, cfg.Stats),
		templateID:   cfg.TemplateID,
		faction:      cfg.Faction,
		level:        cfg.Level,
		hostile:      cfg.Hostile,
		questGiver:   cfg.QuestGiver,
		vendor:       cfg.Vendor,
		spawnPointID: cfg.SpawnPointID,
		aiState:      AIIdle,
		spawnOrigin:  cfg.Position,
		leash:        cfg.Leash,
		patrol:       patrol,
		aggroRange:   cfg.AggroRange,
		attackRange:  cfg.AttackRange,
		window:       cfg.Window,
	}
}

func (n *NPC) Kind() Kind { return KindNPC }

func (n *NPC) Faction() gamedata.Faction { return n.faction }

func (n *NPC) Level() int { return n.level }

func (n *NPC) TemplateID() int { return n.templateID }

func (n *NPC) IsHostile() bool { return n.hostile }

func (n *NPC) IsQuestGiver() bool { return n.questGiver }

func (n *NPC) IsVendor() bool { return n.vendor }

func (n *NPC) SpawnPointID() int { return n.spawnPointID }

func (n *NPC) SpawnOrigin() vec.Vec3 { return n.spawnOrigin }

func (n *NPC) LeashDistance() float32 { return n.leash }

func (n *NPC) AggroRange() float32 { return n.aggroRange }

func (n *NPC) AttackRange() float32 { return n.attackRange }

func (n *NPC) Window() clock.Window { return n.window }

func (n *NPC) HasPatrol() bool { return len(n.patrol) > 0 }

func (n *NPC) AIState() AIState {
	n.mu.RLock()
	defer n.mu.RUnlock()
	return n.aiState
}

func (n *NPC) SetAIState(s AIState) {
	n.mu.Lock()
	n.aiState = s
	n.mu.Unlock()
}

// TargetID id цели, 0 если цели нет
func (n *NPC) TargetID() uint64 {
	n.mu.RLock()
	defer n.mu.RUnlock()
	return n.targetID
}

// Engage назначает цель боя. Состояние AI меняет автомат контроллера.
func (n *NPC) Engage(targetID uint64, now time.Time) {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.aiState != AICombat || n.targetID != targetID {
		n.combatStart = now
	}
	n.targetID = targetID
	n.combatUntil = now.Add(gamedata.OutOfCombatDelay)
}

// Provoke запоминает атаковавшего игрока до следующего шага AI
func (n *NPC) Provoke(attackerID uint64) {
	n.mu.Lock()
	n.provokedBy = attackerID
	n.mu.Unlock()
}

// TakeProvocation забирает отложенную провокацию
func (n *NPC) TakeProvocation() (uint64, bool) {
	n.mu.Lock()
	defer n.mu.Unlock()
	id := n.provokedBy
	n.provokedBy = 0
	return id, id != 0
}

// LeaveCombat сбрасывает цель и отправляет NPC домой
func (n *NPC) LeaveCombat() {
	n.mu.Lock()
	n.targetID = 0
	n.aiState = AIReturning
	n.transform.Velocity = vec.Zero
	n.mu.Unlock()
}

// CombatDuration сколько длится текущий бой
func (n *NPC) CombatDuration(now time.Time) time.Duration {
	n.mu.RLock()
	defer n.mu.RUnlock()
	if n.combatStart.IsZero() {
		return 0
	}
	return now.Sub(n.combatStart)
}

// TryAttack true если прошёл интервал атаки; отмечает время атаки
func (n *NPC) TryAttack(now time.Time, interval time.Duration) bool {
	n.mu.Lock()
	defer n.mu.Unlock()
	if !n.lastAttack.IsZero() && now.Sub(n.lastAttack) < interval {
		return false
	}
	n.lastAttack = now
	return true
}

// ResetAfterReturn восстанавливает здоровье и кулдауны по возвращении к точке появления
func (n *NPC) ResetAfterReturn() {
	n.RestoreFull()
	n.mu.Lock()
	n.lastAttack = time.Time{}
	n.combatStart = time.Time{}
	n.combatUntil = time.Time{}
	n.targetID = 0
	n.mu.Unlock()
}

// NextWaypoint текущая точка патруля
func (n *NPC) NextWaypoint() (vec.Vec3, bool) {
	n.mu.RLock()
	defer n.mu.RUnlock()
	if len(n.patrol) == 0 {
		return vec.Zero, false
	}
	return n.patrol[n.patrolIndex], true
}

// AdvancePatrol переходит к следующей точке, путь цикличен
func (n *NPC) AdvancePatrol() {
	n.mu.Lock()
	if len(n.patrol) > 0 {
		n.patrolIndex = (n.patrolIndex + 1) % len(n.patrol)
	}
	n.mu.Unlock()
}

func (n *NPC) Dormant() bool {
	n.mu.RLock()
	defer n.mu.RUnlock()
	return n.dormant
}

func (n *NPC) SetDormant(d bool) {
	n.mu.Lock()
	n.dormant = d
	if d {
		n.transform.Velocity = vec.Zero
		n.transform.State = MovementIdle
	}
	n.mu.Unlock()
}

// StepTowards перемещает NPC к точке не дальше maxStep и выставляет скорость и состояние
func (n *NPC) StepTowards(target vec.Vec3, speed float32, dt float32) vec.Vec3 {
	n.mu.Lock()
	defer n.mu.Unlock()

	from := n.transform.Position
	to := from.MoveTowards(target, speed*dt)
	n.transform.Position = to
	if dt > 0 {
		n.transform.Velocity = to.Sub(from).Mul(1 / dt)
	}
	if to.Equals(from) {
		n.transform.State = MovementIdle
	} else {
		n.transform.State = MovementRunning
		dir := target.Sub(from)
		n.transform.Yaw = dir.YawDegrees()
	}
	return to
}
