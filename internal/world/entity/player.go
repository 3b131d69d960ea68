package entity

import (
	"sort"
	"time"

	"github.com/annel0/eldara-server/internal/gamedata"
	"github.com/annel0/eldara-server/internal/vec"
)

// CastCheck результат проверки таймеров и ресурса перед применением способности
type CastCheck int

const (
	CastOK CastCheck = iota
	CastOnGlobalCooldown
	CastOnCooldown
	CastInsufficientResource
)

// Player сущность игрока. Связь с соединением хранится только как id,
// само соединение ищется через роутер сессий.
type Player struct {
	Base

	character *gamedata.CharacterData
	pool      gamedata.Pool
	known     map[int]struct{}
	cooldowns map[int]time.Time
	gcdUntil  time.Time

	connID        uint64
	lastInputSeq  uint32
	lastInputTime time.Time
}

// NewPlayer создаёт сущность игрока из снимка персонажа
func NewPlayer(id uint64, connID uint64, data *gamedata.CharacterData) *Player {
	c := data.Clone()
	pos := vec.New(c.Position.X, c.Position.Y, c.Position.Z)

	p := &Player{
		Base:      newBase(id, c.Name, c.Position.ZoneID, pos, c.Stats),
		character: c,
		pool:      gamedata.PoolForResource(gamedata.ResourceTypeForClass(c.Class)),
		known:     gamedata.KnownAbilityIDs(c.Class, c.Level),
		cooldowns: make(map[int]time.Time),
		connID:    connID,
	}
	p.transform.Yaw = c.Position.RotationYaw
	p.transform.Pitch = c.Position.RotationPitch
	return p
}

func (p *Player) Kind() Kind { return KindPlayer }

func (p *Player) Faction() gamedata.Faction { return p.character.Faction }

func (p *Player) Class() gamedata.Class { return p.character.Class }

func (p *Player) Race() gamedata.Race { return p.character.Race }

func (p *Player) Level() int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.character.Level
}

// CharacterID идентификатор персонажа в хранилище
func (p *Player) CharacterID() uint64 { return p.character.CharacterID }

// AccountID владелец персонажа
func (p *Player) AccountID() uint64 { return p.character.AccountID }

// ConnectionID id соединения-владельца
func (p *Player) ConnectionID() uint64 { return p.connID }

// Pool пул ресурса, из которого платятся способности класса
func (p *Player) Pool() gamedata.Pool { return p.pool }

// Knows true если способность известна персонажу
func (p *Player) Knows(abilityID int) bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	_, ok := p.known[abilityID]
	return ok
}

// KnownAbilities отсортированный список известных способностей
func (p *Player) KnownAbilities() []int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	out := make([]int, 0, len(p.known))
	for id := range p.known {
		out = append(out, id)
	}
	sort.Ints(out)
	return out
}

// Character снимок персонажа с актуальными характеристиками и позицией
func (p *Player) Character() *gamedata.CharacterData {
	p.mu.RLock()
	defer p.mu.RUnlock()

	c := p.character.Clone()
	c.Stats = p.stats.Clone()
	c.Position = gamedata.Position{
		ZoneID:        p.zoneID,
		X:             p.transform.Position.X,
		Y:             p.transform.Position.Y,
		Z:             p.transform.Position.Z,
		RotationYaw:   p.transform.Yaw,
		RotationPitch: p.transform.Pitch,
	}
	return c
}

// RecordInput запоминает последний обработанный номер ввода
func (p *Player) RecordInput(seq uint32, now time.Time) {
	p.mu.Lock()
	if seq > p.lastInputSeq {
		p.lastInputSeq = seq
	}
	p.lastInputTime = now
	p.mu.Unlock()
}

// LastInput возвращает последний обработанный номер ввода и время
func (p *Player) LastInput() (uint32, time.Time) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.lastInputSeq, p.lastInputTime
}

// CheckCast проверяет GCD, кулдаун и ресурс без изменения состояния
func (p *Player) CheckCast(a *gamedata.Ability, now time.Time) CastCheck {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.checkCastLocked(a, now)
}

func (p *Player) checkCastLocked(a *gamedata.Ability, now time.Time) CastCheck {
	if a.TriggersGCD && now.Before(p.gcdUntil) {
		return CastOnGlobalCooldown
	}
	if until, ok := p.cooldowns[a.ID]; ok && now.Before(until) {
		return CastOnCooldown
	}
	if p.stats.PoolValue(p.pool) < a.ResourceCost {
		return CastInsufficientResource
	}
	return CastOK
}

// BeginCast атомарно проверяет таймеры и ресурс, списывает стоимость и ставит кулдауны.
// При любом отказе состояние игрока не меняется.
func (p *Player) BeginCast(a *gamedata.Ability, now time.Time) CastCheck {
	p.mu.Lock()
	defer p.mu.Unlock()

	if res := p.checkCastLocked(a, now); res != CastOK {
		return res
	}
	p.stats.SpendPool(p.pool, a.ResourceCost)
	if a.Cooldown > 0 {
		p.cooldowns[a.ID] = now.Add(seconds(a.Cooldown))
	}
	if a.TriggersGCD {
		p.gcdUntil = now.Add(seconds(a.GlobalCooldown))
	}
	return CastOK
}

// CooldownRemaining оставшееся время кулдауна способности
func (p *Player) CooldownRemaining(abilityID int, now time.Time) time.Duration {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if until, ok := p.cooldowns[abilityID]; ok && now.Before(until) {
		return until.Sub(now)
	}
	return 0
}

// GrantRewards начисляет опыт, золото и репутацию
func (p *Player) GrantRewards(experience int, gold int, faction *gamedata.Faction, reputation int) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.character.Experience += int64(experience)
	p.character.Gold += int64(gold)
	if faction != nil && reputation != 0 {
		if p.character.FactionStandings == nil {
			p.character.FactionStandings = make(map[gamedata.Faction]int)
		}
		p.character.FactionStandings[*faction] += reputation
	}
}

// Respawn возвращает мёртвого игрока к точке появления с полными пулами
func (p *Player) Respawn(zoneID string, pos vec.Vec3) {
	p.Relocate(zoneID, pos)
	p.RestoreFull()
	p.mu.Lock()
	p.combatUntil = time.Time{}
	p.mu.Unlock()
}

func seconds(s float32) time.Duration {
	return time.Duration(float64(s) * float64(time.Second))
}
