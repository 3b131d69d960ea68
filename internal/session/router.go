// Package session связывает соединения, сущности игроков и зоны
// и рассылает пакеты по этим связям.
package session

import (
	"errors"
	"sync"

	"github.com/annel0/eldara-server/internal/logging"
	"github.com/annel0/eldara-server/internal/protocol"
)

var (
	ErrUnknownConnection = errors.New("unknown connection")
	ErrAccountOnline     = errors.New("account already online")
)

// Conn соединение клиента с точки зрения роутера
type Conn interface {
	ID() uint64
	// Send ставит пакет в очередь и отправляет. false если соединение закрыто.
	Send(p protocol.Packet) bool
	RemoteAddr() string
}

// Session снимок связей одного соединения
type Session struct {
	ConnID      uint64
	AccountID   uint64
	Username    string
	PlayerID    uint64
	CharacterID uint64
	ZoneID      string
}

// Authenticated прошёл ли клиент вход
func (s Session) Authenticated() bool { return s.AccountID != 0 }

// InWorld управляет ли клиент персонажем в мире
func (s Session) InWorld() bool { return s.PlayerID != 0 }

type binding struct {
	conn Conn
	Session
}

// Router реестр соединений: соединение <-> игрок <-> зона
type Router struct {
	mu       sync.RWMutex
	conns    map[uint64]*binding
	byPlayer map[uint64]uint64 // id сущности игрока -> id соединения
	logger   *logging.Logger
}

// NewRouter создаёт пустой роутер
func NewRouter() *Router {
	return &Router{
		conns:    make(map[uint64]*binding),
		byPlayer: make(map[uint64]uint64),
		logger:   logging.GetNetworkLogger(),
	}
}

// Register добавляет соединение
func (r *Router) Register(c Conn) {
	r.mu.Lock()
	r.conns[c.ID()] = &binding{conn: c, Session: Session{ConnID: c.ID()}}
	r.mu.Unlock()
	r.logger.Debug("🔗 Соединение %d (%s) зарегистрировано", c.ID(), c.RemoteAddr())
}

// Unregister удаляет соединение и возвращает его последние связи
func (r *Router) Unregister(connID uint64) (Session, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	b, ok := r.conns[connID]
	if !ok {
		return Session{}, false
	}
	delete(r.conns, connID)
	if b.PlayerID != 0 {
		delete(r.byPlayer, b.PlayerID)
	}
	return b.Session, true
}

// Session связи соединения
func (r *Router) Session(connID uint64) (Session, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	b, ok := r.conns[connID]
	if !ok {
		return Session{}, false
	}
	return b.Session, true
}

// Authenticate привязывает аккаунт к соединению. Проверка второго входа
// и привязка выполняются под одной блокировкой.
func (r *Router) Authenticate(connID, accountID uint64, username string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	b, ok := r.conns[connID]
	if !ok {
		return ErrUnknownConnection
	}
	for id, other := range r.conns {
		if id != connID && other.AccountID == accountID {
			return ErrAccountOnline
		}
	}
	b.AccountID = accountID
	b.Username = username
	return nil
}

// Attach привязывает сущность игрока и зону к соединению
func (r *Router) Attach(connID, playerID, characterID uint64, zoneID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	b, ok := r.conns[connID]
	if !ok {
		return false
	}
	if b.PlayerID != 0 {
		delete(r.byPlayer, b.PlayerID)
	}
	b.PlayerID = playerID
	b.CharacterID = characterID
	b.ZoneID = zoneID
	r.byPlayer[playerID] = connID
	return true
}

// Detach отвязывает игрока от соединения и возвращает прежние связи
func (r *Router) Detach(connID uint64) (Session, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	b, ok := r.conns[connID]
	if !ok || b.PlayerID == 0 {
		return Session{}, false
	}
	prev := b.Session
	delete(r.byPlayer, b.PlayerID)
	b.PlayerID = 0
	b.CharacterID = 0
	b.ZoneID = ""
	return prev, true
}

// SetZone переносит игрока соединения в другую зону
func (r *Router) SetZone(connID uint64, zoneID string) {
	r.mu.Lock()
	if b, ok := r.conns[connID]; ok && b.PlayerID != 0 {
		b.ZoneID = zoneID
	}
	r.mu.Unlock()
}

// ConnectionForPlayer соединение, управляющее сущностью игрока
func (r *Router) ConnectionForPlayer(playerID uint64) (Conn, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	connID, ok := r.byPlayer[playerID]
	if !ok {
		return nil, false
	}
	b, ok := r.conns[connID]
	if !ok {
		return nil, false
	}
	return b.conn, true
}

// Count число соединений
func (r *Router) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.conns)
}

// InWorldCount число соединений с персонажем в мире
func (r *Router) InWorldCount() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.byPlayer)
}

// Sessions снимки всех соединений
func (r *Router) Sessions() []Session {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Session, 0, len(r.conns))
	for _, b := range r.conns {
		out = append(out, b.Session)
	}
	return out
}

// collect выбирает соединения под RLock; отправка идёт уже без блокировки
func (r *Router) collect(pred func(*binding) bool) []Conn {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []Conn
	for _, b := range r.conns {
		if pred(b) {
			out = append(out, b.conn)
		}
	}
	return out
}

// SendTo отправляет пакет одному соединению
func (r *Router) SendTo(connID uint64, p protocol.Packet) bool {
	r.mu.RLock()
	b, ok := r.conns[connID]
	r.mu.RUnlock()
	if !ok {
		return false
	}
	return b.conn.Send(p)
}

// SendToPlayer отправляет пакет владельцу сущности игрока
func (r *Router) SendToPlayer(playerID uint64, p protocol.Packet) bool {
	c, ok := r.ConnectionForPlayer(playerID)
	if !ok {
		return false
	}
	return c.Send(p)
}

// BroadcastToZone рассылает пакет всем игрокам зоны, кроме excludeConnID (0 - никого не исключать)
func (r *Router) BroadcastToZone(zoneID string, p protocol.Packet, excludeConnID uint64) {
	conns := r.collect(func(b *binding) bool {
		return b.PlayerID != 0 && b.ZoneID == zoneID && b.ConnID != excludeConnID
	})
	for _, c := range conns {
		c.Send(p)
	}
}

// BroadcastToAll рассылает пакет всем соединениям с персонажем в мире
func (r *Router) BroadcastToAll(p protocol.Packet, excludeConnID uint64) {
	conns := r.collect(func(b *binding) bool {
		return b.PlayerID != 0 && b.ConnID != excludeConnID
	})
	for _, c := range conns {
		c.Send(p)
	}
}
