package session

import (
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/annel0/eldara-server/internal/gamedata"
	"github.com/annel0/eldara-server/internal/protocol"
	"github.com/annel0/eldara-server/internal/world/entity"
)

type fakeConn struct {
	id     uint64
	mu     sync.Mutex
	got    []protocol.Packet
	closed bool
}

func (c *fakeConn) ID() uint64         { return c.id }
func (c *fakeConn) RemoteAddr() string { return fmt.Sprintf("fake:%d", c.id) }

func (c *fakeConn) Send(p protocol.Packet) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return false
	}
	c.got = append(c.got, p)
	return true
}

func (c *fakeConn) packets() []protocol.Packet {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]protocol.Packet(nil), c.got...)
}

const (
	zoneA = gamedata.ZoneThornveilEnclave
	zoneB = gamedata.ZoneBorderkeep
)

func setup(t *testing.T) (*Router, []*fakeConn) {
	r := NewRouter()
	conns := []*fakeConn{{id: 1}, {id: 2}, {id: 3}, {id: 4}}
	for _, c := range conns {
		r.Register(c)
	}
	require.NoError(t, r.Authenticate(1, 100, "a"))
	require.True(t, r.Attach(1, 11, 1001, zoneA))
	require.True(t, r.Attach(2, 12, 1002, zoneA))
	require.True(t, r.Attach(3, 13, 1003, zoneB))
	// соединение 4 без персонажа
	return r, conns
}

func TestBroadcastToZoneExcludesSender(t *testing.T) {
	r, conns := setup(t)

	msg := &protocol.ChatMessage{Message: "hi"}
	r.BroadcastToZone(zoneA, msg, 1)

	assert.Empty(t, conns[0].packets())
	assert.Equal(t, []protocol.Packet{msg}, conns[1].packets())
	assert.Empty(t, conns[2].packets(), "другая зона")
	assert.Empty(t, conns[3].packets(), "вне мира")

	r.BroadcastToZone(zoneA, msg, 0)
	assert.Len(t, conns[0].packets(), 1)
}

func TestBroadcastToAllAndSendTo(t *testing.T) {
	r, conns := setup(t)

	r.BroadcastToAll(&protocol.ChatMessage{Channel: protocol.ChatSystem}, 0)
	for _, c := range conns[:3] {
		assert.Len(t, c.packets(), 1)
	}
	assert.Empty(t, conns[3].packets())

	assert.True(t, r.SendTo(4, &protocol.LoginResponse{}))
	assert.Len(t, conns[3].packets(), 1)
	assert.False(t, r.SendTo(99, &protocol.LoginResponse{}))

	assert.True(t, r.SendToPlayer(13, &protocol.EntityDespawn{EntityID: 1}))
	assert.Len(t, conns[2].packets(), 2)
}

func TestAttachDetachAndZoneChange(t *testing.T) {
	r, _ := setup(t)

	c, ok := r.ConnectionForPlayer(12)
	require.True(t, ok)
	assert.Equal(t, uint64(2), c.ID())
	assert.Equal(t, 3, r.InWorldCount())

	r.SetZone(2, zoneB)
	s, _ := r.Session(2)
	assert.Equal(t, zoneB, s.ZoneID)

	prev, ok := r.Detach(2)
	require.True(t, ok)
	assert.Equal(t, uint64(12), prev.PlayerID)
	_, ok = r.ConnectionForPlayer(12)
	assert.False(t, ok)
	_, ok = r.Detach(2)
	assert.False(t, ok)

	s, _ = r.Session(1)
	assert.True(t, s.Authenticated())
	assert.True(t, s.InWorld())
	assert.ErrorIs(t, r.Authenticate(2, 100, "a"), ErrAccountOnline)
	assert.NoError(t, r.Authenticate(1, 100, "a"), "повторная привязка того же соединения")
	assert.ErrorIs(t, r.Authenticate(99, 200, "b"), ErrUnknownConnection)

	last, ok := r.Unregister(1)
	require.True(t, ok)
	assert.Equal(t, uint64(11), last.PlayerID)
	_, ok = r.ConnectionForPlayer(11)
	assert.False(t, ok)
	assert.Equal(t, 3, r.Count())
}

func TestSendAfterCloseIsNoop(t *testing.T) {
	r, conns := setup(t)
	conns[1].closed = true

	r.BroadcastToZone(zoneA, &protocol.ChatMessage{}, 0)
	assert.False(t, r.SendToPlayer(12, &protocol.ChatMessage{}))
	assert.Len(t, conns[0].packets(), 1)
}

func TestWatchEntitiesBroadcastsSpawnAndDespawn(t *testing.T) {
	r, conns := setup(t)
	entities := entity.NewManager()
	r.WatchEntities(entities)

	data := gamedata.NewCharacter(100, gamedata.CharacterDefinition{
		Name: "Sylwen", Race: gamedata.RaceSylvaen, Class: gamedata.ClassMemoryWarden, Faction: gamedata.FactionVerdantCircles,
	}, time.Unix(0, 0))
	data.Position.ZoneID = zoneA
	player := entity.NewPlayer(11, 1, data)
	require.True(t, entities.Add(player))

	assert.Empty(t, conns[0].packets(), "владельцу появление не шлётся")
	require.Len(t, conns[1].packets(), 1)
	spawn, ok := conns[1].packets()[0].(*protocol.EntitySpawn)
	require.True(t, ok)
	assert.Equal(t, uint64(11), spawn.EntityID)

	npc := entity.NewNPC(50, entity.NPCConfig{Name: "Guard", ZoneID: zoneB, Stats: gamedata.DefaultStats()})
	require.True(t, entities.Add(npc))
	require.True(t, entities.Remove(50))
	got := conns[2].packets()
	require.Len(t, got, 2)
	assert.IsType(t, &protocol.EntitySpawn{}, got[0])
	assert.Equal(t, &protocol.EntityDespawn{EntityID: 50}, got[1])
}

func TestAuthenticateBindsAccountOnce(t *testing.T) {
	r := NewRouter()
	const n = 32
	for i := 1; i <= n; i++ {
		r.Register(&fakeConn{id: uint64(i)})
	}

	var (
		wg  sync.WaitGroup
		won atomic.Int32
	)
	for i := 1; i <= n; i++ {
		wg.Add(1)
		go func(connID uint64) {
			defer wg.Done()
			if err := r.Authenticate(connID, 100, "a"); err == nil {
				won.Add(1)
			} else {
				assert.ErrorIs(t, err, ErrAccountOnline)
			}
		}(uint64(i))
	}
	wg.Wait()

	assert.EqualValues(t, 1, won.Load())
	bound := 0
	for _, s := range r.Sessions() {
		if s.AccountID == 100 {
			bound++
		}
	}
	assert.Equal(t, 1, bound)
}
