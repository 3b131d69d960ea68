package session

import (
	"github.com/annel0/eldara-server/internal/protocol"
	"github.com/annel0/eldara-server/internal/world/entity"
)

// WatchEntities рассылает появление и исчезновение сущностей игрокам их зоны
func (r *Router) WatchEntities(entities *entity.Manager) {
	entities.OnEntityAdded(func(e entity.Entity) {
		r.BroadcastToZone(e.ZoneID(), protocol.NewEntitySpawn(e), ownerConn(e))
	})
	entities.OnEntityRemoved(func(e entity.Entity) {
		r.BroadcastToZone(e.ZoneID(), &protocol.EntityDespawn{EntityID: e.ID()}, ownerConn(e))
	})
}

func ownerConn(e entity.Entity) uint64 {
	if p, ok := e.(*entity.Player); ok {
		return p.ConnectionID()
	}
	return 0
}
