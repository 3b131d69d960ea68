package zone

import (
	"sort"

	"github.com/annel0/eldara-server/internal/gamedata"
	"github.com/annel0/eldara-server/internal/vec"
)

// Zone описание зоны, доступное остальным подсистемам только на чтение
type Zone struct {
	ID                 string
	Name               string
	Description        string
	MinLevel           int
	MaxLevel           int
	Type               gamedata.ZoneType
	ControllingFaction gamedata.Faction
	PvPEnabled         bool
	Contested          bool
	SafeSpawn          vec.Vec3
	Min                vec.Vec3
	Max                vec.Vec3
}

// Contains проверяет, что точка лежит внутри границ зоны (включительно)
func (z *Zone) Contains(p vec.Vec3) bool {
	return p.X >= z.Min.X && p.X <= z.Max.X &&
		p.Y >= z.Min.Y && p.Y <= z.Max.Y &&
		p.Z >= z.Min.Z && p.Z <= z.Max.Z
}

// Directory статический справочник зон. Заполняется при создании и далее не меняется,
// поэтому чтение из разных горутин не требует блокировок.
type Directory struct {
	zones map[string]*Zone
}

// NewDirectory строит справочник из каталога gamedata.Zones
func NewDirectory() *Directory {
	return NewDirectoryFrom(gamedata.Zones)
}

// NewDirectoryFrom строит справочник из произвольного набора описаний
func NewDirectoryFrom(defs map[string]gamedata.ZoneDefinition) *Directory {
	d := &Directory{zones: make(map[string]*Zone, len(defs))}
	for id, def := range defs {
		d.zones[id] = &Zone{
			ID:                 def.ID,
			Name:               def.Name,
			Description:        def.Description,
			MinLevel:           def.MinLevel,
			MaxLevel:           def.MaxLevel,
			Type:               def.Type,
			ControllingFaction: def.ControllingFaction,
			PvPEnabled:         def.PvPEnabled,
			Contested:          def.Contested,
			SafeSpawn:          vec.New(def.SafeSpawn[0], def.SafeSpawn[1], def.SafeSpawn[2]),
			Min:                vec.New(def.Min[0], def.Min[1], def.Min[2]),
			Max:                vec.New(def.Max[0], def.Max[1], def.Max[2]),
		}
	}
	return d
}

// Get возвращает зону по id
func (d *Directory) Get(id string) (*Zone, bool) {
	z, ok := d.zones[id]
	return z, ok
}

// Count количество зон
func (d *Directory) Count() int {
	return len(d.zones)
}

// All все зоны, отсортированные по id
func (d *Directory) All() []*Zone {
	out := make([]*Zone, 0, len(d.zones))
	for _, z := range d.zones {
		out = append(out, z)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// IsPositionInZone проверяет существование зоны и границы
func (d *Directory) IsPositionInZone(id string, p vec.Vec3) bool {
	z, ok := d.zones[id]
	return ok && z.Contains(p)
}

// SafeSpawn точка возрождения зоны
func (d *Directory) SafeSpawn(id string) (vec.Vec3, bool) {
	z, ok := d.zones[id]
	if !ok {
		return vec.Zero, false
	}
	return z.SafeSpawn, true
}

// RespawnPoint точка возрождения в зоне zoneID. Для неизвестной зоны
// возвращается стартовая зона фракции.
func (d *Directory) RespawnPoint(zoneID string, f gamedata.Faction) (string, vec.Vec3) {
	if pos, ok := d.SafeSpawn(zoneID); ok {
		return zoneID, pos
	}
	id, spawn := gamedata.StarterZone(f)
	return id, vec.New(spawn[0], spawn[1], spawn[2])
}

// IsPvP разрешён ли PvP в зоне
func (d *Directory) IsPvP(id string) bool {
	z, ok := d.zones[id]
	return ok && z.PvPEnabled
}
