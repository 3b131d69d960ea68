package spawn

import (
	"github.com/annel0/eldara-server/internal/gamedata"
	"github.com/annel0/eldara-server/internal/vec"
	"github.com/annel0/eldara-server/internal/world/clock"
)

// PointConfig статическое описание точки появления
type PointConfig struct {
	ID              int
	ZoneID          string
	Position        vec.Vec3
	TemplateID      int
	RespawnSeconds  float32 // 0 - DefaultRespawnSeconds
	MaxAliveInZone  int     // 0 - без ограничения
	Window          clock.Window
	Patrol          []vec.Vec3
	Hostile         *bool // переопределяет флаг шаблона
	Level           int   // 0 - уровень из диапазона шаблона
	DisableJitter   bool
	InitiallyWaited bool // true - первая генерация ждёт полный интервал
}

func boolPtr(v bool) *bool { return &v }

// DefaultPoints стартовое население мира. Briarwatch описан в каталоге,
// но пока не заселяется.
func DefaultPoints() []PointConfig {
	return []PointConfig{
		// Thornveil Enclave - стартовая зона Sylvaen
		{ID: 1, ZoneID: gamedata.ZoneThornveilEnclave, Position: vec.New(0, 0, 0),
			TemplateID: gamedata.NPCElderTharivol, DisableJitter: true},
		{ID: 2, ZoneID: gamedata.ZoneThornveilEnclave, Position: vec.New(8, 4, 0),
			TemplateID: gamedata.NPCInstructorLethril, DisableJitter: true},
		{ID: 3, ZoneID: gamedata.ZoneThornveilEnclave, Position: vec.New(42, 18, 0),
			TemplateID: gamedata.NPCScoutMaerith, DisableJitter: true},
		{ID: 4, ZoneID: gamedata.ZoneThornveilEnclave, Position: vec.New(-20, 10, 0),
			TemplateID: gamedata.NPCWorldrootSentinel,
			Patrol:     []vec.Vec3{vec.New(-20, 10, 0), vec.New(-20, 30, 0), vec.New(0, 30, 0), vec.New(0, 10, 0)}},
		{ID: 5, ZoneID: gamedata.ZoneThornveilEnclave, Position: vec.New(60, 30, 0),
			TemplateID: gamedata.NPCBlightedThornling, MaxAliveInZone: 4},
		{ID: 6, ZoneID: gamedata.ZoneThornveilEnclave, Position: vec.New(66, 24, 0),
			TemplateID: gamedata.NPCBlightedThornling, MaxAliveInZone: 4},
		{ID: 7, ZoneID: gamedata.ZoneThornveilEnclave, Position: vec.New(72, 36, 0),
			TemplateID: gamedata.NPCBlightedThornling, MaxAliveInZone: 4, RespawnSeconds: 45},
		// после заката из рощи выходят дополнительные ростки
		{ID: 8, ZoneID: gamedata.ZoneThornveilEnclave, Position: vec.New(70, 44, 0),
			TemplateID: gamedata.NPCBlightedThornling, MaxAliveInZone: 6, Window: clock.NightOnly},
		{ID: 9, ZoneID: gamedata.ZoneThornveilEnclave, Position: vec.New(78, 40, 0),
			TemplateID: gamedata.NPCBlightedThornling, MaxAliveInZone: 6, Window: clock.NightOnly},

		// Borderkeep - стартовая зона людей
		{ID: 20, ZoneID: gamedata.ZoneBorderkeep, Position: vec.New(-4, 2, 0),
			TemplateID: gamedata.NPCBorderkeepGuard, DisableJitter: true},
		{ID: 21, ZoneID: gamedata.ZoneBorderkeep, Position: vec.New(4, 2, 0),
			TemplateID: gamedata.NPCBorderkeepGuard, DisableJitter: true},
		{ID: 22, ZoneID: gamedata.ZoneBorderkeep, Position: vec.New(0, 40, 0),
			TemplateID: gamedata.NPCBorderkeepGuard,
			Patrol:     []vec.Vec3{vec.New(0, 40, 0), vec.New(30, 40, 0)}},
		{ID: 23, ZoneID: gamedata.ZoneBorderkeep, Position: vec.New(50, -30, 0),
			TemplateID: gamedata.NPCBlightedThornling, MaxAliveInZone: 2, Hostile: boolPtr(true), Window: clock.NightOnly},

		// Greenwatch - тренировочная роща
		{ID: 30, ZoneID: gamedata.ZoneGreenwatch, Position: vec.New(24, -4, 0),
			TemplateID: gamedata.NPCWorldrootSentinel, DisableJitter: true},
		{ID: 31, ZoneID: gamedata.ZoneGreenwatch, Position: vec.New(30, -12, 0),
			TemplateID: gamedata.NPCBlightedThornling, MaxAliveInZone: 3, RespawnSeconds: 20},
	}
}
