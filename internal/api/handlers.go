package api

import (
	"errors"
	"net/http"
	"sort"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/annel0/eldara-server/internal/auth"
	"github.com/annel0/eldara-server/internal/protocol"
	"github.com/annel0/eldara-server/internal/vec"
)

// MaxAnnouncementLength предел длины системного объявления
const MaxAnnouncementLength = 255

// LoginRequest представляет запрос на вход
type LoginRequest struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
}

// LoginResponse представляет ответ на вход
type LoginResponse struct {
	Success   bool      `json:"success"`
	Token     string    `json:"token,omitempty"`
	ExpiresAt time.Time `json:"expires_at,omitempty"`
	Message   string    `json:"message"`
	AccountID uint64    `json:"account_id,omitempty"`
	IsAdmin   bool      `json:"is_admin,omitempty"`
}

// GenericResponse представляет общий ответ API
type GenericResponse struct {
	Success bool        `json:"success"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}

// ZoneInfo описание зоны для /api/world/zones
type ZoneInfo struct {
	ID                 string `json:"id"`
	Name               string `json:"name"`
	MinLevel           int    `json:"min_level"`
	MaxLevel           int    `json:"max_level"`
	ControllingFaction string `json:"controlling_faction"`
	PvP                bool   `json:"pvp"`
	Contested          bool   `json:"contested"`
	Players            int    `json:"players"`
}

// PlayerInfo персонаж в мире для /api/world/players
type PlayerInfo struct {
	EntityID    uint64   `json:"entity_id"`
	CharacterID uint64   `json:"character_id"`
	Account     string   `json:"account"`
	Name        string   `json:"name"`
	Level       int      `json:"level"`
	Race        string   `json:"race"`
	Class       string   `json:"class"`
	Faction     string   `json:"faction"`
	ZoneID      string   `json:"zone_id"`
	Position    vec.Vec3 `json:"position"`
	Health      int      `json:"health"`
	MaxHealth   int      `json:"max_health"`
	Alive       bool     `json:"alive"`
}

type announceRequest struct {
	Message string `json:"message" binding:"required"`
}

func (rs *RestServer) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":  "ok",
		"server":  rs.cfg.ServerName,
		"uptime":  rs.metrics.GetUptime(),
		"running": rs.cfg.World.Simulation == nil || rs.cfg.World.Simulation.Running(),
	})
}

// handleLogin выдаёт токен сессии по имени и паролю
func (rs *RestServer) handleLogin(c *gin.Context) {
	var req LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, LoginResponse{Message: "Неверный формат запроса"})
		return
	}
	if rs.cfg.Auth == nil {
		c.JSON(http.StatusServiceUnavailable, LoginResponse{Message: "Аутентификация не настроена"})
		return
	}

	sess, err := rs.cfg.Auth.Login(c.Request.Context(), req.Username, req.Password)
	switch {
	case errors.Is(err, auth.ErrInvalidUsername):
		c.JSON(http.StatusBadRequest, LoginResponse{Message: "Недопустимое имя пользователя"})
		return
	case errors.Is(err, auth.ErrInvalidCredentials):
		c.JSON(http.StatusUnauthorized, LoginResponse{Message: "Неверное имя пользователя или пароль"})
		return
	case err != nil:
		rs.logger.Error("❌ Ошибка входа %s через REST: %v", req.Username, err)
		c.JSON(http.StatusInternalServerError, LoginResponse{Message: "Внутренняя ошибка сервера"})
		return
	}

	c.JSON(http.StatusOK, LoginResponse{
		Success:   true,
		Token:     sess.Token,
		ExpiresAt: sess.ExpiresAt,
		Message:   "Успешная авторизация",
		AccountID: sess.User.ID,
		IsAdmin:   sess.User.IsAdmin,
	})
}

func (rs *RestServer) handleWorldStatus(c *gin.Context) {
	w := rs.cfg.World
	status := gin.H{
		"server":      rs.cfg.ServerName,
		"region":      rs.cfg.Region,
		"max_players": rs.cfg.MaxPlayers,
		"uptime":      rs.metrics.GetUptime(),
		"process":     rs.metrics.Snapshot(),
	}
	if w.Router != nil {
		status["connections"] = w.Router.Count()
		status["players_online"] = w.Router.InWorldCount()
	}
	if w.Simulation != nil {
		status["simulation"] = w.Simulation.Stats()
	}
	if w.Entities != nil {
		status["entities"] = w.Entities.Stats()
	}
	if w.Network != nil {
		status["network"] = w.Network.GetSnapshot()
	}
	if w.Bus != nil {
		status["event_bus"] = w.Bus.Metrics()
	}
	c.JSON(http.StatusOK, GenericResponse{Success: true, Message: "ok", Data: status})
}

func (rs *RestServer) handleZones(c *gin.Context) {
	w := rs.cfg.World
	if w.Zones == nil {
		c.JSON(http.StatusOK, GenericResponse{Success: true, Message: "ok", Data: []ZoneInfo{}})
		return
	}

	population := make(map[string]int)
	if w.Router != nil {
		for _, s := range w.Router.Sessions() {
			if s.InWorld() {
				population[s.ZoneID]++
			}
		}
	}

	zones := make([]ZoneInfo, 0, w.Zones.Count())
	for _, z := range w.Zones.All() {
		zones = append(zones, ZoneInfo{
			ID:                 z.ID,
			Name:               z.Name,
			MinLevel:           z.MinLevel,
			MaxLevel:           z.MaxLevel,
			ControllingFaction: z.ControllingFaction.String(),
			PvP:                z.PvPEnabled,
			Contested:          z.Contested,
			Players:            population[z.ID],
		})
	}
	c.JSON(http.StatusOK, GenericResponse{Success: true, Message: "ok", Data: zones})
}

// handlePlayers список персонажей в мире; ?zone= фильтрует по зоне
func (rs *RestServer) handlePlayers(c *gin.Context) {
	w := rs.cfg.World
	players := make([]PlayerInfo, 0)
	if w.Router == nil || w.Entities == nil {
		c.JSON(http.StatusOK, GenericResponse{Success: true, Message: "ok", Data: players})
		return
	}

	zoneFilter := c.Query("zone")
	for _, s := range w.Router.Sessions() {
		if !s.InWorld() {
			continue
		}
		p, ok := w.Entities.GetPlayer(s.PlayerID)
		if !ok {
			continue
		}
		if zoneFilter != "" && p.ZoneID() != zoneFilter {
			continue
		}
		hp, maxHP := p.Health()
		players = append(players, PlayerInfo{
			EntityID:    p.ID(),
			CharacterID: p.CharacterID(),
			Account:     s.Username,
			Name:        p.Name(),
			Level:       p.Level(),
			Race:        p.Race().String(),
			Class:       p.Class().String(),
			Faction:     p.Faction().String(),
			ZoneID:      p.ZoneID(),
			Position:    p.Position(),
			Health:      hp,
			MaxHealth:   maxHP,
			Alive:       p.IsAlive(),
		})
	}
	sort.Slice(players, func(i, j int) bool { return players[i].EntityID < players[j].EntityID })
	c.JSON(http.StatusOK, GenericResponse{Success: true, Message: "ok", Data: players})
}

// handleAnnounce рассылает системное сообщение всем игрокам в мире
func (rs *RestServer) handleAnnounce(c *gin.Context) {
	var req announceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, GenericResponse{Message: "Неверный формат запроса"})
		return
	}
	n, err := rs.announce(req.Message)
	if err != nil {
		c.JSON(http.StatusBadRequest, GenericResponse{Message: err.Error()})
		return
	}
	c.JSON(http.StatusOK, GenericResponse{Success: true, Message: "Объявление отправлено", Data: gin.H{"recipients": n}})
}

var errBadAnnouncement = errors.New("объявление пустое или длиннее 255 символов")

func (rs *RestServer) announce(text string) (int, error) {
	text = strings.TrimSpace(text)
	if text == "" || len([]rune(text)) > MaxAnnouncementLength {
		return 0, errBadAnnouncement
	}
	router := rs.cfg.World.Router
	if router == nil {
		return 0, nil
	}
	var serverTime int64
	if rs.cfg.World.Simulation != nil {
		serverTime = rs.cfg.World.Simulation.ServerTime()
	}
	router.BroadcastToAll(&protocol.ChatMessage{
		Channel:    protocol.ChatSystem,
		SenderName: "System",
		Message:    text,
		Timestamp:  serverTime,
	}, 0)
	rs.logger.Info("📢 Объявление: %s", text)
	return router.InWorldCount(), nil
}
