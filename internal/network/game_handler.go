package network

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/annel0/eldara-server/internal/auth"
	"github.com/annel0/eldara-server/internal/combat"
	"github.com/annel0/eldara-server/internal/eventbus"
	"github.com/annel0/eldara-server/internal/gamedata"
	"github.com/annel0/eldara-server/internal/logging"
	"github.com/annel0/eldara-server/internal/protocol"
	"github.com/annel0/eldara-server/internal/quest"
	"github.com/annel0/eldara-server/internal/session"
	"github.com/annel0/eldara-server/internal/storage"
	"github.com/annel0/eldara-server/internal/vec"
	"github.com/annel0/eldara-server/internal/world/entity"
	"github.com/annel0/eldara-server/internal/world/zone"
)

const (
	// MaxChatLength максимальная длина сообщения чата в символах
	MaxChatLength = 255
	storeTimeout  = 5 * time.Second
	eventSource   = "world"
)

// ErrUnexpectedPacket клиент прислал пакет, который отправляет только сервер
var ErrUnexpectedPacket = errors.New("unexpected client packet")

// GameHandlerDeps зависимости обработчика. Saves и Bus необязательны.
type GameHandlerDeps struct {
	Router     *session.Router
	Entities   *entity.Manager
	Zones      *zone.Directory
	Movement   *PredictionService
	Combat     *combat.Executor
	Quests     *quest.Engine
	Characters storage.CharacterStore
	Saves      *storage.SaveBatcher
	Auth       *auth.Authenticator
	Bus        eventbus.EventBus
	ServerTime func() int64
}

// GameHandler игровая логика соединения: вход, персонажи, мир, движение, бой, чат, квесты
type GameHandler struct {
	GameHandlerDeps
	tracer trace.Tracer
	logger *logging.Logger
}

// NewGameHandler создаёт обработчик и подписывает его на убийства и завершение квестов
func NewGameHandler(deps GameHandlerDeps) *GameHandler {
	if deps.ServerTime == nil {
		start := time.Now()
		deps.ServerTime = func() int64 { return time.Since(start).Milliseconds() }
	}
	h := &GameHandler{
		GameHandlerDeps: deps,
		tracer:          otel.Tracer("github.com/annel0/eldara-server/internal/network"),
		logger:          logging.GetGameLogger(),
	}
	if deps.Combat != nil {
		deps.Combat.OnKill(h.onKill)
	}
	if deps.Quests != nil {
		deps.Quests.OnComplete(h.onQuestComplete)
	}
	return h
}

func (h *GameHandler) OnConnect(c *Connection) {
	h.Router.Register(c)
}

func (h *GameHandler) OnDisconnect(c *Connection, reason string) {
	h.leaveWorld(c.ID(), reason)
	if s, ok := h.Router.Unregister(c.ID()); ok && s.Authenticated() {
		h.logger.Info("👋 Аккаунт %s (%d) отключился: %s", s.Username, s.AccountID, reason)
	}
}

// HandlePacket разбирает пакет по типу. Отказы по правилам игры уходят клиенту ответом,
// ошибка возвращается только при нарушении протокола.
func (h *GameHandler) HandlePacket(c *Connection, p protocol.Packet) error {
	ctx, span := h.tracer.Start(context.Background(), "network.handle",
		trace.WithAttributes(
			attribute.String("packet.type", p.Type().String()),
			attribute.Int64("conn.id", int64(c.ID())),
		))
	defer span.End()

	var err error
	switch pkt := p.(type) {
	case *protocol.LoginRequest:
		h.handleLogin(ctx, c, pkt)
	case *protocol.CharacterListRequest:
		h.handleCharacterList(ctx, c)
	case *protocol.CreateCharacterRequest:
		h.handleCreateCharacter(ctx, c, pkt)
	case *protocol.SelectCharacterRequest:
		h.handleSelectCharacter(ctx, c, pkt)
	case *protocol.MovementInput:
		h.handleMovement(c, pkt)
	case *protocol.UseAbilityRequest:
		h.handleUseAbility(c, pkt)
	case *protocol.ChatMessage:
		h.handleChat(c, pkt)
	case *protocol.LeaveWorld:
		h.handleLeaveWorld(c)
	case *protocol.QuestAcceptRequest:
		h.handleQuestAccept(c, pkt)
	case *protocol.QuestDialogueRequest:
		h.handleQuestDialogue(c, pkt)
	default:
		err = fmt.Errorf("%w: %s", ErrUnexpectedPacket, p.Type())
	}
	if err != nil {
		span.RecordError(err)
	}
	return err
}

// ===== Вход и персонажи =====

func (h *GameHandler) handleLogin(ctx context.Context, c *Connection, req *protocol.LoginRequest) {
	if s, _ := h.Router.Session(c.ID()); s.Authenticated() {
		c.Send(&protocol.LoginResponse{Result: protocol.InvalidRequest, Message: "Вход уже выполнен"})
		return
	}

	ctx, cancel := context.WithTimeout(ctx, storeTimeout)
	defer cancel()

	sess, err := h.Auth.Login(ctx, req.Username, req.PasswordHash)
	switch {
	case errors.Is(err, auth.ErrInvalidUsername):
		c.Send(&protocol.LoginResponse{Result: protocol.InvalidData, Message: "Недопустимое имя пользователя"})
		return
	case errors.Is(err, auth.ErrInvalidCredentials):
		c.Send(&protocol.LoginResponse{Result: protocol.NotAuthenticated, Message: "Неверные учётные данные"})
		return
	case err != nil:
		h.logger.Error("❌ Ошибка входа %s: %v", req.Username, err)
		c.Send(&protocol.LoginResponse{Result: protocol.ServerError, Message: "Сервис входа недоступен"})
		return
	}

	switch err := h.Router.Authenticate(c.ID(), sess.User.ID, sess.User.Username); {
	case errors.Is(err, session.ErrAccountOnline):
		c.Send(&protocol.LoginResponse{Result: protocol.AlreadyExists, Message: "Аккаунт уже в игре"})
		return
	case err != nil:
		// соединение уже закрыто
		return
	}
	h.logger.Info("🔐 Соединение %d вошло как %s (аккаунт %d, клиент %s)", c.ID(), sess.User.Username, sess.User.ID, req.ClientVersion)

	c.Send(&protocol.LoginResponse{
		Result:       protocol.Success,
		Message:      "Добро пожаловать в Эльдару",
		AccountID:    sess.User.ID,
		SessionToken: sess.Token,
	})
}

func (h *GameHandler) handleCharacterList(ctx context.Context, c *Connection) {
	s, _ := h.Router.Session(c.ID())
	if !s.Authenticated() {
		c.Send(&protocol.CharacterListResponse{Result: protocol.NotAuthenticated, Characters: []gamedata.CharacterSummary{}})
		return
	}

	ctx, cancel := context.WithTimeout(ctx, storeTimeout)
	defer cancel()
	list, err := h.Characters.ListCharacters(ctx, s.AccountID)
	if err != nil {
		h.logger.Error("❌ Список персонажей аккаунта %d: %v", s.AccountID, err)
		c.Send(&protocol.CharacterListResponse{Result: protocol.ServerError, Characters: []gamedata.CharacterSummary{}})
		return
	}
	c.Send(&protocol.CharacterListResponse{Result: protocol.Success, Characters: list})
}

// validateCharacter проверки создания персонажа по порядку: имя, раса/класс, лор
func validateCharacter(def gamedata.CharacterDefinition) (protocol.ResponseCode, string) {
	switch {
	case !gamedata.ValidateName(def.Name):
		return protocol.InvalidName, fmt.Sprintf("Имя должно быть от %d до %d букв", gamedata.MinNameLength, gamedata.MaxNameLength)
	case !def.Race.Valid() || !def.Class.Valid() || !gamedata.IsClassAvailableForRace(def.Class, def.Race):
		return protocol.InvalidRaceClassCombination, fmt.Sprintf("Класс %s недоступен расе %s", def.Class, def.Race)
	case !def.IsLoreConsistent():
		return protocol.LoreInconsistency, "Раса, фракция и тотем противоречат законам мира"
	default:
		return protocol.Success, ""
	}
}

func (h *GameHandler) handleCreateCharacter(ctx context.Context, c *Connection, req *protocol.CreateCharacterRequest) {
	s, _ := h.Router.Session(c.ID())
	if !s.Authenticated() {
		c.Send(&protocol.CreateCharacterResponse{Result: protocol.NotAuthenticated, Message: "Требуется вход"})
		return
	}

	def := gamedata.CharacterDefinition{
		Name:        strings.TrimSpace(req.Name),
		Race:        req.Race,
		Class:       req.Class,
		Faction:     req.Faction,
		TotemSpirit: gamedata.TotemNone,
		Appearance:  req.Appearance,
	}
	if req.TotemSpirit != nil {
		def.TotemSpirit = *req.TotemSpirit
	}
	if code, msg := validateCharacter(def); code != protocol.Success {
		c.Send(&protocol.CreateCharacterResponse{Result: code, Message: msg})
		return
	}

	ctx, cancel := context.WithTimeout(ctx, storeTimeout)
	defer cancel()

	id, err := h.Characters.CreateCharacter(ctx, s.AccountID, def)
	switch {
	case errors.Is(err, storage.ErrNameTaken):
		c.Send(&protocol.CreateCharacterResponse{Result: protocol.NameTaken, Message: "Имя уже занято"})
		return
	case errors.Is(err, storage.ErrMaxCharacters):
		c.Send(&protocol.CreateCharacterResponse{
			Result:  protocol.MaxCharactersReached,
			Message: fmt.Sprintf("Не больше %d персонажей на аккаунт", gamedata.MaxCharactersPerAccount),
		})
		return
	case err != nil:
		h.logger.Error("❌ Создание персонажа %s: %v", def.Name, err)
		c.Send(&protocol.CreateCharacterResponse{Result: protocol.ServerError, Message: "Не удалось сохранить персонажа"})
		return
	}

	data, err := h.Characters.LoadCharacter(ctx, id)
	if err != nil {
		h.logger.Error("❌ Чтение созданного персонажа %d: %v", id, err)
		c.Send(&protocol.CreateCharacterResponse{Result: protocol.ServerError, Message: "Не удалось прочитать персонажа"})
		return
	}

	h.logger.Info("🧝 Аккаунт %d создал персонажа %s (%d): %s %s, %s", s.AccountID, data.Name, id, data.Race, data.Class, data.Faction)
	h.emit(eventbus.EventCharacterCreated, eventbus.PriorityNormal, eventbus.PlayerEvent{
		AccountID:   s.AccountID,
		CharacterID: id,
		Name:        data.Name,
		ZoneID:      data.Position.ZoneID,
	})
	c.Send(&protocol.CreateCharacterResponse{Result: protocol.Success, Message: "Персонаж создан", Character: data})
}

func (h *GameHandler) handleSelectCharacter(ctx context.Context, c *Connection, req *protocol.SelectCharacterRequest) {
	s, _ := h.Router.Session(c.ID())
	switch {
	case !s.Authenticated():
		c.Send(&protocol.SelectCharacterResponse{Result: protocol.NotAuthenticated, Message: "Требуется вход"})
		return
	case s.InWorld():
		c.Send(&protocol.SelectCharacterResponse{Result: protocol.InvalidRequest, Message: "Персонаж уже в мире"})
		return
	}

	ctx, cancel := context.WithTimeout(ctx, storeTimeout)
	defer cancel()

	data, err := h.Characters.LoadCharacter(ctx, req.CharacterID)
	switch {
	case errors.Is(err, storage.ErrCharacterNotFound):
		c.Send(&protocol.SelectCharacterResponse{Result: protocol.NotFound, Message: "Персонаж не найден"})
		return
	case err != nil:
		h.logger.Error("❌ Загрузка персонажа %d: %v", req.CharacterID, err)
		c.Send(&protocol.SelectCharacterResponse{Result: protocol.ServerError, Message: "Не удалось загрузить персонажа"})
		return
	case data.AccountID != s.AccountID:
		c.Send(&protocol.SelectCharacterResponse{Result: protocol.InsufficientPermissions, Message: "Чужой персонаж"})
		return
	}
	if _, online := h.Entities.PlayerByCharacterID(data.CharacterID); online {
		c.Send(&protocol.SelectCharacterResponse{Result: protocol.AlreadyExists, Message: "Персонаж уже в мире"})
		return
	}

	h.enterWorld(c, data)
}

// enterWorld создаёт сущность игрока и отправляет клиенту мир:
// ответ выбора, EnterWorld, сущности зоны, журнал квестов
func (h *GameHandler) enterWorld(c *Connection, data *gamedata.CharacterData) {
	h.placeInWorld(data)
	data.LastPlayedAt = time.Now().UTC()

	player := entity.NewPlayer(h.Entities.GenerateID(), c.ID(), data)
	zoneID := player.ZoneID()
	snapshot := player.Character()

	c.Send(&protocol.SelectCharacterResponse{Result: protocol.Success, Message: "Вход в мир", Character: snapshot})
	c.Send(&protocol.EnterWorld{Character: *snapshot, ZoneID: zoneID, ServerTime: h.ServerTime()})

	h.Router.Attach(c.ID(), player.ID(), data.CharacterID, zoneID)
	h.Entities.Add(player)

	for _, e := range h.Entities.InZone(zoneID) {
		if e.ID() != player.ID() {
			c.Send(protocol.NewEntitySpawn(e))
		}
	}

	h.Quests.Load(data.CharacterID, data.Quests)
	c.Send(h.Quests.Snapshot(data.CharacterID))

	h.logger.Info("🌍 %s (%d) вошёл в мир: зона %s, сущность %d", player.Name(), data.CharacterID, zoneID, player.ID())
	h.emit(eventbus.EventPlayerEnteredWorld, eventbus.PriorityNormal, eventbus.PlayerEvent{
		AccountID:   data.AccountID,
		CharacterID: data.CharacterID,
		EntityID:    player.ID(),
		Name:        player.Name(),
		ZoneID:      zoneID,
	})
}

// placeInWorld переносит персонажа в безопасную точку, если сохранённая позиция
// вне известной зоны. Персонаж, сохранённый мёртвым, возрождается с полными пулами.
func (h *GameHandler) placeInWorld(data *gamedata.CharacterData) {
	if data.Stats.CurrentHealth <= 0 {
		zoneID, safe := h.Zones.RespawnPoint(data.Position.ZoneID, data.Faction)
		data.Stats.RestoreFull()
		h.moveTo(data, zoneID, safe)
		h.logger.Info("✨ Персонаж %d вернулся мёртвым, возрождение в %s", data.CharacterID, zoneID)
		return
	}

	pos := vec.New(data.Position.X, data.Position.Y, data.Position.Z)
	if h.Zones.IsPositionInZone(data.Position.ZoneID, pos) {
		return
	}
	zoneID, safe := h.Zones.RespawnPoint(data.Position.ZoneID, data.Faction)
	h.logger.Warn("⚠️ Позиция персонажа %d вне зоны %q, перенос в %s", data.CharacterID, data.Position.ZoneID, zoneID)
	h.moveTo(data, zoneID, safe)
}

func (h *GameHandler) moveTo(data *gamedata.CharacterData, zoneID string, pos vec.Vec3) {
	data.Position.ZoneID = zoneID
	data.Position.X, data.Position.Y, data.Position.Z = pos.X, pos.Y, pos.Z
}

func (h *GameHandler) handleLeaveWorld(c *Connection) {
	s, _ := h.Router.Session(c.ID())
	if !s.InWorld() {
		return
	}
	reason := "выход к выбору персонажа"
	h.leaveWorld(c.ID(), reason)
	c.Send(&protocol.LeaveWorld{EntityID: s.PlayerID, Reason: reason})
}

// leaveWorld сохраняет персонажа и убирает его сущность. Соединение остаётся.
func (h *GameHandler) leaveWorld(connID uint64, reason string) {
	s, ok := h.Router.Detach(connID)
	if !ok {
		return
	}
	player, ok := h.Entities.GetPlayer(s.PlayerID)
	if !ok {
		return
	}

	data := player.Character()
	data.Quests = h.Quests.States(data.CharacterID)
	data.LastPlayedAt = time.Now().UTC()
	h.persist(data)

	h.Quests.Forget(data.CharacterID)
	h.Movement.RemovePlayer(player.ID())
	h.Entities.Remove(player.ID())

	h.logger.Info("🚪 %s (%d) покинул мир: %s", player.Name(), data.CharacterID, reason)
	h.emit(eventbus.EventPlayerLeftWorld, eventbus.PriorityNormal, eventbus.PlayerEvent{
		AccountID:   s.AccountID,
		CharacterID: data.CharacterID,
		EntityID:    player.ID(),
		Name:        player.Name(),
		ZoneID:      s.ZoneID,
		Reason:      reason,
	})
}

// persist сохраняет персонажа сразу. Через батчер, чтобы более старый снимок
// из очереди автосохранения не перезаписал этот.
func (h *GameHandler) persist(data *gamedata.CharacterData) {
	ctx, cancel := context.WithTimeout(context.Background(), storeTimeout)
	defer cancel()

	if h.Saves != nil {
		h.Saves.MarkDirty(data)
		h.Saves.Flush(ctx)
		return
	}
	if err := h.Characters.SaveCharacter(ctx, data.CharacterID, data); err != nil {
		h.logger.Error("❌ Персонаж %d не сохранён: %v", data.CharacterID, err)
	}
}

// MarkOnlineDirty ставит всех игроков в мире в очередь автосохранения
func (h *GameHandler) MarkOnlineDirty() int {
	if h.Saves == nil {
		return 0
	}
	players := h.Entities.Players()
	for _, p := range players {
		data := p.Character()
		data.Quests = h.Quests.States(data.CharacterID)
		h.Saves.MarkDirty(data)
	}
	return len(players)
}

// ===== Мир =====

// inWorld игрок соединения или nil
func (h *GameHandler) inWorld(c *Connection) (*entity.Player, session.Session) {
	s, _ := h.Router.Session(c.ID())
	if !s.InWorld() {
		return nil, s
	}
	p, ok := h.Entities.GetPlayer(s.PlayerID)
	if !ok {
		return nil, s
	}
	return p, s
}

func (h *GameHandler) handleMovement(c *Connection, in *protocol.MovementInput) {
	player, _ := h.inWorld(c)
	if player == nil {
		h.logger.Debug("Соединение %d: ввод движения вне мира", c.ID())
		return
	}

	out := h.Movement.ProcessInput(player, in, time.Now())
	if out == nil {
		return
	}
	c.Send(out.Update)
	h.Router.BroadcastToZone(player.ZoneID(), out.Update, c.ID())
	if out.Correction != nil {
		c.Send(out.Correction)
	}
}

func (h *GameHandler) handleUseAbility(c *Connection, req *protocol.UseAbilityRequest) {
	player, _ := h.inWorld(c)
	if player == nil {
		c.Send(&protocol.AbilityResult{
			Result:        protocol.InvalidRequest,
			AbilityID:     req.AbilityID,
			InputSequence: req.InputSequence,
			Message:       "Персонаж не в мире",
		})
		return
	}

	var target uint64
	if req.TargetEntityID != nil {
		target = *req.TargetEntityID
	}
	c.Send(h.Combat.Execute(combat.Request{
		CasterID:       player.ID(),
		AbilityID:      req.AbilityID,
		TargetID:       target,
		TargetPosition: req.TargetPosition,
		InputSequence:  req.InputSequence,
	}, time.Now()))
}

// onKill убийство NPC игроком продвигает цели Kill
func (h *GameHandler) onKill(ev combat.KillEvent) {
	killer := eventbus.KillEvent{
		VictimID:   ev.Victim.ID(),
		VictimName: ev.Victim.Name(),
		ZoneID:     ev.Victim.ZoneID(),
		AbilityID:  ev.AbilityID,
	}
	if ev.Killer != nil {
		killer.KillerID = ev.Killer.ID()
		killer.KillerName = ev.Killer.Name()
	}
	h.emit(eventbus.EventEntityKilled, eventbus.PriorityHigh, killer)

	player, ok := ev.Killer.(*entity.Player)
	if !ok {
		return
	}
	npc, ok := ev.Victim.(*entity.NPC)
	if !ok {
		return
	}
	for _, s := range h.Quests.OnNPCKilled(player, npc.TemplateID(), npc.Name(), ev.At) {
		h.sendProgress(player.ID(), s)
	}
}

func (h *GameHandler) sendProgress(playerID uint64, s *gamedata.QuestStateData) {
	def, _ := gamedata.GetQuest(s.QuestID)
	h.Router.SendToPlayer(playerID, &protocol.QuestProgressUpdate{State: *s, Definition: def})
}

func (h *GameHandler) onQuestComplete(characterID uint64, def *gamedata.QuestDefinition, _ *gamedata.QuestStateData) {
	h.emit(eventbus.EventQuestCompleted, eventbus.PriorityHigh, eventbus.QuestEvent{
		CharacterID: characterID,
		QuestID:     def.QuestID,
		Title:       def.Title,
	})
}

// ===== Чат =====

func (h *GameHandler) systemMessage(c *Connection, text string) {
	c.Send(&protocol.ChatMessage{
		Channel:    protocol.ChatSystem,
		SenderName: "System",
		Message:    text,
		Timestamp:  h.ServerTime(),
	})
}

func (h *GameHandler) handleChat(c *Connection, msg *protocol.ChatMessage) {
	player, s := h.inWorld(c)
	if player == nil {
		return
	}

	text := strings.TrimSpace(msg.Message)
	if text == "" {
		return
	}
	if utf8.RuneCountInString(text) > MaxChatLength {
		h.systemMessage(c, fmt.Sprintf("Сообщение длиннее %d символов", MaxChatLength))
		return
	}

	out := &protocol.ChatMessage{
		Channel:        msg.Channel,
		SenderEntityID: player.ID(),
		SenderName:     player.Name(),
		Message:        text,
		Timestamp:      h.ServerTime(),
	}

	switch msg.Channel {
	case protocol.ChatSay, protocol.ChatYell, protocol.ChatEmote:
		h.Router.BroadcastToZone(s.ZoneID, out, 0)
	case protocol.ChatFaction:
		for _, p := range h.Entities.Players() {
			if p.Faction() == player.Faction() {
				h.Router.SendToPlayer(p.ID(), out)
			}
		}
	case protocol.ChatWhisper:
		if msg.TargetEntityID == nil {
			h.systemMessage(c, "Не указан получатель шёпота")
			return
		}
		target, ok := h.Entities.GetPlayer(*msg.TargetEntityID)
		if !ok {
			h.systemMessage(c, "Игрок не найден")
			return
		}
		out.TargetEntityID = msg.TargetEntityID
		h.Router.SendToPlayer(target.ID(), out)
		c.Send(out)
	case protocol.ChatParty, protocol.ChatGuild:
		h.systemMessage(c, "Вы не состоите в группе или гильдии")
		return
	default:
		h.systemMessage(c, "Канал недоступен")
		return
	}

	h.emit(eventbus.EventChatMessage, eventbus.PriorityLow, out)
}

// ===== Квесты =====

func (h *GameHandler) handleQuestAccept(c *Connection, req *protocol.QuestAcceptRequest) {
	player, _ := h.inWorld(c)
	if player == nil {
		c.Send(&protocol.QuestAcceptResponse{Result: protocol.InvalidRequest, Message: "Персонаж не в мире"})
		return
	}
	c.Send(h.Quests.Accept(player, req.QuestID, time.Now()))
}

func (h *GameHandler) handleQuestDialogue(c *Connection, req *protocol.QuestDialogueRequest) {
	player, _ := h.inWorld(c)
	if player == nil {
		return
	}

	var (
		templateID int
		name       string
		entityID   uint64
	)
	if npc, ok := h.Entities.GetNPC(req.NpcEntityID); ok && npc.ZoneID() == player.ZoneID() {
		templateID, name, entityID = npc.TemplateID(), npc.Name(), npc.ID()
	} else if req.NpcTemplateID != nil {
		templateID = *req.NpcTemplateID
		if t, ok := gamedata.GetNPCTemplate(templateID); ok {
			name = t.Name
		}
	} else {
		h.systemMessage(c, "Собеседник не найден")
		return
	}

	c.Send(h.Quests.Dialogue(player, entityID, templateID, name, time.Now()))
}

func (h *GameHandler) emit(eventType string, priority int, payload any) {
	if err := eventbus.Emit(h.Bus, eventSource, eventType, priority, payload); err != nil {
		h.logger.Debug("⚠️ Событие %s не опубликовано: %v", eventType, err)
	}
}
