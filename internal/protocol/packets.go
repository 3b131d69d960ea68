package protocol

import (
	"github.com/annel0/eldara-server/internal/gamedata"
	"github.com/annel0/eldara-server/internal/vec"
	"github.com/annel0/eldara-server/internal/world/entity"
)

// PacketType тег варианта пакета на проводе
type PacketType uint16

const (
	// Аутентификация
	TypeLoginRequest  PacketType = 0
	TypeLoginResponse PacketType = 1

	// Персонажи
	TypeCharacterListRequest    PacketType = 2
	TypeCharacterListResponse   PacketType = 3
	TypeCreateCharacterRequest  PacketType = 4
	TypeCreateCharacterResponse PacketType = 5
	TypeSelectCharacterRequest  PacketType = 6
	TypeSelectCharacterResponse PacketType = 7

	// Движение
	TypeMovementInput      PacketType = 10
	TypeMovementUpdate     PacketType = 11
	TypePositionCorrection PacketType = 12

	// Бой
	TypeUseAbilityRequest PacketType = 20
	TypeAbilityResult     PacketType = 21
	TypeDamage            PacketType = 22
	TypeHealing           PacketType = 23
	TypeStatusEffect      PacketType = 24

	// Чат
	TypeChatMessage PacketType = 30

	// Мир
	TypeEnterWorld    PacketType = 100
	TypeLeaveWorld    PacketType = 101
	TypeEntitySpawn   PacketType = 102
	TypeEntityDespawn PacketType = 103

	// Квесты
	TypeQuestAcceptRequest    PacketType = 250
	TypeQuestAcceptResponse   PacketType = 251
	TypeQuestProgressUpdate   PacketType = 252
	TypeQuestLogSnapshot      PacketType = 253
	TypeQuestDialogueRequest  PacketType = 254
	TypeQuestDialogueResponse PacketType = 255
)

var packetNames = map[PacketType]string{
	TypeLoginRequest:            "LoginRequest",
	TypeLoginResponse:           "LoginResponse",
	TypeCharacterListRequest:    "CharacterListRequest",
	TypeCharacterListResponse:   "CharacterListResponse",
	TypeCreateCharacterRequest:  "CreateCharacterRequest",
	TypeCreateCharacterResponse: "CreateCharacterResponse",
	TypeSelectCharacterRequest:  "SelectCharacterRequest",
	TypeSelectCharacterResponse: "SelectCharacterResponse",
	TypeMovementInput:           "MovementInput",
	TypeMovementUpdate:          "MovementUpdate",
	TypePositionCorrection:      "PositionCorrection",
	TypeUseAbilityRequest:       "UseAbilityRequest",
	TypeAbilityResult:           "AbilityResult",
	TypeDamage:                  "Damage",
	TypeHealing:                 "Healing",
	TypeStatusEffect:            "StatusEffect",
	TypeChatMessage:             "ChatMessage",
	TypeEnterWorld:              "EnterWorld",
	TypeLeaveWorld:              "LeaveWorld",
	TypeEntitySpawn:             "EntitySpawn",
	TypeEntityDespawn:           "EntityDespawn",
	TypeQuestAcceptRequest:      "QuestAcceptRequest",
	TypeQuestAcceptResponse:     "QuestAcceptResponse",
	TypeQuestProgressUpdate:     "QuestProgressUpdate",
	TypeQuestLogSnapshot:        "QuestLogSnapshot",
	TypeQuestDialogueRequest:    "QuestDialogueRequest",
	TypeQuestDialogueResponse:   "QuestDialogueResponse",
}

func (t PacketType) String() string {
	if name, ok := packetNames[t]; ok {
		return name
	}
	return "Unknown"
}

// Packet любой пакет протокола
type Packet interface {
	Type() PacketType
}

// newPacket создаёт пустой пакет по тегу; nil для неизвестного тега
func newPacket(t PacketType) Packet {
	switch t {
	case TypeLoginRequest:
		return &LoginRequest{}
	case TypeLoginResponse:
		return &LoginResponse{}
	case TypeCharacterListRequest:
		return &CharacterListRequest{}
	case TypeCharacterListResponse:
		return &CharacterListResponse{}
	case TypeCreateCharacterRequest:
		return &CreateCharacterRequest{}
	case TypeCreateCharacterResponse:
		return &CreateCharacterResponse{}
	case TypeSelectCharacterRequest:
		return &SelectCharacterRequest{}
	case TypeSelectCharacterResponse:
		return &SelectCharacterResponse{}
	case TypeMovementInput:
		return &MovementInput{}
	case TypeMovementUpdate:
		return &MovementUpdate{}
	case TypePositionCorrection:
		return &PositionCorrection{}
	case TypeUseAbilityRequest:
		return &UseAbilityRequest{}
	case TypeAbilityResult:
		return &AbilityResult{}
	case TypeDamage:
		return &Damage{}
	case TypeHealing:
		return &Healing{}
	case TypeStatusEffect:
		return &StatusEffect{}
	case TypeChatMessage:
		return &ChatMessage{}
	case TypeEnterWorld:
		return &EnterWorld{}
	case TypeLeaveWorld:
		return &LeaveWorld{}
	case TypeEntitySpawn:
		return &EntitySpawn{}
	case TypeEntityDespawn:
		return &EntityDespawn{}
	case TypeQuestAcceptRequest:
		return &QuestAcceptRequest{}
	case TypeQuestAcceptResponse:
		return &QuestAcceptResponse{}
	case TypeQuestProgressUpdate:
		return &QuestProgressUpdate{}
	case TypeQuestLogSnapshot:
		return &QuestLogSnapshot{}
	case TypeQuestDialogueRequest:
		return &QuestDialogueRequest{}
	case TypeQuestDialogueResponse:
		return &QuestDialogueResponse{}
	default:
		return nil
	}
}

// ===== Аутентификация =====

type LoginRequest struct {
	Username      string `json:"username"`
	PasswordHash  string `json:"password_hash"`
	ClientVersion string `json:"client_version"`
}

type LoginResponse struct {
	Result       ResponseCode `json:"result"`
	Message      string       `json:"message"`
	AccountID    uint64       `json:"account_id"`
	SessionToken string       `json:"session_token"`
}

func (*LoginRequest) Type() PacketType  { return TypeLoginRequest }
func (*LoginResponse) Type() PacketType { return TypeLoginResponse }

// ===== Персонажи =====

type CharacterListRequest struct {
	AccountID uint64 `json:"account_id"`
}

type CharacterListResponse struct {
	Result     ResponseCode                `json:"result"`
	Characters []gamedata.CharacterSummary `json:"characters"`
}

type CreateCharacterRequest struct {
	AccountID   uint64                `json:"account_id"`
	Name        string                `json:"name"`
	Race        gamedata.Race         `json:"race"`
	Class       gamedata.Class        `json:"class"`
	Faction     gamedata.Faction      `json:"faction"`
	TotemSpirit *gamedata.TotemSpirit `json:"totem_spirit,omitempty"`
	Appearance  gamedata.Appearance   `json:"appearance"`
}

type CreateCharacterResponse struct {
	Result    ResponseCode            `json:"result"`
	Message   string                  `json:"message"`
	Character *gamedata.CharacterData `json:"character,omitempty"`
}

type SelectCharacterRequest struct {
	CharacterID uint64 `json:"character_id"`
}

type SelectCharacterResponse struct {
	Result    ResponseCode            `json:"result"`
	Message   string                  `json:"message"`
	Character *gamedata.CharacterData `json:"character,omitempty"`
}

func (*CharacterListRequest) Type() PacketType    { return TypeCharacterListRequest }
func (*CharacterListResponse) Type() PacketType   { return TypeCharacterListResponse }
func (*CreateCharacterRequest) Type() PacketType  { return TypeCreateCharacterRequest }
func (*CreateCharacterResponse) Type() PacketType { return TypeCreateCharacterResponse }
func (*SelectCharacterRequest) Type() PacketType  { return TypeSelectCharacterRequest }
func (*SelectCharacterResponse) Type() PacketType { return TypeSelectCharacterResponse }

// ===== Движение =====

// InputState состояние управления на кадре клиента
type InputState struct {
	Forward   float32 `json:"forward"` // -1..1
	Strafe    float32 `json:"strafe"`  // -1..1
	Jump      bool    `json:"jump"`
	Sprint    bool    `json:"sprint"`
	LookYaw   float32 `json:"look_yaw"`
	LookPitch float32 `json:"look_pitch"`
}

type MovementInput struct {
	InputSequence        uint32     `json:"input_sequence"`
	DeltaTime            float32    `json:"delta_time"`
	Input                InputState `json:"input"`
	PredictedPosition    vec.Vec3   `json:"predicted_position"`
	PredictedRotationYaw float32    `json:"predicted_rotation_yaw"`
}

type MovementUpdate struct {
	EntityID        uint64               `json:"entity_id"`
	Position        vec.Vec3             `json:"position"`
	Velocity        vec.Vec3             `json:"velocity"`
	RotationYaw     float32              `json:"rotation_yaw"`
	RotationPitch   float32              `json:"rotation_pitch"`
	State           entity.MovementState `json:"state"`
	ServerTimestamp int64                `json:"server_timestamp"`
}

type PositionCorrection struct {
	LastProcessedInput       uint32   `json:"last_processed_input"`
	AuthoritativePosition    vec.Vec3 `json:"authoritative_position"`
	AuthoritativeVelocity    vec.Vec3 `json:"authoritative_velocity"`
	AuthoritativeRotationYaw float32  `json:"authoritative_rotation_yaw"`
	ServerTimestamp          int64    `json:"server_timestamp"`
}

func (*MovementInput) Type() PacketType      { return TypeMovementInput }
func (*MovementUpdate) Type() PacketType     { return TypeMovementUpdate }
func (*PositionCorrection) Type() PacketType { return TypePositionCorrection }

// ===== Бой =====

// CombatEventMetadata уникальный id события и серверное время для упорядочивания журнала боя
type CombatEventMetadata struct {
	EventID         string `json:"event_id"`
	ServerTime      int64  `json:"server_time"`
	ProtocolVersion string `json:"protocol_version"`
}

type UseAbilityRequest struct {
	AbilityID      int       `json:"ability_id"`
	TargetEntityID *uint64   `json:"target_entity_id,omitempty"`
	TargetPosition *vec.Vec3 `json:"target_position,omitempty"`
	InputSequence  uint32    `json:"input_sequence"`
}

type AbilityResult struct {
	Result         ResponseCode `json:"result"`
	CasterEntityID uint64       `json:"caster_entity_id"`
	AbilityID      int          `json:"ability_id"`
	InputSequence  uint32       `json:"input_sequence"`
	Message        string       `json:"message"`
}

type Damage struct {
	SourceEntityID  uint64              `json:"source_entity_id"`
	TargetEntityID  uint64              `json:"target_entity_id"`
	AbilityID       int                 `json:"ability_id"`
	DamageType      gamedata.DamageType `json:"damage_type"`
	Amount          int                 `json:"amount"`
	IsCritical      bool                `json:"is_critical"`
	RemainingHealth int                 `json:"remaining_health"`
	IsFatal         bool                `json:"is_fatal"`
	Metadata        CombatEventMetadata `json:"metadata"`
}

type Healing struct {
	SourceEntityID  uint64              `json:"source_entity_id"`
	TargetEntityID  uint64              `json:"target_entity_id"`
	AbilityID       int                 `json:"ability_id"`
	Amount          int                 `json:"amount"`
	IsCritical      bool                `json:"is_critical"`
	RemainingHealth int                 `json:"remaining_health"`
	Metadata        CombatEventMetadata `json:"metadata"`
}

// StatusEffectData описание эффекта
type StatusEffectData struct {
	EffectID      int                `json:"effect_id"`
	Name          string             `json:"name"`
	Duration      float32            `json:"duration"` // -1 до снятия
	MaxStacks     int                `json:"max_stacks"`
	IsBuff        bool               `json:"is_buff"`
	Dispellable   bool               `json:"dispellable"`
	PeriodicValue int                `json:"periodic_value,omitempty"`
	TickInterval  float32            `json:"tick_interval,omitempty"`
	StatModifiers map[string]float32 `json:"stat_modifiers,omitempty"`
}

type StatusEffect struct {
	TargetEntityID uint64              `json:"target_entity_id"`
	Effect         StatusEffectData    `json:"effect"`
	Applied        bool                `json:"applied"`
	StackCount     int                 `json:"stack_count"`
	Metadata       CombatEventMetadata `json:"metadata"`
}

func (*UseAbilityRequest) Type() PacketType { return TypeUseAbilityRequest }
func (*AbilityResult) Type() PacketType     { return TypeAbilityResult }
func (*Damage) Type() PacketType            { return TypeDamage }
func (*Healing) Type() PacketType           { return TypeHealing }
func (*StatusEffect) Type() PacketType      { return TypeStatusEffect }

// ===== Чат =====

// ChatChannel канал чата
type ChatChannel uint8

const (
	ChatSay ChatChannel = iota
	ChatYell
	ChatWhisper
	ChatParty
	ChatGuild
	ChatFaction
	ChatSystem
	ChatCombat
	ChatEmote
)

type ChatMessage struct {
	Channel        ChatChannel `json:"channel"`
	SenderEntityID uint64      `json:"sender_entity_id"`
	SenderName     string      `json:"sender_name"`
	Message        string      `json:"message"`
	TargetEntityID *uint64     `json:"target_entity_id,omitempty"`
	Timestamp      int64       `json:"timestamp"`
}

func (*ChatMessage) Type() PacketType { return TypeChatMessage }

// ===== Мир =====

// EntityType тип сущности для клиента
type EntityType uint8

const (
	EntityPlayer EntityType = iota
	EntityNPC
	EntityMonster
	EntityObject
	EntityVehicle
	EntityPet
)

// NPCData описание NPC для клиента
type NPCData struct {
	TemplateID    int              `json:"template_id"`
	Name          string           `json:"name"`
	Level         int              `json:"level"`
	Faction       gamedata.Faction `json:"faction"`
	IsHostile     bool             `json:"is_hostile"`
	IsQuestGiver  bool             `json:"is_quest_giver"`
	IsVendor      bool             `json:"is_vendor"`
	MaxHealth     int              `json:"max_health"`
	CurrentHealth int              `json:"current_health"`
}

type EnterWorld struct {
	Character  gamedata.CharacterData `json:"character"`
	ZoneID     string                 `json:"zone_id"`
	ServerTime int64                  `json:"server_time"`
}

type LeaveWorld struct {
	EntityID uint64 `json:"entity_id"`
	Reason   string `json:"reason"`
}

type EntitySpawn struct {
	EntityID    uint64                  `json:"entity_id"`
	EntityType  EntityType              `json:"entity_type"`
	Name        string                  `json:"name"`
	Position    vec.Vec3                `json:"position"`
	RotationYaw float32                 `json:"rotation_yaw"`
	Character   *gamedata.CharacterData `json:"character,omitempty"`
	NPC         *NPCData                `json:"npc,omitempty"`
}

type EntityDespawn struct {
	EntityID uint64 `json:"entity_id"`
}

func (*EnterWorld) Type() PacketType    { return TypeEnterWorld }
func (*LeaveWorld) Type() PacketType    { return TypeLeaveWorld }
func (*EntitySpawn) Type() PacketType   { return TypeEntitySpawn }
func (*EntityDespawn) Type() PacketType { return TypeEntityDespawn }

// ===== Квесты =====

type QuestAcceptRequest struct {
	QuestID int `json:"quest_id"`
}

type QuestAcceptResponse struct {
	Result     ResponseCode              `json:"result"`
	Message    string                    `json:"message"`
	State      *gamedata.QuestStateData  `json:"state,omitempty"`
	Definition *gamedata.QuestDefinition `json:"definition,omitempty"`
}

type QuestProgressUpdate struct {
	State      gamedata.QuestStateData   `json:"state"`
	Definition *gamedata.QuestDefinition `json:"definition,omitempty"`
}

type QuestLogSnapshot struct {
	Definitions []*gamedata.QuestDefinition `json:"definitions"`
	States      []*gamedata.QuestStateData  `json:"states"`
}

type QuestDialogueRequest struct {
	NpcEntityID   uint64 `json:"npc_entity_id"`
	NpcTemplateID *int   `json:"npc_template_id,omitempty"`
}

type QuestDialogueResponse struct {
	NpcEntityID   *uint64                        `json:"npc_entity_id,omitempty"`
	NpcName       string                         `json:"npc_name"`
	Options       []gamedata.QuestDialogueOption `json:"options"`
	UpdatedStates []*gamedata.QuestStateData     `json:"updated_states"`
}

func (*QuestAcceptRequest) Type() PacketType    { return TypeQuestAcceptRequest }
func (*QuestAcceptResponse) Type() PacketType   { return TypeQuestAcceptResponse }
func (*QuestProgressUpdate) Type() PacketType   { return TypeQuestProgressUpdate }
func (*QuestLogSnapshot) Type() PacketType      { return TypeQuestLogSnapshot }
func (*QuestDialogueRequest) Type() PacketType  { return TypeQuestDialogueRequest }
func (*QuestDialogueResponse) Type() PacketType { return TypeQuestDialogueResponse }

// EntityTypeOf тип сущности для пакета спавна
func EntityTypeOf(e entity.Entity) EntityType {
	switch e.(type) {
	case *entity.Player:
		return EntityPlayer
	case *entity.NPC:
		return EntityNPC
	default:
		return EntityObject
	}
}

// NewEntitySpawn собирает пакет появления сущности
func NewEntitySpawn(e entity.Entity) *EntitySpawn {
	t := e.Transform()
	pkt := &EntitySpawn{
		EntityID:    e.ID(),
		EntityType:  EntityTypeOf(e),
		Name:        e.Name(),
		Position:    t.Position,
		RotationYaw: t.Yaw,
	}
	switch v := e.(type) {
	case *entity.Player:
		pkt.Character = v.Character()
	case *entity.NPC:
		cur, maxHP := v.Health()
		pkt.NPC = &NPCData{
			TemplateID:    v.TemplateID(),
			Name:          v.Name(),
			Level:         v.Level(),
			Faction:       v.Faction(),
			IsHostile:     v.IsHostile(),
			IsQuestGiver:  v.IsQuestGiver(),
			IsVendor:      v.IsVendor(),
			MaxHealth:     maxHP,
			CurrentHealth: cur,
		}
	}
	return pkt
}
