package protocol

import (
	"bytes"
	"encoding/binary"
	"io"
	"math/rand"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/annel0/eldara-server/internal/gamedata"
	"github.com/annel0/eldara-server/internal/vec"
	"github.com/annel0/eldara-server/internal/world/entity"
)

func sampleCharacter() *gamedata.CharacterData {
	created := time.Unix(1700000000, 0).UTC()
	def := gamedata.CharacterDefinition{
		Name:    "Aelric",
		Race:    gamedata.RaceHuman,
		Class:   gamedata.ClassUnboundWarrior,
		Faction: gamedata.FactionUnitedKingdoms,
	}
	c := gamedata.NewCharacter(11, def, created)
	c.CharacterID = 501
	c.FactionStandings = map[gamedata.Faction]int{gamedata.FactionVerdantCircles: 50}
	c.Stats.Resistances = map[gamedata.DamageType]float32{gamedata.DamageFire: 0.25}
	return c
}

func samplePackets() []Packet {
	char := sampleCharacter()
	quest, _ := gamedata.GetQuest(gamedata.QuestThornsInGroveID)
	accepted := time.Unix(1700000100, 0).UTC()
	state := &gamedata.QuestStateData{
		QuestID:    quest.QuestID,
		State:      gamedata.QuestActive,
		Objectives: []gamedata.QuestObjectiveProgress{{ObjectiveID: 1, Current: 2, Target: 3}},
		AcceptedAt: &accepted,
	}
	target := uint64(77)
	totem := gamedata.TotemFanged
	template := gamedata.NPCScoutMaerith
	questID := quest.QuestID
	meta := CombatEventMetadata{EventID: "5f1c9a52-8d1e-4c1a-9c9b-2f9a1b1e0c11", ServerTime: 1234, ProtocolVersion: ProtocolVersion}

	return []Packet{
		&LoginRequest{Username: "root", PasswordHash: "hash", ClientVersion: "0.1"},
		&LoginResponse{Result: Success, Message: "ok", AccountID: 11, SessionToken: "token"},
		&CharacterListRequest{AccountID: 11},
		&CharacterListResponse{Result: Success, Characters: []gamedata.CharacterSummary{char.Summary()}},
		&CreateCharacterRequest{AccountID: 11, Name: "Grakh", Race: gamedata.RaceTherakai, Class: gamedata.ClassBerserker,
			Faction: gamedata.FactionTotemClansWildborn, TotemSpirit: &totem, Appearance: gamedata.Appearance{FaceType: 2, Height: 1.8}},
		&CreateCharacterResponse{Result: NameTaken, Message: "taken"},
		&CreateCharacterResponse{Result: Success, Character: char},
		&SelectCharacterRequest{CharacterID: 501},
		&SelectCharacterResponse{Result: Success, Character: char},
		&MovementInput{InputSequence: 9, DeltaTime: 0.1, Input: InputState{Forward: 1, Sprint: true, LookYaw: 90},
			PredictedPosition: vec.New(0.7, 0, 0), PredictedRotationYaw: 90},
		&MovementUpdate{EntityID: 3, Position: vec.New(1, 2, 3), Velocity: vec.New(7, 0, 0), RotationYaw: 45,
			State: entity.MovementRunning, ServerTimestamp: 1000},
		&PositionCorrection{LastProcessedInput: 9, AuthoritativePosition: vec.New(0.7, 0, 0), ServerTimestamp: 1000},
		&UseAbilityRequest{AbilityID: gamedata.AbilityBasicStrike, TargetEntityID: &target, InputSequence: 4},
		&UseAbilityRequest{AbilityID: gamedata.AbilityTotemPulse, TargetPosition: &vec.Vec3{X: 1}},
		&AbilityResult{Result: OnCooldown, CasterEntityID: 3, AbilityID: 1, InputSequence: 4, Message: "cooldown"},
		&Damage{SourceEntityID: 3, TargetEntityID: 77, AbilityID: 1, DamageType: gamedata.DamagePhysical, Amount: 34,
			RemainingHealth: 66, Metadata: meta},
		&Healing{SourceEntityID: 3, TargetEntityID: 3, AbilityID: 4, Amount: 20, IsCritical: true, RemainingHealth: 120, Metadata: meta},
		&StatusEffect{TargetEntityID: 77, Effect: StatusEffectData{EffectID: 1, Name: "Rooted", Duration: 3, MaxStacks: 1,
			StatModifiers: map[string]float32{"movement_speed": -1}}, Applied: true, StackCount: 1, Metadata: meta},
		&ChatMessage{Channel: ChatWhisper, SenderEntityID: 3, SenderName: "Aelric", Message: "hi", TargetEntityID: &target, Timestamp: 99},
		&EnterWorld{Character: *char, ZoneID: gamedata.ZoneBorderkeep, ServerTime: 5000},
		&LeaveWorld{EntityID: 3, Reason: "logout"},
		&EntitySpawn{EntityID: 77, EntityType: EntityNPC, Name: "Scout Maerith", Position: vec.New(4, 4, 0),
			NPC: &NPCData{TemplateID: template, Name: "Scout Maerith", Level: 8, IsQuestGiver: true, MaxHealth: 240, CurrentHealth: 240}},
		&EntitySpawn{EntityID: 3, EntityType: EntityPlayer, Name: "Aelric", Character: char},
		&EntityDespawn{EntityID: 77},
		&QuestAcceptRequest{QuestID: quest.QuestID},
		&QuestAcceptResponse{Result: Success, Message: "Quest accepted", State: state, Definition: quest},
		&QuestProgressUpdate{State: *state, Definition: quest},
		&QuestLogSnapshot{Definitions: []*gamedata.QuestDefinition{quest}, States: []*gamedata.QuestStateData{state}},
		&QuestDialogueRequest{NpcEntityID: 77, NpcTemplateID: &template},
		&QuestDialogueResponse{NpcEntityID: &target, NpcName: "Scout Maerith",
			Options: []gamedata.QuestDialogueOption{{Type: gamedata.DialogueOfferQuest, Text: "Accept", QuestID: &questID, Quest: quest}},
			UpdatedStates: []*gamedata.QuestStateData{state}},
	}
}

func TestCodecRoundTripAllVariants(t *testing.T) {
	codec, err := NewCodec()
	require.NoError(t, err)

	seen := make(map[PacketType]bool)
	for i, pkt := range samplePackets() {
		data, err := codec.Encode(pkt, uint32(i+1), time.Now())
		require.NoError(t, err, "пакет %T", pkt)

		decoded, env, err := codec.Decode(data)
		require.NoError(t, err, "пакет %T", pkt)
		assert.Equal(t, pkt.Type(), env.Type)
		assert.Equal(t, uint32(i+1), env.Sequence)
		assert.Equal(t, pkt, decoded, "пакет %T после кругового преобразования", pkt)
		seen[pkt.Type()] = true
	}

	for _, typ := range []PacketType{
		TypeLoginRequest, TypeLoginResponse, TypeCharacterListRequest, TypeCharacterListResponse,
		TypeCreateCharacterRequest, TypeCreateCharacterResponse, TypeSelectCharacterRequest, TypeSelectCharacterResponse,
		TypeMovementInput, TypeMovementUpdate, TypePositionCorrection,
		TypeUseAbilityRequest, TypeAbilityResult, TypeDamage, TypeHealing, TypeStatusEffect,
		TypeChatMessage, TypeEnterWorld, TypeLeaveWorld, TypeEntitySpawn, TypeEntityDespawn,
		TypeQuestAcceptRequest, TypeQuestAcceptResponse, TypeQuestProgressUpdate, TypeQuestLogSnapshot,
		TypeQuestDialogueRequest, TypeQuestDialogueResponse,
	} {
		assert.True(t, seen[typ], "вариант %d не покрыт", typ)
		assert.NotNil(t, newPacket(typ))
	}
}

func TestCodecCompressesLargeBodies(t *testing.T) {
	codec, err := NewCodec()
	require.NoError(t, err)

	msg := &ChatMessage{Channel: ChatSay, SenderName: "Aelric", Message: strings.Repeat("for the Worldroot! ", 200)}
	data, err := codec.Encode(msg, 0, time.Now())
	require.NoError(t, err)

	env, err := UnmarshalEnvelope(data)
	require.NoError(t, err)
	assert.Equal(t, CompressionZstd, env.Compression)
	assert.Less(t, len(data), len(msg.Message))

	decoded, _, err := codec.Decode(data)
	require.NoError(t, err)
	assert.Equal(t, msg, decoded)
}

func TestCodecRejectsOversizedPacket(t *testing.T) {
	codec, err := NewCodec()
	require.NoError(t, err)

	rng := rand.New(rand.NewSource(1))
	letters := make([]byte, 3*MaxPacketSize)
	for i := range letters {
		letters[i] = byte('!' + rng.Intn(90))
	}
	_, err = codec.Encode(&ChatMessage{Message: string(letters)}, 0, time.Now())
	assert.ErrorIs(t, err, ErrPacketTooLarge)
}

func TestDecodeUnknownType(t *testing.T) {
	env := Envelope{Type: 999, Body: []byte("{}")}
	_, _, err := DefaultCodec().Decode(env.Marshal())
	assert.ErrorIs(t, err, ErrUnknownPacket)

	_, _, err = DefaultCodec().Decode([]byte{0xff, 0xff, 0xff})
	assert.Error(t, err)
}

func TestFrameRoundTrip(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteFrame(&buf, []byte("hello")))
	require.NoError(t, WriteFrame(&buf, []byte("world")))

	assert.Equal(t, uint32(5), binary.LittleEndian.Uint32(buf.Bytes()[:4]))

	first, err := ReadFrame(&buf)
	require.NoError(t, err)
	assert.Equal(t, []byte("hello"), first)
	second, err := ReadFrame(&buf)
	require.NoError(t, err)
	assert.Equal(t, []byte("world"), second)

	_, err = ReadFrame(&buf)
	assert.ErrorIs(t, err, io.EOF)
}

func TestReadFrameViolations(t *testing.T) {
	header := func(n uint32) []byte {
		b := make([]byte, 4)
		binary.LittleEndian.PutUint32(b, n)
		return b
	}

	tests := []struct {
		name string
		data []byte
		want error
	}{
		{"нулевая длина", header(0), ErrEmptyFrame},
		{"слишком большой", header(MaxPacketSize + 1), ErrPacketTooLarge},
		{"обрыв тела", append(header(10), 1, 2, 3), io.ErrUnexpectedEOF},
		{"обрыв заголовка", []byte{1, 0}, io.ErrUnexpectedEOF},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ReadFrame(bytes.NewReader(tt.data))
			assert.ErrorIs(t, err, tt.want)
		})
	}

	assert.ErrorIs(t, WriteFrame(io.Discard, make([]byte, MaxPacketSize+1)), ErrPacketTooLarge)
	assert.ErrorIs(t, WriteFrame(io.Discard, nil), ErrEmptyFrame)
}

func TestNewEntitySpawnForNPC(t *testing.T) {
	tmpl, ok := gamedata.GetNPCTemplate(gamedata.NPCScoutMaerith)
	require.True(t, ok)
	n := entity.NewNPC(5, entity.NPCConfig{
		TemplateID: tmpl.TemplateID,
		Name:       tmpl.Name,
		ZoneID:     tmpl.SpawnZoneID,
		Position:   vec.New(1, 2, 0),
		Faction:    tmpl.Faction,
		Level:      8,
		Stats:      tmpl.StatsForLevel(8),
		QuestGiver: true,
	})

	pkt := NewEntitySpawn(n)
	assert.Equal(t, EntityNPC, pkt.EntityType)
	require.NotNil(t, pkt.NPC)
	assert.True(t, pkt.NPC.IsQuestGiver)
	assert.Equal(t, 240, pkt.NPC.MaxHealth)
	assert.Nil(t, pkt.Character)
}
