package gamedata

import (
	"strings"
	"time"
)

// CharacterStats боевые и производные характеристики.
// Инвариант current <= max поддерживается всеми мутаторами сущностей.
type CharacterStats struct {
	Strength  int `json:"strength"`
	Agility   int `json:"agility"`
	Intellect int `json:"intellect"`
	Stamina   int `json:"stamina"`
	Willpower int `json:"willpower"`

	MaxHealth      int `json:"max_health"`
	CurrentHealth  int `json:"current_health"`
	MaxMana        int `json:"max_mana"`
	CurrentMana    int `json:"current_mana"`
	MaxStamina     int `json:"max_stamina"`
	CurrentStamina int `json:"current_stamina"`

	AttackPower    int                    `json:"attack_power"`
	SpellPower     int                    `json:"spell_power"`
	CriticalChance float32                `json:"critical_chance"`
	CriticalDamage float32                `json:"critical_damage"`
	Armor          int                    `json:"armor"`
	Resistances    map[DamageType]float32 `json:"resistances,omitempty"`

	MovementSpeed float32 `json:"movement_speed"`
}

// DefaultStats значения по умолчанию для нового набора характеристик
func DefaultStats() CharacterStats {
	return CharacterStats{
		Strength:       10,
		Agility:        10,
		Intellect:      10,
		Stamina:        10,
		Willpower:      10,
		MaxHealth:      100,
		CurrentHealth:  100,
		MaxMana:        100,
		CurrentMana:    100,
		MaxStamina:     100,
		CurrentStamina: 100,
		AttackPower:    10,
		SpellPower:     10,
		CriticalChance: BaseCritChance,
		CriticalDamage: BaseCritDamage,
		MovementSpeed:  BaseRunSpeed,
	}
}

// Clone возвращает глубокую копию (карта сопротивлений копируется)
func (s CharacterStats) Clone() CharacterStats {
	out := s
	if s.Resistances != nil {
		out.Resistances = make(map[DamageType]float32, len(s.Resistances))
		for k, v := range s.Resistances {
			out.Resistances[k] = v
		}
	}
	return out
}

// Clamp приводит текущие значения пулов к диапазону [0, max]
func (s *CharacterStats) Clamp() {
	s.CurrentHealth = clampInt(s.CurrentHealth, 0, s.MaxHealth)
	s.CurrentMana = clampInt(s.CurrentMana, 0, s.MaxMana)
	s.CurrentStamina = clampInt(s.CurrentStamina, 0, s.MaxStamina)
}

// RestoreFull заполняет все пулы до максимума
func (s *CharacterStats) RestoreFull() {
	s.CurrentHealth = s.MaxHealth
	s.CurrentMana = s.MaxMana
	s.CurrentStamina = s.MaxStamina
}

// PoolValue возвращает текущее значение пула
func (s *CharacterStats) PoolValue(p Pool) int {
	if p == PoolStamina {
		return s.CurrentStamina
	}
	return s.CurrentMana
}

// SpendPool списывает ресурс; false если ресурса недостаточно
func (s *CharacterStats) SpendPool(p Pool, amount int) bool {
	if amount <= 0 {
		return true
	}
	switch p {
	case PoolStamina:
		if s.CurrentStamina < amount {
			return false
		}
		s.CurrentStamina -= amount
	default:
		if s.CurrentMana < amount {
			return false
		}
		s.CurrentMana -= amount
	}
	return true
}

func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// Position сохранённая позиция персонажа
type Position struct {
	ZoneID        string  `json:"zone_id"`
	X             float32 `json:"x"`
	Y             float32 `json:"y"`
	Z             float32 `json:"z"`
	RotationYaw   float32 `json:"rotation_yaw"`
	RotationPitch float32 `json:"rotation_pitch"`
}

// Appearance внешний вид
type Appearance struct {
	FaceType      int     `json:"face_type"`
	HairStyle     int     `json:"hair_style"`
	HairColor     int     `json:"hair_color"`
	SkinTone      int     `json:"skin_tone"`
	EyeColor      int     `json:"eye_color"`
	Height        float32 `json:"height"`
	BuildType     float32 `json:"build_type"`
	FurPattern    int     `json:"fur_pattern,omitempty"`
	FurColor      int     `json:"fur_color,omitempty"`
	VoidIntensity float32 `json:"void_intensity,omitempty"`
}

// CharacterData полный снимок персонажа
type CharacterData struct {
	CharacterID      uint64            `json:"character_id"`
	AccountID        uint64            `json:"account_id"`
	Name             string            `json:"name"`
	Race             Race              `json:"race"`
	Class            Class             `json:"class"`
	Faction          Faction           `json:"faction"`
	Level            int               `json:"level"`
	Experience       int64             `json:"experience"`
	Gold             int64             `json:"gold"`
	Stats            CharacterStats    `json:"stats"`
	Position         Position          `json:"position"`
	Appearance       Appearance        `json:"appearance"`
	FactionStandings map[Faction]int   `json:"faction_standings,omitempty"`
	TotemSpirit      TotemSpirit       `json:"totem_spirit,omitempty"`
	Quests           []*QuestStateData `json:"quests,omitempty"`
	CreatedAt        time.Time         `json:"created_at"`
	LastPlayedAt     time.Time         `json:"last_played_at"`
}

// Clone возвращает глубокую копию персонажа
func (c *CharacterData) Clone() *CharacterData {
	if c == nil {
		return nil
	}
	out := *c
	out.Stats = c.Stats.Clone()
	if c.FactionStandings != nil {
		out.FactionStandings = make(map[Faction]int, len(c.FactionStandings))
		for k, v := range c.FactionStandings {
			out.FactionStandings[k] = v
		}
	}
	if c.Quests != nil {
		out.Quests = make([]*QuestStateData, 0, len(c.Quests))
		for _, q := range c.Quests {
			out.Quests = append(out.Quests, q.Clone())
		}
	}
	return &out
}

// Summary возвращает краткое описание для списка персонажей
func (c *CharacterData) Summary() CharacterSummary {
	return CharacterSummary{
		CharacterID:  c.CharacterID,
		Name:         c.Name,
		Race:         c.Race,
		Class:        c.Class,
		Faction:      c.Faction,
		Level:        c.Level,
		ZoneID:       c.Position.ZoneID,
		LastPlayedAt: c.LastPlayedAt.UnixMilli(),
	}
}

// CharacterSummary строка в списке персонажей аккаунта
type CharacterSummary struct {
	CharacterID  uint64  `json:"character_id"`
	Name         string  `json:"name"`
	Race         Race    `json:"race"`
	Class        Class   `json:"class"`
	Faction      Faction `json:"faction"`
	Level        int     `json:"level"`
	ZoneID       string  `json:"zone_id"`
	LastPlayedAt int64   `json:"last_played_at"`
}

// CharacterDefinition данные запроса на создание персонажа
type CharacterDefinition struct {
	Name        string
	Race        Race
	Class       Class
	Faction     Faction
	TotemSpirit TotemSpirit
	Appearance  Appearance
}

// ValidateName проверяет длину и допустимые символы имени
func ValidateName(name string) bool {
	n := len([]rune(name))
	if n < MinNameLength || n > MaxNameLength {
		return false
	}
	for _, r := range name {
		if !strings.ContainsRune(NameAllowedCharacters, r) {
			return false
		}
	}
	return true
}

// IsLoreConsistent проверяет фракцию расы и правило тотема Therakai
func (d CharacterDefinition) IsLoreConsistent() bool {
	if !IsRaceAvailableForFaction(d.Race, d.Faction) {
		return false
	}
	if d.Race == RaceTherakai {
		return d.TotemSpirit != TotemNone
	}
	return d.TotemSpirit == TotemNone
}

// NewCharacter собирает стартового персонажа из архетипа класса и стартовой зоны фракции
func NewCharacter(accountID uint64, def CharacterDefinition, now time.Time) *CharacterData {
	arch := ArchetypeFor(def.Class)
	stats := arch.BaseStats.Clone()

	zoneID, spawn := StarterZone(def.Faction)

	return &CharacterData{
		AccountID:   accountID,
		Name:        def.Name,
		Race:        def.Race,
		Class:       def.Class,
		Faction:     def.Faction,
		Level:       StartingLevel,
		Stats:       stats,
		TotemSpirit: def.TotemSpirit,
		Appearance:  def.Appearance,
		Position: Position{
			ZoneID: zoneID,
			X:      spawn[0],
			Y:      spawn[1],
			Z:      spawn[2],
		},
		FactionStandings: make(map[Faction]int),
		CreatedAt:        now,
		LastPlayedAt:     now,
	}
}
