package gamedata

import "time"

// Игровые константы
const (
	MaxLevel      = 60
	StartingLevel = 1

	BaseWalkSpeed    float32 = 4.0
	BaseRunSpeed     float32 = 7.0
	SprintMultiplier float32 = 1.4

	MinNameLength           = 3
	MaxNameLength           = 16
	NameAllowedCharacters   = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ'-"
	MaxCharactersPerAccount = 8
)

// Боевые константы
const (
	DefaultGlobalCooldown float32 = 1.5
	BaseCritChance        float32 = 0.05
	BaseCritDamage        float32 = 1.5

	MeleeRange     float32 = 5.0
	MaxSpellRange  float32 = 40.0
	MaxTargetRange float32 = 50.0

	ArmorMitigationConstant float32 = 400.0
	MaxArmorReduction       float32 = 0.75
	MaxResistanceReduction  float32 = 0.75

	OutOfCombatDelay = 5 * time.Second
)

// Константы NPC
const (
	DefaultLeashDistance  float32 = 50.0
	DefaultAggroRange     float32 = 15.0
	DefaultAttackRange    float32 = 3.0
	NPCAttackInterval             = 2 * time.Second
	NPCMaxCombatDuration          = 30 * time.Second
	NPCReturnTolerance    float32 = 0.5
	DefaultRespawnSeconds float32 = 30.0
)
