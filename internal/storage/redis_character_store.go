package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"time"

	"github.com/go-redis/redis/v8"

	"github.com/annel0/eldara-server/internal/gamedata"
	"github.com/annel0/eldara-server/internal/logging"
)

// RedisStoreConfig содержит настройки подключения к Redis
type RedisStoreConfig struct {
	Addr      string // Адрес Redis сервера
	Password  string // Пароль (пустой если не требуется)
	DB        int    // Номер базы данных
	KeyPrefix string // Префикс для ключей
}

// RedisCharacterStore хранит персонажей в Redis.
//
// Ключи:
//
//	<prefix>char:<id>           JSON персонажа
//	<prefix>names               hash: имя в нижнем регистре -> id
//	<prefix>account:<id>:chars  set id персонажей аккаунта
//	<prefix>seq                 счётчик id
type RedisCharacterStore struct {
	client    *redis.Client
	keyPrefix string
	logger    *logging.Logger
}

// NewRedisCharacterStore подключается к Redis и проверяет соединение
func NewRedisCharacterStore(cfg RedisStoreConfig) (*RedisCharacterStore, error) {
	if cfg.Addr == "" {
		cfg.Addr = "localhost:6379"
	}
	if cfg.KeyPrefix == "" {
		cfg.KeyPrefix = "eldara:"
	}

	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	logger := logging.GetStorageLogger()
	logger.Info("🔴 Connected to Redis at %s", cfg.Addr)
	return &RedisCharacterStore{client: client, keyPrefix: cfg.KeyPrefix, logger: logger}, nil
}

func (s *RedisCharacterStore) charKey(id uint64) string {
	return s.keyPrefix + "char:" + strconv.FormatUint(id, 10)
}

func (s *RedisCharacterStore) namesKey() string { return s.keyPrefix + "names" }

func (s *RedisCharacterStore) accountKey(accountID uint64) string {
	return s.keyPrefix + "account:" + strconv.FormatUint(accountID, 10) + ":chars"
}

func (s *RedisCharacterStore) ListCharacters(ctx context.Context, accountID uint64) ([]gamedata.CharacterSummary, error) {
	members, err := s.client.SMembers(ctx, s.accountKey(accountID)).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to list characters: %w", err)
	}
	out := make([]gamedata.CharacterSummary, 0, len(members))
	if len(members) == 0 {
		return out, nil
	}

	keys := make([]string, len(members))
	for i, m := range members {
		keys[i] = s.keyPrefix + "char:" + m
	}
	values, err := s.client.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to get characters: %w", err)
	}

	for i, v := range values {
		raw, ok := v.(string)
		if !ok {
			s.logger.Warn("⚠️ Персонаж %s есть в индексе аккаунта %d, но отсутствует", members[i], accountID)
			continue
		}
		var data gamedata.CharacterData
		if err := json.Unmarshal([]byte(raw), &data); err != nil {
			s.logger.Warn("⚠️ Failed to unmarshal character %s: %v", members[i], err)
			continue
		}
		out = append(out, data.Summary())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CharacterID < out[j].CharacterID })
	return out, nil
}

func (s *RedisCharacterStore) CreateCharacter(ctx context.Context, accountID uint64, def gamedata.CharacterDefinition) (uint64, error) {
	count, err := s.client.SCard(ctx, s.accountKey(accountID)).Result()
	if err != nil {
		return 0, fmt.Errorf("failed to count characters: %w", err)
	}
	if count >= gamedata.MaxCharactersPerAccount {
		return 0, ErrMaxCharacters
	}

	next, err := s.client.Incr(ctx, s.keyPrefix+"seq").Result()
	if err != nil {
		return 0, fmt.Errorf("failed to allocate character id: %w", err)
	}
	id := uint64(next)

	// HSETNX атомарно занимает имя
	claimed, err := s.client.HSetNX(ctx, s.namesKey(), nameKey(def.Name), id).Result()
	if err != nil {
		return 0, fmt.Errorf("failed to reserve name: %w", err)
	}
	if !claimed {
		return 0, ErrNameTaken
	}

	record, err := json.Marshal(newRecord(id, accountID, def))
	if err != nil {
		s.client.HDel(ctx, s.namesKey(), nameKey(def.Name))
		return 0, fmt.Errorf("failed to marshal character: %w", err)
	}

	_, err = s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, s.charKey(id), record, 0)
		pipe.SAdd(ctx, s.accountKey(accountID), id)
		return nil
	})
	if err != nil {
		s.client.HDel(ctx, s.namesKey(), nameKey(def.Name))
		return 0, fmt.Errorf("failed to store character: %w", err)
	}
	return id, nil
}

func (s *RedisCharacterStore) LoadCharacter(ctx context.Context, characterID uint64) (*gamedata.CharacterData, error) {
	raw, err := s.client.Get(ctx, s.charKey(characterID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrCharacterNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get character: %w", err)
	}

	var data gamedata.CharacterData
	if err := json.Unmarshal(raw, &data); err != nil {
		return nil, fmt.Errorf("failed to unmarshal character %d: %w", characterID, err)
	}
	return &data, nil
}

func (s *RedisCharacterStore) SaveCharacter(ctx context.Context, characterID uint64, data *gamedata.CharacterData) error {
	cp := data.Clone()
	cp.CharacterID = characterID
	record, err := json.Marshal(cp)
	if err != nil {
		return fmt.Errorf("failed to marshal character: %w", err)
	}

	// SET XX: только существующий персонаж
	ok, err := s.client.SetXX(ctx, s.charKey(characterID), record, 0).Result()
	if err != nil {
		return fmt.Errorf("failed to save character: %w", err)
	}
	if !ok {
		return ErrCharacterNotFound
	}
	return nil
}

// Close закрывает клиент Redis
func (s *RedisCharacterStore) Close() error {
	return s.client.Close()
}
