// Package storage хранит персонажей между сессиями.
package storage

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-sql-driver/mysql"

	"github.com/annel0/eldara-server/internal/config"
	"github.com/annel0/eldara-server/internal/gamedata"
	"github.com/annel0/eldara-server/internal/logging"
)

var (
	ErrNameTaken         = errors.New("character name already taken")
	ErrMaxCharacters     = errors.New("maximum characters per account reached")
	ErrCharacterNotFound = errors.New("character not found")
)

// CharacterStore постоянное хранилище персонажей.
// Проверку имени и лора делает вызывающий; хранилище следит за уникальностью имени
// (без учёта регистра) и лимитом персонажей на аккаунт.
type CharacterStore interface {
	ListCharacters(ctx context.Context, accountID uint64) ([]gamedata.CharacterSummary, error)
	CreateCharacter(ctx context.Context, accountID uint64, def gamedata.CharacterDefinition) (uint64, error)
	LoadCharacter(ctx context.Context, characterID uint64) (*gamedata.CharacterData, error)
	SaveCharacter(ctx context.Context, characterID uint64, data *gamedata.CharacterData) error
	Close() error
}

// NewCharacterStore выбирает реализацию по storage.backend
func NewCharacterStore(cfg config.StorageConfig) (CharacterStore, error) {
	logger := logging.GetStorageLogger()

	switch cfg.Backend {
	case "", "memory":
		logger.Warn("⚠️ Персонажи хранятся в памяти и теряются при перезапуске")
		return NewMemoryCharacterStore(), nil
	case "redis":
		return NewRedisCharacterStore(RedisStoreConfig{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
	case "badger":
		return NewBadgerCharacterStore(cfg.BadgerPath)
	case "maria":
		return NewMariaCharacterStore(MariaDSN(cfg.Maria))
	default:
		return nil, fmt.Errorf("unknown storage backend %q", cfg.Backend)
	}
}

// MariaDSN строка подключения к MariaDB из конфигурации
func MariaDSN(c config.MariaConfig) string {
	dsn := mysql.NewConfig()
	dsn.User = c.User
	dsn.Passwd = c.Password
	dsn.Net = "tcp"
	host := c.Host
	if host == "" {
		host = "localhost"
	}
	port := c.Port
	if port == 0 {
		port = 3306
	}
	dsn.Addr = fmt.Sprintf("%s:%d", host, port)
	dsn.DBName = c.Database
	if dsn.DBName == "" {
		dsn.DBName = "eldara"
	}
	dsn.ParseTime = true
	dsn.Params = map[string]string{"charset": "utf8mb4"}
	return dsn.FormatDSN()
}

// nameKey ключ уникальности имени
func nameKey(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}

// newRecord собирает нового персонажа с присвоенным id
func newRecord(id, accountID uint64, def gamedata.CharacterDefinition) *gamedata.CharacterData {
	data := gamedata.NewCharacter(accountID, def, time.Now().UTC())
	data.CharacterID = id
	return data
}
