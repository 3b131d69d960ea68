package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/go-sql-driver/mysql"

	"github.com/annel0/eldara-server/internal/gamedata"
)

const mysqlDuplicateEntry = 1062

// MariaCharacterStore реализует CharacterStore для MariaDB/MySQL.
// Персонаж хранится JSON документом в таблице characters.
type MariaCharacterStore struct {
	db *sql.DB
}

// NewMariaCharacterStore подключается к базе и создаёт таблицу, если её нет
func NewMariaCharacterStore(dsn string) (*MariaCharacterStore, error) {
	db, err := sql.Open("mysql", dsn)
	if err != nil {
		return nil, fmt.Errorf("не удалось подключиться к MariaDB: %w", err)
	}

	// Проверяем соединение
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("не удалось проверить соединение с MariaDB: %w", err)
	}

	store := &MariaCharacterStore{db: db}
	if err := store.createTable(); err != nil {
		db.Close()
		return nil, fmt.Errorf("не удалось создать таблицу: %w", err)
	}
	return store, nil
}

func (s *MariaCharacterStore) createTable() error {
	query := `
		CREATE TABLE IF NOT EXISTS characters (
			character_id BIGINT UNSIGNED AUTO_INCREMENT PRIMARY KEY,
			account_id   BIGINT UNSIGNED NOT NULL,
			name_key     VARCHAR(32)     NOT NULL UNIQUE,
			data         LONGTEXT        NOT NULL,
			updated_at   TIMESTAMP DEFAULT CURRENT_TIMESTAMP
			             ON UPDATE CURRENT_TIMESTAMP,
			INDEX idx_account (account_id)
		) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4
	`
	if _, err := s.db.Exec(query); err != nil {
		return fmt.Errorf("ошибка создания таблицы characters: %w", err)
	}
	return nil
}

func (s *MariaCharacterStore) ListCharacters(ctx context.Context, accountID uint64) ([]gamedata.CharacterSummary, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT character_id, data FROM characters WHERE account_id = ? ORDER BY character_id`, accountID)
	if err != nil {
		return nil, fmt.Errorf("ошибка чтения персонажей аккаунта %d: %w", accountID, err)
	}
	defer rows.Close()

	out := []gamedata.CharacterSummary{}
	for rows.Next() {
		data, err := scanCharacter(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, data.Summary())
	}
	return out, rows.Err()
}

func (s *MariaCharacterStore) CreateCharacter(ctx context.Context, accountID uint64, def gamedata.CharacterDefinition) (uint64, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("ошибка начала транзакции: %w", err)
	}
	defer tx.Rollback() // Откат в случае ошибки

	// FOR UPDATE держит лимит аккаунта до фиксации
	var count int
	err = tx.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM characters WHERE account_id = ? FOR UPDATE`, accountID).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("ошибка подсчёта персонажей: %w", err)
	}
	if count >= gamedata.MaxCharactersPerAccount {
		return 0, ErrMaxCharacters
	}

	record, err := json.Marshal(newRecord(0, accountID, def))
	if err != nil {
		return 0, fmt.Errorf("ошибка сериализации персонажа: %w", err)
	}

	res, err := tx.ExecContext(ctx,
		`INSERT INTO characters (account_id, name_key, data) VALUES (?, ?, ?)`,
		accountID, nameKey(def.Name), record)
	if err != nil {
		var myErr *mysql.MySQLError
		if errors.As(err, &myErr) && myErr.Number == mysqlDuplicateEntry {
			return 0, ErrNameTaken
		}
		return 0, fmt.Errorf("ошибка создания персонажа: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("ошибка получения id персонажа: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("ошибка фиксации транзакции: %w", err)
	}
	return uint64(id), nil
}

func (s *MariaCharacterStore) LoadCharacter(ctx context.Context, characterID uint64) (*gamedata.CharacterData, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT character_id, data FROM characters WHERE character_id = ?`, characterID)
	data, err := scanCharacter(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrCharacterNotFound
	}
	return data, err
}

func (s *MariaCharacterStore) SaveCharacter(ctx context.Context, characterID uint64, data *gamedata.CharacterData) error {
	cp := data.Clone()
	cp.CharacterID = characterID
	record, err := json.Marshal(cp)
	if err != nil {
		return fmt.Errorf("ошибка сериализации персонажа: %w", err)
	}

	res, err := s.db.ExecContext(ctx,
		`UPDATE characters SET data = ? WHERE character_id = ?`, record, characterID)
	if err != nil {
		return fmt.Errorf("ошибка сохранения персонажа %d: %w", characterID, err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("ошибка получения количества затронутых строк: %w", err)
	}
	if affected == 0 {
		// UPDATE без изменений тоже даёт 0, поэтому проверяем наличие
		var exists int
		err := s.db.QueryRowContext(ctx, `SELECT 1 FROM characters WHERE character_id = ?`, characterID).Scan(&exists)
		if errors.Is(err, sql.ErrNoRows) {
			return ErrCharacterNotFound
		}
		return err
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanCharacter(row rowScanner) (*gamedata.CharacterData, error) {
	var id uint64
	var raw []byte
	if err := row.Scan(&id, &raw); err != nil {
		return nil, err
	}
	var data gamedata.CharacterData
	if err := json.Unmarshal(raw, &data); err != nil {
		return nil, fmt.Errorf("ошибка десериализации персонажа %d: %w", id, err)
	}
	data.CharacterID = id
	return &data, nil
}

// Close закрывает соединение с базой данных.
func (s *MariaCharacterStore) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}
