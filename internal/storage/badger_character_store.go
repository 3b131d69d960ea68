package storage

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/dgraph-io/badger/v3"

	"github.com/annel0/eldara-server/internal/gamedata"
	"github.com/annel0/eldara-server/internal/logging"
)

const badgerConflictRetries = 5

// BadgerCharacterStore хранит персонажей во встроенной BadgerDB.
//
// Ключи:
//
//	char:<id>            JSON персонажа
//	name:<имя в нижнем>  id персонажа
//	acct:<account>:<id>  пустое значение, индекс персонажей аккаунта
type BadgerCharacterStore struct {
	db      *badger.DB
	seq     *badger.Sequence
	mu      sync.RWMutex
	isReady bool
	logger  *logging.Logger
}

// NewBadgerCharacterStore открывает базу по пути. Пустой путь открывает базу в памяти.
func NewBadgerCharacterStore(path string) (*BadgerCharacterStore, error) {
	opts := badger.DefaultOptions(path)
	if path == "" {
		opts = opts.WithInMemory(true)
	}
	opts.Logger = nil // Отключаем логирование BadgerDB

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("не удалось открыть BadgerDB: %w", err)
	}

	seq, err := db.GetSequence([]byte("seq:char"), 64)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("не удалось получить последовательность id: %w", err)
	}

	logging.GetStorageLogger().Info("💾 BadgerDB персонажей открыта (%s)", pathOrMemory(path))
	return &BadgerCharacterStore{
		db:      db,
		seq:     seq,
		isReady: true,
		logger:  logging.GetStorageLogger(),
	}, nil
}

func pathOrMemory(path string) string {
	if path == "" {
		return "in-memory"
	}
	return path
}

func charKey(id uint64) []byte { return []byte(fmt.Sprintf("char:%d", id)) }

func nameIndexKey(name string) []byte { return []byte("name:" + nameKey(name)) }

func accountPrefix(accountID uint64) []byte { return []byte(fmt.Sprintf("acct:%d:", accountID)) }

func accountKey(accountID, id uint64) []byte {
	return append(accountPrefix(accountID), []byte(fmt.Sprintf("%d", id))...)
}

func (s *BadgerCharacterStore) ready() error {
	if !s.isReady {
		return fmt.Errorf("хранилище не готово")
	}
	return nil
}

func (s *BadgerCharacterStore) ListCharacters(ctx context.Context, accountID uint64) ([]gamedata.CharacterSummary, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if err := s.ready(); err != nil {
		return nil, err
	}

	var out []gamedata.CharacterSummary
	err := s.db.View(func(txn *badger.Txn) error {
		ids, err := accountCharacterIDs(txn, accountID)
		if err != nil {
			return err
		}
		for _, id := range ids {
			if err := ctx.Err(); err != nil {
				return err
			}
			data, err := readCharacter(txn, id)
			if err != nil {
				return err
			}
			out = append(out, data.Summary())
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("ошибка чтения персонажей аккаунта %d: %w", accountID, err)
	}

	sort.Slice(out, func(i, j int) bool { return out[i].CharacterID < out[j].CharacterID })
	if out == nil {
		out = []gamedata.CharacterSummary{}
	}
	return out, nil
}

func (s *BadgerCharacterStore) CreateCharacter(ctx context.Context, accountID uint64, def gamedata.CharacterDefinition) (uint64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if err := s.ready(); err != nil {
		return 0, err
	}

	next, err := s.seq.Next()
	if err != nil {
		return 0, fmt.Errorf("ошибка выдачи id персонажа: %w", err)
	}
	id := next + 1 // последовательность начинается с 0

	record, err := json.Marshal(newRecord(id, accountID, def))
	if err != nil {
		return 0, fmt.Errorf("ошибка сериализации персонажа: %w", err)
	}

	for attempt := 0; attempt < badgerConflictRetries; attempt++ {
		if err := ctx.Err(); err != nil {
			return 0, err
		}
		err = s.db.Update(func(txn *badger.Txn) error {
			ids, err := accountCharacterIDs(txn, accountID)
			if err != nil {
				return err
			}
			if len(ids) >= gamedata.MaxCharactersPerAccount {
				return ErrMaxCharacters
			}

			_, err = txn.Get(nameIndexKey(def.Name))
			switch {
			case err == nil:
				return ErrNameTaken
			case !errors.Is(err, badger.ErrKeyNotFound):
				return err
			}

			var idBuf [8]byte
			binary.BigEndian.PutUint64(idBuf[:], id)
			if err := txn.Set(nameIndexKey(def.Name), idBuf[:]); err != nil {
				return err
			}
			if err := txn.Set(accountKey(accountID, id), nil); err != nil {
				return err
			}
			return txn.Set(charKey(id), record)
		})
		if !errors.Is(err, badger.ErrConflict) {
			break
		}
	}

	switch {
	case err == nil:
		s.logger.Debug("💾 Персонаж %d (%s) создан для аккаунта %d", id, def.Name, accountID)
		return id, nil
	case errors.Is(err, ErrNameTaken), errors.Is(err, ErrMaxCharacters):
		return 0, err
	default:
		return 0, fmt.Errorf("ошибка сохранения персонажа в BadgerDB: %w", err)
	}
}

func (s *BadgerCharacterStore) LoadCharacter(ctx context.Context, characterID uint64) (*gamedata.CharacterData, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if err := s.ready(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var data *gamedata.CharacterData
	err := s.db.View(func(txn *badger.Txn) error {
		var err error
		data, err = readCharacter(txn, characterID)
		return err
	})
	if err != nil {
		return nil, err
	}
	return data, nil
}

func (s *BadgerCharacterStore) SaveCharacter(ctx context.Context, characterID uint64, data *gamedata.CharacterData) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if err := s.ready(); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	cp := data.Clone()
	cp.CharacterID = characterID
	record, err := json.Marshal(cp)
	if err != nil {
		return fmt.Errorf("ошибка сериализации персонажа: %w", err)
	}

	return s.db.Update(func(txn *badger.Txn) error {
		if _, err := txn.Get(charKey(characterID)); err != nil {
			if errors.Is(err, badger.ErrKeyNotFound) {
				return ErrCharacterNotFound
			}
			return err
		}
		return txn.Set(charKey(characterID), record)
	})
}

// Close закрывает хранилище
func (s *BadgerCharacterStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.isReady {
		return nil
	}
	s.isReady = false
	if err := s.seq.Release(); err != nil {
		s.logger.Warn("⚠️ Ошибка освобождения последовательности: %v", err)
	}
	return s.db.Close()
}

func accountCharacterIDs(txn *badger.Txn, accountID uint64) ([]uint64, error) {
	prefix := accountPrefix(accountID)
	opts := badger.DefaultIteratorOptions
	opts.PrefetchValues = false
	opts.Prefix = prefix

	it := txn.NewIterator(opts)
	defer it.Close()

	var ids []uint64
	for it.Rewind(); it.ValidForPrefix(prefix); it.Next() {
		var id uint64
		if _, err := fmt.Sscanf(string(it.Item().Key()[len(prefix):]), "%d", &id); err != nil {
			return nil, fmt.Errorf("повреждённый индекс аккаунта %q: %w", it.Item().Key(), err)
		}
		ids = append(ids, id)
	}
	return ids, nil
}

func readCharacter(txn *badger.Txn, id uint64) (*gamedata.CharacterData, error) {
	item, err := txn.Get(charKey(id))
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, ErrCharacterNotFound
	}
	if err != nil {
		return nil, err
	}

	var data gamedata.CharacterData
	err = item.Value(func(val []byte) error {
		return json.Unmarshal(val, &data)
	})
	if err != nil {
		return nil, fmt.Errorf("ошибка десериализации персонажа %d: %w", id, err)
	}
	return &data, nil
}
