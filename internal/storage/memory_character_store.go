package storage

import (
	"context"
	"sort"
	"sync"

	"github.com/annel0/eldara-server/internal/gamedata"
)

// MemoryCharacterStore реализует CharacterStore в памяти.
// Используется по умолчанию и в тестах.
// ВНИМАНИЕ: Данные теряются при перезапуске сервера!
type MemoryCharacterStore struct {
	mu         sync.RWMutex
	nextID     uint64
	characters map[uint64]*gamedata.CharacterData
	byName     map[string]uint64
	byAccount  map[uint64][]uint64
}

// NewMemoryCharacterStore создаёт пустое хранилище
func NewMemoryCharacterStore() *MemoryCharacterStore {
	return &MemoryCharacterStore{
		nextID:     1,
		characters: make(map[uint64]*gamedata.CharacterData),
		byName:     make(map[string]uint64),
		byAccount:  make(map[uint64][]uint64),
	}
}

func (s *MemoryCharacterStore) ListCharacters(ctx context.Context, accountID uint64) ([]gamedata.CharacterSummary, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	ids := s.byAccount[accountID]
	out := make([]gamedata.CharacterSummary, 0, len(ids))
	for _, id := range ids {
		out = append(out, s.characters[id].Summary())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CharacterID < out[j].CharacterID })
	return out, nil
}

func (s *MemoryCharacterStore) CreateCharacter(ctx context.Context, accountID uint64, def gamedata.CharacterDefinition) (uint64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if len(s.byAccount[accountID]) >= gamedata.MaxCharactersPerAccount {
		return 0, ErrMaxCharacters
	}
	key := nameKey(def.Name)
	if _, taken := s.byName[key]; taken {
		return 0, ErrNameTaken
	}

	id := s.nextID
	s.nextID++
	s.characters[id] = newRecord(id, accountID, def)
	s.byName[key] = id
	s.byAccount[accountID] = append(s.byAccount[accountID], id)
	return id, nil
}

func (s *MemoryCharacterStore) LoadCharacter(ctx context.Context, characterID uint64) (*gamedata.CharacterData, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	data, ok := s.characters[characterID]
	if !ok {
		return nil, ErrCharacterNotFound
	}
	return data.Clone(), nil
}

func (s *MemoryCharacterStore) SaveCharacter(ctx context.Context, characterID uint64, data *gamedata.CharacterData) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.characters[characterID]; !ok {
		return ErrCharacterNotFound
	}
	cp := data.Clone()
	cp.CharacterID = characterID
	s.characters[characterID] = cp
	return nil
}

// Count количество персонажей (для отладки)
func (s *MemoryCharacterStore) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.characters)
}

func (s *MemoryCharacterStore) Close() error { return nil }
