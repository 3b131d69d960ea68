// Package quest ведёт журналы квестов игроков: принятие, прогресс целей,
// диалоги с NPC и выдачу наград.
package quest

import (
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/annel0/eldara-server/internal/gamedata"
	"github.com/annel0/eldara-server/internal/logging"
	"github.com/annel0/eldara-server/internal/protocol"
)

// Participant игрок с точки зрения журнала квестов
type Participant interface {
	CharacterID() uint64
	Level() int
	GrantRewards(experience int, gold int, faction *gamedata.Faction, reputation int)
}

// Catalog источник описаний квестов
type Catalog interface {
	Quest(id int) (*gamedata.QuestDefinition, bool)
	ByGiver(npcTemplateID int) []*gamedata.QuestDefinition
	ByTurnIn(npcTemplateID int) []*gamedata.QuestDefinition
}

type staticCatalog struct{}

func (staticCatalog) Quest(id int) (*gamedata.QuestDefinition, bool) { return gamedata.GetQuest(id) }

func (staticCatalog) ByGiver(id int) []*gamedata.QuestDefinition { return gamedata.QuestsByGiver(id) }

func (staticCatalog) ByTurnIn(id int) []*gamedata.QuestDefinition { return gamedata.QuestsByTurnIn(id) }

// StaticCatalog каталог квестов игры
func StaticCatalog() Catalog { return staticCatalog{} }

// CompletionListener вызывается после завершения квеста вне блокировок журнала
type CompletionListener func(characterID uint64, def *gamedata.QuestDefinition, state *gamedata.QuestStateData)

// journal журнал одного игрока. Снимки в states не изменяются после публикации.
type journal struct {
	mu     sync.Mutex
	states map[int]*gamedata.QuestStateData
}

// Engine журналы квестов всех игроков
type Engine struct {
	mu       sync.RWMutex
	journals map[uint64]*journal

	catalog Catalog
	logger  *logging.Logger

	listenersMu sync.RWMutex
	onComplete  []CompletionListener
}

// NewEngine создаёт движок. nil каталог означает StaticCatalog.
func NewEngine(catalog Catalog) *Engine {
	if catalog == nil {
		catalog = StaticCatalog()
	}
	return &Engine{
		journals: make(map[uint64]*journal),
		catalog:  catalog,
		logger:   logging.GetGameLogger(),
	}
}

// OnComplete подписка на завершение квестов
func (e *Engine) OnComplete(l CompletionListener) {
	e.listenersMu.Lock()
	defer e.listenersMu.Unlock()
	e.onComplete = append(e.onComplete, l)
}

func (e *Engine) journal(characterID uint64) *journal {
	e.mu.RLock()
	j, ok := e.journals[characterID]
	e.mu.RUnlock()
	if ok {
		return j
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if j, ok = e.journals[characterID]; ok {
		return j
	}
	j = &journal{states: make(map[int]*gamedata.QuestStateData)}
	e.journals[characterID] = j
	return j
}

// lookup журнал без создания. Для незагруженного персонажа возвращается
// пустой журнал, не попадающий в движок.
func (e *Engine) lookup(characterID uint64) *journal {
	e.mu.RLock()
	j, ok := e.journals[characterID]
	e.mu.RUnlock()
	if !ok {
		return &journal{}
	}
	return j
}

// Load заменяет журнал персонажа сохранёнными состояниями
func (e *Engine) Load(characterID uint64, states []*gamedata.QuestStateData) {
	j := e.journal(characterID)
	j.mu.Lock()
	defer j.mu.Unlock()
	j.states = make(map[int]*gamedata.QuestStateData, len(states))
	for _, s := range states {
		if s != nil {
			j.states[s.QuestID] = s.Clone()
		}
	}
}

// Forget выгружает журнал персонажа
func (e *Engine) Forget(characterID uint64) {
	e.mu.Lock()
	delete(e.journals, characterID)
	e.mu.Unlock()
}

// State текущий снимок квеста или nil
func (e *Engine) State(characterID uint64, questID int) *gamedata.QuestStateData {
	j := e.lookup(characterID)
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.states[questID]
}

// States все снимки журнала по возрастанию id квеста
func (e *Engine) States(characterID uint64) []*gamedata.QuestStateData {
	j := e.lookup(characterID)
	j.mu.Lock()
	out := make([]*gamedata.QuestStateData, 0, len(j.states))
	for _, s := range j.states {
		out = append(out, s)
	}
	j.mu.Unlock()

	sort.Slice(out, func(a, b int) bool { return out[a].QuestID < out[b].QuestID })
	return out
}

// Snapshot журнал для отправки клиенту
func (e *Engine) Snapshot(characterID uint64) *protocol.QuestLogSnapshot {
	states := e.States(characterID)
	snap := &protocol.QuestLogSnapshot{
		Definitions: make([]*gamedata.QuestDefinition, 0, len(states)),
		States:      states,
	}
	for _, s := range states {
		if def, ok := e.catalog.Quest(s.QuestID); ok {
			snap.Definitions = append(snap.Definitions, def)
		}
	}
	return snap
}

// Accept принимает квест
func (e *Engine) Accept(p Participant, questID int, now time.Time) *protocol.QuestAcceptResponse {
	def, ok := e.catalog.Quest(questID)
	if !ok {
		return &protocol.QuestAcceptResponse{Result: protocol.NotFound, Message: "Quest not found"}
	}

	j := e.journal(p.CharacterID())
	j.mu.Lock()
	if resp := rejectLocked(j, def, p.Level()); resp != nil {
		j.mu.Unlock()
		return resp
	}
	state := newActiveState(def, now)
	finished := isComplete(def, state)
	if finished {
		// все цели выполнены уже при принятии
		done := now
		state.State = gamedata.QuestCompleted
		state.CompletedAt = &done
	}
	j.states[def.QuestID] = state
	j.mu.Unlock()

	e.logger.Info("📜 Персонаж %d принял квест %d (%s)", p.CharacterID(), def.QuestID, def.Title)
	if finished {
		e.complete(p, def, state)
	}

	return &protocol.QuestAcceptResponse{
		Result:     protocol.Success,
		Message:    "Quest accepted",
		State:      state,
		Definition: def,
	}
}

// rejectLocked ответ с отказом или nil. Вызывается под j.mu.
func rejectLocked(j *journal, def *gamedata.QuestDefinition, level int) *protocol.QuestAcceptResponse {
	if cur := j.states[def.QuestID]; cur != nil {
		switch {
		case cur.State == gamedata.QuestActive:
			return &protocol.QuestAcceptResponse{Result: protocol.AlreadyExists, Message: "Quest already active"}
		case cur.State == gamedata.QuestCompleted && !def.IsRepeatable:
			return &protocol.QuestAcceptResponse{Result: protocol.AlreadyExists, Message: "Quest already completed"}
		}
	}
	if !eligibleLocked(j, def, level) {
		return &protocol.QuestAcceptResponse{Result: protocol.InvalidRequest, Message: "Prerequisites not met or level too low"}
	}
	return nil
}

// eligibleLocked уровень и пререквизиты. Вызывается под j.mu.
func eligibleLocked(j *journal, def *gamedata.QuestDefinition, level int) bool {
	if level < def.MinimumLevel {
		return false
	}
	for _, pre := range def.Prerequisites {
		s := j.states[pre]
		if s == nil || s.State != gamedata.QuestCompleted {
			return false
		}
	}
	return true
}

func newActiveState(def *gamedata.QuestDefinition, now time.Time) *gamedata.QuestStateData {
	accepted := now
	s := &gamedata.QuestStateData{
		QuestID:    def.QuestID,
		State:      gamedata.QuestActive,
		Objectives: make([]gamedata.QuestObjectiveProgress, len(def.Objectives)),
		AcceptedAt: &accepted,
	}
	for i, o := range def.Objectives {
		target := o.TargetCount
		if target < 1 {
			target = 1
		}
		s.Objectives[i] = gamedata.QuestObjectiveProgress{
			ObjectiveID: o.ObjectiveID,
			Target:      target,
		}
		if o.TargetCount <= 0 {
			s.Objectives[i].Current = target
			s.Objectives[i].Completed = true
		}
	}
	return s
}

// matcher решает, продвигает ли событие цель
type matcher func(o gamedata.QuestObjective) bool

// OnDialogue продвигает цели Talk и Interact для NPC шаблона
func (e *Engine) OnDialogue(p Participant, npcTemplateID int, now time.Time) []*gamedata.QuestStateData {
	return e.advance(p, now, func(o gamedata.QuestObjective) bool {
		if o.Type != gamedata.ObjectiveTalk && o.Type != gamedata.ObjectiveInteract {
			return false
		}
		return o.TargetNpcTemplateID != nil && *o.TargetNpcTemplateID == npcTemplateID
	})
}

// OnNPCKilled продвигает цели Kill по шаблону или тегу убитого NPC
func (e *Engine) OnNPCKilled(p Participant, npcTemplateID int, tag string, now time.Time) []*gamedata.QuestStateData {
	return e.advance(p, now, func(o gamedata.QuestObjective) bool {
		if o.Type != gamedata.ObjectiveKill {
			return false
		}
		if o.TargetNpcTemplateID != nil {
			return *o.TargetNpcTemplateID == npcTemplateID
		}
		return o.TargetTag != "" && o.TargetTag == tag
	})
}

type completion struct {
	def   *gamedata.QuestDefinition
	state *gamedata.QuestStateData
}

// advance увеличивает подходящие счётчики на единицу во всех активных квестах
func (e *Engine) advance(p Participant, now time.Time, match matcher) []*gamedata.QuestStateData {
	j := e.lookup(p.CharacterID())

	var updated []*gamedata.QuestStateData
	var completed []completion

	j.mu.Lock()
	for questID, cur := range j.states {
		if cur.State != gamedata.QuestActive {
			continue
		}
		def, ok := e.catalog.Quest(questID)
		if !ok {
			continue
		}

		next := progress(def, cur, match)
		if next == nil {
			continue
		}
		if isComplete(def, next) {
			done := now
			next.State = gamedata.QuestCompleted
			next.CompletedAt = &done
			completed = append(completed, completion{def: def, state: next})
		}
		j.states[questID] = next
		updated = append(updated, next)
	}
	j.mu.Unlock()

	sort.Slice(updated, func(a, b int) bool { return updated[a].QuestID < updated[b].QuestID })
	for _, c := range completed {
		e.complete(p, c.def, c.state)
	}
	return updated
}

// progress возвращает новый снимок или nil, если ничего не изменилось
func progress(def *gamedata.QuestDefinition, cur *gamedata.QuestStateData, match matcher) *gamedata.QuestStateData {
	var next *gamedata.QuestStateData
	for i, o := range def.Objectives {
		if i >= len(cur.Objectives) || cur.Objectives[i].Completed || !match(o) {
			continue
		}
		if next == nil {
			next = cur.Clone()
		}
		op := &next.Objectives[i]
		op.Current++
		if op.Current >= op.Target {
			op.Current = op.Target
			op.Completed = true
		}
	}
	return next
}

func isComplete(def *gamedata.QuestDefinition, s *gamedata.QuestStateData) bool {
	for i, o := range def.Objectives {
		if o.Optional {
			continue
		}
		if i >= len(s.Objectives) || !s.Objectives[i].Completed {
			return false
		}
	}
	return true
}

func (e *Engine) complete(p Participant, def *gamedata.QuestDefinition, state *gamedata.QuestStateData) {
	r := def.Rewards
	p.GrantRewards(r.Experience, r.Gold, r.ReputationFaction, r.ReputationAmount)
	e.logger.Info("🏆 Персонаж %d завершил квест %d (%s): +%d опыта, +%d золота",
		p.CharacterID(), def.QuestID, def.Title, r.Experience, r.Gold)

	e.listenersMu.RLock()
	listeners := append([]CompletionListener(nil), e.onComplete...)
	e.listenersMu.RUnlock()

	for _, l := range listeners {
		func() {
			defer func() {
				if rec := recover(); rec != nil {
					e.logger.Error("❌ Паника в подписчике завершения квеста %d: %v", def.QuestID, rec)
				}
			}()
			l(p.CharacterID(), def, state)
		}()
	}
}

// BuildDialogue строки диалога NPC: доступные квесты и квесты к сдаче
func (e *Engine) BuildDialogue(p Participant, npcTemplateID int) []gamedata.QuestDialogueOption {
	j := e.lookup(p.CharacterID())
	j.mu.Lock()
	defer j.mu.Unlock()

	var options []gamedata.QuestDialogueOption
	for _, def := range e.catalog.ByGiver(npcTemplateID) {
		if !offerableLocked(j, def, p.Level()) {
			continue
		}
		text := def.AcceptDialogue
		if text == "" {
			text = fmt.Sprintf("Accept %q", def.Title)
		}
		options = append(options, dialogueOption(gamedata.DialogueOfferQuest, text, def))
	}
	for _, def := range e.catalog.ByTurnIn(npcTemplateID) {
		s := j.states[def.QuestID]
		if s == nil || s.State != gamedata.QuestCompleted {
			continue
		}
		text := def.CompletionDialogue
		if text == "" {
			text = fmt.Sprintf("Complete %q", def.Title)
		}
		options = append(options, dialogueOption(gamedata.DialogueTurnInQuest, text, def))
	}
	return options
}

func offerableLocked(j *journal, def *gamedata.QuestDefinition, level int) bool {
	if s := j.states[def.QuestID]; s != nil {
		if s.State == gamedata.QuestActive {
			return false
		}
		if s.State == gamedata.QuestCompleted && !def.IsRepeatable {
			return false
		}
	}
	return eligibleLocked(j, def, level)
}

func dialogueOption(kind gamedata.DialogueOptionType, text string, def *gamedata.QuestDefinition) gamedata.QuestDialogueOption {
	id := def.QuestID
	return gamedata.QuestDialogueOption{Type: kind, Text: text, QuestID: &id, Quest: def}
}

// Dialogue полный разговор с NPC: сначала прогресс целей, затем строки диалога
func (e *Engine) Dialogue(p Participant, npcEntityID uint64, npcTemplateID int, npcName string, now time.Time) *protocol.QuestDialogueResponse {
	updated := e.OnDialogue(p, npcTemplateID, now)
	if npcName == "" {
		npcName = fmt.Sprintf("NPC_%d", npcTemplateID)
	}
	var entityID *uint64
	if npcEntityID != 0 {
		entityID = &npcEntityID
	}
	return &protocol.QuestDialogueResponse{
		NpcEntityID:   entityID,
		NpcName:       npcName,
		Options:       e.BuildDialogue(p, npcTemplateID),
		UpdatedStates: updated,
	}
}

// Stats сводка для статуса сервера
func (e *Engine) Stats() map[string]interface{} {
	e.mu.RLock()
	journals := make([]*journal, 0, len(e.journals))
	for _, j := range e.journals {
		journals = append(journals, j)
	}
	e.mu.RUnlock()

	active, completed := 0, 0
	for _, j := range journals {
		j.mu.Lock()
		for _, s := range j.states {
			switch s.State {
			case gamedata.QuestActive:
				active++
			case gamedata.QuestCompleted:
				completed++
			}
		}
		j.mu.Unlock()
	}
	return map[string]interface{}{
		"journals":         len(journals),
		"active_quests":    active,
		"completed_quests": completed,
	}
}
