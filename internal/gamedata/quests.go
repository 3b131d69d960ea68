package gamedata

import "sort"

// QuestState состояние квеста у игрока
type QuestState int

const (
	QuestInactive QuestState = iota
	QuestAvailable
	QuestActive
	QuestCompleted
	QuestFailed
)

func (s QuestState) String() string {
	switch s {
	case QuestInactive:
		return "Inactive"
	case QuestAvailable:
		return "Available"
	case QuestActive:
		return "Active"
	case QuestCompleted:
		return "Completed"
	case QuestFailed:
		return "Failed"
	default:
		return "Unknown"
	}
}

// ObjectiveType тип цели квеста
type ObjectiveType int

const (
	ObjectiveKill ObjectiveType = iota
	ObjectiveCollect
	ObjectiveInteract
	ObjectiveExplore
	ObjectiveEscort
	ObjectiveDefend
	ObjectiveTalk
)

// DialogueOptionType тип строки диалога
type DialogueOptionType int

const (
	DialogueGossip DialogueOptionType = iota
	DialogueOfferQuest
	DialogueTurnInQuest
	DialogueProgressUpdate
)

// QuestObjective описание цели
type QuestObjective struct {
	ObjectiveID         int           `json:"objective_id"`
	Type                ObjectiveType `json:"type"`
	Description         string        `json:"description"`
	TargetCount         int           `json:"target_count"`
	TargetNpcTemplateID *int          `json:"target_npc_template_id,omitempty"`
	TargetTag           string        `json:"target_tag,omitempty"`
	Optional            bool          `json:"optional,omitempty"`
}

// QuestReward награда за квест
type QuestReward struct {
	Experience        int      `json:"experience"`
	Gold              int      `json:"gold"`
	ReputationFaction *Faction `json:"reputation_faction,omitempty"`
	ReputationAmount  int      `json:"reputation_amount,omitempty"`
}

// QuestDefinition неизменяемое описание квеста
type QuestDefinition struct {
	QuestID             int              `json:"quest_id"`
	Title               string           `json:"title"`
	Description         string           `json:"description"`
	MinimumLevel        int              `json:"minimum_level"`
	IsRepeatable        bool             `json:"is_repeatable,omitempty"`
	IsMainStory         bool             `json:"is_main_story,omitempty"`
	Prerequisites       []int            `json:"prerequisites,omitempty"`
	Objectives          []QuestObjective `json:"objectives"`
	Rewards             QuestReward      `json:"rewards"`
	GiverNpcTemplateID  *int             `json:"giver_npc_template_id,omitempty"`
	TurnInNpcTemplateID *int             `json:"turn_in_npc_template_id,omitempty"`
	AcceptDialogue      string           `json:"accept_dialogue,omitempty"`
	CompletionDialogue  string           `json:"completion_dialogue,omitempty"`
}

// Идентификаторы квестов
const (
	QuestAwakeningID      = 10001
	QuestWorldrootsPainID = 10002
	QuestThornsInGroveID  = 10003
)

func intPtr(v int) *int { return &v }

func factionPtr(f Faction) *Faction { return &f }

var questCatalog = map[int]*QuestDefinition{
	QuestAwakeningID: {
		QuestID:             QuestAwakeningID,
		Title:               "Awakening",
		Description:         "Answer Elder Tharivol's summons and speak with Instructor Lethril to begin your path.",
		MinimumLevel:        1,
		IsMainStory:         true,
		GiverNpcTemplateID:  intPtr(NPCElderTharivol),
		TurnInNpcTemplateID: intPtr(NPCInstructorLethril),
		Objectives: []QuestObjective{{
			ObjectiveID:         1,
			Type:                ObjectiveTalk,
			TargetCount:         1,
			TargetNpcTemplateID: intPtr(NPCInstructorLethril),
			Description:         "Speak with Instructor Lethril.",
		}},
		Rewards:        QuestReward{Experience: 250, Gold: 5},
		AcceptDialogue: "The worldroot stirs. Go, meet Instructor Lethril and steel yourself.",
	},
	QuestWorldrootsPainID: {
		QuestID:             QuestWorldrootsPainID,
		Title:               "The Worldroot's Pain",
		Description:         "Elder Tharivol needs fresh eyes on the corruption. Meet Scout Maerith at the breach and report back.",
		MinimumLevel:        1,
		IsMainStory:         true,
		GiverNpcTemplateID:  intPtr(NPCElderTharivol),
		TurnInNpcTemplateID: intPtr(NPCElderTharivol),
		Prerequisites:       []int{QuestAwakeningID},
		Objectives: []QuestObjective{{
			ObjectiveID:         1,
			Type:                ObjectiveTalk,
			TargetCount:         1,
			TargetNpcTemplateID: intPtr(NPCScoutMaerith),
			Description:         "Hear Scout Maerith's report.",
		}},
		Rewards: QuestReward{
			Experience:        400,
			Gold:              10,
			ReputationFaction: factionPtr(FactionVerdantCircles),
			ReputationAmount:  50,
		},
		AcceptDialogue:     "The Worldroot aches. Learn what Scout Maerith has seen.",
		CompletionDialogue: "Maerith's report is grim. We must act before the rot spreads further.",
	},
	QuestThornsInGroveID: {
		QuestID:             QuestThornsInGroveID,
		Title:               "Thorns in the Grove",
		Description:         "Blighted thornlings creep out of the grove after dusk. Cull them before they root.",
		MinimumLevel:        1,
		GiverNpcTemplateID:  intPtr(NPCScoutMaerith),
		TurnInNpcTemplateID: intPtr(NPCScoutMaerith),
		Prerequisites:       []int{QuestWorldrootsPainID},
		Objectives: []QuestObjective{{
			ObjectiveID:         1,
			Type:                ObjectiveKill,
			TargetCount:         3,
			TargetNpcTemplateID: intPtr(NPCBlightedThornling),
			Description:         "Destroy Blighted Thornlings.",
		}},
		Rewards: QuestReward{Experience: 300, Gold: 8},
	},
}

// GetQuest возвращает описание квеста
func GetQuest(id int) (*QuestDefinition, bool) {
	q, ok := questCatalog[id]
	return q, ok
}

// QuestsByGiver квесты, которые выдаёт NPC шаблона, по возрастанию id
func QuestsByGiver(npcTemplateID int) []*QuestDefinition {
	return filterQuests(func(q *QuestDefinition) bool {
		return q.GiverNpcTemplateID != nil && *q.GiverNpcTemplateID == npcTemplateID
	})
}

// QuestsByTurnIn квесты, которые сдаются NPC шаблона, по возрастанию id
func QuestsByTurnIn(npcTemplateID int) []*QuestDefinition {
	return filterQuests(func(q *QuestDefinition) bool {
		return q.TurnInNpcTemplateID != nil && *q.TurnInNpcTemplateID == npcTemplateID
	})
}

// IsQuestNPC true если шаблон участвует хотя бы в одном квесте
func IsQuestNPC(npcTemplateID int) bool {
	for _, q := range questCatalog {
		if q.GiverNpcTemplateID != nil && *q.GiverNpcTemplateID == npcTemplateID {
			return true
		}
		if q.TurnInNpcTemplateID != nil && *q.TurnInNpcTemplateID == npcTemplateID {
			return true
		}
		for _, o := range q.Objectives {
			if o.TargetNpcTemplateID != nil && *o.TargetNpcTemplateID == npcTemplateID {
				return true
			}
		}
	}
	return false
}

// AllQuests все квесты каталога по возрастанию id
func AllQuests() []*QuestDefinition {
	return filterQuests(func(*QuestDefinition) bool { return true })
}

func filterQuests(pred func(*QuestDefinition) bool) []*QuestDefinition {
	var out []*QuestDefinition
	for _, q := range questCatalog {
		if pred(q) {
			out = append(out, q)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].QuestID < out[j].QuestID })
	return out
}
