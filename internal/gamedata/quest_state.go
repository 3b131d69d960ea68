package gamedata

import "time"

// QuestObjectiveProgress прогресс одной цели. Current всегда в [0, Target].
type QuestObjectiveProgress struct {
	ObjectiveID int  `json:"objective_id"`
	Current     int  `json:"current"`
	Target      int  `json:"target"`
	Completed   bool `json:"completed"`
}

// QuestStateData неизменяемый снимок состояния квеста игрока.
// Любое изменение создаёт новый снимок.
type QuestStateData struct {
	QuestID     int                      `json:"quest_id"`
	State       QuestState               `json:"state"`
	Objectives  []QuestObjectiveProgress `json:"objectives"`
	AcceptedAt  *time.Time               `json:"accepted_at,omitempty"`
	CompletedAt *time.Time               `json:"completed_at,omitempty"`
}

// Clone глубокая копия снимка
func (s *QuestStateData) Clone() *QuestStateData {
	if s == nil {
		return nil
	}
	out := *s
	out.Objectives = append([]QuestObjectiveProgress(nil), s.Objectives...)
	if s.AcceptedAt != nil {
		t := *s.AcceptedAt
		out.AcceptedAt = &t
	}
	if s.CompletedAt != nil {
		t := *s.CompletedAt
		out.CompletedAt = &t
	}
	return &out
}

// QuestDialogueOption строка диалога NPC
type QuestDialogueOption struct {
	Type    DialogueOptionType `json:"type"`
	Text    string             `json:"text"`
	QuestID *int               `json:"quest_id,omitempty"`
	Quest   *QuestDefinition   `json:"quest,omitempty"`
}
