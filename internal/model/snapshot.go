package model

import (
	"encoding/json"
	"time"
)

// DefinitionSnapshot is the frozen copy of a definition's scoring
// configuration and question tree, serialized onto the attempt row at start.
type DefinitionSnapshot struct {
	DefinitionID string             `json:"definitionId"`
	Title        string             `json:"title"`
	TimeLimit    int                `json:"timeLimit"`
	PassingScore int                `json:"passingScore"`
	Randomize    bool               `json:"randomize"`
	ShowAnswers  bool               `json:"showAnswers"`
	TakenAt      time.Time          `json:"takenAt"`
	Questions    []SnapshotQuestion `json:"questions"`
}

type SnapshotQuestion struct {
	ID           string           `json:"id"`
	QuestionType string           `json:"questionType"`
	Content      string           `json:"content"`
	Points       int              `json:"points"`
	Order        int              `json:"order"`
	Explanation  string           `json:"explanation,omitempty"`
	Options      []SnapshotOption `json:"options,omitempty"`
	Pairs        []SnapshotPair   `json:"pairs,omitempty"`
}

type SnapshotOption struct {
	ID          string `json:"id"`
	Content     string `json:"content"`
	IsCorrect   bool   `json:"isCorrect"`
	Order       int    `json:"order"`
	Explanation string `json:"explanation,omitempty"`
}

type SnapshotPair struct {
	LeftItem  string `json:"leftItem"`
	RightItem string `json:"rightItem"`
	Order     int    `json:"order"`
}

// SnapshotDefinition freezes a loaded definition (questions, options and pairs
// preloaded) into a DefinitionSnapshot.
func SnapshotDefinition(d *Definition, now time.Time) DefinitionSnapshot {
	snap := DefinitionSnapshot{
		DefinitionID: d.ID,
		Title:        d.Title,
		TimeLimit:    d.TimeLimit,
		PassingScore: d.PassingScore,
		Randomize:    d.Randomize,
		ShowAnswers:  d.ShowAnswers,
		TakenAt:      now,
		Questions:    make([]SnapshotQuestion, 0, len(d.Questions)),
	}
	for _, q := range d.Questions {
		sq := SnapshotQuestion{
			ID:           q.ID,
			QuestionType: q.QuestionType,
			Content:      q.Content,
			Points:       q.Points,
			Order:        q.Order,
			Explanation:  q.Explanation,
		}
		for _, o := range q.Options {
			sq.Options = append(sq.Options, SnapshotOption{
				ID:          o.ID,
				Content:     o.Content,
				IsCorrect:   o.IsCorrect,
				Order:       o.Order,
				Explanation: o.Explanation,
			})
		}
		for _, p := range q.Pairs {
			sq.Pairs = append(sq.Pairs, SnapshotPair{
				LeftItem:  p.LeftItem,
				RightItem: p.RightItem,
				Order:     p.Order,
			})
		}
		snap.Questions = append(snap.Questions, sq)
	}
	return snap
}

// QuestionByID returns the snapshot question with the given id.
func (s *DefinitionSnapshot) QuestionByID(id string) (SnapshotQuestion, bool) {
	for _, q := range s.Questions {
		if q.ID == id {
			return q, true
		}
	}
	return SnapshotQuestion{}, false
}

// TotalPossible sums points over all questions in the snapshot.
func (s *DefinitionSnapshot) TotalPossible() int {
	total := 0
	for _, q := range s.Questions {
		total += q.Points
	}
	return total
}

func (s *DefinitionSnapshot) Marshal() (json.RawMessage, error) {
	return json.Marshal(s)
}

func ParseSnapshot(raw json.RawMessage) (*DefinitionSnapshot, error) {
	var snap DefinitionSnapshot
	if err := json.Unmarshal(raw, &snap); err != nil {
		return nil, err
	}
	return &snap, nil
}
