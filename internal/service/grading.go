package service

import (
	"encoding/json"

	"examhub_backend/internal/model"
	"examhub_backend/internal/util"
)

// AnswerPayload is the submitted response for one question. Exactly one of
// the fields is meaningful, matching the question type.
type AnswerPayload struct {
	SelectedOptionIDs []string        `json:"selectedOptionIds,omitempty"`
	Pairs             []SubmittedPair `json:"pairs,omitempty"`
	Text              string          `json:"text,omitempty"`
}

type SubmittedPair struct {
	Left  string `json:"left"`
	Right string `json:"right"`
}

// GradeResult is the outcome for one answered question. PointsEarned and
// IsCorrect stay nil for manually graded types until a reviewer resolves them.
type GradeResult struct {
	PointsEarned *int
	IsCorrect    *bool
	ReviewStatus string
}

func ParsePayload(raw json.RawMessage) (*AnswerPayload, error) {
	var p AnswerPayload
	if err := json.Unmarshal(raw, &p); err != nil {
		return nil, util.Validationf("malformed answer payload: %v", err)
	}
	return &p, nil
}

// Grade maps a (question, payload) pair to a point/correctness outcome. It is
// a pure function over the attempt's definition snapshot: identity only, never
// presentation order, so randomization cannot change the result. Malformed
// payloads (wrong cardinality, unknown option id, uncovered left item) are a
// validation error, not a zero-point grade.
func Grade(q model.SnapshotQuestion, raw json.RawMessage) (GradeResult, error) {
	payload, err := ParsePayload(raw)
	if err != nil {
		return GradeResult{}, err
	}

	switch q.QuestionType {
	case model.QuestionSingleChoice, model.QuestionTrueFalse:
		return gradeSingleChoice(q, payload)
	case model.QuestionMultipleChoice:
		return gradeMultipleChoice(q, payload)
	case model.QuestionMatching:
		return gradeMatching(q, payload)
	case model.QuestionShortAnswer, model.QuestionEssay, model.QuestionCode:
		return GradeResult{ReviewStatus: model.ReviewNeedsManual}, nil
	default:
		return GradeResult{}, util.Validationf("unknown question type %q", q.QuestionType)
	}
}

func gradeSingleChoice(q model.SnapshotQuestion, p *AnswerPayload) (GradeResult, error) {
	if len(p.SelectedOptionIDs) != 1 {
		return GradeResult{}, util.Validationf("question %s expects exactly one selected option, got %d", q.ID, len(p.SelectedOptionIDs))
	}
	selected, ok := optionByID(q, p.SelectedOptionIDs[0])
	if !ok {
		return GradeResult{}, util.Validationf("option %s does not belong to question %s", p.SelectedOptionIDs[0], q.ID)
	}
	return autoResult(q, selected.IsCorrect, boolPoints(selected.IsCorrect, q.Points)), nil
}

// gradeMultipleChoice applies exact set equality, all or nothing. No partial
// credit (see DESIGN.md).
func gradeMultipleChoice(q model.SnapshotQuestion, p *AnswerPayload) (GradeResult, error) {
	if len(p.SelectedOptionIDs) == 0 {
		return GradeResult{}, util.Validationf("question %s expects at least one selected option", q.ID)
	}
	selected := make(map[string]bool, len(p.SelectedOptionIDs))
	for _, id := range p.SelectedOptionIDs {
		if _, ok := optionByID(q, id); !ok {
			return GradeResult{}, util.Validationf("option %s does not belong to question %s", id, q.ID)
		}
		if selected[id] {
			return GradeResult{}, util.Validationf("option %s selected twice for question %s", id, q.ID)
		}
		selected[id] = true
	}

	correct := true
	for _, o := range q.Options {
		if o.IsCorrect != selected[o.ID] {
			correct = false
			break
		}
	}
	return autoResult(q, correct, boolPoints(correct, q.Points)), nil
}

// gradeMatching awards floor(points * correctPairs / totalPairs). The payload
// must cover every left item exactly once.
func gradeMatching(q model.SnapshotQuestion, p *AnswerPayload) (GradeResult, error) {
	if len(p.Pairs) != len(q.Pairs) {
		return GradeResult{}, util.Validationf("question %s expects %d pairs, got %d", q.ID, len(q.Pairs), len(p.Pairs))
	}

	stored := make(map[string]string, len(q.Pairs))
	for _, pair := range q.Pairs {
		stored[pair.LeftItem] = pair.RightItem
	}

	seen := make(map[string]bool, len(p.Pairs))
	correctCount := 0
	for _, pair := range p.Pairs {
		right, ok := stored[pair.Left]
		if !ok {
			return GradeResult{}, util.Validationf("left item %q does not belong to question %s", pair.Left, q.ID)
		}
		if seen[pair.Left] {
			return GradeResult{}, util.Validationf("left item %q matched twice for question %s", pair.Left, q.ID)
		}
		seen[pair.Left] = true
		if pair.Right == right {
			correctCount++
		}
	}

	points := q.Points * correctCount / len(q.Pairs) // integer division = floor
	return autoResult(q, correctCount == len(q.Pairs), points), nil
}

func optionByID(q model.SnapshotQuestion, id string) (model.SnapshotOption, bool) {
	for _, o := range q.Options {
		if o.ID == id {
			return o, true
		}
	}
	return model.SnapshotOption{}, false
}

func boolPoints(correct bool, points int) int {
	if correct {
		return points
	}
	return 0
}

func autoResult(q model.SnapshotQuestion, correct bool, points int) GradeResult {
	return GradeResult{
		PointsEarned: &points,
		IsCorrect:    &correct,
		ReviewStatus: model.ReviewAutoGraded,
	}
}
