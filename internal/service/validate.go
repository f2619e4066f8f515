package service

import (
	"examhub_backend/internal/model"
	"examhub_backend/internal/util"
)

// ValidateDefinition checks the authored question tree against the publish
// invariants. Called by Publish and by the standalone validate endpoint.
func ValidateDefinition(d *model.Definition) error {
	if len(d.Questions) == 0 {
		return util.Validationf("definition %s has no questions", d.ID)
	}
	if d.PassingScore < 0 || d.PassingScore > 100 {
		return util.Validationf("passing score must be within [0, 100], got %d", d.PassingScore)
	}
	if d.MaxAttempts != nil && *d.MaxAttempts <= 0 {
		return util.Validationf("max attempts must be positive when set, got %d", *d.MaxAttempts)
	}
	for _, q := range d.Questions {
		if err := validateQuestion(&q); err != nil {
			return err
		}
	}
	return nil
}

func validateQuestion(q *model.Question) error {
	if q.Points <= 0 {
		return util.Validationf("question %s has non-positive point value %d", q.ID, q.Points)
	}

	switch q.QuestionType {
	case model.QuestionSingleChoice, model.QuestionTrueFalse, model.QuestionMultipleChoice:
		return validateChoiceQuestion(q)
	case model.QuestionMatching:
		return validateMatchingQuestion(q)
	case model.QuestionShortAnswer, model.QuestionEssay, model.QuestionCode:
		return nil
	default:
		return util.Validationf("question %s has unknown type %q", q.ID, q.QuestionType)
	}
}

func validateChoiceQuestion(q *model.Question) error {
	if len(q.Options) < 2 {
		return util.Validationf("question %s needs at least two options, got %d", q.ID, len(q.Options))
	}
	if q.QuestionType == model.QuestionTrueFalse && len(q.Options) != 2 {
		return util.Validationf("true/false question %s must have exactly two options, got %d", q.ID, len(q.Options))
	}

	correct := 0
	for _, o := range q.Options {
		if o.IsCorrect {
			correct++
		}
	}

	switch q.QuestionType {
	case model.QuestionMultipleChoice:
		if correct < 1 {
			return util.Validationf("question %s has no correct option", q.ID)
		}
	default: // single choice, true/false
		if correct != 1 {
			return util.Validationf("question %s must have exactly one correct option, got %d", q.ID, correct)
		}
	}
	return nil
}

func validateMatchingQuestion(q *model.Question) error {
	if len(q.Pairs) == 0 {
		return util.Validationf("matching question %s has no pairs", q.ID)
	}
	lefts := make(map[string]bool, len(q.Pairs))
	rights := make(map[string]bool, len(q.Pairs))
	for _, p := range q.Pairs {
		if p.LeftItem == "" || p.RightItem == "" {
			return util.Validationf("matching question %s has an empty pair item", q.ID)
		}
		if lefts[p.LeftItem] {
			return util.Validationf("matching question %s has duplicate left item %q", q.ID, p.LeftItem)
		}
		if rights[p.RightItem] {
			return util.Validationf("matching question %s has duplicate right item %q", q.ID, p.RightItem)
		}
		lefts[p.LeftItem] = true
		rights[p.RightItem] = true
	}
	return nil
}
