package service

import (
	"examhub_backend/internal/model"
	"examhub_backend/internal/util"
)

// QuestionOutcome is one row of the per-question breakdown.
type QuestionOutcome struct {
	QuestionID   string `json:"questionId"`
	Points       int    `json:"points"`
	PointsEarned *int   `json:"pointsEarned"`
	IsCorrect    *bool  `json:"isCorrect"`
	ReviewStatus string `json:"reviewStatus"`
	Answered     bool   `json:"answered"`
}

// AggregateResult is the attempt-level score produced from a definition
// snapshot and the recorded answers.
type AggregateResult struct {
	TotalEarned   int               `json:"totalEarned"`
	TotalPossible int               `json:"totalPossible"`
	Percentage    int               `json:"percentage"`
	IsPassed      bool              `json:"isPassed"`
	PendingReview int               `json:"pendingReview"`
	Breakdown     []QuestionOutcome `json:"breakdown"`
}

// Aggregate sums resolved answers over the snapshot taken at attempt start,
// never the live definition. Unanswered questions score zero; answers still
// awaiting manual review count zero provisionally and are reported in
// PendingReview. The pass threshold is inclusive.
func Aggregate(snap *model.DefinitionSnapshot, answers map[string]*model.Answer) (AggregateResult, error) {
	possible := snap.TotalPossible()
	if possible == 0 {
		return AggregateResult{}, util.Validationf("definition %s has zero total points, attempt is invalid", snap.DefinitionID)
	}

	res := AggregateResult{
		TotalPossible: possible,
		Breakdown:     make([]QuestionOutcome, 0, len(snap.Questions)),
	}

	for _, q := range snap.Questions {
		outcome := QuestionOutcome{
			QuestionID:   q.ID,
			Points:       q.Points,
			ReviewStatus: model.ReviewAutoGraded,
		}
		if ans, ok := answers[q.ID]; ok {
			outcome.Answered = true
			outcome.ReviewStatus = ans.ReviewStatus
			outcome.PointsEarned = ans.PointsEarned
			outcome.IsCorrect = ans.IsCorrect
			if ans.ReviewStatus == model.ReviewNeedsManual {
				res.PendingReview++
			} else if ans.PointsEarned != nil {
				res.TotalEarned += *ans.PointsEarned
			}
		}
		res.Breakdown = append(res.Breakdown, outcome)
	}

	res.Percentage = scorePercentage(res.TotalEarned, possible)
	res.IsPassed = res.Percentage >= snap.PassingScore
	return res, nil
}

// scorePercentage rounds 100*earned/possible half-up to the nearest integer.
// Integer arithmetic keeps the rule exact for the tests and the statistics.
func scorePercentage(earned, possible int) int {
	if possible <= 0 {
		return 0
	}
	return (200*earned + possible) / (2 * possible)
}

// attemptStatusFor returns the post-finalize status: pending review keeps the
// attempt provisional until every manual answer is resolved.
func attemptStatusFor(pendingReview int) string {
	if pendingReview > 0 {
		return model.AttemptSubmittedPending
	}
	return model.AttemptSubmitted
}
