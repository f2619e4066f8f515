package service

import (
	"testing"

	"examhub_backend/internal/model"
	"examhub_backend/internal/util"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func intPtr(v int) *int    { return &v }
func boolPtr(v bool) *bool { return &v }

func twoQuestionSnapshot(passingScore int) *model.DefinitionSnapshot {
	return &model.DefinitionSnapshot{
		DefinitionID: "d1",
		PassingScore: passingScore,
		Questions: []model.SnapshotQuestion{
			{ID: "q1", QuestionType: model.QuestionSingleChoice, Points: 50},
			{ID: "q2", QuestionType: model.QuestionSingleChoice, Points: 50},
		},
	}
}

func autoAnswer(questionID string, points int, correct bool) *model.Answer {
	return &model.Answer{
		QuestionID:   questionID,
		PointsEarned: intPtr(points),
		IsCorrect:    boolPtr(correct),
		ReviewStatus: model.ReviewAutoGraded,
	}
}

func TestAggregateBelowThresholdFails(t *testing.T) {
	snap := twoQuestionSnapshot(70)
	answers := map[string]*model.Answer{
		"q1": autoAnswer("q1", 50, true),
		"q2": autoAnswer("q2", 0, false),
	}

	res, err := Aggregate(snap, answers)
	require.NoError(t, err)
	assert.Equal(t, 50, res.TotalEarned)
	assert.Equal(t, 100, res.TotalPossible)
	assert.Equal(t, 50, res.Percentage)
	assert.False(t, res.IsPassed)
	assert.Equal(t, 0, res.PendingReview)
}

func TestAggregateThresholdIsInclusive(t *testing.T) {
	snap := twoQuestionSnapshot(50)
	answers := map[string]*model.Answer{
		"q1": autoAnswer("q1", 50, true),
		"q2": autoAnswer("q2", 0, false),
	}

	res, err := Aggregate(snap, answers)
	require.NoError(t, err)
	assert.Equal(t, 50, res.Percentage)
	assert.True(t, res.IsPassed)
}

func TestAggregateUnansweredScoresZero(t *testing.T) {
	snap := twoQuestionSnapshot(60)

	res, err := Aggregate(snap, map[string]*model.Answer{
		"q1": autoAnswer("q1", 50, true),
	})
	require.NoError(t, err)
	assert.Equal(t, 50, res.TotalEarned)
	assert.Equal(t, 0, res.PendingReview)

	require.Len(t, res.Breakdown, 2)
	assert.True(t, res.Breakdown[0].Answered)
	assert.False(t, res.Breakdown[1].Answered)
	assert.Nil(t, res.Breakdown[1].PointsEarned)
}

func TestAggregatePendingReviewCountsZeroProvisionally(t *testing.T) {
	snap := &model.DefinitionSnapshot{
		DefinitionID: "d2",
		PassingScore: 60,
		Questions: []model.SnapshotQuestion{
			{ID: "q1", QuestionType: model.QuestionSingleChoice, Points: 60},
			{ID: "q2", QuestionType: model.QuestionEssay, Points: 40},
		},
	}
	answers := map[string]*model.Answer{
		"q1": autoAnswer("q1", 60, true),
		"q2": {QuestionID: "q2", ReviewStatus: model.ReviewNeedsManual},
	}

	res, err := Aggregate(snap, answers)
	require.NoError(t, err)
	assert.Equal(t, 60, res.TotalEarned)
	assert.Equal(t, 1, res.PendingReview)
	assert.Equal(t, 60, res.Percentage)
	assert.True(t, res.IsPassed)
}

func TestAggregateReviewedPointsCount(t *testing.T) {
	snap := &model.DefinitionSnapshot{
		DefinitionID: "d3",
		PassingScore: 80,
		Questions: []model.SnapshotQuestion{
			{ID: "q1", QuestionType: model.QuestionSingleChoice, Points: 60},
			{ID: "q2", QuestionType: model.QuestionEssay, Points: 40},
		},
	}
	answers := map[string]*model.Answer{
		"q1": autoAnswer("q1", 60, true),
		"q2": {QuestionID: "q2", PointsEarned: intPtr(25), ReviewStatus: model.ReviewReviewed},
	}

	res, err := Aggregate(snap, answers)
	require.NoError(t, err)
	assert.Equal(t, 85, res.TotalEarned)
	assert.Equal(t, 0, res.PendingReview)
	assert.Equal(t, 85, res.Percentage)
	assert.True(t, res.IsPassed)
}

func TestAggregateZeroPossibleIsInvalid(t *testing.T) {
	snap := &model.DefinitionSnapshot{DefinitionID: "d4", PassingScore: 60}
	_, err := Aggregate(snap, nil)
	require.Error(t, err)
	assert.True(t, util.IsValidationError(err))
}

func TestScorePercentageRoundsHalfUp(t *testing.T) {
	tests := []struct {
		earned, possible, want int
	}{
		{0, 100, 0},
		{100, 100, 100},
		{1, 3, 33},   // 33.33 down
		{2, 3, 67},   // 66.67 up
		{1, 8, 13},   // 12.5 half rounds up
		{3, 8, 38},   // 37.5 half rounds up
		{1, 200, 1},   // 0.5 half rounds up
		{99, 200, 50}, // 49.5 half rounds up
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, scorePercentage(tt.earned, tt.possible),
			"earned=%d possible=%d", tt.earned, tt.possible)
	}
}

func TestAttemptStatusFor(t *testing.T) {
	assert.Equal(t, model.AttemptSubmitted, attemptStatusFor(0))
	assert.Equal(t, model.AttemptSubmittedPending, attemptStatusFor(2))
}
