package service

import (
	"encoding/json"
	"testing"

	"examhub_backend/internal/model"
	"examhub_backend/internal/util"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func choicePayload(t *testing.T, ids ...string) json.RawMessage {
	t.Helper()
	raw, err := json.Marshal(AnswerPayload{SelectedOptionIDs: ids})
	require.NoError(t, err)
	return raw
}

func pairsPayload(t *testing.T, pairs ...SubmittedPair) json.RawMessage {
	t.Helper()
	raw, err := json.Marshal(AnswerPayload{Pairs: pairs})
	require.NoError(t, err)
	return raw
}

func textPayload(t *testing.T, text string) json.RawMessage {
	t.Helper()
	raw, err := json.Marshal(AnswerPayload{Text: text})
	require.NoError(t, err)
	return raw
}

func singleChoiceQuestion(points int) model.SnapshotQuestion {
	return model.SnapshotQuestion{
		ID:           "q1",
		QuestionType: model.QuestionSingleChoice,
		Points:       points,
		Options: []model.SnapshotOption{
			{ID: "a", IsCorrect: false},
			{ID: "b", IsCorrect: true},
			{ID: "c", IsCorrect: false},
		},
	}
}

func multiChoiceQuestion(points int) model.SnapshotQuestion {
	return model.SnapshotQuestion{
		ID:           "q2",
		QuestionType: model.QuestionMultipleChoice,
		Points:       points,
		Options: []model.SnapshotOption{
			{ID: "a", IsCorrect: true},
			{ID: "b", IsCorrect: true},
			{ID: "c", IsCorrect: true},
			{ID: "d", IsCorrect: false},
		},
	}
}

func matchingQuestion(points int) model.SnapshotQuestion {
	return model.SnapshotQuestion{
		ID:           "q3",
		QuestionType: model.QuestionMatching,
		Points:       points,
		Pairs: []model.SnapshotPair{
			{LeftItem: "TCP", RightItem: "transport"},
			{LeftItem: "IP", RightItem: "network"},
			{LeftItem: "HTTP", RightItem: "application"},
			{LeftItem: "ARP", RightItem: "link"},
		},
	}
}

func TestGradeSingleChoice(t *testing.T) {
	q := singleChoiceQuestion(10)

	tests := []struct {
		name       string
		payload    json.RawMessage
		wantPoints int
		wantOK     bool
		wantErr    bool
	}{
		{"correct option earns full points", choicePayload(t, "b"), 10, true, false},
		{"wrong option earns zero", choicePayload(t, "a"), 0, false, false},
		{"no selection is invalid", choicePayload(t), 0, false, true},
		{"two selections are invalid", choicePayload(t, "a", "b"), 0, false, true},
		{"foreign option id is invalid", choicePayload(t, "zz"), 0, false, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, err := Grade(q, tt.payload)
			if tt.wantErr {
				require.Error(t, err)
				assert.True(t, util.IsValidationError(err))
				return
			}
			require.NoError(t, err)
			require.NotNil(t, res.PointsEarned)
			require.NotNil(t, res.IsCorrect)
			assert.Equal(t, tt.wantPoints, *res.PointsEarned)
			assert.Equal(t, tt.wantOK, *res.IsCorrect)
			assert.Equal(t, model.ReviewAutoGraded, res.ReviewStatus)
		})
	}
}

func TestGradeMultipleChoiceExactSet(t *testing.T) {
	q := multiChoiceQuestion(10)

	tests := []struct {
		name       string
		payload    json.RawMessage
		wantPoints int
		wantErr    bool
	}{
		// Correct set is {a, b, c}; anything else is all-or-nothing zero.
		{"exact set earns full points", choicePayload(t, "a", "b", "c"), 10, false},
		{"order does not matter", choicePayload(t, "c", "a", "b"), 10, false},
		{"subset earns zero", choicePayload(t, "a", "c"), 0, false},
		{"superset earns zero", choicePayload(t, "a", "b", "c", "d"), 0, false},
		{"single wrong pick earns zero", choicePayload(t, "d"), 0, false},
		{"empty selection is invalid", choicePayload(t), 0, true},
		{"duplicate selection is invalid", choicePayload(t, "a", "a", "b"), 0, true},
		{"foreign option id is invalid", choicePayload(t, "a", "zz"), 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, err := Grade(q, tt.payload)
			if tt.wantErr {
				require.Error(t, err)
				assert.True(t, util.IsValidationError(err))
				return
			}
			require.NoError(t, err)
			require.NotNil(t, res.PointsEarned)
			assert.Equal(t, tt.wantPoints, *res.PointsEarned)
			assert.Equal(t, tt.wantPoints == q.Points, *res.IsCorrect)
		})
	}
}

func TestGradeMatchingPartialCredit(t *testing.T) {
	q := matchingQuestion(40)

	tests := []struct {
		name       string
		payload    json.RawMessage
		wantPoints int
		wantOK     bool
		wantErr    bool
	}{
		{
			"all four pairs earn full points",
			pairsPayload(t,
				SubmittedPair{Left: "TCP", Right: "transport"},
				SubmittedPair{Left: "IP", Right: "network"},
				SubmittedPair{Left: "HTTP", Right: "application"},
				SubmittedPair{Left: "ARP", Right: "link"},
			),
			40, true, false,
		},
		{
			"three of four pairs earn floor(40*3/4)",
			pairsPayload(t,
				SubmittedPair{Left: "TCP", Right: "transport"},
				SubmittedPair{Left: "IP", Right: "network"},
				SubmittedPair{Left: "HTTP", Right: "application"},
				SubmittedPair{Left: "ARP", Right: "transport"},
			),
			30, false, false,
		},
		{
			"no correct pairs earn zero",
			pairsPayload(t,
				SubmittedPair{Left: "TCP", Right: "link"},
				SubmittedPair{Left: "IP", Right: "transport"},
				SubmittedPair{Left: "HTTP", Right: "network"},
				SubmittedPair{Left: "ARP", Right: "application"},
			),
			0, false, false,
		},
		{
			"missing a left item is invalid",
			pairsPayload(t,
				SubmittedPair{Left: "TCP", Right: "transport"},
				SubmittedPair{Left: "IP", Right: "network"},
				SubmittedPair{Left: "HTTP", Right: "application"},
			),
			0, false, true,
		},
		{
			"duplicated left item is invalid",
			pairsPayload(t,
				SubmittedPair{Left: "TCP", Right: "transport"},
				SubmittedPair{Left: "TCP", Right: "network"},
				SubmittedPair{Left: "HTTP", Right: "application"},
				SubmittedPair{Left: "ARP", Right: "link"},
			),
			0, false, true,
		},
		{
			"foreign left item is invalid",
			pairsPayload(t,
				SubmittedPair{Left: "UDP", Right: "transport"},
				SubmittedPair{Left: "IP", Right: "network"},
				SubmittedPair{Left: "HTTP", Right: "application"},
				SubmittedPair{Left: "ARP", Right: "link"},
			),
			0, false, true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, err := Grade(q, tt.payload)
			if tt.wantErr {
				require.Error(t, err)
				assert.True(t, util.IsValidationError(err))
				return
			}
			require.NoError(t, err)
			require.NotNil(t, res.PointsEarned)
			assert.Equal(t, tt.wantPoints, *res.PointsEarned)
			assert.Equal(t, tt.wantOK, *res.IsCorrect)
		})
	}
}

func TestGradeFloorNeverRoundsUp(t *testing.T) {
	q := matchingQuestion(10)
	// 3 of 4 correct on 10 points: 10*3/4 = 7.5 floors to 7.
	res, err := Grade(q, pairsPayload(t,
		SubmittedPair{Left: "TCP", Right: "transport"},
		SubmittedPair{Left: "IP", Right: "network"},
		SubmittedPair{Left: "HTTP", Right: "application"},
		SubmittedPair{Left: "ARP", Right: "network"},
	))
	// Duplicate right values are fine in a submission; only lefts are keyed.
	require.NoError(t, err)
	assert.Equal(t, 7, *res.PointsEarned)
}

func TestGradeManualTypesDeferToReview(t *testing.T) {
	for _, typ := range []string{model.QuestionShortAnswer, model.QuestionEssay, model.QuestionCode} {
		t.Run(typ, func(t *testing.T) {
			q := model.SnapshotQuestion{ID: "q9", QuestionType: typ, Points: 20}
			res, err := Grade(q, textPayload(t, "free text response"))
			require.NoError(t, err)
			assert.Nil(t, res.PointsEarned)
			assert.Nil(t, res.IsCorrect)
			assert.Equal(t, model.ReviewNeedsManual, res.ReviewStatus)
		})
	}
}

func TestGradeRejectsMalformedPayload(t *testing.T) {
	q := singleChoiceQuestion(5)
	_, err := Grade(q, json.RawMessage(`{"selectedOptionIds": "not-an-array"}`))
	require.Error(t, err)
	assert.True(t, util.IsValidationError(err))
}

func TestGradeUnknownQuestionType(t *testing.T) {
	q := model.SnapshotQuestion{ID: "qx", QuestionType: "fill_in_blank", Points: 5}
	_, err := Grade(q, textPayload(t, "whatever"))
	require.Error(t, err)
	assert.True(t, util.IsValidationError(err))
}
