package model

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSnapshotDefinitionFreezesQuestionTree(t *testing.T) {
	d := &Definition{
		Title:        "go basics",
		TimeLimit:    30,
		PassingScore: 60,
		Randomize:    true,
		Questions: []Question{
			{
				UUIDBase:     UUIDBase{ID: "q1"},
				QuestionType: QuestionSingleChoice,
				Content:      "stem",
				Points:       10,
				Options: []Option{
					{UUIDBase: UUIDBase{ID: "o1"}, Content: "right", IsCorrect: true},
					{UUIDBase: UUIDBase{ID: "o2"}, Content: "wrong"},
				},
			},
			{
				UUIDBase:     UUIDBase{ID: "q2"},
				QuestionType: QuestionMatching,
				Points:       20,
				Pairs: []MatchingPair{
					{LeftItem: "TCP", RightItem: "transport"},
				},
			},
		},
	}
	d.ID = "d1"

	now := time.Now()
	snap := SnapshotDefinition(d, now)

	assert.Equal(t, "d1", snap.DefinitionID)
	assert.Equal(t, 30, snap.TimeLimit)
	assert.True(t, snap.Randomize)
	assert.Equal(t, 30, snap.TotalPossible())

	q, ok := snap.QuestionByID("q1")
	require.True(t, ok)
	assert.Len(t, q.Options, 2)
	assert.True(t, q.Options[0].IsCorrect)

	_, ok = snap.QuestionByID("missing")
	assert.False(t, ok)

	// Edits to the live definition after snapshotting must not leak in.
	d.Questions[0].Points = 99
	assert.Equal(t, 30, snap.TotalPossible())
}

func TestSnapshotRoundTrip(t *testing.T) {
	snap := DefinitionSnapshot{
		DefinitionID: "d2",
		PassingScore: 70,
		TakenAt:      time.Now().UTC().Truncate(time.Second),
		Questions: []SnapshotQuestion{
			{ID: "q1", QuestionType: QuestionEssay, Points: 40},
		},
	}

	raw, err := snap.Marshal()
	require.NoError(t, err)

	parsed, err := ParseSnapshot(raw)
	require.NoError(t, err)
	assert.Equal(t, snap.DefinitionID, parsed.DefinitionID)
	assert.Equal(t, snap.PassingScore, parsed.PassingScore)
	require.Len(t, parsed.Questions, 1)
	assert.Equal(t, QuestionEssay, parsed.Questions[0].QuestionType)
}

func TestAttemptDeadlinePassed(t *testing.T) {
	now := time.Now()

	untimed := &Attempt{}
	assert.False(t, untimed.DeadlinePassed(now))

	past := now.Add(-time.Minute)
	expired := &Attempt{DeadlineAt: &past}
	assert.True(t, expired.DeadlinePassed(now))

	future := now.Add(time.Minute)
	live := &Attempt{DeadlineAt: &future}
	assert.False(t, live.DeadlinePassed(now))
}
