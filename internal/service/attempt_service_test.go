package service

import (
	"os"
	"sync"
	"testing"
	"time"

	"examhub_backend/internal/model"
	"examhub_backend/internal/repository"
	"examhub_backend/pkg/logger"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/driver/mysql"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// recordingInvalidator stands in for the statistics service so the tests can
// observe cache invalidations.
type recordingInvalidator struct {
	mu  sync.Mutex
	ids []string
}

func (r *recordingInvalidator) InvalidateDefinition(definitionID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.ids = append(r.ids, definitionID)
}

func (r *recordingInvalidator) calls() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.ids...)
}

// Integration tests against a real MySQL instance; set
// EXAMHUB_TEST_DATABASE_DSN to run them, they are skipped otherwise.
func attemptTestStack(t *testing.T) (*gorm.DB, *AttemptService, *DefinitionService, *recordingInvalidator) {
	t.Helper()
	dsn := os.Getenv("EXAMHUB_TEST_DATABASE_DSN")
	if dsn == "" {
		t.Skip("EXAMHUB_TEST_DATABASE_DSN not set, skipping integration test")
	}

	db, err := gorm.Open(mysql.Open(dsn), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(
		&model.Definition{}, &model.Question{}, &model.Option{},
		&model.MatchingPair{}, &model.Attempt{}, &model.Answer{},
	))
	for _, table := range []string{"answers", "attempts", "options", "matching_pairs", "questions", "definitions"} {
		require.NoError(t, db.Exec("DELETE FROM "+table).Error)
	}

	if logger.Log == nil {
		logger.Log = zap.NewNop()
	}

	attempts := repository.NewAttemptRepository(db)
	definitions := repository.NewDefinitionRepository(db)
	inv := &recordingInvalidator{}

	svc := NewAttemptService(attempts, definitions, nil)
	svc.Stats = inv
	return db, svc, NewDefinitionService(definitions), inv
}

func publishedDefinition(t *testing.T, defs *DefinitionService, questions ...QuestionRequest) *model.Definition {
	t.Helper()
	title := "networking basics"
	d, err := defs.CreateDefinition(1, DefinitionRequest{Title: &title})
	require.NoError(t, err)
	for _, q := range questions {
		_, err := defs.AddQuestion(d.ID, q)
		require.NoError(t, err)
	}
	published, err := defs.Publish(d.ID)
	require.NoError(t, err)
	return published
}

func correctOptionID(t *testing.T, q model.Question) string {
	t.Helper()
	for _, o := range q.Options {
		if o.IsCorrect {
			return o.ID
		}
	}
	t.Fatalf("question %s has no correct option", q.ID)
	return ""
}

func TestFinalizeInvalidatesStatisticsCache(t *testing.T) {
	_, svc, defs, inv := attemptTestStack(t)

	d := publishedDefinition(t, defs, QuestionRequest{
		QuestionType: model.QuestionSingleChoice,
		Content:      "stem",
		Points:       10,
		Options: []OptionRequest{
			{Content: "right", IsCorrect: true},
			{Content: "wrong"},
		},
	})

	started, err := svc.StartAttempt(d.ID, 5)
	require.NoError(t, err)
	require.NoError(t, svc.RecordAnswer(started.AttemptID, 5, d.Questions[0].ID,
		choicePayload(t, correctOptionID(t, d.Questions[0]))))

	assert.Empty(t, inv.calls(), "no invalidation before the attempt closes")

	res, err := svc.FinalizeAttempt(started.AttemptID, 5)
	require.NoError(t, err)
	assert.Equal(t, model.AttemptSubmitted, res.Status)
	assert.Contains(t, inv.calls(), d.ID, "finalize must drop the cached rollup")

	// Idempotent re-finalize returns the stored result without re-invalidating.
	before := len(inv.calls())
	_, err = svc.FinalizeAttempt(started.AttemptID, 5)
	require.NoError(t, err)
	assert.Len(t, inv.calls(), before)
}

func TestConcurrentReviewsSerialize(t *testing.T) {
	db, svc, defs, inv := attemptTestStack(t)

	d := publishedDefinition(t, defs,
		QuestionRequest{QuestionType: model.QuestionEssay, Content: "essay one", Points: 40},
		QuestionRequest{QuestionType: model.QuestionEssay, Content: "essay two", Points: 60},
	)
	q1, q2 := d.Questions[0].ID, d.Questions[1].ID

	started, err := svc.StartAttempt(d.ID, 9)
	require.NoError(t, err)
	require.NoError(t, svc.RecordAnswer(started.AttemptID, 9, q1, textPayload(t, "first response")))
	require.NoError(t, svc.RecordAnswer(started.AttemptID, 9, q2, textPayload(t, "second response")))

	res, err := svc.FinalizeAttempt(started.AttemptID, 9)
	require.NoError(t, err)
	require.Equal(t, model.AttemptSubmittedPending, res.Status)
	require.Equal(t, 2, res.PendingReview)

	var wg sync.WaitGroup
	reviewErrs := make([]error, 2)
	for i, review := range []struct {
		questionID string
		points     int
	}{
		{q1, 40},
		{q2, 60},
	} {
		wg.Add(1)
		go func(i int, questionID string, points int) {
			defer wg.Done()
			_, reviewErrs[i] = svc.ReviewAnswer(started.AttemptID, questionID, points, "good")
		}(i, review.questionID, review.points)
	}
	wg.Wait()
	require.NoError(t, reviewErrs[0])
	require.NoError(t, reviewErrs[1])

	// Both reviews land: neither aggregate overwrites the other, and each
	// review takes its own finalize version (1 from finalize + 2 reviews).
	var stored model.Attempt
	require.NoError(t, db.First(&stored, "id = ?", started.AttemptID).Error)
	assert.Equal(t, model.AttemptSubmitted, stored.Status)
	assert.Equal(t, 100, stored.Score)
	assert.Equal(t, 100, stored.Percentage)
	assert.True(t, stored.IsPassed)
	assert.Equal(t, 3, stored.FinalizeVersion)

	// One invalidation per (re-)aggregation.
	calls := 0
	for _, id := range inv.calls() {
		if id == d.ID {
			calls++
		}
	}
	assert.Equal(t, 3, calls)
}

func TestExpiredAttemptClosesAtDeadline(t *testing.T) {
	db, svc, defs, _ := attemptTestStack(t)

	d := publishedDefinition(t, defs, QuestionRequest{
		QuestionType: model.QuestionSingleChoice,
		Content:      "stem",
		Points:       10,
		Options: []OptionRequest{
			{Content: "right", IsCorrect: true},
			{Content: "wrong"},
		},
	})

	started, err := svc.StartAttempt(d.ID, 11)
	require.NoError(t, err)

	// Push the deadline well into the past, as if the sweep observed the
	// attempt long after it timed out.
	deadline := time.Now().Add(-10 * time.Minute).Truncate(time.Second)
	require.NoError(t, db.Exec(
		"UPDATE attempts SET deadline_at = ? WHERE id = ?", deadline, started.AttemptID,
	).Error)

	res, err := svc.FinalizeAttempt(started.AttemptID, 0)
	require.NoError(t, err)
	assert.Equal(t, model.AttemptExpired, res.Status)

	var stored model.Attempt
	require.NoError(t, db.First(&stored, "id = ?", started.AttemptID).Error)
	require.NotNil(t, stored.SubmittedAt)
	assert.WithinDuration(t, deadline, *stored.SubmittedAt, time.Second,
		"an expired attempt records its deadline as the close time, not the sweep time")
}
