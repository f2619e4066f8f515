package repository

import (
	"errors"
	"os"
	"sort"
	"sync"
	"testing"
	"time"

	"examhub_backend/internal/model"
	"examhub_backend/internal/util"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/mysql"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// Integration tests against a real MySQL instance. Set
// EXAMHUB_TEST_DATABASE_DSN (e.g. "root:root@tcp(127.0.0.1:3306)/examhub_test?charset=utf8mb4&parseTime=true&loc=Local")
// to run them; they are skipped otherwise.
func testDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := os.Getenv("EXAMHUB_TEST_DATABASE_DSN")
	if dsn == "" {
		t.Skip("EXAMHUB_TEST_DATABASE_DSN not set, skipping integration test")
	}

	db, err := gorm.Open(mysql.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)

	require.NoError(t, db.AutoMigrate(&model.Attempt{}, &model.Answer{}))
	require.NoError(t, db.Exec("DELETE FROM answers").Error)
	require.NoError(t, db.Exec("DELETE FROM attempts").Error)
	return db
}

// createWithRetry mirrors the caller's contract: a duplicate-entry error means
// another start won the number, so re-read and retry.
func createWithRetry(repo *AttemptRepository, attempt *model.Attempt, maxAttempts *int) error {
	var err error
	for i := 0; i < 10; i++ {
		err = repo.CreateNumbered(attempt, maxAttempts)
		if err == nil || !IsDuplicateEntry(err) {
			return err
		}
	}
	return err
}

func TestCreateNumberedConcurrentStarts(t *testing.T) {
	db := testDB(t)
	repo := NewAttemptRepository(db)

	const starters = 5
	maxAttempts := 3

	var wg sync.WaitGroup
	results := make([]error, starters)
	numbers := make([]int, starters)

	for i := 0; i < starters; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			a := &model.Attempt{
				DefinitionID: "def-concurrent",
				UserID:       42,
				Status:       model.AttemptOpen,
				StartedAt:    time.Now(),
			}
			results[i] = createWithRetry(repo, a, &maxAttempts)
			numbers[i] = a.AttemptNumber
		}(i)
	}
	wg.Wait()

	var won []int
	rejected := 0
	for i, err := range results {
		if err == nil {
			won = append(won, numbers[i])
			continue
		}
		require.True(t, errors.Is(err, util.ErrMaxAttemptsExceeded), "unexpected error: %v", err)
		rejected++
	}

	// Exactly the limit gets through, numbered 1..N with no gaps or
	// duplicates regardless of interleaving.
	require.Len(t, won, maxAttempts)
	assert.Equal(t, starters-maxAttempts, rejected)
	sort.Ints(won)
	assert.Equal(t, []int{1, 2, 3}, won)
}

func TestCreateNumberedSequentialNumbers(t *testing.T) {
	db := testDB(t)
	repo := NewAttemptRepository(db)

	for want := 1; want <= 4; want++ {
		a := &model.Attempt{
			DefinitionID: "def-seq",
			UserID:       7,
			Status:       model.AttemptOpen,
			StartedAt:    time.Now(),
		}
		require.NoError(t, repo.CreateNumbered(a, nil))
		assert.Equal(t, want, a.AttemptNumber)
	}

	// A different user starts back at 1.
	other := &model.Attempt{
		DefinitionID: "def-seq",
		UserID:       8,
		Status:       model.AttemptOpen,
		StartedAt:    time.Now(),
	}
	require.NoError(t, repo.CreateNumbered(other, nil))
	assert.Equal(t, 1, other.AttemptNumber)
}

func TestCloseAttemptSingleWinner(t *testing.T) {
	db := testDB(t)
	repo := NewAttemptRepository(db)

	a := &model.Attempt{
		DefinitionID: "def-close",
		UserID:       9,
		Status:       model.AttemptOpen,
		StartedAt:    time.Now(),
	}
	require.NoError(t, repo.CreateNumbered(a, nil))

	now := time.Now()
	fields := map[string]interface{}{
		"status":           model.AttemptSubmitted,
		"submitted_at":     now,
		"score":            80,
		"percentage":       80,
		"is_passed":        true,
		"finalize_version": 1,
	}

	const closers = 4
	var wg sync.WaitGroup
	wins := make([]bool, closers)
	for i := 0; i < closers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			err := repo.Transaction(func(tx *gorm.DB) error {
				won, err := repo.CloseAttempt(tx, a.ID, fields)
				wins[i] = won
				return err
			})
			assert.NoError(t, err)
		}(i)
	}
	wg.Wait()

	winners := 0
	for _, w := range wins {
		if w {
			winners++
		}
	}
	assert.Equal(t, 1, winners, "the guarded transition must have exactly one winner")

	stored, err := repo.FindByID(a.ID)
	require.NoError(t, err)
	assert.Equal(t, model.AttemptSubmitted, stored.Status)
	assert.Equal(t, 80, stored.Score)
}
