package repository

import (
	"errors"
	"time"

	"examhub_backend/internal/model"
	"examhub_backend/internal/util"

	"github.com/go-sql-driver/mysql"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const mysqlDuplicateEntry = 1062

type AttemptRepository struct {
	DB *gorm.DB
}

func NewAttemptRepository(db *gorm.DB) *AttemptRepository {
	return &AttemptRepository{DB: db}
}

// IsDuplicateEntry reports a unique-constraint violation, the signal that two
// concurrent starts raced for the same attempt number.
func IsDuplicateEntry(err error) bool {
	var myErr *mysql.MySQLError
	return errors.As(err, &myErr) && myErr.Number == mysqlDuplicateEntry
}

// CreateNumbered allocates the next attempt number for (user, definition) and
// inserts the attempt in one transaction. The limit check shares the
// transaction with the insert; the unique index on (user_id, definition_id,
// attempt_number) turns a lost race into a duplicate-entry error the caller
// retries.
func (r *AttemptRepository) CreateNumbered(attempt *model.Attempt, maxAttempts *int) error {
	return r.DB.Transaction(func(tx *gorm.DB) error {
		type seqRow struct {
			Count int
			Max   int
		}
		var row seqRow
		err := tx.Model(&model.Attempt{}).
			Select("COUNT(*) as count, COALESCE(MAX(attempt_number), 0) as max").
			Where("user_id = ? AND definition_id = ?", attempt.UserID, attempt.DefinitionID).
			Scan(&row).Error
		if err != nil {
			return err
		}

		if maxAttempts != nil && row.Count >= *maxAttempts {
			return util.ErrMaxAttemptsExceeded
		}

		attempt.AttemptNumber = row.Max + 1
		return tx.Create(attempt).Error
	})
}

func (r *AttemptRepository) FindByID(id string) (*model.Attempt, error) {
	var a model.Attempt
	if err := r.DB.First(&a, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &a, nil
}

// FindByIDForUpdate locks the attempt row for the rest of the transaction,
// serializing answer writes against the finalize transition.
func (r *AttemptRepository) FindByIDForUpdate(tx *gorm.DB, id string) (*model.Attempt, error) {
	var a model.Attempt
	err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).First(&a, "id = ?", id).Error
	if err != nil {
		return nil, err
	}
	return &a, nil
}

// UpsertAnswer writes the single answer row for (attempt, question); the last
// write for a question wins.
func (r *AttemptRepository) UpsertAnswer(tx *gorm.DB, ans *model.Answer) error {
	return tx.Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "attempt_id"}, {Name: "question_id"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"payload", "points_earned", "is_correct", "review_status", "feedback", "updated_at",
		}),
	}).Create(ans).Error
}

func (r *AttemptRepository) FindAnswers(attemptID string) ([]model.Answer, error) {
	return r.FindAnswersTx(r.DB, attemptID)
}

func (r *AttemptRepository) FindAnswersTx(tx *gorm.DB, attemptID string) ([]model.Answer, error) {
	var answers []model.Answer
	err := tx.Where("attempt_id = ?", attemptID).Find(&answers).Error
	return answers, err
}

func (r *AttemptRepository) FindAnswer(attemptID, questionID string) (*model.Answer, error) {
	return r.FindAnswerTx(r.DB, attemptID, questionID)
}

func (r *AttemptRepository) FindAnswerTx(tx *gorm.DB, attemptID, questionID string) (*model.Answer, error) {
	var ans model.Answer
	err := tx.Where("attempt_id = ? AND question_id = ?", attemptID, questionID).First(&ans).Error
	if err != nil {
		return nil, err
	}
	return &ans, nil
}

func (r *AttemptRepository) SaveAnswer(ans *model.Answer) error {
	return r.DB.Save(ans).Error
}

func (r *AttemptRepository) SaveAnswerTx(tx *gorm.DB, ans *model.Answer) error {
	return tx.Save(ans).Error
}

// CloseAttempt performs the guarded open -> closed transition. Only one caller
// can observe won == true for a given attempt.
func (r *AttemptRepository) CloseAttempt(tx *gorm.DB, id string, fields map[string]interface{}) (bool, error) {
	res := tx.Model(&model.Attempt{}).
		Where("id = ? AND status = ?", id, model.AttemptOpen).
		Updates(fields)
	return res.RowsAffected == 1, res.Error
}

// UpdateAggregateTx rewrites the final fields after a manual review lands. The
// attempt is already closed; the guard is the status list, not open.
func (r *AttemptRepository) UpdateAggregateTx(tx *gorm.DB, id string, fields map[string]interface{}) error {
	return tx.Model(&model.Attempt{}).
		Where("id = ? AND status IN ?", id, []string{model.AttemptSubmittedPending, model.AttemptSubmitted, model.AttemptExpired}).
		Updates(fields).Error
}

// ListOpenPastDeadline feeds the expiry sweep.
func (r *AttemptRepository) ListOpenPastDeadline(now time.Time, limit int) ([]model.Attempt, error) {
	var attempts []model.Attempt
	err := r.DB.
		Where("status = ? AND deadline_at IS NOT NULL AND deadline_at < ?", model.AttemptOpen, now).
		Limit(limit).
		Find(&attempts).Error
	return attempts, err
}

func (r *AttemptRepository) ListByDefinition(definitionID string, page, limit int, status string) ([]model.Attempt, int64, error) {
	var attempts []model.Attempt
	var total int64

	query := r.DB.Model(&model.Attempt{}).Where("definition_id = ?", definitionID)
	if status != "" {
		query = query.Where("status = ?", status)
	}
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	offset := (page - 1) * limit
	err := query.Order("created_at desc").Offset(offset).Limit(limit).Find(&attempts).Error
	return attempts, total, err
}

func (r *AttemptRepository) ListByUser(userID uint, definitionID string) ([]model.Attempt, error) {
	var attempts []model.Attempt
	query := r.DB.Where("user_id = ?", userID)
	if definitionID != "" {
		query = query.Where("definition_id = ?", definitionID)
	}
	err := query.Order("created_at desc").Find(&attempts).Error
	return attempts, err
}

// Transaction exposes the underlying transaction helper to the service layer.
func (r *AttemptRepository) Transaction(fn func(tx *gorm.DB) error) error {
	return r.DB.Transaction(fn)
}
