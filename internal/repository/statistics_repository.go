package repository

import (
	"examhub_backend/internal/model"

	"gorm.io/gorm"
)

type StatisticsRepository struct {
	DB *gorm.DB
}

func NewStatisticsRepository(db *gorm.DB) *StatisticsRepository {
	return &StatisticsRepository{DB: db}
}

// AttemptAggregateRow holds the attempt-level rollup for one definition,
// computed in a single scan.
type AttemptAggregateRow struct {
	TotalAttempts     int64    `gorm:"column:total_attempts"`
	CompletedAttempts int64    `gorm:"column:completed_attempts"`
	PassedAttempts    int64    `gorm:"column:passed_attempts"`
	AverageScore      *float64 `gorm:"column:average_score"`
	AverageTimeSpent  *float64 `gorm:"column:average_time_spent"` // seconds
}

func (r *StatisticsRepository) AttemptAggregates(definitionID string) (*AttemptAggregateRow, error) {
	var row AttemptAggregateRow
	err := r.DB.Model(&model.Attempt{}).
		Select(
			"COUNT(*) as total_attempts, "+
				"SUM(CASE WHEN status <> ? THEN 1 ELSE 0 END) as completed_attempts, "+
				"SUM(CASE WHEN status <> ? AND is_passed THEN 1 ELSE 0 END) as passed_attempts, "+
				"AVG(CASE WHEN status <> ? THEN score END) as average_score, "+
				"AVG(CASE WHEN submitted_at IS NOT NULL THEN TIMESTAMPDIFF(SECOND, started_at, submitted_at) END) as average_time_spent",
			model.AttemptOpen, model.AttemptOpen, model.AttemptOpen).
		Where("definition_id = ?", definitionID).
		Scan(&row).Error
	if err != nil {
		return nil, err
	}
	return &row, nil
}

// AnswersForDefinition returns every answer belonging to a non-open attempt of
// the definition; the per-question rollups are computed in the service.
func (r *StatisticsRepository) AnswersForDefinition(definitionID string) ([]model.Answer, error) {
	var answers []model.Answer
	err := r.DB.
		Joins("JOIN attempts ON attempts.id = answers.attempt_id").
		Where("attempts.definition_id = ? AND attempts.status <> ? AND attempts.deleted_at IS NULL", definitionID, model.AttemptOpen).
		Find(&answers).Error
	return answers, err
}
