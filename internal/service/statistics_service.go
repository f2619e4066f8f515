package service

import (
	"context"
	"encoding/json"
	"time"

	"examhub_backend/internal/model"
	"examhub_backend/internal/repository"
	"examhub_backend/internal/util"
	"examhub_backend/pkg/logger"

	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"
)

const statsCachePrefix = "examhub:stats:"

type StatisticsService struct {
	Repo        *repository.StatisticsRepository
	Definitions *repository.DefinitionRepository
	rdb         *redis.Client
	cacheTTL    time.Duration
}

func NewStatisticsService(repo *repository.StatisticsRepository, defs *repository.DefinitionRepository, rdb *redis.Client, cacheTTL time.Duration) *StatisticsService {
	return &StatisticsService{
		Repo:        repo,
		Definitions: defs,
		rdb:         rdb,
		cacheTTL:    cacheTTL,
	}
}

// QuestionStatistics is the per-question rollup over all closed attempts.
// CorrectRate covers auto-graded answers only; manual answers count toward
// AnswerCount and PendingReview.
type QuestionStatistics struct {
	QuestionID    string         `json:"questionId"`
	QuestionType  string         `json:"questionType"`
	AnswerCount   int64          `json:"answerCount"`
	CorrectCount  int64          `json:"correctCount"`
	CorrectRate   *float64       `json:"correctRate,omitempty"`
	AveragePoints *float64       `json:"averagePoints,omitempty"`
	PendingReview int64          `json:"pendingReview"`
	OptionPicks   map[string]int `json:"optionPicks,omitempty"`
}

type DefinitionStatistics struct {
	DefinitionID      string               `json:"definitionId"`
	Title             string               `json:"title"`
	TotalAttempts     int64                `json:"totalAttempts"`
	CompletedAttempts int64                `json:"completedAttempts"`
	PassedAttempts    int64                `json:"passedAttempts"`
	PassRate          *float64             `json:"passRate,omitempty"`
	AverageScore      *float64             `json:"averageScore,omitempty"`
	AverageTimeSpent  *float64             `json:"averageTimeSpent,omitempty"` // seconds
	Questions         []QuestionStatistics `json:"questions"`
	GeneratedAt       time.Time            `json:"generatedAt"`
}

// DefinitionStatistics computes the rollup for one definition, serving a
// cached copy when Redis holds a fresh one. The rollup is derived entirely
// from stored attempts and answers, so a cache miss is just a recompute.
func (s *StatisticsService) DefinitionStatistics(definitionID string) (*DefinitionStatistics, error) {
	if cached := s.fromCache(definitionID); cached != nil {
		return cached, nil
	}

	d, err := s.Definitions.FindByID(definitionID)
	if err != nil {
		return nil, mapNotFound(err, util.ErrDefinitionNotFound)
	}

	row, err := s.Repo.AttemptAggregates(definitionID)
	if err != nil {
		return nil, err
	}
	answers, err := s.Repo.AnswersForDefinition(definitionID)
	if err != nil {
		return nil, err
	}

	stats := &DefinitionStatistics{
		DefinitionID:      definitionID,
		Title:             d.Title,
		TotalAttempts:     row.TotalAttempts,
		CompletedAttempts: row.CompletedAttempts,
		PassedAttempts:    row.PassedAttempts,
		AverageScore:      row.AverageScore,
		AverageTimeSpent:  row.AverageTimeSpent,
		Questions:         questionRollups(d.Questions, answers),
		GeneratedAt:       time.Now(),
	}
	if row.CompletedAttempts > 0 {
		rate := float64(row.PassedAttempts) / float64(row.CompletedAttempts)
		stats.PassRate = &rate
	}

	s.toCache(definitionID, stats)
	return stats, nil
}

// InvalidateDefinition drops the cached rollup; called when a graded event
// would make the cache stale.
func (s *StatisticsService) InvalidateDefinition(definitionID string) {
	if s.rdb == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := s.rdb.Del(ctx, statsCacheKey(definitionID)).Err(); err != nil {
		logger.Log.Warn("invalidate statistics cache",
			zap.String("definitionId", definitionID), zap.Error(err))
	}
}

func questionRollups(questions []model.Question, answers []model.Answer) []QuestionStatistics {
	byQuestion := make(map[string]*QuestionStatistics, len(questions))
	ordered := make([]QuestionStatistics, 0, len(questions))
	for _, q := range questions {
		qs := QuestionStatistics{
			QuestionID:   q.ID,
			QuestionType: q.QuestionType,
		}
		if model.IsChoiceType(q.QuestionType) {
			qs.OptionPicks = make(map[string]int, len(q.Options))
			for _, o := range q.Options {
				qs.OptionPicks[o.ID] = 0
			}
		}
		ordered = append(ordered, qs)
		byQuestion[q.ID] = &ordered[len(ordered)-1]
	}

	pointsSum := make(map[string]int64, len(questions))
	gradedCount := make(map[string]int64, len(questions))
	for _, ans := range answers {
		qs, ok := byQuestion[ans.QuestionID]
		if !ok {
			// Question deleted pre-publish leaves no live row; stale snapshot
			// answers simply drop out of the rollup.
			continue
		}
		qs.AnswerCount++
		if ans.ReviewStatus == model.ReviewNeedsManual {
			qs.PendingReview++
		}
		if ans.IsCorrect != nil && *ans.IsCorrect {
			qs.CorrectCount++
		}
		if ans.PointsEarned != nil {
			pointsSum[ans.QuestionID] += int64(*ans.PointsEarned)
			gradedCount[ans.QuestionID]++
		}
		if qs.OptionPicks != nil {
			var p AnswerPayload
			if err := json.Unmarshal(ans.Payload, &p); err == nil {
				for _, id := range p.SelectedOptionIDs {
					if _, known := qs.OptionPicks[id]; known {
						qs.OptionPicks[id]++
					}
				}
			}
		}
	}

	for i := range ordered {
		qs := &ordered[i]
		if !model.IsManualType(qs.QuestionType) {
			if autoGraded := qs.AnswerCount - qs.PendingReview; autoGraded > 0 {
				rate := float64(qs.CorrectCount) / float64(autoGraded)
				qs.CorrectRate = &rate
			}
		}
		if n := gradedCount[qs.QuestionID]; n > 0 {
			avg := float64(pointsSum[qs.QuestionID]) / float64(n)
			qs.AveragePoints = &avg
		}
	}
	return ordered
}

func statsCacheKey(definitionID string) string {
	return statsCachePrefix + definitionID
}

func (s *StatisticsService) fromCache(definitionID string) *DefinitionStatistics {
	if s.rdb == nil || s.cacheTTL <= 0 {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	data, err := s.rdb.Get(ctx, statsCacheKey(definitionID)).Bytes()
	if err != nil {
		if err != redis.Nil {
			logger.Log.Warn("read statistics cache", zap.Error(err))
		}
		return nil
	}
	var stats DefinitionStatistics
	if err := json.Unmarshal(data, &stats); err != nil {
		return nil
	}
	return &stats
}

func (s *StatisticsService) toCache(definitionID string, stats *DefinitionStatistics) {
	if s.rdb == nil || s.cacheTTL <= 0 {
		return
	}
	data, err := json.Marshal(stats)
	if err != nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := s.rdb.Set(ctx, statsCacheKey(definitionID), data, s.cacheTTL).Err(); err != nil {
		logger.Log.Warn("write statistics cache", zap.Error(err))
	}
}
