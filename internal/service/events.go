package service

import (
	"context"
	"encoding/json"
	"time"

	"examhub_backend/pkg/logger"

	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"
)

// GradedEventChannel is the Redis channel downstream collaborators
// (gamification, certificates, notifications) subscribe to.
const GradedEventChannel = "assessment.graded"

// GradedEvent is emitted once per finalization and once per re-aggregation
// after a manual review. Delivery is at-least-once; consumers must dedupe on
// (attemptId, finalizeVersion).
type GradedEvent struct {
	UserID          uint      `json:"userId"`
	DefinitionID    string    `json:"definitionId"`
	AttemptID       string    `json:"attemptId"`
	AttemptNumber   int       `json:"attemptNumber"`
	Score           int       `json:"score"`
	Percentage      int       `json:"percentage"`
	IsPassed        bool      `json:"isPassed"`
	Status          string    `json:"status"`
	FinalizeVersion int       `json:"finalizeVersion"`
	OccurredAt      time.Time `json:"occurredAt"`
}

type EventPublisher struct {
	rdb *redis.Client
}

func NewEventPublisher(rdb *redis.Client) *EventPublisher {
	return &EventPublisher{rdb: rdb}
}

// PublishGraded fires after the attempt row is committed; a publish failure is
// logged, never propagated back into the grading path.
func (p *EventPublisher) PublishGraded(ev GradedEvent) {
	if p == nil || p.rdb == nil {
		return
	}

	data, err := json.Marshal(ev)
	if err != nil {
		logger.Log.Error("marshal graded event", zap.Error(err))
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := p.rdb.Publish(ctx, GradedEventChannel, data).Err(); err != nil {
		logger.Log.Error("publish graded event",
			zap.String("attemptId", ev.AttemptID),
			zap.Int("finalizeVersion", ev.FinalizeVersion),
			zap.Error(err))
	}
}
