package model

import (
	"encoding/json"
	"time"
)

// Attempt statuses. An attempt leaves AttemptOpen exactly once; the winning
// transition is a guarded UPDATE so concurrent finalize/expire calls cannot
// both grade.
const (
	AttemptOpen             = "open"
	AttemptSubmittedPending = "submitted_pending_review"
	AttemptSubmitted        = "submitted"
	AttemptExpired          = "expired"
)

// Answer review statuses.
const (
	ReviewAutoGraded  = "auto_graded"
	ReviewNeedsManual = "needs_manual_review"
	ReviewReviewed    = "reviewed"
)

// Attempt is one timed run of a user through a Definition. Snapshot holds the
// question tree as it existed at start time; grading never reads the live
// definition, so authoring edits cannot retroactively change a result.
// swagger:model Attempt
type Attempt struct {
	UUIDBase
	DefinitionID  string `gorm:"uniqueIndex:uk_attempt_seq,priority:2;type:varchar(36)" json:"definitionId"`
	UserID        uint   `gorm:"uniqueIndex:uk_attempt_seq,priority:1;type:bigint unsigned" json:"userId"`
	AttemptNumber int    `gorm:"uniqueIndex:uk_attempt_seq,priority:3" json:"attemptNumber"`

	Status      string     `gorm:"size:30;default:'open'" json:"status"`
	StartedAt   time.Time  `json:"startedAt"`
	DeadlineAt  *time.Time `json:"deadlineAt,omitempty"` // nil = untimed
	SubmittedAt *time.Time `json:"submittedAt,omitempty"`

	Snapshot json.RawMessage `gorm:"type:json" json:"-"` // DefinitionSnapshot

	// Final fields, populated once status leaves open.
	Score           int  `gorm:"default:0" json:"score"`
	Percentage      int  `gorm:"default:0" json:"percentage"`
	IsPassed        bool `gorm:"default:false" json:"isPassed"`
	FinalizeVersion int  `gorm:"default:0" json:"finalizeVersion"` // bumped on every (re-)aggregation
}

func (Attempt) TableName() string {
	return "attempts"
}

// IsClosed reports whether the attempt has left the open state.
func (a *Attempt) IsClosed() bool {
	return a.Status != AttemptOpen
}

// DeadlinePassed reports whether the attempt's deadline is behind now.
func (a *Attempt) DeadlinePassed(now time.Time) bool {
	return a.DeadlineAt != nil && now.After(*a.DeadlineAt)
}

// Answer is the single recorded response for one (attempt, question).
// Payload shape depends on the question type, see service.AnswerPayload.
// swagger:model Answer
type Answer struct {
	UUIDBase
	AttemptID  string `gorm:"uniqueIndex:uk_answer_question,priority:1;type:varchar(36)" json:"attemptId"`
	QuestionID string `gorm:"uniqueIndex:uk_answer_question,priority:2;type:varchar(36)" json:"questionId"`

	Payload      json.RawMessage `gorm:"type:json" json:"payload"`
	PointsEarned *int            `json:"pointsEarned,omitempty"` // nil until resolved
	IsCorrect    *bool           `json:"isCorrect,omitempty"`    // nil for manually graded types
	ReviewStatus string          `gorm:"size:30;default:'auto_graded'" json:"reviewStatus"`
	Feedback     string          `gorm:"type:text" json:"feedback"`
}

func (Answer) TableName() string {
	return "answers"
}
