package model

import "time"

// Question type tags. A definition mixes types freely; grading branches on the tag.
const (
	QuestionSingleChoice   = "single_choice"
	QuestionMultipleChoice = "multiple_choice"
	QuestionTrueFalse      = "true_false"
	QuestionMatching       = "matching"
	QuestionShortAnswer    = "short_answer"
	QuestionEssay          = "essay"
	QuestionCode           = "code" // no sandboxed execution; graded like essay
)

// IsChoiceType reports whether the type carries options.
func IsChoiceType(t string) bool {
	return t == QuestionSingleChoice || t == QuestionMultipleChoice || t == QuestionTrueFalse
}

// IsManualType reports whether the type always requires human review.
func IsManualType(t string) bool {
	return t == QuestionShortAnswer || t == QuestionEssay || t == QuestionCode
}

// Definition is an authored test/quiz: scoring configuration plus an ordered
// question tree. The question set is frozen once IsPublished is set.
// swagger:model Definition
type Definition struct {
	UUIDBase
	Title        string     `gorm:"size:255;not null" json:"title"`
	Description  string     `gorm:"type:text" json:"description"`
	TopicID      string     `gorm:"index;size:36" json:"topicId"` // opaque reference, owned elsewhere
	TimeLimit    int        `gorm:"default:0" json:"timeLimit"`   // Minutes, 0 = untimed
	PassingScore int        `gorm:"default:60" json:"passingScore"`
	MaxAttempts  *int       `json:"maxAttempts,omitempty"` // nil = unlimited
	Randomize    bool       `gorm:"default:false" json:"randomize"`
	ShowAnswers  bool       `gorm:"default:false" json:"showAnswers"`
	IsPublished  bool       `gorm:"default:false" json:"isPublished"`
	PublishedAt  *time.Time `json:"publishedAt,omitempty"`
	CreatorID    uint       `gorm:"index;type:bigint unsigned" json:"creatorId"`

	Questions []Question `gorm:"foreignKey:DefinitionID" json:"questions,omitempty"`
}

func (Definition) TableName() string {
	return "definitions"
}

// swagger:model Question
type Question struct {
	UUIDBase
	DefinitionID string `gorm:"index;type:varchar(36)" json:"definitionId"`
	QuestionType string `gorm:"size:50;not null" json:"questionType"`
	Content      string `gorm:"type:text;not null" json:"content"` // Stem
	Points       int    `gorm:"default:0" json:"points"`
	Order        int    `gorm:"default:0" json:"order"`
	Explanation  string `gorm:"type:text" json:"explanation"`

	Options []Option       `gorm:"foreignKey:QuestionID" json:"options,omitempty"`
	Pairs   []MatchingPair `gorm:"foreignKey:QuestionID" json:"pairs,omitempty"`
}

func (Question) TableName() string {
	return "questions"
}

// swagger:model Option
type Option struct {
	UUIDBase
	QuestionID  string `gorm:"index;type:varchar(36)" json:"questionId"`
	Content     string `gorm:"type:text;not null" json:"content"`
	IsCorrect   bool   `gorm:"default:false" json:"isCorrect"`
	Order       int    `gorm:"default:0" json:"order"`
	Explanation string `gorm:"type:text" json:"explanation"`
}

func (Option) TableName() string {
	return "options"
}

// swagger:model MatchingPair
type MatchingPair struct {
	UUIDBase
	QuestionID string `gorm:"index;type:varchar(36)" json:"questionId"`
	LeftItem   string `gorm:"type:text;not null" json:"leftItem"`
	RightItem  string `gorm:"type:text;not null" json:"rightItem"`
	Order      int    `gorm:"default:0" json:"order"`
}

func (MatchingPair) TableName() string {
	return "matching_pairs"
}
