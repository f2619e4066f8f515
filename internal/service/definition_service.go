package service

import (
	"errors"
	"time"

	"examhub_backend/internal/model"
	"examhub_backend/internal/repository"
	"examhub_backend/internal/util"

	"gorm.io/gorm"
)

type DefinitionService struct {
	Repo *repository.DefinitionRepository
}

func NewDefinitionService(repo *repository.DefinitionRepository) *DefinitionService {
	return &DefinitionService{Repo: repo}
}

type DefinitionRequest struct {
	Title        *string `json:"title"`
	Description  *string `json:"description"`
	TopicID      *string `json:"topicId"`
	TimeLimit    *int    `json:"timeLimit"` // Minutes
	PassingScore *int    `json:"passingScore"`
	MaxAttempts  *int    `json:"maxAttempts"`
	Randomize    *bool   `json:"randomize"`
	ShowAnswers  *bool   `json:"showAnswers"`
}

type OptionRequest struct {
	Content     string `json:"content" binding:"required"`
	IsCorrect   bool   `json:"isCorrect"`
	Order       int    `json:"order"`
	Explanation string `json:"explanation"`
}

type PairRequest struct {
	LeftItem  string `json:"leftItem" binding:"required"`
	RightItem string `json:"rightItem" binding:"required"`
	Order     int    `json:"order"`
}

type QuestionRequest struct {
	QuestionType string          `json:"questionType" binding:"required"`
	Content      string          `json:"content" binding:"required"`
	Points       int             `json:"points"`
	Order        int             `json:"order"`
	Explanation  string          `json:"explanation"`
	Options      []OptionRequest `json:"options"`
	Pairs        []PairRequest   `json:"pairs"`
}

func (s *DefinitionService) CreateDefinition(creatorID uint, req DefinitionRequest) (*model.Definition, error) {
	if req.Title == nil || *req.Title == "" {
		return nil, util.Validationf("title is required")
	}

	d := &model.Definition{
		Title:        *req.Title,
		CreatorID:    creatorID,
		PassingScore: 60,
	}
	applyDefinitionRequest(d, req, false)

	if d.PassingScore < 0 || d.PassingScore > 100 {
		return nil, util.Validationf("passing score must be within [0, 100], got %d", d.PassingScore)
	}
	if err := s.Repo.Create(d); err != nil {
		return nil, err
	}
	return d, nil
}

// UpdateDefinition edits metadata. Once published only the fields that cannot
// affect grading (title, description, showAnswers) may change.
func (s *DefinitionService) UpdateDefinition(id string, req DefinitionRequest) (*model.Definition, error) {
	d, err := s.find(id)
	if err != nil {
		return nil, err
	}

	if d.IsPublished {
		if req.TimeLimit != nil || req.PassingScore != nil || req.MaxAttempts != nil || req.Randomize != nil {
			return nil, util.ErrDefinitionPublished
		}
	}
	applyDefinitionRequest(d, req, d.IsPublished)

	if err := s.Repo.Update(d); err != nil {
		return nil, err
	}
	return d, nil
}

func applyDefinitionRequest(d *model.Definition, req DefinitionRequest, publishedOnly bool) {
	if req.Title != nil {
		d.Title = *req.Title
	}
	if req.Description != nil {
		d.Description = *req.Description
	}
	if req.ShowAnswers != nil {
		d.ShowAnswers = *req.ShowAnswers
	}
	if publishedOnly {
		return
	}
	if req.TopicID != nil {
		d.TopicID = *req.TopicID
	}
	if req.TimeLimit != nil {
		d.TimeLimit = *req.TimeLimit
	}
	if req.PassingScore != nil {
		d.PassingScore = *req.PassingScore
	}
	if req.MaxAttempts != nil {
		if *req.MaxAttempts > 0 {
			d.MaxAttempts = req.MaxAttempts
		} else {
			d.MaxAttempts = nil
		}
	}
	if req.Randomize != nil {
		d.Randomize = *req.Randomize
	}
}

func (s *DefinitionService) AddQuestion(definitionID string, req QuestionRequest) (*model.Question, error) {
	d, err := s.find(definitionID)
	if err != nil {
		return nil, err
	}
	if d.IsPublished {
		return nil, util.ErrDefinitionPublished
	}

	q := buildQuestion(definitionID, req)
	if err := validateQuestion(q); err != nil {
		return nil, err
	}
	if err := s.Repo.CreateQuestion(q); err != nil {
		return nil, err
	}
	return q, nil
}

func (s *DefinitionService) UpdateQuestion(questionID string, req QuestionRequest) (*model.Question, error) {
	existing, err := s.Repo.FindQuestionByID(questionID)
	if err != nil {
		return nil, mapNotFound(err, util.ErrQuestionNotFound)
	}

	d, err := s.find(existing.DefinitionID)
	if err != nil {
		return nil, err
	}
	if d.IsPublished {
		return nil, util.ErrDefinitionPublished
	}

	q := buildQuestion(existing.DefinitionID, req)
	q.UUIDBase = existing.UUIDBase
	for i := range q.Options {
		q.Options[i].QuestionID = q.ID
	}
	for i := range q.Pairs {
		q.Pairs[i].QuestionID = q.ID
	}
	if err := validateQuestion(q); err != nil {
		return nil, err
	}
	if err := s.Repo.UpdateQuestion(q); err != nil {
		return nil, err
	}
	return q, nil
}

func (s *DefinitionService) DeleteQuestion(questionID string) error {
	existing, err := s.Repo.FindQuestionByID(questionID)
	if err != nil {
		return mapNotFound(err, util.ErrQuestionNotFound)
	}

	d, err := s.find(existing.DefinitionID)
	if err != nil {
		return err
	}
	if d.IsPublished {
		return util.ErrDefinitionPublished
	}
	return s.Repo.DeleteQuestion(questionID)
}

func buildQuestion(definitionID string, req QuestionRequest) *model.Question {
	q := &model.Question{
		DefinitionID: definitionID,
		QuestionType: req.QuestionType,
		Content:      req.Content,
		Points:       req.Points,
		Order:        req.Order,
		Explanation:  req.Explanation,
	}
	for _, o := range req.Options {
		q.Options = append(q.Options, model.Option{
			Content:     o.Content,
			IsCorrect:   o.IsCorrect,
			Order:       o.Order,
			Explanation: o.Explanation,
		})
	}
	for _, p := range req.Pairs {
		q.Pairs = append(q.Pairs, model.MatchingPair{
			LeftItem:  p.LeftItem,
			RightItem: p.RightItem,
			Order:     p.Order,
		})
	}
	return q
}

// Validate runs the publish invariants without publishing.
func (s *DefinitionService) Validate(id string) error {
	d, err := s.find(id)
	if err != nil {
		return err
	}
	return ValidateDefinition(d)
}

// Publish validates and freezes the question set. Attempts can only be
// started against published definitions.
func (s *DefinitionService) Publish(id string) (*model.Definition, error) {
	d, err := s.find(id)
	if err != nil {
		return nil, err
	}
	if d.IsPublished {
		return d, nil
	}
	if err := ValidateDefinition(d); err != nil {
		return nil, err
	}

	now := time.Now()
	d.IsPublished = true
	d.PublishedAt = &now
	if err := s.Repo.Update(d); err != nil {
		return nil, err
	}
	return d, nil
}

func (s *DefinitionService) GetDefinition(id string) (*model.Definition, error) {
	return s.find(id)
}

func (s *DefinitionService) ListDefinitions(page, limit int, publishedOnly bool) ([]model.Definition, int64, error) {
	return s.Repo.List(page, limit, publishedOnly)
}

// PublishedDefinitionView is the student-facing listing row: no questions, no
// answer material.
type PublishedDefinitionView struct {
	ID           string `json:"id"`
	Title        string `json:"title"`
	Description  string `json:"description"`
	TopicID      string `json:"topicId"`
	TimeLimit    int    `json:"timeLimit"`
	PassingScore int    `json:"passingScore"`
	MaxAttempts  *int   `json:"maxAttempts,omitempty"`
}

func (s *DefinitionService) ListPublishedForStudent(page, limit int) ([]PublishedDefinitionView, int64, error) {
	ds, total, err := s.Repo.List(page, limit, true)
	if err != nil {
		return nil, 0, err
	}
	views := make([]PublishedDefinitionView, len(ds))
	for i, d := range ds {
		views[i] = PublishedDefinitionView{
			ID:           d.ID,
			Title:        d.Title,
			Description:  d.Description,
			TopicID:      d.TopicID,
			TimeLimit:    d.TimeLimit,
			PassingScore: d.PassingScore,
			MaxAttempts:  d.MaxAttempts,
		}
	}
	return views, total, nil
}

func (s *DefinitionService) find(id string) (*model.Definition, error) {
	d, err := s.Repo.FindByID(id)
	if err != nil {
		return nil, mapNotFound(err, util.ErrDefinitionNotFound)
	}
	return d, nil
}

func mapNotFound(err, sentinel error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return sentinel
	}
	return err
}
