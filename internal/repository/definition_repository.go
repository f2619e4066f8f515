package repository

import (
	"examhub_backend/internal/model"

	"gorm.io/gorm"
)

type DefinitionRepository struct {
	DB *gorm.DB
}

func NewDefinitionRepository(db *gorm.DB) *DefinitionRepository {
	return &DefinitionRepository{DB: db}
}

func (r *DefinitionRepository) Create(d *model.Definition) error {
	return r.DB.Create(d).Error
}

func (r *DefinitionRepository) Update(d *model.Definition) error {
	return r.DB.Save(d).Error
}

// FindByID loads the definition with its full question tree.
func (r *DefinitionRepository) FindByID(id string) (*model.Definition, error) {
	var d model.Definition
	err := r.DB.
		Preload("Questions", func(db *gorm.DB) *gorm.DB {
			return db.Order("`order` asc, created_at asc")
		}).
		Preload("Questions.Options", func(db *gorm.DB) *gorm.DB {
			return db.Order("`order` asc, created_at asc")
		}).
		Preload("Questions.Pairs", func(db *gorm.DB) *gorm.DB {
			return db.Order("`order` asc, created_at asc")
		}).
		First(&d, "id = ?", id).Error
	if err != nil {
		return nil, err
	}
	return &d, nil
}

func (r *DefinitionRepository) List(page, limit int, publishedOnly bool) ([]model.Definition, int64, error) {
	var ds []model.Definition
	var total int64

	query := r.DB.Model(&model.Definition{})
	if publishedOnly {
		query = query.Where("is_published = ?", true)
	}
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	offset := (page - 1) * limit
	err := query.Order("created_at desc").Offset(offset).Limit(limit).Find(&ds).Error
	return ds, total, err
}

func (r *DefinitionRepository) CreateQuestion(q *model.Question) error {
	return r.DB.Create(q).Error
}

func (r *DefinitionRepository) FindQuestionByID(id string) (*model.Question, error) {
	var q model.Question
	err := r.DB.
		Preload("Options", func(db *gorm.DB) *gorm.DB { return db.Order("`order` asc, created_at asc") }).
		Preload("Pairs", func(db *gorm.DB) *gorm.DB { return db.Order("`order` asc, created_at asc") }).
		First(&q, "id = ?", id).Error
	if err != nil {
		return nil, err
	}
	return &q, nil
}

// UpdateQuestion rewrites the question row and replaces its options and pairs
// in one transaction.
func (r *DefinitionRepository) UpdateQuestion(q *model.Question) error {
	return r.DB.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("question_id = ?", q.ID).Delete(&model.Option{}).Error; err != nil {
			return err
		}
		if err := tx.Where("question_id = ?", q.ID).Delete(&model.MatchingPair{}).Error; err != nil {
			return err
		}
		return tx.Save(q).Error
	})
}

func (r *DefinitionRepository) DeleteQuestion(id string) error {
	return r.DB.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("question_id = ?", id).Delete(&model.Option{}).Error; err != nil {
			return err
		}
		if err := tx.Where("question_id = ?", id).Delete(&model.MatchingPair{}).Error; err != nil {
			return err
		}
		return tx.Delete(&model.Question{}, "id = ?", id).Error
	})
}
