package store

import (
	"context"

	"gorm.io/gorm"

	"studyspace/pkg/models"
)

// CatalogRepository reads the tenant records that scope resources and subscriptions.
type CatalogRepository interface {
	FindBranch(ctx context.Context, tx *gorm.DB, id string) (*models.Branch, error)
	FindStudent(ctx context.Context, tx *gorm.DB, id string) (*models.Student, error)
	FindPlan(ctx context.Context, tx *gorm.DB, id string) (*models.Plan, error)
}

type catalogRepository struct{}

func NewCatalogRepository() CatalogRepository {
	return &catalogRepository{}
}

func (r *catalogRepository) FindBranch(ctx context.Context, tx *gorm.DB, id string) (*models.Branch, error) {
	if err := checkID(id); err != nil {
		return nil, err
	}
	var branch models.Branch
	if err := tx.WithContext(ctx).Where("id = ?", id).Take(&branch).Error; err != nil {
		return nil, err
	}
	return &branch, nil
}

func (r *catalogRepository) FindStudent(ctx context.Context, tx *gorm.DB, id string) (*models.Student, error) {
	if err := checkID(id); err != nil {
		return nil, err
	}
	var student models.Student
	if err := tx.WithContext(ctx).Where("id = ?", id).Take(&student).Error; err != nil {
		return nil, err
	}
	return &student, nil
}

func (r *catalogRepository) FindPlan(ctx context.Context, tx *gorm.DB, id string) (*models.Plan, error) {
	if err := checkID(id); err != nil {
		return nil, err
	}
	var plan models.Plan
	if err := tx.WithContext(ctx).Where("id = ?", id).Take(&plan).Error; err != nil {
		return nil, err
	}
	return &plan, nil
}
