package store

import (
	"context"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"studyspace/pkg/models"
)

type ResourceRepository interface {
	FindByID(ctx context.Context, tx *gorm.DB, kind models.ResourceKind, id string) (*models.Resource, error)
	FindByIDForUpdate(ctx context.Context, tx *gorm.DB, kind models.ResourceKind, id string) (*models.Resource, error)
	FindByNumber(ctx context.Context, tx *gorm.DB, kind models.ResourceKind, branchID, number string) (*models.Resource, error)
	ListByBranch(ctx context.Context, tx *gorm.DB, branchID string, kind models.ResourceKind) ([]models.Resource, error)
	Create(ctx context.Context, tx *gorm.DB, kind models.ResourceKind, r *models.Resource) error
	SetActive(ctx context.Context, tx *gorm.DB, kind models.ResourceKind, id string, active bool) error
}

type resourceRepository struct{}

func NewResourceRepository() ResourceRepository {
	return &resourceRepository{}
}

func (r *resourceRepository) FindByID(ctx context.Context, tx *gorm.DB, kind models.ResourceKind, id string) (*models.Resource, error) {
	if err := checkID(id); err != nil {
		return nil, err
	}
	var res models.Resource
	if err := tx.WithContext(ctx).Table(kind.Table()).Where("id = ?", id).Take(&res).Error; err != nil {
		return nil, err
	}
	res.Kind = kind
	return &res, nil
}

// FindByIDForUpdate row-locks the resource within the given transaction.
func (r *resourceRepository) FindByIDForUpdate(ctx context.Context, tx *gorm.DB, kind models.ResourceKind, id string) (*models.Resource, error) {
	if err := checkID(id); err != nil {
		return nil, err
	}
	var res models.Resource
	err := tx.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Table(kind.Table()).
		Where("id = ?", id).
		Take(&res).Error
	if err != nil {
		return nil, err
	}
	res.Kind = kind
	return &res, nil
}

func (r *resourceRepository) FindByNumber(ctx context.Context, tx *gorm.DB, kind models.ResourceKind, branchID, number string) (*models.Resource, error) {
	var res models.Resource
	err := tx.WithContext(ctx).
		Table(kind.Table()).
		Where("branch_id = ? AND number = ?", branchID, number).
		Take(&res).Error
	if err != nil {
		return nil, err
	}
	res.Kind = kind
	return &res, nil
}

func (r *resourceRepository) ListByBranch(ctx context.Context, tx *gorm.DB, branchID string, kind models.ResourceKind) ([]models.Resource, error) {
	var out []models.Resource
	err := tx.WithContext(ctx).
		Table(kind.Table()).
		Where("branch_id = ?", branchID).
		Order("number ASC, id ASC").
		Find(&out).Error
	if err != nil {
		return nil, err
	}
	for i := range out {
		out[i].Kind = kind
	}
	return out, nil
}

func (r *resourceRepository) Create(ctx context.Context, tx *gorm.DB, kind models.ResourceKind, res *models.Resource) error {
	if err := tx.WithContext(ctx).Table(kind.Table()).Create(res).Error; err != nil {
		return err
	}
	res.Kind = kind
	return nil
}

func (r *resourceRepository) SetActive(ctx context.Context, tx *gorm.DB, kind models.ResourceKind, id string, active bool) error {
	result := tx.WithContext(ctx).
		Table(kind.Table()).
		Where("id = ?", id).
		Updates(map[string]interface{}{"is_active": active, "updated_at": time.Now().UTC()})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}
