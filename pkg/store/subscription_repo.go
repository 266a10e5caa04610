package store

import (
	"context"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"studyspace/pkg/models"
)

// ConflictQuery selects subscriptions holding a resource over an overlapping window.
// Both bounds are inclusive.
type ConflictQuery struct {
	Kind                  models.ResourceKind
	ResourceID            string
	Start                 time.Time
	End                   time.Time
	Statuses              []models.SubscriptionStatus
	ExcludeSubscriptionID string
}

type SubscriptionRepository interface {
	FindByID(ctx context.Context, tx *gorm.DB, id string) (*models.Subscription, error)
	FindByIDForUpdate(ctx context.Context, tx *gorm.DB, id string) (*models.Subscription, error)
	FindConflict(ctx context.Context, tx *gorm.DB, q ConflictQuery) (*models.Subscription, error)
	HeldResourceIDs(ctx context.Context, tx *gorm.DB, kind models.ResourceKind, resourceIDs []string, now time.Time) (map[string]bool, error)
	Create(ctx context.Context, tx *gorm.DB, sub *models.Subscription) error
	Update(ctx context.Context, tx *gorm.DB, id string, fields map[string]interface{}) error
	ExpireOverdue(ctx context.Context, tx *gorm.DB, now time.Time) (int64, error)
}

type subscriptionRepository struct{}

func NewSubscriptionRepository() SubscriptionRepository {
	return &subscriptionRepository{}
}

func (r *subscriptionRepository) FindByID(ctx context.Context, tx *gorm.DB, id string) (*models.Subscription, error) {
	if err := checkID(id); err != nil {
		return nil, err
	}
	var sub models.Subscription
	if err := tx.WithContext(ctx).Where("id = ?", id).Take(&sub).Error; err != nil {
		return nil, err
	}
	return &sub, nil
}

// FindByIDForUpdate row-locks the subscription within the given transaction.
func (r *subscriptionRepository) FindByIDForUpdate(ctx context.Context, tx *gorm.DB, id string) (*models.Subscription, error) {
	if err := checkID(id); err != nil {
		return nil, err
	}
	var sub models.Subscription
	err := tx.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("id = ?", id).
		Take(&sub).Error
	if err != nil {
		return nil, err
	}
	return &sub, nil
}

// FindConflict returns the earliest subscription that overlaps the query window,
// or gorm.ErrRecordNotFound when the resource is free.
func (r *subscriptionRepository) FindConflict(ctx context.Context, tx *gorm.DB, q ConflictQuery) (*models.Subscription, error) {
	query := tx.WithContext(ctx).
		Model(&models.Subscription{}).
		Where(q.Kind.Column()+" = ?", q.ResourceID).
		Where("status IN ?", q.Statuses).
		Where("start_date <= ? AND end_date >= ?", q.End, q.Start)
	if ValidID(q.ExcludeSubscriptionID) {
		query = query.Where("id <> ?", q.ExcludeSubscriptionID)
	}

	var subs []models.Subscription
	if err := query.Order("start_date ASC, id ASC").Limit(1).Find(&subs).Error; err != nil {
		return nil, err
	}
	if len(subs) == 0 {
		return nil, gorm.ErrRecordNotFound
	}
	return &subs[0], nil
}

// HeldResourceIDs reports which of the given resources have an active subscription
// that has not ended at now.
func (r *subscriptionRepository) HeldResourceIDs(ctx context.Context, tx *gorm.DB, kind models.ResourceKind, resourceIDs []string, now time.Time) (map[string]bool, error) {
	held := make(map[string]bool)
	if len(resourceIDs) == 0 {
		return held, nil
	}
	var ids []string
	err := tx.WithContext(ctx).
		Model(&models.Subscription{}).
		Where(kind.Column()+" IN ?", resourceIDs).
		Where("status = ?", models.StatusActive).
		Where("end_date > ?", now).
		Pluck(kind.Column(), &ids).Error
	if err != nil {
		return nil, err
	}
	for _, id := range ids {
		held[id] = true
	}
	return held, nil
}

func (r *subscriptionRepository) Create(ctx context.Context, tx *gorm.DB, sub *models.Subscription) error {
	return tx.WithContext(ctx).Omit(clause.Associations).Create(sub).Error
}

func (r *subscriptionRepository) Update(ctx context.Context, tx *gorm.DB, id string, fields map[string]interface{}) error {
	result := tx.WithContext(ctx).
		Model(&models.Subscription{}).
		Where("id = ?", id).
		Updates(fields)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

func (r *subscriptionRepository) ExpireOverdue(ctx context.Context, tx *gorm.DB, now time.Time) (int64, error) {
	result := tx.WithContext(ctx).
		Model(&models.Subscription{}).
		Where("status = ? AND end_date < ?", models.StatusActive, now).
		Updates(map[string]interface{}{"status": models.StatusExpired, "updated_at": now})
	return result.RowsAffected, result.Error
}
