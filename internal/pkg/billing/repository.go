package billing

import (
	"context"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/ManuelReschke/BoostBoard/app/models"
	"github.com/ManuelReschke/BoostBoard/app/repository"
)

// Repository provides DB operations used by the billing service.
type Repository interface {
	// Transaction runs fn against a repository bound to a single transaction.
	Transaction(ctx context.Context, fn func(tx Repository) error) error
	// CreateProcessedEventIfNotExists inserts the dedupe row and reports
	// whether it was new. False means the event was handled before.
	CreateProcessedEventIfNotExists(ctx context.Context, event *models.ProcessedEvent) (bool, error)
	GetSubscription(ctx context.Context, providerSubscriptionID string) (*models.ServerSubscription, error)
	UpsertSubscription(ctx context.Context, sub *models.ServerSubscription) error
	Communities() repository.CommunityRepository
}

type gormRepository struct {
	db *gorm.DB
}

// NewRepository creates a billing repository backed by GORM.
func NewRepository(db *gorm.DB) Repository {
	return &gormRepository{db: db}
}

func (r *gormRepository) Transaction(ctx context.Context, fn func(tx Repository) error) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&gormRepository{db: tx})
	})
}

func (r *gormRepository) CreateProcessedEventIfNotExists(ctx context.Context, event *models.ProcessedEvent) (bool, error) {
	tx := r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "id"}},
		DoNothing: true,
	}).Create(event)
	if tx.Error != nil {
		return false, tx.Error
	}
	return tx.RowsAffected > 0, nil
}

// GetSubscription returns nil, nil when no subscription with that id exists.
func (r *gormRepository) GetSubscription(ctx context.Context, providerSubscriptionID string) (*models.ServerSubscription, error) {
	var sub models.ServerSubscription
	err := r.db.WithContext(ctx).
		Where("provider_subscription_id = ?", providerSubscriptionID).
		Limit(1).Find(&sub).Error
	if err != nil {
		return nil, err
	}
	if sub.ID == 0 {
		return nil, nil
	}
	return &sub, nil
}

func (r *gormRepository) UpsertSubscription(ctx context.Context, sub *models.ServerSubscription) error {
	db := r.db.WithContext(ctx)
	if err := db.Clauses(clause.OnConflict{
		Columns: []clause.Column{
			{Name: "provider_subscription_id"},
		},
		DoUpdates: clause.AssignmentColumns([]string{
			"server_id",
			"user_id",
			"tier",
			"provider",
			"status",
			"started_at",
			"expires_at",
			"updated_at",
		}),
	}).Create(sub).Error; err != nil {
		return err
	}

	// Ensure ID is populated after upsert.
	return db.Where("provider_subscription_id = ?", sub.ProviderSubscriptionID).First(sub).Error
}

func (r *gormRepository) Communities() repository.CommunityRepository {
	return repository.NewCommunityRepository(r.db)
}
