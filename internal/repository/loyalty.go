package repository

import (
	"context"

	"newsdesk/internal/models"
	"newsdesk/internal/observability"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// LoyaltyRepository defines the loyalty ledger operations.
type LoyaltyRepository interface {
	// Award inserts a ledger entry and bumps the user's balance. The insert
	// is OnConflict-DoNothing against the (user, action, reference) unique
	// index, so firing the same award twice is a no-op. Returns whether the
	// entry was newly inserted.
	Award(ctx context.Context, entry *models.LoyaltyPoint) (bool, error)

	Balance(ctx context.Context, userID uint) (int, error)
}

type loyaltyRepository struct {
	db *gorm.DB
}

// NewLoyaltyRepository creates a new LoyaltyRepository
func NewLoyaltyRepository(db *gorm.DB) LoyaltyRepository {
	return &loyaltyRepository{db: db}
}

func (r *loyaltyRepository) Award(ctx context.Context, entry *models.LoyaltyPoint) (bool, error) {
	defer observability.TrackQuery("award", "loyalty_points")()

	awarded := false
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(entry)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			// Duplicate fire; the balance was already updated.
			return nil
		}
		awarded = true
		return tx.Model(&models.User{}).Where("id = ?", entry.UserID).
			Update("loyalty_total", gorm.Expr("loyalty_total + ?", entry.Points)).Error
	})
	return awarded, err
}

func (r *loyaltyRepository) Balance(ctx context.Context, userID uint) (int, error) {
	var user models.User
	if err := r.db.WithContext(ctx).Select("loyalty_total").First(&user, userID).Error; err != nil {
		return 0, err
	}
	return user.LoyaltyTotal, nil
}
