package entitlements

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/spewite/score-to-midi-backend/pkg/config"
	"github.com/spewite/score-to-midi-backend/pkg/db/models"
	"github.com/spewite/score-to-midi-backend/pkg/enums"
)

type repository struct {
	db          *gorm.DB
	conflictKey string
}

// NewRepository builds an entitlements repository bound to the provided DB.
// conflictKey selects the subscription upsert arbiter; see config.BillingConfig.
func NewRepository(db *gorm.DB, conflictKey string) Repository {
	if conflictKey == "" {
		conflictKey = config.ConflictKeyUser
	}
	return &repository{db: db, conflictKey: conflictKey}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx, conflictKey: r.conflictKey}
}

func (r *repository) conflictColumns() []clause.Column {
	if r.conflictKey == config.ConflictKeyUserSubscription {
		return []clause.Column{{Name: "user_id"}, {Name: "stripe_subscription_id"}}
	}
	return []clause.Column{{Name: "user_id"}}
}

func (r *repository) UpsertSubscription(ctx context.Context, sub *models.Subscription) error {
	if sub == nil {
		return errors.New("subscription is required")
	}
	if sub.ID == uuid.Nil {
		sub.ID = uuid.New()
	}

	// The CASE guards keep the row pinned to the newest billing period even
	// when renewals land out of order: an older period end neither rewinds
	// current_period_end nor overrides the status derived from the newer one.
	assignments := map[string]any{
		"stripe_customer_id": gorm.Expr(
			"CASE WHEN excluded.current_period_end >= subscriptions.current_period_end THEN excluded.stripe_customer_id ELSE subscriptions.stripe_customer_id END"),
		"stripe_subscription_id": gorm.Expr(
			"CASE WHEN excluded.current_period_end >= subscriptions.current_period_end THEN excluded.stripe_subscription_id ELSE subscriptions.stripe_subscription_id END"),
		"status": gorm.Expr(
			"CASE WHEN excluded.current_period_end >= subscriptions.current_period_end THEN excluded.status ELSE subscriptions.status END"),
		"current_period_end": gorm.Expr(
			"CASE WHEN excluded.current_period_end > subscriptions.current_period_end THEN excluded.current_period_end ELSE subscriptions.current_period_end END"),
		"updated_at": time.Now().UTC(),
	}

	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   r.conflictColumns(),
			DoUpdates: clause.Assignments(assignments),
		}).
		Create(sub).Error
}

func (r *repository) ActiveSubscriptionForUser(ctx context.Context, userID uuid.UUID) (*models.Subscription, error) {
	var sub models.Subscription
	err := r.db.WithContext(ctx).
		Where("user_id = ? AND status = ?", userID, enums.SubscriptionStatusActive).
		Order("current_period_end DESC").
		First(&sub).Error
	if err != nil {
		return nil, err
	}
	return &sub, nil
}

func (r *repository) SubscriptionByStripeID(ctx context.Context, stripeSubscriptionID string) (*models.Subscription, error) {
	var sub models.Subscription
	err := r.db.WithContext(ctx).
		Where("stripe_subscription_id = ?", stripeSubscriptionID).
		First(&sub).Error
	if err != nil {
		return nil, err
	}
	return &sub, nil
}

func (r *repository) RecordPurchase(ctx context.Context, purchase *models.OneTimePurchase) error {
	if purchase == nil {
		return errors.New("purchase is required")
	}
	if purchase.ID == uuid.Nil {
		purchase.ID = uuid.New()
	}

	// Redeliveries hit the unique stripe_payment_id arbiter and fall through
	// without touching the original row.
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "stripe_payment_id"}},
			DoNothing: true,
		}).
		Create(purchase).Error
}

func (r *repository) PurchaseByPaymentID(ctx context.Context, stripePaymentID string) (*models.OneTimePurchase, error) {
	var purchase models.OneTimePurchase
	err := r.db.WithContext(ctx).
		Where("stripe_payment_id = ?", stripePaymentID).
		First(&purchase).Error
	if err != nil {
		return nil, err
	}
	return &purchase, nil
}

func (r *repository) PurchaseForFile(ctx context.Context, midiFileID uuid.UUID) (*models.OneTimePurchase, error) {
	var purchase models.OneTimePurchase
	err := r.db.WithContext(ctx).
		Where("midi_file_id = ?", midiFileID).
		Order("created_at ASC").
		First(&purchase).Error
	if err != nil {
		return nil, err
	}
	return &purchase, nil
}

func (r *repository) ExpireLapsed(ctx context.Context, now time.Time) (int64, error) {
	res := r.db.WithContext(ctx).
		Model(&models.Subscription{}).
		Where("status = ? AND current_period_end < ?", enums.SubscriptionStatusActive, now).
		Updates(map[string]any{
			"status":     enums.SubscriptionStatusInactive,
			"updated_at": now.UTC(),
		})
	if res.Error != nil {
		return 0, res.Error
	}
	return res.RowsAffected, nil
}
