package entitlements

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/spewite/score-to-midi-backend/pkg/db/models"
)

// Repository is the write/read surface for entitlement rows. Webhook pushes,
// success-page activation, and the expiry sweep all converge through it.
type Repository interface {
	WithTx(tx *gorm.DB) Repository

	// UpsertSubscription inserts or refreshes the subscription row keyed on
	// the configured conflict columns. current_period_end only ever moves
	// forward, so late redeliveries of older renewals cannot shorten an
	// entitlement.
	UpsertSubscription(ctx context.Context, sub *models.Subscription) error

	ActiveSubscriptionForUser(ctx context.Context, userID uuid.UUID) (*models.Subscription, error)
	SubscriptionByStripeID(ctx context.Context, stripeSubscriptionID string) (*models.Subscription, error)

	// RecordPurchase inserts the purchase unless a row with the same
	// stripe_payment_id already exists, in which case it is a no-op.
	RecordPurchase(ctx context.Context, purchase *models.OneTimePurchase) error

	PurchaseByPaymentID(ctx context.Context, stripePaymentID string) (*models.OneTimePurchase, error)
	PurchaseForFile(ctx context.Context, midiFileID uuid.UUID) (*models.OneTimePurchase, error)

	// ExpireLapsed flips active subscriptions whose period end has passed to
	// inactive and reports how many rows changed.
	ExpireLapsed(ctx context.Context, now time.Time) (int64, error)
}
