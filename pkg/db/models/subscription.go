package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/spewite/score-to-midi-backend/pkg/enums"
)

// Subscription is the local entitlement row for a recurring plan. The
// processor's ledger is the source of truth; this row converges on it via
// webhook pushes and success-page pulls, both funneled through the same
// upsert.
type Subscription struct {
	ID                   uuid.UUID                `gorm:"type:uuid;default:gen_random_uuid();primaryKey"`
	UserID               uuid.UUID                `gorm:"column:user_id;type:uuid;not null;index"`
	StripeCustomerID     string                   `gorm:"column:stripe_customer_id;not null"`
	StripeSubscriptionID string                   `gorm:"column:stripe_subscription_id;not null"`
	Status               enums.SubscriptionStatus `gorm:"column:status;not null;default:'inactive'"`
	CurrentPeriodEnd     time.Time                `gorm:"column:current_period_end;not null"`
	CreatedAt            time.Time                `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt            time.Time                `gorm:"column:updated_at;autoUpdateTime"`
}
