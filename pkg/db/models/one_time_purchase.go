package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// OneTimePurchase records a single fulfilled pay-per-download. Rows are
// immutable once written and keyed by the processor's payment id so webhook
// redeliveries cannot mint a second entitlement.
type OneTimePurchase struct {
	ID              uuid.UUID        `gorm:"type:uuid;default:gen_random_uuid();primaryKey"`
	UserID          *uuid.UUID       `gorm:"column:user_id;type:uuid"` // nil for anonymous purchases
	MidiFileID      uuid.UUID        `gorm:"column:midi_file_id;type:uuid;not null;index"`
	StripePaymentID string           `gorm:"column:stripe_payment_id;not null;unique"`
	Amount          *decimal.Decimal `gorm:"column:amount;type:numeric(10,2)"`
	Currency        string           `gorm:"column:currency"`
	CreatedAt       time.Time        `gorm:"column:created_at;autoCreateTime"`
}
