package checkout

import (
	"time"

	"github.com/google/uuid"
	"github.com/stripe/stripe-go/v84"

	"github.com/spewite/score-to-midi-backend/pkg/db/models"
	"github.com/spewite/score-to-midi-backend/pkg/enums"
	pkgerrors "github.com/spewite/score-to-midi-backend/pkg/errors"
)

// BuildSubscription maps a Stripe subscription into the local entitlement
// row. Both the webhook push and the success-page activation go through this
// mapper so a row always looks the same regardless of which path wrote it.
func BuildSubscription(userID uuid.UUID, customerID string, stripeSub *stripe.Subscription) (*models.Subscription, error) {
	if stripeSub == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "stripe subscription is nil")
	}
	periodEnd := PeriodEndOf(stripeSub)
	if periodEnd.IsZero() {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "stripe subscription missing period end")
	}
	return &models.Subscription{
		UserID:               userID,
		StripeCustomerID:     customerID,
		StripeSubscriptionID: stripeSub.ID,
		Status:               StatusFromStripe(stripeSub.Status),
		CurrentPeriodEnd:     periodEnd,
	}, nil
}

// PeriodEndOf extracts the billing period end. Stripe moved it to the
// subscription item level, so read it off the first item.
func PeriodEndOf(sub *stripe.Subscription) time.Time {
	if sub == nil || sub.Items == nil || len(sub.Items.Data) == 0 {
		return time.Time{}
	}
	ts := sub.Items.Data[0].CurrentPeriodEnd
	if ts == 0 {
		return time.Time{}
	}
	return time.Unix(ts, 0).UTC()
}

// StatusFromStripe collapses Stripe's status set onto the local one: a user
// either may download or may not.
func StatusFromStripe(status stripe.SubscriptionStatus) enums.SubscriptionStatus {
	switch status {
	case stripe.SubscriptionStatusActive, stripe.SubscriptionStatusTrialing:
		return enums.SubscriptionStatusActive
	default:
		return enums.SubscriptionStatusInactive
	}
}
