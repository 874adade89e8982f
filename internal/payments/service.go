package payments

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/stripe/stripe-go/v84"
	"gorm.io/gorm"

	"github.com/spewite/score-to-midi-backend/internal/checkout"
	"github.com/spewite/score-to-midi-backend/internal/entitlements"
	"github.com/spewite/score-to-midi-backend/pkg/enums"
	pkgerrors "github.com/spewite/score-to-midi-backend/pkg/errors"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// SessionStatus is what the success page polls while the webhook races it.
type SessionStatus struct {
	Type                  enums.CheckoutType `json:"type"`
	Paid                  bool               `json:"paid"`
	PurchaseConfirmed     bool               `json:"purchase_confirmed"`
	SubscriptionConfirmed bool               `json:"subscription_confirmed"`
}

// ActivateInput is the client-side fallback when the webhook is delayed:
// the success page pushes the session it just returned from.
type ActivateInput struct {
	SessionID string
	UserID    uuid.UUID
}

// ActivateResult reports what the activation did.
type ActivateResult struct {
	Activated        bool   `json:"activated"`
	AlreadyActive    bool   `json:"already_active"`
	SubscriptionID   string `json:"subscription_id,omitempty"`
	CurrentPeriodEnd int64  `json:"current_period_end,omitempty"`
}

// Service is the pull side of payment confirmation. GetSessionStatus never
// writes; Activate funnels through the same upsert as the webhook so the two
// paths cannot disagree.
type Service interface {
	GetSessionStatus(ctx context.Context, sessionID string) (*SessionStatus, error)
	Activate(ctx context.Context, input ActivateInput) (*ActivateResult, error)
}

type ServiceParams struct {
	Entitlements      entitlements.Repository
	StripeClient      checkout.SessionClient
	TransactionRunner txRunner
}

type service struct {
	entitlements entitlements.Repository
	stripe       checkout.SessionClient
	txRunner     txRunner
}

func NewService(params ServiceParams) (Service, error) {
	if params.Entitlements == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "entitlements repo required")
	}
	if params.StripeClient == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "stripe client required")
	}
	if params.TransactionRunner == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "transaction runner required")
	}
	return &service{
		entitlements: params.Entitlements,
		stripe:       params.StripeClient,
		txRunner:     params.TransactionRunner,
	}, nil
}

func (s *service) GetSessionStatus(ctx context.Context, sessionID string) (*SessionStatus, error) {
	if sessionID == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "session id is required")
	}

	session, err := s.stripe.GetSession(ctx, sessionID, nil)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "fetch checkout session")
	}

	meta, err := checkout.ParseSessionMetadata(session.Metadata)
	if err != nil {
		return nil, err
	}

	status := &SessionStatus{
		Type: meta.Type,
		Paid: session.PaymentStatus == stripe.CheckoutSessionPaymentStatusPaid,
	}

	switch meta.Type {
	case enums.CheckoutTypeOnetime:
		paymentID := session.ID
		if session.PaymentIntent != nil && session.PaymentIntent.ID != "" {
			paymentID = session.PaymentIntent.ID
		}
		_, err := s.entitlements.PurchaseByPaymentID(ctx, paymentID)
		switch {
		case err == nil:
			status.PurchaseConfirmed = true
		case errors.Is(err, gorm.ErrRecordNotFound):
			// webhook has not landed yet
		default:
			return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "lookup purchase")
		}

	case enums.CheckoutTypeSubscription:
		_, err := s.entitlements.ActiveSubscriptionForUser(ctx, *meta.UserID)
		switch {
		case err == nil:
			status.SubscriptionConfirmed = true
		case errors.Is(err, gorm.ErrRecordNotFound):
			// webhook has not landed yet
		default:
			return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "lookup subscription")
		}
	}

	return status, nil
}

func (s *service) Activate(ctx context.Context, input ActivateInput) (*ActivateResult, error) {
	if input.SessionID == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "session id is required")
	}
	if input.UserID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "user id is required")
	}

	session, err := s.stripe.GetSession(ctx, input.SessionID, nil)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "fetch checkout session")
	}

	meta, err := checkout.ParseSessionMetadata(session.Metadata)
	if err != nil {
		return nil, err
	}
	if meta.Type != enums.CheckoutTypeSubscription {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "session is not a subscription checkout")
	}
	if *meta.UserID != input.UserID {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "session belongs to a different user")
	}
	if session.PaymentStatus != stripe.CheckoutSessionPaymentStatusPaid {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "session is not paid")
	}
	if session.Subscription == nil || session.Subscription.ID == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "completed session missing subscription id")
	}

	// Replayed activations for the subscription already on file are a no-op;
	// activating a different subscription while one is active is refused.
	existing, err := s.entitlements.ActiveSubscriptionForUser(ctx, input.UserID)
	if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "lookup subscription")
	}
	if existing != nil {
		if existing.StripeSubscriptionID == session.Subscription.ID {
			return &ActivateResult{
				Activated:        true,
				AlreadyActive:    true,
				SubscriptionID:   existing.StripeSubscriptionID,
				CurrentPeriodEnd: existing.CurrentPeriodEnd.Unix(),
			}, nil
		}
		return nil, pkgerrors.New(pkgerrors.CodeConflict, "user already has an active subscription")
	}

	stripeSub, err := s.stripe.GetSubscription(ctx, session.Subscription.ID, nil)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "fetch stripe subscription")
	}

	customerID := ""
	if session.Customer != nil {
		customerID = session.Customer.ID
	}

	sub, err := checkout.BuildSubscription(input.UserID, customerID, stripeSub)
	if err != nil {
		return nil, err
	}

	err = s.txRunner.WithTx(ctx, func(tx *gorm.DB) error {
		return s.entitlements.WithTx(tx).UpsertSubscription(ctx, sub)
	})
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "persist subscription")
	}

	return &ActivateResult{
		Activated:        true,
		SubscriptionID:   sub.StripeSubscriptionID,
		CurrentPeriodEnd: sub.CurrentPeriodEnd.Unix(),
	}, nil
}
