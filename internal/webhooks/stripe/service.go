package stripewebhook

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stripe/stripe-go/v84"
	"gorm.io/gorm"

	"github.com/spewite/score-to-midi-backend/internal/checkout"
	"github.com/spewite/score-to-midi-backend/internal/entitlements"
	"github.com/spewite/score-to-midi-backend/internal/midifiles"
	"github.com/spewite/score-to-midi-backend/pkg/db/models"
	"github.com/spewite/score-to-midi-backend/pkg/enums"
	pkgerrors "github.com/spewite/score-to-midi-backend/pkg/errors"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type ServiceParams struct {
	Entitlements      entitlements.Repository
	Files             midifiles.Repository
	StripeClient      checkout.SessionClient
	TransactionRunner txRunner
}

// Service applies verified Stripe events to the entitlement store. Only the
// two event types that grant entitlements are handled; everything else is
// acknowledged and dropped.
type Service struct {
	entitlements entitlements.Repository
	files        midifiles.Repository
	stripe       checkout.SessionClient
	txRunner     txRunner
}

func NewService(params ServiceParams) (*Service, error) {
	if params.Entitlements == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "entitlements repo required")
	}
	if params.Files == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "midi files repo required")
	}
	if params.StripeClient == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "stripe client required")
	}
	if params.TransactionRunner == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "transaction runner required")
	}
	return &Service{
		entitlements: params.Entitlements,
		files:        params.Files,
		stripe:       params.StripeClient,
		txRunner:     params.TransactionRunner,
	}, nil
}

// HandleEvent dispatches a verified event. The boolean reports whether the
// event granted or refreshed an entitlement; unhandled types return false
// with no error so Stripe stops redelivering them.
func (s *Service) HandleEvent(ctx context.Context, event *stripe.Event) (bool, error) {
	if event == nil || event.Data == nil {
		return false, pkgerrors.New(pkgerrors.CodeValidation, "stripe event data required")
	}

	switch event.Type {
	case stripe.EventTypeCheckoutSessionCompleted:
		var session stripe.CheckoutSession
		if err := json.Unmarshal(event.Data.Raw, &session); err != nil {
			return false, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "decode checkout session event")
		}
		return s.applyCompletedSession(ctx, &session)

	case stripe.EventTypeInvoicePaymentSucceeded:
		return s.applyInvoicePayment(ctx, event)

	default:
		return false, nil
	}
}

func (s *Service) applyCompletedSession(ctx context.Context, session *stripe.CheckoutSession) (bool, error) {
	meta, err := checkout.ParseSessionMetadata(session.Metadata)
	if err != nil {
		return false, err
	}

	switch meta.Type {
	case enums.CheckoutTypeSubscription:
		return s.applySubscriptionSession(ctx, session, meta)
	case enums.CheckoutTypeOnetime:
		return s.applyOnetimeSession(ctx, session, meta)
	default:
		return false, pkgerrors.New(pkgerrors.CodeValidation, "unknown checkout type")
	}
}

func (s *Service) applySubscriptionSession(ctx context.Context, session *stripe.CheckoutSession, meta *checkout.SessionMetadata) (bool, error) {
	if session.Subscription == nil || session.Subscription.ID == "" {
		return false, pkgerrors.New(pkgerrors.CodeValidation, "completed session missing subscription id")
	}
	if session.Customer == nil || session.Customer.ID == "" {
		return false, pkgerrors.New(pkgerrors.CodeValidation, "completed session missing customer id")
	}

	// The event only names the subscription; the period end lives on the
	// processor's subscription object.
	stripeSub, err := s.stripe.GetSubscription(ctx, session.Subscription.ID, nil)
	if err != nil {
		return false, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "fetch stripe subscription")
	}

	sub, err := checkout.BuildSubscription(*meta.UserID, session.Customer.ID, stripeSub)
	if err != nil {
		return false, err
	}

	err = s.txRunner.WithTx(ctx, func(tx *gorm.DB) error {
		return s.entitlements.WithTx(tx).UpsertSubscription(ctx, sub)
	})
	if err != nil {
		return false, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "persist subscription")
	}
	return true, nil
}

func (s *Service) applyOnetimeSession(ctx context.Context, session *stripe.CheckoutSession, meta *checkout.SessionMetadata) (bool, error) {
	paymentID := session.ID
	if session.PaymentIntent != nil && session.PaymentIntent.ID != "" {
		paymentID = session.PaymentIntent.ID
	}

	purchase := &models.OneTimePurchase{
		UserID:          meta.UserID,
		MidiFileID:      *meta.FileID,
		StripePaymentID: paymentID,
		Currency:        string(session.Currency),
	}
	if session.AmountTotal > 0 {
		amount := decimal.NewFromInt(session.AmountTotal).Div(decimal.NewFromInt(100))
		purchase.Amount = &amount
	}

	err := s.txRunner.WithTx(ctx, func(tx *gorm.DB) error {
		// The conversion flow writes the artifact row before payment, but a
		// fast webhook can still race it. Not-found is retryable so the
		// redelivery lands after the row does.
		if _, err := s.files.WithTx(tx).FindByID(ctx, *meta.FileID); err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return pkgerrors.New(pkgerrors.CodeNotFound, "midi file not found for purchase")
			}
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "resolve midi file")
		}
		return s.entitlements.WithTx(tx).RecordPurchase(ctx, purchase)
	})
	if err != nil {
		return false, err
	}
	return true, nil
}

func (s *Service) applyInvoicePayment(ctx context.Context, event *stripe.Event) (bool, error) {
	subscriptionID := event.GetObjectValue("subscription")
	if subscriptionID == "" {
		subscriptionID = event.GetObjectValue("parent", "subscription_details", "subscription")
	}
	if subscriptionID == "" {
		return false, pkgerrors.New(pkgerrors.CodeValidation, "invoice missing subscription id")
	}

	stripeSub, err := s.stripe.GetSubscription(ctx, subscriptionID, nil)
	if err != nil {
		return false, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "fetch stripe subscription")
	}

	userID, customerID, err := s.resolveInvoiceOwner(ctx, stripeSub)
	if err != nil {
		return false, err
	}
	if userID == uuid.Nil {
		// Renewal for a subscription this service never saw. Nothing to
		// refresh locally; acknowledge so Stripe stops retrying.
		return false, nil
	}

	sub, err := checkout.BuildSubscription(userID, customerID, stripeSub)
	if err != nil {
		return false, err
	}

	err = s.txRunner.WithTx(ctx, func(tx *gorm.DB) error {
		return s.entitlements.WithTx(tx).UpsertSubscription(ctx, sub)
	})
	if err != nil {
		return false, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "persist subscription renewal")
	}
	return true, nil
}

func (s *Service) resolveInvoiceOwner(ctx context.Context, stripeSub *stripe.Subscription) (uuid.UUID, string, error) {
	customerID := ""
	if stripeSub.Customer != nil {
		customerID = stripeSub.Customer.ID
	}

	stored, err := s.entitlements.SubscriptionByStripeID(ctx, stripeSub.ID)
	if err == nil {
		if customerID == "" {
			customerID = stored.StripeCustomerID
		}
		return stored.UserID, customerID, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return uuid.Nil, "", pkgerrors.Wrap(pkgerrors.CodeInternal, err, "lookup subscription")
	}

	if raw := stripeSub.Metadata[checkout.MetadataKeyUserID]; raw != "" {
		userID, parseErr := uuid.Parse(raw)
		if parseErr != nil {
			return uuid.Nil, "", pkgerrors.Wrap(pkgerrors.CodeValidation, parseErr, "invalid user_id in subscription metadata")
		}
		return userID, customerID, nil
	}
	return uuid.Nil, "", nil
}

