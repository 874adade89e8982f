package checkout

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/stripe/stripe-go/v84"
	"gorm.io/gorm"

	"github.com/spewite/score-to-midi-backend/internal/midifiles"
	"github.com/spewite/score-to-midi-backend/pkg/config"
	"github.com/spewite/score-to-midi-backend/pkg/enums"
	pkgerrors "github.com/spewite/score-to-midi-backend/pkg/errors"
)

const (
	successPath = "/payment/success?session_id={CHECKOUT_SESSION_ID}"
	cancelPath  = "/payment/cancelled"
)

// CreateSessionInput captures what the frontend sends when starting a checkout.
type CreateSessionInput struct {
	Type       enums.CheckoutType
	UserID     *uuid.UUID
	FileID     *uuid.UUID
	SuccessURL string
	CancelURL  string
}

// CreateSessionResult is returned to the frontend for the redirect.
type CreateSessionResult struct {
	SessionID string `json:"session_id"`
	URL       string `json:"url"`
}

// Service starts Stripe checkout sessions stamped with the correlation metadata.
type Service interface {
	CreateSession(ctx context.Context, input CreateSessionInput) (*CreateSessionResult, error)
}

type ServiceParams struct {
	Client  SessionClient
	Files   midifiles.Repository
	Stripe  config.StripeConfig
	BaseURL string
}

type service struct {
	client  SessionClient
	files   midifiles.Repository
	stripe  config.StripeConfig
	baseURL string
}

func NewService(params ServiceParams) (Service, error) {
	if params.Client == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "stripe session client required")
	}
	if params.Files == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "midi files repo required")
	}
	return &service{
		client:  params.Client,
		files:   params.Files,
		stripe:  params.Stripe,
		baseURL: params.BaseURL,
	}, nil
}

func (s *service) CreateSession(ctx context.Context, input CreateSessionInput) (*CreateSessionResult, error) {
	meta := &SessionMetadata{Type: input.Type, UserID: input.UserID, FileID: input.FileID}

	var mode stripe.CheckoutSessionMode
	var priceID string

	switch input.Type {
	case enums.CheckoutTypeSubscription:
		if input.UserID == nil {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "subscription checkout requires a user id")
		}
		mode = stripe.CheckoutSessionModeSubscription
		priceID = s.stripe.SubscriptionPriceID
	case enums.CheckoutTypeOnetime:
		if input.FileID == nil {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "onetime checkout requires a file id")
		}
		// The artifact has to exist before we sell a download of it.
		if _, err := s.files.FindByID(ctx, *input.FileID); err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return nil, pkgerrors.New(pkgerrors.CodeNotFound, "midi file not found")
			}
			return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "resolve midi file")
		}
		mode = stripe.CheckoutSessionModePayment
		priceID = s.stripe.OnetimePriceID
	default:
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "unknown checkout type")
	}

	if priceID == "" {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "no price configured for checkout type")
	}

	successURL := input.SuccessURL
	if successURL == "" {
		successURL = s.baseURL + successPath
	}
	cancelURL := input.CancelURL
	if cancelURL == "" {
		cancelURL = s.baseURL + cancelPath
	}

	params := &stripe.CheckoutSessionParams{
		Mode:       stripe.String(string(mode)),
		SuccessURL: stripe.String(successURL),
		CancelURL:  stripe.String(cancelURL),
		LineItems: []*stripe.CheckoutSessionLineItemParams{
			{
				Price:    stripe.String(priceID),
				Quantity: stripe.Int64(1),
			},
		},
	}
	for key, value := range meta.MetadataMap() {
		params.AddMetadata(key, value)
	}

	created, err := s.client.CreateSession(ctx, params)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create checkout session")
	}

	return &CreateSessionResult{SessionID: created.ID, URL: created.URL}, nil
}
