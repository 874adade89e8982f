package controllers

import (
	"net/http"

	"github.com/google/uuid"

	"github.com/spewite/score-to-midi-backend/api/middleware"
	"github.com/spewite/score-to-midi-backend/api/responses"
	"github.com/spewite/score-to-midi-backend/api/validators"
	checkoutsvc "github.com/spewite/score-to-midi-backend/internal/checkout"
	"github.com/spewite/score-to-midi-backend/pkg/enums"
	pkgerrors "github.com/spewite/score-to-midi-backend/pkg/errors"
	"github.com/spewite/score-to-midi-backend/pkg/logger"
)

// CreateCheckoutSession starts a Stripe checkout for a subscription or a
// single MIDI download. Anonymous one-time purchases are allowed; a
// subscription always needs the signed-in user so the webhook can attribute
// the entitlement.
func CreateCheckoutSession(svc checkoutsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "checkout service unavailable"))
			return
		}

		var payload createCheckoutSessionRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		checkoutType, err := enums.ParseCheckoutType(payload.Type)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid checkout type"))
			return
		}

		var userID *uuid.UUID
		if raw := middleware.UserIDFromContext(r.Context()); raw != "" {
			parsed, err := uuid.Parse(raw)
			if err != nil {
				responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeUnauthorized, err, "invalid user id"))
				return
			}
			userID = &parsed
		}
		if checkoutType == enums.CheckoutTypeSubscription && userID == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "subscription checkout requires sign-in"))
			return
		}

		result, err := svc.CreateSession(r.Context(), checkoutsvc.CreateSessionInput{
			Type:       checkoutType,
			UserID:     userID,
			FileID:     payload.FileUUID,
			SuccessURL: payload.SuccessURL,
			CancelURL:  payload.CancelURL,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccessStatus(w, http.StatusCreated, result)
	}
}

type createCheckoutSessionRequest struct {
	Type       string     `json:"type" validate:"required,oneof=subscription onetime"`
	FileUUID   *uuid.UUID `json:"file_uuid,omitempty" validate:"omitempty,uuid4"`
	SuccessURL string     `json:"success_url,omitempty" validate:"omitempty,url"`
	CancelURL  string     `json:"cancel_url,omitempty" validate:"omitempty,url"`
}
