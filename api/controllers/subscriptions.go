package controllers

import (
	"net/http"

	"github.com/google/uuid"

	"github.com/spewite/score-to-midi-backend/api/middleware"
	"github.com/spewite/score-to-midi-backend/api/responses"
	"github.com/spewite/score-to-midi-backend/api/validators"
	"github.com/spewite/score-to-midi-backend/internal/payments"
	pkgerrors "github.com/spewite/score-to-midi-backend/pkg/errors"
	"github.com/spewite/score-to-midi-backend/pkg/logger"
)

// ActivateSubscription is the client-side fallback for a delayed webhook:
// the signed-in user pushes the session they just returned from and the
// entitlement is written through the same upsert the webhook uses.
func ActivateSubscription(svc payments.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "payments service unavailable"))
			return
		}

		userID, err := uuid.Parse(middleware.UserIDFromContext(r.Context()))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "missing user context"))
			return
		}

		var payload activateSubscriptionRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		result, err := svc.Activate(r.Context(), payments.ActivateInput{
			SessionID: payload.SessionID,
			UserID:    userID,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, result)
	}
}

type activateSubscriptionRequest struct {
	SessionID string `json:"session_id" validate:"required"`
}
