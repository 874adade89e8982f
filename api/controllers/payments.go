package controllers

import (
	"net/http"

	"github.com/spewite/score-to-midi-backend/api/responses"
	"github.com/spewite/score-to-midi-backend/api/validators"
	"github.com/spewite/score-to-midi-backend/internal/confirm"
	"github.com/spewite/score-to-midi-backend/internal/payments"
	pkgerrors "github.com/spewite/score-to-midi-backend/pkg/errors"
	"github.com/spewite/score-to-midi-backend/pkg/logger"
)

// PaymentSessionStatus is the read-only probe the success page polls while
// the webhook delivery races it. It never writes anything.
func PaymentSessionStatus(svc payments.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "payments service unavailable"))
			return
		}

		sessionID, err := validators.RequireQueryString(r, "session_id")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		status, err := svc.GetSessionStatus(r.Context(), sessionID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, status)
	}
}

// PaymentConfirm blocks until the entitlement for the session lands or the
// poller's attempt and wall-clock budgets run out, then reports the terminal
// state. Unconfirmed is a valid answer, not an error.
func PaymentConfirm(poller *confirm.Poller, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if poller == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "confirmation poller unavailable"))
			return
		}

		sessionID, err := validators.RequireQueryString(r, "session_id")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		result, err := poller.Await(r.Context(), sessionID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, result)
	}
}
