package controllers

import (
	"errors"
	"net/http"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/spewite/score-to-midi-backend/api/responses"
	"github.com/spewite/score-to-midi-backend/api/validators"
	"github.com/spewite/score-to-midi-backend/internal/entitlements"
	pkgerrors "github.com/spewite/score-to-midi-backend/pkg/errors"
	"github.com/spewite/score-to-midi-backend/pkg/logger"
)

// PurchaseStatus answers whether a one-time purchase exists for the given
// artifact. The download page gates on it, so absence is a normal answer.
func PurchaseStatus(repo entitlements.Repository, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if repo == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "entitlements repo unavailable"))
			return
		}

		fileID, err := validators.RequireQueryUUID(r, "file_uuid")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		purchase, err := repo.PurchaseForFile(r.Context(), fileID)
		switch {
		case err == nil:
			responses.WriteSuccess(w, purchaseStatusResponse{
				Purchased:  true,
				PurchaseID: &purchase.ID,
				CreatedAt:  &purchase.CreatedAt,
			})
		case errors.Is(err, gorm.ErrRecordNotFound):
			responses.WriteSuccess(w, purchaseStatusResponse{Purchased: false})
		default:
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "lookup purchase"))
		}
	}
}

type purchaseStatusResponse struct {
	Purchased  bool       `json:"purchased"`
	PurchaseID *uuid.UUID `json:"purchase_id,omitempty"`
	CreatedAt  *time.Time `json:"created_at,omitempty"`
}
