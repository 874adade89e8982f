package controllers

import (
	"crypto/subtle"
	"net/http"

	"github.com/spewite/score-to-midi-backend/api/responses"
	"github.com/spewite/score-to-midi-backend/internal/cron"
	"github.com/spewite/score-to-midi-backend/pkg/config"
	pkgerrors "github.com/spewite/score-to-midi-backend/pkg/errors"
	"github.com/spewite/score-to-midi-backend/pkg/logger"
)

const cronSecretHeader = "X-Cron-Secret"

// RunExpireSubscriptions triggers the subscription expiry sweep over HTTP.
// It exists for platform schedulers that hit a URL instead of running the
// worker binary, and shares the exact job the worker runs.
func RunExpireSubscriptions(cfg config.CronConfig, job cron.Job, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if job == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "expiry job unavailable"))
			return
		}
		if cfg.Secret == "" {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "cron secret not configured"))
			return
		}

		provided := r.Header.Get(cronSecretHeader)
		if provided == "" {
			provided = r.URL.Query().Get("secret")
		}
		if subtle.ConstantTimeCompare([]byte(provided), []byte(cfg.Secret)) != 1 {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "invalid cron secret"))
			return
		}

		if err := job.Run(r.Context()); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, map[string]bool{"success": true})
	}
}
