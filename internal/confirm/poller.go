package confirm

import (
	"context"
	"time"

	"github.com/spewite/score-to-midi-backend/internal/payments"
	"github.com/spewite/score-to-midi-backend/pkg/config"
	pkgerrors "github.com/spewite/score-to-midi-backend/pkg/errors"
)

// State is the terminal outcome of a confirmation wait. There is no
// in-between: the wait either observed the entitlement or gave up.
type State string

const (
	StateConfirmed   State = "confirmed"
	StateUnconfirmed State = "unconfirmed"
)

// Result reports how the wait ended and the last status observed.
type Result struct {
	State    State                   `json:"state"`
	Attempts int                     `json:"attempts"`
	Status   *payments.SessionStatus `json:"status,omitempty"`
}

// StatusFetcher is the read-only probe the poller repeats. It is the same
// lookup the success page uses, so polling can never write.
type StatusFetcher interface {
	GetSessionStatus(ctx context.Context, sessionID string) (*payments.SessionStatus, error)
}

// Poller waits for the webhook to land, bounded by both an attempt budget
// and a wall-clock ceiling so a lost event cannot wedge a client forever.
type Poller struct {
	fetcher StatusFetcher
	cfg     config.ConfirmConfig
}

func NewPoller(fetcher StatusFetcher, cfg config.ConfirmConfig) (*Poller, error) {
	if fetcher == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "status fetcher required")
	}
	if cfg.PollInterval <= 0 || cfg.MaxAttempts <= 0 || cfg.MaxWait <= 0 {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "poll interval, attempts and ceiling must be positive")
	}
	return &Poller{fetcher: fetcher, cfg: cfg}, nil
}

// Await polls the session status until it confirms or the budget runs out.
// Transient dependency failures consume an attempt and the loop keeps going;
// validation failures abort immediately since retrying cannot fix them.
func (p *Poller) Await(ctx context.Context, sessionID string) (*Result, error) {
	if sessionID == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "session id is required")
	}

	deadline := time.Now().Add(p.cfg.MaxWait)
	ticker := time.NewTicker(p.cfg.PollInterval)
	defer ticker.Stop()

	result := &Result{State: StateUnconfirmed}

	for attempt := 1; attempt <= p.cfg.MaxAttempts; attempt++ {
		result.Attempts = attempt

		status, err := p.fetcher.GetSessionStatus(ctx, sessionID)
		if err != nil {
			if appErr := pkgerrors.As(err); appErr != nil && !pkgerrors.MetadataFor(appErr.Code()).Retryable {
				switch appErr.Code() {
				case pkgerrors.CodeValidation, pkgerrors.CodeForbidden, pkgerrors.CodeUnauthorized:
					return nil, err
				}
			}
		} else {
			result.Status = status
			if status.PurchaseConfirmed || status.SubscriptionConfirmed {
				result.State = StateConfirmed
				return result, nil
			}
		}

		if attempt == p.cfg.MaxAttempts || time.Now().After(deadline) {
			break
		}

		select {
		case <-ctx.Done():
			return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, ctx.Err(), "confirmation wait cancelled")
		case <-ticker.C:
		}
	}

	return result, nil
}
