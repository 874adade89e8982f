package cron

import (
	"context"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/spewite/score-to-midi-backend/internal/entitlements"
	"github.com/spewite/score-to-midi-backend/pkg/logger"
	"github.com/spewite/score-to-midi-backend/pkg/metrics"
)

const ExpireSubscriptionsJobName = "expire-subscriptions"

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// ExpireSubscriptionsJobParams configure the subscription expiry sweep.
type ExpireSubscriptionsJobParams struct {
	Logger       *logger.Logger
	DB           txRunner
	Entitlements entitlements.Repository
	Metrics      *metrics.CronJobMetrics
	Now          func() time.Time
}

// NewExpireSubscriptionsJob builds the sweep that flips lapsed subscriptions
// to inactive. The sweep is a single bulk update, so running it twice in a
// row is harmless.
func NewExpireSubscriptionsJob(params ExpireSubscriptionsJobParams) (Job, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.DB == nil {
		return nil, fmt.Errorf("db runner required")
	}
	if params.Entitlements == nil {
		return nil, fmt.Errorf("entitlements repo required")
	}
	now := params.Now
	if now == nil {
		now = time.Now
	}
	return &expireSubscriptionsJob{
		logg:         params.Logger,
		db:           params.DB,
		entitlements: params.Entitlements,
		metrics:      params.Metrics,
		now:          now,
	}, nil
}

type expireSubscriptionsJob struct {
	logg         *logger.Logger
	db           txRunner
	entitlements entitlements.Repository
	metrics      *metrics.CronJobMetrics
	now          func() time.Time
}

func (j *expireSubscriptionsJob) Name() string {
	return ExpireSubscriptionsJobName
}

func (j *expireSubscriptionsJob) Run(ctx context.Context) error {
	var flipped int64
	err := j.db.WithTx(ctx, func(tx *gorm.DB) error {
		var sweepErr error
		flipped, sweepErr = j.entitlements.WithTx(tx).ExpireLapsed(ctx, j.now().UTC())
		return sweepErr
	})
	if err != nil {
		return fmt.Errorf("expire lapsed subscriptions: %w", err)
	}

	j.metrics.AddExpired(j.Name(), flipped)
	ctx = j.logg.WithField(ctx, "expired", flipped)
	j.logg.Info(ctx, "subscription expiry sweep finished")
	return nil
}
