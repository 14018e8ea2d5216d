package sched

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"examprep-marketplace/internal/domain/ports/repository"
	"examprep-marketplace/internal/infra/metrics"
)

// ExpiryWorker periodically flips active grants whose validity window has
// passed to expired. It is the only writer of the expired status.
type ExpiryWorker struct {
	interval time.Duration
	grants   repository.AccessGrantRepository
	log      *zerolog.Logger
}

func NewExpiryWorker(interval time.Duration, grants repository.AccessGrantRepository, logger *zerolog.Logger) *ExpiryWorker {
	l := logger.With().Str("component", "ExpiryWorker").Logger()
	return &ExpiryWorker{interval: interval, grants: grants, log: &l}
}

func (w *ExpiryWorker) Run(ctx context.Context) error {
	w.log.Info().Dur("interval", w.interval).Msg("starting grant expiry worker")
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			w.log.Info().Msg("stopping grant expiry worker")
			return ctx.Err()
		case <-ticker.C:
			n, err := w.grants.ExpireDue(ctx, nil, time.Now(), 500)
			if err != nil {
				w.log.Error().Err(err).Msg("grant expiry sweep failed")
				continue
			}
			if n > 0 {
				metrics.AddGrantsExpired(n)
				w.log.Info().Int64("count", n).Msg("grants expired")
			}
		}
	}
}
