// Package sweeper drives auction settlement: on a fixed interval it asks the
// engine to settle every active auction whose window has closed. The sweeper
// holds no authority of its own; a concurrent sweep of the same offer simply
// gets ErrInvalidState from the engine and moves on.
package sweeper

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"offermarket/internal/models"
	"offermarket/internal/repository"
	"offermarket/internal/service"
)

type Sweeper struct {
	repo     *repository.Repository
	service  *service.Service
	interval time.Duration
	now      func() time.Time
}

func NewSweeper(repo *repository.Repository, svc *service.Service, interval time.Duration) *Sweeper {
	if interval <= 0 {
		interval = time.Minute
	}
	return &Sweeper{
		repo:     repo,
		service:  svc,
		interval: interval,
		now:      time.Now,
	}
}

// Run sweeps until ctx is cancelled.
func (s *Sweeper) Run(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			err := s.Sweep(ctx)
			if err != nil && ctx.Err() == nil {
				log.Println("sweeper.Sweeper.Run:", err)
			}
		}
	}
}

// Sweep settles every due auction once. Exported for tests and manual runs.
func (s *Sweeper) Sweep(ctx context.Context) error {
	due, err := s.repo.GetDueAuctions(ctx, s.now())
	if err != nil {
		return fmt.Errorf("sweeper.Sweeper.Sweep: %w", err)
	}

	for _, offer := range due {
		_, err = s.service.SettleAuction(ctx, offer.Id)
		if errors.Is(err, models.ErrInvalidState) {
			// Another sweeper or the seller settled it first.
			continue
		}
		if err != nil {
			return fmt.Errorf("sweeper.Sweeper.Sweep: offer %s: %w", offer.Id, err)
		}
	}

	return nil
}
