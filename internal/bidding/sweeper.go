package bidding

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"
)

// Sweeper turns the passive bid_closes_at deadline into actual state
// transitions by running AutoCloseExpired on a fixed cadence.
type Sweeper struct {
	svc      *Service
	interval time.Duration
}

func NewSweeper(svc *Service, interval time.Duration) *Sweeper {
	if interval <= 0 {
		interval = 5 * time.Second
	}
	return &Sweeper{svc: svc, interval: interval}
}

// Start runs the sweep loop until ctx is cancelled.
func (w *Sweeper) Start(ctx context.Context) {
	logrus.WithField("interval", w.interval.String()).Info("Auction expiry sweeper started.")
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			logrus.Info("Auction expiry sweeper stopped.")
			return
		case <-ticker.C:
			if err := w.svc.AutoCloseExpired(ctx); err != nil {
				logrus.WithError(err).Error("Auction expiry sweep failed.")
			}
		}
	}
}
