package verification

import (
	"context"
	"time"

	"github.com/2beens/contenthub/internal/telemetry/metrics"

	log "github.com/sirupsen/logrus"
)

const DefaultSweepInterval = 15 * time.Minute

type expiredDeleter interface {
	DeleteExpired(ctx context.Context, now time.Time) (int64, error)
}

// Sweeper periodically removes expired codes from stores that do not expire keys on their own.
type Sweeper struct {
	store          expiredDeleter
	interval       time.Duration
	metricsManager *metrics.Manager
	NowFunc        func() time.Time
}

func NewSweeper(store expiredDeleter, interval time.Duration, metricsManager *metrics.Manager) *Sweeper {
	if interval <= 0 {
		log.Warnf("verification sweeper, invalid interval %s, using %s", interval, DefaultSweepInterval)
		interval = DefaultSweepInterval
	}
	return &Sweeper{
		store:          store,
		interval:       interval,
		metricsManager: metricsManager,
		NowFunc:        time.Now,
	}
}

// Run blocks until ctx is done.
func (s *Sweeper) Run(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	log.Debugf("=> verification sweeper started, interval: %s", s.interval)
	for {
		select {
		case <-ctx.Done():
			log.Debugln("=> verification sweeper stopped")
			return
		case <-ticker.C:
			s.SweepOnce(ctx)
		}
	}
}

func (s *Sweeper) SweepOnce(ctx context.Context) int64 {
	deleted, err := s.store.DeleteExpired(ctx, s.NowFunc())
	if err != nil {
		log.Errorf("!!! verification sweeper, delete expired: %s", err)
		return 0
	}

	if deleted > 0 {
		log.Debugf("=> verification sweeper, removed %d expired codes", deleted)
		s.metricsManager.CounterExpiredCodesCleanedUp.Add(float64(deleted))
	}
	return deleted
}
