package sweeper

import (
	"context"
	"fmt"
	"time"

	"linkauthority-go/internal/exchange"
	"linkauthority-go/internal/models"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

// sweepTimeout bounds one sweep run, refunds included.
const sweepTimeout = 5 * time.Minute

// Sweeper periodically fails pending exchange pairs past their deadline and
// refunds the locked points.
type Sweeper struct {
	cron     *cron.Cron
	exchange *exchange.Service
}

func New(svc *exchange.Service, cfg models.SweepConfig) (*Sweeper, error) {
	s := &Sweeper{
		cron:     cron.New(),
		exchange: svc,
	}

	if _, err := s.cron.AddFunc(cfg.Schedule, s.run); err != nil {
		return nil, fmt.Errorf("invalid sweep schedule %q: %w", cfg.Schedule, err)
	}

	zap.L().Info("Expiry sweeper configured", zap.String("schedule", cfg.Schedule))
	return s, nil
}

func (s *Sweeper) Start() {
	s.cron.Start()
}

// Stop halts the schedule and waits for an in-flight sweep to finish.
func (s *Sweeper) Stop() {
	<-s.cron.Stop().Done()
}

func (s *Sweeper) run() {
	ctx, cancel := context.WithTimeout(context.Background(), sweepTimeout)
	defer cancel()

	expired, err := s.exchange.ExpireStale(ctx, time.Now())
	if err != nil {
		zap.L().Error("Expiry sweep failed", zap.Error(err))
		return
	}
	if expired > 0 {
		zap.L().Info("Expiry sweep refunded stale pairs", zap.Int("expired", expired))
	}
}
