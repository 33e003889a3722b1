// Package sweep releases reservations whose deadline passed without a
// completion or cancellation.
package sweep

import (
	"context"
	"time"

	"github.com/fekuna/omnipos-inventory-service/internal/inventory"
	"github.com/fekuna/omnipos-inventory-service/internal/logger"
	"github.com/fekuna/omnipos-inventory-service/internal/model"
	"go.uber.org/zap"
)

const DefaultBatchSize = 100

type Result struct {
	Scanned int
	Expired int
	// Skipped counts reservations that left active between the scan and
	// the expire call.
	Skipped int
	Failed  int
}

type Sweeper struct {
	expirer   inventory.Expirer
	logger    logger.ZapLogger
	now       func() time.Time
	batchSize int
}

func New(expirer inventory.Expirer, log logger.ZapLogger, batchSize int, now func() time.Time) *Sweeper {
	if batchSize <= 0 {
		batchSize = DefaultBatchSize
	}
	if now == nil {
		now = time.Now
	}
	return &Sweeper{expirer: expirer, logger: log, now: now, batchSize: batchSize}
}

// Run expires every active reservation past its deadline at call time. It
// keeps pulling batches until one comes back short or makes no progress.
func (s *Sweeper) Run(ctx context.Context) (Result, error) {
	var res Result
	cutoff := s.now()

	for {
		batch, err := s.expirer.ListExpiredReservations(ctx, cutoff, s.batchSize)
		if err != nil {
			return res, err
		}
		res.Scanned += len(batch)

		progressed := false
		for _, r := range batch {
			if err := ctx.Err(); err != nil {
				return res, err
			}
			out, err := s.expirer.ExpireReservation(ctx, r.ID)
			if err != nil {
				res.Failed++
				s.logger.Warn("failed to expire reservation", zap.String("reservation_id", r.ID), zap.Error(err))
				continue
			}
			progressed = true
			if out.Status == model.ReservationExpired {
				res.Expired++
			} else {
				res.Skipped++
			}
		}

		if len(batch) < s.batchSize || !progressed {
			break
		}
	}

	if res.Scanned > 0 {
		s.logger.Info("expiry sweep finished",
			zap.Int("scanned", res.Scanned),
			zap.Int("expired", res.Expired),
			zap.Int("skipped", res.Skipped),
			zap.Int("failed", res.Failed))
	}
	return res, nil
}
