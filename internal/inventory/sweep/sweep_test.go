package sweep

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/fekuna/omnipos-inventory-service/internal/inventory"
	"github.com/fekuna/omnipos-inventory-service/internal/logger"
	"github.com/fekuna/omnipos-inventory-service/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeExpirer serves active reservations expiring before the cutoff.
type fakeExpirer struct {
	mu      sync.Mutex
	byID    map[string]*model.StockReservation
	order   []string
	fail    map[string]bool
	listErr error
}

func newFakeExpirer(reservations ...model.StockReservation) *fakeExpirer {
	f := &fakeExpirer{byID: map[string]*model.StockReservation{}, fail: map[string]bool{}}
	for i := range reservations {
		r := reservations[i]
		f.byID[r.ID] = &r
		f.order = append(f.order, r.ID)
	}
	return f
}

func (f *fakeExpirer) ListExpiredReservations(ctx context.Context, before time.Time, limit int) ([]model.StockReservation, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.listErr != nil {
		return nil, f.listErr
	}
	var out []model.StockReservation
	for _, id := range f.order {
		r := f.byID[id]
		if r.Status == model.ReservationActive && r.ExpiresAt.Before(before) {
			out = append(out, *r)
			if len(out) == limit {
				break
			}
		}
	}
	return out, nil
}

func (f *fakeExpirer) ExpireReservation(ctx context.Context, id string) (*model.StockReservation, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.fail[id] {
		return nil, fmt.Errorf("expire %s: %w", id, inventory.ErrConflict)
	}
	r := f.byID[id]
	if r.Status == model.ReservationActive {
		r.Status = model.ReservationExpired
	}
	out := *r
	return &out, nil
}

func reservation(id string, expiresAt time.Time) model.StockReservation {
	return model.StockReservation{ID: id, Status: model.ReservationActive, ExpiresAt: expiresAt}
}

func TestRun_ExpiresOnlyPastDeadline(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	f := newFakeExpirer(
		reservation("r-1", now.Add(-time.Minute)),
		reservation("r-2", now.Add(time.Minute)),
		reservation("r-3", now.Add(-time.Hour)),
	)
	s := New(f, logger.NewNop(), 10, func() time.Time { return now })

	res, err := s.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, Result{Scanned: 2, Expired: 2}, res)
	assert.Equal(t, model.ReservationActive, f.byID["r-2"].Status)
}

func TestRun_DrainsInBatches(t *testing.T) {
	now := time.Now()
	var rs []model.StockReservation
	for i := 0; i < 7; i++ {
		rs = append(rs, reservation(fmt.Sprintf("r-%d", i), now.Add(-time.Second)))
	}
	f := newFakeExpirer(rs...)
	s := New(f, logger.NewNop(), 3, func() time.Time { return now })

	res, err := s.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 7, res.Expired)
	assert.Equal(t, 7, res.Scanned)
}

func TestRun_CountsSkippedAndFailed(t *testing.T) {
	now := time.Now()
	f := newFakeExpirer(
		reservation("r-1", now.Add(-time.Second)),
		reservation("r-2", now.Add(-time.Second)),
		reservation("r-3", now.Add(-time.Second)),
	)
	f.fail["r-2"] = true

	// r-3 completes between the scan and the expire call.
	s := New(&racingExpirer{fakeExpirer: f, completeOnExpire: "r-3"}, logger.NewNop(), 10, func() time.Time { return now })

	res, err := s.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, Result{Scanned: 3, Expired: 1, Skipped: 1, Failed: 1}, res)
}

func TestRun_StopsWhenABatchMakesNoProgress(t *testing.T) {
	now := time.Now()
	f := newFakeExpirer(reservation("r-1", now.Add(-time.Second)))
	f.fail["r-1"] = true
	s := New(f, logger.NewNop(), 1, func() time.Time { return now })

	res, err := s.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, Result{Scanned: 1, Failed: 1}, res)
}

func TestRun_ListError(t *testing.T) {
	f := newFakeExpirer()
	f.listErr = errors.New("db down")
	s := New(f, logger.NewNop(), 0, nil)

	_, err := s.Run(context.Background())
	assert.EqualError(t, err, "db down")
}

type racingExpirer struct {
	*fakeExpirer
	completeOnExpire string
}

func (r *racingExpirer) ExpireReservation(ctx context.Context, id string) (*model.StockReservation, error) {
	if id == r.completeOnExpire {
		r.mu.Lock()
		r.byID[id].Status = model.ReservationCompleted
		r.mu.Unlock()
	}
	return r.fakeExpirer.ExpireReservation(ctx, id)
}
