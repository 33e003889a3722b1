package usecase_test

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/fekuna/omnipos-inventory-service/internal/auth"
	"github.com/fekuna/omnipos-inventory-service/internal/inventory"
	"github.com/fekuna/omnipos-inventory-service/internal/inventory/dto"
	"github.com/fekuna/omnipos-inventory-service/internal/inventory/ledger"
	"github.com/fekuna/omnipos-inventory-service/internal/inventory/repository"
	"github.com/fekuna/omnipos-inventory-service/internal/inventory/usecase"
	"github.com/fekuna/omnipos-inventory-service/internal/lock"
	"github.com/fekuna/omnipos-inventory-service/internal/logger"
	"github.com/fekuna/omnipos-inventory-service/internal/metrics"
	"github.com/fekuna/omnipos-inventory-service/internal/model"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/trace/noop"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

type recordingNotifier struct {
	mu     sync.Mutex
	alerts []model.InventoryAlert
}

func (n *recordingNotifier) NotifyAlert(ctx context.Context, a model.InventoryAlert) error {
	n.mu.Lock()
	n.alerts = append(n.alerts, a)
	n.mu.Unlock()
	return nil
}

type fixture struct {
	uc       usecase.InventoryUseCase
	repo     *repository.MemoryRepository
	clock    *fakeClock
	notifier *recordingNotifier
	metrics  *metrics.Metrics
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	return newFixtureWithLocker(t, lock.NewKeyedMutex())
}

func newFixtureWithLocker(t *testing.T, locker lock.Locker) *fixture {
	t.Helper()
	f := &fixture{
		repo:     repository.NewMemoryRepository(),
		clock:    newFakeClock(),
		notifier: &recordingNotifier{},
		metrics:  metrics.New(prometheus.NewRegistry()),
	}
	f.uc = usecase.NewInventoryUseCase(f.repo, locker, logger.NewNop(),
		usecase.WithClock(f.clock.Now),
		usecase.WithNotifier(f.notifier),
		usecase.WithMetrics(f.metrics),
		usecase.WithTracer(noop.NewTracerProvider().Tracer("test")),
	)
	return f
}

func (f *fixture) init(t *testing.T, productID string, onHand, lowStock int64, opts ...func(*dto.InitializeInventoryInput)) *model.InventoryItem {
	t.Helper()
	in := &dto.InitializeInventoryInput{
		ProductID:         productID,
		SKU:               "SKU-" + productID,
		InitialQuantity:   onHand,
		LowStockThreshold: lowStock,
		TrackInventory:    true,
	}
	for _, o := range opts {
		o(in)
	}
	item, err := f.uc.InitializeInventory(context.Background(), in)
	require.NoError(t, err)
	return item
}

func (f *fixture) reserve(productID, orderID string, qty int64) (*model.StockReservation, error) {
	return f.uc.ReserveStock(context.Background(), &dto.ReserveStockInput{ProductID: productID, OrderID: orderID, Quantity: qty})
}

func (f *fixture) item(t *testing.T, productID string) *model.InventoryItem {
	t.Helper()
	item, err := f.uc.GetInventory(context.Background(), productID, nil)
	require.NoError(t, err)
	return item
}

func (f *fixture) movements(t *testing.T, itemID string, typ model.MovementType) []model.StockMovement {
	t.Helper()
	out, _, err := f.uc.ListMovements(context.Background(), &dto.MovementFilters{InventoryItemID: itemID, MovementType: typ})
	require.NoError(t, err)
	return out
}

func (f *fixture) openAlerts(t *testing.T, itemID string) []model.InventoryAlert {
	t.Helper()
	out, _, err := f.uc.ListAlerts(context.Background(), &dto.AlertFilters{InventoryItemID: itemID, Unacknowledged: true})
	require.NoError(t, err)
	return out
}

func assertConsistent(t *testing.T, item *model.InventoryItem) {
	t.Helper()
	assert.Equal(t, item.OnHandQuantity-item.ReservedQuantity, item.AvailableQuantity)
	assert.GreaterOrEqual(t, item.ReservedQuantity, int64(0))
	if !item.AllowBackorder {
		assert.LessOrEqual(t, item.ReservedQuantity, item.OnHandQuantity)
	}
}

func TestScenarioA_ReserveRaisesLowStock(t *testing.T) {
	f := newFixture(t)
	item := f.init(t, "p-1", 10, 5)

	_, err := f.reserve("p-1", "order-a", 3)
	require.NoError(t, err)
	got := f.item(t, "p-1")
	assert.Equal(t, int64(7), got.AvailableQuantity)
	assert.Empty(t, f.openAlerts(t, item.ID))

	_, err = f.reserve("p-1", "order-b", 4)
	require.NoError(t, err)
	got = f.item(t, "p-1")
	assert.Equal(t, int64(3), got.AvailableQuantity)

	alerts := f.openAlerts(t, item.ID)
	require.Len(t, alerts, 1)
	assert.Equal(t, model.AlertLowStock, alerts[0].Type)
	assert.Equal(t, int64(3), alerts[0].CurrentQuantity)
	assert.Equal(t, int64(5), alerts[0].Threshold)
	assert.Len(t, f.notifier.alerts, 1)
}

func TestScenarioB_CompleteConsumesStock(t *testing.T) {
	f := newFixture(t)
	item := f.init(t, "p-1", 10, 5)

	resA, err := f.reserve("p-1", "order-a", 3)
	require.NoError(t, err)
	_, err = f.reserve("p-1", "order-b", 4)
	require.NoError(t, err)

	done, err := f.uc.CompleteReservation(context.Background(), resA.ID)
	require.NoError(t, err)
	assert.Equal(t, model.ReservationCompleted, done.Status)

	got := f.item(t, "p-1")
	assert.Equal(t, int64(7), got.OnHandQuantity)
	assert.Equal(t, int64(4), got.ReservedQuantity)
	assert.Equal(t, int64(3), got.AvailableQuantity)
	assertConsistent(t, got)

	sold := f.movements(t, item.ID, model.MovementSold)
	require.Len(t, sold, 1)
	assert.Equal(t, int64(-3), sold[0].DeltaQuantity)
	assert.Equal(t, "order-a", *sold[0].ReferenceID)

	// Availability did not move, so the open low-stock alert is kept as is.
	assert.Len(t, f.openAlerts(t, item.ID), 1)
}

func TestScenarioC_InsufficientStockLeavesCountersUnchanged(t *testing.T) {
	f := newFixture(t)
	item := f.init(t, "p-1", 5, 0)

	_, err := f.reserve("p-1", "order", 6)
	require.ErrorIs(t, err, inventory.ErrInsufficientStock)

	var stockErr *inventory.InsufficientStockError
	require.True(t, errors.As(err, &stockErr))
	assert.Equal(t, int64(5), stockErr.Available)
	assert.Equal(t, int64(6), stockErr.Requested)

	got := f.item(t, "p-1")
	assert.Equal(t, item.OnHandQuantity, got.OnHandQuantity)
	assert.Equal(t, int64(0), got.ReservedQuantity)
	assert.Equal(t, item.Version, got.Version)
	assert.Empty(t, f.movements(t, item.ID, model.MovementReserved))
	assert.Equal(t, 1.0, testutil.ToFloat64(f.metrics.Reservations.WithLabelValues("rejected")))
}

func TestScenarioD_ExpiredReservationReleasesStock(t *testing.T) {
	f := newFixture(t)
	f.init(t, "p-1", 10, 0)
	ctx := context.Background()

	res, err := f.uc.ReserveStock(ctx, &dto.ReserveStockInput{ProductID: "p-1", OrderID: "order", Quantity: 2, TTL: time.Millisecond})
	require.NoError(t, err)
	assert.Equal(t, int64(2), f.item(t, "p-1").ReservedQuantity)

	f.clock.Advance(time.Second)

	expired, err := f.uc.ListExpiredReservations(ctx, f.clock.Now(), 10)
	require.NoError(t, err)
	require.Len(t, expired, 1)
	assert.Equal(t, res.ID, expired[0].ID)

	out, err := f.uc.ExpireReservation(ctx, res.ID)
	require.NoError(t, err)
	assert.Equal(t, model.ReservationExpired, out.Status)
	assert.Equal(t, int64(0), f.item(t, "p-1").ReservedQuantity)

	// Expiring again is a no-op.
	again, err := f.uc.ExpireReservation(ctx, res.ID)
	require.NoError(t, err)
	assert.Equal(t, model.ReservationExpired, again.Status)
	assert.Equal(t, 1.0, testutil.ToFloat64(f.metrics.Expired))
}

func TestScenarioE_CancelIsIdempotent(t *testing.T) {
	f := newFixture(t)
	item := f.init(t, "p-1", 10, 0)
	ctx := context.Background()

	res, err := f.reserve("p-1", "order", 2)
	require.NoError(t, err)

	first, err := f.uc.CancelReservation(ctx, res.ID)
	require.NoError(t, err)
	assert.Equal(t, model.ReservationCancelled, first.Status)

	second, err := f.uc.CancelReservation(ctx, res.ID)
	require.NoError(t, err)
	assert.Equal(t, model.ReservationCancelled, second.Status)

	assert.Len(t, f.movements(t, item.ID, model.MovementUnreserved), 1)
	got := f.item(t, "p-1")
	assert.Equal(t, int64(0), got.ReservedQuantity)
	assert.Equal(t, int64(10), got.AvailableQuantity)
}

func TestCompleteAfterCancelIsInvalidState(t *testing.T) {
	f := newFixture(t)
	f.init(t, "p-1", 10, 0)
	ctx := context.Background()

	res, err := f.reserve("p-1", "order", 4)
	require.NoError(t, err)
	_, err = f.uc.CancelReservation(ctx, res.ID)
	require.NoError(t, err)

	_, err = f.uc.CompleteReservation(ctx, res.ID)
	assert.ErrorIs(t, err, inventory.ErrInvalidState)

	got := f.item(t, "p-1")
	assert.Equal(t, int64(10), got.OnHandQuantity)
	assert.Equal(t, int64(0), got.ReservedQuantity)
}

func TestCancelAfterCompleteIsNoop(t *testing.T) {
	f := newFixture(t)
	f.init(t, "p-1", 10, 0)
	ctx := context.Background()

	res, err := f.reserve("p-1", "order", 4)
	require.NoError(t, err)
	_, err = f.uc.CompleteReservation(ctx, res.ID)
	require.NoError(t, err)

	out, err := f.uc.CancelReservation(ctx, res.ID)
	require.NoError(t, err)
	assert.Equal(t, model.ReservationCompleted, out.Status)

	got := f.item(t, "p-1")
	assert.Equal(t, int64(6), got.OnHandQuantity)
	assert.Equal(t, int64(0), got.ReservedQuantity)
}

func TestUnknownReservation(t *testing.T) {
	f := newFixture(t)
	_, err := f.uc.CancelReservation(context.Background(), "missing")
	assert.ErrorIs(t, err, inventory.ErrNotFound)
	_, err = f.uc.CompleteReservation(context.Background(), "")
	assert.ErrorIs(t, err, inventory.ErrInvalidInput)
}

func TestConcurrentReservesNeverOversell(t *testing.T) {
	f := newFixture(t)
	f.init(t, "p-1", 10, 0)

	const workers = 25
	var ok, short atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := f.reserve("p-1", "order", 1)
			switch {
			case err == nil:
				ok.Add(1)
			case errors.Is(err, inventory.ErrInsufficientStock):
				short.Add(1)
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(10), ok.Load())
	assert.Equal(t, int32(workers-10), short.Load())
	got := f.item(t, "p-1")
	assert.Equal(t, int64(0), got.AvailableQuantity)
	assertConsistent(t, got)
}

func TestConcurrentReservesWithRedisLockNeverOversell(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	f := newFixtureWithLocker(t, lock.NewRedisLocker(client, lock.RedisConfig{}))
	f.init(t, "p-1", 50, 0)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	const workers = 60
	var ok, short atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := f.uc.ReserveStock(ctx, &dto.ReserveStockInput{ProductID: "p-1", OrderID: "order", Quantity: 1})
			switch {
			case err == nil:
				ok.Add(1)
			case errors.Is(err, inventory.ErrInsufficientStock):
				short.Add(1)
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}()
	}
	wg.Wait()

	// Contention waits its turn: only the real shortfall is rejected.
	assert.Equal(t, int32(50), ok.Load())
	assert.Equal(t, int32(workers-50), short.Load())
	got := f.item(t, "p-1")
	assert.Equal(t, int64(0), got.AvailableQuantity)
	assertConsistent(t, got)
}

func TestConcurrentCompleteAndCancelHaveOneWinner(t *testing.T) {
	for i := 0; i < 20; i++ {
		f := newFixture(t)
		f.init(t, "p-1", 10, 0)
		res, err := f.reserve("p-1", "order", 3)
		require.NoError(t, err)

		var completeErr, cancelErr error
		var cancelled *model.StockReservation
		var wg sync.WaitGroup
		wg.Add(2)
		go func() {
			defer wg.Done()
			_, completeErr = f.uc.CompleteReservation(context.Background(), res.ID)
		}()
		go func() {
			defer wg.Done()
			cancelled, cancelErr = f.uc.CancelReservation(context.Background(), res.ID)
		}()
		wg.Wait()

		require.NoError(t, cancelErr)
		got := f.item(t, "p-1")
		assert.Equal(t, int64(0), got.ReservedQuantity)
		if completeErr == nil {
			assert.Equal(t, model.ReservationCompleted, cancelled.Status)
			assert.Equal(t, int64(7), got.OnHandQuantity)
		} else {
			assert.ErrorIs(t, completeErr, inventory.ErrInvalidState)
			assert.Equal(t, model.ReservationCancelled, cancelled.Status)
			assert.Equal(t, int64(10), got.OnHandQuantity)
		}
	}
}

func TestInitializeInventory(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	variant := "red"

	item, err := f.uc.InitializeInventory(ctx, &dto.InitializeInventoryInput{
		ProductID: "p-1", VariantID: &variant, InitialQuantity: 4, TrackInventory: true, UserID: "admin",
	})
	require.NoError(t, err)
	assert.Equal(t, int64(1), item.Version)

	received := f.movements(t, item.ID, model.MovementReceived)
	require.Len(t, received, 1)
	assert.Equal(t, int64(4), received[0].QuantityAfter)
	assert.Equal(t, "admin", *received[0].CreatedBy)

	_, err = f.uc.InitializeInventory(ctx, &dto.InitializeInventoryInput{ProductID: "p-1", VariantID: &variant})
	assert.ErrorIs(t, err, inventory.ErrAlreadyExists)

	// Same product without the variant is a different item.
	_, err = f.uc.InitializeInventory(ctx, &dto.InitializeInventoryInput{ProductID: "p-1"})
	assert.NoError(t, err)

	_, err = f.uc.InitializeInventory(ctx, &dto.InitializeInventoryInput{ProductID: "p-2", InitialQuantity: -1})
	assert.ErrorIs(t, err, inventory.ErrInvalidInput)

	_, err = f.uc.GetInventory(ctx, "p-3", nil)
	assert.ErrorIs(t, err, inventory.ErrNotFound)
}

func TestInitializeWithZeroStockRaisesOutOfStock(t *testing.T) {
	f := newFixture(t)
	item := f.init(t, "p-1", 0, 3)

	alerts := f.openAlerts(t, item.ID)
	require.Len(t, alerts, 1)
	assert.Equal(t, model.AlertOutOfStock, alerts[0].Type)
}

func TestAdjustInventory(t *testing.T) {
	f := newFixture(t)
	item := f.init(t, "p-1", 10, 2)
	ctx := context.Background()

	_, err := f.reserve("p-1", "order", 6)
	require.NoError(t, err)

	t.Run("zero change is rejected", func(t *testing.T) {
		_, err := f.uc.AdjustInventory(ctx, &dto.AdjustInventoryInput{ProductID: "p-1"})
		assert.ErrorIs(t, err, inventory.ErrInvalidInput)
	})

	t.Run("cannot remove reserved stock", func(t *testing.T) {
		_, err := f.uc.AdjustInventory(ctx, &dto.AdjustInventoryInput{ProductID: "p-1", QuantityChange: -5})
		var stockErr *inventory.InsufficientStockError
		require.True(t, errors.As(err, &stockErr))
		assert.Equal(t, int64(4), stockErr.Available)
	})

	t.Run("positive change is received", func(t *testing.T) {
		got, err := f.uc.AdjustInventory(ctx, &dto.AdjustInventoryInput{
			ProductID: "p-1", QuantityChange: 5, Reason: "delivery", ReferenceType: "purchase_order", ReferenceID: "po-1",
		})
		require.NoError(t, err)
		assert.Equal(t, int64(15), got.OnHandQuantity)
		assert.Equal(t, int64(9), got.AvailableQuantity)

		received := f.movements(t, item.ID, model.MovementReceived)
		require.Len(t, received, 2)
		assert.Equal(t, "po-1", *received[0].ReferenceID)
	})

	t.Run("write-off as damaged", func(t *testing.T) {
		got, err := f.uc.AdjustInventory(ctx, &dto.AdjustInventoryInput{
			ProductID: "p-1", QuantityChange: -2, MovementType: model.MovementDamaged, Reason: "broken",
		})
		require.NoError(t, err)
		assert.Equal(t, int64(13), got.OnHandQuantity)

		damaged := f.movements(t, item.ID, model.MovementDamaged)
		require.Len(t, damaged, 1)
		assert.Equal(t, int64(15), damaged[0].QuantityBefore)
		assert.Equal(t, int64(13), damaged[0].QuantityAfter)
	})

	t.Run("damaged must be negative", func(t *testing.T) {
		_, err := f.uc.AdjustInventory(ctx, &dto.AdjustInventoryInput{
			ProductID: "p-1", QuantityChange: 2, MovementType: model.MovementLost,
		})
		assert.ErrorIs(t, err, inventory.ErrInvalidInput)
	})

	t.Run("reservation movement types are rejected", func(t *testing.T) {
		_, err := f.uc.AdjustInventory(ctx, &dto.AdjustInventoryInput{
			ProductID: "p-1", QuantityChange: -1, MovementType: model.MovementReserved,
		})
		assert.ErrorIs(t, err, inventory.ErrInvalidInput)
	})

	assertConsistent(t, f.item(t, "p-1"))
}

func TestAdjustClearsAlertWhenRestocked(t *testing.T) {
	f := newFixture(t)
	item := f.init(t, "p-1", 1, 3)
	require.Len(t, f.openAlerts(t, item.ID), 1)

	_, err := f.uc.AdjustInventory(context.Background(), &dto.AdjustInventoryInput{ProductID: "p-1", QuantityChange: 20})
	require.NoError(t, err)
	assert.Empty(t, f.openAlerts(t, item.ID))
}

func TestBackorderReservation(t *testing.T) {
	f := newFixture(t)
	f.init(t, "p-1", 2, 0, func(in *dto.InitializeInventoryInput) { in.AllowBackorder = true })

	res, err := f.reserve("p-1", "order", 5)
	require.NoError(t, err)
	assert.True(t, res.Backorder)

	got := f.item(t, "p-1")
	assert.Equal(t, int64(-3), got.AvailableQuantity)
	assertConsistent(t, got)
}

func TestUntrackedItemsBypassReservations(t *testing.T) {
	f := newFixture(t)
	item := f.init(t, "p-1", 0, 0, func(in *dto.InitializeInventoryInput) { in.TrackInventory = false })

	res, err := f.reserve("p-1", "order", 100)
	require.NoError(t, err)
	assert.True(t, res.Bypassed)
	assert.Equal(t, model.ReservationActive, res.Status)

	got := f.item(t, "p-1")
	assert.Equal(t, int64(0), got.ReservedQuantity)
	assert.Empty(t, f.movements(t, item.ID, model.MovementReserved))
	assert.Empty(t, f.openAlerts(t, item.ID))

	_, err = f.uc.GetReservation(context.Background(), res.ID)
	assert.ErrorIs(t, err, inventory.ErrNotFound)
}

func TestUntrackedItemsIgnoreAdjustmentsAndReturns(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	item := f.init(t, "p-1", 0, 0, func(in *dto.InitializeInventoryInput) { in.TrackInventory = false })
	before := f.movements(t, item.ID, "")

	adjusted, err := f.uc.AdjustInventory(ctx, &dto.AdjustInventoryInput{ProductID: "p-1", QuantityChange: -5, Reason: "shrinkage"})
	require.NoError(t, err)
	assert.Equal(t, int64(0), adjusted.OnHandQuantity)
	assert.Equal(t, item.Version, adjusted.Version)

	returned, err := f.uc.ProcessReturn(ctx, &dto.ProcessReturnInput{ProductID: "p-1", OrderID: "order", Quantity: 3})
	require.NoError(t, err)
	assert.Equal(t, int64(0), returned.OnHandQuantity)

	got := f.item(t, "p-1")
	assert.Equal(t, int64(0), got.OnHandQuantity)
	assert.Equal(t, int64(0), got.AvailableQuantity)
	assert.Equal(t, item.Version, got.Version)
	assert.Len(t, f.movements(t, item.ID, ""), len(before))

	// Validation still applies.
	_, err = f.uc.AdjustInventory(ctx, &dto.AdjustInventoryInput{ProductID: "p-1", QuantityChange: 0})
	assert.ErrorIs(t, err, inventory.ErrInvalidInput)
}

func TestReserveStockValidation(t *testing.T) {
	f := newFixture(t)
	f.init(t, "p-1", 5, 0)

	_, err := f.reserve("p-1", "order", 0)
	assert.ErrorIs(t, err, inventory.ErrInvalidInput)
	_, err = f.reserve("p-1", "", 1)
	assert.ErrorIs(t, err, inventory.ErrInvalidInput)
	_, err = f.reserve("missing", "order", 1)
	assert.ErrorIs(t, err, inventory.ErrNotFound)
}

func TestReserveUsesDefaultTTL(t *testing.T) {
	f := newFixture(t)
	f.init(t, "p-1", 5, 0)

	res, err := f.reserve("p-1", "order", 1)
	require.NoError(t, err)
	assert.Equal(t, f.clock.Now().Add(usecase.DefaultReservationTTL), res.ExpiresAt)
}

func TestReserveCart(t *testing.T) {
	ctx := context.Background()

	t.Run("all lines reserved", func(t *testing.T) {
		f := newFixture(t)
		f.init(t, "p-1", 5, 0)
		f.init(t, "p-2", 5, 0)

		out, err := f.uc.ReserveCart(ctx, &dto.ReserveCartInput{
			OrderID: "order",
			Lines:   []dto.CartLine{{ProductID: "p-2", Quantity: 2}, {ProductID: "p-1", Quantity: 3}},
		})
		require.NoError(t, err)
		require.Len(t, out, 2)
		assert.Equal(t, int64(3), f.item(t, "p-2").AvailableQuantity)
		assert.Equal(t, int64(2), f.item(t, "p-1").AvailableQuantity)

		byOrder, total, err := f.uc.ListReservations(ctx, &dto.ReservationFilters{OrderID: "order"})
		require.NoError(t, err)
		assert.Equal(t, 2, total)
		assert.Len(t, byOrder, 2)
	})

	t.Run("one short line leaves every item untouched", func(t *testing.T) {
		f := newFixture(t)
		f.init(t, "p-1", 5, 0)
		f.init(t, "p-2", 1, 0)

		_, err := f.uc.ReserveCart(ctx, &dto.ReserveCartInput{
			OrderID: "order",
			Lines:   []dto.CartLine{{ProductID: "p-1", Quantity: 3}, {ProductID: "p-2", Quantity: 2}},
		})
		require.ErrorIs(t, err, inventory.ErrInsufficientStock)
		assert.Equal(t, int64(0), f.item(t, "p-1").ReservedQuantity)
		assert.Equal(t, int64(0), f.item(t, "p-2").ReservedQuantity)
	})

	t.Run("duplicate lines are rejected", func(t *testing.T) {
		f := newFixture(t)
		f.init(t, "p-1", 5, 0)

		_, err := f.uc.ReserveCart(ctx, &dto.ReserveCartInput{
			OrderID: "order",
			Lines:   []dto.CartLine{{ProductID: "p-1", Quantity: 1}, {ProductID: "p-1", Quantity: 1}},
		})
		assert.ErrorIs(t, err, inventory.ErrInvalidInput)
	})
}

func TestProcessReturn(t *testing.T) {
	f := newFixture(t)
	item := f.init(t, "p-1", 3, 0)
	ctx := context.Background()

	got, err := f.uc.ProcessReturn(ctx, &dto.ProcessReturnInput{ProductID: "p-1", Quantity: 2, OrderID: "order"})
	require.NoError(t, err)
	assert.Equal(t, int64(5), got.OnHandQuantity)

	returned := f.movements(t, item.ID, model.MovementReturned)
	require.Len(t, returned, 1)
	assert.Equal(t, "return", *returned[0].ReferenceType)
	assert.Equal(t, "customer return", returned[0].Reason)

	_, err = f.uc.ProcessReturn(ctx, &dto.ProcessReturnInput{ProductID: "p-1", Quantity: 0, OrderID: "order"})
	assert.ErrorIs(t, err, inventory.ErrInvalidInput)
}

func TestLedgerReplayMatchesCounters(t *testing.T) {
	f := newFixture(t)
	item := f.init(t, "p-1", 10, 2)
	ctx := auth.WithUserID(context.Background(), "cashier")

	r1, err := f.reserve("p-1", "o-1", 3)
	require.NoError(t, err)
	r2, err := f.reserve("p-1", "o-2", 2)
	require.NoError(t, err)
	_, err = f.uc.CompleteReservation(ctx, r1.ID)
	require.NoError(t, err)
	_, err = f.uc.CancelReservation(ctx, r2.ID)
	require.NoError(t, err)
	_, err = f.uc.AdjustInventory(ctx, &dto.AdjustInventoryInput{ProductID: "p-1", QuantityChange: -1, MovementType: model.MovementLost})
	require.NoError(t, err)
	_, err = f.uc.ProcessReturn(ctx, &dto.ProcessReturnInput{ProductID: "p-1", Quantity: 1, OrderID: "o-1"})
	require.NoError(t, err)

	all := f.movements(t, item.ID, "")
	assert.Len(t, all, 7, "one movement per mutation")
	for i, j := 0, len(all)-1; i < j; i, j = i+1, j-1 {
		all[i], all[j] = all[j], all[i]
	}
	balance := ledger.Replay(all)

	got := f.item(t, "p-1")
	assert.Equal(t, got.OnHandQuantity, balance.OnHand)
	assert.Equal(t, got.ReservedQuantity, balance.Reserved)
	assert.Equal(t, got.AvailableQuantity, balance.Available())

	sold := f.movements(t, item.ID, model.MovementSold)
	require.Len(t, sold, 1)
	assert.Equal(t, "cashier", *sold[0].CreatedBy)
}

func TestAcknowledgedAlertIsNotResurrected(t *testing.T) {
	f := newFixture(t)
	item := f.init(t, "p-1", 10, 5)
	ctx := context.Background()

	r1, err := f.reserve("p-1", "o-1", 6)
	require.NoError(t, err)
	alerts := f.openAlerts(t, item.ID)
	require.Len(t, alerts, 1)

	acked, err := f.uc.AcknowledgeAlert(ctx, alerts[0].ID, "manager")
	require.NoError(t, err)
	assert.True(t, acked.Acknowledged)

	again, err := f.uc.AcknowledgeAlert(ctx, alerts[0].ID, "manager")
	require.NoError(t, err)
	assert.Equal(t, acked.AcknowledgedAt, again.AcknowledgedAt)

	// Completing leaves availability unchanged: nothing new is raised.
	_, err = f.uc.CompleteReservation(ctx, r1.ID)
	require.NoError(t, err)
	assert.Empty(t, f.openAlerts(t, item.ID))

	all, total, err := f.uc.ListAlerts(ctx, &dto.AlertFilters{InventoryItemID: item.ID})
	require.NoError(t, err)
	assert.Equal(t, 1, total)
	assert.True(t, all[0].Acknowledged)

	_, err = f.uc.AcknowledgeAlert(ctx, "missing", "manager")
	assert.ErrorIs(t, err, inventory.ErrNotFound)
}

func TestReconcileAlerts(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	// An item stored without its alert, as after a threshold edit.
	item := &model.InventoryItem{ID: "item-1", ProductID: "p-1", LowStockThreshold: 5, TrackInventory: true, Version: 1}
	item.SetQuantities(2, 0)
	require.NoError(t, f.repo.Apply(ctx, &inventory.Change{Item: item, Create: true}))
	f.init(t, "p-2", 50, 5)

	n, err := f.uc.ReconcileAlerts(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	alerts := f.openAlerts(t, "item-1")
	require.Len(t, alerts, 1)
	assert.Equal(t, model.AlertLowStock, alerts[0].Type)

	n, err = f.uc.ReconcileAlerts(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, n)

	_, err = f.uc.AcknowledgeAlert(ctx, alerts[0].ID, "ops")
	require.NoError(t, err)
	n, err = f.uc.ReconcileAlerts(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, n, "acknowledged state is not raised again")
}

func TestListMovementsRejectsUnknownType(t *testing.T) {
	f := newFixture(t)
	_, _, err := f.uc.ListMovements(context.Background(), &dto.MovementFilters{MovementType: "teleported"})
	assert.ErrorIs(t, err, inventory.ErrInvalidInput)
}
