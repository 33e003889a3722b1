package repository

import (
	"context"
	"testing"
	"time"

	"github.com/fekuna/omnipos-inventory-service/internal/inventory"
	"github.com/fekuna/omnipos-inventory-service/internal/inventory/dto"
	"github.com/fekuna/omnipos-inventory-service/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func seedItem(t *testing.T, r *MemoryRepository, id, productID string, onHand int64) *model.InventoryItem {
	t.Helper()
	item := &model.InventoryItem{ID: id, ProductID: productID, TrackInventory: true, Version: 1, UpdatedAt: time.Now()}
	item.SetQuantities(onHand, 0)
	require.NoError(t, r.Apply(context.Background(), &inventory.Change{Item: item, Create: true}))
	return item
}

func TestMemoryRepository_CreateAndGet(t *testing.T) {
	r := NewMemoryRepository()
	ctx := context.Background()
	seedItem(t, r, "item-1", "p-1", 10)

	got, err := r.GetItem(ctx, model.ItemKey{ProductID: "p-1"})
	require.NoError(t, err)
	assert.Equal(t, "item-1", got.ID)

	// Returned values are snapshots.
	got.OnHandQuantity = 999
	again, err := r.GetItemByID(ctx, "item-1")
	require.NoError(t, err)
	assert.Equal(t, int64(10), again.OnHandQuantity)

	_, err = r.GetItem(ctx, model.ItemKey{ProductID: "p-1", VariantID: "red"})
	assert.ErrorIs(t, err, inventory.ErrNotFound)

	dup := &model.InventoryItem{ID: "item-2", ProductID: "p-1", Version: 1}
	err = r.Apply(ctx, &inventory.Change{Item: dup, Create: true})
	assert.ErrorIs(t, err, inventory.ErrAlreadyExists)
}

func TestMemoryRepository_VersionCheck(t *testing.T) {
	r := NewMemoryRepository()
	ctx := context.Background()
	item := seedItem(t, r, "item-1", "p-1", 10)

	stale := *item
	stale.Version = 3
	err := r.Apply(ctx, &inventory.Change{Item: &stale})
	assert.ErrorIs(t, err, inventory.ErrConflict)

	next := *item
	next.Version = 2
	next.SetQuantities(8, 0)
	require.NoError(t, r.Apply(ctx, &inventory.Change{Item: &next}))
}

func TestMemoryRepository_ApplyIsAllOrNothing(t *testing.T) {
	r := NewMemoryRepository()
	ctx := context.Background()
	a := seedItem(t, r, "item-a", "p-a", 5)
	b := seedItem(t, r, "item-b", "p-b", 5)

	nextA := *a
	nextA.Version = 2
	nextA.SetQuantities(5, 2)
	staleB := *b
	staleB.Version = 7

	err := r.Apply(ctx,
		&inventory.Change{Item: &nextA, Movement: &model.StockMovement{ID: "m-1", InventoryItemID: "item-a"}},
		&inventory.Change{Item: &staleB},
	)
	require.ErrorIs(t, err, inventory.ErrConflict)

	got, err := r.GetItemByID(ctx, "item-a")
	require.NoError(t, err)
	assert.Equal(t, int64(0), got.ReservedQuantity)
	_, total, err := r.ListMovements(ctx, &dto.MovementFilters{})
	require.NoError(t, err)
	assert.Equal(t, 0, total)
}

func TestMemoryRepository_ReservationTransition(t *testing.T) {
	r := NewMemoryRepository()
	ctx := context.Background()
	seedItem(t, r, "item-1", "p-1", 10)

	res := &model.StockReservation{ID: "r-1", InventoryItemID: "item-1", OrderID: "o-1", Quantity: 2, Status: model.ReservationActive}
	require.NoError(t, r.Apply(ctx, &inventory.Change{Reservation: &inventory.ReservationWrite{Reservation: res}}))

	done := *res
	done.Status = model.ReservationCompleted
	require.NoError(t, r.Apply(ctx, &inventory.Change{Reservation: &inventory.ReservationWrite{Reservation: &done, From: model.ReservationActive}}))

	again := *res
	again.Status = model.ReservationExpired
	err := r.Apply(ctx, &inventory.Change{Reservation: &inventory.ReservationWrite{Reservation: &again, From: model.ReservationActive}})
	assert.ErrorIs(t, err, inventory.ErrInvalidState)

	got, err := r.GetReservation(ctx, "r-1")
	require.NoError(t, err)
	assert.Equal(t, model.ReservationCompleted, got.Status)
}

func TestMemoryRepository_AlertsSupersedeAndAcknowledge(t *testing.T) {
	r := NewMemoryRepository()
	ctx := context.Background()
	seedItem(t, r, "item-1", "p-1", 10)

	raise := func(id string, typ model.AlertType) {
		require.NoError(t, r.Apply(ctx, &inventory.Change{Alert: inventory.AlertChange{
			InventoryItemID: "item-1",
			Raise:           &model.InventoryAlert{ID: id, InventoryItemID: "item-1", Type: typ, CreatedAt: time.Now()},
		}}))
	}

	raise("a-1", model.AlertLowStock)
	raise("a-2", model.AlertOutOfStock)

	open, err := r.GetOpenAlert(ctx, "item-1")
	require.NoError(t, err)
	require.NotNil(t, open)
	assert.Equal(t, "a-2", open.ID)

	_, err = r.GetAlert(ctx, "a-1")
	assert.ErrorIs(t, err, inventory.ErrNotFound, "superseded alert is removed")

	at := time.Now()
	acked, err := r.AcknowledgeAlert(ctx, "a-2", "ops", at)
	require.NoError(t, err)
	assert.True(t, acked.Acknowledged)
	assert.Equal(t, "ops", *acked.AcknowledgedBy)

	// Idempotent: a second acknowledgement keeps the first one.
	again, err := r.AcknowledgeAlert(ctx, "a-2", "someone-else", at.Add(time.Hour))
	require.NoError(t, err)
	assert.Equal(t, "ops", *again.AcknowledgedBy)

	open, err = r.GetOpenAlert(ctx, "item-1")
	require.NoError(t, err)
	assert.Nil(t, open)

	// Clearing never touches acknowledged history.
	require.NoError(t, r.Apply(ctx, &inventory.Change{Alert: inventory.AlertChange{InventoryItemID: "item-1", Clear: true}}))
	_, err = r.GetAlert(ctx, "a-2")
	assert.NoError(t, err)

	alerts, total, err := r.ListAlerts(ctx, &dto.AlertFilters{Unacknowledged: true})
	require.NoError(t, err)
	assert.Equal(t, 0, total)
	assert.Empty(t, alerts)
}

func TestMemoryRepository_ListReservationsFilters(t *testing.T) {
	r := NewMemoryRepository()
	ctx := context.Background()
	seedItem(t, r, "item-1", "p-1", 10)
	now := time.Now()

	for i, exp := range []time.Duration{-time.Minute, time.Minute, -2 * time.Minute} {
		res := &model.StockReservation{
			ID:              []string{"r-1", "r-2", "r-3"}[i],
			InventoryItemID: "item-1",
			OrderID:         "o-1",
			Quantity:        1,
			Status:          model.ReservationActive,
			ExpiresAt:       now.Add(exp),
			CreatedAt:       now.Add(time.Duration(i) * time.Second),
		}
		require.NoError(t, r.Apply(ctx, &inventory.Change{Reservation: &inventory.ReservationWrite{Reservation: res}}))
	}

	expired, total, err := r.ListReservations(ctx, &dto.ReservationFilters{Status: model.ReservationActive, ExpiresBefore: &now})
	require.NoError(t, err)
	assert.Equal(t, 2, total)
	assert.Equal(t, "r-1", expired[0].ID)
	assert.Equal(t, "r-3", expired[1].ID)

	page, total, err := r.ListReservations(ctx, &dto.ReservationFilters{OrderID: "o-1", Page: 2, PageSize: 2})
	require.NoError(t, err)
	assert.Equal(t, 3, total)
	require.Len(t, page, 1)
	assert.Equal(t, "r-3", page[0].ID)
}

func TestPageBounds(t *testing.T) {
	tests := []struct {
		total, page, size int
		start, end        int
	}{
		{10, 1, 0, 0, 10},
		{10, 0, 3, 0, 3},
		{10, 2, 3, 3, 6},
		{10, 4, 3, 9, 10},
		{10, 5, 3, 10, 10},
	}
	for _, tt := range tests {
		start, end := pageBounds(tt.total, tt.page, tt.size)
		assert.Equal(t, tt.start, start)
		assert.Equal(t, tt.end, end)
	}
}

func TestMemoryRepository_ListItemsKeysetByID(t *testing.T) {
	r := NewMemoryRepository()
	ctx := context.Background()
	for _, id := range []string{"item-3", "item-1", "item-4", "item-2", "item-5"} {
		seedItem(t, r, id, "p-"+id, 10)
	}

	first, _, err := r.ListItems(ctx, &dto.InventoryFilters{ByID: true, Page: 1, PageSize: 2})
	require.NoError(t, err)
	require.Len(t, first, 2)
	assert.Equal(t, "item-1", first[0].ID)
	assert.Equal(t, "item-2", first[1].ID)

	// Touching an already listed item must not pull it into a later page.
	touched := first[0]
	touched.Version++
	touched.UpdatedAt = time.Now().Add(time.Hour)
	require.NoError(t, r.Apply(ctx, &inventory.Change{Item: &touched}))

	var seen []string
	after := ""
	for {
		batch, _, err := r.ListItems(ctx, &dto.InventoryFilters{ByID: true, AfterID: after, Page: 1, PageSize: 2})
		require.NoError(t, err)
		for _, it := range batch {
			seen = append(seen, it.ID)
		}
		if len(batch) < 2 {
			break
		}
		after = batch[len(batch)-1].ID
	}
	assert.Equal(t, []string{"item-1", "item-2", "item-3", "item-4", "item-5"}, seen)
}
