package inventory

import (
	"context"
	"time"

	"github.com/fekuna/omnipos-inventory-service/internal/inventory/dto"
	"github.com/fekuna/omnipos-inventory-service/internal/model"
)

// Change is everything one operation writes for a single inventory item. A
// repository applies a batch of changes all-or-nothing.
type Change struct {
	// Item is the post-mutation state. With Create set it is inserted and
	// must not exist yet; otherwise the stored row must still carry
	// Item.Version-1.
	Item   *model.InventoryItem
	Create bool

	Movement    *model.StockMovement
	Reservation *ReservationWrite
	Alert       AlertChange
}

// ReservationWrite inserts a reservation (From == "") or moves it from
// status From to Reservation.Status, failing with ErrInvalidState when the
// stored status is no longer From.
type ReservationWrite struct {
	Reservation *model.StockReservation
	From        model.ReservationStatus
}

// AlertChange removes the item's unacknowledged alert when Clear is set or
// Raise is non-nil, then inserts Raise.
type AlertChange struct {
	InventoryItemID string
	Clear           bool
	Raise           *model.InventoryAlert
}

func (a AlertChange) Empty() bool {
	return !a.Clear && a.Raise == nil
}

type Repository interface {
	// Inventory Items
	GetItem(ctx context.Context, key model.ItemKey) (*model.InventoryItem, error)
	GetItemByID(ctx context.Context, id string) (*model.InventoryItem, error)
	ListItems(ctx context.Context, filters *dto.InventoryFilters) ([]model.InventoryItem, int, error)

	// Reservations
	GetReservation(ctx context.Context, id string) (*model.StockReservation, error)
	ListReservations(ctx context.Context, filters *dto.ReservationFilters) ([]model.StockReservation, int, error)

	// Movements / Audit
	ListMovements(ctx context.Context, filters *dto.MovementFilters) ([]model.StockMovement, int, error)

	// Alerts
	GetAlert(ctx context.Context, id string) (*model.InventoryAlert, error)
	GetOpenAlert(ctx context.Context, itemID string) (*model.InventoryAlert, error)
	ListAlerts(ctx context.Context, filters *dto.AlertFilters) ([]model.InventoryAlert, int, error)
	AcknowledgeAlert(ctx context.Context, id, userID string, at time.Time) (*model.InventoryAlert, error)

	// Transaction support
	Apply(ctx context.Context, changes ...*Change) error
}

// AlertNotifier pushes newly raised alerts to the notification channel.
type AlertNotifier interface {
	NotifyAlert(ctx context.Context, alert model.InventoryAlert) error
}
