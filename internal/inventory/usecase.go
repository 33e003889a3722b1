package inventory

import (
	"context"
	"time"

	"github.com/fekuna/omnipos-inventory-service/internal/inventory/dto"
	"github.com/fekuna/omnipos-inventory-service/internal/model"
)

type UseCase interface {
	// Stock counters
	InitializeInventory(ctx context.Context, input *dto.InitializeInventoryInput) (*model.InventoryItem, error)
	AdjustInventory(ctx context.Context, input *dto.AdjustInventoryInput) (*model.InventoryItem, error)
	GetInventory(ctx context.Context, productID string, variantID *string) (*model.InventoryItem, error)
	ListInventory(ctx context.Context, filters *dto.InventoryFilters) ([]model.InventoryItem, int, error)

	// Reservations
	ReserveStock(ctx context.Context, input *dto.ReserveStockInput) (*model.StockReservation, error)
	ReserveCart(ctx context.Context, input *dto.ReserveCartInput) ([]model.StockReservation, error)
	CompleteReservation(ctx context.Context, reservationID string) (*model.StockReservation, error)
	CancelReservation(ctx context.Context, reservationID string) (*model.StockReservation, error)
	GetReservation(ctx context.Context, reservationID string) (*model.StockReservation, error)
	ListReservations(ctx context.Context, filters *dto.ReservationFilters) ([]model.StockReservation, int, error)
	ProcessReturn(ctx context.Context, input *dto.ProcessReturnInput) (*model.InventoryItem, error)

	// Ledger and alerts
	ListMovements(ctx context.Context, filters *dto.MovementFilters) ([]model.StockMovement, int, error)
	ListAlerts(ctx context.Context, filters *dto.AlertFilters) ([]model.InventoryAlert, int, error)
	AcknowledgeAlert(ctx context.Context, alertID, userID string) (*model.InventoryAlert, error)
	ReconcileAlerts(ctx context.Context) (int, error)
}

// Expirer is the expiry path, reserved for the sweep.
type Expirer interface {
	ListExpiredReservations(ctx context.Context, before time.Time, limit int) ([]model.StockReservation, error)
	ExpireReservation(ctx context.Context, reservationID string) (*model.StockReservation, error)
}
