package dto

import (
	"time"

	"github.com/fekuna/omnipos-inventory-service/internal/model"
)

type InventoryFilters struct {
	ProductID string
	LowStock  bool // If true, filter by available_quantity <= low_stock_threshold
	// ByID orders by id ascending instead of most recently updated. With
	// AfterID set it pages by keyset: only ids greater than AfterID.
	ByID     bool
	AfterID  string
	Page     int
	PageSize int
}

type MovementFilters struct {
	InventoryItemID string
	MovementType    model.MovementType
	ReferenceID     string
	StartDate       *time.Time
	EndDate         *time.Time
	Page            int
	PageSize        int
}

type ReservationFilters struct {
	InventoryItemID string
	OrderID         string
	Status          model.ReservationStatus
	ExpiresBefore   *time.Time
	Page            int
	PageSize        int
}

type AlertFilters struct {
	InventoryItemID string
	Type            model.AlertType
	Unacknowledged  bool
	Page            int
	PageSize        int
}
