package dto

import (
	"time"

	"github.com/fekuna/omnipos-inventory-service/internal/model"
)

type InitializeInventoryInput struct {
	ProductID          string
	VariantID          *string
	SKU                string
	InitialQuantity    int64
	LowStockThreshold  int64
	OverstockThreshold int64
	TrackInventory     bool
	AllowBackorder     bool
	UserID             string
}

type AdjustInventoryInput struct {
	ProductID      string
	VariantID      *string
	QuantityChange int64
	Reason         string
	// MovementType optionally records a negative change as damaged or lost
	// instead of adjusted.
	MovementType  model.MovementType
	ReferenceID   string
	ReferenceType string
	UserID        string
}

type ReserveStockInput struct {
	ProductID string
	VariantID *string
	Quantity  int64
	OrderID   string
	TTL       time.Duration // zero means the configured default
	UserID    string
}

type CartLine struct {
	ProductID string
	VariantID *string
	Quantity  int64
}

type ReserveCartInput struct {
	OrderID string
	Lines   []CartLine
	TTL     time.Duration
	UserID  string
}

type ProcessReturnInput struct {
	ProductID string
	VariantID *string
	Quantity  int64
	OrderID   string
	Reason    string
	UserID    string
}
