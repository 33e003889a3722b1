package model

import (
	"strconv"
	"time"
)

// ItemKey identifies one stock-keeping unit. VariantID is empty for products
// without variants.
type ItemKey struct {
	ProductID string
	VariantID string
}

func NewItemKey(productID string, variantID *string) ItemKey {
	k := ItemKey{ProductID: productID}
	if variantID != nil {
		k.VariantID = *variantID
	}
	return k
}

func (k ItemKey) String() string {
	if k.VariantID == "" {
		return k.ProductID
	}
	return k.ProductID + "/" + k.VariantID
}

// LockKey is unambiguous for any IDs: the product part is length-prefixed,
// so "a/b" and ("a", "b") never share a key.
func (k ItemKey) LockKey() string {
	return strconv.Itoa(len(k.ProductID)) + ":" + k.ProductID + ":" + k.VariantID
}

type InventoryItem struct {
	ID                 string    `db:"id" json:"id"`
	ProductID          string    `db:"product_id" json:"product_id"`
	VariantID          *string   `db:"variant_id" json:"variant_id,omitempty"`
	SKU                string    `db:"sku" json:"sku"`
	OnHandQuantity     int64     `db:"on_hand_quantity" json:"on_hand_quantity"`
	ReservedQuantity   int64     `db:"reserved_quantity" json:"reserved_quantity"`
	AvailableQuantity  int64     `db:"available_quantity" json:"available_quantity"` // Generated column
	LowStockThreshold  int64     `db:"low_stock_threshold" json:"low_stock_threshold"`
	OverstockThreshold int64     `db:"overstock_threshold" json:"overstock_threshold"` // 0 disables
	TrackInventory     bool      `db:"track_inventory" json:"track_inventory"`
	AllowBackorder     bool      `db:"allow_backorder" json:"allow_backorder"`
	Version            int64     `db:"version" json:"version"`
	CreatedAt          time.Time `db:"created_at" json:"created_at"`
	UpdatedAt          time.Time `db:"updated_at" json:"updated_at"`
}

func (i *InventoryItem) Key() ItemKey {
	return NewItemKey(i.ProductID, i.VariantID)
}

// SetQuantities is the only way counters should change; it keeps
// AvailableQuantity equal to OnHandQuantity - ReservedQuantity.
func (i *InventoryItem) SetQuantities(onHand, reserved int64) {
	i.OnHandQuantity = onHand
	i.ReservedQuantity = reserved
	i.AvailableQuantity = onHand - reserved
}

type MovementType string

const (
	MovementReceived    MovementType = "received"
	MovementSold        MovementType = "sold"
	MovementReturned    MovementType = "returned"
	MovementAdjusted    MovementType = "adjusted"
	MovementReserved    MovementType = "reserved"
	MovementUnreserved  MovementType = "unreserved"
	MovementTransferred MovementType = "transferred"
	MovementDamaged     MovementType = "damaged"
	MovementLost        MovementType = "lost"
)

func (t MovementType) Valid() bool {
	switch t {
	case MovementReceived, MovementSold, MovementReturned, MovementAdjusted,
		MovementReserved, MovementUnreserved, MovementTransferred, MovementDamaged, MovementLost:
		return true
	}
	return false
}

// StockMovement is one immutable ledger entry. QuantityBefore/After track the
// counter the movement changed: reserved for reserved/unreserved, on-hand for
// everything else.
type StockMovement struct {
	ID              string       `db:"id" json:"id"`
	InventoryItemID string       `db:"inventory_item_id" json:"inventory_item_id"`
	Type            MovementType `db:"movement_type" json:"movement_type"`
	DeltaQuantity   int64        `db:"delta_quantity" json:"delta_quantity"`
	QuantityBefore  int64        `db:"quantity_before" json:"quantity_before"`
	QuantityAfter   int64        `db:"quantity_after" json:"quantity_after"`
	Reason          string       `db:"reason" json:"reason"`
	ReferenceType   *string      `db:"reference_type" json:"reference_type,omitempty"`
	ReferenceID     *string      `db:"reference_id" json:"reference_id,omitempty"`
	CreatedBy       *string      `db:"created_by" json:"created_by,omitempty"`
	CreatedAt       time.Time    `db:"created_at" json:"created_at"`
}

type ReservationStatus string

const (
	ReservationActive    ReservationStatus = "active"
	ReservationCompleted ReservationStatus = "completed"
	ReservationCancelled ReservationStatus = "cancelled"
	ReservationExpired   ReservationStatus = "expired"
)

func (s ReservationStatus) Terminal() bool {
	return s == ReservationCompleted || s == ReservationCancelled || s == ReservationExpired
}

type StockReservation struct {
	ID              string            `db:"id" json:"id"`
	InventoryItemID string            `db:"inventory_item_id" json:"inventory_item_id"`
	OrderID         string            `db:"order_id" json:"order_id"`
	Quantity        int64             `db:"quantity" json:"quantity"`
	Backorder       bool              `db:"backorder" json:"backorder"`
	Status          ReservationStatus `db:"status" json:"status"`
	ExpiresAt       time.Time         `db:"expires_at" json:"expires_at"`
	CreatedAt       time.Time         `db:"created_at" json:"created_at"`
	UpdatedAt       time.Time         `db:"updated_at" json:"updated_at"`

	// Bypassed marks a reservation against an untracked item. It is never
	// stored and needs no Complete or Cancel.
	Bypassed bool `db:"-" json:"bypassed,omitempty"`
}

type AlertType string

const (
	AlertLowStock   AlertType = "low_stock"
	AlertOutOfStock AlertType = "out_of_stock"
	AlertOverstock  AlertType = "overstock"
)

type InventoryAlert struct {
	ID              string     `db:"id" json:"id"`
	InventoryItemID string     `db:"inventory_item_id" json:"inventory_item_id"`
	Type            AlertType  `db:"alert_type" json:"alert_type"`
	Threshold       int64      `db:"threshold" json:"threshold"`
	CurrentQuantity int64      `db:"current_quantity" json:"current_quantity"`
	Acknowledged    bool       `db:"acknowledged" json:"acknowledged"`
	AcknowledgedBy  *string    `db:"acknowledged_by" json:"acknowledged_by,omitempty"`
	AcknowledgedAt  *time.Time `db:"acknowledged_at" json:"acknowledged_at,omitempty"`
	CreatedAt       time.Time  `db:"created_at" json:"created_at"`
}
