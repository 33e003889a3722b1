package handler

import "time"

type InventoryEntry struct {
	ID                 string    `json:"id"`
	ProductID          string    `json:"product_id"`
	VariantID          string    `json:"variant_id,omitempty"`
	SKU                string    `json:"sku"`
	OnHandQuantity     int64     `json:"on_hand_quantity"`
	ReservedQuantity   int64     `json:"reserved_quantity"`
	AvailableQuantity  int64     `json:"available_quantity"`
	LowStockThreshold  int64     `json:"low_stock_threshold"`
	OverstockThreshold int64     `json:"overstock_threshold"`
	TrackInventory     bool      `json:"track_inventory"`
	AllowBackorder     bool      `json:"allow_backorder"`
	Version            int64     `json:"version"`
	UpdatedAt          time.Time `json:"updated_at"`
}

type Reservation struct {
	ID              string    `json:"id"`
	InventoryItemID string    `json:"inventory_item_id"`
	OrderID         string    `json:"order_id"`
	Quantity        int64     `json:"quantity"`
	Backorder       bool      `json:"backorder"`
	Status          string    `json:"status"`
	ExpiresAt       time.Time `json:"expires_at"`
	CreatedAt       time.Time `json:"created_at"`
	Bypassed        bool      `json:"bypassed,omitempty"`
}

type Movement struct {
	ID              string    `json:"id"`
	InventoryItemID string    `json:"inventory_item_id"`
	MovementType    string    `json:"movement_type"`
	DeltaQuantity   int64     `json:"delta_quantity"`
	QuantityBefore  int64     `json:"quantity_before"`
	QuantityAfter   int64     `json:"quantity_after"`
	Reason          string    `json:"reason"`
	ReferenceType   string    `json:"reference_type,omitempty"`
	ReferenceID     string    `json:"reference_id,omitempty"`
	CreatedBy       string    `json:"created_by,omitempty"`
	CreatedAt       time.Time `json:"created_at"`
}

type Alert struct {
	ID              string     `json:"id"`
	InventoryItemID string     `json:"inventory_item_id"`
	AlertType       string     `json:"alert_type"`
	Threshold       int64      `json:"threshold"`
	CurrentQuantity int64      `json:"current_quantity"`
	Acknowledged    bool       `json:"acknowledged"`
	AcknowledgedBy  string     `json:"acknowledged_by,omitempty"`
	AcknowledgedAt  *time.Time `json:"acknowledged_at,omitempty"`
	CreatedAt       time.Time  `json:"created_at"`
}

type InitializeInventoryRequest struct {
	ProductID          string `json:"product_id"`
	VariantID          string `json:"variant_id,omitempty"`
	SKU                string `json:"sku"`
	InitialQuantity    int64  `json:"initial_quantity"`
	LowStockThreshold  int64  `json:"low_stock_threshold"`
	OverstockThreshold int64  `json:"overstock_threshold"`
	TrackInventory     bool   `json:"track_inventory"`
	AllowBackorder     bool   `json:"allow_backorder"`
}

type AdjustInventoryRequest struct {
	ProductID      string `json:"product_id"`
	VariantID      string `json:"variant_id,omitempty"`
	QuantityChange int64  `json:"quantity_change"`
	Reason         string `json:"reason"`
	MovementType   string `json:"movement_type,omitempty"`
	ReferenceID    string `json:"reference_id,omitempty"`
	ReferenceType  string `json:"reference_type,omitempty"`
}

type GetInventoryRequest struct {
	ProductID string `json:"product_id"`
	VariantID string `json:"variant_id,omitempty"`
}

type ListInventoryRequest struct {
	ProductID string `json:"product_id,omitempty"`
	LowStock  bool   `json:"low_stock"`
	Page      int32  `json:"page"`
	PageSize  int32  `json:"page_size"`
}

type ListInventoryResponse struct {
	Items []*InventoryEntry `json:"items"`
	Total int32             `json:"total"`
}

type ReserveStockRequest struct {
	ProductID  string `json:"product_id"`
	VariantID  string `json:"variant_id,omitempty"`
	Quantity   int64  `json:"quantity"`
	OrderID    string `json:"order_id"`
	TTLSeconds int64  `json:"ttl_seconds,omitempty"`
}

type CartLine struct {
	ProductID string `json:"product_id"`
	VariantID string `json:"variant_id,omitempty"`
	Quantity  int64  `json:"quantity"`
}

type ReserveCartRequest struct {
	OrderID    string     `json:"order_id"`
	Lines      []CartLine `json:"lines"`
	TTLSeconds int64      `json:"ttl_seconds,omitempty"`
}

type ReserveCartResponse struct {
	Reservations []*Reservation `json:"reservations"`
}

type ReservationRequest struct {
	ReservationID string `json:"reservation_id"`
}

type ListReservationsRequest struct {
	InventoryItemID string `json:"inventory_item_id,omitempty"`
	OrderID         string `json:"order_id,omitempty"`
	Status          string `json:"status,omitempty"`
	Page            int32  `json:"page"`
	PageSize        int32  `json:"page_size"`
}

type ListReservationsResponse struct {
	Reservations []*Reservation `json:"reservations"`
	Total        int32          `json:"total"`
}

type ProcessReturnRequest struct {
	ProductID string `json:"product_id"`
	VariantID string `json:"variant_id,omitempty"`
	Quantity  int64  `json:"quantity"`
	OrderID   string `json:"order_id"`
	Reason    string `json:"reason,omitempty"`
}

type ListMovementsRequest struct {
	InventoryItemID string     `json:"inventory_item_id,omitempty"`
	MovementType    string     `json:"movement_type,omitempty"`
	ReferenceID     string     `json:"reference_id,omitempty"`
	StartDate       *time.Time `json:"start_date,omitempty"`
	EndDate         *time.Time `json:"end_date,omitempty"`
	Page            int32      `json:"page"`
	PageSize        int32      `json:"page_size"`
}

type ListMovementsResponse struct {
	Movements []*Movement `json:"movements"`
	Total     int32       `json:"total"`
}

type ListAlertsRequest struct {
	InventoryItemID string `json:"inventory_item_id,omitempty"`
	AlertType       string `json:"alert_type,omitempty"`
	Unacknowledged  bool   `json:"unacknowledged"`
	Page            int32  `json:"page"`
	PageSize        int32  `json:"page_size"`
}

type ListAlertsResponse struct {
	Alerts []*Alert `json:"alerts"`
	Total  int32    `json:"total"`
}

type AcknowledgeAlertRequest struct {
	AlertID string `json:"alert_id"`
}

type RunExpirySweepResponse struct {
	Scanned int32 `json:"scanned"`
	Expired int32 `json:"expired"`
	Skipped int32 `json:"skipped"`
	Failed  int32 `json:"failed"`
}

type ReconcileAlertsResponse struct {
	Updated int32 `json:"updated"`
}
