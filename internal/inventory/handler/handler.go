package handler

import (
	"context"
	"time"

	"github.com/fekuna/omnipos-inventory-service/internal/auth"
	"github.com/fekuna/omnipos-inventory-service/internal/inventory"
	"github.com/fekuna/omnipos-inventory-service/internal/inventory/dto"
	"github.com/fekuna/omnipos-inventory-service/internal/inventory/sweep"
	"github.com/fekuna/omnipos-inventory-service/internal/logger"
	"github.com/fekuna/omnipos-inventory-service/internal/model"
	"go.uber.org/zap"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/emptypb"
)

type Sweeper interface {
	Run(ctx context.Context) (sweep.Result, error)
}

type InventoryHandler struct {
	uc      inventory.UseCase
	sweeper Sweeper
	logger  logger.ZapLogger
}

var _ InventoryServiceServer = (*InventoryHandler)(nil)

func NewInventoryHandler(uc inventory.UseCase, sweeper Sweeper, log logger.ZapLogger) *InventoryHandler {
	return &InventoryHandler{
		uc:      uc,
		sweeper: sweeper,
		logger:  log,
	}
}

func (h *InventoryHandler) fail(method string, err error) error {
	st := toStatus(err)
	if status.Code(st) == codes.Internal {
		h.logger.Error("inventory request failed", zap.String("method", method), zap.Error(err))
	}
	return st
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func (h *InventoryHandler) InitializeInventory(ctx context.Context, req *InitializeInventoryRequest) (*InventoryEntry, error) {
	item, err := h.uc.InitializeInventory(ctx, &dto.InitializeInventoryInput{
		ProductID:          req.ProductID,
		VariantID:          optional(req.VariantID),
		SKU:                req.SKU,
		InitialQuantity:    req.InitialQuantity,
		LowStockThreshold:  req.LowStockThreshold,
		OverstockThreshold: req.OverstockThreshold,
		TrackInventory:     req.TrackInventory,
		AllowBackorder:     req.AllowBackorder,
		UserID:             auth.GetUserID(ctx),
	})
	if err != nil {
		return nil, h.fail("InitializeInventory", err)
	}
	return mapItem(item), nil
}

func (h *InventoryHandler) AdjustInventory(ctx context.Context, req *AdjustInventoryRequest) (*InventoryEntry, error) {
	referenceType := req.ReferenceType
	if referenceType == "" && req.ReferenceID != "" {
		referenceType = "manual"
	}

	item, err := h.uc.AdjustInventory(ctx, &dto.AdjustInventoryInput{
		ProductID:      req.ProductID,
		VariantID:      optional(req.VariantID),
		QuantityChange: req.QuantityChange,
		Reason:         req.Reason,
		MovementType:   model.MovementType(req.MovementType),
		ReferenceID:    req.ReferenceID,
		ReferenceType:  referenceType,
		UserID:         auth.GetUserID(ctx),
	})
	if err != nil {
		return nil, h.fail("AdjustInventory", err)
	}
	return mapItem(item), nil
}

func (h *InventoryHandler) GetInventory(ctx context.Context, req *GetInventoryRequest) (*InventoryEntry, error) {
	item, err := h.uc.GetInventory(ctx, req.ProductID, optional(req.VariantID))
	if err != nil {
		return nil, h.fail("GetInventory", err)
	}
	return mapItem(item), nil
}

func (h *InventoryHandler) ListInventory(ctx context.Context, req *ListInventoryRequest) (*ListInventoryResponse, error) {
	items, total, err := h.uc.ListInventory(ctx, &dto.InventoryFilters{
		ProductID: req.ProductID,
		LowStock:  req.LowStock,
		Page:      int(req.Page),
		PageSize:  int(req.PageSize),
	})
	if err != nil {
		return nil, h.fail("ListInventory", err)
	}

	entries := make([]*InventoryEntry, len(items))
	for i := range items {
		entries[i] = mapItem(&items[i])
	}
	return &ListInventoryResponse{Items: entries, Total: int32(total)}, nil
}

func (h *InventoryHandler) ReserveStock(ctx context.Context, req *ReserveStockRequest) (*Reservation, error) {
	res, err := h.uc.ReserveStock(ctx, &dto.ReserveStockInput{
		ProductID: req.ProductID,
		VariantID: optional(req.VariantID),
		Quantity:  req.Quantity,
		OrderID:   req.OrderID,
		TTL:       time.Duration(req.TTLSeconds) * time.Second,
		UserID:    auth.GetUserID(ctx),
	})
	if err != nil {
		return nil, h.fail("ReserveStock", err)
	}
	return mapReservation(res), nil
}

func (h *InventoryHandler) ReserveCart(ctx context.Context, req *ReserveCartRequest) (*ReserveCartResponse, error) {
	lines := make([]dto.CartLine, len(req.Lines))
	for i, l := range req.Lines {
		lines[i] = dto.CartLine{ProductID: l.ProductID, VariantID: optional(l.VariantID), Quantity: l.Quantity}
	}

	out, err := h.uc.ReserveCart(ctx, &dto.ReserveCartInput{
		OrderID: req.OrderID,
		Lines:   lines,
		TTL:     time.Duration(req.TTLSeconds) * time.Second,
		UserID:  auth.GetUserID(ctx),
	})
	if err != nil {
		return nil, h.fail("ReserveCart", err)
	}

	resp := &ReserveCartResponse{Reservations: make([]*Reservation, len(out))}
	for i := range out {
		resp.Reservations[i] = mapReservation(&out[i])
	}
	return resp, nil
}

func (h *InventoryHandler) CompleteReservation(ctx context.Context, req *ReservationRequest) (*Reservation, error) {
	res, err := h.uc.CompleteReservation(ctx, req.ReservationID)
	if err != nil {
		return nil, h.fail("CompleteReservation", err)
	}
	return mapReservation(res), nil
}

func (h *InventoryHandler) CancelReservation(ctx context.Context, req *ReservationRequest) (*Reservation, error) {
	res, err := h.uc.CancelReservation(ctx, req.ReservationID)
	if err != nil {
		return nil, h.fail("CancelReservation", err)
	}
	return mapReservation(res), nil
}

func (h *InventoryHandler) GetReservation(ctx context.Context, req *ReservationRequest) (*Reservation, error) {
	res, err := h.uc.GetReservation(ctx, req.ReservationID)
	if err != nil {
		return nil, h.fail("GetReservation", err)
	}
	return mapReservation(res), nil
}

func (h *InventoryHandler) ListReservations(ctx context.Context, req *ListReservationsRequest) (*ListReservationsResponse, error) {
	out, total, err := h.uc.ListReservations(ctx, &dto.ReservationFilters{
		InventoryItemID: req.InventoryItemID,
		OrderID:         req.OrderID,
		Status:          model.ReservationStatus(req.Status),
		Page:            int(req.Page),
		PageSize:        int(req.PageSize),
	})
	if err != nil {
		return nil, h.fail("ListReservations", err)
	}

	resp := &ListReservationsResponse{Reservations: make([]*Reservation, len(out)), Total: int32(total)}
	for i := range out {
		resp.Reservations[i] = mapReservation(&out[i])
	}
	return resp, nil
}

func (h *InventoryHandler) ProcessReturn(ctx context.Context, req *ProcessReturnRequest) (*InventoryEntry, error) {
	item, err := h.uc.ProcessReturn(ctx, &dto.ProcessReturnInput{
		ProductID: req.ProductID,
		VariantID: optional(req.VariantID),
		Quantity:  req.Quantity,
		OrderID:   req.OrderID,
		Reason:    req.Reason,
		UserID:    auth.GetUserID(ctx),
	})
	if err != nil {
		return nil, h.fail("ProcessReturn", err)
	}
	return mapItem(item), nil
}

func (h *InventoryHandler) ListMovements(ctx context.Context, req *ListMovementsRequest) (*ListMovementsResponse, error) {
	out, total, err := h.uc.ListMovements(ctx, &dto.MovementFilters{
		InventoryItemID: req.InventoryItemID,
		MovementType:    model.MovementType(req.MovementType),
		ReferenceID:     req.ReferenceID,
		StartDate:       req.StartDate,
		EndDate:         req.EndDate,
		Page:            int(req.Page),
		PageSize:        int(req.PageSize),
	})
	if err != nil {
		return nil, h.fail("ListMovements", err)
	}

	resp := &ListMovementsResponse{Movements: make([]*Movement, len(out)), Total: int32(total)}
	for i := range out {
		resp.Movements[i] = mapMovement(&out[i])
	}
	return resp, nil
}

func (h *InventoryHandler) ListAlerts(ctx context.Context, req *ListAlertsRequest) (*ListAlertsResponse, error) {
	out, total, err := h.uc.ListAlerts(ctx, &dto.AlertFilters{
		InventoryItemID: req.InventoryItemID,
		Type:            model.AlertType(req.AlertType),
		Unacknowledged:  req.Unacknowledged,
		Page:            int(req.Page),
		PageSize:        int(req.PageSize),
	})
	if err != nil {
		return nil, h.fail("ListAlerts", err)
	}

	resp := &ListAlertsResponse{Alerts: make([]*Alert, len(out)), Total: int32(total)}
	for i := range out {
		resp.Alerts[i] = mapAlert(&out[i])
	}
	return resp, nil
}

func (h *InventoryHandler) AcknowledgeAlert(ctx context.Context, req *AcknowledgeAlertRequest) (*Alert, error) {
	a, err := h.uc.AcknowledgeAlert(ctx, req.AlertID, auth.GetUserID(ctx))
	if err != nil {
		return nil, h.fail("AcknowledgeAlert", err)
	}
	return mapAlert(a), nil
}

func (h *InventoryHandler) RunExpirySweep(ctx context.Context, _ *emptypb.Empty) (*RunExpirySweepResponse, error) {
	res, err := h.sweeper.Run(ctx)
	if err != nil {
		return nil, h.fail("RunExpirySweep", err)
	}
	return &RunExpirySweepResponse{
		Scanned: int32(res.Scanned),
		Expired: int32(res.Expired),
		Skipped: int32(res.Skipped),
		Failed:  int32(res.Failed),
	}, nil
}

func (h *InventoryHandler) ReconcileAlerts(ctx context.Context, _ *emptypb.Empty) (*ReconcileAlertsResponse, error) {
	n, err := h.uc.ReconcileAlerts(ctx)
	if err != nil {
		return nil, h.fail("ReconcileAlerts", err)
	}
	return &ReconcileAlertsResponse{Updated: int32(n)}, nil
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func mapItem(item *model.InventoryItem) *InventoryEntry {
	return &InventoryEntry{
		ID:                 item.ID,
		ProductID:          item.ProductID,
		VariantID:          deref(item.VariantID),
		SKU:                item.SKU,
		OnHandQuantity:     item.OnHandQuantity,
		ReservedQuantity:   item.ReservedQuantity,
		AvailableQuantity:  item.AvailableQuantity,
		LowStockThreshold:  item.LowStockThreshold,
		OverstockThreshold: item.OverstockThreshold,
		TrackInventory:     item.TrackInventory,
		AllowBackorder:     item.AllowBackorder,
		Version:            item.Version,
		UpdatedAt:          item.UpdatedAt,
	}
}

func mapReservation(r *model.StockReservation) *Reservation {
	return &Reservation{
		ID:              r.ID,
		InventoryItemID: r.InventoryItemID,
		OrderID:         r.OrderID,
		Quantity:        r.Quantity,
		Backorder:       r.Backorder,
		Status:          string(r.Status),
		ExpiresAt:       r.ExpiresAt,
		CreatedAt:       r.CreatedAt,
		Bypassed:        r.Bypassed,
	}
}

func mapMovement(m *model.StockMovement) *Movement {
	return &Movement{
		ID:              m.ID,
		InventoryItemID: m.InventoryItemID,
		MovementType:    string(m.Type),
		DeltaQuantity:   m.DeltaQuantity,
		QuantityBefore:  m.QuantityBefore,
		QuantityAfter:   m.QuantityAfter,
		Reason:          m.Reason,
		ReferenceType:   deref(m.ReferenceType),
		ReferenceID:     deref(m.ReferenceID),
		CreatedBy:       deref(m.CreatedBy),
		CreatedAt:       m.CreatedAt,
	}
}

func mapAlert(a *model.InventoryAlert) *Alert {
	return &Alert{
		ID:              a.ID,
		InventoryItemID: a.InventoryItemID,
		AlertType:       string(a.Type),
		Threshold:       a.Threshold,
		CurrentQuantity: a.CurrentQuantity,
		Acknowledged:    a.Acknowledged,
		AcknowledgedBy:  deref(a.AcknowledgedBy),
		AcknowledgedAt:  a.AcknowledgedAt,
		CreatedAt:       a.CreatedAt,
	}
}
