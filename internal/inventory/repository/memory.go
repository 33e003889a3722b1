package repository

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/fekuna/omnipos-inventory-service/internal/inventory"
	"github.com/fekuna/omnipos-inventory-service/internal/inventory/dto"
	"github.com/fekuna/omnipos-inventory-service/internal/model"
)

// MemoryRepository keeps everything in process. Its mutex only makes single
// reads and Apply batches atomic; per-item serialization is the caller's
// lock.
type MemoryRepository struct {
	mu           sync.RWMutex
	items        map[string]*model.InventoryItem
	keys         map[model.ItemKey]string
	reservations map[string]*model.StockReservation
	movements    []model.StockMovement
	alerts       map[string]*model.InventoryAlert
	openAlerts   map[string]string // item ID -> unacknowledged alert ID
}

func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{
		items:        make(map[string]*model.InventoryItem),
		keys:         make(map[model.ItemKey]string),
		reservations: make(map[string]*model.StockReservation),
		alerts:       make(map[string]*model.InventoryAlert),
		openAlerts:   make(map[string]string),
	}
}

func (r *MemoryRepository) GetItem(ctx context.Context, key model.ItemKey) (*model.InventoryItem, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	id, ok := r.keys[key]
	if !ok {
		return nil, fmt.Errorf("inventory item %s: %w", key, inventory.ErrNotFound)
	}
	item := *r.items[id]
	return &item, nil
}

func (r *MemoryRepository) GetItemByID(ctx context.Context, id string) (*model.InventoryItem, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	stored, ok := r.items[id]
	if !ok {
		return nil, fmt.Errorf("inventory item %s: %w", id, inventory.ErrNotFound)
	}
	item := *stored
	return &item, nil
}

func (r *MemoryRepository) ListItems(ctx context.Context, f *dto.InventoryFilters) ([]model.InventoryItem, int, error) {
	r.mu.RLock()
	var items []model.InventoryItem
	for _, it := range r.items {
		if f.ProductID != "" && it.ProductID != f.ProductID {
			continue
		}
		if f.LowStock && !(it.TrackInventory && it.AvailableQuantity <= it.LowStockThreshold) {
			continue
		}
		if f.AfterID != "" && it.ID <= f.AfterID {
			continue
		}
		items = append(items, *it)
	}
	r.mu.RUnlock()

	sort.Slice(items, func(i, j int) bool {
		if f.ByID {
			return items[i].ID < items[j].ID
		}
		if !items[i].UpdatedAt.Equal(items[j].UpdatedAt) {
			return items[i].UpdatedAt.After(items[j].UpdatedAt)
		}
		return items[i].ID < items[j].ID
	})
	start, end := pageBounds(len(items), f.Page, f.PageSize)
	return items[start:end], len(items), nil
}

func (r *MemoryRepository) GetReservation(ctx context.Context, id string) (*model.StockReservation, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	stored, ok := r.reservations[id]
	if !ok {
		return nil, fmt.Errorf("reservation %s: %w", id, inventory.ErrNotFound)
	}
	res := *stored
	return &res, nil
}

func (r *MemoryRepository) ListReservations(ctx context.Context, f *dto.ReservationFilters) ([]model.StockReservation, int, error) {
	r.mu.RLock()
	var out []model.StockReservation
	for _, res := range r.reservations {
		if f.InventoryItemID != "" && res.InventoryItemID != f.InventoryItemID {
			continue
		}
		if f.OrderID != "" && res.OrderID != f.OrderID {
			continue
		}
		if f.Status != "" && res.Status != f.Status {
			continue
		}
		if f.ExpiresBefore != nil && !res.ExpiresAt.Before(*f.ExpiresBefore) {
			continue
		}
		out = append(out, *res)
	}
	r.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})
	start, end := pageBounds(len(out), f.Page, f.PageSize)
	return out[start:end], len(out), nil
}

// ListMovements returns newest first.
func (r *MemoryRepository) ListMovements(ctx context.Context, f *dto.MovementFilters) ([]model.StockMovement, int, error) {
	r.mu.RLock()
	var out []model.StockMovement
	for i := len(r.movements) - 1; i >= 0; i-- {
		m := r.movements[i]
		if f.InventoryItemID != "" && m.InventoryItemID != f.InventoryItemID {
			continue
		}
		if f.MovementType != "" && m.Type != f.MovementType {
			continue
		}
		if f.ReferenceID != "" && (m.ReferenceID == nil || *m.ReferenceID != f.ReferenceID) {
			continue
		}
		if f.StartDate != nil && m.CreatedAt.Before(*f.StartDate) {
			continue
		}
		if f.EndDate != nil && m.CreatedAt.After(*f.EndDate) {
			continue
		}
		out = append(out, m)
	}
	r.mu.RUnlock()

	start, end := pageBounds(len(out), f.Page, f.PageSize)
	return out[start:end], len(out), nil
}

func (r *MemoryRepository) GetAlert(ctx context.Context, id string) (*model.InventoryAlert, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	stored, ok := r.alerts[id]
	if !ok {
		return nil, fmt.Errorf("alert %s: %w", id, inventory.ErrNotFound)
	}
	a := *stored
	return &a, nil
}

// GetOpenAlert returns nil without error when the item has no
// unacknowledged alert.
func (r *MemoryRepository) GetOpenAlert(ctx context.Context, itemID string) (*model.InventoryAlert, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	id, ok := r.openAlerts[itemID]
	if !ok {
		return nil, nil
	}
	a := *r.alerts[id]
	return &a, nil
}

func (r *MemoryRepository) ListAlerts(ctx context.Context, f *dto.AlertFilters) ([]model.InventoryAlert, int, error) {
	r.mu.RLock()
	var out []model.InventoryAlert
	for _, a := range r.alerts {
		if f.InventoryItemID != "" && a.InventoryItemID != f.InventoryItemID {
			continue
		}
		if f.Type != "" && a.Type != f.Type {
			continue
		}
		if f.Unacknowledged && a.Acknowledged {
			continue
		}
		out = append(out, *a)
	}
	r.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})
	start, end := pageBounds(len(out), f.Page, f.PageSize)
	return out[start:end], len(out), nil
}

func (r *MemoryRepository) AcknowledgeAlert(ctx context.Context, id, userID string, at time.Time) (*model.InventoryAlert, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	a, ok := r.alerts[id]
	if !ok {
		return nil, fmt.Errorf("alert %s: %w", id, inventory.ErrNotFound)
	}
	if !a.Acknowledged {
		a.Acknowledged = true
		a.AcknowledgedBy = &userID
		a.AcknowledgedAt = &at
		if r.openAlerts[a.InventoryItemID] == id {
			delete(r.openAlerts, a.InventoryItemID)
		}
	}
	out := *a
	return &out, nil
}

func (r *MemoryRepository) Apply(ctx context.Context, changes ...*inventory.Change) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, c := range changes {
		if err := r.check(c); err != nil {
			return err
		}
	}

	for _, c := range changes {
		if c.Item != nil {
			item := *c.Item
			r.items[item.ID] = &item
			r.keys[item.Key()] = item.ID
		}
		if c.Movement != nil {
			r.movements = append(r.movements, *c.Movement)
		}
		if c.Reservation != nil {
			res := *c.Reservation.Reservation
			r.reservations[res.ID] = &res
		}
		if c.Alert.Clear || c.Alert.Raise != nil {
			if id, ok := r.openAlerts[c.Alert.InventoryItemID]; ok {
				delete(r.alerts, id)
				delete(r.openAlerts, c.Alert.InventoryItemID)
			}
		}
		if c.Alert.Raise != nil {
			a := *c.Alert.Raise
			r.alerts[a.ID] = &a
			r.openAlerts[a.InventoryItemID] = a.ID
		}
	}
	return nil
}

func (r *MemoryRepository) check(c *inventory.Change) error {
	if c.Item != nil {
		stored, exists := r.items[c.Item.ID]
		switch {
		case c.Create:
			if _, dup := r.keys[c.Item.Key()]; dup || exists {
				return fmt.Errorf("inventory item %s: %w", c.Item.Key(), inventory.ErrAlreadyExists)
			}
		case !exists:
			return fmt.Errorf("inventory item %s: %w", c.Item.ID, inventory.ErrNotFound)
		case stored.Version != c.Item.Version-1:
			return fmt.Errorf("inventory item %s at version %d: %w", c.Item.ID, stored.Version, inventory.ErrConflict)
		}
	}

	if w := c.Reservation; w != nil {
		stored, exists := r.reservations[w.Reservation.ID]
		if w.From == "" {
			if exists {
				return fmt.Errorf("reservation %s: %w", w.Reservation.ID, inventory.ErrAlreadyExists)
			}
		} else {
			if !exists {
				return fmt.Errorf("reservation %s: %w", w.Reservation.ID, inventory.ErrNotFound)
			}
			if stored.Status != w.From {
				return fmt.Errorf("reservation %s is %s: %w", w.Reservation.ID, stored.Status, inventory.ErrInvalidState)
			}
		}
	}
	return nil
}

// pageBounds maps a 1-based page onto slice bounds; pageSize <= 0 returns
// everything.
func pageBounds(total, page, pageSize int) (int, int) {
	if pageSize <= 0 {
		return 0, total
	}
	if page < 1 {
		page = 1
	}
	start := (page - 1) * pageSize
	if start > total {
		start = total
	}
	end := start + pageSize
	if end > total {
		end = total
	}
	return start, end
}
