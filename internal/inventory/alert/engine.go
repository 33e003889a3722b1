// Package alert decides which stock alert, if any, an inventory item should
// carry after a mutation.
package alert

import (
	"time"

	"github.com/fekuna/omnipos-inventory-service/internal/inventory"
	"github.com/fekuna/omnipos-inventory-service/internal/model"
	"github.com/google/uuid"
)

type Engine struct {
	now func() time.Time
}

func NewEngine(now func() time.Time) *Engine {
	if now == nil {
		now = time.Now
	}
	return &Engine{now: now}
}

// Classify returns the alert type the item's availability calls for and the
// threshold it crossed. ok is false when the item is healthy.
func Classify(item *model.InventoryItem) (t model.AlertType, threshold int64, ok bool) {
	available := item.AvailableQuantity
	switch {
	case available <= 0:
		return model.AlertOutOfStock, 0, true
	case available <= item.LowStockThreshold:
		return model.AlertLowStock, item.LowStockThreshold, true
	case item.OverstockThreshold > 0 && available > item.OverstockThreshold:
		return model.AlertOverstock, item.OverstockThreshold, true
	}
	return "", 0, false
}

// Evaluate compares the item against its open (unacknowledged) alert.
//
// An open alert that still matches type and quantity is kept. A stale one is
// replaced or cleared. With no open alert, a new one is raised only when the
// mutation changed availability, so acknowledged alerts are not resurrected
// by operations that leave availability untouched.
func (e *Engine) Evaluate(item *model.InventoryItem, open *model.InventoryAlert, availabilityChanged bool) inventory.AlertChange {
	change := inventory.AlertChange{InventoryItemID: item.ID}
	if !item.TrackInventory {
		change.Clear = open != nil
		return change
	}

	t, threshold, ok := Classify(item)
	if !ok {
		change.Clear = open != nil
		return change
	}

	if open != nil && open.Type == t && open.CurrentQuantity == item.AvailableQuantity {
		return change
	}
	if open == nil && !availabilityChanged {
		return change
	}

	change.Raise = &model.InventoryAlert{
		ID:              uuid.New().String(),
		InventoryItemID: item.ID,
		Type:            t,
		Threshold:       threshold,
		CurrentQuantity: item.AvailableQuantity,
		CreatedAt:       e.now(),
	}
	return change
}
