// Package ledger builds and replays stock movements. It holds no state and
// enforces no stock rules; persistence belongs to the repository.
package ledger

import (
	"fmt"
	"time"

	"github.com/fekuna/omnipos-inventory-service/internal/model"
	"github.com/google/uuid"
)

// Reference ties a movement to the document that caused it.
type Reference struct {
	Type string
	ID   string
}

type Ledger struct {
	now func() time.Time
}

func New(now func() time.Time) *Ledger {
	if now == nil {
		now = time.Now
	}
	return &Ledger{now: now}
}

// Record builds the entry for one counter moving from before to after.
func (l *Ledger) Record(itemID string, t model.MovementType, before, after int64, reason string, ref Reference, createdBy string) (*model.StockMovement, error) {
	if !t.Valid() {
		return nil, fmt.Errorf("unknown movement type %q", t)
	}

	m := &model.StockMovement{
		ID:              uuid.New().String(),
		InventoryItemID: itemID,
		Type:            t,
		DeltaQuantity:   after - before,
		QuantityBefore:  before,
		QuantityAfter:   after,
		Reason:          reason,
		CreatedAt:       l.now(),
	}
	if ref.Type != "" {
		m.ReferenceType = &ref.Type
	}
	if ref.ID != "" {
		m.ReferenceID = &ref.ID
	}
	if createdBy != "" && createdBy != "unknown" {
		m.CreatedBy = &createdBy
	}
	return m, nil
}

// Balance is the pair of counters a sequence of movements adds up to.
type Balance struct {
	OnHand   int64
	Reserved int64
}

func (b Balance) Available() int64 {
	return b.OnHand - b.Reserved
}

// Replay folds movements, oldest first, into counters. A sold movement
// consumes a reservation, so it lowers both counters.
func Replay(movements []model.StockMovement) Balance {
	var b Balance
	for _, m := range movements {
		switch m.Type {
		case model.MovementReserved, model.MovementUnreserved:
			b.Reserved += m.DeltaQuantity
		case model.MovementSold:
			b.OnHand += m.DeltaQuantity
			b.Reserved += m.DeltaQuantity
		default:
			b.OnHand += m.DeltaQuantity
		}
	}
	return b
}
