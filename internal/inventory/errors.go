package inventory

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound          = errors.New("not found")
	ErrAlreadyExists     = errors.New("already exists")
	ErrInsufficientStock = errors.New("insufficient stock")
	ErrInvalidState      = errors.New("invalid state transition")
	ErrInvalidInput      = errors.New("invalid input")

	// ErrConflict means a stored item moved on since it was read; the write
	// was discarded and may be retried.
	ErrConflict = errors.New("concurrent modification")
)

// InsufficientStockError carries the quantity the caller could still get so
// it can render "only N left".
type InsufficientStockError struct {
	InventoryItemID string
	Requested       int64
	Available       int64
}

func (e *InsufficientStockError) Error() string {
	return fmt.Sprintf("insufficient stock for item %s: requested %d, available %d",
		e.InventoryItemID, e.Requested, e.Available)
}

func (e *InsufficientStockError) Is(target error) bool {
	return target == ErrInsufficientStock
}

// InvalidInput builds an ErrInvalidInput with a field-level message.
func InvalidInput(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidInput, fmt.Sprintf(format, args...))
}
