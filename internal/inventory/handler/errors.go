package handler

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/fekuna/omnipos-inventory-service/internal/inventory"
	"github.com/fekuna/omnipos-inventory-service/internal/lock"
	"google.golang.org/genproto/googleapis/rpc/errdetails"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

const (
	errorDomain = "inventory.omnipos"

	ReasonInsufficientStock = "INSUFFICIENT_STOCK"
	ReasonInvalidState      = "INVALID_STATE"
)

// toStatus maps engine errors onto gRPC status codes. InsufficientStock
// carries the available quantity in an ErrorInfo detail.
func toStatus(err error) error {
	var stockErr *inventory.InsufficientStockError
	switch {
	case errors.As(err, &stockErr):
		return withReason(codes.FailedPrecondition, stockErr.Error(), ReasonInsufficientStock, map[string]string{
			"inventory_item_id": stockErr.InventoryItemID,
			"requested":         strconv.FormatInt(stockErr.Requested, 10),
			"available":         strconv.FormatInt(stockErr.Available, 10),
		})
	case errors.Is(err, inventory.ErrInvalidState):
		return withReason(codes.FailedPrecondition, err.Error(), ReasonInvalidState, nil)
	case errors.Is(err, inventory.ErrNotFound):
		return status.Error(codes.NotFound, err.Error())
	case errors.Is(err, inventory.ErrAlreadyExists):
		return status.Error(codes.AlreadyExists, err.Error())
	case errors.Is(err, inventory.ErrInvalidInput):
		return status.Error(codes.InvalidArgument, err.Error())
	case errors.Is(err, inventory.ErrConflict):
		return status.Error(codes.Aborted, err.Error())
	case errors.Is(err, lock.ErrNotAcquired):
		return status.Error(codes.Unavailable, err.Error())
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return status.FromContextError(err).Err()
	}
	return status.Error(codes.Internal, err.Error())
}

func withReason(code codes.Code, msg, reason string, meta map[string]string) error {
	st := status.New(code, msg)
	detailed, err := st.WithDetails(&errdetails.ErrorInfo{Reason: reason, Domain: errorDomain, Metadata: meta})
	if err != nil {
		return st.Err()
	}
	return detailed.Err()
}

// FromStatus turns an error returned by InventoryServiceClient back into the
// engine's error values, so callers can use errors.Is and errors.As.
func FromStatus(err error) error {
	st, ok := status.FromError(err)
	if !ok || err == nil {
		return err
	}

	for _, d := range st.Details() {
		info, ok := d.(*errdetails.ErrorInfo)
		if !ok || info.GetDomain() != errorDomain {
			continue
		}
		switch info.GetReason() {
		case ReasonInsufficientStock:
			requested, _ := strconv.ParseInt(info.GetMetadata()["requested"], 10, 64)
			available, _ := strconv.ParseInt(info.GetMetadata()["available"], 10, 64)
			return &inventory.InsufficientStockError{
				InventoryItemID: info.GetMetadata()["inventory_item_id"],
				Requested:       requested,
				Available:       available,
			}
		case ReasonInvalidState:
			return fmt.Errorf("%s: %w", st.Message(), inventory.ErrInvalidState)
		}
	}

	switch st.Code() {
	case codes.NotFound:
		return fmt.Errorf("%s: %w", st.Message(), inventory.ErrNotFound)
	case codes.AlreadyExists:
		return fmt.Errorf("%s: %w", st.Message(), inventory.ErrAlreadyExists)
	case codes.InvalidArgument:
		return fmt.Errorf("%s: %w", st.Message(), inventory.ErrInvalidInput)
	case codes.Aborted:
		return fmt.Errorf("%s: %w", st.Message(), inventory.ErrConflict)
	}
	return err
}
