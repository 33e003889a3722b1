package usecase

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/fekuna/omnipos-inventory-service/internal/auth"
	"github.com/fekuna/omnipos-inventory-service/internal/inventory"
	"github.com/fekuna/omnipos-inventory-service/internal/inventory/alert"
	"github.com/fekuna/omnipos-inventory-service/internal/inventory/dto"
	"github.com/fekuna/omnipos-inventory-service/internal/inventory/ledger"
	"github.com/fekuna/omnipos-inventory-service/internal/lock"
	"github.com/fekuna/omnipos-inventory-service/internal/logger"
	"github.com/fekuna/omnipos-inventory-service/internal/metrics"
	"github.com/fekuna/omnipos-inventory-service/internal/model"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

const (
	DefaultReservationTTL = 30 * time.Minute

	refTypeOrder  = "order"
	refTypeReturn = "return"
)

type inventoryUseCase struct {
	repo     inventory.Repository
	locker   lock.Locker
	logger   logger.ZapLogger
	notifier inventory.AlertNotifier
	metrics  *metrics.Metrics
	tracer   trace.Tracer
	ledger   *ledger.Ledger
	alerts   *alert.Engine
	now      func() time.Time
	ttl      time.Duration
}

type Option func(*inventoryUseCase)

func WithNotifier(n inventory.AlertNotifier) Option {
	return func(uc *inventoryUseCase) { uc.notifier = n }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(uc *inventoryUseCase) { uc.metrics = m }
}

func WithTracer(t trace.Tracer) Option {
	return func(uc *inventoryUseCase) { uc.tracer = t }
}

func WithClock(now func() time.Time) Option {
	return func(uc *inventoryUseCase) { uc.now = now }
}

// WithReservationTTL sets the lifetime of reservations created without an
// explicit TTL. Non-positive values keep the default.
func WithReservationTTL(ttl time.Duration) Option {
	return func(uc *inventoryUseCase) {
		if ttl > 0 {
			uc.ttl = ttl
		}
	}
}

// InventoryUseCase is the engine: it implements both the public use case and
// the sweep-only expiry path.
type InventoryUseCase interface {
	inventory.UseCase
	inventory.Expirer
}

func NewInventoryUseCase(repo inventory.Repository, locker lock.Locker, log logger.ZapLogger, opts ...Option) InventoryUseCase {
	uc := &inventoryUseCase{
		repo:   repo,
		locker: locker,
		logger: log,
		now:    time.Now,
		ttl:    DefaultReservationTTL,
	}
	for _, opt := range opts {
		opt(uc)
	}
	if uc.tracer == nil {
		uc.tracer = otel.Tracer("inventory-usecase")
	}
	if uc.logger == nil {
		uc.logger = logger.NewNop()
	}
	uc.ledger = ledger.New(uc.now)
	uc.alerts = alert.NewEngine(uc.now)
	return uc
}

func lockKey(key model.ItemKey) string {
	return "item:" + key.LockKey()
}

// pending is one item's share of a commit.
type pending struct {
	item                *model.InventoryItem
	create              bool
	movement            *model.StockMovement
	reservation         *inventory.ReservationWrite
	availabilityChanged bool
}

// commit evaluates alerts for every pending item and applies the batch in
// one repository call. It must run while the items' locks are held. It
// returns the alerts it raised so the caller can notify after unlocking.
func (uc *inventoryUseCase) commit(ctx context.Context, batch ...pending) ([]model.InventoryAlert, error) {
	changes := make([]*inventory.Change, 0, len(batch))
	var raised []model.InventoryAlert
	for _, p := range batch {
		var open *model.InventoryAlert
		if !p.create {
			var err error
			open, err = uc.repo.GetOpenAlert(ctx, p.item.ID)
			if err != nil {
				return nil, fmt.Errorf("load open alert: %w", err)
			}
		}
		ac := uc.alerts.Evaluate(p.item, open, p.availabilityChanged)
		if ac.Raise != nil {
			raised = append(raised, *ac.Raise)
		}
		changes = append(changes, &inventory.Change{
			Item:        p.item,
			Create:      p.create,
			Movement:    p.movement,
			Reservation: p.reservation,
			Alert:       ac,
		})
	}

	if err := uc.repo.Apply(ctx, changes...); err != nil {
		return nil, err
	}
	for _, p := range batch {
		if p.movement != nil {
			uc.metrics.ObserveMovement(string(p.movement.Type))
		}
	}
	for _, a := range raised {
		uc.metrics.ObserveAlert(string(a.Type))
	}
	return raised, nil
}

// notify runs after the critical section; delivery failures are logged and
// never undo a committed mutation.
func (uc *inventoryUseCase) notify(ctx context.Context, raised []model.InventoryAlert) {
	for _, a := range raised {
		uc.logger.Info("inventory alert raised",
			zap.String("alert_id", a.ID),
			zap.String("inventory_item_id", a.InventoryItemID),
			zap.String("type", string(a.Type)),
			zap.Int64("current_quantity", a.CurrentQuantity))
		if uc.notifier == nil {
			continue
		}
		if err := uc.notifier.NotifyAlert(ctx, a); err != nil {
			uc.logger.Error("failed to publish inventory alert", zap.String("alert_id", a.ID), zap.Error(err))
		}
	}
}

func (uc *inventoryUseCase) startSpan(ctx context.Context, op string, attrs ...attribute.KeyValue) (context.Context, func(*error)) {
	ctx, span := uc.tracer.Start(ctx, "inventory."+op, trace.WithAttributes(attrs...))
	start := time.Now()
	return ctx, func(errp *error) {
		if errp != nil && *errp != nil {
			span.RecordError(*errp)
			span.SetStatus(codes.Error, (*errp).Error())
		}
		uc.metrics.ObserveDuration(op, start)
		span.End()
	}
}

// next returns a copy of item ready to be written as its next version.
func (uc *inventoryUseCase) next(item *model.InventoryItem) *model.InventoryItem {
	n := *item
	n.Version++
	n.UpdatedAt = uc.now()
	return &n
}

// changeReserved moves only the reserved counter and records the matching
// reserved/unreserved movement. Reserved never drops below zero.
func (uc *inventoryUseCase) changeReserved(current *model.InventoryItem, delta int64, reason string, ref ledger.Reference, userID string) (*model.InventoryItem, *model.StockMovement, error) {
	after := current.ReservedQuantity + delta
	if after < 0 {
		return nil, nil, fmt.Errorf("item %s: reserved would drop to %d: %w", current.ID, after, inventory.ErrInvalidState)
	}
	movementType := model.MovementReserved
	if delta < 0 {
		movementType = model.MovementUnreserved
	}
	item := uc.next(current)
	item.SetQuantities(current.OnHandQuantity, after)
	movement, err := uc.ledger.Record(item.ID, movementType, current.ReservedQuantity, after, reason, ref, userID)
	if err != nil {
		return nil, nil, err
	}
	return item, movement, nil
}

func (uc *inventoryUseCase) InitializeInventory(ctx context.Context, input *dto.InitializeInventoryInput) (item *model.InventoryItem, err error) {
	ctx, end := uc.startSpan(ctx, "InitializeInventory", attribute.String("product_id", input.ProductID))
	defer end(&err)

	switch {
	case input.ProductID == "":
		return nil, inventory.InvalidInput("product_id is required")
	case input.VariantID != nil && *input.VariantID == "":
		return nil, inventory.InvalidInput("variant_id must not be empty when set")
	case input.InitialQuantity < 0:
		return nil, inventory.InvalidInput("initial_quantity must not be negative")
	case input.LowStockThreshold < 0, input.OverstockThreshold < 0:
		return nil, inventory.InvalidInput("thresholds must not be negative")
	}

	key := model.NewItemKey(input.ProductID, input.VariantID)
	unlock, err := uc.locker.Lock(ctx, lockKey(key))
	if err != nil {
		return nil, err
	}

	existing, err := uc.repo.GetItem(ctx, key)
	if err == nil && existing != nil {
		unlock()
		return nil, fmt.Errorf("inventory item %s: %w", key, inventory.ErrAlreadyExists)
	}
	if err != nil && !errors.Is(err, inventory.ErrNotFound) {
		unlock()
		return nil, err
	}

	now := uc.now()
	item = &model.InventoryItem{
		ID:                 uuid.New().String(),
		ProductID:          input.ProductID,
		VariantID:          input.VariantID,
		SKU:                input.SKU,
		LowStockThreshold:  input.LowStockThreshold,
		OverstockThreshold: input.OverstockThreshold,
		TrackInventory:     input.TrackInventory,
		AllowBackorder:     input.AllowBackorder,
		Version:            1,
		CreatedAt:          now,
		UpdatedAt:          now,
	}
	item.SetQuantities(input.InitialQuantity, 0)

	movement, err := uc.ledger.Record(item.ID, model.MovementReceived, 0, input.InitialQuantity,
		"initial stock", ledger.Reference{}, input.UserID)
	if err != nil {
		unlock()
		return nil, err
	}

	raised, err := uc.commit(ctx, pending{item: item, create: true, movement: movement, availabilityChanged: true})
	unlock()
	if err != nil {
		uc.logger.Error("failed to initialize inventory", zap.String("key", key.String()), zap.Error(err))
		return nil, err
	}
	uc.notify(ctx, raised)

	uc.logger.Info("inventory initialized",
		zap.String("inventory_item_id", item.ID),
		zap.String("key", key.String()),
		zap.Int64("on_hand", item.OnHandQuantity))
	return item, nil
}

func adjustMovementType(input *dto.AdjustInventoryInput) (model.MovementType, error) {
	switch input.MovementType {
	case "":
		if input.QuantityChange > 0 {
			return model.MovementReceived, nil
		}
		return model.MovementAdjusted, nil
	case model.MovementReceived:
		if input.QuantityChange < 0 {
			return "", inventory.InvalidInput("received requires a positive quantity_change")
		}
	case model.MovementDamaged, model.MovementLost:
		if input.QuantityChange > 0 {
			return "", inventory.InvalidInput("%s requires a negative quantity_change", input.MovementType)
		}
	case model.MovementAdjusted, model.MovementTransferred:
	default:
		return "", inventory.InvalidInput("movement_type %q is not allowed for adjustments", input.MovementType)
	}
	return input.MovementType, nil
}

func (uc *inventoryUseCase) AdjustInventory(ctx context.Context, input *dto.AdjustInventoryInput) (item *model.InventoryItem, err error) {
	ctx, end := uc.startSpan(ctx, "AdjustInventory",
		attribute.String("product_id", input.ProductID),
		attribute.Int64("quantity_change", input.QuantityChange))
	defer end(&err)

	if input.ProductID == "" {
		return nil, inventory.InvalidInput("product_id is required")
	}
	if input.QuantityChange == 0 {
		return nil, inventory.InvalidInput("quantity_change must not be zero")
	}
	movementType, err := adjustMovementType(input)
	if err != nil {
		return nil, err
	}

	key := model.NewItemKey(input.ProductID, input.VariantID)
	unlock, err := uc.locker.Lock(ctx, lockKey(key))
	if err != nil {
		return nil, err
	}

	current, err := uc.repo.GetItem(ctx, key)
	if err != nil {
		unlock()
		return nil, err
	}
	if !current.TrackInventory {
		unlock()
		uc.logger.Debug("adjustment skipped for untracked item", zap.String("inventory_item_id", current.ID))
		return current, nil
	}

	if input.QuantityChange < 0 && !current.AllowBackorder &&
		current.AvailableQuantity+input.QuantityChange < 0 {
		unlock()
		uc.logger.Warn("adjustment rejected",
			zap.String("inventory_item_id", current.ID),
			zap.Int64("quantity_change", input.QuantityChange),
			zap.Int64("available", current.AvailableQuantity))
		return nil, &inventory.InsufficientStockError{
			InventoryItemID: current.ID,
			Requested:       -input.QuantityChange,
			Available:       current.AvailableQuantity,
		}
	}

	item = uc.next(current)
	item.SetQuantities(current.OnHandQuantity+input.QuantityChange, current.ReservedQuantity)

	movement, err := uc.ledger.Record(item.ID, movementType, current.OnHandQuantity, item.OnHandQuantity,
		input.Reason, ledger.Reference{Type: input.ReferenceType, ID: input.ReferenceID}, input.UserID)
	if err != nil {
		unlock()
		return nil, err
	}

	raised, err := uc.commit(ctx, pending{item: item, movement: movement, availabilityChanged: true})
	unlock()
	if err != nil {
		uc.logger.Error("failed to adjust inventory", zap.String("inventory_item_id", current.ID), zap.Error(err))
		return nil, err
	}
	uc.notify(ctx, raised)

	uc.logger.Info("inventory adjusted",
		zap.String("inventory_item_id", item.ID),
		zap.String("movement_type", string(movementType)),
		zap.Int64("quantity_change", input.QuantityChange),
		zap.Int64("on_hand", item.OnHandQuantity))
	return item, nil
}

func (uc *inventoryUseCase) GetInventory(ctx context.Context, productID string, variantID *string) (*model.InventoryItem, error) {
	if productID == "" {
		return nil, inventory.InvalidInput("product_id is required")
	}
	return uc.repo.GetItem(ctx, model.NewItemKey(productID, variantID))
}

func (uc *inventoryUseCase) ListInventory(ctx context.Context, filters *dto.InventoryFilters) ([]model.InventoryItem, int, error) {
	return uc.repo.ListItems(ctx, filters)
}

// reserveLine validates one reservation against a locked item. Untracked
// items get a bypassed reservation and no pending write.
func (uc *inventoryUseCase) reserveLine(item *model.InventoryItem, orderID string, quantity int64, expiresAt time.Time, userID string) (*model.StockReservation, *pending, error) {
	now := uc.now()
	res := &model.StockReservation{
		ID:              uuid.New().String(),
		InventoryItemID: item.ID,
		OrderID:         orderID,
		Quantity:        quantity,
		Status:          model.ReservationActive,
		ExpiresAt:       expiresAt,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	if !item.TrackInventory {
		res.Bypassed = true
		return res, nil, nil
	}

	if item.AvailableQuantity < quantity {
		if !item.AllowBackorder {
			return nil, nil, &inventory.InsufficientStockError{
				InventoryItemID: item.ID,
				Requested:       quantity,
				Available:       item.AvailableQuantity,
			}
		}
		res.Backorder = true
	}

	next, movement, err := uc.changeReserved(item, quantity,
		"reservation "+res.ID, ledger.Reference{Type: refTypeOrder, ID: orderID}, userID)
	if err != nil {
		return nil, nil, err
	}
	return res, &pending{
		item:                next,
		movement:            movement,
		reservation:         &inventory.ReservationWrite{Reservation: res},
		availabilityChanged: true,
	}, nil
}

func (uc *inventoryUseCase) expiry(ttl time.Duration) time.Time {
	if ttl <= 0 {
		ttl = uc.ttl
	}
	return uc.now().Add(ttl)
}

func (uc *inventoryUseCase) ReserveStock(ctx context.Context, input *dto.ReserveStockInput) (res *model.StockReservation, err error) {
	ctx, end := uc.startSpan(ctx, "ReserveStock",
		attribute.String("product_id", input.ProductID),
		attribute.String("order_id", input.OrderID),
		attribute.Int64("quantity", input.Quantity))
	defer end(&err)

	switch {
	case input.ProductID == "":
		return nil, inventory.InvalidInput("product_id is required")
	case input.OrderID == "":
		return nil, inventory.InvalidInput("order_id is required")
	case input.Quantity <= 0:
		return nil, inventory.InvalidInput("quantity must be positive")
	}

	key := model.NewItemKey(input.ProductID, input.VariantID)
	unlock, err := uc.locker.Lock(ctx, lockKey(key))
	if err != nil {
		return nil, err
	}

	item, err := uc.repo.GetItem(ctx, key)
	if err != nil {
		unlock()
		return nil, err
	}

	res, p, err := uc.reserveLine(item, input.OrderID, input.Quantity, uc.expiry(input.TTL), input.UserID)
	if err != nil {
		unlock()
		uc.metrics.ObserveReservation("rejected")
		uc.logger.Warn("reservation rejected",
			zap.String("inventory_item_id", item.ID),
			zap.String("order_id", input.OrderID),
			zap.Int64("quantity", input.Quantity),
			zap.Error(err))
		return nil, err
	}
	if p == nil {
		unlock()
		uc.metrics.ObserveReservation("bypassed")
		return res, nil
	}

	raised, err := uc.commit(ctx, *p)
	unlock()
	if err != nil {
		uc.metrics.ObserveReservation("failed")
		uc.logger.Error("failed to reserve stock", zap.String("inventory_item_id", item.ID), zap.Error(err))
		return nil, err
	}
	uc.notify(ctx, raised)
	uc.metrics.ObserveReservation("reserved")

	uc.logger.Info("stock reserved",
		zap.String("reservation_id", res.ID),
		zap.String("inventory_item_id", item.ID),
		zap.String("order_id", input.OrderID),
		zap.Int64("quantity", input.Quantity),
		zap.Bool("backorder", res.Backorder))
	return res, nil
}

func (uc *inventoryUseCase) ReserveCart(ctx context.Context, input *dto.ReserveCartInput) (out []model.StockReservation, err error) {
	ctx, end := uc.startSpan(ctx, "ReserveCart",
		attribute.String("order_id", input.OrderID),
		attribute.Int("lines", len(input.Lines)))
	defer end(&err)

	if input.OrderID == "" {
		return nil, inventory.InvalidInput("order_id is required")
	}
	if len(input.Lines) == 0 {
		return nil, inventory.InvalidInput("cart has no lines")
	}

	keys := make([]model.ItemKey, len(input.Lines))
	lockKeys := make([]string, len(input.Lines))
	seen := make(map[model.ItemKey]bool, len(input.Lines))
	for i, line := range input.Lines {
		if line.ProductID == "" {
			return nil, inventory.InvalidInput("line %d: product_id is required", i)
		}
		if line.Quantity <= 0 {
			return nil, inventory.InvalidInput("line %d: quantity must be positive", i)
		}
		keys[i] = model.NewItemKey(line.ProductID, line.VariantID)
		if seen[keys[i]] {
			return nil, inventory.InvalidInput("line %d: duplicate item %s", i, keys[i])
		}
		seen[keys[i]] = true
		lockKeys[i] = lockKey(keys[i])
	}

	unlock, err := lock.LockAll(ctx, uc.locker, lockKeys)
	if err != nil {
		return nil, err
	}

	expiresAt := uc.expiry(input.TTL)
	batch := make([]pending, 0, len(input.Lines))
	out = make([]model.StockReservation, 0, len(input.Lines))
	for i, line := range input.Lines {
		item, err := uc.repo.GetItem(ctx, keys[i])
		if err != nil {
			unlock()
			return nil, err
		}
		res, p, err := uc.reserveLine(item, input.OrderID, line.Quantity, expiresAt, input.UserID)
		if err != nil {
			unlock()
			uc.metrics.ObserveReservation("rejected")
			uc.logger.Warn("cart reservation rejected",
				zap.String("order_id", input.OrderID),
				zap.String("key", keys[i].String()),
				zap.Error(err))
			return nil, err
		}
		if p != nil {
			batch = append(batch, *p)
		}
		out = append(out, *res)
	}

	var raised []model.InventoryAlert
	if len(batch) > 0 {
		raised, err = uc.commit(ctx, batch...)
	}
	unlock()
	if err != nil {
		uc.metrics.ObserveReservation("failed")
		uc.logger.Error("failed to reserve cart", zap.String("order_id", input.OrderID), zap.Error(err))
		return nil, err
	}
	uc.notify(ctx, raised)
	uc.metrics.ObserveReservation("reserved")

	uc.logger.Info("cart reserved", zap.String("order_id", input.OrderID), zap.Int("lines", len(out)))
	return out, nil
}

// transition moves an active reservation to a terminal status and notifies
// raised alerts once the item's lock is released. A reservation that is no
// longer active yields (current, false) with no write.
func (uc *inventoryUseCase) transition(ctx context.Context, reservationID string, to model.ReservationStatus, userID string) (*model.StockReservation, bool, error) {
	if reservationID == "" {
		return nil, false, inventory.InvalidInput("reservation_id is required")
	}
	res, raised, changed, err := uc.transitionLocked(ctx, reservationID, to, userID)
	if err != nil {
		return nil, false, err
	}
	uc.notify(ctx, raised)
	return res, changed, nil
}

func (uc *inventoryUseCase) transitionLocked(ctx context.Context, reservationID string, to model.ReservationStatus, userID string) (*model.StockReservation, []model.InventoryAlert, bool, error) {

	res, err := uc.repo.GetReservation(ctx, reservationID)
	if err != nil {
		return nil, nil, false, err
	}
	if res.Status != model.ReservationActive {
		return res, nil, false, nil
	}
	owner, err := uc.repo.GetItemByID(ctx, res.InventoryItemID)
	if err != nil {
		return nil, nil, false, err
	}

	unlock, err := uc.locker.Lock(ctx, lockKey(owner.Key()))
	if err != nil {
		return nil, nil, false, err
	}
	defer unlock()

	// Re-read under the lock; a concurrent transition may have won.
	res, err = uc.repo.GetReservation(ctx, reservationID)
	if err != nil {
		return nil, nil, false, err
	}
	if res.Status != model.ReservationActive {
		return res, nil, false, nil
	}
	current, err := uc.repo.GetItemByID(ctx, res.InventoryItemID)
	if err != nil {
		return nil, nil, false, err
	}

	var (
		item     *model.InventoryItem
		movement *model.StockMovement
	)
	ref := ledger.Reference{Type: refTypeOrder, ID: res.OrderID}
	if to == model.ReservationCompleted {
		item = uc.next(current)
		item.SetQuantities(current.OnHandQuantity-res.Quantity, current.ReservedQuantity-res.Quantity)
		movement, err = uc.ledger.Record(item.ID, model.MovementSold, current.OnHandQuantity, item.OnHandQuantity,
			"reservation "+res.ID+" completed", ref, userID)
	} else {
		item, movement, err = uc.changeReserved(current, -res.Quantity, "reservation "+res.ID+" "+string(to), ref, userID)
	}
	if err != nil {
		return nil, nil, false, err
	}

	updated := *res
	updated.Status = to
	updated.UpdatedAt = uc.now()

	raised, err := uc.commit(ctx, pending{
		item:                item,
		movement:            movement,
		reservation:         &inventory.ReservationWrite{Reservation: &updated, From: model.ReservationActive},
		availabilityChanged: item.AvailableQuantity != current.AvailableQuantity,
	})
	if err != nil {
		return nil, nil, false, err
	}
	return &updated, raised, true, nil
}

func (uc *inventoryUseCase) CompleteReservation(ctx context.Context, reservationID string) (res *model.StockReservation, err error) {
	ctx, end := uc.startSpan(ctx, "CompleteReservation", attribute.String("reservation_id", reservationID))
	defer end(&err)

	res, changed, err := uc.transition(ctx, reservationID, model.ReservationCompleted, auth.GetUserID(ctx))
	if err != nil {
		return nil, err
	}
	if !changed {
		return nil, fmt.Errorf("reservation %s is %s: %w", res.ID, res.Status, inventory.ErrInvalidState)
	}
	uc.metrics.ObserveReservation("completed")
	uc.logger.Info("reservation completed",
		zap.String("reservation_id", res.ID),
		zap.String("order_id", res.OrderID),
		zap.Int64("quantity", res.Quantity))
	return res, nil
}

// CancelReservation succeeds without effect on a reservation that already
// left active.
func (uc *inventoryUseCase) CancelReservation(ctx context.Context, reservationID string) (res *model.StockReservation, err error) {
	ctx, end := uc.startSpan(ctx, "CancelReservation", attribute.String("reservation_id", reservationID))
	defer end(&err)

	res, changed, err := uc.transition(ctx, reservationID, model.ReservationCancelled, auth.GetUserID(ctx))
	if err != nil {
		return nil, err
	}
	if changed {
		uc.metrics.ObserveReservation("cancelled")
		uc.logger.Info("reservation cancelled", zap.String("reservation_id", res.ID), zap.String("order_id", res.OrderID))
	}
	return res, nil
}

func (uc *inventoryUseCase) ExpireReservation(ctx context.Context, reservationID string) (res *model.StockReservation, err error) {
	ctx, end := uc.startSpan(ctx, "ExpireReservation", attribute.String("reservation_id", reservationID))
	defer end(&err)

	res, changed, err := uc.transition(ctx, reservationID, model.ReservationExpired, "")
	if err != nil {
		return nil, err
	}
	if changed {
		uc.metrics.ObserveExpired(1)
		uc.logger.Info("reservation expired", zap.String("reservation_id", res.ID), zap.String("order_id", res.OrderID))
	}
	return res, nil
}

func (uc *inventoryUseCase) ListExpiredReservations(ctx context.Context, before time.Time, limit int) ([]model.StockReservation, error) {
	out, _, err := uc.repo.ListReservations(ctx, &dto.ReservationFilters{
		Status:        model.ReservationActive,
		ExpiresBefore: &before,
		Page:          1,
		PageSize:      limit,
	})
	return out, err
}

func (uc *inventoryUseCase) GetReservation(ctx context.Context, reservationID string) (*model.StockReservation, error) {
	if reservationID == "" {
		return nil, inventory.InvalidInput("reservation_id is required")
	}
	return uc.repo.GetReservation(ctx, reservationID)
}

func (uc *inventoryUseCase) ListReservations(ctx context.Context, filters *dto.ReservationFilters) ([]model.StockReservation, int, error) {
	return uc.repo.ListReservations(ctx, filters)
}

func (uc *inventoryUseCase) ProcessReturn(ctx context.Context, input *dto.ProcessReturnInput) (item *model.InventoryItem, err error) {
	ctx, end := uc.startSpan(ctx, "ProcessReturn",
		attribute.String("product_id", input.ProductID),
		attribute.String("order_id", input.OrderID))
	defer end(&err)

	switch {
	case input.ProductID == "":
		return nil, inventory.InvalidInput("product_id is required")
	case input.OrderID == "":
		return nil, inventory.InvalidInput("order_id is required")
	case input.Quantity <= 0:
		return nil, inventory.InvalidInput("quantity must be positive")
	}

	key := model.NewItemKey(input.ProductID, input.VariantID)
	unlock, err := uc.locker.Lock(ctx, lockKey(key))
	if err != nil {
		return nil, err
	}

	current, err := uc.repo.GetItem(ctx, key)
	if err != nil {
		unlock()
		return nil, err
	}
	if !current.TrackInventory {
		unlock()
		uc.logger.Debug("return skipped for untracked item", zap.String("inventory_item_id", current.ID))
		return current, nil
	}

	item = uc.next(current)
	item.SetQuantities(current.OnHandQuantity+input.Quantity, current.ReservedQuantity)
	reason := input.Reason
	if reason == "" {
		reason = "customer return"
	}
	movement, err := uc.ledger.Record(item.ID, model.MovementReturned, current.OnHandQuantity, item.OnHandQuantity,
		reason, ledger.Reference{Type: refTypeReturn, ID: input.OrderID}, input.UserID)
	if err != nil {
		unlock()
		return nil, err
	}

	raised, err := uc.commit(ctx, pending{item: item, movement: movement, availabilityChanged: true})
	unlock()
	if err != nil {
		uc.logger.Error("failed to process return", zap.String("inventory_item_id", current.ID), zap.Error(err))
		return nil, err
	}
	uc.notify(ctx, raised)

	uc.logger.Info("return processed",
		zap.String("inventory_item_id", item.ID),
		zap.String("order_id", input.OrderID),
		zap.Int64("quantity", input.Quantity))
	return item, nil
}

func (uc *inventoryUseCase) ListMovements(ctx context.Context, filters *dto.MovementFilters) ([]model.StockMovement, int, error) {
	if filters.MovementType != "" && !filters.MovementType.Valid() {
		return nil, 0, inventory.InvalidInput("unknown movement_type %q", filters.MovementType)
	}
	return uc.repo.ListMovements(ctx, filters)
}

func (uc *inventoryUseCase) ListAlerts(ctx context.Context, filters *dto.AlertFilters) ([]model.InventoryAlert, int, error) {
	return uc.repo.ListAlerts(ctx, filters)
}

func (uc *inventoryUseCase) AcknowledgeAlert(ctx context.Context, alertID, userID string) (*model.InventoryAlert, error) {
	if alertID == "" {
		return nil, inventory.InvalidInput("alert_id is required")
	}
	if userID == "" {
		return nil, inventory.InvalidInput("user_id is required")
	}
	a, err := uc.repo.AcknowledgeAlert(ctx, alertID, userID, uc.now())
	if err != nil {
		return nil, err
	}
	uc.logger.Info("alert acknowledged", zap.String("alert_id", a.ID), zap.String("user_id", userID))
	return a, nil
}

const reconcilePageSize = 200

// ReconcileAlerts brings every item's open alert in line with its current
// availability, for items whose thresholds changed or whose last evaluation
// was lost. It writes no movement and returns the number of items updated.
func (uc *inventoryUseCase) ReconcileAlerts(ctx context.Context) (n int, err error) {
	ctx, end := uc.startSpan(ctx, "ReconcileAlerts")
	defer end(&err)

	// Keyset paging by id: mutations during the walk do not reorder it.
	var items []model.InventoryItem
	after := ""
	for {
		batch, _, err := uc.repo.ListItems(ctx, &dto.InventoryFilters{
			ByID:     true,
			AfterID:  after,
			Page:     1,
			PageSize: reconcilePageSize,
		})
		if err != nil {
			return 0, err
		}
		items = append(items, batch...)
		if len(batch) < reconcilePageSize {
			break
		}
		after = batch[len(batch)-1].ID
	}

	var raised []model.InventoryAlert
	for _, listed := range items {
		if err := ctx.Err(); err != nil {
			return n, err
		}
		changed, alerts, err := uc.reconcileItem(ctx, listed.Key())
		if err != nil {
			uc.logger.Warn("alert reconciliation skipped item", zap.String("inventory_item_id", listed.ID), zap.Error(err))
			continue
		}
		if changed {
			n++
			raised = append(raised, alerts...)
		}
	}
	uc.notify(ctx, raised)

	uc.logger.Info("alerts reconciled", zap.Int("items", len(items)), zap.Int("updated", n))
	return n, nil
}

func (uc *inventoryUseCase) reconcileItem(ctx context.Context, key model.ItemKey) (bool, []model.InventoryAlert, error) {
	unlock, err := uc.locker.Lock(ctx, lockKey(key))
	if err != nil {
		return false, nil, err
	}
	defer unlock()

	item, err := uc.repo.GetItem(ctx, key)
	if err != nil {
		return false, nil, err
	}
	open, err := uc.repo.GetOpenAlert(ctx, item.ID)
	if err != nil {
		return false, nil, err
	}
	// With no open alert, raise only if the history does not already
	// report this state.
	ac := uc.alerts.Evaluate(item, open, open == nil && uc.needsAlert(ctx, item))
	if ac.Empty() {
		return false, nil, nil
	}
	if err := uc.repo.Apply(ctx, &inventory.Change{Alert: ac}); err != nil {
		return false, nil, err
	}
	var raised []model.InventoryAlert
	if ac.Raise != nil {
		raised = append(raised, *ac.Raise)
		uc.metrics.ObserveAlert(string(ac.Raise.Type))
	}
	return true, raised, nil
}

// needsAlert reports whether item has no alert at all, acknowledged or not,
// that matches its current state. Acknowledged alerts for the same type and
// quantity are not raised again.
func (uc *inventoryUseCase) needsAlert(ctx context.Context, item *model.InventoryItem) bool {
	t, _, ok := alert.Classify(item)
	if !ok || !item.TrackInventory {
		return false
	}
	history, _, err := uc.repo.ListAlerts(ctx, &dto.AlertFilters{InventoryItemID: item.ID, Page: 1, PageSize: 1})
	if err != nil {
		return false
	}
	if len(history) == 0 {
		return true
	}
	last := history[0]
	return last.Type != t || last.CurrentQuantity != item.AvailableQuantity
}
