package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/fekuna/omnipos-inventory-service/internal/inventory"
	"github.com/fekuna/omnipos-inventory-service/internal/inventory/dto"
	"github.com/fekuna/omnipos-inventory-service/internal/model"
	"github.com/jmoiron/sqlx"
)

// Schema creates the tables the repository expects. available_quantity is a
// generated column and never written.
const Schema = `
CREATE TABLE IF NOT EXISTS inventory_items (
    id                  UUID PRIMARY KEY,
    product_id          TEXT NOT NULL,
    variant_id          TEXT,
    sku                 TEXT NOT NULL DEFAULT '',
    on_hand_quantity    BIGINT NOT NULL DEFAULT 0,
    reserved_quantity   BIGINT NOT NULL DEFAULT 0 CHECK (reserved_quantity >= 0),
    available_quantity  BIGINT GENERATED ALWAYS AS (on_hand_quantity - reserved_quantity) STORED,
    low_stock_threshold BIGINT NOT NULL DEFAULT 0,
    overstock_threshold BIGINT NOT NULL DEFAULT 0,
    track_inventory     BOOLEAN NOT NULL DEFAULT TRUE,
    allow_backorder     BOOLEAN NOT NULL DEFAULT FALSE,
    version             BIGINT NOT NULL DEFAULT 1,
    created_at          TIMESTAMPTZ NOT NULL,
    updated_at          TIMESTAMPTZ NOT NULL
);
CREATE UNIQUE INDEX IF NOT EXISTS inventory_items_key_idx
    ON inventory_items (product_id, COALESCE(variant_id, ''));

CREATE TABLE IF NOT EXISTS stock_movements (
    id                UUID PRIMARY KEY,
    inventory_item_id UUID NOT NULL REFERENCES inventory_items (id),
    movement_type     TEXT NOT NULL,
    delta_quantity    BIGINT NOT NULL,
    quantity_before   BIGINT NOT NULL,
    quantity_after    BIGINT NOT NULL,
    reason            TEXT NOT NULL DEFAULT '',
    reference_type    TEXT,
    reference_id      TEXT,
    created_by        TEXT,
    created_at        TIMESTAMPTZ NOT NULL
);
CREATE INDEX IF NOT EXISTS stock_movements_item_idx ON stock_movements (inventory_item_id, created_at DESC);

CREATE TABLE IF NOT EXISTS stock_reservations (
    id                UUID PRIMARY KEY,
    inventory_item_id UUID NOT NULL REFERENCES inventory_items (id),
    order_id          TEXT NOT NULL,
    quantity          BIGINT NOT NULL CHECK (quantity > 0),
    backorder         BOOLEAN NOT NULL DEFAULT FALSE,
    status            TEXT NOT NULL,
    expires_at        TIMESTAMPTZ NOT NULL,
    created_at        TIMESTAMPTZ NOT NULL,
    updated_at        TIMESTAMPTZ NOT NULL
);
CREATE INDEX IF NOT EXISTS stock_reservations_order_idx ON stock_reservations (order_id);
CREATE INDEX IF NOT EXISTS stock_reservations_active_idx ON stock_reservations (expires_at) WHERE status = 'active';

CREATE TABLE IF NOT EXISTS inventory_alerts (
    id                UUID PRIMARY KEY,
    inventory_item_id UUID NOT NULL REFERENCES inventory_items (id),
    alert_type        TEXT NOT NULL,
    threshold         BIGINT NOT NULL,
    current_quantity  BIGINT NOT NULL,
    acknowledged      BOOLEAN NOT NULL DEFAULT FALSE,
    acknowledged_by   TEXT,
    acknowledged_at   TIMESTAMPTZ,
    created_at        TIMESTAMPTZ NOT NULL
);
CREATE UNIQUE INDEX IF NOT EXISTS inventory_alerts_open_idx
    ON inventory_alerts (inventory_item_id) WHERE acknowledged = FALSE;
`

const (
	insertItemQuery = `
        INSERT INTO inventory_items (
            id, product_id, variant_id, sku,
            on_hand_quantity, reserved_quantity, low_stock_threshold, overstock_threshold,
            track_inventory, allow_backorder, version, created_at, updated_at
        )
        VALUES (
            :id, :product_id, :variant_id, :sku,
            :on_hand_quantity, :reserved_quantity, :low_stock_threshold, :overstock_threshold,
            :track_inventory, :allow_backorder, :version, :created_at, :updated_at
        )
        ON CONFLICT DO NOTHING
    `

	updateItemQuery = `
        UPDATE inventory_items
        SET on_hand_quantity = $1, reserved_quantity = $2, version = $3, updated_at = $4
        WHERE id = $5 AND version = $6
    `

	insertMovementQuery = `
        INSERT INTO stock_movements (
            id, inventory_item_id, movement_type, delta_quantity, quantity_before, quantity_after,
            reason, reference_type, reference_id, created_by, created_at
        )
        VALUES (
            :id, :inventory_item_id, :movement_type, :delta_quantity, :quantity_before, :quantity_after,
            :reason, :reference_type, :reference_id, :created_by, :created_at
        )
    `

	insertReservationQuery = `
        INSERT INTO stock_reservations (
            id, inventory_item_id, order_id, quantity, backorder, status, expires_at, created_at, updated_at
        )
        VALUES (
            :id, :inventory_item_id, :order_id, :quantity, :backorder, :status, :expires_at, :created_at, :updated_at
        )
    `

	transitionReservationQuery = `
        UPDATE stock_reservations SET status = $1, updated_at = $2
        WHERE id = $3 AND status = $4
    `

	deleteOpenAlertQuery = `DELETE FROM inventory_alerts WHERE inventory_item_id = $1 AND acknowledged = FALSE`

	insertAlertQuery = `
        INSERT INTO inventory_alerts (
            id, inventory_item_id, alert_type, threshold, current_quantity, acknowledged, created_at
        )
        VALUES (
            :id, :inventory_item_id, :alert_type, :threshold, :current_quantity, :acknowledged, :created_at
        )
    `
)

type PGRepository struct {
	DB *sqlx.DB
}

func NewPGRepository(db *sqlx.DB) *PGRepository {
	return &PGRepository{DB: db}
}

func (r *PGRepository) Migrate(ctx context.Context) error {
	if _, err := r.DB.ExecContext(ctx, Schema); err != nil {
		return fmt.Errorf("apply schema: %w", err)
	}
	return nil
}

func (r *PGRepository) GetItem(ctx context.Context, key model.ItemKey) (*model.InventoryItem, error) {
	var item model.InventoryItem
	query := `SELECT * FROM inventory_items WHERE product_id = $1 AND COALESCE(variant_id, '') = $2`
	if err := r.DB.GetContext(ctx, &item, query, key.ProductID, key.VariantID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("inventory item %s: %w", key, inventory.ErrNotFound)
		}
		return nil, err
	}
	return &item, nil
}

func (r *PGRepository) GetItemByID(ctx context.Context, id string) (*model.InventoryItem, error) {
	var item model.InventoryItem
	if err := r.DB.GetContext(ctx, &item, `SELECT * FROM inventory_items WHERE id = $1`, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("inventory item %s: %w", id, inventory.ErrNotFound)
		}
		return nil, err
	}
	return &item, nil
}

func (r *PGRepository) ListItems(ctx context.Context, f *dto.InventoryFilters) ([]model.InventoryItem, int, error) {
	conditions := []string{}
	args := map[string]interface{}{}

	if f.ProductID != "" {
		conditions = append(conditions, "product_id = :product_id")
		args["product_id"] = f.ProductID
	}
	if f.LowStock {
		conditions = append(conditions, "track_inventory AND available_quantity <= low_stock_threshold")
	}
	if f.AfterID != "" {
		conditions = append(conditions, "id > :after_id")
		args["after_id"] = f.AfterID
	}
	orderBy := "updated_at DESC, id"
	if f.ByID {
		orderBy = "id"
	}

	var items []model.InventoryItem
	count, err := r.list(ctx, &items, "inventory_items", conditions, args, orderBy, f.Page, f.PageSize)
	return items, count, err
}

func (r *PGRepository) GetReservation(ctx context.Context, id string) (*model.StockReservation, error) {
	var res model.StockReservation
	if err := r.DB.GetContext(ctx, &res, `SELECT * FROM stock_reservations WHERE id = $1`, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("reservation %s: %w", id, inventory.ErrNotFound)
		}
		return nil, err
	}
	return &res, nil
}

func (r *PGRepository) ListReservations(ctx context.Context, f *dto.ReservationFilters) ([]model.StockReservation, int, error) {
	conditions := []string{}
	args := map[string]interface{}{}

	if f.InventoryItemID != "" {
		conditions = append(conditions, "inventory_item_id = :inventory_item_id")
		args["inventory_item_id"] = f.InventoryItemID
	}
	if f.OrderID != "" {
		conditions = append(conditions, "order_id = :order_id")
		args["order_id"] = f.OrderID
	}
	if f.Status != "" {
		conditions = append(conditions, "status = :status")
		args["status"] = string(f.Status)
	}
	if f.ExpiresBefore != nil {
		conditions = append(conditions, "expires_at < :expires_before")
		args["expires_before"] = *f.ExpiresBefore
	}

	var out []model.StockReservation
	count, err := r.list(ctx, &out, "stock_reservations", conditions, args, "created_at, id", f.Page, f.PageSize)
	return out, count, err
}

func (r *PGRepository) ListMovements(ctx context.Context, f *dto.MovementFilters) ([]model.StockMovement, int, error) {
	conditions := []string{}
	args := map[string]interface{}{}

	if f.InventoryItemID != "" {
		conditions = append(conditions, "inventory_item_id = :inventory_item_id")
		args["inventory_item_id"] = f.InventoryItemID
	}
	if f.MovementType != "" {
		conditions = append(conditions, "movement_type = :movement_type")
		args["movement_type"] = string(f.MovementType)
	}
	if f.ReferenceID != "" {
		conditions = append(conditions, "reference_id = :reference_id")
		args["reference_id"] = f.ReferenceID
	}
	if f.StartDate != nil {
		conditions = append(conditions, "created_at >= :start_date")
		args["start_date"] = *f.StartDate
	}
	if f.EndDate != nil {
		conditions = append(conditions, "created_at <= :end_date")
		args["end_date"] = *f.EndDate
	}

	var out []model.StockMovement
	count, err := r.list(ctx, &out, "stock_movements", conditions, args, "created_at DESC, id DESC", f.Page, f.PageSize)
	return out, count, err
}

func (r *PGRepository) GetAlert(ctx context.Context, id string) (*model.InventoryAlert, error) {
	var a model.InventoryAlert
	if err := r.DB.GetContext(ctx, &a, `SELECT * FROM inventory_alerts WHERE id = $1`, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("alert %s: %w", id, inventory.ErrNotFound)
		}
		return nil, err
	}
	return &a, nil
}

func (r *PGRepository) GetOpenAlert(ctx context.Context, itemID string) (*model.InventoryAlert, error) {
	var a model.InventoryAlert
	query := `SELECT * FROM inventory_alerts WHERE inventory_item_id = $1 AND acknowledged = FALSE`
	if err := r.DB.GetContext(ctx, &a, query, itemID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &a, nil
}

func (r *PGRepository) ListAlerts(ctx context.Context, f *dto.AlertFilters) ([]model.InventoryAlert, int, error) {
	conditions := []string{}
	args := map[string]interface{}{}

	if f.InventoryItemID != "" {
		conditions = append(conditions, "inventory_item_id = :inventory_item_id")
		args["inventory_item_id"] = f.InventoryItemID
	}
	if f.Type != "" {
		conditions = append(conditions, "alert_type = :alert_type")
		args["alert_type"] = string(f.Type)
	}
	if f.Unacknowledged {
		conditions = append(conditions, "acknowledged = FALSE")
	}

	var out []model.InventoryAlert
	count, err := r.list(ctx, &out, "inventory_alerts", conditions, args, "created_at DESC, id", f.Page, f.PageSize)
	return out, count, err
}

// AcknowledgeAlert leaves already acknowledged alerts untouched.
func (r *PGRepository) AcknowledgeAlert(ctx context.Context, id, userID string, at time.Time) (*model.InventoryAlert, error) {
	query := `
        UPDATE inventory_alerts SET acknowledged = TRUE, acknowledged_by = $2, acknowledged_at = $3
        WHERE id = $1 AND acknowledged = FALSE
    `
	if _, err := r.DB.ExecContext(ctx, query, id, userID, at); err != nil {
		return nil, fmt.Errorf("failed to acknowledge alert: %w", err)
	}
	return r.GetAlert(ctx, id)
}

func (r *PGRepository) Apply(ctx context.Context, changes ...*inventory.Change) error {
	tx, err := r.DB.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	for _, c := range changes {
		if err := applyChange(ctx, tx, c); err != nil {
			return err
		}
	}

	return tx.Commit()
}

func applyChange(ctx context.Context, tx *sqlx.Tx, c *inventory.Change) error {
	// 1. Counters
	if c.Item != nil {
		if c.Create {
			res, err := tx.NamedExecContext(ctx, insertItemQuery, c.Item)
			if err != nil {
				return fmt.Errorf("failed to insert inventory item: %w", err)
			}
			if n, _ := res.RowsAffected(); n == 0 {
				return fmt.Errorf("inventory item %s: %w", c.Item.Key(), inventory.ErrAlreadyExists)
			}
		} else {
			res, err := tx.ExecContext(ctx, updateItemQuery,
				c.Item.OnHandQuantity, c.Item.ReservedQuantity, c.Item.Version, c.Item.UpdatedAt,
				c.Item.ID, c.Item.Version-1)
			if err != nil {
				return fmt.Errorf("failed to update inventory item: %w", err)
			}
			if n, _ := res.RowsAffected(); n == 0 {
				return fmt.Errorf("inventory item %s: %w", c.Item.ID, inventory.ErrConflict)
			}
		}
	}

	// 2. Ledger
	if c.Movement != nil {
		if _, err := tx.NamedExecContext(ctx, insertMovementQuery, c.Movement); err != nil {
			return fmt.Errorf("failed to log movement: %w", err)
		}
	}

	// 3. Reservation
	if w := c.Reservation; w != nil {
		if w.From == "" {
			if _, err := tx.NamedExecContext(ctx, insertReservationQuery, w.Reservation); err != nil {
				return fmt.Errorf("failed to insert reservation: %w", err)
			}
		} else {
			res, err := tx.ExecContext(ctx, transitionReservationQuery,
				string(w.Reservation.Status), w.Reservation.UpdatedAt, w.Reservation.ID, string(w.From))
			if err != nil {
				return fmt.Errorf("failed to update reservation: %w", err)
			}
			if n, _ := res.RowsAffected(); n == 0 {
				return fmt.Errorf("reservation %s is no longer %s: %w", w.Reservation.ID, w.From, inventory.ErrInvalidState)
			}
		}
	}

	// 4. Alerts
	if c.Alert.Clear || c.Alert.Raise != nil {
		if _, err := tx.ExecContext(ctx, deleteOpenAlertQuery, c.Alert.InventoryItemID); err != nil {
			return fmt.Errorf("failed to clear alert: %w", err)
		}
	}
	if c.Alert.Raise != nil {
		if _, err := tx.NamedExecContext(ctx, insertAlertQuery, c.Alert.Raise); err != nil {
			return fmt.Errorf("failed to raise alert: %w", err)
		}
	}
	return nil
}

// list runs the count and page queries shared by every List method.
func (r *PGRepository) list(ctx context.Context, dest interface{}, table string, conditions []string, args map[string]interface{}, orderBy string, page, pageSize int) (int, error) {
	whereClause := ""
	if len(conditions) > 0 {
		whereClause = " WHERE " + strings.Join(conditions, " AND ")
	}

	var count int
	countQuery := "SELECT count(*) FROM " + table + whereClause
	rows, err := r.DB.NamedQueryContext(ctx, countQuery, args)
	if err != nil {
		return 0, err
	}
	if rows.Next() {
		if err := rows.Scan(&count); err != nil {
			rows.Close()
			return 0, err
		}
	}
	rows.Close()

	query := "SELECT * FROM " + table + whereClause + " ORDER BY " + orderBy
	if pageSize > 0 {
		if page < 1 {
			page = 1
		}
		query += fmt.Sprintf(" LIMIT %d OFFSET %d", pageSize, (page-1)*pageSize)
	}

	nstmt, err := r.DB.PrepareNamedContext(ctx, query)
	if err != nil {
		return 0, err
	}
	defer nstmt.Close()

	if err := nstmt.SelectContext(ctx, dest, args); err != nil {
		return 0, err
	}
	return count, nil
}
