package listener

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/fekuna/omnipos-inventory-service/internal/inventory"
	"github.com/fekuna/omnipos-inventory-service/internal/inventory/dto"
	"github.com/fekuna/omnipos-inventory-service/internal/inventory/jobs"
	"github.com/fekuna/omnipos-inventory-service/internal/logger"
	"github.com/fekuna/omnipos-inventory-service/internal/model"
	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

const (
	EventOrderPlaced    = "OrderPlaced"
	EventOrderCreated   = "OrderCreated" // older producers
	EventOrderPaid      = "OrderPaid"
	EventOrderCancelled = "OrderCancelled"
	EventOrderReturned  = "OrderReturned"
	EventStockReceived  = "StockReceived"

	systemUser = "system"
)

// Consumer is satisfied by *kafka.Reader.
type Consumer interface {
	ReadMessage(ctx context.Context) (kafka.Message, error)
	Close() error
}

type JobSubmitter interface {
	Submit(job jobs.Job) error
}

type InventoryListener struct {
	consumer Consumer
	uc       inventory.UseCase
	jobs     JobSubmitter
	logger   logger.ZapLogger
}

func NewInventoryListener(consumer Consumer, uc inventory.UseCase, submitter JobSubmitter, logger logger.ZapLogger) *InventoryListener {
	return &InventoryListener{
		consumer: consumer,
		uc:       uc,
		jobs:     submitter,
		logger:   logger,
	}
}

// NewKafkaReader builds the order events reader.
func NewKafkaReader(brokers []string, topic, groupID string) *kafka.Reader {
	return kafka.NewReader(kafka.ReaderConfig{
		Brokers: brokers,
		Topic:   topic,
		GroupID: groupID,
	})
}

func (l *InventoryListener) Start(ctx context.Context) {
	l.logger.Info("Starting Inventory Kafka Listener")
	for {
		select {
		case <-ctx.Done():
			l.logger.Info("Stopping Inventory Kafka Listener")
			return
		default:
			msg, err := l.consumer.ReadMessage(ctx)
			if err != nil {
				// Don't log context canceled error as error
				if ctx.Err() != nil {
					return
				}
				l.logger.Error("Failed to read kafka message", zap.Error(err))
				time.Sleep(1 * time.Second)
				continue
			}
			if err := l.processMessage(ctx, msg.Value); err != nil {
				l.logger.Error("Failed to process order event",
					zap.Int64("offset", msg.Offset),
					zap.Error(err))
			}
		}
	}
}

type OrderEvent struct {
	EventID   string       `json:"event_id"`
	EventType string       `json:"event_type"`
	Payload   OrderPayload `json:"payload"`
	Timestamp time.Time    `json:"timestamp"`
}

type OrderPayload struct {
	ID     string             `json:"id"`
	UserID string             `json:"user_id,omitempty"`
	Items  []OrderItemPayload `json:"items"`
}

type OrderItemPayload struct {
	ProductID string  `json:"product_id"`
	VariantID *string `json:"variant_id"`
	Quantity  int64   `json:"quantity"`
}

func (l *InventoryListener) processMessage(ctx context.Context, value []byte) error {
	var event OrderEvent
	if err := json.Unmarshal(value, &event); err != nil {
		return fmt.Errorf("unmarshal event: %w", err)
	}

	order := event.Payload
	if order.ID == "" {
		return fmt.Errorf("%s event %s has no order id", event.EventType, event.EventID)
	}
	user := order.UserID
	if user == "" {
		user = systemUser
	}

	switch event.EventType {
	case EventOrderPlaced, EventOrderCreated:
		return l.reserveOrder(ctx, order, user)
	case EventOrderPaid:
		return l.settleOrder(ctx, order.ID, true)
	case EventOrderCancelled:
		return l.settleOrder(ctx, order.ID, false)
	case EventOrderReturned:
		return l.returnOrder(ctx, order, user)
	case EventStockReceived:
		return l.restock(order, user)
	default:
		return nil
	}
}

func (l *InventoryListener) reserveOrder(ctx context.Context, order OrderPayload, user string) error {
	l.logger.Info("Processing order placed event", zap.String("order_id", order.ID))

	// Kafka delivers at least once; an order that already holds
	// reservations, in any status, has been handled.
	existing, _, err := l.uc.ListReservations(ctx, &dto.ReservationFilters{OrderID: order.ID, Page: 1, PageSize: 1})
	if err != nil {
		return err
	}
	if len(existing) > 0 {
		l.logger.Info("Order already reserved, skipping redelivery", zap.String("order_id", order.ID))
		return nil
	}

	lines := make([]dto.CartLine, 0, len(order.Items))
	for _, item := range order.Items {
		lines = append(lines, dto.CartLine{ProductID: item.ProductID, VariantID: item.VariantID, Quantity: item.Quantity})
	}
	_, err = l.uc.ReserveCart(ctx, &dto.ReserveCartInput{OrderID: order.ID, Lines: lines, UserID: user})
	if errors.Is(err, inventory.ErrInsufficientStock) {
		// The order service learns about the shortfall from the reservation
		// lookup; there is nothing to retry here.
		l.logger.Warn("Order could not be reserved", zap.String("order_id", order.ID), zap.Error(err))
		return nil
	}
	return err
}

// settleOrder completes or cancels every active reservation of the order.
func (l *InventoryListener) settleOrder(ctx context.Context, orderID string, paid bool) error {
	reservations, _, err := l.uc.ListReservations(ctx, &dto.ReservationFilters{
		OrderID: orderID,
		Status:  model.ReservationActive,
	})
	if err != nil {
		return err
	}

	var errs []error
	for _, r := range reservations {
		if paid {
			_, err = l.uc.CompleteReservation(ctx, r.ID)
		} else {
			_, err = l.uc.CancelReservation(ctx, r.ID)
		}
		if err != nil {
			errs = append(errs, fmt.Errorf("reservation %s: %w", r.ID, err))
		}
	}
	l.logger.Info("Order reservations settled",
		zap.String("order_id", orderID),
		zap.Bool("paid", paid),
		zap.Int("reservations", len(reservations)),
		zap.Int("failed", len(errs)))
	return errors.Join(errs...)
}

func (l *InventoryListener) returnOrder(ctx context.Context, order OrderPayload, user string) error {
	var errs []error
	for _, item := range order.Items {
		_, err := l.uc.ProcessReturn(ctx, &dto.ProcessReturnInput{
			ProductID: item.ProductID,
			VariantID: item.VariantID,
			Quantity:  item.Quantity,
			OrderID:   order.ID,
			UserID:    user,
		})
		if err != nil {
			errs = append(errs, fmt.Errorf("return %s: %w", item.ProductID, err))
		}
	}
	return errors.Join(errs...)
}

// restock hands received goods to the job queue; order id is the
// purchase document reference.
func (l *InventoryListener) restock(order OrderPayload, user string) error {
	if l.jobs == nil {
		return errors.New("stock received event without a job queue")
	}
	var errs []error
	for _, item := range order.Items {
		err := l.jobs.Submit(jobs.Restock{
			ProductID: item.ProductID,
			VariantID: item.VariantID,
			Quantity:  item.Quantity,
			Reference: order.ID,
			UserID:    user,
		})
		if err != nil {
			errs = append(errs, fmt.Errorf("restock %s: %w", item.ProductID, err))
		}
	}
	return errors.Join(errs...)
}
