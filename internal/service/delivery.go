package service

import (
	"context"
	"log/slog"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/dukerupert/ponto/internal/domain"
	"github.com/dukerupert/ponto/internal/telemetry"
)

// Length caps applied after trimming.
const (
	MaxDeliveryDescriptionLen = 1200
	MaxShippingMethodLen      = 120
	MaxTrackingCodeLen        = 120
)

// DeliveryAuthorizer decides who may edit delivery details.
type DeliveryAuthorizer interface {
	CanEditDelivery(p *domain.Principal) bool
}

// DeliveryPatch is a partial update. An unset field is left alone and a
// set field holding null clears the column.
type DeliveryPatch struct {
	DeliveryDescription domain.OptionalString `json:"deliveryDescription"`
	ShippingMethod      domain.OptionalString `json:"shippingMethod"`
	TrackingCode        domain.OptionalString `json:"trackingCode"`
	Status              domain.OptionalString `json:"status"`
}

// IsEmpty reports whether the patch sets no field.
func (p DeliveryPatch) IsEmpty() bool {
	return !p.DeliveryDescription.Set && !p.ShippingMethod.Set && !p.TrackingCode.Set && !p.Status.Set
}

// DeliveryService applies delivery and tracking changes made by super-admins.
type DeliveryService struct {
	store   OrderStore
	authz   DeliveryAuthorizer
	events  EventEmitter
	logger  *slog.Logger
	metrics *telemetry.BusinessMetrics
	now     func() time.Time
}

// NewDeliveryService creates a DeliveryService. events and metrics may be nil.
func NewDeliveryService(store OrderStore, authz DeliveryAuthorizer, events EventEmitter, logger *slog.Logger, metrics *telemetry.BusinessMetrics) *DeliveryService {
	return &DeliveryService{
		store:   store,
		authz:   authz,
		events:  events,
		logger:  logger,
		metrics: metrics,
		now:     time.Now,
	}
}

// UpdateDelivery applies patch to the order. Setting SHIPPED stamps
// shippedAt once; setting DELIVERED stamps deliveredAt once and backfills
// shippedAt. Timestamps are never cleared.
func (s *DeliveryService) UpdateDelivery(ctx context.Context, orderID string, principal *domain.Principal, patch DeliveryPatch) (*domain.Order, error) {
	const op = "delivery.update"

	if principal == nil {
		return nil, domain.ErrSessionRequired
	}
	if !s.authz.CanEditDelivery(principal) {
		s.metrics.RecordDeliveryUpdate("forbidden")
		s.logger.WarnContext(ctx, "delivery update denied",
			"order_id", orderID,
			"principal_id", principal.ID,
			"role", principal.Role,
		)
		return nil, domain.ErrDeliveryUpdateForbidden
	}

	if patch.IsEmpty() {
		s.metrics.RecordDeliveryUpdate("noop")
		return nil, domain.ErrNothingToUpdate
	}

	var status *domain.OrderStatus
	if patch.Status.Set {
		if patch.Status.Value == nil {
			return nil, domain.NewValidationError(op, "status", "cannot be null")
		}
		parsed, ok := domain.ParseOrderStatus(*patch.Status.Value)
		if !ok {
			return nil, domain.NewValidationError(op, "status", "must be one of "+allowedStatuses())
		}
		status = &parsed
	}

	var (
		updated  *domain.Order
		previous domain.OrderStatus
	)
	err := s.store.InTx(ctx, func(tx OrderTx) error {
		order, err := tx.LockOrder(ctx, orderID)
		if err != nil {
			return err
		}
		previous = order.Status
		now := s.now().UTC()

		applyText(&order.DeliveryDescription, patch.DeliveryDescription, MaxDeliveryDescriptionLen)
		applyText(&order.ShippingMethod, patch.ShippingMethod, MaxShippingMethodLen)
		applyText(&order.TrackingCode, patch.TrackingCode, MaxTrackingCodeLen)

		if status != nil {
			order.Status = *status
			switch *status {
			case domain.OrderStatusShipped:
				if order.ShippedAt == nil {
					order.ShippedAt = &now
				}
			case domain.OrderStatusDelivered:
				if order.DeliveredAt == nil {
					order.DeliveredAt = &now
				}
				if order.ShippedAt == nil {
					order.ShippedAt = &now
				}
			}
		}

		order.UpdatedAt = now
		if err := tx.UpdateOrder(ctx, order); err != nil {
			return err
		}
		updated = order
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.metrics.RecordDeliveryUpdate("updated")
	s.metrics.RecordStatusChange(string(previous), string(updated.Status), "delivery")
	s.logger.InfoContext(ctx, "delivery updated",
		"order_id", updated.ID,
		"order_number", updated.OrderNumber,
		"from", previous,
		"to", updated.Status,
		"principal_id", principal.ID,
	)

	if s.events != nil {
		ev := domain.NewOrderEvent(domain.EventOrderDeliveryUpdated, previous, updated, s.now().UTC())
		if err := s.events.Emit(ctx, ev); err != nil {
			s.logger.WarnContext(ctx, "failed to emit order event", "key", ev.Key, "order_id", ev.OrderID, "error", err)
		}
	}

	return updated, nil
}

// CanEditDelivery exposes the authorization decision to read-only views.
func (s *DeliveryService) CanEditDelivery(p *domain.Principal) bool {
	return p != nil && s.authz.CanEditDelivery(p)
}

// applyText writes a trimmed, capped value into dst when the field is set.
// Blank values clear the field.
func applyText(dst **string, field domain.OptionalString, maxLen int) {
	if !field.Set {
		return
	}
	if field.Value == nil {
		*dst = nil
		return
	}
	v := strings.TrimSpace(*field.Value)
	if v == "" {
		*dst = nil
		return
	}
	v = truncateRunes(v, maxLen)
	*dst = &v
}

func truncateRunes(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	r := []rune(s)
	return strings.TrimSpace(string(r[:n]))
}

func allowedStatuses() string {
	names := make([]string, len(domain.OrderStatuses))
	for i, s := range domain.OrderStatuses {
		names[i] = string(s)
	}
	return strings.Join(names, ", ")
}
