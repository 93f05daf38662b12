package orders

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"

	"storefront/internal/apperr"
	"storefront/internal/events"
	"storefront/internal/models"
	"storefront/internal/repository"
)

const (
	defaultCancelReason = "Cancelled by customer"
	defaultReturnReason = "Returned by customer"
)

// UpdateStatus applies an admin status change. Cancelling through this path
// puts the reserved stock back as well.
func (s *Service) UpdateStatus(ctx context.Context, orderID primitive.ObjectID, to models.OrderStatus, notes string, actor Actor) (View, error) {
	if !to.Valid() {
		return View{}, apperr.Validationf("status %q is invalid", to)
	}

	var order models.Order
	var previous models.OrderStatus
	err := s.uow.RunInTx(ctx, func(ctx context.Context) error {
		var err error
		order, err = s.load(ctx, orderID)
		if err != nil {
			return err
		}
		previous = order.Status
		if err := transition(&order, to, strings.TrimSpace(notes), actor.Label(), s.clock()); err != nil {
			return err
		}
		if to == models.OrderCancelled {
			if order.CancelReason == "" {
				order.CancelReason = strings.TrimSpace(notes)
			}
			if err := s.restoreStock(ctx, order); err != nil {
				return err
			}
		}
		return s.save(ctx, order)
	})
	if err != nil {
		return View{}, wrapTx(err, "failed to update order status")
	}

	view, err := s.view(ctx, order)
	s.transitioned(ctx, order, previous)
	return view, err
}

// Cancel lets the owner cancel a pending or confirmed order. Stock for every
// line is restored in the same transaction as the status change.
func (s *Service) Cancel(ctx context.Context, orderID, userID primitive.ObjectID, reason string) (View, error) {
	reason = strings.TrimSpace(reason)
	if reason == "" {
		reason = defaultCancelReason
	}

	var order models.Order
	var previous models.OrderStatus
	err := s.uow.RunInTx(ctx, func(ctx context.Context) error {
		var err error
		order, err = s.loadOwned(ctx, orderID, userID)
		if err != nil {
			return err
		}
		if !slices.Contains(cancellableStatuses, order.Status) {
			return apperr.Conflict(apperr.CodeCancellationNotAllowed,
				fmt.Sprintf("order cannot be cancelled once it is %s", order.Status)).
				WithDetails(map[string]any{"currentStatus": order.Status})
		}
		previous = order.Status
		if err := transition(&order, models.OrderCancelled, reason, Actor{UserID: userID, Role: models.RoleUser}.Label(), s.clock()); err != nil {
			return err
		}
		order.CancelReason = reason
		if err := s.save(ctx, order); err != nil {
			return err
		}
		return s.restoreStock(ctx, order)
	})
	if err != nil {
		return View{}, wrapTx(err, "failed to cancel order")
	}

	view, err := s.view(ctx, order)
	s.transitioned(ctx, order, previous)
	return view, err
}

// Return accepts a delivered order back within the return window, measured
// from actual delivery or, failing that, the last modification.
func (s *Service) Return(ctx context.Context, orderID, userID primitive.ObjectID, reason string) (View, error) {
	reason = strings.TrimSpace(reason)
	if reason == "" {
		reason = defaultReturnReason
	}

	var order models.Order
	err := s.uow.RunInTx(ctx, func(ctx context.Context) error {
		var err error
		order, err = s.loadOwned(ctx, orderID, userID)
		if err != nil {
			return err
		}
		if order.Status != models.OrderDelivered {
			return apperr.Conflict(apperr.CodeReturnNotAllowed, "only delivered orders can be returned").
				WithDetails(map[string]any{"currentStatus": order.Status})
		}

		now := s.clock()
		reference := order.UpdatedAt
		if order.ActualDelivery != nil {
			reference = *order.ActualDelivery
		}
		if now.Sub(reference) > s.returnWindow {
			return apperr.Conflict(apperr.CodeReturnWindowExpired, "return window has expired").
				WithDetails(map[string]any{
					"deliveredAt":  reference,
					"windowDays":   int(s.returnWindow / (24 * time.Hour)),
					"windowEndsAt": reference.Add(s.returnWindow),
				})
		}

		if err := transition(&order, models.OrderReturned, reason, Actor{UserID: userID, Role: models.RoleUser}.Label(), now); err != nil {
			return err
		}
		order.ReturnReason = reason
		if err := s.save(ctx, order); err != nil {
			return err
		}
		if s.restockOnReturn {
			return s.restoreStock(ctx, order)
		}
		return nil
	})
	if err != nil {
		return View{}, wrapTx(err, "failed to return order")
	}

	view, err := s.view(ctx, order)
	s.transitioned(ctx, order, models.OrderDelivered)
	return view, err
}

// UpdatePaymentStatus sets the payment status unconditionally and merges the
// supplied payment details.
func (s *Service) UpdatePaymentStatus(ctx context.Context, orderID primitive.ObjectID, status models.PaymentStatus, details models.PaymentDetails) (View, error) {
	if !status.Valid() {
		return View{}, apperr.Validationf("paymentStatus %q is invalid", status)
	}

	order, err := s.load(ctx, orderID)
	if err != nil {
		return View{}, err
	}
	order.PaymentStatus = status
	order.PaymentDetails = order.PaymentDetails.Merge(details)
	order.UpdatedAt = s.clock()
	if err := s.save(ctx, order); err != nil {
		return View{}, err
	}

	view, err := s.view(ctx, order)
	s.publish(ctx, events.TypeOrderPaymentUpdated, order, order.Status)
	return view, err
}

func (s *Service) UpdateTracking(ctx context.Context, orderID primitive.ObjectID, trackingNumber, courier string) (View, error) {
	trackingNumber = strings.TrimSpace(trackingNumber)
	if trackingNumber == "" {
		return View{}, apperr.Validation("trackingNumber is required")
	}

	order, err := s.load(ctx, orderID)
	if err != nil {
		return View{}, err
	}
	order.TrackingNumber = trackingNumber
	if courier = strings.TrimSpace(courier); courier != "" {
		order.Courier = courier
	}
	order.UpdatedAt = s.clock()
	if err := s.save(ctx, order); err != nil {
		return View{}, err
	}
	return s.view(ctx, order)
}

// Delete soft-deletes an order. Deleted orders disappear from every read.
func (s *Service) Delete(ctx context.Context, orderID primitive.ObjectID) error {
	order, err := s.load(ctx, orderID)
	if err != nil {
		return err
	}
	order.RecordState = models.RecordDeleted
	order.UpdatedAt = s.clock()
	if err := s.save(ctx, order); err != nil {
		return err
	}
	s.log.Info("order deleted", zap.String("orderNumber", order.OrderNumber))
	return nil
}

// restoreStock returns every line's quantity to its variant. Variants that
// have since been removed from the catalog are skipped.
func (s *Service) restoreStock(ctx context.Context, order models.Order) error {
	for _, line := range order.Items {
		err := s.items.AdjustStock(ctx, line.ItemID, line.Size, line.Color.Name, line.Quantity)
		if errors.Is(err, repository.ErrNotFound) {
			s.log.Warn("stock not restored, variant no longer exists",
				zap.String("orderNumber", order.OrderNumber),
				zap.String("itemId", line.ItemID.Hex()),
				zap.String("size", line.Size),
				zap.String("color", line.Color.Name),
			)
			continue
		}
		if err != nil {
			return fmt.Errorf("restore stock for %s: %w", line.ItemID.Hex(), err)
		}
	}
	return nil
}

func (s *Service) transitioned(ctx context.Context, order models.Order, previous models.OrderStatus) {
	s.metrics.Transition(string(previous), string(order.Status))
	s.log.Info("order status changed",
		zap.String("orderNumber", order.OrderNumber),
		zap.String("from", string(previous)),
		zap.String("to", string(order.Status)),
	)
	s.publish(ctx, events.TypeOrderStatusChanged, order, previous)
}
