package orders

import (
	"slices"
	"time"

	"storefront/internal/apperr"
	"storefront/internal/models"
)

var statusTransitions = map[models.OrderStatus][]models.OrderStatus{
	models.OrderPending:        {models.OrderConfirmed, models.OrderCancelled},
	models.OrderConfirmed:      {models.OrderProcessing, models.OrderCancelled},
	models.OrderProcessing:     {models.OrderShipped, models.OrderCancelled},
	models.OrderShipped:        {models.OrderOutForDelivery, models.OrderDelivered},
	models.OrderOutForDelivery: {models.OrderDelivered},
	models.OrderDelivered:      {models.OrderReturned},
	models.OrderReturned:       {models.OrderRefunded},
}

var cancellableStatuses = []models.OrderStatus{models.OrderPending, models.OrderConfirmed}

func CanTransition(from, to models.OrderStatus) bool {
	return slices.Contains(statusTransitions[from], to)
}

// NextStatuses lists the statuses reachable from status in one step.
func NextStatuses(status models.OrderStatus) []models.OrderStatus {
	next := slices.Clone(statusTransitions[status])
	if next == nil {
		next = []models.OrderStatus{}
	}
	return next
}

func IsTerminal(status models.OrderStatus) bool {
	return len(statusTransitions[status]) == 0
}

// transition moves order to status and records the change in its history.
func transition(order *models.Order, to models.OrderStatus, note, actor string, now time.Time) error {
	if !CanTransition(order.Status, to) {
		return apperr.Conflict(apperr.CodeInvalidTransition, "cannot change order status from "+string(order.Status)+" to "+string(to)).
			WithDetails(map[string]any{"currentStatus": order.Status, "requestedStatus": to})
	}

	switch to {
	case models.OrderConfirmed:
		if order.EstimatedDelivery == nil {
			eta := now.Add(estimatedDeliveryAfter)
			order.EstimatedDelivery = &eta
		}
	case models.OrderDelivered:
		delivered := now
		order.ActualDelivery = &delivered
	}

	order.Status = to
	order.UpdatedAt = now
	order.StatusHistory = append(order.StatusHistory, models.StatusEvent{
		Status: to,
		Note:   note,
		Actor:  actor,
		At:     now,
	})
	return nil
}

// Timeline returns the status history oldest first, starting with the
// creation entry.
func Timeline(order models.Order) []models.StatusEvent {
	timeline := make([]models.StatusEvent, 0, len(order.StatusHistory)+1)
	if len(order.StatusHistory) == 0 || order.StatusHistory[0].Status != models.OrderPending {
		timeline = append(timeline, models.StatusEvent{
			Status: models.OrderPending,
			Note:   orderPlacedNote,
			Actor:  "user:" + order.UserID.Hex(),
			At:     order.CreatedAt,
		})
	}
	timeline = append(timeline, order.StatusHistory...)
	slices.SortStableFunc(timeline, func(a, b models.StatusEvent) int {
		return a.At.Compare(b.At)
	})
	return timeline
}
