// Package notify delivers fire-and-forget notifications about group, handoff
// and payout transitions. Delivery failures are reported to the caller for
// logging only; they never undo the transition that raised them.
package notify

import (
	"context"
	"errors"

	"go.uber.org/zap"
)

type EventType string

const (
	EventGroupFull        EventType = "group_full"
	EventGroupPartial     EventType = "group_partial"
	EventGroupCancelled   EventType = "group_cancelled"
	EventGroupExpired     EventType = "group_expired"
	EventGroupReopened    EventType = "group_reopened"
	EventGroupUrgency     EventType = "group_urgency"
	EventMemberLeft       EventType = "member_left"
	EventRefundRequested  EventType = "refund_requested"
	EventPickupAssigned   EventType = "pickup_assigned"
	EventPickupCompleted  EventType = "pickup_completed"
	EventDeliveryAssigned EventType = "delivery_assigned"
	EventParcelDelivered  EventType = "parcel_delivered"
	EventGroupCompleted   EventType = "group_completed"
	EventEarningCancelled EventType = "earning_cancelled"
	EventPayoutRequested  EventType = "payout_requested"
	EventPayoutProcessed  EventType = "payout_processed"
)

// Event describes one transition. Phone, when set, addresses an SMS to the
// affected customer or agent.
type Event struct {
	Type       EventType         `json:"type"`
	GroupId    string            `json:"group_id,omitempty"`
	ParcelId   string            `json:"parcel_id,omitempty"`
	PayoutId   string            `json:"payout_id,omitempty"`
	CustomerId string            `json:"customer_id,omitempty"`
	AgentId    string            `json:"agent_id,omitempty"`
	Phone      string            `json:"-"`
	Message    string            `json:"message"`
	Attributes map[string]string `json:"attributes,omitempty"`
}

type Notifier interface {
	Notify(ctx context.Context, event Event) error
}

// Send delivers event and logs a failure instead of returning it.
func Send(ctx context.Context, n Notifier, event Event) {
	if n == nil {
		return
	}
	if err := n.Notify(ctx, event); err != nil {
		zap.L().Warn("Notification failed",
			zap.String("type", string(event.Type)),
			zap.String("group_id", event.GroupId),
			zap.String("parcel_id", event.ParcelId),
			zap.Error(err))
	}
}

// Multi fans an event out to every notifier and joins their errors.
type Multi []Notifier

func (m Multi) Notify(ctx context.Context, event Event) error {
	var errs []error
	for _, n := range m {
		if err := n.Notify(ctx, event); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// LogNotifier writes events to the structured log.
type LogNotifier struct{}

func (LogNotifier) Notify(_ context.Context, event Event) error {
	zap.L().Info("Notification",
		zap.String("type", string(event.Type)),
		zap.String("group_id", event.GroupId),
		zap.String("parcel_id", event.ParcelId),
		zap.String("payout_id", event.PayoutId),
		zap.String("message", event.Message))
	return nil
}
