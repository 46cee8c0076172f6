package service

import (
	"context"
	"fmt"
	"time"

	"hallbook/pkg/kafka"
	"hallbook/pkg/model"
)

const (
	EventRequestCreated = "booking.request.created"
	EventRequestDecided = "booking.request.decided"
)

// Notifier dispatches booking events to downstream delivery channels
// (email/SMS workers consume the topic). Dispatch is best-effort: the
// booking service logs a returned error and moves on, it never fails the
// transition that triggered it.
type Notifier interface {
	RequestCreated(ctx context.Context, req *model.BookingRequest) error
	RequestDecided(ctx context.Context, req *model.BookingRequest, decision model.Decision) error
}

type actionLinks struct {
	Approve string `json:"approve,omitempty"`
	Reject  string `json:"reject,omitempty"`
	Vacate  string `json:"vacate,omitempty"`
	Leave   string `json:"leave,omitempty"`
}

type bookingEvent struct {
	RequestID   string       `json:"request_id"`
	HallName    string       `json:"hall_name"`
	RequesterID string       `json:"requester_id"`
	Label       string       `json:"label"`
	Start       time.Time    `json:"start_time"`
	End         time.Time    `json:"end_time"`
	Status      model.Status `json:"status"`
	Decision    string       `json:"decision,omitempty"`
	Links       *actionLinks `json:"action_links,omitempty"`
}

type kafkaNotifier struct {
	producer *kafka.Producer
	baseURL  string
	source   string
}

func NewKafkaNotifier(producer *kafka.Producer, baseURL, source string) Notifier {
	return &kafkaNotifier{
		producer: producer,
		baseURL:  baseURL,
		source:   source,
	}
}

func (n *kafkaNotifier) RequestCreated(ctx context.Context, req *model.BookingRequest) error {
	event := bookingEvent{
		RequestID:   req.ID,
		HallName:    req.HallName,
		RequesterID: req.RequesterID,
		Label:       req.Label,
		Start:       req.Start,
		End:         req.End,
		Status:      req.Status,
		Links:       n.links(req),
	}

	return n.publish(ctx, EventRequestCreated, req.ID, event)
}

func (n *kafkaNotifier) RequestDecided(ctx context.Context, req *model.BookingRequest, decision model.Decision) error {
	event := bookingEvent{
		RequestID:   req.ID,
		HallName:    req.HallName,
		RequesterID: req.RequesterID,
		Label:       req.Label,
		Start:       req.Start,
		End:         req.End,
		Status:      req.Status,
		Decision:    string(decision),
	}

	return n.publish(ctx, EventRequestDecided, req.ID, event)
}

// links renders the action URLs valid for the request's current status.
// Pending requests get approve/reject, auto-booked ones vacate/leave.
func (n *kafkaNotifier) links(req *model.BookingRequest) *actionLinks {
	if req.Token == "" {
		return nil
	}

	switch req.Status {
	case model.StatusPending:
		return &actionLinks{
			Approve: fmt.Sprintf("%s/approval/approve/%s", n.baseURL, req.Token),
			Reject:  fmt.Sprintf("%s/approval/reject/%s", n.baseURL, req.Token),
		}
	case model.StatusAutoBooked:
		return &actionLinks{
			Vacate: fmt.Sprintf("%s/approval/vacate/%s", n.baseURL, req.Token),
			Leave:  fmt.Sprintf("%s/approval/leave/%s", n.baseURL, req.Token),
		}
	}
	return nil
}

func (n *kafkaNotifier) publish(ctx context.Context, eventType, key string, event bookingEvent) error {
	msg := kafka.NewMessage().
		WithKey(key).
		WithEventType(eventType).
		WithSource(n.source).
		WithValue(event).
		Build()

	return n.producer.Publish(ctx, msg)
}

type noopNotifier struct{}

// NewNoopNotifier returns a notifier that drops every event. Used when
// notifications are disabled and in tests.
func NewNoopNotifier() Notifier {
	return noopNotifier{}
}

func (noopNotifier) RequestCreated(context.Context, *model.BookingRequest) error {
	return nil
}

func (noopNotifier) RequestDecided(context.Context, *model.BookingRequest, model.Decision) error {
	return nil
}
