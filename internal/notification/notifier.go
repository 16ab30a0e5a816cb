package notification

import (
	"context"
	"encoding/json"
	"time"

	"github.com/ayunierto/ascencio-tax-api/internal/outbox"
	"github.com/ayunierto/ascencio-tax-api/libs/db"
)

// AppointmentEvent is the payload published for appointment lifecycle events.
type AppointmentEvent struct {
	AppointmentID string    `json:"appointment_id"`
	ServiceName   string    `json:"service_name"`
	StaffName     string    `json:"staff_name"`
	StaffEmail    string    `json:"staff_email"`
	ClientName    string    `json:"client_name"`
	ClientEmail   string    `json:"client_email"`
	Start         time.Time `json:"start"`
	End           time.Time `json:"end"`
	TimeZone      string    `json:"time_zone"`
	MeetingLink   string    `json:"meeting_link,omitempty"`
	Comments      string    `json:"comments,omitempty"`
	Reason        string    `json:"reason,omitempty"`
}

// UserEvent is published when a user registers.
type UserEvent struct {
	UserID string `json:"user_id"`
	Name   string `json:"name"`
	Email  string `json:"email"`
}

// OutboxNotifier stages notification events in the transactional outbox. The
// publisher moves them to Kafka; the email consumer delivers them. Staging
// failures surface to the caller, who treats notification as best-effort.
type OutboxNotifier struct {
	repo *outbox.Repository
	pool *db.Pool
}

func NewOutboxNotifier(repo *outbox.Repository, pool *db.Pool) *OutboxNotifier {
	return &OutboxNotifier{repo: repo, pool: pool}
}

func (n *OutboxNotifier) AppointmentConfirmed(ctx context.Context, ev AppointmentEvent) error {
	return n.stage(ctx, outbox.TopicAppointmentConfirmed, ev.AppointmentID, ev)
}

func (n *OutboxNotifier) AppointmentCancelled(ctx context.Context, ev AppointmentEvent) error {
	return n.stage(ctx, outbox.TopicAppointmentCancelled, ev.AppointmentID, ev)
}

func (n *OutboxNotifier) UserCreated(ctx context.Context, ev UserEvent) error {
	payload, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	return n.repo.Insert(ctx, n.pool, outbox.Event{
		AggregateType: "user",
		AggregateID:   ev.UserID,
		EventType:     outbox.TopicUserCreated,
		Payload:       payload,
	})
}

func (n *OutboxNotifier) stage(ctx context.Context, topic, appointmentID string, ev AppointmentEvent) error {
	payload, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	return n.repo.Insert(ctx, n.pool, outbox.Event{
		AggregateType: "appointment",
		AggregateID:   appointmentID,
		EventType:     topic,
		Payload:       payload,
	})
}
