package outbox

// Topic names. One event type per topic; the outbox event_type column doubles
// as the destination topic.
const (
	TopicAppointmentConfirmed = "booking.appointment.confirmed.v1"
	TopicAppointmentCancelled = "booking.appointment.cancelled.v1"
	TopicUserCreated          = "auth.user.created.v1"
)

// Event is the domain event envelope written to the outbox table.
type Event struct {
	AggregateType string
	AggregateID   string
	EventType     string
	Payload       []byte
}
