package meetings

import (
	"context"
	"errors"
	"time"
)

// Meeting is a provisioned video conference for an appointment.
type Meeting struct {
	ID      string
	JoinURL string
}

// Gateway provisions video meetings with an external provider. Failures are
// non-fatal for booking: callers fall back to a placeholder and keep going.
type Gateway interface {
	CreateMeeting(ctx context.Context, topic string, start time.Time, durationMinutes int, timeZone string) (Meeting, error)
	UpdateMeeting(ctx context.Context, id string, topic string, start time.Time, durationMinutes int, timeZone string) error
	DeleteMeeting(ctx context.Context, id string) error
	ProviderID() string
}

// Disabled is the gateway used when no provider is configured. Every call
// fails, which the booking path treats as a degraded-mode signal.
type Disabled struct{}

func NewDisabled() *Disabled {
	return &Disabled{}
}

func (d *Disabled) ProviderID() string {
	return "meetings-disabled"
}

func (d *Disabled) CreateMeeting(_ context.Context, _ string, _ time.Time, _ int, _ string) (Meeting, error) {
	return Meeting{}, errors.New("meeting provider not configured")
}

func (d *Disabled) UpdateMeeting(_ context.Context, _ string, _ string, _ time.Time, _ int, _ string) error {
	return errors.New("meeting provider not configured")
}

func (d *Disabled) DeleteMeeting(_ context.Context, _ string) error {
	return errors.New("meeting provider not configured")
}
