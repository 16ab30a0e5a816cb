package calendar

import (
	"context"
	"errors"
	"time"
)

// ExternalEvent is the provider-facing shape of a calendar event.
type ExternalEvent struct {
	Summary     string
	Description string
	Location    string
	Start       time.Time
	End         time.Time
	TimeZone    string
	Attendees   []string
}

// Provider syncs events to an external calendar. Sync is best-effort: the
// mirror table stays authoritative for busy time whether or not the provider
// call lands.
type Provider interface {
	CreateEvent(ctx context.Context, ev ExternalEvent) (string, error)
	UpdateEvent(ctx context.Context, externalID string, ev ExternalEvent) error
	DeleteEvent(ctx context.Context, externalID string) error
	ProviderID() string
}

type DisabledProvider struct{}

func NewDisabledProvider() *DisabledProvider {
	return &DisabledProvider{}
}

func (d *DisabledProvider) ProviderID() string {
	return "calendar-disabled"
}

func (d *DisabledProvider) CreateEvent(_ context.Context, _ ExternalEvent) (string, error) {
	return "", errors.New("calendar provider not configured")
}

func (d *DisabledProvider) UpdateEvent(_ context.Context, _ string, _ ExternalEvent) error {
	return errors.New("calendar provider not configured")
}

func (d *DisabledProvider) DeleteEvent(_ context.Context, _ string) error {
	return errors.New("calendar provider not configured")
}
