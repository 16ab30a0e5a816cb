package calendar

import (
	"context"
	"log/slog"
	"time"

	"github.com/ayunierto/ascencio-tax-api/internal/interval"
	"github.com/ayunierto/ascencio-tax-api/internal/model"
)

// Store is the mirror-table persistence the service needs.
type Store interface {
	Create(ctx context.Context, ev *model.CalendarEvent) error
	Update(ctx context.Context, ev *model.CalendarEvent) error
	Get(ctx context.Context, id string) (*model.CalendarEvent, error)
	SetSource(ctx context.Context, id, sourceType, sourceID string) error
	MarkCancelled(ctx context.Context, id string) error
	ListBusyInRange(ctx context.Context, staffID string, from, to time.Time, excludeSourceID string) ([]model.CalendarEvent, error)
}

// Service keeps the calendar mirror table and syncs it to the external
// provider. The mirror is written first and is the availability source of
// truth; provider sync failures are logged and leave a placeholder external
// id behind.
type Service struct {
	store    Store
	provider Provider
	logger   *slog.Logger
	timeout  time.Duration
}

func NewService(store Store, provider Provider, logger *slog.Logger) *Service {
	return &Service{
		store:    store,
		provider: provider,
		logger:   logger,
		timeout:  10 * time.Second,
	}
}

func externalEvent(ev *model.CalendarEvent, attendees []string) ExternalEvent {
	return ExternalEvent{
		Summary:     ev.Summary,
		Description: ev.Description,
		Location:    ev.Location,
		Start:       ev.Start,
		End:         ev.End,
		TimeZone:    ev.TimeZone,
		Attendees:   attendees,
	}
}

// Create persists the mirror row and then tries to create the external event.
// On provider failure the mirror row keeps the placeholder external id.
func (s *Service) Create(ctx context.Context, ev *model.CalendarEvent, attendees []string) error {
	if ev.Status == "" {
		ev.Status = model.EventConfirmed
	}
	if ev.ExternalEventID == "" {
		ev.ExternalEventID = model.PlaceholderID
	}
	if err := s.store.Create(ctx, ev); err != nil {
		return err
	}

	callCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	externalID, err := s.provider.CreateEvent(callCtx, externalEvent(ev, attendees))
	if err != nil {
		s.logger.Warn("external calendar create failed",
			"event_id", ev.ID,
			"provider", s.provider.ProviderID(),
			"error", err,
		)
		return nil
	}

	ev.ExternalEventID = externalID
	if err := s.store.Update(ctx, ev); err != nil {
		s.logger.Warn("storing external event id failed", "event_id", ev.ID, "error", err)
	}
	return nil
}

// Update rewrites the mirror row and patches the external event. When the
// event only has a placeholder external id, a fresh external event is created
// instead.
func (s *Service) Update(ctx context.Context, ev *model.CalendarEvent, attendees []string) error {
	if err := s.store.Update(ctx, ev); err != nil {
		return err
	}

	callCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	if ev.ExternalEventID == "" || ev.ExternalEventID == model.PlaceholderID {
		externalID, err := s.provider.CreateEvent(callCtx, externalEvent(ev, attendees))
		if err != nil {
			s.logger.Warn("external calendar create on update failed", "event_id", ev.ID, "error", err)
			return nil
		}
		ev.ExternalEventID = externalID
		if err := s.store.Update(ctx, ev); err != nil {
			s.logger.Warn("storing external event id failed", "event_id", ev.ID, "error", err)
		}
		return nil
	}

	if err := s.provider.UpdateEvent(callCtx, ev.ExternalEventID, externalEvent(ev, attendees)); err != nil {
		s.logger.Warn("external calendar update failed",
			"event_id", ev.ID,
			"external_event_id", ev.ExternalEventID,
			"error", err,
		)
	}
	return nil
}

// Cancel flips the mirror row to cancelled and deletes the external event
// best-effort. The row itself is kept.
func (s *Service) Cancel(ctx context.Context, id string) error {
	ev, err := s.store.Get(ctx, id)
	if err != nil {
		return err
	}
	if err := s.store.MarkCancelled(ctx, id); err != nil {
		return err
	}

	if ev.ExternalEventID != "" && ev.ExternalEventID != model.PlaceholderID {
		callCtx, cancel := context.WithTimeout(ctx, s.timeout)
		defer cancel()
		if err := s.provider.DeleteEvent(callCtx, ev.ExternalEventID); err != nil {
			s.logger.Warn("external calendar delete failed",
				"event_id", id,
				"external_event_id", ev.ExternalEventID,
				"error", err,
			)
		}
	}
	return nil
}

// Reschedule moves an existing mirror event to a new window, reassigning the
// busy time when the staff member changed, and syncs the provider.
func (s *Service) Reschedule(ctx context.Context, id string, start, end time.Time, timeZone, staffID string, attendees []string) error {
	ev, err := s.store.Get(ctx, id)
	if err != nil {
		return err
	}
	ev.Start = start
	ev.End = end
	if timeZone != "" {
		ev.TimeZone = timeZone
	}
	if staffID != "" {
		ev.StaffID = staffID
	}
	return s.Update(ctx, ev, attendees)
}

// SetSource links a mirror row back to the record that originated it.
func (s *Service) SetSource(ctx context.Context, id, sourceType, sourceID string) error {
	return s.store.SetSource(ctx, id, sourceType, sourceID)
}

// BusyIntervals returns the staff member's busy time in [from, to) as read
// from the mirror table only. No provider call is made.
func (s *Service) BusyIntervals(ctx context.Context, staffID string, from, to time.Time, excludeSourceID string) ([]interval.Interval, error) {
	events, err := s.store.ListBusyInRange(ctx, staffID, from, to, excludeSourceID)
	if err != nil {
		return nil, err
	}
	busy := make([]interval.Interval, 0, len(events))
	for _, ev := range events {
		busy = append(busy, interval.New(ev.Start, ev.End))
	}
	return busy, nil
}

// BusyOverlaps reports whether any busy mirror row overlaps [start, end).
func (s *Service) BusyOverlaps(ctx context.Context, staffID string, start, end time.Time, excludeSourceID string) (bool, error) {
	events, err := s.store.ListBusyInRange(ctx, staffID, start, end, excludeSourceID)
	if err != nil {
		return false, err
	}
	return len(events) > 0, nil
}
