package booking

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strconv"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/ayunierto/ascencio-tax-api/internal/apperr"
	"github.com/ayunierto/ascencio-tax-api/internal/meetings"
	"github.com/ayunierto/ascencio-tax-api/internal/model"
	"github.com/ayunierto/ascencio-tax-api/internal/notification"
)

type fakeAppointments struct {
	byID        map[string]*model.Appointment
	overlapping *model.Appointment
	createErr   error
	updateErr   error
	created     []*model.Appointment
	updated     []*model.Appointment
	cancelled   []string
}

func newFakeAppointments() *fakeAppointments {
	return &fakeAppointments{byID: make(map[string]*model.Appointment)}
}

func (f *fakeAppointments) Create(_ context.Context, appt *model.Appointment) error {
	if f.createErr != nil {
		return f.createErr
	}
	if appt.ID == "" {
		appt.ID = "appt-" + strconv.Itoa(len(f.created)+1)
	}
	cp := *appt
	f.byID[appt.ID] = &cp
	f.created = append(f.created, &cp)
	return nil
}

func (f *fakeAppointments) Update(_ context.Context, appt *model.Appointment) error {
	if f.updateErr != nil {
		return f.updateErr
	}
	if _, ok := f.byID[appt.ID]; !ok {
		return pgx.ErrNoRows
	}
	cp := *appt
	f.byID[appt.ID] = &cp
	f.updated = append(f.updated, &cp)
	return nil
}

func (f *fakeAppointments) Get(_ context.Context, id string) (*model.Appointment, error) {
	appt, ok := f.byID[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	cp := *appt
	return &cp, nil
}

func (f *fakeAppointments) FindOverlapping(_ context.Context, _ string, _, _ time.Time, excludeID string) (*model.Appointment, error) {
	if f.overlapping != nil && f.overlapping.ID != excludeID {
		return f.overlapping, nil
	}
	return nil, nil
}

func (f *fakeAppointments) Cancel(_ context.Context, id, reason string) (time.Time, error) {
	appt, ok := f.byID[id]
	if !ok {
		return time.Time{}, pgx.ErrNoRows
	}
	appt.Status = model.StatusCancelled
	appt.CancellationReason = reason
	f.cancelled = append(f.cancelled, id)
	return time.Now(), nil
}

func (f *fakeAppointments) ListByUser(_ context.Context, _ string, _ time.Time, _ bool, _ int) ([]model.Appointment, error) {
	return nil, nil
}

type fakeSchedules struct {
	byStaff map[string][]model.Schedule
}

func (f *fakeSchedules) ListByStaffAndDay(_ context.Context, staffID string, _ int) ([]model.Schedule, error) {
	return f.byStaff[staffID], nil
}

type fakeServices struct {
	svc *model.Service
}

func (f *fakeServices) Get(_ context.Context, id string) (*model.Service, error) {
	if f.svc == nil || f.svc.ID != id {
		return nil, pgx.ErrNoRows
	}
	return f.svc, nil
}

type fakeStaffSource struct {
	byID map[string]*model.Staff
}

func (f *fakeStaffSource) Get(_ context.Context, id string) (*model.Staff, error) {
	st, ok := f.byID[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	return st, nil
}

type fakeUsers struct {
	byID map[string]*model.User
}

func (f *fakeUsers) Get(_ context.Context, id string) (*model.User, error) {
	u, ok := f.byID[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	return u, nil
}

type fakeCalendar struct {
	busy             bool
	createErr        error
	created          []*model.CalendarEvent
	rescheduled      []string
	rescheduledStaff []string
	cancelled        []string
	sources          map[string]string
}

func newFakeCalendar() *fakeCalendar {
	return &fakeCalendar{sources: make(map[string]string)}
}

func (f *fakeCalendar) Create(_ context.Context, ev *model.CalendarEvent, _ []string) error {
	if f.createErr != nil {
		return f.createErr
	}
	ev.ID = "cal-" + strconv.Itoa(len(f.created)+1)
	f.created = append(f.created, ev)
	return nil
}

func (f *fakeCalendar) Reschedule(_ context.Context, id string, _, _ time.Time, _ string, staffID string, _ []string) error {
	f.rescheduled = append(f.rescheduled, id)
	f.rescheduledStaff = append(f.rescheduledStaff, staffID)
	return nil
}

func (f *fakeCalendar) Cancel(_ context.Context, id string) error {
	f.cancelled = append(f.cancelled, id)
	return nil
}

func (f *fakeCalendar) SetSource(_ context.Context, id, sourceType, sourceID string) error {
	f.sources[id] = sourceType + ":" + sourceID
	return nil
}

func (f *fakeCalendar) BusyOverlaps(_ context.Context, _ string, _, _ time.Time, _ string) (bool, error) {
	return f.busy, nil
}

type fakeMeetings struct {
	createErr error
	created   int
	updated   []string
	deleted   []string
}

func (f *fakeMeetings) ProviderID() string { return "meetings-fake" }

func (f *fakeMeetings) CreateMeeting(_ context.Context, _ string, _ time.Time, _ int, _ string) (meetings.Meeting, error) {
	if f.createErr != nil {
		return meetings.Meeting{}, f.createErr
	}
	f.created++
	return meetings.Meeting{
		ID:      "meet-" + strconv.Itoa(f.created),
		JoinURL: "https://meet.example/" + strconv.Itoa(f.created),
	}, nil
}

func (f *fakeMeetings) UpdateMeeting(_ context.Context, id string, _ string, _ time.Time, _ int, _ string) error {
	f.updated = append(f.updated, id)
	return nil
}

func (f *fakeMeetings) DeleteMeeting(_ context.Context, id string) error {
	f.deleted = append(f.deleted, id)
	return nil
}

type fakeNotifier struct {
	confirmed []notification.AppointmentEvent
	cancelled []notification.AppointmentEvent
	err       error
}

func (f *fakeNotifier) AppointmentConfirmed(_ context.Context, ev notification.AppointmentEvent) error {
	if f.err != nil {
		return f.err
	}
	f.confirmed = append(f.confirmed, ev)
	return nil
}

func (f *fakeNotifier) AppointmentCancelled(_ context.Context, ev notification.AppointmentEvent) error {
	if f.err != nil {
		return f.err
	}
	f.cancelled = append(f.cancelled, ev)
	return nil
}

type fakeSettings struct{}

func (fakeSettings) BusinessTimeZone(_ context.Context) string  { return "America/Toronto" }
func (fakeSettings) CancellationMinHours(_ context.Context) int { return 24 }

type fixture struct {
	appts    *fakeAppointments
	cal      *fakeCalendar
	meetings *fakeMeetings
	notifier *fakeNotifier
	now      time.Time
	loc      *time.Location
	svc      *Service
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	loc, err := time.LoadLocation("America/Toronto")
	if err != nil {
		t.Fatalf("load location: %v", err)
	}

	appts := newFakeAppointments()
	cal := newFakeCalendar()
	mtg := &fakeMeetings{}
	notifier := &fakeNotifier{}
	now := time.Date(2026, 3, 2, 9, 0, 0, 0, loc)

	schedules := &fakeSchedules{byStaff: map[string][]model.Schedule{
		// Every day 09:00-17:00.
		"staff-1": {
			{DayOfWeek: 0, StartTime: "09:00", EndTime: "17:00"},
			{DayOfWeek: 1, StartTime: "09:00", EndTime: "17:00"},
			{DayOfWeek: 2, StartTime: "09:00", EndTime: "17:00"},
			{DayOfWeek: 3, StartTime: "09:00", EndTime: "17:00"},
			{DayOfWeek: 4, StartTime: "09:00", EndTime: "17:00"},
			{DayOfWeek: 5, StartTime: "09:00", EndTime: "17:00"},
			{DayOfWeek: 6, StartTime: "09:00", EndTime: "17:00"},
		},
		"staff-2": {
			{DayOfWeek: 0, StartTime: "09:00", EndTime: "17:00"},
			{DayOfWeek: 1, StartTime: "09:00", EndTime: "17:00"},
			{DayOfWeek: 2, StartTime: "09:00", EndTime: "17:00"},
			{DayOfWeek: 3, StartTime: "09:00", EndTime: "17:00"},
			{DayOfWeek: 4, StartTime: "09:00", EndTime: "17:00"},
			{DayOfWeek: 5, StartTime: "09:00", EndTime: "17:00"},
			{DayOfWeek: 6, StartTime: "09:00", EndTime: "17:00"},
		},
	}}
	services := &fakeServices{svc: &model.Service{ID: "svc-1", Name: "Tax Filing", DurationMinutes: 60}}
	staff := &fakeStaffSource{byID: map[string]*model.Staff{
		"staff-1": {ID: "staff-1", FirstName: "Ana", LastName: "Reyes", Email: "ana@example.com", IsActive: true},
		"staff-2": {ID: "staff-2", FirstName: "Luis", LastName: "Moran", Email: "luis@example.com", IsActive: true},
	}}
	users := &fakeUsers{byID: map[string]*model.User{
		"user-1": {ID: "user-1", FirstName: "Pat", LastName: "Kim", Email: "pat@example.com"},
	}}

	svc := NewService(
		appts, schedules, services, staff, users,
		cal, mtg, notifier, fakeSettings{},
		func() time.Time { return now },
		slog.New(slog.NewTextHandler(io.Discard, nil)),
	)
	return &fixture{appts: appts, cal: cal, meetings: mtg, notifier: notifier, now: now, loc: loc, svc: svc}
}

func (f *fixture) createInput(startHour int) CreateInput {
	start := time.Date(2026, 3, 3, startHour, 0, 0, 0, f.loc)
	return CreateInput{
		UserID:    "user-1",
		StaffID:   "staff-1",
		ServiceID: "svc-1",
		Start:     start,
		End:       start.Add(time.Hour),
		TimeZone:  "America/Toronto",
	}
}

func TestCreate_HappyPath(t *testing.T) {
	f := newFixture(t)

	appt, err := f.svc.Create(context.Background(), f.createInput(10))
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if appt.Status != model.StatusConfirmed {
		t.Fatalf("expected confirmed, got %s", appt.Status)
	}
	if appt.MeetingID != "meet-1" || appt.MeetingLink == "" {
		t.Fatalf("unexpected meeting fields %q %q", appt.MeetingID, appt.MeetingLink)
	}
	if appt.CalendarEventID != "cal-1" {
		t.Fatalf("unexpected calendar event id %q", appt.CalendarEventID)
	}
	if got := f.cal.sources["cal-1"]; got != "appointment:"+appt.ID {
		t.Fatalf("calendar event not linked back, got %q", got)
	}
	if len(f.notifier.confirmed) != 1 {
		t.Fatalf("expected 1 confirmation notification, got %d", len(f.notifier.confirmed))
	}
	if len(f.appts.created) != 1 {
		t.Fatalf("expected 1 persisted appointment, got %d", len(f.appts.created))
	}
}

func TestCreate_SourceDefaultsToApp(t *testing.T) {
	f := newFixture(t)

	appt, err := f.svc.Create(context.Background(), f.createInput(10))
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if appt.Source != "app" {
		t.Fatalf("expected source app, got %q", appt.Source)
	}

	in := f.createInput(13)
	in.Source = "imported"
	appt, err = f.svc.Create(context.Background(), in)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if appt.Source != "imported" {
		t.Fatalf("explicit source overwritten: %q", appt.Source)
	}
}

func TestCreate_OverlapConflict(t *testing.T) {
	f := newFixture(t)
	f.appts.overlapping = &model.Appointment{ID: "other", StaffID: "staff-1"}

	_, err := f.svc.Create(context.Background(), f.createInput(10))
	if !errors.Is(err, apperr.ErrConflict) {
		t.Fatalf("expected conflict, got %v", err)
	}
	if len(f.appts.created) != 0 {
		t.Fatalf("appointment must not be persisted on conflict")
	}
	if f.meetings.created != 0 {
		t.Fatalf("meeting must not be provisioned on conflict")
	}
}

func TestCreate_CalendarBusyConflict(t *testing.T) {
	f := newFixture(t)
	f.cal.busy = true

	_, err := f.svc.Create(context.Background(), f.createInput(10))
	if !errors.Is(err, apperr.ErrConflict) {
		t.Fatalf("expected conflict, got %v", err)
	}
}

func TestCreate_RaceLostAtPersist(t *testing.T) {
	f := newFixture(t)
	// The overlap pre-check passes but the exclusion constraint fires.
	f.appts.createErr = &pgconn.PgError{Code: "23P01"}

	_, err := f.svc.Create(context.Background(), f.createInput(10))
	if !errors.Is(err, apperr.ErrConflict) {
		t.Fatalf("expected conflict, got %v", err)
	}
	if len(f.meetings.deleted) != 1 {
		t.Fatalf("expected meeting cleanup, got %v", f.meetings.deleted)
	}
	if len(f.cal.cancelled) != 1 {
		t.Fatalf("expected calendar cleanup, got %v", f.cal.cancelled)
	}
}

func TestCreate_MeetingFailureDegradesToPlaceholder(t *testing.T) {
	f := newFixture(t)
	f.meetings.createErr = errors.New("zoom down")

	appt, err := f.svc.Create(context.Background(), f.createInput(10))
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if appt.MeetingID != model.PlaceholderID || appt.MeetingLink != model.PlaceholderID {
		t.Fatalf("expected placeholder meeting fields, got %q %q", appt.MeetingID, appt.MeetingLink)
	}
	if len(f.appts.created) != 1 {
		t.Fatalf("expected exactly one persisted appointment, got %d", len(f.appts.created))
	}
	// The confirmation email must not carry the placeholder as a link.
	if f.notifier.confirmed[0].MeetingLink != "" {
		t.Fatalf("placeholder leaked into notification: %q", f.notifier.confirmed[0].MeetingLink)
	}
}

func TestCreate_CalendarFailureDegradesToPlaceholder(t *testing.T) {
	f := newFixture(t)
	f.cal.createErr = errors.New("mirror write failed")

	appt, err := f.svc.Create(context.Background(), f.createInput(10))
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if appt.CalendarEventID != model.PlaceholderID {
		t.Fatalf("expected placeholder calendar id, got %q", appt.CalendarEventID)
	}
}

func TestCreate_OutsideWorkingHours(t *testing.T) {
	f := newFixture(t)

	in := f.createInput(18)
	_, err := f.svc.Create(context.Background(), in)
	if !errors.Is(err, apperr.ErrOutOfWorkingHours) {
		t.Fatalf("expected out of working hours, got %v", err)
	}
}

func TestCreate_WindowStraddlingClosingTime(t *testing.T) {
	f := newFixture(t)

	in := f.createInput(16)
	in.End = in.Start.Add(2 * time.Hour) // 16:00-18:00, closes at 17:00
	_, err := f.svc.Create(context.Background(), in)
	if !errors.Is(err, apperr.ErrOutOfWorkingHours) {
		t.Fatalf("expected out of working hours, got %v", err)
	}
}

func TestCreate_InvalidWindow(t *testing.T) {
	f := newFixture(t)

	in := f.createInput(10)
	in.End = in.Start
	if _, err := f.svc.Create(context.Background(), in); !errors.Is(err, apperr.ErrInvalidArgument) {
		t.Fatalf("expected invalid argument for empty window, got %v", err)
	}

	past := f.createInput(10)
	past.Start = f.now.Add(-time.Hour)
	past.End = past.Start.Add(time.Hour)
	if _, err := f.svc.Create(context.Background(), past); !errors.Is(err, apperr.ErrInvalidArgument) {
		t.Fatalf("expected invalid argument for past start, got %v", err)
	}
}

func TestCreate_UnknownTimeZone(t *testing.T) {
	f := newFixture(t)

	in := f.createInput(10)
	in.TimeZone = "Mars/Olympus"
	if _, err := f.svc.Create(context.Background(), in); !errors.Is(err, apperr.ErrInvalidArgument) {
		t.Fatalf("expected invalid argument, got %v", err)
	}
}

func TestCreate_UnknownReferences(t *testing.T) {
	f := newFixture(t)

	in := f.createInput(10)
	in.ServiceID = "missing"
	if _, err := f.svc.Create(context.Background(), in); !errors.Is(err, apperr.ErrNotFound) {
		t.Fatalf("expected not found for service, got %v", err)
	}

	in = f.createInput(10)
	in.StaffID = "missing"
	if _, err := f.svc.Create(context.Background(), in); !errors.Is(err, apperr.ErrNotFound) {
		t.Fatalf("expected not found for staff, got %v", err)
	}
}

func TestUpdate_RescheduleSyncsExternals(t *testing.T) {
	f := newFixture(t)
	created, err := f.svc.Create(context.Background(), f.createInput(10))
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	newStart := time.Date(2026, 3, 4, 13, 0, 0, 0, f.loc)
	updated, err := f.svc.Update(context.Background(), created.ID, UpdateInput{
		ActorID: "user-1",
		Start:   newStart,
		End:     newStart.Add(time.Hour),
	})
	if err != nil {
		t.Fatalf("Update: %v", err)
	}
	if !updated.Start.Equal(newStart) {
		t.Fatalf("start not moved: %v", updated.Start)
	}
	if len(f.meetings.updated) != 1 || f.meetings.updated[0] != created.MeetingID {
		t.Fatalf("expected meeting patch, got %v", f.meetings.updated)
	}
	if len(f.cal.rescheduled) != 1 || f.cal.rescheduled[0] != created.CalendarEventID {
		t.Fatalf("expected calendar reschedule, got %v", f.cal.rescheduled)
	}
	if len(f.notifier.confirmed) != 2 {
		t.Fatalf("expected reschedule notification, got %d", len(f.notifier.confirmed))
	}
}

func TestUpdate_CreatesResourcesForPlaceholders(t *testing.T) {
	f := newFixture(t)
	f.meetings.createErr = errors.New("zoom down")
	f.cal.createErr = errors.New("calendar down")
	created, err := f.svc.Create(context.Background(), f.createInput(10))
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	// Providers recover before the reschedule.
	f.meetings.createErr = nil
	f.cal.createErr = nil

	newStart := time.Date(2026, 3, 4, 13, 0, 0, 0, f.loc)
	updated, err := f.svc.Update(context.Background(), created.ID, UpdateInput{
		ActorID: "user-1",
		Start:   newStart,
		End:     newStart.Add(time.Hour),
	})
	if err != nil {
		t.Fatalf("Update: %v", err)
	}
	if updated.MeetingID == model.PlaceholderID {
		t.Fatalf("expected real meeting after recovery")
	}
	if updated.CalendarEventID == model.PlaceholderID {
		t.Fatalf("expected real calendar event after recovery")
	}
	if got := f.cal.sources[updated.CalendarEventID]; got != "appointment:"+updated.ID {
		t.Fatalf("fallback calendar event not linked, got %q", got)
	}
}

func TestUpdate_Forbidden(t *testing.T) {
	f := newFixture(t)
	created, err := f.svc.Create(context.Background(), f.createInput(10))
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	_, err = f.svc.Update(context.Background(), created.ID, UpdateInput{ActorID: "someone-else", Comments: "hi"})
	if !errors.Is(err, apperr.ErrForbidden) {
		t.Fatalf("expected forbidden, got %v", err)
	}
}

func TestUpdate_SelfOverlapExcluded(t *testing.T) {
	f := newFixture(t)
	created, err := f.svc.Create(context.Background(), f.createInput(10))
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	// Pre-check would report the appointment's own row unless excluded.
	f.appts.overlapping = &model.Appointment{ID: created.ID, StaffID: "staff-1"}

	newStart := time.Date(2026, 3, 3, 10, 30, 0, 0, f.loc)
	if _, err := f.svc.Update(context.Background(), created.ID, UpdateInput{
		ActorID: "user-1",
		Start:   newStart,
		End:     newStart.Add(time.Hour),
	}); err != nil {
		t.Fatalf("expected self-overlap to be excluded, got %v", err)
	}
}

func TestUpdate_StaffChangeResyncsExternals(t *testing.T) {
	f := newFixture(t)
	created, err := f.svc.Create(context.Background(), f.createInput(10))
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	updated, err := f.svc.Update(context.Background(), created.ID, UpdateInput{
		ActorID: "user-1",
		StaffID: "staff-2",
	})
	if err != nil {
		t.Fatalf("Update: %v", err)
	}
	if updated.StaffID != "staff-2" {
		t.Fatalf("staff not reassigned: %q", updated.StaffID)
	}
	if len(f.meetings.updated) != 1 || f.meetings.updated[0] != created.MeetingID {
		t.Fatalf("expected meeting re-sync after staff change, got %v", f.meetings.updated)
	}
	if len(f.cal.rescheduled) != 1 || f.cal.rescheduled[0] != created.CalendarEventID {
		t.Fatalf("expected calendar re-sync after staff change, got %v", f.cal.rescheduled)
	}
	// The mirror row must move to the new staff member, or the old one keeps
	// a phantom busy block.
	if f.cal.rescheduledStaff[0] != "staff-2" {
		t.Fatalf("mirror kept old staff reference: %q", f.cal.rescheduledStaff[0])
	}
}

func TestCancel_HappyPath(t *testing.T) {
	f := newFixture(t)
	created, err := f.svc.Create(context.Background(), f.createInput(10))
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	cancelled, err := f.svc.Cancel(context.Background(), created.ID, "user-1", "travel plans")
	if err != nil {
		t.Fatalf("Cancel: %v", err)
	}
	if cancelled.Status != model.StatusCancelled {
		t.Fatalf("expected cancelled, got %s", cancelled.Status)
	}
	if cancelled.CancellationReason != "travel plans" {
		t.Fatalf("reason not recorded: %q", cancelled.CancellationReason)
	}
	if len(f.notifier.cancelled) != 1 {
		t.Fatalf("expected cancellation notification")
	}
	if len(f.cal.cancelled) != 1 || len(f.meetings.deleted) != 1 {
		t.Fatalf("expected external cleanup, calendar=%v meetings=%v", f.cal.cancelled, f.meetings.deleted)
	}
}

func TestCancel_Forbidden(t *testing.T) {
	f := newFixture(t)
	created, err := f.svc.Create(context.Background(), f.createInput(10))
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	_, err = f.svc.Cancel(context.Background(), created.ID, "someone-else", "")
	if !errors.Is(err, apperr.ErrForbidden) {
		t.Fatalf("expected forbidden, got %v", err)
	}
}

func TestCancel_NotFound(t *testing.T) {
	f := newFixture(t)

	_, err := f.svc.Cancel(context.Background(), "missing", "user-1", "")
	if !errors.Is(err, apperr.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestCancel_AlreadyCancelled(t *testing.T) {
	f := newFixture(t)
	created, err := f.svc.Create(context.Background(), f.createInput(10))
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if _, err := f.svc.Cancel(context.Background(), created.ID, "user-1", ""); err != nil {
		t.Fatalf("first cancel: %v", err)
	}

	_, err = f.svc.Cancel(context.Background(), created.ID, "user-1", "")
	if !errors.Is(err, apperr.ErrInvalidState) {
		t.Fatalf("expected invalid state, got %v", err)
	}
}

func TestCancel_Completed(t *testing.T) {
	f := newFixture(t)
	created, err := f.svc.Create(context.Background(), f.createInput(10))
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	f.appts.byID[created.ID].Status = model.StatusCompleted

	_, err = f.svc.Cancel(context.Background(), created.ID, "user-1", "")
	if !errors.Is(err, apperr.ErrInvalidState) {
		t.Fatalf("expected invalid state, got %v", err)
	}
}

func TestCancel_ThresholdBoundary(t *testing.T) {
	f := newFixture(t)

	// now is Mon 09:00; an appointment at Tue 09:00 is exactly 24h away and
	// may still be cancelled.
	atBoundary, err := f.svc.Create(context.Background(), f.createInput(9))
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if _, err := f.svc.Cancel(context.Background(), atBoundary.ID, "user-1", ""); err != nil {
		t.Fatalf("cancel at exact threshold must succeed: %v", err)
	}

	// An appointment later today is inside the cutoff.
	in := f.createInput(15)
	in.Start = time.Date(2026, 3, 2, 15, 0, 0, 0, f.loc)
	in.End = in.Start.Add(time.Hour)
	tooClose, err := f.svc.Create(context.Background(), in)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	_, err = f.svc.Cancel(context.Background(), tooClose.ID, "user-1", "")
	if !errors.Is(err, apperr.ErrInvalidState) {
		t.Fatalf("expected invalid state inside threshold, got %v", err)
	}
}

func TestGet_Ownership(t *testing.T) {
	f := newFixture(t)
	created, err := f.svc.Create(context.Background(), f.createInput(10))
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	if _, err := f.svc.Get(context.Background(), created.ID, "user-1"); err != nil {
		t.Fatalf("owner get: %v", err)
	}
	if _, err := f.svc.Get(context.Background(), created.ID, "someone-else"); !errors.Is(err, apperr.ErrForbidden) {
		t.Fatalf("expected forbidden, got %v", err)
	}
}
