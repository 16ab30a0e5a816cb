package availability

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/ayunierto/ascencio-tax-api/internal/apperr"
	"github.com/ayunierto/ascencio-tax-api/internal/interval"
	"github.com/ayunierto/ascencio-tax-api/internal/model"
)

type fakeServices struct {
	svc *model.Service
}

func (f *fakeServices) Get(_ context.Context, id string) (*model.Service, error) {
	if f.svc == nil || f.svc.ID != id {
		return nil, pgx.ErrNoRows
	}
	return f.svc, nil
}

type fakeStaff struct {
	staff []model.Staff
}

func (f *fakeStaff) ListAssignable(_ context.Context, _ string, _ int) ([]model.Staff, error) {
	return f.staff, nil
}

type fakeSchedules struct {
	byStaff map[string][]model.Schedule
}

func (f *fakeSchedules) ListByStaffAndDay(_ context.Context, staffID string, _ int) ([]model.Schedule, error) {
	return f.byStaff[staffID], nil
}

type fakeAppointments struct {
	byStaff map[string][]model.Appointment
}

func (f *fakeAppointments) ListConfirmedInRange(_ context.Context, staffID string, _, _ time.Time) ([]model.Appointment, error) {
	return f.byStaff[staffID], nil
}

type fakeBusy struct {
	byStaff map[string][]interval.Interval
	err     error
}

func (f *fakeBusy) BusyIntervals(_ context.Context, staffID string, _, _ time.Time, _ string) ([]interval.Interval, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.byStaff[staffID], nil
}

type fakeSettings struct {
	zone string
}

func (f *fakeSettings) BusinessTimeZone(_ context.Context) string {
	return f.zone
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func toronto(t *testing.T) *time.Location {
	t.Helper()
	loc, err := time.LoadLocation("America/Toronto")
	if err != nil {
		t.Fatalf("load location: %v", err)
	}
	return loc
}

// March 2, 2026 is a Monday.
func mondayAt(loc *time.Location, hour, min int) time.Time {
	return time.Date(2026, 3, 2, hour, min, 0, 0, loc)
}

func newTestEngine(services *fakeServices, staff *fakeStaff, schedules *fakeSchedules, appts *fakeAppointments, busy *fakeBusy, now time.Time) *Engine {
	return NewEngine(
		services, staff, schedules, appts, busy,
		&fakeSettings{zone: "America/Toronto"},
		func() time.Time { return now },
		testLogger(),
	)
}

func singleStaffFixture(loc *time.Location) (*fakeServices, *fakeStaff, *fakeSchedules, *fakeAppointments, *fakeBusy) {
	services := &fakeServices{svc: &model.Service{
		ID: "svc-1", Name: "Tax Filing", DurationMinutes: 60,
		Staff: []model.Staff{{ID: "staff-1"}},
	}}
	staff := &fakeStaff{staff: []model.Staff{{ID: "staff-1", FirstName: "Ana", LastName: "Reyes", IsActive: true}}}
	schedules := &fakeSchedules{byStaff: map[string][]model.Schedule{
		"staff-1": {{ID: "sch-1", StaffID: "staff-1", DayOfWeek: 1, StartTime: "09:00", EndTime: "17:00"}},
	}}
	appts := &fakeAppointments{byStaff: map[string][]model.Appointment{
		"staff-1": {{Start: mondayAt(loc, 10, 0), End: mondayAt(loc, 11, 0), Status: model.StatusConfirmed}},
	}}
	busy := &fakeBusy{byStaff: map[string][]interval.Interval{
		"staff-1": {interval.New(mondayAt(loc, 14, 30), mondayAt(loc, 15, 0))},
	}}
	return services, staff, schedules, appts, busy
}

func TestAvailableSlots_SubtractsAppointmentsAndBusyTime(t *testing.T) {
	loc := toronto(t)
	services, staff, schedules, appts, busy := singleStaffFixture(loc)
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, loc)
	engine := newTestEngine(services, staff, schedules, appts, busy, now)

	slots, err := engine.AvailableSlots(context.Background(), Query{ServiceID: "svc-1", Date: "2026-03-02"})
	if err != nil {
		t.Fatalf("AvailableSlots: %v", err)
	}

	wantStarts := []time.Time{
		mondayAt(loc, 9, 0),
		mondayAt(loc, 11, 0),
		mondayAt(loc, 12, 0),
		mondayAt(loc, 13, 0),
		mondayAt(loc, 15, 0),
		mondayAt(loc, 16, 0),
	}
	if len(slots) != len(wantStarts) {
		t.Fatalf("expected %d slots, got %d: %+v", len(wantStarts), len(slots), slots)
	}
	for i, want := range wantStarts {
		if !slots[i].Start.Equal(want) {
			t.Fatalf("slot %d: expected start %v, got %v", i, want, slots[i].Start)
		}
		if !slots[i].End.Equal(want.Add(time.Hour)) {
			t.Fatalf("slot %d: expected end %v, got %v", i, want.Add(time.Hour), slots[i].End)
		}
		if len(slots[i].AvailableStaff) != 1 || slots[i].AvailableStaff[0].ID != "staff-1" {
			t.Fatalf("slot %d: unexpected staff %+v", i, slots[i].AvailableStaff)
		}
	}
}

func TestAvailableSlots_NoSlotOverlapsBusyTime(t *testing.T) {
	loc := toronto(t)
	services, staff, schedules, appts, busy := singleStaffFixture(loc)
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, loc)
	engine := newTestEngine(services, staff, schedules, appts, busy, now)

	slots, err := engine.AvailableSlots(context.Background(), Query{ServiceID: "svc-1", Date: "2026-03-02"})
	if err != nil {
		t.Fatalf("AvailableSlots: %v", err)
	}

	blocked := []interval.Interval{
		interval.New(mondayAt(loc, 10, 0), mondayAt(loc, 11, 0)),
		interval.New(mondayAt(loc, 14, 30), mondayAt(loc, 15, 0)),
	}
	for _, slot := range slots {
		iv := interval.New(slot.Start, slot.End)
		for _, b := range blocked {
			if iv.Overlaps(b) {
				t.Fatalf("slot %+v overlaps blocked %+v", slot, b)
			}
		}
	}
}

func TestAvailableSlots_MergesStaffPerSlot(t *testing.T) {
	loc := toronto(t)
	services := &fakeServices{svc: &model.Service{
		ID: "svc-1", DurationMinutes: 60,
		Staff: []model.Staff{{ID: "staff-1"}, {ID: "staff-2"}},
	}}
	staff := &fakeStaff{staff: []model.Staff{
		{ID: "staff-1", FirstName: "Ana", LastName: "Reyes", IsActive: true},
		{ID: "staff-2", FirstName: "Luis", LastName: "Mora", IsActive: true},
	}}
	schedules := &fakeSchedules{byStaff: map[string][]model.Schedule{
		"staff-1": {{DayOfWeek: 1, StartTime: "09:00", EndTime: "12:00"}},
		"staff-2": {{DayOfWeek: 1, StartTime: "10:00", EndTime: "13:00"}},
	}}
	appts := &fakeAppointments{byStaff: map[string][]model.Appointment{}}
	busy := &fakeBusy{byStaff: map[string][]interval.Interval{}}
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, loc)
	engine := newTestEngine(services, staff, schedules, appts, busy, now)

	slots, err := engine.AvailableSlots(context.Background(), Query{ServiceID: "svc-1", Date: "2026-03-02"})
	if err != nil {
		t.Fatalf("AvailableSlots: %v", err)
	}

	staffAt := make(map[int64]int)
	for _, slot := range slots {
		staffAt[slot.Start.UnixNano()] = len(slot.AvailableStaff)
	}
	if staffAt[mondayAt(loc, 9, 0).UnixNano()] != 1 {
		t.Fatalf("expected one staff at 09:00, got %d", staffAt[mondayAt(loc, 9, 0).UnixNano()])
	}
	if staffAt[mondayAt(loc, 10, 0).UnixNano()] != 2 {
		t.Fatalf("expected two staff at 10:00, got %d", staffAt[mondayAt(loc, 10, 0).UnixNano()])
	}
	if staffAt[mondayAt(loc, 11, 0).UnixNano()] != 2 {
		t.Fatalf("expected two staff at 11:00, got %d", staffAt[mondayAt(loc, 11, 0).UnixNano()])
	}
	if staffAt[mondayAt(loc, 12, 0).UnixNano()] != 1 {
		t.Fatalf("expected one staff at 12:00, got %d", staffAt[mondayAt(loc, 12, 0).UnixNano()])
	}
}

func TestAvailableSlots_ResultsSortedAscending(t *testing.T) {
	loc := toronto(t)
	services, staff, schedules, appts, busy := singleStaffFixture(loc)
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, loc)
	engine := newTestEngine(services, staff, schedules, appts, busy, now)

	slots, err := engine.AvailableSlots(context.Background(), Query{ServiceID: "svc-1", Date: "2026-03-02"})
	if err != nil {
		t.Fatalf("AvailableSlots: %v", err)
	}
	for i := 1; i < len(slots); i++ {
		if !slots[i-1].Start.Before(slots[i].Start) {
			t.Fatalf("slots out of order at %d: %v >= %v", i, slots[i-1].Start, slots[i].Start)
		}
	}
}

func TestAvailableSlots_ExcludesPastAndCurrentSlots(t *testing.T) {
	loc := toronto(t)
	services, staff, schedules, appts, busy := singleStaffFixture(loc)
	// Midday on the searched date: 13:00 is the exact next tile boundary.
	now := mondayAt(loc, 13, 0)
	engine := newTestEngine(services, staff, schedules, appts, busy, now)

	slots, err := engine.AvailableSlots(context.Background(), Query{ServiceID: "svc-1", Date: "2026-03-02"})
	if err != nil {
		t.Fatalf("AvailableSlots: %v", err)
	}
	for _, slot := range slots {
		if !slot.Start.After(now) {
			t.Fatalf("slot %v does not start after now %v", slot.Start, now)
		}
	}
	// A slot starting exactly at now must be excluded.
	for _, slot := range slots {
		if slot.Start.Equal(now) {
			t.Fatalf("slot starting at now leaked through")
		}
	}
	if len(slots) != 2 {
		t.Fatalf("expected 2 remaining slots (15:00, 16:00), got %d: %+v", len(slots), slots)
	}
}

func TestAvailableSlots_CalendarFailureDegradesGracefully(t *testing.T) {
	loc := toronto(t)
	services, staff, schedules, appts, busy := singleStaffFixture(loc)
	busy.err = errors.New("calendar unavailable")
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, loc)
	engine := newTestEngine(services, staff, schedules, appts, busy, now)

	slots, err := engine.AvailableSlots(context.Background(), Query{ServiceID: "svc-1", Date: "2026-03-02"})
	if err != nil {
		t.Fatalf("expected degraded success, got %v", err)
	}
	// With calendar data gone only the appointment is subtracted, so the
	// 14:00 tile reappears.
	var found bool
	for _, slot := range slots {
		if slot.Start.Equal(mondayAt(loc, 14, 0)) {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected 14:00 slot in degraded mode, got %+v", slots)
	}
}

func TestAvailableSlots_NoStaffScheduledThatDay(t *testing.T) {
	loc := toronto(t)
	services := &fakeServices{svc: &model.Service{
		ID: "svc-1", DurationMinutes: 60,
		Staff: []model.Staff{{ID: "staff-1"}},
	}}
	engine := newTestEngine(services, &fakeStaff{}, &fakeSchedules{}, &fakeAppointments{}, &fakeBusy{},
		time.Date(2026, 3, 1, 12, 0, 0, 0, loc))

	slots, err := engine.AvailableSlots(context.Background(), Query{ServiceID: "svc-1", Date: "2026-03-02"})
	if err != nil {
		t.Fatalf("AvailableSlots: %v", err)
	}
	if len(slots) != 0 {
		t.Fatalf("expected no slots, got %+v", slots)
	}
}

func TestAvailableSlots_ServiceWithoutStaff(t *testing.T) {
	loc := toronto(t)
	services := &fakeServices{svc: &model.Service{ID: "svc-1", DurationMinutes: 60}}
	engine := newTestEngine(services, &fakeStaff{}, &fakeSchedules{}, &fakeAppointments{}, &fakeBusy{},
		time.Date(2026, 3, 1, 12, 0, 0, 0, loc))

	_, err := engine.AvailableSlots(context.Background(), Query{ServiceID: "svc-1", Date: "2026-03-02"})
	if !errors.Is(err, apperr.ErrInvalidConfiguration) {
		t.Fatalf("expected invalid configuration, got %v", err)
	}
}

func TestAvailableSlots_StaffFilter(t *testing.T) {
	loc := toronto(t)
	services := &fakeServices{svc: &model.Service{
		ID: "svc-1", DurationMinutes: 60,
		Staff: []model.Staff{{ID: "staff-1"}, {ID: "staff-2"}},
	}}
	staff := &fakeStaff{staff: []model.Staff{
		{ID: "staff-1", IsActive: true},
		{ID: "staff-2", IsActive: true},
	}}
	schedules := &fakeSchedules{byStaff: map[string][]model.Schedule{
		"staff-1": {{DayOfWeek: 1, StartTime: "09:00", EndTime: "11:00"}},
		"staff-2": {{DayOfWeek: 1, StartTime: "09:00", EndTime: "11:00"}},
	}}
	engine := newTestEngine(services, staff, schedules, &fakeAppointments{}, &fakeBusy{},
		time.Date(2026, 3, 1, 12, 0, 0, 0, loc))

	slots, err := engine.AvailableSlots(context.Background(), Query{
		ServiceID: "svc-1", Date: "2026-03-02", StaffID: "staff-2",
	})
	if err != nil {
		t.Fatalf("AvailableSlots: %v", err)
	}
	for _, slot := range slots {
		if len(slot.AvailableStaff) != 1 || slot.AvailableStaff[0].ID != "staff-2" {
			t.Fatalf("expected only staff-2, got %+v", slot.AvailableStaff)
		}
	}
}

func TestAvailableSlots_MultipleScheduleWindowsUnioned(t *testing.T) {
	loc := toronto(t)
	services := &fakeServices{svc: &model.Service{
		ID: "svc-1", DurationMinutes: 60,
		Staff: []model.Staff{{ID: "staff-1"}},
	}}
	staff := &fakeStaff{staff: []model.Staff{{ID: "staff-1", IsActive: true}}}
	schedules := &fakeSchedules{byStaff: map[string][]model.Schedule{
		"staff-1": {
			{DayOfWeek: 1, StartTime: "09:00", EndTime: "12:00"},
			{DayOfWeek: 1, StartTime: "10:00", EndTime: "13:00"},
		},
	}}
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, loc)
	engine := newTestEngine(services, staff, schedules, &fakeAppointments{}, &fakeBusy{}, now)

	slots, err := engine.AvailableSlots(context.Background(), Query{ServiceID: "svc-1", Date: "2026-03-02"})
	if err != nil {
		t.Fatalf("AvailableSlots: %v", err)
	}

	wantStarts := []time.Time{
		mondayAt(loc, 9, 0),
		mondayAt(loc, 10, 0),
		mondayAt(loc, 11, 0),
		mondayAt(loc, 12, 0),
	}
	if len(slots) != len(wantStarts) {
		t.Fatalf("expected %d slots, got %d: %+v", len(wantStarts), len(slots), slots)
	}
	for i, want := range wantStarts {
		if !slots[i].Start.Equal(want) {
			t.Fatalf("slot %d: expected start %v, got %v", i, want, slots[i].Start)
		}
		if len(slots[i].AvailableStaff) != 1 {
			t.Fatalf("slot %v lists staff %d times, want once: %+v",
				slots[i].Start, len(slots[i].AvailableStaff), slots[i].AvailableStaff)
		}
	}
}

func TestAvailableSlots_RequesterZoneRoundTrip(t *testing.T) {
	loc := toronto(t)
	tokyo, err := time.LoadLocation("Asia/Tokyo")
	if err != nil {
		t.Fatalf("load location: %v", err)
	}
	services, staff, schedules, appts, busy := singleStaffFixture(loc)
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, loc)
	engine := newTestEngine(services, staff, schedules, appts, busy, now)

	local, err := engine.AvailableSlots(context.Background(), Query{ServiceID: "svc-1", Date: "2026-03-02"})
	if err != nil {
		t.Fatalf("AvailableSlots: %v", err)
	}
	remote, err := engine.AvailableSlots(context.Background(), Query{
		ServiceID: "svc-1", Date: "2026-03-02", TimeZone: "Asia/Tokyo",
	})
	if err != nil {
		t.Fatalf("AvailableSlots: %v", err)
	}

	// The date names the business-local day regardless of where the
	// requester is, so both searches see the same openings.
	if len(remote) != len(local) {
		t.Fatalf("expected %d slots, got %d: %+v", len(local), len(remote), remote)
	}
	for i := range remote {
		if !remote[i].Start.Equal(local[i].Start) {
			t.Fatalf("slot %d: expected %v, got %v", i, local[i].Start, remote[i].Start)
		}
		// Reprojecting through both zones lands on the identical instant.
		roundTrip := remote[i].Start.In(tokyo).In(loc)
		if !roundTrip.Equal(remote[i].Start) {
			t.Fatalf("slot %d: zone round trip moved %v to %v", i, remote[i].Start, roundTrip)
		}
	}
}

func TestAvailableSlots_DSTSpringForward(t *testing.T) {
	loc := toronto(t)
	// March 8, 2026: clocks jump 02:00 -> 03:00 in Toronto.
	services := &fakeServices{svc: &model.Service{
		ID: "svc-1", DurationMinutes: 60,
		Staff: []model.Staff{{ID: "staff-1"}},
	}}
	staff := &fakeStaff{staff: []model.Staff{{ID: "staff-1", IsActive: true}}}
	schedules := &fakeSchedules{byStaff: map[string][]model.Schedule{
		"staff-1": {{DayOfWeek: 0, StartTime: "09:00", EndTime: "17:00"}},
	}}
	now := time.Date(2026, 3, 7, 12, 0, 0, 0, loc)
	engine := newTestEngine(services, staff, schedules, &fakeAppointments{}, &fakeBusy{}, now)

	slots, err := engine.AvailableSlots(context.Background(), Query{ServiceID: "svc-1", Date: "2026-03-08"})
	if err != nil {
		t.Fatalf("AvailableSlots: %v", err)
	}
	if len(slots) != 8 {
		t.Fatalf("expected 8 slots, got %d: %+v", len(slots), slots)
	}
	for i, slot := range slots {
		want := time.Date(2026, 3, 8, 9+i, 0, 0, 0, loc)
		if !slot.Start.Equal(want) {
			t.Fatalf("slot %d: expected wall-clock %v, got %v", i, want, slot.Start)
		}
	}
	// After the transition the business day runs on EDT (UTC-4).
	if slots[0].Start.UTC().Hour() != 13 {
		t.Fatalf("expected 09:00 EDT to be 13:00 UTC, got %v", slots[0].Start.UTC())
	}
}

func TestAvailableSlots_TilingBoundaries(t *testing.T) {
	loc := toronto(t)
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, loc)

	cases := []struct {
		name      string
		endTime   string
		wantSlots int
	}{
		{"ExactFit", "11:00", 1},
		{"OneMinuteShort", "10:59", 0},
		{"TwoBackToBack", "12:00", 2},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			services := &fakeServices{svc: &model.Service{
				ID: "svc-1", DurationMinutes: 60,
				Staff: []model.Staff{{ID: "staff-1"}},
			}}
			staff := &fakeStaff{staff: []model.Staff{{ID: "staff-1", IsActive: true}}}
			schedules := &fakeSchedules{byStaff: map[string][]model.Schedule{
				"staff-1": {{DayOfWeek: 1, StartTime: "10:00", EndTime: tc.endTime}},
			}}
			engine := newTestEngine(services, staff, schedules, &fakeAppointments{}, &fakeBusy{}, now)

			slots, err := engine.AvailableSlots(context.Background(), Query{ServiceID: "svc-1", Date: "2026-03-02"})
			if err != nil {
				t.Fatalf("AvailableSlots: %v", err)
			}
			if len(slots) != tc.wantSlots {
				t.Fatalf("expected %d slots, got %d: %+v", tc.wantSlots, len(slots), slots)
			}
			for i := 1; i < len(slots); i++ {
				if !slots[i].Start.Equal(slots[i-1].End) {
					t.Fatalf("slots not back-to-back: %v then %v", slots[i-1], slots[i])
				}
			}
		})
	}
}

func TestAvailableSlots_InvalidDate(t *testing.T) {
	loc := toronto(t)
	services, staff, schedules, appts, busy := singleStaffFixture(loc)
	engine := newTestEngine(services, staff, schedules, appts, busy, time.Now())

	_, err := engine.AvailableSlots(context.Background(), Query{ServiceID: "svc-1", Date: "03/02/2026"})
	if !errors.Is(err, apperr.ErrInvalidArgument) {
		t.Fatalf("expected invalid argument, got %v", err)
	}
}

func TestAvailableSlots_UnknownRequesterZone(t *testing.T) {
	loc := toronto(t)
	services, staff, schedules, appts, busy := singleStaffFixture(loc)
	engine := newTestEngine(services, staff, schedules, appts, busy, time.Now())

	_, err := engine.AvailableSlots(context.Background(), Query{
		ServiceID: "svc-1", Date: "2026-03-02", TimeZone: "Mars/Olympus",
	})
	if !errors.Is(err, apperr.ErrInvalidArgument) {
		t.Fatalf("expected invalid argument, got %v", err)
	}
}

func TestAvailableSlots_UnknownService(t *testing.T) {
	loc := toronto(t)
	engine := newTestEngine(&fakeServices{}, &fakeStaff{}, &fakeSchedules{}, &fakeAppointments{}, &fakeBusy{},
		time.Date(2026, 3, 1, 12, 0, 0, 0, loc))

	_, err := engine.AvailableSlots(context.Background(), Query{ServiceID: "missing", Date: "2026-03-02"})
	if !errors.Is(err, apperr.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestAvailableSlots_ServiceWithoutDuration(t *testing.T) {
	loc := toronto(t)
	services := &fakeServices{svc: &model.Service{ID: "svc-1", DurationMinutes: 0}}
	engine := newTestEngine(services, &fakeStaff{}, &fakeSchedules{}, &fakeAppointments{}, &fakeBusy{},
		time.Date(2026, 3, 1, 12, 0, 0, 0, loc))

	_, err := engine.AvailableSlots(context.Background(), Query{ServiceID: "svc-1", Date: "2026-03-02"})
	if !errors.Is(err, apperr.ErrInvalidConfiguration) {
		t.Fatalf("expected invalid configuration, got %v", err)
	}
}
