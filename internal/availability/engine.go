package availability

import (
	"context"
	"log/slog"
	"sort"
	"time"

	"github.com/ayunierto/ascencio-tax-api/internal/apperr"
	"github.com/ayunierto/ascencio-tax-api/internal/interval"
	"github.com/ayunierto/ascencio-tax-api/internal/model"
	"github.com/ayunierto/ascencio-tax-api/internal/storage"
)

type ServiceSource interface {
	Get(ctx context.Context, id string) (*model.Service, error)
}

type StaffSource interface {
	ListAssignable(ctx context.Context, serviceID string, dayOfWeek int) ([]model.Staff, error)
}

type ScheduleSource interface {
	ListByStaffAndDay(ctx context.Context, staffID string, dayOfWeek int) ([]model.Schedule, error)
}

type AppointmentSource interface {
	ListConfirmedInRange(ctx context.Context, staffID string, from, to time.Time) ([]model.Appointment, error)
}

// BusySource supplies external busy time, read from the calendar mirror.
type BusySource interface {
	BusyIntervals(ctx context.Context, staffID string, from, to time.Time, excludeSourceID string) ([]interval.Interval, error)
}

type Settings interface {
	BusinessTimeZone(ctx context.Context) string
}

// Engine computes bookable slots for a service on a given day. All slot
// arithmetic happens in the business timezone; results carry absolute
// instants.
type Engine struct {
	services     ServiceSource
	staff        StaffSource
	schedules    ScheduleSource
	appointments AppointmentSource
	busy         BusySource
	settings     Settings
	now          func() time.Time
	logger       *slog.Logger
}

func NewEngine(
	services ServiceSource,
	staff StaffSource,
	schedules ScheduleSource,
	appointments AppointmentSource,
	busy BusySource,
	settings Settings,
	now func() time.Time,
	logger *slog.Logger,
) *Engine {
	if now == nil {
		now = time.Now
	}
	return &Engine{
		services:     services,
		staff:        staff,
		schedules:    schedules,
		appointments: appointments,
		busy:         busy,
		settings:     settings,
		now:          now,
		logger:       logger,
	}
}

// Query describes one availability search. TimeZone is the requester's zone
// and only affects date validation; StaffID optionally narrows the search to
// one staff member.
type Query struct {
	ServiceID string
	Date      string
	TimeZone  string
	StaffID   string
}

// AvailableSlots returns every bookable slot for the service on the date,
// grouped by start time with the staff able to take each slot. Past slots are
// excluded; a day with no assignable staff yields an empty result, not an
// error.
func (e *Engine) AvailableSlots(ctx context.Context, q Query) ([]model.AvailableSlot, error) {
	requesterLoc := time.UTC
	if q.TimeZone != "" {
		loc, err := time.LoadLocation(q.TimeZone)
		if err != nil {
			return nil, apperr.E(apperr.ErrInvalidArgument, "unknown time zone %q", q.TimeZone)
		}
		requesterLoc = loc
	}

	parsed, err := time.ParseInLocation("2006-01-02", q.Date, requesterLoc)
	if err != nil {
		return nil, apperr.E(apperr.ErrInvalidArgument, "date must be YYYY-MM-DD, got %q", q.Date)
	}

	bizZone := e.settings.BusinessTimeZone(ctx)
	bizLoc, err := time.LoadLocation(bizZone)
	if err != nil {
		return nil, apperr.E(apperr.ErrInvalidConfiguration, "business time zone %q is invalid", bizZone)
	}

	// Same wall-clock date, re-anchored in the business zone.
	year, month, day := parsed.Date()
	dayStart := time.Date(year, month, day, 0, 0, 0, 0, bizLoc)
	dayEnd := dayStart.AddDate(0, 0, 1)
	dayOfWeek := int(dayStart.Weekday())

	svc, err := e.services.Get(ctx, q.ServiceID)
	if err != nil {
		if storage.IsNotFound(err) {
			return nil, apperr.E(apperr.ErrNotFound, "service %s", q.ServiceID)
		}
		return nil, err
	}
	if svc.DurationMinutes <= 0 {
		return nil, apperr.E(apperr.ErrInvalidConfiguration, "service %s has no duration", svc.ID)
	}
	if len(svc.Staff) == 0 {
		return nil, apperr.E(apperr.ErrInvalidConfiguration, "service %s has no assigned staff", svc.ID)
	}
	duration := time.Duration(svc.DurationMinutes) * time.Minute

	staffList, err := e.staff.ListAssignable(ctx, q.ServiceID, dayOfWeek)
	if err != nil {
		return nil, err
	}
	if q.StaffID != "" {
		filtered := staffList[:0]
		for _, st := range staffList {
			if st.ID == q.StaffID {
				filtered = append(filtered, st)
			}
		}
		staffList = filtered
	}

	now := e.now()
	byStart := make(map[int64]*model.AvailableSlot)

	for _, st := range staffList {
		free, err := e.freeIntervals(ctx, st.ID, dayStart, dayEnd, dayOfWeek, bizLoc, now)
		if err != nil {
			return nil, err
		}
		for _, iv := range free {
			for s := iv.Start; !s.Add(duration).After(iv.End); s = s.Add(duration) {
				if !s.After(now) {
					continue
				}
				key := s.UnixNano()
				slot, ok := byStart[key]
				if !ok {
					slot = &model.AvailableSlot{Start: s, End: s.Add(duration)}
					byStart[key] = slot
				}
				slot.AvailableStaff = append(slot.AvailableStaff, st)
			}
		}
	}

	slots := make([]model.AvailableSlot, 0, len(byStart))
	for _, slot := range byStart {
		slots = append(slots, *slot)
	}
	sort.Slice(slots, func(i, j int) bool {
		return slots[i].Start.Before(slots[j].Start)
	})
	return slots, nil
}

// freeIntervals builds the staff member's working windows for the day and
// subtracts confirmed appointments and calendar busy time. A calendar read
// failure degrades to internal data only.
func (e *Engine) freeIntervals(ctx context.Context, staffID string, dayStart, dayEnd time.Time, dayOfWeek int, bizLoc *time.Location, now time.Time) ([]interval.Interval, error) {
	scheds, err := e.schedules.ListByStaffAndDay(ctx, staffID, dayOfWeek)
	if err != nil {
		return nil, err
	}

	var base []interval.Interval
	for _, sched := range scheds {
		iv, ok := scheduleInterval(sched, dayStart, bizLoc)
		if !ok {
			e.logger.Warn("skipping malformed schedule",
				"schedule_id", sched.ID,
				"start", sched.StartTime,
				"end", sched.EndTime,
			)
			continue
		}
		base = append(base, iv)
	}
	if len(base) == 0 {
		return nil, nil
	}
	// Same-day windows may overlap or touch; union them so a staff member is
	// offered each start at most once.
	base = interval.Merge(base)

	var busy []interval.Interval
	appts, err := e.appointments.ListConfirmedInRange(ctx, staffID, dayStart, dayEnd)
	if err != nil {
		return nil, err
	}
	for _, appt := range appts {
		busy = append(busy, interval.New(appt.Start, appt.End))
	}

	calendarBusy, err := e.busy.BusyIntervals(ctx, staffID, dayStart, dayEnd, "")
	if err != nil {
		e.logger.Warn("calendar busy lookup failed, continuing with internal data only",
			"staff_id", staffID,
			"error", err,
		)
	} else {
		busy = append(busy, calendarBusy...)
	}

	free := interval.SubtractAll(base, busy)

	// Intervals fully in the past cannot yield slots.
	current := free[:0]
	for _, iv := range free {
		if iv.End.After(now) {
			current = append(current, iv)
		}
	}
	return current, nil
}

// scheduleInterval anchors an HH:mm window on the given day in the business
// zone. Windows that do not move forward are rejected.
func scheduleInterval(sched model.Schedule, dayStart time.Time, bizLoc *time.Location) (interval.Interval, bool) {
	start, err1 := time.Parse("15:04", sched.StartTime)
	end, err2 := time.Parse("15:04", sched.EndTime)
	if err1 != nil || err2 != nil {
		return interval.Interval{}, false
	}
	year, month, day := dayStart.Date()
	iv := interval.New(
		time.Date(year, month, day, start.Hour(), start.Minute(), 0, 0, bizLoc),
		time.Date(year, month, day, end.Hour(), end.Minute(), 0, 0, bizLoc),
	)
	if !iv.Valid() {
		return interval.Interval{}, false
	}
	return iv, true
}
