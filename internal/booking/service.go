package booking

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/ayunierto/ascencio-tax-api/internal/apperr"
	"github.com/ayunierto/ascencio-tax-api/internal/interval"
	"github.com/ayunierto/ascencio-tax-api/internal/meetings"
	"github.com/ayunierto/ascencio-tax-api/internal/model"
	"github.com/ayunierto/ascencio-tax-api/internal/notification"
	"github.com/ayunierto/ascencio-tax-api/internal/storage"
)

type AppointmentStore interface {
	Create(ctx context.Context, appt *model.Appointment) error
	Update(ctx context.Context, appt *model.Appointment) error
	Get(ctx context.Context, id string) (*model.Appointment, error)
	FindOverlapping(ctx context.Context, staffID string, start, end time.Time, excludeID string) (*model.Appointment, error)
	Cancel(ctx context.Context, id, reason string) (time.Time, error)
	ListByUser(ctx context.Context, userID string, now time.Time, upcoming bool, limit int) ([]model.Appointment, error)
}

type ScheduleSource interface {
	ListByStaffAndDay(ctx context.Context, staffID string, dayOfWeek int) ([]model.Schedule, error)
}

type ServiceSource interface {
	Get(ctx context.Context, id string) (*model.Service, error)
}

type StaffSource interface {
	Get(ctx context.Context, id string) (*model.Staff, error)
}

type UserSource interface {
	Get(ctx context.Context, id string) (*model.User, error)
}

// CalendarService is the mirror-backed calendar surface the orchestrator
// needs. BusyOverlaps reads internal data only; the mutation methods sync the
// external provider best-effort.
type CalendarService interface {
	Create(ctx context.Context, ev *model.CalendarEvent, attendees []string) error
	Reschedule(ctx context.Context, id string, start, end time.Time, timeZone, staffID string, attendees []string) error
	Cancel(ctx context.Context, id string) error
	SetSource(ctx context.Context, id, sourceType, sourceID string) error
	BusyOverlaps(ctx context.Context, staffID string, start, end time.Time, excludeSourceID string) (bool, error)
}

type Notifier interface {
	AppointmentConfirmed(ctx context.Context, ev notification.AppointmentEvent) error
	AppointmentCancelled(ctx context.Context, ev notification.AppointmentEvent) error
}

type Settings interface {
	BusinessTimeZone(ctx context.Context) string
	CancellationMinHours(ctx context.Context) int
}

// Service orchestrates appointment booking: validation, conflict checks,
// external resource provisioning and notification. External failures degrade
// to placeholders; the appointment itself is the unit that must not be lost.
type Service struct {
	appointments AppointmentStore
	schedules    ScheduleSource
	services     ServiceSource
	staff        StaffSource
	users        UserSource
	calendar     CalendarService
	meetings     meetings.Gateway
	notifier     Notifier
	settings     Settings
	now          func() time.Time
	logger       *slog.Logger
	extTimeout   time.Duration
}

func NewService(
	appointments AppointmentStore,
	schedules ScheduleSource,
	services ServiceSource,
	staff StaffSource,
	users UserSource,
	cal CalendarService,
	meetingsGw meetings.Gateway,
	notifier Notifier,
	settings Settings,
	now func() time.Time,
	logger *slog.Logger,
) *Service {
	if now == nil {
		now = time.Now
	}
	return &Service{
		appointments: appointments,
		schedules:    schedules,
		services:     services,
		staff:        staff,
		users:        users,
		calendar:     cal,
		meetings:     meetingsGw,
		notifier:     notifier,
		settings:     settings,
		now:          now,
		logger:       logger,
		extTimeout:   10 * time.Second,
	}
}

type CreateInput struct {
	UserID    string
	StaffID   string
	ServiceID string
	Start     time.Time
	End       time.Time
	TimeZone  string
	Comments  string
	Source    string
}

type UpdateInput struct {
	ActorID  string
	StaffID  string
	Start    time.Time
	End      time.Time
	TimeZone string
	Comments string
}

// Create books an appointment. The overlap pre-check gives a friendly
// conflict error; the database exclusion constraint is the authoritative
// guard, so two racing requests for the same slot cannot both land.
func (s *Service) Create(ctx context.Context, in CreateInput) (*model.Appointment, error) {
	tz, err := s.resolveTimeZone(ctx, in.TimeZone)
	if err != nil {
		return nil, err
	}
	if err := s.validateWindow(in.Start, in.End); err != nil {
		return nil, err
	}

	svc, err := s.services.Get(ctx, in.ServiceID)
	if err != nil {
		return nil, classifyLookup(err, "service %s", in.ServiceID)
	}
	st, err := s.staff.Get(ctx, in.StaffID)
	if err != nil {
		return nil, classifyLookup(err, "staff %s", in.StaffID)
	}
	user, err := s.users.Get(ctx, in.UserID)
	if err != nil {
		return nil, classifyLookup(err, "user %s", in.UserID)
	}

	if err := s.checkWithinWorkingHours(ctx, in.StaffID, in.Start, in.End); err != nil {
		return nil, err
	}
	if err := s.checkFree(ctx, in.StaffID, in.Start, in.End, ""); err != nil {
		return nil, err
	}

	appt := &model.Appointment{
		UserID:    in.UserID,
		StaffID:   in.StaffID,
		ServiceID: in.ServiceID,
		Start:     in.Start,
		End:       in.End,
		TimeZone:  tz,
		Status:    model.StatusConfirmed,
		Comments:  in.Comments,
		Source:    in.Source,
	}
	if appt.Source == "" {
		appt.Source = "app"
	}

	meeting := s.provisionMeeting(ctx, svc, st, user, in.Start, in.End, tz)
	appt.MeetingID = meeting.ID
	appt.MeetingLink = meeting.JoinURL

	ev := s.mirrorEvent(svc, st, user, appt)
	if err := s.calendar.Create(ctx, ev, []string{user.Email, st.Email}); err != nil {
		s.logger.Warn("calendar event creation failed, booking proceeds", "err", err)
		appt.CalendarEventID = model.PlaceholderID
	} else {
		appt.CalendarEventID = ev.ID
	}

	if err := s.appointments.Create(ctx, appt); err != nil {
		s.rollbackExternal(ctx, appt)
		if storage.IsConflict(err) {
			return nil, apperr.E(apperr.ErrConflict, "slot already taken")
		}
		return nil, err
	}

	// Link the mirror row back now that the appointment id exists.
	if appt.CalendarEventID != model.PlaceholderID {
		if err := s.calendar.SetSource(ctx, appt.CalendarEventID, "appointment", appt.ID); err != nil {
			s.logger.Warn("linking calendar event to appointment failed",
				"appointment_id", appt.ID, "event_id", appt.CalendarEventID, "err", err)
		}
	}

	if err := s.notifier.AppointmentConfirmed(ctx, s.event(appt, svc, st, user, "")); err != nil {
		s.logger.Warn("confirmation notification failed", "appointment_id", appt.ID, "err", err)
	}
	return appt, nil
}

// Update reschedules an appointment. Conflict checks exclude the
// appointment's own row and mirror event; placeholder external ids get a
// fresh resource created instead of patched.
func (s *Service) Update(ctx context.Context, id string, in UpdateInput) (*model.Appointment, error) {
	appt, err := s.appointments.Get(ctx, id)
	if err != nil {
		return nil, classifyLookup(err, "appointment %s", id)
	}
	if in.ActorID != "" && appt.UserID != in.ActorID {
		return nil, apperr.E(apperr.ErrForbidden, "appointment %s does not belong to the caller", id)
	}
	if appt.Status == model.StatusCancelled || appt.Status == model.StatusCompleted {
		return nil, apperr.E(apperr.ErrInvalidState, "appointment %s is %s", id, appt.Status)
	}

	if in.TimeZone != "" {
		tz, err := s.resolveTimeZone(ctx, in.TimeZone)
		if err != nil {
			return nil, err
		}
		appt.TimeZone = tz
	}
	staffChanged := false
	if in.StaffID != "" && in.StaffID != appt.StaffID {
		if _, err := s.staff.Get(ctx, in.StaffID); err != nil {
			return nil, classifyLookup(err, "staff %s", in.StaffID)
		}
		appt.StaffID = in.StaffID
		staffChanged = true
	}

	rescheduled := false
	if !in.Start.IsZero() || !in.End.IsZero() {
		if in.Start.IsZero() || in.End.IsZero() {
			return nil, apperr.E(apperr.ErrInvalidArgument, "start and end must be updated together")
		}
		if err := s.validateWindow(in.Start, in.End); err != nil {
			return nil, err
		}
		appt.Start = in.Start
		appt.End = in.End
		rescheduled = true
	}
	if in.Comments != "" {
		appt.Comments = in.Comments
	}

	if rescheduled || staffChanged {
		if err := s.checkWithinWorkingHours(ctx, appt.StaffID, appt.Start, appt.End); err != nil {
			return nil, err
		}
		if err := s.checkFree(ctx, appt.StaffID, appt.Start, appt.End, appt.ID); err != nil {
			return nil, err
		}
	}

	svc, err := s.services.Get(ctx, appt.ServiceID)
	if err != nil {
		return nil, classifyLookup(err, "service %s", appt.ServiceID)
	}
	st, err := s.staff.Get(ctx, appt.StaffID)
	if err != nil {
		return nil, classifyLookup(err, "staff %s", appt.StaffID)
	}
	user, err := s.users.Get(ctx, appt.UserID)
	if err != nil {
		return nil, classifyLookup(err, "user %s", appt.UserID)
	}

	// A changed window or staff member must be reflected in the external
	// resources; the mirror row in particular carries the busy time, so a
	// stale staff reference would keep blocking the previous staff member.
	if rescheduled || staffChanged {
		s.syncMeeting(ctx, appt, svc, st, user)
		s.syncCalendarEvent(ctx, appt, svc, st, user)
	}

	if err := s.appointments.Update(ctx, appt); err != nil {
		if storage.IsConflict(err) {
			return nil, apperr.E(apperr.ErrConflict, "slot already taken")
		}
		return nil, classifyLookup(err, "appointment %s", id)
	}

	if rescheduled {
		if err := s.notifier.AppointmentConfirmed(ctx, s.event(appt, svc, st, user, "")); err != nil {
			s.logger.Warn("reschedule notification failed", "appointment_id", appt.ID, "err", err)
		}
	}
	return appt, nil
}

// Cancel cancels an appointment. The record is updated first; external
// cleanup and notification are best-effort afterwards.
func (s *Service) Cancel(ctx context.Context, id, actorID, reason string) (*model.Appointment, error) {
	appt, err := s.appointments.Get(ctx, id)
	if err != nil {
		return nil, classifyLookup(err, "appointment %s", id)
	}
	if actorID != "" && appt.UserID != actorID {
		return nil, apperr.E(apperr.ErrForbidden, "appointment %s does not belong to the caller", id)
	}
	if appt.Status == model.StatusCancelled {
		return nil, apperr.E(apperr.ErrInvalidState, "appointment %s is already cancelled", id)
	}
	if appt.Status == model.StatusCompleted {
		return nil, apperr.E(apperr.ErrInvalidState, "appointment %s is completed", id)
	}

	minHours := s.settings.CancellationMinHours(ctx)
	if appt.Start.Sub(s.now()) < time.Duration(minHours)*time.Hour {
		return nil, apperr.E(apperr.ErrInvalidState,
			"appointments must be cancelled at least %d hours before the start", minHours)
	}

	cancelledAt, err := s.appointments.Cancel(ctx, id, reason)
	if err != nil {
		return nil, classifyLookup(err, "appointment %s", id)
	}
	appt.Status = model.StatusCancelled
	appt.CancellationReason = reason
	appt.CancelledAt = &cancelledAt

	var svc *model.Service
	var st *model.Staff
	var user *model.User
	if svc, err = s.services.Get(ctx, appt.ServiceID); err != nil {
		svc = &model.Service{ID: appt.ServiceID}
	}
	if st, err = s.staff.Get(ctx, appt.StaffID); err != nil {
		st = &model.Staff{ID: appt.StaffID}
	}
	if user, err = s.users.Get(ctx, appt.UserID); err != nil {
		user = &model.User{ID: appt.UserID}
	}

	if err := s.notifier.AppointmentCancelled(ctx, s.event(appt, svc, st, user, reason)); err != nil {
		s.logger.Warn("cancellation notification failed", "appointment_id", appt.ID, "err", err)
	}

	s.rollbackExternal(ctx, appt)
	return appt, nil
}

func (s *Service) Get(ctx context.Context, id, actorID string) (*model.Appointment, error) {
	appt, err := s.appointments.Get(ctx, id)
	if err != nil {
		return nil, classifyLookup(err, "appointment %s", id)
	}
	if actorID != "" && appt.UserID != actorID {
		return nil, apperr.E(apperr.ErrForbidden, "appointment %s does not belong to the caller", id)
	}
	return appt, nil
}

func (s *Service) ListByUser(ctx context.Context, userID string, upcoming bool, limit int) ([]model.Appointment, error) {
	return s.appointments.ListByUser(ctx, userID, s.now(), upcoming, limit)
}

func (s *Service) resolveTimeZone(ctx context.Context, tz string) (string, error) {
	if tz == "" {
		tz = s.settings.BusinessTimeZone(ctx)
	}
	if _, err := time.LoadLocation(tz); err != nil {
		return "", apperr.E(apperr.ErrInvalidArgument, "unknown time zone %q", tz)
	}
	return tz, nil
}

func (s *Service) validateWindow(start, end time.Time) error {
	if !end.After(start) {
		return apperr.E(apperr.ErrInvalidArgument, "end must be after start")
	}
	if !start.After(s.now()) {
		return apperr.E(apperr.ErrInvalidArgument, "appointments must start in the future")
	}
	return nil
}

// checkWithinWorkingHours verifies [start, end) is covered by the staff
// member's schedule windows for that weekday, evaluated in the business
// timezone. Coverage across adjoining windows counts.
func (s *Service) checkWithinWorkingHours(ctx context.Context, staffID string, start, end time.Time) error {
	bizZone := s.settings.BusinessTimeZone(ctx)
	bizLoc, err := time.LoadLocation(bizZone)
	if err != nil {
		return apperr.E(apperr.ErrInvalidConfiguration, "business time zone %q is invalid", bizZone)
	}

	localStart := start.In(bizLoc)
	dayOfWeek := int(localStart.Weekday())
	scheds, err := s.schedules.ListByStaffAndDay(ctx, staffID, dayOfWeek)
	if err != nil {
		return err
	}

	year, month, day := localStart.Date()
	var windows []interval.Interval
	for _, sched := range scheds {
		ws, err1 := time.Parse("15:04", sched.StartTime)
		we, err2 := time.Parse("15:04", sched.EndTime)
		if err1 != nil || err2 != nil {
			continue
		}
		iv := interval.New(
			time.Date(year, month, day, ws.Hour(), ws.Minute(), 0, 0, bizLoc),
			time.Date(year, month, day, we.Hour(), we.Minute(), 0, 0, bizLoc),
		)
		if iv.Valid() {
			windows = append(windows, iv)
		}
	}

	uncovered := interval.SubtractAll([]interval.Interval{interval.New(start, end)}, windows)
	if len(uncovered) > 0 {
		return apperr.E(apperr.ErrOutOfWorkingHours,
			"requested window is outside the staff member's working hours")
	}
	return nil
}

func (s *Service) checkFree(ctx context.Context, staffID string, start, end time.Time, excludeApptID string) error {
	busy, err := s.calendar.BusyOverlaps(ctx, staffID, start, end, excludeApptID)
	if err != nil {
		return err
	}
	if busy {
		return apperr.E(apperr.ErrConflict, "staff member has a calendar conflict in that window")
	}

	existing, err := s.appointments.FindOverlapping(ctx, staffID, start, end, excludeApptID)
	if err != nil {
		return err
	}
	if existing != nil {
		return apperr.E(apperr.ErrConflict, "staff member already has an appointment in that window")
	}
	return nil
}

// provisionMeeting creates the video meeting, degrading to placeholders when
// the provider fails.
func (s *Service) provisionMeeting(ctx context.Context, svc *model.Service, st *model.Staff, user *model.User, start, end time.Time, tz string) meetings.Meeting {
	callCtx, cancel := context.WithTimeout(ctx, s.extTimeout)
	defer cancel()

	topic := fmt.Sprintf("%s: %s with %s", svc.Name, user.FullName(), st.FullName())
	minutes := int(end.Sub(start) / time.Minute)
	meeting, err := s.meetings.CreateMeeting(callCtx, topic, start, minutes, tz)
	if err != nil {
		s.logger.Warn("meeting creation failed, booking proceeds",
			"provider", s.meetings.ProviderID(), "err", err)
		return meetings.Meeting{ID: model.PlaceholderID, JoinURL: model.PlaceholderID}
	}
	return meeting
}

// syncMeeting patches the meeting to the new window, creating one when only a
// placeholder exists.
func (s *Service) syncMeeting(ctx context.Context, appt *model.Appointment, svc *model.Service, st *model.Staff, user *model.User) {
	if appt.MeetingID == "" || appt.MeetingID == model.PlaceholderID {
		meeting := s.provisionMeeting(ctx, svc, st, user, appt.Start, appt.End, appt.TimeZone)
		appt.MeetingID = meeting.ID
		appt.MeetingLink = meeting.JoinURL
		return
	}

	callCtx, cancel := context.WithTimeout(ctx, s.extTimeout)
	defer cancel()
	topic := fmt.Sprintf("%s: %s with %s", svc.Name, user.FullName(), st.FullName())
	minutes := int(appt.End.Sub(appt.Start) / time.Minute)
	if err := s.meetings.UpdateMeeting(callCtx, appt.MeetingID, topic, appt.Start, minutes, appt.TimeZone); err != nil {
		s.logger.Warn("meeting update failed", "appointment_id", appt.ID, "meeting_id", appt.MeetingID, "err", err)
	}
}

// syncCalendarEvent moves the mirror event, creating one when only a
// placeholder exists.
func (s *Service) syncCalendarEvent(ctx context.Context, appt *model.Appointment, svc *model.Service, st *model.Staff, user *model.User) {
	attendees := []string{user.Email, st.Email}
	if appt.CalendarEventID == "" || appt.CalendarEventID == model.PlaceholderID {
		ev := s.mirrorEvent(svc, st, user, appt)
		if err := s.calendar.Create(ctx, ev, attendees); err != nil {
			s.logger.Warn("calendar event creation on update failed", "appointment_id", appt.ID, "err", err)
			return
		}
		appt.CalendarEventID = ev.ID
		if err := s.calendar.SetSource(ctx, ev.ID, "appointment", appt.ID); err != nil {
			s.logger.Warn("linking calendar event to appointment failed",
				"appointment_id", appt.ID, "event_id", ev.ID, "err", err)
		}
		return
	}

	if err := s.calendar.Reschedule(ctx, appt.CalendarEventID, appt.Start, appt.End, appt.TimeZone, appt.StaffID, attendees); err != nil {
		s.logger.Warn("calendar event update failed",
			"appointment_id", appt.ID, "event_id", appt.CalendarEventID, "err", err)
	}
}

// rollbackExternal tears down external resources best-effort when a booking
// fails to persist or is cancelled.
func (s *Service) rollbackExternal(ctx context.Context, appt *model.Appointment) {
	if appt.CalendarEventID != "" && appt.CalendarEventID != model.PlaceholderID {
		if err := s.calendar.Cancel(ctx, appt.CalendarEventID); err != nil {
			s.logger.Warn("calendar event cleanup failed", "event_id", appt.CalendarEventID, "err", err)
		}
	}
	if appt.MeetingID != "" && appt.MeetingID != model.PlaceholderID {
		callCtx, cancel := context.WithTimeout(ctx, s.extTimeout)
		defer cancel()
		if err := s.meetings.DeleteMeeting(callCtx, appt.MeetingID); err != nil {
			s.logger.Warn("meeting cleanup failed", "meeting_id", appt.MeetingID, "err", err)
		}
	}
}

func (s *Service) mirrorEvent(svc *model.Service, st *model.Staff, user *model.User, appt *model.Appointment) *model.CalendarEvent {
	return &model.CalendarEvent{
		Summary:     fmt.Sprintf("%s: %s", svc.Name, user.FullName()),
		Description: appt.Comments,
		Location:    svc.Address,
		Start:       appt.Start,
		End:         appt.End,
		TimeZone:    appt.TimeZone,
		StaffID:     appt.StaffID,
		ServiceID:   appt.ServiceID,
		SourceType:  "appointment",
		IsBusy:      true,
		Status:      model.EventConfirmed,
	}
}

func (s *Service) event(appt *model.Appointment, svc *model.Service, st *model.Staff, user *model.User, reason string) notification.AppointmentEvent {
	link := appt.MeetingLink
	if link == model.PlaceholderID {
		link = ""
	}
	return notification.AppointmentEvent{
		AppointmentID: appt.ID,
		ServiceName:   svc.Name,
		StaffName:     st.FullName(),
		StaffEmail:    st.Email,
		ClientName:    user.FullName(),
		ClientEmail:   user.Email,
		Start:         appt.Start,
		End:           appt.End,
		TimeZone:      appt.TimeZone,
		MeetingLink:   link,
		Comments:      appt.Comments,
		Reason:        reason,
	}
}

func classifyLookup(err error, format string, args ...any) error {
	if storage.IsNotFound(err) {
		return apperr.E(apperr.ErrNotFound, format, args...)
	}
	return err
}
