package model

import "time"

// PlaceholderID marks an external resource that could not be created because
// the provider was unavailable at booking time. Bookings proceed with it and
// the update path creates the real resource later.
const PlaceholderID = "N/A"

type AppointmentStatus string

const (
	StatusPending   AppointmentStatus = "pending"
	StatusConfirmed AppointmentStatus = "confirmed"
	StatusCancelled AppointmentStatus = "cancelled"
	StatusCompleted AppointmentStatus = "completed"
)

type Appointment struct {
	ID                 string
	UserID             string
	StaffID            string
	ServiceID          string
	Start              time.Time
	End                time.Time
	TimeZone           string
	Status             AppointmentStatus
	Comments           string
	CalendarEventID    string
	MeetingID          string
	MeetingLink        string
	Source             string
	CancellationReason string
	CancelledAt        *time.Time
	CreatedAt          time.Time
	UpdatedAt          time.Time
}

// Schedule is one weekly recurring availability window, defined in the
// business timezone as wall-clock HH:mm bounds.
type Schedule struct {
	ID        string
	StaffID   string
	DayOfWeek int // 0=Sunday .. 6=Saturday
	StartTime string
	EndTime   string
}

type Service struct {
	ID              string
	Name            string
	Address         string
	DurationMinutes int
	Staff           []Staff
}

type Staff struct {
	ID        string
	FirstName string
	LastName  string
	Email     string
	IsActive  bool
}

func (s Staff) FullName() string {
	return s.FirstName + " " + s.LastName
}

type User struct {
	ID          string
	FirstName   string
	LastName    string
	Email       string
	PhoneNumber string
	Role        string // client | admin
}

func (u User) FullName() string {
	return u.FirstName + " " + u.LastName
}

type CalendarEventStatus string

const (
	EventConfirmed CalendarEventStatus = "confirmed"
	EventCancelled CalendarEventStatus = "cancelled"
)

// CalendarEvent mirrors an external calendar event. The mirror is the
// availability source of truth: busy time is read from these rows, so a
// provider outage never hides internally known busy blocks. Events are
// flipped to cancelled, never hard-deleted.
type CalendarEvent struct {
	ID                 string
	Summary            string
	Description        string
	Location           string
	Start              time.Time
	End                time.Time
	TimeZone           string
	StaffID            string
	ServiceID          string
	SourceType         string // appointment | manual | imported | api
	SourceID           string
	ExternalEventID    string
	ExternalCalendarID string
	IsBusy             bool
	Status             CalendarEventStatus
}

// AvailableSlot is a computed bookable window. Never persisted; produced
// fresh per search.
type AvailableSlot struct {
	Start          time.Time
	End            time.Time
	AvailableStaff []Staff
}
