package storage

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/ayunierto/ascencio-tax-api/libs/db"
	"github.com/ayunierto/ascencio-tax-api/internal/model"
)

const appointmentColumns = `
	id::text, user_id::text, staff_id::text, service_id::text,
	start_at, end_at, time_zone, status, comments,
	calendar_event_id, meeting_id, meeting_link, source,
	COALESCE(cancellation_reason, ''), cancelled_at, created_at, updated_at`

type AppointmentsRepository struct {
	pool *db.Pool
}

func NewAppointmentsRepository(pool *db.Pool) *AppointmentsRepository {
	return &AppointmentsRepository{pool: pool}
}

// Create inserts the appointment. The appointments_no_overlap exclusion
// constraint rejects any row overlapping a non-cancelled appointment of the
// same staff member; callers detect that with IsConflict. This is the
// serialization backstop behind the advisory overlap pre-check.
func (r *AppointmentsRepository) Create(ctx context.Context, appt *model.Appointment) error {
	if appt.ID == "" {
		appt.ID = uuid.NewString()
	}
	return r.pool.QueryRow(ctx, `
		INSERT INTO appointments
			(id, user_id, staff_id, service_id, start_at, end_at, time_zone, status,
			 comments, calendar_event_id, meeting_id, meeting_link, source)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
		RETURNING created_at, updated_at
	`, appt.ID, appt.UserID, appt.StaffID, appt.ServiceID, appt.Start, appt.End,
		appt.TimeZone, appt.Status, appt.Comments, appt.CalendarEventID,
		appt.MeetingID, appt.MeetingLink, appt.Source).
		Scan(&appt.CreatedAt, &appt.UpdatedAt)
}

// Update rewrites the mutable fields. The exclusion constraint also guards
// reschedules, so a window moved onto a taken slot fails with IsConflict.
func (r *AppointmentsRepository) Update(ctx context.Context, appt *model.Appointment) error {
	tag, err := r.pool.Exec(ctx, `
		UPDATE appointments
		SET staff_id = $2,
			service_id = $3,
			start_at = $4,
			end_at = $5,
			time_zone = $6,
			comments = $7,
			calendar_event_id = $8,
			meeting_id = $9,
			meeting_link = $10,
			updated_at = now()
		WHERE id = $1
	`, appt.ID, appt.StaffID, appt.ServiceID, appt.Start, appt.End, appt.TimeZone,
		appt.Comments, appt.CalendarEventID, appt.MeetingID, appt.MeetingLink)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

func (r *AppointmentsRepository) Get(ctx context.Context, id string) (*model.Appointment, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT `+appointmentColumns+`
		FROM appointments
		WHERE id = $1
	`, id)
	return scanAppointment(row)
}

// FindOverlapping returns a non-cancelled appointment of the staff member
// sharing any instant with [start, end), or nil. excludeID lets an update
// skip the appointment's own row.
func (r *AppointmentsRepository) FindOverlapping(ctx context.Context, staffID string, start, end time.Time, excludeID string) (*model.Appointment, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT `+appointmentColumns+`
		FROM appointments
		WHERE staff_id = $1
			AND status <> 'cancelled'
			AND start_at < $3
			AND end_at > $2
			AND ($4 = '' OR id::text <> $4)
		LIMIT 1
	`, staffID, start, end, excludeID)

	appt, err := scanAppointment(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	return appt, err
}

func (r *AppointmentsRepository) ListConfirmedInRange(ctx context.Context, staffID string, from, to time.Time) ([]model.Appointment, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+appointmentColumns+`
		FROM appointments
		WHERE staff_id = $1
			AND status = 'confirmed'
			AND start_at < $3
			AND end_at > $2
		ORDER BY start_at ASC
	`, staffID, from, to)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectAppointments(rows)
}

// ListByUser returns a user's appointments, upcoming or past relative to now.
func (r *AppointmentsRepository) ListByUser(ctx context.Context, userID string, now time.Time, upcoming bool, limit int) ([]model.Appointment, error) {
	if limit <= 0 {
		limit = 50
	}
	cmp, order := ">", "ASC"
	if !upcoming {
		cmp, order = "<=", "DESC"
	}
	rows, err := r.pool.Query(ctx, `
		SELECT `+appointmentColumns+`
		FROM appointments
		WHERE user_id = $1 AND start_at `+cmp+` $2
		ORDER BY start_at `+order+`
		LIMIT $3
	`, userID, now, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectAppointments(rows)
}

func (r *AppointmentsRepository) Cancel(ctx context.Context, id, reason string) (time.Time, error) {
	var cancelledAt time.Time
	err := r.pool.QueryRow(ctx, `
		UPDATE appointments
		SET status = 'cancelled',
			cancellation_reason = $2,
			cancelled_at = now(),
			updated_at = now()
		WHERE id = $1
		RETURNING cancelled_at
	`, id, reason).Scan(&cancelledAt)
	return cancelledAt, err
}

func scanAppointment(row pgx.Row) (*model.Appointment, error) {
	var appt model.Appointment
	var cancelledAt *time.Time
	err := row.Scan(
		&appt.ID,
		&appt.UserID,
		&appt.StaffID,
		&appt.ServiceID,
		&appt.Start,
		&appt.End,
		&appt.TimeZone,
		&appt.Status,
		&appt.Comments,
		&appt.CalendarEventID,
		&appt.MeetingID,
		&appt.MeetingLink,
		&appt.Source,
		&appt.CancellationReason,
		&cancelledAt,
		&appt.CreatedAt,
		&appt.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	appt.CancelledAt = cancelledAt
	return &appt, nil
}

func collectAppointments(rows pgx.Rows) ([]model.Appointment, error) {
	var appts []model.Appointment
	for rows.Next() {
		appt, err := scanAppointment(rows)
		if err != nil {
			return nil, err
		}
		appts = append(appts, *appt)
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}
	return appts, nil
}

// IsConflict reports an exclusion- or unique-constraint violation.
func IsConflict(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && (pgErr.Code == "23P01" || pgErr.Code == "23505")
}

func IsNotFound(err error) bool {
	return errors.Is(err, pgx.ErrNoRows)
}
