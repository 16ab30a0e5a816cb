package storage

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/ayunierto/ascencio-tax-api/internal/model"
	"github.com/ayunierto/ascencio-tax-api/libs/db"
)

const calendarEventColumns = `
	id::text, summary, COALESCE(description, ''), COALESCE(location, ''),
	start_at, end_at, time_zone, COALESCE(staff_id::text, ''), COALESCE(service_id::text, ''),
	source_type, COALESCE(source_id, ''), COALESCE(external_event_id, ''),
	COALESCE(external_calendar_id, ''), is_busy, status`

type CalendarEventsRepository struct {
	pool *db.Pool
}

func NewCalendarEventsRepository(pool *db.Pool) *CalendarEventsRepository {
	return &CalendarEventsRepository{pool: pool}
}

func (r *CalendarEventsRepository) Create(ctx context.Context, ev *model.CalendarEvent) error {
	if ev.ID == "" {
		ev.ID = uuid.NewString()
	}
	_, err := r.pool.Exec(ctx, `
		INSERT INTO calendar_events
			(id, summary, description, location, start_at, end_at, time_zone,
			 staff_id, service_id, source_type, source_id, external_event_id,
			 external_calendar_id, is_busy, status)
		VALUES ($1, $2, $3, $4, $5, $6, $7, NULLIF($8, '')::uuid, NULLIF($9, '')::uuid,
			$10, $11, $12, $13, $14, $15)
	`, ev.ID, ev.Summary, ev.Description, ev.Location, ev.Start, ev.End, ev.TimeZone,
		ev.StaffID, ev.ServiceID, ev.SourceType, ev.SourceID, ev.ExternalEventID,
		ev.ExternalCalendarID, ev.IsBusy, ev.Status)
	return err
}

func (r *CalendarEventsRepository) Update(ctx context.Context, ev *model.CalendarEvent) error {
	tag, err := r.pool.Exec(ctx, `
		UPDATE calendar_events
		SET summary = $2,
			description = $3,
			location = $4,
			start_at = $5,
			end_at = $6,
			time_zone = $7,
			staff_id = NULLIF($8, '')::uuid,
			external_event_id = $9,
			updated_at = now()
		WHERE id = $1
	`, ev.ID, ev.Summary, ev.Description, ev.Location, ev.Start, ev.End, ev.TimeZone, ev.StaffID, ev.ExternalEventID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

func (r *CalendarEventsRepository) Get(ctx context.Context, id string) (*model.CalendarEvent, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT `+calendarEventColumns+`
		FROM calendar_events
		WHERE id = $1
	`, id)
	return scanCalendarEvent(row)
}

// SetSource stamps the originating record on a mirror row after the fact.
// The booking path creates the calendar event before the appointment id
// exists, then links back.
func (r *CalendarEventsRepository) SetSource(ctx context.Context, id, sourceType, sourceID string) error {
	tag, err := r.pool.Exec(ctx, `
		UPDATE calendar_events
		SET source_type = $2, source_id = $3, updated_at = now()
		WHERE id = $1
	`, id, sourceType, sourceID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

// MarkCancelled flips the mirror row to cancelled. Rows are never deleted so
// the busy-time history stays auditable.
func (r *CalendarEventsRepository) MarkCancelled(ctx context.Context, id string) error {
	tag, err := r.pool.Exec(ctx, `
		UPDATE calendar_events
		SET status = 'cancelled', updated_at = now()
		WHERE id = $1
	`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

// ListBusyInRange returns confirmed busy mirror rows for the staff member
// overlapping [from, to). excludeSourceID skips events originated by a given
// appointment, so an update does not collide with its own mirror row.
func (r *CalendarEventsRepository) ListBusyInRange(ctx context.Context, staffID string, from, to time.Time, excludeSourceID string) ([]model.CalendarEvent, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+calendarEventColumns+`
		FROM calendar_events
		WHERE staff_id = $1
			AND is_busy
			AND status = 'confirmed'
			AND start_at < $3
			AND end_at > $2
			AND ($4 = '' OR COALESCE(source_id, '') <> $4)
		ORDER BY start_at ASC
	`, staffID, from, to, excludeSourceID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var events []model.CalendarEvent
	for rows.Next() {
		ev, err := scanCalendarEvent(rows)
		if err != nil {
			return nil, err
		}
		events = append(events, *ev)
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}
	return events, nil
}

func scanCalendarEvent(row pgx.Row) (*model.CalendarEvent, error) {
	var ev model.CalendarEvent
	err := row.Scan(
		&ev.ID,
		&ev.Summary,
		&ev.Description,
		&ev.Location,
		&ev.Start,
		&ev.End,
		&ev.TimeZone,
		&ev.StaffID,
		&ev.ServiceID,
		&ev.SourceType,
		&ev.SourceID,
		&ev.ExternalEventID,
		&ev.ExternalCalendarID,
		&ev.IsBusy,
		&ev.Status,
	)
	if err != nil {
		return nil, err
	}
	return &ev, nil
}
