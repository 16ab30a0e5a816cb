package storage

import (
	"context"
	"regexp"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/ayunierto/ascencio-tax-api/internal/apperr"
	"github.com/ayunierto/ascencio-tax-api/internal/model"
	"github.com/ayunierto/ascencio-tax-api/libs/db"
)

var hhmmPattern = regexp.MustCompile(`^([01]\d|2[0-3]):[0-5]\d$`)

// ValidHHMM reports whether s is a 24h wall-clock time like "09:30".
func ValidHHMM(s string) bool {
	return hhmmPattern.MatchString(s)
}

type SchedulesRepository struct {
	pool *db.Pool
}

func NewSchedulesRepository(pool *db.Pool) *SchedulesRepository {
	return &SchedulesRepository{pool: pool}
}

func (r *SchedulesRepository) Create(ctx context.Context, sched *model.Schedule) error {
	if !ValidHHMM(sched.StartTime) || !ValidHHMM(sched.EndTime) {
		return apperr.E(apperr.ErrInvalidArgument, "schedule times must be HH:mm")
	}
	if sched.DayOfWeek < 0 || sched.DayOfWeek > 6 {
		return apperr.E(apperr.ErrInvalidArgument, "day of week must be 0..6")
	}
	if sched.ID == "" {
		sched.ID = uuid.NewString()
	}
	_, err := r.pool.Exec(ctx, `
		INSERT INTO schedules (id, staff_id, day_of_week, start_time, end_time)
		VALUES ($1, $2, $3, $4, $5)
	`, sched.ID, sched.StaffID, sched.DayOfWeek, sched.StartTime, sched.EndTime)
	return err
}

func (r *SchedulesRepository) Update(ctx context.Context, sched *model.Schedule) error {
	if !ValidHHMM(sched.StartTime) || !ValidHHMM(sched.EndTime) {
		return apperr.E(apperr.ErrInvalidArgument, "schedule times must be HH:mm")
	}
	tag, err := r.pool.Exec(ctx, `
		UPDATE schedules
		SET staff_id = $2, day_of_week = $3, start_time = $4, end_time = $5
		WHERE id = $1
	`, sched.ID, sched.StaffID, sched.DayOfWeek, sched.StartTime, sched.EndTime)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

func (r *SchedulesRepository) Delete(ctx context.Context, id string) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM schedules WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

func (r *SchedulesRepository) ListByStaffAndDay(ctx context.Context, staffID string, dayOfWeek int) ([]model.Schedule, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id::text, staff_id::text, day_of_week, start_time, end_time
		FROM schedules
		WHERE staff_id = $1 AND day_of_week = $2
		ORDER BY start_time ASC
	`, staffID, dayOfWeek)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectSchedules(rows)
}

func (r *SchedulesRepository) ListByStaff(ctx context.Context, staffID string) ([]model.Schedule, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id::text, staff_id::text, day_of_week, start_time, end_time
		FROM schedules
		WHERE staff_id = $1
		ORDER BY day_of_week ASC, start_time ASC
	`, staffID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectSchedules(rows)
}

func collectSchedules(rows pgx.Rows) ([]model.Schedule, error) {
	var scheds []model.Schedule
	for rows.Next() {
		var s model.Schedule
		if err := rows.Scan(&s.ID, &s.StaffID, &s.DayOfWeek, &s.StartTime, &s.EndTime); err != nil {
			return nil, err
		}
		scheds = append(scheds, s)
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}
	return scheds, nil
}
