package storage

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/ayunierto/ascencio-tax-api/internal/model"
	"github.com/ayunierto/ascencio-tax-api/libs/db"
)

type StaffRepository struct {
	pool *db.Pool
}

func NewStaffRepository(pool *db.Pool) *StaffRepository {
	return &StaffRepository{pool: pool}
}

func (r *StaffRepository) Create(ctx context.Context, st *model.Staff) error {
	if st.ID == "" {
		st.ID = uuid.NewString()
	}
	_, err := r.pool.Exec(ctx, `
		INSERT INTO staff (id, first_name, last_name, email, is_active)
		VALUES ($1, $2, $3, $4, $5)
	`, st.ID, st.FirstName, st.LastName, st.Email, st.IsActive)
	return err
}

func (r *StaffRepository) Update(ctx context.Context, st *model.Staff) error {
	tag, err := r.pool.Exec(ctx, `
		UPDATE staff
		SET first_name = $2, last_name = $3, email = $4, is_active = $5, updated_at = now()
		WHERE id = $1
	`, st.ID, st.FirstName, st.LastName, st.Email, st.IsActive)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

func (r *StaffRepository) Get(ctx context.Context, id string) (*model.Staff, error) {
	var st model.Staff
	err := r.pool.QueryRow(ctx, `
		SELECT id::text, first_name, last_name, COALESCE(email, ''), is_active
		FROM staff
		WHERE id = $1
	`, id).Scan(&st.ID, &st.FirstName, &st.LastName, &st.Email, &st.IsActive)
	if err != nil {
		return nil, err
	}
	return &st, nil
}

func (r *StaffRepository) List(ctx context.Context) ([]model.Staff, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id::text, first_name, last_name, COALESCE(email, ''), is_active
		FROM staff
		ORDER BY last_name ASC, first_name ASC
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectStaff(rows)
}

// ListAssignable returns active staff assigned to the service who have at
// least one schedule on the given weekday.
func (r *StaffRepository) ListAssignable(ctx context.Context, serviceID string, dayOfWeek int) ([]model.Staff, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT DISTINCT s.id::text, s.first_name, s.last_name, COALESCE(s.email, ''), s.is_active
		FROM staff s
		JOIN service_staff ss ON ss.staff_id = s.id
		JOIN schedules sc ON sc.staff_id = s.id
		WHERE ss.service_id = $1
			AND sc.day_of_week = $2
			AND s.is_active
		ORDER BY s.last_name ASC, s.first_name ASC
	`, serviceID, dayOfWeek)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectStaff(rows)
}

func collectStaff(rows pgx.Rows) ([]model.Staff, error) {
	var staff []model.Staff
	for rows.Next() {
		var st model.Staff
		if err := rows.Scan(&st.ID, &st.FirstName, &st.LastName, &st.Email, &st.IsActive); err != nil {
			return nil, err
		}
		staff = append(staff, st)
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}
	return staff, nil
}
