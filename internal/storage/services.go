package storage

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/ayunierto/ascencio-tax-api/internal/model"
	"github.com/ayunierto/ascencio-tax-api/libs/db"
)

type ServicesRepository struct {
	pool *db.Pool
}

func NewServicesRepository(pool *db.Pool) *ServicesRepository {
	return &ServicesRepository{pool: pool}
}

func (r *ServicesRepository) Create(ctx context.Context, svc *model.Service, staffIDs []string) error {
	if svc.ID == "" {
		svc.ID = uuid.NewString()
	}
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	_, err = tx.Exec(ctx, `
		INSERT INTO services (id, name, address, duration_minutes)
		VALUES ($1, $2, $3, $4)
	`, svc.ID, svc.Name, svc.Address, svc.DurationMinutes)
	if err != nil {
		return err
	}
	for _, staffID := range staffIDs {
		_, err = tx.Exec(ctx, `
			INSERT INTO service_staff (service_id, staff_id) VALUES ($1, $2)
		`, svc.ID, staffID)
		if err != nil {
			return err
		}
	}
	return tx.Commit(ctx)
}

func (r *ServicesRepository) Update(ctx context.Context, svc *model.Service, staffIDs []string) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	tag, err := tx.Exec(ctx, `
		UPDATE services
		SET name = $2, address = $3, duration_minutes = $4, updated_at = now()
		WHERE id = $1
	`, svc.ID, svc.Name, svc.Address, svc.DurationMinutes)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	if staffIDs != nil {
		_, err = tx.Exec(ctx, `DELETE FROM service_staff WHERE service_id = $1`, svc.ID)
		if err != nil {
			return err
		}
		for _, staffID := range staffIDs {
			_, err = tx.Exec(ctx, `
				INSERT INTO service_staff (service_id, staff_id) VALUES ($1, $2)
			`, svc.ID, staffID)
			if err != nil {
				return err
			}
		}
	}
	return tx.Commit(ctx)
}

func (r *ServicesRepository) Delete(ctx context.Context, id string) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM services WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

// Get loads a service with its assigned staff.
func (r *ServicesRepository) Get(ctx context.Context, id string) (*model.Service, error) {
	var svc model.Service
	err := r.pool.QueryRow(ctx, `
		SELECT id::text, name, COALESCE(address, ''), duration_minutes
		FROM services
		WHERE id = $1
	`, id).Scan(&svc.ID, &svc.Name, &svc.Address, &svc.DurationMinutes)
	if err != nil {
		return nil, err
	}

	rows, err := r.pool.Query(ctx, `
		SELECT s.id::text, s.first_name, s.last_name, COALESCE(s.email, ''), s.is_active
		FROM staff s
		JOIN service_staff ss ON ss.staff_id = s.id
		WHERE ss.service_id = $1
		ORDER BY s.last_name ASC, s.first_name ASC
	`, id)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	svc.Staff, err = collectStaff(rows)
	if err != nil {
		return nil, err
	}
	return &svc, nil
}

func (r *ServicesRepository) List(ctx context.Context) ([]model.Service, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id::text, name, COALESCE(address, ''), duration_minutes
		FROM services
		ORDER BY name ASC
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var svcs []model.Service
	for rows.Next() {
		var svc model.Service
		if err := rows.Scan(&svc.ID, &svc.Name, &svc.Address, &svc.DurationMinutes); err != nil {
			return nil, err
		}
		svcs = append(svcs, svc)
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}
	return svcs, nil
}
