package storage

import (
	"context"

	"github.com/jackc/pgx/v5"

	"github.com/autodiag-garage/platform/libs/db"
	"github.com/autodiag-garage/platform/services/booking-service/internal/model"
)

// DirectoryCacheRepository holds the booking-local copy of the directory
// service's catalog, maintained by the directory event consumer. The hot
// path (slot search, assignment) reads this cache instead of calling
// directory-service synchronously.
type DirectoryCacheRepository struct {
	pool *db.Pool
}

func NewDirectoryCacheRepository(pool *db.Pool) *DirectoryCacheRepository {
	return &DirectoryCacheRepository{pool: pool}
}

func (r *DirectoryCacheRepository) UpsertServiceType(ctx context.Context, tx pgx.Tx, st model.ServiceType) error {
	_, err := tx.Exec(ctx, `
		INSERT INTO service_types_cache (id, name, description, duration_minutes, price)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (id) DO UPDATE
		SET name = EXCLUDED.name,
			description = EXCLUDED.description,
			duration_minutes = EXCLUDED.duration_minutes,
			price = EXCLUDED.price,
			updated_at = now()
	`, st.ID, st.Name, st.Description, st.DurationMinutes, st.Price)
	return err
}

func (r *DirectoryCacheRepository) UpsertTechnician(ctx context.Context, tx pgx.Tx, tech model.Technician) error {
	_, err := tx.Exec(ctx, `
		INSERT INTO technicians_cache (id, first_name, last_name, email, phone, specialty, available)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (id) DO UPDATE
		SET first_name = EXCLUDED.first_name,
			last_name = EXCLUDED.last_name,
			email = EXCLUDED.email,
			phone = EXCLUDED.phone,
			specialty = EXCLUDED.specialty,
			available = EXCLUDED.available,
			updated_at = now()
	`, tech.ID, tech.FirstName, tech.LastName, tech.Email, tech.Phone, tech.Specialty, tech.Available)
	return err
}

func (r *DirectoryCacheRepository) GetServiceType(ctx context.Context, id string) (model.ServiceType, error) {
	var st model.ServiceType
	err := r.pool.QueryRow(ctx, `
		SELECT id::text, name, description, duration_minutes, price::float8
		FROM service_types_cache
		WHERE id = $1
	`, id).Scan(&st.ID, &st.Name, &st.Description, &st.DurationMinutes, &st.Price)
	if err != nil {
		return model.ServiceType{}, err
	}
	return st, nil
}

// ServiceDuration resolves a service's duration in minutes, falling back to
// the default when the service or its duration is absent.
func (r *DirectoryCacheRepository) ServiceDuration(ctx context.Context, serviceID string) (int, error) {
	if serviceID == "" {
		return model.DefaultDurationMinutes, nil
	}
	st, err := r.GetServiceType(ctx, serviceID)
	if IsNotFound(err) {
		return model.DefaultDurationMinutes, nil
	}
	if err != nil {
		return 0, err
	}
	if st.DurationMinutes <= 0 {
		return model.DefaultDurationMinutes, nil
	}
	return st.DurationMinutes, nil
}

func (r *DirectoryCacheRepository) GetTechnician(ctx context.Context, id string) (model.Technician, error) {
	var tech model.Technician
	err := r.pool.QueryRow(ctx, `
		SELECT id::text, first_name, last_name, email, phone, specialty, available
		FROM technicians_cache
		WHERE id = $1
	`, id).Scan(&tech.ID, &tech.FirstName, &tech.LastName, &tech.Email, &tech.Phone, &tech.Specialty, &tech.Available)
	if err != nil {
		return model.Technician{}, err
	}
	return tech, nil
}

// AvailableTechnicians implements assignment.Pool. Order is stable (oldest
// first) so first-fit selection stays deterministic.
func (r *DirectoryCacheRepository) AvailableTechnicians(ctx context.Context) ([]model.Technician, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id::text, first_name, last_name, email, phone, specialty, available
		FROM technicians_cache
		WHERE available
		ORDER BY created_at ASC, id ASC
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var techs []model.Technician
	for rows.Next() {
		var tech model.Technician
		if err := rows.Scan(&tech.ID, &tech.FirstName, &tech.LastName, &tech.Email, &tech.Phone, &tech.Specialty, &tech.Available); err != nil {
			return nil, err
		}
		techs = append(techs, tech)
	}
	return techs, rows.Err()
}
