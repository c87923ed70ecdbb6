package storage

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/autodiag-garage/platform/libs/db"
)

type Repository struct {
	pool *db.Pool
}

func NewRepository(pool *db.Pool) *Repository {
	return &Repository{pool: pool}
}

func (r *Repository) Begin(ctx context.Context) (pgx.Tx, error) {
	return r.pool.Begin(ctx)
}

type ServiceType struct {
	ID              string
	Name            string
	Description     string
	DurationMinutes int
	Price           float64
	CreatedAt       time.Time
}

func (r *Repository) CreateServiceType(ctx context.Context, tx pgx.Tx, name, description string, durationMinutes int, price float64) (string, error) {
	id := uuid.NewString()
	_, err := tx.Exec(ctx, `
		INSERT INTO service_types (id, name, description, duration_minutes, price)
		VALUES ($1, $2, $3, $4, $5)
	`, id, name, description, durationMinutes, price)
	if err != nil {
		return "", err
	}
	return id, nil
}

func (r *Repository) UpdateServiceType(ctx context.Context, tx pgx.Tx, id, name, description string, durationMinutes int, price float64) error {
	tag, err := tx.Exec(ctx, `
		UPDATE service_types
		SET name = $2,
			description = $3,
			duration_minutes = $4,
			price = $5,
			updated_at = now()
		WHERE id = $1
	`, id, name, description, durationMinutes, price)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

func (r *Repository) GetServiceType(ctx context.Context, id string) (ServiceType, error) {
	var st ServiceType
	err := r.pool.QueryRow(ctx, `
		SELECT id::text, name, COALESCE(description, ''), duration_minutes, price::float8, created_at
		FROM service_types
		WHERE id = $1
	`, id).Scan(&st.ID, &st.Name, &st.Description, &st.DurationMinutes, &st.Price, &st.CreatedAt)
	return st, err
}

func (r *Repository) ListServiceTypes(ctx context.Context, limit int) ([]ServiceType, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := r.pool.Query(ctx, `
		SELECT id::text, name, COALESCE(description, ''), duration_minutes, price::float8, created_at
		FROM service_types
		ORDER BY name ASC
		LIMIT $1
	`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []ServiceType
	for rows.Next() {
		var st ServiceType
		if err := rows.Scan(&st.ID, &st.Name, &st.Description, &st.DurationMinutes, &st.Price, &st.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, st)
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}
	return out, nil
}

type Technician struct {
	ID        string
	FirstName string
	LastName  string
	Email     string
	Phone     string
	Specialty string
	Available bool
	CreatedAt time.Time
}

func (r *Repository) CreateTechnician(ctx context.Context, tx pgx.Tx, t Technician) (string, error) {
	id := uuid.NewString()
	_, err := tx.Exec(ctx, `
		INSERT INTO technicians (id, first_name, last_name, email, phone, specialty, available)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`, id, t.FirstName, t.LastName, t.Email, t.Phone, t.Specialty, t.Available)
	if err != nil {
		return "", err
	}
	return id, nil
}

func (r *Repository) UpdateTechnician(ctx context.Context, tx pgx.Tx, t Technician) error {
	tag, err := tx.Exec(ctx, `
		UPDATE technicians
		SET first_name = $2,
			last_name = $3,
			email = $4,
			phone = $5,
			specialty = $6,
			available = $7,
			updated_at = now()
		WHERE id = $1
	`, t.ID, t.FirstName, t.LastName, t.Email, t.Phone, t.Specialty, t.Available)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

func (r *Repository) SetTechnicianAvailability(ctx context.Context, tx pgx.Tx, id string, available bool) error {
	tag, err := tx.Exec(ctx, `
		UPDATE technicians
		SET available = $2,
			updated_at = now()
		WHERE id = $1
	`, id, available)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

func (r *Repository) GetTechnician(ctx context.Context, id string) (Technician, error) {
	var t Technician
	err := r.pool.QueryRow(ctx, `
		SELECT id::text, first_name, last_name, COALESCE(email, ''), COALESCE(phone, ''), COALESCE(specialty, ''), available, created_at
		FROM technicians
		WHERE id = $1
	`, id).Scan(&t.ID, &t.FirstName, &t.LastName, &t.Email, &t.Phone, &t.Specialty, &t.Available, &t.CreatedAt)
	return t, err
}

func (r *Repository) ListTechnicians(ctx context.Context, onlyAvailable bool, limit int) ([]Technician, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := r.pool.Query(ctx, `
		SELECT id::text, first_name, last_name, COALESCE(email, ''), COALESCE(phone, ''), COALESCE(specialty, ''), available, created_at
		FROM technicians
		WHERE NOT $1 OR available
		ORDER BY created_at ASC, id ASC
		LIMIT $2
	`, onlyAvailable, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Technician
	for rows.Next() {
		var t Technician
		if err := rows.Scan(&t.ID, &t.FirstName, &t.LastName, &t.Email, &t.Phone, &t.Specialty, &t.Available, &t.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}
	return out, nil
}

func IsDuplicate(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}

func IsNotFound(err error) bool {
	return errors.Is(err, pgx.ErrNoRows)
}
