package repository

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/isagip/barangay-dashboard-api/internal/models"
)

const residentColumns = `id, username, email, password_hash, status, notes, profile, created_at, updated_at, version`

type residentRow struct {
	ID           string    `db:"id"`
	Username     string    `db:"username"`
	Email        string    `db:"email"`
	PasswordHash string    `db:"password_hash"`
	Status       string    `db:"status"`
	Notes        string    `db:"notes"`
	Profile      []byte    `db:"profile"`
	CreatedAt    time.Time `db:"created_at"`
	UpdatedAt    time.Time `db:"updated_at"`
	Version      int64     `db:"version"`
}

func (row residentRow) toModel() (*models.Resident, error) {
	resident := &models.Resident{
		ID:           row.ID,
		Username:     row.Username,
		Email:        row.Email,
		PasswordHash: row.PasswordHash,
		Status:       models.ResidentStatus(row.Status),
		Notes:        row.Notes,
		CreatedAt:    row.CreatedAt,
		UpdatedAt:    row.UpdatedAt,
		Version:      row.Version,
	}
	if err := fromJSON(row.Profile, &resident.Profile); err != nil {
		return nil, err
	}
	return resident, nil
}

// ResidentRepository provides database access for residents.
type ResidentRepository struct {
	db sqlx.ExtContext
}

// NewResidentRepository constructs the repository.
func NewResidentRepository(db sqlx.ExtContext) *ResidentRepository {
	return &ResidentRepository{db: db}
}

// Get returns a resident by id.
func (r *ResidentRepository) Get(ctx context.Context, id string) (*models.Resident, error) {
	query := `SELECT ` + residentColumns + ` FROM residents WHERE id = $1`
	var row residentRow
	if err := sqlx.GetContext(ctx, r.db, &row, query, id); err != nil {
		return nil, fmt.Errorf("get resident: %w", mapError(err))
	}
	return row.toModel()
}

// GetByUsername returns a resident by case-insensitive username.
func (r *ResidentRepository) GetByUsername(ctx context.Context, username string) (*models.Resident, error) {
	query := `SELECT ` + residentColumns + ` FROM residents WHERE LOWER(username) = LOWER($1) LIMIT 1`
	var row residentRow
	if err := sqlx.GetContext(ctx, r.db, &row, query, strings.TrimSpace(username)); err != nil {
		return nil, fmt.Errorf("get resident by username: %w", mapError(err))
	}
	return row.toModel()
}

// List returns every resident ordered by username.
func (r *ResidentRepository) List(ctx context.Context) ([]models.Resident, error) {
	query := `SELECT ` + residentColumns + ` FROM residents ORDER BY LOWER(username)`
	var rows []residentRow
	if err := sqlx.SelectContext(ctx, r.db, &rows, query); err != nil {
		return nil, fmt.Errorf("list residents: %w", mapError(err))
	}
	residents := make([]models.Resident, 0, len(rows))
	for _, row := range rows {
		resident, err := row.toModel()
		if err != nil {
			return nil, err
		}
		residents = append(residents, *resident)
	}
	return residents, nil
}

// Create inserts a resident at version 1.
func (r *ResidentRepository) Create(ctx context.Context, resident *models.Resident) error {
	if resident.ID == "" {
		resident.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if resident.CreatedAt.IsZero() {
		resident.CreatedAt = now
	}
	resident.UpdatedAt = now
	profile, err := toJSON(resident.Profile)
	if err != nil {
		return err
	}
	const query = `INSERT INTO residents (` + residentColumns + `) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, 1)`
	if _, err := r.db.ExecContext(ctx, query, resident.ID, resident.Username, resident.Email, resident.PasswordHash, string(resident.Status), resident.Notes, profile, resident.CreatedAt, resident.UpdatedAt); err != nil {
		return fmt.Errorf("create resident: %w", mapError(err))
	}
	resident.Version = 1
	return nil
}

// Update writes mutable fields when the stored version matches.
func (r *ResidentRepository) Update(ctx context.Context, resident *models.Resident) error {
	resident.UpdatedAt = time.Now().UTC()
	profile, err := toJSON(resident.Profile)
	if err != nil {
		return err
	}
	const query = `UPDATE residents SET email = $2, password_hash = $3, status = $4, notes = $5, profile = $6, updated_at = $7, version = version + 1 WHERE id = $1 AND version = $8`
	res, err := r.db.ExecContext(ctx, query, resident.ID, resident.Email, resident.PasswordHash, string(resident.Status), resident.Notes, profile, resident.UpdatedAt, resident.Version)
	if err != nil {
		return fmt.Errorf("update resident: %w", mapError(err))
	}
	if err := checkVersioned(ctx, r.db, "residents", resident.ID, res); err != nil {
		return err
	}
	resident.Version++
	return nil
}

// Delete removes a resident.
func (r *ResidentRepository) Delete(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM residents WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete resident: %w", mapError(err))
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrNotFound
	}
	return nil
}
