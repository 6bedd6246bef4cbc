package repository

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/isagip/barangay-dashboard-api/internal/models"
)

const ambulanceColumns = `id, name, status, location, assigned_report_id, updated_at, updated_by, version`

// AmbulanceRepository provides database access for the fleet.
type AmbulanceRepository struct {
	db sqlx.ExtContext
}

// NewAmbulanceRepository constructs the repository.
func NewAmbulanceRepository(db sqlx.ExtContext) *AmbulanceRepository {
	return &AmbulanceRepository{db: db}
}

// Get returns an ambulance by id.
func (r *AmbulanceRepository) Get(ctx context.Context, id string) (*models.Ambulance, error) {
	query := `SELECT ` + ambulanceColumns + ` FROM ambulances WHERE id = $1`
	var amb models.Ambulance
	if err := sqlx.GetContext(ctx, r.db, &amb, query, id); err != nil {
		return nil, fmt.Errorf("get ambulance: %w", mapError(err))
	}
	return &amb, nil
}

// List returns the fleet ordered by id.
func (r *AmbulanceRepository) List(ctx context.Context) ([]models.Ambulance, error) {
	query := `SELECT ` + ambulanceColumns + ` FROM ambulances ORDER BY LENGTH(id), id`
	var items []models.Ambulance
	if err := sqlx.SelectContext(ctx, r.db, &items, query); err != nil {
		return nil, fmt.Errorf("list ambulances: %w", mapError(err))
	}
	return items, nil
}

// ListByReport returns every ambulance linked to the report.
func (r *AmbulanceRepository) ListByReport(ctx context.Context, reportID string) ([]models.Ambulance, error) {
	query := `SELECT ` + ambulanceColumns + ` FROM ambulances WHERE assigned_report_id = $1 ORDER BY LENGTH(id), id`
	var items []models.Ambulance
	if err := sqlx.SelectContext(ctx, r.db, &items, query, reportID); err != nil {
		return nil, fmt.Errorf("list ambulances by report: %w", mapError(err))
	}
	return items, nil
}

// Create inserts an ambulance at version 1.
func (r *AmbulanceRepository) Create(ctx context.Context, amb *models.Ambulance) error {
	const query = `INSERT INTO ambulances (` + ambulanceColumns + `) VALUES ($1, $2, $3, $4, $5, $6, $7, 1)`
	if _, err := r.db.ExecContext(ctx, query, amb.ID, amb.Name, string(amb.Status), amb.Location, amb.AssignedReportID, amb.UpdatedAt, amb.UpdatedBy); err != nil {
		return fmt.Errorf("create ambulance: %w", mapError(err))
	}
	amb.Version = 1
	return nil
}

// Update writes the ambulance when the stored version matches.
func (r *AmbulanceRepository) Update(ctx context.Context, amb *models.Ambulance) error {
	const query = `UPDATE ambulances SET name = $2, status = $3, location = $4, assigned_report_id = $5, updated_at = $6, updated_by = $7, version = version + 1 WHERE id = $1 AND version = $8`
	res, err := r.db.ExecContext(ctx, query, amb.ID, amb.Name, string(amb.Status), amb.Location, amb.AssignedReportID, amb.UpdatedAt, amb.UpdatedBy, amb.Version)
	if err != nil {
		return fmt.Errorf("update ambulance: %w", mapError(err))
	}
	if err := checkVersioned(ctx, r.db, "ambulances", amb.ID, res); err != nil {
		return err
	}
	amb.Version++
	return nil
}
