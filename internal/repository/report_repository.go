package repository

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/isagip/barangay-dashboard-api/internal/models"
)

const reportColumns = `id, type, description, status, street, landmark, coordinates, photo_ref, reported_by, severity, assigned_responder, assigned_vehicle_id, closed_by, closed_at, created_at, last_updated_at, last_updated_by, notes, attribution, history, version`

type reportRow struct {
	ID                string     `db:"id"`
	Type              string     `db:"type"`
	Description       string     `db:"description"`
	Status            string     `db:"status"`
	Street            string     `db:"street"`
	Landmark          string     `db:"landmark"`
	Coordinates       []byte     `db:"coordinates"`
	PhotoRef          string     `db:"photo_ref"`
	ReportedBy        string     `db:"reported_by"`
	Severity          string     `db:"severity"`
	AssignedResponder string     `db:"assigned_responder"`
	AssignedVehicleID string     `db:"assigned_vehicle_id"`
	ClosedBy          string     `db:"closed_by"`
	ClosedAt          *time.Time `db:"closed_at"`
	CreatedAt         time.Time  `db:"created_at"`
	LastUpdatedAt     time.Time  `db:"last_updated_at"`
	LastUpdatedBy     string     `db:"last_updated_by"`
	Notes             string     `db:"notes"`
	Attribution       []byte     `db:"attribution"`
	History           []byte     `db:"history"`
	Version           int64      `db:"version"`
}

func (row reportRow) toModel() (*models.Report, error) {
	report := &models.Report{
		ID:                row.ID,
		Type:              models.IncidentType(row.Type),
		Description:       row.Description,
		Status:            models.IncidentStatus(row.Status),
		Street:            row.Street,
		Landmark:          row.Landmark,
		PhotoRef:          row.PhotoRef,
		ReportedBy:        row.ReportedBy,
		Severity:          models.Severity(row.Severity),
		AssignedResponder: row.AssignedResponder,
		AssignedVehicleID: row.AssignedVehicleID,
		ClosedBy:          row.ClosedBy,
		ClosedAt:          row.ClosedAt,
		CreatedAt:         row.CreatedAt,
		LastUpdatedAt:     row.LastUpdatedAt,
		LastUpdatedBy:     row.LastUpdatedBy,
		Notes:             row.Notes,
		Version:           row.Version,
	}
	if len(row.Coordinates) > 0 && string(row.Coordinates) != "null" {
		report.Coordinates = &models.Coordinates{}
		if err := fromJSON(row.Coordinates, report.Coordinates); err != nil {
			return nil, err
		}
	}
	if err := fromJSON(row.Attribution, &report.Attribution); err != nil {
		return nil, err
	}
	if err := fromJSON(row.History, &report.History); err != nil {
		return nil, err
	}
	return report, nil
}

func reportArgs(report *models.Report) ([]interface{}, error) {
	var coords []byte
	if report.Coordinates != nil {
		raw, err := toJSON(report.Coordinates)
		if err != nil {
			return nil, err
		}
		coords = raw
	}
	attribution := report.Attribution
	if attribution == nil {
		attribution = map[string]models.Attribution{}
	}
	attrRaw, err := toJSON(attribution)
	if err != nil {
		return nil, err
	}
	history := report.History
	if history == nil {
		history = []models.HistoryEntry{}
	}
	historyRaw, err := toJSON(history)
	if err != nil {
		return nil, err
	}
	return []interface{}{
		report.ID, string(report.Type), report.Description, string(report.Status), report.Street, report.Landmark,
		coords, report.PhotoRef, report.ReportedBy, string(report.Severity), report.AssignedResponder,
		report.AssignedVehicleID, report.ClosedBy, report.ClosedAt, report.CreatedAt, report.LastUpdatedAt,
		report.LastUpdatedBy, report.Notes, attrRaw, historyRaw,
	}, nil
}

// ReportRepository provides database access for emergency reports.
type ReportRepository struct {
	db sqlx.ExtContext
}

// NewReportRepository constructs the repository.
func NewReportRepository(db sqlx.ExtContext) *ReportRepository {
	return &ReportRepository{db: db}
}

// Get returns a report by id.
func (r *ReportRepository) Get(ctx context.Context, id string) (*models.Report, error) {
	query := `SELECT ` + reportColumns + ` FROM reports WHERE id = $1`
	var row reportRow
	if err := sqlx.GetContext(ctx, r.db, &row, query, id); err != nil {
		return nil, fmt.Errorf("get report: %w", mapError(err))
	}
	return row.toModel()
}

// List returns reports newest first with the total match count.
func (r *ReportRepository) List(ctx context.Context, filter models.ReportFilter) ([]models.Report, int, error) {
	baseQuery := `FROM reports WHERE 1=1`
	var conditions []string
	var args []interface{}

	if len(filter.Status) > 0 {
		statuses := make([]string, len(filter.Status))
		for i, s := range filter.Status {
			statuses[i] = string(s)
		}
		conditions = append(conditions, fmt.Sprintf("status = ANY($%d)", len(args)+1))
		args = append(args, pq.Array(statuses))
	}
	if filter.Type != "" {
		conditions = append(conditions, fmt.Sprintf("type = $%d", len(args)+1))
		args = append(args, string(filter.Type))
	}
	if filter.From != nil {
		conditions = append(conditions, fmt.Sprintf("created_at >= $%d", len(args)+1))
		args = append(args, *filter.From)
	}
	if filter.To != nil {
		conditions = append(conditions, fmt.Sprintf("created_at < $%d", len(args)+1))
		args = append(args, *filter.To)
	}
	if search := strings.TrimSpace(filter.Search); search != "" {
		idx := len(args) + 1
		conditions = append(conditions, fmt.Sprintf("(LOWER(id) LIKE $%d OR LOWER(description) LIKE $%d OR LOWER(street) LIKE $%d OR LOWER(landmark) LIKE $%d OR LOWER(reported_by) LIKE $%d)", idx, idx, idx, idx, idx))
		args = append(args, "%"+strings.ToLower(search)+"%")
	}
	if len(conditions) > 0 {
		baseQuery += " AND " + strings.Join(conditions, " AND ")
	}

	listQuery := fmt.Sprintf("SELECT %s %s ORDER BY created_at DESC, id DESC", reportColumns, baseQuery)
	if filter.PageSize > 0 {
		page := filter.Page
		if page < 1 {
			page = 1
		}
		listQuery += fmt.Sprintf(" LIMIT %d OFFSET %d", filter.PageSize, (page-1)*filter.PageSize)
	}

	var rows []reportRow
	if err := sqlx.SelectContext(ctx, r.db, &rows, listQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("list reports: %w", mapError(err))
	}

	var total int
	if err := sqlx.GetContext(ctx, r.db, &total, "SELECT COUNT(*) "+baseQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count reports: %w", mapError(err))
	}

	reports := make([]models.Report, 0, len(rows))
	for _, row := range rows {
		report, err := row.toModel()
		if err != nil {
			return nil, 0, err
		}
		reports = append(reports, *report)
	}
	return reports, total, nil
}

// Create inserts a report at version 1.
func (r *ReportRepository) Create(ctx context.Context, report *models.Report) error {
	args, err := reportArgs(report)
	if err != nil {
		return err
	}
	const query = `INSERT INTO reports (` + reportColumns + `) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19, $20, 1)`
	if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("create report: %w", mapError(err))
	}
	report.Version = 1
	return nil
}

// Update writes every mutable column when the stored version matches.
func (r *ReportRepository) Update(ctx context.Context, report *models.Report) error {
	args, err := reportArgs(report)
	if err != nil {
		return err
	}
	args = append(args, report.Version)
	const query = `UPDATE reports SET type = $2, description = $3, status = $4, street = $5, landmark = $6, coordinates = $7, photo_ref = $8, reported_by = $9, severity = $10, assigned_responder = $11, assigned_vehicle_id = $12, closed_by = $13, closed_at = $14, created_at = $15, last_updated_at = $16, last_updated_by = $17, notes = $18, attribution = $19, history = $20, version = version + 1 WHERE id = $1 AND version = $21`
	res, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("update report: %w", mapError(err))
	}
	if err := checkVersioned(ctx, r.db, "reports", report.ID, res); err != nil {
		return err
	}
	report.Version++
	return nil
}
