package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/isagip/barangay-dashboard-api/internal/models"
)

// PreferenceRepository stores per-user settings.
type PreferenceRepository struct {
	db sqlx.ExtContext
}

// Get returns the stored preferences for userID.
func (r *PreferenceRepository) Get(ctx context.Context, userID string) (*models.Preferences, error) {
	const query = `SELECT user_id, default_landing, language, time_format, date_format, timezone, theme, updated_at FROM preferences WHERE user_id = $1`
	var prefs models.Preferences
	if err := sqlx.GetContext(ctx, r.db, &prefs, query, userID); err != nil {
		return nil, fmt.Errorf("get preferences: %w", mapError(err))
	}
	return &prefs, nil
}

// Put upserts the preferences row.
func (r *PreferenceRepository) Put(ctx context.Context, prefs *models.Preferences) error {
	const query = `INSERT INTO preferences (user_id, default_landing, language, time_format, date_format, timezone, theme, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
ON CONFLICT (user_id) DO UPDATE SET default_landing = EXCLUDED.default_landing, language = EXCLUDED.language, time_format = EXCLUDED.time_format, date_format = EXCLUDED.date_format, timezone = EXCLUDED.timezone, theme = EXCLUDED.theme, updated_at = EXCLUDED.updated_at`
	if _, err := r.db.ExecContext(ctx, query, prefs.UserID, prefs.DefaultLanding, prefs.Language, prefs.TimeFormat, prefs.DateFormat, prefs.Timezone, prefs.Theme, prefs.UpdatedAt); err != nil {
		return fmt.Errorf("put preferences: %w", mapError(err))
	}
	return nil
}

// AuditRepository stores audit trail entries.
type AuditRepository struct {
	db sqlx.ExtContext
}

// Create inserts an audit row.
func (r *AuditRepository) Create(ctx context.Context, log *models.AuditLog) error {
	if log.ID == "" {
		log.ID = uuid.NewString()
	}
	if log.CreatedAt.IsZero() {
		log.CreatedAt = time.Now().UTC()
	}
	const query = `INSERT INTO audit_logs (id, actor, action, resource, resource_id, details, ip_address, created_at) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`
	if _, err := r.db.ExecContext(ctx, query, log.ID, log.Actor, log.Action, log.Resource, log.ResourceID, log.Details, log.IPAddress, log.CreatedAt); err != nil {
		return fmt.Errorf("create audit log: %w", mapError(err))
	}
	return nil
}

// List returns the newest entries.
func (r *AuditRepository) List(ctx context.Context, limit int) ([]models.AuditLog, error) {
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	query := fmt.Sprintf(`SELECT id, actor, action, resource, resource_id, details, ip_address, created_at FROM audit_logs ORDER BY created_at DESC LIMIT %d`, limit)
	var logs []models.AuditLog
	if err := sqlx.SelectContext(ctx, r.db, &logs, query); err != nil {
		return nil, fmt.Errorf("list audit logs: %w", mapError(err))
	}
	return logs, nil
}
