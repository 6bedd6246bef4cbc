package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/isagip/barangay-dashboard-api/internal/models"
)

const reviewColumns = `id, kind, identity, email, changes, proofs, documents, password_hash, requested_at, status, reviewer, reviewed_at, reason`

type reviewRow struct {
	ID           string     `db:"id"`
	Kind         string     `db:"kind"`
	Identity     string     `db:"identity"`
	Email        string     `db:"email"`
	Changes      []byte     `db:"changes"`
	Proofs       []byte     `db:"proofs"`
	Documents    []byte     `db:"documents"`
	PasswordHash string     `db:"password_hash"`
	RequestedAt  time.Time  `db:"requested_at"`
	Status       string     `db:"status"`
	Reviewer     string     `db:"reviewer"`
	ReviewedAt   *time.Time `db:"reviewed_at"`
	Reason       string     `db:"reason"`
}

func (row reviewRow) toModel() (*models.ReviewRequest, error) {
	req := &models.ReviewRequest{
		ID:           row.ID,
		Kind:         models.ReviewKind(row.Kind),
		Identity:     row.Identity,
		Email:        row.Email,
		PasswordHash: row.PasswordHash,
		RequestedAt:  row.RequestedAt,
		Status:       models.ReviewStatus(row.Status),
		Reviewer:     row.Reviewer,
		ReviewedAt:   row.ReviewedAt,
		Reason:       row.Reason,
	}
	if err := fromJSON(row.Changes, &req.Changes); err != nil {
		return nil, err
	}
	if err := fromJSON(row.Proofs, &req.Proofs); err != nil {
		return nil, err
	}
	if err := fromJSON(row.Documents, &req.Documents); err != nil {
		return nil, err
	}
	return req, nil
}

// RegistrationRepository provides database access for review requests.
type RegistrationRepository struct {
	db sqlx.ExtContext
}

// NewRegistrationRepository constructs the repository.
func NewRegistrationRepository(db sqlx.ExtContext) *RegistrationRepository {
	return &RegistrationRepository{db: db}
}

// Get returns a request by id.
func (r *RegistrationRepository) Get(ctx context.Context, id string) (*models.ReviewRequest, error) {
	query := `SELECT ` + reviewColumns + ` FROM review_requests WHERE id = $1`
	var row reviewRow
	if err := sqlx.GetContext(ctx, r.db, &row, query, id); err != nil {
		return nil, fmt.Errorf("get review request: %w", mapError(err))
	}
	return row.toModel()
}

// List returns requests of the given kind, or all when kind is empty.
func (r *RegistrationRepository) List(ctx context.Context, kind models.ReviewKind) ([]models.ReviewRequest, error) {
	query := `SELECT ` + reviewColumns + ` FROM review_requests`
	var args []interface{}
	if kind != "" {
		query += ` WHERE kind = $1`
		args = append(args, string(kind))
	}
	query += ` ORDER BY requested_at`
	return r.selectRows(ctx, query, args...)
}

// ListByIdentity returns requests filed for a username.
func (r *RegistrationRepository) ListByIdentity(ctx context.Context, identity string) ([]models.ReviewRequest, error) {
	query := `SELECT ` + reviewColumns + ` FROM review_requests WHERE LOWER(identity) = LOWER($1) ORDER BY requested_at`
	return r.selectRows(ctx, query, identity)
}

func (r *RegistrationRepository) selectRows(ctx context.Context, query string, args ...interface{}) ([]models.ReviewRequest, error) {
	var rows []reviewRow
	if err := sqlx.SelectContext(ctx, r.db, &rows, query, args...); err != nil {
		return nil, fmt.Errorf("list review requests: %w", mapError(err))
	}
	out := make([]models.ReviewRequest, 0, len(rows))
	for _, row := range rows {
		req, err := row.toModel()
		if err != nil {
			return nil, err
		}
		out = append(out, *req)
	}
	return out, nil
}

// Create inserts a request.
func (r *RegistrationRepository) Create(ctx context.Context, req *models.ReviewRequest) error {
	if req.ID == "" {
		req.ID = uuid.NewString()
	}
	changes := req.Changes
	if changes == nil {
		changes = map[string]string{}
	}
	changesRaw, err := toJSON(changes)
	if err != nil {
		return err
	}
	proofs := req.Proofs
	if proofs == nil {
		proofs = []string{}
	}
	proofsRaw, err := toJSON(proofs)
	if err != nil {
		return err
	}
	documents := req.Documents
	if documents == nil {
		documents = map[string]string{}
	}
	documentsRaw, err := toJSON(documents)
	if err != nil {
		return err
	}
	const query = `INSERT INTO review_requests (` + reviewColumns + `) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)`
	if _, err := r.db.ExecContext(ctx, query, req.ID, string(req.Kind), req.Identity, req.Email, changesRaw, proofsRaw, documentsRaw, req.PasswordHash, req.RequestedAt, string(req.Status), req.Reviewer, req.ReviewedAt, req.Reason); err != nil {
		return fmt.Errorf("create review request: %w", mapError(err))
	}
	return nil
}

// Delete removes a request.
func (r *RegistrationRepository) Delete(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM review_requests WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete review request: %w", mapError(err))
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrNotFound
	}
	return nil
}

// FeedbackRepository stores review outcomes keyed by identity.
type FeedbackRepository struct {
	db sqlx.ExtContext
}

// Get returns the latest feedback for identity.
func (r *FeedbackRepository) Get(ctx context.Context, identity string) (*models.Feedback, error) {
	const query = `SELECT identity, status, reason, reviewer, reviewed_at FROM review_feedback WHERE identity = LOWER($1)`
	var fb models.Feedback
	if err := sqlx.GetContext(ctx, r.db, &fb, query, identity); err != nil {
		return nil, fmt.Errorf("get feedback: %w", mapError(err))
	}
	return &fb, nil
}

// Put upserts feedback for the identity.
func (r *FeedbackRepository) Put(ctx context.Context, fb *models.Feedback) error {
	const query = `INSERT INTO review_feedback (identity, status, reason, reviewer, reviewed_at) VALUES (LOWER($1), $2, $3, $4, $5)
ON CONFLICT (identity) DO UPDATE SET status = EXCLUDED.status, reason = EXCLUDED.reason, reviewer = EXCLUDED.reviewer, reviewed_at = EXCLUDED.reviewed_at`
	if _, err := r.db.ExecContext(ctx, query, fb.Identity, string(fb.Status), fb.Reason, fb.Reviewer, fb.ReviewedAt); err != nil {
		return fmt.Errorf("put feedback: %w", mapError(err))
	}
	return nil
}
