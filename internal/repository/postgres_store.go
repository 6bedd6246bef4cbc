package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
)

// PostgresStore implements Store on PostgreSQL through sqlx.
type PostgresStore struct {
	db  *sqlx.DB
	ext sqlx.ExtContext
	tx  bool
}

// NewPostgresStore wraps an open connection pool.
func NewPostgresStore(db *sqlx.DB) *PostgresStore {
	return &PostgresStore{db: db, ext: db}
}

// Reports implements Store.
func (s *PostgresStore) Reports() ReportStore { return &ReportRepository{db: s.ext} }

// Ambulances implements Store.
func (s *PostgresStore) Ambulances() AmbulanceStore { return &AmbulanceRepository{db: s.ext} }

// Accounts implements Store.
func (s *PostgresStore) Accounts() AccountStore { return &AccountRepository{db: s.ext} }

// Residents implements Store.
func (s *PostgresStore) Residents() ResidentStore { return &ResidentRepository{db: s.ext} }

// Registrations implements Store.
func (s *PostgresStore) Registrations() RegistrationStore { return &RegistrationRepository{db: s.ext} }

// Feedback implements Store.
func (s *PostgresStore) Feedback() FeedbackStore { return &FeedbackRepository{db: s.ext} }

// Preferences implements Store.
func (s *PostgresStore) Preferences() PreferenceStore { return &PreferenceRepository{db: s.ext} }

// Audit implements Store.
func (s *PostgresStore) Audit() AuditStore { return &AuditRepository{db: s.ext} }

// WithinTx runs fn inside a serializable transaction. Nested calls reuse the
// outer transaction.
func (s *PostgresStore) WithinTx(ctx context.Context, fn func(tx Store) error) error {
	if s.tx {
		return fn(s)
	}
	tx, err := s.db.BeginTxx(ctx, &sql.TxOptions{Isolation: sql.LevelSerializable})
	if err != nil {
		return mapError(fmt.Errorf("begin transaction: %w", err))
	}
	if err := fn(&PostgresStore{db: s.db, ext: tx, tx: true}); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil && !errors.Is(rbErr, sql.ErrTxDone) {
			return fmt.Errorf("%w (rollback: %v)", err, rbErr)
		}
		return err
	}
	if err := tx.Commit(); err != nil {
		return mapError(fmt.Errorf("commit transaction: %w", err))
	}
	return nil
}

// Ping checks connectivity.
func (s *PostgresStore) Ping(ctx context.Context) error {
	if err := s.db.PingContext(ctx); err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return nil
}

// mapError converts driver errors to the package sentinels.
func mapError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, sql.ErrNoRows) {
		return ErrNotFound
	}
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		switch pqErr.Code {
		case "23505":
			return fmt.Errorf("%w: %s", ErrDuplicateKey, pqErr.Constraint)
		case "40001":
			return fmt.Errorf("%w: %s", ErrVersionConflict, pqErr.Message)
		case "08000", "08003", "08006", "57P01":
			return fmt.Errorf("%w: %s", ErrUnavailable, pqErr.Message)
		}
	}
	if errors.Is(err, sql.ErrConnDone) {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return err
}

// checkVersioned resolves a zero-row conditional update into ErrNotFound or
// ErrVersionConflict.
func checkVersioned(ctx context.Context, db sqlx.ExtContext, table, id string, res sql.Result) error {
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if affected > 0 {
		return nil
	}
	var exists bool
	query := fmt.Sprintf("SELECT EXISTS(SELECT 1 FROM %s WHERE id = $1)", table)
	if err := sqlx.GetContext(ctx, db, &exists, query, id); err != nil {
		return fmt.Errorf("check %s existence: %w", table, mapError(err))
	}
	if !exists {
		return ErrNotFound
	}
	return ErrVersionConflict
}

func toJSON(v interface{}) ([]byte, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("encode json column: %w", err)
	}
	return raw, nil
}

func fromJSON(raw []byte, dest interface{}) error {
	if len(raw) == 0 {
		return nil
	}
	if err := json.Unmarshal(raw, dest); err != nil {
		return fmt.Errorf("decode json column: %w", err)
	}
	return nil
}

var _ Store = (*PostgresStore)(nil)
