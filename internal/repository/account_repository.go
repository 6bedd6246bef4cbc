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

const accountColumns = `id, username, email, password_hash, role, active, profile, created_at, updated_at, version`

type accountRow struct {
	ID           string    `db:"id"`
	Username     string    `db:"username"`
	Email        string    `db:"email"`
	PasswordHash string    `db:"password_hash"`
	Role         string    `db:"role"`
	Active       bool      `db:"active"`
	Profile      []byte    `db:"profile"`
	CreatedAt    time.Time `db:"created_at"`
	UpdatedAt    time.Time `db:"updated_at"`
	Version      int64     `db:"version"`
}

func (row accountRow) toModel() (*models.Account, error) {
	account := &models.Account{
		ID:           row.ID,
		Username:     row.Username,
		Email:        row.Email,
		PasswordHash: row.PasswordHash,
		Role:         row.Role,
		Active:       row.Active,
		CreatedAt:    row.CreatedAt,
		UpdatedAt:    row.UpdatedAt,
		Version:      row.Version,
	}
	if err := fromJSON(row.Profile, &account.Profile); err != nil {
		return nil, err
	}
	return account, nil
}

// AccountRepository provides database access for dashboard accounts.
type AccountRepository struct {
	db sqlx.ExtContext
}

// NewAccountRepository creates a new instance of AccountRepository.
func NewAccountRepository(db sqlx.ExtContext) *AccountRepository {
	return &AccountRepository{db: db}
}

// GetByID returns an account by identifier.
func (r *AccountRepository) GetByID(ctx context.Context, id string) (*models.Account, error) {
	query := `SELECT ` + accountColumns + ` FROM accounts WHERE id = $1 LIMIT 1`
	var row accountRow
	if err := sqlx.GetContext(ctx, r.db, &row, query, id); err != nil {
		return nil, fmt.Errorf("find account by id: %w", mapError(err))
	}
	return row.toModel()
}

// GetByUsername returns an account by case-insensitive username.
func (r *AccountRepository) GetByUsername(ctx context.Context, username string) (*models.Account, error) {
	query := `SELECT ` + accountColumns + ` FROM accounts WHERE LOWER(username) = LOWER($1) LIMIT 1`
	var row accountRow
	if err := sqlx.GetContext(ctx, r.db, &row, query, strings.TrimSpace(username)); err != nil {
		return nil, fmt.Errorf("find account by username: %w", mapError(err))
	}
	return row.toModel()
}

// List returns every account ordered by username.
func (r *AccountRepository) List(ctx context.Context) ([]models.Account, error) {
	query := `SELECT ` + accountColumns + ` FROM accounts ORDER BY LOWER(username)`
	var rows []accountRow
	if err := sqlx.SelectContext(ctx, r.db, &rows, query); err != nil {
		return nil, fmt.Errorf("list accounts: %w", mapError(err))
	}
	accounts := make([]models.Account, 0, len(rows))
	for _, row := range rows {
		account, err := row.toModel()
		if err != nil {
			return nil, err
		}
		accounts = append(accounts, *account)
	}
	return accounts, nil
}

// Create inserts a new account.
func (r *AccountRepository) Create(ctx context.Context, account *models.Account) error {
	if account.ID == "" {
		account.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if account.CreatedAt.IsZero() {
		account.CreatedAt = now
	}
	account.UpdatedAt = now
	profile, err := toJSON(account.Profile)
	if err != nil {
		return err
	}
	const query = `INSERT INTO accounts (` + accountColumns + `) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, 1)`
	if _, err := r.db.ExecContext(ctx, query, account.ID, account.Username, account.Email, account.PasswordHash, account.Role, account.Active, profile, account.CreatedAt, account.UpdatedAt); err != nil {
		return fmt.Errorf("create account: %w", mapError(err))
	}
	account.Version = 1
	return nil
}

// Update writes mutable fields when the stored version matches.
func (r *AccountRepository) Update(ctx context.Context, account *models.Account) error {
	account.UpdatedAt = time.Now().UTC()
	profile, err := toJSON(account.Profile)
	if err != nil {
		return err
	}
	const query = `UPDATE accounts SET email = $2, password_hash = $3, role = $4, active = $5, profile = $6, updated_at = $7, version = version + 1 WHERE id = $1 AND version = $8`
	res, err := r.db.ExecContext(ctx, query, account.ID, account.Email, account.PasswordHash, account.Role, account.Active, profile, account.UpdatedAt, account.Version)
	if err != nil {
		return fmt.Errorf("update account: %w", mapError(err))
	}
	if err := checkVersioned(ctx, r.db, "accounts", account.ID, res); err != nil {
		return err
	}
	account.Version++
	return nil
}
