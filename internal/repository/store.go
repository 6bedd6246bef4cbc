package repository

import (
	"context"
	"errors"

	"github.com/isagip/barangay-dashboard-api/internal/models"
)

// Sentinel errors shared by every Store implementation.
var (
	ErrNotFound        = errors.New("record not found")
	ErrVersionConflict = errors.New("record was modified by another session")
	ErrDuplicateKey    = errors.New("duplicate key")
	ErrUnavailable     = errors.New("store unavailable")
)

// ReportStore persists emergency reports. Update succeeds only when the
// record's Version matches the stored one and bumps it on success.
type ReportStore interface {
	Get(ctx context.Context, id string) (*models.Report, error)
	List(ctx context.Context, filter models.ReportFilter) ([]models.Report, int, error)
	Create(ctx context.Context, report *models.Report) error
	Update(ctx context.Context, report *models.Report) error
}

// AmbulanceStore persists the fleet.
type AmbulanceStore interface {
	Get(ctx context.Context, id string) (*models.Ambulance, error)
	List(ctx context.Context) ([]models.Ambulance, error)
	ListByReport(ctx context.Context, reportID string) ([]models.Ambulance, error)
	Create(ctx context.Context, ambulance *models.Ambulance) error
	Update(ctx context.Context, ambulance *models.Ambulance) error
}

// AccountStore persists dashboard logins. Username lookups are case-insensitive.
type AccountStore interface {
	GetByID(ctx context.Context, id string) (*models.Account, error)
	GetByUsername(ctx context.Context, username string) (*models.Account, error)
	List(ctx context.Context) ([]models.Account, error)
	Create(ctx context.Context, account *models.Account) error
	Update(ctx context.Context, account *models.Account) error
}

// ResidentStore persists residents. Username lookups are case-insensitive.
type ResidentStore interface {
	Get(ctx context.Context, id string) (*models.Resident, error)
	GetByUsername(ctx context.Context, username string) (*models.Resident, error)
	List(ctx context.Context) ([]models.Resident, error)
	Create(ctx context.Context, resident *models.Resident) error
	Update(ctx context.Context, resident *models.Resident) error
	Delete(ctx context.Context, id string) error
}

// RegistrationStore persists pending review requests.
type RegistrationStore interface {
	Get(ctx context.Context, id string) (*models.ReviewRequest, error)
	List(ctx context.Context, kind models.ReviewKind) ([]models.ReviewRequest, error)
	ListByIdentity(ctx context.Context, identity string) ([]models.ReviewRequest, error)
	Create(ctx context.Context, request *models.ReviewRequest) error
	Delete(ctx context.Context, id string) error
}

// FeedbackStore keeps the latest review outcome per identity.
type FeedbackStore interface {
	Get(ctx context.Context, identity string) (*models.Feedback, error)
	Put(ctx context.Context, feedback *models.Feedback) error
}

// PreferenceStore keeps per-user settings.
type PreferenceStore interface {
	Get(ctx context.Context, userID string) (*models.Preferences, error)
	Put(ctx context.Context, prefs *models.Preferences) error
}

// AuditStore records audit trail entries.
type AuditStore interface {
	Create(ctx context.Context, log *models.AuditLog) error
	List(ctx context.Context, limit int) ([]models.AuditLog, error)
}

// Store is the pluggable record backend. WithinTx runs fn against a
// transactional view; every write made through it commits or rolls back
// together and no reader observes a partial state.
type Store interface {
	Reports() ReportStore
	Ambulances() AmbulanceStore
	Accounts() AccountStore
	Residents() ResidentStore
	Registrations() RegistrationStore
	Feedback() FeedbackStore
	Preferences() PreferenceStore
	Audit() AuditStore
	WithinTx(ctx context.Context, fn func(tx Store) error) error
	Ping(ctx context.Context) error
}
