package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/isagip/barangay-dashboard-api/internal/dto"
	"github.com/isagip/barangay-dashboard-api/internal/models"
	"github.com/isagip/barangay-dashboard-api/internal/repository"
	appErrors "github.com/isagip/barangay-dashboard-api/pkg/errors"
)

// AccountService manages dashboard staff and responder logins.
type AccountService struct {
	store     repository.Store
	bus       changePublisher
	validator *validator.Validate
	logger    *zap.Logger
	now       func() time.Time
}

// NewAccountService constructs the service.
func NewAccountService(store repository.Store, bus changePublisher, validate *validator.Validate, logger *zap.Logger) *AccountService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if validate == nil {
		validate = NewValidator()
	}
	return &AccountService{store: store, bus: bus, validator: validate, logger: logger, now: time.Now}
}

// List returns every account ordered by username.
func (s *AccountService) List(ctx context.Context) ([]models.Account, error) {
	items, err := s.store.Accounts().List(ctx)
	if err != nil {
		return nil, storeError(err, "accounts")
	}
	return items, nil
}

// RegisterStaff creates an active staff or responder account.
func (s *AccountService) RegisterStaff(ctx context.Context, req dto.StaffRegistrationRequest, actor string) (*models.Account, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, validationError(err, "invalid staff registration payload")
	}
	if req.Password != req.ConfirmPassword {
		return nil, appErrors.WithField(appErrors.ErrValidation, "confirmPassword", "passwords do not match")
	}
	if req.Role == "responder" && strings.TrimSpace(req.ResponderType) == "" {
		return nil, appErrors.WithField(appErrors.ErrValidation, "responderType", "responder type is required for responders")
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, appErrors.Internal(err, "failed to hash password")
	}
	at := s.now().UTC()
	account := &models.Account{
		ID:           uuid.NewString(),
		Username:     strings.TrimSpace(req.Username),
		Email:        strings.TrimSpace(req.Email),
		PasswordHash: string(hash),
		Role:         req.Role,
		Active:       true,
		Profile:      profileFromFields(req.ProfileFields),
		CreatedAt:    at,
		UpdatedAt:    at,
	}
	if req.Role == "responder" {
		account.Profile.ResponderType = strings.TrimSpace(req.ResponderType)
	}

	err = s.store.WithinTx(ctx, func(tx repository.Store) error {
		_, err := tx.Accounts().GetByUsername(ctx, account.Username)
		switch {
		case err == nil:
			return appErrors.WithField(appErrors.ErrDuplicate, "username", "Username already exists.")
		case !errors.Is(err, repository.ErrNotFound):
			return storeError(err, "account")
		}
		return storeError(tx.Accounts().Create(ctx, account), "account")
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("staff account created", zap.String("username", account.Username), zap.String("role", account.Role), zap.String("actor", actor))
	writeAudit(ctx, s.store.Audit(), s.logger, &models.AuditLog{
		Actor:      actor,
		Action:     models.AuditActionStaffCreate,
		Resource:   "account",
		ResourceID: account.ID,
		CreatedAt:  at,
	})
	publishChange(ctx, s.bus, s.logger, models.CollectionAccounts, account.ID, models.OpCreate, account)
	return account, nil
}
