package service

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/isagip/barangay-dashboard-api/internal/models"
	"github.com/isagip/barangay-dashboard-api/internal/realtime"
	"github.com/isagip/barangay-dashboard-api/internal/repository"
	appErrors "github.com/isagip/barangay-dashboard-api/pkg/errors"
	"github.com/isagip/barangay-dashboard-api/pkg/middleware/requestid"
)

var nonDigits = regexp.MustCompile(`\D`)

// ValidContact reports whether raw holds exactly 13 digits once separators
// are stripped.
func ValidContact(raw string) bool {
	return len(nonDigits.ReplaceAllString(raw, "")) == 13
}

// NewValidator returns a validator with the dashboard's custom rules
// registered.
func NewValidator() *validator.Validate {
	v := validator.New()
	_ = v.RegisterValidation("contact13", func(fl validator.FieldLevel) bool {
		return ValidContact(fl.Field().String())
	})
	return v
}

// validationError converts validator output into a field-scoped error for
// inline display.
func validationError(err error, message string) error {
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) && len(verrs) > 0 {
		field := lowerFirst(verrs[0].Field())
		return appErrors.WithField(appErrors.ErrValidation, field, fmt.Sprintf("%s: %s is invalid (%s)", message, field, verrs[0].Tag()))
	}
	return appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, message)
}

func lowerFirst(s string) string {
	if s == "" {
		return s
	}
	return strings.ToLower(s[:1]) + s[1:]
}

// storeError maps repository sentinels onto API errors for the named resource.
func storeError(err error, resource string) error {
	if err == nil {
		return nil
	}
	var appErr *appErrors.Error
	if errors.As(err, &appErr) {
		return appErr
	}
	switch {
	case errors.Is(err, repository.ErrNotFound):
		return appErrors.Clone(appErrors.ErrNotFound, resource+" not found")
	case errors.Is(err, repository.ErrVersionConflict):
		return appErrors.Clone(appErrors.ErrConflict, "record was changed by someone else, reload and try again")
	case errors.Is(err, repository.ErrDuplicateKey):
		return appErrors.Clone(appErrors.ErrDuplicate, resource+" already exists")
	case errors.Is(err, repository.ErrUnavailable):
		return appErrors.Wrap(err, appErrors.ErrBackendUnavailable.Code, appErrors.ErrBackendUnavailable.Status, appErrors.ErrBackendUnavailable.Message)
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return appErrors.Wrap(err, appErrors.ErrBackendUnavailable.Code, appErrors.ErrBackendUnavailable.Status, "request timed out")
	}
	return appErrors.Internal(err, "failed to access "+resource)
}

// IDGenerator issues report ids of the form REP-<unix millis>. Ids are
// strictly increasing within the process even when two reports arrive in the
// same millisecond.
type IDGenerator struct {
	mu   sync.Mutex
	last int64
	now  func() time.Time
}

// NewIDGenerator constructs a generator on the wall clock.
func NewIDGenerator() *IDGenerator {
	return &IDGenerator{now: time.Now}
}

// Next returns the next report id.
func (g *IDGenerator) Next() string {
	g.mu.Lock()
	defer g.mu.Unlock()
	ms := g.now().UnixMilli()
	if ms <= g.last {
		ms = g.last + 1
	}
	g.last = ms
	return fmt.Sprintf("REP-%d", ms)
}

type changePublisher interface {
	Publish(ctx context.Context, event models.ChangeEvent) error
}

// publishChange announces a committed write. Failures are logged and never
// fail the write itself.
func publishChange(ctx context.Context, bus changePublisher, logger *zap.Logger, collection, id, op string, payload interface{}) {
	if bus == nil {
		return
	}
	if err := bus.Publish(ctx, realtime.NewChangeEvent(collection, id, op, payload)); err != nil {
		logger.Warn("publish change event failed",
			zap.String("collection", collection), zap.String("id", id), zap.Error(err))
	}
}

type auditWriter interface {
	Create(ctx context.Context, log *models.AuditLog) error
}

func writeAudit(ctx context.Context, audit auditWriter, logger *zap.Logger, entry *models.AuditLog) {
	if audit == nil {
		return
	}
	if err := audit.Create(ctx, entry); err != nil {
		logger.Warn("failed to record audit log",
			zap.String("action", entry.Action),
			zap.String("request_id", requestid.FromContext(ctx)),
			zap.Error(err),
		)
	}
}
