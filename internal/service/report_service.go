package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/isagip/barangay-dashboard-api/internal/dto"
	"github.com/isagip/barangay-dashboard-api/internal/models"
	"github.com/isagip/barangay-dashboard-api/internal/repository"
	appErrors "github.com/isagip/barangay-dashboard-api/pkg/errors"
)

type reportNotifier interface {
	NotifyNewReport(ctx context.Context, report *models.Report) error
}

// reportTransitions is the report state machine. Resolved has no exits.
var reportTransitions = map[models.IncidentStatus][]models.IncidentStatus{
	models.StatusPending:   {models.StatusRelayed, models.StatusOngoing, models.StatusResolved},
	models.StatusRelayed:   {models.StatusOngoing, models.StatusResolved},
	models.StatusOngoing:   {models.StatusResponded, models.StatusResolved},
	models.StatusResponded: {models.StatusOngoing, models.StatusResolved},
}

// ReportService runs the emergency report lifecycle.
type ReportService struct {
	store     repository.Store
	bus       changePublisher
	notifier  reportNotifier
	metrics   *MetricsService
	ids       *IDGenerator
	validator *validator.Validate
	logger    *zap.Logger
	now       func() time.Time
}

// ReportOption customises a ReportService.
type ReportOption func(*ReportService)

// WithReportNotifier enqueues a notification for each created report.
func WithReportNotifier(n reportNotifier) ReportOption {
	return func(s *ReportService) { s.notifier = n }
}

// WithReportMetrics counts transitions.
func WithReportMetrics(m *MetricsService) ReportOption {
	return func(s *ReportService) { s.metrics = m }
}

// WithReportClock overrides the time source.
func WithReportClock(now func() time.Time) ReportOption {
	return func(s *ReportService) { s.now = now }
}

// NewReportService constructs the report service.
func NewReportService(store repository.Store, bus changePublisher, validate *validator.Validate, logger *zap.Logger, opts ...ReportOption) *ReportService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if validate == nil {
		validate = NewValidator()
	}
	s := &ReportService{
		store:     store,
		bus:       bus,
		ids:       NewIDGenerator(),
		validator: validate,
		logger:    logger,
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.ids.now = s.now
	return s
}

// Create files a new report as Pending, or Relayed when it arrives relayed.
func (s *ReportService) Create(ctx context.Context, req dto.CreateReportRequest, actor string) (*models.Report, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, validationError(err, "invalid report payload")
	}
	if strings.TrimSpace(req.Description) == "" {
		return nil, appErrors.WithField(appErrors.ErrValidation, "description", "description is required")
	}
	if (req.Lat == nil) != (req.Lng == nil) {
		return nil, appErrors.WithField(appErrors.ErrValidation, "lat", "latitude and longitude must be provided together")
	}

	at := s.now().UTC()
	report := &models.Report{
		ID:          s.ids.Next(),
		Type:        req.Type,
		Description: strings.TrimSpace(req.Description),
		Status:      models.StatusPending,
		Street:      strings.TrimSpace(req.Street),
		Landmark:    strings.TrimSpace(req.Landmark),
		PhotoRef:    req.PhotoRef,
		ReportedBy:  strings.TrimSpace(req.ReportedBy),
		Severity:    req.Severity,
		Notes:       strings.TrimSpace(req.Notes),
		CreatedAt:   at,
	}
	if req.Lat != nil {
		report.Coordinates = &models.Coordinates{Lat: *req.Lat, Lng: *req.Lng}
	}
	report.Record(actor, models.ActionCreated, fmt.Sprintf("%s report filed by %s", report.Type, report.ReportedBy), at)
	if req.Relayed {
		report.Status = models.StatusRelayed
		report.Attribute("status", actor, at)
		report.Record(actor, models.ActionRelayed, "Received as relayed", at)
	}

	if err := s.store.Reports().Create(ctx, report); err != nil {
		return nil, storeError(err, "report")
	}

	s.logger.Info("report created", zap.String("report_id", report.ID), zap.String("type", string(report.Type)), zap.String("actor", actor))
	publishChange(ctx, s.bus, s.logger, models.CollectionReports, report.ID, models.OpCreate, report)
	if s.notifier != nil {
		if err := s.notifier.NotifyNewReport(ctx, report); err != nil {
			s.logger.Warn("failed to enqueue new report notification", zap.String("report_id", report.ID), zap.Error(err))
		}
	}
	return report, nil
}

// Get returns a report by id.
func (s *ReportService) Get(ctx context.Context, id string) (*models.Report, error) {
	report, err := s.store.Reports().Get(ctx, id)
	if err != nil {
		return nil, storeError(err, "report")
	}
	return report, nil
}

// History returns the report's history, oldest first.
func (s *ReportService) History(ctx context.Context, id string) ([]models.HistoryEntry, error) {
	report, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	return report.History, nil
}

// List returns reports newest first with the total match count.
func (s *ReportService) List(ctx context.Context, filter models.ReportFilter) ([]models.Report, int, error) {
	items, total, err := s.store.Reports().List(ctx, filter)
	if err != nil {
		return nil, 0, storeError(err, "reports")
	}
	return items, total, nil
}

// ParseFilter converts query parameters into a report filter.
func ParseFilter(q dto.ReportQuery) (models.ReportFilter, error) {
	filter := models.ReportFilter{
		Type:     models.IncidentType(strings.TrimSpace(q.Type)),
		Search:   q.Search,
		Page:     q.Page,
		PageSize: q.PageSize,
	}
	if filter.PageSize > 200 {
		filter.PageSize = 200
	}
	for _, raw := range strings.Split(q.Status, ",") {
		if raw = strings.TrimSpace(raw); raw == "" {
			continue
		}
		status := models.IncidentStatus(raw)
		if _, ok := reportTransitions[status]; !ok && status != models.StatusResolved {
			return filter, appErrors.WithField(appErrors.ErrValidation, "status", fmt.Sprintf("unknown status %q", raw))
		}
		filter.Status = append(filter.Status, status)
	}
	for _, bound := range []struct {
		raw   string
		field string
		dest  **time.Time
		shift time.Duration
	}{
		{q.From, "from", &filter.From, 0},
		{q.To, "to", &filter.To, 24 * time.Hour},
	} {
		if bound.raw == "" {
			continue
		}
		t, err := time.Parse("2006-01-02", bound.raw)
		if err != nil {
			return filter, appErrors.WithField(appErrors.ErrValidation, bound.field, bound.field+" must be YYYY-MM-DD")
		}
		t = t.Add(bound.shift)
		*bound.dest = &t
	}
	return filter, nil
}

// Relay forwards a pending report.
func (s *ReportService) Relay(ctx context.Context, id string, version int64, actor string) (*models.Report, error) {
	return s.mutate(ctx, id, version, func(_ repository.Store, r *models.Report, at time.Time) ([]models.Ambulance, error) {
		if err := s.transition(r, models.StatusRelayed, actor, models.ActionRelayed, "Report relayed", at); err != nil {
			return nil, err
		}
		return nil, nil
	})
}

// Dispatch moves a pending or relayed report to Ongoing, optionally naming a
// responder, an ambulance and a severity.
func (s *ReportService) Dispatch(ctx context.Context, id string, req dto.DispatchRequest, actor string) (*models.Report, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, validationError(err, "invalid dispatch payload")
	}
	return s.mutate(ctx, id, req.Version, func(tx repository.Store, r *models.Report, at time.Time) ([]models.Ambulance, error) {
		if r.Status != models.StatusPending && r.Status != models.StatusRelayed {
			if r.Status.Terminal() {
				return nil, appErrors.Clone(appErrors.ErrReportResolved, "report is already resolved")
			}
			return nil, appErrors.Clone(appErrors.ErrInvalidTransition, fmt.Sprintf("cannot dispatch a report that is %s", r.Status))
		}
		details := "Dispatched"
		if responder := strings.TrimSpace(req.Responder); responder != "" {
			details = "Dispatched to " + responder
		}
		if err := s.transition(r, models.StatusOngoing, actor, models.ActionDispatched, details, at); err != nil {
			return nil, err
		}
		if responder := strings.TrimSpace(req.Responder); responder != "" && responder != r.AssignedResponder {
			r.AssignedResponder = responder
			r.Attribute("assignedResponder", actor, at)
			r.Record(actor, models.ActionResponder, responder, at)
		}
		if req.Severity != "" && req.Severity != r.Severity {
			r.Severity = req.Severity
			r.Attribute("severity", actor, at)
			r.Record(actor, models.ActionSeverity, string(req.Severity), at)
		}
		if req.AmbulanceID != "" {
			return assignVehicle(ctx, tx, r, req.AmbulanceID, actor, at)
		}
		return nil, nil
	})
}

// ToggleResponded flips Ongoing and Responded. Pending and relayed reports
// move to Ongoing.
func (s *ReportService) ToggleResponded(ctx context.Context, id string, version int64, actor string) (*models.Report, error) {
	return s.mutate(ctx, id, version, func(_ repository.Store, r *models.Report, at time.Time) ([]models.Ambulance, error) {
		var err error
		switch r.Status {
		case models.StatusOngoing:
			err = s.transition(r, models.StatusResponded, actor, models.ActionResponded, "Marked responded", at)
		case models.StatusResponded:
			err = s.transition(r, models.StatusOngoing, actor, models.ActionReopened, "Response reopened", at)
		case models.StatusPending, models.StatusRelayed:
			err = s.transition(r, models.StatusOngoing, actor, models.ActionReopened, "Response started", at)
		default:
			err = s.transition(r, models.StatusOngoing, actor, "", "", at)
		}
		return nil, err
	})
}

// SetSeverity updates the triage level of an open report.
func (s *ReportService) SetSeverity(ctx context.Context, id string, req dto.SeverityRequest, actor string) (*models.Report, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, validationError(err, "invalid severity payload")
	}
	return s.mutate(ctx, id, req.Version, func(_ repository.Store, r *models.Report, at time.Time) ([]models.Ambulance, error) {
		if r.Status.Terminal() {
			return nil, appErrors.Clone(appErrors.ErrReportResolved, "report is already resolved")
		}
		r.Severity = req.Severity
		r.Attribute("severity", actor, at)
		r.Record(actor, models.ActionSeverity, string(req.Severity), at)
		return nil, nil
	})
}

// AssignResponder names the responder handling an open report.
func (s *ReportService) AssignResponder(ctx context.Context, id string, req dto.ResponderRequest, actor string) (*models.Report, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, validationError(err, "invalid responder payload")
	}
	responder := strings.TrimSpace(req.Responder)
	if responder == "" {
		return nil, appErrors.WithField(appErrors.ErrValidation, "responder", "responder is required")
	}
	return s.mutate(ctx, id, req.Version, func(_ repository.Store, r *models.Report, at time.Time) ([]models.Ambulance, error) {
		if r.Status.Terminal() {
			return nil, appErrors.Clone(appErrors.ErrReportResolved, "report is already resolved")
		}
		r.AssignedResponder = responder
		r.Attribute("assignedResponder", actor, at)
		r.Record(actor, models.ActionResponder, responder, at)
		return nil, nil
	})
}

// AssignAmbulance links an ambulance to the report without changing its status.
func (s *ReportService) AssignAmbulance(ctx context.Context, id, ambulanceID, actor string) (*models.Report, error) {
	if strings.TrimSpace(ambulanceID) == "" {
		return nil, appErrors.WithField(appErrors.ErrValidation, "ambulanceId", "ambulance is required")
	}
	return s.mutate(ctx, id, 0, func(tx repository.Store, r *models.Report, at time.Time) ([]models.Ambulance, error) {
		return assignVehicle(ctx, tx, r, ambulanceID, actor, at)
	})
}

// Resolve closes the report and releases its ambulances. Nothing is written
// without explicit confirmation.
func (s *ReportService) Resolve(ctx context.Context, id string, req dto.ConfirmRequest, actor string) (*models.Report, error) {
	if !req.Confirm {
		return nil, appErrors.Clone(appErrors.ErrConfirmationRequired, "confirm closing this report")
	}
	report, err := s.mutate(ctx, id, req.Version, func(tx repository.Store, r *models.Report, at time.Time) ([]models.Ambulance, error) {
		if err := s.transition(r, models.StatusResolved, actor, models.ActionClosed, "Report closed", at); err != nil {
			return nil, err
		}
		closedAt := at
		r.ClosedAt = &closedAt
		r.ClosedBy = actor
		r.Attribute("closedBy", actor, at)
		return releaseReportVehicles(ctx, tx, r, "", actor, at)
	})
	if err != nil {
		return nil, err
	}
	writeAudit(ctx, s.store.Audit(), s.logger, &models.AuditLog{
		Actor:      actor,
		Action:     models.AuditActionReportResolve,
		Resource:   "report",
		ResourceID: report.ID,
		CreatedAt:  s.now().UTC(),
	})
	return report, nil
}

// AddNote appends a note. Notes are accepted on resolved reports too.
func (s *ReportService) AddNote(ctx context.Context, id string, req dto.NoteRequest, actor string) (*models.Report, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, validationError(err, "invalid note payload")
	}
	note := strings.TrimSpace(req.Note)
	if note == "" {
		return nil, appErrors.WithField(appErrors.ErrValidation, "note", "note is required")
	}
	return s.mutate(ctx, id, 0, func(_ repository.Store, r *models.Report, at time.Time) ([]models.Ambulance, error) {
		if r.Notes == "" {
			r.Notes = note
		} else {
			r.Notes = r.Notes + "\n" + note
		}
		r.Attribute("notes", actor, at)
		r.Record(actor, models.ActionNote, note, at)
		return nil, nil
	})
}

// AttachPhoto stores the photo reference of an open report.
func (s *ReportService) AttachPhoto(ctx context.Context, id, photoRef, actor string) (*models.Report, error) {
	if strings.TrimSpace(photoRef) == "" {
		return nil, appErrors.WithField(appErrors.ErrValidation, "photo", "photo is required")
	}
	return s.mutate(ctx, id, 0, func(_ repository.Store, r *models.Report, at time.Time) ([]models.Ambulance, error) {
		if r.Status.Terminal() {
			return nil, appErrors.Clone(appErrors.ErrReportResolved, "report is already resolved")
		}
		r.PhotoRef = photoRef
		r.Attribute("photoRef", actor, at)
		r.Record(actor, models.ActionPhoto, "Photo attached", at)
		return nil, nil
	})
}

// transition applies a state machine edge and records it. An empty action
// only validates.
func (s *ReportService) transition(r *models.Report, to models.IncidentStatus, actor, action, details string, at time.Time) error {
	if r.Status.Terminal() {
		return appErrors.Clone(appErrors.ErrReportResolved, "report is already resolved")
	}
	allowed := false
	for _, next := range reportTransitions[r.Status] {
		if next == to {
			allowed = true
			break
		}
	}
	if !allowed || action == "" {
		return appErrors.Clone(appErrors.ErrInvalidTransition, fmt.Sprintf("cannot move a report from %s to %s", r.Status, to))
	}
	r.Status = to
	r.Attribute("status", actor, at)
	r.Record(actor, action, details, at)
	return nil
}

// mutate loads the report, applies fn and writes it back in one transaction.
// A positive version must match the stored one. Status changes are counted
// only once the transaction commits.
func (s *ReportService) mutate(ctx context.Context, id string, version int64, fn func(tx repository.Store, r *models.Report, at time.Time) ([]models.Ambulance, error)) (*models.Report, error) {
	var (
		report  *models.Report
		touched []models.Ambulance
		from    models.IncidentStatus
	)
	err := s.store.WithinTx(ctx, func(tx repository.Store) error {
		r, err := tx.Reports().Get(ctx, id)
		if err != nil {
			return storeError(err, "report")
		}
		from = r.Status
		if version > 0 && r.Version != version {
			return appErrors.Clone(appErrors.ErrConflict, "report was changed by someone else, reload and try again")
		}
		at := s.now().UTC()
		written, err := fn(tx, r, at)
		if err != nil {
			return err
		}
		if err := tx.Reports().Update(ctx, r); err != nil {
			return storeError(err, "report")
		}
		report, touched = r, written
		return nil
	})
	if err != nil {
		return nil, err
	}
	if report.Status != from {
		s.metrics.RecordTransition(from, report.Status)
	}
	publishChange(ctx, s.bus, s.logger, models.CollectionReports, report.ID, models.OpUpdate, report)
	for i := range touched {
		publishChange(ctx, s.bus, s.logger, models.CollectionAmbulances, touched[i].ID, models.OpUpdate, touched[i])
	}
	return report, nil
}
