// Package memory implements repository.Store in process memory. It backs tests
// and the local single-node mode.
package memory

import (
	"context"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/isagip/barangay-dashboard-api/internal/models"
	"github.com/isagip/barangay-dashboard-api/internal/repository"
)

type dataset struct {
	reports       map[string]*models.Report
	ambulances    map[string]*models.Ambulance
	accounts      map[string]*models.Account
	residents     map[string]*models.Resident
	registrations map[string]*models.ReviewRequest
	feedback      map[string]models.Feedback
	preferences   map[string]models.Preferences
	audit         []models.AuditLog
}

func newDataset() *dataset {
	return &dataset{
		reports:       make(map[string]*models.Report),
		ambulances:    make(map[string]*models.Ambulance),
		accounts:      make(map[string]*models.Account),
		residents:     make(map[string]*models.Resident),
		registrations: make(map[string]*models.ReviewRequest),
		feedback:      make(map[string]models.Feedback),
		preferences:   make(map[string]models.Preferences),
	}
}

func (d *dataset) clone() *dataset {
	out := newDataset()
	for k, v := range d.reports {
		out.reports[k] = v.Clone()
	}
	for k, v := range d.ambulances {
		out.ambulances[k] = v.Clone()
	}
	for k, v := range d.accounts {
		a := *v
		out.accounts[k] = &a
	}
	for k, v := range d.residents {
		out.residents[k] = v.Clone()
	}
	for k, v := range d.registrations {
		out.registrations[k] = v.Clone()
	}
	for k, v := range d.feedback {
		out.feedback[k] = v
	}
	for k, v := range d.preferences {
		out.preferences[k] = v
	}
	out.audit = append([]models.AuditLog(nil), d.audit...)
	return out
}

// Store is a mutex guarded repository.Store.
type Store struct {
	mu          sync.RWMutex
	data        *dataset
	unavailable atomic.Bool
}

// NewStore returns an empty store.
func NewStore() *Store {
	return &Store{data: newDataset()}
}

// SetUnavailable makes Ping and every operation fail with ErrUnavailable.
func (s *Store) SetUnavailable(down bool) {
	s.unavailable.Store(down)
}

func (s *Store) root() *view { return &view{s: s} }

// Reports implements repository.Store.
func (s *Store) Reports() repository.ReportStore { return reportRepo{s.root()} }

// Ambulances implements repository.Store.
func (s *Store) Ambulances() repository.AmbulanceStore { return ambulanceRepo{s.root()} }

// Accounts implements repository.Store.
func (s *Store) Accounts() repository.AccountStore { return accountRepo{s.root()} }

// Residents implements repository.Store.
func (s *Store) Residents() repository.ResidentStore { return residentRepo{s.root()} }

// Registrations implements repository.Store.
func (s *Store) Registrations() repository.RegistrationStore { return registrationRepo{s.root()} }

// Feedback implements repository.Store.
func (s *Store) Feedback() repository.FeedbackStore { return feedbackRepo{s.root()} }

// Preferences implements repository.Store.
func (s *Store) Preferences() repository.PreferenceStore { return preferenceRepo{s.root()} }

// Audit implements repository.Store.
func (s *Store) Audit() repository.AuditStore { return auditRepo{s.root()} }

// WithinTx holds the write lock for the whole callback and restores the
// previous snapshot when fn fails.
func (s *Store) WithinTx(ctx context.Context, fn func(tx repository.Store) error) error {
	return s.root().WithinTx(ctx, fn)
}

// Ping reports availability.
func (s *Store) Ping(ctx context.Context) error {
	return s.root().Ping(ctx)
}

// view is either the root store (locking per call) or a transaction (the
// caller already holds the write lock).
type view struct {
	s  *Store
	tx bool
}

func (v *view) read(ctx context.Context, fn func(d *dataset) error) error {
	if err := v.check(ctx); err != nil {
		return err
	}
	if !v.tx {
		v.s.mu.RLock()
		defer v.s.mu.RUnlock()
	}
	return fn(v.s.data)
}

func (v *view) write(ctx context.Context, fn func(d *dataset) error) error {
	if err := v.check(ctx); err != nil {
		return err
	}
	if !v.tx {
		v.s.mu.Lock()
		defer v.s.mu.Unlock()
	}
	return fn(v.s.data)
}

func (v *view) check(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if v.s.unavailable.Load() {
		return repository.ErrUnavailable
	}
	return nil
}

func (v *view) Reports() repository.ReportStore             { return reportRepo{v} }
func (v *view) Ambulances() repository.AmbulanceStore       { return ambulanceRepo{v} }
func (v *view) Accounts() repository.AccountStore           { return accountRepo{v} }
func (v *view) Residents() repository.ResidentStore         { return residentRepo{v} }
func (v *view) Registrations() repository.RegistrationStore { return registrationRepo{v} }
func (v *view) Feedback() repository.FeedbackStore          { return feedbackRepo{v} }
func (v *view) Preferences() repository.PreferenceStore     { return preferenceRepo{v} }
func (v *view) Audit() repository.AuditStore                { return auditRepo{v} }

func (v *view) Ping(ctx context.Context) error {
	return v.check(ctx)
}

func (v *view) WithinTx(ctx context.Context, fn func(tx repository.Store) error) error {
	if v.tx {
		return fn(v)
	}
	if err := v.check(ctx); err != nil {
		return err
	}
	v.s.mu.Lock()
	defer v.s.mu.Unlock()
	snapshot := v.s.data.clone()
	if err := fn(&view{s: v.s, tx: true}); err != nil {
		v.s.data = snapshot
		return err
	}
	return nil
}

type reportRepo struct{ v *view }

func (r reportRepo) Get(ctx context.Context, id string) (*models.Report, error) {
	var out *models.Report
	err := r.v.read(ctx, func(d *dataset) error {
		rec, ok := d.reports[id]
		if !ok {
			return repository.ErrNotFound
		}
		out = rec.Clone()
		return nil
	})
	return out, err
}

func (r reportRepo) List(ctx context.Context, filter models.ReportFilter) ([]models.Report, int, error) {
	var (
		out   []models.Report
		total int
	)
	err := r.v.read(ctx, func(d *dataset) error {
		matched := make([]models.Report, 0, len(d.reports))
		for _, rec := range d.reports {
			if filter.Matches(rec) {
				matched = append(matched, *rec.Clone())
			}
		}
		sort.Slice(matched, func(i, j int) bool {
			if matched[i].CreatedAt.Equal(matched[j].CreatedAt) {
				return matched[i].ID > matched[j].ID
			}
			return matched[i].CreatedAt.After(matched[j].CreatedAt)
		})
		total = len(matched)
		out = paginate(matched, filter.Page, filter.PageSize)
		return nil
	})
	return out, total, err
}

func (r reportRepo) Create(ctx context.Context, report *models.Report) error {
	return r.v.write(ctx, func(d *dataset) error {
		if _, exists := d.reports[report.ID]; exists {
			return repository.ErrDuplicateKey
		}
		report.Version = 1
		d.reports[report.ID] = report.Clone()
		return nil
	})
}

func (r reportRepo) Update(ctx context.Context, report *models.Report) error {
	return r.v.write(ctx, func(d *dataset) error {
		current, ok := d.reports[report.ID]
		if !ok {
			return repository.ErrNotFound
		}
		if current.Version != report.Version {
			return repository.ErrVersionConflict
		}
		report.Version++
		d.reports[report.ID] = report.Clone()
		return nil
	})
}

type ambulanceRepo struct{ v *view }

func (r ambulanceRepo) Get(ctx context.Context, id string) (*models.Ambulance, error) {
	var out *models.Ambulance
	err := r.v.read(ctx, func(d *dataset) error {
		rec, ok := d.ambulances[id]
		if !ok {
			return repository.ErrNotFound
		}
		out = rec.Clone()
		return nil
	})
	return out, err
}

func (r ambulanceRepo) List(ctx context.Context) ([]models.Ambulance, error) {
	var out []models.Ambulance
	err := r.v.read(ctx, func(d *dataset) error {
		out = make([]models.Ambulance, 0, len(d.ambulances))
		for _, rec := range d.ambulances {
			out = append(out, *rec)
		}
		sort.Slice(out, func(i, j int) bool { return naturalLess(out[i].ID, out[j].ID) })
		return nil
	})
	return out, err
}

func (r ambulanceRepo) ListByReport(ctx context.Context, reportID string) ([]models.Ambulance, error) {
	var out []models.Ambulance
	err := r.v.read(ctx, func(d *dataset) error {
		for _, rec := range d.ambulances {
			if rec.AssignedReportID == reportID {
				out = append(out, *rec)
			}
		}
		sort.Slice(out, func(i, j int) bool { return naturalLess(out[i].ID, out[j].ID) })
		return nil
	})
	return out, err
}

func (r ambulanceRepo) Create(ctx context.Context, ambulance *models.Ambulance) error {
	return r.v.write(ctx, func(d *dataset) error {
		if _, exists := d.ambulances[ambulance.ID]; exists {
			return repository.ErrDuplicateKey
		}
		ambulance.Version = 1
		d.ambulances[ambulance.ID] = ambulance.Clone()
		return nil
	})
}

func (r ambulanceRepo) Update(ctx context.Context, ambulance *models.Ambulance) error {
	return r.v.write(ctx, func(d *dataset) error {
		current, ok := d.ambulances[ambulance.ID]
		if !ok {
			return repository.ErrNotFound
		}
		if current.Version != ambulance.Version {
			return repository.ErrVersionConflict
		}
		ambulance.Version++
		d.ambulances[ambulance.ID] = ambulance.Clone()
		return nil
	})
}

type accountRepo struct{ v *view }

func (r accountRepo) GetByID(ctx context.Context, id string) (*models.Account, error) {
	var out *models.Account
	err := r.v.read(ctx, func(d *dataset) error {
		rec, ok := d.accounts[id]
		if !ok {
			return repository.ErrNotFound
		}
		a := *rec
		out = &a
		return nil
	})
	return out, err
}

func (r accountRepo) GetByUsername(ctx context.Context, username string) (*models.Account, error) {
	var out *models.Account
	err := r.v.read(ctx, func(d *dataset) error {
		for _, rec := range d.accounts {
			if strings.EqualFold(rec.Username, strings.TrimSpace(username)) {
				a := *rec
				out = &a
				return nil
			}
		}
		return repository.ErrNotFound
	})
	return out, err
}

func (r accountRepo) List(ctx context.Context) ([]models.Account, error) {
	var out []models.Account
	err := r.v.read(ctx, func(d *dataset) error {
		out = make([]models.Account, 0, len(d.accounts))
		for _, rec := range d.accounts {
			out = append(out, *rec)
		}
		sort.Slice(out, func(i, j int) bool { return strings.ToLower(out[i].Username) < strings.ToLower(out[j].Username) })
		return nil
	})
	return out, err
}

func (r accountRepo) Create(ctx context.Context, account *models.Account) error {
	return r.v.write(ctx, func(d *dataset) error {
		for _, rec := range d.accounts {
			if strings.EqualFold(rec.Username, account.Username) {
				return repository.ErrDuplicateKey
			}
		}
		if account.ID == "" {
			account.ID = uuid.NewString()
		}
		account.Version = 1
		a := *account
		d.accounts[account.ID] = &a
		return nil
	})
}

func (r accountRepo) Update(ctx context.Context, account *models.Account) error {
	return r.v.write(ctx, func(d *dataset) error {
		current, ok := d.accounts[account.ID]
		if !ok {
			return repository.ErrNotFound
		}
		if current.Version != account.Version {
			return repository.ErrVersionConflict
		}
		account.Version++
		a := *account
		d.accounts[account.ID] = &a
		return nil
	})
}

type residentRepo struct{ v *view }

func (r residentRepo) Get(ctx context.Context, id string) (*models.Resident, error) {
	var out *models.Resident
	err := r.v.read(ctx, func(d *dataset) error {
		rec, ok := d.residents[id]
		if !ok {
			return repository.ErrNotFound
		}
		out = rec.Clone()
		return nil
	})
	return out, err
}

func (r residentRepo) GetByUsername(ctx context.Context, username string) (*models.Resident, error) {
	var out *models.Resident
	err := r.v.read(ctx, func(d *dataset) error {
		for _, rec := range d.residents {
			if strings.EqualFold(rec.Username, strings.TrimSpace(username)) {
				out = rec.Clone()
				return nil
			}
		}
		return repository.ErrNotFound
	})
	return out, err
}

func (r residentRepo) List(ctx context.Context) ([]models.Resident, error) {
	var out []models.Resident
	err := r.v.read(ctx, func(d *dataset) error {
		out = make([]models.Resident, 0, len(d.residents))
		for _, rec := range d.residents {
			out = append(out, *rec)
		}
		sort.Slice(out, func(i, j int) bool { return strings.ToLower(out[i].Username) < strings.ToLower(out[j].Username) })
		return nil
	})
	return out, err
}

func (r residentRepo) Create(ctx context.Context, resident *models.Resident) error {
	return r.v.write(ctx, func(d *dataset) error {
		for _, rec := range d.residents {
			if strings.EqualFold(rec.Username, resident.Username) {
				return repository.ErrDuplicateKey
			}
		}
		if resident.ID == "" {
			resident.ID = uuid.NewString()
		}
		resident.Version = 1
		d.residents[resident.ID] = resident.Clone()
		return nil
	})
}

func (r residentRepo) Update(ctx context.Context, resident *models.Resident) error {
	return r.v.write(ctx, func(d *dataset) error {
		current, ok := d.residents[resident.ID]
		if !ok {
			return repository.ErrNotFound
		}
		if current.Version != resident.Version {
			return repository.ErrVersionConflict
		}
		resident.Version++
		d.residents[resident.ID] = resident.Clone()
		return nil
	})
}

func (r residentRepo) Delete(ctx context.Context, id string) error {
	return r.v.write(ctx, func(d *dataset) error {
		if _, ok := d.residents[id]; !ok {
			return repository.ErrNotFound
		}
		delete(d.residents, id)
		return nil
	})
}

type registrationRepo struct{ v *view }

func (r registrationRepo) Get(ctx context.Context, id string) (*models.ReviewRequest, error) {
	var out *models.ReviewRequest
	err := r.v.read(ctx, func(d *dataset) error {
		rec, ok := d.registrations[id]
		if !ok {
			return repository.ErrNotFound
		}
		out = rec.Clone()
		return nil
	})
	return out, err
}

func (r registrationRepo) List(ctx context.Context, kind models.ReviewKind) ([]models.ReviewRequest, error) {
	return r.filter(ctx, func(rec *models.ReviewRequest) bool {
		return kind == "" || rec.Kind == kind
	})
}

func (r registrationRepo) ListByIdentity(ctx context.Context, identity string) ([]models.ReviewRequest, error) {
	return r.filter(ctx, func(rec *models.ReviewRequest) bool {
		return strings.EqualFold(rec.Identity, identity)
	})
}

func (r registrationRepo) filter(ctx context.Context, keep func(*models.ReviewRequest) bool) ([]models.ReviewRequest, error) {
	var out []models.ReviewRequest
	err := r.v.read(ctx, func(d *dataset) error {
		for _, rec := range d.registrations {
			if keep(rec) {
				out = append(out, *rec.Clone())
			}
		}
		sort.Slice(out, func(i, j int) bool { return out[i].RequestedAt.Before(out[j].RequestedAt) })
		return nil
	})
	return out, err
}

func (r registrationRepo) Create(ctx context.Context, request *models.ReviewRequest) error {
	return r.v.write(ctx, func(d *dataset) error {
		if request.ID == "" {
			request.ID = uuid.NewString()
		}
		if _, exists := d.registrations[request.ID]; exists {
			return repository.ErrDuplicateKey
		}
		d.registrations[request.ID] = request.Clone()
		return nil
	})
}

func (r registrationRepo) Delete(ctx context.Context, id string) error {
	return r.v.write(ctx, func(d *dataset) error {
		if _, ok := d.registrations[id]; !ok {
			return repository.ErrNotFound
		}
		delete(d.registrations, id)
		return nil
	})
}

type feedbackRepo struct{ v *view }

func (r feedbackRepo) Get(ctx context.Context, identity string) (*models.Feedback, error) {
	var out *models.Feedback
	err := r.v.read(ctx, func(d *dataset) error {
		rec, ok := d.feedback[strings.ToLower(identity)]
		if !ok {
			return repository.ErrNotFound
		}
		out = &rec
		return nil
	})
	return out, err
}

func (r feedbackRepo) Put(ctx context.Context, feedback *models.Feedback) error {
	return r.v.write(ctx, func(d *dataset) error {
		d.feedback[strings.ToLower(feedback.Identity)] = *feedback
		return nil
	})
}

type preferenceRepo struct{ v *view }

func (r preferenceRepo) Get(ctx context.Context, userID string) (*models.Preferences, error) {
	var out *models.Preferences
	err := r.v.read(ctx, func(d *dataset) error {
		rec, ok := d.preferences[userID]
		if !ok {
			return repository.ErrNotFound
		}
		out = &rec
		return nil
	})
	return out, err
}

func (r preferenceRepo) Put(ctx context.Context, prefs *models.Preferences) error {
	return r.v.write(ctx, func(d *dataset) error {
		d.preferences[prefs.UserID] = *prefs
		return nil
	})
}

type auditRepo struct{ v *view }

func (r auditRepo) Create(ctx context.Context, log *models.AuditLog) error {
	return r.v.write(ctx, func(d *dataset) error {
		if log.ID == "" {
			log.ID = uuid.NewString()
		}
		if log.CreatedAt.IsZero() {
			log.CreatedAt = time.Now().UTC()
		}
		d.audit = append(d.audit, *log)
		return nil
	})
}

func (r auditRepo) List(ctx context.Context, limit int) ([]models.AuditLog, error) {
	var out []models.AuditLog
	err := r.v.read(ctx, func(d *dataset) error {
		n := len(d.audit)
		start := 0
		if limit > 0 && n > limit {
			start = n - limit
		}
		for i := n - 1; i >= start; i-- {
			out = append(out, d.audit[i])
		}
		return nil
	})
	return out, err
}

func paginate[T any](items []T, page, pageSize int) []T {
	if pageSize <= 0 {
		return items
	}
	if page < 1 {
		page = 1
	}
	start := (page - 1) * pageSize
	if start >= len(items) {
		return []T{}
	}
	end := start + pageSize
	if end > len(items) {
		end = len(items)
	}
	return items[start:end]
}

// naturalLess orders ids like AMB-2 before AMB-10.
func naturalLess(a, b string) bool {
	if len(a) != len(b) {
		return len(a) < len(b)
	}
	return a < b
}

var _ repository.Store = (*Store)(nil)
var _ repository.Store = (*view)(nil)
