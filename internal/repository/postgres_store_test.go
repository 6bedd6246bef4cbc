package repository

import (
	"context"
	"errors"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/isagip/barangay-dashboard-api/internal/models"
)

func newMock(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock, func()) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	sqlxdb := sqlx.NewDb(db, "sqlmock")
	return sqlxdb, mock, func() {
		db.Close()
	}
}

var reportColumnNames = []string{"id", "type", "description", "status", "street", "landmark", "coordinates", "photo_ref", "reported_by", "severity", "assigned_responder", "assigned_vehicle_id", "closed_by", "closed_at", "created_at", "last_updated_at", "last_updated_by", "notes", "attribution", "history", "version"}

func TestReportRepositoryGet(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewReportRepository(db)

	now := time.Now().UTC()
	rows := sqlmock.NewRows(reportColumnNames).AddRow(
		"REP-1", "Fire", "Kitchen fire", "Ongoing", "Block 3, Lot 5", "Beside Barangay Hall",
		[]byte(`{"lat":14.748,"lng":121.02}`), "", "Alice", "High", "Team A", "AMB-1", "", nil,
		now, now, "staff", "", []byte(`{"severity":{"by":"staff","at":"2024-03-20T10:16:00Z"}}`),
		[]byte(`[{"timestamp":"2024-03-20T10:12:00Z","actor":"Alice","action":"Created","details":"Fire observed."}]`), 3,
	)
	mock.ExpectQuery(regexp.QuoteMeta("SELECT " + reportColumns + " FROM reports WHERE id = $1")).
		WithArgs("REP-1").
		WillReturnRows(rows)

	report, err := repo.Get(context.Background(), "REP-1")
	require.NoError(t, err)
	assert.Equal(t, models.StatusOngoing, report.Status)
	require.NotNil(t, report.Coordinates)
	assert.InDelta(t, 14.748, report.Coordinates.Lat, 0.0001)
	assert.Equal(t, "staff", report.Attribution["severity"].By)
	require.Len(t, report.History, 1)
	assert.Equal(t, models.ActionCreated, report.History[0].Action)
	assert.Equal(t, int64(3), report.Version)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestReportRepositoryGetNotFound(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewReportRepository(db)

	mock.ExpectQuery("FROM reports WHERE id").WithArgs("REP-404").WillReturnRows(sqlmock.NewRows(reportColumnNames))

	_, err := repo.Get(context.Background(), "REP-404")
	assert.ErrorIs(t, err, ErrNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestReportRepositoryUpdateVersionConflict(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewReportRepository(db)

	mock.ExpectExec(regexp.QuoteMeta("UPDATE reports SET")).WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery(regexp.QuoteMeta("SELECT EXISTS(SELECT 1 FROM reports WHERE id = $1)")).
		WithArgs("REP-1").
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(true))

	report := &models.Report{ID: "REP-1", Status: models.StatusResolved, Version: 2}
	err := repo.Update(context.Background(), report)
	assert.ErrorIs(t, err, ErrVersionConflict)
	assert.Equal(t, int64(2), report.Version)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestReportRepositoryUpdateBumpsVersion(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewReportRepository(db)

	mock.ExpectExec(regexp.QuoteMeta("UPDATE reports SET")).WillReturnResult(sqlmock.NewResult(0, 1))

	report := &models.Report{ID: "REP-1", Status: models.StatusRelayed, Version: 1}
	require.NoError(t, repo.Update(context.Background(), report))
	assert.Equal(t, int64(2), report.Version)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestReportRepositoryListFilters(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewReportRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT " + reportColumns + " FROM reports WHERE 1=1 AND status = ANY($1) AND type = $2 ORDER BY created_at DESC, id DESC LIMIT 10 OFFSET 10")).
		WithArgs(pq.Array([]string{"Pending", "Relayed"}), "Medical").
		WillReturnRows(sqlmock.NewRows(reportColumnNames))
	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) FROM reports WHERE 1=1 AND status = ANY($1) AND type = $2")).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(12))

	items, total, err := repo.List(context.Background(), models.ReportFilter{
		Status:   []models.IncidentStatus{models.StatusPending, models.StatusRelayed},
		Type:     models.IncidentMedical,
		Page:     2,
		PageSize: 10,
	})
	require.NoError(t, err)
	assert.Empty(t, items)
	assert.Equal(t, 12, total)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAccountRepositoryGetByUsername(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewAccountRepository(db)

	now := time.Now()
	rows := sqlmock.NewRows([]string{"id", "username", "email", "password_hash", "role", "active", "profile", "created_at", "updated_at", "version"}).
		AddRow("u1", "staff", "staff@isagip.local", "hash", "barangay_staff", true, []byte(`{"first_name":"Barangay","last_name":"Staff"}`), now, now, 1)
	mock.ExpectQuery(regexp.QuoteMeta("SELECT " + accountColumns + " FROM accounts WHERE LOWER(username) = LOWER($1) LIMIT 1")).
		WithArgs("STAFF").
		WillReturnRows(rows)

	account, err := repo.GetByUsername(context.Background(), " STAFF ")
	require.NoError(t, err)
	assert.Equal(t, "Barangay Staff", account.DisplayName())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAccountRepositoryCreateDuplicate(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewAccountRepository(db)

	mock.ExpectExec("INSERT INTO accounts").WillReturnError(&pq.Error{Code: "23505", Constraint: "ux_accounts_username"})

	err := repo.Create(context.Background(), &models.Account{Username: "staff"})
	assert.ErrorIs(t, err, ErrDuplicateKey)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStoreWithinTxCommitsAndRollsBack(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	store := NewPostgresStore(db)

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("UPDATE ambulances SET")).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	err := store.WithinTx(context.Background(), func(tx Store) error {
		return tx.Ambulances().Update(context.Background(), &models.Ambulance{ID: "AMB-1", Status: models.AmbulanceAvailable, Version: 1})
	})
	require.NoError(t, err)

	mock.ExpectBegin()
	mock.ExpectRollback()
	boom := errors.New("boom")
	err = store.WithinTx(context.Background(), func(tx Store) error { return boom })
	assert.ErrorIs(t, err, boom)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRegistrationRepositoryDeleteMissing(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewRegistrationRepository(db)

	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM review_requests WHERE id = $1")).
		WithArgs("req-1").
		WillReturnResult(sqlmock.NewResult(0, 0))

	assert.ErrorIs(t, repo.Delete(context.Background(), "req-1"), ErrNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRegistrationRepositoryDocumentsRoundTrip(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewRegistrationRepository(db)
	now := time.Now().UTC()

	req := &models.ReviewRequest{
		ID:          "req-2",
		Kind:        models.ReviewRegistration,
		Identity:    "lito",
		Documents:   map[string]string{models.DocumentValidID: "valid-id-token"},
		RequestedAt: now,
		Status:      models.ReviewPending,
	}
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO review_requests (" + reviewColumns + ")")).
		WithArgs("req-2", "registration", "lito", "", []byte(`{}`), []byte(`[]`), []byte(`{"validId":"valid-id-token"}`),
			"", now, "pending", "", nil, "").
		WillReturnResult(sqlmock.NewResult(0, 1))
	require.NoError(t, repo.Create(context.Background(), req))

	columns := []string{"id", "kind", "identity", "email", "changes", "proofs", "documents", "password_hash", "requested_at", "status", "reviewer", "reviewed_at", "reason"}
	mock.ExpectQuery(regexp.QuoteMeta("SELECT " + reviewColumns + " FROM review_requests WHERE id = $1")).
		WithArgs("req-2").
		WillReturnRows(sqlmock.NewRows(columns).AddRow(
			"req-2", "registration", "lito", "", []byte(`{}`), []byte(`[]`), []byte(`{"validId":"valid-id-token"}`),
			"", now, "pending", "", nil, "",
		))
	got, err := repo.Get(context.Background(), "req-2")
	require.NoError(t, err)
	assert.Equal(t, "valid-id-token", got.Documents[models.DocumentValidID])
	assert.Empty(t, got.Documents[models.DocumentPhoto])
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestMapErrorUnavailable(t *testing.T) {
	err := mapError(&pq.Error{Code: "08006", Message: "connection failure"})
	assert.ErrorIs(t, err, ErrUnavailable)
}
