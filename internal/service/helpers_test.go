package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/isagip/barangay-dashboard-api/internal/models"
	"github.com/isagip/barangay-dashboard-api/internal/repository"
	"github.com/isagip/barangay-dashboard-api/internal/repository/memory"
	appErrors "github.com/isagip/barangay-dashboard-api/pkg/errors"
)

type recordingBus struct {
	mu     sync.Mutex
	events []models.ChangeEvent
}

func (b *recordingBus) Publish(ctx context.Context, event models.ChangeEvent) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.events = append(b.events, event)
	return nil
}

func (b *recordingBus) collections() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]string, 0, len(b.events))
	for _, e := range b.events {
		out = append(out, e.Collection+":"+e.Op)
	}
	return out
}

func fixedClock(t time.Time) func() time.Time {
	return func() time.Time { return t }
}

func seedAmbulance(t *testing.T, store repository.Store, id string, status models.AmbulanceStatus) {
	t.Helper()
	require.NoError(t, store.Ambulances().Create(context.Background(), &models.Ambulance{ID: id, Name: "Ambulance " + id, Status: status}))
}

func assertAppError(t *testing.T, err error, want *appErrors.Error) {
	t.Helper()
	require.Error(t, err)
	assert.True(t, errors.Is(err, want), "expected %s, got %v", want.Code, err)
}

func TestStoreErrorMapping(t *testing.T) {
	assertAppError(t, storeError(repository.ErrNotFound, "report"), appErrors.ErrNotFound)
	assertAppError(t, storeError(repository.ErrVersionConflict, "report"), appErrors.ErrConflict)
	assertAppError(t, storeError(repository.ErrDuplicateKey, "report"), appErrors.ErrDuplicate)
	assertAppError(t, storeError(repository.ErrUnavailable, "report"), appErrors.ErrBackendUnavailable)
	assertAppError(t, storeError(context.DeadlineExceeded, "report"), appErrors.ErrBackendUnavailable)
	assertAppError(t, storeError(errors.New("boom"), "report"), appErrors.ErrInternal)
	assert.NoError(t, storeError(nil, "report"))

	passthrough := appErrors.Clone(appErrors.ErrReportResolved, "done")
	assert.Same(t, passthrough, storeError(passthrough, "report"))
}

func TestIDGeneratorMonotonic(t *testing.T) {
	gen := NewIDGenerator()
	gen.now = fixedClock(time.UnixMilli(1700000000000))

	first := gen.Next()
	second := gen.Next()
	assert.Equal(t, "REP-1700000000000", first)
	assert.Equal(t, "REP-1700000000001", second)
}

func TestValidContact(t *testing.T) {
	assert.True(t, ValidContact("0912345678901"))
	assert.True(t, ValidContact("0912-345-678901"))
	assert.False(t, ValidContact("1234567890"))
	assert.False(t, ValidContact("09123456789012"))
}

func newMemoryStore() *memory.Store {
	return memory.NewStore()
}
