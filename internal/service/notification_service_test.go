package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/isagip/barangay-dashboard-api/internal/models"
)

type recordingSink struct {
	mu   sync.Mutex
	keys []string
	err  error
}

func (s *recordingSink) Publish(ctx context.Context, routingKey string, message interface{}) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	s.keys = append(s.keys, routingKey)
	return nil
}

func (s *recordingSink) routingKeys() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.keys...)
}

func sampleReport(id string, kind models.IncidentType) *models.Report {
	return &models.Report{
		ID:          id,
		Type:        kind,
		Description: "Smoke from a kitchen",
		Street:      "Block 3, Lot 5",
		ReportedBy:  "Alice Johnson",
		Status:      models.StatusPending,
		CreatedAt:   time.Date(2025, 9, 10, 21, 0, 0, 0, time.UTC),
	}
}

func TestNotifyInlineDelivery(t *testing.T) {
	bus := &recordingBus{}
	sink := &recordingSink{}
	svc := NewNotificationService(bus, sink, nil, zap.NewNop(), NotificationConfig{})

	require.NoError(t, svc.NotifyNewReport(context.Background(), sampleReport("REP-1", models.IncidentFire)))
	require.NoError(t, svc.NotifyNewReport(context.Background(), sampleReport("REP-1", models.IncidentFire)))

	recent := svc.Recent()
	require.Len(t, recent, 1)
	assert.Equal(t, "NTF-REP-1", recent[0].ID)
	assert.Equal(t, "Block 3, Lot 5", recent[0].Street)
	assert.Equal(t, []string{"fire", "fire"}, sink.routingKeys())
	assert.Contains(t, bus.collections(), "notifications:create")
}

func TestRecentNewestFirstAndBounded(t *testing.T) {
	svc := NewNotificationService(nil, nil, nil, zap.NewNop(), NotificationConfig{Recent: 3})
	ctx := context.Background()
	for i := 1; i <= 5; i++ {
		require.NoError(t, svc.NotifyNewReport(ctx, sampleReport(fmt.Sprintf("REP-%d", i), models.IncidentMedical)))
	}

	recent := svc.Recent()
	require.Len(t, recent, 3)
	assert.Equal(t, "NTF-REP-5", recent[0].ID)
	assert.Equal(t, "NTF-REP-3", recent[2].ID)
}

func TestNotifyThroughQueue(t *testing.T) {
	sink := &recordingSink{}
	metrics := NewMetricsService()
	svc := NewNotificationService(nil, sink, metrics, zap.NewNop(), NotificationConfig{})
	q := svc.NewQueue(NotificationConfig{Workers: 2, Retries: 1, RetryDelay: 10 * time.Millisecond})
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	q.Start(ctx)
	defer q.Stop()

	require.NoError(t, svc.NotifyNewReport(ctx, sampleReport("REP-9", models.IncidentPolice)))
	assert.Eventually(t, func() bool { return len(svc.Recent()) == 1 }, time.Second, 10*time.Millisecond)
	assert.Equal(t, []string{"police"}, sink.routingKeys())
	assert.Equal(t, float64(1), testutil.ToFloat64(metrics.notifications.WithLabelValues("sent")))
}

func TestNotifyDeadLetter(t *testing.T) {
	sink := &recordingSink{err: errors.New("broker down")}
	metrics := NewMetricsService()
	svc := NewNotificationService(nil, sink, metrics, zap.NewNop(), NotificationConfig{})
	q := svc.NewQueue(NotificationConfig{Workers: 1, Retries: 0, RetryDelay: time.Millisecond})
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	q.Start(ctx)
	defer q.Stop()

	require.NoError(t, svc.NotifyNewReport(ctx, sampleReport("REP-10", models.IncidentMedical)))
	assert.Eventually(t, func() bool {
		return testutil.ToFloat64(metrics.notifications.WithLabelValues("failed")) == 1
	}, time.Second, 10*time.Millisecond)
	assert.Empty(t, svc.Recent())
}
