package realtime

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/isagip/barangay-dashboard-api/internal/models"
)

func receive(t *testing.T, ch <-chan models.ChangeEvent) models.ChangeEvent {
	t.Helper()
	select {
	case event, ok := <-ch:
		require.True(t, ok, "channel closed")
		return event
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for change event")
	}
	return models.ChangeEvent{}
}

func TestMemoryBusDeliversPerCollection(t *testing.T) {
	bus := NewMemoryBus(nil)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	reports, err := bus.Subscribe(ctx, models.CollectionReports)
	require.NoError(t, err)
	ambulances, err := bus.Subscribe(ctx, models.CollectionAmbulances)
	require.NoError(t, err)

	require.NoError(t, bus.Publish(ctx, NewChangeEvent(models.CollectionReports, "REP-1", models.OpCreate, map[string]string{"status": "Pending"})))

	event := receive(t, reports)
	assert.Equal(t, "REP-1", event.ID)
	assert.JSONEq(t, `{"status":"Pending"}`, string(event.Payload))

	select {
	case <-ambulances:
		t.Fatal("ambulance subscriber should not receive report events")
	default:
	}
}

func TestMemoryBusUnsubscribesOnCancel(t *testing.T) {
	bus := NewMemoryBus(nil)
	ctx, cancel := context.WithCancel(context.Background())
	ch, err := bus.Subscribe(ctx, models.CollectionReports)
	require.NoError(t, err)
	assert.Equal(t, 1, bus.Subscribers(models.CollectionReports))

	cancel()
	select {
	case _, ok := <-ch:
		assert.False(t, ok)
	case <-time.After(2 * time.Second):
		t.Fatal("channel not closed after cancel")
	}
	assert.Equal(t, 0, bus.Subscribers(models.CollectionReports))
}

func TestMemoryBusClose(t *testing.T) {
	bus := NewMemoryBus(nil)
	ctx := context.Background()
	ch, err := bus.Subscribe(ctx, models.CollectionReports)
	require.NoError(t, err)

	require.NoError(t, bus.Close())
	_, ok := <-ch
	assert.False(t, ok)
	assert.ErrorIs(t, bus.Publish(ctx, NewChangeEvent(models.CollectionReports, "REP-1", models.OpUpdate, nil)), ErrClosed)
	_, err = bus.Subscribe(ctx, models.CollectionReports)
	assert.ErrorIs(t, err, ErrClosed)
}

func TestMemoryBusDropsForSlowSubscriber(t *testing.T) {
	bus := NewMemoryBus(nil)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	ch, err := bus.Subscribe(ctx, models.CollectionReports)
	require.NoError(t, err)

	for i := 0; i < subscriberBuffer+5; i++ {
		require.NoError(t, bus.Publish(ctx, NewChangeEvent(models.CollectionReports, "REP-1", models.OpUpdate, nil)))
	}
	assert.Len(t, ch, subscriberBuffer)
}

func TestRedisBusRoundTrip(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	bus := NewRedisBus(client, "isagip:changes:", nil)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	ch, err := bus.Subscribe(ctx, models.CollectionAmbulances)
	require.NoError(t, err)

	require.NoError(t, bus.Publish(ctx, NewChangeEvent(models.CollectionAmbulances, "AMB-2", models.OpUpdate, nil)))

	event := receive(t, ch)
	assert.Equal(t, models.CollectionAmbulances, event.Collection)
	assert.Equal(t, "AMB-2", event.ID)
	assert.Equal(t, models.OpUpdate, event.Op)
	assert.NoError(t, bus.Close())
}

func TestRedisBusNilClient(t *testing.T) {
	bus := NewRedisBus(nil, "x:", nil)
	assert.ErrorIs(t, bus.Publish(context.Background(), models.ChangeEvent{}), ErrClosed)
	_, err := bus.Subscribe(context.Background(), "reports")
	assert.ErrorIs(t, err, ErrClosed)
}
