package service

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/isagip/barangay-dashboard-api/internal/models"
	"github.com/isagip/barangay-dashboard-api/internal/repository"
	appErrors "github.com/isagip/barangay-dashboard-api/pkg/errors"
)

type recentNotifications interface {
	Recent() []models.Notification
}

// FeedSnapshot is the full record set of a collection after a change.
type FeedSnapshot struct {
	Collection  string              `json:"collection"`
	Items       interface{}         `json:"items"`
	Total       int                 `json:"total"`
	Cause       *models.ChangeEvent `json:"cause,omitempty"`
	GeneratedAt time.Time           `json:"generated_at"`
}

// FeedService turns change events into fresh record-set snapshots.
type FeedService struct {
	store         repository.Store
	bus           changeSubscriber
	notifications recentNotifications
	logger        *zap.Logger
}

// NewFeedService constructs the service.
func NewFeedService(store repository.Store, bus changeSubscriber, notifications recentNotifications, logger *zap.Logger) *FeedService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &FeedService{store: store, bus: bus, notifications: notifications, logger: logger}
}

// Collections lists the collections that can be subscribed to.
func (s *FeedService) Collections() []string {
	return []string{
		models.CollectionReports,
		models.CollectionAmbulances,
		models.CollectionResidents,
		models.CollectionRegistrations,
		models.CollectionAccounts,
		models.CollectionNotifications,
	}
}

// Subscribe returns a channel that yields the current snapshot immediately and
// a fresh one after every change to the collection. Snapshots are coalesced
// for slow readers so only the newest pending one is kept. The channel closes
// when ctx ends.
func (s *FeedService) Subscribe(ctx context.Context, collection string, filter models.ReportFilter) (<-chan FeedSnapshot, error) {
	if !s.known(collection) {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "unknown collection "+collection)
	}
	first, err := s.Snapshot(ctx, collection, filter)
	if err != nil {
		return nil, err
	}
	events, err := s.bus.Subscribe(ctx, collection)
	if err != nil {
		return nil, appErrors.Internal(err, "failed to subscribe to changes")
	}

	out := make(chan FeedSnapshot, 1)
	out <- *first
	go func() {
		defer close(out)
		for {
			select {
			case <-ctx.Done():
				return
			case event, ok := <-events:
				if !ok {
					return
				}
				snap, err := s.Snapshot(ctx, collection, filter)
				if err != nil {
					s.logger.Warn("feed snapshot failed", zap.String("collection", collection), zap.Error(err))
					continue
				}
				cause := event
				snap.Cause = &cause
				select {
				case <-out:
				default:
				}
				out <- *snap
			}
		}
	}()
	return out, nil
}

// Snapshot loads the current record set of a collection.
func (s *FeedService) Snapshot(ctx context.Context, collection string, filter models.ReportFilter) (*FeedSnapshot, error) {
	snap := &FeedSnapshot{Collection: collection, GeneratedAt: time.Now().UTC()}
	switch collection {
	case models.CollectionReports:
		items, total, err := s.store.Reports().List(ctx, filter)
		if err != nil {
			return nil, storeError(err, "reports")
		}
		snap.Items, snap.Total = items, total
	case models.CollectionAmbulances:
		items, err := s.store.Ambulances().List(ctx)
		if err != nil {
			return nil, storeError(err, "ambulances")
		}
		snap.Items, snap.Total = items, len(items)
	case models.CollectionResidents:
		items, err := s.store.Residents().List(ctx)
		if err != nil {
			return nil, storeError(err, "residents")
		}
		snap.Items, snap.Total = items, len(items)
	case models.CollectionRegistrations:
		items, err := s.store.Registrations().List(ctx, "")
		if err != nil {
			return nil, storeError(err, "registrations")
		}
		snap.Items, snap.Total = items, len(items)
	case models.CollectionAccounts:
		items, err := s.store.Accounts().List(ctx)
		if err != nil {
			return nil, storeError(err, "accounts")
		}
		snap.Items, snap.Total = items, len(items)
	case models.CollectionNotifications:
		var items []models.Notification
		if s.notifications != nil {
			items = s.notifications.Recent()
		}
		snap.Items, snap.Total = items, len(items)
	default:
		return nil, appErrors.Clone(appErrors.ErrNotFound, "unknown collection "+collection)
	}
	return snap, nil
}

func (s *FeedService) known(collection string) bool {
	for _, c := range s.Collections() {
		if c == collection {
			return true
		}
	}
	return false
}
