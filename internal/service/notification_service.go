package service

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/isagip/barangay-dashboard-api/internal/models"
	"github.com/isagip/barangay-dashboard-api/pkg/jobs"
)

const notificationJobType = "report.created"

type notificationQueue interface {
	Enqueue(job jobs.Job) error
}

// NotificationSink receives every delivered notification, keyed by routing key.
type NotificationSink interface {
	Publish(ctx context.Context, routingKey string, message interface{}) error
}

// NotificationConfig sizes the notification pipeline.
type NotificationConfig struct {
	Workers    int
	Retries    int
	RetryDelay time.Duration
	Recent     int
}

// NotificationService fans new-report alerts out to staff sessions.
type NotificationService struct {
	bus     changePublisher
	sink    NotificationSink
	metrics *MetricsService
	logger  *zap.Logger
	queue   notificationQueue
	limit   int

	mu     sync.RWMutex
	recent []models.Notification
}

// NewNotificationService constructs the service. A nil sink keeps
// notifications in-process.
func NewNotificationService(bus changePublisher, sink NotificationSink, metrics *MetricsService, logger *zap.Logger, cfg NotificationConfig) *NotificationService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.Recent <= 0 {
		cfg.Recent = 50
	}
	return &NotificationService{bus: bus, sink: sink, metrics: metrics, logger: logger, limit: cfg.Recent}
}

// NewQueue builds the worker queue that delivers notifications.
func (s *NotificationService) NewQueue(cfg NotificationConfig) *jobs.Queue {
	q := jobs.NewQueue("notifications", s.Handle, jobs.QueueConfig{
		Workers:    cfg.Workers,
		BufferSize: 64,
		MaxRetries: cfg.Retries,
		RetryDelay: cfg.RetryDelay,
		Logger:     s.logger,
		DeadLetter: func(job jobs.Job, err error) {
			s.metrics.RecordNotification(false)
			s.logger.Error("notification dropped", zap.String("job_id", job.ID), zap.Error(err))
		},
	})
	s.queue = q
	return q
}

// UseQueue sets the queue used by NotifyNewReport.
func (s *NotificationService) UseQueue(q notificationQueue) {
	s.queue = q
}

// NotifyNewReport queues a notification. Without a queue it is delivered inline.
func (s *NotificationService) NotifyNewReport(ctx context.Context, report *models.Report) error {
	note := models.Notification{
		ID:          "NTF-" + report.ID,
		ReportID:    report.ID,
		Type:        report.Type,
		Description: report.Description,
		Street:      report.Location(),
		ReportedBy:  report.ReportedBy,
		CreatedAt:   report.CreatedAt,
	}
	job := jobs.Job{ID: note.ID, Type: notificationJobType, Payload: note}
	if s.queue == nil {
		return s.Handle(ctx, job)
	}
	if err := s.queue.Enqueue(job); err != nil {
		return fmt.Errorf("enqueue notification: %w", err)
	}
	return nil
}

// Handle delivers one queued notification.
func (s *NotificationService) Handle(ctx context.Context, job jobs.Job) error {
	note, ok := job.Payload.(models.Notification)
	if !ok {
		return fmt.Errorf("unexpected notification payload %T", job.Payload)
	}
	if s.sink != nil {
		if err := s.sink.Publish(ctx, strings.ToLower(string(note.Type)), note); err != nil {
			return err
		}
	}
	s.remember(note)
	publishChange(ctx, s.bus, s.logger, models.CollectionNotifications, note.ID, models.OpCreate, note)
	s.metrics.RecordNotification(true)
	s.logger.Info("notification delivered", zap.String("report_id", note.ReportID), zap.String("type", string(note.Type)))
	return nil
}

// Recent returns the newest notifications first.
func (s *NotificationService) Recent() []models.Notification {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]models.Notification, len(s.recent))
	for i := range s.recent {
		out[i] = s.recent[len(s.recent)-1-i]
	}
	return out
}

func (s *NotificationService) remember(note models.Notification) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.recent {
		if existing.ID == note.ID {
			return
		}
	}
	s.recent = append(s.recent, note)
	if over := len(s.recent) - s.limit; over > 0 {
		s.recent = append([]models.Notification(nil), s.recent[over:]...)
	}
}
