package service

import (
	"context"
	"math/rand"
	"time"

	"go.uber.org/zap"

	"github.com/isagip/barangay-dashboard-api/internal/dto"
	"github.com/isagip/barangay-dashboard-api/internal/models"
)

const simulatorActor = "Simulator"

// SampleIncidents are the demo reports the simulator draws from.
var SampleIncidents = []dto.CreateReportRequest{
	{Type: models.IncidentFire, Description: "Kitchen fire, smoke visible", Street: "Block 3, Lot 5", ReportedBy: "Alice Johnson"},
	{Type: models.IncidentMedical, Description: "Medical emergency - chest pain", Street: "Block 1, Lot 12", ReportedBy: "Bob Smith"},
	{Type: models.IncidentPolice, Description: "Suspicious activity reported", Street: "Block 2, Lot 8", ReportedBy: "Carol Davis"},
	{Type: models.IncidentMedical, Description: "Child with high fever", Street: "Block 4, Lot 3", ReportedBy: "David Wilson"},
}

type reportCreator interface {
	Create(ctx context.Context, req dto.CreateReportRequest, actor string) (*models.Report, error)
}

// SimulatorConfig paces the demo generator.
type SimulatorConfig struct {
	MinInterval time.Duration
	MaxInterval time.Duration
	StartDelay  time.Duration
}

// ReportSimulator files a random sample incident at random intervals.
type ReportSimulator struct {
	reports reportCreator
	cfg     SimulatorConfig
	logger  *zap.Logger
	rnd     *rand.Rand
}

// NewReportSimulator constructs a simulator.
func NewReportSimulator(reports reportCreator, cfg SimulatorConfig, logger *zap.Logger) *ReportSimulator {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.MinInterval <= 0 {
		cfg.MinInterval = 30 * time.Second
	}
	if cfg.MaxInterval < cfg.MinInterval {
		cfg.MaxInterval = cfg.MinInterval
	}
	if cfg.StartDelay < 0 {
		cfg.StartDelay = 0
	}
	return &ReportSimulator{
		reports: reports,
		cfg:     cfg,
		logger:  logger,
		rnd:     rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

// Run generates reports until ctx is cancelled.
func (s *ReportSimulator) Run(ctx context.Context) {
	timer := time.NewTimer(s.cfg.StartDelay)
	defer timer.Stop()
	s.logger.Info("report simulator started",
		zap.Duration("start_delay", s.cfg.StartDelay),
		zap.Duration("min_interval", s.cfg.MinInterval),
		zap.Duration("max_interval", s.cfg.MaxInterval))
	for {
		select {
		case <-ctx.Done():
			s.logger.Info("report simulator stopped")
			return
		case <-timer.C:
			if _, err := s.Tick(ctx); err != nil {
				s.logger.Warn("simulated report failed", zap.Error(err))
			}
			timer.Reset(s.nextDelay())
		}
	}
}

// Tick files one sample incident.
func (s *ReportSimulator) Tick(ctx context.Context) (*models.Report, error) {
	req := SampleIncidents[s.rnd.Intn(len(SampleIncidents))]
	return s.reports.Create(ctx, req, simulatorActor)
}

func (s *ReportSimulator) nextDelay() time.Duration {
	spread := s.cfg.MaxInterval - s.cfg.MinInterval
	if spread <= 0 {
		return s.cfg.MinInterval
	}
	return s.cfg.MinInterval + time.Duration(s.rnd.Int63n(int64(spread)))
}
