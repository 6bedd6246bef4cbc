package service

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/isagip/barangay-dashboard-api/internal/dto"
	"github.com/isagip/barangay-dashboard-api/internal/models"
	"github.com/isagip/barangay-dashboard-api/internal/repository"
	appErrors "github.com/isagip/barangay-dashboard-api/pkg/errors"
	"github.com/isagip/barangay-dashboard-api/pkg/export"
)

const (
	dashboardTimestampLayout = "2006-01-02 03:04 PM"
	receivedTimestampLayout  = "2006-01-02 03:04:05 PM"
	receivedActions          = "Ambulance/Responded/View/View History"
	csvContentType           = "text/csv; charset=utf-8"
	pdfContentType           = "application/pdf"
)

// DashboardColumns is the header of the dashboard CSV.
var DashboardColumns = []string{"Report ID", "Type", "Description", "Status", "Street", "Landmark", "Location", "Reported By", "Timestamp"}

// ReceivedColumns is the header of the received-reports CSV.
var ReceivedColumns = []string{"Description", "Status", "Street", "Landmark", "Photo", "Actions", "Timestamp", "Response Time", "Reported By", "Closed By", "Last Updated By", "Last Updated At", "Notes"}

type csvRenderer interface {
	Render(data export.Dataset) ([]byte, error)
}

type pdfRenderer interface {
	Render(data export.Dataset, title string, summary ...export.SummaryLine) ([]byte, error)
}

// ExportService renders report downloads.
type ExportService struct {
	store  repository.Store
	csv    csvRenderer
	pdf    pdfRenderer
	logger *zap.Logger
	loc    *time.Location
	now    func() time.Time
}

// NewExportService constructs an ExportService. Timestamps are rendered in loc,
// or local time when loc is nil.
func NewExportService(store repository.Store, csv csvRenderer, pdf pdfRenderer, loc *time.Location, logger *zap.Logger) *ExportService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if csv == nil {
		csv = export.NewCSVExporter()
	}
	if pdf == nil {
		pdf = export.NewPDFExporter()
	}
	if loc == nil {
		loc = time.Local
	}
	return &ExportService{store: store, csv: csv, pdf: pdf, logger: logger, loc: loc, now: time.Now}
}

// period is a resolved dashboard export window.
type period struct {
	kind  string
	year  int
	month time.Month
	label string
}

func (s *ExportService) resolvePeriod(q dto.DashboardExportQuery) (period, error) {
	now := s.now().In(s.loc)
	p := period{kind: strings.ToLower(strings.TrimSpace(q.Period)), year: q.Year, month: time.Month(q.Month)}
	if p.kind == "" {
		p.kind = "month"
	}
	if p.year == 0 {
		p.year = now.Year()
	}
	if q.Month == 0 {
		p.month = now.Month()
	}
	if p.month < time.January || p.month > time.December {
		return period{}, appErrors.WithField(appErrors.ErrValidation, "month", "month must be between 1 and 12")
	}
	switch p.kind {
	case "year":
		p.label = strconv.Itoa(p.year)
	case "month":
		p.label = fmt.Sprintf("%d-%02d", p.year, int(p.month))
	case "week":
		p.label = fmt.Sprintf("%d-Wk", p.year)
	default:
		return period{}, appErrors.WithField(appErrors.ErrValidation, "period", "period must be year, month or week")
	}
	return p, nil
}

// contains reports whether t falls in the window. A week is the days within
// seven of the 15th of the chosen month.
func (p period) contains(t time.Time) bool {
	if t.Year() != p.year {
		return false
	}
	switch p.kind {
	case "month":
		return t.Month() == p.month
	case "week":
		day := t.Day() - 15
		if day < 0 {
			day = -day
		}
		return t.Month() == p.month && day <= 7
	}
	return true
}

// DashboardCSV renders reports created in the selected period.
func (s *ExportService) DashboardCSV(ctx context.Context, q dto.DashboardExportQuery) (*dto.ExportFile, error) {
	p, err := s.resolvePeriod(q)
	if err != nil {
		return nil, err
	}
	reports, err := s.reports(ctx)
	if err != nil {
		return nil, err
	}
	data := export.Dataset{Headers: DashboardColumns}
	for i := range reports {
		r := &reports[i]
		created := r.CreatedAt.In(s.loc)
		if !p.contains(created) {
			continue
		}
		data.Rows = append(data.Rows, map[string]string{
			"Report ID":   r.ID,
			"Type":        string(r.Type),
			"Description": r.Description,
			"Status":      string(r.Status),
			"Street":      r.Street,
			"Landmark":    r.Landmark,
			"Location":    r.Coordinates.String(),
			"Reported By": r.ReportedBy,
			"Timestamp":   created.Format(dashboardTimestampLayout),
		})
	}
	body, err := s.csv.Render(data)
	if err != nil {
		return nil, appErrors.Internal(err, "failed to render csv")
	}
	s.logger.Info("dashboard csv exported", zap.String("period", p.label), zap.Int("rows", len(data.Rows)))
	return &dto.ExportFile{Filename: "iSagip-reports-" + p.label + ".csv", ContentType: csvContentType, Data: body}, nil
}

// ReceivedCSV renders the received-reports table matching filter.
func (s *ExportService) ReceivedCSV(ctx context.Context, filter models.ReportFilter) (*dto.ExportFile, error) {
	filter.Page, filter.PageSize = 0, 0
	reports, _, err := s.store.Reports().List(ctx, filter)
	if err != nil {
		return nil, storeError(err, "reports")
	}
	data := export.Dataset{Headers: ReceivedColumns}
	for i := range reports {
		r := &reports[i]
		photo := "No"
		if r.PhotoRef != "" {
			photo = "Yes"
		}
		updatedAt := ""
		if !r.LastUpdatedAt.IsZero() {
			updatedAt = r.LastUpdatedAt.In(s.loc).Format(receivedTimestampLayout)
		}
		data.Rows = append(data.Rows, map[string]string{
			"Description":     r.Description,
			"Status":          string(r.Status),
			"Street":          r.Street,
			"Landmark":        r.Landmark,
			"Photo":           photo,
			"Actions":         receivedActions,
			"Timestamp":       r.CreatedAt.In(s.loc).Format(receivedTimestampLayout),
			"Response Time":   r.ResponseTime(),
			"Reported By":     r.ReportedBy,
			"Closed By":       r.ClosedBy,
			"Last Updated By": r.LastUpdatedBy,
			"Last Updated At": updatedAt,
			"Notes":           r.Notes,
		})
	}
	body, err := s.csv.Render(data)
	if err != nil {
		return nil, appErrors.Internal(err, "failed to render csv")
	}
	return &dto.ExportFile{Filename: "received-reports.csv", ContentType: csvContentType, Data: body}, nil
}

// DashboardPDF renders the period's reports with a summary block.
func (s *ExportService) DashboardPDF(ctx context.Context, q dto.DashboardExportQuery) (*dto.ExportFile, error) {
	p, err := s.resolvePeriod(q)
	if err != nil {
		return nil, err
	}
	reports, err := s.reports(ctx)
	if err != nil {
		return nil, err
	}
	fleet, err := s.store.Ambulances().List(ctx)
	if err != nil {
		return nil, storeError(err, "ambulances")
	}

	inPeriod := make([]models.Report, 0, len(reports))
	data := export.Dataset{Headers: []string{"Report ID", "Type", "Status", "Street", "Reported By", "Timestamp"}}
	for i := range reports {
		r := reports[i]
		created := r.CreatedAt.In(s.loc)
		if !p.contains(created) {
			continue
		}
		inPeriod = append(inPeriod, r)
		data.Rows = append(data.Rows, map[string]string{
			"Report ID":   r.ID,
			"Type":        string(r.Type),
			"Status":      string(r.Status),
			"Street":      r.Street,
			"Reported By": r.ReportedBy,
			"Timestamp":   created.Format(dashboardTimestampLayout),
		})
	}
	summary := Summarize(inPeriod, fleet, s.now().UTC())
	lines := []export.SummaryLine{
		{Label: "Period", Value: p.label},
		{Label: "Total reports", Value: strconv.Itoa(summary.Total)},
		{Label: "Active", Value: strconv.Itoa(summary.Active)},
		{Label: "Responded", Value: strconv.Itoa(summary.Responded)},
		{Label: "Resolved", Value: strconv.Itoa(summary.Resolved)},
		{Label: "Average response (min)", Value: strconv.FormatFloat(summary.AverageResponseMins, 'f', 1, 64)},
		{Label: "Ambulances available", Value: strconv.Itoa(summary.Ambulances[models.AmbulanceAvailable])},
	}
	body, err := s.pdf.Render(data, "iSagip Reports "+p.label, lines...)
	if err != nil {
		return nil, appErrors.Internal(err, "failed to render pdf")
	}
	return &dto.ExportFile{Filename: "iSagip-dashboard-" + p.label + ".pdf", ContentType: pdfContentType, Data: body}, nil
}

func (s *ExportService) reports(ctx context.Context) ([]models.Report, error) {
	reports, _, err := s.store.Reports().List(ctx, models.ReportFilter{})
	if err != nil {
		return nil, storeError(err, "reports")
	}
	return reports, nil
}
