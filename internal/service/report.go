package service

import (
	"context"
	"errors"
	"fmt"
	"html"
	"log/slog"
	"strings"
	"time"

	"github.com/GideonLangenhoven/CKACashups/internal/aggregate"
	"github.com/GideonLangenhoven/CKACashups/internal/domain"
	"github.com/GideonLangenhoven/CKACashups/internal/notify"
	"github.com/GideonLangenhoven/CKACashups/internal/period"
	"github.com/GideonLangenhoven/CKACashups/internal/render"
	"github.com/GideonLangenhoven/CKACashups/internal/repo"
)

// ErrReportDelivery is the generic failure returned when a report could not be
// built or emailed. The cause is logged and alerted, not returned.
var ErrReportDelivery = errors.New("report could not be generated or delivered")

// Format is a report file format.
type Format string

const (
	FormatPDF  Format = "pdf"
	FormatXLSX Format = "xlsx"
)

// ParseFormat validates a format name. Empty means PDF.
func ParseFormat(s string) (Format, error) {
	switch Format(strings.ToLower(s)) {
	case "", FormatPDF:
		return FormatPDF, nil
	case FormatXLSX:
		return FormatXLSX, nil
	}
	return "", domain.Validationf("format must be pdf or xlsx, got %q", s)
}

// ReportRequest names a report period and output format.
type ReportRequest struct {
	Kind   period.Kind
	Params period.Params
	Format Format
}

// Document is a rendered file ready to download or attach.
type Document struct {
	Filename    string
	ContentType string
	Body        []byte
}

// ReportOptions configures a ReportService.
type ReportOptions struct {
	// Admins receive emailed reports.
	Admins []string
	// Timeout bounds a single build or email. Zero means no extra bound.
	Timeout time.Duration
}

// ReportService builds period reports and emails them.
type ReportService struct {
	trips   repo.TripRepo
	mailer  notify.Mailer
	alerter *notify.Alerter
	opts    ReportOptions
	now     func() time.Time
	logger  *slog.Logger
}

// NewReportService constructs a ReportService.
func NewReportService(trips repo.TripRepo, mailer notify.Mailer, alerter *notify.Alerter, opts ReportOptions, logger *slog.Logger) *ReportService {
	return &ReportService{trips: trips, mailer: mailer, alerter: alerter, opts: opts, now: time.Now, logger: logger}
}

var reportTitles = map[period.Kind]string{
	period.KindDaily:   "Daily Cash Ups Report",
	period.KindWeekly:  "Weekly Cash Ups Report",
	period.KindMonthly: "Monthly Cash Ups Report",
	period.KindYearly:  "Yearly Cash Ups Report",
	period.KindCustom:  "Custom Range Cash Ups Report",
}

// Build renders the report for req. Period errors are validation errors.
func (s *ReportService) Build(ctx context.Context, req ReportRequest) (Document, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	report, err := s.load(ctx, req.Kind, req.Params)
	if err != nil {
		return Document{}, fmt.Errorf("service.ReportService.Build: %w", err)
	}
	doc, err := renderReport(report, req.Format)
	if err != nil {
		return Document{}, fmt.Errorf("service.ReportService.Build: %w", err)
	}
	if err := ctx.Err(); err != nil {
		return Document{}, fmt.Errorf("service.ReportService.Build: %w", err)
	}
	s.logger.InfoContext(ctx, "report_generated",
		"kind", req.Kind, "label", report.Label, "format", req.Format, "trips", report.Summary.TotalTrips, "bytes", len(doc.Body))
	return doc, nil
}

// Email renders the report as both PDF and XLSX and sends them to the admins.
// An invalid period is returned as is; any later failure raises an alert and
// returns ErrReportDelivery.
func (s *ReportService) Email(ctx context.Context, req ReportRequest) error {
	r, err := period.Resolve(req.Kind, req.Params)
	if err != nil {
		return err
	}

	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	if err := s.email(ctx, req.Kind, r); err != nil {
		s.logger.ErrorContext(ctx, "report_email_failed", "kind", req.Kind, "label", r.Label, "error", err)
		s.alerter.ReportFailure(reportTitles[req.Kind], err, map[string]any{
			"kind":  string(req.Kind),
			"label": r.Label,
		})
		return fmt.Errorf("service.ReportService.Email: %w", ErrReportDelivery)
	}
	s.logger.InfoContext(ctx, "report_emailed", "kind", req.Kind, "label", r.Label, "recipients", len(s.opts.Admins))
	return nil
}

func (s *ReportService) email(ctx context.Context, kind period.Kind, r period.Range) error {
	if len(s.opts.Admins) == 0 {
		return fmt.Errorf("%w: no admin recipients configured", domain.ErrConfiguration)
	}
	report, err := s.build(ctx, kind, r)
	if err != nil {
		return err
	}
	msg := notify.Message{
		To:      s.opts.Admins,
		Subject: fmt.Sprintf("%s - %s", report.Title, report.Label),
		HTML:    summaryHTML(report),
	}
	for _, f := range []Format{FormatPDF, FormatXLSX} {
		doc, err := renderReport(report, f)
		if err != nil {
			return err
		}
		msg.Attachments = append(msg.Attachments, notify.Attachment{
			Filename:    doc.Filename,
			ContentType: doc.ContentType,
			Content:     doc.Body,
		})
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	return s.mailer.Send(ctx, msg)
}

func (s *ReportService) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if s.opts.Timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, s.opts.Timeout)
}

func (s *ReportService) load(ctx context.Context, kind period.Kind, p period.Params) (render.Report, error) {
	r, err := period.Resolve(kind, p)
	if err != nil {
		return render.Report{}, err
	}
	return s.build(ctx, kind, r)
}

func (s *ReportService) build(ctx context.Context, kind period.Kind, r period.Range) (render.Report, error) {
	trips, err := s.trips.FindTripsInRange(ctx, r.Start, r.End)
	if err != nil {
		return render.Report{}, err
	}
	return render.Report{
		Title:          reportTitles[kind],
		Label:          r.Label,
		Start:          r.Start,
		End:            r.End,
		Summary:        aggregate.Summarize(trips),
		Rows:           aggregate.ExportRows(trips),
		GeneratedAt:    s.now(),
		ShowGuideTrips: kind == period.KindWeekly || kind == period.KindDaily,
		ShowWeeks:      kind == period.KindMonthly || kind == period.KindYearly || kind == period.KindCustom,
	}, nil
}

func renderReport(r render.Report, f Format) (Document, error) {
	var (
		body []byte
		err  error
		doc  = Document{Filename: fmt.Sprintf("cashups-%s.%s", r.Label, f)}
	)
	switch f {
	case FormatXLSX:
		doc.ContentType = render.ContentTypeXLSX
		body, err = render.ReportXLSX(r)
	default:
		doc.Filename = fmt.Sprintf("cashups-%s.%s", r.Label, FormatPDF)
		doc.ContentType = render.ContentTypePDF
		body, err = render.ReportPDF(r)
	}
	if err != nil {
		return Document{}, err
	}
	doc.Body = body
	return doc, nil
}

func summaryHTML(r render.Report) string {
	s := r.Summary
	var b strings.Builder
	fmt.Fprintf(&b, "<h2>%s</h2>", html.EscapeString(r.Title))
	fmt.Fprintf(&b, "<p>Period: %s (%s to %s)</p>", html.EscapeString(r.Label),
		r.Start.Format(time.DateOnly), r.End.Format(time.DateOnly))
	b.WriteString("<ul>")
	fmt.Fprintf(&b, "<li><strong>Total trips:</strong> %d</li>", s.TotalTrips)
	fmt.Fprintf(&b, "<li><strong>Total pax:</strong> %d</li>", s.TotalPax)
	fmt.Fprintf(&b, "<li><strong>Total cash:</strong> %s</li>", render.Money(s.TotalCash))
	fmt.Fprintf(&b, "<li><strong>Total all payments:</strong> %s</li>", render.Money(s.TotalAll))
	b.WriteString("</ul><p>The PDF and Excel reports are attached.</p>")
	return b.String()
}
