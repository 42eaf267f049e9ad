package service

import (
	"context"
	"fmt"
	"html"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/GideonLangenhoven/CKACashups/internal/aggregate"
	"github.com/GideonLangenhoven/CKACashups/internal/domain"
	"github.com/GideonLangenhoven/CKACashups/internal/notify"
	"github.com/GideonLangenhoven/CKACashups/internal/period"
	"github.com/GideonLangenhoven/CKACashups/internal/render"
	"github.com/GideonLangenhoven/CKACashups/internal/repo"
)

const maxDisputeLen = 2000

// epoch bounds "all time" queries.
var epoch = time.Date(1970, time.January, 1, 0, 0, 0, 0, time.UTC)

// EarningsService serves guide earnings views, invoices and disputes.
type EarningsService struct {
	guides  repo.GuideRepo
	trips   repo.TripRepo
	mailer  notify.Mailer
	alerter *notify.Alerter
	admins  []string
	loc     *time.Location
	now     func() time.Time
	logger  *slog.Logger
}

// NewEarningsService constructs an EarningsService. loc is the business time
// zone used for the dashboard week and the "today" bucket.
func NewEarningsService(guides repo.GuideRepo, trips repo.TripRepo, mailer notify.Mailer, alerter *notify.Alerter, admins []string, loc *time.Location, logger *slog.Logger) *EarningsService {
	if loc == nil {
		loc = time.UTC
	}
	return &EarningsService{
		guides: guides, trips: trips, mailer: mailer, alerter: alerter,
		admins: admins, loc: loc, now: time.Now, logger: logger,
	}
}

// Overview returns this week's and this month's earnings for every active
// guide, highest week total first. The week starts on Sunday in the business
// time zone.
func (s *EarningsService) Overview(ctx context.Context, now time.Time) ([]aggregate.GuideEarningsSummary, error) {
	guides, err := s.guides.List(ctx, true)
	if err != nil {
		return nil, fmt.Errorf("service.EarningsService.Overview: %w", err)
	}
	weekStart, monthStart := period.DashboardWeekWindow(now, s.loc)
	from := weekStart
	if monthStart.Before(from) {
		from = monthStart
	}
	to := monthStart.AddDate(0, 1, 0)
	if weekEnd := weekStart.AddDate(0, 0, 7); weekEnd.After(to) {
		to = weekEnd
	}
	trips, err := s.trips.FindTripsInRange(ctx, from.UTC(), to.UTC().Add(-time.Millisecond))
	if err != nil {
		return nil, fmt.Errorf("service.EarningsService.Overview: %w", err)
	}

	rows := make([]aggregate.GuideEarningsSummary, 0, len(guides))
	for _, g := range guides {
		row := aggregate.GuideEarnings(g.ID, trips, weekStart, monthStart)
		row.GuideName, row.Rank = g.Name, g.Rank
		rows = append(rows, row)
	}
	aggregate.SortByWeekTotal(rows)
	return rows, nil
}

// Mine returns guideID's earnings for today, this month, this year and all time.
func (s *EarningsService) Mine(ctx context.Context, guideID uuid.UUID, now time.Time) (aggregate.PeriodEarnings, error) {
	local := now.In(s.loc)
	yearEnd := time.Date(local.Year()+1, time.January, 1, 0, 0, 0, 0, s.loc).Add(-time.Millisecond)
	trips, err := s.trips.FindTripsForGuideInRange(ctx, guideID, epoch, yearEnd.UTC())
	if err != nil {
		return aggregate.PeriodEarnings{}, fmt.Errorf("service.EarningsService.Mine: %w", err)
	}
	return aggregate.EarningsByPeriod(guideID, trips, now, s.loc), nil
}

// InvoiceSummary describes a submitted invoice.
type InvoiceSummary struct {
	Month string          `json:"month"`
	Trips int             `json:"trips"`
	Total decimal.Decimal `json:"total"`
}

// SubmitInvoice emails the admins a PDF invoice of guideID's earnings for
// month ("YYYY-MM"). A month without trips is domain.ErrNotFound.
func (s *EarningsService) SubmitInvoice(ctx context.Context, guideID uuid.UUID, month string) (InvoiceSummary, error) {
	r, err := period.Monthly(month)
	if err != nil {
		return InvoiceSummary{}, err
	}
	g, trips, total, err := s.monthTrips(ctx, guideID, r)
	if err != nil {
		return InvoiceSummary{}, fmt.Errorf("service.EarningsService.SubmitInvoice: %w", err)
	}
	if len(trips) == 0 {
		return InvoiceSummary{}, fmt.Errorf("service.EarningsService.SubmitInvoice: no trips in %s: %w", month, domain.ErrNotFound)
	}

	inv := render.Invoice{
		GuideName:   g.Name,
		Month:       month,
		Weeks:       aggregate.WeeklyEarnings(guideID, trips),
		Total:       total,
		GeneratedAt: s.now(),
	}
	if g.HasEmail() {
		inv.GuideEmail = *g.Email
	}
	for _, t := range trips {
		tg, _ := t.GuideAssignment(guideID)
		inv.Lines = append(inv.Lines, render.InvoiceLine{Date: t.TripDate, LeadName: t.LeadName, Pax: t.TotalPax, Fee: tg.FeeAmount})
	}
	pdf, err := render.InvoicePDF(inv)
	if err != nil {
		return InvoiceSummary{}, fmt.Errorf("service.EarningsService.SubmitInvoice: %w", err)
	}

	var b strings.Builder
	b.WriteString("<h2>Guide Invoice Submitted</h2><ul>")
	fmt.Fprintf(&b, "<li><strong>Guide:</strong> %s (%s)</li>", html.EscapeString(g.Name), g.Rank)
	fmt.Fprintf(&b, "<li><strong>Month:</strong> %s</li>", html.EscapeString(month))
	fmt.Fprintf(&b, "<li><strong>Trips:</strong> %d</li>", len(trips))
	fmt.Fprintf(&b, "<li><strong>Total:</strong> %s</li></ul>", render.Money(total))

	msg := notify.Message{
		Subject: fmt.Sprintf("Invoice from %s - %s", g.Name, month),
		HTML:    b.String(),
		Attachments: []notify.Attachment{{
			Filename:    fmt.Sprintf("invoice-%s-%s.pdf", slug(g.Name), month),
			ContentType: render.ContentTypePDF,
			Content:     pdf,
		}},
	}
	if err := s.send(ctx, msg); err != nil {
		return InvoiceSummary{}, fmt.Errorf("service.EarningsService.SubmitInvoice: %w", err)
	}
	s.logger.InfoContext(ctx, "invoice_submitted", "guide_id", guideID, "month", month, "trips", len(trips), "total", total.StringFixed(2))
	return InvoiceSummary{Month: month, Trips: len(trips), Total: total}, nil
}

// Dispute emails the admins guideID's objection to the trips recorded for
// month, together with what the system holds for that month.
func (s *EarningsService) Dispute(ctx context.Context, guideID uuid.UUID, month, reason string) error {
	r, err := period.Monthly(month)
	if err != nil {
		return err
	}
	reason = strings.TrimSpace(reason)
	if reason == "" || len(reason) > maxDisputeLen {
		return domain.Validationf("reason must be 1 to %d characters", maxDisputeLen)
	}
	g, trips, total, err := s.monthTrips(ctx, guideID, r)
	if err != nil {
		return fmt.Errorf("service.EarningsService.Dispute: %w", err)
	}

	var b strings.Builder
	b.WriteString(`<h2 style="color:#dc2626">Trip Count Dispute</h2><ul>`)
	fmt.Fprintf(&b, "<li><strong>Name:</strong> %s</li>", html.EscapeString(g.Name))
	fmt.Fprintf(&b, "<li><strong>Rank:</strong> %s</li>", g.Rank)
	if g.HasEmail() {
		fmt.Fprintf(&b, "<li><strong>Email:</strong> %s</li>", html.EscapeString(*g.Email))
	}
	fmt.Fprintf(&b, "<li><strong>Month:</strong> %s</li>", html.EscapeString(month))
	fmt.Fprintf(&b, "<li><strong>Total trips (in system):</strong> %d</li>", len(trips))
	fmt.Fprintf(&b, "<li><strong>Total earnings (in system):</strong> %s</li></ul>", render.Money(total))
	fmt.Fprintf(&b, "<h3>Reason</h3><p>%s</p>", strings.ReplaceAll(html.EscapeString(reason), "\n", "<br>"))
	b.WriteString("<h3>Trips in system</h3><pre>")
	if len(trips) == 0 {
		b.WriteString("No trips found")
	}
	for _, t := range trips {
		tg, _ := t.GuideAssignment(guideID)
		fmt.Fprintf(&b, "%s - %s (%s)\n", t.TripDate.UTC().Format(time.DateOnly), html.EscapeString(t.LeadName), render.Money(tg.FeeAmount))
	}
	b.WriteString("</pre>")

	msg := notify.Message{
		Subject: fmt.Sprintf("Trip Dispute from %s - %s", g.Name, month),
		HTML:    b.String(),
	}
	if err := s.send(ctx, msg); err != nil {
		return fmt.Errorf("service.EarningsService.Dispute: %w", err)
	}
	s.logger.InfoContext(ctx, "guide_dispute_submitted", "guide_id", guideID, "month", month, "trips", len(trips))
	return nil
}

// monthTrips loads the guide and its trips in r, ascending, with the fee total.
func (s *EarningsService) monthTrips(ctx context.Context, guideID uuid.UUID, r period.Range) (domain.Guide, []domain.Trip, decimal.Decimal, error) {
	g, err := s.guides.Get(ctx, guideID)
	if err != nil {
		return domain.Guide{}, nil, decimal.Zero, err
	}
	trips, err := s.trips.FindTripsForGuideInRange(ctx, guideID, r.Start, r.End)
	if err != nil {
		return domain.Guide{}, nil, decimal.Zero, err
	}
	total := decimal.Zero
	for _, t := range trips {
		if tg, ok := t.GuideAssignment(guideID); ok {
			total = total.Add(tg.FeeAmount)
		}
	}
	return g, trips, total, nil
}

func (s *EarningsService) send(ctx context.Context, msg notify.Message) error {
	if len(s.admins) == 0 {
		return fmt.Errorf("%w: no admin recipients configured", domain.ErrConfiguration)
	}
	msg.To = s.admins
	if err := s.mailer.Send(ctx, msg); err != nil {
		s.alerter.EmailFailure(msg.Subject, err)
		return err
	}
	return nil
}

// slug lower-cases name and replaces anything but letters and digits with '-'.
func slug(name string) string {
	var b strings.Builder
	dash := false
	for _, r := range strings.ToLower(name) {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			b.WriteRune(r)
			dash = false
			continue
		}
		if !dash && b.Len() > 0 {
			b.WriteByte('-')
			dash = true
		}
	}
	return strings.TrimSuffix(b.String(), "-")
}
