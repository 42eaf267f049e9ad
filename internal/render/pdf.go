// Package render turns aggregated report data into PDF (gofpdf) and XLSX
// (excelize) documents. It performs no arithmetic of its own beyond layout:
// every figure comes from the aggregate package.
package render

import (
	"bytes"
	"fmt"
	"time"

	"github.com/jung-kurt/gofpdf"
	"github.com/shopspring/decimal"

	"github.com/GideonLangenhoven/CKACashups/internal/aggregate"
	"github.com/GideonLangenhoven/CKACashups/internal/domain"
)

const (
	ContentTypePDF  = "application/pdf"
	ContentTypeXLSX = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
)

// Report is everything a period report shows.
type Report struct {
	Title       string
	Label       string
	Start, End  time.Time
	Summary     aggregate.Summary
	Rows        []domain.ExportRow
	GeneratedAt time.Time

	// ShowGuideTrips adds each guide's per-trip cash lines (weekly reports).
	ShowGuideTrips bool
	// ShowWeeks adds the report-week breakdown (monthly and longer reports).
	ShowWeeks bool
}

// Invoice is a guide's monthly earnings statement.
type Invoice struct {
	GuideName   string
	GuideEmail  string
	Month       string
	Weeks       []aggregate.WeekTotal
	Lines       []InvoiceLine
	Total       decimal.Decimal
	GeneratedAt time.Time
}

// InvoiceLine is one trip on an invoice.
type InvoiceLine struct {
	Date     time.Time
	LeadName string
	Pax      int
	Fee      decimal.Decimal
}

// Money formats an amount in Rand with two decimals.
func Money(d decimal.Decimal) string {
	return "R " + d.StringFixed(2)
}

type pdfDoc struct {
	*gofpdf.Fpdf
	tr func(string) string
}

func newPDF(title string) pdfDoc {
	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.SetTitle(title, true)
	pdf.SetMargins(12, 12, 12)
	pdf.SetAutoPageBreak(true, 15)
	pdf.AddPage()
	return pdfDoc{Fpdf: pdf, tr: pdf.UnicodeTranslatorFromDescriptor("")}
}

func (d pdfDoc) heading(text string, size float64) {
	d.SetFont("Helvetica", "B", size)
	d.CellFormat(0, size/2+2, d.tr(text), "", 1, "L", false, 0, "")
}

func (d pdfDoc) line(text string) {
	d.SetFont("Helvetica", "", 10)
	d.CellFormat(0, 6, d.tr(text), "", 1, "L", false, 0, "")
}

// table draws a header row and body rows. widths are in mm; alignRight marks numeric columns.
func (d pdfDoc) table(headers []string, widths []float64, alignRight []bool, rows [][]string) {
	d.SetFont("Helvetica", "B", 9)
	d.SetFillColor(220, 230, 241)
	for i, h := range headers {
		d.CellFormat(widths[i], 7, d.tr(h), "1", 0, "C", true, 0, "")
	}
	d.Ln(-1)

	d.SetFont("Helvetica", "", 9)
	for _, row := range rows {
		for i, cell := range row {
			align := "L"
			if alignRight[i] {
				align = "R"
			}
			d.CellFormat(widths[i], 6, d.tr(cell), "1", 0, align, false, 0, "")
		}
		d.Ln(-1)
	}
	d.Ln(4)
}

func (d pdfDoc) bytes() ([]byte, error) {
	var buf bytes.Buffer
	if err := d.Output(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// ReportPDF renders a period report.
func ReportPDF(r Report) ([]byte, error) {
	doc := newPDF(r.Title)
	s := r.Summary

	doc.heading(r.Title, 16)
	doc.line(fmt.Sprintf("Period: %s (%s to %s)", r.Label, r.Start.Format(time.DateOnly), r.End.Format(time.DateOnly)))
	doc.line("Generated: " + r.GeneratedAt.Format("2006-01-02 15:04 MST"))
	doc.Ln(2)

	doc.heading("Summary", 12)
	doc.line(fmt.Sprintf("Total trips: %d", s.TotalTrips))
	doc.line(fmt.Sprintf("Total pax: %d", s.TotalPax))
	doc.line("Total cash: " + Money(s.TotalCash))
	doc.line("Total all payments: " + Money(s.TotalAll))
	doc.Ln(2)

	doc.table(
		[]string{"Cash", "Cards", "EFTs", "Vouchers", "Members", "Agents", "Extras", "Discounts"},
		[]float64{23, 23, 23, 23, 23, 23, 23, 25},
		[]bool{true, true, true, true, true, true, true, true},
		[][]string{moneyRow(s.Channels.CashReceived, s.Channels.CreditCards, s.Channels.OnlineEFTs,
			s.Channels.Vouchers, s.Channels.Members, s.Channels.AgentsToInvoice,
			s.Channels.WaterPhoneSunblock, s.Channels.DiscountsTotal)},
	)

	if r.ShowWeeks && len(s.Weeks) > 0 {
		doc.heading("Weekly breakdown", 12)
		rows := make([][]string, 0, len(s.Weeks))
		for _, w := range s.Weeks {
			rows = append(rows, []string{w.Week, fmt.Sprint(w.Trips), Money(w.Total)})
		}
		doc.table([]string{"Week", "Trips", "Total"}, []float64{50, 30, 50}, []bool{false, true, true}, rows)
	}

	if len(s.GuideStats) > 0 {
		doc.heading("Guides", 12)
		rows := make([][]string, 0, len(s.GuideStats))
		for _, g := range s.GuideStats {
			rows = append(rows, []string{g.Name, string(g.Rank), fmt.Sprint(g.TripCount), Money(g.TotalCash)})
		}
		doc.table([]string{"Guide", "Rank", "Trips", "Cash"}, []float64{70, 40, 25, 45}, []bool{false, false, true, true}, rows)

		if r.ShowGuideTrips {
			for _, g := range s.GuideStats {
				doc.heading(fmt.Sprintf("%s (%s)", g.Name, g.Rank), 10)
				lines := make([][]string, 0, len(g.Trips))
				for _, l := range g.Trips {
					lines = append(lines, []string{l.Date, l.Time, Money(l.Cash), Money(l.RunningTotal)})
				}
				doc.table([]string{"Date", "Time", "Cash", "Running total"}, []float64{40, 25, 45, 50}, []bool{false, false, true, true}, lines)
			}
		}
	}

	doc.heading("Trips", 12)
	rows := make([][]string, 0, len(s.Rows))
	for _, t := range s.Rows {
		rows = append(rows, []string{
			t.TripDate.UTC().Format(time.DateOnly),
			t.LeadName,
			fmt.Sprint(t.TotalPax),
			t.RankCounts.String(),
			Money(t.Total),
			Money(t.RunningTotal),
		})
	}
	doc.table(
		[]string{"Date", "Lead", "Pax", "Guides", "Total", "Running total"},
		[]float64{24, 50, 14, 30, 34, 34},
		[]bool{false, false, true, false, true, true},
		rows,
	)

	out, err := doc.bytes()
	if err != nil {
		return nil, fmt.Errorf("render.ReportPDF: %w", err)
	}
	return out, nil
}

// InvoicePDF renders a guide's monthly invoice.
func InvoicePDF(inv Invoice) ([]byte, error) {
	doc := newPDF("Invoice " + inv.Month)

	doc.heading("Guide Invoice", 16)
	doc.line("Guide: " + inv.GuideName)
	if inv.GuideEmail != "" {
		doc.line("Email: " + inv.GuideEmail)
	}
	doc.line("Month: " + inv.Month)
	doc.line("Generated: " + inv.GeneratedAt.Format("2006-01-02 15:04 MST"))
	doc.Ln(2)

	weeks := make([][]string, 0, len(inv.Weeks))
	for _, w := range inv.Weeks {
		weeks = append(weeks, []string{w.Week, fmt.Sprint(w.Trips), Money(w.Total)})
	}
	doc.heading("Weekly totals", 12)
	doc.table([]string{"Week", "Trips", "Earnings"}, []float64{50, 30, 50}, []bool{false, true, true}, weeks)

	lines := make([][]string, 0, len(inv.Lines))
	for _, l := range inv.Lines {
		lines = append(lines, []string{l.Date.UTC().Format(time.DateOnly), l.LeadName, fmt.Sprint(l.Pax), Money(l.Fee)})
	}
	doc.heading("Trips", 12)
	doc.table([]string{"Date", "Lead", "Pax", "Earnings"}, []float64{30, 80, 20, 40}, []bool{false, false, true, true}, lines)

	doc.heading("Total due: "+Money(inv.Total), 12)

	out, err := doc.bytes()
	if err != nil {
		return nil, fmt.Errorf("render.InvoicePDF: %w", err)
	}
	return out, nil
}

func moneyRow(values ...decimal.Decimal) []string {
	out := make([]string, len(values))
	for i, v := range values {
		out[i] = Money(v)
	}
	return out
}
