package render

import (
	"fmt"
	"time"

	"github.com/xuri/excelize/v2"
)

const (
	cashUpsSheet = "CashUps"
	summarySheet = "Summary"
)

var cashUpsHeaders = []string{
	"Trip Date", "Status", "Lead", "Total Pax", "Guides (S/I/J)", "Guide Names",
	"Cash", "Cards", "EFTs", "Vouchers", "Members", "Agents", "Water/Phone/Sunblock",
	"Discounts", "Total", "Pax Guide Notes", "Created By",
}

// ReportXLSX renders the flat trip export plus a summary sheet.
func ReportXLSX(r Report) ([]byte, error) {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", cashUpsSheet); err != nil {
		return nil, fmt.Errorf("render.ReportXLSX: %w", err)
	}
	if err := writeCashUps(f, r); err != nil {
		return nil, fmt.Errorf("render.ReportXLSX: cash ups: %w", err)
	}
	if _, err := f.NewSheet(summarySheet); err != nil {
		return nil, fmt.Errorf("render.ReportXLSX: %w", err)
	}
	if err := writeSummary(f, r); err != nil {
		return nil, fmt.Errorf("render.ReportXLSX: summary: %w", err)
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("render.ReportXLSX: write: %w", err)
	}
	return buf.Bytes(), nil
}

func headerStyle(f *excelize.File) (int, error) {
	return f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true, Size: 11},
		Fill: excelize.Fill{Type: "pattern", Color: []string{"#DCE6F1"}, Pattern: 1},
		Border: []excelize.Border{
			{Type: "bottom", Color: "#000000", Style: 1},
		},
	})
}

func cell(col, row int) string {
	name, _ := excelize.CoordinatesToCellName(col, row)
	return name
}

func writeCashUps(f *excelize.File, r Report) error {
	for i, h := range cashUpsHeaders {
		if err := f.SetCellValue(cashUpsSheet, cell(i+1, 1), h); err != nil {
			return err
		}
	}
	hs, err := headerStyle(f)
	if err != nil {
		return err
	}
	if err := f.SetCellStyle(cashUpsSheet, cell(1, 1), cell(len(cashUpsHeaders), 1), hs); err != nil {
		return err
	}
	money, err := f.NewStyle(&excelize.Style{NumFmt: 4}) // #,##0.00
	if err != nil {
		return err
	}

	for i, row := range r.Rows {
		n := i + 2
		p := row.Payments
		values := []any{
			row.TripDate.UTC().Format(time.DateOnly),
			string(row.Status),
			row.LeadName,
			row.TotalPax,
			row.RankCounts,
			row.Guides,
			p.CashReceived.InexactFloat64(),
			p.CreditCards.InexactFloat64(),
			p.OnlineEFTs.InexactFloat64(),
			p.Vouchers.InexactFloat64(),
			p.Members.InexactFloat64(),
			p.AgentsToInvoice.InexactFloat64(),
			p.WaterPhoneSunblock.InexactFloat64(),
			p.DiscountsTotal.InexactFloat64(),
			row.Total.InexactFloat64(),
			row.PaxNote,
			row.CreatedBy,
		}
		if err := f.SetSheetRow(cashUpsSheet, cell(1, n), &values); err != nil {
			return err
		}
	}

	if len(r.Rows) > 0 {
		last := len(r.Rows) + 1
		if err := f.SetCellStyle(cashUpsSheet, cell(7, 2), cell(15, last), money); err != nil {
			return err
		}
		total := last + 1
		if err := f.SetCellValue(cashUpsSheet, cell(1, total), "TOTAL"); err != nil {
			return err
		}
		for col := 7; col <= 15; col++ {
			formula := fmt.Sprintf("SUM(%s:%s)", cell(col, 2), cell(col, last))
			if err := f.SetCellFormula(cashUpsSheet, cell(col, total), formula); err != nil {
				return err
			}
		}
		if err := f.SetCellStyle(cashUpsSheet, cell(1, total), cell(len(cashUpsHeaders), total), hs); err != nil {
			return err
		}
	}

	if err := f.SetColWidth(cashUpsSheet, "A", "A", 12); err != nil {
		return err
	}
	if err := f.SetColWidth(cashUpsSheet, "C", "C", 24); err != nil {
		return err
	}
	if err := f.SetColWidth(cashUpsSheet, "F", "F", 30); err != nil {
		return err
	}
	return f.SetColWidth(cashUpsSheet, "G", "O", 13)
}

func writeSummary(f *excelize.File, r Report) error {
	s := r.Summary
	rows := [][]any{
		{r.Title},
		{"Period", r.Label},
		{"From", r.Start.Format(time.DateOnly)},
		{"To", r.End.Format(time.DateOnly)},
		{"Total trips", s.TotalTrips},
		{"Total pax", s.TotalPax},
		{"Total cash", s.TotalCash.InexactFloat64()},
		{"Total all payments", s.TotalAll.InexactFloat64()},
		{},
		{"Week", "Trips", "Total"},
	}
	for _, w := range s.Weeks {
		rows = append(rows, []any{w.Week, w.Trips, w.Total.InexactFloat64()})
	}
	rows = append(rows, []any{}, []any{"Guide", "Rank", "Trips", "Cash"})
	for _, g := range s.GuideStats {
		rows = append(rows, []any{g.Name, string(g.Rank), g.TripCount, g.TotalCash.InexactFloat64()})
	}

	for i, values := range rows {
		if len(values) == 0 {
			continue
		}
		if err := f.SetSheetRow(summarySheet, cell(1, i+1), &values); err != nil {
			return err
		}
	}
	return f.SetColWidth(summarySheet, "A", "A", 22)
}
