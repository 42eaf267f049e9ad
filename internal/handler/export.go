package handler

import (
	"bytes"
	"encoding/csv"
	"mime"
	"net/http"
	"strconv"
	"time"

	"github.com/oapi-codegen/runtime"
	openapi_types "github.com/oapi-codegen/runtime/types"

	"github.com/GideonLangenhoven/CKACashups/internal/domain"
)

// csvHeaders defines the column names written as the first row of any CSV export.
var csvHeaders = []string{
	"trip_date", "status", "lead_name", "total_pax", "pax_note", "created_by",
	"guides", "rank_counts",
	"cash_received", "credit_cards", "online_efts", "vouchers", "members",
	"agents_to_invoice", "water_phone_sunblock", "discounts_total", "total",
}

// GetExport handles GET /export?start=&end=.
// It returns one flat row per trip in the range. Use ?format=csv to receive
// CSV; default is JSON.
func (s *Server) GetExport(w http.ResponseWriter, r *http.Request) {
	var (
		start, end *openapi_types.Date
		format     *string
	)
	q := r.URL.Query()
	for name, dest := range map[string]any{"start": &start, "end": &end, "format": &format} {
		if err := runtime.BindQueryParameter("form", true, false, name, q, dest); err != nil {
			requestError(w, err.Error())
			return
		}
	}
	if start == nil || end == nil {
		requestError(w, "start and end are required")
		return
	}

	rows, err := s.export.Export(r.Context(), start.Time.Format(time.DateOnly), end.Time.Format(time.DateOnly))
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	switch {
	case format == nil || *format == "json":
		writeJSON(w, http.StatusOK, map[string]any{"data": rows})
	case *format == "csv":
		body := buildCSV(rows)
		filename := "cashups-" + start.Time.Format(time.DateOnly) + "_to_" + end.Time.Format(time.DateOnly) + ".csv"
		w.Header().Set("Content-Type", "text/csv; charset=utf-8")
		w.Header().Set("Content-Disposition", mime.FormatMediaType("attachment", map[string]string{"filename": filename}))
		w.Header().Set("Content-Length", strconv.Itoa(len(body)))
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write(body)
	default:
		requestError(w, "format must be json or csv")
	}
}

// buildCSV encodes rows as CSV with a header line. Money columns keep two decimals.
func buildCSV(rows []domain.ExportRow) []byte {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)

	// bytes.Buffer writes never fail, so Write errors are ignored.
	_ = w.Write(csvHeaders)
	for _, r := range rows {
		_ = w.Write(rowToCSVRecord(r))
	}
	w.Flush()
	return buf.Bytes()
}

func rowToCSVRecord(r domain.ExportRow) []string {
	p := r.Payments
	return []string{
		r.TripDate.UTC().Format(time.DateOnly),
		string(r.Status),
		r.LeadName,
		strconv.Itoa(r.TotalPax),
		r.PaxNote,
		r.CreatedBy,
		r.Guides,
		r.RankCounts,
		p.CashReceived.StringFixed(2),
		p.CreditCards.StringFixed(2),
		p.OnlineEFTs.StringFixed(2),
		p.Vouchers.StringFixed(2),
		p.Members.StringFixed(2),
		p.AgentsToInvoice.StringFixed(2),
		p.WaterPhoneSunblock.StringFixed(2),
		p.DiscountsTotal.StringFixed(2),
		r.Total.StringFixed(2),
	}
}
