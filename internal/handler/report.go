package handler

import (
	"mime"
	"net/http"
	"net/url"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/oapi-codegen/runtime"

	"github.com/GideonLangenhoven/CKACashups/internal/period"
	"github.com/GideonLangenhoven/CKACashups/internal/service"
)

type reportEmailRequest struct {
	Date  string `json:"date"`
	Week  string `json:"week"`
	Month string `json:"month"`
	Year  string `json:"year"`
	Start string `json:"start"`
	End   string `json:"end" validate:"required_with=Start"`
}

// GetReport handles GET /reports/{kind} and streams the rendered file.
// The period comes from ?date=, ?week=, ?month=, ?year= or ?start=&end=
// depending on kind; ?format= picks pdf (default) or xlsx.
func (s *Server) GetReport(w http.ResponseWriter, r *http.Request) {
	kind, err := period.ParseKind(chi.URLParam(r, "kind"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	params, format, err := bindReportQuery(r.URL.Query())
	if err != nil {
		requestError(w, err.Error())
		return
	}
	f, err := service.ParseFormat(format)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	doc, err := s.reports.Build(r.Context(), service.ReportRequest{Kind: kind, Params: params, Format: f})
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	w.Header().Set("Content-Type", doc.ContentType)
	w.Header().Set("Content-Disposition", mime.FormatMediaType("attachment", map[string]string{"filename": doc.Filename}))
	w.Header().Set("Content-Length", strconv.Itoa(len(doc.Body)))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(doc.Body)
}

// EmailReport handles POST /reports/{kind}/email. The report is emailed to
// the configured admins as both PDF and XLSX.
func (s *Server) EmailReport(w http.ResponseWriter, r *http.Request) {
	kind, err := period.ParseKind(chi.URLParam(r, "kind"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	var req reportEmailRequest
	if !s.decodeBody(w, r, &req) {
		return
	}
	params := period.Params{Date: req.Date, Week: req.Week, Month: req.Month, Year: req.Year, Start: req.Start, End: req.End}
	if err := s.reports.Email(r.Context(), service.ReportRequest{Kind: kind, Params: params}); err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "sent"})
}

func bindReportQuery(q url.Values) (period.Params, string, error) {
	var p period.Params
	var format string
	for name, dest := range map[string]*string{
		"date":   &p.Date,
		"week":   &p.Week,
		"month":  &p.Month,
		"year":   &p.Year,
		"start":  &p.Start,
		"end":    &p.End,
		"format": &format,
	} {
		var v *string
		if err := runtime.BindQueryParameter("form", true, false, name, q, &v); err != nil {
			return period.Params{}, "", err
		}
		if v != nil {
			*dest = *v
		}
	}
	return p, format, nil
}
