package handler

import (
	"net/http"
	"net/url"
	"time"

	"github.com/oapi-codegen/runtime"
	openapi_types "github.com/oapi-codegen/runtime/types"
	"github.com/shopspring/decimal"

	"github.com/GideonLangenhoven/CKACashups/internal/domain"
)

type tripGuideRequest struct {
	GuideID openapi_types.UUID `json:"guide_id" validate:"required"`
	// Pax of zero means the trip's total_pax.
	Pax int `json:"pax" validate:"gte=0"`
}

type discountRequest struct {
	Amount decimal.Decimal `json:"amount"`
	Reason string          `json:"reason" validate:"required,max=200"`
}

type tripRequest struct {
	TripDate      *time.Time              `json:"trip_date" validate:"required"`
	LeadName      string                  `json:"lead_name" validate:"required,max=120"`
	PaxGuideNote  string                  `json:"pax_guide_note" validate:"max=500"`
	TotalPax      int                     `json:"total_pax" validate:"gte=0"`
	TripLeaderID  *openapi_types.UUID     `json:"trip_leader_id"`
	PaymentsMade  bool                    `json:"payments_made"`
	PicsUploaded  bool                    `json:"pics_uploaded"`
	TripEmailSent bool                    `json:"trip_email_sent"`
	TripReport    string                  `json:"trip_report"`
	Suggestions   string                  `json:"suggestions"`
	Status        string                  `json:"status" validate:"omitempty,oneof=DRAFT SUBMITTED"`
	Guides        []tripGuideRequest      `json:"guides" validate:"dive"`
	Payments      domain.PaymentBreakdown `json:"payments"`
	Discounts     []discountRequest       `json:"discounts" validate:"dive"`
}

func (t tripRequest) input() domain.TripInput {
	in := domain.TripInput{
		TripDate:      *t.TripDate,
		LeadName:      t.LeadName,
		PaxGuideNote:  t.PaxGuideNote,
		TotalPax:      t.TotalPax,
		TripLeaderID:  t.TripLeaderID,
		PaymentsMade:  t.PaymentsMade,
		PicsUploaded:  t.PicsUploaded,
		TripEmailSent: t.TripEmailSent,
		TripReport:    t.TripReport,
		Suggestions:   t.Suggestions,
		Status:        domain.TripStatus(t.Status),
		Payments:      t.Payments,
	}
	for _, g := range t.Guides {
		in.Guides = append(in.Guides, domain.TripGuideInput{GuideID: g.GuideID, Pax: g.Pax})
	}
	for _, d := range t.Discounts {
		in.Discounts = append(in.Discounts, domain.DiscountLine{Amount: d.Amount, Reason: d.Reason})
	}
	return in
}

type statusRequest struct {
	Status string `json:"status" validate:"required"`
}

// Pagination echoes the page that was served.
type Pagination struct {
	Page  int   `json:"page"`
	Limit int   `json:"limit"`
	Total int64 `json:"total"`
}

type tripList struct {
	Data       []domain.Trip `json:"data"`
	Pagination Pagination    `json:"pagination"`
}

// CreateTrip handles POST /trips.
func (s *Server) CreateTrip(w http.ResponseWriter, r *http.Request) {
	a, ok := actor(w, r)
	if !ok {
		return
	}
	var req tripRequest
	if !s.decodeBody(w, r, &req) {
		return
	}
	created, err := s.trips.Create(r.Context(), a, req.input())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, created)
}

// ListTrips handles GET /trips.
// Supports ?page= and ?limit= (defaults: page=1, limit=20, max=100) plus the
// lead, status, note, start and end filters. ?all=true widens the listing to
// every trip for admins.
func (s *Server) ListTrips(w http.ResponseWriter, r *http.Request) {
	a, ok := actor(w, r)
	if !ok {
		return
	}
	filter, page, err := bindTripQuery(r.URL.Query())
	if err != nil {
		requestError(w, err.Error())
		return
	}
	trips, total, err := s.trips.List(r.Context(), a, filter, page)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, tripList{
		Data:       trips,
		Pagination: Pagination{Page: page.Page, Limit: page.Limit, Total: total},
	})
}

func bindTripQuery(q url.Values) (domain.TripFilter, domain.PaginationParams, error) {
	var (
		pageNum, limit   *int
		all              *bool
		lead, note, stat *string
		start, end       *openapi_types.Date
	)
	binds := []struct {
		name string
		dest any
	}{
		{"page", &pageNum},
		{"limit", &limit},
		{"all", &all},
		{"lead", &lead},
		{"status", &stat},
		{"note", &note},
		{"start", &start},
		{"end", &end},
	}
	for _, b := range binds {
		if err := runtime.BindQueryParameter("form", true, false, b.name, q, b.dest); err != nil {
			return domain.TripFilter{}, domain.PaginationParams{}, err
		}
	}

	var f domain.TripFilter
	f.All = all != nil && *all
	if lead != nil {
		f.Lead = *lead
	}
	if note != nil {
		f.Note = *note
	}
	if stat != nil {
		f.Status = domain.TripStatus(*stat)
	}
	if start != nil {
		f.Start = &start.Time
	}
	if end != nil {
		f.End = &end.Time
	}
	return f, domain.NewPaginationParams(pageNum, limit), nil
}

// GetTrip handles GET /trips/{id}.
func (s *Server) GetTrip(w http.ResponseWriter, r *http.Request) {
	a, ok := actor(w, r)
	if !ok {
		return
	}
	id, ok := pathID(w, r, "trip")
	if !ok {
		return
	}
	trip, err := s.trips.Get(r.Context(), a, id)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, trip)
}

// DeleteTrip handles DELETE /trips/{id}.
func (s *Server) DeleteTrip(w http.ResponseWriter, r *http.Request) {
	a, ok := actor(w, r)
	if !ok {
		return
	}
	id, ok := pathID(w, r, "trip")
	if !ok {
		return
	}
	if err := s.trips.Delete(r.Context(), a, id); err != nil {
		s.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// TransitionTrip handles POST /trips/{id}/status.
func (s *Server) TransitionTrip(w http.ResponseWriter, r *http.Request) {
	a, ok := actor(w, r)
	if !ok {
		return
	}
	id, ok := pathID(w, r, "trip")
	if !ok {
		return
	}
	var req statusRequest
	if !s.decodeBody(w, r, &req) {
		return
	}
	trip, err := s.trips.Transition(r.Context(), a, id, domain.TripStatus(req.Status))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, trip)
}
