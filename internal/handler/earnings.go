package handler

import (
	"net/http"

	"github.com/google/uuid"
)

type invoiceRequest struct {
	Month string `json:"month" validate:"required,datetime=2006-01"`
}

type disputeRequest struct {
	Month  string `json:"month" validate:"required,datetime=2006-01"`
	Reason string `json:"reason" validate:"required,max=2000"`
}

// GetEarningsOverview handles GET /earnings/overview: this week's and this
// month's earnings for every active guide.
func (s *Server) GetEarningsOverview(w http.ResponseWriter, r *http.Request) {
	rows, err := s.earnings.Overview(r.Context(), s.now())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"data": rows})
}

// GetMyEarnings handles GET /earnings/me for the caller's linked guide.
func (s *Server) GetMyEarnings(w http.ResponseWriter, r *http.Request) {
	guideID, ok := linkedGuide(w, r)
	if !ok {
		return
	}
	got, err := s.earnings.Mine(r.Context(), guideID, s.now())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, got)
}

// SubmitInvoice handles POST /earnings/invoice.
func (s *Server) SubmitInvoice(w http.ResponseWriter, r *http.Request) {
	guideID, ok := linkedGuide(w, r)
	if !ok {
		return
	}
	var req invoiceRequest
	if !s.decodeBody(w, r, &req) {
		return
	}
	sum, err := s.earnings.SubmitInvoice(r.Context(), guideID, req.Month)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, sum)
}

// SubmitDispute handles POST /earnings/dispute.
func (s *Server) SubmitDispute(w http.ResponseWriter, r *http.Request) {
	guideID, ok := linkedGuide(w, r)
	if !ok {
		return
	}
	var req disputeRequest
	if !s.decodeBody(w, r, &req) {
		return
	}
	if err := s.earnings.Dispute(r.Context(), guideID, req.Month, req.Reason); err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "sent"})
}

func linkedGuide(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	a, ok := actor(w, r)
	if !ok {
		return uuid.Nil, false
	}
	if a.GuideID == nil {
		writeJSON(w, http.StatusForbidden, errorBody("forbidden", "your account is not linked to a guide"))
		return uuid.Nil, false
	}
	return *a.GuideID, true
}
