package handler

import (
	"net/http"

	"github.com/oapi-codegen/runtime"
	openapi_types "github.com/oapi-codegen/runtime/types"

	"github.com/GideonLangenhoven/CKACashups/internal/domain"
)

type guideRequest struct {
	Name  string               `json:"name" validate:"required,max=120"`
	Rank  string               `json:"rank" validate:"required"`
	Email *openapi_types.Email `json:"email"`
	// Active is honoured by updates only; omitted means true.
	Active *bool `json:"active"`
}

func (g guideRequest) input() domain.GuideInput {
	in := domain.GuideInput{Name: g.Name, Active: g.Active == nil || *g.Active}
	in.Rank = domain.Rank(g.Rank)
	if g.Email != nil {
		in.Email = string(*g.Email)
	}
	return in
}

type clearEmailRequest struct {
	Email openapi_types.Email `json:"email" validate:"required"`
}

// ListGuides handles GET /guides.
// Admins may pass ?active=false to include inactive guides; everyone else
// sees active guides only.
func (s *Server) ListGuides(w http.ResponseWriter, r *http.Request) {
	a, ok := actor(w, r)
	if !ok {
		return
	}
	var activeOnly *bool
	if err := runtime.BindQueryParameter("form", true, false, "active", r.URL.Query(), &activeOnly); err != nil {
		requestError(w, err.Error())
		return
	}
	only := !a.IsAdmin() || activeOnly == nil || *activeOnly

	guides, err := s.guides.List(r.Context(), only)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"data": guides})
}

// CreateGuide handles POST /guides.
func (s *Server) CreateGuide(w http.ResponseWriter, r *http.Request) {
	a, ok := actor(w, r)
	if !ok {
		return
	}
	var req guideRequest
	if !s.decodeBody(w, r, &req) {
		return
	}
	in := req.input()
	in.Active = true

	g, err := s.guides.Create(r.Context(), a, in)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, g)
}

// UpdateGuide handles PUT /guides/{id}. Sending "active": false deactivates
// the guide and releases its email.
func (s *Server) UpdateGuide(w http.ResponseWriter, r *http.Request) {
	a, ok := actor(w, r)
	if !ok {
		return
	}
	id, ok := pathID(w, r, "guide")
	if !ok {
		return
	}
	var req guideRequest
	if !s.decodeBody(w, r, &req) {
		return
	}

	g, err := s.guides.Update(r.Context(), a, id, req.input())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, g)
}

// DeactivateGuide handles POST /guides/{id}/deactivate.
func (s *Server) DeactivateGuide(w http.ResponseWriter, r *http.Request) {
	a, ok := actor(w, r)
	if !ok {
		return
	}
	id, ok := pathID(w, r, "guide")
	if !ok {
		return
	}
	g, err := s.guides.Deactivate(r.Context(), a, id)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, g)
}

// DeleteGuide handles DELETE /guides/{id}. Guides with trip history are
// refused with 409 and the blocking counts.
func (s *Server) DeleteGuide(w http.ResponseWriter, r *http.Request) {
	a, ok := actor(w, r)
	if !ok {
		return
	}
	id, ok := pathID(w, r, "guide")
	if !ok {
		return
	}
	if err := s.guides.Delete(r.Context(), a, id); err != nil {
		s.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ClearEmail handles POST /admin/clear-email.
func (s *Server) ClearEmail(w http.ResponseWriter, r *http.Request) {
	a, ok := actor(w, r)
	if !ok {
		return
	}
	var req clearEmailRequest
	if !s.decodeBody(w, r, &req) {
		return
	}
	res, err := s.guides.ClearEmail(r.Context(), a, string(req.Email))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}
