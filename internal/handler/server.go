// Package handler implements the HTTP handlers for the cash-up API.
// All handlers are methods on Server; Routes mounts them on a chi router.
// Methods are split into domain-specific files (guide.go, trip.go, etc.) but
// all share the same Server struct so they can access its dependencies.
package handler

import (
	"context"
	"log/slog"
	"net/http"
	"reflect"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/GideonLangenhoven/CKACashups/internal/aggregate"
	"github.com/GideonLangenhoven/CKACashups/internal/domain"
	"github.com/GideonLangenhoven/CKACashups/internal/middleware"
	"github.com/GideonLangenhoven/CKACashups/internal/service"
)

// GuideServicer defines the guide operations the handlers depend on.
// Defining the interfaces here (in the consumer package) lets handler tests
// inject mocks without touching the database or service layer.
type GuideServicer interface {
	List(ctx context.Context, activeOnly bool) ([]domain.Guide, error)
	Create(ctx context.Context, actor domain.Actor, in domain.GuideInput) (domain.Guide, error)
	Update(ctx context.Context, actor domain.Actor, id uuid.UUID, in domain.GuideInput) (domain.Guide, error)
	Deactivate(ctx context.Context, actor domain.Actor, id uuid.UUID) (domain.Guide, error)
	Delete(ctx context.Context, actor domain.Actor, id uuid.UUID) error
	ClearEmail(ctx context.Context, actor domain.Actor, email string) (service.EmailClearance, error)
}

// TripServicer defines the trip operations the handlers depend on.
type TripServicer interface {
	Create(ctx context.Context, actor domain.Actor, in domain.TripInput) (domain.Trip, error)
	Get(ctx context.Context, actor domain.Actor, id uuid.UUID) (domain.Trip, error)
	List(ctx context.Context, actor domain.Actor, filter domain.TripFilter, page domain.PaginationParams) ([]domain.Trip, int64, error)
	Delete(ctx context.Context, actor domain.Actor, id uuid.UUID) error
	Transition(ctx context.Context, actor domain.Actor, id uuid.UUID, to domain.TripStatus) (domain.Trip, error)
}

// ReportServicer builds and emails period reports.
type ReportServicer interface {
	Build(ctx context.Context, req service.ReportRequest) (service.Document, error)
	Email(ctx context.Context, req service.ReportRequest) error
}

// EarningsServicer answers the earnings dashboards and guide requests.
type EarningsServicer interface {
	Overview(ctx context.Context, now time.Time) ([]aggregate.GuideEarningsSummary, error)
	Mine(ctx context.Context, guideID uuid.UUID, now time.Time) (aggregate.PeriodEarnings, error)
	SubmitInvoice(ctx context.Context, guideID uuid.UUID, month string) (service.InvoiceSummary, error)
	Dispute(ctx context.Context, guideID uuid.UUID, month, reason string) error
}

// ExportServicer produces the flat trip export.
type ExportServicer interface {
	Export(ctx context.Context, start, end string) ([]domain.ExportRow, error)
}

// Pinger reports whether the database is reachable. *pgxpool.Pool satisfies it.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Services groups the Server's dependencies.
type Services struct {
	DB       Pinger
	Guides   GuideServicer
	Trips    TripServicer
	Reports  ReportServicer
	Earnings EarningsServicer
	Export   ExportServicer
}

// Server holds the dependencies shared by every handler.
type Server struct {
	db       Pinger
	guides   GuideServicer
	trips    TripServicer
	reports  ReportServicer
	earnings EarningsServicer
	export   ExportServicer
	openapi  []byte
	validate *validator.Validate
	now      func() time.Time
	logger   *slog.Logger
}

// NewServer constructs the Server. openapi is served verbatim at /openapi.yaml.
func NewServer(svc Services, openapi []byte, logger *slog.Logger) *Server {
	v := validator.New()
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	return &Server{
		db:       svc.DB,
		guides:   svc.Guides,
		trips:    svc.Trips,
		reports:  svc.Reports,
		earnings: svc.Earnings,
		export:   svc.Export,
		openapi:  openapi,
		validate: v,
		now:      time.Now,
		logger:   logger,
	}
}

// Routes returns the API router. auth must authenticate the caller and store a
// domain.Actor via middleware.WithActor; the health and OpenAPI routes skip it.
func (s *Server) Routes(auth func(http.Handler) http.Handler) http.Handler {
	r := chi.NewRouter()
	r.Get("/healthz", s.GetHealth)
	r.Get("/readyz", s.GetReady)
	r.Get("/openapi.yaml", s.GetOpenAPI)

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(auth)

		r.Get("/guides", s.ListGuides)
		r.Get("/trips", s.ListTrips)
		r.Post("/trips", s.CreateTrip)
		r.Get("/trips/{id}", s.GetTrip)
		r.Delete("/trips/{id}", s.DeleteTrip)
		r.Post("/trips/{id}/status", s.TransitionTrip)
		r.Get("/earnings/me", s.GetMyEarnings)
		r.Post("/earnings/invoice", s.SubmitInvoice)
		r.Post("/earnings/dispute", s.SubmitDispute)

		r.Group(func(r chi.Router) {
			r.Use(middleware.RequireAdmin)

			r.Post("/guides", s.CreateGuide)
			r.Put("/guides/{id}", s.UpdateGuide)
			r.Post("/guides/{id}/deactivate", s.DeactivateGuide)
			r.Delete("/guides/{id}", s.DeleteGuide)
			r.Post("/admin/clear-email", s.ClearEmail)
			r.Get("/reports/{kind}", s.GetReport)
			r.Post("/reports/{kind}/email", s.EmailReport)
			r.Get("/earnings/overview", s.GetEarningsOverview)
			r.Get("/export", s.GetExport)
		})
	})
	return r
}

// actor returns the authenticated caller. Routes guarantees one is present
// under /api/v1; a missing actor is answered with 401.
func actor(w http.ResponseWriter, r *http.Request) (domain.Actor, bool) {
	a, ok := middleware.ActorFrom(r.Context())
	if !ok {
		writeJSON(w, http.StatusUnauthorized, errorBody("unauthorized", "missing bearer token"))
	}
	return a, ok
}

// pathID parses the {id} URL parameter, answering 404 when it is not a uuid.
func pathID(w http.ResponseWriter, r *http.Request, what string) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusNotFound, errorBody("not_found", what+" not found"))
		return uuid.Nil, false
	}
	return id, true
}
