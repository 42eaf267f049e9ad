package handler_test

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/GideonLangenhoven/CKACashups/internal/aggregate"
	"github.com/GideonLangenhoven/CKACashups/internal/domain"
	"github.com/GideonLangenhoven/CKACashups/internal/handler"
	"github.com/GideonLangenhoven/CKACashups/internal/middleware"
	"github.com/GideonLangenhoven/CKACashups/internal/service"
)

// mockGuideServicer is a test double for handler.GuideServicer.
// Set only the method fields your test needs.
type mockGuideServicer struct {
	list       func(ctx context.Context, activeOnly bool) ([]domain.Guide, error)
	create     func(ctx context.Context, a domain.Actor, in domain.GuideInput) (domain.Guide, error)
	update     func(ctx context.Context, a domain.Actor, id uuid.UUID, in domain.GuideInput) (domain.Guide, error)
	deactivate func(ctx context.Context, a domain.Actor, id uuid.UUID) (domain.Guide, error)
	delete     func(ctx context.Context, a domain.Actor, id uuid.UUID) error
	clearEmail func(ctx context.Context, a domain.Actor, email string) (service.EmailClearance, error)
}

func (m *mockGuideServicer) List(ctx context.Context, activeOnly bool) ([]domain.Guide, error) {
	return m.list(ctx, activeOnly)
}
func (m *mockGuideServicer) Create(ctx context.Context, a domain.Actor, in domain.GuideInput) (domain.Guide, error) {
	return m.create(ctx, a, in)
}
func (m *mockGuideServicer) Update(ctx context.Context, a domain.Actor, id uuid.UUID, in domain.GuideInput) (domain.Guide, error) {
	return m.update(ctx, a, id, in)
}
func (m *mockGuideServicer) Deactivate(ctx context.Context, a domain.Actor, id uuid.UUID) (domain.Guide, error) {
	return m.deactivate(ctx, a, id)
}
func (m *mockGuideServicer) Delete(ctx context.Context, a domain.Actor, id uuid.UUID) error {
	return m.delete(ctx, a, id)
}
func (m *mockGuideServicer) ClearEmail(ctx context.Context, a domain.Actor, email string) (service.EmailClearance, error) {
	return m.clearEmail(ctx, a, email)
}

// mockTripServicer is a test double for handler.TripServicer.
type mockTripServicer struct {
	create     func(ctx context.Context, a domain.Actor, in domain.TripInput) (domain.Trip, error)
	get        func(ctx context.Context, a domain.Actor, id uuid.UUID) (domain.Trip, error)
	list       func(ctx context.Context, a domain.Actor, f domain.TripFilter, p domain.PaginationParams) ([]domain.Trip, int64, error)
	delete     func(ctx context.Context, a domain.Actor, id uuid.UUID) error
	transition func(ctx context.Context, a domain.Actor, id uuid.UUID, to domain.TripStatus) (domain.Trip, error)
}

func (m *mockTripServicer) Create(ctx context.Context, a domain.Actor, in domain.TripInput) (domain.Trip, error) {
	return m.create(ctx, a, in)
}
func (m *mockTripServicer) Get(ctx context.Context, a domain.Actor, id uuid.UUID) (domain.Trip, error) {
	return m.get(ctx, a, id)
}
func (m *mockTripServicer) List(ctx context.Context, a domain.Actor, f domain.TripFilter, p domain.PaginationParams) ([]domain.Trip, int64, error) {
	return m.list(ctx, a, f, p)
}
func (m *mockTripServicer) Delete(ctx context.Context, a domain.Actor, id uuid.UUID) error {
	return m.delete(ctx, a, id)
}
func (m *mockTripServicer) Transition(ctx context.Context, a domain.Actor, id uuid.UUID, to domain.TripStatus) (domain.Trip, error) {
	return m.transition(ctx, a, id, to)
}

// mockReportServicer is a test double for handler.ReportServicer.
type mockReportServicer struct {
	build func(ctx context.Context, req service.ReportRequest) (service.Document, error)
	email func(ctx context.Context, req service.ReportRequest) error
}

func (m *mockReportServicer) Build(ctx context.Context, req service.ReportRequest) (service.Document, error) {
	return m.build(ctx, req)
}
func (m *mockReportServicer) Email(ctx context.Context, req service.ReportRequest) error {
	return m.email(ctx, req)
}

// mockEarningsServicer is a test double for handler.EarningsServicer.
type mockEarningsServicer struct {
	overview func(ctx context.Context, now time.Time) ([]aggregate.GuideEarningsSummary, error)
	mine     func(ctx context.Context, guideID uuid.UUID, now time.Time) (aggregate.PeriodEarnings, error)
	invoice  func(ctx context.Context, guideID uuid.UUID, month string) (service.InvoiceSummary, error)
	dispute  func(ctx context.Context, guideID uuid.UUID, month, reason string) error
}

func (m *mockEarningsServicer) Overview(ctx context.Context, now time.Time) ([]aggregate.GuideEarningsSummary, error) {
	return m.overview(ctx, now)
}
func (m *mockEarningsServicer) Mine(ctx context.Context, guideID uuid.UUID, now time.Time) (aggregate.PeriodEarnings, error) {
	return m.mine(ctx, guideID, now)
}
func (m *mockEarningsServicer) SubmitInvoice(ctx context.Context, guideID uuid.UUID, month string) (service.InvoiceSummary, error) {
	return m.invoice(ctx, guideID, month)
}
func (m *mockEarningsServicer) Dispute(ctx context.Context, guideID uuid.UUID, month, reason string) error {
	return m.dispute(ctx, guideID, month, reason)
}

type pingFunc func(ctx context.Context) error

func (f pingFunc) Ping(ctx context.Context) error { return f(ctx) }

// compile-time checks: the mocks must satisfy the handler interfaces.
var (
	_ handler.GuideServicer    = (*mockGuideServicer)(nil)
	_ handler.TripServicer     = (*mockTripServicer)(nil)
	_ handler.ReportServicer   = (*mockReportServicer)(nil)
	_ handler.EarningsServicer = (*mockEarningsServicer)(nil)
)

// ---- helpers ---------------------------------------------------------------

var (
	adminActor = domain.Actor{AccountID: uuid.New(), Role: domain.RoleAdmin}
	guideID    = uuid.New()
	userActor  = domain.Actor{AccountID: uuid.New(), Role: domain.RoleUser, GuideID: &guideID}
)

// fakeAuth stands in for the JWT middleware: it stores a when non-nil and
// answers 401 otherwise.
func fakeAuth(a *domain.Actor) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if a == nil {
				w.WriteHeader(http.StatusUnauthorized)
				return
			}
			next.ServeHTTP(w, r.WithContext(middleware.WithActor(r.Context(), *a)))
		})
	}
}

// newHTTPHandler wires a Server with the given mocks into the router, the same
// way main.go wires it in production.
func newHTTPHandler(svc handler.Services, as *domain.Actor) http.Handler {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return handler.NewServer(svc, []byte("openapi: 3.0.3\n"), logger).Routes(fakeAuth(as))
}

func do(h http.Handler, method, target string, body io.Reader) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, target, body)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func jsonBody(t *testing.T, v any) *bytes.Buffer {
	t.Helper()
	b, err := json.Marshal(v)
	require.NoError(t, err)
	return bytes.NewBuffer(b)
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) handler.ErrorDetail {
	t.Helper()
	var resp handler.ErrorResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	return resp.Error
}

// mockExportServicer is a test double for handler.ExportServicer.
type mockExportServicer struct {
	export func(ctx context.Context, start, end string) ([]domain.ExportRow, error)
}

func (m *mockExportServicer) Export(ctx context.Context, start, end string) ([]domain.ExportRow, error) {
	return m.export(ctx, start, end)
}

var _ handler.ExportServicer = (*mockExportServicer)(nil)
