package service

import (
	"context"
	"fmt"

	"github.com/GideonLangenhoven/CKACashups/internal/aggregate"
	"github.com/GideonLangenhoven/CKACashups/internal/domain"
	"github.com/GideonLangenhoven/CKACashups/internal/period"
	"github.com/GideonLangenhoven/CKACashups/internal/repo"
)

// ExportService assembles a flat export of the trips in a date range.
type ExportService struct {
	trips repo.TripRepo
}

// NewExportService constructs an ExportService backed by the trip repository.
func NewExportService(trips repo.TripRepo) *ExportService {
	return &ExportService{trips: trips}
}

// Export returns one ExportRow per trip dated between start and end
// (inclusive, "2006-01-02"), in date order. Always returns a non-nil slice.
func (s *ExportService) Export(ctx context.Context, start, end string) ([]domain.ExportRow, error) {
	r, err := period.Custom(start, end)
	if err != nil {
		return nil, err
	}
	trips, err := s.trips.FindTripsInRange(ctx, r.Start, r.End)
	if err != nil {
		return nil, fmt.Errorf("service.ExportService.Export: %w", err)
	}
	return aggregate.ExportRows(trips), nil
}
