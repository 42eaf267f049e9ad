// Package service contains the business logic for the cash-up API.
// Services validate inputs, enforce business rules, and orchestrate repo calls.
// No SQL lives here: services depend on repo interfaces, not implementations.
package service

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/GideonLangenhoven/CKACashups/internal/domain"
	"github.com/GideonLangenhoven/CKACashups/internal/earnings"
	"github.com/GideonLangenhoven/CKACashups/internal/repo"
)

const (
	maxLeadNameLen = 120
	maxReasonLen   = 200
)

// TripService implements the cash-up ledger: creation with persisted guide
// fees, scoped listing, and the review status machine.
type TripService struct {
	tx     repo.TxRunner
	trips  repo.TripRepo
	calc   *earnings.Calculator
	logger *slog.Logger
}

// NewTripService constructs a TripService. trips serves reads outside a transaction.
func NewTripService(tx repo.TxRunner, trips repo.TripRepo, calc *earnings.Calculator, logger *slog.Logger) *TripService {
	return &TripService{tx: tx, trips: trips, calc: calc, logger: logger}
}

// Create validates the input, computes every assigned guide's fee once from
// the trip's total pax and the guide's current rank, and stores the trip with
// all its children in one transaction.
func (s *TripService) Create(ctx context.Context, actor domain.Actor, in domain.TripInput) (domain.Trip, error) {
	trip, err := newTrip(actor, in)
	if err != nil {
		return domain.Trip{}, err
	}

	var out domain.Trip
	err = s.tx.InTx(ctx, func(st repo.Store) error {
		if err := s.assignGuides(ctx, st, &trip, in.Guides); err != nil {
			return err
		}
		created, err := st.Trips.Create(ctx, trip)
		if err != nil {
			return err
		}
		out = created
		return record(ctx, st, actor, "trip.create", "trip", created.ID)
	})
	if err != nil {
		return domain.Trip{}, fmt.Errorf("service.TripService.Create: %w", err)
	}
	s.logger.InfoContext(ctx, "trip_created", "trip_id", out.ID, "account_id", actor.AccountID, "lead_name", out.LeadName)
	return out, nil
}

// assignGuides loads the guides named in inputs and fills trip.Guides with
// their rank snapshot and fee.
func (s *TripService) assignGuides(ctx context.Context, st repo.Store, trip *domain.Trip, inputs []domain.TripGuideInput) error {
	if len(inputs) == 0 {
		return nil
	}
	ids := make([]uuid.UUID, len(inputs))
	for i, in := range inputs {
		ids[i] = in.GuideID
	}
	found, err := st.Guides.GetMany(ctx, ids)
	if err != nil {
		return err
	}
	byID := make(map[uuid.UUID]domain.Guide, len(found))
	for _, g := range found {
		byID[g.ID] = g
	}

	ranks := make([]earnings.GuideRank, 0, len(inputs))
	for _, in := range inputs {
		g, ok := byID[in.GuideID]
		if !ok {
			return domain.Validationf("guide %s does not exist", in.GuideID)
		}
		if !g.Active {
			return domain.Validationf("guide %s is not active", g.Name)
		}
		ranks = append(ranks, earnings.GuideRank{ID: g.ID, Rank: g.Rank})
	}

	fees, err := s.calc.TripFees(trip.TotalPax, ranks, trip.TripLeaderID)
	if err != nil {
		return err
	}

	trip.Guides = make([]domain.TripGuide, 0, len(inputs))
	for _, in := range inputs {
		g := byID[in.GuideID]
		pax := in.Pax
		if pax <= 0 {
			pax = trip.TotalPax
		}
		trip.Guides = append(trip.Guides, domain.TripGuide{
			GuideID:   g.ID,
			GuideName: g.Name,
			GuideRank: g.Rank,
			PaxCount:  pax,
			FeeAmount: fees[g.ID],
		})
	}
	return nil
}

// Get returns a trip the actor may see: admins see every trip, others see
// trips they created or were assigned to.
func (s *TripService) Get(ctx context.Context, actor domain.Actor, id uuid.UUID) (domain.Trip, error) {
	trip, err := s.trips.Get(ctx, id)
	if err != nil {
		return domain.Trip{}, fmt.Errorf("service.TripService.Get: %w", err)
	}
	if !canSee(actor, trip) {
		return domain.Trip{}, fmt.Errorf("service.TripService.Get: %w", domain.ErrForbidden)
	}
	return trip, nil
}

// List returns one page of trips visible to the actor, newest first.
// filter.All is honoured for admins only. Always returns a non-nil slice.
func (s *TripService) List(ctx context.Context, actor domain.Actor, filter domain.TripFilter, page domain.PaginationParams) ([]domain.Trip, int64, error) {
	if filter.Status != "" {
		if _, err := domain.ParseTripStatus(string(filter.Status)); err != nil {
			return nil, 0, err
		}
	}
	if filter.Start != nil && filter.End != nil && filter.Start.After(*filter.End) {
		return nil, 0, domain.Validationf("start must not be after end")
	}
	if filter.End != nil {
		// end dates are inclusive of the whole day
		e := time.Date(filter.End.Year(), filter.End.Month(), filter.End.Day(), 23, 59, 59, int(999*time.Millisecond), time.UTC)
		filter.End = &e
	}
	filter.Lead = strings.TrimSpace(filter.Lead)
	filter.Note = strings.TrimSpace(filter.Note)

	scope := repo.TripScope{
		All:       filter.All && actor.IsAdmin(),
		AccountID: actor.AccountID,
		GuideID:   actor.GuideID,
	}
	trips, total, err := s.trips.List(ctx, filter, scope, page)
	if err != nil {
		return nil, 0, fmt.Errorf("service.TripService.List: %w", err)
	}
	if trips == nil {
		trips = []domain.Trip{}
	}
	return trips, total, nil
}

// Delete removes a trip. Owners may delete their own drafts; admins may delete any trip.
func (s *TripService) Delete(ctx context.Context, actor domain.Actor, id uuid.UUID) error {
	err := s.tx.InTx(ctx, func(st repo.Store) error {
		trip, err := st.Trips.Get(ctx, id)
		if err != nil {
			return err
		}
		owner := trip.CreatedByID == actor.AccountID
		if !actor.IsAdmin() && !(owner && trip.Status == domain.TripDraft) {
			return domain.ErrForbidden
		}
		if err := st.Trips.Delete(ctx, id); err != nil {
			return err
		}
		return record(ctx, st, actor, "trip.delete", "trip", id)
	})
	if err != nil {
		return fmt.Errorf("service.TripService.Delete: %w", err)
	}
	s.logger.InfoContext(ctx, "trip_deleted", "trip_id", id, "account_id", actor.AccountID)
	return nil
}

// Transition moves a trip to status to. Only the owner's DRAFT→SUBMITTED is
// open to non-admins; an invalid move is a validation error and a disallowed
// one is forbidden.
func (s *TripService) Transition(ctx context.Context, actor domain.Actor, id uuid.UUID, to domain.TripStatus) (domain.Trip, error) {
	to, err := domain.ParseTripStatus(string(to))
	if err != nil {
		return domain.Trip{}, err
	}

	var out domain.Trip
	err = s.tx.InTx(ctx, func(st repo.Store) error {
		trip, err := st.Trips.Get(ctx, id)
		if err != nil {
			return err
		}
		if !trip.Status.CanTransition(to, true, true) {
			return domain.Validationf("cannot move trip from %s to %s", trip.Status, to)
		}
		owner := trip.CreatedByID == actor.AccountID
		if !trip.Status.CanTransition(to, actor.IsAdmin(), owner) {
			return domain.ErrForbidden
		}
		if err := st.Trips.UpdateStatus(ctx, id, to); err != nil {
			return err
		}
		trip.Status = to
		out = trip
		return record(ctx, st, actor, "trip.status."+strings.ToLower(string(to)), "trip", id)
	})
	if err != nil {
		return domain.Trip{}, fmt.Errorf("service.TripService.Transition: %w", err)
	}
	s.logger.InfoContext(ctx, "trip_status_changed", "trip_id", id, "status", to)
	return out, nil
}

func canSee(actor domain.Actor, trip domain.Trip) bool {
	if actor.IsAdmin() || trip.CreatedByID == actor.AccountID {
		return true
	}
	if actor.GuideID == nil {
		return false
	}
	_, assigned := trip.GuideAssignment(*actor.GuideID)
	return assigned
}

// newTrip validates in and builds the trip to insert, without guides.
func newTrip(actor domain.Actor, in domain.TripInput) (domain.Trip, error) {
	var problems []string
	addf := func(format string, args ...any) { problems = append(problems, fmt.Sprintf(format, args...)) }

	lead := strings.TrimSpace(in.LeadName)
	if in.TripDate.IsZero() {
		addf("trip date is required")
	}
	if lead == "" {
		addf("lead name is required")
	} else if len(lead) > maxLeadNameLen {
		addf("lead name must be at most %d characters", maxLeadNameLen)
	}
	if in.TotalPax < 0 {
		addf("total pax must not be negative")
	}
	if len(in.Guides) > 0 && in.TotalPax < 1 {
		addf("total pax must be at least 1 when guides are assigned")
	}

	status := in.Status
	if status == "" {
		status = domain.TripDraft
	}
	if status != domain.TripDraft && status != domain.TripSubmitted {
		addf("a new trip must be DRAFT or SUBMITTED, got %q", status)
	}

	seen := make(map[uuid.UUID]bool, len(in.Guides))
	for _, g := range in.Guides {
		if seen[g.GuideID] {
			addf("guide %s is assigned twice", g.GuideID)
		}
		seen[g.GuideID] = true
		if g.Pax < 0 {
			addf("guide pax must not be negative")
		}
	}
	if in.TripLeaderID != nil && !seen[*in.TripLeaderID] {
		addf("trip leader must be one of the assigned guides")
	}

	p := in.Payments
	for i, amt := range append(p.Channels(), p.DiscountsTotal) {
		if amt.IsNegative() {
			addf("payment amounts must not be negative (field %d)", i+1)
			break
		}
	}
	lines := decimal.Zero
	for _, d := range in.Discounts {
		reason := strings.TrimSpace(d.Reason)
		if reason == "" || len(reason) > maxReasonLen {
			addf("discount reason must be 1 to %d characters", maxReasonLen)
		}
		if !d.Amount.IsPositive() {
			addf("discount amounts must be positive")
		}
		lines = lines.Add(d.Amount)
	}
	if p.DiscountsTotal.IsZero() {
		p.DiscountsTotal = lines
	}

	if len(problems) > 0 {
		return domain.Trip{}, domain.Validationf("%s", strings.Join(problems, "; "))
	}

	discounts := make([]domain.DiscountLine, len(in.Discounts))
	for i, d := range in.Discounts {
		discounts[i] = domain.DiscountLine{Amount: d.Amount.Round(2), Reason: strings.TrimSpace(d.Reason)}
	}
	return domain.Trip{
		TripDate:      in.TripDate.UTC(),
		LeadName:      lead,
		PaxGuideNote:  strings.TrimSpace(in.PaxGuideNote),
		TotalPax:      in.TotalPax,
		Status:        status,
		TripLeaderID:  in.TripLeaderID,
		PaymentsMade:  in.PaymentsMade,
		PicsUploaded:  in.PicsUploaded,
		TripEmailSent: in.TripEmailSent,
		TripReport:    in.TripReport,
		Suggestions:   in.Suggestions,
		CreatedByID:   actor.AccountID,
		Payments:      p,
		Discounts:     discounts,
	}, nil
}
