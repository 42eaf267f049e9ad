package repo_test

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/GideonLangenhoven/CKACashups/internal/domain"
	"github.com/GideonLangenhoven/CKACashups/internal/repo"
)

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func mustAccount(t *testing.T, s repo.Store, email string, guideID *uuid.UUID) domain.Account {
	t.Helper()
	a, err := s.Accounts.Create(context.Background(), domain.Account{
		Email: email, Name: email, Role: domain.RoleUser, Active: true, GuideID: guideID,
	})
	require.NoError(t, err)
	return a
}

// tripFixture returns a 12-pax trip led by leader with one assisting junior.
// Callers can override individual fields after calling this function.
func tripFixture(creator domain.Account, leader, junior domain.Guide, date time.Time) domain.Trip {
	return domain.Trip{
		TripDate:     date,
		LeadName:     "Smith party",
		TotalPax:     12,
		Status:       domain.TripDraft,
		TripLeaderID: &leader.ID,
		CreatedByID:  creator.ID,
		Payments: domain.PaymentBreakdown{
			CashReceived:       dec("1200.50"),
			CreditCards:        dec("300"),
			OnlineEFTs:         dec("0"),
			Vouchers:           dec("0"),
			Members:            dec("0"),
			AgentsToInvoice:    dec("0"),
			WaterPhoneSunblock: dec("45"),
			DiscountsTotal:     dec("50"),
		},
		Discounts: []domain.DiscountLine{{Amount: dec("50"), Reason: "repeat customer"}},
		Guides: []domain.TripGuide{
			{GuideID: leader.ID, GuideRank: leader.Rank, PaxCount: 12, FeeAmount: dec("780")},
			{GuideID: junior.ID, GuideRank: junior.Rank, PaxCount: 12, FeeAmount: dec("300")},
		},
	}
}

type tripWorld struct {
	store   repo.Store
	creator domain.Account
	leader  domain.Guide
	junior  domain.Guide
}

func newTripWorld(t *testing.T) tripWorld {
	t.Helper()
	s := newTestStore(t)
	leader := mustGuide(t, s, "Anele", domain.RankSenior, nil)
	junior := mustGuide(t, s, "Bongani", domain.RankJunior, nil)
	creator := mustAccount(t, s, "creator@example.com", &leader.ID)
	return tripWorld{store: s, creator: creator, leader: leader, junior: junior}
}

func TestTripRepo_CreateAndGet(t *testing.T) {
	w := newTripWorld(t)
	ctx := context.Background()
	date := time.Date(2025, 6, 10, 9, 0, 0, 0, time.UTC)

	created, err := w.store.Trips.Create(ctx, tripFixture(w.creator, w.leader, w.junior, date))
	require.NoError(t, err)
	assert.NotEqual(t, uuid.Nil, created.ID)

	got, err := w.store.Trips.Get(ctx, created.ID)
	require.NoError(t, err)
	assert.True(t, got.TripDate.Equal(date))
	assert.Equal(t, "creator@example.com", got.CreatedBy)
	assert.True(t, dec("1200.50").Equal(got.Payments.CashReceived))
	assert.True(t, dec("45").Equal(got.Payments.WaterPhoneSunblock))
	require.Len(t, got.Discounts, 1)
	assert.Equal(t, "repeat customer", got.Discounts[0].Reason)
	require.Len(t, got.Guides, 2)
	assert.Equal(t, "Anele", got.Guides[0].GuideName)
	assert.True(t, dec("780").Equal(got.Guides[0].FeeAmount))
	assert.True(t, dec("300").Equal(got.Guides[1].FeeAmount))
	require.NotNil(t, got.TripLeaderID)
	assert.Equal(t, w.leader.ID, *got.TripLeaderID)
}

func TestTripRepo_Get_NotFound(t *testing.T) {
	s := newTestStore(t)

	_, err := s.Trips.Get(context.Background(), uuid.New())

	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestTripRepo_FindTripsInRange_Ascending(t *testing.T) {
	w := newTripWorld(t)
	ctx := context.Background()
	for _, d := range []int{20, 5, 12} {
		_, err := w.store.Trips.Create(ctx, tripFixture(w.creator, w.leader, w.junior, time.Date(2031, 3, d, 8, 0, 0, 0, time.UTC)))
		require.NoError(t, err)
	}

	trips, err := w.store.Trips.FindTripsInRange(ctx,
		time.Date(2031, 3, 1, 0, 0, 0, 0, time.UTC),
		time.Date(2031, 3, 15, 23, 59, 59, 0, time.UTC))

	require.NoError(t, err)
	require.Len(t, trips, 2)
	assert.Equal(t, 5, trips[0].TripDate.Day())
	assert.Equal(t, 12, trips[1].TripDate.Day())
	assert.Len(t, trips[0].Guides, 2)
}

func TestTripRepo_FindTripsForGuideInRange(t *testing.T) {
	w := newTripWorld(t)
	ctx := context.Background()
	other := mustGuide(t, w.store, "Other", domain.RankSenior, nil)

	trip := tripFixture(w.creator, w.leader, w.junior, time.Date(2031, 4, 2, 8, 0, 0, 0, time.UTC))
	_, err := w.store.Trips.Create(ctx, trip)
	require.NoError(t, err)

	start := time.Date(2031, 4, 1, 0, 0, 0, 0, time.UTC)
	end := time.Date(2031, 4, 30, 0, 0, 0, 0, time.UTC)

	mine, err := w.store.Trips.FindTripsForGuideInRange(ctx, w.junior.ID, start, end)
	require.NoError(t, err)
	assert.Len(t, mine, 1)

	none, err := w.store.Trips.FindTripsForGuideInRange(ctx, other.ID, start, end)
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestTripRepo_List_ScopeAndFilter(t *testing.T) {
	w := newTripWorld(t)
	ctx := context.Background()
	stranger := mustAccount(t, w.store, "stranger@example.com", nil)

	trip := tripFixture(w.creator, w.leader, w.junior, time.Date(2031, 5, 2, 8, 0, 0, 0, time.UTC))
	trip.LeadName = "Van der Merwe"
	_, err := w.store.Trips.Create(ctx, trip)
	require.NoError(t, err)
	page := domain.NewPaginationParams(nil, nil)

	// Assigned guide sees it without having created it.
	got, total, err := w.store.Trips.List(ctx, domain.TripFilter{Lead: "merwe"},
		repo.TripScope{AccountID: stranger.ID, GuideID: &w.junior.ID}, page)
	require.NoError(t, err)
	assert.EqualValues(t, 1, total)
	require.Len(t, got, 1)

	// Unrelated account sees nothing.
	_, total, err = w.store.Trips.List(ctx, domain.TripFilter{}, repo.TripScope{AccountID: stranger.ID}, page)
	require.NoError(t, err)
	assert.EqualValues(t, 0, total)

	// Status filter excludes it.
	_, total, err = w.store.Trips.List(ctx, domain.TripFilter{Lead: "merwe", Status: domain.TripApproved}, repo.TripScope{All: true}, page)
	require.NoError(t, err)
	assert.EqualValues(t, 0, total)
}

func TestTripRepo_UpdateStatusAndDeleteCascades(t *testing.T) {
	w := newTripWorld(t)
	ctx := context.Background()
	created, err := w.store.Trips.Create(ctx, tripFixture(w.creator, w.leader, w.junior, time.Now().UTC()))
	require.NoError(t, err)

	require.NoError(t, w.store.Trips.UpdateStatus(ctx, created.ID, domain.TripSubmitted))
	got, err := w.store.Trips.Get(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.TripSubmitted, got.Status)

	usage, err := w.store.Guides.Usage(ctx, w.leader.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, usage.TripGuides)
	assert.Equal(t, 1, usage.LedTrips)

	require.NoError(t, w.store.Trips.Delete(ctx, created.ID))
	usage, err = w.store.Guides.Usage(ctx, w.leader.ID)
	require.NoError(t, err)
	assert.False(t, usage.InUse())

	assert.ErrorIs(t, w.store.Trips.UpdateStatus(ctx, created.ID, domain.TripLocked), domain.ErrNotFound)
}

func TestAccountRepo_HistoryCountsTripsAndAudit(t *testing.T) {
	w := newTripWorld(t)
	ctx := context.Background()

	h, err := w.store.Accounts.History(ctx, w.creator.ID)
	require.NoError(t, err)
	assert.True(t, h.Empty())

	_, err = w.store.Trips.Create(ctx, tripFixture(w.creator, w.leader, w.junior, time.Now().UTC()))
	require.NoError(t, err)
	require.NoError(t, w.store.Audit.Record(ctx, repo.AuditEntry{ActorID: &w.creator.ID, Action: "create", Entity: "trip"}))

	h, err = w.store.Accounts.History(ctx, w.creator.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, h.Trips)
	assert.Equal(t, 1, h.AuditLogs)
	assert.False(t, h.Empty())
}

func TestAccountRepo_FindByEmailAndGuide(t *testing.T) {
	w := newTripWorld(t)
	ctx := context.Background()

	byEmail, err := w.store.Accounts.FindByEmail(ctx, "CREATOR@example.com")
	require.NoError(t, err)
	assert.Equal(t, w.creator.ID, byEmail.ID)

	byGuide, err := w.store.Accounts.FindByGuideID(ctx, w.leader.ID)
	require.NoError(t, err)
	assert.Equal(t, w.creator.ID, byGuide.ID)

	_, err = w.store.Accounts.FindByGuideID(ctx, w.junior.ID)
	assert.ErrorIs(t, err, domain.ErrNotFound)
}
