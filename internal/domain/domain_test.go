package domain_test

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/GideonLangenhoven/CKACashups/internal/domain"
)

func intPtr(v int) *int { return &v }

func TestNewPaginationParams(t *testing.T) {
	tests := []struct {
		name        string
		page, limit *int
		want        domain.PaginationParams
		wantOffset  int
	}{
		{"defaults", nil, nil, domain.PaginationParams{Page: 1, Limit: 20}, 0},
		{"explicit", intPtr(3), intPtr(10), domain.PaginationParams{Page: 3, Limit: 10}, 20},
		{"capped", intPtr(1), intPtr(500), domain.PaginationParams{Page: 1, Limit: 100}, 0},
		{"non-positive ignored", intPtr(0), intPtr(-5), domain.PaginationParams{Page: 1, Limit: 20}, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := domain.NewPaginationParams(tt.page, tt.limit)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, tt.wantOffset, got.Offset())
		})
	}
}

func TestTripStatus_CanTransition(t *testing.T) {
	tests := []struct {
		from, to     domain.TripStatus
		admin, owner bool
		want         bool
	}{
		{domain.TripDraft, domain.TripSubmitted, false, true, true},
		{domain.TripDraft, domain.TripSubmitted, false, false, false},
		{domain.TripSubmitted, domain.TripApproved, false, true, false},
		{domain.TripSubmitted, domain.TripApproved, true, false, true},
		{domain.TripSubmitted, domain.TripRejected, true, false, true},
		{domain.TripApproved, domain.TripLocked, true, false, true},
		{domain.TripLocked, domain.TripDraft, true, false, false},
		{domain.TripDraft, domain.TripApproved, true, false, false},
	}
	for _, tt := range tests {
		t.Run(string(tt.from)+"->"+string(tt.to), func(t *testing.T) {
			assert.Equal(t, tt.want, tt.from.CanTransition(tt.to, tt.admin, tt.owner))
		})
	}
}

func TestParseTripStatus(t *testing.T) {
	st, err := domain.ParseTripStatus("LOCKED")
	require.NoError(t, err)
	assert.Equal(t, domain.TripLocked, st)

	_, err = domain.ParseTripStatus("locked")
	assert.ErrorIs(t, err, domain.ErrValidation)
}

func TestParseRank(t *testing.T) {
	r, err := domain.ParseRank("  intermediate ")
	require.NoError(t, err)
	assert.Equal(t, domain.RankIntermediate, r)
	assert.Equal(t, 3, r.Level())
	assert.True(t, r.CanLeadTrips())
	assert.False(t, domain.RankJunior.CanLeadTrips())

	_, err = domain.ParseRank("captain")
	assert.ErrorIs(t, err, domain.ErrValidation)
}

func TestPlaceholderEmail(t *testing.T) {
	id := uuid.MustParse("7b1c9f0e-3c1a-4d7e-9a55-2f4c3b2a1d00")

	assert.Equal(t, "placeholder_7b1c9f0e-3c1a-4d7e-9a55-2f4c3b2a1d00@removed.local", domain.PlaceholderEmail(id))
	assert.Equal(t, "ayanda@example.com", domain.NormalizeEmail("  Ayanda@Example.COM "))
	assert.True(t, domain.AccountHistory{}.Empty())
	assert.False(t, domain.AccountHistory{AuditLogs: 1}.Empty())
}
