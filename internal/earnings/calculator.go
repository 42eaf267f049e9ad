package earnings

import (
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/GideonLangenhoven/CKACashups/internal/domain"
)

// Calculator turns a pax count and a guide's rank into a fee.
// It is safe for concurrent use.
type Calculator struct {
	table RateTable
}

// NewCalculator returns a Calculator over the given table.
func NewCalculator(table RateTable) *Calculator {
	return &Calculator{table: table}
}

// Fee returns the amount a guide of the given rank earns on a trip with paxCount
// passengers. Counts above MaxPax use the MaxPax row.
//
// The trip-leader fee applies only to SENIOR and INTERMEDIATE guides; a JUNIOR
// or TRAINEE marked as leader is paid their normal rank rate.
func (c *Calculator) Fee(paxCount int, rank domain.Rank, isTripLeader bool) (decimal.Decimal, error) {
	if paxCount < 1 {
		return decimal.Zero, domain.Validationf("pax count must be at least 1, got %d", paxCount)
	}
	effective := min(paxCount, MaxPax)

	rates, ok := c.table.Row(effective)
	if !ok {
		return decimal.Zero, fmt.Errorf("earnings.Calculator.Fee: %w: no earnings rate defined for %d pax", domain.ErrConfiguration, effective)
	}

	if isTripLeader && rank.CanLeadTrips() {
		return rates.TripLeader.Round(2), nil
	}

	fee, ok := rates.ForRank(rank)
	if !ok {
		return decimal.Zero, domain.Validationf("unknown rank %q", rank)
	}
	return fee.Round(2), nil
}

// GuideRank pairs a guide with the rank it holds when fees are computed.
type GuideRank struct {
	ID   uuid.UUID
	Rank domain.Rank
}

// TripFees computes the fee for every guide on a trip. The guide whose ID equals
// leaderID (if any) is treated as the trip leader.
func (c *Calculator) TripFees(paxCount int, guides []GuideRank, leaderID *uuid.UUID) (map[uuid.UUID]decimal.Decimal, error) {
	fees := make(map[uuid.UUID]decimal.Decimal, len(guides))
	for _, g := range guides {
		isLeader := leaderID != nil && *leaderID == g.ID
		fee, err := c.Fee(paxCount, g.Rank, isLeader)
		if err != nil {
			return nil, err
		}
		fees[g.ID] = fee
	}
	return fees, nil
}
