// Package earnings computes guide fees from an immutable rate table.
// The table is built once at startup and injected into a Calculator;
// nothing in this package holds mutable package-level state.
package earnings

import (
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/GideonLangenhoven/CKACashups/internal/domain"
)

// MaxPax is the largest pax count with its own row. Larger groups reuse it.
const MaxPax = 24

// Rates is one row of the rate table: the trip-leader fee plus each rank's flat fee.
type Rates struct {
	TripLeader   decimal.Decimal
	Senior       decimal.Decimal
	Intermediate decimal.Decimal
	Junior       decimal.Decimal
	Trainee      decimal.Decimal
}

// ForRank returns the flat fee for rank. Unknown ranks return false.
func (r Rates) ForRank(rank domain.Rank) (decimal.Decimal, bool) {
	switch rank {
	case domain.RankSenior:
		return r.Senior, true
	case domain.RankIntermediate:
		return r.Intermediate, true
	case domain.RankJunior:
		return r.Junior, true
	case domain.RankTrainee:
		return r.Trainee, true
	}
	return decimal.Zero, false
}

// RateTable maps a pax count to its Rates. The zero value is an empty table.
// A RateTable is never modified after construction; Row returns copies.
type RateTable struct {
	rows map[int]Rates
}

// NewRateTable copies rows into a new table. Every pax count from 1 to MaxPax
// must be present, otherwise the returned error wraps domain.ErrConfiguration.
func NewRateTable(rows map[int]Rates) (RateTable, error) {
	copied := make(map[int]Rates, len(rows))
	for pax, r := range rows {
		copied[pax] = r
	}
	for pax := 1; pax <= MaxPax; pax++ {
		if _, ok := copied[pax]; !ok {
			return RateTable{}, fmt.Errorf("%w: no earnings rate defined for %d pax", domain.ErrConfiguration, pax)
		}
	}
	return RateTable{rows: copied}, nil
}

// Row returns the rates for an exact pax count.
func (t RateTable) Row(pax int) (Rates, bool) {
	r, ok := t.rows[pax]
	return r, ok
}

func row(leader, senior, intermediate, junior, trainee int64) Rates {
	return Rates{
		TripLeader:   decimal.NewFromInt(leader),
		Senior:       decimal.NewFromInt(senior),
		Intermediate: decimal.NewFromInt(intermediate),
		Junior:       decimal.NewFromInt(junior),
		Trainee:      decimal.NewFromInt(trainee),
	}
}

// DefaultRateTable returns the production fee schedule, in Rand.
// Juniors earn nothing below 4 pax; the leader fee steps at 3, 5 and 20 pax.
func DefaultRateTable() RateTable {
	rows := map[int]Rates{
		1: row(500, 500, 530, 0, 200),
		2: row(700, 700, 530, 0, 200),
		3: row(820, 700, 530, 0, 200),
		4: row(820, 700, 530, 350, 200),
	}
	for pax := 5; pax <= 19; pax++ {
		rows[pax] = row(780, 700, 530, 300, 200)
	}
	for pax := 20; pax <= MaxPax; pax++ {
		rows[pax] = row(800, 700, 500, 300, 200)
	}
	t, err := NewRateTable(rows)
	if err != nil {
		panic("earnings: default rate table is incomplete: " + err.Error())
	}
	return t
}
