package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// ExportRow is a single row in the flat cash-up export.
// It is a denormalized view: one row per trip, with the guide roster folded
// into a name list and per-rank counts, and every payment channel as its own column.
type ExportRow struct {
	TripDate  time.Time  `json:"trip_date"`
	Status    TripStatus `json:"status"`
	LeadName  string     `json:"lead_name"`
	TotalPax  int        `json:"total_pax"`
	PaxNote   string     `json:"pax_note,omitempty"`
	CreatedBy string     `json:"created_by,omitempty"`

	// Guides is the comma-joined roster; RankCounts is the "S:n I:n J:n" summary.
	Guides     string `json:"guides"`
	RankCounts string `json:"rank_counts"`

	Payments PaymentBreakdown `json:"payments"`
	Total    decimal.Decimal  `json:"total"`
}
