// Package domain contains the core data types for the cash-up application:
// guides, accounts, trips and their payment breakdowns.
// It depends only on uuid and decimal and is imported by every other
// internal package (repo, service, handler).
package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// TripStatus is the review state of a cash-up.
type TripStatus string

const (
	TripDraft     TripStatus = "DRAFT"
	TripSubmitted TripStatus = "SUBMITTED"
	TripApproved  TripStatus = "APPROVED"
	TripRejected  TripStatus = "REJECTED"
	TripLocked    TripStatus = "LOCKED"
)

// tripTransitions lists the allowed forward moves from each status.
var tripTransitions = map[TripStatus][]TripStatus{
	TripDraft:     {TripSubmitted},
	TripSubmitted: {TripApproved, TripRejected},
	TripApproved:  {TripLocked},
	TripRejected:  {TripLocked},
}

// ParseTripStatus validates a status name.
func ParseTripStatus(s string) (TripStatus, error) {
	st := TripStatus(s)
	switch st {
	case TripDraft, TripSubmitted, TripApproved, TripRejected, TripLocked:
		return st, nil
	}
	return "", Validationf("unknown trip status %q", s)
}

// CanTransition reports whether a trip may move from s to next.
// Only DRAFT→SUBMITTED is open to the trip's owner; every other move is admin-only.
func (s TripStatus) CanTransition(next TripStatus, admin, owner bool) bool {
	allowed := false
	for _, to := range tripTransitions[s] {
		if to == next {
			allowed = true
			break
		}
	}
	if !allowed {
		return false
	}
	if admin {
		return true
	}
	return owner && s == TripDraft && next == TripSubmitted
}

// Trip is a single cash-up record for a completed trip.
// Payments, Discounts and Guides belong to the trip and are deleted with it.
type Trip struct {
	ID            uuid.UUID        `json:"id"`
	TripDate      time.Time        `json:"trip_date"`
	LeadName      string           `json:"lead_name"`
	PaxGuideNote  string           `json:"pax_guide_note,omitempty"`
	TotalPax      int              `json:"total_pax"`
	Status        TripStatus       `json:"status"`
	TripLeaderID  *uuid.UUID       `json:"trip_leader_id,omitempty"`
	PaymentsMade  bool             `json:"payments_made"`
	PicsUploaded  bool             `json:"pics_uploaded"`
	TripEmailSent bool             `json:"trip_email_sent"`
	TripReport    string           `json:"trip_report,omitempty"`
	Suggestions   string           `json:"suggestions,omitempty"`
	CreatedByID   uuid.UUID        `json:"created_by_id"`
	CreatedBy     string           `json:"created_by,omitempty"` // creator email, filled by report queries
	Payments      PaymentBreakdown `json:"payments"`
	Discounts     []DiscountLine   `json:"discounts"`
	Guides        []TripGuide      `json:"guides"`
	CreatedAt     time.Time        `json:"created_at"`
	UpdatedAt     time.Time        `json:"updated_at"`
}

// GuideAssignment returns the trip's assignment for guideID, if any.
func (t Trip) GuideAssignment(guideID uuid.UUID) (TripGuide, bool) {
	for _, g := range t.Guides {
		if g.GuideID == guideID {
			return g, true
		}
	}
	return TripGuide{}, false
}

// TripGuide records one guide's participation in a trip.
// FeeAmount is fixed when the trip is created and never recomputed.
type TripGuide struct {
	ID        uuid.UUID       `json:"id"`
	TripID    uuid.UUID       `json:"trip_id"`
	GuideID   uuid.UUID       `json:"guide_id"`
	GuideName string          `json:"guide_name"`
	GuideRank Rank            `json:"guide_rank"`
	PaxCount  int             `json:"pax_count"`
	FeeAmount decimal.Decimal `json:"fee_amount"`
}

// PaymentBreakdown itemizes the money collected on a trip.
type PaymentBreakdown struct {
	CashReceived       decimal.Decimal `json:"cash_received"`
	CreditCards        decimal.Decimal `json:"credit_cards"`
	OnlineEFTs         decimal.Decimal `json:"online_efts"`
	Vouchers           decimal.Decimal `json:"vouchers"`
	Members            decimal.Decimal `json:"members"`
	AgentsToInvoice    decimal.Decimal `json:"agents_to_invoice"`
	WaterPhoneSunblock decimal.Decimal `json:"water_phone_sunblock"`
	DiscountsTotal     decimal.Decimal `json:"discounts_total"`
}

// Channels returns the named payment channels in display order, discounts excluded.
func (p PaymentBreakdown) Channels() []decimal.Decimal {
	return []decimal.Decimal{
		p.CashReceived, p.CreditCards, p.OnlineEFTs, p.Vouchers,
		p.Members, p.AgentsToInvoice, p.WaterPhoneSunblock,
	}
}

// DiscountLine is a single discount given on a trip.
type DiscountLine struct {
	ID     uuid.UUID       `json:"id"`
	Amount decimal.Decimal `json:"amount"`
	Reason string          `json:"reason"`
}

// TripGuideInput names a guide to assign to a new trip. Pax defaults to the trip's TotalPax.
type TripGuideInput struct {
	GuideID uuid.UUID
	Pax     int
}

// TripInput carries the fields a guide submits when creating a cash-up.
type TripInput struct {
	TripDate      time.Time
	LeadName      string
	PaxGuideNote  string
	TotalPax      int
	TripLeaderID  *uuid.UUID
	PaymentsMade  bool
	PicsUploaded  bool
	TripEmailSent bool
	TripReport    string
	Suggestions   string
	Status        TripStatus
	Guides        []TripGuideInput
	Payments      PaymentBreakdown
	Discounts     []DiscountLine
}

// TripFilter narrows a trip listing. Zero values mean "no filter".
type TripFilter struct {
	All    bool // admin-only: include every trip
	Lead   string
	Status TripStatus
	Note   string
	Start  *time.Time
	End    *time.Time
}
