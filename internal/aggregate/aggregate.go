// Package aggregate computes report figures from trips that are already loaded.
// Every function is pure: inputs are never mutated and persisted fees are
// summed as stored, never recomputed.
package aggregate

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/GideonLangenhoven/CKACashups/internal/domain"
	"github.com/GideonLangenhoven/CKACashups/internal/period"
)

// TripTotal is every payment channel summed, less the trip's discounts.
func TripTotal(p domain.PaymentBreakdown) decimal.Decimal {
	total := decimal.Zero
	for _, c := range p.Channels() {
		total = total.Add(c)
	}
	return total.Sub(p.DiscountsTotal)
}

// GuideEarningsSummary is one row of the admin earnings overview.
type GuideEarningsSummary struct {
	GuideID        uuid.UUID       `json:"guide_id"`
	GuideName      string          `json:"guide_name"`
	Rank           domain.Rank     `json:"rank"`
	ThisWeekTrips  int             `json:"this_week_trips"`
	ThisWeekTotal  decimal.Decimal `json:"this_week_total"`
	ThisMonthTrips int             `json:"this_month_trips"`
	ThisMonthTotal decimal.Decimal `json:"this_month_total"`
}

// GuideEarnings sums guideID's fees on trips dated on or after weekStart and
// monthStart. Trips the guide was not assigned to are skipped.
func GuideEarnings(guideID uuid.UUID, trips []domain.Trip, weekStart, monthStart time.Time) GuideEarningsSummary {
	s := GuideEarningsSummary{
		GuideID:        guideID,
		ThisWeekTotal:  decimal.Zero,
		ThisMonthTotal: decimal.Zero,
	}
	for _, t := range trips {
		tg, ok := t.GuideAssignment(guideID)
		if !ok {
			continue
		}
		if s.GuideName == "" {
			s.GuideName, s.Rank = tg.GuideName, tg.GuideRank
		}
		if !t.TripDate.Before(weekStart) {
			s.ThisWeekTrips++
			s.ThisWeekTotal = s.ThisWeekTotal.Add(tg.FeeAmount)
		}
		if !t.TripDate.Before(monthStart) {
			s.ThisMonthTrips++
			s.ThisMonthTotal = s.ThisMonthTotal.Add(tg.FeeAmount)
		}
	}
	return s
}

// SortByWeekTotal orders overview rows by this week's earnings, highest first.
// Ties fall back to name so the order is stable across requests.
func SortByWeekTotal(rows []GuideEarningsSummary) {
	sort.SliceStable(rows, func(i, j int) bool {
		if c := rows[i].ThisWeekTotal.Cmp(rows[j].ThisWeekTotal); c != 0 {
			return c > 0
		}
		return rows[i].GuideName < rows[j].GuideName
	})
}

// PeriodTotal is a fee sum with the number of trips behind it.
type PeriodTotal struct {
	Trips int             `json:"trips"`
	Total decimal.Decimal `json:"total"`
}

func (p *PeriodTotal) add(fee decimal.Decimal) {
	p.Trips++
	p.Total = p.Total.Add(fee)
}

// PeriodEarnings is a guide's earnings for the calendar periods containing now.
type PeriodEarnings struct {
	Today     PeriodTotal `json:"today"`
	ThisMonth PeriodTotal `json:"this_month"`
	ThisYear  PeriodTotal `json:"this_year"`
	AllTime   PeriodTotal `json:"all_time"`
}

// EarningsByPeriod buckets guideID's fees by calendar day, month and year of now,
// all evaluated in loc.
func EarningsByPeriod(guideID uuid.UUID, trips []domain.Trip, now time.Time, loc *time.Location) PeriodEarnings {
	if loc == nil {
		loc = time.UTC
	}
	now = now.In(loc)
	out := PeriodEarnings{
		Today:     PeriodTotal{Total: decimal.Zero},
		ThisMonth: PeriodTotal{Total: decimal.Zero},
		ThisYear:  PeriodTotal{Total: decimal.Zero},
		AllTime:   PeriodTotal{Total: decimal.Zero},
	}
	for _, t := range trips {
		tg, ok := t.GuideAssignment(guideID)
		if !ok {
			continue
		}
		d := t.TripDate.In(loc)
		out.AllTime.add(tg.FeeAmount)
		if d.Year() != now.Year() {
			continue
		}
		out.ThisYear.add(tg.FeeAmount)
		if d.Month() != now.Month() {
			continue
		}
		out.ThisMonth.add(tg.FeeAmount)
		if d.Day() == now.Day() {
			out.Today.add(tg.FeeAmount)
		}
	}
	return out
}

// GuideTripLine is one trip in a guide's weekly report section.
type GuideTripLine struct {
	Date         string          `json:"date"`
	Time         string          `json:"time"`
	Cash         decimal.Decimal `json:"cash"`
	RunningTotal decimal.Decimal `json:"running_total"`
}

// GuideStat summarizes the cash collected on trips a guide worked.
type GuideStat struct {
	GuideID   uuid.UUID       `json:"guide_id"`
	Name      string          `json:"name"`
	Rank      domain.Rank     `json:"rank"`
	TripCount int             `json:"trip_count"`
	TotalCash decimal.Decimal `json:"total_cash"`
	Trips     []GuideTripLine `json:"trips"`
}

// GuideStats groups trips by assigned guide, in input order, and returns one
// entry per guide sorted by name. Each guide's lines carry a running cash total.
func GuideStats(trips []domain.Trip) []GuideStat {
	byGuide := make(map[uuid.UUID]*GuideStat)
	for _, t := range trips {
		utc := t.TripDate.UTC()
		cash := t.Payments.CashReceived
		for _, tg := range t.Guides {
			st, ok := byGuide[tg.GuideID]
			if !ok {
				st = &GuideStat{GuideID: tg.GuideID, Name: tg.GuideName, Rank: tg.GuideRank, TotalCash: decimal.Zero}
				byGuide[tg.GuideID] = st
			}
			st.TripCount++
			st.TotalCash = st.TotalCash.Add(cash)
			st.Trips = append(st.Trips, GuideTripLine{
				Date:         utc.Format(time.DateOnly),
				Time:         utc.Format("15:04"),
				Cash:         cash,
				RunningTotal: st.TotalCash,
			})
		}
	}

	out := make([]GuideStat, 0, len(byGuide))
	for _, st := range byGuide {
		out = append(out, *st)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Name != out[j].Name {
			return out[i].Name < out[j].Name
		}
		return out[i].GuideID.String() < out[j].GuideID.String()
	})
	return out
}

// TripRow is one line of a chronological trip table.
type TripRow struct {
	TripID       uuid.UUID         `json:"trip_id"`
	TripDate     time.Time         `json:"trip_date"`
	LeadName     string            `json:"lead_name"`
	TotalPax     int               `json:"total_pax"`
	Status       domain.TripStatus `json:"status"`
	RankCounts   RankCounts        `json:"rank_counts"`
	Total        decimal.Decimal   `json:"total"`
	RunningTotal decimal.Decimal   `json:"running_total"`
}

// RunningTotals orders trips by date ascending and accumulates their totals.
// The input slice is left untouched.
func RunningTotals(trips []domain.Trip) []TripRow {
	sorted := sortedByDate(trips)
	rows := make([]TripRow, 0, len(sorted))
	running := decimal.Zero
	for _, t := range sorted {
		total := TripTotal(t.Payments)
		running = running.Add(total)
		rows = append(rows, TripRow{
			TripID:       t.ID,
			TripDate:     t.TripDate,
			LeadName:     t.LeadName,
			TotalPax:     t.TotalPax,
			Status:       t.Status,
			RankCounts:   CountRanks(t),
			Total:        total,
			RunningTotal: running,
		})
	}
	return rows
}

func sortedByDate(trips []domain.Trip) []domain.Trip {
	sorted := make([]domain.Trip, len(trips))
	copy(sorted, trips)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].TripDate.Before(sorted[j].TripDate)
	})
	return sorted
}

// RankCounts is the number of senior, intermediate and junior guides on a trip.
// Trainees are not shown in the report tables.
type RankCounts struct {
	Senior       int `json:"senior"`
	Intermediate int `json:"intermediate"`
	Junior       int `json:"junior"`
}

// String renders the counts as "S:1 I:0 J:2".
func (r RankCounts) String() string {
	return fmt.Sprintf("S:%d I:%d J:%d", r.Senior, r.Intermediate, r.Junior)
}

// CountRanks tallies the guides on t by the rank recorded on each assignment.
func CountRanks(t domain.Trip) RankCounts {
	var rc RankCounts
	for _, g := range t.Guides {
		switch g.GuideRank {
		case domain.RankSenior:
			rc.Senior++
		case domain.RankIntermediate:
			rc.Intermediate++
		case domain.RankJunior:
			rc.Junior++
		}
	}
	return rc
}

// WeekTotal is one report week's trips and payment total.
type WeekTotal struct {
	Week  string          `json:"week"`
	Trips int             `json:"trips"`
	Total decimal.Decimal `json:"total"`
}

// Summary holds the headline figures of a period report.
type Summary struct {
	TotalTrips int                     `json:"total_trips"`
	TotalPax   int                     `json:"total_pax"`
	TotalCash  decimal.Decimal         `json:"total_cash"`
	TotalAll   decimal.Decimal         `json:"total_all_payments"`
	Channels   domain.PaymentBreakdown `json:"channels"`
	Weeks      []WeekTotal             `json:"weeks"`
	Rows       []TripRow               `json:"rows"`
	GuideStats []GuideStat             `json:"guide_stats"`
}

// Summarize builds the report summary for trips: totals, per-channel sums,
// report-week breakdown (ascending by week key), trip rows and guide stats.
func Summarize(trips []domain.Trip) Summary {
	s := Summary{
		TotalTrips: len(trips),
		TotalCash:  decimal.Zero,
		TotalAll:   decimal.Zero,
		Channels:   zeroBreakdown(),
		Rows:       RunningTotals(trips),
		GuideStats: GuideStats(sortedByDate(trips)),
	}
	weeks := make(map[string]*WeekTotal)
	for _, t := range trips {
		p := t.Payments
		s.TotalPax += t.TotalPax
		s.TotalCash = s.TotalCash.Add(p.CashReceived)
		total := TripTotal(p)
		s.TotalAll = s.TotalAll.Add(total)
		s.Channels = addBreakdown(s.Channels, p)

		key := period.ReportWeekKey(t.TripDate)
		w, ok := weeks[key]
		if !ok {
			w = &WeekTotal{Week: key, Total: decimal.Zero}
			weeks[key] = w
		}
		w.Trips++
		w.Total = w.Total.Add(total)
	}
	s.Weeks = make([]WeekTotal, 0, len(weeks))
	for _, w := range weeks {
		s.Weeks = append(s.Weeks, *w)
	}
	sort.Slice(s.Weeks, func(i, j int) bool { return s.Weeks[i].Week < s.Weeks[j].Week })
	return s
}

func zeroBreakdown() domain.PaymentBreakdown {
	z := decimal.Zero
	return domain.PaymentBreakdown{
		CashReceived: z, CreditCards: z, OnlineEFTs: z, Vouchers: z,
		Members: z, AgentsToInvoice: z, WaterPhoneSunblock: z, DiscountsTotal: z,
	}
}

func addBreakdown(a, b domain.PaymentBreakdown) domain.PaymentBreakdown {
	return domain.PaymentBreakdown{
		CashReceived:       a.CashReceived.Add(b.CashReceived),
		CreditCards:        a.CreditCards.Add(b.CreditCards),
		OnlineEFTs:         a.OnlineEFTs.Add(b.OnlineEFTs),
		Vouchers:           a.Vouchers.Add(b.Vouchers),
		Members:            a.Members.Add(b.Members),
		AgentsToInvoice:    a.AgentsToInvoice.Add(b.AgentsToInvoice),
		WaterPhoneSunblock: a.WaterPhoneSunblock.Add(b.WaterPhoneSunblock),
		DiscountsTotal:     a.DiscountsTotal.Add(b.DiscountsTotal),
	}
}

// WeeklyEarnings groups guideID's fees by report week, ascending by week number.
// Labels read "Week N" as printed on invoices.
func WeeklyEarnings(guideID uuid.UUID, trips []domain.Trip) []WeekTotal {
	byWeek := make(map[int]*WeekTotal)
	for _, t := range trips {
		tg, ok := t.GuideAssignment(guideID)
		if !ok {
			continue
		}
		n := period.ReportWeekNumber(t.TripDate)
		w, ok := byWeek[n]
		if !ok {
			w = &WeekTotal{Week: "Week " + strconv.Itoa(n), Total: decimal.Zero}
			byWeek[n] = w
		}
		w.Trips++
		w.Total = w.Total.Add(tg.FeeAmount)
	}
	nums := make([]int, 0, len(byWeek))
	for n := range byWeek {
		nums = append(nums, n)
	}
	sort.Ints(nums)
	out := make([]WeekTotal, 0, len(nums))
	for _, n := range nums {
		out = append(out, *byWeek[n])
	}
	return out
}

// ExportRows flattens trips into spreadsheet rows, in date order.
func ExportRows(trips []domain.Trip) []domain.ExportRow {
	sorted := sortedByDate(trips)
	rows := make([]domain.ExportRow, 0, len(sorted))
	for _, t := range sorted {
		names := make([]string, 0, len(t.Guides))
		for _, g := range t.Guides {
			names = append(names, g.GuideName)
		}
		rows = append(rows, domain.ExportRow{
			TripDate:   t.TripDate,
			Status:     t.Status,
			LeadName:   t.LeadName,
			TotalPax:   t.TotalPax,
			PaxNote:    t.PaxGuideNote,
			CreatedBy:  t.CreatedBy,
			Guides:     strings.Join(names, ", "),
			RankCounts: CountRanks(t).String(),
			Payments:   t.Payments,
			Total:      TripTotal(t.Payments),
		})
	}
	return rows
}
