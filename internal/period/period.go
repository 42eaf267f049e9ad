// Package period turns report parameters ("2025-W03", "2025-06", ...) into
// inclusive UTC time ranges.
//
// Two week definitions live here and are deliberately separate:
// ISOReportWeekWindow is the Monday-anchored report week used by weekly
// reports, monthly breakdowns and invoices; DashboardWeekWindow is the
// Sunday-anchored local week used by the admin earnings overview.
package period

import (
	"fmt"
	"regexp"
	"strconv"
	"time"

	"github.com/GideonLangenhoven/CKACashups/internal/domain"
)

// Kind names a report period.
type Kind string

const (
	KindDaily   Kind = "daily"
	KindWeekly  Kind = "weekly"
	KindMonthly Kind = "monthly"
	KindYearly  Kind = "yearly"
	KindCustom  Kind = "custom"
)

// ParseKind validates a period kind name.
func ParseKind(s string) (Kind, error) {
	k := Kind(s)
	switch k {
	case KindDaily, KindWeekly, KindMonthly, KindYearly, KindCustom:
		return k, nil
	}
	return "", domain.Validationf("unknown report period %q", s)
}

// Params holds the raw parameters of a report request. Only the field matching
// the Kind is read: Date for daily, Week for weekly, Month for monthly,
// Year for yearly, Start and End for custom.
type Params struct {
	Date  string
	Week  string
	Month string
	Year  string
	Start string
	End   string
}

// Range is an inclusive time range. End is the last millisecond of the final day.
type Range struct {
	Start time.Time
	End   time.Time
	Label string
}

// Contains reports whether t falls inside the range.
func (r Range) Contains(t time.Time) bool {
	return !t.Before(r.Start) && !t.After(r.End)
}

const lastMilli = 999 * time.Millisecond

var (
	dateRe  = regexp.MustCompile(`^\d{4}-(0[1-9]|1[0-2])-(0[1-9]|[12]\d|3[01])$`)
	monthRe = regexp.MustCompile(`^(\d{4})-(0[1-9]|1[0-2])$`)
	yearRe  = regexp.MustCompile(`^\d{4}$`)
	weekRe  = regexp.MustCompile(`^(\d{4})-W(\d{2})$`)
)

// Resolve dispatches to the resolver for kind.
func Resolve(kind Kind, p Params) (Range, error) {
	switch kind {
	case KindDaily:
		return Daily(p.Date)
	case KindWeekly:
		return Weekly(p.Week)
	case KindMonthly:
		return Monthly(p.Month)
	case KindYearly:
		return Yearly(p.Year)
	case KindCustom:
		return Custom(p.Start, p.End)
	}
	return Range{}, domain.Validationf("unknown report period %q", kind)
}

func endOfDay(d time.Time) time.Time {
	return time.Date(d.Year(), d.Month(), d.Day(), 23, 59, 59, 0, time.UTC).Add(lastMilli)
}

func parseDate(field, s string) (time.Time, error) {
	if !dateRe.MatchString(s) {
		return time.Time{}, domain.Validationf("%s must be YYYY-MM-DD, got %q", field, s)
	}
	d, err := time.Parse(time.DateOnly, s)
	if err != nil {
		// Passes the pattern but names an impossible day, e.g. 2025-02-30.
		return time.Time{}, domain.Validationf("%s is not a calendar date: %q", field, s)
	}
	return d, nil
}

// Daily resolves "YYYY-MM-DD" to that UTC day.
func Daily(date string) (Range, error) {
	d, err := parseDate("date", date)
	if err != nil {
		return Range{}, err
	}
	return Range{Start: d, End: endOfDay(d), Label: date}, nil
}

// Monthly resolves "YYYY-MM" to the whole UTC month.
func Monthly(month string) (Range, error) {
	m := monthRe.FindStringSubmatch(month)
	if m == nil {
		return Range{}, domain.Validationf("month must be YYYY-MM, got %q", month)
	}
	year, _ := strconv.Atoi(m[1])
	mon, _ := strconv.Atoi(m[2])
	start := time.Date(year, time.Month(mon), 1, 0, 0, 0, 0, time.UTC)
	// Day 0 of the next month is the last day of this one.
	last := time.Date(year, time.Month(mon)+1, 0, 0, 0, 0, 0, time.UTC)
	return Range{Start: start, End: endOfDay(last), Label: month}, nil
}

// Yearly resolves "YYYY" to Jan 1 through Dec 31 UTC.
func Yearly(year string) (Range, error) {
	if !yearRe.MatchString(year) {
		return Range{}, domain.Validationf("year must be YYYY, got %q", year)
	}
	y, _ := strconv.Atoi(year)
	start := time.Date(y, time.January, 1, 0, 0, 0, 0, time.UTC)
	last := time.Date(y, time.December, 31, 0, 0, 0, 0, time.UTC)
	return Range{Start: start, End: endOfDay(last), Label: year}, nil
}

// Weekly resolves "YYYY-Wnn" using the report-week arithmetic of ISOReportWeekWindow.
func Weekly(week string) (Range, error) {
	m := weekRe.FindStringSubmatch(week)
	if m == nil {
		return Range{}, domain.Validationf("week must be YYYY-Wnn, got %q", week)
	}
	year, _ := strconv.Atoi(m[1])
	n, _ := strconv.Atoi(m[2])
	if n < 1 || n > 53 {
		return Range{}, domain.Validationf("week number must be 01-53, got %q", week)
	}
	r := ISOReportWeekWindow(year, n)
	r.Label = week
	return r, nil
}

// Custom resolves an inclusive pair of "YYYY-MM-DD" dates.
func Custom(start, end string) (Range, error) {
	s, err := parseDate("start", start)
	if err != nil {
		return Range{}, err
	}
	e, err := parseDate("end", end)
	if err != nil {
		return Range{}, err
	}
	if s.After(e) {
		return Range{}, domain.Validationf("start %s is after end %s", start, end)
	}
	return Range{Start: s, End: endOfDay(e), Label: fmt.Sprintf("%s_to_%s", start, end)}, nil
}

// week1Start returns the Monday that begins report week 1 of year.
//
// The offset is 1 when Jan 1 is a Sunday and 8-weekday otherwise, so a year that
// starts on a Monday has week 1 begin on Jan 8, not Jan 1. Existing reports are
// keyed on this, so it is kept as is.
func week1Start(year int) time.Time {
	jan1 := time.Date(year, time.January, 1, 0, 0, 0, 0, time.UTC)
	dow := int(jan1.Weekday())
	daysToMonday := 8 - dow
	if dow == 0 {
		daysToMonday = 1
	}
	return jan1.AddDate(0, 0, daysToMonday)
}

// ISOReportWeekWindow returns report week n of year: Monday 00:00 through
// Sunday 23:59:59.999 UTC.
func ISOReportWeekWindow(year, week int) Range {
	start := week1Start(year).AddDate(0, 0, (week-1)*7)
	return Range{
		Start: start,
		End:   endOfDay(start.AddDate(0, 0, 6)),
		Label: fmt.Sprintf("%04d-W%02d", year, week),
	}
}

// ReportWeekNumber returns the report week t falls in, counted within t's UTC year.
// Days in January before week 1 begins yield week 0.
func ReportWeekNumber(t time.Time) int {
	t = t.UTC()
	diff := t.Sub(week1Start(t.Year()))
	days := floorDiv(int(diff/time.Millisecond), int(24*time.Hour/time.Millisecond))
	return floorDiv(days, 7) + 1
}

// ReportWeekKey formats t's report week as "YYYY-Wnn".
func ReportWeekKey(t time.Time) string {
	return fmt.Sprintf("%04d-W%02d", t.UTC().Year(), ReportWeekNumber(t))
}

func floorDiv(a, b int) int {
	q := a / b
	if (a%b != 0) && ((a < 0) != (b < 0)) {
		q--
	}
	return q
}

// DashboardWeekWindow returns the admin overview windows for now in loc:
// the week starts on the most recent Sunday at 00:00 local time and the month
// on the 1st at 00:00 local time.
func DashboardWeekWindow(now time.Time, loc *time.Location) (weekStart, monthStart time.Time) {
	if loc == nil {
		loc = time.UTC
	}
	local := now.In(loc)
	day := time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, loc)
	weekStart = day.AddDate(0, 0, -int(local.Weekday()))
	monthStart = time.Date(local.Year(), local.Month(), 1, 0, 0, 0, 0, loc)
	return weekStart, monthStart
}
