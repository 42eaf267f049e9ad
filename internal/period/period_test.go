package period_test

import (
	"testing"
	"time"
	_ "time/tzdata"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/GideonLangenhoven/CKACashups/internal/domain"
	"github.com/GideonLangenhoven/CKACashups/internal/period"
)

func utc(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func endOf(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 23, 59, 59, 999_000_000, time.UTC)
}

func TestWeekly_Week1ForEveryJan1Weekday(t *testing.T) {
	// One year per weekday of Jan 1.
	cases := []struct {
		year  int
		jan1  time.Weekday
		start time.Time
	}{
		{2023, time.Sunday, utc(2023, 1, 2)},
		{2024, time.Monday, utc(2024, 1, 8)}, // week 1 begins a full week later
		{2019, time.Tuesday, utc(2019, 1, 7)},
		{2025, time.Wednesday, utc(2025, 1, 6)},
		{2026, time.Thursday, utc(2026, 1, 5)},
		{2021, time.Friday, utc(2021, 1, 4)},
		{2022, time.Saturday, utc(2022, 1, 3)},
	}
	for _, tc := range cases {
		t.Run(tc.jan1.String(), func(t *testing.T) {
			require.Equal(t, tc.jan1, utc(tc.year, 1, 1).Weekday())

			r, err := period.Weekly(period.ISOReportWeekWindow(tc.year, 1).Label)

			require.NoError(t, err)
			assert.Equal(t, tc.start, r.Start)
			assert.Equal(t, time.Monday, r.Start.Weekday())
			assert.Equal(t, tc.start.AddDate(0, 0, 6).Add(24*time.Hour-time.Millisecond), r.End)
		})
	}
}

func TestWeekly_LaterWeek(t *testing.T) {
	r, err := period.Weekly("2025-W03")

	require.NoError(t, err)
	assert.Equal(t, utc(2025, 1, 20), r.Start)
	assert.Equal(t, endOf(2025, 1, 26), r.End)
	assert.Equal(t, "2025-W03", r.Label)
}

func TestWeekly_Invalid(t *testing.T) {
	for _, in := range []string{"", "2025-3", "2025-W3", "2025W03", "2025-W00", "2025-W54"} {
		_, err := period.Weekly(in)
		assert.ErrorIs(t, err, domain.ErrValidation, in)
	}
}

func TestDaily(t *testing.T) {
	r, err := period.Daily("2025-02-28")

	require.NoError(t, err)
	assert.Equal(t, utc(2025, 2, 28), r.Start)
	assert.Equal(t, endOf(2025, 2, 28), r.End)
}

func TestDaily_Invalid(t *testing.T) {
	for _, in := range []string{"2025-2-28", "2025-13-01", "2025-02-30", "yesterday"} {
		_, err := period.Daily(in)
		assert.ErrorIs(t, err, domain.ErrValidation, in)
	}
}

func TestMonthly(t *testing.T) {
	cases := map[string]time.Time{
		"2024-02": endOf(2024, 2, 29),
		"2025-02": endOf(2025, 2, 28),
		"2025-12": endOf(2025, 12, 31),
		"2025-04": endOf(2025, 4, 30),
	}
	for in, wantEnd := range cases {
		r, err := period.Monthly(in)
		require.NoError(t, err, in)
		assert.Equal(t, 1, r.Start.Day(), in)
		assert.Equal(t, wantEnd, r.End, in)
	}

	_, err := period.Monthly("2025-13")
	assert.ErrorIs(t, err, domain.ErrValidation)
}

func TestYearly(t *testing.T) {
	r, err := period.Yearly("2025")

	require.NoError(t, err)
	assert.Equal(t, utc(2025, 1, 1), r.Start)
	assert.Equal(t, endOf(2025, 12, 31), r.End)

	_, err = period.Yearly("25")
	assert.ErrorIs(t, err, domain.ErrValidation)
}

func TestCustom(t *testing.T) {
	r, err := period.Custom("2025-03-01", "2025-03-15")

	require.NoError(t, err)
	assert.Equal(t, utc(2025, 3, 1), r.Start)
	assert.Equal(t, endOf(2025, 3, 15), r.End)
	assert.Equal(t, "2025-03-01_to_2025-03-15", r.Label)
}

func TestCustom_SameDay(t *testing.T) {
	r, err := period.Custom("2025-03-01", "2025-03-01")

	require.NoError(t, err)
	assert.True(t, r.Contains(time.Date(2025, 3, 1, 18, 30, 0, 0, time.UTC)))
}

func TestCustom_StartAfterEnd(t *testing.T) {
	_, err := period.Custom("2025-03-15", "2025-03-01")
	assert.ErrorIs(t, err, domain.ErrValidation)
}

func TestCustom_BadPattern(t *testing.T) {
	_, err := period.Custom("2025/03/01", "2025-03-02")
	assert.ErrorIs(t, err, domain.ErrValidation)
}

func TestResolve_Dispatch(t *testing.T) {
	r, err := period.Resolve(period.KindMonthly, period.Params{Month: "2025-06", Week: "ignored"})
	require.NoError(t, err)
	assert.Equal(t, utc(2025, 6, 1), r.Start)

	_, err = period.Resolve(period.Kind("hourly"), period.Params{})
	assert.ErrorIs(t, err, domain.ErrValidation)
}

func TestParseKind(t *testing.T) {
	k, err := period.ParseKind("weekly")
	require.NoError(t, err)
	assert.Equal(t, period.KindWeekly, k)

	_, err = period.ParseKind("WEEKLY")
	assert.ErrorIs(t, err, domain.ErrValidation)
}

func TestReportWeekNumber(t *testing.T) {
	// 2025 week 1 starts Monday Jan 6.
	assert.Equal(t, 0, period.ReportWeekNumber(utc(2025, 1, 5)))
	assert.Equal(t, 1, period.ReportWeekNumber(utc(2025, 1, 6)))
	assert.Equal(t, 1, period.ReportWeekNumber(time.Date(2025, 1, 12, 23, 0, 0, 0, time.UTC)))
	assert.Equal(t, 2, period.ReportWeekNumber(utc(2025, 1, 13)))
	assert.Equal(t, "2025-W23", period.ReportWeekKey(utc(2025, 6, 9)))

	// Jan 1 on a Monday still belongs to week 0.
	assert.Equal(t, 0, period.ReportWeekNumber(utc(2024, 1, 1)))
}

func TestReportWeekNumber_AgreesWithWeekly(t *testing.T) {
	for n := 1; n <= 51; n++ {
		r := period.ISOReportWeekWindow(2025, n)
		assert.Equal(t, n, period.ReportWeekNumber(r.Start))
		assert.Equal(t, n, period.ReportWeekNumber(r.End))
	}
}

func TestDashboardWeekWindow(t *testing.T) {
	loc, err := time.LoadLocation("Africa/Johannesburg")
	require.NoError(t, err)

	// Wednesday 2025-06-11 10:00 local.
	now := time.Date(2025, 6, 11, 10, 0, 0, 0, loc)
	week, month := period.DashboardWeekWindow(now, loc)

	assert.Equal(t, time.Date(2025, 6, 8, 0, 0, 0, 0, loc), week)
	assert.Equal(t, time.Sunday, week.Weekday())
	assert.Equal(t, time.Date(2025, 6, 1, 0, 0, 0, 0, loc), month)
}

func TestDashboardWeekWindow_UsesLocalDay(t *testing.T) {
	loc, err := time.LoadLocation("Africa/Johannesburg")
	require.NoError(t, err)

	// 23:30 UTC on Saturday is already Sunday 01:30 in Johannesburg.
	now := time.Date(2025, 6, 14, 23, 30, 0, 0, time.UTC)
	week, _ := period.DashboardWeekWindow(now, loc)

	assert.Equal(t, time.Date(2025, 6, 15, 0, 0, 0, 0, loc), week)
}

func TestDashboardWeekWindow_DiffersFromReportWeek(t *testing.T) {
	now := time.Date(2025, 6, 11, 10, 0, 0, 0, time.UTC)
	week, _ := period.DashboardWeekWindow(now, time.UTC)
	report := period.ISOReportWeekWindow(2025, period.ReportWeekNumber(now))

	assert.Equal(t, time.Sunday, week.Weekday())
	assert.Equal(t, time.Monday, report.Start.Weekday())
	assert.NotEqual(t, week, report.Start)
}
