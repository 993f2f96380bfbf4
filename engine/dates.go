/*
dates.go - Statement cycle date math and rate conversion

PURPOSE:
  SCOD and PDD are instants derived from the account creation datetime and
  the payment-due-period parameter. This file owns that arithmetic, the
  leap-year daily-rate conversion, and the schedule expressions hooks hand
  back to the host.

CUTOFFS:
  A statement cut-off window is the day [start, start+1d). Balances for
  the closing statement are valued at start minus one microsecond so that
  postings landing exactly on the cutoff instant fall into the next cycle.
*/
package engine

import (
	"strconv"
	"time"

	"github.com/shopspring/decimal"

	"github.com/corebank/card-engine/vault"
)

// LocalAccrualCutoffHour is the configured daily accrual cutoff, just
// before local midnight.
const (
	LocalAccrualCutoffHour   = 23
	LocalAccrualCutoffMinute = 50
)

/// FirstSCODStart returns the opening statement's cut-off day: one month
// after account creation, minus one day, at midnight.
func FirstSCODStart(creation time.Time) time.Time {
	d := creation.AddDate(0, 1, 0).AddDate(0, 0, -1)
	return time.Date(d.Year(), d.Month(), d.Day(), 0, 0, 0, 0, d.Location())
}

// NextSCODStart advances a cut-off day by one statement cycle.
func NextSCODStart(prev time.Time) time.Time {
	return prev.AddDate(0, 1, 0)
}

// SCODWindow returns the [start, end) bounds of a cut-off day.
func SCODWindow(start time.Time) (time.Time, time.Time) {
	return start, start.AddDate(0, 0, 1)
}

// PDDFromSCOD returns the payment due day for a statement cut at scodStart.
func PDDFromSCOD(scodStart time.Time, paymentDuePeriodDays int) time.Time {
	return scodStart.AddDate(0, 0, paymentDuePeriodDays)
}

// CutoffInstant values balances for a closing statement: one microsecond
// before the cut-off day begins.
func CutoffInstant(scodStart time.Time) time.Time {
	return scodStart.Add(-time.Microsecond)
}

// LastSCODStart derives the most recent cut-off day at or before 'now'.
// Used when the live clock has moved past the nominal cutoff before the
// schedule actually ran.
func LastSCODStart(creation, now time.Time) time.Time {
	scod := FirstSCODStart(creation)
	for {
		next := NextSCODStart(scod)
		if next.After(now) {
			return scod
		}
		scod = next
	}
}

// IsLeapYear reports whether a year has 366 days.
func IsLeapYear(year int) bool {
	return year%4 == 0 && (year%100 != 0 || year%400 == 0)
}

// DailyRate converts a yearly rate to a daily rate at 10 decimal places.
func DailyRate(yearly decimal.Decimal, year int) decimal.Decimal {
	days := int64(365)
	if IsLeapYear(year) {
		days = 366
	}
	return yearly.Div(decimal.NewFromInt(days)).Round(10)
}

// =============================================================================
// SCHEDULE EXPRESSIONS
// =============================================================================

// ScheduleAt pins an event to a single absolute instant.
func ScheduleAt(event string, at time.Time) vault.ScheduleUpdate {
	return vault.ScheduleUpdate{
		Event: event,
		Expr: vault.ScheduleExpr{
			Year:   strconv.Itoa(at.Year()),
			Month:  strconv.Itoa(int(at.Month())),
			Day:    strconv.Itoa(at.Day()),
			Hour:   strconv.Itoa(at.Hour()),
			Minute: strconv.Itoa(at.Minute()),
			Second: strconv.Itoa(at.Second()),
		},
	}
}

// ScheduleAnnualFee schedules the next anniversary charge. A Feb-29
// anniversary schedules day "last" so non-leap years charge on Feb 28.
/// The year is pinned explicitly: a relative month/day expression that
// matches the current instant would fire again immediately.
func ScheduleAnnualFee(anniversary time.Time, nextYear int) vault.ScheduleUpdate {
	day := strconv.Itoa(anniversary.Day())
	if anniversary.Month() == time.February && anniversary.Day() == 29 && !IsLeapYear(nextYear) {
		day = "last"
	}
	return vault.ScheduleUpdate{
		Event: EventAnnualFee,
		Expr: vault.ScheduleExpr{
			Year:   strconv.Itoa(nextYear),
			Month:  strconv.Itoa(int(anniversary.Month())),
			Day:    day,
			Hour:   "23",
			Minute: "50",
			Second: "0",
		},
	}
}
