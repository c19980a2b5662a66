package utils

import (
	"time"

	"github.com/shopspring/decimal"
)

// DateLayout is the calendar-date format used on the wire.
const DateLayout = "2006-01-02"

// SplitAmount divides amount into parts equal installments using integer
// division. The last installment absorbs the remainder so the parts always
// sum back to amount.
func SplitAmount(amount int64, parts int) []int64 {
	if parts <= 0 {
		return nil
	}

	base := amount / int64(parts)
	remainder := amount % int64(parts)

	installments := make([]int64, parts)
	for i := range installments {
		installments[i] = base
	}
	installments[parts-1] += remainder

	return installments
}

// CalculateDueDate returns the due date of the n-th monthly installment.
// Months are added to startDate directly rather than chained, and the day is
// clamped to the end of the target month: Jan 31 +1 is Feb 28/29, +2 is Mar 31.
func CalculateDueDate(startDate time.Time, n int) time.Time {
	start := TruncateToDate(startDate)
	year, month, day := start.Date()

	firstOfTarget := time.Date(year, month+time.Month(n), 1, 0, 0, 0, 0, start.Location())
	if last := DaysInMonth(firstOfTarget); day > last {
		day = last
	}

	return time.Date(firstOfTarget.Year(), firstOfTarget.Month(), day, 0, 0, 0, 0, start.Location())
}

// DaysInMonth returns the number of days in t's month.
func DaysInMonth(t time.Time) int {
	return time.Date(t.Year(), t.Month()+1, 0, 0, 0, 0, 0, t.Location()).Day()
}

// TruncateToDate drops the time of day, keeping t's calendar date in UTC.
func TruncateToDate(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// ParseDate parses a YYYY-MM-DD calendar date as UTC midnight.
func ParseDate(s string) (time.Time, error) {
	return time.ParseInLocation(DateLayout, s, time.UTC)
}

// ToMajorUnits converts an amount in minor units to major units,
// e.g. 12345 with exponent 2 becomes 123.45.
func ToMajorUnits(amount int64, exponent int32) decimal.Decimal {
	return decimal.New(amount, -exponent)
}

// FormatMajorUnits renders an amount in minor units with a fixed number of decimals.
func FormatMajorUnits(amount int64, exponent int32) string {
	return ToMajorUnits(amount, exponent).StringFixed(exponent)
}
