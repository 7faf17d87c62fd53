// Package format contains the pure date, time and money helpers shared by
// the registry and the HTTP layer.
package format

import (
	"math"
	"strings"
	"time"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/parksys/parking-service/internal/core/domain"
)

// DefaultLanguage drives number grouping: "." for thousands.
var DefaultLanguage = language.Spanish

const (
	dateLayout     = "2/1/2006"
	dateTimeLayout = "2/1/2006, 15:04:05"
	clockLayout    = "15:04"
)

// NormalizePlate trims and uppercases a plate. It is the only key used for
// plate comparisons.
func NormalizePlate(plate string) string {
	return strings.ToUpper(strings.TrimSpace(plate))
}

func Date(t time.Time) string     { return t.Format(dateLayout) }
func DateTime(t time.Time) string { return t.Format(dateTimeLayout) }
func Clock(t time.Time) string    { return t.Format(clockLayout) }

func CurrentDate(loc *time.Location) string {
	return Date(time.Now().In(location(loc)))
}

func CurrentDateTime(loc *time.Location) string {
	return DateTime(time.Now().In(location(loc)))
}

// Currency formats amount with locale grouping and no decimals, e.g.
// "$1.234.567". Non-finite amounts format as "$0".
func Currency(amount float64) string {
	return CurrencyIn(DefaultLanguage, amount)
}

func CurrencyIn(tag language.Tag, amount float64) string {
	n := wholeUnits(amount)
	p := message.NewPrinter(tag)
	if n < 0 {
		return p.Sprintf("-$%d", -n)
	}
	return p.Sprintf("$%d", n)
}

// Number formats amount with locale grouping and no decimals.
func Number(amount float64) string {
	return message.NewPrinter(DefaultLanguage).Sprintf("%d", wholeUnits(amount))
}

// VehicleTypeLabel renders a vehicle type for display, e.g. "Motorcycle".
func VehicleTypeLabel(t domain.VehicleType) string {
	return cases.Title(language.English).String(string(t))
}

// IsSameDay reports whether a and b fall on the same calendar date in loc.
// Zero times never match.
func IsSameDay(a, b time.Time, loc *time.Location) bool {
	if a.IsZero() || b.IsZero() {
		return false
	}
	loc = location(loc)
	ay, am, ad := a.In(loc).Date()
	by, bm, bd := b.In(loc).Date()
	return ay == by && am == bm && ad == bd
}

// ElapsedMinutes returns the whole minutes from start to end, rounded down.
// ok is false when either instant is unset.
func ElapsedMinutes(start, end time.Time) (int, bool) {
	if start.IsZero() || end.IsZero() {
		return 0, false
	}
	return int(math.Floor(end.Sub(start).Minutes())), true
}

// ElapsedHours returns the whole hours from start to end, rounded down.
func ElapsedHours(start, end time.Time) (int, bool) {
	if start.IsZero() || end.IsZero() {
		return 0, false
	}
	return int(math.Floor(end.Sub(start).Hours())), true
}

func wholeUnits(amount float64) int64 {
	if math.IsNaN(amount) || math.IsInf(amount, 0) {
		return 0
	}
	return int64(math.Round(amount))
}

func location(loc *time.Location) *time.Location {
	if loc == nil {
		return time.Local
	}
	return loc
}
