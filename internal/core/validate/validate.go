// Package validate holds the pure field predicates used at the check-in
// boundary. Every predicate returns a Result instead of an error so forms
// can aggregate all failures at once.
package validate

import (
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"

	"github.com/parksys/parking-service/internal/core/domain"
)

// Form field names, shared with the HTTP layer.
const (
	FieldPlate         = "plate"
	FieldVehicleType   = "vehicle_type"
	FieldEntryTime     = "entry_time"
	FieldAmount        = "amount"
	FieldInvoiceNumber = "invoice_number"
)

var (
	plateRegex = regexp.MustCompile(`^[A-Za-z0-9]+$`)
	timeRegex  = regexp.MustCompile(`^([0-1]?[0-9]|2[0-3]):[0-5][0-9]$`)
	emailRegex = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)
)

// Rules are the configurable bounds. A zero plate bound disables that bound
// and a zero ceiling disables the amount ceiling.
type Rules struct {
	PlateMinLength   int
	PlateMaxLength   int
	AmountCeiling    float64
	InvoiceMinLength int
	RequireTime      bool
}

func DefaultRules() Rules {
	return Rules{
		PlateMinLength:   5,
		PlateMaxLength:   7,
		AmountCeiling:    1_000_000,
		InvoiceMinLength: 3,
	}
}

type Result struct {
	Valid   bool
	Message string
}

func ok() Result { return Result{Valid: true} }

func fail(format string, args ...any) Result {
	return Result{Message: fmt.Sprintf(format, args...)}
}

func (r Rules) Plate(plate string) Result {
	clean := strings.TrimSpace(plate)
	if clean == "" {
		return fail("plate is required")
	}
	n := len([]rune(clean))
	if r.PlateMinLength > 0 && n < r.PlateMinLength {
		return fail("plate must have at least %d characters", r.PlateMinLength)
	}
	if r.PlateMaxLength > 0 && n > r.PlateMaxLength {
		return fail("plate cannot have more than %d characters", r.PlateMaxLength)
	}
	if !plateRegex.MatchString(clean) {
		return fail("plate may only contain letters and numbers")
	}
	return ok()
}

// Amount validates a raw amount as typed into a form.
func (r Rules) Amount(raw string) Result {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return fail("amount is required")
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return fail("amount must be a number")
	}
	return r.AmountValue(v)
}

func (r Rules) AmountValue(v float64) Result {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return fail("amount must be a number")
	}
	if v <= 0 {
		return fail("amount must be greater than 0")
	}
	if r.AmountCeiling > 0 && v > r.AmountCeiling {
		return fail("amount cannot exceed %s", strconv.FormatFloat(r.AmountCeiling, 'f', -1, 64))
	}
	return ok()
}

func (r Rules) InvoiceNumber(invoice string) Result {
	clean := strings.TrimSpace(invoice)
	if clean == "" {
		return fail("invoice number is required")
	}
	if r.InvoiceMinLength > 0 && len([]rune(clean)) < r.InvoiceMinLength {
		return fail("invoice number must have at least %d characters", r.InvoiceMinLength)
	}
	return ok()
}

// VehicleType accepts the canonical categories and their localized synonyms.
func VehicleType(s string) Result {
	if _, found := domain.ParseVehicleType(s); !found {
		return fail("invalid vehicle type")
	}
	return ok()
}

// Time validates a 24-hour HH:MM clock reading.
func Time(s string) Result {
	if strings.TrimSpace(s) == "" {
		return fail("time is required")
	}
	if !timeRegex.MatchString(s) {
		return fail("invalid time format (HH:MM)")
	}
	return ok()
}

func Email(s string) Result {
	if !emailRegex.MatchString(s) {
		return fail("invalid email address")
	}
	return ok()
}

// Form aggregates every failing field of a check-in draft. The draft is
// valid iff the returned map is empty. The entry time is checked only when
// supplied, unless the rules require it.
func (r Rules) Form(d domain.Draft) map[string]string {
	errs := make(map[string]string)

	check := func(field string, res Result) {
		if !res.Valid {
			errs[field] = res.Message
		}
	}

	check(FieldPlate, r.Plate(d.Plate))
	check(FieldVehicleType, VehicleType(d.VehicleType))
	if r.RequireTime || strings.TrimSpace(d.EntryTime) != "" {
		check(FieldEntryTime, Time(d.EntryTime))
	}
	check(FieldAmount, r.Amount(d.Amount))
	check(FieldInvoiceNumber, r.InvoiceNumber(d.InvoiceNumber))

	return errs
}

// Draft runs Form and wraps failures in a *domain.ValidationError.
func (r Rules) Draft(d domain.Draft) error {
	if errs := r.Form(d); len(errs) > 0 {
		return &domain.ValidationError{Fields: errs}
	}
	return nil
}
