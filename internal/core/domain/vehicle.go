package domain

import (
	"encoding/json"
	"strings"
	"time"
)

type VehicleType string

const (
	VehicleCar        VehicleType = "car"
	VehicleMotorcycle VehicleType = "motorcycle"
)

// VehicleTypes lists the canonical categories in display order.
var VehicleTypes = []VehicleType{VehicleCar, VehicleMotorcycle}

var vehicleTypeSynonyms = map[string]VehicleType{
	"car":         VehicleCar,
	"carro":       VehicleCar,
	"auto":        VehicleCar,
	"automovil":   VehicleCar,
	"automóvil":   VehicleCar,
	"motorcycle":  VehicleMotorcycle,
	"moto":        VehicleMotorcycle,
	"motocicleta": VehicleMotorcycle,
}

// ParseVehicleType canonicalizes a free-form vehicle type, accepting the
// localized synonyms used by the front desk.
func ParseVehicleType(s string) (VehicleType, bool) {
	t, ok := vehicleTypeSynonyms[strings.ToLower(strings.TrimSpace(s))]
	return t, ok
}

// UnmarshalJSON canonicalizes synonyms such as "carro" or "moto". Values
// that name no known category are kept as sent.
func (t *VehicleType) UnmarshalJSON(b []byte) error {
	var raw string
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}
	if canonical, ok := ParseVehicleType(raw); ok {
		*t = canonical
		return nil
	}
	*t = VehicleType(raw)
	return nil
}

// Known reports whether t is one of VehicleTypes.
func (t VehicleType) Known() bool {
	for _, known := range VehicleTypes {
		if t == known {
			return true
		}
	}
	return false
}

type SessionStatus string

const (
	StatusActive SessionStatus = "active"
	StatusClosed SessionStatus = "closed"
)

// VehicleSession is one physical parking stay.
type VehicleSession struct {
	ID                string      `json:"id"`
	Plate             string      `json:"plate"`
	DisplayPlate      string      `json:"display_plate"`
	VehicleType       VehicleType `json:"vehicle_type"`
	EntryAt           time.Time   `json:"entry_time"`
	ExitAt            *time.Time  `json:"exit_time,omitempty"`
	RegistrationValue float64     `json:"registration_value"`
	Amount            float64     `json:"amount"`
	InvoiceNumber     string      `json:"invoice_number"`
	DeclaredEntry     string      `json:"declared_entry,omitempty"`
	OwnerName         string      `json:"owner_name,omitempty"`
	Phone             string      `json:"phone,omitempty"`
	ParkingMinutes    int         `json:"parking_time,omitempty"`
	TotalAmount       float64     `json:"total_amount,omitempty"`
}

// Status is derived from the exit timestamp and never stored.
func (s VehicleSession) Status() SessionStatus {
	if s.ExitAt == nil {
		return StatusActive
	}
	return StatusClosed
}

func (s VehicleSession) IsActive() bool {
	return s.ExitAt == nil
}

// MarshalJSON adds the derived status to the encoded session.
func (s VehicleSession) MarshalJSON() ([]byte, error) {
	type plain VehicleSession
	return json.Marshal(struct {
		plain
		Status SessionStatus `json:"status"`
	}{plain(s), s.Status()})
}

// Draft is the unvalidated input of a check-in.
type Draft struct {
	Plate         string
	VehicleType   string
	InvoiceNumber string
	Amount        string
	EntryTime     string
	OwnerName     string
	Phone         string
}

// RateTable maps a vehicle type to its registration value.
type RateTable map[VehicleType]float64

func DefaultRates() RateTable {
	return RateTable{
		VehicleCar:        3000,
		VehicleMotorcycle: 2000,
	}
}

// Rate returns the registration value for t, zero when t is unknown.
func (r RateTable) Rate(t VehicleType) float64 {
	return r[t]
}

// Statistics is derived from the active and history sequences on demand.
type Statistics struct {
	TotalActive   int                 `json:"total_active"`
	TotalToday    int                 `json:"total_today"`
	TotalHistory  int                 `json:"total_history"`
	CountsByType  map[VehicleType]int `json:"counts_by_type"`
	RevenueToday  float64             `json:"revenue_today"`
	RevenueActive float64             `json:"revenue_active"`
}
