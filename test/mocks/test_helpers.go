package mocks

import (
	"time"

	"github.com/parksys/parking-service/internal/core/domain"
	"github.com/parksys/parking-service/internal/core/ports"
)

// ValidDraft returns a check-in draft that passes the default rules.
func ValidDraft(plate, vehicleType string) domain.Draft {
	return domain.Draft{
		Plate:         plate,
		VehicleType:   vehicleType,
		InvoiceNumber: "F001",
		Amount:        "5000",
	}
}

// CreateTestSession creates an active session entered at entryAt.
func CreateTestSession(plate string, vehicleType domain.VehicleType, entryAt time.Time) domain.VehicleSession {
	return domain.VehicleSession{
		ID:                "session-" + plate,
		Plate:             plate,
		DisplayPlate:      plate,
		VehicleType:       vehicleType,
		EntryAt:           entryAt,
		RegistrationValue: domain.DefaultRates().Rate(vehicleType),
		Amount:            5000,
		InvoiceNumber:     "F001",
	}
}

// CreateTestEvent creates a sample session.opened event.
func CreateTestEvent() ports.SessionEvent {
	return ports.SessionEvent{
		ID:         "test-event-id",
		Type:       ports.SessionOpened,
		OccurredAt: time.Date(2025, 3, 5, 8, 0, 0, 0, time.UTC),
		Session:    CreateTestSession("TEST123", domain.VehicleCar, time.Date(2025, 3, 5, 8, 0, 0, 0, time.UTC)),
	}
}

// FixedClock returns a clock that always reports t.
func FixedClock(t time.Time) func() time.Time {
	return func() time.Time { return t }
}
