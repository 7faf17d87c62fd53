package services

import (
	"context"
	"strconv"
	"strings"

	"github.com/parksys/parking-service/internal/core/domain"
	"github.com/parksys/parking-service/internal/core/ports"
	"github.com/parksys/parking-service/internal/core/validate"
)

// FormController sits between raw form input and the registry. It fills
// the defaults the desk leaves blank and returns field errors as a
// *domain.ValidationError so they can be shown next to their inputs.
type FormController struct {
	registry ports.Registry
	invoices ports.InvoiceService
	rates    domain.RateTable
}

func NewFormController(registry ports.Registry, invoices ports.InvoiceService, rates domain.RateTable) *FormController {
	if rates == nil {
		rates = domain.DefaultRates()
	}
	return &FormController{registry: registry, invoices: invoices, rates: rates}
}

// SubmitEntry completes the draft and checks the vehicle in. A blank
// invoice number is generated and a blank amount defaults to the rate of
// the vehicle type.
func (c *FormController) SubmitEntry(ctx context.Context, draft domain.Draft) (domain.VehicleSession, error) {
	draft = trimDraft(draft)

	if c.invoices != nil {
		if draft.InvoiceNumber == "" {
			number, err := c.invoices.NextNumber(ctx)
			if err != nil {
				return domain.VehicleSession{}, err
			}
			draft.InvoiceNumber = number
		} else {
			// Settlement at check-out is keyed by number.
			inUse, err := c.invoices.NumberInUse(ctx, draft.InvoiceNumber)
			if err != nil {
				return domain.VehicleSession{}, err
			}
			if inUse {
				return domain.VehicleSession{}, &domain.ValidationError{
					Fields: map[string]string{validate.FieldInvoiceNumber: "invoice number already used"},
				}
			}
		}
	}

	if draft.Amount == "" {
		if t, ok := domain.ParseVehicleType(draft.VehicleType); ok {
			if rate := c.rates.Rate(t); rate > 0 {
				draft.Amount = strconv.FormatFloat(rate, 'f', -1, 64)
			}
		}
	}

	return c.registry.CheckIn(ctx, draft)
}

// SubmitExit checks out the vehicle with the given plate.
func (c *FormController) SubmitExit(ctx context.Context, plate string) (domain.VehicleSession, error) {
	if strings.TrimSpace(plate) == "" {
		return domain.VehicleSession{}, &domain.ValidationError{
			Fields: map[string]string{validate.FieldPlate: "plate is required"},
		}
	}
	return c.registry.CheckOut(ctx, plate)
}

func trimDraft(d domain.Draft) domain.Draft {
	return domain.Draft{
		Plate:         strings.TrimSpace(d.Plate),
		VehicleType:   strings.TrimSpace(d.VehicleType),
		InvoiceNumber: strings.TrimSpace(d.InvoiceNumber),
		Amount:        strings.TrimSpace(d.Amount),
		EntryTime:     strings.TrimSpace(d.EntryTime),
		OwnerName:     strings.TrimSpace(d.OwnerName),
		Phone:         strings.TrimSpace(d.Phone),
	}
}
