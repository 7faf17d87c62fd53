package handler

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"mime"
	"net/http"

	"github.com/parksys/parking-service/internal/core/domain"
	"github.com/parksys/parking-service/internal/core/format"
	"github.com/parksys/parking-service/internal/core/ports"
)

// EntryForm completes and submits desk input.
type EntryForm interface {
	SubmitEntry(ctx context.Context, draft domain.Draft) (domain.VehicleSession, error)
	SubmitExit(ctx context.Context, plate string) (domain.VehicleSession, error)
}

type VehicleHandler struct {
	registry ports.Registry
	form     EntryForm
}

func NewVehicleHandler(registry ports.Registry, form EntryForm) *VehicleHandler {
	return &VehicleHandler{registry: registry, form: form}
}

// EntryRequest is the body of a check-in. Amount accepts a JSON number or
// string so the desk form can post raw input.
type EntryRequest struct {
	VehicleType   string    `json:"vehicleType"`
	OwnerName     string    `json:"ownerName"`
	Phone         string    `json:"phone"`
	InvoiceNumber string    `json:"invoiceNumber"`
	Amount        formValue `json:"amount"`
	EntryTime     string    `json:"entryTime"`
}

type formValue string

func (v *formValue) UnmarshalJSON(b []byte) error {
	if string(b) == "null" {
		return nil
	}
	var s string
	if err := json.Unmarshal(b, &s); err == nil {
		*v = formValue(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return err
	}
	*v = formValue(n.String())
	return nil
}

// Entry handles POST /vehicles/entry/{plate}.
func (h *VehicleHandler) Entry(w http.ResponseWriter, r *http.Request) {
	req, err := decodeEntry(w, r)
	if err != nil {
		BadRequest(w, r, "invalid request body")
		return
	}

	session, err := h.form.SubmitEntry(r.Context(), domain.Draft{
		Plate:         r.PathValue("plate"),
		VehicleType:   req.VehicleType,
		InvoiceNumber: req.InvoiceNumber,
		Amount:        string(req.Amount),
		EntryTime:     req.EntryTime,
		OwnerName:     req.OwnerName,
		Phone:         req.Phone,
	})
	if err != nil {
		Error(w, r, err)
		return
	}

	Created(w, r, VehicleResponse{
		Success: true,
		Message: "vehicle " + session.Plate + " checked in",
		Vehicle: &session,
	})
}

func decodeEntry(w http.ResponseWriter, r *http.Request) (EntryRequest, error) {
	var req EntryRequest
	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))

	switch mediaType {
	case "application/x-www-form-urlencoded", "multipart/form-data":
		if err := r.ParseMultipartForm(1 << 20); err != nil && !errors.Is(err, http.ErrNotMultipart) {
			return req, err
		}
		req.VehicleType = r.FormValue("vehicleType")
		req.OwnerName = r.FormValue("ownerName")
		req.Phone = r.FormValue("phone")
		req.InvoiceNumber = r.FormValue("invoiceNumber")
		req.Amount = formValue(r.FormValue("amount"))
		req.EntryTime = r.FormValue("entryTime")
		return req, nil
	}

	err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<20)).Decode(&req)
	if errors.Is(err, io.EOF) {
		return req, nil
	}
	return req, err
}

// Exit handles PUT /vehicles/exit/{plate}.
func (h *VehicleHandler) Exit(w http.ResponseWriter, r *http.Request) {
	session, err := h.form.SubmitExit(r.Context(), r.PathValue("plate"))
	if err != nil {
		Error(w, r, err)
		return
	}

	OK(w, r, VehicleResponse{
		Success: true,
		Message: "vehicle " + session.Plate + " checked out, " + format.Currency(session.TotalAmount),
		Vehicle: &session,
	})
}

func (h *VehicleHandler) Active(w http.ResponseWriter, r *http.Request) {
	sessions, err := h.registry.Active(r.Context())
	if err != nil {
		Error(w, r, err)
		return
	}
	OK(w, r, VehiclesResponse{Success: true, Vehicles: sessions})
}

func (h *VehicleHandler) Today(w http.ResponseWriter, r *http.Request) {
	sessions, err := h.registry.Today(r.Context())
	if err != nil {
		Error(w, r, err)
		return
	}
	OK(w, r, VehiclesResponse{Success: true, Vehicles: sessions})
}

func (h *VehicleHandler) History(w http.ResponseWriter, r *http.Request) {
	sessions, err := h.registry.History(r.Context())
	if err != nil {
		Error(w, r, err)
		return
	}
	OK(w, r, HistoryResponse{Success: true, History: sessions})
}

// FindActive handles GET /vehicles/active/{plate}.
func (h *VehicleHandler) FindActive(w http.ResponseWriter, r *http.Request) {
	plate := r.PathValue("plate")
	session, found, err := h.registry.FindActive(r.Context(), plate)
	if err != nil {
		Error(w, r, err)
		return
	}
	if !found {
		Error(w, r, &domain.NotFoundError{Resource: "vehicle", ID: format.NormalizePlate(plate)})
		return
	}
	OK(w, r, VehicleResponse{Success: true, Vehicle: &session})
}

type StatisticsResponse struct {
	Success    bool              `json:"success"`
	Statistics domain.Statistics `json:"statistics"`
}

func (h *VehicleHandler) Statistics(w http.ResponseWriter, r *http.Request) {
	stats, err := h.registry.Statistics(r.Context())
	if err != nil {
		Error(w, r, err)
		return
	}
	OK(w, r, StatisticsResponse{Success: true, Statistics: stats})
}

// Reset handles DELETE /vehicles.
func (h *VehicleHandler) Reset(w http.ResponseWriter, r *http.Request) {
	if err := h.registry.Reset(r.Context()); err != nil {
		Error(w, r, err)
		return
	}
	OK(w, r, MessageResponse{Success: true, Message: "registry cleared"})
}
