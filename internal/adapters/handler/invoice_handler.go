package handler

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/parksys/parking-service/internal/adapters/middleware"
	"github.com/parksys/parking-service/internal/core/domain"
	"github.com/parksys/parking-service/internal/core/ports"
	"github.com/parksys/parking-service/internal/core/validate"
)

type InvoiceHandler struct {
	invoices ports.InvoiceService
}

func NewInvoiceHandler(invoices ports.InvoiceService) *InvoiceHandler {
	return &InvoiceHandler{invoices: invoices}
}

type CreateInvoiceRequest struct {
	Plate       string  `json:"plate"`
	TotalAmount float64 `json:"total_amount"`
}

type InvoiceResponse struct {
	Success bool            `json:"success"`
	Message string          `json:"message,omitempty"`
	Invoice *domain.Invoice `json:"invoice"`
}

type InvoicesResponse struct {
	Success  bool             `json:"success"`
	Invoices []domain.Invoice `json:"invoices"`
}

// Create handles POST /invoices/create.
func (h *InvoiceHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req CreateInvoiceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		BadRequest(w, r, "invalid request payload")
		return
	}

	fields := make(map[string]string)
	if strings.TrimSpace(req.Plate) == "" {
		fields[validate.FieldPlate] = "plate is required"
	}
	if res := validate.DefaultRules().AmountValue(req.TotalAmount); !res.Valid {
		fields["total_amount"] = res.Message
	}
	if len(fields) > 0 {
		Error(w, r, &domain.ValidationError{Fields: fields})
		return
	}

	invoice, err := h.invoices.Create(r.Context(), req.Plate, req.TotalAmount, middleware.Username(r.Context()))
	if err != nil {
		Error(w, r, err)
		return
	}
	Created(w, r, InvoiceResponse{Success: true, Message: "invoice " + invoice.Number + " created", Invoice: invoice})
}

// List handles GET /invoices/.
func (h *InvoiceHandler) List(w http.ResponseWriter, r *http.Request) {
	invoices, err := h.invoices.List(r.Context())
	if err != nil {
		Error(w, r, err)
		return
	}
	if invoices == nil {
		invoices = []domain.Invoice{}
	}
	OK(w, r, InvoicesResponse{Success: true, Invoices: invoices})
}
