package repository

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/parksys/parking-service/internal/core/domain"
	"github.com/parksys/parking-service/internal/core/ports"
)

type MemoryInvoiceRepository struct {
	mu       sync.RWMutex
	invoices []domain.Invoice
}

var _ ports.InvoiceRepository = (*MemoryInvoiceRepository)(nil)

func NewMemoryInvoiceRepository() *MemoryInvoiceRepository {
	return &MemoryInvoiceRepository{}
}

func (r *MemoryInvoiceRepository) Create(ctx context.Context, invoice domain.Invoice) (*domain.Invoice, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, inv := range r.invoices {
		if inv.Number == invoice.Number {
			return nil, fmt.Errorf("invoice %s already exists", invoice.Number)
		}
	}
	r.invoices = append(r.invoices, invoice)
	return &invoice, nil
}

// List returns invoices newest first.
func (r *MemoryInvoiceRepository) List(ctx context.Context) ([]domain.Invoice, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]domain.Invoice, 0, len(r.invoices))
	for i := len(r.invoices) - 1; i >= 0; i-- {
		out = append(out, r.invoices[i])
	}
	return out, nil
}

func (r *MemoryInvoiceRepository) CountSince(ctx context.Context, since time.Time) (int, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	n := 0
	for _, inv := range r.invoices {
		if !inv.CreatedAt.Before(since) {
			n++
		}
	}
	return n, nil
}

func (r *MemoryInvoiceRepository) Exists(ctx context.Context, number string) (bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, inv := range r.invoices {
		if inv.Number == number {
			return true, nil
		}
	}
	return false, nil
}

func (r *MemoryInvoiceRepository) Settle(ctx context.Context, number string, parkingMinutes int, total float64) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for i := len(r.invoices) - 1; i >= 0; i-- {
		if r.invoices[i].Number == number {
			r.invoices[i].ParkingMinutes = parkingMinutes
			r.invoices[i].TotalAmount = total
			return nil
		}
	}
	return &domain.NotFoundError{Resource: "invoice", ID: number}
}
