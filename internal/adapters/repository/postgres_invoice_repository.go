package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/parksys/parking-service/internal/core/domain"
	"github.com/parksys/parking-service/internal/core/ports"
)

const invoiceColumns = "id, number, plate, vehicle_type, total_amount, parking_minutes, created_by, created_at"

type PostgresInvoiceRepository struct {
	db *sql.DB
}

var _ ports.InvoiceRepository = (*PostgresInvoiceRepository)(nil)

func NewPostgresInvoiceRepository(db *sql.DB) *PostgresInvoiceRepository {
	return &PostgresInvoiceRepository{db: db}
}

func (r *PostgresInvoiceRepository) Create(ctx context.Context, invoice domain.Invoice) (*domain.Invoice, error) {
	_, err := r.db.ExecContext(ctx,
		"INSERT INTO invoices ("+invoiceColumns+") VALUES ($1, $2, $3, $4, $5, $6, $7, $8)",
		invoice.ID,
		invoice.Number,
		invoice.Plate,
		invoice.VehicleType,
		invoice.TotalAmount,
		invoice.ParkingMinutes,
		invoice.CreatedBy,
		invoice.CreatedAt,
	)
	if isUniqueViolation(err) {
		return nil, fmt.Errorf("invoice %s already exists", invoice.Number)
	}
	if err != nil {
		return nil, err
	}
	return &invoice, nil
}

// List returns invoices newest first.
func (r *PostgresInvoiceRepository) List(ctx context.Context) ([]domain.Invoice, error) {
	rows, err := r.db.QueryContext(ctx,
		"SELECT "+invoiceColumns+" FROM invoices ORDER BY created_at DESC, number DESC")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	invoices := []domain.Invoice{}
	for rows.Next() {
		var inv domain.Invoice
		if err := rows.Scan(
			&inv.ID,
			&inv.Number,
			&inv.Plate,
			&inv.VehicleType,
			&inv.TotalAmount,
			&inv.ParkingMinutes,
			&inv.CreatedBy,
			&inv.CreatedAt,
		); err != nil {
			return nil, err
		}
		invoices = append(invoices, inv)
	}
	return invoices, rows.Err()
}

func (r *PostgresInvoiceRepository) CountSince(ctx context.Context, since time.Time) (int, error) {
	var n int
	err := r.db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM invoices WHERE created_at >= $1", since,
	).Scan(&n)
	return n, err
}

func (r *PostgresInvoiceRepository) Exists(ctx context.Context, number string) (bool, error) {
	var exists bool
	err := r.db.QueryRowContext(ctx,
		"SELECT EXISTS (SELECT 1 FROM invoices WHERE number = $1)", number,
	).Scan(&exists)
	return exists, err
}

func (r *PostgresInvoiceRepository) Settle(ctx context.Context, number string, parkingMinutes int, total float64) error {
	res, err := r.db.ExecContext(ctx,
		"UPDATE invoices SET parking_minutes = $2, total_amount = $3 WHERE number = $1",
		number, parkingMinutes, total,
	)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return &domain.NotFoundError{Resource: "invoice", ID: number}
	}
	return nil
}
