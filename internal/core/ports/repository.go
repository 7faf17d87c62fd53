package ports

import (
	"context"
	"time"

	"github.com/parksys/parking-service/internal/core/domain"
)

// SessionStore is the backing store of the registry. Open must fail with
// *domain.DuplicatePlateError when the plate is already active, and Close
// with *domain.NotFoundError when no active session matches.
type SessionStore interface {
	Open(ctx context.Context, session domain.VehicleSession) (domain.VehicleSession, error)
	Close(ctx context.Context, closed domain.VehicleSession) (domain.VehicleSession, error)
	Active(ctx context.Context) ([]domain.VehicleSession, error)
	History(ctx context.Context) ([]domain.VehicleSession, error)
	Reset(ctx context.Context) error
}

type UserRepository interface {
	FindByUsername(ctx context.Context, username string) (*domain.User, error)
	FindByID(ctx context.Context, id string) (*domain.User, error)
	Create(ctx context.Context, user domain.User) (*domain.User, error)
}

type InvoiceRepository interface {
	Create(ctx context.Context, invoice domain.Invoice) (*domain.Invoice, error)
	List(ctx context.Context) ([]domain.Invoice, error)
	// CountSince returns how many invoices were issued at or after since.
	CountSince(ctx context.Context, since time.Time) (int, error)
	Exists(ctx context.Context, number string) (bool, error)
	// Settle records the outcome of a stay on the invoice with number.
	Settle(ctx context.Context, number string, parkingMinutes int, total float64) error
}

// TokenBlacklist remembers revoked access tokens until they expire.
type TokenBlacklist interface {
	Revoke(ctx context.Context, tokenID string, ttl time.Duration) error
	IsRevoked(ctx context.Context, tokenID string) (bool, error)
}
