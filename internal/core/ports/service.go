package ports

import (
	"context"

	"github.com/parksys/parking-service/internal/core/domain"
)

// Registry owns the active and history sequences of vehicle sessions.
type Registry interface {
	CheckIn(ctx context.Context, draft domain.Draft) (domain.VehicleSession, error)
	CheckOut(ctx context.Context, plate string) (domain.VehicleSession, error)
	FindActive(ctx context.Context, plate string) (domain.VehicleSession, bool, error)
	Active(ctx context.Context) ([]domain.VehicleSession, error)
	Today(ctx context.Context) ([]domain.VehicleSession, error)
	History(ctx context.Context) ([]domain.VehicleSession, error)
	Statistics(ctx context.Context) (domain.Statistics, error)
	Reset(ctx context.Context) error
}

type LoginResult struct {
	AccessToken string      `json:"access_token"`
	TokenType   string      `json:"token_type"`
	User        domain.User `json:"user_info"`
}

type AuthService interface {
	Login(ctx context.Context, username, password string) (*LoginResult, error)
	Logout(ctx context.Context, token string) error
	Me(ctx context.Context, userID string) (*domain.User, error)
}

type RegistrationService interface {
	RegisterUser(ctx context.Context, username, email, password string, role domain.Role) (*domain.User, error)
}

type InvoiceService interface {
	Create(ctx context.Context, plate string, total float64, createdBy string) (*domain.Invoice, error)
	List(ctx context.Context) ([]domain.Invoice, error)
	NextNumber(ctx context.Context) (string, error)
	// NumberInUse reports whether an invoice with number was already issued.
	NumberInUse(ctx context.Context, number string) (bool, error)
}
