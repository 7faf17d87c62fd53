package services

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/parksys/parking-service/internal/core/domain"
	"github.com/parksys/parking-service/internal/core/ports"
	"github.com/parksys/parking-service/internal/core/validate"
	"github.com/parksys/parking-service/internal/logging"
)

const minPasswordLength = 6

type RegistrationService struct {
	userRepo ports.UserRepository
}

var _ ports.RegistrationService = (*RegistrationService)(nil)

func NewRegistrationService(userRepo ports.UserRepository) *RegistrationService {
	return &RegistrationService{userRepo: userRepo}
}

func (s *RegistrationService) RegisterUser(
	ctx context.Context,
	username, email, password string,
	role domain.Role,
) (*domain.User, error) {
	username = strings.TrimSpace(username)
	email = strings.TrimSpace(email)

	fields := make(map[string]string)
	if username == "" {
		fields["username"] = "username is required"
	}
	if res := validate.Email(email); !res.Valid {
		fields["email"] = res.Message
	}
	if len(password) < minPasswordLength {
		fields["password"] = "password must have at least 6 characters"
	}
	if role != domain.RoleAdmin && role != domain.RoleAttendant {
		fields["role"] = "unsupported role"
	}
	if len(fields) > 0 {
		return nil, &domain.ValidationError{Fields: fields}
	}

	hashed, err := HashPassword(password)
	if err != nil {
		return nil, err
	}

	return s.userRepo.Create(ctx, domain.User{
		ID:        uuid.NewString(),
		Username:  username,
		Email:     email,
		Role:      role,
		Password:  hashed,
		Active:    true,
		CreatedAt: time.Now(),
	})
}

// EnsureUser creates the user unless one with that username exists.
func (s *RegistrationService) EnsureUser(ctx context.Context, username, email, password string, role domain.Role) error {
	_, err := s.userRepo.FindByUsername(ctx, username)
	if err == nil {
		return nil
	}
	if !errors.Is(err, domain.ErrNotFound) {
		return err
	}

	if _, err := s.RegisterUser(ctx, username, email, password, role); err != nil {
		return err
	}
	logging.FromContext(ctx).Info().Str("username", username).Msg("seeded user")
	return nil
}
