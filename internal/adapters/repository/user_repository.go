package repository

import (
	"context"
	"database/sql"
	"errors"

	"github.com/parksys/parking-service/internal/core/domain"
	"github.com/parksys/parking-service/internal/core/ports"
)

const userColumns = "id, username, email, role, password, is_active, created_at"

type PostgresUserRepository struct {
	db *sql.DB
}

var _ ports.UserRepository = (*PostgresUserRepository)(nil)

func NewPostgresUserRepository(db *sql.DB) *PostgresUserRepository {
	return &PostgresUserRepository{db: db}
}

func (r *PostgresUserRepository) FindByUsername(ctx context.Context, username string) (*domain.User, error) {
	row := r.db.QueryRowContext(ctx,
		"SELECT "+userColumns+" FROM users WHERE LOWER(username) = LOWER($1)",
		username,
	)
	return scanUser(row, username)
}

func (r *PostgresUserRepository) FindByID(ctx context.Context, id string) (*domain.User, error) {
	row := r.db.QueryRowContext(ctx, "SELECT "+userColumns+" FROM users WHERE id = $1", id)
	return scanUser(row, id)
}

func (r *PostgresUserRepository) Create(ctx context.Context, user domain.User) (*domain.User, error) {
	_, err := r.db.ExecContext(ctx,
		"INSERT INTO users ("+userColumns+") VALUES ($1, $2, $3, $4, $5, $6, $7)",
		user.ID,
		user.Username,
		user.Email,
		user.Role,
		user.Password,
		user.Active,
		user.CreatedAt,
	)
	if isUniqueViolation(err) {
		return nil, domain.ErrUserExists
	}
	if err != nil {
		return nil, err
	}
	return &user, nil
}

func scanUser(row rowScanner, key string) (*domain.User, error) {
	var user domain.User
	err := row.Scan(
		&user.ID,
		&user.Username,
		&user.Email,
		&user.Role,
		&user.Password,
		&user.Active,
		&user.CreatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, &domain.NotFoundError{Resource: "user", ID: key}
	}
	if err != nil {
		return nil, err
	}
	return &user, nil
}
