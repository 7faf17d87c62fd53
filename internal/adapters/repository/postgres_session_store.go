package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/parksys/parking-service/internal/core/domain"
	"github.com/parksys/parking-service/internal/core/ports"
)

const outboxChannel = "outbox_channel"

const sessionColumns = `id, plate, display_plate, vehicle_type, entry_at, exit_at,
	registration_value, amount, invoice_number, declared_entry, owner_name, phone,
	parking_minutes, total_amount`

// PostgresSessionStore persists sessions and writes a matching outbox event
// in the same transaction, so the relay can forward every committed change.
type PostgresSessionStore struct {
	db  *sql.DB
	now func() time.Time
}

var _ ports.SessionStore = (*PostgresSessionStore)(nil)

func NewPostgresSessionStore(db *sql.DB) *PostgresSessionStore {
	return &PostgresSessionStore{db: db, now: time.Now}
}

func (s *PostgresSessionStore) Open(ctx context.Context, session domain.VehicleSession) (domain.VehicleSession, error) {
	err := s.inTx(ctx, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO vehicle_sessions (`+sessionColumns+`)
			VALUES ($1, $2, $3, $4, $5, NULL, $6, $7, $8, $9, $10, $11, 0, 0)`,
			session.ID,
			session.Plate,
			session.DisplayPlate,
			session.VehicleType,
			session.EntryAt,
			session.RegistrationValue,
			session.Amount,
			session.InvoiceNumber,
			session.DeclaredEntry,
			session.OwnerName,
			session.Phone,
		)
		if isUniqueViolation(err) {
			return &domain.DuplicatePlateError{Plate: session.Plate}
		}
		if err != nil {
			return err
		}
		return s.writeOutbox(ctx, tx, ports.SessionOpened, session)
	})
	if err != nil {
		return domain.VehicleSession{}, err
	}
	return session, nil
}

func (s *PostgresSessionStore) Close(ctx context.Context, closed domain.VehicleSession) (domain.VehicleSession, error) {
	var stored domain.VehicleSession
	err := s.inTx(ctx, func(tx *sql.Tx) error {
		row := tx.QueryRowContext(ctx, `
			UPDATE vehicle_sessions
			SET exit_at = $2, parking_minutes = $3, total_amount = $4
			WHERE plate = $1 AND exit_at IS NULL
			RETURNING `+sessionColumns,
			closed.Plate,
			closed.ExitAt,
			closed.ParkingMinutes,
			closed.TotalAmount,
		)
		var err error
		stored, err = scanSession(row)
		if errors.Is(err, sql.ErrNoRows) {
			return &domain.NotFoundError{Resource: "vehicle", ID: closed.Plate}
		}
		if err != nil {
			return err
		}
		return s.writeOutbox(ctx, tx, ports.SessionClosed, stored)
	})
	if err != nil {
		return domain.VehicleSession{}, err
	}
	return stored, nil
}

// Active returns open sessions in entry order.
func (s *PostgresSessionStore) Active(ctx context.Context) ([]domain.VehicleSession, error) {
	return s.query(ctx, `SELECT `+sessionColumns+` FROM vehicle_sessions
		WHERE exit_at IS NULL ORDER BY entry_at, id`)
}

// History returns closed sessions, most recent exit first.
func (s *PostgresSessionStore) History(ctx context.Context) ([]domain.VehicleSession, error) {
	return s.query(ctx, `SELECT `+sessionColumns+` FROM vehicle_sessions
		WHERE exit_at IS NOT NULL ORDER BY exit_at DESC, id`)
}

func (s *PostgresSessionStore) Reset(ctx context.Context) error {
	return s.inTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `DELETE FROM vehicle_sessions`); err != nil {
			return err
		}
		return s.writeOutbox(ctx, tx, ports.SessionsReset, domain.VehicleSession{})
	})
}

func (s *PostgresSessionStore) query(ctx context.Context, q string) ([]domain.VehicleSession, error) {
	rows, err := s.db.QueryContext(ctx, q)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	sessions := []domain.VehicleSession{}
	for rows.Next() {
		session, err := scanSession(rows)
		if err != nil {
			return nil, err
		}
		sessions = append(sessions, session)
	}
	return sessions, rows.Err()
}

func (s *PostgresSessionStore) writeOutbox(ctx context.Context, tx *sql.Tx, eventType ports.SessionEventType, session domain.VehicleSession) error {
	evt := ports.SessionEvent{
		ID:         uuid.NewString(),
		Type:       eventType,
		OccurredAt: s.now(),
		Session:    session,
	}
	payload, err := json.Marshal(evt)
	if err != nil {
		return fmt.Errorf("encode outbox event: %w", err)
	}

	if _, err := tx.ExecContext(ctx,
		`INSERT INTO outbox_events (id, event_type, payload, created_at) VALUES ($1, $2, $3, $4)`,
		evt.ID, string(evt.Type), payload, evt.OccurredAt,
	); err != nil {
		return fmt.Errorf("write outbox event: %w", err)
	}

	// Delivered on commit; the relay also polls, so a lost notify only delays.
	if _, err := tx.ExecContext(ctx, `SELECT pg_notify($1, $2)`, outboxChannel, evt.ID); err != nil {
		return fmt.Errorf("notify outbox: %w", err)
	}
	return nil
}

func (s *PostgresSessionStore) inTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if err := fn(tx); err != nil {
		return err
	}
	return tx.Commit()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSession(row rowScanner) (domain.VehicleSession, error) {
	var (
		session domain.VehicleSession
		exitAt  sql.NullTime
	)
	err := row.Scan(
		&session.ID,
		&session.Plate,
		&session.DisplayPlate,
		&session.VehicleType,
		&session.EntryAt,
		&exitAt,
		&session.RegistrationValue,
		&session.Amount,
		&session.InvoiceNumber,
		&session.DeclaredEntry,
		&session.OwnerName,
		&session.Phone,
		&session.ParkingMinutes,
		&session.TotalAmount,
	)
	if err != nil {
		return domain.VehicleSession{}, err
	}
	if exitAt.Valid {
		t := exitAt.Time
		session.ExitAt = &t
	}
	return session, nil
}
