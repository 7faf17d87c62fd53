package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/parksys/parking-service/internal/core/domain"
	"github.com/parksys/parking-service/internal/core/format"
	"github.com/parksys/parking-service/internal/core/ports"
	"github.com/parksys/parking-service/internal/logging"
)

// InvoiceService numbers and records invoices. It also listens to registry
// events so every stay gets an invoice opened at check-in and settled at
// check-out.
type InvoiceService struct {
	mu      sync.Mutex
	repo    ports.InvoiceRepository
	loc     *time.Location
	now     func() time.Time
	lastDay string
	lastSeq int
}

var (
	_ ports.InvoiceService        = (*InvoiceService)(nil)
	_ ports.SessionEventPublisher = (*InvoiceService)(nil)
)

func NewInvoiceService(repo ports.InvoiceRepository, loc *time.Location) *InvoiceService {
	if loc == nil {
		loc = time.Local
	}
	return &InvoiceService{repo: repo, loc: loc, now: time.Now}
}

// WithClock replaces the service clock.
func (s *InvoiceService) WithClock(now func() time.Time) *InvoiceService {
	s.now = now
	return s
}

// NextNumber returns YYYYMMDD followed by a four-digit daily sequence.
func (s *InvoiceService) NextNumber(ctx context.Context) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.nextNumberLocked(ctx)
}

func (s *InvoiceService) nextNumberLocked(ctx context.Context) (string, error) {
	now := s.now().In(s.loc)
	day := now.Format("20060102")
	startOfDay := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, s.loc)

	issued, err := s.repo.CountSince(ctx, startOfDay)
	if err != nil {
		return "", fmt.Errorf("count invoices: %w", err)
	}

	seq := issued
	if s.lastDay == day && s.lastSeq > seq {
		seq = s.lastSeq
	}
	seq++
	s.lastDay, s.lastSeq = day, seq

	return fmt.Sprintf("%s%04d", day, seq), nil
}

func (s *InvoiceService) NumberInUse(ctx context.Context, number string) (bool, error) {
	inUse, err := s.repo.Exists(ctx, strings.TrimSpace(number))
	if err != nil {
		return false, fmt.Errorf("look up invoice: %w", err)
	}
	return inUse, nil
}

func (s *InvoiceService) Create(ctx context.Context, plate string, total float64, createdBy string) (*domain.Invoice, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	number, err := s.nextNumberLocked(ctx)
	if err != nil {
		return nil, err
	}
	return s.repo.Create(ctx, domain.Invoice{
		ID:          uuid.NewString(),
		Number:      number,
		Plate:       format.NormalizePlate(plate),
		TotalAmount: total,
		CreatedBy:   createdBy,
		CreatedAt:   s.now(),
	})
}

func (s *InvoiceService) List(ctx context.Context) ([]domain.Invoice, error) {
	return s.repo.List(ctx)
}

// PublishSessionEvent keeps invoices in step with the registry.
func (s *InvoiceService) PublishSessionEvent(ctx context.Context, evt ports.SessionEvent) error {
	session := evt.Session
	switch evt.Type {
	case ports.SessionOpened:
		_, err := s.repo.Create(ctx, domain.Invoice{
			ID:          uuid.NewString(),
			Number:      session.InvoiceNumber,
			Plate:       session.Plate,
			VehicleType: session.VehicleType,
			CreatedAt:   session.EntryAt,
		})
		return err
	case ports.SessionClosed:
		err := s.repo.Settle(ctx, session.InvoiceNumber, session.ParkingMinutes, session.TotalAmount)
		if errors.Is(err, domain.ErrNotFound) {
			logging.FromContext(ctx).Warn().
				Str("invoice", session.InvoiceNumber).
				Msg("no invoice to settle")
			return nil
		}
		return err
	}
	return nil
}
