package repository

import (
	"context"
	"sync"

	"github.com/parksys/parking-service/internal/core/domain"
	"github.com/parksys/parking-service/internal/core/format"
	"github.com/parksys/parking-service/internal/core/ports"
)

// MemorySessionStore keeps sessions in process memory. Active sessions are
// kept in entry order, history newest first.
type MemorySessionStore struct {
	mu      sync.RWMutex
	active  []domain.VehicleSession
	history []domain.VehicleSession
}

var _ ports.SessionStore = (*MemorySessionStore)(nil)

func NewMemorySessionStore() *MemorySessionStore {
	return &MemorySessionStore{}
}

func (s *MemorySessionStore) Open(ctx context.Context, session domain.VehicleSession) (domain.VehicleSession, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.indexOf(session.Plate) >= 0 {
		return domain.VehicleSession{}, &domain.DuplicatePlateError{Plate: session.Plate}
	}
	s.active = append(s.active, session)
	return session, nil
}

func (s *MemorySessionStore) Close(ctx context.Context, closed domain.VehicleSession) (domain.VehicleSession, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	i := s.indexOf(closed.Plate)
	if i < 0 {
		return domain.VehicleSession{}, &domain.NotFoundError{Resource: "vehicle", ID: closed.Plate}
	}

	s.active = append(s.active[:i:i], s.active[i+1:]...)
	s.history = append([]domain.VehicleSession{closed}, s.history...)
	return closed, nil
}

func (s *MemorySessionStore) Active(ctx context.Context) ([]domain.VehicleSession, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return clone(s.active), nil
}

func (s *MemorySessionStore) History(ctx context.Context) ([]domain.VehicleSession, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return clone(s.history), nil
}

func (s *MemorySessionStore) Reset(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.active = nil
	s.history = nil
	return nil
}

func (s *MemorySessionStore) indexOf(plate string) int {
	plate = format.NormalizePlate(plate)
	for i, session := range s.active {
		if format.NormalizePlate(session.Plate) == plate {
			return i
		}
	}
	return -1
}

func clone(sessions []domain.VehicleSession) []domain.VehicleSession {
	out := make([]domain.VehicleSession, len(sessions))
	copy(out, sessions)
	return out
}
