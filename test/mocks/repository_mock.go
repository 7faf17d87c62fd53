// Package mocks provides mock implementations of port interfaces for testing.
// Services depend on ports only, so tests inject these in place of the
// postgres or remote adapters.
package mocks

import (
	"context"
	"sync"
	"time"

	"github.com/parksys/parking-service/internal/core/domain"
	"github.com/parksys/parking-service/internal/core/ports"
)

// MockUserRepository implements ports.UserRepository for testing.
type MockUserRepository struct {
	mu sync.RWMutex

	users map[string]*domain.User

	// Call tracking for verification
	FindByUsernameCalls []string
	FindByIDCalls       []string
	CreateCalls         []domain.User

	// Error injection
	FindByUsernameError error
	FindByIDError       error
	CreateError         error
}

var _ ports.UserRepository = (*MockUserRepository)(nil)

func NewMockUserRepository() *MockUserRepository {
	return &MockUserRepository{
		users: make(map[string]*domain.User),
	}
}

// SeedUser adds a user to the mock repository for test setup.
func (m *MockUserRepository) SeedUser(user *domain.User) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.users[user.Username] = user
}

func (m *MockUserRepository) FindByUsername(ctx context.Context, username string) (*domain.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.FindByUsernameCalls = append(m.FindByUsernameCalls, username)
	if m.FindByUsernameError != nil {
		return nil, m.FindByUsernameError
	}

	user, ok := m.users[username]
	if !ok {
		return nil, &domain.NotFoundError{Resource: "user", ID: username}
	}
	return user, nil
}

func (m *MockUserRepository) FindByID(ctx context.Context, id string) (*domain.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.FindByIDCalls = append(m.FindByIDCalls, id)
	if m.FindByIDError != nil {
		return nil, m.FindByIDError
	}

	for _, u := range m.users {
		if u.ID == id {
			return u, nil
		}
	}
	return nil, &domain.NotFoundError{Resource: "user", ID: id}
}

func (m *MockUserRepository) Create(ctx context.Context, user domain.User) (*domain.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.CreateCalls = append(m.CreateCalls, user)
	if m.CreateError != nil {
		return nil, m.CreateError
	}
	if _, exists := m.users[user.Username]; exists {
		return nil, domain.ErrUserExists
	}

	m.users[user.Username] = &user
	return &user, nil
}

// MockInvoiceRepository implements ports.InvoiceRepository for testing.
type MockInvoiceRepository struct {
	mu sync.RWMutex

	Invoices []domain.Invoice

	SettleCalls []string

	CreateError     error
	ListError       error
	CountSinceError error
	ExistsError     error
	SettleError     error
}

var _ ports.InvoiceRepository = (*MockInvoiceRepository)(nil)

func NewMockInvoiceRepository() *MockInvoiceRepository {
	return &MockInvoiceRepository{}
}

func (m *MockInvoiceRepository) Create(ctx context.Context, invoice domain.Invoice) (*domain.Invoice, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.CreateError != nil {
		return nil, m.CreateError
	}
	m.Invoices = append(m.Invoices, invoice)
	return &invoice, nil
}

func (m *MockInvoiceRepository) List(ctx context.Context) ([]domain.Invoice, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.ListError != nil {
		return nil, m.ListError
	}
	out := make([]domain.Invoice, len(m.Invoices))
	copy(out, m.Invoices)
	return out, nil
}

func (m *MockInvoiceRepository) CountSince(ctx context.Context, since time.Time) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.CountSinceError != nil {
		return 0, m.CountSinceError
	}
	n := 0
	for _, inv := range m.Invoices {
		if !inv.CreatedAt.Before(since) {
			n++
		}
	}
	return n, nil
}

func (m *MockInvoiceRepository) Exists(ctx context.Context, number string) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.ExistsError != nil {
		return false, m.ExistsError
	}
	for _, inv := range m.Invoices {
		if inv.Number == number {
			return true, nil
		}
	}
	return false, nil
}

func (m *MockInvoiceRepository) Settle(ctx context.Context, number string, parkingMinutes int, total float64) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.SettleCalls = append(m.SettleCalls, number)
	if m.SettleError != nil {
		return m.SettleError
	}
	for i := range m.Invoices {
		if m.Invoices[i].Number == number {
			m.Invoices[i].ParkingMinutes = parkingMinutes
			m.Invoices[i].TotalAmount = total
			return nil
		}
	}
	return &domain.NotFoundError{Resource: "invoice", ID: number}
}

// MockSessionStore wraps an in-memory sequence pair with error injection so
// registry failure paths can be exercised.
type MockSessionStore struct {
	mu sync.Mutex

	ActiveSessions  []domain.VehicleSession
	HistorySessions []domain.VehicleSession

	OpenCalls  int
	CloseCalls int

	OpenError    error
	CloseError   error
	ActiveError  error
	HistoryError error
	ResetError   error
}

var _ ports.SessionStore = (*MockSessionStore)(nil)

func NewMockSessionStore() *MockSessionStore {
	return &MockSessionStore{}
}

func (m *MockSessionStore) Open(ctx context.Context, session domain.VehicleSession) (domain.VehicleSession, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.OpenCalls++
	if m.OpenError != nil {
		return domain.VehicleSession{}, m.OpenError
	}
	m.ActiveSessions = append(m.ActiveSessions, session)
	return session, nil
}

func (m *MockSessionStore) Close(ctx context.Context, closed domain.VehicleSession) (domain.VehicleSession, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.CloseCalls++
	if m.CloseError != nil {
		return domain.VehicleSession{}, m.CloseError
	}
	for i, s := range m.ActiveSessions {
		if s.Plate == closed.Plate {
			m.ActiveSessions = append(m.ActiveSessions[:i:i], m.ActiveSessions[i+1:]...)
			m.HistorySessions = append([]domain.VehicleSession{closed}, m.HistorySessions...)
			return closed, nil
		}
	}
	return domain.VehicleSession{}, &domain.NotFoundError{Resource: "vehicle", ID: closed.Plate}
}

func (m *MockSessionStore) Active(ctx context.Context) ([]domain.VehicleSession, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.ActiveError != nil {
		return nil, m.ActiveError
	}
	out := make([]domain.VehicleSession, len(m.ActiveSessions))
	copy(out, m.ActiveSessions)
	return out, nil
}

func (m *MockSessionStore) History(ctx context.Context) ([]domain.VehicleSession, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.HistoryError != nil {
		return nil, m.HistoryError
	}
	out := make([]domain.VehicleSession, len(m.HistorySessions))
	copy(out, m.HistorySessions)
	return out, nil
}

func (m *MockSessionStore) Reset(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.ResetError != nil {
		return m.ResetError
	}
	m.ActiveSessions = nil
	m.HistorySessions = nil
	return nil
}
