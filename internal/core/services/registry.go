package services

import (
	"context"
	"math"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/parksys/parking-service/internal/core/domain"
	"github.com/parksys/parking-service/internal/core/format"
	"github.com/parksys/parking-service/internal/core/ports"
	"github.com/parksys/parking-service/internal/core/validate"
	"github.com/parksys/parking-service/internal/logging"
)

// Registry tracks parked vehicles on top of a SessionStore. Check-in and
// check-out are serialized so the duplicate-plate check and the write it
// guards happen atomically within this process.
type Registry struct {
	mu         sync.Mutex
	store      ports.SessionStore
	rules      validate.Rules
	rates      domain.RateTable
	loc        *time.Location
	now        func() time.Time
	publishers []ports.SessionEventPublisher
}

var _ ports.Registry = (*Registry)(nil)

type RegistryOption func(*Registry)

func WithRules(rules validate.Rules) RegistryOption {
	return func(r *Registry) { r.rules = rules }
}

func WithRates(rates domain.RateTable) RegistryOption {
	return func(r *Registry) { r.rates = rates }
}

// WithLocation sets the time zone that decides what "today" means.
func WithLocation(loc *time.Location) RegistryOption {
	return func(r *Registry) {
		if loc != nil {
			r.loc = loc
		}
	}
}

func WithClock(now func() time.Time) RegistryOption {
	return func(r *Registry) { r.now = now }
}

func WithPublishers(publishers ...ports.SessionEventPublisher) RegistryOption {
	return func(r *Registry) { r.publishers = append(r.publishers, publishers...) }
}

func NewRegistry(store ports.SessionStore, opts ...RegistryOption) *Registry {
	r := &Registry{
		store: store,
		rules: validate.DefaultRules(),
		rates: domain.DefaultRates(),
		loc:   time.Local,
		now:   time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

func (r *Registry) CheckIn(ctx context.Context, draft domain.Draft) (domain.VehicleSession, error) {
	if err := r.rules.Draft(draft); err != nil {
		return domain.VehicleSession{}, err
	}

	vehicleType, _ := domain.ParseVehicleType(draft.VehicleType)
	amount, _ := strconv.ParseFloat(strings.TrimSpace(draft.Amount), 64)
	plate := format.NormalizePlate(draft.Plate)

	r.mu.Lock()
	defer r.mu.Unlock()

	active, err := r.store.Active(ctx)
	if err != nil {
		return domain.VehicleSession{}, err
	}
	if _, found := findByPlate(active, plate); found {
		return domain.VehicleSession{}, &domain.DuplicatePlateError{Plate: plate}
	}

	session := domain.VehicleSession{
		ID:                uuid.NewString(),
		Plate:             plate,
		DisplayPlate:      strings.TrimSpace(draft.Plate),
		VehicleType:       vehicleType,
		EntryAt:           r.now().In(r.loc),
		RegistrationValue: r.rates.Rate(vehicleType),
		Amount:            amount,
		InvoiceNumber:     strings.TrimSpace(draft.InvoiceNumber),
		DeclaredEntry:     strings.TrimSpace(draft.EntryTime),
		OwnerName:         strings.TrimSpace(draft.OwnerName),
		Phone:             strings.TrimSpace(draft.Phone),
	}

	stored, err := r.store.Open(ctx, session)
	if err != nil {
		return domain.VehicleSession{}, err
	}

	logging.FromContext(ctx).Info().
		Str("plate", stored.Plate).
		Str("vehicle_type", string(stored.VehicleType)).
		Str("invoice", stored.InvoiceNumber).
		Msg("vehicle checked in")

	r.publish(ctx, ports.SessionOpened, stored)
	return stored, nil
}

func (r *Registry) CheckOut(ctx context.Context, plate string) (domain.VehicleSession, error) {
	plate = format.NormalizePlate(plate)

	r.mu.Lock()
	defer r.mu.Unlock()

	active, err := r.store.Active(ctx)
	if err != nil {
		return domain.VehicleSession{}, err
	}
	session, found := findByPlate(active, plate)
	if !found {
		return domain.VehicleSession{}, &domain.NotFoundError{Resource: "vehicle", ID: plate}
	}

	exitAt := r.now().In(r.loc)
	if exitAt.Before(session.EntryAt) {
		exitAt = session.EntryAt
	}
	session.ExitAt = &exitAt
	session.ParkingMinutes, _ = format.ElapsedMinutes(session.EntryAt, exitAt)
	session.TotalAmount = ParkingCharge(session.ParkingMinutes, session.RegistrationValue)

	closed, err := r.store.Close(ctx, session)
	if err != nil {
		return domain.VehicleSession{}, err
	}

	logging.FromContext(ctx).Info().
		Str("plate", closed.Plate).
		Int("minutes", closed.ParkingMinutes).
		Float64("total", closed.TotalAmount).
		Msg("vehicle checked out")

	r.publish(ctx, ports.SessionClosed, closed)
	return closed, nil
}

func (r *Registry) FindActive(ctx context.Context, plate string) (domain.VehicleSession, bool, error) {
	active, err := r.store.Active(ctx)
	if err != nil {
		return domain.VehicleSession{}, false, err
	}
	session, found := findByPlate(active, format.NormalizePlate(plate))
	return session, found, nil
}

func (r *Registry) Active(ctx context.Context) ([]domain.VehicleSession, error) {
	return r.store.Active(ctx)
}

func (r *Registry) History(ctx context.Context) ([]domain.VehicleSession, error) {
	return r.store.History(ctx)
}

// Today returns every session, active or closed, that entered on the
// current date.
func (r *Registry) Today(ctx context.Context) ([]domain.VehicleSession, error) {
	active, history, err := r.snapshot(ctx)
	if err != nil {
		return nil, err
	}
	return r.enteredToday(active, history), nil
}

func (r *Registry) Statistics(ctx context.Context) (domain.Statistics, error) {
	active, history, err := r.snapshot(ctx)
	if err != nil {
		return domain.Statistics{}, err
	}
	today := r.enteredToday(active, history)

	stats := domain.Statistics{
		TotalActive:  len(active),
		TotalToday:   len(today),
		TotalHistory: len(history),
		CountsByType: make(map[domain.VehicleType]int, len(domain.VehicleTypes)),
	}
	for _, t := range domain.VehicleTypes {
		stats.CountsByType[t] = 0
	}
	for _, s := range active {
		if s.VehicleType.Known() {
			stats.CountsByType[s.VehicleType]++
		}
		stats.RevenueActive += revenue(s.RegistrationValue)
	}
	for _, s := range today {
		stats.RevenueToday += revenue(s.RegistrationValue)
	}
	return stats, nil
}

func (r *Registry) Reset(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if err := r.store.Reset(ctx); err != nil {
		return err
	}
	logging.FromContext(ctx).Warn().Msg("registry reset")
	r.publish(ctx, ports.SessionsReset, domain.VehicleSession{})
	return nil
}

func (r *Registry) snapshot(ctx context.Context) ([]domain.VehicleSession, []domain.VehicleSession, error) {
	active, err := r.store.Active(ctx)
	if err != nil {
		return nil, nil, err
	}
	history, err := r.store.History(ctx)
	if err != nil {
		return nil, nil, err
	}
	return active, history, nil
}

func (r *Registry) enteredToday(active, history []domain.VehicleSession) []domain.VehicleSession {
	now := r.now()
	today := make([]domain.VehicleSession, 0)
	for _, seq := range [][]domain.VehicleSession{active, history} {
		for _, s := range seq {
			if format.IsSameDay(s.EntryAt, now, r.loc) {
				today = append(today, s)
			}
		}
	}
	return today
}

// publish fans a committed mutation out to every publisher. Failures are
// logged only; the mutation already happened.
func (r *Registry) publish(ctx context.Context, eventType ports.SessionEventType, session domain.VehicleSession) {
	if len(r.publishers) == 0 {
		return
	}
	evt := ports.SessionEvent{
		ID:         uuid.NewString(),
		Type:       eventType,
		OccurredAt: r.now(),
		Session:    session,
	}
	for _, p := range r.publishers {
		if err := p.PublishSessionEvent(ctx, evt); err != nil {
			logging.FromContext(ctx).Error().Err(err).
				Str("event", string(eventType)).
				Msg("failed to publish session event")
		}
	}
}

// ParkingCharge prorates the hourly rate over the minutes parked. Stays
// shorter than a minute pay the full rate.
func ParkingCharge(minutes int, rate float64) float64 {
	if minutes <= 0 {
		return rate
	}
	return math.Floor(float64(minutes) / 60 * rate)
}

func findByPlate(sessions []domain.VehicleSession, plate string) (domain.VehicleSession, bool) {
	for _, s := range sessions {
		if format.NormalizePlate(s.Plate) == plate {
			return s, true
		}
	}
	return domain.VehicleSession{}, false
}

// revenue treats missing or nonsensical values as zero.
func revenue(v float64) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) || v < 0 {
		return 0
	}
	return v
}
