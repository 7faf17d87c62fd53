package services_test

import (
	"context"
	"errors"
	"math"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/parksys/parking-service/internal/adapters/repository"
	"github.com/parksys/parking-service/internal/core/domain"
	"github.com/parksys/parking-service/internal/core/ports"
	"github.com/parksys/parking-service/internal/core/services"
	"github.com/parksys/parking-service/internal/core/validate"
	"github.com/parksys/parking-service/test/mocks"
)

type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

var bogota = time.FixedZone("COT", -5*3600)

func newTestRegistry(t *testing.T, opts ...services.RegistryOption) (*services.Registry, *testClock) {
	t.Helper()
	clock := &testClock{now: time.Date(2025, 3, 5, 9, 0, 0, 0, bogota)}
	opts = append([]services.RegistryOption{
		services.WithClock(clock.Now),
		services.WithLocation(bogota),
	}, opts...)
	return services.NewRegistry(repository.NewMemorySessionStore(), opts...), clock
}

func draft(plate, vehicleType string) domain.Draft {
	return mocks.ValidDraft(plate, vehicleType)
}

func TestRegistry_CheckIn_Success(t *testing.T) {
	// ARRANGE
	reg, clock := newTestRegistry(t)
	ctx := context.Background()

	// ACT
	session, err := reg.CheckIn(ctx, domain.Draft{
		Plate:         "ABC123",
		VehicleType:   "car",
		InvoiceNumber: "F001",
		Amount:        "5000",
	})

	// ASSERT
	require.NoError(t, err)
	assert.NotEmpty(t, session.ID)
	assert.Equal(t, "ABC123", session.Plate)
	assert.Equal(t, domain.VehicleCar, session.VehicleType)
	assert.Equal(t, domain.DefaultRates().Rate(domain.VehicleCar), session.RegistrationValue)
	assert.Equal(t, 5000.0, session.Amount)
	assert.Equal(t, "F001", session.InvoiceNumber)
	assert.True(t, session.EntryAt.Equal(clock.Now()))
	assert.Nil(t, session.ExitAt)
	assert.Equal(t, domain.StatusActive, session.Status())

	active, err := reg.Active(ctx)
	require.NoError(t, err)
	require.Len(t, active, 1)
	assert.Equal(t, session.ID, active[0].ID)
}

func TestRegistry_CheckIn_NormalizesPlate(t *testing.T) {
	reg, _ := newTestRegistry(t)

	session, err := reg.CheckIn(context.Background(), draft("  abc123 ", "carro"))

	require.NoError(t, err)
	assert.Equal(t, "ABC123", session.Plate)
	assert.Equal(t, "abc123", session.DisplayPlate)
	assert.Equal(t, domain.VehicleCar, session.VehicleType)
}

func TestRegistry_CheckIn_AssignsUniqueIDs(t *testing.T) {
	reg, _ := newTestRegistry(t)
	ctx := context.Background()

	a, err := reg.CheckIn(ctx, draft("AAA111", "car"))
	require.NoError(t, err)
	b, err := reg.CheckIn(ctx, draft("BBB222", "moto"))
	require.NoError(t, err)

	assert.NotEqual(t, a.ID, b.ID)
}

func TestRegistry_CheckIn_Duplicate(t *testing.T) {
	reg, _ := newTestRegistry(t)
	ctx := context.Background()

	_, err := reg.CheckIn(ctx, draft("ABC123", "car"))
	require.NoError(t, err)

	tests := []string{"ABC123", "abc123", " Abc123 "}
	for _, plate := range tests {
		t.Run(plate, func(t *testing.T) {
			_, err := reg.CheckIn(ctx, draft(plate, "moto"))

			var dup *domain.DuplicatePlateError
			require.ErrorAs(t, err, &dup)
			assert.Equal(t, "ABC123", dup.Plate)
			assert.ErrorIs(t, err, domain.ErrDuplicatePlate)

			active, err := reg.Active(ctx)
			require.NoError(t, err)
			assert.Len(t, active, 1)
		})
	}
}

func TestRegistry_CheckIn_ValidationLeavesStateUntouched(t *testing.T) {
	tests := []struct {
		name       string
		draft      domain.Draft
		wantFields []string
	}{
		{
			name:       "empty draft",
			draft:      domain.Draft{},
			wantFields: []string{validate.FieldPlate, validate.FieldVehicleType, validate.FieldAmount, validate.FieldInvoiceNumber},
		},
		{
			name:       "bad vehicle type",
			draft:      domain.Draft{Plate: "ABC123", VehicleType: "bus", InvoiceNumber: "F001", Amount: "10"},
			wantFields: []string{validate.FieldVehicleType},
		},
		{
			name:       "zero amount",
			draft:      domain.Draft{Plate: "ABC123", VehicleType: "car", InvoiceNumber: "F001", Amount: "0"},
			wantFields: []string{validate.FieldAmount},
		},
		{
			name:       "bad entry time",
			draft:      domain.Draft{Plate: "ABC123", VehicleType: "car", InvoiceNumber: "F001", Amount: "10", EntryTime: "25:00"},
			wantFields: []string{validate.FieldEntryTime},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			reg, _ := newTestRegistry(t)
			ctx := context.Background()

			_, err := reg.CheckIn(ctx, tt.draft)

			var verr *domain.ValidationError
			require.ErrorAs(t, err, &verr)
			assert.Len(t, verr.Fields, len(tt.wantFields))
			for _, f := range tt.wantFields {
				assert.Contains(t, verr.Fields, f)
			}

			active, _ := reg.Active(ctx)
			assert.Empty(t, active)
		})
	}
}

func TestRegistry_CheckOut_CaseInsensitive(t *testing.T) {
	reg, clock := newTestRegistry(t)
	ctx := context.Background()

	_, err := reg.CheckIn(ctx, draft("ABC123", "car"))
	require.NoError(t, err)
	clock.Advance(90 * time.Minute)

	closed, err := reg.CheckOut(ctx, "abc123")

	require.NoError(t, err)
	require.NotNil(t, closed.ExitAt)
	assert.True(t, closed.ExitAt.Equal(clock.Now()))
	assert.Equal(t, domain.StatusClosed, closed.Status())
	assert.Equal(t, 90, closed.ParkingMinutes)
	assert.Equal(t, 4500.0, closed.TotalAmount)

	active, _ := reg.Active(ctx)
	assert.Empty(t, active)

	history, _ := reg.History(ctx)
	require.Len(t, history, 1)
	assert.Equal(t, closed.ID, history[0].ID)
}

func TestRegistry_CheckOut_PrependsToHistory(t *testing.T) {
	reg, clock := newTestRegistry(t)
	ctx := context.Background()

	for _, p := range []string{"AAA111", "BBB222", "CCC333"} {
		_, err := reg.CheckIn(ctx, draft(p, "car"))
		require.NoError(t, err)
	}

	for _, p := range []string{"BBB222", "AAA111"} {
		clock.Advance(time.Minute)
		_, err := reg.CheckOut(ctx, p)
		require.NoError(t, err)
	}

	history, _ := reg.History(ctx)
	require.Len(t, history, 2)
	assert.Equal(t, "AAA111", history[0].Plate)
	assert.Equal(t, "BBB222", history[1].Plate)

	active, _ := reg.Active(ctx)
	require.Len(t, active, 1)
	assert.Equal(t, "CCC333", active[0].Plate)
}

func TestRegistry_CheckOut_NotFound(t *testing.T) {
	reg, _ := newTestRegistry(t)
	ctx := context.Background()

	_, err := reg.CheckIn(ctx, draft("ABC123", "car"))
	require.NoError(t, err)

	_, err = reg.CheckOut(ctx, "XYZ999")

	var nf *domain.NotFoundError
	require.ErrorAs(t, err, &nf)
	assert.Equal(t, "XYZ999", nf.ID)
	assert.ErrorIs(t, err, domain.ErrNotFound)

	active, _ := reg.Active(ctx)
	history, _ := reg.History(ctx)
	assert.Len(t, active, 1)
	assert.Empty(t, history)
}

func TestRegistry_ClosedSessionCannotBeClosedAgain(t *testing.T) {
	reg, _ := newTestRegistry(t)
	ctx := context.Background()

	_, err := reg.CheckIn(ctx, draft("ABC123", "car"))
	require.NoError(t, err)
	_, err = reg.CheckOut(ctx, "ABC123")
	require.NoError(t, err)

	_, err = reg.CheckOut(ctx, "ABC123")
	assert.ErrorIs(t, err, domain.ErrNotFound)

	history, _ := reg.History(ctx)
	assert.Len(t, history, 1)
}

func TestRegistry_PlateCanReturnAfterCheckOut(t *testing.T) {
	reg, _ := newTestRegistry(t)
	ctx := context.Background()

	first, err := reg.CheckIn(ctx, draft("ABC123", "car"))
	require.NoError(t, err)
	_, err = reg.CheckOut(ctx, "ABC123")
	require.NoError(t, err)

	second, err := reg.CheckIn(ctx, draft("ABC123", "car"))
	require.NoError(t, err)
	assert.NotEqual(t, first.ID, second.ID)
}

func TestRegistry_FindActive(t *testing.T) {
	reg, _ := newTestRegistry(t)
	ctx := context.Background()

	created, err := reg.CheckIn(ctx, draft("ABC123", "car"))
	require.NoError(t, err)

	found, ok, err := reg.FindActive(ctx, "abc123")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, created.ID, found.ID)

	_, ok, err = reg.FindActive(ctx, "ZZZ999")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestRegistry_Statistics(t *testing.T) {
	reg, clock := newTestRegistry(t)
	ctx := context.Background()

	// Yesterday's car, closed today.
	clock.Advance(-24 * time.Hour)
	_, err := reg.CheckIn(ctx, draft("OLD111", "car"))
	require.NoError(t, err)
	clock.Advance(24 * time.Hour)
	_, err = reg.CheckOut(ctx, "OLD111")
	require.NoError(t, err)

	// Today: one car, one motorcycle still parked, one car already gone.
	_, err = reg.CheckIn(ctx, draft("CAR111", "car"))
	require.NoError(t, err)
	_, err = reg.CheckIn(ctx, draft("MOTO22", "moto"))
	require.NoError(t, err)
	_, err = reg.CheckIn(ctx, draft("CAR333", "car"))
	require.NoError(t, err)
	_, err = reg.CheckOut(ctx, "CAR333")
	require.NoError(t, err)

	stats, err := reg.Statistics(ctx)
	require.NoError(t, err)

	assert.Equal(t, 2, stats.TotalActive)
	assert.Equal(t, 2, stats.TotalHistory)
	assert.Equal(t, 3, stats.TotalToday)
	assert.Equal(t, map[domain.VehicleType]int{domain.VehicleCar: 1, domain.VehicleMotorcycle: 1}, stats.CountsByType)
	assert.Equal(t, 5000.0, stats.RevenueActive)
	assert.Equal(t, 8000.0, stats.RevenueToday)

	today, err := reg.Today(ctx)
	require.NoError(t, err)
	assert.Len(t, today, 3)
}

func TestRegistry_Statistics_TotalsTrackSequences(t *testing.T) {
	reg, _ := newTestRegistry(t)
	ctx := context.Background()

	plates := []string{"AAA111", "BBB222", "CCC333", "DDD444"}
	for i, p := range plates {
		_, err := reg.CheckIn(ctx, draft(p, "car"))
		require.NoError(t, err)
		if i%2 == 0 {
			_, err = reg.CheckOut(ctx, p)
			require.NoError(t, err)
		}

		stats, err := reg.Statistics(ctx)
		require.NoError(t, err)
		active, _ := reg.Active(ctx)
		history, _ := reg.History(ctx)
		assert.Equal(t, len(active), stats.TotalActive)
		assert.Equal(t, len(history), stats.TotalHistory)
	}
}

func TestRegistry_Statistics_Idempotent(t *testing.T) {
	reg, _ := newTestRegistry(t)
	ctx := context.Background()

	_, err := reg.CheckIn(ctx, draft("ABC123", "car"))
	require.NoError(t, err)

	first, err := reg.Statistics(ctx)
	require.NoError(t, err)
	second, err := reg.Statistics(ctx)
	require.NoError(t, err)

	assert.Equal(t, first, second)
}

func TestRegistry_Statistics_IgnoresBadRevenue(t *testing.T) {
	store := mocks.NewMockSessionStore()
	now := time.Date(2025, 3, 5, 9, 0, 0, 0, bogota)
	good := mocks.CreateTestSession("GOOD11", domain.VehicleCar, now)
	nan := mocks.CreateTestSession("NAN111", domain.VehicleCar, now)
	nan.RegistrationValue = math.NaN()
	neg := mocks.CreateTestSession("NEG111", domain.VehicleMotorcycle, now)
	neg.RegistrationValue = -100
	store.ActiveSessions = []domain.VehicleSession{good, nan, neg}

	reg := services.NewRegistry(store, services.WithClock(mocks.FixedClock(now)), services.WithLocation(bogota))

	stats, err := reg.Statistics(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 3000.0, stats.RevenueActive)
	assert.Equal(t, 3000.0, stats.RevenueToday)
}

func TestRegistry_Statistics_EmptyRegistry(t *testing.T) {
	reg, _ := newTestRegistry(t)

	stats, err := reg.Statistics(context.Background())
	require.NoError(t, err)
	assert.Zero(t, stats.TotalActive)
	assert.Zero(t, stats.TotalToday)
	assert.Zero(t, stats.RevenueToday)
	assert.Equal(t, map[domain.VehicleType]int{domain.VehicleCar: 0, domain.VehicleMotorcycle: 0}, stats.CountsByType)
}

func TestRegistry_Reset(t *testing.T) {
	reg, _ := newTestRegistry(t)
	ctx := context.Background()

	_, err := reg.CheckIn(ctx, draft("AAA111", "car"))
	require.NoError(t, err)
	_, err = reg.CheckIn(ctx, draft("BBB222", "car"))
	require.NoError(t, err)
	_, err = reg.CheckOut(ctx, "AAA111")
	require.NoError(t, err)

	require.NoError(t, reg.Reset(ctx))

	stats, err := reg.Statistics(ctx)
	require.NoError(t, err)
	assert.Zero(t, stats.TotalActive)
	assert.Zero(t, stats.TotalHistory)
}

func TestRegistry_CustomRulesAndRates(t *testing.T) {
	rules := validate.DefaultRules()
	rules.PlateMinLength = 0
	rules.PlateMaxLength = 0
	reg, _ := newTestRegistry(t,
		services.WithRules(rules),
		services.WithRates(domain.RateTable{domain.VehicleCar: 4200, domain.VehicleMotorcycle: 1800}),
	)

	session, err := reg.CheckIn(context.Background(), draft("AB1", "moto"))
	require.NoError(t, err)
	assert.Equal(t, 1800.0, session.RegistrationValue)
}

func TestRegistry_PublishesEvents(t *testing.T) {
	publisher := mocks.NewMockSessionEventPublisher()
	reg, _ := newTestRegistry(t, services.WithPublishers(publisher))
	ctx := context.Background()

	_, err := reg.CheckIn(ctx, draft("ABC123", "car"))
	require.NoError(t, err)
	_, err = reg.CheckOut(ctx, "ABC123")
	require.NoError(t, err)
	require.NoError(t, reg.Reset(ctx))

	events := publisher.GetPublishedEvents()
	require.Len(t, events, 3)
	assert.Equal(t, ports.SessionOpened, events[0].Type)
	assert.Equal(t, ports.SessionClosed, events[1].Type)
	assert.NotNil(t, events[1].Session.ExitAt)
	assert.Equal(t, ports.SessionsReset, events[2].Type)
}

func TestRegistry_PublisherFailureDoesNotFailCheckIn(t *testing.T) {
	publisher := mocks.NewMockSessionEventPublisher()
	publisher.PublishError = errors.New("broker down")
	reg, _ := newTestRegistry(t, services.WithPublishers(publisher))

	_, err := reg.CheckIn(context.Background(), draft("ABC123", "car"))

	require.NoError(t, err)
	assert.Equal(t, 1, publisher.GetPublishCount())
}

func TestRegistry_StoreErrorsPropagate(t *testing.T) {
	boom := errors.New("store unavailable")

	t.Run("open", func(t *testing.T) {
		store := mocks.NewMockSessionStore()
		store.OpenError = boom
		reg := services.NewRegistry(store)

		_, err := reg.CheckIn(context.Background(), draft("ABC123", "car"))
		assert.ErrorIs(t, err, boom)
	})

	t.Run("active", func(t *testing.T) {
		store := mocks.NewMockSessionStore()
		store.ActiveError = boom
		reg := services.NewRegistry(store)

		_, err := reg.CheckOut(context.Background(), "ABC123")
		assert.ErrorIs(t, err, boom)
		_, err = reg.Statistics(context.Background())
		assert.ErrorIs(t, err, boom)
	})

	t.Run("close", func(t *testing.T) {
		store := mocks.NewMockSessionStore()
		store.ActiveSessions = []domain.VehicleSession{mocks.CreateTestSession("ABC123", domain.VehicleCar, time.Now())}
		store.CloseError = boom
		reg := services.NewRegistry(store)

		_, err := reg.CheckOut(context.Background(), "ABC123")
		assert.ErrorIs(t, err, boom)
		assert.Len(t, store.ActiveSessions, 1)
	})
}

func TestRegistry_ConcurrentCheckInSamePlate(t *testing.T) {
	reg, _ := newTestRegistry(t)
	ctx := context.Background()

	var wg sync.WaitGroup
	var mu sync.Mutex
	succeeded := 0
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := reg.CheckIn(ctx, draft("ABC123", "car")); err == nil {
				mu.Lock()
				succeeded++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, succeeded)
	active, _ := reg.Active(ctx)
	assert.Len(t, active, 1)
}

func TestParkingCharge(t *testing.T) {
	tests := []struct {
		minutes int
		rate    float64
		want    float64
	}{
		{0, 3000, 3000},
		{30, 3000, 1500},
		{60, 3000, 3000},
		{90, 2000, 3000},
		{1, 2000, 33},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, services.ParkingCharge(tt.minutes, tt.rate))
	}
}
