package remote

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/parksys/parking-service/internal/core/domain"
	"github.com/parksys/parking-service/internal/core/services"
)

func newTestServer(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewClient(srv.URL+"/", time.Second, WithToken("service-token"))
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func TestClient_Open(t *testing.T) {
	entry := time.Date(2025, 3, 5, 8, 0, 0, 0, time.UTC)
	var got EntryRequest

	client := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/vehicles/entry/ABC123", r.URL.Path)
		assert.Equal(t, "Bearer service-token", r.Header.Get("Authorization"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))

		writeJSON(w, http.StatusCreated, Envelope{
			Success: true,
			Message: "vehicle registered",
			Vehicle: &domain.VehicleSession{
				ID:          "remote-1",
				Plate:       "ABC123",
				VehicleType: domain.VehicleCar,
				EntryAt:     entry,
			},
		})
	})

	session, err := client.Open(context.Background(), domain.VehicleSession{
		Plate:         "ABC123",
		VehicleType:   domain.VehicleCar,
		OwnerName:     "Ana",
		InvoiceNumber: "F001",
		Amount:        3000,
	})
	require.NoError(t, err)

	assert.Equal(t, "remote-1", session.ID)
	assert.True(t, session.EntryAt.Equal(entry))
	assert.Equal(t, "car", got.VehicleType)
	assert.Equal(t, "Ana", got.OwnerName)
	assert.Equal(t, 3000.0, got.Amount)
}

func TestClient_ListsAndReset(t *testing.T) {
	client := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.Method + " " + r.URL.Path {
		case "GET /vehicles/active":
			writeJSON(w, http.StatusOK, Envelope{Success: true, Vehicles: []domain.VehicleSession{{Plate: "ABC123"}}})
		case "GET /vehicles/history":
			writeJSON(w, http.StatusOK, Envelope{Success: true})
		case "DELETE /vehicles":
			writeJSON(w, http.StatusOK, Envelope{Success: true, Message: "registry cleared"})
		default:
			http.NotFound(w, r)
		}
	})
	ctx := context.Background()

	active, err := client.Active(ctx)
	require.NoError(t, err)
	require.Len(t, active, 1)
	assert.Equal(t, "ABC123", active[0].Plate)

	history, err := client.History(ctx)
	require.NoError(t, err)
	assert.NotNil(t, history)
	assert.Empty(t, history)

	assert.NoError(t, client.Reset(ctx))
}

func TestClient_CanonicalizesVehicleTypes(t *testing.T) {
	client := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		switch r.URL.Path {
		case "/vehicles/active":
			_, _ = w.Write([]byte(`{"success":true,"vehicles":[
				{"id":"1","plate":"ABC123","vehicle_type":"carro","entry_time":"2025-03-05T08:00:00Z"},
				{"id":"2","plate":"XYZ98A","vehicle_type":"moto","entry_time":"2025-03-05T08:10:00Z"},
				{"id":"3","plate":"BUS001","vehicle_type":"bus","entry_time":"2025-03-05T08:20:00Z"}]}`))
		default:
			_, _ = w.Write([]byte(`{"success":true,"history":[]}`))
		}
	})
	ctx := context.Background()

	active, err := client.Active(ctx)
	require.NoError(t, err)
	require.Len(t, active, 3)
	assert.Equal(t, domain.VehicleCar, active[0].VehicleType)
	assert.Equal(t, domain.VehicleMotorcycle, active[1].VehicleType)
	assert.Equal(t, domain.VehicleType("bus"), active[2].VehicleType)

	stats, err := services.NewRegistry(client).Statistics(ctx)
	require.NoError(t, err)
	assert.Equal(t, map[domain.VehicleType]int{
		domain.VehicleCar:        1,
		domain.VehicleMotorcycle: 1,
	}, stats.CountsByType)
	assert.Equal(t, 3, stats.TotalActive)
}

func TestClient_ErrorMapping(t *testing.T) {
	tests := []struct {
		name     string
		status   int
		body     any
		wantErr  error
		wantText string
	}{
		{
			name:    "conflict",
			status:  http.StatusConflict,
			body:    Envelope{Message: "already parked"},
			wantErr: domain.ErrDuplicatePlate,
		},
		{
			name:    "not found",
			status:  http.StatusNotFound,
			body:    Envelope{Message: "no such vehicle"},
			wantErr: domain.ErrNotFound,
		},
		{
			name:    "field errors",
			status:  http.StatusBadRequest,
			body:    Envelope{Errors: map[string]string{"plate": "plate is required"}},
			wantErr: domain.ErrValidation,
		},
		{
			name:     "server detail",
			status:   http.StatusBadRequest,
			body:     map[string]string{"detail": "Invalid vehicle type"},
			wantErr:  domain.ErrNetwork,
			wantText: "Invalid vehicle type",
		},
		{
			name:     "server error",
			status:   http.StatusInternalServerError,
			body:     Envelope{Message: "database unavailable"},
			wantErr:  domain.ErrNetwork,
			wantText: "database unavailable",
		},
		{
			name:     "unsuccessful ok",
			status:   http.StatusOK,
			body:     Envelope{Success: false, Message: "desk closed"},
			wantErr:  domain.ErrNetwork,
			wantText: "desk closed",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
				writeJSON(w, tt.status, tt.body)
			})

			_, err := client.Close(context.Background(), domain.VehicleSession{Plate: "ABC123"})
			require.Error(t, err)
			assert.ErrorIs(t, err, tt.wantErr)

			if tt.wantText != "" {
				var netErr *domain.NetworkError
				require.ErrorAs(t, err, &netErr)
				assert.Equal(t, tt.wantText, netErr.UserMessage())
			}
		})
	}
}

func TestClient_Unreachable(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	srv.Close()

	client := NewClient(srv.URL, 200*time.Millisecond)
	_, err := client.Active(context.Background())

	var netErr *domain.NetworkError
	require.ErrorAs(t, err, &netErr)
	assert.Equal(t, 0, netErr.StatusCode)
	assert.Equal(t, "could not reach the vehicle service", netErr.UserMessage())
}

func TestClient_BreakerOpensAfterRepeatedFailures(t *testing.T) {
	var calls atomic.Int32
	client := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		writeJSON(w, http.StatusBadGateway, Envelope{Message: "upstream down"})
	})

	for i := 0; i < 5; i++ {
		_, err := client.Active(context.Background())
		assert.ErrorIs(t, err, domain.ErrNetwork)
	}
	assert.EqualValues(t, 3, calls.Load())
}

func TestClient_ClientErrorsDoNotTripBreaker(t *testing.T) {
	var calls atomic.Int32
	client := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		writeJSON(w, http.StatusNotFound, Envelope{Message: "no such vehicle"})
	})

	for i := 0; i < 5; i++ {
		_, err := client.Close(context.Background(), domain.VehicleSession{Plate: "NOPE99"})
		assert.ErrorIs(t, err, domain.ErrNotFound)
	}
	assert.EqualValues(t, 5, calls.Load())
}
