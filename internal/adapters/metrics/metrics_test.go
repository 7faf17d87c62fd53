package metrics

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/parksys/parking-service/internal/core/domain"
	"github.com/parksys/parking-service/internal/core/ports"
	"github.com/parksys/parking-service/test/mocks"
)

func TestCollector_TracksSessionEvents(t *testing.T) {
	c := NewCollector()
	ctx := context.Background()

	opened := mocks.CreateTestEvent()
	require.NoError(t, c.PublishSessionEvent(ctx, opened))

	moto := opened
	moto.Session = mocks.CreateTestSession("XYZ789", domain.VehicleMotorcycle, time.Now())
	require.NoError(t, c.PublishSessionEvent(ctx, moto))

	assert.Equal(t, 2.0, testutil.ToFloat64(c.active))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.checkIns.WithLabelValues("car")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.checkIns.WithLabelValues("motorcycle")))

	closed := opened
	closed.Type = ports.SessionClosed
	closed.Session.ParkingMinutes = 90
	closed.Session.TotalAmount = 4500
	require.NoError(t, c.PublishSessionEvent(ctx, closed))

	assert.Equal(t, 1.0, testutil.ToFloat64(c.active))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.checkOuts.WithLabelValues("car")))
	assert.Equal(t, 4500.0, testutil.ToFloat64(c.revenue))

	require.NoError(t, c.PublishSessionEvent(ctx, ports.SessionEvent{Type: ports.SessionsReset}))
	assert.Equal(t, 0.0, testutil.ToFloat64(c.active))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.resets))
}

func TestCollector_Handler(t *testing.T) {
	c := NewCollector()
	c.SetActive(3)

	rec := httptest.NewRecorder()
	c.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	body, err := io.ReadAll(rec.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), "parking_active_sessions 3")
	assert.Contains(t, string(body), "go_goroutines")
}
