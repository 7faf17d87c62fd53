package socket

import (
	"context"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/parksys/parking-service/internal/core/ports"
	"github.com/parksys/parking-service/test/mocks"
)

func startHub(t *testing.T) (*Hub, context.CancelFunc) {
	t.Helper()
	logger := zerolog.Nop()
	hub := NewHub(&logger, nil)
	ctx, cancel := context.WithCancel(context.Background())
	go hub.Run(ctx)
	t.Cleanup(cancel)
	return hub, cancel
}

func TestHub_BroadcastReachesClient(t *testing.T) {
	hub, _ := startHub(t)

	client := NewClient("test-1", hub, nil)
	hub.Register(client)
	require.Eventually(t, func() bool { return hub.ClientCount() == 1 }, time.Second, 5*time.Millisecond)

	hub.Broadcast(Message{Type: "test.event", Timestamp: time.Now()})

	select {
	case received := <-client.send:
		assert.Equal(t, "test.event", received.Type)
	case <-time.After(time.Second):
		t.Fatal("client did not receive message")
	}
}

func TestHub_PublishSessionEvent(t *testing.T) {
	hub, _ := startHub(t)

	client := NewClient("test-1", hub, nil)
	hub.Register(client)
	require.Eventually(t, func() bool { return hub.ClientCount() == 1 }, time.Second, 5*time.Millisecond)

	evt := mocks.CreateTestEvent()
	require.NoError(t, hub.PublishSessionEvent(context.Background(), evt))
	require.NoError(t, hub.PublishSessionEvent(context.Background(), ports.SessionEvent{Type: ports.SessionsReset}))

	first := <-client.send
	assert.Equal(t, "session.opened", first.Type)
	assert.Equal(t, evt.Session, first.Data)

	second := <-client.send
	assert.Equal(t, "sessions.reset", second.Type)
	assert.Nil(t, second.Data)
}

func TestHub_Shutdown(t *testing.T) {
	hub, cancel := startHub(t)

	client1 := NewClient("test-1", hub, nil)
	client2 := NewClient("test-2", hub, nil)
	hub.Register(client1)
	hub.Register(client2)
	require.Eventually(t, func() bool { return hub.ClientCount() == 2 }, time.Second, 5*time.Millisecond)

	cancel()
	require.Eventually(t, func() bool { return hub.ClientCount() == 0 }, time.Second, 5*time.Millisecond)

	_, open := <-client1.send
	assert.False(t, open)
}

func TestHub_ServeHTTP(t *testing.T) {
	hub, _ := startHub(t)
	srv := httptest.NewServer(hub)
	t.Cleanup(srv.Close)

	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer conn.Close()

	require.Eventually(t, func() bool { return hub.ClientCount() == 1 }, time.Second, 5*time.Millisecond)
	require.NoError(t, hub.PublishSessionEvent(context.Background(), mocks.CreateTestEvent()))

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	var msg struct {
		Type string         `json:"type"`
		Data map[string]any `json:"data"`
	}
	require.NoError(t, conn.ReadJSON(&msg))
	assert.Equal(t, "session.opened", msg.Type)
	assert.Equal(t, "TEST123", msg.Data["plate"])
	assert.Equal(t, "active", msg.Data["status"])

	require.NoError(t, conn.Close())
	require.Eventually(t, func() bool { return hub.ClientCount() == 0 }, 2*time.Second, 10*time.Millisecond)
}

func TestHub_AfterShutdownDoesNotBlock(t *testing.T) {
	hub, cancel := startHub(t)
	cancel()
	<-hub.done

	late := NewClient("late", hub, nil)
	returned := make(chan struct{})
	go func() {
		hub.Register(late)
		hub.unregisterClient(late)
		close(returned)
	}()

	select {
	case <-returned:
	case <-time.After(time.Second):
		t.Fatal("register after shutdown blocked")
	}

	_, open := <-late.send
	assert.False(t, open)
	assert.Zero(t, hub.ClientCount())
}
