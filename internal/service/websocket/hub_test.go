package websocket

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"visionqa/internal/dto"
	"visionqa/internal/logger"
	"visionqa/internal/metrics"
)

func newHub(t *testing.T) (*HubService, *metrics.Metrics) {
	t.Helper()
	m, err := metrics.New()
	require.NoError(t, err)
	return NewHubService(m, logger.Discard()), m
}

// viewerServer upgrades requests and keeps them registered until the peer goes away.
func viewerServer(hub *HubService) *httptest.Server {
	upgrader := websocket.Upgrader{}
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		hub.Register(conn)
		defer hub.Unregister(conn)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}))
}

func dial(t *testing.T, srv *httptest.Server) *websocket.Conn {
	t.Helper()
	conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http"), nil)
	require.NoError(t, err)
	return conn
}

func TestHubService_BroadcastRecorded(t *testing.T) {
	defer goleak.VerifyNone(t)

	hub, m := newHub(t)
	ctx, cancel := context.WithCancel(context.Background())
	stopped := make(chan error, 1)
	go func() { stopped <- hub.Run(ctx) }()

	srv := viewerServer(hub)
	defer srv.Close()

	client := dial(t, srv)
	defer client.Close()

	require.Eventually(t, func() bool { return hub.GetClientCount() == 1 }, time.Second, 10*time.Millisecond)
	assert.Equal(t, 1.0, testutil.ToFloat64(m.FeedClients))

	hub.BroadcastRecorded(&dto.ImageDetail{
		ImageSummary: dto.ImageSummary{ID: 7, URL: "http://h/files/x.jpg", CreatedAt: time.Unix(0, 0)},
		Tags:         []string{"cat"},
		Detections:   []dto.DetectionInfo{{Label: "cat", Confidence: 0.9}},
	})

	client.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, data, err := client.ReadMessage()
	require.NoError(t, err)

	var event struct {
		Type  string         `json:"type"`
		Image map[string]any `json:"image"`
	}
	require.NoError(t, json.Unmarshal(data, &event))
	assert.Equal(t, EventImageRecorded, event.Type)
	assert.Equal(t, float64(7), event.Image["id"])
	assert.Equal(t, []any{"cat"}, event.Image["tags"])

	cancel()
	require.NoError(t, <-stopped)
	assert.Zero(t, hub.GetClientCount())
	assert.Zero(t, testutil.ToFloat64(m.FeedClients))

	// The hub closed the connection on shutdown.
	client.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, _, err = client.ReadMessage()
	assert.Error(t, err)
}

func TestHubService_ClientDisconnect(t *testing.T) {
	defer goleak.VerifyNone(t)

	hub, _ := newHub(t)
	ctx, cancel := context.WithCancel(context.Background())
	stopped := make(chan error, 1)
	go func() { stopped <- hub.Run(ctx) }()

	srv := viewerServer(hub)
	defer srv.Close()

	client := dial(t, srv)
	require.Eventually(t, func() bool { return hub.GetClientCount() == 1 }, time.Second, 10*time.Millisecond)

	client.Close()
	require.Eventually(t, func() bool { return hub.GetClientCount() == 0 }, 2*time.Second, 10*time.Millisecond)

	cancel()
	require.NoError(t, <-stopped)
}

func TestHubService_BroadcastNeverBlocks(t *testing.T) {
	hub, _ := newHub(t)

	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := range broadcastQueue + 10 {
			hub.BroadcastRecorded(&dto.ImageDetail{ImageSummary: dto.ImageSummary{ID: int64(i)}})
		}
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("BroadcastRecorded blocked without a running hub")
	}
	assert.Len(t, hub.broadcast, broadcastQueue)
}

func TestHubService_RegisterAfterStop(t *testing.T) {
	defer goleak.VerifyNone(t)

	hub, _ := newHub(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	require.NoError(t, hub.Run(ctx))

	srv := viewerServer(hub)
	defer srv.Close()

	client := dial(t, srv)
	defer client.Close()

	client.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, _, err := client.ReadMessage()
	assert.Error(t, err, "connection is closed when the hub is not running")
}
