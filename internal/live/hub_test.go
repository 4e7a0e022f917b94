package live

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/erazemk/lostfound/internal/db"
	"github.com/erazemk/lostfound/internal/itemstore"
	"github.com/erazemk/lostfound/internal/model"
)

func namesOf(items []model.Item) ([]byte, error) {
	names := make([]string, 0, len(items))
	for _, item := range items {
		names = append(names, item.ItemName)
	}
	return json.Marshal(names)
}

func startHub(t *testing.T) (*Hub, *itemstore.Notifier, *httptest.Server) {
	t.Helper()
	feed := itemstore.NewNotifier(itemstore.NewLocal(db.NewTestDB(t)), zerolog.Nop())
	hub := NewHub(HubParams{Feed: feed, Logger: zerolog.Nop()})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		hub.Run(ctx)
	}()
	t.Cleanup(func() {
		cancel()
		<-done
	})
	require.Eventually(t, func() bool {
		hub.mu.RLock()
		defer hub.mu.RUnlock()
		return hub.running
	}, time.Second, 5*time.Millisecond)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hub.Serve(w, r, websocket.TextMessage, namesOf)
	}))
	t.Cleanup(srv.Close)
	return hub, feed, srv
}

func dial(t *testing.T, srv *httptest.Server) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func readNames(t *testing.T, conn *websocket.Conn) []string {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, data, err := conn.ReadMessage()
	require.NoError(t, err)
	var names []string
	require.NoError(t, json.Unmarshal(data, &names))
	return names
}

func TestHubSendsCurrentSnapshotOnConnect(t *testing.T) {
	_, feed, srv := startHub(t)
	_, err := feed.Create(context.Background(), model.Item{ItemName: "Scarf", Status: model.StatusLost})
	require.NoError(t, err)

	conn := dial(t, srv)
	assert.Equal(t, []string{"Scarf"}, readNames(t, conn))
}

func TestHubPushesChanges(t *testing.T) {
	hub, feed, srv := startHub(t)
	conn := dial(t, srv)
	assert.Empty(t, readNames(t, conn))

	require.Eventually(t, func() bool { return hub.Clients() == 1 }, time.Second, 5*time.Millisecond)

	_, err := feed.Create(context.Background(), model.Item{ItemName: "Gloves", Status: model.StatusFound})
	require.NoError(t, err)

	// Pending snapshots may be superseded, so read until the newest arrives.
	deadline := time.Now().Add(3 * time.Second)
	for {
		names := readNames(t, conn)
		if len(names) == 1 && names[0] == "Gloves" {
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("never received snapshot with new item, last: %v", names)
		}
	}
}

func TestHubForgetsDisconnectedClients(t *testing.T) {
	hub, _, srv := startHub(t)
	conn := dial(t, srv)
	readNames(t, conn)
	require.Eventually(t, func() bool { return hub.Clients() == 1 }, time.Second, 5*time.Millisecond)

	require.NoError(t, conn.WriteMessage(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")))
	conn.Close()

	assert.Eventually(t, func() bool { return hub.Clients() == 0 }, 2*time.Second, 10*time.Millisecond)
}

func TestServeBeforeRun(t *testing.T) {
	feed := itemstore.NewNotifier(itemstore.NewLocal(db.NewTestDB(t)), zerolog.Nop())
	hub := NewHub(HubParams{Feed: feed, Logger: zerolog.Nop()})

	rec := httptest.NewRecorder()
	err := hub.Serve(rec, httptest.NewRequest(http.MethodGet, "/live", nil), websocket.TextMessage, namesOf)
	assert.ErrorIs(t, err, ErrNotRunning)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestClientDeliverSkipsStaleVersions(t *testing.T) {
	var rendered []int
	c := &client{
		render: func(items []model.Item) ([]byte, error) {
			rendered = append(rendered, len(items))
			return []byte("x"), nil
		},
		send: make(chan []byte, 1),
		done: make(chan struct{}),
	}

	c.deliver(2, make([]model.Item, 2))
	c.deliver(1, make([]model.Item, 1))
	c.deliver(3, make([]model.Item, 3))

	assert.Equal(t, []int{2, 3}, rendered)
	assert.Len(t, c.send, 1)
}
