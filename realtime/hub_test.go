package realtime

import (
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func startBoardServer(t *testing.T, hub *Hub) *httptest.Server {
	t.Helper()
	upgrader := websocket.Upgrader{CheckOrigin: func(r *http.Request) bool { return true }}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		shopID, _ := strconv.Atoi(r.URL.Query().Get("shop"))
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		client := hub.Register(uint(shopID), conn)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				hub.Unregister(client)
				return
			}
		}
	}))
	t.Cleanup(srv.Close)
	return srv
}

func dial(t *testing.T, srv *httptest.Server, shopID int) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/?shop=" + strconv.Itoa(shopID)
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func TestHub_BroadcastReachesOnlyTheShop(t *testing.T) {
	hub := NewHub()
	srv := startBoardServer(t, hub)

	board1 := dial(t, srv, 1)
	board2 := dial(t, srv, 2)
	require.Eventually(t, func() bool { return hub.Count(1) == 1 && hub.Count(2) == 1 }, time.Second, 10*time.Millisecond)

	hub.Broadcast(1, "work_order.status_changed", map[string]interface{}{"work_order_id": 5, "status": "done"})

	var got Event
	board1.SetReadDeadline(time.Now().Add(time.Second))
	require.NoError(t, board1.ReadJSON(&got))
	assert.Equal(t, "work_order.status_changed", got.Event)
	data, ok := got.Data.(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, "done", data["status"])

	board2.SetReadDeadline(time.Now().Add(100 * time.Millisecond))
	_, _, err := board2.ReadMessage()
	assert.Error(t, err, "shop 2 must not receive shop 1 events")
}

func TestHub_UnregisterOnDisconnect(t *testing.T) {
	hub := NewHub()
	srv := startBoardServer(t, hub)

	board := dial(t, srv, 3)
	require.Eventually(t, func() bool { return hub.Count(3) == 1 }, time.Second, 10*time.Millisecond)

	board.Close()
	assert.Eventually(t, func() bool { return hub.Count(3) == 0 }, time.Second, 10*time.Millisecond)

	// broadcasting to a shop without boards is a no-op
	hub.Broadcast(3, "invoice.created", nil)
}

func TestHub_Close(t *testing.T) {
	hub := NewHub()
	srv := startBoardServer(t, hub)
	dial(t, srv, 4)
	dial(t, srv, 4)
	require.Eventually(t, func() bool { return hub.Count(4) == 2 }, time.Second, 10*time.Millisecond)

	hub.Close()
	assert.Equal(t, 0, hub.Count(4))
}

func TestHub_SlowBoardDoesNotBlockBroadcast(t *testing.T) {
	hub := NewHub()
	srv := startBoardServer(t, hub)

	// the board never reads, so its socket buffers fill up
	dial(t, srv, 5)
	require.Eventually(t, func() bool { return hub.Count(5) == 1 }, time.Second, 10*time.Millisecond)

	payload := map[string]string{"notes": strings.Repeat("x", 256<<10)}
	start := time.Now()
	for i := 0; i < 200; i++ {
		hub.Broadcast(5, "work_order.updated", payload)
	}
	assert.Less(t, time.Since(start), time.Second, "broadcast must not wait on the board")
	assert.Eventually(t, func() bool { return hub.Count(5) == 0 }, 2*time.Second, 10*time.Millisecond,
		"a board that falls behind is dropped")
}

func TestHub_EventsKeepOrder(t *testing.T) {
	hub := NewHub()
	srv := startBoardServer(t, hub)

	board := dial(t, srv, 6)
	require.Eventually(t, func() bool { return hub.Count(6) == 1 }, time.Second, 10*time.Millisecond)

	for i := 0; i < 10; i++ {
		hub.Broadcast(6, "work_order.status_changed", map[string]int{"seq": i})
	}
	for i := 0; i < 10; i++ {
		var got Event
		board.SetReadDeadline(time.Now().Add(time.Second))
		require.NoError(t, board.ReadJSON(&got))
		data, ok := got.Data.(map[string]interface{})
		require.True(t, ok)
		assert.Equal(t, float64(i), data["seq"])
	}
}

func TestClient_SendAfterUnregister(t *testing.T) {
	hub := NewHub()
	var client *Client
	upgrader := websocket.Upgrader{}
	registered := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		client = hub.Register(7, conn)
		close(registered)
	}))
	t.Cleanup(srv.Close)

	dial(t, srv, 7)
	<-registered
	require.NoError(t, client.Send("board.sync", nil))

	hub.Unregister(client)
	hub.Unregister(client)
	assert.ErrorIs(t, client.Send("board.sync", nil), ErrClientGone)
	assert.Equal(t, 0, hub.Count(7))
}
