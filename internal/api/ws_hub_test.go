package api

import (
	"encoding/json"
	"io"
	"log"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestHub(t *testing.T) (*WSHub, string) {
	t.Helper()
	hub := NewWSHub(log.New(io.Discard, "", 0))
	go hub.Run()

	srv := httptest.NewServer(http.HandlerFunc(hub.HandleWS))
	t.Cleanup(srv.Close)

	return hub, "ws" + strings.TrimPrefix(srv.URL, "http")
}

func dialWS(t *testing.T, url string) *websocket.Conn {
	t.Helper()
	conn, resp, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	if resp != nil {
		resp.Body.Close()
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

func readWSMessage(t *testing.T, conn *websocket.Conn) WSMessage {
	t.Helper()
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, data, err := conn.ReadMessage()
	require.NoError(t, err)
	var msg WSMessage
	require.NoError(t, json.Unmarshal(data, &msg))
	return msg
}

func TestWSHub_BroadcastReachesAllClients(t *testing.T) {
	hub, url := newTestHub(t)

	c1 := dialWS(t, url)
	c2 := dialWS(t, url)
	require.Eventually(t, func() bool { return hub.ClientCount() == 2 }, time.Second, 10*time.Millisecond)

	hub.Broadcast(WSMessage{Type: "trade", MintID: "mint-1", Kind: "buy", SolAmount: 42})

	for _, conn := range []*websocket.Conn{c1, c2} {
		msg := readWSMessage(t, conn)
		assert.Equal(t, "trade", msg.Type)
		assert.Equal(t, "mint-1", msg.MintID)
		assert.Equal(t, int64(42), msg.SolAmount)
	}
}

// A client that goes away mid-stream must be dropped without taking the
// hub or its remaining subscribers with it.
func TestWSHub_DeadClientDoesNotStopBroadcasts(t *testing.T) {
	hub, url := newTestHub(t)

	c1 := dialWS(t, url)
	c2 := dialWS(t, url)
	require.Eventually(t, func() bool { return hub.ClientCount() == 2 }, time.Second, 10*time.Millisecond)

	c1.Close()
	require.Eventually(t, func() bool { return hub.ClientCount() == 1 }, time.Second, 10*time.Millisecond)

	hub.Broadcast(WSMessage{Type: "graduation", MintID: "mint-1", PoolReference: "pool-1"})

	msg := readWSMessage(t, c2)
	assert.Equal(t, "graduation", msg.Type)
	assert.Equal(t, "pool-1", msg.PoolReference)
}

// Broadcasts racing connects and disconnects exercise the hub's single
// ownership of the client map.
func TestWSHub_ConcurrentBroadcastAndChurn(t *testing.T) {
	hub, url := newTestHub(t)

	keeper := dialWS(t, url)
	require.Eventually(t, func() bool { return hub.ClientCount() == 1 }, time.Second, 10*time.Millisecond)

	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 25; j++ {
				hub.Broadcast(WSMessage{Type: "trade", MintID: "mint-1", Kind: "buy"})
			}
		}()
	}
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			conn, resp, err := websocket.DefaultDialer.Dial(url, nil)
			if err != nil {
				return
			}
			if resp != nil {
				resp.Body.Close()
			}
			conn.Close()
		}()
	}
	wg.Wait()

	// The long-lived client still gets at least one message through.
	msg := readWSMessage(t, keeper)
	assert.Equal(t, "trade", msg.Type)
}
