package ws_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/pulsestack/pulse-engine/internal/models"
	"github.com/pulsestack/pulse-engine/internal/store"
	wsHub "github.com/pulsestack/pulse-engine/internal/ws"
)

// --- helpers ----------------------------------------------------------------

func assessment(cluster string, state models.HealthState) models.Assessment {
	return models.Assessment{
		Cluster:   cluster,
		Timestamp: time.Now().UTC(),
		Trigger:   models.TriggerScheduled,
		State:     state,
	}
}

func newStore(assessments ...models.Assessment) *store.Store {
	st := store.New(10, time.Hour)
	for _, a := range assessments {
		st.Put(a)
	}
	return st
}

// startHub starts a test HTTP server with the hub as its handler and the
// hub's Run loop under a cancellable context.
func startHub(t *testing.T, st *store.Store) (wsURL string, hub *wsHub.Hub, cancel func()) {
	t.Helper()

	hub = wsHub.New(st)
	ctx, cancelFn := context.WithCancel(context.Background())

	srv := httptest.NewServer(http.HandlerFunc(hub.ServeHTTP))
	go hub.Run(ctx)

	t.Cleanup(func() {
		cancelFn()
		srv.Close()
	})

	wsURL = "ws" + strings.TrimPrefix(srv.URL, "http")
	return wsURL, hub, cancelFn
}

func dial(t *testing.T, wsURL string) *websocket.Conn {
	t.Helper()
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatalf("dial %s: %v", wsURL, err)
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

func readMessage(t *testing.T, conn *websocket.Conn) wsHub.Message {
	t.Helper()
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, payload, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("ReadMessage: %v", err)
	}
	var msg wsHub.Message
	if err := json.Unmarshal(payload, &msg); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	return msg
}

// --- tests ------------------------------------------------------------------

func TestHubConnectReplaysLatestAssessment(t *testing.T) {
	wsURL, _, _ := startHub(t, newStore(assessment("prod", models.StateStressed)))

	conn := dial(t, wsURL)
	msg := readMessage(t, conn)

	if msg.Event != "assessment" {
		t.Errorf("event: got %q, want assessment", msg.Event)
	}
	if msg.Data.Cluster != "prod" || msg.Data.State != models.StateStressed {
		t.Errorf("unexpected replayed assessment: %+v", msg.Data)
	}
}

func TestHubPublishReachesAllClients(t *testing.T) {
	wsURL, hub, _ := startHub(t, newStore())

	conns := make([]*websocket.Conn, 3)
	for i := range conns {
		conns[i] = dial(t, wsURL)
	}
	time.Sleep(20 * time.Millisecond) // let the hub register all clients

	hub.Publish(assessment("prod", models.StateCritical))

	for i, conn := range conns {
		msg := readMessage(t, conn)
		if msg.Data.State != models.StateCritical {
			t.Errorf("client %d: state = %s, want critical", i, msg.Data.State)
		}
	}
}

func TestHubCountTracksClients(t *testing.T) {
	wsURL, hub, _ := startHub(t, newStore())

	conn := dial(t, wsURL)
	time.Sleep(20 * time.Millisecond)
	if n := hub.Count(); n != 1 {
		t.Errorf("Count: got %d, want 1", n)
	}

	conn.Close()
	time.Sleep(50 * time.Millisecond) // let readPump detect the close
	if n := hub.Count(); n != 0 {
		t.Errorf("Count after disconnect: got %d, want 0", n)
	}
}

func TestHubCancelContextClosesConnections(t *testing.T) {
	wsURL, hub, cancel := startHub(t, newStore())

	dial(t, wsURL)
	time.Sleep(20 * time.Millisecond)

	cancel()
	time.Sleep(50 * time.Millisecond)
	if n := hub.Count(); n != 0 {
		t.Errorf("Count after cancel: got %d, want 0", n)
	}
}

func TestHubNonWebSocketRequestReturns400(t *testing.T) {
	hub := wsHub.New(newStore())
	srv := httptest.NewServer(http.HandlerFunc(hub.ServeHTTP))
	defer srv.Close()

	resp, err := http.Get(srv.URL)
	if err != nil {
		t.Fatalf("GET: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("status: got %d, want 400", resp.StatusCode)
	}
}
