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

	"github.com/ibeckermayer/sharpwatch/internal/types"
)

type received struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

func dial(t *testing.T, h *Hub, srv *httptest.Server) *websocket.Conn {
	t.Helper()
	before := h.Count()
	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { conn.Close() })

	deadline := time.Now().Add(2 * time.Second)
	for h.Count() == before {
		if time.Now().After(deadline) {
			t.Fatal("client never registered")
		}
		time.Sleep(5 * time.Millisecond)
	}
	return conn
}

func read(t *testing.T, conn *websocket.Conn) received {
	t.Helper()
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var msg received
	if err := conn.ReadJSON(&msg); err != nil {
		t.Fatalf("read: %v", err)
	}
	return msg
}

func alert(kind types.AlertKind, key string) types.Alert {
	return types.Alert{Kind: kind, Key: key, Title: key, CreatedAt: time.Date(2025, 10, 12, 18, 0, 0, 0, time.UTC)}
}

func TestBroadcast(t *testing.T) {
	h := NewHub(nil, nil)
	srv := httptest.NewServer(h)
	defer srv.Close()
	defer h.Close()

	a, b := dial(t, h, srv), dial(t, h, srv)

	if err := h.Send(context.Background(), alert(types.AlertMajorMovement, "DraftKings|Josh Allen|Passing Yards")); err != nil {
		t.Fatal(err)
	}
	for _, conn := range []*websocket.Conn{a, b} {
		msg := read(t, conn)
		var got types.Alert
		if err := json.Unmarshal(msg.Payload, &got); err != nil {
			t.Fatal(err)
		}
		if msg.Type != MessageAlert || got.Kind != types.AlertMajorMovement {
			t.Errorf("message = %s %+v", msg.Type, got)
		}
	}
}

func TestSubscribeFiltersKinds(t *testing.T) {
	h := NewHub(nil, nil)
	srv := httptest.NewServer(h)
	defer srv.Close()
	defer h.Close()

	conn := dial(t, h, srv)
	if err := conn.WriteJSON(ClientMessage{Type: "subscribe", Kinds: []types.AlertKind{types.AlertOvertailed}}); err != nil {
		t.Fatal(err)
	}
	if msg := read(t, conn); msg.Type != MessageSubscribed {
		t.Fatalf("ack = %s", msg.Type)
	}

	ctx := context.Background()
	h.Send(ctx, alert(types.AlertMajorMovement, "skipped"))
	h.Send(ctx, alert(types.AlertOvertailed, "Josh Allen_Passing Yards"))

	msg := read(t, conn)
	var got types.Alert
	if err := json.Unmarshal(msg.Payload, &got); err != nil {
		t.Fatal(err)
	}
	if got.Key != "Josh Allen_Passing Yards" {
		t.Errorf("first delivered alert = %q, want the overtailed one", got.Key)
	}
}

func TestUnknownMessage(t *testing.T) {
	h := NewHub(nil, nil)
	srv := httptest.NewServer(h)
	defer srv.Close()
	defer h.Close()

	conn := dial(t, h, srv)
	conn.WriteJSON(ClientMessage{Type: "bogus"})
	if msg := read(t, conn); msg.Type != MessageError {
		t.Errorf("type = %s, want error", msg.Type)
	}
}

func TestCloseDisconnects(t *testing.T) {
	h := NewHub(nil, nil)
	srv := httptest.NewServer(h)
	defer srv.Close()

	conn := dial(t, h, srv)
	h.Close()
	if h.Count() != 0 {
		t.Errorf("count = %d after close", h.Count())
	}

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	if _, _, err := conn.ReadMessage(); err == nil {
		t.Error("expected the connection to close")
	}

	// new connections are refused once closed
	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	late, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatal(err)
	}
	defer late.Close()
	late.SetReadDeadline(time.Now().Add(2 * time.Second))
	if _, _, err := late.ReadMessage(); !websocket.IsCloseError(err, websocket.CloseGoingAway) {
		t.Errorf("late client err = %v, want going away", err)
	}
}

func TestOriginCheck(t *testing.T) {
	check := originChecker([]string{"http://localhost:5173"})
	for origin, want := range map[string]bool{
		"http://localhost:5173": true,
		"https://evil.example":  false,
		"":                      true,
	} {
		r := httptest.NewRequest(http.MethodGet, "/", nil)
		if origin != "" {
			r.Header.Set("Origin", origin)
		}
		if got := check(r); got != want {
			t.Errorf("origin %q allowed = %v, want %v", origin, got, want)
		}
	}
}
