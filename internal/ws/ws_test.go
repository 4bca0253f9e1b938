package ws

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"nhooyr.io/websocket"

	"github.com/reloquent/schemacanvas/internal/geometry"
	"github.com/reloquent/schemacanvas/internal/persistence"
	"github.com/reloquent/schemacanvas/internal/render"
	"github.com/reloquent/schemacanvas/internal/session"
	"github.com/reloquent/schemacanvas/internal/store"
)

func testHub(t *testing.T) (*Hub, *session.Manager) {
	t.Helper()
	m := session.NewManager(persistence.NewMemory(), slog.Default(), session.DefaultOptions())
	hub := NewHub(m, slog.Default())
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	go hub.Run(ctx)
	return hub, m
}

func receive(t *testing.T, c *Client) Message {
	t.Helper()
	select {
	case data, ok := <-c.send:
		if !ok {
			t.Fatal("client channel closed")
		}
		var msg Message
		if err := json.Unmarshal(data, &msg); err != nil {
			t.Fatalf("unmarshal error: %v", err)
		}
		return msg
	case <-time.After(time.Second):
		t.Fatal("no message received")
	}
	return Message{}
}

func TestNewHub(t *testing.T) {
	hub := NewHub(nil, slog.Default())
	if hub.clients == nil || hub.queued == nil || hub.wake == nil || hub.register == nil || hub.unregister == nil {
		t.Fatal("hub not initialized")
	}
	if got := hub.ClientCount(); got != 0 {
		t.Errorf("ClientCount() = %d, want 0", got)
	}
}

func TestHubRegisterUnregister(t *testing.T) {
	hub, _ := testHub(t)
	client := &Client{hub: hub, project: "demo", send: make(chan []byte, 8)}

	hub.register <- client
	time.Sleep(50 * time.Millisecond)
	if got := hub.ClientCount(); got != 1 {
		t.Errorf("after register: ClientCount() = %d, want 1", got)
	}

	hub.unregister <- client
	time.Sleep(50 * time.Millisecond)
	if got := hub.ClientCount(); got != 0 {
		t.Errorf("after unregister: ClientCount() = %d, want 0", got)
	}
	if client.trySend([]byte("x")) {
		t.Error("send succeeded on a closed client")
	}
}

func TestHubRoutesByProject(t *testing.T) {
	hub, m := testHub(t)
	sess, err := m.Get(context.Background(), "demo")
	if err != nil {
		t.Fatal(err)
	}

	mine := &Client{hub: hub, project: "demo", send: make(chan []byte, 8)}
	other := &Client{hub: hub, project: "other", send: make(chan []byte, 8)}
	hub.register <- mine
	hub.register <- other
	time.Sleep(50 * time.Millisecond)

	sess.AddEntity()

	msg := receive(t, mine)
	if msg.Type != MsgScene {
		t.Fatalf("type = %q, want %q", msg.Type, MsgScene)
	}
	var sc render.Scene
	if err := json.Unmarshal(msg.Payload, &sc); err != nil {
		t.Fatalf("unmarshal scene: %v", err)
	}
	if len(sc.Nodes) != 1 {
		t.Errorf("nodes = %d, want 1", len(sc.Nodes))
	}

	select {
	case data := <-other.send:
		t.Errorf("other project received %s", data)
	case <-time.After(100 * time.Millisecond):
	}
}

func TestHubStatusAndPrompt(t *testing.T) {
	hub, m := testHub(t)
	sess, _ := m.Get(context.Background(), "demo")
	a, _ := sess.CreateEntity(store.Partial{Name: "users", Position: &geometry.Point{X: 100, Y: 100}})
	b, _ := sess.CreateEntity(store.Partial{Name: "posts", Position: &geometry.Point{X: 500, Y: 100}})

	client := &Client{hub: hub, project: "demo", send: make(chan []byte, 32)}
	hub.register <- client
	time.Sleep(50 * time.Millisecond)

	if err := sess.Save(context.Background()); err != nil {
		t.Fatal(err)
	}
	var statuses []session.Status
	for len(statuses) < 2 {
		msg := receive(t, client)
		if msg.Type != MsgSaveStatus {
			continue
		}
		var p StatusPayload
		json.Unmarshal(msg.Payload, &p)
		statuses = append(statuses, p.Status)
	}
	// Status is read at delivery time, so only the last one is certain.
	if statuses[1] != session.StatusSaved {
		t.Errorf("final status = %s, want saved", statuses[1])
	}

	sess.ToggleConnectionMode()
	center := func(id string) (float64, float64) {
		for _, n := range sess.Scene(client.Viewport()).Nodes {
			if n.ID == id {
				c := n.Rect.Center()
				return c.X, c.Y
			}
		}
		t.Fatalf("node %s not in scene", id)
		return 0, 0
	}
	ax, ay := center(a.ID)
	bx, by := center(b.ID)
	sess.Dispatch(session.PointerEvent{Kind: session.PointerKindDown, X: ax, Y: ay})
	sess.Dispatch(session.PointerEvent{Kind: session.PointerKindUp, X: ax, Y: ay})
	sess.Dispatch(session.PointerEvent{Kind: session.PointerKindDown, X: bx, Y: by})
	sess.Dispatch(session.PointerEvent{Kind: session.PointerKindUp, X: bx, Y: by})

	deadline := time.After(time.Second)
	for {
		select {
		case data := <-client.send:
			var msg Message
			json.Unmarshal(data, &msg)
			if msg.Type != MsgPrompt {
				continue
			}
			var p PromptPayload
			json.Unmarshal(msg.Payload, &p)
			if !p.Open || p.Prompt.TargetID != b.ID || len(p.Prompt.Options) != 4 {
				t.Errorf("prompt = %+v", p)
			}
			return
		case <-deadline:
			t.Fatal("no prompt message")
		}
	}
}

func TestHubDropsSlowClient(t *testing.T) {
	hub, m := testHub(t)
	sess, _ := m.Get(context.Background(), "demo")

	slow := &Client{hub: hub, project: "demo", send: make(chan []byte, 1)}
	hub.register <- slow
	time.Sleep(50 * time.Millisecond)
	slow.send <- []byte("filler")

	sess.AddEntity()
	time.Sleep(100 * time.Millisecond)

	if got := hub.ClientCount(); got != 0 {
		t.Errorf("slow client should be dropped, ClientCount() = %d, want 0", got)
	}
}

func TestNewMessage_NilPayload(t *testing.T) {
	data, err := NewMessage(MsgSync, nil)
	if err != nil {
		t.Fatalf("NewMessage error: %v", err)
	}
	var msg Message
	if err := json.Unmarshal(data, &msg); err != nil {
		t.Fatalf("unmarshal error: %v", err)
	}
	if msg.Type != MsgSync {
		t.Errorf("type = %q, want %q", msg.Type, MsgSync)
	}
	if msg.Payload != nil {
		t.Errorf("payload should be nil, got %s", msg.Payload)
	}
}

func TestErrorMessage(t *testing.T) {
	var msg Message
	if err := json.Unmarshal(errorMessage(session.ErrUnknownCommand), &msg); err != nil {
		t.Fatal(err)
	}
	var p map[string]string
	json.Unmarshal(msg.Payload, &p)
	if msg.Type != MsgError || p["message"] != "unknown command" {
		t.Errorf("error message = %s %v", msg.Type, p)
	}
}

func dial(t *testing.T, srv *httptest.Server, path string) *websocket.Conn {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + path
	conn, _, err := websocket.Dial(ctx, url, nil)
	if err != nil {
		t.Fatalf("Dial error: %v", err)
	}
	t.Cleanup(func() { conn.Close(websocket.StatusNormalClosure, "") })
	return conn
}

func readMessage(t *testing.T, conn *websocket.Conn) Message {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	_, data, err := conn.Read(ctx)
	if err != nil {
		t.Fatalf("Read error: %v", err)
	}
	var msg Message
	if err := json.Unmarshal(data, &msg); err != nil {
		t.Fatalf("unmarshal error: %v", err)
	}
	return msg
}

func writeMessage(t *testing.T, conn *websocket.Conn, typ MessageType, payload any) {
	t.Helper()
	data, err := NewMessage(typ, payload)
	if err != nil {
		t.Fatal(err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := conn.Write(ctx, websocket.MessageText, data); err != nil {
		t.Fatalf("Write error: %v", err)
	}
}

func TestHandleWebSocket(t *testing.T) {
	hub, _ := testHub(t)
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/projects/{id}/ws", hub.HandleWebSocket)
	srv := httptest.NewServer(mux)
	defer srv.Close()

	conn := dial(t, srv, "/api/projects/demo/ws?width=800&height=600")

	// Full state on connect.
	want := []MessageType{MsgScene, MsgSaveStatus, MsgPrompt}
	for _, typ := range want {
		if msg := readMessage(t, conn); msg.Type != typ {
			t.Fatalf("initial message = %q, want %q", msg.Type, typ)
		}
	}

	writeMessage(t, conn, MsgCommand, CommandPayload{Command: session.CmdAddEntity})
	for {
		msg := readMessage(t, conn)
		if msg.Type != MsgScene {
			continue
		}
		var sc render.Scene
		json.Unmarshal(msg.Payload, &sc)
		if sc.Viewport.Width != 800 {
			t.Errorf("viewport width = %v, want 800", sc.Viewport.Width)
		}
		if len(sc.Nodes) == 1 {
			break
		}
	}

	writeMessage(t, conn, MsgCommand, CommandPayload{Command: "explode"})
	for {
		msg := readMessage(t, conn)
		if msg.Type == MsgError {
			break
		}
	}

	writeMessage(t, conn, MsgSync, SyncPayload{Width: 1024, Height: 768})
	for {
		msg := readMessage(t, conn)
		if msg.Type != MsgScene {
			continue
		}
		var sc render.Scene
		json.Unmarshal(msg.Payload, &sc)
		if sc.Viewport.Width == 1024 {
			break
		}
	}
}

func TestHandleWebSocketInvalidProject(t *testing.T) {
	hub, _ := testHub(t)
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/projects/{id}/ws", hub.HandleWebSocket)
	srv := httptest.NewServer(mux)
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/api/projects/-bad/ws")
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", resp.StatusCode)
	}
}

func TestPublishCoalesces(t *testing.T) {
	hub := NewHub(nil, slog.Default())
	for i := 0; i < 1000; i++ {
		hub.Publish(session.Event{ProjectID: "demo", Kind: session.EventScene})
	}
	hub.Publish(session.Event{ProjectID: "demo", Kind: session.EventStatus})
	hub.Publish(session.Event{ProjectID: "other", Kind: session.EventScene})
	if got := hub.Pending(); got != 3 {
		t.Fatalf("Pending() = %d, want 3", got)
	}
	evs := hub.drain()
	if evs[0].Kind != session.EventScene || evs[1].Kind != session.EventStatus || evs[2].ProjectID != "other" {
		t.Errorf("drain order = %+v", evs)
	}
	if got := hub.Pending(); got != 0 {
		t.Errorf("Pending() after drain = %d, want 0", got)
	}
}

func TestBurstDeliversLatestScene(t *testing.T) {
	hub, m := testHub(t)
	sess, _ := m.Get(context.Background(), "demo")
	e, _ := sess.CreateEntity(store.Partial{Name: "users", Position: &geometry.Point{X: 100, Y: 100}})

	client := &Client{hub: hub, project: "demo", send: make(chan []byte, 4096)}
	hub.register <- client
	time.Sleep(50 * time.Millisecond)

	sess.PointerDown(geometry.Point{X: 110, Y: 110})
	for i := 1; i <= 2000; i++ {
		sess.PointerMove(geometry.Point{X: 110 + float64(i)/10, Y: 110})
	}
	sess.PointerUp(geometry.Point{X: 310, Y: 110})

	deadline := time.After(2 * time.Second)
	for {
		select {
		case data := <-client.send:
			var msg Message
			json.Unmarshal(data, &msg)
			if msg.Type != MsgScene {
				continue
			}
			var sc render.Scene
			json.Unmarshal(msg.Payload, &sc)
			for _, n := range sc.Nodes {
				if n.ID == e.ID && n.Rect.X == 300 {
					return
				}
			}
		case <-deadline:
			t.Fatal("final drag position never delivered")
		}
	}
}

func waitState(t *testing.T, sess *session.Session, want string) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for sess.InteractionState() != want {
		if time.Now().After(deadline) {
			t.Fatalf("state = %s, want %s", sess.InteractionState(), want)
		}
		time.Sleep(10 * time.Millisecond)
	}
}

func wsServer(t *testing.T, hub *Hub) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/projects/{id}/ws", hub.HandleWebSocket)
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func TestDisconnectEndsDrag(t *testing.T) {
	hub, m := testHub(t)
	sess, _ := m.Get(context.Background(), "demo")
	e, _ := sess.CreateEntity(store.Partial{Name: "users", Position: &geometry.Point{X: 100, Y: 100}})
	srv := wsServer(t, hub)

	conn := dial(t, srv, "/api/projects/demo/ws")
	writeMessage(t, conn, MsgPointer, session.PointerEvent{Kind: session.PointerKindDown, X: 110, Y: 110})
	writeMessage(t, conn, MsgPointer, session.PointerEvent{Kind: session.PointerKindMove, X: 150, Y: 150})
	waitState(t, sess, "dragging-entity")
	deadline := time.Now().Add(2 * time.Second)
	for {
		got, _ := sess.Entity(e.ID)
		if got.Position == (geometry.Point{X: 140, Y: 140}) {
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("Position = %v, want (140,140)", got.Position)
		}
		time.Sleep(10 * time.Millisecond)
	}

	conn.Close(websocket.StatusNormalClosure, "")
	waitState(t, sess, "idle")

	if h := sess.History(); h.Len != 2 {
		t.Errorf("history Len = %d, want 2 (create + move)", h.Len)
	}
	got, _ := sess.Entity(e.ID)
	if got.Position != (geometry.Point{X: 140, Y: 140}) {
		t.Errorf("Position = %v, want (140,140)", got.Position)
	}
}

func TestDisconnectKeepsOtherClientsGesture(t *testing.T) {
	hub, m := testHub(t)
	sess, _ := m.Get(context.Background(), "demo")
	sess.CreateEntity(store.Partial{Name: "users", Position: &geometry.Point{X: 100, Y: 100}})
	srv := wsServer(t, hub)

	first := dial(t, srv, "/api/projects/demo/ws")
	second := dial(t, srv, "/api/projects/demo/ws")

	writeMessage(t, first, MsgPointer, session.PointerEvent{Kind: session.PointerKindDown, X: 110, Y: 110})
	waitState(t, sess, "dragging-entity")
	writeMessage(t, second, MsgPointer, session.PointerEvent{Kind: session.PointerKindDown, X: 600, Y: 600})
	waitState(t, sess, "panning")

	first.Close(websocket.StatusNormalClosure, "")
	deadline := time.Now().Add(2 * time.Second)
	for hub.ClientCount() != 1 {
		if time.Now().After(deadline) {
			t.Fatalf("ClientCount() = %d, want 1", hub.ClientCount())
		}
		time.Sleep(10 * time.Millisecond)
	}
	if got := sess.InteractionState(); got != "panning" {
		t.Errorf("state = %s, want panning", got)
	}

	second.Close(websocket.StatusNormalClosure, "")
	waitState(t, sess, "idle")
}
