package ws

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"nhooyr.io/websocket"

	"github.com/reloquent/schemacanvas/internal/geometry"
	"github.com/reloquent/schemacanvas/internal/persistence"
	"github.com/reloquent/schemacanvas/internal/session"
)

const (
	writeTimeout = 10 * time.Second
	pingPeriod   = 30 * time.Second
)

// HandleWebSocket upgrades GET /api/projects/{id}/ws and manages the
// read/write pumps for the client. The initial viewport comes from the
// width and height query parameters.
func (h *Hub) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	projectID := r.PathValue("id")
	sess, err := h.manager.Get(r.Context(), projectID)
	if errors.Is(err, persistence.ErrInvalidProject) {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		InsecureSkipVerify: true, // Allow connections from any origin (dev mode)
	})
	if err != nil {
		h.logger.Error("websocket accept failed", "error", err)
		return
	}

	client := &Client{
		hub:      h,
		project:  projectID,
		send:     make(chan []byte, 256),
		conn:     conn,
		viewport: viewportFromQuery(r),
	}

	select {
	case h.register <- client:
	case <-h.done:
		conn.Close(websocket.StatusGoingAway, "server shutting down")
		return
	}

	client.sendFullState(sess)

	go client.writePump(r.Context())
	client.readPump(r.Context(), sess)
}

func viewportFromQuery(r *http.Request) geometry.Size {
	w, _ := strconv.ParseFloat(r.URL.Query().Get("width"), 64)
	hgt, _ := strconv.ParseFloat(r.URL.Query().Get("height"), 64)
	return geometry.Size{Width: w, Height: hgt}
}

// sendFullState queues scene, status and prompt, in that order.
func (c *Client) sendFullState(sess *session.Session) {
	builders := []func() ([]byte, error){
		func() ([]byte, error) { return sceneMessage(sess, c.Viewport()) },
		func() ([]byte, error) { return statusMessage(sess) },
		func() ([]byte, error) { return promptMessage(sess) },
	}
	for _, build := range builders {
		msg, err := build()
		if err != nil {
			c.hub.logger.Error("encoding websocket message", "error", err)
			continue
		}
		c.trySend(msg)
	}
}

func (c *Client) readPump(ctx context.Context, sess *session.Session) {
	defer func() {
		// A gesture this client started must not outlive its connection.
		if c.hub.releaseGesture(c) {
			sess.PointerCancel()
		}
		select {
		case c.hub.unregister <- c:
		case <-c.hub.done:
		}
		c.conn.Close(websocket.StatusNormalClosure, "")
	}()

	for {
		_, data, err := c.conn.Read(ctx)
		if err != nil {
			if websocket.CloseStatus(err) == websocket.StatusNormalClosure {
				c.hub.logger.Debug("websocket client disconnected normally")
			}
			return
		}

		var msg Message
		if err := json.Unmarshal(data, &msg); err != nil {
			c.trySend(errorMessage(fmt.Errorf("invalid message: %w", err)))
			continue
		}
		if err := c.handle(sess, msg); err != nil {
			c.trySend(errorMessage(err))
		}
	}
}

// handle applies one client message. Resulting scene updates arrive through
// the hub like any other session event.
func (c *Client) handle(sess *session.Session, msg Message) error {
	switch msg.Type {
	case MsgPointer:
		var ev session.PointerEvent
		if err := json.Unmarshal(msg.Payload, &ev); err != nil {
			return fmt.Errorf("invalid pointer payload: %w", err)
		}
		switch ev.Kind {
		case session.PointerKindDown:
			c.hub.claimGesture(c)
		case session.PointerKindUp, session.PointerKindCancel:
			c.hub.releaseGesture(c)
		}
		return sess.Dispatch(ev)

	case MsgCommand:
		var cmd CommandPayload
		if err := json.Unmarshal(msg.Payload, &cmd); err != nil {
			return fmt.Errorf("invalid command payload: %w", err)
		}
		vp := c.Viewport()
		if cmd.Width > 0 && cmd.Height > 0 {
			vp = geometry.Size{Width: cmd.Width, Height: cmd.Height}
		}
		return sess.Exec(cmd.Command, vp)

	case MsgSync:
		if len(msg.Payload) > 0 {
			var p SyncPayload
			if err := json.Unmarshal(msg.Payload, &p); err != nil {
				return fmt.Errorf("invalid sync payload: %w", err)
			}
			c.setViewport(geometry.Size{Width: p.Width, Height: p.Height})
		}
		c.sendFullState(sess)
		return nil

	default:
		return fmt.Errorf("unsupported message type %q", msg.Type)
	}
}

func (c *Client) writePump(ctx context.Context) {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case message, ok := <-c.send:
			if !ok {
				c.conn.Close(websocket.StatusNormalClosure, "")
				return
			}
			writeCtx, cancel := context.WithTimeout(ctx, writeTimeout)
			err := c.conn.Write(writeCtx, websocket.MessageText, message)
			cancel()
			if err != nil {
				return
			}

		case <-ticker.C:
			pingCtx, cancel := context.WithTimeout(ctx, writeTimeout)
			err := c.conn.Ping(pingCtx)
			cancel()
			if err != nil {
				return
			}

		case <-ctx.Done():
			return
		}
	}
}
