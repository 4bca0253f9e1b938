package ws

import (
	"encoding/json"

	"github.com/reloquent/schemacanvas/internal/geometry"
	"github.com/reloquent/schemacanvas/internal/resolver"
	"github.com/reloquent/schemacanvas/internal/session"
)

// MessageType identifies the kind of WebSocket message.
type MessageType string

const (
	// Server to client.
	MsgScene      MessageType = "scene"
	MsgSaveStatus MessageType = "save_status"
	MsgPrompt     MessageType = "prompt"
	MsgError      MessageType = "error"

	// Client to server.
	MsgPointer MessageType = "pointer"
	MsgCommand MessageType = "command"
	MsgSync    MessageType = "sync"
)

// Message is the envelope for all WebSocket messages.
type Message struct {
	Type    MessageType     `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// StatusPayload is the save indicator.
type StatusPayload struct {
	Status session.Status `json:"status"`
	Error  string         `json:"error,omitempty"`
}

// PromptPayload carries the resolver modal; Open is false once it closes.
type PromptPayload struct {
	Open   bool             `json:"open"`
	Prompt *resolver.Prompt `json:"prompt,omitempty"`
}

// CommandPayload is a toolbar command from a client.
type CommandPayload struct {
	Command string  `json:"command"`
	Width   float64 `json:"width,omitempty"`
	Height  float64 `json:"height,omitempty"`
}

// SyncPayload asks for the full state at the client's viewport.
type SyncPayload struct {
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// NewMessage creates a new Message with the given type and payload.
func NewMessage(typ MessageType, payload any) ([]byte, error) {
	var p json.RawMessage
	if payload != nil {
		var err error
		p, err = json.Marshal(payload)
		if err != nil {
			return nil, err
		}
	}
	return json.Marshal(Message{Type: typ, Payload: p})
}

func sceneMessage(s *session.Session, viewport geometry.Size) ([]byte, error) {
	return NewMessage(MsgScene, s.Scene(viewport))
}

func statusMessage(s *session.Session) ([]byte, error) {
	p := StatusPayload{Status: s.Status()}
	if err := s.LastError(); err != nil {
		p.Error = err.Error()
	}
	return NewMessage(MsgSaveStatus, p)
}

func promptMessage(s *session.Session) ([]byte, error) {
	var p PromptPayload
	if prompt, ok := s.PendingPrompt(); ok {
		p = PromptPayload{Open: true, Prompt: &prompt}
	}
	return NewMessage(MsgPrompt, p)
}

func errorMessage(err error) []byte {
	msg, _ := NewMessage(MsgError, map[string]string{"message": err.Error()})
	return msg
}
