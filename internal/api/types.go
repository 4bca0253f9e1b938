package api

import (
	"encoding/json"

	"github.com/reloquent/schemacanvas/internal/geometry"
	"github.com/reloquent/schemacanvas/internal/schema"
	"github.com/reloquent/schemacanvas/internal/session"
)

// StatusResponse is the API response for GET /api/projects/{id}/status.
type StatusResponse struct {
	ProjectID          string              `json:"project_id"`
	Status             session.Status      `json:"status"`
	Error              string              `json:"error,omitempty"`
	Dirty              bool                `json:"dirty"`
	History            session.HistoryInfo `json:"history"`
	Interaction        string              `json:"interaction"`
	ConnectionMode     bool                `json:"connection_mode"`
	SelectedEntity     string              `json:"selected_entity,omitempty"`
	SelectedConnection string              `json:"selected_connection,omitempty"`
}

// CommandRequest is the request body for POST /api/projects/{id}/commands.
type CommandRequest struct {
	Command string  `json:"command"`
	Width   float64 `json:"width,omitempty"`
	Height  float64 `json:"height,omitempty"`
}

// CreateEntityRequest is the request body for POST .../entities. Missing
// members get the toolbar defaults.
type CreateEntityRequest struct {
	Name     string          `json:"name,omitempty"`
	Position *geometry.Point `json:"position,omitempty"`
	Fields   []schema.Field  `json:"fields,omitempty"`
}

// MoveFieldRequest is the request body for POST .../fields/{fid}/move.
type MoveFieldRequest struct {
	Index int `json:"index"`
}

// ConnectionRequest is the request body for POST .../connections.
type ConnectionRequest struct {
	From      string                  `json:"from"`
	To        string                  `json:"to"`
	Type      schema.RelationshipType `json:"type"`
	FromField string                  `json:"from_field,omitempty"`
	ToField   string                  `json:"to_field,omitempty"`
}

// ConfirmRequest is the request body for POST .../resolver/confirm.
type ConfirmRequest struct {
	Type schema.RelationshipType `json:"type"`
}

// SelectRequest is the request body for POST .../select. Both empty clears
// the selection.
type SelectRequest struct {
	EntityID     string `json:"entity_id,omitempty"`
	ConnectionID string `json:"connection_id,omitempty"`
}

// DropRequest is the request body for POST .../drop: either a raw drag
// payload envelope or a palette template name, at a screen point.
type DropRequest struct {
	Payload  json.RawMessage `json:"payload,omitempty"`
	Template string          `json:"template,omitempty"`
	X        float64         `json:"x"`
	Y        float64         `json:"y"`
}

// SaveResponse reports the outcome of POST .../save.
type SaveResponse struct {
	Status session.Status `json:"status"`
}
