package api

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/reloquent/schemacanvas/internal/geometry"
	"github.com/reloquent/schemacanvas/internal/persistence"
	"github.com/reloquent/schemacanvas/internal/schema"
	"github.com/reloquent/schemacanvas/internal/session"
	"github.com/reloquent/schemacanvas/internal/store"
)

// session resolves {id}, opening the project on first use.
func (s *Server) session(w http.ResponseWriter, r *http.Request) (*session.Session, bool) {
	sess, err := s.manager.Get(r.Context(), r.PathValue("id"))
	if err != nil {
		if !errors.Is(err, persistence.ErrInvalidProject) {
			s.logger.Error("opening project", "project", r.PathValue("id"), "error", err)
		}
		sessionError(w, err)
		return nil, false
	}
	return sess, true
}

func viewport(r *http.Request) geometry.Size {
	q := r.URL.Query()
	w, _ := strconv.ParseFloat(q.Get("width"), 64)
	h, _ := strconv.ParseFloat(q.Get("height"), 64)
	return geometry.Size{Width: w, Height: h}
}

func (s *Server) handleListProjects(w http.ResponseWriter, r *http.Request) {
	open := s.manager.Sessions()
	ids := make([]string, 0, len(open))
	for _, sess := range open {
		ids = append(ids, sess.ID())
	}
	jsonResponse(w, http.StatusOK, map[string][]string{"projects": ids})
}

func (s *Server) handleGetScene(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.session(w, r)
	if !ok {
		return
	}
	jsonResponse(w, http.StatusOK, sess.Scene(viewport(r)))
}

func (s *Server) handleGetSchema(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.session(w, r)
	if !ok {
		return
	}
	jsonResponse(w, http.StatusOK, sess.Snapshot())
}

func (s *Server) handleGetStatus(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.session(w, r)
	if !ok {
		return
	}
	resp := StatusResponse{
		ProjectID:      sess.ID(),
		Status:         sess.Status(),
		Dirty:          sess.Dirty(),
		History:        sess.History(),
		Interaction:    sess.InteractionState(),
		ConnectionMode: sess.ConnectionMode(),
		SelectedEntity: sess.SelectedEntityID(),
	}
	if err := sess.LastError(); err != nil {
		resp.Error = err.Error()
	}
	if c, ok := sess.SelectedConnection(); ok {
		resp.SelectedConnection = c.ID
	}
	jsonResponse(w, http.StatusOK, resp)
}

func (s *Server) handleGetTemplates(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.session(w, r)
	if !ok {
		return
	}
	jsonResponse(w, http.StatusOK, sess.Templates())
}

func (s *Server) handlePointer(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.session(w, r)
	if !ok {
		return
	}
	var ev session.PointerEvent
	if !decode(w, r, &ev) {
		return
	}
	if err := sess.Dispatch(ev); err != nil {
		sessionError(w, err)
		return
	}
	jsonResponse(w, http.StatusOK, map[string]string{"state": sess.InteractionState()})
}

func (s *Server) handleCommand(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.session(w, r)
	if !ok {
		return
	}
	var req CommandRequest
	if !decode(w, r, &req) {
		return
	}
	if err := sess.Exec(req.Command, geometry.Size{Width: req.Width, Height: req.Height}); err != nil {
		sessionError(w, err)
		return
	}
	jsonResponse(w, http.StatusOK, sess.History())
}

func (s *Server) handleSelect(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.session(w, r)
	if !ok {
		return
	}
	var req SelectRequest
	if !decode(w, r, &req) {
		return
	}
	var found bool
	if req.ConnectionID != "" {
		found = sess.SelectConnection(req.ConnectionID)
	} else {
		found = sess.SelectEntity(req.EntityID)
	}
	if !found {
		sessionError(w, session.ErrNotFound)
		return
	}
	jsonResponse(w, http.StatusOK, req)
}

func (s *Server) handleCreateEntity(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.session(w, r)
	if !ok {
		return
	}
	var req CreateEntityRequest
	if !decode(w, r, &req) {
		return
	}
	e, err := sess.CreateEntity(store.Partial{Name: req.Name, Position: req.Position, Fields: req.Fields})
	if err != nil {
		sessionError(w, err)
		return
	}
	jsonResponse(w, http.StatusCreated, e)
}

func (s *Server) handleUpdateEntity(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.session(w, r)
	if !ok {
		return
	}
	var patch schema.EntityPatch
	if !decode(w, r, &patch) {
		return
	}
	e, err := sess.UpdateEntity(r.PathValue("eid"), patch)
	if err != nil {
		sessionError(w, err)
		return
	}
	jsonResponse(w, http.StatusOK, e)
}

func (s *Server) handleDeleteEntity(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.session(w, r)
	if !ok {
		return
	}
	if err := sess.RemoveEntity(r.PathValue("eid")); err != nil {
		sessionError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleAddField(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.session(w, r)
	if !ok {
		return
	}
	var f schema.Field
	if r.ContentLength != 0 && !decode(w, r, &f) {
		return
	}
	added, err := sess.AddField(r.PathValue("eid"), f)
	if err != nil {
		sessionError(w, err)
		return
	}
	jsonResponse(w, http.StatusCreated, added)
}

func (s *Server) handleUpdateField(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.session(w, r)
	if !ok {
		return
	}
	var patch schema.FieldPatch
	if !decode(w, r, &patch) {
		return
	}
	f, err := sess.UpdateField(r.PathValue("eid"), r.PathValue("fid"), patch)
	if err != nil {
		sessionError(w, err)
		return
	}
	jsonResponse(w, http.StatusOK, f)
}

func (s *Server) handleDeleteField(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.session(w, r)
	if !ok {
		return
	}
	if err := sess.RemoveField(r.PathValue("eid"), r.PathValue("fid")); err != nil {
		sessionError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleMoveField(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.session(w, r)
	if !ok {
		return
	}
	var req MoveFieldRequest
	if !decode(w, r, &req) {
		return
	}
	if err := sess.MoveField(r.PathValue("eid"), r.PathValue("fid"), req.Index); err != nil {
		sessionError(w, err)
		return
	}
	e, _ := sess.Entity(r.PathValue("eid"))
	jsonResponse(w, http.StatusOK, e)
}

func (s *Server) handleCreateConnection(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.session(w, r)
	if !ok {
		return
	}
	var req ConnectionRequest
	if !decode(w, r, &req) {
		return
	}
	c, err := sess.AddConnection(req.From, req.To, req.Type, req.FromField, req.ToField)
	if err != nil {
		sessionError(w, err)
		return
	}
	jsonResponse(w, http.StatusCreated, c)
}

func (s *Server) handleUpdateConnection(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.session(w, r)
	if !ok {
		return
	}
	var patch schema.ConnectionPatch
	if !decode(w, r, &patch) {
		return
	}
	c, err := sess.UpdateConnection(r.PathValue("cid"), patch)
	if err != nil {
		sessionError(w, err)
		return
	}
	jsonResponse(w, http.StatusOK, c)
}

func (s *Server) handleDeleteConnection(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.session(w, r)
	if !ok {
		return
	}
	if err := sess.RemoveConnection(r.PathValue("cid")); err != nil {
		sessionError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleConfirm(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.session(w, r)
	if !ok {
		return
	}
	var req ConfirmRequest
	if !decode(w, r, &req) {
		return
	}
	c, err := sess.ConfirmConnection(req.Type)
	if err != nil {
		sessionError(w, err)
		return
	}
	jsonResponse(w, http.StatusCreated, c)
}

func (s *Server) handleCancel(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.session(w, r)
	if !ok {
		return
	}
	sess.CancelConnection()
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleDrop(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.session(w, r)
	if !ok {
		return
	}
	var req DropRequest
	if !decode(w, r, &req) {
		return
	}
	at := geometry.Point{X: req.X, Y: req.Y}
	var (
		e   schema.Entity
		err error
	)
	switch {
	case req.Template != "":
		e, err = sess.DropTemplate(req.Template, at)
	case len(req.Payload) > 0:
		e, err = sess.Drop(req.Payload, at)
	default:
		errorResponse(w, http.StatusBadRequest, "payload or template is required")
		return
	}
	if err != nil {
		sessionError(w, err)
		return
	}
	jsonResponse(w, http.StatusCreated, e)
}

func (s *Server) handleSave(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.session(w, r)
	if !ok {
		return
	}
	if err := sess.Save(r.Context()); err != nil {
		s.logger.Error("saving project", "project", sess.ID(), "error", err)
		errorResponse(w, http.StatusInternalServerError, err.Error())
		return
	}
	jsonResponse(w, http.StatusOK, SaveResponse{Status: sess.Status()})
}
