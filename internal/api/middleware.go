package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/reloquent/schemacanvas/internal/persistence"
	"github.com/reloquent/schemacanvas/internal/resolver"
	"github.com/reloquent/schemacanvas/internal/schema"
	"github.com/reloquent/schemacanvas/internal/session"
	"github.com/reloquent/schemacanvas/internal/store"
)

// jsonResponse writes a JSON response.
func jsonResponse(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		slog.Error("writing json response", "error", err)
	}
}

// errorResponse writes an error JSON response.
func errorResponse(w http.ResponseWriter, status int, message string) {
	jsonResponse(w, status, map[string]string{"error": message})
}

// sessionError maps editor errors onto status codes.
func sessionError(w http.ResponseWriter, err error) {
	var (
		verr *schema.ValidationError
		eerr *store.InvalidEndpointError
	)
	status := http.StatusInternalServerError
	switch {
	case errors.As(err, &verr):
		status = http.StatusUnprocessableEntity
	case errors.As(err, &eerr), errors.Is(err, store.ErrDuplicateConnection), errors.Is(err, resolver.ErrNoPending):
		status = http.StatusConflict
	case errors.Is(err, session.ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, persistence.ErrInvalidProject),
		errors.Is(err, session.ErrUnknownCommand),
		errors.Is(err, session.ErrUnknownPointer),
		errors.Is(err, session.ErrUnknownTemplate),
		errors.Is(err, schema.ErrUnsupportedPayload),
		errors.Is(err, resolver.ErrUnknownRelationship),
		errors.Is(err, store.ErrUnknownRelationship):
		status = http.StatusBadRequest
	}
	errorResponse(w, status, err.Error())
}

// decode reads a JSON body, answering 400 when it is malformed.
func decode(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		errorResponse(w, http.StatusBadRequest, "invalid request body")
		return false
	}
	return true
}

// requestLogger is middleware that logs HTTP requests.
func requestLogger(logger *slog.Logger, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		logger.Debug("http request",
			"method", r.Method,
			"path", r.URL.Path,
			"duration", time.Since(start),
		)
	})
}

func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PATCH, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}
