package api

import (
	"context"
	"errors"
	"io/fs"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/reloquent/schemacanvas/internal/session"
	"github.com/reloquent/schemacanvas/internal/ws"
)

// Server is the HTTP API for canvas clients.
type Server struct {
	manager  *session.Manager
	hub      *ws.Hub
	logger   *slog.Logger
	addr     string
	server   *http.Server
	staticFS fs.FS
	devMode  bool
}

// Option configures the API server.
type Option func(*Server)

// WithStaticFS sets the embedded filesystem for serving the web client.
func WithStaticFS(fsys fs.FS) Option {
	return func(s *Server) {
		s.staticFS = fsys
	}
}

// WithDevMode enables CORS for development.
func WithDevMode(dev bool) Option {
	return func(s *Server) {
		s.devMode = dev
	}
}

// WithHub sets the WebSocket hub.
func WithHub(hub *ws.Hub) Option {
	return func(s *Server) {
		s.hub = hub
	}
}

// New creates a new API server listening on addr.
func New(m *session.Manager, logger *slog.Logger, addr string, opts ...Option) *Server {
	s := &Server{
		manager: m,
		logger:  logger,
		addr:    addr,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Handler returns the routed handler with middleware applied.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	s.registerRoutes(mux)

	var handler http.Handler = mux
	if s.devMode {
		handler = corsMiddleware(handler)
	}
	return requestLogger(s.logger, handler)
}

// Start serves until Shutdown. A clean shutdown returns nil.
func (s *Server) Start() error {
	ln, err := net.Listen("tcp", s.addr)
	if err != nil {
		return err
	}
	return s.Serve(ln)
}

// Serve accepts connections on ln.
func (s *Server) Serve(ln net.Listener) error {
	s.server = &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	s.logger.Info("starting canvas server", "addr", ln.Addr().String(), "dev_mode", s.devMode)
	if err := s.server.Serve(ln); !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown gracefully stops the server.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.server != nil {
		return s.server.Shutdown(ctx)
	}
	return nil
}

func (s *Server) registerRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/health", s.handleHealth)
	mux.HandleFunc("GET /api/projects", s.handleListProjects)

	mux.HandleFunc("GET /api/projects/{id}/scene", s.handleGetScene)
	mux.HandleFunc("GET /api/projects/{id}/schema", s.handleGetSchema)
	mux.HandleFunc("GET /api/projects/{id}/status", s.handleGetStatus)
	mux.HandleFunc("GET /api/projects/{id}/templates", s.handleGetTemplates)

	mux.HandleFunc("POST /api/projects/{id}/pointer", s.handlePointer)
	mux.HandleFunc("POST /api/projects/{id}/commands", s.handleCommand)
	mux.HandleFunc("POST /api/projects/{id}/select", s.handleSelect)

	mux.HandleFunc("POST /api/projects/{id}/entities", s.handleCreateEntity)
	mux.HandleFunc("PATCH /api/projects/{id}/entities/{eid}", s.handleUpdateEntity)
	mux.HandleFunc("DELETE /api/projects/{id}/entities/{eid}", s.handleDeleteEntity)
	mux.HandleFunc("POST /api/projects/{id}/entities/{eid}/fields", s.handleAddField)
	mux.HandleFunc("PATCH /api/projects/{id}/entities/{eid}/fields/{fid}", s.handleUpdateField)
	mux.HandleFunc("DELETE /api/projects/{id}/entities/{eid}/fields/{fid}", s.handleDeleteField)
	mux.HandleFunc("POST /api/projects/{id}/entities/{eid}/fields/{fid}/move", s.handleMoveField)

	mux.HandleFunc("POST /api/projects/{id}/connections", s.handleCreateConnection)
	mux.HandleFunc("PATCH /api/projects/{id}/connections/{cid}", s.handleUpdateConnection)
	mux.HandleFunc("DELETE /api/projects/{id}/connections/{cid}", s.handleDeleteConnection)

	mux.HandleFunc("POST /api/projects/{id}/resolver/confirm", s.handleConfirm)
	mux.HandleFunc("POST /api/projects/{id}/resolver/cancel", s.handleCancel)

	mux.HandleFunc("POST /api/projects/{id}/drop", s.handleDrop)
	mux.HandleFunc("POST /api/projects/{id}/save", s.handleSave)

	// WebSocket
	if s.hub != nil {
		mux.HandleFunc("GET /api/projects/{id}/ws", s.hub.HandleWebSocket)
	}

	// SPA static file serving
	if s.staticFS != nil {
		mux.Handle("/", s.spaHandler())
	}
}

// spaHandler serves the web client. For any non-API, non-asset request,
// it returns index.html so client-side routing works.
func (s *Server) spaHandler() http.Handler {
	fileServer := http.FileServer(http.FS(s.staticFS))
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		path := r.URL.Path
		if path == "/" {
			path = "index.html"
		} else {
			path = strings.TrimPrefix(path, "/")
		}

		f, err := s.staticFS.Open(path)
		if err == nil {
			f.Close()
			fileServer.ServeHTTP(w, r)
			return
		}

		r.URL.Path = "/"
		fileServer.ServeHTTP(w, r)
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.Write([]byte(`{"status":"ok"}`))
}
