// Package server exposes visualization sessions over HTTP: a JSON REST API
// and a websocket stream for live audio, plus Prometheus metrics.
//
// The [Hub] is the transport-independent core; [Server] wraps it with
// routing and connection lifecycle. REST routes that do not name a session
// operate on [DefaultSessionID].
package server

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"reflect"
	"time"

	"github.com/google/jsonschema-go/jsonschema"
	"github.com/gorilla/mux"

	"github.com/auravis/auravis/pkg/encoding"
	"github.com/auravis/auravis/pkg/jsontime"
	"github.com/auravis/auravis/pkg/projector"
	"github.com/auravis/auravis/pkg/viz"
)

// Server serves the hub's REST API, the websocket stream and the metrics
// endpoint on one listener.
type Server struct {
	hub    *Hub
	logger *slog.Logger
	router *mux.Router
	http   *http.Server

	ln net.Listener
}

// ServerOption configures a Server.
type ServerOption func(*Server)

// WithServerLogger sets the server logger.
func WithServerLogger(l *slog.Logger) ServerOption {
	return func(s *Server) {
		if l != nil {
			s.logger = l
		}
	}
}

// New creates a Server for the hub, listening on addr once started.
func New(hub *Hub, addr string, opts ...ServerOption) *Server {
	s := &Server{
		hub:    hub,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.router = s.routes()
	s.http = &http.Server{
		Addr:              addr,
		Handler:           s.withAccessLog(s.router),
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s
}

// Handler returns the server's root handler, for serving through an
// external listener or httptest.
func (s *Server) Handler() http.Handler {
	return s.http.Handler
}

func (s *Server) routes() *mux.Router {
	r := mux.NewRouter()
	r.HandleFunc("/healthz", s.handleHealth).Methods(http.MethodGet)
	r.Handle("/metrics", s.hub.Metrics().Handler()).Methods(http.MethodGet)
	r.HandleFunc("/ws/viz/{session}", s.handleWS)
	r.HandleFunc("/ws/viz", s.handleWS)

	api := r.PathPrefix("/api/v1").Subrouter()
	api.HandleFunc("/viz/status", s.handleStatus).Methods(http.MethodGet)
	api.HandleFunc("/viz/status/{session}", s.handleStatus).Methods(http.MethodGet)
	api.HandleFunc("/viz/sessions", s.handleSessions).Methods(http.MethodGet)
	api.HandleFunc("/viz/reset", s.handleReset).Methods(http.MethodPost)
	api.HandleFunc("/viz/reset/{session}", s.handleReset).Methods(http.MethodPost)
	api.HandleFunc("/viz/train", s.handleTrain).Methods(http.MethodPost)
	api.HandleFunc("/viz/train/{session}", s.handleTrain).Methods(http.MethodPost)
	api.HandleFunc("/viz/process", s.handleProcess).Methods(http.MethodPost)
	api.HandleFunc("/viz/schema", s.handleSchema).Methods(http.MethodGet)
	api.HandleFunc("/viz/snapshot/{session}", s.handleSnapshotSave).Methods(http.MethodPost)
	api.HandleFunc("/viz/snapshot/{session}", s.handleSnapshotDelete).Methods(http.MethodDelete)
	api.HandleFunc("/viz/export/{session}", s.handleExport).Methods(http.MethodPost)
	return r
}

// Start binds the listener and begins serving in a background goroutine.
// Bind errors are returned synchronously.
func (s *Server) Start() error {
	ln, err := net.Listen("tcp", s.http.Addr)
	if err != nil {
		return fmt.Errorf("server: listen %s: %w", s.http.Addr, err)
	}
	s.ln = ln
	s.logger.Info("server: listening", "addr", ln.Addr().String())
	go func() {
		if err := s.http.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("server: serve failed", "err", err)
		}
	}()
	return nil
}

// Addr returns the bound listen address, valid after Start.
func (s *Server) Addr() string {
	if s.ln == nil {
		return s.http.Addr
	}
	return s.ln.Addr().String()
}

// Stop drains in-flight requests, shuts the listener down and closes the
// hub.
func (s *Server) Stop(ctx context.Context) error {
	err := s.http.Shutdown(ctx)
	s.hub.Close()
	s.logger.Info("server: stopped")
	return err
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	info, err := s.hub.Status(sessionVar(r))
	if err != nil {
		httpError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, info)
}

func (s *Server) handleSessions(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.hub.List())
}

type resetRequest struct {
	ResetModel bool `json:"reset_model"`
}

func (s *Server) handleReset(w http.ResponseWriter, r *http.Request) {
	var req resetRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	id := sessionVar(r)
	if err := s.hub.Reset(id, req.ResetModel); err != nil {
		httpError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"session_id": id, "reset_model": req.ResetModel})
}

type trainResponse struct {
	Started bool             `json:"started"`
	Status  projector.Status `json:"status"`
}

func (s *Server) handleTrain(w http.ResponseWriter, r *http.Request) {
	id := sessionVar(r)
	started, err := s.hub.Train(id)
	if err != nil {
		httpError(w, err)
		return
	}
	info, err := s.hub.Status(id)
	if err != nil {
		httpError(w, err)
		return
	}
	code := http.StatusOK
	if !started {
		code = http.StatusConflict
	}
	writeJSON(w, code, trainResponse{Started: started, Status: info.Status})
}

type processRequest struct {
	SessionID string                 `json:"session_id"`
	Audio     encoding.StdBase64Data `json:"audio"`
}

func (s *Server) handleProcess(w http.ResponseWriter, r *http.Request) {
	var req processRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	id := req.SessionID
	if id == "" {
		id = DefaultSessionID
	}
	frame, _ := s.hub.Process(id, req.Audio)
	writeJSON(w, http.StatusOK, frame)
}

// frameSchema builds the JSON Schema for Frame. Milli marshals as an epoch
// integer, which reflection cannot see, so its schema is pinned by hand.
func frameSchema() (*jsonschema.Schema, error) {
	return jsonschema.For[viz.Frame](&jsonschema.ForOptions{
		TypeSchemas: map[reflect.Type]*jsonschema.Schema{
			reflect.TypeOf(jsontime.Milli{}): {
				Type:        "integer",
				Description: "milliseconds since the Unix epoch",
			},
		},
	})
}

func (s *Server) handleSchema(w http.ResponseWriter, _ *http.Request) {
	schema, err := frameSchema()
	if err != nil {
		writeError(w, http.StatusInternalServerError, fmt.Sprintf("server: frame schema: %v", err))
		return
	}
	writeJSON(w, http.StatusOK, schema)
}

func (s *Server) handleSnapshotSave(w http.ResponseWriter, r *http.Request) {
	id := sessionVar(r)
	if err := s.hub.SaveSnapshot(r.Context(), id); err != nil {
		httpError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"session_id": id})
}

func (s *Server) handleSnapshotDelete(w http.ResponseWriter, r *http.Request) {
	if err := s.hub.DeleteSnapshot(r.Context(), sessionVar(r)); err != nil {
		httpError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleExport(w http.ResponseWriter, r *http.Request) {
	exp, err := s.hub.Export(r.Context(), sessionVar(r))
	if err != nil {
		httpError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, exp)
}

// sessionVar extracts the session route variable, falling back to the
// default session.
func sessionVar(r *http.Request) string {
	if id := mux.Vars(r)["session"]; id != "" {
		return id
	}
	return DefaultSessionID
}

// decodeBody decodes a JSON request body into v. An empty body leaves v at
// its zero value.
func decodeBody(r *http.Request, v any) error {
	err := json.NewDecoder(r.Body).Decode(v)
	if err == nil || errors.Is(err, io.EOF) {
		return nil
	}
	return fmt.Errorf("server: decode request: %w", err)
}

type errorResponse struct {
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, code int, msg string) {
	writeJSON(w, code, errorResponse{Error: msg})
}

// httpError maps hub errors to status codes.
func httpError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ErrSessionNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, ErrNotTrained):
		writeError(w, http.StatusConflict, err.Error())
	case errors.Is(err, ErrNoSnapshotStore), errors.Is(err, ErrNoExportStore):
		writeError(w, http.StatusServiceUnavailable, err.Error())
	default:
		writeError(w, http.StatusInternalServerError, err.Error())
	}
}

// responseWriter captures the status code for the access log.
type responseWriter struct {
	http.ResponseWriter
	status int
}

func (w *responseWriter) WriteHeader(code int) {
	w.status = code
	w.ResponseWriter.WriteHeader(code)
}

// Hijack forwards to the wrapped writer so websocket upgrades work through
// the access log middleware.
func (w *responseWriter) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	h, ok := w.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, fmt.Errorf("server: response writer does not support hijacking")
	}
	return h.Hijack()
}

func (s *Server) withAccessLog(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rw := &responseWriter{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rw, r)
		s.logger.Debug("server: request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", rw.status,
			"dur", time.Since(start))
	})
}
