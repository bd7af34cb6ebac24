// Package server provides HTTP and WebSocket handlers
package server

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/vmihailenco/msgpack/v5"

	"github.com/GriffinCanCode/stripscan/internal/analysis"
	apperrors "github.com/GriffinCanCode/stripscan/internal/errors"
	"github.com/GriffinCanCode/stripscan/internal/history"
	"github.com/GriffinCanCode/stripscan/internal/orchestrator"
	"github.com/GriffinCanCode/stripscan/internal/trace"
)

// Orchestrator is what the server needs from the manager.
type Orchestrator interface {
	Classify(ctx context.Context, data []byte) (analysis.Reading, error)
	Capture(ctx context.Context) (analysis.Reading, error)
	Latest() (orchestrator.ReadingEvent, bool)
	SaveLatest(seed, lang string) (history.Entry, error)
	Save(seed, lang string, r analysis.Reading) history.Entry
	History() history.Store
	SetAlerts(ctx context.Context, enabled bool)
	AlertsEnabled() bool
	SetScanning(enabled bool)
	Scanning() bool
	Preview() (analysis.PreviewReading, bool)
	Frame() []byte
	AnalysisConfig() analysis.Config
	ReadingEvents() <-chan orchestrator.ReadingEvent
	PreviewEvents() <-chan analysis.PreviewReading
	HistoryEvents() <-chan orchestrator.HistoryEvent
}

// Message types.
type Message struct {
	Type string `json:"type"`
}

// CommandMessage is sent by clients: "capture" classifies the current frame,
// "save" stores the latest reading in history.
type CommandMessage struct {
	Type    string `json:"type"`
	Seed    string `json:"seed,omitempty"`
	Lang    string `json:"lang,omitempty"`
	TraceID string `json:"trace_id,omitempty"`
}

type ReadingMessage struct {
	Type      string           `json:"type"`
	TraceID   string           `json:"trace_id,omitempty"`
	Source    string           `json:"source"`
	Timestamp time.Time        `json:"timestamp"`
	Reading   analysis.Reading `json:"reading"`
}

type PreviewMessage struct {
	Type    string                  `json:"type"`
	Preview analysis.PreviewReading `json:"preview"`
}

type HistoryMessage struct {
	Type  string            `json:"type"`
	Kind  history.EventKind `json:"kind"`
	Entry *history.Entry    `json:"entry,omitempty"`
}

// ErrorMessage reports a failure with both the application code and the gRPC
// status code it maps to. Metadata comes from the status detail.
type ErrorMessage struct {
	Type     string            `json:"type"`
	Code     string            `json:"code,omitempty"`
	GRPCCode string            `json:"grpcCode,omitempty"`
	Message  string            `json:"message"`
	Metadata map[string]string `json:"metadata,omitempty"`
}

// newErrorMessage renders err through its gRPC status so HTTP and WebSocket
// clients see the same code and metadata a gRPC client would.
func newErrorMessage(err error) ErrorMessage {
	st := apperrors.FromError(err).GRPCStatus()
	wire := apperrors.FromGRPCError(st.Err())
	return ErrorMessage{
		Type:     "error",
		Code:     wire.Code.String(),
		GRPCCode: st.Code().String(),
		Message:  wire.Message,
		Metadata: wire.Metadata,
	}
}

// ConfigResponse describes the running classifier.
type ConfigResponse struct {
	Analysis      analysis.Config `json:"analysis" msgpack:"analysis"`
	AlertsEnabled bool            `json:"alertsEnabled" msgpack:"alertsEnabled"`
	Scanning      bool            `json:"scanning" msgpack:"scanning"`
}

// StatusResponse acknowledges a state change.
type StatusResponse struct {
	Status string `json:"status" msgpack:"status"`
}

// ClassifyResponse is a reading plus the history entry it was saved as, if any.
type ClassifyResponse struct {
	Reading analysis.Reading `json:"reading" msgpack:"reading"`
	Entry   *history.Entry   `json:"entry,omitempty" msgpack:"entry,omitempty"`
}

// rateLimiter tracks message timestamps using a sliding window.
type rateLimiter struct {
	timestamps []time.Time
	mu         sync.Mutex
	now        func() time.Time
}

func newRateLimiter() *rateLimiter {
	return &rateLimiter{now: time.Now}
}

// allow checks if a message is allowed and records the timestamp if so.
func (r *rateLimiter) allow() bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.now()
	cutoff := now.Add(-RateLimitWindow)

	// Prune old timestamps
	valid := r.timestamps[:0]
	for _, t := range r.timestamps {
		if t.After(cutoff) {
			valid = append(valid, t)
		}
	}
	r.timestamps = valid

	if len(r.timestamps) >= RateLimitMessages {
		return false
	}

	r.timestamps = append(r.timestamps, now)
	return true
}

// Server handles HTTP and WebSocket connections.
type Server struct {
	orch       Orchestrator
	mu         sync.RWMutex
	conns      map[*websocket.Conn]struct{}
	rateLimits map[*websocket.Conn]*rateLimiter
}

// New creates a new server and starts its broadcasters.
func New(orch Orchestrator) *Server {
	s := &Server{
		orch:       orch,
		conns:      make(map[*websocket.Conn]struct{}),
		rateLimits: make(map[*websocket.Conn]*rateLimiter),
	}

	go s.broadcastReadings()
	go s.broadcastPreviews()
	go s.broadcastHistory()

	return s
}

// Handler returns the HTTP handler.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	// WebSocket endpoint
	mux.HandleFunc("/ws", s.handleWebSocket)

	// REST API
	mux.HandleFunc("GET /api/config", s.handleConfig)
	mux.HandleFunc("POST /api/classify", s.handleClassify)
	mux.HandleFunc("GET /api/latest", s.handleLatest)
	mux.HandleFunc("GET /api/preview", s.handlePreview)
	mux.HandleFunc("GET /api/frame", s.handleFrame)
	mux.HandleFunc("POST /api/capture", s.handleCapture)
	mux.HandleFunc("POST /api/history", s.handleHistorySave)
	mux.HandleFunc("GET /api/history", s.handleHistoryList)
	mux.HandleFunc("GET /api/history/summary", s.handleHistorySummary)
	mux.HandleFunc("GET /api/history/{id}", s.handleHistoryGet)
	mux.HandleFunc("GET /api/history/{id}/report", s.handleHistoryReport)
	mux.HandleFunc("DELETE /api/history", s.handleHistoryClear)
	mux.HandleFunc("POST /api/alerts/enable", s.handleAlerts(true))
	mux.HandleFunc("POST /api/alerts/disable", s.handleAlerts(false))
	mux.HandleFunc("POST /api/scan/start", s.handleScan(true))
	mux.HandleFunc("POST /api/scan/stop", s.handleScan(false))

	// Apply middleware: trace -> CORS
	return corsMiddleware(trace.Middleware(mux))
}

func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "*")

		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}

// wantsMsgpack reports whether the client asked for MessagePack.
func wantsMsgpack(r *http.Request) bool {
	if r.URL.Query().Get("format") == "msgpack" {
		return true
	}
	return strings.Contains(r.Header.Get("Accept"), contentTypeMsgpack)
}

// writeResponse encodes v as JSON or MessagePack.
func writeResponse(w http.ResponseWriter, r *http.Request, status int, v any) {
	if wantsMsgpack(r) {
		data, err := msgpack.Marshal(v)
		if err != nil {
			writeError(w, r, apperrors.Wrap(err, apperrors.CodeInternal, "encode response"))
			return
		}
		w.Header().Set("Content-Type", contentTypeMsgpack)
		w.WriteHeader(status)
		_, _ = w.Write(data)
		return
	}

	w.Header().Set("Content-Type", contentTypeJSON)
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeError maps err to its HTTP status. Non-AppErrors are internal.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	appErr := apperrors.FromError(err)
	status := appErr.HTTPStatus()
	log := trace.Logger(r.Context())
	if status >= http.StatusInternalServerError {
		log.Error("request failed", "path", r.URL.Path, "error", err)
	} else {
		log.Debug("request rejected", "path", r.URL.Path, "error", err)
	}

	w.Header().Set("Content-Type", contentTypeJSON)
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(newErrorMessage(appErr))
}

func (s *Server) handleConfig(w http.ResponseWriter, r *http.Request) {
	writeResponse(w, r, http.StatusOK, ConfigResponse{
		Analysis:      s.orch.AnalysisConfig(),
		AlertsEnabled: s.orch.AlertsEnabled(),
		Scanning:      s.orch.Scanning(),
	})
}

// handleClassify classifies the request body. A seed query parameter also
// saves the reading to history.
func (s *Server) handleClassify(w http.ResponseWriter, r *http.Request) {
	data, err := io.ReadAll(http.MaxBytesReader(w, r.Body, MaxUploadBytes))
	if err != nil {
		writeError(w, r, apperrors.Wrap(err, apperrors.CodeInvalidInput, "read image body"))
		return
	}
	if len(data) == 0 {
		writeError(w, r, apperrors.New(apperrors.CodeInvalidInput, "empty image body"))
		return
	}

	reading, err := s.orch.Classify(r.Context(), data)
	if err != nil {
		writeError(w, r, err)
		return
	}

	resp := ClassifyResponse{Reading: reading}
	if seed := r.URL.Query().Get("seed"); seed != "" {
		e := s.orch.Save(seed, r.URL.Query().Get("lang"), reading)
		resp.Entry = &e
	}
	writeResponse(w, r, http.StatusOK, resp)
}

func (s *Server) handleLatest(w http.ResponseWriter, r *http.Request) {
	ev, ok := s.orch.Latest()
	if !ok {
		writeError(w, r, apperrors.New(apperrors.CodeNotFound, "no reading yet"))
		return
	}
	writeResponse(w, r, http.StatusOK, ev)
}

func (s *Server) handlePreview(w http.ResponseWriter, r *http.Request) {
	p, ok := s.orch.Preview()
	if !ok {
		writeError(w, r, apperrors.New(apperrors.CodeNotFound, "no preview yet"))
		return
	}
	writeResponse(w, r, http.StatusOK, p)
}

// handleFrame returns the latest raw camera frame.
func (s *Server) handleFrame(w http.ResponseWriter, r *http.Request) {
	data := s.orch.Frame()
	if len(data) == 0 {
		writeError(w, r, apperrors.New(apperrors.CodeNotFound, "no frame yet"))
		return
	}
	w.Header().Set("Content-Type", http.DetectContentType(data))
	w.Header().Set("Content-Length", strconv.Itoa(len(data)))
	_, _ = w.Write(data)
}

func (s *Server) handleCapture(w http.ResponseWriter, r *http.Request) {
	reading, err := s.orch.Capture(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeResponse(w, r, http.StatusOK, reading)
}

// handleHistorySave stores the latest reading under the seed and lang query parameters.
func (s *Server) handleHistorySave(w http.ResponseWriter, r *http.Request) {
	e, err := s.orch.SaveLatest(r.URL.Query().Get("seed"), r.URL.Query().Get("lang"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeResponse(w, r, http.StatusCreated, e)
}

func (s *Server) handleHistoryList(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			writeError(w, r, apperrors.New(apperrors.CodeInvalidInput, "limit must be a non-negative integer"))
			return
		}
		limit = n
	}
	writeResponse(w, r, http.StatusOK, s.orch.History().List(limit))
}

func (s *Server) handleHistorySummary(w http.ResponseWriter, r *http.Request) {
	writeResponse(w, r, http.StatusOK, s.orch.History().Summary())
}

func (s *Server) handleHistoryGet(w http.ResponseWriter, r *http.Request) {
	e, err := s.orch.History().Get(r.PathValue("id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeResponse(w, r, http.StatusOK, e)
}

// handleHistoryReport serves the printable plain-text report for one entry.
func (s *Server) handleHistoryReport(w http.ResponseWriter, r *http.Request) {
	e, err := s.orch.History().Get(r.PathValue("id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	w.Header().Set("Content-Type", contentTypeText)
	w.WriteHeader(http.StatusOK)
	if err := e.WriteReport(w); err != nil {
		trace.Logger(r.Context()).Debug("report write failed", "error", err)
	}
}

func (s *Server) handleHistoryClear(w http.ResponseWriter, r *http.Request) {
	s.orch.History().Clear()
	writeResponse(w, r, http.StatusOK, StatusResponse{Status: "history_cleared"})
}

func (s *Server) handleAlerts(enabled bool) http.HandlerFunc {
	status := "alerts_disabled"
	if enabled {
		status = "alerts_enabled"
	}
	return func(w http.ResponseWriter, r *http.Request) {
		s.orch.SetAlerts(r.Context(), enabled)
		writeResponse(w, r, http.StatusOK, StatusResponse{Status: status})
	}
}

func (s *Server) handleScan(enabled bool) http.HandlerFunc {
	status := "scan_stopped"
	if enabled {
		status = "scan_started"
	}
	return func(w http.ResponseWriter, r *http.Request) {
		s.orch.SetScanning(enabled)
		writeResponse(w, r, http.StatusOK, StatusResponse{Status: status})
	}
}

func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns: []string{"*"},
	})
	if err != nil {
		slog.Error("websocket accept error", "error", err)
		return
	}
	defer func() { _ = conn.Close(websocket.StatusNormalClosure, "") }()

	s.mu.Lock()
	s.conns[conn] = struct{}{}
	s.rateLimits[conn] = newRateLimiter()
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		delete(s.conns, conn)
		delete(s.rateLimits, conn)
		s.mu.Unlock()
	}()

	// Get trace context from HTTP upgrade request
	baseCtx := r.Context()
	log := trace.Logger(baseCtx)
	log.Info("websocket connected", "remote", r.RemoteAddr)

	for {
		var msg json.RawMessage
		if err := wsjson.Read(baseCtx, conn, &msg); err != nil {
			log.Debug("websocket read error", "error", err)
			return
		}

		// Check rate limit
		s.mu.RLock()
		rl := s.rateLimits[conn]
		s.mu.RUnlock()

		if !rl.allow() {
			log.Warn("rate limit exceeded", "remote", r.RemoteAddr)
			_ = wsjson.Write(baseCtx, conn, newErrorMessage(
				apperrors.New(apperrors.CodeUnavailable, "rate limit exceeded")))
			continue
		}

		var cmd CommandMessage
		if err := json.Unmarshal(msg, &cmd); err != nil {
			continue
		}

		// Continue the client's trace if it sent one
		ctx := baseCtx
		if tc, ok := trace.ExtractFromJSON(msg); ok {
			ctx = trace.WithContext(ctx, tc)
		} else {
			ctx, _ = trace.EnsureContext(ctx)
		}

		s.handleCommand(ctx, conn, cmd)
	}
}

// handleCommand runs one client command. Results reach the client through
// the broadcasters; only failures are answered directly.
func (s *Server) handleCommand(ctx context.Context, conn *websocket.Conn, cmd CommandMessage) {
	ctx, span := trace.StartSpan(ctx, "ws_"+cmd.Type)
	defer span.End()

	var err error
	switch cmd.Type {
	case "capture":
		_, err = s.orch.Capture(ctx)
	case "save":
		_, err = s.orch.SaveLatest(cmd.Seed, cmd.Lang)
	default:
		err = apperrors.Newf(apperrors.CodeInvalidInput, "unknown command %q", cmd.Type)
	}
	if err == nil {
		return
	}

	span.SetAttr("error", err.Error())
	trace.Logger(ctx).Warn("websocket command failed", "command", cmd.Type, "error", err)
	_ = wsjson.Write(ctx, conn, newErrorMessage(err))
}

// broadcast sends msg to every connected client without blocking the caller.
func (s *Server) broadcast(msg any) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for conn := range s.conns {
		go func(c *websocket.Conn) {
			ctx, cancel := context.WithTimeout(context.Background(), WriteTimeout)
			defer cancel()
			_ = wsjson.Write(ctx, c, msg)
		}(conn)
	}
}

func (s *Server) broadcastReadings() {
	for evt := range s.orch.ReadingEvents() {
		s.broadcast(ReadingMessage{
			Type:      "reading",
			TraceID:   evt.TraceID,
			Source:    evt.Source,
			Timestamp: evt.Timestamp,
			Reading:   evt.Reading,
		})
	}
}

func (s *Server) broadcastPreviews() {
	for p := range s.orch.PreviewEvents() {
		s.broadcast(PreviewMessage{Type: "preview", Preview: p})
	}
}

func (s *Server) broadcastHistory() {
	for evt := range s.orch.HistoryEvents() {
		s.broadcast(HistoryMessage{Type: "history", Kind: evt.Kind, Entry: evt.Entry})
	}
}
