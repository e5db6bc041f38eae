// Package server exposes one browser tab over HTTP and websocket so a suite
// can be driven remotely. Every action goes through the retry primitives.
package server

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"sync"
	"time"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"onlytests-e2e/internal/browser"
	"onlytests-e2e/internal/interact"
	"onlytests-e2e/internal/logger"
	"onlytests-e2e/internal/preflight"
)

type Server struct {
	router     *mux.Router
	ix         *interact.Interactor
	log        *logger.Logger
	gatherer   prometheus.Gatherer
	httpServer *http.Server
	wsUpgrader websocket.Upgrader

	// The tab is shared; actions run one at a time.
	mu sync.Mutex
}

type ActionRequest struct {
	Action string         `json:"action"`
	Params map[string]any `json:"params"`
}

type ActionResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	Data    any    `json:"data,omitempty"`
}

type Option func(*Server)

// WithGatherer sets the registry served on /metrics.
func WithGatherer(g prometheus.Gatherer) Option {
	return func(s *Server) { s.gatherer = g }
}

func NewServer(ix *interact.Interactor, addr string, opts ...Option) *Server {
	s := &Server{
		router:   mux.NewRouter(),
		ix:       ix,
		log:      ix.Logger(),
		gatherer: prometheus.DefaultGatherer,
		wsUpgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
		},
	}
	for _, o := range opts {
		o(s)
	}

	s.setupRoutes()

	s.httpServer = &http.Server{
		Addr:         addr,
		Handler:      s.router,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 5 * time.Minute,
		IdleTimeout:  120 * time.Second,
	}

	return s
}

func (s *Server) setupRoutes() {
	s.router.HandleFunc("/api/navigate", s.handleNavigate).Methods("POST")
	s.router.HandleFunc("/api/action", s.handleAction).Methods("POST")
	s.router.HandleFunc("/api/screenshot", s.handleScreenshot).Methods("GET")
	s.router.HandleFunc("/api/status", s.handleStatus).Methods("GET")
	s.router.HandleFunc("/api/config", s.handleConfig).Methods("GET")
	s.router.Handle("/metrics", promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{})).Methods("GET")

	s.router.HandleFunc("/ws", s.handleWebSocket)
}

func (s *Server) Handler() http.Handler { return s.router }

func (s *Server) handleNavigate(w http.ResponseWriter, r *http.Request) {
	var req struct {
		URL       string `json:"url"`
		WaitUntil string `json:"waitUntil"`
	}

	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.sendError(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	if req.URL == "" {
		s.sendError(w, "URL is required", http.StatusBadRequest)
		return
	}

	state, err := parseLoadState(req.WaitUntil)
	if err != nil {
		s.sendError(w, err.Error(), http.StatusBadRequest)
		return
	}

	s.mu.Lock()
	err = s.ix.NavigateTo(r.Context(), req.URL, state)
	s.mu.Unlock()
	if err != nil {
		s.sendError(w, fmt.Sprintf("Navigation failed: %v", err), statusFor(err))
		return
	}

	s.sendSuccess(w, "Navigation successful", nil)
}

func parseLoadState(v string) (browser.LoadState, error) {
	switch browser.LoadState(v) {
	case "":
		return browser.LoadStateLoad, nil
	case browser.LoadStateLoad, browser.LoadStateDOMContentLoaded, browser.LoadStateNetworkIdle:
		return browser.LoadState(v), nil
	default:
		return "", fmt.Errorf("waitUntil must be one of load, domcontentloaded, networkidle, got: %q", v)
	}
}

func (s *Server) handleAction(w http.ResponseWriter, r *http.Request) {
	var req ActionRequest

	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.sendError(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	result, err := s.perform(r.Context(), req)
	if err != nil {
		status := statusFor(err)
		msg := fmt.Sprintf("Action failed: %v", err)
		if status == http.StatusBadRequest {
			msg = err.Error()
		}
		s.sendError(w, msg, status)
		return
	}

	s.sendSuccess(w, "Action completed successfully", result)
}

func (s *Server) handleScreenshot(w http.ResponseWriter, r *http.Request) {
	name := r.URL.Query().Get("name")
	if name == "" {
		name = "remote"
	}

	s.mu.Lock()
	path, err := s.ix.TakeScreenshot(r.Context(), name)
	s.mu.Unlock()
	if err != nil {
		s.sendError(w, fmt.Sprintf("Screenshot failed: %v", err), http.StatusInternalServerError)
		return
	}

	buf, err := os.ReadFile(path)
	if err != nil {
		s.sendError(w, fmt.Sprintf("Screenshot failed: %v", err), http.StatusInternalServerError)
		return
	}

	s.sendSuccess(w, "Screenshot captured", map[string]string{
		"path":  path,
		"image": base64.StdEncoding.EncodeToString(buf),
	})
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	d := s.ix.Driver()
	url, urlErr := d.URL(r.Context())
	title, titleErr := d.Title(r.Context())
	s.mu.Unlock()

	if urlErr != nil {
		url = "Error retrieving URL"
	}
	if titleErr != nil {
		title = "Error retrieving title"
	}

	s.sendSuccess(w, "Status retrieved", map[string]any{
		"url":         url,
		"title":       title,
		"environment": s.ix.Config().Environment(),
	})
}

func (s *Server) handleConfig(w http.ResponseWriter, r *http.Request) {
	s.sendSuccess(w, "Configuration retrieved", preflight.Summarize(s.ix.Config()))
}

func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := s.wsUpgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Warn("WebSocket upgrade failed", logger.Context{Action: "WS", Err: err})
		return
	}
	defer conn.Close()

	s.log.Info("WebSocket client connected", logger.Context{Action: "WS"})

	for {
		var req ActionRequest
		err := conn.ReadJSON(&req)
		if err != nil {
			if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				s.log.Warn("WebSocket read error", logger.Context{Action: "WS", Err: err})
			}
			break
		}

		response := ActionResponse{Success: true, Message: "Action completed"}
		if req.Action == "navigate" {
			url, _ := req.Params["url"].(string)
			if url == "" {
				err = badRequest("url parameter is required")
			} else {
				s.mu.Lock()
				err = s.ix.NavigateTo(r.Context(), url, browser.LoadStateLoad)
				s.mu.Unlock()
			}
		} else {
			response.Data, err = s.perform(r.Context(), req)
		}
		if err != nil {
			response = ActionResponse{Success: false, Message: err.Error()}
		}

		if err := conn.WriteJSON(response); err != nil {
			s.log.Warn("WebSocket write error", logger.Context{Action: "WS", Err: err})
			break
		}
	}

	s.log.Info("WebSocket client disconnected", logger.Context{Action: "WS"})
}

func (s *Server) sendSuccess(w http.ResponseWriter, message string, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(ActionResponse{
		Success: true,
		Message: message,
		Data:    data,
	})
}

func (s *Server) sendError(w http.ResponseWriter, message string, statusCode int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(ActionResponse{
		Success: false,
		Message: message,
	})
}

// statusFor maps an action error to an HTTP status.
func statusFor(err error) int {
	var bad *badRequestError
	var timeout *interact.TimeoutError
	switch {
	case errors.As(err, &bad):
		return http.StatusBadRequest
	case errors.As(err, &timeout):
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}

func (s *Server) Start() error {
	s.log.Info("Server starting on "+s.httpServer.Addr, logger.Context{Action: "SERVE"})
	return s.httpServer.ListenAndServe()
}

func (s *Server) Shutdown(ctx context.Context) error {
	s.log.Info("Shutting down server...", logger.Context{Action: "SERVE"})
	return s.httpServer.Shutdown(ctx)
}
