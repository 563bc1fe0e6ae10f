package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/bryanchriswhite/focusfollows/internal/classify"
	"github.com/bryanchriswhite/focusfollows/internal/engine"
	"github.com/bryanchriswhite/focusfollows/internal/logger"
	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
)

// Version is reported by the health endpoint
const Version = "0.1.0"

// Engine is the part of the focus engine the status API reads
type Engine interface {
	Snapshot() engine.Stats
	Rules() *classify.RuleSet
	Mode() string
	RequestClear() bool
	Subscribe() chan engine.Decision
	Unsubscribe(ch chan engine.Decision)
}

// Server represents the HTTP status server
type Server struct {
	router   *mux.Router
	engine   Engine
	backend  string
	upgrader websocket.Upgrader
	http     *http.Server
}

// NewServer creates a new status server
func NewServer(eng Engine, backend string) *Server {
	s := &Server{
		router:  mux.NewRouter(),
		engine:  eng,
		backend: backend,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
		},
	}

	s.setupRoutes()
	return s
}

func (s *Server) setupRoutes() {
	// Flat routes: a PathPrefix subrouter answers a method mismatch with 404
	s.router.HandleFunc("/api/health", s.handleHealth).Methods("GET")
	s.router.HandleFunc("/api/status", s.handleStatus).Methods("GET")
	s.router.HandleFunc("/api/rules", s.handleRules).Methods("GET")
	s.router.HandleFunc("/api/cache/clear", s.handleClearCache).Methods("POST")
	s.router.HandleFunc("/api/decisions", s.handleDecisions)

	s.router.MethodNotAllowedHandler = http.HandlerFunc(handleMethodNotAllowed)
	s.router.NotFoundHandler = http.HandlerFunc(handleNotFound)
}

// Handler returns the routed handler
func (s *Server) Handler() http.Handler {
	return s.enableCORS(s.router)
}

// Start serves on localhost:port until Shutdown is called
func (s *Server) Start(port int) error {
	s.http = &http.Server{
		Addr:              fmt.Sprintf("127.0.0.1:%d", port),
		Handler:           s.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	logger.WithComponent("api").Info().
		Str("addr", s.http.Addr).
		Msg("Status server listening")

	if err := s.http.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown stops the server
func (s *Server) Shutdown(ctx context.Context) error {
	if s.http == nil {
		return nil
	}
	return s.http.Shutdown(ctx)
}

func (s *Server) enableCORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")

		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.WithComponent("api").Debug().Err(err).Msg("Failed to write response")
	}
}

func handleMethodNotAllowed(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusMethodNotAllowed, map[string]string{
		"error": fmt.Sprintf("method %s not allowed on %s", r.Method, r.URL.Path),
	})
}

func handleNotFound(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusNotFound, map[string]string{
		"error": fmt.Sprintf("no route for %s", r.URL.Path),
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"status":  "healthy",
		"version": Version,
	})
}

type statusResponse struct {
	Mode    string       `json:"mode"`
	Backend string       `json:"backend"`
	Engine  engine.Stats `json:"engine"`
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, statusResponse{
		Mode:    s.engine.Mode(),
		Backend: s.backend,
		Engine:  s.engine.Snapshot(),
	})
}

func (s *Server) handleRules(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.engine.Rules().Rules())
}

func (s *Server) handleClearCache(w http.ResponseWriter, r *http.Request) {
	queued := s.engine.RequestClear()
	writeJSON(w, http.StatusAccepted, map[string]bool{"queued": queued})
}

func (s *Server) handleDecisions(w http.ResponseWriter, r *http.Request) {
	log := logger.WithComponent("api")

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Debug().Err(err).Msg("WebSocket upgrade failed")
		return
	}
	defer conn.Close()

	updates := s.engine.Subscribe()
	defer s.engine.Unsubscribe(updates)

	// Unsubscribing closes updates, which ends the write loop below
	go func() {
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				s.engine.Unsubscribe(updates)
				return
			}
		}
	}()

	if last := s.engine.Snapshot().LastDecision; last != nil {
		if err := conn.WriteJSON(last); err != nil {
			log.Debug().Err(err).Msg("WebSocket write failed")
			return
		}
	}

	for d := range updates {
		if err := conn.WriteJSON(d); err != nil {
			log.Debug().Err(err).Msg("WebSocket write failed")
			return
		}
	}
}
