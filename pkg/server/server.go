// Package server exposes the session over HTTP and a WebSocket event stream.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"soltabs/pkg/format"
	"soltabs/pkg/jupiter"
	"soltabs/pkg/metrics"
	"soltabs/pkg/models"
	"soltabs/pkg/session"
	"soltabs/pkg/widget"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

type Server struct {
	session *session.Controller
	metrics *metrics.Metrics
	chart   widget.ChartOptions
	logger  *slog.Logger

	clients map[*websocket.Conn]bool
	mu      sync.Mutex
	router  *mux.Router
}

func NewServer(c *session.Controller, m *metrics.Metrics, chart widget.ChartOptions, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Server{
		session: c,
		metrics: m,
		chart:   chart,
		logger:  logger,
		clients: make(map[*websocket.Conn]bool),
		router:  mux.NewRouter(),
	}
	s.routes()
	return s
}

func (s *Server) routes() {
	api := s.router.PathPrefix("/api").Subrouter()
	api.HandleFunc("/status", s.handleStatus).Methods(http.MethodGet)
	api.HandleFunc("/chart", s.handleChart).Methods(http.MethodGet)
	api.HandleFunc("/tokens/active", s.handleCloseActive).Methods(http.MethodDelete)
	api.HandleFunc("/tokens/{address}", s.handleToken).Methods(http.MethodGet)
	api.HandleFunc("/tokens/{address}", s.handleAddToken).Methods(http.MethodPost)
	api.HandleFunc("/tokens/{address}/select", s.handleSelect).Methods(http.MethodPost)
	s.router.HandleFunc("/ws", s.handleWS)
	s.router.Handle("/metrics", s.metrics.Handler())
}

// Handler returns the router.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Start serves on port until ctx is cancelled.
func (s *Server) Start(ctx context.Context, port int) error {
	go s.listenToSession(s.session.Subscribe())

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", port),
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	s.logger.Info("API server listening", "port", port)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

type tabView struct {
	Address string `json:"address"`
	Name    string `json:"name"`
	Symbol  string `json:"symbol"`
	Price   string `json:"price"`
	Active  bool   `json:"active"`
}

type statusResponse struct {
	Tabs   []tabView        `json:"tabs"`
	Active string           `json:"active,omitempty"`
	Swap   widget.SwapProps `json:"swap"`
	Chart  string           `json:"chart"`
}

type tokenResponse struct {
	Record  models.TokenRecord  `json:"record"`
	Details []format.Field      `json:"details"`
	History []models.PricePoint `json:"history"`
}

func (s *Server) status() statusResponse {
	active, _ := s.session.Active()
	tabs := s.session.Tabs()
	resp := statusResponse{
		Tabs:   make([]tabView, 0, len(tabs)),
		Active: active,
		Swap:   s.session.SwapProps(active),
		Chart:  widget.ChartURL(active, s.chart),
	}
	for _, rec := range tabs {
		price := format.Placeholder
		if rec.PriceData != nil {
			price = format.CurrencyString(rec.PriceData.Price, 2)
		}
		resp.Tabs = append(resp.Tabs, tabView{
			Address: rec.Address,
			Name:    rec.Name,
			Symbol:  rec.Symbol,
			Price:   price,
			Active:  rec.Address == active,
		})
	}
	return resp
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.status())
}

func (s *Server) handleChart(w http.ResponseWriter, r *http.Request) {
	active, _ := s.session.Active()
	writeJSON(w, http.StatusOK, map[string]string{"url": widget.ChartURL(active, s.chart)})
}

func (s *Server) handleToken(w http.ResponseWriter, r *http.Request) {
	addr := mux.Vars(r)["address"]
	rec, ok := s.session.Record(addr)
	if !ok {
		writeError(w, http.StatusNotFound, "token is not open")
		return
	}
	writeJSON(w, http.StatusOK, tokenResponse{
		Record:  rec,
		Details: format.Details(rec, time.Now()),
		History: s.session.History(addr),
	})
}

func (s *Server) handleAddToken(w http.ResponseWriter, r *http.Request) {
	addr := mux.Vars(r)["address"]
	if err := s.session.AddOrSelectToken(r.Context(), addr); err != nil {
		writeError(w, statusFor(err), err.Error())
		return
	}
	writeJSON(w, http.StatusOK, s.status())
}

func (s *Server) handleSelect(w http.ResponseWriter, r *http.Request) {
	if err := s.session.SelectTab(mux.Vars(r)["address"]); err != nil {
		writeError(w, statusFor(err), err.Error())
		return
	}
	writeJSON(w, http.StatusOK, s.status())
}

func (s *Server) handleCloseActive(w http.ResponseWriter, r *http.Request) {
	if err := s.session.CloseActive(); err != nil {
		writeError(w, statusFor(err), err.Error())
		return
	}
	writeJSON(w, http.StatusOK, s.status())
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, session.ErrInvalidAddress):
		return http.StatusBadRequest
	case errors.Is(err, jupiter.ErrNotFound), errors.Is(err, session.ErrUnknownTab):
		return http.StatusNotFound
	case errors.Is(err, session.ErrNotActive):
		return http.StatusConflict
	case errors.Is(err, jupiter.ErrNetwork):
		return http.StatusBadGateway
	case errors.Is(err, session.ErrClosed):
		return http.StatusServiceUnavailable
	}
	return http.StatusInternalServerError
}

func writeJSON(w http.ResponseWriter, code int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, code int, msg string) {
	writeJSON(w, code, map[string]string{"error": msg})
}

func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	defer func() { _ = conn.Close() }()

	s.mu.Lock()
	s.clients[conn] = true
	// Send initial state
	err = conn.WriteJSON(map[string]interface{}{
		"type": "initial",
		"data": s.status(),
	})
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		delete(s.clients, conn)
		s.mu.Unlock()
	}()
	if err != nil {
		return
	}

	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			break
		}
	}
}

func (s *Server) listenToSession(sub session.Subscriber) {
	defer s.session.Unsubscribe(sub)

	for event := range sub {
		s.broadcast(event)
	}
}

func (s *Server) broadcast(event session.Event) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for client := range s.clients {
		if err := client.WriteJSON(event); err != nil {
			s.logger.Debug("dropping websocket client", "error", err)
			_ = client.Close()
			delete(s.clients, client)
		}
	}
}
