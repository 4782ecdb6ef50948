// Package httpapi is the operational surface of the dispatcher: health and
// metrics, the WebSocket attach point for workers and requesters, and
// read-only inspection of registry and store state.
package httpapi

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/example/fleet-dispatch/internal/models"
	"github.com/example/fleet-dispatch/internal/registry"
	"github.com/example/fleet-dispatch/internal/store"
	"github.com/example/fleet-dispatch/internal/transport"
)

type Server struct {
	registry *registry.Registry
	requests *store.Store
	wsreg    *transport.WSRegistry
	handler  transport.Handler
	logger   *slog.Logger
	mux      *mux.Router
}

func NewServer(reg *registry.Registry, requests *store.Store, wsreg *transport.WSRegistry, h transport.Handler, logger *slog.Logger) *Server {
	s := &Server{
		registry: reg,
		requests: requests,
		wsreg:    wsreg,
		handler:  h,
		logger:   logger,
		mux:      mux.NewRouter(),
	}
	s.registerMiddleware()
	s.routes()
	return s
}

func (s *Server) routes() {
	s.mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(200); w.Write([]byte("ok")) }).Methods("GET")
	s.mux.Handle("/metrics", promhttp.Handler())
	s.mux.HandleFunc("/ws/{peer_id}", s.handleWS)
	s.mux.HandleFunc("/api/v1/workers/{id}", s.handleGetWorker).Methods("GET")
	s.mux.HandleFunc("/api/v1/requests/{id}", s.handleGetRequest).Methods("GET")
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) { s.mux.ServeHTTP(w, r) }

var upgrader = websocket.Upgrader{}

func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["peer_id"]
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		http.Error(w, "upgrade failed", http.StatusBadRequest)
		return
	}
	// The read pump outlives this handler; tie it to the server's lifetime,
	// not the upgrade request.
	s.wsreg.Add(context.WithoutCancel(r.Context()), id, conn, s.handler)
}

func (s *Server) handleGetWorker(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	rec, ok := s.registry.Get(id)
	if !ok {
		http.Error(w, "unknown worker", http.StatusNotFound)
		return
	}
	writeJSON(w, rec)
}

type requestView struct {
	ID              string               `json:"id"`
	Kind            models.RequestKind   `json:"kind"`
	Status          models.RequestStatus `json:"status"`
	RequesterID     string               `json:"requester_id"`
	Candidates      []models.Candidate   `json:"candidates"`
	NextOfferIndex  int                  `json:"next_offer_index"`
	NotifiedWorkers []string             `json:"notified_workers"`
}

func (s *Server) handleGetRequest(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	req, ok := s.requests.Get(id)
	if !ok {
		http.Error(w, "unknown request", http.StatusNotFound)
		return
	}
	var view requestView
	req.Update(func(r *store.Request) {
		view = requestView{
			ID:              r.ID,
			Kind:            r.Kind,
			Status:          r.Status,
			RequesterID:     r.RequesterID,
			Candidates:      r.Candidates,
			NextOfferIndex:  r.NextOfferIndex,
			NotifiedWorkers: append([]string(nil), r.NotifiedWorkers...),
		}
	})
	writeJSON(w, view)
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}
