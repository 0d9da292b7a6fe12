package http

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/procurehq/potrack/pkg/events"
	"github.com/procurehq/potrack/pkg/service"
	"github.com/procurehq/potrack/pkg/storage"
)

// Server exposes the REST API over a single store and event bus.
type Server struct {
	pos        *service.POService
	invoices   *service.InvoiceService
	automation *service.AutomationService
	runs       *service.RunService
	stats      *service.StatsService
	simulator  *service.SimulatorService
	bus        *events.Bus
	logger     *logrus.Logger
}

func NewServer(store storage.Store, bus *events.Bus, logger *logrus.Logger) *Server {
	return &Server{
		pos:        service.NewPOService(store, bus, logger),
		invoices:   service.NewInvoiceService(store, logger),
		automation: service.NewAutomationService(store, bus, logger),
		runs:       service.NewRunService(store),
		stats:      service.NewStatsService(store),
		simulator:  service.NewSimulatorService(store, bus, logger),
		bus:        bus,
		logger:     logger,
	}
}

// Handler builds the route table.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /health", s.health)

	mux.HandleFunc("GET /api/purchase-orders", s.listPurchaseOrders)
	mux.HandleFunc("POST /api/purchase-orders", s.createPurchaseOrder)
	mux.HandleFunc("GET /api/purchase-orders/stream", s.streamPurchaseOrders)
	mux.HandleFunc("GET /api/purchase-orders/{id}", s.getPurchaseOrder)
	mux.HandleFunc("PATCH /api/purchase-orders/{id}", s.updatePurchaseOrder)

	mux.HandleFunc("GET /api/invoices", s.listInvoices)
	mux.HandleFunc("POST /api/invoices", s.createInvoice)
	mux.HandleFunc("GET /api/invoices/{id}", s.getInvoice)
	mux.HandleFunc("PATCH /api/invoices/{id}", s.updateInvoice)
	mux.HandleFunc("POST /api/invoices/{id}/generate-po", s.generatePO)

	mux.HandleFunc("GET /api/automation-runs", s.listRuns)
	mux.HandleFunc("GET /api/dashboard/stats", s.dashboardStats)
	mux.HandleFunc("POST /api/simulator", s.simulate)
	return mux
}

func StartServer(port string, store storage.Store, bus *events.Bus, logger *logrus.Logger) error {
	srv := NewServer(store, bus, logger)
	logger.Infof("Starting potrack server on :%s", port)
	return http.ListenAndServe(":"+port, srv.Handler())
}

func (s *Server) health(w http.ResponseWriter, r *http.Request) {
	fmt.Fprintf(w, "potrack server is running")
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Errorf("Failed to encode response: %v", err)
	}
}

// writeError maps service errors onto the API's error envelope.
func (s *Server) writeError(w http.ResponseWriter, err error) {
	var autoErr *service.AutomationError
	switch {
	case errors.Is(err, service.ErrNotFound):
		s.writeJSON(w, http.StatusNotFound, map[string]string{"error": err.Error()})
	case errors.Is(err, service.ErrConflict):
		s.writeJSON(w, http.StatusConflict, map[string]string{"error": err.Error()})
	case errors.As(err, &autoErr):
		s.writeJSON(w, http.StatusInternalServerError, map[string]string{
			"error":   "Automation failed",
			"details": autoErr.Message,
			"runId":   autoErr.RunID,
		})
	default:
		s.logger.Errorf("Request failed: %v", err)
		s.writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
	}
}

func (s *Server) listPurchaseOrders(w http.ResponseWriter, r *http.Request) {
	pos, err := s.pos.List()
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, pos)
}

func (s *Server) createPurchaseOrder(w http.ResponseWriter, r *http.Request) {
	// An empty body creates a randomly generated demo order.
	var req *service.CreatePORequest
	if r.ContentLength != 0 {
		req = &service.CreatePORequest{}
		if err := json.NewDecoder(r.Body).Decode(req); err != nil {
			s.writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
			return
		}
	}
	po, err := s.pos.Create(req)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusCreated, po)
}

func (s *Server) getPurchaseOrder(w http.ResponseWriter, r *http.Request) {
	po, err := s.pos.Get(r.PathValue("id"))
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, po)
}

func (s *Server) updatePurchaseOrder(w http.ResponseWriter, r *http.Request) {
	var req service.UpdatePORequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}
	po, err := s.pos.Update(r.PathValue("id"), req)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, po)
}

func (s *Server) listInvoices(w http.ResponseWriter, r *http.Request) {
	invoices, err := s.invoices.List()
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, invoices)
}

func (s *Server) createInvoice(w http.ResponseWriter, r *http.Request) {
	var req *service.CreateInvoiceRequest
	if r.ContentLength != 0 {
		req = &service.CreateInvoiceRequest{}
		if err := json.NewDecoder(r.Body).Decode(req); err != nil {
			s.writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
			return
		}
	}
	inv, err := s.invoices.Create(req)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusCreated, inv)
}

func (s *Server) getInvoice(w http.ResponseWriter, r *http.Request) {
	inv, err := s.invoices.Get(r.PathValue("id"))
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, inv)
}

func (s *Server) updateInvoice(w http.ResponseWriter, r *http.Request) {
	var req service.UpdateInvoiceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}
	inv, err := s.invoices.Update(r.PathValue("id"), req)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, inv)
}

func (s *Server) generatePO(w http.ResponseWriter, r *http.Request) {
	result, err := s.automation.GeneratePurchaseOrder(r.PathValue("id"))
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, result)
}

func (s *Server) listRuns(w http.ResponseWriter, r *http.Request) {
	runs, err := s.runs.List()
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, runs)
}

func (s *Server) dashboardStats(w http.ResponseWriter, r *http.Request) {
	stats, err := s.stats.Dashboard()
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, stats)
}

func (s *Server) simulate(w http.ResponseWriter, r *http.Request) {
	result, err := s.simulator.Advance()
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, result)
}

// streamEvent is the SSE payload envelope.
type streamEvent struct {
	Type      string      `json:"type"`
	Data      interface{} `json:"data,omitempty"`
	Timestamp time.Time   `json:"timestamp"`
}

// streamPurchaseOrders pushes purchase order change events over SSE. Each
// connection gets its own subscriptions; a slow client drops events rather
// than blocking publishers.
func (s *Server) streamPurchaseOrders(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "Streaming unsupported", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	msgs := make(chan streamEvent, 16)
	forward := func(topic events.Topic) events.Handler {
		return func(payload interface{}) {
			select {
			case msgs <- streamEvent{Type: string(topic), Data: payload, Timestamp: time.Now()}:
			default:
			}
		}
	}
	for _, topic := range []events.Topic{events.TopicPOCreated, events.TopicPOUpdated, events.TopicPOStatusChanged} {
		unsubscribe := s.bus.Subscribe(topic, forward(topic))
		defer unsubscribe()
	}

	writeEvent := func(ev streamEvent) bool {
		data, err := json.Marshal(ev)
		if err != nil {
			s.logger.Errorf("Failed to encode stream event: %v", err)
			return true
		}
		if _, err := fmt.Fprintf(w, "data: %s\n\n", data); err != nil {
			return false
		}
		flusher.Flush()
		return true
	}

	if !writeEvent(streamEvent{Type: "connected", Timestamp: time.Now()}) {
		return
	}

	ping := time.NewTicker(30 * time.Second)
	defer ping.Stop()
	for {
		select {
		case <-r.Context().Done():
			return
		case ev := <-msgs:
			if !writeEvent(ev) {
				return
			}
		case <-ping.C:
			if !writeEvent(streamEvent{Type: "ping", Timestamp: time.Now()}) {
				return
			}
		}
	}
}
