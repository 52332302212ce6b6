package httpapi

import (
	"context"
	"encoding/json"
	"net/http"

	"go.uber.org/zap"

	"road-monitor/internal/domain"
	"road-monitor/internal/ingest"
	"road-monitor/internal/metrics"
)

// RecordCRUD is the historical-record surface backing the by-id
// endpoints.
type RecordCRUD interface {
	Get(ctx context.Context, id int64) (domain.PersistedRecord, error)
	List(ctx context.Context) ([]domain.PersistedRecord, error)
	Update(ctx context.Context, id int64, rec domain.ProcessedRecord) (domain.PersistedRecord, error)
	Delete(ctx context.Context, id int64) (domain.PersistedRecord, error)
}

type Pinger interface {
	Ping(ctx context.Context) error
}

// Server owns the HTTP surface: batch ingest, record CRUD, the websocket
// subscribe endpoint, metrics and health.
type Server struct {
	service *ingest.Service
	records RecordCRUD
	auth    *AuthMiddleware
	ws      http.Handler
	pingers []Pinger
	logger  *zap.Logger
}

// NewServer assembles the route handlers. auth may be nil, in which case
// mutating endpoints are open (single-tenant deployments behind a
// firewall run this way).
func NewServer(
	service *ingest.Service,
	records RecordCRUD,
	auth *AuthMiddleware,
	ws http.Handler,
	logger *zap.Logger,
	pingers ...Pinger,
) *Server {
	return &Server{
		service: service,
		records: records,
		auth:    auth,
		ws:      ws,
		pingers: pingers,
		logger:  logger,
	}
}

func (s *Server) Routes() *http.ServeMux {
	mux := http.NewServeMux()
	mux.Handle("POST /processed_agent_data/{$}", s.guarded(http.HandlerFunc(s.handleIngest)))
	mux.HandleFunc("GET /processed_agent_data/{$}", s.handleList)
	mux.HandleFunc("GET /processed_agent_data/{id}", s.handleGet)
	mux.Handle("PUT /processed_agent_data/{id}", s.guarded(http.HandlerFunc(s.handleUpdate)))
	mux.Handle("DELETE /processed_agent_data/{id}", s.guarded(http.HandlerFunc(s.handleDelete)))
	mux.Handle("GET /ws/{user_id}", s.ws)
	mux.HandleFunc("GET /metrics", metrics.HandleMetrics)
	mux.HandleFunc("GET /healthz", s.handleHealth)
	return mux
}

func (s *Server) guarded(h http.Handler) http.Handler {
	if s.auth == nil {
		return h
	}
	return s.auth.Wrap(h)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	for _, p := range s.pingers {
		if err := p.Ping(r.Context()); err != nil {
			writeError(w, http.StatusServiceUnavailable, err.Error())
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
