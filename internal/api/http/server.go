package apihttp

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"recwatch/internal/domain"
	"recwatch/internal/store"
	"recwatch/internal/upstream"
)

// UpstreamController is the slice of the feed manager the API needs: the
// connection lifecycle and the streamer filter.
type UpstreamController interface {
	Connect()
	Disconnect()
	Status() upstream.Status
	SetFilter(streamerID string) error
	ClearFilter() error
	Filter() (string, bool)
}

// HistoryStore serves the persisted event journal. Optional; without it the
// history endpoint answers 503.
type HistoryStore interface {
	ListRecent(ctx context.Context, limit int64) ([]domain.EventRecord, error)
	ListByStreamer(ctx context.Context, streamerID string, limit int64) ([]domain.EventRecord, error)
}

type Server struct {
	store          *store.Store
	feed           UpstreamController
	history        HistoryStore
	allowedOrigins []string
	logger         *slog.Logger
	handler        http.Handler
	wsHub          *wsHub
}

type ServerOption func(*Server)

func WithUpstream(feed UpstreamController) ServerOption {
	return func(s *Server) {
		s.feed = feed
	}
}

func WithHistory(history HistoryStore) ServerOption {
	return func(s *Server) {
		s.history = history
	}
}

// WithAllowedOrigins configures the CORS allowed origins whitelist.
// When empty (default), any origin is permitted (development mode).
func WithAllowedOrigins(origins []string) ServerOption {
	return func(s *Server) {
		s.allowedOrigins = origins
	}
}

func WithLogger(logger *slog.Logger) ServerOption {
	return func(s *Server) {
		s.logger = logger
	}
}

func NewServer(st *store.Store, opts ...ServerOption) *Server {
	s := &Server{store: st}
	for _, opt := range opts {
		opt(s)
	}

	if s.logger == nil {
		s.logger = slog.Default()
	}

	s.wsHub = newWSHub(s.logger)
	go s.wsHub.run()

	mux := http.NewServeMux()
	mux.HandleFunc("/downloads", s.handleDownloads)
	mux.HandleFunc("/downloads/active", s.handleActive)
	mux.HandleFunc("/downloads/", s.handleDownloadByID)
	mux.HandleFunc("/subscription", s.handleSubscription)
	mux.HandleFunc("/status", s.handleStatus)
	mux.HandleFunc("/history", s.handleHistory)
	mux.HandleFunc("/healthz", s.handleHealthz)
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/ws", s.handleWS)

	traced := otelhttp.NewHandler(loggingMiddleware(s.logger, mux), "recwatch",
		otelhttp.WithFilter(func(r *http.Request) bool {
			p := r.URL.Path
			return p != "/metrics" && p != "/healthz"
		}),
	)
	s.handler = recoveryMiddleware(s.logger, rateLimitMiddleware(100, 200, metricsMiddleware(corsMiddleware(s.allowedOrigins, traced))))
	return s
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.handler.ServeHTTP(w, r)
}

func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	if s.wsHub == nil {
		http.Error(w, "websocket not available", http.StatusServiceUnavailable)
		return
	}
	conn, err := wsUpgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Error("ws upgrade failed", slog.String("error", err.Error()))
		return
	}
	client := &wsClient{
		hub:  s.wsHub,
		conn: conn,
		send: make(chan []byte, 256),
	}
	s.wsHub.register <- client
	go client.writePump()
	go client.readPump()
}

// BroadcastViews pushes the reconciled download list to all WebSocket clients.
func (s *Server) BroadcastViews(views []domain.DownloadView) {
	if s.wsHub != nil {
		s.wsHub.BroadcastViews(views)
	}
}

// BroadcastNotice forwards a surfaced event record (terminal transitions,
// rejections, server errors) to all WebSocket clients.
func (s *Server) BroadcastNotice(rec domain.EventRecord) {
	if s.wsHub != nil {
		s.wsHub.Broadcast(rec.Kind, rec)
	}
}

// Close shuts down the WebSocket hub, disconnecting all clients.
func (s *Server) Close() {
	if s.wsHub != nil {
		s.wsHub.Close()
	}
}
