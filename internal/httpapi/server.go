package httpapi

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"github.com/rmacdonaldsmith/meshchat-go/pkg/eventlog"
	"github.com/rmacdonaldsmith/meshchat-go/pkg/meshnode"
	"github.com/rmacdonaldsmith/meshchat-go/pkg/routingtable"
)

// DefaultKeepaliveInterval is how often an idle event stream gets a ping comment
const DefaultKeepaliveInterval = 15 * time.Second

const apiPrefix = "/api/v1"

var (
	// ErrMissingDependency is returned when the server is built without a node, history or routing table
	ErrMissingDependency = errors.New("http api requires a node, history and routing table")
	// ErrInvalidRateLimit is returned for a negative rate limit or burst
	ErrInvalidRateLimit = errors.New("rate limit and burst cannot be negative")
)

// Config holds server configuration
type Config struct {
	// Address is the listen address, e.g. ":8081"
	Address string

	// SecretKey signs login tokens; a random key is generated when empty
	SecretKey string

	// NoAuth bypasses authentication on client endpoints (admin endpoints still require it)
	NoAuth bool

	// RateLimit is requests per second per remote host; zero disables limiting
	RateLimit float64
	RateBurst int

	// AllowedOrigins for CORS; empty allows any origin
	AllowedOrigins []string

	// KeepaliveInterval between ": ping" comments on event streams
	KeepaliveInterval time.Duration

	Logger *zap.Logger
}

// Validate checks the configuration for invalid values
func (c *Config) Validate() error {
	if c.RateLimit < 0 || c.RateBurst < 0 {
		return ErrInvalidRateLimit
	}
	return nil
}

// SetDefaults fills in unset values
func (c *Config) SetDefaults() {
	if c.Address == "" {
		c.Address = ":8081"
	}
	if c.KeepaliveInterval <= 0 {
		c.KeepaliveInterval = DefaultKeepaliveInterval
	}
	if c.Logger == nil {
		c.Logger = zap.NewNop()
	}
}

// Server represents the HTTP API server
type Server struct {
	jwtAuth    *JWTAuth
	handlers   *Handlers
	middleware *Middleware
	handler    http.Handler
	server     *http.Server
	logger     *zap.Logger
}

// NewServer creates a new HTTP API server
func NewServer(node meshnode.MeshNode, history eventlog.EventLog, routes routingtable.RoutingTable, config Config) (*Server, error) {
	if node == nil || history == nil || routes == nil {
		return nil, ErrMissingDependency
	}
	if err := config.Validate(); err != nil {
		return nil, err
	}
	config.SetDefaults()

	secretKey := config.SecretKey
	if secretKey == "" {
		generated, err := randomSecret()
		if err != nil {
			return nil, err
		}
		secretKey = generated
		config.Logger.Warn("no http secret configured, generated an ephemeral one; tokens will not survive a restart")
	}

	jwtAuth := NewJWTAuth(secretKey)
	handlers := NewHandlers(node, history, routes, jwtAuth, config.Logger.Named("handlers"))
	handlers.keepalive = config.KeepaliveInterval
	middleware := NewMiddleware(jwtAuth, config.NoAuth, config.Logger).
		WithRateLimit(config.RateLimit, config.RateBurst)

	server := &Server{
		jwtAuth:    jwtAuth,
		handlers:   handlers,
		middleware: middleware,
		logger:     config.Logger,
	}
	server.handler = CORS(server.setupRoutes(), config.AllowedOrigins)

	server.server = &http.Server{
		Addr:              config.Address,
		Handler:           server.handler,
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       120 * time.Second,
		MaxHeaderBytes:    1 << 20, // 1MB
	}

	return server, nil
}

// Handler returns the fully wired HTTP handler
func (s *Server) Handler() http.Handler {
	return s.handler
}

// Start listens on the configured address and serves until Stop
func (s *Server) Start() error {
	s.logger.Info("http api listening", zap.String("address", s.server.Addr))
	err := s.server.ListenAndServe()
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

// Serve serves on an existing listener until Stop
func (s *Server) Serve(listener net.Listener) error {
	s.logger.Info("http api listening", zap.Stringer("address", listener.Addr()))
	err := s.server.Serve(listener)
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

// Stop gracefully stops the HTTP server
func (s *Server) Stop(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}

// setupRoutes configures all HTTP routes
func (s *Server) setupRoutes() http.Handler {
	router := mux.NewRouter()

	// Apply global middleware
	withMiddleware := func(handler http.HandlerFunc) http.HandlerFunc {
		return s.middleware.Recovery(
			s.middleware.Logging(
				s.middleware.RateLimit(
					s.middleware.ContentType(handler))))
	}
	authed := func(handler http.HandlerFunc) http.HandlerFunc {
		return withMiddleware(s.middleware.AuthRequired(handler))
	}
	admin := func(handler http.HandlerFunc) http.HandlerFunc {
		return withMiddleware(s.middleware.AdminRequired(handler))
	}

	// Routes sit on the root router: method mismatches inside a PathPrefix
	// subrouter are reported as 404 once a later sibling route is tried.
	api := func(path string, handler http.HandlerFunc, method string) {
		router.HandleFunc(apiPrefix+path, handler).Methods(method)
	}

	// Authentication endpoints (no auth required)
	api("/auth/login", withMiddleware(s.handlers.Login), http.MethodPost)

	// Chat endpoints (auth required)
	api("/messages", authed(s.handlers.SendMessage), http.MethodPost)
	api("/peers", authed(s.handlers.ListPeers), http.MethodGet)
	api("/peers/connect", authed(s.handlers.Connect), http.MethodPost)
	api("/history", authed(s.handlers.History), http.MethodGet)
	api("/events/stream", authed(s.handlers.StreamEvents), http.MethodGet)

	// Admin endpoints (admin auth required)
	api("/admin/subscriptions", admin(s.handlers.AdminSubscriptions), http.MethodGet)
	api("/admin/stats", admin(s.handlers.AdminStats), http.MethodGet)

	// Health endpoint (no auth required)
	api("/health", withMiddleware(s.handlers.Health), http.MethodGet)

	// Root endpoint with API info
	router.HandleFunc("/", withMiddleware(s.handleRoot)).Methods(http.MethodGet)

	notFound := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, "Not found", http.StatusNotFound)
	})
	methodNotAllowed := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, "Method not allowed", http.StatusMethodNotAllowed)
	})

	router.NotFoundHandler = notFound
	router.MethodNotAllowedHandler = methodNotAllowed

	return router
}

// handleRoot provides API information
func (s *Server) handleRoot(w http.ResponseWriter, r *http.Request) {
	info := map[string]interface{}{
		"service":     "MeshChat HTTP API",
		"version":     "1.0.0",
		"description": "HTTP control surface for a full-mesh chat node",
		"endpoints": map[string]interface{}{
			"auth": map[string]string{
				"login": "POST /api/v1/auth/login",
			},
			"chat": map[string]string{
				"send":    "POST /api/v1/messages",
				"peers":   "GET /api/v1/peers",
				"connect": "POST /api/v1/peers/connect",
				"history": "GET /api/v1/history?offset={offset}&limit={limit}",
				"stream":  "GET /api/v1/events/stream?kind={kind}",
			},
			"admin": map[string]string{
				"subscriptions": "GET /api/v1/admin/subscriptions",
				"stats":         "GET /api/v1/admin/stats",
			},
			"health": "GET /api/v1/health",
		},
		"authentication": "Bearer JWT token required for most endpoints",
	}

	writeJSON(w, info, http.StatusOK)
}

func randomSecret() (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("failed to generate secret: %w", err)
	}
	return hex.EncodeToString(buf), nil
}
