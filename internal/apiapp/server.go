package apiapp

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/elite6108/sitesafe/internal/documents"
	"github.com/elite6108/sitesafe/internal/leave"
	"github.com/elite6108/sitesafe/internal/middleware"
	"github.com/elite6108/sitesafe/internal/security"
	"github.com/elite6108/sitesafe/internal/storage"
	"github.com/elite6108/sitesafe/internal/store"
)

const (
	adminPasswordHeader = "X-Admin-Password"
	userHeader          = "X-User"
	defaultMaxUpload    = 10 << 20
)

type Config struct {
	AdminPasswordHash string
	MaxUploadBytes    int64
	SignedURLTTL      time.Duration
	Calendar          *leave.Calendar
	DefaultAllowance  float64
}

// Deps are the services the API is built on. All of them are required
// except Logger.
type Deps struct {
	Store     *store.Store
	Files     storage.Store
	Documents *documents.Service
	Logger    *zap.Logger
}

type server struct {
	store            *store.Store
	files            storage.Store
	docs             *documents.Service
	logger           *zap.Logger
	gate             *security.AdminGate
	calendar         *leave.Calendar
	maxUpload        int64
	signedURLTTL     time.Duration
	defaultAllowance float64
	now              func() time.Time
	resources        map[string]resource
}

func newServer(cfg Config, deps Deps) (*server, error) {
	if deps.Store == nil || deps.Files == nil || deps.Documents == nil {
		return nil, errors.New("store, file storage and documents service are required")
	}
	if deps.Logger == nil {
		deps.Logger = zap.NewNop()
	}
	if cfg.MaxUploadBytes <= 0 {
		cfg.MaxUploadBytes = defaultMaxUpload
	}
	if cfg.SignedURLTTL <= 0 {
		cfg.SignedURLTTL = time.Hour
	}
	if cfg.Calendar == nil {
		cal, err := leave.NewCalendar(1, nil)
		if err != nil {
			return nil, err
		}
		cfg.Calendar = cal
	}
	s := &server{
		store:            deps.Store,
		files:            deps.Files,
		docs:             deps.Documents,
		logger:           deps.Logger.Named("api"),
		gate:             security.NewAdminGate(cfg.AdminPasswordHash),
		calendar:         cfg.Calendar,
		maxUpload:        cfg.MaxUploadBytes,
		signedURLTTL:     cfg.SignedURLTTL,
		defaultAllowance: cfg.DefaultAllowance,
		now:              time.Now,
	}
	s.resources = s.recordResources()
	return s, nil
}

// NewHandler builds the full API handler with its middleware.
func NewHandler(cfg Config, deps Deps) (http.Handler, error) {
	s, err := newServer(cfg, deps)
	if err != nil {
		return nil, err
	}
	return s.handler(), nil
}

func (s *server) handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/health", s.health)
	mux.HandleFunc("/api/me", s.me)
	mux.HandleFunc("/api/settings", s.settingsHandler)
	mux.HandleFunc("/api/settings/logo", s.logoHandler)
	mux.HandleFunc("/api/incident-categories", s.categoriesHandler)
	mux.HandleFunc("/api/incident-categories/{id}", s.categoryHandler)
	mux.HandleFunc("/api/documents/{kind}/{id}", s.documentHandler)
	mux.HandleFunc("/api/documents/{kind}/{id}/{format}", s.documentHandler)
	mux.HandleFunc("/api/documents/export", s.bundleHandler)
	mux.HandleFunc("/api/files/{bucket}", s.filesHandler)
	mux.HandleFunc("/api/files/{bucket}/{name}", s.fileHandler)
	mux.HandleFunc("/api/files/{bucket}/{name}/signed-url", s.signedURLHandler)
	mux.HandleFunc("/api/toolbox-talks", s.toolboxTalksHandler)
	mux.HandleFunc("/api/toolbox-talks/{id}", s.toolboxTalkHandler)
	mux.HandleFunc("/api/todos", s.todosHandler)
	mux.HandleFunc("/api/todos/{id}", s.todoHandler)
	mux.HandleFunc("/api/todos/{id}/complete", s.completeToDoHandler)
	mux.HandleFunc("/api/staff", s.staffHandler)
	mux.HandleFunc("/api/staff/import", s.staffImportHandler)
	mux.HandleFunc("/api/staff/{id}/leave-summary", s.leaveSummaryHandler)
	mux.HandleFunc("/api/leave", s.leaveHandler)
	mux.HandleFunc("/api/leave/export", s.leaveExportHandler)
	mux.HandleFunc("/api/leave/{id}/{action}", s.leaveDecisionHandler)
	mux.HandleFunc("/api/incidents/export", s.incidentExportHandler)
	mux.HandleFunc("/api/{kind}", s.recordsHandler)
	mux.HandleFunc("/api/{kind}/{id}", s.recordHandler)

	csp := strings.Join([]string{
		"default-src 'self'",
		"img-src 'self' data:",
		"script-src 'self'",
		"connect-src 'self'",
		"frame-ancestors 'none'",
	}, "; ")

	return middleware.Chain(
		mux,
		middleware.RequestLogger(s.logger),
		middleware.SecurityHeaders(middleware.SecurityHeadersConfig{ContentSecurityPolicy: csp}),
	)
}

// Run serves the API until ctx is cancelled.
func Run(ctx context.Context, addr string, cfg Config, deps Deps) error {
	handler, err := NewHandler(cfg, deps)
	if err != nil {
		return err
	}
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	httpServer := &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("api listening", zap.String("addr", addr))
		errCh <- httpServer.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = httpServer.Shutdown(shutdownCtx)
		return ctx.Err()
	case err := <-errCh:
		if err == nil || errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}

func (s *server) health(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// me echoes the user name set by the fronting proxy.
func (s *server) me(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	user := strings.TrimSpace(r.Header.Get(userHeader))
	if user == "" {
		writeError(w, http.StatusUnauthorized, "not signed in")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"user": user})
}

// requireAdmin writes a 403 and returns false unless the request carries the
// admin password.
func (s *server) requireAdmin(w http.ResponseWriter, r *http.Request) bool {
	if err := s.gate.Check(r.Header.Get(adminPasswordHeader)); err != nil {
		writeError(w, http.StatusForbidden, err.Error())
		return false
	}
	return true
}

func currentUser(r *http.Request) string {
	return strings.TrimSpace(r.Header.Get(userHeader))
}
