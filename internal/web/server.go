package web

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"experimenter/internal/api"
	"experimenter/internal/config"
	"experimenter/internal/experiments"
	"experimenter/internal/logging"
	"experimenter/internal/metrics"
	"experimenter/internal/notifications"
)

// Directory is the user, project, and health lookup surface the server needs.
type Directory interface {
	GetOrCreateUser(ctx context.Context, email string) (experiments.User, error)
	ListProjects(ctx context.Context) ([]experiments.Project, error)
	ListOwners(ctx context.Context) ([]experiments.User, error)
	GetProjectBySlug(ctx context.Context, slug string) (experiments.Project, error)
	Ping(ctx context.Context) error
}

// Deps bundles the collaborators a Server renders and mutates through.
type Deps struct {
	Experiments   *api.ExperimentService
	Directory     Directory
	Notifications notifications.Service
	Metrics       *metrics.Registry
	Logger        *slog.Logger
	Version       VersionInfo
}

// VersionInfo is reported by /__version__.
type VersionInfo struct {
	Source  string `json:"source"`
	Version string `json:"version"`
	Commit  string `json:"commit"`
	Build   string `json:"build,omitempty"`
}

// Server is the HTTP front end.
type Server struct {
	cfg      *config.Config
	echo     *echo.Echo
	svc      *api.ExperimentService
	dir      Directory
	notifier notifications.Service
	metrics  *metrics.Registry
	logger   *slog.Logger
	version  VersionInfo

	whitelist map[string]bool
	jwtSecret []byte

	server *http.Server
}

// New builds the server and registers every route.
func New(cfg *config.Config, deps Deps) (*Server, error) {
	if cfg == nil || deps.Experiments == nil || deps.Directory == nil {
		return nil, errors.New("web: config, experiment service, and directory are required")
	}
	logger := deps.Logger
	if logger == nil {
		logger = logging.NewNop()
	}
	notifier := deps.Notifications
	if notifier == nil {
		notifier = notifications.NewNoop()
	}
	renderer, err := newRenderer()
	if err != nil {
		return nil, err
	}

	s := &Server{
		cfg:       cfg,
		svc:       deps.Experiments,
		dir:       deps.Directory,
		notifier:  notifier,
		metrics:   deps.Metrics,
		logger:    logging.NewComponentLogger(logger, "web"),
		version:   deps.Version,
		whitelist: make(map[string]bool, len(cfg.Server.AuthWhitelist)),
		jwtSecret: []byte(cfg.Server.JWTSecret),
	}
	for _, name := range cfg.Server.AuthWhitelist {
		s.whitelist[strings.TrimSpace(name)] = true
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Renderer = renderer
	e.HTTPErrorHandler = s.handleError
	e.Pre(middleware.AddTrailingSlashWithConfig(middleware.TrailingSlashConfig{
		Skipper: isOpsPath,
	}))
	e.Use(s.requestID())
	e.Use(s.accessLog)
	e.Use(s.instrument)
	s.echo = e
	s.routes()

	s.server = &http.Server{
		Handler:           e,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout:      time.Duration(cfg.Server.WriteTimeout) * time.Second,
		IdleTimeout:       60 * time.Second,
	}
	return s, nil
}

func (s *Server) routes() {
	e := s.echo

	e.GET("/__heartbeat__", s.heartbeat)
	e.GET("/__lbheartbeat__", s.lbHeartbeat)
	e.GET("/__version__", s.versionInfo)
	e.GET("/metrics", echo.WrapHandler(s.metrics.Handler()))

	s.route(http.MethodGet, "/", "home", s.listPage)
	s.route(http.MethodGet, "/experiments/new/", "experiments-create", s.createPage)
	s.route(http.MethodPost, "/experiments/new/", "experiments-create", s.createSubmit)
	s.route(http.MethodGet, "/experiments/:slug/", "experiments-detail", s.detailPage)
	for _, section := range editSections {
		s.route(http.MethodGet, "/experiments/:slug/"+section.path+"/", section.name, s.editPage(section))
		s.route(http.MethodPost, "/experiments/:slug/"+section.path+"/", section.name, s.editSubmit(section))
	}
	s.route(http.MethodPost, "/experiments/:slug/status/", "experiments-status-update", s.statusSubmit)
	s.route(http.MethodPost, "/experiments/:slug/review/", "experiments-review-update", s.reviewSubmit)
	s.route(http.MethodPost, "/experiments/:slug/comment/", "experiments-comment-create", s.commentSubmit)
	s.route(http.MethodPost, "/experiments/:slug/archive/", "experiments-archive-update", s.archiveSubmit)

	s.route(http.MethodGet, "/api/v1/experiments/", "experiments-api-list", s.apiList)
	s.route(http.MethodGet, "/api/v1/experiments/:slug/", "experiments-api-detail", s.apiDetail)
	s.route(http.MethodPatch, "/api/v1/experiments/:slug/accept/", "experiments-api-accept", s.apiAccept)
	s.route(http.MethodPatch, "/api/v1/experiments/:slug/reject/", "experiments-api-reject", s.apiReject)
	s.route(http.MethodGet, "/api/v1/notifications/", "notifications-api-list", s.apiNotifications)
}

// route registers an authenticated handler under name.
func (s *Server) route(method, path, name string, h echo.HandlerFunc) {
	r := s.echo.Add(method, path, h, s.authenticate(name))
	r.Name = name
}

func isOpsPath(c echo.Context) bool {
	path := c.Request().URL.Path
	return strings.HasPrefix(path, "/__") || path == "/metrics"
}

// ServeHTTP lets tests drive the server without a listener.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.echo.ServeHTTP(w, r)
}

// Start listens on the configured bind address and serves until ctx is done.
func (s *Server) Start(ctx context.Context) error {
	listener, err := net.Listen("tcp", s.cfg.Server.Bind)
	if err != nil {
		return fmt.Errorf("web listen: %w", err)
	}
	s.logger.Info("web server listening", logging.String("address", listener.Addr().String()))

	errCh := make(chan error, 1)
	go func() {
		errCh <- s.server.Serve(listener)
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("web serve: %w", err)
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := s.server.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("web shutdown: %w", err)
		}
		return nil
	}
}
