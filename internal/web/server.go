// Package web serves a project.Store over a JSON REST API.
package web

import (
	"context"
	"net/http"
	"net/url"
	"strings"
	"time"

	errors "github.com/Laisky/errors/v2"
	gmw "github.com/Laisky/gin-middlewares/v7"
	gconfig "github.com/Laisky/go-config/v2"
	logSDK "github.com/Laisky/go-utils/v6/log"
	"github.com/Laisky/zap"
	"github.com/gin-gonic/gin"
	"golang.org/x/sync/errgroup"

	"github.com/Laisky/texpad/internal/project"
	"github.com/Laisky/texpad/library/jwt"
	"github.com/Laisky/texpad/library/log"
	"github.com/Laisky/texpad/library/metrics"
	"github.com/Laisky/texpad/library/throttle"
)

const shutdownTimeout = 5 * time.Second

// Server is the texpad HTTP API.
type Server struct {
	store    project.Store
	logger   logSDK.Logger
	signer   *jwt.Signer
	throttle *throttle.Throttle
	mcp      http.Handler
	origins  []string
	engine   *gin.Engine
}

// Option configures a Server.
type Option func(*Server)

// WithLogger sets the root logger of the request middleware.
func WithLogger(logger logSDK.Logger) Option {
	return func(s *Server) {
		s.logger = logger
	}
}

// WithSigner enables bearer-token authentication on /api.
func WithSigner(signer *jwt.Signer) Option {
	return func(s *Server) {
		s.signer = signer
	}
}

// WithThrottle rate limits /api and /mcp per user, or per client ip without authentication.
func WithThrottle(t *throttle.Throttle) Option {
	return func(s *Server) {
		s.throttle = t
	}
}

// WithMCP mounts an MCP streamable HTTP handler at /mcp.
func WithMCP(h http.Handler) Option {
	return func(s *Server) {
		s.mcp = h
	}
}

// WithAllowedOrigins sets the CORS allow list.
//
// An entry is either an exact host ("example.com"), a domain suffix
// (".example.com", matching the domain and its subdomains) or "*".
func WithAllowedOrigins(origins ...string) Option {
	return func(s *Server) {
		s.origins = origins
	}
}

// NewServer builds the router over store.
func NewServer(store project.Store, opts ...Option) (*Server, error) {
	if store == nil {
		return nil, errors.New("store is required")
	}

	s := &Server{
		store:  store,
		logger: log.Logger.Named("web"),
	}
	for _, opt := range opts {
		opt(s)
	}

	if !gconfig.Shared.GetBool("debug") && gin.Mode() != gin.TestMode {
		gin.SetMode(gin.ReleaseMode)
	}

	s.engine = gin.New()
	s.engine.Use(
		gin.Recovery(),
		gmw.NewLoggerMiddleware(
			gmw.WithLogger(s.logger.Named("gin")),
		),
		recordMetrics,
		allowCORS(s.origins),
	)
	s.registerRoutes()

	return s, nil
}

func (s *Server) registerRoutes() {
	s.engine.Any("/health", func(ctx *gin.Context) {
		ctx.String(http.StatusOK, "hello, world")
	})
	s.engine.GET("/metrics", gin.WrapH(metrics.Handler()))

	if s.mcp != nil {
		s.engine.Any("/mcp", s.authenticate, s.rateLimit, gin.WrapH(s.mcp))
	}

	api := s.engine.Group("/api", s.authenticate, s.rateLimit)
	api.GET("/projects", s.listProjects)
	api.POST("/projects", s.createProject)
	api.GET("/projects/:id", s.getProject)
	api.POST("/projects/:id/files", s.createFile)
	api.GET("/files/:id", s.getFile)
	api.PATCH("/files/:id", s.renameFile)
	api.DELETE("/files/:id", s.deleteFile)
	api.PUT("/files/:id/content", s.updateFileContent)
}

// Handler returns the router.
func (s *Server) Handler() http.Handler {
	return s.engine
}

// Run serves on addr until ctx is done, then shuts down gracefully.
func (s *Server) Run(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.engine,
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		s.logger.Info("listening on http", zap.String("addr", addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return errors.Wrap(err, "listen and serve")
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return errors.Wrap(err, "shutdown http server")
		}
		return nil
	})

	return g.Wait()
}

func recordMetrics(ctx *gin.Context) {
	start := time.Now()
	ctx.Next()

	path := ctx.FullPath()
	if path == "" {
		path = "unmatched"
	}
	metrics.RecordHTTPRequest(ctx.Request.Method, path, ctx.Writer.Status(), time.Since(start))
}

func originAllowed(origins []string, origin string) bool {
	parsedOriginURL, err := url.Parse(origin)
	if err != nil {
		return false
	}
	host := strings.ToLower(parsedOriginURL.Hostname())
	if host == "" {
		return false
	}

	for _, allowed := range origins {
		allowed = strings.ToLower(strings.TrimSpace(allowed))
		switch {
		case allowed == "*":
			return true
		case strings.HasPrefix(allowed, "."):
			if strings.HasSuffix(host, allowed) || host == allowed[1:] {
				return true
			}
		case host == allowed:
			return true
		}
	}

	return false
}

func allowCORS(origins []string) gin.HandlerFunc {
	return func(ctx *gin.Context) {
		origin := ctx.Request.Header.Get("Origin")
		allowedOrigin := ""
		if origin != "" && originAllowed(origins, origin) {
			allowedOrigin = origin
		}

		if allowedOrigin != "" {
			ctx.Header("Access-Control-Allow-Origin", allowedOrigin)
			ctx.Header("Access-Control-Allow-Credentials", "true")
			ctx.Header("Access-Control-Allow-Methods", "GET, POST, PUT, PATCH, DELETE, OPTIONS, HEAD")
			ctx.Header("Access-Control-Allow-Headers", "Content-Type, Authorization, Accept, Origin, X-Requested-With")
			ctx.Header("Access-Control-Max-Age", "86400") // 24 hours
			ctx.Header("Vary", "Origin")

			if ctx.Request.Method == http.MethodOptions {
				ctx.AbortWithStatus(http.StatusNoContent)
				return
			}
		} else if origin != "" && ctx.Request.Method == http.MethodOptions {
			// deny preflight from disallowed origins
			ctx.AbortWithStatus(http.StatusForbidden)
			return
		}

		ctx.Next()
	}
}
