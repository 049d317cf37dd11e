package deploy

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/opnlabs/ship/pkg/models"
)

var securityHeaders = map[string]string{
	"X-Content-Type-Options":    "nosniff",
	"X-Frame-Options":           "DENY",
	"X-XSS-Protection":          "1; mode=block",
	"Strict-Transport-Security": "max-age=31536000; includeSubDomains",
	"Content-Security-Policy":   "default-src 'self'; script-src 'self' 'unsafe-inline' 'unsafe-eval'; style-src 'self' 'unsafe-inline'; img-src 'self' data:; font-src 'self' data:",
	"Referrer-Policy":           "strict-origin-when-cross-origin",
}

var staticExtensions = []string{".css", ".js", ".png", ".jpg", ".svg", ".ico"}

// Server serves the build directory as a single page application with
// security headers on every response.
type Server struct {
	config   models.Config
	logger   *log.Logger
	buildDir string

	mu   sync.Mutex
	port int
}

func NewServer(config models.Config, logger *log.Logger) *Server {
	return &Server{
		config:   config,
		logger:   logger,
		buildDir: config.BuildDir,
		port:     config.Port,
	}
}

// Port returns the port actually bound, which may differ from the requested
// one when it was taken.
func (s *Server) Port() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.port
}

func (s *Server) setPort(port int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.port = port
}

func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RealIP)
	r.Use(s.withSecurityHeaders)
	r.Use(s.requestLogger)

	fileServer := http.FileServer(http.Dir(s.buildDir))
	r.Get("/*", func(w http.ResponseWriter, req *http.Request) {
		if rewriteToIndex(req.URL.Path) {
			http.ServeFile(w, req, filepath.Join(s.buildDir, "index.html"))
			return
		}
		fileServer.ServeHTTP(w, req)
	})

	return r
}

// Start binds a listener, probing past the requested port when it is busy,
// and serves until ctx is canceled.
func (s *Server) Start(ctx context.Context) error {
	if _, err := os.Stat(s.buildDir); err != nil {
		return fmt.Errorf("build directory not found, run a build first: %s", s.buildDir)
	}

	listener, err := s.listen()
	if err != nil {
		return err
	}

	server := &http.Server{
		Handler:           s.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			s.logger.Error("server shutdown", "err", err)
		}
	}()

	if s.config.Environment == models.EnvProduction {
		monitor := NewHealthMonitor(s.config.Host, s.Port(), s.config.HealthInterval, s.logger)
		go monitor.Run(ctx)
	}

	s.logger.Info("serving build", "url", fmt.Sprintf("http://%s:%d", s.config.Host, s.Port()), "dir", s.buildDir)

	if err := server.Serve(listener); !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	s.logger.Info("server stopped")
	return nil
}

func (s *Server) listen() (net.Listener, error) {
	probes := s.config.MaxPortProbes
	if probes <= 0 {
		probes = 100
	}

	for port := s.config.Port; port < s.config.Port+probes; port++ {
		listener, err := net.Listen("tcp", fmt.Sprintf("%s:%d", s.config.Host, port))
		if err != nil {
			continue
		}
		if port != s.config.Port {
			s.logger.Warn("requested port unavailable", "requested", s.config.Port, "using", port)
		}
		s.setPort(port)
		return listener, nil
	}
	return nil, fmt.Errorf("no available ports in range %d-%d", s.config.Port, s.config.Port+probes-1)
}

func (s *Server) withSecurityHeaders(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		for k, v := range securityHeaders {
			w.Header().Set(k, v)
		}
		next.ServeHTTP(w, req)
	})
}

func (s *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, req.ProtoMajor)
		next.ServeHTTP(ww, req)
		s.logger.Debug("http request", "remote", req.RemoteAddr, "path", req.URL.Path, "status", ww.Status())
	})
}

// rewriteToIndex reports whether an unknown path should fall back to the
// default document instead of a file lookup.
func rewriteToIndex(path string) bool {
	if path == "/" || strings.HasPrefix(path, "/assets/") {
		return false
	}
	for _, ext := range staticExtensions {
		if strings.HasSuffix(path, ext) {
			return false
		}
	}
	return true
}
