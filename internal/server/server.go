// Package server serves the hydroponics dashboard and its JSON API.
package server

import (
	"context"
	"embed"
	"errors"
	"html/template"
	"log"
	"net/http"
	"time"

	"github.com/KaramelBytes/hydrodash/internal/config"
	"github.com/KaramelBytes/hydrodash/internal/dataset"
	"github.com/gorilla/mux"
	"github.com/rs/cors"
	"gonum.org/v1/plot/font"
)

//go:embed templates/*.html
var templateFS embed.FS

// Server wires the dataset loader to HTTP handlers.
type Server struct {
	cfg     *config.Global
	loader  *dataset.Loader
	schools dataset.Schools
	page    *template.Template
	font    font.Font
}

// Option customizes a Server.
type Option func(*Server)

// WithChartFont renders chart images with fnt, a face registered by
// render.LoadFont.
func WithChartFont(fnt font.Font) Option {
	return func(s *Server) { s.font = fnt }
}

// New returns a server for cfg backed by loader.
func New(cfg *config.Global, loader *dataset.Loader, opts ...Option) *Server {
	s := &Server{
		cfg:     cfg,
		loader:  loader,
		schools: cfg.DatasetSchools(),
		page:    template.Must(template.ParseFS(templateFS, "templates/index.html")),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Handler returns the routed handler with middleware and optional CORS.
func (s *Server) Handler() http.Handler {
	r := mux.NewRouter()
	r.Use(withRequestID, accessLog)

	r.HandleFunc("/", s.handleIndex).Methods(http.MethodGet)
	r.HandleFunc("/health", s.handleHealth).Methods(http.MethodGet)

	api := r.PathPrefix("/api").Subrouter()
	api.HandleFunc("/schools", s.handleSchools).Methods(http.MethodGet)
	api.HandleFunc("/environment", s.handleEnvironment).Methods(http.MethodGet)
	api.HandleFunc("/growth", s.handleGrowth).Methods(http.MethodGet)
	api.HandleFunc("/summary", s.handleSummary).Methods(http.MethodGet)
	api.HandleFunc("/figures/{id}", s.handleFigure).Methods(http.MethodGet)
	api.HandleFunc("/reload", s.handleReload).Methods(http.MethodPost)

	r.HandleFunc("/charts/{id}.png", s.handleChartPNG).Methods(http.MethodGet)
	r.HandleFunc("/download/summary.xlsx", s.handleDownload).Methods(http.MethodGet)

	r.NotFoundHandler = withRequestID(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		RespondWithError(w, NewAPIError(ErrorCodeNotFound, "no route for "+r.URL.Path, nil, http.StatusNotFound))
	}))
	r.MethodNotAllowedHandler = withRequestID(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		RespondWithError(w, NewAPIError(ErrorCodeMethodNotAllowed, r.Method+" not allowed on "+r.URL.Path, nil, http.StatusMethodNotAllowed))
	}))

	if len(s.cfg.CORSOrigins) == 0 {
		return r
	}
	c := cors.New(cors.Options{
		AllowedOrigins: s.cfg.CORSOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost},
		AllowedHeaders: []string{"Content-Type", RequestIDHeader},
		ExposedHeaders: []string{RequestIDHeader},
	})
	return c.Handler(r)
}

// ListenAndServe serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) ListenAndServe(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.cfg.ListenAddr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		log.Printf("Dashboard listening on %s", s.cfg.ListenAddr)
		errCh <- srv.ListenAndServe()
	}()
	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}
	log.Printf("Shutting down dashboard")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
