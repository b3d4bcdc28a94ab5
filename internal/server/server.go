package server

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/adapters/humago"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/joeblew999/plat-geoviz/internal/api"
	"github.com/joeblew999/plat-geoviz/internal/api/panel"
	"github.com/joeblew999/plat-geoviz/internal/datagen"
	"github.com/joeblew999/plat-geoviz/internal/db"
	"github.com/joeblew999/plat-geoviz/internal/engine"
	"github.com/joeblew999/plat-geoviz/internal/metrics"
	"github.com/joeblew999/plat-geoviz/internal/persist"
	"github.com/joeblew999/plat-geoviz/internal/pipeline"
	"github.com/joeblew999/plat-geoviz/internal/selector"
	"github.com/joeblew999/plat-geoviz/internal/state"
	"github.com/joeblew999/plat-geoviz/internal/templates"
	"github.com/joeblew999/plat-geoviz/internal/viewer"
)

// Config holds the server configuration.
type Config struct {
	Host    string
	Port    string
	DataDir string
	WebDir  string // Path to web/ directory for static files and templates

	KV           persist.Backend
	PersistDelay time.Duration

	// Initial dataset. Points == 0 starts empty.
	Points       int
	Distribution datagen.Distribution
	Region       datagen.RegionID
	Seed         uint64

	DuckDB bool
	Logger *slog.Logger
}

// Server is the geoviz HTTP server.
type Server struct {
	config   Config
	log      *slog.Logger
	mux      *http.ServeMux
	humaAPI  huma.API
	registry *prometheus.Registry

	store     *state.Store
	viewer    *viewer.Controller
	style     *engine.Style
	kv        persist.KV
	persister *persist.Persister
	db        *sql.DB
	panel     *panel.Handler
	renderer  *templates.Renderer

	cancel    context.CancelFunc
	cleanup   []func()
	closeOnce sync.Once
	closeErr  error
}

// New wires the state store, the layer pipeline and every collaborator,
// restores the persisted settings and generates the initial dataset.
func New(cfg Config) (*Server, error) {
	log := cfg.Logger
	if log == nil {
		log = slog.Default()
	}
	ctx, cancel := context.WithCancel(context.Background())
	s := &Server{
		config:   cfg,
		log:      log,
		mux:      http.NewServeMux(),
		registry: prometheus.NewRegistry(),
		cancel:   cancel,
	}
	s.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	m := metrics.New(s.registry)

	s.store = state.New(
		state.WithLogger(log),
		state.WithRejectHook(func(p state.Path, _ any, _ error) { m.RecordRejection(string(p)) }),
	)
	sel := selector.New(s.store, log)
	s.style = engine.NewStyle()
	pipe := pipeline.New(s.store, sel, s.style, pipeline.WithLogger(log), pipeline.WithMetrics(m))
	s.viewer = viewer.New(s.store, sel, pipe, datagen.New(cfg.Seed), viewer.WithLogger(log), viewer.WithMetrics(m))
	s.viewer.Start()
	s.cleanup = append(s.cleanup, s.viewer.Stop)

	if err := s.openPersistence(ctx, m); err != nil {
		s.Close()
		return nil, err
	}

	if cfg.Points > 0 {
		if _, err := s.viewer.Regenerate(cfg.Points, cfg.Distribution, cfg.Region); err != nil {
			s.Close()
			return nil, fmt.Errorf("initial dataset: %w", err)
		}
	}

	if cfg.DuckDB {
		s.openDB(ctx)
	}

	s.renderer = s.loadTemplates(ctx)
	s.humaAPI = s.newAPI()
	s.routes()
	return s, nil
}

func (s *Server) openPersistence(ctx context.Context, m *metrics.Metrics) error {
	kvCfg := persist.DefaultConfig()
	kv, err := persist.OpenBackend(s.config.KV, filepath.Join(s.config.DataDir, "kv"), kvCfg)
	if err != nil {
		return fmt.Errorf("open kv: %w", err)
	}
	s.kv = kv

	opts := []persist.Option{persist.WithLogger(s.log), persist.WithMetrics(m)}
	if s.config.PersistDelay > 0 {
		opts = append(opts, persist.WithDelay(s.config.PersistDelay))
	}
	s.persister = persist.New(s.store, kv, opts...)
	if s.persister.RestoreState(ctx) {
		s.log.Info("restored persisted settings", "mode", s.store.Mode())
	}
	s.persister.Start()
	return nil
}

// openDB attaches the analytical mirror. Failure leaves the db routes
// answering 503.
func (s *Server) openDB(ctx context.Context) {
	conn, err := db.Open(db.Config{
		DataDir: s.config.DataDir,
		DBName:  "geoviz",
		Logger:  s.log,
	})
	if err != nil {
		s.log.Warn("duckdb unavailable", "err", err)
		return
	}
	s.db = conn
	s.cleanup = append(s.cleanup, db.NewMirror(conn, s.log).Attach(ctx, s.store))
}

func (s *Server) loadTemplates(ctx context.Context) *templates.Renderer {
	if s.config.WebDir != "" {
		fragmentsDir := filepath.Join(s.config.WebDir, "templates", "fragments")
		if r, err := templates.New(fragmentsDir); err == nil {
			s.log.Info("loaded fragment templates", "dir", fragmentsDir)
			if err := r.Watch(ctx, s.log); err != nil {
				s.log.Warn("template hot reload disabled", "err", err)
			}
			return r
		}
	}
	return templates.NewEmbedded()
}

func (s *Server) newAPI() huma.API {
	humaConfig := huma.DefaultConfig("plat-geoviz API", "1.0.0")
	humaConfig.Info.Description = "Reactive map visualization API: state, derived stats, layer specs and the settings panel."
	humaConfig.Servers = []*huma.Server{
		{URL: fmt.Sprintf("http://%s:%s", s.config.Host, s.config.Port), Description: "Local server"},
	}
	// Disable $schema property in responses (cleaner JSON)
	humaConfig.CreateHooks = []func(huma.Config) huma.Config{}
	humaConfig.Transformers = append(humaConfig.Transformers, api.LinkTransformer())

	return humago.New(s.mux, humaConfig)
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mux.ServeHTTP(w, r)
}

// OpenAPI returns the generated OpenAPI document.
func (s *Server) OpenAPI() *huma.OpenAPI {
	return s.humaAPI.OpenAPI()
}

// Store exposes the state store.
func (s *Server) Store() *state.Store { return s.store }

// Persister exposes the snapshot persister.
func (s *Server) Persister() *persist.Persister { return s.persister }

// Close flushes pending autosaves and closes server resources. It is safe to
// call more than once.
func (s *Server) Close() error {
	s.closeOnce.Do(func() { s.closeErr = s.close() })
	return s.closeErr
}

func (s *Server) close() error {
	s.cancel()
	if s.panel != nil {
		s.panel.Close()
	}
	if s.persister != nil {
		s.persister.Close()
	}
	for i := len(s.cleanup) - 1; i >= 0; i-- {
		s.cleanup[i]()
	}
	s.cleanup = nil

	var errs []error
	if s.db != nil {
		errs = append(errs, s.db.Close())
	}
	if s.kv != nil {
		errs = append(errs, s.kv.Close())
	}
	return errors.Join(errs...)
}

func (s *Server) routes() {
	// Huma REST API routes (OpenAPI-documented JSON endpoints)
	huma.AutoRegister(s.humaAPI, api.NewAPIHandler(&api.Services{
		Viewer:    s.viewer,
		Style:     s.style,
		Persister: s.persister,
	}))
	api.NewInfoHandler(s.config.DataDir, string(s.config.KV), s.db != nil).RegisterRoutes(s.humaAPI)
	api.NewDBHandler(s.db).RegisterRoutes(s.humaAPI)

	// Settings panel SSE routes using Huma + Datastar SDK
	s.panel = panel.New(s.viewer, s.style, s.renderer, s.log)
	s.panel.RegisterRoutes(s.humaAPI)

	s.mux.Handle("/metrics", promhttp.HandlerFor(s.registry, promhttp.HandlerOpts{Registry: s.registry}))

	// Static files and templates
	if s.config.WebDir != "" {
		staticDir := filepath.Join(s.config.WebDir, "static")
		s.mux.Handle("/static/", http.StripPrefix("/static/", http.FileServer(http.Dir(staticDir))))
		s.mux.HandleFunc("/viewer", s.handleViewer)
	}

	s.mux.HandleFunc("/", s.handleRoot)
}

func (s *Server) handleRoot(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{
		"service": "plat-geoviz",
		"status":  "running",
		"mode":    s.store.Mode(),
		"points":  len(s.store.Points()),
	})
}

func (s *Server) handleViewer(w http.ResponseWriter, r *http.Request) {
	templatePath := filepath.Join(s.config.WebDir, "templates", "viewer.html")
	if _, err := os.Stat(templatePath); err != nil {
		http.NotFound(w, r)
		return
	}
	http.ServeFile(w, r, templatePath)
}
