// Package server exposes the search and generation engine over HTTP: auth,
// the session API, provider status, recurring sweep topics and metrics.
package server

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/mohammad-safakhou/trender/config"
	"github.com/mohammad-safakhou/trender/internal/capture"
	"github.com/mohammad-safakhou/trender/internal/engine"
	"github.com/mohammad-safakhou/trender/internal/generation"
	"github.com/mohammad-safakhou/trender/internal/index"
	"github.com/mohammad-safakhou/trender/internal/providers"
	"github.com/mohammad-safakhou/trender/internal/store"
	"github.com/mohammad-safakhou/trender/internal/telemetry"
)

// Stack bundles every wired component. The CLI commands reuse it so a search
// from the terminal goes through the exact same pipeline as one over HTTP.
type Stack struct {
	Cfg       *config.Config
	Store     *store.Store
	Cache     *store.Cache
	SearchReg *engine.Registry
	GenReg    *engine.Registry
	Pipeline  *engine.SearchPipeline
	Generator *engine.GenerationOrchestrator
	Index     *index.Manager
}

// BuildStack assembles the engine from config: provider registries, fan-out,
// aggregation, generation chain and the optional Postgres/Redis/capture
// layers. Search and generation get separate registries so a relaxed
// capability match never crosses from one class of provider into the other.
func BuildStack(ctx context.Context, cfg *config.Config) (*Stack, error) {
	orchLogger := log.New(log.Writer(), "[ORCH] ", log.LstdFlags)

	var rec engine.Recorder = engine.NopRecorder{}
	if cfg.Telemetry.Enabled {
		rec = telemetry.New()
	}

	httpc := engine.NewHTTPClient(cfg.Search.Timeout, 2, 500*time.Millisecond)

	searchReg := engine.NewRegistry(cfg.Search.ReenableAfter)
	for _, e := range providers.Build(cfg, httpc, orchLogger) {
		searchReg.Register(e)
	}
	genReg := engine.NewRegistry(cfg.Generation.ReenableAfter)
	for _, e := range generation.Build(cfg, httpc, orchLogger) {
		genReg.Register(e)
	}

	var st *store.Store
	if cfg.Postgres.Enabled {
		var err error
		st, err = store.NewWithDSN(ctx, cfg.Postgres.DSN())
		if err != nil {
			return nil, fmt.Errorf("postgres connection failed: %w", err)
		}
	}
	var cache *store.Cache
	if cfg.Redis.Enabled {
		var err error
		cache, err = store.NewCache(ctx, cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB, cfg.Redis.ResultTTL)
		if err != nil {
			return nil, fmt.Errorf("redis connection failed (%s): %w", cfg.Redis.Addr, err)
		}
	}

	var capSvc engine.CaptureService
	if cfg.Capture.Enabled {
		capSvc = capture.New(cfg.Capture.Dir, cfg.Capture.Timeout, cfg.Capture.MaxChars,
			log.New(log.Writer(), "[CAPTURE] ", log.LstdFlags))
	}

	var storage engine.Storage
	if st != nil {
		storage = st
	}

	fanout := engine.NewFanoutExecutor(searchReg, rec, cfg.Search.Timeout,
		log.New(log.Writer(), "[FANOUT] ", log.LstdFlags))
	agg := engine.NewAggregator(
		engine.NewBlocklist(cfg.Search.BlocklistExtra),
		cfg.Search.SnippetMax, cfg.Search.ContentMax, cfg.Search.ViralTop,
		orchLogger)
	pipeline := engine.NewSearchPipeline(searchReg, fanout, agg, storage, capSvc, engine.PipelineConfig{
		Limit:      cfg.Search.MaxPerProvider,
		CaptureMax: cfg.Capture.Max,
	}, orchLogger)

	gen := engine.NewGenerationOrchestrator(genReg, pipeline, rec,
		log.New(log.Writer(), "[GEN] ", log.LstdFlags),
		engine.GenerationOptions{
			MaxIterations: cfg.Generation.MaxIterations,
			Temperature:   cfg.Generation.Temperature,
			MaxTokens:     cfg.Generation.MaxTokens,
			ToolWebTop:    cfg.Generation.ToolWebTop,
			ToolVideoTop:  cfg.Generation.ToolVideoTop,
			ToolSocialTop: cfg.Generation.ToolSocialTop,
			ToolViralTop:  cfg.Generation.ToolViralTop,
		})

	return &Stack{
		Cfg:       cfg,
		Store:     st,
		Cache:     cache,
		SearchReg: searchReg,
		GenReg:    genReg,
		Pipeline:  pipeline,
		Generator: gen,
		Index:     index.NewManager(0),
	}, nil
}

// Run builds the stack and serves the HTTP API until ctx is cancelled.
func Run(ctx context.Context, cfg *config.Config) error {
	stack, err := BuildStack(ctx, cfg)
	if err != nil {
		return err
	}

	e := newEcho(cfg)
	registerRoutes(e, stack)

	var sched *Scheduler
	if stack.Store != nil {
		sched = &Scheduler{
			Store:    stack.Store,
			Cache:    stack.Cache,
			Pipeline: stack.Pipeline,
			Stop:     make(chan struct{}),
			Logger:   log.New(log.Writer(), "[SCHED] ", log.LstdFlags),
		}
		sched.Start()
	}

	addr := cfg.Server.Address
	if addr == "" {
		addr = ":8080"
	}
	errCh := make(chan error, 1)
	go func() {
		log.Printf("listening on %s", addr)
		errCh <- e.Start(addr)
	}()

	select {
	case err := <-errCh:
		if sched != nil {
			close(sched.Stop)
		}
		return err
	case <-ctx.Done():
	}
	if sched != nil {
		close(sched.Stop)
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return e.Shutdown(shutdownCtx)
}

// newEcho configures the router: recovery, CORS, and a JSON error envelope
// logged under the [HTTP] prefix.
func newEcho(cfg *config.Config) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.Use(middleware.Recover())
	baseLogger := log.New(log.Writer(), "[HTTP] ", log.LstdFlags)
	e.HTTPErrorHandler = func(err error, c echo.Context) {
		code := http.StatusInternalServerError
		msg := err.Error()
		if he, ok := err.(*echo.HTTPError); ok {
			code = he.Code
			if he.Message != nil {
				msg = fmt.Sprint(he.Message)
			}
		}
		req := c.Request()
		baseLogger.Printf("%d %s %s from %s: %v", code, req.Method, req.URL.Path, c.RealIP(), err)
		if !c.Response().Committed {
			_ = c.JSON(code, map[string]interface{}{"error": msg})
		}
	}
	origins := cfg.Server.CORSOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}
	e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins:     origins,
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Content-Type", "Cookie", "Authorization"},
		AllowCredentials: true,
	}))
	return e
}

func registerRoutes(e *echo.Echo, stack *Stack) {
	e.GET("/healthz", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
	})
	if stack.Cfg.Telemetry.Enabled {
		e.GET("/metrics", echo.WrapHandler(promhttp.Handler()))
	}

	api := e.Group("/api")

	secret := []byte(stack.Cfg.Server.JWTSecret)
	if stack.Store != nil && len(secret) > 0 {
		auth := &AuthHandler{Store: stack.Store, Secret: secret, Env: stack.Cfg.General.Env}
		auth.Register(api.Group("/auth"))
	}

	v1 := api.Group("/v1")
	if len(secret) > 0 {
		v1.Use(authMiddleware(secret))
	}
	h := &Handler{
		Pipeline:  stack.Pipeline,
		Generator: stack.Generator,
		SearchReg: stack.SearchReg,
		GenReg:    stack.GenReg,
		Store:     stack.Store,
		Cache:     stack.Cache,
		Index:     stack.Index,
		Logger:    log.New(log.Writer(), "[HTTP] ", log.LstdFlags),
	}
	h.Register(v1)
}
