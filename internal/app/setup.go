package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/firebase/genkit/go/genkit"
	"github.com/firebase/genkit/go/plugins/googlegenai"
	"golang.org/x/time/rate"

	"github.com/atelier-ai/atelier/db"
	"github.com/atelier-ai/atelier/internal/chat"
	"github.com/atelier-ai/atelier/internal/config"
	"github.com/atelier-ai/atelier/internal/database"
	"github.com/atelier-ai/atelier/internal/ingest"
	"github.com/atelier-ai/atelier/internal/log"
	"github.com/atelier-ai/atelier/internal/model"
	"github.com/atelier-ai/atelier/internal/review"
	"github.com/atelier-ai/atelier/internal/session"
	"github.com/atelier-ai/atelier/internal/tools"
	"github.com/atelier-ai/atelier/internal/transcribe"
)

// Options toggles optional subsystems during Setup.
type Options struct {
	// SkipStorage runs without PostgreSQL: no conversation persistence,
	// no auto-titling, readiness reduces to liveness.
	SkipStorage bool
}

// Setup assembles the service from configuration. The caller must Close the
// returned App.
func Setup(ctx context.Context, cfg *config.Config, logger log.Logger, opts Options) (*App, error) {
	g := genkit.Init(ctx, genkit.WithPlugins(&googlegenai.GoogleAI{}))
	if g == nil {
		return nil, errors.New("initializing genkit")
	}

	registry, err := buildRegistry(cfg, logger)
	if err != nil {
		return nil, err
	}
	executor := tools.NewExecutor(registry, logger)
	toolRefs := model.DefineToolStubs(g, registry)

	catalog := model.NewCatalog(cfg.DefaultModel)
	for _, m := range cfg.Models {
		catalog.Add(m.Name, model.Capability{Tools: m.Tools, Reasoning: m.Reasoning, Vision: m.Vision})
	}

	limiter := rate.NewLimiter(rate.Limit(float64(cfg.RatePerMinute)/60.0), cfg.RatePerMinute)
	invoker := model.NewGenkitInvoker(g, limiter, logger)

	reviewer := review.New(review.Config{
		Threshold:      cfg.Review.Threshold,
		MaxRecommended: cfg.Review.MaxRecommended,
	})

	orchestrator, err := chat.New(chat.Config{
		Invoker:   invoker,
		Catalog:   catalog,
		Executor:  executor,
		ToolRefs:  toolRefs,
		Reviewer:  reviewer,
		Logger:    logger,
		MaxRounds: cfg.MaxRounds,
	})
	if err != nil {
		return nil, fmt.Errorf("building orchestrator: %w", err)
	}

	a := &App{
		Config:       cfg,
		Logger:       logger,
		Genkit:       g,
		Orchestrator: orchestrator,
		Pipeline: ingest.NewPipeline(
			ingest.NewSplitter(cfg.Ingest.ChunkSize, cfg.Ingest.ChunkOverlap),
			logger,
			ingest.TextExtractor{},
		),
	}

	if cfg.Transcribe.APIKey != "" {
		a.Transcriber = transcribe.NewWhisper(transcribe.Config{
			BaseURL: cfg.Transcribe.BaseURL,
			APIKey:  cfg.Transcribe.APIKey,
			Model:   cfg.Transcribe.Model,
		}, logger)
	} else {
		logger.Warn("transcription disabled, no API key configured")
	}

	if !opts.SkipStorage {
		if err := db.Migrate(cfg.PostgresDSN(), logger); err != nil {
			return nil, fmt.Errorf("running migrations: %w", err)
		}
		pool, err := database.Connect(ctx, cfg.PostgresDSN(), logger)
		if err != nil {
			return nil, fmt.Errorf("connecting to database: %w", err)
		}
		a.Pool = pool
		a.Store = session.NewStore(pool, logger)
		a.Titler = session.NewTitler(invoker, a.Store, cfg.DefaultModel, logger)
	}

	return a, nil
}

// buildRegistry registers every tool the orchestration loop can call.
func buildRegistry(cfg *config.Config, logger log.Logger) (*tools.Registry, error) {
	registry := tools.NewRegistry()

	searchClient := tools.NewSearchClient(cfg.SearXNG.BaseURL, logger)
	scraper := tools.NewScraper(tools.ScraperConfig{
		Parallelism: cfg.Scraper.Parallelism,
		Delay:       time.Duration(cfg.Scraper.DelayMs) * time.Millisecond,
		Timeout:     time.Duration(cfg.Scraper.TimeoutMs) * time.Millisecond,
	}, logger)
	reviewer := review.New(review.Config{
		Threshold:      cfg.Review.Threshold,
		MaxRecommended: cfg.Review.MaxRecommended,
	})

	builders := []func() (tools.Tool, error){
		func() (tools.Tool, error) { return tools.NewWebSearchTool(searchClient) },
		func() (tools.Tool, error) { return tools.NewRecentNewsTool(searchClient, time.Now) },
		func() (tools.Tool, error) { return tools.NewCurrentTimeTool(time.Now) },
		func() (tools.Tool, error) { return tools.NewScrapePageTool(scraper) },
		func() (tools.Tool, error) { return tools.NewReviewResultsTool(reviewer) },
	}
	for _, build := range builders {
		t, err := build()
		if err != nil {
			return nil, fmt.Errorf("building tools: %w", err)
		}
		if err := registry.Register(t); err != nil {
			return nil, fmt.Errorf("registering %s: %w", t.Name(), err)
		}
	}
	return registry, nil
}
