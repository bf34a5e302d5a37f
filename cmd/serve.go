package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"maitred/internal/api"
	"maitred/internal/chat"
	"maitred/internal/config"
	"maitred/internal/conversation"
	"maitred/internal/database"
	"maitred/internal/extraction"
	"maitred/internal/feedback"
	"maitred/internal/geo"
	"maitred/internal/monitoring"
	"maitred/internal/payment"
	"maitred/internal/providers"
	"maitred/internal/retrieval"
	"maitred/internal/upsell"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"github.com/tmc/langchaingo/llms"
	"golang.org/x/sync/errgroup"
)

const extractionRetryInterval = 200 * time.Millisecond

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the API and metrics servers",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, log, err := bootstrap()
			if err != nil {
				return err
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return serve(ctx, cfg, log)
		},
	}
}

func serve(ctx context.Context, cfg *config.Config, log zerolog.Logger) error {
	gin.SetMode(gin.ReleaseMode)

	db, err := openDatabase(cfg)
	if err != nil {
		return err
	}
	defer db.Close()
	store := database.NewStore(db)
	metrics := monitoring.NewCollector()

	model := languageModel(ctx, cfg.LLM, log)

	retriever, err := retrieval.New(store, cfg.Retrieval.CacheSize, cfg.Retrieval.CandidateLimit, log)
	if err != nil {
		return err
	}

	var backend extraction.Backend
	var generator upsell.Generator
	if model != nil {
		backend = extraction.NewLLMBackend(model, cfg.LLM.Model, cfg.LLM.MaxTokens)
		generator = upsell.NewLLMGenerator(model, 0)
	}
	extractor := extraction.New(retriever, store, backend, store, extraction.Config{
		Timeout:        cfg.Extraction.Timeout,
		CandidateLimit: cfg.Retrieval.CandidateLimit,
		RetryInterval:  extractionRetryInterval,
	}, metrics, log)

	engine := upsell.New(store, store, generator, upsell.Config{
		Enabled:          cfg.Upsell.Enabled,
		GenerateMessages: cfg.Upsell.GenerateMessages,
		CooldownOrders:   cfg.Upsell.CooldownOrders,
		SampleSize:       cfg.Upsell.SampleSize,
		MinCoOccurrence:  cfg.Upsell.MinCoOccurrence,
		Timeout:          cfg.Upsell.Timeout,
	}, metrics, log)

	payments, err := payment.NewLinkIssuer(cfg.Payment.CheckoutURL)
	if err != nil {
		return err
	}

	sessions := conversation.NewSessionStore(cfg.Sessions.IdleTTL, cfg.Sessions.ConflictRetryDelay, metrics, log)
	defer sessions.Close()

	orchestrator := conversation.New(conversation.Deps{
		Store:       store,
		Catalog:     store,
		Extractor:   extractor,
		Upsell:      engine,
		Geo:         geo.NewStaticAreas(cfg.Geo.Stores),
		Payments:    payments,
		Sessions:    sessions,
		Metrics:     metrics,
		Log:         log,
		HistorySize: cfg.Sessions.HistorySize,
	})

	apiServer := api.NewServer(orchestrator, feedback.New(store, metrics, log), api.Options{
		JWTSecret: cfg.Auth.JWTSecret,
		Health: func(ctx context.Context) error {
			return db.DB().PingContext(ctx)
		},
	}, log)
	chat.NewHandler(orchestrator, nil, log).Register(apiServer.Router, apiServer.Auth())
	if cfg.Auth.JWTSecret == "" {
		log.Warn().Msg("auth.jwt_secret is empty, tenant routes are unauthenticated")
	}

	servers := []*http.Server{{
		Addr:    fmt.Sprintf(":%d", cfg.Server.Port),
		Handler: apiServer.Router,
	}}
	if cfg.Metrics.Enabled {
		metricsRouter := gin.New()
		metricsRouter.Use(gin.Recovery())
		metricsRouter.GET(cfg.Metrics.Path, gin.WrapH(metrics.Handler()))
		servers = append(servers, &http.Server{
			Addr:    fmt.Sprintf(":%d", cfg.Metrics.Port),
			Handler: metricsRouter,
		})
	}

	eg, ctx := errgroup.WithContext(ctx)
	for _, srv := range servers {
		srv := srv
		eg.Go(func() error {
			log.Info().Str("addr", srv.Addr).Msg("listening")
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("server %s: %w", srv.Addr, err)
			}
			return nil
		})
	}
	eg.Go(func() error {
		<-ctx.Done()
		log.Info().Msg("shutting down servers")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		var errs []error
		for _, srv := range servers {
			if err := srv.Shutdown(shutdownCtx); err != nil {
				errs = append(errs, fmt.Errorf("shutdown %s: %w", srv.Addr, err))
			}
		}
		return errors.Join(errs...)
	})

	return eg.Wait()
}

// languageModel builds the configured model. Without one, extraction and
// suggestion copy degrade to their fallbacks instead of failing startup.
func languageModel(ctx context.Context, cfg config.LLMConfig, log zerolog.Logger) llms.Model {
	model, err := providers.New(cfg)
	switch {
	case errors.Is(err, providers.ErrNoProvider):
		log.Warn().Msg("no language model configured, order extraction is disabled")
		return nil
	case err != nil:
		log.Error().Err(err).Str("provider", cfg.Provider).Msg("language model unavailable, order extraction is disabled")
		return nil
	}

	pingCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := providers.Ping(pingCtx, model); err != nil {
		log.Warn().Err(err).Str("provider", cfg.Provider).Msg("language model did not answer the startup probe")
	}
	log.Info().Str("provider", cfg.Provider).Str("model", cfg.Model).Msg("language model ready")
	return model
}
