package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/pageguard/pageguard/internal/analyzer"
	"github.com/pageguard/pageguard/internal/audit"
	"github.com/pageguard/pageguard/internal/breach"
	"github.com/pageguard/pageguard/internal/cache"
	"github.com/pageguard/pageguard/internal/config"
	"github.com/pageguard/pageguard/internal/history"
	"github.com/pageguard/pageguard/internal/quota"
	"github.com/pageguard/pageguard/internal/server"
	"github.com/pageguard/pageguard/internal/service"
)

// NewServeCmd creates the serve command.
func NewServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the PageGuard API server",
		Long: `Serve starts the HTTP API consumed by the browser extension.

Provider credentials are read from the environment (GEMINI_API_KEY or
GROQ_API_KEY depending on the configured provider). When the credential
is absent the server still runs and reports all pages as safe, naming
the missing configuration in each summary.

Examples:
  # Serve with defaults (Gemini, :8000)
  pageguard serve

  # Serve with a configuration file
  pageguard serve -c pageguard.yaml`,
		RunE: runServeCmd,
	}

	cmd.Flags().StringP("config", "c", "", "Path to configuration file (YAML)")
	cmd.Flags().StringP("addr", "a", "", "Listen address (overrides configuration)")

	return cmd
}

func runServeCmd(cmd *cobra.Command, _ []string) error {
	configPath, err := cmd.Flags().GetString("config")
	if err != nil {
		return err
	}
	addr, err := cmd.Flags().GetString("addr")
	if err != nil {
		return err
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if addr != "" {
		cfg.Server.Addr = addr
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	return serve(ctx, cfg)
}

func serve(ctx context.Context, cfg *config.Config) error {
	resultCache := cache.New(cfg.Cache.TTL())
	limiter := quota.New(map[quota.Class]int{
		quota.ClassAnalyze: cfg.Quota.ScansPerDay,
		quota.ClassBreach:  cfg.Quota.BreachChecksPerDay,
	})
	model := analyzer.New(cfg)
	checker := breach.New(breach.Options{
		DirectoryURL:     cfg.Breach.DirectoryURL,
		RangeURL:         cfg.Breach.RangeURL,
		UserAgent:        cfg.Breach.UserAgent,
		APIKey:           cfg.Breach.APIKey(),
		DirectoryTimeout: cfg.Breach.DirectoryTimeout(),
		RangeTimeout:     cfg.Breach.RangeTimeout(),
	})

	var store *history.Store
	if cfg.History.Dir != "" {
		var err error
		store, err = history.Open(cfg.History.Dir, history.DefaultOptions())
		if err != nil {
			return fmt.Errorf("open history store: %w", err)
		}
		defer store.Close()
		log.Printf("scan history enabled dir=%s", cfg.History.Dir)
	}

	emitter, err := buildAuditEmitter(cfg)
	if err != nil {
		return fmt.Errorf("configure audit sink: %w", err)
	}
	if emitter != nil {
		defer func() {
			closeCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			emitter.Close(closeCtx)
		}()
	}

	svc := service.New(service.Dependencies{
		Cache:    resultCache,
		Quota:    limiter,
		Analyzer: model,
		Breach:   checker,
		History:  store,
		Audit:    emitter,
	})

	srv := &http.Server{
		Addr:    cfg.Server.Addr,
		Handler: server.New(cfg, svc).Handler(),
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		log.Printf("%s %s listening on %s provider=%s", config.AppName, config.Version, cfg.Server.Addr, cfg.LLM.Provider)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		log.Printf("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	if interval := cfg.Cache.SweepInterval(); interval > 0 {
		g.Go(func() error {
			ticker := time.NewTicker(interval)
			defer ticker.Stop()
			for {
				select {
				case <-gctx.Done():
					return nil
				case <-ticker.C:
					if n := resultCache.Sweep(); n > 0 {
						log.Printf("cache sweep removed %d expired entries", n)
					}
				}
			}
		})
	}

	return g.Wait()
}

func buildAuditEmitter(cfg *config.Config) (*audit.Emitter, error) {
	switch cfg.Audit.Sink {
	case "", "none":
		return nil, nil
	case "stdout":
		return audit.NewEmitter(audit.NewStdout(), 0), nil
	case "file":
		sink, err := audit.NewFileSink(cfg.Audit.Path)
		if err != nil {
			return nil, err
		}
		return audit.NewEmitter(sink, 0), nil
	default:
		return nil, fmt.Errorf("unknown audit sink %q", cfg.Audit.Sink)
	}
}
