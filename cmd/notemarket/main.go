package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/pbaille/notemarket/internal/api"
	"github.com/pbaille/notemarket/internal/config"
	"github.com/pbaille/notemarket/internal/dashboard"
	"github.com/pbaille/notemarket/internal/detection"
	"github.com/pbaille/notemarket/internal/domain"
	"github.com/pbaille/notemarket/internal/embedding"
	"github.com/pbaille/notemarket/internal/moderation"
	"github.com/pbaille/notemarket/internal/store"
	"github.com/pbaille/notemarket/internal/transparency"
)

var (
	dbPath     string
	configPath string
)

func main() {
	_ = godotenv.Load()

	rootCmd := &cobra.Command{
		Use:           "notemarket",
		Short:         "Clone detection and creator moderation for a notes marketplace",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.PersistentFlags().StringVar(&dbPath, "db", "", "database path (overrides db_path)")
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "config file (defaults to config.yaml or CONFIG_PATH)")

	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(classifyCmd())
	rootCmd.AddCommand(creatorCmd())
	rootCmd.AddCommand(publishCmd())
	rootCmd.AddCommand(listCmd())
	rootCmd.AddCommand(searchCmd())
	rootCmd.AddCommand(showCmd())
	rootCmd.AddCommand(checkCmd())
	rootCmd.AddCommand(scanCmd())
	rootCmd.AddCommand(transparencyCmd())
	rootCmd.AddCommand(actionCmd())
	rootCmd.AddCommand(bulkCmd())
	rootCmd.AddCommand(messageCmd())
	rootCmd.AddCommand(historyCmd())
	rootCmd.AddCommand(dashboardCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

// app bundles the services a command works with
type app struct {
	cfg      config.Config
	store    *store.Store
	workflow *moderation.Workflow
	detector *detection.Detector
}

func loadConfig() (config.Config, error) {
	if configPath != "" {
		if err := os.Setenv("CONFIG_PATH", configPath); err != nil {
			return config.Config{}, err
		}
	}
	cfg, err := config.Load()
	if err != nil {
		return config.Config{}, err
	}
	if dbPath != "" {
		cfg.DBPath = dbPath
	}
	config.ConfigureLogging(cfg.LogLevel)
	return cfg, nil
}

func getStore(path string) (*store.Store, error) {
	// Ensure directory exists
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("create db dir: %w", err)
	}
	return store.New(path)
}

func openApp() (*app, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	s, err := getStore(cfg.DBPath)
	if err != nil {
		return nil, err
	}

	var opts []moderation.Option
	if cfg.StrictTerminalActions {
		opts = append(opts, moderation.WithTerminalGuard())
	}
	a := &app{cfg: cfg, store: s, workflow: moderation.New(s, s, opts...)}

	if cfg.EmbeddingsConfigured() {
		emb, err := embedding.New(embedding.Config{
			APIKey:  cfg.VoyageAPIKey,
			Model:   cfg.EmbeddingModel,
			Timeout: cfg.HTTPTimeout(),
		})
		if err != nil {
			_ = s.Close()
			return nil, err
		}
		a.detector = detection.New(s, detection.NewEmbeddingProvider(emb, s),
			detection.WithCandidateLimit(cfg.CandidateLimit))
	}
	return a, nil
}

func (a *app) Close() error {
	return a.store.Close()
}

func (a *app) requireDetector() error {
	if a.detector == nil {
		return fmt.Errorf("similarity detection needs voyage_api_key (or VOYAGE_API_KEY)")
	}
	return nil
}

// transparencyCache builds the configured cache backend
func (a *app) transparencyCache(ctx context.Context) (transparency.Getter, func(), error) {
	lookup := transparency.NewStoreLookup(a.store)
	if a.cfg.CacheBackend == "redis" {
		rc, err := transparency.NewRedisCache(ctx, transparency.RedisConfig{
			Addr:      a.cfg.RedisAddr,
			Password:  a.cfg.RedisPassword,
			DB:        a.cfg.RedisDB,
			KeyPrefix: a.cfg.RedisKeyPrefix,
			TTL:       a.cfg.CacheTTL(),
		}, lookup)
		if err != nil {
			return nil, nil, err
		}
		return rc, func() { _ = rc.Close() }, nil
	}
	return transparency.NewCache(lookup, a.cfg.CacheTTL()), func() {}, nil
}

// resolveCreator accepts a numeric id or a username
func (a *app) resolveCreator(ctx context.Context, ref string) (domain.Creator, error) {
	if id, err := strconv.ParseInt(ref, 10, 64); err == nil {
		return a.store.GetCreator(ctx, id)
	}
	return a.store.GetCreatorByUsername(ctx, ref)
}

func serveCmd() *cobra.Command {
	var addr string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp()
			if err != nil {
				return err
			}
			defer a.Close()

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			cache, closeCache, err := a.transparencyCache(ctx)
			if err != nil {
				return err
			}
			defer closeCache()

			if a.detector != nil {
				if _, err := detection.StartSweeps(ctx, a.cfg.SweepSchedule, a.detector); err != nil {
					return err
				}
			} else {
				slog.Warn("similarity detection disabled: voyage_api_key not set")
			}

			if addr == "" {
				addr = a.cfg.Addr
			}
			srv := api.New(api.Deps{
				Catalog:      a.store,
				Workflow:     a.workflow,
				Transparency: cache,
				Dashboard:    dashboard.NewService(a.store),
				Detector:     a.detector,
			}, addr)
			return srv.Run(ctx)
		},
	}

	cmd.Flags().StringVarP(&addr, "addr", "a", "", "listen address (overrides addr)")
	return cmd
}
