package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/goccy/go-json"
	"github.com/spf13/cobra"

	"github.com/qepting91/viralscout/internal/api"
	"github.com/qepting91/viralscout/internal/cache"
	"github.com/qepting91/viralscout/internal/collector"
	"github.com/qepting91/viralscout/internal/config"
	"github.com/qepting91/viralscout/internal/dashboard"
	"github.com/qepting91/viralscout/internal/domain"
	"github.com/qepting91/viralscout/internal/logging"
	"github.com/qepting91/viralscout/internal/supervisor"
	"github.com/qepting91/viralscout/internal/warmer"
)

var version = "dev"

var (
	flagConfig   string
	flagQuery    string
	flagPlatform string
	flagLimit    int
	flagMinEng   int
	flagCount    int
	flagPattern  string
)

var rootCmd = &cobra.Command{
	Use:           "viralscout",
	Short:         "Viral content aggregation across social platforms",
	Long:          "viralscout gathers trending posts from Twitter, Reddit, Dev.to and Threads, scores them for virality and serves the ranked list.",
	Version:       version,
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE:          runServe,
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API, dashboard and watchlist warmer",
	RunE:  runServe,
}

var fetchCmd = &cobra.Command{
	Use:   "fetch",
	Short: "Run one aggregation and print the result as JSON",
	RunE:  runFetch,
}

var trendsCmd = &cobra.Command{
	Use:   "trends",
	Short: "Print Twitter trending topics through the bridge",
	RunE:  runTrends,
}

var cacheCmd = &cobra.Command{
	Use:   "cache",
	Short: "Inspect or clear the result cache",
}

var cacheStatsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Print cache statistics",
	RunE:  runCacheStats,
}

var cacheFlushCmd = &cobra.Command{
	Use:   "flush",
	Short: "Delete cached results, optionally only those matching --pattern",
	RunE:  runCacheFlush,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&flagConfig, "config", "", "path to config file (overrides CONFIG_PATH)")

	fetchCmd.Flags().StringVarP(&flagQuery, "query", "q", "", "search query")
	fetchCmd.Flags().StringVarP(&flagPlatform, "platform", "p", domain.FilterAll, "all or a comma-separated list of platforms")
	fetchCmd.Flags().IntVarP(&flagLimit, "limit", "n", domain.DefaultLimit, "maximum posts returned")
	fetchCmd.Flags().IntVar(&flagMinEng, "min-engagement", 0, "minimum likes+comments+reposts")
	_ = fetchCmd.MarkFlagRequired("query")

	trendsCmd.Flags().IntVar(&flagCount, "count", 20, "number of trends")
	cacheFlushCmd.Flags().StringVar(&flagPattern, "pattern", "", "glob pattern, e.g. 'reddit:*'")

	cacheCmd.AddCommand(cacheStatsCmd, cacheFlushCmd)
	rootCmd.AddCommand(serveCmd, fetchCmd, trendsCmd, cacheCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		if errors.Is(err, domain.ErrInvalidQuery) {
			os.Exit(2)
		}
		os.Exit(1)
	}
}

// setup loads configuration and the logger. CLI commands log to stderr so
// stdout carries only their JSON output.
func setup(toStderr bool) (*config.Config, *slog.Logger, error) {
	if flagConfig != "" {
		os.Setenv(config.ConfigPathEnvVar, flagConfig)
	}
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, err
	}
	lc := logging.Config{Level: cfg.Logging.Level, Format: cfg.Logging.Format}
	if toStderr {
		lc.Output = os.Stderr
	}
	logging.Init(lc)
	logger := logging.NewSlogLogger()
	slog.SetDefault(logger)
	return cfg, logger, nil
}

func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}

func runServe(cmd *cobra.Command, _ []string) error {
	cfg, logger, err := setup(false)
	if err != nil {
		return err
	}
	ctx, stop := signalContext()
	defer stop()

	a, err := newApp(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer a.Close()

	router := api.NewRouter(a.orch, a.cache, api.Options{
		CORSOrigins: cfg.Server.CORSOrigins,
		RateLimit:   cfg.Server.RateLimit,
		Dashboard:   dashboard.Handler(cfg.Warmer.ExportPath, logger),
		Logger:      logger,
	})
	server := &http.Server{
		Addr:         net.JoinHostPort(cfg.Server.Host, strconv.Itoa(cfg.Server.Port)),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	tree := supervisor.NewTree(logger, supervisor.TreeConfig{ShutdownTimeout: cfg.Server.ShutdownTimeout})
	tree.AddAPIService(supervisor.NewHTTPServerService(server, cfg.Server.ShutdownTimeout))
	tree.AddBackgroundService(supervisor.NewSweeperService(a.cache, cfg.Cache.SweepInterval, logger))
	if cfg.Warmer.Enabled {
		tree.AddBackgroundService(warmer.NewRunner(a.orch, warmer.Config{
			Watchlist:  cfg.Warmer.Watchlist,
			Interval:   cfg.Warmer.Interval,
			Workers:    cfg.Warmer.Workers,
			ExportPath: cfg.Warmer.ExportPath,
		}, logger))
	}

	logger.Info("Starting server", "addr", server.Addr, "version", version, "warmer", cfg.Warmer.Enabled)
	if err := tree.Serve(ctx); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	logger.Info("Shutdown complete")
	return nil
}

func runFetch(cmd *cobra.Command, _ []string) error {
	q, err := domain.NewQuery(flagQuery, flagPlatform, flagLimit, flagMinEng)
	if err != nil {
		return err
	}
	cfg, logger, err := setup(true)
	if err != nil {
		return err
	}
	ctx, stop := signalContext()
	defer stop()

	a, err := newApp(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer a.Close()

	res, err := a.orch.Aggregate(ctx, q)
	if err != nil {
		return err
	}
	return printJSON(cmd, res)
}

func runTrends(cmd *cobra.Command, _ []string) error {
	cfg, _, err := setup(true)
	if err != nil {
		return err
	}
	bridge := collector.NewBridge(cfg)
	if bridge == nil {
		return fmt.Errorf("trends: %w (set TWITTER_BRIDGE_COMMAND)", domain.ErrStrategyNotEnabled)
	}
	ctx, stop := signalContext()
	defer stop()

	trends, err := bridge.Trending(ctx, flagCount)
	if err != nil {
		return fmt.Errorf("trends: %w", err)
	}
	return printJSON(cmd, trends)
}

func runCacheStats(cmd *cobra.Command, _ []string) error {
	cfg, logger, err := setup(true)
	if err != nil {
		return err
	}
	c := cache.NewFromConfig(cmd.Context(), cfg.Cache, logger)
	defer c.Close()
	return printJSON(cmd, c.Stats())
}

func runCacheFlush(cmd *cobra.Command, _ []string) error {
	cfg, logger, err := setup(true)
	if err != nil {
		return err
	}
	c := cache.NewFromConfig(cmd.Context(), cfg.Cache, logger)
	defer c.Close()

	if flagPattern == "" {
		c.Flush(cmd.Context())
		return printJSON(cmd, map[string]any{"flushed": true, "pending": c.Stats().PendingInvalidations})
	}
	n := c.DeletePattern(cmd.Context(), flagPattern)
	return printJSON(cmd, map[string]any{"pattern": flagPattern, "deleted": n, "pending": c.Stats().PendingInvalidations})
}

func printJSON(cmd *cobra.Command, v any) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
