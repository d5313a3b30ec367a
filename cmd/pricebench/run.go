package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"pricebench/internal/bench"
	"pricebench/internal/config"
	"pricebench/internal/fetcher"
	"pricebench/internal/logging"
	"pricebench/internal/metrics"
	"pricebench/internal/pool"
	"pricebench/internal/provider"
	"pricebench/internal/provider/cache"
	"pricebench/internal/provider/ratelimit"
	"pricebench/internal/provider/simulated"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the configured strategies and compare their timings",
	Example: `  pricebench run
  pricebench run --providers 3 --delay 200ms --strategies sequential,fanout
  PRICEBENCH_POOL_SIZE=2 pricebench run --strategies fanout-pool`,
	Args: cobra.NoArgs,
	RunE: runBench,
}

func init() {
	f := runCmd.Flags()
	f.String("config", "", "path to a JSON config file (default $CONFIG_FILE or ./config.json)")
	f.String("product", "", "product identifier to price")
	f.Int("providers", 0, "number of simulated providers")
	f.Duration("delay", 0, "simulated latency of one lookup")
	f.Int("pool-size", 0, "worker count of the bounded pool")
	f.String("strategies", "", "comma-separated strategies to run, in order")
	f.Duration("deferred-work", 0, "time spent on other work before awaiting a deferred lookup")
	f.String("log-level", "", "log level (trace, debug, info, warn, error)")
	f.String("log-format", "", "log format (console or json)")
	f.String("metrics-file", "", "write prometheus metrics in text format to this file after the run")
	rootCmd.AddCommand(runCmd)
}

// applyFlags copies explicitly set flags over the loaded config.
func applyFlags(cmd *cobra.Command, cfg *config.Config) {
	f := cmd.Flags()
	if f.Changed("product") {
		cfg.Bench.ProductID, _ = f.GetString("product")
	}
	if f.Changed("providers") {
		cfg.Bench.Providers, _ = f.GetInt("providers")
	}
	if f.Changed("delay") {
		cfg.Provider.Delay, _ = f.GetDuration("delay")
	}
	if f.Changed("pool-size") {
		cfg.Pool.Size, _ = f.GetInt("pool-size")
	}
	if f.Changed("strategies") {
		s, _ := f.GetString("strategies")
		cfg.Bench.Strategies = config.SplitCSV(s)
	}
	if f.Changed("deferred-work") {
		cfg.Bench.DeferredWork, _ = f.GetDuration("deferred-work")
	}
	if f.Changed("log-level") {
		cfg.Log.Level, _ = f.GetString("log-level")
	}
	if f.Changed("log-format") {
		cfg.Log.Format, _ = f.GetString("log-format")
	}
}

func runBench(cmd *cobra.Command, _ []string) error {
	path, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(path)
	if err != nil {
		return err
	}
	applyFlags(cmd, &cfg)
	if err := cfg.Validate(); err != nil {
		return err
	}
	strategies, err := parseStrategies(cfg.Bench.Strategies)
	if err != nil {
		return err
	}

	logger, err := logging.New(logging.Config{Level: cfg.Log.Level, Format: cfg.Log.Format}, cmd.ErrOrStderr())
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	reg := prometheus.NewRegistry()
	m := metrics.New(reg)

	wp, err := pool.New(cfg.Pool.Size, pool.WithMetrics(m), pool.WithLogger(logger))
	if err != nil {
		return err
	}
	defer func() {
		closeCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := wp.Close(closeCtx); err != nil {
			logger.Warn().Err(err).Msg("pool did not drain")
		}
	}()

	f, err := fetcher.New(buildProviders(cfg, logger),
		fetcher.WithPool(wp),
		fetcher.WithParallelism(cfg.Parallel.Parallelism),
		fetcher.WithLogger(logger),
		fetcher.WithMetrics(m),
	)
	if err != nil {
		return err
	}

	logger.Info().
		Str("product", cfg.Bench.ProductID).
		Int("providers", cfg.Bench.Providers).
		Dur("delay", cfg.Provider.Delay).
		Int("pool_size", cfg.Pool.Size).
		Msg("benchmark starting")

	out := cmd.OutOrStdout()
	r := &bench.Runner{
		Fetcher:      f,
		ProductID:    cfg.Bench.ProductID,
		DeferredWork: cfg.Bench.DeferredWork,
		Logger:       logger,
		Out:          out,
	}
	runs := r.RunAll(ctx, strategies)
	bench.PrintComparison(out, runs)
	bench.PrintSummary(out, runs)

	if mf, _ := cmd.Flags().GetString("metrics-file"); mf != "" {
		if err := prometheus.WriteToTextfile(mf, reg); err != nil {
			return fmt.Errorf("write metrics: %w", err)
		}
	}

	if code := bench.ExitCode(runs, len(strategies)); code != 0 {
		return exitError{code: code}
	}
	return nil
}

func parseStrategies(names []string) ([]fetcher.Strategy, error) {
	out := make([]fetcher.Strategy, 0, len(names))
	for _, n := range names {
		s, err := fetcher.ParseStrategy(n)
		if err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, nil
}

// buildProviders creates "<prefix> 1".."<prefix> N" and wraps each in the
// rate limit and cache decorators the config enables.
func buildProviders(cfg config.Config, logger zerolog.Logger) []provider.Provider {
	ps := make([]provider.Provider, cfg.Bench.Providers)
	for i := range ps {
		name := fmt.Sprintf("%s %d", cfg.Bench.NamePrefix, i+1)
		var p provider.Provider = simulated.New(name,
			simulated.WithDelay(cfg.Provider.Delay),
			simulated.WithFallback(cfg.Provider.Fallback),
			simulated.WithLogger(logger),
		)
		switch {
		case cfg.Provider.MaxRequestsPerMinute > 0:
			p = &ratelimit.TokenBucketProvider{
				P:  p,
				TB: ratelimit.PerMinute(cfg.Provider.MaxRequestsPerMinute, cfg.Provider.Burst),
			}
		case cfg.Provider.MinInterval > 0:
			p = &ratelimit.MinInterval{P: p, Interval: cfg.Provider.MinInterval}
		}
		if cfg.Provider.CacheTTL > 0 {
			p = &cache.Provider{P: p, TTL: cfg.Provider.CacheTTL, MaxItems: cfg.Provider.CacheMaxItems}
		}
		ps[i] = p
	}
	return ps
}
