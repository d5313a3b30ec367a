package main

import (
	"bytes"
	"fmt"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"pricebench/internal/config"
	apperrors "pricebench/internal/errors"
	"pricebench/internal/fetcher"
	"pricebench/internal/provider/cache"
	"pricebench/internal/provider/ratelimit"
)

func TestExitCodeFor(t *testing.T) {
	require.Equal(t, 130, exitCodeFor(exitError{code: 130}))
	require.Equal(t, apperrors.ExitErrorConfig, exitCodeFor(apperrors.NewConfigError("pool.size", "bad")))
	require.Equal(t, apperrors.ExitErrorConfig, exitCodeFor(fmt.Errorf("wrapped: %w", apperrors.NewConfigError("x", "y"))))
	require.Equal(t, apperrors.ExitErrorGeneric, exitCodeFor(fmt.Errorf("boom")))
}

func TestBuildProviders(t *testing.T) {
	cfg := config.Default()
	cfg.Bench.Providers = 3
	ps := buildProviders(cfg, zerolog.Nop())
	require.Len(t, ps, 3)
	require.Equal(t, "Provider 1", ps[0].Name())
	require.Equal(t, "Provider 3", ps[2].Name())

	cfg.Provider.CacheTTL = time.Minute
	cfg.Provider.MaxRequestsPerMinute = 60
	ps = buildProviders(cfg, zerolog.Nop())
	c, ok := ps[0].(*cache.Provider)
	require.True(t, ok)
	_, ok = c.P.(*ratelimit.TokenBucketProvider)
	require.True(t, ok)

	cfg.Provider.MaxRequestsPerMinute = 0
	cfg.Provider.MinInterval = time.Millisecond
	cfg.Provider.CacheTTL = 0
	ps = buildProviders(cfg, zerolog.Nop())
	_, ok = ps[0].(*ratelimit.MinInterval)
	require.True(t, ok)
}

func TestParseStrategies(t *testing.T) {
	got, err := parseStrategies([]string{"fanout", "sequential"})
	require.NoError(t, err)
	require.Equal(t, []fetcher.Strategy{fetcher.FanOut, fetcher.Sequential}, got)

	_, err = parseStrategies([]string{"fanout", "nope"})
	var ce apperrors.ConfigError
	require.ErrorAs(t, err, &ce)
}

func TestStrategiesCommand(t *testing.T) {
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetArgs([]string{"strategies"})
	t.Cleanup(func() { rootCmd.SetArgs(nil); rootCmd.SetOut(nil) })

	require.NoError(t, rootCmd.Execute())
	require.Equal(t, "sequential\nparallel\ndeferred\nfanout\nfanout-pool\n", out.String())
}

func TestRunCommand_SmallBench(t *testing.T) {
	t.Setenv("CONFIG_FILE", "")
	t.Chdir(t.TempDir())

	var out, errOut bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&errOut)
	rootCmd.SetArgs([]string{"run",
		"--providers", "2", "--delay", "5ms", "--deferred-work", "1ms",
		"--strategies", "sequential,fanout-pool", "--log-format", "json",
	})
	t.Cleanup(func() { rootCmd.SetArgs(nil); rootCmd.SetOut(nil); rootCmd.SetErr(nil) })

	require.NoError(t, rootCmd.Execute())
	text := out.String()
	require.Contains(t, text, "Iterative synchronous")
	require.Contains(t, text, "Asynchronous with worker pool")
	require.Contains(t, text, "Provider 2 price is ")
	require.Contains(t, text, "Comparison")
	require.Contains(t, errOut.String(), `"message":"benchmark starting"`)
}

func TestRunCommand_BadStrategyIsConfigError(t *testing.T) {
	t.Setenv("CONFIG_FILE", "")
	t.Chdir(t.TempDir())

	rootCmd.SetArgs([]string{"run", "--strategies", "bogus"})
	t.Cleanup(func() { rootCmd.SetArgs(nil) })

	err := rootCmd.Execute()
	require.Equal(t, apperrors.ExitErrorConfig, exitCodeFor(err))
}
