package main

import (
	"fmt"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	"github.com/dsandbox/rewriter/config"
	"github.com/dsandbox/rewriter/tracelog"
)

func newCacheStatsCommand() *cobra.Command {
	var metricsAddr string
	cmd := &cobra.Command{
		Use:   "cache-stats",
		Short: "Report bytecode cache hit/miss counts, optionally serving /metrics",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCacheStats(cmd, metricsAddr)
		},
	}
	cmd.Flags().StringVar(&metricsAddr, "metrics-addr", "", "if set, serve /metrics on this address (e.g. :9090) and block until interrupted")
	return cmd
}

func runCacheStats(cmd *cobra.Command, metricsAddr string) error {
	f, err := config.Load(configPath)
	if err != nil {
		return err
	}
	applySeverityOverride(f)

	registry := prometheus.NewRegistry()
	sb, err := config.Build(f, config.WithMetricsRegisterer(registry))
	if err != nil {
		return fmt.Errorf("build sandbox configuration: %w", err)
	}

	hits, misses := sb.Cache.Stats()
	fmt.Fprintf(cmd.OutOrStdout(), "runID=%s hits=%d misses=%d\n", sb.RunID, hits, misses)

	if metricsAddr == "" {
		return nil
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))
	tracelog.Info("serving metrics", "addr", metricsAddr)
	return http.ListenAndServe(metricsAddr, mux)
}
