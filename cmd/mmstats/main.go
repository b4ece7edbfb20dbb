package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"mm_stats/internal/app"
	"mm_stats/internal/domain"
	"mm_stats/internal/infra"
)

func main() {
	var flags app.Flags
	flag.StringVar(&flags.ConfigPath, "config", "configs/config.yaml", "path to the YAML config file")
	flag.Uint64Var(&flags.PastBlocks, "past-blocks", 0, "analyze this many most recent blocks")
	flag.StringVar(&flags.Past, "past", "", "analyze a trailing time window, e.g. 90m, 12h, 3d, 2w")
	flag.StringVar(&flags.Output, "o", "", "chart output PNG path")
	flag.BoolVar(&flags.PurgeCache, "purge-cache", false, "drop cached events of the configured contract before fetching")
	flag.Parse()

	os.Exit(run(flags))
}

// run owns every deferred cleanup so they finish before main exits.
func run(flags app.Flags) int {
	// Graceful Shutdown Context
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// 1. System Bootstrapping
	bootstrap := app.NewBootstrap()
	defer bootstrap.Close()
	if err := bootstrap.Initialize(ctx, flags); err != nil {
		slog.Error("❌ Bootstrapping failed", slog.Any("error", err))
		return 1
	}

	// 2. Window
	r, err := bootstrap.ResolveRange(ctx)
	if err != nil {
		slog.Error("❌ Failed to resolve block range", slog.Any("error", err))
		return 1
	}
	slog.InfoContext(ctx, "🔎 Analyzing", slog.String("window", app.Describe(r)))

	// 3. Analysis
	res, err := bootstrap.Analyzer.Run(ctx, r)
	logMetrics(ctx)
	if err != nil {
		var ce *domain.ConsistencyError
		if errors.As(err, &ce) {
			slog.Error("❌ Event history is inconsistent",
				slog.String("order", ce.OrderID.String()),
				slog.Int64("timestamp", int64(ce.Timestamp)),
				slog.String("field", ce.Field),
			)
		} else {
			slog.Error("❌ Analysis failed", slog.Any("error", err))
		}
		return 1
	}

	// Report goes to stdout, logs to stderr.
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(res.Summary); err != nil {
		slog.Error("Failed to write summary", slog.Any("error", err))
		return 1
	}

	slog.InfoContext(ctx, "✨ Done", slog.String("chart", bootstrap.Config.Chart.Output))
	return 0
}

func logMetrics(ctx context.Context) {
	m := infra.GlobalMetrics.Snapshot()
	slog.InfoContext(ctx, "📊 Metrics",
		slog.Uint64("makes", m.MakesFetched),
		slog.Uint64("takes", m.TakesFetched),
		slog.Uint64("kills", m.KillsFetched),
		slog.Uint64("snapshots", m.SnapshotsProduced),
		slog.Uint64("consistency_violations", m.ConsistencyViolations),
		slog.Uint64("retries", m.RetriesTotal),
		slog.Uint64("errors", m.ErrorsTotal),
		slog.Int64("avg_fetch_latency_ns", m.AvgFetchLatencyNs),
	)
}
