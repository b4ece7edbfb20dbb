package app

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"mm_stats/internal/chart"
	"mm_stats/internal/domain"
	"mm_stats/internal/infra"
	"mm_stats/internal/infra/oasis"
	"mm_stats/internal/infra/prices"
	"mm_stats/internal/infra/storage"
	"mm_stats/internal/service"

	"github.com/ethereum/go-ethereum/ethclient"
)

// Flags are the command line overrides applied on top of the config file.
type Flags struct {
	ConfigPath string
	PastBlocks uint64
	Past       string
	Output     string
	PurgeCache bool
}

// Bootstrap orchestrates the application startup sequence
type Bootstrap struct {
	Config   *infra.Config
	Storage  *storage.Storage
	Source   *oasis.Source
	Analyzer *service.Analyzer

	client *ethclient.Client
}

// NewBootstrap creates a new Bootstrap instance
func NewBootstrap() *Bootstrap {
	return &Bootstrap{}
}

// Initialize loads and validates the configuration, then wires every collaborator.
func (b *Bootstrap) Initialize(ctx context.Context, flags Flags) error {
	slog.Info("🚀 Bootstrapping MM Stats...")

	// 1. Load Config
	path := flags.ConfigPath
	if path == "" {
		path = "configs/config.yaml"
	}
	cfg, err := infra.LoadConfig(path)
	if err != nil {
		return err // Let main handle the error
	}
	applyFlags(cfg, flags)
	if err := cfg.Validate(); err != nil {
		return err
	}
	b.Config = cfg

	// 2. Setup Logger
	slog.SetDefault(infra.NewLogger(cfg))

	// 3. Connect to the node
	src, client, err := oasis.Dial(ctx, cfg)
	if err != nil {
		return err
	}
	b.Source, b.client = src, client
	slog.Info("✅ Node connected", slog.String("contract", src.Contract()))

	// 4. Event cache
	var events domain.EventSource = src
	if cfg.Storage.Enabled {
		store, err := openCache(cfg.Storage.Path, src.Contract(), flags.PurgeCache)
		if err != nil {
			return err
		}
		b.Storage = store
		events = storage.NewCachedSource(src, store, src.Contract())
		slog.Info("✅ Event cache initialized")
	}

	// 5. Analyzer
	primary, alternative := priceSources(cfg)
	b.Analyzer = service.NewAnalyzer(events, service.Options{
		Tracked:  cfg.MarketMaker(),
		Base:     cfg.BaseAsset(),
		Quote:    cfg.QuoteAsset(),
		Timeline: cfg.Chart.Timeline,
	}).
		WithPrices(primary, alternative).
		WithRenderer(chart.NewRenderer(chartOptions(cfg))).
		WithClock(src)
	slog.Info("✅ Analyzer ready", slog.String("market_maker", string(cfg.MarketMaker())))

	return nil
}

// ResolveRange turns the configured window into a block range ending at the head.
func (b *Bootstrap) ResolveRange(ctx context.Context) (domain.BlockRange, error) {
	if b.Config.Window.PastBlocks > 0 {
		return b.Source.LatestRange(ctx, b.Config.Window.PastBlocks)
	}
	lookback, err := infra.ParseLookback(b.Config.Window.Past)
	if err != nil {
		return domain.BlockRange{}, err
	}
	return b.Source.RangeSince(ctx, time.Now().Add(-lookback))
}

// Close releases the node connection and the event cache.
func (b *Bootstrap) Close() {
	if b.client != nil {
		b.client.Close()
	}
	if b.Storage != nil {
		if err := b.Storage.Close(); err != nil {
			slog.Warn("Failed to close storage", slog.Any("error", err))
		}
	}
}

// openCache opens the event cache, dropping everything cached for contract when purge is set.
func openCache(path, contract string, purge bool) (*storage.Storage, error) {
	store, err := storage.NewStorage(path)
	if err != nil {
		return nil, err
	}
	if purge {
		if err := store.Purge(contract); err != nil {
			store.Close()
			return nil, fmt.Errorf("purge event cache: %w", err)
		}
		slog.Info("🧹 Event cache purged", slog.String("contract", contract))
	}
	return store, nil
}

// applyFlags overrides the file; a window flag replaces both window settings.
func applyFlags(cfg *infra.Config, flags Flags) {
	if flags.PastBlocks > 0 {
		cfg.Window.PastBlocks = flags.PastBlocks
		cfg.Window.Past = ""
	}
	if flags.Past != "" {
		cfg.Window.Past = flags.Past
		cfg.Window.PastBlocks = 0
	}
	if flags.Output != "" {
		cfg.Chart.Output = flags.Output
	}
}

func priceSources(cfg *infra.Config) (primary, alternative domain.PriceSource) {
	switch cfg.Prices.Source {
	case infra.PriceSourceGDAX:
		primary = prices.NewGDAXClient(cfg.Prices.GDAXURL, cfg.Prices.GDAXProduct, cfg.Prices.GranularitySec)
	case infra.PriceSourceFile:
		primary = prices.NewFileSource(cfg.Prices.File)
	}
	if cfg.Prices.AlternativeFile != "" {
		alternative = prices.NewFileSource(cfg.Prices.AlternativeFile)
	}
	return primary, alternative
}

func chartOptions(cfg *infra.Config) chart.Options {
	return chart.Options{
		Output:       cfg.Chart.Output,
		Width:        cfg.Chart.Width,
		Height:       cfg.Chart.Height,
		ShowFurthest: cfg.Chart.ShowFurthest,
		MinPrice:     cfg.Chart.MinPrice,
		MaxPrice:     cfg.Chart.MaxPrice,
	}
}

// Describe renders the effective window for the startup log.
func Describe(r domain.BlockRange) string {
	return fmt.Sprintf("blocks %d..%d (%d)", r.From, r.To, r.To-r.From+1)
}
