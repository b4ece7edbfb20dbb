package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"mm_stats/internal/domain"
	"mm_stats/internal/engine"
	"mm_stats/internal/infra"
	"mm_stats/internal/stats"

	"golang.org/x/sync/errgroup"
)

// BlockClock resolves block numbers to their header time.
type BlockClock interface {
	BlockTime(ctx context.Context, number uint64) (time.Time, error)
}

// Options selects whose orders are reconstructed and on which market.
type Options struct {
	Tracked domain.Account
	Base    domain.AssetID
	Quote   domain.AssetID

	// Timeline, when set, is the path the snapshot sequence is dumped to as JSON.
	Timeline string
}

// Result is everything one analysis run produced.
type Result struct {
	Range             domain.BlockRange
	Snapshots         []domain.Snapshot
	Series            []stats.Stats
	Summary           stats.Summary
	Prices            []domain.PricePoint
	AlternativePrices []domain.PricePoint
}

// Analyzer runs the fetch -> replay -> statistics -> chart pipeline.
// Timelines are cached per block range; snapshots are immutable so cached
// results are shared between callers.
type Analyzer struct {
	mu        sync.RWMutex
	timelines map[domain.BlockRange][]domain.Snapshot

	events    domain.EventSource
	prices    domain.PriceSource
	altPrices domain.PriceSource
	renderer  domain.ChartRenderer
	clock     BlockClock
	replayer  *engine.Replayer
	opts      Options
	logger    *slog.Logger
}

// NewAnalyzer creates an analyzer over events. Prices, chart and clock are optional.
func NewAnalyzer(events domain.EventSource, opts Options) *Analyzer {
	return &Analyzer{
		timelines: make(map[domain.BlockRange][]domain.Snapshot),
		events:    events,
		replayer:  engine.NewReplayer(opts.Tracked, opts.Base, opts.Quote),
		opts:      opts,
		logger:    slog.Default().With("module", "analyzer"),
	}
}

// WithPrices sets the reference price source and an optional alternative one.
func (a *Analyzer) WithPrices(prices, alternative domain.PriceSource) *Analyzer {
	a.prices = prices
	a.altPrices = alternative
	return a
}

// WithRenderer sets the chart renderer.
func (a *Analyzer) WithRenderer(r domain.ChartRenderer) *Analyzer {
	a.renderer = r
	return a
}

// WithClock lets the price window follow block times instead of event times.
func (a *Analyzer) WithClock(c BlockClock) *Analyzer {
	a.clock = c
	return a
}

// Timeline fetches the three event kinds for r concurrently and replays them.
func (a *Analyzer) Timeline(ctx context.Context, r domain.BlockRange) ([]domain.Snapshot, error) {
	if !r.Valid() {
		return nil, fmt.Errorf("%w: %d..%d", domain.ErrInvalidRange, r.From, r.To)
	}

	a.mu.RLock()
	cached, ok := a.timelines[r]
	a.mu.RUnlock()
	if ok {
		a.logger.Debug("Timeline cache hit", slog.Uint64("from", r.From), slog.Uint64("to", r.To))
		return cached, nil
	}

	var (
		makes []domain.Make
		takes []domain.Take
		kills []domain.Kill
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		makes, err = a.events.FetchMakeEvents(gctx, r)
		return err
	})
	g.Go(func() (err error) {
		takes, err = a.events.FetchTakeEvents(gctx, r)
		return err
	})
	g.Go(func() (err error) {
		kills, err = a.events.FetchKillEvents(gctx, r)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("fetch events %d..%d: %w", r.From, r.To, err)
	}

	a.logger.Info("Events fetched",
		slog.Int("makes", len(makes)),
		slog.Int("takes", len(takes)),
		slog.Int("kills", len(kills)),
	)

	snapshots, err := a.replayer.Replay(domain.Merge(makes, takes, kills))
	if err != nil {
		if errors.Is(err, domain.ErrConsistencyViolation) {
			infra.GlobalMetrics.RecordConsistencyViolation()
		}
		return nil, err
	}
	infra.GlobalMetrics.RecordSnapshots(len(snapshots))

	a.mu.Lock()
	a.timelines[r] = snapshots
	a.mu.Unlock()

	return snapshots, nil
}

// Run analyzes r end to end. A failing price source only drops the overlay;
// event or replay failures abort the run.
func (a *Analyzer) Run(ctx context.Context, r domain.BlockRange) (*Result, error) {
	snapshots, err := a.Timeline(ctx, r)
	if err != nil {
		return nil, err
	}

	res := &Result{
		Range:     r,
		Snapshots: snapshots,
		Series:    stats.Series(snapshots),
	}
	res.Summary = stats.Summarize(res.Series)
	a.logger.Info("Timeline reconstructed",
		slog.Int("snapshots", res.Summary.Snapshots),
		slog.Int("empty", res.Summary.EmptySnapshots),
		slog.Int("max_open_orders", res.Summary.MaxOpenOrders),
	)

	if a.opts.Timeline != "" {
		if err := engine.DumpTimeline(a.opts.Timeline, a.opts.Tracked, snapshots); err != nil {
			return nil, err
		}
	}

	start, end, ok := a.window(ctx, r, snapshots)
	if ok {
		res.Prices = a.fetchPrices(ctx, a.prices, start, end, "prices")
		res.AlternativePrices = a.fetchPrices(ctx, a.altPrices, start, end, "alternative_prices")
	}

	if a.renderer != nil {
		if err := a.renderer.Render(snapshots, res.Prices, res.AlternativePrices); err != nil {
			return nil, fmt.Errorf("render chart: %w", err)
		}
	}
	return res, nil
}

// window is the time span prices are fetched for.
func (a *Analyzer) window(ctx context.Context, r domain.BlockRange, snapshots []domain.Snapshot) (time.Time, time.Time, bool) {
	if a.clock != nil {
		start, err1 := a.clock.BlockTime(ctx, r.From)
		end, err2 := a.clock.BlockTime(ctx, r.To)
		err := errors.Join(err1, err2)
		if err == nil {
			return start, end, true
		}
		a.logger.Warn("Block time lookup failed, using event times", slog.Any("error", err))
	}
	if len(snapshots) == 0 {
		return time.Time{}, time.Time{}, false
	}
	return snapshots[0].Timestamp.Time(), snapshots[len(snapshots)-1].Timestamp.Time(), true
}

func (a *Analyzer) fetchPrices(ctx context.Context, src domain.PriceSource, start, end time.Time, name string) []domain.PricePoint {
	if src == nil {
		return nil
	}
	points, err := src.FetchPrices(ctx, start, end)
	if err != nil {
		a.logger.Warn("Price fetch failed, chart drawn without it", slog.String("source", name), slog.Any("error", err))
		return nil
	}
	return points
}
