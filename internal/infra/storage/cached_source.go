package storage

import (
	"context"
	"fmt"
	"log/slog"

	"mm_stats/internal/domain"
)

// CachedSource serves events from Storage when a block range was fetched
// before and falls through to the upstream source otherwise.
type CachedSource struct {
	upstream domain.EventSource
	store    *Storage
	contract string
	logger   *slog.Logger
}

// NewCachedSource wraps upstream. contract keys the cache so one database can
// hold several exchange deployments.
func NewCachedSource(upstream domain.EventSource, store *Storage, contract string) *CachedSource {
	return &CachedSource{
		upstream: upstream,
		store:    store,
		contract: contract,
		logger:   slog.Default().With("module", "event_cache"),
	}
}

func (c *CachedSource) FetchMakeEvents(ctx context.Context, r domain.BlockRange) ([]domain.Make, error) {
	return cached(ctx, c, domain.KindMake, r, c.upstream.FetchMakeEvents, makeRecord, makeFromRecord)
}

func (c *CachedSource) FetchTakeEvents(ctx context.Context, r domain.BlockRange) ([]domain.Take, error) {
	return cached(ctx, c, domain.KindTake, r, c.upstream.FetchTakeEvents, takeRecord, takeFromRecord)
}

func (c *CachedSource) FetchKillEvents(ctx context.Context, r domain.BlockRange) ([]domain.Kill, error) {
	return cached(ctx, c, domain.KindKill, r, c.upstream.FetchKillEvents, killRecord, killFromRecord)
}

func cached[E any](
	ctx context.Context,
	c *CachedSource,
	kind domain.EventKind,
	r domain.BlockRange,
	fetch func(context.Context, domain.BlockRange) ([]E, error),
	encode func(E) domain.EventRecord,
	decode func(domain.EventRecord) (E, error),
) ([]E, error) {
	if !r.Valid() {
		return nil, fmt.Errorf("%w: %d..%d", domain.ErrInvalidRange, r.From, r.To)
	}

	hit, err := c.store.Covers(c.contract, kind, r)
	if err != nil {
		// A broken cache must not block the analysis.
		c.logger.Warn("Cache lookup failed", slog.String("kind", kind.String()), slog.Any("error", err))
	}
	if hit {
		records, err := c.store.LoadEvents(c.contract, kind, r)
		if err == nil {
			out := make([]E, 0, len(records))
			for _, rec := range records {
				ev, err := decode(rec)
				if err != nil {
					return nil, err
				}
				out = append(out, ev)
			}
			c.logger.Debug("Cache hit", slog.String("kind", kind.String()), slog.Int("count", len(out)))
			return out, nil
		}
		c.logger.Warn("Cache load failed", slog.String("kind", kind.String()), slog.Any("error", err))
	}

	events, err := fetch(ctx, r)
	if err != nil {
		return nil, err
	}

	records := make([]domain.EventRecord, 0, len(events))
	for _, ev := range events {
		records = append(records, encode(ev))
	}
	if err := c.store.SaveEvents(c.contract, kind, r, records); err != nil {
		c.logger.Warn("Cache save failed", slog.String("kind", kind.String()), slog.Any("error", err))
	}
	return events, nil
}
