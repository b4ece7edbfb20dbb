package domain

import (
	"context"
	"time"
)

// EventSource supplies the exchange's order-book events for a block range,
// each with its timestamp already resolved.
type EventSource interface {
	FetchMakeEvents(ctx context.Context, r BlockRange) ([]Make, error)
	FetchTakeEvents(ctx context.Context, r BlockRange) ([]Take, error)
	FetchKillEvents(ctx context.Context, r BlockRange) ([]Kill, error)
}

// PriceSource supplies reference market prices, ordered by timestamp.
type PriceSource interface {
	FetchPrices(ctx context.Context, start, end time.Time) ([]PricePoint, error)
}

// ChartRenderer turns a snapshot timeline and reference prices into an artifact.
type ChartRenderer interface {
	Render(snapshots []Snapshot, prices, alternativePrices []PricePoint) error
}
