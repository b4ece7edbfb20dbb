package engine

import (
	"fmt"
	"log/slog"
	"sort"

	"mm_stats/internal/domain"
)

// Replayer rebuilds the tracked account's order book from Make/Take/Kill events.
// It holds no state between calls, so one instance can serve concurrent callers.
type Replayer struct {
	tracked domain.Account
	base    domain.AssetID
	quote   domain.AssetID
	logger  *slog.Logger
}

// NewReplayer creates a replayer for one market maker and asset pair.
func NewReplayer(tracked domain.Account, base, quote domain.AssetID) *Replayer {
	return &Replayer{
		tracked: tracked,
		base:    base,
		quote:   quote,
		logger:  slog.Default().With("module", "replayer"),
	}
}

// step groups the events sharing one timestamp.
type step struct {
	ts    domain.Timestamp
	makes []domain.Make
	takes []domain.Take
	kills []domain.Kill
}

// Replay returns one snapshot per distinct event timestamp, in ascending order.
// A Take whose assets disagree with the order it fills aborts the whole replay:
// the returned slice is nil and the error is a *domain.ConsistencyError.
func (r *Replayer) Replay(events []domain.Event) ([]domain.Snapshot, error) {
	steps, err := groupByTimestamp(events)
	if err != nil {
		return nil, err
	}

	snapshots := make([]domain.Snapshot, 0, len(steps))
	var book []domain.Order
	for _, st := range steps {
		next, err := r.apply(book, st)
		if err != nil {
			r.logger.Error("Replay aborted",
				slog.Int64("ts", int64(st.ts)),
				slog.Int("snapshots_discarded", len(snapshots)),
				slog.Any("error", err),
			)
			return nil, err
		}
		snapshots = append(snapshots, domain.Snapshot{
			Timestamp:  st.ts,
			Orders:     next,
			BaseAsset:  r.base,
			QuoteAsset: r.quote,
		})
		book = next
	}

	r.logger.Debug("Replay finished",
		slog.Int("events", len(events)),
		slog.Int("snapshots", len(snapshots)),
	)
	return snapshots, nil
}

// apply derives the book after one timestamp. prev is never written to.
func (r *Replayer) apply(prev []domain.Order, st step) ([]domain.Order, error) {
	book := make([]domain.Order, 0, len(prev)+len(st.makes))
	book = append(book, prev...)

	// 1. Makes
	for _, m := range st.makes {
		book = r.applyMake(book, m)
	}

	// 2. Only the tracked account's liquidity is modelled
	book = r.ownedOnly(book)

	// 3. Takes
	for _, t := range st.takes {
		var err error
		if book, err = applyTake(book, t); err != nil {
			return nil, err
		}
	}

	// 4. Kills
	for _, k := range st.kills {
		book = applyKill(book, k)
	}

	return book, nil
}

func (r *Replayer) applyMake(book []domain.Order, m domain.Make) []domain.Order {
	order := m.Order()
	if order.Owner != r.tracked {
		// the owner filter drops it anyway; it must not displace a tracked order sharing its id
		return append(book, order)
	}
	for i := range book {
		if book[i].ID == order.ID {
			// id reused while still open: the new order supersedes the old one
			book[i] = order
			return book
		}
	}
	return append(book, order)
}

func (r *Replayer) ownedOnly(book []domain.Order) []domain.Order {
	kept := book[:0]
	for _, o := range book {
		if o.Owner == r.tracked {
			kept = append(kept, o)
		}
	}
	return kept
}

func applyTake(book []domain.Order, t domain.Take) ([]domain.Order, error) {
	idx := indexOf(book, t.OrderID)
	if idx < 0 {
		// foreign, closed or never seen
		return book, nil
	}

	order := book[idx]
	if t.PayAsset != order.SellAsset {
		return nil, &domain.ConsistencyError{
			OrderID: t.OrderID, Timestamp: t.Ts, Field: "pay_asset",
			Want: order.SellAsset, Got: t.PayAsset,
		}
	}
	if t.BuyAsset != order.BuyAsset {
		return nil, &domain.ConsistencyError{
			OrderID: t.OrderID, Timestamp: t.Ts, Field: "buy_asset",
			Want: order.BuyAsset, Got: t.BuyAsset,
		}
	}

	order.SellAmount = order.SellAmount.Sub(t.TakeAmount)
	order.BuyAmount = order.BuyAmount.Sub(t.GiveAmount)
	if !order.IsOpen() {
		return append(book[:idx], book[idx+1:]...), nil
	}
	book[idx] = order
	return book, nil
}

func applyKill(book []domain.Order, k domain.Kill) []domain.Order {
	idx := indexOf(book, k.OrderID)
	if idx < 0 {
		return book
	}
	return append(book[:idx], book[idx+1:]...)
}

func indexOf(book []domain.Order, id domain.OrderID) int {
	for i := range book {
		if book[i].ID == id {
			return i
		}
	}
	return -1
}

// groupByTimestamp buckets events into steps sorted by timestamp. Inside a step each
// kind is ordered by chain position, then order id, so input order never matters.
func groupByTimestamp(events []domain.Event) ([]step, error) {
	byTs := make(map[domain.Timestamp]*step)
	for _, ev := range events {
		st, ok := byTs[ev.GetTs()]
		if !ok {
			st = &step{ts: ev.GetTs()}
			byTs[ev.GetTs()] = st
		}

		switch e := ev.(type) {
		case domain.Make:
			st.makes = append(st.makes, e)
		case domain.Take:
			st.takes = append(st.takes, e)
		case domain.Kill:
			st.kills = append(st.kills, e)
		default:
			return nil, fmt.Errorf("%w: %T", domain.ErrUnknownEvent, ev)
		}
	}

	steps := make([]step, 0, len(byTs))
	for _, st := range byTs {
		sortEvents(st.makes)
		sortEvents(st.takes)
		sortEvents(st.kills)
		steps = append(steps, *st)
	}
	sort.Slice(steps, func(i, j int) bool { return steps[i].ts < steps[j].ts })
	return steps, nil
}

func sortEvents[E domain.Event](evs []E) {
	sort.SliceStable(evs, func(i, j int) bool {
		pi, pj := domain.PositionOf(evs[i]), domain.PositionOf(evs[j])
		if pi != pj {
			return pi.Less(pj)
		}
		return evs[i].GetOrderID() < evs[j].GetOrderID()
	})
}
