package stats

import "mm_stats/internal/domain"

// Stats summarizes the tracked account's quotes in one snapshot.
// A nil price means the snapshot has no order of that class.
type Stats struct {
	Timestamp         domain.Timestamp `json:"timestamp"`
	ClosestSellPrice  *domain.Amount   `json:"closest_sell_price,omitempty"`
	FurthestSellPrice *domain.Amount   `json:"furthest_sell_price,omitempty"`
	ClosestBuyPrice   *domain.Amount   `json:"closest_buy_price,omitempty"`
	FurthestBuyPrice  *domain.Amount   `json:"furthest_buy_price,omitempty"`
	SellOrders        int              `json:"sell_orders"`
	BuyOrders         int              `json:"buy_orders"`
}

// Compute derives best and worst bid/ask prices from a snapshot.
// Sell orders are priced buy/sell (quote per base asked), buy orders sell/buy
// (quote per base bid). The closest ask is the minimum, the closest bid the maximum.
func Compute(s domain.Snapshot) Stats {
	sells := s.SellOrders()
	buys := s.BuyOrders()

	st := Stats{
		Timestamp:  s.Timestamp,
		SellOrders: len(sells),
		BuyOrders:  len(buys),
	}

	st.ClosestSellPrice, st.FurthestSellPrice = bounds(sells, domain.Order.BuyToSellPrice)
	st.FurthestBuyPrice, st.ClosestBuyPrice = bounds(buys, domain.Order.SellToBuyPrice)
	return st
}

// bounds returns the minimum and maximum price over orders.
func bounds(orders []domain.Order, price func(domain.Order) (domain.Amount, bool)) (lo, hi *domain.Amount) {
	for _, o := range orders {
		p, ok := price(o)
		if !ok {
			continue
		}
		if lo == nil || p.LessThan(*lo) {
			v := p
			lo = &v
		}
		if hi == nil || p.GreaterThan(*hi) {
			v := p
			hi = &v
		}
	}
	return lo, hi
}

// Spread is ClosestSellPrice - ClosestBuyPrice, or nil when either side is empty.
// It goes negative when the account's own quotes cross.
func (s Stats) Spread() *domain.Amount {
	if s.ClosestSellPrice == nil || s.ClosestBuyPrice == nil {
		return nil
	}
	v := s.ClosestSellPrice.Sub(*s.ClosestBuyPrice)
	return &v
}

// Series maps every snapshot of a timeline to its statistics, preserving order.
func Series(snapshots []domain.Snapshot) []Stats {
	out := make([]Stats, len(snapshots))
	for i, s := range snapshots {
		out[i] = Compute(s)
	}
	return out
}

// Summary aggregates a whole series for logging.
type Summary struct {
	Snapshots      int            `json:"snapshots"`
	MinClosestSell *domain.Amount `json:"min_closest_sell,omitempty"`
	MaxClosestSell *domain.Amount `json:"max_closest_sell,omitempty"`
	MinClosestBuy  *domain.Amount `json:"min_closest_buy,omitempty"`
	MaxClosestBuy  *domain.Amount `json:"max_closest_buy,omitempty"`
	EmptySnapshots int            `json:"empty_snapshots"`
	MaxOpenOrders  int            `json:"max_open_orders"`
}

// Summarize folds a series into a Summary.
func Summarize(series []Stats) Summary {
	sum := Summary{Snapshots: len(series)}
	for _, st := range series {
		open := st.SellOrders + st.BuyOrders
		if open == 0 {
			sum.EmptySnapshots++
		}
		if open > sum.MaxOpenOrders {
			sum.MaxOpenOrders = open
		}
		sum.MinClosestSell, sum.MaxClosestSell = widen(sum.MinClosestSell, sum.MaxClosestSell, st.ClosestSellPrice)
		sum.MinClosestBuy, sum.MaxClosestBuy = widen(sum.MinClosestBuy, sum.MaxClosestBuy, st.ClosestBuyPrice)
	}
	return sum
}

func widen(lo, hi, p *domain.Amount) (*domain.Amount, *domain.Amount) {
	if p == nil {
		return lo, hi
	}
	if lo == nil || p.LessThan(*lo) {
		lo = p
	}
	if hi == nil || p.GreaterThan(*hi) {
		hi = p
	}
	return lo, hi
}
