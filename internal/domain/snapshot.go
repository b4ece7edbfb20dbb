package domain

// Snapshot is the tracked account's resting orders right after every event at
// Timestamp has been applied. Orders must not be mutated once the snapshot is built.
type Snapshot struct {
	Timestamp  Timestamp `json:"timestamp"`
	Orders     []Order   `json:"orders"`
	BaseAsset  AssetID   `json:"base_asset"`
	QuoteAsset AssetID   `json:"quote_asset"`
}

// Find returns the open order with the given id.
func (s Snapshot) Find(id OrderID) (Order, bool) {
	for _, o := range s.Orders {
		if o.ID == id {
			return o, true
		}
	}
	return Order{}, false
}

// SellOrders returns orders selling base for quote (asks).
func (s Snapshot) SellOrders() []Order {
	return s.filter(s.BaseAsset, s.QuoteAsset)
}

// BuyOrders returns orders selling quote for base (bids).
func (s Snapshot) BuyOrders() []Order {
	return s.filter(s.QuoteAsset, s.BaseAsset)
}

func (s Snapshot) filter(sell, buy AssetID) []Order {
	var out []Order
	for _, o := range s.Orders {
		if o.IsPair(sell, buy) {
			out = append(out, o)
		}
	}
	return out
}

// PricePoint is one observation of a reference market price (quote per base).
type PricePoint struct {
	Timestamp Timestamp `json:"timestamp"`
	Price     Amount    `json:"price"`
}

// BlockRange is an inclusive range of block numbers.
type BlockRange struct {
	From uint64 `json:"from"`
	To   uint64 `json:"to"`
}

// Contains reports whether r fully covers other.
func (r BlockRange) Contains(other BlockRange) bool {
	return r.From <= other.From && other.To <= r.To
}

// Valid reports whether the range is non-empty.
func (r BlockRange) Valid() bool {
	return r.From <= r.To
}
