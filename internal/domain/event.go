package domain

// EventKind tags the three order-book events emitted by the exchange contract.
type EventKind uint8

const (
	KindMake EventKind = iota + 1
	KindTake
	KindKill
)

// String returns the string representation of EventKind
func (k EventKind) String() string {
	switch k {
	case KindMake:
		return "MAKE"
	case KindTake:
		return "TAKE"
	case KindKill:
		return "KILL"
	default:
		return "UNKNOWN"
	}
}

// Event is a closed sum over Make, Take and Kill. Consumers switch over the three
// concrete types and treat anything else as ErrUnknownEvent.
type Event interface {
	GetKind() EventKind
	GetTs() Timestamp
	GetOrderID() OrderID
	position() LogPosition
}

// LogPosition locates an event on chain. It only breaks ties between events that
// share a timestamp; the zero value is fine for events that do not come from logs.
type LogPosition struct {
	Block    uint64 `json:"block"`
	LogIndex uint   `json:"log_index"`
}

// Less orders positions by block, then by log index.
func (p LogPosition) Less(o LogPosition) bool {
	if p.Block != o.Block {
		return p.Block < o.Block
	}
	return p.LogIndex < o.LogIndex
}

// BaseEvent carries the fields shared by every variant.
type BaseEvent struct {
	Ts      Timestamp   `json:"ts"`
	OrderID OrderID     `json:"order_id"`
	Pos     LogPosition `json:"pos"`
}

func (b BaseEvent) GetTs() Timestamp      { return b.Ts }
func (b BaseEvent) GetOrderID() OrderID   { return b.OrderID }
func (b BaseEvent) position() LogPosition { return b.Pos }

// Make places a new order.
type Make struct {
	BaseEvent
	Maker     Account `json:"maker"`
	PayAsset  AssetID `json:"pay_asset"`
	PayAmount Amount  `json:"pay_amount"`
	BuyAsset  AssetID `json:"buy_asset"`
	BuyAmount Amount  `json:"buy_amount"`
}

// Take fills an order. TakeAmount leaves the order's sell side, GiveAmount its buy side.
type Take struct {
	BaseEvent
	PayAsset   AssetID `json:"pay_asset"`
	BuyAsset   AssetID `json:"buy_asset"`
	TakeAmount Amount  `json:"take_amount"`
	GiveAmount Amount  `json:"give_amount"`
}

// Kill cancels an order.
type Kill struct {
	BaseEvent
}

func (Make) GetKind() EventKind { return KindMake }
func (Take) GetKind() EventKind { return KindTake }
func (Kill) GetKind() EventKind { return KindKill }

// Order builds the resting order a Make event describes.
func (m Make) Order() Order {
	return Order{
		ID:         m.OrderID,
		SellAsset:  m.PayAsset,
		SellAmount: m.PayAmount,
		BuyAsset:   m.BuyAsset,
		BuyAmount:  m.BuyAmount,
		Owner:      m.Maker,
		CreatedAt:  m.Ts,
	}
}

// PositionOf exposes an event's on-chain position to other packages.
func PositionOf(ev Event) LogPosition {
	return ev.position()
}

// Merge concatenates the three event streams into one batch.
func Merge(makes []Make, takes []Take, kills []Kill) []Event {
	out := make([]Event, 0, len(makes)+len(takes)+len(kills))
	for _, m := range makes {
		out = append(out, m)
	}
	for _, t := range takes {
		out = append(out, t)
	}
	for _, k := range kills {
		out = append(out, k)
	}
	return out
}
