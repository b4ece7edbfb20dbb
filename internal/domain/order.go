package domain

import (
	"strconv"
	"strings"
	"time"
)

// OrderID identifies an order on the exchange contract. Ids are unique among open
// orders but may be reused once an order is closed.
type OrderID uint64

func (id OrderID) String() string {
	return strconv.FormatUint(uint64(id), 10)
}

// AssetID is a token contract address in 0x-prefixed hex.
type AssetID string

// Account is an externally owned account address in 0x-prefixed hex.
type Account string

// Normalize lowercases the address so ids from different sources compare equal.
func (a AssetID) Normalize() AssetID { return AssetID(strings.ToLower(string(a))) }

// Normalize lowercases the address so ids from different sources compare equal.
func (a Account) Normalize() Account { return Account(strings.ToLower(string(a))) }

// Timestamp is a unix time in seconds, as recorded by the exchange contract.
type Timestamp int64

// Time converts to a UTC time.Time.
func (t Timestamp) Time() time.Time {
	return time.Unix(int64(t), 0).UTC()
}

// TimestampOf converts a time.Time to a Timestamp, dropping sub-second precision.
func TimestampOf(t time.Time) Timestamp {
	return Timestamp(t.Unix())
}

// Order is a resting order as seen by the replay engine.
// SellAsset/SellAmount is what the owner offers, BuyAsset/BuyAmount what it wants in return.
type Order struct {
	ID         OrderID   `json:"id"`
	SellAsset  AssetID   `json:"sell_asset"`
	SellAmount Amount    `json:"sell_amount"`
	BuyAsset   AssetID   `json:"buy_asset"`
	BuyAmount  Amount    `json:"buy_amount"`
	Owner      Account   `json:"owner"`
	CreatedAt  Timestamp `json:"created_at"`
}

// IsOpen reports whether both sides still hold a positive amount.
func (o Order) IsOpen() bool {
	return o.SellAmount.IsPositive() && o.BuyAmount.IsPositive()
}

// BuyToSellPrice is BuyAmount / SellAmount: what the owner asks per unit sold.
func (o Order) BuyToSellPrice() (Amount, bool) {
	return o.BuyAmount.Div(o.SellAmount)
}

// SellToBuyPrice is SellAmount / BuyAmount: what the owner pays per unit bought.
func (o Order) SellToBuyPrice() (Amount, bool) {
	return o.SellAmount.Div(o.BuyAmount)
}

// IsPair reports whether the order sells `sell` for `buy`.
func (o Order) IsPair(sell, buy AssetID) bool {
	return o.SellAsset == sell && o.BuyAsset == buy
}
