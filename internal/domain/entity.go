package domain

import "time"

// EventRecord is the persisted form of a Make, Take or Kill event.
// Amounts are stored as decimal strings to keep all 18 fractional digits.
type EventRecord struct {
	ID         uint      `gorm:"primaryKey"`
	Contract   string    `gorm:"index:idx_event_lookup,priority:1"`
	Kind       EventKind `gorm:"index:idx_event_lookup,priority:2"`
	Block      uint64    `gorm:"index:idx_event_lookup,priority:3"`
	LogIndex   uint
	Ts         int64
	OrderID    uint64
	Maker      string
	PayAsset   string
	BuyAsset   string
	PayAmount  string
	BuyAmount  string
	TakeAmount string
	GiveAmount string
	CreatedAt  time.Time
}

// FetchRecord marks a block range whose events of one kind are fully cached.
type FetchRecord struct {
	ID        uint      `gorm:"primaryKey"`
	Contract  string    `gorm:"index:idx_fetch_lookup,priority:1"`
	Kind      EventKind `gorm:"index:idx_fetch_lookup,priority:2"`
	FromBlock uint64
	ToBlock   uint64
	Events    int
	FetchedAt time.Time
}
