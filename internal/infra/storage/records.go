package storage

import (
	"fmt"

	"mm_stats/internal/domain"
)

func base(r domain.EventRecord) domain.BaseEvent {
	return domain.BaseEvent{
		Ts:      domain.Timestamp(r.Ts),
		OrderID: domain.OrderID(r.OrderID),
		Pos:     domain.LogPosition{Block: r.Block, LogIndex: r.LogIndex},
	}
}

func record(b domain.BaseEvent) domain.EventRecord {
	return domain.EventRecord{
		Block:    b.Pos.Block,
		LogIndex: b.Pos.LogIndex,
		Ts:       int64(b.Ts),
		OrderID:  uint64(b.OrderID),
	}
}

func makeRecord(m domain.Make) domain.EventRecord {
	rec := record(m.BaseEvent)
	rec.Maker = string(m.Maker)
	rec.PayAsset = string(m.PayAsset)
	rec.BuyAsset = string(m.BuyAsset)
	rec.PayAmount = m.PayAmount.String()
	rec.BuyAmount = m.BuyAmount.String()
	return rec
}

func takeRecord(t domain.Take) domain.EventRecord {
	rec := record(t.BaseEvent)
	rec.PayAsset = string(t.PayAsset)
	rec.BuyAsset = string(t.BuyAsset)
	rec.TakeAmount = t.TakeAmount.String()
	rec.GiveAmount = t.GiveAmount.String()
	return rec
}

func killRecord(k domain.Kill) domain.EventRecord {
	return record(k.BaseEvent)
}

func makeFromRecord(r domain.EventRecord) (domain.Make, error) {
	pay, err := domain.ParseAmount(r.PayAmount)
	if err != nil {
		return domain.Make{}, fmt.Errorf("record %d pay_amount: %w", r.ID, err)
	}
	buy, err := domain.ParseAmount(r.BuyAmount)
	if err != nil {
		return domain.Make{}, fmt.Errorf("record %d buy_amount: %w", r.ID, err)
	}
	return domain.Make{
		BaseEvent: base(r),
		Maker:     domain.Account(r.Maker),
		PayAsset:  domain.AssetID(r.PayAsset),
		PayAmount: pay,
		BuyAsset:  domain.AssetID(r.BuyAsset),
		BuyAmount: buy,
	}, nil
}

func takeFromRecord(r domain.EventRecord) (domain.Take, error) {
	take, err := domain.ParseAmount(r.TakeAmount)
	if err != nil {
		return domain.Take{}, fmt.Errorf("record %d take_amount: %w", r.ID, err)
	}
	give, err := domain.ParseAmount(r.GiveAmount)
	if err != nil {
		return domain.Take{}, fmt.Errorf("record %d give_amount: %w", r.ID, err)
	}
	return domain.Take{
		BaseEvent:  base(r),
		PayAsset:   domain.AssetID(r.PayAsset),
		BuyAsset:   domain.AssetID(r.BuyAsset),
		TakeAmount: take,
		GiveAmount: give,
	}, nil
}

func killFromRecord(r domain.EventRecord) (domain.Kill, error) {
	return domain.Kill{BaseEvent: base(r)}, nil
}
