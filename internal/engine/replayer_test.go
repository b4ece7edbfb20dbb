package engine

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"testing"

	"mm_stats/internal/domain"
)

const (
	weth   domain.AssetID = "0xweth"
	sai    domain.AssetID = "0xsai"
	maker  domain.Account = "0xmaker"
	other  domain.Account = "0xother"
	bigger domain.Account = "0xwhale"
)

func amt(s string) domain.Amount { return domain.MustParseAmount(s) }

func mk(id domain.OrderID, ts domain.Timestamp, owner domain.Account, pay domain.AssetID, payAmt string, buy domain.AssetID, buyAmt string) domain.Make {
	return domain.Make{
		BaseEvent: domain.BaseEvent{Ts: ts, OrderID: id},
		Maker:     owner,
		PayAsset:  pay,
		PayAmount: amt(payAmt),
		BuyAsset:  buy,
		BuyAmount: amt(buyAmt),
	}
}

func tk(id domain.OrderID, ts domain.Timestamp, pay domain.AssetID, take string, buy domain.AssetID, give string) domain.Take {
	return domain.Take{
		BaseEvent:  domain.BaseEvent{Ts: ts, OrderID: id},
		PayAsset:   pay,
		BuyAsset:   buy,
		TakeAmount: amt(take),
		GiveAmount: amt(give),
	}
}

func kl(id domain.OrderID, ts domain.Timestamp) domain.Kill {
	return domain.Kill{BaseEvent: domain.BaseEvent{Ts: ts, OrderID: id}}
}

// scenario builds the A-D event history used across tests.
func scenario() []domain.Event {
	return []domain.Event{
		mk(1, 100, maker, weth, "1.0", sai, "300"),
		mk(2, 100, maker, sai, "310", weth, "1.0"),
		tk(1, 200, weth, "0.5", sai, "150"),
		tk(1, 300, weth, "0.5", sai, "150"),
		kl(2, 400),
		kl(99, 500),
	}
}

func newTestReplayer() *Replayer {
	return NewReplayer(maker, weth, sai)
}

func TestReplay_Empty(t *testing.T) {
	snaps, err := newTestReplayer().Replay(nil)
	if err != nil {
		t.Fatalf("Replay failed: %v", err)
	}
	if len(snaps) != 0 {
		t.Errorf("Expected no snapshots, got %d", len(snaps))
	}
}

func TestReplay_Scenarios(t *testing.T) {
	snaps, err := newTestReplayer().Replay(scenario())
	if err != nil {
		t.Fatalf("Replay failed: %v", err)
	}
	if len(snaps) != 5 {
		t.Fatalf("Expected 5 snapshots, got %d", len(snaps))
	}

	t.Run("A: both makes visible at t=100", func(t *testing.T) {
		s := snaps[0]
		if s.Timestamp != 100 || len(s.Orders) != 2 {
			t.Fatalf("Expected 2 orders at t=100, got %d at t=%d", len(s.Orders), s.Timestamp)
		}
		if s.BaseAsset != weth || s.QuoteAsset != sai {
			t.Errorf("Expected pair weth/sai, got %s/%s", s.BaseAsset, s.QuoteAsset)
		}
	})

	t.Run("B: partial fill keeps price", func(t *testing.T) {
		o, ok := snaps[1].Find(1)
		if !ok {
			t.Fatal("Order 1 should still be open at t=200")
		}
		if !o.SellAmount.Equal(amt("0.5")) || !o.BuyAmount.Equal(amt("150")) {
			t.Errorf("Expected 0.5/150, got %s/%s", o.SellAmount, o.BuyAmount)
		}
		p, _ := o.BuyToSellPrice()
		if !p.Equal(amt("300")) {
			t.Errorf("Expected price 300, got %s", p)
		}
		o2, ok := snaps[1].Find(2)
		if !ok || !o2.SellAmount.Equal(amt("310")) || !o2.BuyAmount.Equal(amt("1")) {
			t.Errorf("Order 2 should be unchanged, got %+v", o2)
		}
	})

	t.Run("C: full fill removes order", func(t *testing.T) {
		if _, ok := snaps[2].Find(1); ok {
			t.Error("Order 1 should be gone at t=300")
		}
		if len(snaps[2].Orders) != 1 {
			t.Errorf("Expected 1 order at t=300, got %d", len(snaps[2].Orders))
		}
	})

	t.Run("D: kill removes, unknown kill is a no-op", func(t *testing.T) {
		if len(snaps[3].Orders) != 0 {
			t.Errorf("Expected empty book at t=400, got %v", snaps[3].Orders)
		}
		if snaps[4].Timestamp != 500 || len(snaps[4].Orders) != 0 {
			t.Errorf("Expected unchanged empty book at t=500, got %v", snaps[4].Orders)
		}
	})

	t.Run("past snapshots are untouched", func(t *testing.T) {
		o, _ := snaps[0].Find(1)
		if !o.SellAmount.Equal(amt("1.0")) {
			t.Errorf("Snapshot at t=100 was mutated: sell amount %s", o.SellAmount)
		}
	})
}

func TestReplay_ConsistencyViolation(t *testing.T) {
	events := []domain.Event{
		mk(1, 100, maker, weth, "1.0", sai, "300"),
		tk(1, 200, sai, "0.5", weth, "150"),
		kl(1, 300),
	}

	snaps, err := newTestReplayer().Replay(events)
	if err == nil {
		t.Fatal("Expected consistency violation")
	}
	if snaps != nil {
		t.Errorf("Expected no snapshots on failure, got %d", len(snaps))
	}
	if !errors.Is(err, domain.ErrConsistencyViolation) {
		t.Errorf("Expected ErrConsistencyViolation, got %v", err)
	}

	var ce *domain.ConsistencyError
	if !errors.As(err, &ce) {
		t.Fatalf("Expected *ConsistencyError, got %T", err)
	}
	if ce.OrderID != 1 || ce.Timestamp != 200 || ce.Field != "pay_asset" {
		t.Errorf("Unexpected error details: %+v", ce)
	}
}

func TestReplay_BuyAssetMismatch(t *testing.T) {
	events := []domain.Event{
		mk(1, 100, maker, weth, "1.0", sai, "300"),
		tk(1, 200, weth, "0.5", "0xdai", "150"),
	}

	_, err := newTestReplayer().Replay(events)
	var ce *domain.ConsistencyError
	if !errors.As(err, &ce) || ce.Field != "buy_asset" {
		t.Errorf("Expected buy_asset violation, got %v", err)
	}
}

func TestReplay_MismatchOnForeignOrderIsIgnored(t *testing.T) {
	events := []domain.Event{
		mk(1, 100, other, weth, "1.0", sai, "300"),
		tk(1, 200, sai, "0.5", weth, "150"),
	}

	snaps, err := newTestReplayer().Replay(events)
	if err != nil {
		t.Fatalf("Take on an untracked order must be ignored, got %v", err)
	}
	for _, s := range snaps {
		if len(s.Orders) != 0 {
			t.Errorf("Expected empty book at t=%d, got %v", s.Timestamp, s.Orders)
		}
	}
}

func TestReplay_OwnershipFilter(t *testing.T) {
	events := []domain.Event{
		mk(1, 100, maker, weth, "1", sai, "300"),
		mk(2, 100, other, weth, "1", sai, "290"),
		mk(3, 150, bigger, sai, "1000", weth, "4"),
		tk(2, 150, weth, "1", sai, "290"),
	}

	snaps, err := newTestReplayer().Replay(events)
	if err != nil {
		t.Fatalf("Replay failed: %v", err)
	}
	for _, s := range snaps {
		for _, o := range s.Orders {
			if o.Owner != maker {
				t.Errorf("t=%d: order %s owned by %s leaked into the book", s.Timestamp, o.ID, o.Owner)
			}
		}
	}
}

func TestReplay_TakeOverfillRemovesOrder(t *testing.T) {
	events := []domain.Event{
		mk(1, 100, maker, weth, "1", sai, "300"),
		tk(1, 200, weth, "0.4", sai, "300"),
	}

	snaps, err := newTestReplayer().Replay(events)
	if err != nil {
		t.Fatalf("Replay failed: %v", err)
	}
	if _, ok := snaps[1].Find(1); ok {
		t.Error("Order with an exhausted buy side should be removed")
	}
}

func TestReplay_SameTimestampOrdering(t *testing.T) {
	// Make, Take and Kill at one timestamp: the make is applied first, then the
	// partial fill, then the kill of a different order.
	events := []domain.Event{
		kl(2, 100),
		tk(1, 100, weth, "0.25", sai, "75"),
		mk(2, 100, maker, sai, "310", weth, "1"),
		mk(1, 100, maker, weth, "1", sai, "300"),
	}

	snaps, err := newTestReplayer().Replay(events)
	if err != nil {
		t.Fatalf("Replay failed: %v", err)
	}
	if len(snaps) != 1 {
		t.Fatalf("Expected 1 snapshot, got %d", len(snaps))
	}

	o, ok := snaps[0].Find(1)
	if !ok || !o.SellAmount.Equal(amt("0.75")) {
		t.Errorf("Expected order 1 reduced to 0.75, got %+v", o)
	}
	if _, ok := snaps[0].Find(2); ok {
		t.Error("Order 2 should have been killed within the same step")
	}
}

func TestReplay_InputOrderDoesNotMatter(t *testing.T) {
	events := scenario()
	reversed := make([]domain.Event, len(events))
	for i, ev := range events {
		reversed[len(events)-1-i] = ev
	}

	r := newTestReplayer()
	a, err := r.Replay(events)
	if err != nil {
		t.Fatalf("Replay failed: %v", err)
	}
	b, err := r.Replay(reversed)
	if err != nil {
		t.Fatalf("Replay of reversed input failed: %v", err)
	}
	if !reflect.DeepEqual(a, b) {
		t.Error("Replay result depends on input order")
	}
}

func TestReplay_Idempotent(t *testing.T) {
	r := newTestReplayer()
	events := scenario()

	a, _ := r.Replay(events)
	b, _ := r.Replay(events)
	if !reflect.DeepEqual(a, b) {
		t.Error("Replaying the same events twice produced different snapshots")
	}
}

func TestReplay_TimestampsStrictlyIncreasing(t *testing.T) {
	events := append(scenario(), kl(42, 250), kl(43, 250), mk(5, 50, other, weth, "1", sai, "1"))

	snaps, err := newTestReplayer().Replay(events)
	if err != nil {
		t.Fatalf("Replay failed: %v", err)
	}

	distinct := make(map[domain.Timestamp]bool)
	for _, ev := range events {
		distinct[ev.GetTs()] = true
	}
	if len(snaps) != len(distinct) {
		t.Fatalf("Expected %d snapshots, got %d", len(distinct), len(snaps))
	}
	for i, s := range snaps {
		if !distinct[s.Timestamp] {
			t.Errorf("Snapshot at t=%d has no matching event", s.Timestamp)
		}
		if i > 0 && s.Timestamp <= snaps[i-1].Timestamp {
			t.Errorf("Timestamps not strictly increasing at %d: %d <= %d", i, s.Timestamp, snaps[i-1].Timestamp)
		}
	}
}

func TestReplay_MonotonicRemoval(t *testing.T) {
	events := []domain.Event{
		mk(1, 100, maker, weth, "1", sai, "300"),
		kl(1, 200),
		tk(1, 300, weth, "0.5", sai, "150"),
		mk(1, 400, maker, weth, "2", sai, "620"),
	}

	snaps, err := newTestReplayer().Replay(events)
	if err != nil {
		t.Fatalf("Replay failed: %v", err)
	}

	if _, ok := snaps[1].Find(1); ok {
		t.Error("Order 1 should be gone after kill")
	}
	if _, ok := snaps[2].Find(1); ok {
		t.Error("Take after kill must not resurrect order 1")
	}
	o, ok := snaps[3].Find(1)
	if !ok || !o.SellAmount.Equal(amt("2")) || o.CreatedAt != 400 {
		t.Errorf("Expected a fresh order 1 created at t=400, got %+v", o)
	}
}

func TestReplay_ReusedOpenIDReplacesOrder(t *testing.T) {
	events := []domain.Event{
		mk(1, 100, maker, weth, "1", sai, "300"),
		mk(1, 200, maker, weth, "3", sai, "960"),
	}

	snaps, err := newTestReplayer().Replay(events)
	if err != nil {
		t.Fatalf("Replay failed: %v", err)
	}
	if len(snaps[1].Orders) != 1 {
		t.Fatalf("Expected a single order 1, got %v", snaps[1].Orders)
	}
	if !snaps[1].Orders[0].SellAmount.Equal(amt("3")) {
		t.Errorf("Expected the newer order to win, got %+v", snaps[1].Orders[0])
	}
}

func TestReplay_ForeignMakeReusingTrackedIDIsDropped(t *testing.T) {
	events := []domain.Event{
		mk(1, 100, maker, weth, "1", sai, "300"),
		mk(1, 200, other, weth, "5", sai, "1400"),
	}

	snaps, err := newTestReplayer().Replay(events)
	if err != nil {
		t.Fatalf("Replay failed: %v", err)
	}
	if len(snaps) != 2 {
		t.Fatalf("Expected 2 snapshots, got %d", len(snaps))
	}

	o, ok := snaps[1].Find(1)
	if !ok {
		t.Fatal("Expected the tracked order 1 to survive a foreign make with the same id")
	}
	if o.Owner != maker || !o.SellAmount.Equal(amt("1")) {
		t.Errorf("Expected the original tracked order, got %+v", o)
	}
}

func TestReplay_LogPositionBreaksTies(t *testing.T) {
	first := tk(1, 200, weth, "1", sai, "300")
	first.Pos = domain.LogPosition{Block: 10, LogIndex: 1}
	second := tk(1, 200, weth, "1", sai, "300")
	second.Pos = domain.LogPosition{Block: 10, LogIndex: 0}

	events := []domain.Event{
		mk(1, 100, maker, weth, "1", sai, "300"),
		first,
		second,
	}

	snaps, err := newTestReplayer().Replay(events)
	if err != nil {
		t.Fatalf("Replay failed: %v", err)
	}
	if len(snaps[1].Orders) != 0 {
		t.Errorf("Expected the first take to consume the order and the second to be a no-op, got %v", snaps[1].Orders)
	}
}

type bogusEvent struct{ domain.BaseEvent }

func (bogusEvent) GetKind() domain.EventKind { return 0 }

func TestReplay_UnknownEvent(t *testing.T) {
	_, err := newTestReplayer().Replay([]domain.Event{bogusEvent{}})
	if !errors.Is(err, domain.ErrUnknownEvent) {
		t.Errorf("Expected ErrUnknownEvent, got %v", err)
	}
}

func TestDumpTimeline(t *testing.T) {
	snaps, err := newTestReplayer().Replay(scenario())
	if err != nil {
		t.Fatalf("Replay failed: %v", err)
	}

	path := filepath.Join(t.TempDir(), "timeline.json")
	if err := DumpTimeline(path, maker, snaps); err != nil {
		t.Fatalf("DumpTimeline failed: %v", err)
	}

	b, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile failed: %v", err)
	}
	var decoded struct {
		Tracked   domain.Account    `json:"tracked"`
		Snapshots []domain.Snapshot `json:"snapshots"`
	}
	if err := json.Unmarshal(b, &decoded); err != nil {
		t.Fatalf("Unmarshal failed: %v", err)
	}
	if decoded.Tracked != maker || len(decoded.Snapshots) != len(snaps) {
		t.Errorf("Expected %d snapshots for %s, got %d for %s", len(snaps), maker, len(decoded.Snapshots), decoded.Tracked)
	}
}
