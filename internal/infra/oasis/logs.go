package oasis

import (
	"fmt"
	"math/big"
	"strings"

	"mm_stats/internal/domain"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
)

// Event signatures of the OasisDEX SimpleMarket / MatchingMarket contracts.
var (
	LogMakeTopic = crypto.Keccak256Hash([]byte("LogMake(bytes32,bytes32,address,address,address,uint128,uint128,uint64)"))
	LogTakeTopic = crypto.Keccak256Hash([]byte("LogTake(bytes32,bytes32,address,address,address,address,uint128,uint128,uint64)"))
	LogKillTopic = crypto.Keccak256Hash([]byte("LogKill(bytes32,bytes32,address,address,address,uint128,uint128,uint64)"))
)

const wordSize = 32

// LogMake: topics [sig, id, pair, maker], data [pay_gem, buy_gem, pay_amt, buy_amt, timestamp]
func decodeMake(l types.Log) (domain.Make, error) {
	if len(l.Topics) != 4 {
		return domain.Make{}, fmt.Errorf("LogMake: expected 4 topics, got %d", len(l.Topics))
	}
	words, err := splitWords(l.Data, 5)
	if err != nil {
		return domain.Make{}, fmt.Errorf("LogMake: %w", err)
	}

	return domain.Make{
		BaseEvent: domain.BaseEvent{
			Ts:      domain.Timestamp(wordUint(words[4]).Int64()),
			OrderID: orderID(l.Topics[1].Bytes()),
			Pos:     position(l),
		},
		Maker:     domain.Account(addressHex(l.Topics[3].Bytes())),
		PayAsset:  domain.AssetID(addressHex(words[0])),
		BuyAsset:  domain.AssetID(addressHex(words[1])),
		PayAmount: domain.AmountFromWei(wordUint(words[2])),
		BuyAmount: domain.AmountFromWei(wordUint(words[3])),
	}, nil
}

// LogTake: topics [sig, pair, maker, taker], data [id, pay_gem, buy_gem, take_amt, give_amt, timestamp]
func decodeTake(l types.Log) (domain.Take, error) {
	if len(l.Topics) != 4 {
		return domain.Take{}, fmt.Errorf("LogTake: expected 4 topics, got %d", len(l.Topics))
	}
	words, err := splitWords(l.Data, 6)
	if err != nil {
		return domain.Take{}, fmt.Errorf("LogTake: %w", err)
	}

	return domain.Take{
		BaseEvent: domain.BaseEvent{
			Ts:      domain.Timestamp(wordUint(words[5]).Int64()),
			OrderID: orderID(words[0]),
			Pos:     position(l),
		},
		PayAsset:   domain.AssetID(addressHex(words[1])),
		BuyAsset:   domain.AssetID(addressHex(words[2])),
		TakeAmount: domain.AmountFromWei(wordUint(words[3])),
		GiveAmount: domain.AmountFromWei(wordUint(words[4])),
	}, nil
}

// LogKill: topics [sig, id, pair, maker], data [pay_gem, buy_gem, pay_amt, buy_amt, timestamp]
func decodeKill(l types.Log) (domain.Kill, error) {
	if len(l.Topics) != 4 {
		return domain.Kill{}, fmt.Errorf("LogKill: expected 4 topics, got %d", len(l.Topics))
	}
	words, err := splitWords(l.Data, 5)
	if err != nil {
		return domain.Kill{}, fmt.Errorf("LogKill: %w", err)
	}

	return domain.Kill{
		BaseEvent: domain.BaseEvent{
			Ts:      domain.Timestamp(wordUint(words[4]).Int64()),
			OrderID: orderID(l.Topics[1].Bytes()),
			Pos:     position(l),
		},
	}, nil
}

func splitWords(data []byte, n int) ([][]byte, error) {
	if len(data) != n*wordSize {
		return nil, fmt.Errorf("expected %d data bytes, got %d", n*wordSize, len(data))
	}
	words := make([][]byte, n)
	for i := range words {
		words[i] = data[i*wordSize : (i+1)*wordSize]
	}
	return words, nil
}

func wordUint(w []byte) *big.Int {
	return new(big.Int).SetBytes(w)
}

func orderID(w []byte) domain.OrderID {
	return domain.OrderID(wordUint(w).Uint64())
}

func addressHex(w []byte) string {
	return strings.ToLower(common.BytesToAddress(w).Hex())
}

func position(l types.Log) domain.LogPosition {
	return domain.LogPosition{Block: l.BlockNumber, LogIndex: l.Index}
}
