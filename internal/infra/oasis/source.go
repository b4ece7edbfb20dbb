package oasis

import (
	"context"
	"fmt"
	"log/slog"
	"math/big"
	"strings"
	"time"

	"mm_stats/internal/domain"
	"mm_stats/internal/infra"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/ethclient"
)

// ChainReader is the subset of ethclient.Client the source needs.
type ChainReader interface {
	FilterLogs(ctx context.Context, q ethereum.FilterQuery) ([]types.Log, error)
	BlockNumber(ctx context.Context) (uint64, error)
	HeaderByNumber(ctx context.Context, number *big.Int) (*types.Header, error)
}

// Source reads LogMake/LogTake/LogKill events of one OasisDEX contract.
type Source struct {
	chain       ChainReader
	contract    common.Address
	timeout     time.Duration
	maxRetries  int
	chunkBlocks uint64
	logger      *slog.Logger
}

// Dial connects to an Ethereum JSON-RPC endpoint (http, https, ws or wss).
func Dial(ctx context.Context, cfg *infra.Config) (*Source, *ethclient.Client, error) {
	client, err := ethclient.DialContext(ctx, cfg.Oasis.RPCURL)
	if err != nil {
		return nil, nil, domain.NewNetworkError("dial", err)
	}
	return NewSource(client, cfg), client, nil
}

// NewSource creates a source over any ChainReader.
func NewSource(chain ChainReader, cfg *infra.Config) *Source {
	timeout := time.Duration(cfg.Oasis.TimeoutSec) * time.Second
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	chunk := cfg.Oasis.ChunkBlocks
	if chunk == 0 {
		chunk = 5000
	}
	return &Source{
		chain:       chain,
		contract:    common.HexToAddress(cfg.Oasis.Address),
		timeout:     timeout,
		maxRetries:  cfg.Oasis.MaxRetries,
		chunkBlocks: chunk,
		logger:      slog.Default().With("module", "oasis_source"),
	}
}

// Contract returns the exchange address in lowercase hex, used as a cache key.
func (s *Source) Contract() string {
	return strings.ToLower(s.contract.Hex())
}

// FetchMakeEvents returns every LogMake in r.
func (s *Source) FetchMakeEvents(ctx context.Context, r domain.BlockRange) ([]domain.Make, error) {
	return fetch(ctx, s, r, domain.KindMake, LogMakeTopic, decodeMake)
}

// FetchTakeEvents returns every LogTake in r.
func (s *Source) FetchTakeEvents(ctx context.Context, r domain.BlockRange) ([]domain.Take, error) {
	return fetch(ctx, s, r, domain.KindTake, LogTakeTopic, decodeTake)
}

// FetchKillEvents returns every LogKill in r.
func (s *Source) FetchKillEvents(ctx context.Context, r domain.BlockRange) ([]domain.Kill, error) {
	return fetch(ctx, s, r, domain.KindKill, LogKillTopic, decodeKill)
}

// fetch walks r in chunks so a single eth_getLogs call stays under node limits.
// Each chunk gets its own timeout and retry budget.
func fetch[E any](ctx context.Context, s *Source, r domain.BlockRange, kind domain.EventKind, topic common.Hash, decode func(types.Log) (E, error)) ([]E, error) {
	if !r.Valid() {
		return nil, fmt.Errorf("%w: %d..%d", domain.ErrInvalidRange, r.From, r.To)
	}

	infra.GlobalMetrics.FetchStarted()
	defer infra.GlobalMetrics.FetchDone()

	var out []E
	for from := r.From; from <= r.To; {
		to := from + s.chunkBlocks - 1
		if to > r.To || to < from {
			to = r.To
		}

		logs, err := s.filterLogs(ctx, kind, topic, from, to)
		if err != nil {
			return nil, err
		}

		for _, l := range logs {
			if l.Removed {
				continue
			}
			ev, err := decode(l)
			if err != nil {
				// malformed log data is not something a retry fixes
				return nil, domain.NewFatalNetworkError("decode", fmt.Errorf("block %d log %d: %w", l.BlockNumber, l.Index, err))
			}
			out = append(out, ev)
		}

		if to == r.To {
			break
		}
		from = to + 1
	}

	s.logger.Info("Fetched events",
		slog.String("kind", kind.String()),
		slog.Uint64("from", r.From),
		slog.Uint64("to", r.To),
		slog.Int("count", len(out)),
	)
	return out, nil
}

func (s *Source) filterLogs(ctx context.Context, kind domain.EventKind, topic common.Hash, from, to uint64) ([]types.Log, error) {
	query := ethereum.FilterQuery{
		FromBlock: new(big.Int).SetUint64(from),
		ToBlock:   new(big.Int).SetUint64(to),
		Addresses: []common.Address{s.contract},
		Topics:    [][]common.Hash{{topic}},
	}

	var logs []types.Log
	op := fmt.Sprintf("eth_getLogs(%s %d..%d)", kind, from, to)
	err := infra.Retry(ctx, op, s.maxRetries, func(ctx context.Context) error {
		callCtx, cancel := context.WithTimeout(ctx, s.timeout)
		defer cancel()

		start := time.Now()
		res, err := s.chain.FilterLogs(callCtx, query)
		if err != nil {
			return domain.NewNetworkError("eth_getLogs", err)
		}
		infra.GlobalMetrics.RecordFetch(kind, len(res), time.Since(start))
		logs = res
		return nil
	})
	return logs, err
}

// LatestRange returns the range covering the last pastBlocks blocks.
func (s *Source) LatestRange(ctx context.Context, pastBlocks uint64) (domain.BlockRange, error) {
	head, err := s.blockNumber(ctx)
	if err != nil {
		return domain.BlockRange{}, err
	}
	from := uint64(0)
	if head > pastBlocks {
		from = head - pastBlocks
	}
	return domain.BlockRange{From: from, To: head}, nil
}

// RangeSince returns the range from the first block mined at or after since up to the head.
func (s *Source) RangeSince(ctx context.Context, since time.Time) (domain.BlockRange, error) {
	head, err := s.blockNumber(ctx)
	if err != nil {
		return domain.BlockRange{}, err
	}
	from, err := s.firstBlockAtOrAfter(ctx, uint64(since.Unix()), head)
	if err != nil {
		return domain.BlockRange{}, err
	}
	return domain.BlockRange{From: from, To: head}, nil
}

// BlockTime returns the timestamp of a block.
func (s *Source) BlockTime(ctx context.Context, number uint64) (time.Time, error) {
	ts, err := s.headerTime(ctx, number)
	if err != nil {
		return time.Time{}, err
	}
	return time.Unix(int64(ts), 0).UTC(), nil
}

// firstBlockAtOrAfter binary searches block timestamps in [0, head].
func (s *Source) firstBlockAtOrAfter(ctx context.Context, ts uint64, head uint64) (uint64, error) {
	lo, hi := uint64(0), head
	for lo < hi {
		mid := lo + (hi-lo)/2
		t, err := s.headerTime(ctx, mid)
		if err != nil {
			return 0, err
		}
		if t < ts {
			lo = mid + 1
		} else {
			hi = mid
		}
	}
	return lo, nil
}

func (s *Source) blockNumber(ctx context.Context) (uint64, error) {
	var head uint64
	err := infra.Retry(ctx, "eth_blockNumber", s.maxRetries, func(ctx context.Context) error {
		callCtx, cancel := context.WithTimeout(ctx, s.timeout)
		defer cancel()
		n, err := s.chain.BlockNumber(callCtx)
		if err != nil {
			return domain.NewNetworkError("eth_blockNumber", err)
		}
		head = n
		return nil
	})
	return head, err
}

func (s *Source) headerTime(ctx context.Context, number uint64) (uint64, error) {
	var ts uint64
	op := fmt.Sprintf("eth_getBlockByNumber(%d)", number)
	err := infra.Retry(ctx, op, s.maxRetries, func(ctx context.Context) error {
		callCtx, cancel := context.WithTimeout(ctx, s.timeout)
		defer cancel()
		h, err := s.chain.HeaderByNumber(callCtx, new(big.Int).SetUint64(number))
		if err != nil {
			return domain.NewNetworkError("eth_getBlockByNumber", err)
		}
		ts = h.Time
		return nil
	})
	return ts, err
}
