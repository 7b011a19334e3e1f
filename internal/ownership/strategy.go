package ownership

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"sync"

	"github.com/samber/lo"
	"golang.org/x/sync/errgroup"

	"github.com/mtlprog/nftstate/internal/chain"
	"github.com/mtlprog/nftstate/internal/domain"
	"github.com/mtlprog/nftstate/internal/indexer"
)

// Default tuning of the on-chain strategies.
const (
	DefaultChunkSize       = 10_000
	DefaultMaxChunks       = 10
	DefaultProbeBatchSize  = 50
	DefaultVerifyBatchSize = 50
	enumerateConcurrency   = 10
)

// Strategy discovers the token ids a wallet holds in one collection.
// ok=false means the strategy could not answer and the next one should be tried.
type Strategy interface {
	Name() string
	TryResolve(ctx context.Context, col domain.Collection, wallet string) (ids []int, ok bool, err error)
}

// TokenReader is the ERC-721 surface used by the on-chain strategies.
type TokenReader interface {
	BalanceOf(ctx context.Context, collection, owner string) (int, error)
	OwnerOf(ctx context.Context, collection string, tokenID int) (string, error)
	TokenOfOwnerByIndex(ctx context.Context, collection, owner string, index int) (int, error)
	BlockNumber(ctx context.Context) (uint64, error)
	TransfersTo(ctx context.Context, collection, recipient string, fromBlock, toBlock uint64) ([]int, error)
}

// HoldingsIndex serves pre-indexed wallet holdings.
type HoldingsIndex interface {
	FetchUserNFTs(ctx context.Context, address string) (indexer.UserNFTs, error)
}

// TokenIDSource lists the token ids known for a collection.
type TokenIDSource interface {
	TokenIDs(ctx context.Context, col domain.Collection) ([]int, error)
}

func balanceOf(ctx context.Context, tokens TokenReader, col domain.Collection, wallet string) (int, error) {
	key := "balance:" + col.Key() + ":" + strings.ToLower(wallet)
	return memoize(ctx, key, func() (int, error) {
		return tokens.BalanceOf(ctx, col.Address, wallet)
	})
}

// IndexerStrategy trusts the indexer when it reports holdings for the collection.
type IndexerStrategy struct {
	index HoldingsIndex
}

// NewIndexerStrategy creates an IndexerStrategy reading holdings from index.
func NewIndexerStrategy(index HoldingsIndex) *IndexerStrategy {
	return &IndexerStrategy{index: index}
}

// Name identifies the strategy in logs and resolution results.
func (s *IndexerStrategy) Name() string { return "indexer" }

// TryResolve returns the wallet's token ids in col as listed by the indexer.
// A wallet unknown to the indexer, or one holding nothing in col, is not an answer.
// The indexer response is memoized per wallet within the resolution pass of ctx.
func (s *IndexerStrategy) TryResolve(ctx context.Context, col domain.Collection, wallet string) ([]int, bool, error) {
	nfts, err := memoize(ctx, "indexer:"+strings.ToLower(wallet), func() (indexer.UserNFTs, error) {
		return s.index.FetchUserNFTs(ctx, wallet)
	})
	if err != nil {
		if errors.Is(err, indexer.ErrNotFound) {
			return nil, false, nil
		}
		return nil, false, err
	}
	if nfts.Total <= 0 {
		return nil, false, nil
	}

	group, found := lo.Find(nfts.Collections, func(c indexer.CollectionTokens) bool {
		return chain.SameAddress(c.Collection, col.Address)
	})
	if !found || len(group.TokenIDs) == 0 {
		return nil, false, nil
	}
	return group.Ints(), true, nil
}

// EnumerableStrategy walks tokenOfOwnerByIndex on collections declared enumerable.
type EnumerableStrategy struct {
	tokens TokenReader
}

// NewEnumerableStrategy creates an EnumerableStrategy reading from tokens.
func NewEnumerableStrategy(tokens TokenReader) *EnumerableStrategy {
	return &EnumerableStrategy{tokens: tokens}
}

// Name identifies the strategy in logs and resolution results.
func (s *EnumerableStrategy) Name() string { return "enumerable" }

// TryResolve reads balanceOf and then every tokenOfOwnerByIndex slot of the wallet.
// Collections not declared enumerable are skipped. A revert during enumeration is
// reported as domain.ErrCapabilityUnsupported.
func (s *EnumerableStrategy) TryResolve(ctx context.Context, col domain.Collection, wallet string) ([]int, bool, error) {
	if !col.SupportsEnumeration {
		return nil, false, nil
	}

	balance, err := balanceOf(ctx, s.tokens, col, wallet)
	if err != nil {
		return nil, false, fmt.Errorf("balanceOf: %w", err)
	}
	if balance == 0 {
		return []int{}, true, nil
	}

	ids := make([]int, balance)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(enumerateConcurrency)
	for i := range balance {
		g.Go(func() error {
			id, err := s.tokens.TokenOfOwnerByIndex(gctx, col.Address, wallet, i)
			if err != nil {
				return err
			}
			ids[i] = id
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		if errors.Is(err, chain.ErrReverted) {
			return nil, false, fmt.Errorf("tokenOfOwnerByIndex: %w: %w", domain.ErrCapabilityUnsupported, err)
		}
		return nil, false, fmt.Errorf("tokenOfOwnerByIndex: %w", err)
	}
	return ids, true, nil
}

// EventScanStrategy collects Transfer logs to the wallet in recent block windows and verifies current ownership.
type EventScanStrategy struct {
	tokens      TokenReader
	chunkSize   uint64
	maxChunks   int
	verifyBatch int
}

// NewEventScanStrategy creates an EventScanStrategy scanning maxChunks windows of chunkSize blocks.
// Zero values fall back to DefaultChunkSize and DefaultMaxChunks.
func NewEventScanStrategy(tokens TokenReader, chunkSize uint64, maxChunks int) *EventScanStrategy {
	if chunkSize == 0 {
		chunkSize = DefaultChunkSize
	}
	if maxChunks <= 0 {
		maxChunks = DefaultMaxChunks
	}
	return &EventScanStrategy{tokens: tokens, chunkSize: chunkSize, maxChunks: maxChunks, verifyBatch: DefaultVerifyBatchSize}
}

// Name identifies the strategy in logs and resolution results.
func (s *EventScanStrategy) Name() string { return "eventscan" }

type blockWindow struct {
	from, to uint64
}

// windows splits the range ending at head into at most maxChunks windows, newest first.
func (s *EventScanStrategy) windows(head uint64) []blockWindow {
	out := make([]blockWindow, 0, s.maxChunks)
	to := head
	for range s.maxChunks {
		from := uint64(0)
		if to >= s.chunkSize {
			from = to - s.chunkSize + 1
		}
		out = append(out, blockWindow{from: from, to: to})
		if from == 0 {
			break
		}
		to = from - 1
	}
	return out
}

// TryResolve scans recent Transfer logs to the wallet and keeps the ids it still owns.
// It answers only when the verified ids cover the wallet's balance. Failing windows are
// skipped; domain.ErrSourceUnavailable is returned when all of them fail.
func (s *EventScanStrategy) TryResolve(ctx context.Context, col domain.Collection, wallet string) ([]int, bool, error) {
	balance, err := balanceOf(ctx, s.tokens, col, wallet)
	if err != nil {
		return nil, false, fmt.Errorf("balanceOf: %w", err)
	}
	if balance == 0 {
		return []int{}, true, nil
	}

	head, err := s.tokens.BlockNumber(ctx)
	if err != nil {
		return nil, false, fmt.Errorf("block number: %w", err)
	}

	var (
		mu         sync.Mutex
		wg         sync.WaitGroup
		candidates []int
		failed     int
	)
	windows := s.windows(head)
	for _, w := range windows {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ids, err := s.tokens.TransfersTo(ctx, col.Address, wallet, w.from, w.to)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				slog.Warn("transfer scan window failed", "collection", col.Name, "from", w.from, "to", w.to, "error", err)
				failed++
				return
			}
			candidates = append(candidates, ids...)
		}()
	}
	wg.Wait()

	if failed == len(windows) {
		return nil, false, fmt.Errorf("%w: every transfer scan window failed", domain.ErrSourceUnavailable)
	}

	owned := verifyOwnership(ctx, s.tokens, col, wallet, lo.Uniq(candidates), s.verifyBatch)
	if len(owned) < balance {
		slog.Debug("transfer scan incomplete", "collection", col.Name, "found", len(owned), "balance", balance)
		return nil, false, nil
	}
	return owned, true, nil
}

// ProbeStrategy asks ownerOf for every known token id until the wallet's balance is matched.
type ProbeStrategy struct {
	tokens    TokenReader
	ids       TokenIDSource
	batchSize int
}

// NewProbeStrategy creates a ProbeStrategy checking batchSize ids at a time, DefaultProbeBatchSize when zero.
func NewProbeStrategy(tokens TokenReader, ids TokenIDSource, batchSize int) *ProbeStrategy {
	if batchSize <= 0 {
		batchSize = DefaultProbeBatchSize
	}
	return &ProbeStrategy{tokens: tokens, ids: ids, batchSize: batchSize}
}

// Name identifies the strategy in logs and resolution results.
func (s *ProbeStrategy) Name() string { return "probe" }

// TryResolve checks ownerOf over the collection's known token ids in batches, stopping once
// the balance is matched. It is the last resort and answers even when the known ids run out
// first, logging the shortfall.
func (s *ProbeStrategy) TryResolve(ctx context.Context, col domain.Collection, wallet string) ([]int, bool, error) {
	balance, err := balanceOf(ctx, s.tokens, col, wallet)
	if err != nil {
		return nil, false, fmt.Errorf("balanceOf: %w", err)
	}
	if balance == 0 {
		return []int{}, true, nil
	}

	ids, err := s.ids.TokenIDs(ctx, col)
	if err != nil {
		return nil, false, fmt.Errorf("token ids: %w", err)
	}
	if len(ids) == 0 {
		return nil, false, nil
	}

	var owned []int
	for batch := range slices.Chunk(ids, s.batchSize) {
		if err := ctx.Err(); err != nil {
			return nil, false, err
		}
		owned = append(owned, verifyOwnership(ctx, s.tokens, col, wallet, batch, len(batch))...)
		if len(owned) >= balance {
			break
		}
	}

	if len(owned) < balance {
		slog.Warn("probe exhausted known ids before matching balance", "collection", col.Name, "found", len(owned), "balance", balance)
	}
	return owned, true, nil
}

// verifyOwnership keeps the ids currently owned by wallet, checking batchSize ids at a time.
// Individual ownerOf failures drop the id.
func verifyOwnership(ctx context.Context, tokens TokenReader, col domain.Collection, wallet string, ids []int, batchSize int) []int {
	if len(ids) == 0 {
		return nil
	}
	if batchSize <= 0 {
		batchSize = len(ids)
	}

	var (
		mu    sync.Mutex
		owned []int
	)
	for batch := range slices.Chunk(ids, batchSize) {
		var wg sync.WaitGroup
		for _, id := range batch {
			wg.Add(1)
			go func() {
				defer wg.Done()
				owner, err := tokens.OwnerOf(ctx, col.Address, id)
				if err != nil || !chain.SameAddress(owner, wallet) {
					return
				}
				mu.Lock()
				owned = append(owned, id)
				mu.Unlock()
			}()
		}
		wg.Wait()
	}
	return owned
}
