package ownership

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/mtlprog/nftstate/internal/chain"
	"github.com/mtlprog/nftstate/internal/domain"
	"github.com/mtlprog/nftstate/internal/indexer"
)

const (
	alice = "0x00000000000000000000000000000000000000A1"
	bob   = "0x00000000000000000000000000000000000000B0"
)

// mockChain is an in-memory ERC-721 world: owners[collection][tokenID] = owner.
type mockChain struct {
	mu           sync.Mutex
	owners       map[string]map[int]string
	enumerable   map[string]bool
	head         uint64
	transfers    map[string][]transfer
	failBalance  map[string]bool
	failLogs     bool
	balanceCalls atomic.Int32
	ownerCalls   atomic.Int32
	logCalls     atomic.Int32
}

type transfer struct {
	block uint64
	to    string
	id    int
}

func newMockChain() *mockChain {
	return &mockChain{
		owners:      make(map[string]map[int]string),
		enumerable:  make(map[string]bool),
		transfers:   make(map[string][]transfer),
		failBalance: make(map[string]bool),
		head:        100_000,
	}
}

func (m *mockChain) own(collection, owner string, ids ...int) {
	key := strings.ToLower(collection)
	if m.owners[key] == nil {
		m.owners[key] = make(map[int]string)
	}
	for _, id := range ids {
		m.owners[key][id] = owner
	}
}

func (m *mockChain) ownedBy(collection, owner string) []int {
	m.mu.Lock()
	defer m.mu.Unlock()
	var ids []int
	for id, o := range m.owners[strings.ToLower(collection)] {
		if strings.EqualFold(o, owner) {
			ids = append(ids, id)
		}
	}
	return ids
}

func (m *mockChain) BalanceOf(_ context.Context, collection, owner string) (int, error) {
	m.balanceCalls.Add(1)
	if m.failBalance[strings.ToLower(collection)] {
		return 0, fmt.Errorf("rpc down: %w", domain.ErrSourceUnavailable)
	}
	return len(m.ownedBy(collection, owner)), nil
}

func (m *mockChain) OwnerOf(_ context.Context, collection string, tokenID int) (string, error) {
	m.ownerCalls.Add(1)
	m.mu.Lock()
	defer m.mu.Unlock()
	owner, ok := m.owners[strings.ToLower(collection)][tokenID]
	if !ok {
		return "", chain.ErrReverted
	}
	return owner, nil
}

func (m *mockChain) TokenOfOwnerByIndex(_ context.Context, collection, owner string, index int) (int, error) {
	if !m.enumerable[strings.ToLower(collection)] {
		return 0, fmt.Errorf("eth_call: %w", chain.ErrReverted)
	}
	ids := m.ownedBy(collection, owner)
	sortInts(ids)
	if index >= len(ids) {
		return 0, chain.ErrReverted
	}
	return ids[index], nil
}

func (m *mockChain) BlockNumber(context.Context) (uint64, error) {
	return m.head, nil
}

func (m *mockChain) TransfersTo(_ context.Context, collection, recipient string, from, to uint64) ([]int, error) {
	m.logCalls.Add(1)
	if m.failLogs {
		return nil, domain.ErrSourceUnavailable
	}
	var ids []int
	for _, t := range m.transfers[strings.ToLower(collection)] {
		if t.block >= from && t.block <= to && strings.EqualFold(t.to, recipient) {
			ids = append(ids, t.id)
		}
	}
	return ids, nil
}

func sortInts(ids []int) {
	for i := 1; i < len(ids); i++ {
		for j := i; j > 0 && ids[j] < ids[j-1]; j-- {
			ids[j], ids[j-1] = ids[j-1], ids[j]
		}
	}
}

type mockIndex struct {
	nfts  indexer.UserNFTs
	err   error
	calls atomic.Int32
}

func (m *mockIndex) FetchUserNFTs(context.Context, string) (indexer.UserNFTs, error) {
	m.calls.Add(1)
	return m.nfts, m.err
}

type mockIDs struct {
	ids map[string][]int
}

func (m mockIDs) TokenIDs(_ context.Context, col domain.Collection) ([]int, error) {
	return m.ids[col.Key()], nil
}

type mockStaking struct {
	staked map[string][]int
	err    error
}

func (m mockStaking) GetStakedTokens(_ context.Context, _ string, collection string) ([]int, error) {
	if m.err != nil {
		return nil, m.err
	}
	return m.staked[strings.ToLower(collection)], nil
}

type mockListings struct {
	listings map[string][]domain.Listing
}

func (m mockListings) ActiveListings(_ context.Context, collection string) ([]domain.Listing, error) {
	return m.listings[strings.ToLower(collection)], nil
}

type countingObserver struct {
	mu     sync.Mutex
	counts map[string]int
}

func (o *countingObserver) ObserveStrategy(strategy, outcome string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.counts == nil {
		o.counts = make(map[string]int)
	}
	o.counts[strategy+"/"+outcome]++
}
