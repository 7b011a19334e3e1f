package ownership

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/samber/lo"

	"github.com/mtlprog/nftstate/internal/domain"
)

// DefaultConcurrency bounds the number of collections resolved at once.
const DefaultConcurrency = 8

// ErrInvalidWallet is returned for malformed wallet addresses.
var ErrInvalidWallet = errors.New("invalid wallet address")

// StakedSource lists tokens a user has staked from a collection.
type StakedSource interface {
	GetStakedTokens(ctx context.Context, user, collection string) ([]int, error)
}

// ListingSource lists the active marketplace listings of a collection.
type ListingSource interface {
	ActiveListings(ctx context.Context, collection string) ([]domain.Listing, error)
}

// Observer receives the outcome of every strategy attempt.
type Observer interface {
	ObserveStrategy(strategy, outcome string)
}

// Strategy outcomes reported to the observer.
const (
	OutcomeHit         = "hit"
	OutcomeMiss        = "miss"
	OutcomeUnsupported = "unsupported"
	OutcomeError       = "error"
)

// Holdings is the reconciled view of one wallet.
type Holdings struct {
	Wallet      string              `json:"wallet"`
	PassID      string              `json:"passId"`
	Tokens      []domain.OwnedToken `json:"tokens"`
	Unavailable []string            `json:"unavailable"`
	Sources     map[string]string   `json:"sources"`
}

// InState returns the tokens in the given state.
func (h Holdings) InState(state domain.TokenState) []domain.OwnedToken {
	return lo.Filter(h.Tokens, func(t domain.OwnedToken, _ int) bool { return t.State == state })
}

// InCollection returns the tokens of one collection.
func (h Holdings) InCollection(address string) []domain.OwnedToken {
	return lo.Filter(h.Tokens, func(t domain.OwnedToken, _ int) bool { return strings.EqualFold(t.CollectionAddress, address) })
}

// Counts returns the number of tokens per state.
func (h Holdings) Counts() map[domain.TokenState]int {
	return lo.CountValuesBy(h.Tokens, func(t domain.OwnedToken) domain.TokenState { return t.State })
}

// IsUnavailable reports whether every strategy failed for the collection.
func (h Holdings) IsUnavailable(address string) bool {
	return lo.ContainsBy(h.Unavailable, func(a string) bool { return strings.EqualFold(a, address) })
}

// Resolver reconciles wallet, staked and listed tokens of a wallet across collections.
type Resolver struct {
	strategies  []Strategy
	staking     StakedSource
	listings    ListingSource
	concurrency int
	observer    Observer
}

// NewResolver creates a resolver trying strategies in order.
func NewResolver(strategies []Strategy, staking StakedSource, listings ListingSource, concurrency int) *Resolver {
	if concurrency <= 0 {
		concurrency = DefaultConcurrency
	}
	return &Resolver{
		strategies:  strategies,
		staking:     staking,
		listings:    listings,
		concurrency: concurrency,
	}
}

// SetObserver reports strategy outcomes to o.
func (r *Resolver) SetObserver(o Observer) {
	r.observer = o
}

type discovery struct {
	ids      []int
	strategy string
	ok       bool
}

// Resolve discovers wallet holdings, staked and listed tokens concurrently and merges them.
// Source failures never fail the call; collections no strategy could answer are listed in Unavailable.
func (r *Resolver) Resolve(ctx context.Context, wallet string, cols []domain.Collection) (Holdings, error) {
	if !common.IsHexAddress(wallet) {
		return Holdings{}, fmt.Errorf("%w: %q", ErrInvalidWallet, wallet)
	}

	pass := NewPass()
	ctx = WithPass(ctx, pass)
	start := time.Now()

	var (
		wg       sync.WaitGroup
		walletOf map[string]discovery
		staked   map[string][]int
		listed   map[string][]int
	)
	wg.Add(3)
	go func() {
		defer wg.Done()
		walletOf = r.discoverAll(ctx, wallet, cols)
	}()
	go func() {
		defer wg.Done()
		staked = r.stakedSets(ctx, wallet, cols)
	}()
	go func() {
		defer wg.Done()
		listed = r.listedSets(ctx, wallet, cols)
	}()
	wg.Wait()

	if err := ctx.Err(); err != nil {
		return Holdings{}, err
	}

	h := Holdings{
		Wallet:      wallet,
		PassID:      pass.ID,
		Unavailable: []string{},
		Sources:     make(map[string]string),
	}
	walletSets := make(map[string][]int, len(walletOf))
	for _, col := range cols {
		d := walletOf[col.Key()]
		if !d.ok {
			h.Unavailable = append(h.Unavailable, col.Address)
			continue
		}
		h.Sources[col.Address] = d.strategy
		walletSets[col.Key()] = d.ids
	}

	addresses := lo.SliceToMap(cols, func(c domain.Collection) (string, string) { return c.Key(), c.Address })
	h.Tokens = Merge(walletSets, staked, listed)
	for i := range h.Tokens {
		if addr, ok := addresses[h.Tokens[i].CollectionAddress]; ok {
			h.Tokens[i].CollectionAddress = addr
		}
	}

	slog.Info("ownership resolved",
		"pass", pass.ID,
		"wallet", wallet,
		"tokens", len(h.Tokens),
		"unavailable", len(h.Unavailable),
		"duration", time.Since(start),
	)
	return h, nil
}

func (r *Resolver) discoverAll(ctx context.Context, wallet string, cols []domain.Collection) map[string]discovery {
	var (
		mu  sync.Mutex
		wg  sync.WaitGroup
		out = make(map[string]discovery, len(cols))
		sem = make(chan struct{}, r.concurrency)
	)

	for _, col := range cols {
		wg.Add(1)
		go func() {
			defer wg.Done()

			select {
			case sem <- struct{}{}:
			case <-ctx.Done():
				return
			}
			defer func() { <-sem }()

			d := r.discover(ctx, col, wallet)
			mu.Lock()
			out[col.Key()] = d
			mu.Unlock()
		}()
	}
	wg.Wait()
	return out
}

// discover runs the cascade for one collection; the first strategy that answers wins.
func (r *Resolver) discover(ctx context.Context, col domain.Collection, wallet string) discovery {
	for _, s := range r.strategies {
		ids, ok, err := s.TryResolve(ctx, col, wallet)
		switch {
		case ok:
			r.observe(s.Name(), OutcomeHit)
			return discovery{ids: ids, strategy: s.Name(), ok: true}
		case err == nil:
			r.observe(s.Name(), OutcomeMiss)
		case errors.Is(err, domain.ErrCapabilityUnsupported):
			r.observe(s.Name(), OutcomeUnsupported)
			slog.Debug("strategy unsupported", "strategy", s.Name(), "collection", col.Name)
		default:
			r.observe(s.Name(), OutcomeError)
			slog.Warn("strategy failed", "strategy", s.Name(), "collection", col.Name, "error", err)
		}
		if ctx.Err() != nil {
			break
		}
	}
	return discovery{}
}

func (r *Resolver) observe(strategy, outcome string) {
	if r.observer != nil {
		r.observer.ObserveStrategy(strategy, outcome)
	}
}

func (r *Resolver) stakedSets(ctx context.Context, wallet string, cols []domain.Collection) map[string][]int {
	if r.staking == nil {
		return nil
	}
	return r.fanOut(ctx, domain.StakeableCollections(cols), func(col domain.Collection) ([]int, error) {
		return r.staking.GetStakedTokens(ctx, wallet, col.Address)
	}, "staked tokens")
}

func (r *Resolver) listedSets(ctx context.Context, wallet string, cols []domain.Collection) map[string][]int {
	if r.listings == nil {
		return nil
	}
	return r.fanOut(ctx, cols, func(col domain.Collection) ([]int, error) {
		listings, err := r.listings.ActiveListings(ctx, col.Address)
		if err != nil {
			return nil, err
		}
		own := lo.Filter(listings, func(l domain.Listing, _ int) bool { return l.Active && l.SoldBy(wallet) })
		return lo.Map(own, func(l domain.Listing, _ int) int { return l.TokenID }), nil
	}, "listed tokens")
}

// fanOut runs fetch per collection under the semaphore. Failures are logged and leave the collection out.
func (r *Resolver) fanOut(ctx context.Context, cols []domain.Collection, fetch func(domain.Collection) ([]int, error), what string) map[string][]int {
	var (
		mu  sync.Mutex
		wg  sync.WaitGroup
		out = make(map[string][]int, len(cols))
		sem = make(chan struct{}, r.concurrency)
	)

	for _, col := range cols {
		wg.Add(1)
		go func() {
			defer wg.Done()

			select {
			case sem <- struct{}{}:
			case <-ctx.Done():
				return
			}
			defer func() { <-sem }()

			ids, err := fetch(col)
			if err != nil {
				slog.Warn("fetching "+what+" failed", "collection", col.Name, "error", err)
				return
			}
			mu.Lock()
			out[col.Key()] = ids
			mu.Unlock()
		}()
	}
	wg.Wait()
	return out
}

// Merge places every token in exactly one state. Keys are collection addresses in any case;
// staked and listed tokens leave the wallet set and listed wins over staked.
// The result is sorted by collection, state, token id.
func Merge(wallet, staked, listed map[string][]int) []domain.OwnedToken {
	states := make(map[domain.TokenKey]domain.TokenState)
	add := func(sets map[string][]int, state domain.TokenState) {
		for col, ids := range sets {
			for _, id := range ids {
				key := domain.NewTokenKey(col, id)
				if current, ok := states[key]; ok && !state.Outranks(current) {
					continue
				}
				states[key] = state
			}
		}
	}
	add(wallet, domain.TokenStateWallet)
	add(staked, domain.TokenStateStaked)
	add(listed, domain.TokenStateListed)

	tokens := lo.MapToSlice(states, func(k domain.TokenKey, s domain.TokenState) domain.OwnedToken {
		return domain.OwnedToken{CollectionAddress: k.Collection, TokenID: k.TokenID, State: s}
	})
	slices.SortFunc(tokens, func(a, b domain.OwnedToken) int {
		return cmp.Or(
			cmp.Compare(a.CollectionAddress, b.CollectionAddress),
			cmp.Compare(a.State, b.State),
			cmp.Compare(a.TokenID, b.TokenID),
		)
	})
	return tokens
}
