package worker

import (
	"context"
	"errors"
	"math/big"
	"sync"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mtlprog/nftstate/internal/chain"
)

var (
	testMarketplace = common.HexToAddress("0xc99c294224BCB259F1860F0EeaABa664b29d1633")
	testCollection  = common.HexToAddress("0x35afb6Ba51839dEDD33140A3b704b39933D1e642")
)

type fakeStream struct {
	mu      sync.Mutex
	batches [][]chain.Log
	calls   int
	queries []chain.FilterQuery
	cancel  context.CancelFunc
}

// Subscribe delivers the next batch and drops the connection; after the last batch it cancels the run.
func (f *fakeStream) Subscribe(ctx context.Context, q chain.FilterQuery, handle func(chain.Log)) error {
	f.mu.Lock()
	i := f.calls
	f.calls++
	f.queries = append(f.queries, q)
	f.mu.Unlock()

	if i >= len(f.batches) {
		f.cancel()
		<-ctx.Done()
		return ctx.Err()
	}
	for _, l := range f.batches[i] {
		handle(l)
	}
	return errors.New("connection reset")
}

type eventRecord struct {
	kind       string
	collection string
	tokenID    int
}

type fakeEventRecorder struct {
	mu         sync.Mutex
	events     []eventRecord
	reconnects int
}

func (f *fakeEventRecorder) ObserveMarketEvent(ev chain.MarketEvent, _ time.Time) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events = append(f.events, eventRecord{ev.Kind, ev.Collection, ev.TokenID})
}

func (f *fakeEventRecorder) ObserveReconnect() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.reconnects++
}

func tokenTopic(id int64) common.Hash {
	return common.BigToHash(big.NewInt(id))
}

func marketLog(event common.Hash, tokenID int64) chain.Log {
	return chain.Log{
		Address: testMarketplace,
		Topics:  []common.Hash{event, common.BytesToHash(testCollection.Bytes()), tokenTopic(tokenID)},
	}
}

func soldLog(t *testing.T, tokenID int64, buyer common.Address) chain.Log {
	t.Helper()
	addressT, err := abi.NewType("address", "", nil)
	require.NoError(t, err)
	uintT, err := abi.NewType("uint256", "", nil)
	require.NoError(t, err)

	data, err := abi.Arguments{{Type: addressT}, {Type: uintT}, {Type: uintT}}.Pack(
		common.HexToAddress("0x5e11e7"), big.NewInt(1e18), big.NewInt(0))
	require.NoError(t, err)

	l := marketLog(chain.SoldEventID, tokenID)
	l.Topics = append(l.Topics, common.BytesToHash(buyer.Bytes()))
	l.Data = data
	l.BlockNumber = 42
	return l
}

func TestMarketWatcherRecordsEventsAndReconnects(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	removed := marketLog(chain.ListedEventID, 3)
	removed.Removed = true

	stream := &fakeStream{
		batches: [][]chain.Log{
			{marketLog(chain.ListedEventID, 1), removed},
			{marketLog(chain.UnlistedEventID, 1), soldLog(t, 2, common.HexToAddress("0xb0b"))},
		},
		cancel: cancel,
	}
	rec := &fakeEventRecorder{}

	w := NewMarketWatcher(stream, testMarketplace, rec)
	w.minBackoff = time.Millisecond
	w.maxBackoff = 2 * time.Millisecond
	w.Run(ctx)

	want := []eventRecord{
		{"listed", testCollection.Hex(), 1},
		{"unlisted", testCollection.Hex(), 1},
		{"sold", testCollection.Hex(), 2},
	}
	assert.Equal(t, want, rec.events)
	assert.Equal(t, 3, stream.calls)
	assert.Equal(t, 2, rec.reconnects)

	require.NotEmpty(t, stream.queries)
	q := stream.queries[0]
	assert.Equal(t, []common.Address{testMarketplace}, q.Addresses)
	require.Len(t, q.Topics, 1)
	assert.ElementsMatch(t, []common.Hash{chain.ListedEventID, chain.UnlistedEventID, chain.SoldEventID}, q.Topics[0])
}

func TestMarketWatcherIgnoresForeignLogs(t *testing.T) {
	rec := &fakeEventRecorder{}
	w := NewMarketWatcher(nil, testMarketplace, rec)

	w.handle(chain.Log{Topics: []common.Hash{common.HexToHash("0x01"), {}, {}}})
	w.handle(chain.Log{Topics: []common.Hash{chain.SoldEventID}})

	assert.Empty(t, rec.events)
}

func TestMarketWatcherStopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	stream := &fakeStream{cancel: cancel}
	rec := &fakeEventRecorder{}

	done := make(chan struct{})
	go func() {
		NewMarketWatcher(stream, testMarketplace, rec).Run(ctx)
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("watcher did not stop after cancellation")
	}
	assert.Equal(t, 0, rec.reconnects)
}
