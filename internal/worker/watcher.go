package worker

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"github.com/mtlprog/nftstate/internal/chain"
)

const (
	watcherMinBackoff = time.Second
	watcherMaxBackoff = time.Minute
	// A subscription that stayed up this long resets the backoff.
	watcherStableAfter = 30 * time.Second
)

// LogStream delivers matching logs until the subscription ends.
type LogStream interface {
	Subscribe(ctx context.Context, q chain.FilterQuery, handle func(chain.Log)) error
}

// EventRecorder records marketplace activity.
type EventRecorder interface {
	ObserveMarketEvent(ev chain.MarketEvent, at time.Time)
	ObserveReconnect()
}

// MarketWatcher follows marketplace Listed, Unlisted and Sold logs over a websocket subscription
// and reconnects with exponential backoff when it drops.
type MarketWatcher struct {
	stream      LogStream
	marketplace common.Address
	recorder    EventRecorder
	minBackoff  time.Duration
	maxBackoff  time.Duration
	now         func() time.Time
}

// NewMarketWatcher creates a watcher for the marketplace contract.
func NewMarketWatcher(stream LogStream, marketplace common.Address, recorder EventRecorder) *MarketWatcher {
	return &MarketWatcher{
		stream:      stream,
		marketplace: marketplace,
		recorder:    recorder,
		minBackoff:  watcherMinBackoff,
		maxBackoff:  watcherMaxBackoff,
		now:         time.Now,
	}
}

// Query is the log filter used for the subscription.
func (w *MarketWatcher) Query() chain.FilterQuery {
	return chain.FilterQuery{
		Addresses: []common.Address{w.marketplace},
		Topics:    [][]common.Hash{{chain.ListedEventID, chain.UnlistedEventID, chain.SoldEventID}},
	}
}

func (w *MarketWatcher) handle(l chain.Log) {
	if l.Removed {
		return
	}
	ev, ok := chain.DecodeMarketEvent(l)
	if !ok {
		return
	}
	w.recorder.ObserveMarketEvent(ev, w.now())

	if ev.Kind != "sold" {
		slog.Debug("MarketWatcher: event", "kind", ev.Kind, "collection", ev.Collection, "tokenId", ev.TokenID)
		return
	}
	sale, err := chain.DecodeSale(l)
	if err != nil {
		slog.Warn("MarketWatcher: undecodable sale", "tx", l.TxHash.Hex(), "error", err)
		return
	}
	slog.Info("MarketWatcher: sale",
		"collection", sale.Collection,
		"tokenId", sale.TokenID,
		"buyer", sale.Buyer,
		"block", sale.BlockNumber)
}

// Run subscribes and re-subscribes until the context is cancelled.
func (w *MarketWatcher) Run(ctx context.Context) {
	slog.Info("MarketWatcher: starting", "marketplace", w.marketplace.Hex())

	backoff := w.minBackoff
	for first := true; ; first = false {
		if !first {
			w.recorder.ObserveReconnect()
		}

		started := w.now()
		err := w.stream.Subscribe(ctx, w.Query(), w.handle)
		if ctx.Err() != nil {
			slog.Info("MarketWatcher: shutting down")
			return
		}
		if w.now().Sub(started) >= watcherStableAfter {
			backoff = w.minBackoff
		}
		if err == nil {
			err = errors.New("subscription closed")
		}
		slog.Warn("MarketWatcher: subscription ended, reconnecting", "error", err, "backoff", backoff)

		select {
		case <-ctx.Done():
			slog.Info("MarketWatcher: shutting down")
			return
		case <-time.After(backoff):
		}
		backoff = min(backoff*2, w.maxBackoff)
	}
}
