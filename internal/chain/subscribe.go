package chain

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/ethereum/go-ethereum/rpc"
	"github.com/gorilla/websocket"

	"github.com/mtlprog/nftstate/internal/domain"
)

const (
	subscribeHandshakeTimeout = 10 * time.Second
	subscribeBuffer           = 64
)

// LogSubscriber streams logs over an eth_subscribe websocket.
type LogSubscriber struct {
	url    string
	dialer websocket.Dialer
}

// NewLogSubscriber creates a subscriber for the websocket endpoint.
func NewLogSubscriber(url string) *LogSubscriber {
	return &LogSubscriber{
		url:    url,
		dialer: websocket.Dialer{HandshakeTimeout: subscribeHandshakeTimeout},
	}
}

// Subscribe delivers logs matching q to handle until ctx is cancelled or the connection drops.
// Reconnection is left to the caller.
func (s *LogSubscriber) Subscribe(ctx context.Context, q FilterQuery, handle func(Log)) error {
	rc, err := rpc.DialOptions(ctx, s.url, rpc.WithWebsocketDialer(s.dialer))
	if err != nil {
		return fmt.Errorf("%w: dialing %s: %w", domain.ErrSourceUnavailable, s.url, err)
	}
	client := ethclient.NewClient(rc)
	defer client.Close()

	logs := make(chan Log, subscribeBuffer)
	sub, err := client.SubscribeFilterLogs(ctx, q.liveQuery(), logs)
	if err != nil {
		return fmt.Errorf("eth_subscribe: %w", err)
	}
	defer sub.Unsubscribe()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case err := <-sub.Err():
			if err == nil {
				err = errors.New("subscription closed")
			}
			return fmt.Errorf("%w: log subscription: %w", domain.ErrSourceUnavailable, err)
		case l := <-logs:
			handle(l)
		}
	}
}
