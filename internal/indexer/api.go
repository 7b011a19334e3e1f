package indexer

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
)

func userPath(address, suffix string) string {
	return "/user/" + url.PathEscape(strings.ToLower(address)) + suffix
}

// FetchUserNFTs returns the indexed holdings of a wallet.
func (c *Client) FetchUserNFTs(ctx context.Context, address string) (UserNFTs, error) {
	var out UserNFTs
	if err := c.getJSON(ctx, userPath(address, "/nfts"), &out); err != nil {
		return UserNFTs{}, fmt.Errorf("fetching nfts for %s: %w", address, err)
	}
	return out, nil
}

// FetchUnreadCounts returns unread notification counters.
func (c *Client) FetchUnreadCounts(ctx context.Context, address string) (UnreadCounts, error) {
	var out UnreadCounts
	if err := c.getJSON(ctx, userPath(address, "/notifications/unread"), &out); err != nil {
		return UnreadCounts{}, fmt.Errorf("fetching unread notifications for %s: %w", address, err)
	}
	return out, nil
}

// FetchNotifications returns all notifications of a wallet.
func (c *Client) FetchNotifications(ctx context.Context, address string) ([]Notification, error) {
	var out []Notification
	if err := c.getJSON(ctx, userPath(address, "/notifications"), &out); err != nil {
		return nil, fmt.Errorf("fetching notifications for %s: %w", address, err)
	}
	return out, nil
}

// ClearNotifications marks every notification of a wallet as read.
func (c *Client) ClearNotifications(ctx context.Context, address string) error {
	if _, err := c.do(ctx, http.MethodPost, userPath(address, "/notifications/clear"), []byte("{}")); err != nil {
		return fmt.Errorf("clearing notifications for %s: %w", address, err)
	}
	return nil
}

// FetchUserActivity returns the activity history of a wallet.
func (c *Client) FetchUserActivity(ctx context.Context, address string) ([]ActivityEvent, error) {
	var out []ActivityEvent
	if err := c.getJSON(ctx, userPath(address, "/activity"), &out); err != nil {
		return nil, fmt.Errorf("fetching activity for %s: %w", address, err)
	}
	return out, nil
}

// FetchUserStats returns trading statistics of a wallet.
func (c *Client) FetchUserStats(ctx context.Context, address string) (UserStats, error) {
	var out UserStats
	if err := c.getJSON(ctx, userPath(address, "/stats"), &out); err != nil {
		return UserStats{}, fmt.Errorf("fetching stats for %s: %w", address, err)
	}
	return out, nil
}

// FetchCollectionStats returns indexed statistics of a collection.
func (c *Client) FetchCollectionStats(ctx context.Context, collection string) (CollectionStats, error) {
	var out CollectionStats
	path := "/collection/" + url.PathEscape(collection) + "/stats"
	if err := c.getJSON(ctx, path, &out); err != nil {
		return CollectionStats{}, fmt.Errorf("fetching collection stats for %s: %w", collection, err)
	}
	return out, nil
}

// FetchRecentActivity returns the latest marketplace events across all collections.
func (c *Client) FetchRecentActivity(ctx context.Context, limit int) ([]ActivityEvent, error) {
	var out []ActivityEvent
	if err := c.getJSON(ctx, fmt.Sprintf("/activity?limit=%d", limit), &out); err != nil {
		return nil, fmt.Errorf("fetching recent activity: %w", err)
	}
	return out, nil
}

// FetchLeaderboard returns the requested leaderboard.
func (c *Client) FetchLeaderboard(ctx context.Context, kind LeaderboardKind) ([]LeaderboardEntry, error) {
	var out []LeaderboardEntry
	if err := c.getJSON(ctx, "/leaderboard/"+string(kind), &out); err != nil {
		return nil, fmt.Errorf("fetching %s leaderboard: %w", kind, err)
	}
	return out, nil
}
