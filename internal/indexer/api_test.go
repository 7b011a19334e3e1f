package indexer

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestFetchUserNFTs(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/user/0xabc/nfts" {
			t.Errorf("path = %q, want lowercased address", r.URL.Path)
		}
		w.Write([]byte(`{"total":3,"collections":[{"collection":"0xC1","tokenIds":[1,"2"]},{"collection":"0xC2","tokenIds":[9]}]}`))
	}))
	defer server.Close()

	nfts, err := newTestClient(server.URL, 0).FetchUserNFTs(context.Background(), "0xABC")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if nfts.Total != 3 || len(nfts.Collections) != 2 {
		t.Fatalf("unexpected result: %+v", nfts)
	}
	ids := nfts.Collections[0].Ints()
	if len(ids) != 2 || ids[0] != 1 || ids[1] != 2 {
		t.Errorf("ids = %v, want [1 2]", ids)
	}
}

func TestClearNotificationsPosts(t *testing.T) {
	var method string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		method = r.Method
		w.Write([]byte(`{"ok":true}`))
	}))
	defer server.Close()

	if err := newTestClient(server.URL, 0).ClearNotifications(context.Background(), "0xabc"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if method != http.MethodPost {
		t.Errorf("method = %s, want POST", method)
	}
}

func TestFetchRecentActivityParsesPrices(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("limit") != "20" {
			t.Errorf("limit = %q, want 20", r.URL.Query().Get("limit"))
		}
		w.Write([]byte(`[{"event_type":"sold","collection":"0xc1","token_id":"42","price_sgb":"12.5","price_pond":0,"timestamp":1700000000}]`))
	}))
	defer server.Close()

	events, err := newTestClient(server.URL, 0).FetchRecentActivity(context.Background(), 20)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(events) != 1 {
		t.Fatalf("len = %d, want 1", len(events))
	}
	if events[0].TokenID != 42 || events[0].PriceSGB.String() != "12.5" {
		t.Errorf("unexpected event: %+v", events[0])
	}
}

func TestParseLeaderboardKind(t *testing.T) {
	for _, s := range []string{"stakers", "traders", "lp"} {
		if _, ok := ParseLeaderboardKind(s); !ok {
			t.Errorf("ParseLeaderboardKind(%q) rejected", s)
		}
	}
	if _, ok := ParseLeaderboardKind("whales"); ok {
		t.Error("unknown kind accepted")
	}
}
