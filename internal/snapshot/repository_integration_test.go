//go:build integration

package snapshot

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mtlprog/nftstate/internal/database/dbtest"
	"github.com/mtlprog/nftstate/internal/domain"
)

func TestPgRepositorySaveAndQuery(t *testing.T) {
	repo := NewPgRepository(dbtest.Pool(t))
	ctx := context.Background()

	day1 := time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)
	day2 := day1.AddDate(0, 0, 1)

	for _, d := range []struct {
		date  time.Time
		floor string
	}{{day1, "80"}, {day2, "100"}} {
		snap := MarketSnapshot{Date: d.date, Collections: []CollectionSnapshot{
			{Address: "0xAAA", Floor: decPtr(d.floor), ListedCount: 2,
				Volume: &domain.VolumeStats{EquivalentA: dec("10"), Sales: 1}},
		}}
		data, err := json.Marshal(snap)
		require.NoError(t, err)
		require.NoError(t, repo.Save(ctx, d.date, data, snap.Collections))
	}

	latest, err := repo.GetLatest(ctx)
	require.NoError(t, err)
	assert.True(t, latest.SnapshotDate.Equal(day2))

	prev, err := repo.GetNearestBefore(ctx, day2)
	require.NoError(t, err)
	assert.True(t, prev.SnapshotDate.Equal(day1))

	decoded, err := prev.Decode()
	require.NoError(t, err)
	require.Len(t, decoded.Collections, 1)
	assert.True(t, decoded.Collections[0].Floor.Equal(dec("80")))

	_, err = repo.GetByDate(ctx, day1.AddDate(0, 0, -1))
	assert.ErrorIs(t, err, ErrNotFound)

	list, err := repo.List(ctx, 10)
	require.NoError(t, err)
	assert.Len(t, list, 2)

	history, err := repo.FloorHistory(ctx, "0xaaa", 10)
	require.NoError(t, err)
	require.Len(t, history, 2)
	assert.True(t, history[0].Floor.Equal(dec("100")))
	assert.Equal(t, 2, history[0].ListedCount)
	require.NotNil(t, history[0].VolumeA)
	assert.True(t, history[0].VolumeA.Equal(dec("10")))
}

func TestPgRepositorySaveUpserts(t *testing.T) {
	repo := NewPgRepository(dbtest.Pool(t))
	ctx := context.Background()
	date := time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)

	require.NoError(t, repo.Save(ctx, date, json.RawMessage(`{"totalSales": 1}`), nil))
	require.NoError(t, repo.Save(ctx, date, json.RawMessage(`{"totalSales": 2}`),
		[]CollectionSnapshot{{Address: "0xBBB"}}))

	got, err := repo.GetByDate(ctx, date)
	require.NoError(t, err)
	decoded, err := got.Decode()
	require.NoError(t, err)
	assert.Equal(t, int64(2), decoded.TotalSales)

	history, err := repo.FloorHistory(ctx, "0xbbb", 0)
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.Nil(t, history[0].Floor)
	assert.Nil(t, history[0].VolumeA, "unread volume is stored as NULL")
	assert.Nil(t, history[0].Sales)
}
