package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/ethereum/go-ethereum/common"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/mtlprog/nftstate/internal/api"
	"github.com/mtlprog/nftstate/internal/chain"
	"github.com/mtlprog/nftstate/internal/config"
	"github.com/mtlprog/nftstate/internal/currency"
	"github.com/mtlprog/nftstate/internal/database"
	"github.com/mtlprog/nftstate/internal/domain"
	"github.com/mtlprog/nftstate/internal/export"
	"github.com/mtlprog/nftstate/internal/external"
	"github.com/mtlprog/nftstate/internal/indexer"
	"github.com/mtlprog/nftstate/internal/listing"
	"github.com/mtlprog/nftstate/internal/metadata"
	"github.com/mtlprog/nftstate/internal/metrics"
	"github.com/mtlprog/nftstate/internal/ownership"
	"github.com/mtlprog/nftstate/internal/portfolio"
	"github.com/mtlprog/nftstate/internal/snapshot"
)

// app holds the wired services shared by every command.
type app struct {
	cfg         config.Config
	collections []domain.Collection
	metrics     *metrics.Metrics

	marketplace *chain.Marketplace
	staking     *chain.Staking
	pool        *chain.Pool
	indexer     *indexer.Client
	rates       *currency.Service
	metadata    *metadata.Store
	resolver    *ownership.Resolver
	market      *listing.Aggregator
	portfolio   *portfolio.Service
}

func newApp(cfg config.Config) (*app, error) {
	collections, err := config.LoadCollections(cfg.CollectionsFile)
	if err != nil {
		return nil, err
	}

	m := metrics.New("nftstate")

	rpc, err := chain.NewClient(cfg.RPCURL,
		chain.WithMaxRetries(cfg.RPCRetryMax),
		chain.WithRetryDelay(cfg.RPCRetryDelay),
		chain.WithHTTPClient(&http.Client{Timeout: cfg.RPCTimeout}),
		chain.WithRateLimit(cfg.RPCRequestsPerSec, cfg.RPCBurst),
		chain.WithObserver(m),
	)
	if err != nil {
		return nil, fmt.Errorf("creating RPC client: %w", err)
	}
	tokens := chain.NewERC721(rpc, rpc)
	marketplace := chain.NewMarketplace(rpc, rpc, domain.MarketplaceAddress)
	staking := chain.NewStaking(rpc, domain.NFTStakingAddress)
	pool := chain.NewPool(rpc, domain.PondPoolAddress)

	idx := indexer.NewClient(cfg.IndexerURL, cfg.IndexerRetryMax, cfg.IndexerRetryDelay, cfg.IndexerTimeout)
	rates := currency.NewService(pool, currency.NewConverter(decimal.NewFromInt(int64(cfg.DegradedRateDivisor))))
	store := metadata.NewStore(cfg.MetadataBaseURL)
	market := listing.NewAggregator(marketplace, rates, store, cfg.ListingBatchSize)

	resolver := ownership.NewResolver([]ownership.Strategy{
		ownership.NewIndexerStrategy(idx),
		ownership.NewEnumerableStrategy(tokens),
		ownership.NewEventScanStrategy(tokens, cfg.LogChunkSize, cfg.LogMaxChunks),
		ownership.NewProbeStrategy(tokens, store, cfg.ProbeBatchSize),
	}, staking, market, cfg.ResolveConcurrency)
	resolver.SetObserver(m)

	return &app{
		cfg:         cfg,
		collections: collections,
		metrics:     m,
		marketplace: marketplace,
		staking:     staking,
		pool:        pool,
		indexer:     idx,
		rates:       rates,
		metadata:    store,
		resolver:    resolver,
		market:      market,
		portfolio:   portfolio.NewService(resolver, marketplace, staking, pool, idx, rates, collections),
	}, nil
}

// openDatabase connects and migrates. The caller closes the pool.
func (a *app) openDatabase(ctx context.Context) (*pgxpool.Pool, error) {
	if a.cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is required")
	}
	pool, err := database.Connect(ctx, a.cfg.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("connecting to database: %w", err)
	}
	if err := database.RunMigrations(ctx, pool, database.Migrations()); err != nil {
		pool.Close()
		return nil, fmt.Errorf("running migrations: %w", err)
	}
	return pool, nil
}

// storage is the database-backed part of the service.
type storage struct {
	quotes       *external.Service
	snapshotRepo *snapshot.PgRepository
	snapshots    *snapshot.Service
	exporter     *export.Service
}

func (a *app) newStorage(ctx context.Context, pool *pgxpool.Pool, writers ...export.Writer) *storage {
	coingecko := external.NewCoinGeckoClient(a.cfg.CoinGeckoURL, a.cfg.CoinGeckoDelay, a.cfg.CoinGeckoRetryMax)
	quotes := external.NewService(coingecko, external.NewPgQuoteRepository(pool))

	repo := snapshot.NewPgRepository(pool)
	snapshots := snapshot.NewService(a.market, repo, a.collections, quotes)

	if a.cfg.GoogleSheetID != "" && a.cfg.GoogleCredentials != "" {
		sheets, err := export.NewSheetsWriter(ctx, a.cfg.GoogleSheetID, a.cfg.GoogleCredentials)
		if err != nil {
			slog.Error("Google Sheets export disabled", "error", err)
		} else {
			writers = append(writers, sheets)
		}
	}

	return &storage{
		quotes:       quotes,
		snapshotRepo: repo,
		snapshots:    snapshots,
		exporter:     export.NewService(repo, writers...),
	}
}

func (a *app) handler(snapshots api.SnapshotService) *api.Handler {
	return api.NewHandler(api.Deps{
		Collections: a.collections,
		Holdings:    a.resolver,
		Profiles:    a.portfolio,
		Market:      a.market,
		Metadata:    a.metadata,
		Indexer:     a.indexer,
		Sales:       a.marketplace,
		Staking:     a.staking,
		Rates:       a.rates,
		Snapshots:   snapshots,
	})
}

func (a *app) marketplaceAddress() common.Address {
	return a.marketplace.Address()
}
