package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/mtlprog/nftstate/internal/domain"
)

// Config holds all application configuration loaded from environment variables.
type Config struct {
	RPCURL               string
	RPCWebSocketURL      string
	IndexerURL           string
	DatabaseURL          string
	CoinGeckoURL         string
	MetadataBaseURL      string
	CollectionsFile      string
	RPCRetryMax          int
	RPCRetryDelay        time.Duration
	RPCTimeout           time.Duration
	RPCRequestsPerSec    float64
	RPCBurst             int
	IndexerRetryMax      int
	IndexerRetryDelay    time.Duration
	IndexerTimeout       time.Duration
	DegradedRateDivisor  int
	ResolveConcurrency   int
	ProbeBatchSize       int
	ListingBatchSize     int
	LogChunkSize         uint64
	LogMaxChunks         int
	CoinGeckoDelay       time.Duration
	CoinGeckoRetryMax    int
	QuoteWorkerInterval  time.Duration
	MarketWorkerInterval time.Duration
	GoogleSheetID        string
	GoogleCredentials    string
	HTTPPort             string
	AdminAPIKey          string
}

// LoadDotEnv loads a .env file into the process environment when one exists.
// Variables already set in the environment take precedence.
func LoadDotEnv(path string) {
	if _, err := os.Stat(path); err != nil {
		return
	}
	if err := godotenv.Load(path); err != nil {
		slog.Warn("failed to load env file", "path", path, "error", err)
	}
}

// Load reads configuration from environment variables with sensible defaults.
func Load() Config {
	return Config{
		RPCURL:               envOrDefault("RPC_URL", "https://songbird-api.flare.network/ext/C/rpc"),
		RPCWebSocketURL:      envOrDefault("RPC_WS_URL", ""),
		IndexerURL:           envOrDefault("INDEXER_URL", "https://toadz-indexer-production.up.railway.app"),
		DatabaseURL:          envOrDefaultWarn("DATABASE_URL", ""),
		CoinGeckoURL:         envOrDefault("COINGECKO_URL", "https://api.coingecko.com/api/v3"),
		MetadataBaseURL:      envOrDefault("METADATA_BASE_URL", "./metadata"),
		CollectionsFile:      envOrDefault("COLLECTIONS_FILE", ""),
		RPCRetryMax:          envOrDefaultInt("RPC_RETRY_MAX", 3),
		RPCRetryDelay:        envOrDefaultDuration("RPC_RETRY_DELAY", 500*time.Millisecond),
		RPCTimeout:           envOrDefaultDuration("RPC_TIMEOUT", 15*time.Second),
		RPCRequestsPerSec:    envOrDefaultFloat("RPC_REQUESTS_PER_SEC", 20),
		RPCBurst:             envOrDefaultInt("RPC_BURST", 50),
		IndexerRetryMax:      envOrDefaultInt("INDEXER_RETRY_MAX", 2),
		IndexerRetryDelay:    envOrDefaultDuration("INDEXER_RETRY_DELAY", 1*time.Second),
		IndexerTimeout:       envOrDefaultDuration("INDEXER_TIMEOUT", 10*time.Second),
		DegradedRateDivisor:  envOrDefaultInt("DEGRADED_RATE_DIVISOR", 1000),
		ResolveConcurrency:   envOrDefaultInt("RESOLVE_CONCURRENCY", 8),
		ProbeBatchSize:       envOrDefaultInt("PROBE_BATCH_SIZE", 50),
		ListingBatchSize:     envOrDefaultInt("LISTING_BATCH_SIZE", 50),
		LogChunkSize:         uint64(envOrDefaultInt("LOG_CHUNK_SIZE", 10000)),
		LogMaxChunks:         envOrDefaultInt("LOG_MAX_CHUNKS", 10),
		CoinGeckoDelay:       envOrDefaultDuration("COINGECKO_DELAY", 6*time.Second),
		CoinGeckoRetryMax:    envOrDefaultInt("COINGECKO_RETRY_MAX", 5),
		QuoteWorkerInterval:  envOrDefaultDuration("QUOTE_WORKER_INTERVAL", 1*time.Hour),
		MarketWorkerInterval: envOrDefaultDuration("MARKET_WORKER_INTERVAL", 6*time.Hour),
		GoogleSheetID:        envOrDefault("GOOGLE_SHEET_ID", ""),
		GoogleCredentials:    envOrDefault("GOOGLE_CREDENTIALS_JSON", ""),
		HTTPPort:             envOrDefault("HTTP_PORT", "8080"),
		AdminAPIKey:          envOrDefault("ADMIN_API_KEY", ""),
	}
}

type collectionsFile struct {
	Collections []domain.Collection `yaml:"collections"`
}

// LoadCollections returns the collection registry. An empty path selects the built-in registry.
func LoadCollections(path string) ([]domain.Collection, error) {
	if path == "" {
		return domain.CollectionRegistry, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading collections file: %w", err)
	}

	var file collectionsFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("parsing collections file %s: %w", path, err)
	}
	if len(file.Collections) == 0 {
		return nil, fmt.Errorf("collections file %s defines no collections", path)
	}

	seen := make(map[string]bool, len(file.Collections))
	for i, c := range file.Collections {
		if c.Address == "" {
			return nil, fmt.Errorf("collection #%d has no address", i)
		}
		if seen[c.Key()] {
			return nil, fmt.Errorf("duplicate collection %s", c.Address)
		}
		seen[c.Key()] = true
	}

	return file.Collections, nil
}

func envOrDefault(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}

func envOrDefaultWarn(key, defaultVal string) string {
	v := envOrDefault(key, defaultVal)
	if v == "" {
		slog.Warn("required env var not set", "key", key)
	}
	return v
}

func envOrDefaultInt(key string, defaultVal int) int {
	if v := os.Getenv(key); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			slog.Warn("invalid integer env var, using default", "key", key, "value", v, "default", defaultVal)
			return defaultVal
		}
		return n
	}
	return defaultVal
}

func envOrDefaultFloat(key string, defaultVal float64) float64 {
	if v := os.Getenv(key); v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			slog.Warn("invalid float env var, using default", "key", key, "value", v, "default", defaultVal)
			return defaultVal
		}
		return f
	}
	return defaultVal
}

func envOrDefaultDuration(key string, defaultVal time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			slog.Warn("invalid duration env var, using default", "key", key, "value", v, "default", defaultVal)
			return defaultVal
		}
		return d
	}
	return defaultVal
}
