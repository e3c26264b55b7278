package config

import (
	"fmt"
	"os"
	"path"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/yumyai/roundup/logger"
)

// Config holds everything the web server and the worker need at startup.
type Config struct {
	// DataDir is the root of the on-disk layout (catalog db, results, blast dbs)
	DataDir    string
	ListenAddr string
	LogLevel   string

	// CatalogDB is the sqlite file with genomes, loaded results and gene names
	CatalogDB string
	// CacheDriver is one of sqlite, mysql or memory
	CacheDriver string
	CacheDSN    string
	ResultRoot  string

	BackendURL     string
	BackendTimeout time.Duration

	RedisURL   string
	AsyncQueue string

	// Queries touching fewer genomes than this run synchronously
	SyncGenomeLimit   int
	SyncTimeout       time.Duration
	UnknownRetryDelay time.Duration
	WaitDelay         time.Duration
	MaxGenomes        int
	GenomeRefresh     time.Duration
	EvictStaleCache   bool

	WorkerConcurrency int
	// WorkerMetricsAddr serves /metrics from the worker; empty disables it
	WorkerMetricsAddr string

	BlastDBDir    string
	SequenceDBDir string
}

// Load reads .env (if any) and the environment. Missing .env is not an error.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		logger.Warn("No .env found, using local environment")
	}

	dataDir := getEnv("ROUNDUP_DATA", "")
	if dataDir == "" {
		logger.Warn("No local environment (ROUNDUP_DATA), using default value (./data)")
		dataDir = "./data"
	}

	cfg := &Config{
		DataDir:           dataDir,
		ListenAddr:        getEnv("LISTEN_ADDR", "0.0.0.0:8080"),
		LogLevel:          getEnv("LOG_LEVEL", "info"),
		CatalogDB:         getEnv("CATALOG_DB", path.Join(dataDir, "db/roundup.db")),
		CacheDriver:       strings.ToLower(getEnv("CACHE_DRIVER", "sqlite")),
		CacheDSN:          getEnv("CACHE_DSN", path.Join(dataDir, "db/roundup_cache.db")),
		ResultRoot:        getEnv("RESULT_ROOT", path.Join(dataDir, "results")),
		BackendURL:        getEnv("BACKEND_URL", "http://localhost:8090"),
		BackendTimeout:    getEnvAsDuration("BACKEND_TIMEOUT", 2*time.Minute),
		RedisURL:          getEnv("REDIS_URL", "redis://localhost:6379"),
		AsyncQueue:        getEnv("ASYNC_QUEUE", "long"),
		SyncGenomeLimit:   getEnvAsInt("SYNC_GENOME_LIMIT", 20),
		SyncTimeout:       getEnvAsDuration("SYNC_TIMEOUT", time.Hour),
		UnknownRetryDelay: getEnvAsDuration("UNKNOWN_RETRY_DELAY", 4*time.Second),
		WaitDelay:         getEnvAsDuration("WAIT_DELAY", 5*time.Second),
		MaxGenomes:        getEnvAsInt("MAX_GENOMES", 1000000),
		GenomeRefresh:     getEnvAsDuration("GENOME_REFRESH", 10*time.Minute),
		EvictStaleCache:   getEnvAsBool("EVICT_STALE_CACHE", false),
		WorkerConcurrency: getEnvAsInt("WORKER_CONCURRENCY", 2),
		WorkerMetricsAddr: getEnv("WORKER_METRICS_ADDR", "0.0.0.0:9091"),
		BlastDBDir:        getEnv("BLAST_DB_DIR", path.Join(dataDir, "db/blastdb")),
		SequenceDBDir:     getEnv("SEQUENCE_DB_DIR", path.Join(dataDir, "db/sequence_db")),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) Validate() error {
	switch c.CacheDriver {
	case "sqlite", "mysql", "memory":
	default:
		return fmt.Errorf("CACHE_DRIVER must be sqlite, mysql or memory, got %q", c.CacheDriver)
	}
	if c.CacheDriver != "memory" && c.CacheDSN == "" {
		return fmt.Errorf("CACHE_DSN cannot be empty for driver %s", c.CacheDriver)
	}
	if c.SyncGenomeLimit < 1 {
		return fmt.Errorf("SYNC_GENOME_LIMIT must be at least 1")
	}
	if c.MaxGenomes < 2 {
		return fmt.Errorf("MAX_GENOMES must be at least 2")
	}
	if c.WorkerConcurrency < 1 {
		return fmt.Errorf("WORKER_CONCURRENCY must be at least 1")
	}
	if c.WaitDelay <= 0 {
		return fmt.Errorf("WAIT_DELAY must be positive")
	}
	if c.BackendURL == "" {
		return fmt.Errorf("BACKEND_URL cannot be empty")
	}
	return nil
}

func getEnv(key, defaultValue string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	value, err := strconv.Atoi(getEnv(key, ""))
	if err != nil {
		return defaultValue
	}
	return value
}

func getEnvAsBool(key string, defaultValue bool) bool {
	value, err := strconv.ParseBool(getEnv(key, ""))
	if err != nil {
		return defaultValue
	}
	return value
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	value, err := time.ParseDuration(getEnv(key, ""))
	if err != nil {
		return defaultValue
	}
	return value
}
