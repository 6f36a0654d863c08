package config

import (
	"log"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config represents the overall application configuration.
type Config struct {
	Server     ServerConfig     `yaml:"server"`
	Database   DatabaseConfig   `yaml:"database"`
	Cache      CacheConfig      `yaml:"cache"`
	Generation GenerationConfig `yaml:"generation"`
	Realtime   RealtimeConfig   `yaml:"realtime"`
	Scheduler  SchedulerConfig  `yaml:"scheduler"`
	WorkerPool WorkerPoolConfig `yaml:"worker_pool"`
	Log        LogConfig        `yaml:"log"`
}

// ServerConfig holds the HTTP adapter configuration.
type ServerConfig struct {
	Port                 int           `yaml:"port"`
	RateLimitPerSec      float64       `yaml:"rate_limit_per_sec"`
	RateLimitBurst       int           `yaml:"rate_limit_burst"`
	ResponseCacheSeconds int           `yaml:"response_cache_seconds"`
	ResponseCache        time.Duration `yaml:"-"`
}

// DatabaseConfig holds the database connection configuration.
type DatabaseConfig struct {
	DSN                    string `yaml:"dsn"`
	MaxOpenConns           int    `yaml:"max_open_conns"`
	MaxIdleConns           int    `yaml:"max_idle_conns"`
	ConnMaxLifetimeMinutes int    `yaml:"conn_max_lifetime_minutes"`
	EnablePartialIndexes   bool   `yaml:"enable_partial_indexes"`
}

// CacheConfig selects the shared key/value store used for sessions and debounce keys.
type CacheConfig struct {
	Backend         string        `yaml:"backend"` // memory | redis
	RedisAddr       string        `yaml:"redis_addr"`
	RedisPassword   string        `yaml:"redis_password"`
	RedisDB         int           `yaml:"redis_db"`
	SessionTTLHours int           `yaml:"session_ttl_hours"`
	SessionTTL      time.Duration `yaml:"-"`
}

// GenerationConfig holds the segmentation defaults and the parallel run tuning.
type GenerationConfig struct {
	TimeThresholdMinutes         int     `yaml:"time_threshold_minutes"`
	DistanceThresholdMeters      float64 `yaml:"distance_threshold_meters"`
	ChunkSizeHours               int     `yaml:"chunk_size_hours"`
	BufferHours                  int     `yaml:"buffer_hours"`
	BoundaryDelayPerChunkSeconds int     `yaml:"boundary_delay_per_chunk_seconds"`
	BoundaryMinDelayMinutes      int     `yaml:"boundary_min_delay_minutes"`
	BoundaryWindowMinutes        int     `yaml:"boundary_window_minutes"`
	BoundaryMaxGroupGapMinutes   int     `yaml:"boundary_max_group_gap_minutes"`
	RecentTrackWindowMinutes     int     `yaml:"recent_track_window_minutes"`

	ChunkSize             time.Duration `yaml:"-"`
	Buffer                time.Duration `yaml:"-"`
	BoundaryDelayPerChunk time.Duration `yaml:"-"`
	BoundaryMinDelay      time.Duration `yaml:"-"`
	BoundaryWindow        time.Duration `yaml:"-"`
	BoundaryMaxGroupGap   time.Duration `yaml:"-"`
	RecentTrackWindow     time.Duration `yaml:"-"`
}

// RealtimeConfig holds the debounce and incremental generation settings.
type RealtimeConfig struct {
	DebounceTTLSeconds       int  `yaml:"debounce_ttl_seconds"`
	DebounceDelaySeconds     int  `yaml:"debounce_delay_seconds"`
	LookbackHours            int  `yaml:"lookback_hours"`
	GraceMinutes             int  `yaml:"grace_minutes"`
	BufferIncompleteSegments bool `yaml:"buffer_incomplete_segments"`

	DebounceTTL   time.Duration `yaml:"-"`
	DebounceDelay time.Duration `yaml:"-"`
	Lookback      time.Duration `yaml:"-"`
	Grace         time.Duration `yaml:"-"`
}

// SchedulerConfig controls the daily regeneration cycle.
type SchedulerConfig struct {
	DailyEnabled       bool          `yaml:"daily_enabled"`
	DailyIntervalHours int           `yaml:"daily_interval_hours"`
	DailyInterval      time.Duration `yaml:"-"`
}

// WorkerPoolConfig holds the configuration for the job worker pool.
type WorkerPoolConfig struct {
	Size      int `yaml:"size"`
	QueueSize int `yaml:"queue_size"`
}

// LogConfig selects the zap preset.
type LogConfig struct {
	Mode string `yaml:"mode"`
}

// Load reads the configuration from the given path.
func Load(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var cfg Config
	decoder := yaml.NewDecoder(f)
	if err := decoder.Decode(&cfg); err != nil {
		return nil, err
	}

	if cfg.WorkerPool.Size <= 0 {
		log.Printf("worker_pool.size is not set or invalid; defaulting to 1")
	}
	cfg.ApplyDefaults()
	return &cfg, nil
}

// Default returns a configuration with every default applied.
func Default() *Config {
	var cfg Config
	cfg.ApplyDefaults()
	return &cfg
}

// ApplyDefaults fills zero values and derives the duration fields.
func (cfg *Config) ApplyDefaults() {
	if cfg.Server.Port <= 0 {
		cfg.Server.Port = 8080
	}
	if cfg.Server.RateLimitPerSec <= 0 {
		cfg.Server.RateLimitPerSec = 10
	}
	if cfg.Server.RateLimitBurst <= 0 {
		cfg.Server.RateLimitBurst = 5
	}
	if cfg.Server.ResponseCacheSeconds <= 0 {
		cfg.Server.ResponseCacheSeconds = 30
	}
	cfg.Server.ResponseCache = time.Duration(cfg.Server.ResponseCacheSeconds) * time.Second

	if cfg.Cache.Backend == "" {
		cfg.Cache.Backend = "memory"
	}
	if cfg.Cache.SessionTTLHours <= 0 {
		cfg.Cache.SessionTTLHours = 24
	}
	cfg.Cache.SessionTTL = time.Duration(cfg.Cache.SessionTTLHours) * time.Hour

	g := &cfg.Generation
	if g.TimeThresholdMinutes <= 0 {
		g.TimeThresholdMinutes = 60
	}
	if g.DistanceThresholdMeters <= 0 {
		g.DistanceThresholdMeters = 500
	}
	if g.ChunkSizeHours <= 0 {
		g.ChunkSizeHours = 24
	}
	if g.BufferHours <= 0 {
		g.BufferHours = 6
	}
	if g.BoundaryDelayPerChunkSeconds <= 0 {
		g.BoundaryDelayPerChunkSeconds = 30
	}
	if g.BoundaryMinDelayMinutes <= 0 {
		g.BoundaryMinDelayMinutes = 5
	}
	if g.BoundaryWindowMinutes <= 0 {
		g.BoundaryWindowMinutes = 30
	}
	if g.BoundaryMaxGroupGapMinutes <= 0 {
		g.BoundaryMaxGroupGapMinutes = 60
	}
	if g.RecentTrackWindowMinutes <= 0 {
		g.RecentTrackWindowMinutes = 60
	}
	g.ChunkSize = time.Duration(g.ChunkSizeHours) * time.Hour
	g.Buffer = time.Duration(g.BufferHours) * time.Hour
	g.BoundaryDelayPerChunk = time.Duration(g.BoundaryDelayPerChunkSeconds) * time.Second
	g.BoundaryMinDelay = time.Duration(g.BoundaryMinDelayMinutes) * time.Minute
	g.BoundaryWindow = time.Duration(g.BoundaryWindowMinutes) * time.Minute
	g.BoundaryMaxGroupGap = time.Duration(g.BoundaryMaxGroupGapMinutes) * time.Minute
	g.RecentTrackWindow = time.Duration(g.RecentTrackWindowMinutes) * time.Minute

	r := &cfg.Realtime
	if r.DebounceTTLSeconds <= 0 {
		r.DebounceTTLSeconds = 120
	}
	if r.DebounceDelaySeconds <= 0 {
		r.DebounceDelaySeconds = 45
	}
	if r.LookbackHours <= 0 {
		r.LookbackHours = 6
	}
	if r.GraceMinutes <= 0 {
		r.GraceMinutes = 5
	}
	r.DebounceTTL = time.Duration(r.DebounceTTLSeconds) * time.Second
	r.DebounceDelay = time.Duration(r.DebounceDelaySeconds) * time.Second
	r.Lookback = time.Duration(r.LookbackHours) * time.Hour
	r.Grace = time.Duration(r.GraceMinutes) * time.Minute

	if cfg.Scheduler.DailyIntervalHours <= 0 {
		cfg.Scheduler.DailyIntervalHours = 24
	}
	cfg.Scheduler.DailyInterval = time.Duration(cfg.Scheduler.DailyIntervalHours) * time.Hour

	if cfg.WorkerPool.Size <= 0 {
		cfg.WorkerPool.Size = 1
	}
	if cfg.WorkerPool.QueueSize <= 0 {
		cfg.WorkerPool.QueueSize = 256
	}

	if cfg.Log.Mode == "" {
		cfg.Log.Mode = "development"
	}
}
