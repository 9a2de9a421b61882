// Package config loads the catalog server configuration from the environment and an optional file.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type UpstreamCfg struct {
	BaseURL    string
	PageSize   int
	ClientSize int
}

type FetchCfg struct {
	ListTimeout   time.Duration
	SearchTimeout time.Duration
	MaxRetries    int
	BaseDelay     time.Duration
}

type CacheCfg struct {
	TaxonomyTTL time.Duration
	PageTTL     time.Duration
	TTLOvr      map[string]time.Duration
}

type DedupCfg struct {
	Window     time.Duration
	MaxEntries int
}

type SessionCfg struct {
	Enabled     bool
	IdleTimeout time.Duration
	RedisAddr   string
}

type HitEventsCfg struct {
	Enabled bool
	Brokers []string
	Topic   string
	Queue   int
}

type MetricsCfg struct {
	Enabled bool
	Addr    string
	Path    string
}

type Config struct {
	Addr         string
	LogLevel     string
	LogConsole   bool
	LogSampleN   int
	Upstream     UpstreamCfg
	Fetch        FetchCfg
	Cache        CacheCfg
	Dedup        DedupCfg
	Session      SessionCfg
	HitEvents    HitEventsCfg
	Metrics      MetricsCfg
	HomeSections []string
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("ADDR", ":8090")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_CONSOLE", false)
	v.SetDefault("LOG_SAMPLE_N", 0)

	v.SetDefault("UPSTREAM_BASE_URL", "https://phimapi.com")
	v.SetDefault("UPSTREAM_PAGE_SIZE", 10)
	v.SetDefault("CLIENT_PAGE_SIZE", 20)

	v.SetDefault("FETCH_LIST_TIMEOUT", 8*time.Second)
	v.SetDefault("FETCH_SEARCH_TIMEOUT", 15*time.Second)
	v.SetDefault("FETCH_MAX_RETRIES", 3)
	v.SetDefault("FETCH_BASE_DELAY", 500*time.Millisecond)

	v.SetDefault("CACHE_TAXONOMY_TTL", time.Hour)
	v.SetDefault("CACHE_PAGE_TTL", 5*time.Minute)
	v.SetDefault("CACHE_TTL_OVERRIDES", "")

	v.SetDefault("DEDUP_WINDOW", 3*time.Second)
	v.SetDefault("DEDUP_MAX_ENTRIES", 4096)

	v.SetDefault("SESSION_ENABLED", false)
	v.SetDefault("SESSION_IDLE_TIMEOUT", 30*time.Minute)
	v.SetDefault("REDIS_ADDR", "localhost:6379")

	v.SetDefault("HITEVENTS_ENABLED", false)
	v.SetDefault("KAFKA_BROKERS", "localhost:9092")
	v.SetDefault("KAFKA_TOPIC", "catalog-browse")
	v.SetDefault("HITEVENTS_QUEUE", 1024)

	v.SetDefault("METRICS_ENABLED", false)
	v.SetDefault("METRICS_ADDR", "")
	v.SetDefault("METRICS_PATH", "/metrics")

	v.SetDefault("HOME_SECTIONS", "hanh-dong,tinh-cam,hoat-hinh")
}

// FromEnv reads the configuration from environment variables only.
func FromEnv() Config {
	v := viper.New()
	setDefaults(v)
	v.AutomaticEnv()
	return fromViper(v)
}

// Load reads path (YAML, keys named like the environment variables) and lets the environment
// override it. An empty path behaves like FromEnv.
func Load(path string) (Config, error) {
	v := viper.New()
	setDefaults(v)
	v.AutomaticEnv()
	if strings.TrimSpace(path) != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config %q: %w", path, err)
		}
	}
	cfg := fromViper(v)
	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

func fromViper(v *viper.Viper) Config {
	return Config{
		Addr:       v.GetString("ADDR"),
		LogLevel:   v.GetString("LOG_LEVEL"),
		LogConsole: v.GetBool("LOG_CONSOLE"),
		LogSampleN: v.GetInt("LOG_SAMPLE_N"),
		Upstream: UpstreamCfg{
			BaseURL:    strings.TrimRight(v.GetString("UPSTREAM_BASE_URL"), "/"),
			PageSize:   v.GetInt("UPSTREAM_PAGE_SIZE"),
			ClientSize: v.GetInt("CLIENT_PAGE_SIZE"),
		},
		Fetch: FetchCfg{
			ListTimeout:   v.GetDuration("FETCH_LIST_TIMEOUT"),
			SearchTimeout: v.GetDuration("FETCH_SEARCH_TIMEOUT"),
			MaxRetries:    v.GetInt("FETCH_MAX_RETRIES"),
			BaseDelay:     v.GetDuration("FETCH_BASE_DELAY"),
		},
		Cache: CacheCfg{
			TaxonomyTTL: v.GetDuration("CACHE_TAXONOMY_TTL"),
			PageTTL:     v.GetDuration("CACHE_PAGE_TTL"),
			TTLOvr:      parseDurationMap(v.GetString("CACHE_TTL_OVERRIDES")),
		},
		Dedup: DedupCfg{
			Window:     v.GetDuration("DEDUP_WINDOW"),
			MaxEntries: v.GetInt("DEDUP_MAX_ENTRIES"),
		},
		Session: SessionCfg{
			Enabled:     v.GetBool("SESSION_ENABLED"),
			IdleTimeout: v.GetDuration("SESSION_IDLE_TIMEOUT"),
			RedisAddr:   v.GetString("REDIS_ADDR"),
		},
		HitEvents: HitEventsCfg{
			Enabled: v.GetBool("HITEVENTS_ENABLED"),
			Brokers: splitCSV(v.GetString("KAFKA_BROKERS")),
			Topic:   v.GetString("KAFKA_TOPIC"),
			Queue:   v.GetInt("HITEVENTS_QUEUE"),
		},
		Metrics: MetricsCfg{
			Enabled: v.GetBool("METRICS_ENABLED"),
			Addr:    v.GetString("METRICS_ADDR"),
			Path:    v.GetString("METRICS_PATH"),
		},
		HomeSections: splitCSV(v.GetString("HOME_SECTIONS")),
	}
}

func (c Config) Validate() error {
	var errs []error
	if c.Upstream.BaseURL == "" {
		errs = append(errs, errors.New("UPSTREAM_BASE_URL is required"))
	}
	if c.Upstream.PageSize <= 0 {
		errs = append(errs, errors.New("UPSTREAM_PAGE_SIZE must be positive"))
	}
	if c.Upstream.ClientSize <= 0 {
		errs = append(errs, errors.New("CLIENT_PAGE_SIZE must be positive"))
	}
	if c.Fetch.MaxRetries < 0 {
		errs = append(errs, errors.New("FETCH_MAX_RETRIES must not be negative"))
	}
	if c.Session.Enabled && c.Session.RedisAddr == "" {
		errs = append(errs, errors.New("REDIS_ADDR is required when SESSION_ENABLED"))
	}
	return errors.Join(errs...)
}

func splitCSV(s string) []string {
	var out []string
	for p := range strings.SplitSeq(s, ",") {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

// parse "category=2m,search=30s" into map
func parseDurationMap(s string) map[string]time.Duration {
	out := map[string]time.Duration{}
	s = strings.TrimSpace(s)
	if s == "" {
		return out
	}
	for p := range strings.SplitSeq(s, ",") {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		kv := strings.SplitN(p, "=", 2)
		if len(kv) != 2 {
			continue
		}
		k := strings.TrimSpace(kv[0])
		v := strings.TrimSpace(kv[1])
		if k == "" {
			continue
		}
		if d, err := time.ParseDuration(v); err == nil {
			out[k] = d
		}
	}
	return out
}
