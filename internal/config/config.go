// Package config loads runtime tunables for the streaming engine from
// environment variables, following the same accumulate-then-report
// validation idiom used throughout this service.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

const (
	// DefaultQueryPageSize is the page size requested from the external query API.
	DefaultQueryPageSize = 500
	// DefaultQueryConnectTimeout bounds how long a page request may take to connect.
	DefaultQueryConnectTimeout = 5 * time.Second
	// DefaultQueryReadTimeout bounds how long a single page fetch may take end to end.
	DefaultQueryReadTimeout = 30 * time.Second

	// DefaultReplayBufferSize is the per-topic replay ring capacity.
	DefaultReplayBufferSize = 100
	// DefaultInboxCapacity is the per-subscription bounded inbox capacity.
	DefaultInboxCapacity = 1000
	// DefaultOverflowPolicy is the only overflow strategy this engine implements.
	DefaultOverflowPolicy = "DROP_OLDEST"

	// DefaultSnapshotIDGrace bounds how long dedup state is retained past the
	// SNAPSHOT -> LIVE transition before it is reclaimed.
	DefaultSnapshotIDGrace = 5 * time.Second

	// DefaultBackoffInitial is the first retry delay after a consumer fault.
	DefaultBackoffInitial = 1 * time.Second
	// DefaultBackoffCeiling caps the exponential backoff delay.
	DefaultBackoffCeiling = 30 * time.Second
	// DefaultBackoffJitter is the randomisation factor applied to each delay.
	DefaultBackoffJitter = 0.5

	// DefaultAddr is the address the transport adapter listens on.
	DefaultAddr = ":8080"

	// DefaultLogLevel controls verbosity for service logs.
	DefaultLogLevel = "info"
	// DefaultLogPath is where structured logs are written.
	DefaultLogPath = "oms-sub001.log"
	// DefaultLogMaxSizeMB caps the size of a single log file before rotation.
	DefaultLogMaxSizeMB = 100
	// DefaultLogMaxBackups limits retained rotated log files.
	DefaultLogMaxBackups = 10
	// DefaultLogMaxAgeDays controls how long rotated log files are kept on disk.
	DefaultLogMaxAgeDays = 7
	// DefaultLogCompress toggles gzip compression for rotated log files.
	DefaultLogCompress = true

	// DefaultUpstreamUnavailablePolicy is the default value of
	// SubscriptionConfig.UpstreamUnavailablePolicy. No component reads that
	// setting: subscriptions open whatever state the ingestor is in.
	DefaultUpstreamUnavailablePolicy = "FAIL"
)

// LoggingConfig captures structured logging configuration options.
type LoggingConfig struct {
	Level      string
	Path       string
	MaxSizeMB  int
	MaxBackups int
	MaxAgeDays int
	Compress   bool
}

// UpstreamConfig describes the message bus the event ingestor consumes.
type UpstreamConfig struct {
	Brokers         []string
	OrdersTopic     string
	ExecutionsTopic string
	SchemaRegistry  string
	ConsumerGroup   string
}

// QueryConfig describes the external snapshot query API (C3).
type QueryConfig struct {
	BaseURL        string
	PageSize       int
	ConnectTimeout time.Duration
	ReadTimeout    time.Duration
}

// StreamConfig describes the bounded in-memory structures of C4/C6.
type StreamConfig struct {
	ReplayBufferSize int
	InboxCapacity    int
	OverflowPolicy   string
}

// SubscriptionConfig describes per-subscription tunables for C6.
type SubscriptionConfig struct {
	SnapshotIDGrace            time.Duration
	UpstreamUnavailablePolicy  string
}

// SupervisorConfig describes the restart backoff policy that the C4
// consumer applies in its BACKOFF state.
type SupervisorConfig struct {
	BackoffInitial time.Duration
	BackoffCeiling time.Duration
	BackoffJitter  float64
}

// Config captures all runtime tunables for the streaming service.
type Config struct {
	Address      string
	Upstream     UpstreamConfig
	Query        QueryConfig
	Stream       StreamConfig
	CacheMaxEntries int
	Subscription SubscriptionConfig
	Supervisor   SupervisorConfig
	Logging      LoggingConfig
}

// Load reads the service configuration from environment variables, applying
// sane defaults and returning descriptive errors for invalid overrides.
func Load() (*Config, error) {
	cfg := &Config{
		Address: getString("OMS_ADDR", DefaultAddr),
		Upstream: UpstreamConfig{
			Brokers:         parseList(os.Getenv("OMS_UPSTREAM_BROKERS")),
			OrdersTopic:     getString("OMS_UPSTREAM_ORDERS_TOPIC", ""),
			ExecutionsTopic: getString("OMS_UPSTREAM_EXECUTIONS_TOPIC", ""),
			SchemaRegistry:  strings.TrimSpace(os.Getenv("OMS_UPSTREAM_SCHEMA_REGISTRY")),
			ConsumerGroup:   getString("OMS_UPSTREAM_CONSUMER_GROUP", ""),
		},
		Query: QueryConfig{
			BaseURL:        getString("OMS_QUERY_BASE_URL", ""),
			PageSize:       DefaultQueryPageSize,
			ConnectTimeout: DefaultQueryConnectTimeout,
			ReadTimeout:    DefaultQueryReadTimeout,
		},
		Stream: StreamConfig{
			ReplayBufferSize: DefaultReplayBufferSize,
			InboxCapacity:    DefaultInboxCapacity,
			OverflowPolicy:   DefaultOverflowPolicy,
		},
		Subscription: SubscriptionConfig{
			SnapshotIDGrace:           DefaultSnapshotIDGrace,
			UpstreamUnavailablePolicy: DefaultUpstreamUnavailablePolicy,
		},
		Supervisor: SupervisorConfig{
			BackoffInitial: DefaultBackoffInitial,
			BackoffCeiling: DefaultBackoffCeiling,
			BackoffJitter:  DefaultBackoffJitter,
		},
		Logging: LoggingConfig{
			Level:      strings.TrimSpace(getString("OMS_LOG_LEVEL", DefaultLogLevel)),
			Path:       strings.TrimSpace(getString("OMS_LOG_PATH", DefaultLogPath)),
			MaxSizeMB:  DefaultLogMaxSizeMB,
			MaxBackups: DefaultLogMaxBackups,
			MaxAgeDays: DefaultLogMaxAgeDays,
			Compress:   DefaultLogCompress,
		},
	}

	var problems []string

	if raw := strings.TrimSpace(os.Getenv("OMS_QUERY_PAGE_SIZE")); raw != "" {
		value, err := strconv.Atoi(raw)
		if err != nil || value <= 0 {
			problems = append(problems, fmt.Sprintf("OMS_QUERY_PAGE_SIZE must be a positive integer, got %q", raw))
		} else {
			cfg.Query.PageSize = value
		}
	}

	if raw := strings.TrimSpace(os.Getenv("OMS_QUERY_CONNECT_TIMEOUT_MS")); raw != "" {
		value, err := strconv.Atoi(raw)
		if err != nil || value <= 0 {
			problems = append(problems, fmt.Sprintf("OMS_QUERY_CONNECT_TIMEOUT_MS must be a positive integer, got %q", raw))
		} else {
			cfg.Query.ConnectTimeout = time.Duration(value) * time.Millisecond
		}
	}

	if raw := strings.TrimSpace(os.Getenv("OMS_QUERY_READ_TIMEOUT_MS")); raw != "" {
		value, err := strconv.Atoi(raw)
		if err != nil || value <= 0 {
			problems = append(problems, fmt.Sprintf("OMS_QUERY_READ_TIMEOUT_MS must be a positive integer, got %q", raw))
		} else {
			cfg.Query.ReadTimeout = time.Duration(value) * time.Millisecond
		}
	}

	if raw := strings.TrimSpace(os.Getenv("OMS_STREAM_REPLAY_BUFFER_SIZE")); raw != "" {
		value, err := strconv.Atoi(raw)
		if err != nil || value <= 0 {
			problems = append(problems, fmt.Sprintf("OMS_STREAM_REPLAY_BUFFER_SIZE must be a positive integer, got %q", raw))
		} else {
			cfg.Stream.ReplayBufferSize = value
		}
	}

	if raw := strings.TrimSpace(os.Getenv("OMS_STREAM_INBOX_CAPACITY")); raw != "" {
		value, err := strconv.Atoi(raw)
		if err != nil || value <= 0 {
			problems = append(problems, fmt.Sprintf("OMS_STREAM_INBOX_CAPACITY must be a positive integer, got %q", raw))
		} else {
			cfg.Stream.InboxCapacity = value
		}
	}

	if raw := strings.TrimSpace(os.Getenv("OMS_STREAM_OVERFLOW_POLICY")); raw != "" {
		if raw != "DROP_OLDEST" {
			problems = append(problems, fmt.Sprintf("OMS_STREAM_OVERFLOW_POLICY only supports DROP_OLDEST, got %q", raw))
		} else {
			cfg.Stream.OverflowPolicy = raw
		}
	}

	// cache.max_entries has no silent default: it must be set explicitly.
	if raw := strings.TrimSpace(os.Getenv("OMS_CACHE_MAX_ENTRIES")); raw == "" {
		problems = append(problems, "OMS_CACHE_MAX_ENTRIES must be set; no default is provided")
	} else {
		value, err := strconv.Atoi(raw)
		if err != nil || value <= 0 {
			problems = append(problems, fmt.Sprintf("OMS_CACHE_MAX_ENTRIES must be a positive integer, got %q", raw))
		} else {
			cfg.CacheMaxEntries = value
		}
	}

	if raw := strings.TrimSpace(os.Getenv("OMS_SUBSCRIPTION_SNAPSHOT_ID_GRACE_MS")); raw != "" {
		value, err := strconv.Atoi(raw)
		if err != nil || value <= 0 {
			problems = append(problems, fmt.Sprintf("OMS_SUBSCRIPTION_SNAPSHOT_ID_GRACE_MS must be a positive integer, got %q", raw))
		} else {
			cfg.Subscription.SnapshotIDGrace = time.Duration(value) * time.Millisecond
		}
	}

	if raw := strings.TrimSpace(os.Getenv("OMS_SUBSCRIPTION_UPSTREAM_UNAVAILABLE_POLICY")); raw != "" {
		switch raw {
		case "FAIL", "ATTACH":
			cfg.Subscription.UpstreamUnavailablePolicy = raw
		default:
			problems = append(problems, fmt.Sprintf("OMS_SUBSCRIPTION_UPSTREAM_UNAVAILABLE_POLICY must be FAIL or ATTACH, got %q", raw))
		}
	}

	if raw := strings.TrimSpace(os.Getenv("OMS_SUPERVISOR_BACKOFF_INITIAL_MS")); raw != "" {
		value, err := strconv.Atoi(raw)
		if err != nil || value <= 0 {
			problems = append(problems, fmt.Sprintf("OMS_SUPERVISOR_BACKOFF_INITIAL_MS must be a positive integer, got %q", raw))
		} else {
			cfg.Supervisor.BackoffInitial = time.Duration(value) * time.Millisecond
		}
	}

	if raw := strings.TrimSpace(os.Getenv("OMS_SUPERVISOR_BACKOFF_CEILING_MS")); raw != "" {
		value, err := strconv.Atoi(raw)
		if err != nil || value <= 0 {
			problems = append(problems, fmt.Sprintf("OMS_SUPERVISOR_BACKOFF_CEILING_MS must be a positive integer, got %q", raw))
		} else {
			cfg.Supervisor.BackoffCeiling = time.Duration(value) * time.Millisecond
		}
	}

	if raw := strings.TrimSpace(os.Getenv("OMS_SUPERVISOR_BACKOFF_JITTER")); raw != "" {
		value, err := strconv.ParseFloat(raw, 64)
		if err != nil || value < 0 {
			problems = append(problems, fmt.Sprintf("OMS_SUPERVISOR_BACKOFF_JITTER must be a non-negative float, got %q", raw))
		} else {
			cfg.Supervisor.BackoffJitter = value
		}
	}

	if raw := strings.TrimSpace(os.Getenv("OMS_LOG_MAX_SIZE_MB")); raw != "" {
		value, err := strconv.Atoi(raw)
		if err != nil || value <= 0 {
			problems = append(problems, fmt.Sprintf("OMS_LOG_MAX_SIZE_MB must be a positive integer, got %q", raw))
		} else {
			cfg.Logging.MaxSizeMB = value
		}
	}

	if strings.TrimSpace(cfg.Upstream.ConsumerGroup) == "" {
		problems = append(problems, "OMS_UPSTREAM_CONSUMER_GROUP is required")
	}
	if len(cfg.Upstream.Brokers) == 0 {
		problems = append(problems, "OMS_UPSTREAM_BROKERS is required")
	}
	if strings.TrimSpace(cfg.Upstream.OrdersTopic) == "" {
		problems = append(problems, "OMS_UPSTREAM_ORDERS_TOPIC is required")
	}
	if strings.TrimSpace(cfg.Upstream.ExecutionsTopic) == "" {
		problems = append(problems, "OMS_UPSTREAM_EXECUTIONS_TOPIC is required")
	}
	if strings.TrimSpace(cfg.Query.BaseURL) == "" {
		problems = append(problems, "OMS_QUERY_BASE_URL is required")
	}

	if len(problems) > 0 {
		return nil, fmt.Errorf(strings.Join(problems, "; "))
	}

	return cfg, nil
}

func getString(key, fallback string) string {
	if value := strings.TrimSpace(os.Getenv(key)); value != "" {
		return value
	}
	return fallback
}

func parseList(raw string) []string {
	if raw == "" {
		return nil
	}
	parts := strings.Split(raw, ",")
	values := make([]string, 0, len(parts))
	for _, part := range parts {
		if item := strings.TrimSpace(part); item != "" {
			values = append(values, item)
		}
	}
	return values
}
