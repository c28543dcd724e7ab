package config

import (
	"strings"
	"testing"
	"time"
)

func setRequiredEnv(t *testing.T) {
	t.Helper()
	t.Setenv("OMS_UPSTREAM_BROKERS", "broker-1:9092,broker-2:9092")
	t.Setenv("OMS_UPSTREAM_ORDERS_TOPIC", "orders")
	t.Setenv("OMS_UPSTREAM_EXECUTIONS_TOPIC", "executions")
	t.Setenv("OMS_UPSTREAM_CONSUMER_GROUP", "oms-sub001")
	t.Setenv("OMS_QUERY_BASE_URL", "https://query.internal")
	t.Setenv("OMS_CACHE_MAX_ENTRIES", "10000")
}

func TestLoadDefaults(t *testing.T) {
	setRequiredEnv(t)
	t.Setenv("OMS_ADDR", "")
	t.Setenv("OMS_QUERY_PAGE_SIZE", "")
	t.Setenv("OMS_STREAM_REPLAY_BUFFER_SIZE", "")
	t.Setenv("OMS_STREAM_INBOX_CAPACITY", "")
	t.Setenv("OMS_SUBSCRIPTION_SNAPSHOT_ID_GRACE_MS", "")
	t.Setenv("OMS_SUPERVISOR_BACKOFF_INITIAL_MS", "")
	t.Setenv("OMS_SUPERVISOR_BACKOFF_CEILING_MS", "")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() returned error: %v", err)
	}

	if cfg.Address != DefaultAddr {
		t.Fatalf("expected default addr %q, got %q", DefaultAddr, cfg.Address)
	}
	if cfg.Query.PageSize != DefaultQueryPageSize {
		t.Fatalf("expected default page size %d, got %d", DefaultQueryPageSize, cfg.Query.PageSize)
	}
	if cfg.Query.ConnectTimeout != DefaultQueryConnectTimeout {
		t.Fatalf("expected default connect timeout %v, got %v", DefaultQueryConnectTimeout, cfg.Query.ConnectTimeout)
	}
	if cfg.Query.ReadTimeout != DefaultQueryReadTimeout {
		t.Fatalf("expected default read timeout %v, got %v", DefaultQueryReadTimeout, cfg.Query.ReadTimeout)
	}
	if cfg.Stream.ReplayBufferSize != DefaultReplayBufferSize {
		t.Fatalf("expected default replay buffer size %d, got %d", DefaultReplayBufferSize, cfg.Stream.ReplayBufferSize)
	}
	if cfg.Stream.InboxCapacity != DefaultInboxCapacity {
		t.Fatalf("expected default inbox capacity %d, got %d", DefaultInboxCapacity, cfg.Stream.InboxCapacity)
	}
	if cfg.Stream.OverflowPolicy != DefaultOverflowPolicy {
		t.Fatalf("expected default overflow policy %q, got %q", DefaultOverflowPolicy, cfg.Stream.OverflowPolicy)
	}
	if cfg.Subscription.SnapshotIDGrace != DefaultSnapshotIDGrace {
		t.Fatalf("expected default grace %v, got %v", DefaultSnapshotIDGrace, cfg.Subscription.SnapshotIDGrace)
	}
	if cfg.Subscription.UpstreamUnavailablePolicy != DefaultUpstreamUnavailablePolicy {
		t.Fatalf("expected default upstream policy %q, got %q", DefaultUpstreamUnavailablePolicy, cfg.Subscription.UpstreamUnavailablePolicy)
	}
	if cfg.Supervisor.BackoffInitial != DefaultBackoffInitial {
		t.Fatalf("expected default backoff initial %v, got %v", DefaultBackoffInitial, cfg.Supervisor.BackoffInitial)
	}
	if cfg.Supervisor.BackoffCeiling != DefaultBackoffCeiling {
		t.Fatalf("expected default backoff ceiling %v, got %v", DefaultBackoffCeiling, cfg.Supervisor.BackoffCeiling)
	}
	if cfg.Logging.Level != DefaultLogLevel {
		t.Fatalf("expected default log level %q, got %q", DefaultLogLevel, cfg.Logging.Level)
	}
}

func TestLoadOverrides(t *testing.T) {
	setRequiredEnv(t)
	t.Setenv("OMS_ADDR", "127.0.0.1:9000")
	t.Setenv("OMS_QUERY_PAGE_SIZE", "250")
	t.Setenv("OMS_QUERY_CONNECT_TIMEOUT_MS", "1000")
	t.Setenv("OMS_QUERY_READ_TIMEOUT_MS", "5000")
	t.Setenv("OMS_STREAM_REPLAY_BUFFER_SIZE", "50")
	t.Setenv("OMS_STREAM_INBOX_CAPACITY", "4")
	t.Setenv("OMS_SUBSCRIPTION_SNAPSHOT_ID_GRACE_MS", "1500")
	t.Setenv("OMS_SUBSCRIPTION_UPSTREAM_UNAVAILABLE_POLICY", "ATTACH")
	t.Setenv("OMS_SUPERVISOR_BACKOFF_INITIAL_MS", "200")
	t.Setenv("OMS_SUPERVISOR_BACKOFF_CEILING_MS", "10000")
	t.Setenv("OMS_SUPERVISOR_BACKOFF_JITTER", "0.25")
	t.Setenv("OMS_LOG_LEVEL", "debug")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() returned error: %v", err)
	}

	if cfg.Address != "127.0.0.1:9000" {
		t.Fatalf("unexpected address: %q", cfg.Address)
	}
	if cfg.Query.PageSize != 250 {
		t.Fatalf("expected overridden page size, got %d", cfg.Query.PageSize)
	}
	if cfg.Query.ConnectTimeout != time.Second {
		t.Fatalf("expected overridden connect timeout, got %v", cfg.Query.ConnectTimeout)
	}
	if cfg.Stream.InboxCapacity != 4 {
		t.Fatalf("expected overridden inbox capacity, got %d", cfg.Stream.InboxCapacity)
	}
	if cfg.Subscription.UpstreamUnavailablePolicy != "ATTACH" {
		t.Fatalf("expected ATTACH policy, got %q", cfg.Subscription.UpstreamUnavailablePolicy)
	}
	if cfg.Supervisor.BackoffJitter != 0.25 {
		t.Fatalf("expected overridden jitter, got %v", cfg.Supervisor.BackoffJitter)
	}
	if cfg.Logging.Level != "debug" {
		t.Fatalf("expected overridden log level, got %q", cfg.Logging.Level)
	}
}

func TestLoadRequiresCacheMaxEntries(t *testing.T) {
	setRequiredEnv(t)
	t.Setenv("OMS_CACHE_MAX_ENTRIES", "")

	_, err := Load()
	if err == nil || !strings.Contains(err.Error(), "OMS_CACHE_MAX_ENTRIES") {
		t.Fatalf("expected missing cache bound error, got %v", err)
	}
}

func TestLoadReturnsValidationErrors(t *testing.T) {
	setRequiredEnv(t)
	t.Setenv("OMS_QUERY_PAGE_SIZE", "-5")
	t.Setenv("OMS_STREAM_INBOX_CAPACITY", "0")
	t.Setenv("OMS_STREAM_OVERFLOW_POLICY", "DROP_NEWEST")
	t.Setenv("OMS_SUBSCRIPTION_UPSTREAM_UNAVAILABLE_POLICY", "RETRY")
	t.Setenv("OMS_SUPERVISOR_BACKOFF_JITTER", "-1")

	_, err := Load()
	if err == nil {
		t.Fatal("expected error from invalid configuration, got nil")
	}

	for _, want := range []string{
		"OMS_QUERY_PAGE_SIZE",
		"OMS_STREAM_INBOX_CAPACITY",
		"OMS_STREAM_OVERFLOW_POLICY",
		"OMS_SUBSCRIPTION_UPSTREAM_UNAVAILABLE_POLICY",
		"OMS_SUPERVISOR_BACKOFF_JITTER",
	} {
		if !strings.Contains(err.Error(), want) {
			t.Fatalf("expected error to mention %s, got %q", want, err.Error())
		}
	}
}

func TestLoadRequiresUpstreamSettings(t *testing.T) {
	t.Setenv("OMS_UPSTREAM_BROKERS", "")
	t.Setenv("OMS_UPSTREAM_ORDERS_TOPIC", "")
	t.Setenv("OMS_UPSTREAM_EXECUTIONS_TOPIC", "")
	t.Setenv("OMS_UPSTREAM_CONSUMER_GROUP", "")
	t.Setenv("OMS_QUERY_BASE_URL", "")
	t.Setenv("OMS_CACHE_MAX_ENTRIES", "1")

	_, err := Load()
	if err == nil {
		t.Fatal("expected error, got nil")
	}
	for _, want := range []string{
		"OMS_UPSTREAM_BROKERS",
		"OMS_UPSTREAM_ORDERS_TOPIC",
		"OMS_UPSTREAM_EXECUTIONS_TOPIC",
		"OMS_UPSTREAM_CONSUMER_GROUP",
		"OMS_QUERY_BASE_URL",
	} {
		if !strings.Contains(err.Error(), want) {
			t.Fatalf("expected error to mention %s, got %q", want, err.Error())
		}
	}
}
