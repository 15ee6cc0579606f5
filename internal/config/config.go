// Package config loads the YAML configuration shared by the coordinator,
// worker, and client binaries: a flat YAML file (gridmr.yaml) read once at startup
// into a typed struct, with defaults filled in for anything absent.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v2"
)

// Config holds every cluster-wide tunable the coordinator, worker, and
// client binaries share.
type Config struct {
	// SharedRoot is the coordinator's canonical view of shared storage.
	SharedRoot string `yaml:"shared_root"`
	// LocalMount is a worker's local view of the same shared storage.
	LocalMount string `yaml:"local_mount"`
	// UseNFS mirrors the CLI's --use-nfs flag; when false, path rewriting
	// between SharedRoot and LocalMount is a no-op.
	UseNFS bool `yaml:"use_nfs"`

	// ReduceFanout is R, the number of reduce partitions.
	ReduceFanout int `yaml:"reduce_fanout"`

	// HeartbeatInterval is how often a worker sends a heartbeat.
	HeartbeatInterval time.Duration `yaml:"heartbeat_interval"`
	// LostThreshold is how long the coordinator waits without a heartbeat
	// before declaring a worker lost.
	LostThreshold time.Duration `yaml:"lost_threshold"`
	// RetryBudget is how many times a task may be reattempted before its
	// job is failed.
	RetryBudget int `yaml:"retry_budget"`
	// DispatchTimeout bounds the coordinator's HTTP call dispatching a
	// task to a worker.
	DispatchTimeout time.Duration `yaml:"dispatch_timeout"`
	// WorkerConcurrency is the number of tasks a single worker may run at
	// once before the coordinator considers it busy.
	WorkerConcurrency int `yaml:"worker_concurrency"`

	// PollInterval is the client's recommended status-poll cadence.
	PollInterval time.Duration `yaml:"poll_interval"`
	// MonitorTimeout bounds how long a client will poll before giving up.
	MonitorTimeout time.Duration `yaml:"monitor_timeout"`
}

// Defaults returns the cluster's default configuration.
func Defaults() Config {
	return Config{
		SharedRoot:        "/shared/gridmr",
		LocalMount:        "/mnt/gridmr",
		UseNFS:            false,
		ReduceFanout:      4,
		HeartbeatInterval: 30 * time.Second,
		LostThreshold:     90 * time.Second,
		RetryBudget:       3,
		DispatchTimeout:   30 * time.Second,
		WorkerConcurrency: 1,
		PollInterval:      5 * time.Second,
		MonitorTimeout:    300 * time.Second,
	}
}

// rawConfig mirrors Config but holds the duration fields as strings, since
// yaml.v2 unmarshals time.Duration as a bare int64 and would otherwise
// reject human-friendly values like "30s".
type rawConfig struct {
	SharedRoot        string `yaml:"shared_root"`
	LocalMount        string `yaml:"local_mount"`
	UseNFS            bool   `yaml:"use_nfs"`
	ReduceFanout      int    `yaml:"reduce_fanout"`
	HeartbeatInterval string `yaml:"heartbeat_interval"`
	LostThreshold     string `yaml:"lost_threshold"`
	RetryBudget       int    `yaml:"retry_budget"`
	DispatchTimeout   string `yaml:"dispatch_timeout"`
	WorkerConcurrency int    `yaml:"worker_concurrency"`
	PollInterval      string `yaml:"poll_interval"`
	MonitorTimeout    string `yaml:"monitor_timeout"`
}

// Load reads a YAML file at path and overlays it onto Defaults(). A missing
// file is not an error: the caller gets pure defaults, matching how the
// CLI's --use-nfs/--nfs-mount flags are meant to work without a config file
// present at all.
func Load(path string) (Config, error) {
	cfg := Defaults()
	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return cfg, fmt.Errorf("config: read %s: %w", path, err)
	}

	raw := rawConfig{
		SharedRoot:        cfg.SharedRoot,
		LocalMount:        cfg.LocalMount,
		UseNFS:            cfg.UseNFS,
		ReduceFanout:      cfg.ReduceFanout,
		HeartbeatInterval: cfg.HeartbeatInterval.String(),
		LostThreshold:     cfg.LostThreshold.String(),
		RetryBudget:       cfg.RetryBudget,
		DispatchTimeout:   cfg.DispatchTimeout.String(),
		WorkerConcurrency: cfg.WorkerConcurrency,
		PollInterval:      cfg.PollInterval.String(),
		MonitorTimeout:    cfg.MonitorTimeout.String(),
	}
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return cfg, fmt.Errorf("config: parse %s: %w", path, err)
	}

	cfg.SharedRoot, cfg.LocalMount, cfg.UseNFS = raw.SharedRoot, raw.LocalMount, raw.UseNFS
	cfg.ReduceFanout, cfg.RetryBudget, cfg.WorkerConcurrency = raw.ReduceFanout, raw.RetryBudget, raw.WorkerConcurrency

	for _, d := range []struct {
		name string
		src  string
		dst  *time.Duration
	}{
		{"heartbeat_interval", raw.HeartbeatInterval, &cfg.HeartbeatInterval},
		{"lost_threshold", raw.LostThreshold, &cfg.LostThreshold},
		{"dispatch_timeout", raw.DispatchTimeout, &cfg.DispatchTimeout},
		{"poll_interval", raw.PollInterval, &cfg.PollInterval},
		{"monitor_timeout", raw.MonitorTimeout, &cfg.MonitorTimeout},
	} {
		parsed, err := time.ParseDuration(d.src)
		if err != nil {
			return cfg, fmt.Errorf("config: %s: %w", d.name, err)
		}
		*d.dst = parsed
	}

	if cfg.ReduceFanout <= 0 {
		return cfg, fmt.Errorf("config: reduce_fanout must be positive, got %d", cfg.ReduceFanout)
	}
	if cfg.SharedRoot == cfg.LocalMount {
		return cfg, fmt.Errorf("config: shared_root and local_mount must differ")
	}

	return cfg, nil
}
