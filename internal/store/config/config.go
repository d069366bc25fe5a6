package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/BurntSushi/toml"

	"github.com/podvault/podvault/internal/store/constants"
)

type AppConfig struct {
	Worker    WorkerConfig     `toml:"worker"`
	Server    ServerConfig     `toml:"server"`
	Engine    EngineConfig     `toml:"engine"`
	Schedules []ScheduleConfig `toml:"schedule"`
}

type WorkerConfig struct {
	// URL of the remote backup worker API.
	URL string `toml:"url"`
	// Token is forwarded opaquely as a bearer token.
	Token string `toml:"token"`
}

type ServerConfig struct {
	Listen   string `toml:"listen"`
	CertFile string `toml:"cert_file"`
	KeyFile  string `toml:"key_file"`
}

type EngineConfig struct {
	PollIntervalMs    int `toml:"poll_interval_ms"`
	ConflictBackoffS  int `toml:"conflict_backoff_s"`
	JobTimeoutMinutes int `toml:"job_timeout_minutes"`
}

// ScheduleConfig starts a batch on a cron schedule. A firing while
// another batch is in progress is skipped.
type ScheduleConfig struct {
	Cron    string   `toml:"cron"`
	Kind    string   `toml:"kind"`
	Targets []string `toml:"targets"`
}

func Load(path string) (*AppConfig, error) {
	cfg := &AppConfig{}

	if _, err := os.Stat(path); os.IsNotExist(err) {
		cfg = createDefaults()
		if err := saveToDisk(path, cfg); err != nil {
			return nil, err
		}
	} else {
		if _, err := toml.DecodeFile(path, cfg); err != nil {
			return nil, fmt.Errorf("failed to decode config: %w", err)
		}
	}

	cfg.applyDefaults()

	return cfg, nil
}

func createDefaults() *AppConfig {
	return &AppConfig{
		Worker: WorkerConfig{
			URL: constants.DefaultWorkerURL,
		},
		Server: ServerConfig{
			Listen:   constants.ServerAPIPort,
			CertFile: constants.CertFile,
			KeyFile:  constants.KeyFile,
		},
	}
}

// applyDefaults fills engine knobs left at zero so a partial config
// file keeps the stock cadence.
func (c *AppConfig) applyDefaults() {
	if c.Worker.URL == "" {
		c.Worker.URL = constants.DefaultWorkerURL
	}
	if c.Server.Listen == "" {
		c.Server.Listen = constants.ServerAPIPort
	}
	if c.Engine.PollIntervalMs <= 0 {
		c.Engine.PollIntervalMs = int(constants.PollInterval / time.Millisecond)
	}
	if c.Engine.ConflictBackoffS <= 0 {
		c.Engine.ConflictBackoffS = int(constants.ConflictBackoff / time.Second)
	}
	if c.Engine.JobTimeoutMinutes <= 0 {
		c.Engine.JobTimeoutMinutes = int(constants.JobTimeout / time.Minute)
	}
}

func (c *AppConfig) PollInterval() time.Duration {
	return time.Duration(c.Engine.PollIntervalMs) * time.Millisecond
}

func (c *AppConfig) ConflictBackoff() time.Duration {
	return time.Duration(c.Engine.ConflictBackoffS) * time.Second
}

func (c *AppConfig) JobTimeout() time.Duration {
	return time.Duration(c.Engine.JobTimeoutMinutes) * time.Minute
}

func saveToDisk(path string, cfg *AppConfig) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()
	return toml.NewEncoder(f).Encode(cfg)
}
