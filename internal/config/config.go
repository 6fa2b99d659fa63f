// Package config loads markerhub service configuration from YAML.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the full hub configuration (core server, gateway, archivist,
// scene persistence). Missing fields fall back to defaults.
type Config struct {
	Namespace    string   `yaml:"namespace,omitempty" json:"namespace,omitempty"`
	KafkaBrokers []string `yaml:"kafka_brokers,omitempty" json:"kafka_brokers,omitempty"`
	HTTPAddr     string   `yaml:"http_addr,omitempty" json:"http_addr,omitempty"`

	FlushIntervalMs int `yaml:"flush_interval_ms,omitempty" json:"flush_interval_ms,omitempty"`

	Gateway struct {
		HTTPAddr string `yaml:"http_addr,omitempty" json:"http_addr,omitempty"`
	} `yaml:"gateway,omitempty" json:"gateway,omitempty"`

	Snapshot struct {
		IntervalMs int    `yaml:"interval_ms,omitempty" json:"interval_ms,omitempty"`
		Bucket     string `yaml:"bucket,omitempty" json:"bucket,omitempty"`
	} `yaml:"snapshot,omitempty" json:"snapshot,omitempty"`

	Minio struct {
		Endpoint  string `yaml:"endpoint,omitempty" json:"endpoint,omitempty"`
		AccessKey string `yaml:"access_key,omitempty" json:"access_key,omitempty"`
		SecretKey string `yaml:"secret_key,omitempty" json:"secret_key,omitempty"`
		UseSSL    bool   `yaml:"use_ssl,omitempty" json:"use_ssl,omitempty"`
	} `yaml:"minio,omitempty" json:"minio,omitempty"`

	Neo4j struct {
		URI      string `yaml:"uri,omitempty" json:"uri,omitempty"`
		User     string `yaml:"user,omitempty" json:"user,omitempty"`
		Password string `yaml:"password,omitempty" json:"password,omitempty"`
	} `yaml:"neo4j,omitempty" json:"neo4j,omitempty"`
}

// Default returns the configuration used when no file overrides it.
func Default() Config {
	var cfg Config
	cfg.Namespace = "markers"
	cfg.KafkaBrokers = []string{"redpanda:9092"}
	cfg.HTTPAddr = ":8080"
	cfg.FlushIntervalMs = 100
	cfg.Gateway.HTTPAddr = ":8081"
	cfg.Snapshot.Bucket = "marker-scenes"
	cfg.Minio.Endpoint = "minio:9000"
	cfg.Minio.AccessKey = "minioadmin"
	cfg.Minio.SecretKey = "minioadmin"
	cfg.Neo4j.URI = "neo4j://neo4j:7687"
	cfg.Neo4j.User = "neo4j"
	cfg.Neo4j.Password = "password"
	return cfg
}

// Load reads a YAML file over the defaults. An empty path returns the
// defaults unchanged.
func Load(path string) (Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("read config %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("invalid YAML in %s: %w", path, err)
	}
	return cfg, nil
}

// FlushInterval returns the flush period as a duration.
func (c Config) FlushInterval() time.Duration {
	if c.FlushIntervalMs <= 0 {
		return 100 * time.Millisecond
	}
	return time.Duration(c.FlushIntervalMs) * time.Millisecond
}

// SnapshotInterval returns how often the committed scene is persisted.
// Zero disables persistence.
func (c Config) SnapshotInterval() time.Duration {
	if c.Snapshot.IntervalMs <= 0 {
		return 0
	}
	return time.Duration(c.Snapshot.IntervalMs) * time.Millisecond
}
