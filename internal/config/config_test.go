package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadEmptyPathReturnsDefaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "markers", cfg.Namespace)
	assert.Equal(t, []string{"redpanda:9092"}, cfg.KafkaBrokers)
	assert.Equal(t, 100*time.Millisecond, cfg.FlushInterval())
	assert.Equal(t, time.Duration(0), cfg.SnapshotInterval(), "persistence is off by default")
}

func TestLoadOverridesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "hub.yaml")
	data := `
namespace: cube
kafka_brokers: ["k1:9092", "k2:9092"]
flush_interval_ms: 50
snapshot:
  interval_ms: 30000
  bucket: cube-scenes
neo4j:
  uri: neo4j://graph:7687
`
	require.NoError(t, os.WriteFile(path, []byte(data), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "cube", cfg.Namespace)
	assert.Equal(t, []string{"k1:9092", "k2:9092"}, cfg.KafkaBrokers)
	assert.Equal(t, 50*time.Millisecond, cfg.FlushInterval())
	assert.Equal(t, 30*time.Second, cfg.SnapshotInterval())
	assert.Equal(t, "cube-scenes", cfg.Snapshot.Bucket)
	assert.Equal(t, "neo4j://graph:7687", cfg.Neo4j.URI)
	// Untouched sections keep their defaults.
	assert.Equal(t, "neo4j", cfg.Neo4j.User)
	assert.Equal(t, ":8080", cfg.HTTPAddr)
}

func TestLoadMissingFileFails(t *testing.T) {
	_, err := Load("/nonexistent/hub.yaml")
	assert.Error(t, err)
}

func TestLoadInvalidYAMLFails(t *testing.T) {
	path := filepath.Join(t.TempDir(), "hub.yaml")
	require.NoError(t, os.WriteFile(path, []byte("namespace: [broken"), 0o644))
	_, err := Load(path)
	assert.Error(t, err)
}
