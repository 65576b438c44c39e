package config_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/c2h5oh/datasize"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/arcfec/fecpacker/internal/config"
)

func TestDefaultConfigValidates(t *testing.T) {
	cfg := config.DefaultConfig()
	assert.NoError(t, cfg.Validate())
}

func TestLoadConfigOverlaysDefaults(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "fecbridge.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
coding:
  k: 10
  n: 14
phy:
  device: /dev/spidev1.0
`), 0o644))

	cfg, err := config.LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, 10, cfg.Coding.K)
	assert.Equal(t, 14, cfg.Coding.N)
	assert.Equal(t, "/dev/spidev1.0", cfg.PHY.Device)
	// untouched fields keep their defaults
	assert.Equal(t, config.DefaultConfig().RX.MaxPendingBlocks, cfg.RX.MaxPendingBlocks)
}

func TestLoadConfigMissingFile(t *testing.T) {
	_, err := config.LoadConfig(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestLoadConfigRejectsBadCoding(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "fecbridge.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
coding:
  k: 10
  n: 4
`), 0o644))

	_, err := config.LoadConfig(path)
	assert.Error(t, err)
}

func TestMemoryBoundFollowsCodingFormula(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.Coding.N = 12
	cfg.Coding.QueueDepth = 64
	cfg.Coding.MTU = 512 * datasize.B

	want := datasize.ByteSize(76) * (6 + 512) // (N + QueueDepth) * (header + MTU)
	assert.Equal(t, want, cfg.MemoryBound())
}

func TestRXMemoryBoundAddsPendingBlocks(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.Coding.N = 12
	cfg.Coding.QueueDepth = 64
	cfg.Coding.MTU = 512 * datasize.B
	cfg.RX.MaxPendingBlocks = 3

	want := cfg.MemoryBound() + datasize.ByteSize(3*12)*(6+512)
	assert.Equal(t, want, cfg.RXMemoryBound())
}

func TestCodingConfigMTUParsesHumanSizes(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "fecbridge.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
coding:
  mtu: 1KB
`), 0o644))

	cfg, err := config.LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, datasize.KB, cfg.Coding.MTU)
}
