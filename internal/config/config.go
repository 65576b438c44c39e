// Package config loads the fecbridge YAML configuration file, the way
// coordinator/cfg.go layers a parsed file over a DefaultConfig base.
package config

import (
	"fmt"
	"os"
	"time"

	"github.com/c2h5oh/datasize"
	"github.com/hashicorp/go-multierror"
	"go.uber.org/zap/zapcore"
	"gopkg.in/yaml.v3"

	"github.com/arcfec/fecpacker/fec"
	"github.com/arcfec/fecpacker/internal/logging"
)

// Config is the top-level fecbridge configuration.
type Config struct {
	Coding CodingConfig `yaml:"coding"`
	PHY    PHYConfig    `yaml:"phy"`
	RX     RXConfig     `yaml:"rx"`
	Log    LogConfig    `yaml:"log"`
}

// CodingConfig mirrors fec.CodingParams plus the MTU it is paired
// with.
type CodingConfig struct {
	K               int               `yaml:"k"`
	N               int               `yaml:"n"`
	MTU             datasize.ByteSize `yaml:"mtu"`
	BlockIndexWidth uint              `yaml:"block_index_width"`
	// QueueDepth bounds the producer/reader FIFO ahead of the TX/RX
	// worker (FIFO_DEPTH in §5's memory-bound formula). Passed straight
	// through to fec.TXConfig.QueueDepth / fec.RXConfig.QueueDepth.
	QueueDepth int `yaml:"queue_depth"`
}

// PHYConfig selects and configures the transport below the FEC layer.
type PHYConfig struct {
	// Device is the spidev character device path, e.g. /dev/spidev0.0.
	Device string `yaml:"device"`
	// SpeedHz is the SPI clock rate.
	SpeedHz uint32 `yaml:"speed_hz"`
	// MTULimit bounds fec coding MTU against what the PHY can carry in
	// one transfer; 0 disables the check.
	MTULimit datasize.ByteSize `yaml:"mtu_limit"`
	// ReconnectBackoff bounds the PHY reconnect loop's backoff.
	ReconnectBackoff time.Duration `yaml:"reconnect_backoff"`
}

// RXConfig carries the RX-only policy knobs from fec.RXConfig that
// are meaningful to expose in the config file.
type RXConfig struct {
	MaxPendingBlocks  int           `yaml:"max_pending_blocks"`
	IdleResetDuration time.Duration `yaml:"idle_reset_duration"`
}

// LogConfig is the logging subsystem's own config, passed straight
// through to internal/logging.Init.
type LogConfig = logging.Config

// DefaultConfig returns the configuration fecbridge runs with if the
// YAML file omits a field.
func DefaultConfig() *Config {
	return &Config{
		Coding: CodingConfig{
			K:               8,
			N:               12,
			MTU:             512 * datasize.B,
			BlockIndexWidth: uint(fec.DefaultBlockIndexWidth),
			QueueDepth:      64,
		},
		PHY: PHYConfig{
			Device:           "/dev/spidev0.0",
			SpeedHz:          1_000_000,
			MTULimit:         0,
			ReconnectBackoff: 5 * time.Second,
		},
		RX: RXConfig{
			MaxPendingBlocks:  3,
			IdleResetDuration: 2 * time.Second,
		},
		Log: LogConfig{
			Level: zapcore.InfoLevel,
		},
	}
}

// LoadConfig reads a YAML file at path and unmarshals it over
// DefaultConfig, then validates the result.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: failed to read file: %w", err)
	}

	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("config: failed to parse YAML: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate aggregates every config-level error via the same
// CodingParams/MTU validators fec itself uses, so a bad config file
// fails the same way a bad runtime call would.
func (c *Config) Validate() error {
	params := fec.CodingParams{K: c.Coding.K, N: c.Coding.N}
	phyLimit := int(c.PHY.MTULimit.Bytes())
	return multierror.Append(params.Validate(), fec.ValidateMTU(int(c.Coding.MTU.Bytes()), phyLimit)).ErrorOrNil()
}

// datagramSize is one pooled datagram's footprint: header plus MTU.
func (c *Config) datagramSize() int64 {
	return int64(fec.HeaderSize) + int64(c.Coding.MTU.Bytes())
}

// MemoryBound renders §5's worst-case per-instance memory formula,
// `(N + FIFO_DEPTH) * (header + MTU)`, as a datasize.ByteSize so it
// can be logged or compared against a deployment's RAM budget the same
// way ring.go sizes a ring buffer. TX holds at most one in-progress
// block (bounded by N already), so this term alone is its worst case.
func (c *Config) MemoryBound() datasize.ByteSize {
	fifo := int64(c.Coding.N + c.Coding.QueueDepth)
	return datasize.ByteSize(fifo * c.datagramSize())
}

// RXMemoryBound adds the in-progress RX block queue to MemoryBound:
// up to MaxPendingBlocks blocks, each holding at most N datagrams
// (§3's RX::Block invariant), on top of the shared FIFO/pool term.
// This is the bound the MAX_PENDING_BLOCKS cap exists to enforce.
func (c *Config) RXMemoryBound() datasize.ByteSize {
	blocks := int64(c.RX.MaxPendingBlocks * c.Coding.N)
	return c.MemoryBound() + datasize.ByteSize(blocks*c.datagramSize())
}
