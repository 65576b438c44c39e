// Package rscode adapts github.com/klauspost/reedsolomon to the
// fec.Coder interface, the way lib/fec in the xtaci/kcp-go vendor tree
// (and syncthing's own fec package) wrap the same library behind a
// seqid/flag-oriented shard set. This adapter is positional instead:
// fec.TXPacker/fec.RXPacker already carry datagram indices, so the
// wrapper's only job is shard bookkeeping.
package rscode

import (
	"fmt"

	"github.com/klauspost/reedsolomon"

	"github.com/arcfec/fecpacker/fec"
)

type codec struct {
	k, n int
	enc  reedsolomon.Encoder
}

// New builds a fec.Coder for a fixed (k, n) pair. It satisfies
// fec.CoderFactory.
func New(k, n int) (fec.Coder, error) {
	enc, err := reedsolomon.New(k, n-k)
	if err != nil {
		return nil, fmt.Errorf("rscode: reedsolomon.New(%d, %d): %w", k, n-k, err)
	}
	return &codec{k: k, n: n, enc: enc}, nil
}

// Encode lays src (the K data shards, in canonical order) into a
// full N-shard matrix, asks reedsolomon to fill the parity shards
// in place, and copies the result back into the caller's dst
// buffers so TX never has to hand reedsolomon its own pooled memory.
func (c *codec) Encode(src, dst [][]byte, parityIndices []int, size int) error {
	if len(src) != c.k {
		return fmt.Errorf("rscode: encode wants %d data shards, got %d", c.k, len(src))
	}
	if len(dst) != len(parityIndices) {
		return fmt.Errorf("rscode: dst/parityIndices length mismatch: %d vs %d", len(dst), len(parityIndices))
	}

	shards := make([][]byte, c.n)
	copy(shards, src)
	for i := c.k; i < c.n; i++ {
		shards[i] = make([]byte, size)
	}

	if err := c.enc.Encode(shards); err != nil {
		return fmt.Errorf("rscode: encode: %w", err)
	}

	for i, parityIdx := range parityIndices {
		shardPos := parityIdx
		if shardPos < c.k || shardPos >= c.n {
			return fmt.Errorf("rscode: parity index %d out of range [%d,%d)", parityIdx, c.k, c.n)
		}
		copy(dst[i], shards[shardPos])
	}
	return nil
}

// Decode places every surviving shard (payload or parity) at its
// canonical position in an N-length matrix, leaves every other
// position nil, and asks reedsolomon to reconstruct the data shards.
// Recovered data shards are copied into dst in ascending missing-index
// order, matching fec.Coder's documented contract.
func (c *codec) Decode(src, dst [][]byte, indices []int, size int) error {
	if len(src) != len(indices) {
		return fmt.Errorf("rscode: src/indices length mismatch: %d vs %d", len(src), len(indices))
	}
	if len(src) < c.k {
		return fmt.Errorf("rscode: need at least %d surviving shards, got %d", c.k, len(src))
	}

	shards := make([][]byte, c.n)
	for i, idx := range indices {
		if idx < 0 || idx >= c.n {
			return fmt.Errorf("rscode: shard index %d out of range [0,%d)", idx, c.n)
		}
		shards[idx] = src[i]
	}

	if err := c.enc.ReconstructData(shards); err != nil {
		return fmt.Errorf("rscode: reconstruct: %w", err)
	}

	// Re-derive which of the K data positions were originally missing
	// (not present in indices) so recovered shards land in dst in the
	// same ascending order the caller allocated them in.
	have := make([]bool, c.k)
	for _, idx := range indices {
		if idx < c.k {
			have[idx] = true
		}
	}
	dsti := 0
	for i := 0; i < c.k && dsti < len(dst); i++ {
		if have[i] {
			continue
		}
		copy(dst[dsti], shards[i][:size])
		dsti++
	}
	if dsti != len(dst) {
		return fmt.Errorf("rscode: expected to recover %d data shards, recovered %d", len(dst), dsti)
	}
	return nil
}
