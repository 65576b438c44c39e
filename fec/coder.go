package fec

// Coder is the Reed-Solomon (or equivalent MDS erasure code) primitive
// the TX/RX pipelines are built against. A concrete Coder is bound to
// a fixed (K, N) pair for its lifetime; see internal/rscode for the
// klauspost/reedsolomon-backed implementation this repo ships.
type Coder interface {
	// Encode derives len(dst) parity shards, each of length size,
	// from the K data shards in src. parityIndices[i] is the
	// canonical datagram index (in [K, N)) that dst[i] is sealed
	// with.
	Encode(src, dst [][]byte, parityIndices []int, size int) error

	// Decode reconstructs the missing payload shards of a block.
	// src holds the surviving shards (payload and/or parity), each of
	// length size; indices[i] is the canonical datagram index (in
	// [0, N)) that src[i] was received with. dst holds one buffer per
	// missing payload datagram index in [0, K), in ascending index
	// order, filled in place on success.
	Decode(src, dst [][]byte, indices []int, size int) error
}

// CoderFactory builds a Coder bound to a fixed (k, n) pair. TXPacker
// and RXPacker each call this exactly once, at construction.
type CoderFactory func(k, n int) (Coder, error)
