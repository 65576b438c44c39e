// Package fec implements a unidirectional streaming transport that adds
// Forward Error Correction to a lossy broadcast link.
//
// A TXPacker slices an ingested byte stream into fixed-size payload
// datagrams, groups every K of them into a block, derives N-K parity
// datagrams from the block via a Coder, and emits all N datagrams
// through a sink callback. An RXPacker observes datagrams arriving out
// of order and with loss, and reconstructs the original stream as long
// as at least K of the N datagrams of a block survive.
//
// Encode and decode both run on a dedicated worker goroutine per
// instance; callers never block on FEC computation beyond the bounded
// queue's own backpressure.
package fec
