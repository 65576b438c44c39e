package fec

import (
	"fmt"

	"github.com/hashicorp/go-multierror"
)

// CodingParams are the coding constants shared by TX and RX: every K
// payload datagrams produce N on the wire.
type CodingParams struct {
	K int
	N int
}

// Validate aggregates every violated constraint, rather than
// surfacing only the first, using github.com/hashicorp/go-multierror
// the way a caller debugging a bad config file benefits from seeing
// every bad field in one report.
func (p CodingParams) Validate() error {
	var result *multierror.Error
	if p.K <= 0 {
		result = multierror.Append(result, fmt.Errorf("%w: k must be >= 1, got %d", ErrBadCoding, p.K))
	}
	if p.N < p.K {
		result = multierror.Append(result, fmt.Errorf("%w: n (%d) must be >= k (%d)", ErrBadCoding, p.N, p.K))
	}
	if p.K > NMax || p.N > NMax {
		result = multierror.Append(result, fmt.Errorf("%w: k and n must be <= %d, got k=%d n=%d", ErrBadCoding, NMax, p.K, p.N))
	}
	return result.ErrorOrNil()
}

// ValidateMTU checks mtu against zero and against the caller-supplied
// PHY limit (0 means "no limit enforced here").
func ValidateMTU(mtu, phyLimit int) error {
	var result *multierror.Error
	if mtu <= 0 {
		result = multierror.Append(result, fmt.Errorf("%w: mtu must be > 0, got %d", ErrBadMTU, mtu))
	}
	if phyLimit > 0 && mtu > phyLimit {
		result = multierror.Append(result, fmt.Errorf("%w: mtu (%d) exceeds phy limit (%d)", ErrBadMTU, mtu, phyLimit))
	}
	return result.ErrorOrNil()
}

// BlockIndexWidth is the bit width of the wire block_index counter.
// The wire format fixes it at 24 (see framing.go); §9 of the design
// leaves whether a wrap-aware comparison belongs in the contract as an
// open question, and asks that the counter width at least be exposed
// as a policy knob rather than hard-coded. We expose it here and use
// it only to bound the modulus TXPacker's block index wraps at; RX
// staleness comparison stays a plain numeric comparison, matching the
// original firmware's total absence of wrap handling (see DESIGN.md).
type BlockIndexWidth uint

// DefaultBlockIndexWidth matches the wire format's 24-bit field.
const DefaultBlockIndexWidth BlockIndexWidth = 24

func (w BlockIndexWidth) mask() uint32 {
	if w == 0 || w > 32 {
		w = DefaultBlockIndexWidth
	}
	return uint32(1)<<uint(w) - 1
}

func (w BlockIndexWidth) next(idx uint32) uint32 {
	return (idx + 1) & w.mask()
}
