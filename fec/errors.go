package fec

import "errors"

// Error taxonomy. BadCoding and BadMTU are fatal at construction time.
// ErrShortDatagram and ErrShutdown are returned to the AddRXPacket
// caller and never surfaced to the sink. The other RX drop reasons
// (out-of-range index, stale block, duplicate datagram, retired block)
// have no error value: each is counted in RXStats, and out-of-range
// drops and block retirements are also logged at Debug level.
var (
	// ErrBadCoding is returned by NewTXPacker/NewRXPacker when K or N
	// is invalid (K == 0, N < K, or either exceeds NMax).
	ErrBadCoding = errors.New("fec: invalid coding parameters")

	// ErrBadMTU is returned when MTU is zero or exceeds the configured
	// PHY limit.
	ErrBadMTU = errors.New("fec: invalid mtu")

	// ErrShortDatagram means an incoming RX datagram was smaller than
	// the wire header, or its encoded size field disagreed with the
	// buffer length.
	ErrShortDatagram = errors.New("fec: datagram shorter than header")

	// ErrShutdown means the call was made after Shutdown.
	ErrShutdown = errors.New("fec: packer is shut down")
)
