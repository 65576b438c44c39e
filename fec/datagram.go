package fec

// txDatagram is the producer-side accumulator buffer. buf is always
// HeaderSize+MTU bytes; filled tracks how many payload bytes (past
// the header region) have been written so far.
type txDatagram struct {
	buf    []byte
	filled int
}

func newTXDatagramPool(mtu, maxFree int) *Pool[txDatagram] {
	size := HeaderSize + mtu
	return NewPool(
		maxFree,
		func() *txDatagram {
			return &txDatagram{buf: make([]byte, size)}
		},
		func(d *txDatagram) {
			clear(d.buf)
			d.filled = 0
		},
		nil,
	)
}

// rxDatagram is one parsed, pool-owned incoming datagram. rssi is
// observability-only: it never affects block/FEC logic, only
// RXStats.AverageRSSI.
type rxDatagram struct {
	blockIndex    uint32
	datagramIndex uint8
	isFec         bool
	isProcessed   bool
	rssi          int8
	payload       []byte
}

func newRXDatagramPool(mtu, maxFree int) *Pool[rxDatagram] {
	return NewPool(
		maxFree,
		func() *rxDatagram {
			return &rxDatagram{payload: make([]byte, mtu)}
		},
		func(d *rxDatagram) {
			d.blockIndex = 0
			d.datagramIndex = 0
			d.isFec = false
			d.isProcessed = false
			d.rssi = 0
			clear(d.payload)
		},
		nil,
	)
}
