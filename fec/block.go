package fec

// rxBlock holds the in-progress state of one block on the RX side:
// an ascending-by-datagramIndex list of payload datagrams and a
// separate ascending list of parity datagrams. Neither list ever
// contains a duplicate datagramIndex.
type rxBlock struct {
	blockIndex uint32
	payload    []*Handle[rxDatagram]
	parity     []*Handle[rxDatagram]
}

func newRXBlockPool(k, parityCount, maxFree int) *Pool[rxBlock] {
	return NewPool(
		maxFree,
		func() *rxBlock {
			return &rxBlock{
				payload: make([]*Handle[rxDatagram], 0, k),
				parity:  make([]*Handle[rxDatagram], 0, parityCount),
			}
		},
		func(b *rxBlock) {
			b.blockIndex = 0
			b.payload = b.payload[:0]
			b.parity = b.parity[:0]
		},
		func(b *rxBlock) {
			b.payload = b.payload[:0]
			b.parity = b.parity[:0]
		},
	)
}

// insert places h into the block's payload or parity list, keeping it
// ascending by datagramIndex. It returns false without modifying the
// list if a datagram with the same datagramIndex is already present
// (DuplicateDatagram).
func (b *rxBlock) insert(h *Handle[rxDatagram]) bool {
	if h.Value().isFec {
		ok := false
		b.parity, ok = insertAscending(b.parity, h)
		return ok
	}
	ok := false
	b.payload, ok = insertAscending(b.payload, h)
	return ok
}

func insertAscending(list []*Handle[rxDatagram], h *Handle[rxDatagram]) ([]*Handle[rxDatagram], bool) {
	idx := h.Value().datagramIndex

	lo, hi := 0, len(list)
	for lo < hi {
		mid := (lo + hi) / 2
		if list[mid].Value().datagramIndex < idx {
			lo = mid + 1
		} else {
			hi = mid
		}
	}
	if lo < len(list) && list[lo].Value().datagramIndex == idx {
		return list, false
	}
	return insertHandleAt(list, lo, h), true
}

func insertHandleAt(list []*Handle[rxDatagram], pos int, h *Handle[rxDatagram]) []*Handle[rxDatagram] {
	list = append(list, nil)
	copy(list[pos+1:], list[pos:])
	list[pos] = h
	return list
}

func releaseBlock(entry *Handle[rxBlock]) {
	block := entry.Value()
	for _, h := range block.payload {
		h.Release()
	}
	for _, h := range block.parity {
		h.Release()
	}
	entry.Release()
}
