package fec

import "encoding/binary"

// HeaderSize is the size in bytes of the wire header: a 4-byte
// little-endian word packing block_index:24 and datagram_index:8,
// followed by a 2-byte little-endian word packing is_fec:1 and
// size:15. This resolves the apparent "4-byte header" vs. the
// documented two-word bitfield layout in favor of the original
// firmware's actual Datagram_Header (see DESIGN.md).
const HeaderSize = 6

// NMax bounds K and N for any single instance.
const NMax = 32

// Seal writes the wire header at buf[headerOffset:headerOffset+HeaderSize].
// size is recorded as len(buf)-headerOffset, matching the original
// seal_datagram's "header.size = datagram.data.size() - header_offset".
func Seal(buf []byte, headerOffset int, blockIndex uint32, datagramIndex uint8, isFec bool) {
	w0 := (blockIndex & 0x00FFFFFF) | (uint32(datagramIndex) << 24)
	binary.LittleEndian.PutUint32(buf[headerOffset:], w0)

	size := uint16(len(buf) - headerOffset)
	w1 := size << 1
	if isFec {
		w1 |= 1
	}
	binary.LittleEndian.PutUint16(buf[headerOffset+4:], w1)
}

// Parse reads the wire header from the start of buf. It fails with
// ErrShortDatagram if buf is shorter than HeaderSize, or if the
// encoded size disagrees with len(buf).
func Parse(buf []byte) (blockIndex uint32, datagramIndex uint8, isFec bool, payload []byte, err error) {
	if len(buf) < HeaderSize {
		return 0, 0, false, nil, ErrShortDatagram
	}

	w0 := binary.LittleEndian.Uint32(buf)
	blockIndex = w0 & 0x00FFFFFF
	datagramIndex = uint8(w0 >> 24)

	w1 := binary.LittleEndian.Uint16(buf[4:])
	isFec = w1&1 != 0
	size := w1 >> 1

	if int(size) != len(buf) {
		return 0, 0, false, nil, ErrShortDatagram
	}

	return blockIndex, datagramIndex, isFec, buf[HeaderSize:], nil
}
