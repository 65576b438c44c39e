//go:build linux

package phy

import (
	"context"
	"fmt"
	"os"
	"sync"
	"time"
	"unsafe"

	"github.com/cenkalti/backoff/v5"
	"golang.org/x/sys/unix"
)

// spidev ioctl numbers, from linux/spi/spidev.h. Go has no cgo-free
// way to pull these from the kernel headers, so they're reproduced
// here the way golang.org/x/sys/unix callers for other character
// devices do (see its own ioctl constant tables).
const (
	spiIOCWrMode        = 0x40016b01
	spiIOCWrBitsPerWord = 0x40016b03
	spiIOCWrMaxSpeedHz  = 0x40046b04
	spiIOCMessage1      = 0x40206b00
)

type spiIOCTransfer struct {
	txBuf       uint64
	rxBuf       uint64
	length      uint32
	speedHz     uint32
	delayUsecs  uint16
	bitsPerWord uint8
	csChange    uint8
	pad         uint32
}

// SPIDev is a Link backed by a Linux /dev/spidevB.C character device,
// reconnecting with an exponential backoff the way
// modules/route/bird-adapter/service.go reconnects its gRPC stream.
type SPIDev struct {
	path    string
	speedHz uint32
	maxMTU  int

	mu   sync.Mutex
	file *os.File

	backoffMax time.Duration
	closed     chan struct{}
}

// NewSPIDev tries to open path right away, retrying under backoff for
// up to backoffMax; if that still fails, each later Send/Recv retries
// the open the same way before returning an error.
func NewSPIDev(path string, speedHz uint32, maxMTU int, backoffMax time.Duration) *SPIDev {
	d := &SPIDev{
		path:       path,
		speedHz:    speedHz,
		maxMTU:     maxMTU,
		backoffMax: backoffMax,
		closed:     make(chan struct{}),
	}
	_ = d.ensureOpen(context.Background())
	return d
}

func (d *SPIDev) ensureOpen(ctx context.Context) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	select {
	case <-d.closed:
		return fmt.Errorf("phy: %s is closed", d.path)
	default:
	}
	if d.file != nil {
		return nil
	}

	open := func() (*os.File, error) {
		f, err := os.OpenFile(d.path, os.O_RDWR, 0)
		if err != nil {
			return nil, err
		}
		if err := configureSPI(f, d.speedHz); err != nil {
			f.Close()
			return nil, err
		}
		return f, nil
	}

	f, err := backoff.Retry(ctx, open, backoff.WithMaxElapsedTime(d.backoffMax))
	if err != nil {
		return fmt.Errorf("phy: failed to open %s: %w", d.path, err)
	}
	d.file = f
	return nil
}

func configureSPI(f *os.File, speedHz uint32) error {
	fd := f.Fd()
	var mode, bits uint8 = 0, 8
	if err := ioctl(fd, spiIOCWrMode, uintptr(unsafe.Pointer(&mode))); err != nil {
		return fmt.Errorf("SPI_IOC_WR_MODE: %w", err)
	}
	if err := ioctl(fd, spiIOCWrBitsPerWord, uintptr(unsafe.Pointer(&bits))); err != nil {
		return fmt.Errorf("SPI_IOC_WR_BITS_PER_WORD: %w", err)
	}
	if err := ioctl(fd, spiIOCWrMaxSpeedHz, uintptr(unsafe.Pointer(&speedHz))); err != nil {
		return fmt.Errorf("SPI_IOC_WR_MAX_SPEED_HZ: %w", err)
	}
	return nil
}

func ioctl(fd uintptr, req uint, arg uintptr) error {
	_, _, errno := unix.Syscall(unix.SYS_IOCTL, fd, uintptr(req), arg)
	if errno != 0 {
		return errno
	}
	return nil
}

// Send performs one full-duplex SPI transfer carrying buf, discarding
// the simultaneously-read bytes; RX traffic arrives via Recv's own
// polling transfers.
func (d *SPIDev) Send(ctx context.Context, buf []byte) error {
	if err := d.ensureOpen(ctx); err != nil {
		return err
	}
	scratch := make([]byte, len(buf))
	return d.transfer(buf, scratch)
}

// Recv issues a zero-filled transfer sized to maxMTU and returns
// whatever the peer clocked back, trimmed to its own header-declared
// size by the caller (fec.RXPacker.AddRXPacketWithRSSI does the
// parsing; Recv only moves bytes).
func (d *SPIDev) Recv(ctx context.Context) (Datagram, error) {
	if err := d.ensureOpen(ctx); err != nil {
		return Datagram{}, err
	}
	tx := make([]byte, d.maxMTU)
	rx := make([]byte, d.maxMTU)
	if err := d.transfer(tx, rx); err != nil {
		return Datagram{}, err
	}
	return Datagram{Payload: rx}, nil
}

func (d *SPIDev) transfer(tx, rx []byte) error {
	d.mu.Lock()
	f := d.file
	d.mu.Unlock()
	if f == nil {
		return fmt.Errorf("phy: %s not open", d.path)
	}

	xfer := spiIOCTransfer{
		txBuf:       uint64(uintptr(unsafe.Pointer(&tx[0]))),
		rxBuf:       uint64(uintptr(unsafe.Pointer(&rx[0]))),
		length:      uint32(len(tx)),
		speedHz:     d.speedHz,
		bitsPerWord: 8,
	}
	if err := ioctl(f.Fd(), spiIOCMessage1, uintptr(unsafe.Pointer(&xfer))); err != nil {
		d.mu.Lock()
		d.file.Close()
		d.file = nil
		d.mu.Unlock()
		return fmt.Errorf("phy: spi transfer: %w", err)
	}
	return nil
}

func (d *SPIDev) Close() error {
	select {
	case <-d.closed:
	default:
		close(d.closed)
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.file == nil {
		return nil
	}
	err := d.file.Close()
	d.file = nil
	return err
}
