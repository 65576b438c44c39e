package fec

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/hashicorp/go-multierror"
	"go.uber.org/zap"
)

// TXConfig configures a TXPacker. Coding and MTU are validated once,
// at NewTXPacker time (§4.3's init_tx contract).
type TXConfig struct {
	CodingParams
	MTU int
	// PHYMTULimit bounds MTU against the PHY's own limit; 0 disables
	// the check.
	PHYMTULimit int
	// QueueDepth bounds the producer -> encoder-worker FIFO. Once
	// full, AddTXPacket blocks the calling goroutine (§9's "block
	// producer vs drop" is resolved here in favor of blocking: a
	// Go channel's natural behavior, and the safer default for a
	// caller that cannot otherwise detect it is outrunning the wire).
	QueueDepth int
	// PoolSize bounds the datagram pool's free list.
	PoolSize int
	// BlockIndexWidth governs the modulus current_block_index wraps
	// at. Zero selects DefaultBlockIndexWidth.
	BlockIndexWidth BlockIndexWidth
}

// TXPacker ingests a byte stream, slices it into MTU-sized payload
// datagrams, groups every K into a block, derives N-K parity
// datagrams via a Coder, and emits all N through sink. See §4.3.
type TXPacker struct {
	cfg   TXConfig
	log   *zap.SugaredLogger
	coder Coder
	sink  func(buf []byte)

	pool *Pool[txDatagram]

	// ingressMu serializes add_tx_packet against itself; the spec
	// assumes a single producer, but guarding the shared accumulator
	// costs little and removes a foot-gun (§9 "Producer concurrency").
	ingressMu sync.Mutex
	crt       *Handle[txDatagram]

	// queue carries both payload datagrams and flush requests in a
	// single FIFO, so a Flush can never be reordered ahead of
	// datagrams the caller already handed to AddTXPacket: two
	// separate channels read via select would give Go's runtime the
	// freedom to service either one first, regardless of send order.
	queue chan txItem
	done  chan struct{}
	wg    sync.WaitGroup
	exit  atomic.Bool

	// worker-private state
	blockPayload   []*Handle[txDatagram]
	lastBlockIndex uint32

	Stats TXStats
}

type txItem struct {
	datagram *Handle[txDatagram]
	flush    *flushRequest
}

type flushRequest struct {
	done chan struct{}
}

// NewTXPacker validates cfg, builds a Coder via factory, and spawns
// the encoder worker goroutine. log must not be nil.
func NewTXPacker(cfg TXConfig, sink func(buf []byte), log *zap.SugaredLogger, factory CoderFactory) (*TXPacker, error) {
	if log == nil {
		return nil, fmt.Errorf("fec: logger cannot be nil")
	}
	if err := multierror.Append(cfg.CodingParams.Validate(), ValidateMTU(cfg.MTU, cfg.PHYMTULimit)).ErrorOrNil(); err != nil {
		return nil, err
	}
	if cfg.QueueDepth <= 0 {
		cfg.QueueDepth = 64
	}
	if cfg.PoolSize <= 0 {
		cfg.PoolSize = cfg.QueueDepth + cfg.N
	}

	coder, err := factory(cfg.K, cfg.N)
	if err != nil {
		return nil, fmt.Errorf("fec: failed to build coder: %w", err)
	}

	t := &TXPacker{
		cfg:            cfg,
		log:            log,
		coder:          coder,
		sink:           sink,
		pool:           newTXDatagramPool(cfg.MTU, cfg.PoolSize),
		queue:          make(chan txItem, cfg.QueueDepth),
		done:           make(chan struct{}),
		blockPayload:   make([]*Handle[txDatagram], 0, cfg.K),
		lastBlockIndex: 1,
	}

	t.wg.Add(1)
	go t.run()
	return t, nil
}

// AddTXPacket appends bytes into the current accumulator datagram,
// slicing across MTU boundaries and queuing each full slice for the
// encoder worker. It never fails; after Shutdown it is a no-op.
func (t *TXPacker) AddTXPacket(data []byte) {
	if t.exit.Load() {
		return
	}

	t.ingressMu.Lock()
	defer t.ingressMu.Unlock()

	for len(data) > 0 {
		if t.crt == nil {
			t.crt = t.pool.Acquire()
		}
		d := t.crt.Value()

		dst := d.buf[HeaderSize+d.filled : HeaderSize+t.cfg.MTU]
		n := copy(dst, data)
		d.filled += n
		data = data[n:]

		if d.filled == t.cfg.MTU {
			h := t.crt
			t.crt = nil
			select {
			case t.queue <- txItem{datagram: h}:
			case <-t.done:
				h.Release()
				return
			}
		}
	}
}

// Flush queues the partially filled accumulator datagram (its unused
// tail is zero), then pads the in-progress block with zero payload
// datagrams up to K and emits it immediately, deriving parity over the
// padded block.
// It is never called implicitly by Shutdown; a caller that needs
// every ingested byte on the wire before tearing down must call it
// explicitly (§9's flush-primitive open question, resolved as an
// opt-in operation rather than shutdown behavior).
func (t *TXPacker) Flush(ctx context.Context) error {
	if t.exit.Load() {
		return ErrShutdown
	}
	t.ingressMu.Lock()
	if h := t.crt; h != nil {
		t.crt = nil
		select {
		case t.queue <- txItem{datagram: h}:
		case <-t.done:
			h.Release()
		}
	}
	t.ingressMu.Unlock()

	req := &flushRequest{done: make(chan struct{})}
	select {
	case t.queue <- txItem{flush: req}:
	case <-t.done:
		return ErrShutdown
	case <-ctx.Done():
		return ctx.Err()
	}
	select {
	case <-req.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Shutdown stops the encoder worker and discards any partially-filled
// block and in-flight accumulator. Idempotent.
func (t *TXPacker) Shutdown() {
	if !t.exit.CompareAndSwap(false, true) {
		return
	}
	close(t.done)
	t.wg.Wait()

	t.ingressMu.Lock()
	if t.crt != nil {
		t.crt.Release()
		t.crt = nil
	}
	t.ingressMu.Unlock()

drain:
	for {
		select {
		case item, ok := <-t.queue:
			if !ok {
				break drain
			}
			if item.datagram != nil {
				item.datagram.Release()
			}
			if item.flush != nil {
				close(item.flush.done)
			}
		default:
			break drain
		}
	}

	for _, h := range t.blockPayload {
		h.Release()
	}
	t.blockPayload = nil
}

func (t *TXPacker) run() {
	defer t.wg.Done()
	for {
		select {
		case item, ok := <-t.queue:
			if !ok {
				return
			}
			if item.datagram != nil {
				t.processDatagram(item.datagram)
			}
			if item.flush != nil {
				t.handleFlush(item.flush)
			}
		case <-t.done:
			return
		}
	}
}

func (t *TXPacker) emit(buf []byte) {
	if t.sink != nil {
		t.sink(buf)
	}
}

func (t *TXPacker) processDatagram(h *Handle[txDatagram]) {
	d := h.Value()
	idx := uint8(len(t.blockPayload))
	Seal(d.buf, 0, t.lastBlockIndex, idx, false)
	t.emit(d.buf)
	t.Stats.PayloadSealed.Add(1)

	t.blockPayload = append(t.blockPayload, h)
	if len(t.blockPayload) == t.cfg.K {
		t.closeBlock()
	}
}

func (t *TXPacker) handleFlush(req *flushRequest) {
	defer close(req.done)
	if len(t.blockPayload) == 0 {
		return
	}
	for len(t.blockPayload) < t.cfg.K {
		h := t.pool.Acquire()
		d := h.Value()
		d.filled = t.cfg.MTU
		idx := uint8(len(t.blockPayload))
		Seal(d.buf, 0, t.lastBlockIndex, idx, false)
		t.emit(d.buf)
		t.Stats.PayloadSealed.Add(1)
		t.blockPayload = append(t.blockPayload, h)
	}
	t.closeBlock()
}

// closeBlock derives N-K parity datagrams from the K sealed payload
// datagrams currently held, seals and emits them, then releases the
// block and advances lastBlockIndex. See §4.3 step 5.
func (t *TXPacker) closeBlock() {
	k, n := t.cfg.K, t.cfg.N
	parityCount := n - k

	src := make([][]byte, k)
	for i, h := range t.blockPayload {
		src[i] = h.Value().buf[HeaderSize:]
	}

	parityHandles := make([]*Handle[txDatagram], parityCount)
	dst := make([][]byte, parityCount)
	parityIndices := make([]int, parityCount)
	for i := 0; i < parityCount; i++ {
		ph := t.pool.Acquire()
		ph.Value().filled = t.cfg.MTU
		parityHandles[i] = ph
		dst[i] = ph.Value().buf[HeaderSize:]
		parityIndices[i] = k + i
	}

	if err := t.coder.Encode(src, dst, parityIndices, t.cfg.MTU); err != nil {
		t.log.Errorw("fec encode failed, dropping block", "block_index", t.lastBlockIndex, "error", err)
		t.Stats.EncodeErrors.Add(1)
	} else {
		for i, ph := range parityHandles {
			Seal(ph.Value().buf, 0, t.lastBlockIndex, uint8(k+i), true)
			t.emit(ph.Value().buf)
			t.Stats.ParitySealed.Add(1)
		}
		t.Stats.BlocksSealed.Add(1)
	}

	for _, ph := range parityHandles {
		ph.Release()
	}
	for _, h := range t.blockPayload {
		h.Release()
	}
	t.blockPayload = t.blockPayload[:0]
	t.lastBlockIndex = t.cfg.BlockIndexWidth.next(t.lastBlockIndex)
}
