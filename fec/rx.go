package fec

import (
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/hashicorp/go-multierror"
	"go.uber.org/zap"
)

// RXConfig configures an RXPacker.
type RXConfig struct {
	CodingParams
	MTU         int
	PHYMTULimit int
	QueueDepth  int
	// PoolSize bounds the datagram pool's free list; BlockPoolSize
	// bounds the block pool's.
	PoolSize      int
	BlockPoolSize int
	// MaxPendingBlocks caps how many blocks, the front included, may
	// sit in the queue; once there are more, the front is retired
	// undecoded, even if it never reaches K surviving shards. Matches the original's
	// fixed threshold of 3; exposed here as a policy knob.
	MaxPendingBlocks int
	// IdleResetDuration is how long the pipeline can go without
	// delivering a datagram before it resets next_block_index to 0
	// and drops all pending blocks, so a restarted TX (whose
	// block_index restarts from its initial value of 1, see tx.go) is resynchronized
	// without a stale-block deadlock.
	IdleResetDuration time.Duration
}

// RXPacker reassembles a byte stream from a possibly-lossy stream of
// payload and parity datagrams, recovering up to N-K losses per block
// via Coder.Decode. See §4.4.
type RXPacker struct {
	cfg   RXConfig
	log   *zap.SugaredLogger
	coder Coder
	sink  func(buf []byte)

	datagramPool *Pool[rxDatagram]
	blockPool    *Pool[rxBlock]

	queue chan *Handle[rxDatagram]
	done  chan struct{}
	wg    sync.WaitGroup
	exit  atomic.Bool

	// worker-private state
	blocks           []*Handle[rxBlock]
	nextBlockIndex   uint32
	lastDeliveryTime time.Time

	Stats RXStats
}

// NewRXPacker validates cfg, builds a Coder via factory, and spawns
// the reassembly worker goroutine. log must not be nil.
func NewRXPacker(cfg RXConfig, sink func(buf []byte), log *zap.SugaredLogger, factory CoderFactory) (*RXPacker, error) {
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
	if cfg.BlockPoolSize <= 0 {
		cfg.BlockPoolSize = 8
	}
	if cfg.MaxPendingBlocks <= 0 {
		cfg.MaxPendingBlocks = 3
	}
	if cfg.IdleResetDuration <= 0 {
		cfg.IdleResetDuration = 2 * time.Second
	}

	coder, err := factory(cfg.K, cfg.N)
	if err != nil {
		return nil, fmt.Errorf("fec: failed to build coder: %w", err)
	}

	r := &RXPacker{
		cfg:              cfg,
		log:              log,
		coder:            coder,
		sink:             sink,
		datagramPool:     newRXDatagramPool(cfg.MTU, cfg.PoolSize),
		blockPool:        newRXBlockPool(cfg.K, cfg.N-cfg.K, cfg.BlockPoolSize),
		queue:            make(chan *Handle[rxDatagram], cfg.QueueDepth),
		done:             make(chan struct{}),
		lastDeliveryTime: time.Now(),
	}

	r.wg.Add(1)
	go r.run()
	return r, nil
}

// AddRXPacket parses and queues a datagram with no RSSI reading.
func (r *RXPacker) AddRXPacket(buf []byte) error {
	return r.AddRXPacketWithRSSI(buf, 0)
}

// AddRXPacketWithRSSI parses and queues an incoming datagram, pairing
// it with the PHY's reported signal strength (see structures.h's
// SPI_Packet.rssi). rssi never affects delivery or recovery decisions;
// it only feeds RXStats.AverageRSSI.
func (r *RXPacker) AddRXPacketWithRSSI(buf []byte, rssi int8) error {
	if r.exit.Load() {
		return ErrShutdown
	}

	blockIndex, datagramIndex, isFec, payload, err := Parse(buf)
	if err != nil {
		r.Stats.ShortDatagrams.Add(1)
		return err
	}

	h := r.datagramPool.Acquire()
	d := h.Value()
	d.blockIndex = blockIndex
	d.datagramIndex = datagramIndex
	d.isFec = isFec
	d.rssi = rssi
	copy(d.payload, payload)
	r.Stats.rssi.observe(rssi)

	select {
	case r.queue <- h:
		return nil
	case <-r.done:
		h.Release()
		return ErrShutdown
	}
}

// Shutdown stops the reassembly worker and releases every pending
// block and queued datagram. Idempotent.
func (r *RXPacker) Shutdown() {
	if !r.exit.CompareAndSwap(false, true) {
		return
	}
	close(r.done)
	r.wg.Wait()

drain:
	for {
		select {
		case h, ok := <-r.queue:
			if !ok {
				break drain
			}
			h.Release()
		default:
			break drain
		}
	}

	for _, b := range r.blocks {
		releaseBlock(b)
	}
	r.blocks = nil
}

func (r *RXPacker) run() {
	defer r.wg.Done()

	interval := r.cfg.IdleResetDuration / 4
	if interval <= 0 {
		interval = 50 * time.Millisecond
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case h, ok := <-r.queue:
			if !ok {
				return
			}
			r.ingest(h)
			r.drainQueue()
			r.maybeResetOnIdle()
			r.processBlockQueue()
		case <-ticker.C:
			r.maybeResetOnIdle()
		case <-r.done:
			return
		}
	}
}

func (r *RXPacker) emit(buf []byte) {
	if r.sink != nil {
		r.sink(buf)
	}
}

// drainQueue empties whatever is already queued without blocking, so
// one wake cycle processes a full batch the way the original's
// condition-variable wakeup drains its entire deque before deciding
// what to deliver.
func (r *RXPacker) drainQueue() {
	for {
		select {
		case h, ok := <-r.queue:
			if !ok {
				return
			}
			r.ingest(h)
		default:
			return
		}
	}
}

func (r *RXPacker) ingest(h *Handle[rxDatagram]) {
	d := h.Value()

	if int(d.datagramIndex) >= r.cfg.N {
		r.log.Debugw("dropping datagram with out-of-range index", "block_index", d.blockIndex, "datagram_index", d.datagramIndex)
		r.Stats.OutOfRangeDrops.Add(1)
		h.Release()
		return
	}
	if d.blockIndex < r.nextBlockIndex {
		r.Stats.StaleBlockDrops.Add(1)
		h.Release()
		return
	}

	block := r.findOrCreateBlock(d.blockIndex)
	if !block.Value().insert(h) {
		r.Stats.DuplicateDrops.Add(1)
		h.Release()
	}
}

func (r *RXPacker) findOrCreateBlock(blockIndex uint32) *Handle[rxBlock] {
	lo, hi := 0, len(r.blocks)
	for lo < hi {
		mid := (lo + hi) / 2
		if r.blocks[mid].Value().blockIndex < blockIndex {
			lo = mid + 1
		} else {
			hi = mid
		}
	}
	if lo < len(r.blocks) && r.blocks[lo].Value().blockIndex == blockIndex {
		return r.blocks[lo]
	}

	h := r.blockPool.Acquire()
	h.Value().blockIndex = blockIndex

	r.blocks = append(r.blocks, nil)
	copy(r.blocks[lo+1:], r.blocks[lo:])
	r.blocks[lo] = h
	return h
}

// maybeResetOnIdle matches the original's reset_duration watchdog: if
// nothing has been delivered to the sink for IdleResetDuration, the
// sequence is assumed desynchronized (most likely a restarted peer)
// and the whole pending state is dropped and next_block_index is reset
// to 0, so the blocks of a TX that has itself restarted are accepted.
func (r *RXPacker) maybeResetOnIdle() {
	if time.Since(r.lastDeliveryTime) <= r.cfg.IdleResetDuration {
		return
	}
	for _, b := range r.blocks {
		releaseBlock(b)
	}
	r.blocks = nil
	r.nextBlockIndex = 0
	r.lastDeliveryTime = time.Now()
}

func (r *RXPacker) processBlockQueue() {
	for len(r.blocks) > 0 {
		front := r.blocks[0]
		block := front.Value()

		if len(block.payload) >= r.cfg.K {
			r.deliverBlock(front, r.cfg.K)
			r.Stats.BlocksCompleted.Add(1)
			r.popFront()
			continue
		}

		r.deliverProgressivePrefix(front)

		if len(block.payload)+len(block.parity) >= r.cfg.K {
			if err := r.decodeBlock(front); err != nil {
				r.log.Warnw("fec decode failed, retiring block", "block_index", block.blockIndex, "error", err)
				r.Stats.DecodeErrors.Add(1)
				r.retireFront()
				continue
			}
			r.deliverBlock(front, r.cfg.K)
			r.Stats.BlocksRecovered.Add(1)
			r.popFront()
			continue
		}

		if len(r.blocks) > r.cfg.MaxPendingBlocks {
			r.retireFront()
			continue
		}

		break
	}
}

// deliverBlock emits every not-yet-delivered payload datagram among
// the first n entries of block.payload, in ascending order.
func (r *RXPacker) deliverBlock(h *Handle[rxBlock], n int) {
	block := h.Value()
	for i := 0; i < n && i < len(block.payload); i++ {
		d := block.payload[i]
		dv := d.Value()
		if dv.isProcessed {
			continue
		}
		dv.isProcessed = true
		r.emit(dv.payload)
		r.Stats.Delivered.Add(1)
		r.lastDeliveryTime = time.Now()
	}
}

// deliverProgressivePrefix emits the longest not-yet-delivered
// consecutive run of payload datagrams starting at index 0, without
// waiting for the rest of the block to complete. See §4.4's
// progressive-prefix-delivery strategy.
func (r *RXPacker) deliverProgressivePrefix(h *Handle[rxBlock]) {
	block := h.Value()
	for i, d := range block.payload {
		dv := d.Value()
		if dv.isProcessed {
			continue
		}
		if int(dv.datagramIndex) != i {
			break
		}
		dv.isProcessed = true
		r.emit(dv.payload)
		r.Stats.Delivered.Add(1)
		r.lastDeliveryTime = time.Now()
	}
}

// decodeBlock reconstructs the missing payload shards of the front
// block via Coder.Decode. It only mutates block.payload after Decode
// reports success; on failure the block is left exactly as it was so
// the caller can retire it without risking a spuriously "complete"
// block on the next cycle.
func (r *RXPacker) decodeBlock(h *Handle[rxBlock]) error {
	block := h.Value()
	k := r.cfg.K

	src := make([][]byte, 0, len(block.payload)+len(block.parity))
	indices := make([]int, 0, cap(src))
	for _, d := range block.payload {
		dv := d.Value()
		src = append(src, dv.payload)
		indices = append(indices, int(dv.datagramIndex))
	}
	for _, d := range block.parity {
		dv := d.Value()
		src = append(src, dv.payload)
		indices = append(indices, int(dv.datagramIndex))
	}

	missing := missingPayloadIndices(block.payload, k)
	placeholders := make([]*Handle[rxDatagram], len(missing))
	dst := make([][]byte, len(missing))
	for i, idx := range missing {
		ph := r.datagramPool.Acquire()
		pv := ph.Value()
		pv.blockIndex = block.blockIndex
		pv.datagramIndex = uint8(idx)
		placeholders[i] = ph
		dst[i] = pv.payload
	}

	if err := r.coder.Decode(src, dst, indices, r.cfg.MTU); err != nil {
		for _, ph := range placeholders {
			ph.Release()
		}
		return err
	}

	merged := make([]*Handle[rxDatagram], 0, k)
	pi, mi := 0, 0
	for pi < len(block.payload) || mi < len(missing) {
		if mi >= len(missing) || (pi < len(block.payload) && int(block.payload[pi].Value().datagramIndex) < missing[mi]) {
			merged = append(merged, block.payload[pi])
			pi++
		} else {
			merged = append(merged, placeholders[mi])
			mi++
		}
	}
	block.payload = merged
	return nil
}

func missingPayloadIndices(payload []*Handle[rxDatagram], k int) []int {
	have := make([]bool, k)
	for _, d := range payload {
		have[d.Value().datagramIndex] = true
	}
	missing := make([]int, 0, k-len(payload))
	for i := 0; i < k; i++ {
		if !have[i] {
			missing = append(missing, i)
		}
	}
	return missing
}

func (r *RXPacker) popFront() {
	front := r.blocks[0]
	r.nextBlockIndex = front.Value().blockIndex + 1
	releaseBlock(front)
	r.blocks = r.blocks[1:]
}

func (r *RXPacker) retireFront() {
	r.log.Debugw("retiring incomplete block", "block_index", r.blocks[0].Value().blockIndex)
	r.Stats.BlocksRetiredIncomplete.Add(1)
	r.popFront()
}
