// Copyright 2025 Strata Contributors
//
// Package l1reader is the reorg-aware Bitcoin block ingestion loop feeding
// the Anchor State Machine: a single cooperative poll loop
// (Start/Stop/pollLoop over a buffered event channel, a
// context.Context lifecycle, and a *log.Logger) driving Bitcoin
// block-by-height polling.
package l1reader

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/btcsuite/btcd/wire"
)

// L1Client is the external RPC surface this reader needs from a Bitcoin
// node. pkg/btcrpc implements it against bitcoind; this package carries
// only the interface and an in-memory fake.
type L1Client interface {
	// BlockAtHeight returns the block at height, or (nil, nil) if the node
	// has no block there yet (height is beyond its current tip). A non-nil
	// error is a failed fetch, which the reader retries.
	BlockAtHeight(ctx context.Context, height uint64) (*wire.MsgBlock, error)
}

// Event is the union of what the reader emits downstream: either a new
// block to apply, a rollback to a common ancestor, or a fatal deep reorg.
type Event struct {
	Kind      EventKind
	Height    uint64
	Block     *wire.MsgBlock // set iff Kind == EventBlockData
}

type EventKind uint8

const (
	EventBlockData EventKind = iota
	EventRevertTo
	EventDeepReorg
)

// Config bounds the reader's tail cache, polling cadence, and retry policy.
type Config struct {
	MaxReorgDepth uint64
	PollInterval  time.Duration
	EventBuffer   int

	RetryBase    time.Duration
	RetryRatio   float64
	RetryMaxTries int
}

// DefaultConfig matches the retry/backoff parameters named in this
// repository's design notes: base 1.5s, ratio 1.5x, max 5 attempts.
func DefaultConfig(maxReorgDepth uint64) Config {
	return Config{
		MaxReorgDepth: maxReorgDepth,
		PollInterval:  10 * time.Second,
		EventBuffer:   256,
		RetryBase:     1500 * time.Millisecond,
		RetryRatio:    1.5,
		RetryMaxTries: 5,
	}
}

// Reader is the single cooperative poll loop: current_height plus a ring
// buffer of the last MaxReorgDepth block ids (tail), matching the state
// shape in the design notes.
type Reader struct {
	cfg    Config
	client L1Client
	logger *log.Logger

	mu            sync.Mutex
	currentHeight uint64
	tail          []blockIDAtHeight // ascending by height, len <= cfg.MaxReorgDepth

	events chan Event
	errs   chan error

	ctx     context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	running bool
}

type blockIDAtHeight struct {
	height uint64
	id     [32]byte
}

// New constructs a Reader starting from (startHeight, startBlockID): the
// genesis or last-persisted anchor state's tip.
func New(cfg Config, client L1Client, startHeight uint64, startBlockID [32]byte, logger *log.Logger) *Reader {
	if logger == nil {
		logger = log.New(log.Writer(), "[l1reader] ", log.LstdFlags)
	}
	return &Reader{
		cfg:           cfg,
		client:        client,
		logger:        logger,
		currentHeight: startHeight,
		tail:          []blockIDAtHeight{{height: startHeight, id: startBlockID}},
		events:        make(chan Event, cfg.EventBuffer),
		errs:          make(chan error, 16),
	}
}

// Events returns the channel downstream handlers receive Events from.
func (r *Reader) Events() <-chan Event { return r.events }

// Errors returns the channel transient RPC errors are reported on, after
// retries are exhausted for a single poll.
func (r *Reader) Errors() <-chan error { return r.errs }

// Start begins polling. It returns an error if already running.
func (r *Reader) Start(ctx context.Context) error {
	r.mu.Lock()
	if r.running {
		r.mu.Unlock()
		return fmt.Errorf("l1reader: already running")
	}
	r.running = true
	r.mu.Unlock()

	r.ctx, r.cancel = context.WithCancel(ctx)
	r.wg.Add(1)
	go r.pollLoop()
	r.logger.Printf("l1reader started at height %d", r.currentHeight)
	return nil
}

// Stop cancels the poll loop and waits for it to exit.
func (r *Reader) Stop() {
	r.mu.Lock()
	if !r.running {
		r.mu.Unlock()
		return
	}
	r.running = false
	r.mu.Unlock()

	r.cancel()
	r.wg.Wait()
	close(r.events)
	r.logger.Printf("l1reader stopped")
}

func (r *Reader) pollLoop() {
	defer r.wg.Done()
	ticker := time.NewTicker(r.cfg.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-r.ctx.Done():
			return
		case <-ticker.C:
			if err := r.pollOnce(); err != nil {
				select {
				case r.errs <- err:
				default:
				}
			}
		}
	}
}

// pollOnce runs a single poll-and-reconcile step: fetch current_height+1
// and either extend the tail or walk backwards to find a common ancestor,
// per the reorg-handling algorithm in the design notes.
func (r *Reader) pollOnce() error {
	r.mu.Lock()
	next := r.currentHeight + 1
	r.mu.Unlock()

	block, err := r.fetchWithRetry(next)
	if err != nil {
		return err
	}
	if block == nil {
		return nil // remote tip not yet at `next`
	}

	r.mu.Lock()
	tip := r.tail[len(r.tail)-1]
	if block.Header.PrevBlock == tip.id {
		id := [32]byte(block.Header.BlockHash())
		r.tail = append(r.tail, blockIDAtHeight{height: next, id: id})
		if uint64(len(r.tail)) > r.cfg.MaxReorgDepth {
			r.tail = r.tail[uint64(len(r.tail))-r.cfg.MaxReorgDepth:]
		}
		r.currentHeight = next
		r.mu.Unlock()
		r.emit(Event{Kind: EventBlockData, Height: next, Block: block})
		return nil
	}
	r.mu.Unlock()

	return r.reconcileReorg()
}

// reconcileReorg walks backwards through the tail to find the greatest
// height whose id still matches the remote chain, emits RevertTo, and
// truncates state to that height. If no common ancestor exists in the
// tail, it emits a fatal DeepReorg. The mutex is released while fetching
// from the remote client, since fetchWithRetry can block for multiple
// retry intervals and must never hold up Stop().
func (r *Reader) reconcileReorg() error {
	r.mu.Lock()
	snapshot := append([]blockIDAtHeight(nil), r.tail...)
	r.mu.Unlock()

	for i := len(snapshot) - 1; i >= 0; i-- {
		candidate := snapshot[i]
		remoteBlock, err := r.fetchWithRetry(candidate.height)
		if err != nil {
			return err
		}
		if remoteBlock == nil {
			continue
		}
		remoteID := [32]byte(remoteBlock.Header.BlockHash())
		if remoteID == candidate.id {
			r.mu.Lock()
			r.tail = append([]blockIDAtHeight(nil), snapshot[:i+1]...)
			r.currentHeight = candidate.height
			r.mu.Unlock()
			r.emit(Event{Kind: EventRevertTo, Height: candidate.height})
			return nil
		}
	}

	oldest := snapshot[0]
	r.emit(Event{Kind: EventDeepReorg, Height: oldest.height})
	return fmt.Errorf("l1reader: deep reorg below tracked depth at height %d", oldest.height)
}

// fetchWithRetry calls client.BlockAtHeight with bounded exponential
// backoff (base, ratio, max attempts per Config); a nil, nil result means
// the remote chain simply hasn't reached that height yet, which is not an
// error worth retrying.
func (r *Reader) fetchWithRetry(height uint64) (*wire.MsgBlock, error) {
	delay := r.cfg.RetryBase
	var lastErr error
	for attempt := 0; attempt < r.cfg.RetryMaxTries; attempt++ {
		block, err := r.client.BlockAtHeight(r.ctx, height)
		if err == nil {
			return block, nil
		}
		lastErr = err
		select {
		case <-r.ctx.Done():
			return nil, r.ctx.Err()
		case <-time.After(delay):
		}
		delay = time.Duration(float64(delay) * r.cfg.RetryRatio)
	}
	return nil, fmt.Errorf("l1reader: fetch height %d failed after %d attempts: %w", height, r.cfg.RetryMaxTries, lastErr)
}

// emit delivers ev on the bounded events channel, blocking for
// back-pressure rather than dropping - a RevertTo must never be skipped.
func (r *Reader) emit(ev Event) {
	r.events <- ev
}
