// Copyright 2025 Strata Contributors
//
// Package chainworker is the rollup's fork-choice / execution coupling
// actor: one current tip, one previous finalized epoch, and an
// ExecEngineController handle, all serialized through a single request
// channel rather than a mutex, since the "active state" being protected
// is just the one current tip.
package chainworker

import (
	"context"
	"errors"
	"fmt"

	"github.com/strata-rollup/strata-asm/pkg/checkpoint"
	"github.com/strata-rollup/strata-asm/pkg/slotrng"
)

// Failure modes a TryExecBlock call can report. None of these advance the
// tip.
var (
	ErrMissingBlock       = errors.New("chainworker: block bundle not found")
	ErrMissingBlockOutput = errors.New("chainworker: parent block output not found")
)

// StfRejected wraps the chain state-transition function's rejection
// reason; it is distinct from the infrastructure failures above because
// it means the block itself is invalid, not that data was unavailable.
type StfRejected struct{ Reason string }

func (e *StfRejected) Error() string { return fmt.Sprintf("chainworker: stf rejected block: %s", e.Reason) }

// BlockBundle is everything TryExecBlock needs to run the chain
// state-transition function for one L2 block: opaque to this package,
// since its shape is the execution-environment's concern, not the
// fork-choice coupling's.
type BlockBundle struct {
	Commitment slotrng.L2BlockCommitment
	Payload    []byte
}

// BlockOutput is the chain STF's result for one L2 block: an opaque
// post-state commitment plus whatever the execution layer needs to seed
// the next block's accessor.
type BlockOutput struct {
	Commitment     slotrng.L2BlockCommitment
	PostStateBytes []byte
}

// BlockSource fetches a block bundle by commitment. MissingBlock is
// reported by returning (BlockBundle{}, false).
type BlockSource interface {
	FetchBundle(ctx context.Context, bc slotrng.L2BlockCommitment) (BlockBundle, bool, error)
}

// OutputStore persists and retrieves BlockOutputs keyed by block id, the
// chain database's "block outputs by blkid" table named in the design
// notes' persisted-state section.
type OutputStore interface {
	Get(blkid [32]byte) (BlockOutput, bool, error)
	Put(output BlockOutput) error
}

// Stf is the chain state-transition function: given the parent's stored
// output and the next block's bundle, produce the new output or reject
// the block. It is injected rather than implemented in this package,
// since the execution-environment STF itself is out of scope here - this
// package only owns the fork-choice coupling around it.
type Stf func(parent BlockOutput, bundle BlockBundle) (BlockOutput, error)

// ExecEngineController is the rollup's execution-engine handle, standing
// in for the reth Engine API. A concrete go-ethereum-backed implementation
// lives in chainworker/elclient.
type ExecEngineController interface {
	UpdateSafeBlock(ctx context.Context, blkid [32]byte) error
	UpdateFinalizedBlock(ctx context.Context, blkid [32]byte) error
}

// request is one serialized operation the actor loop processes.
type request struct {
	bundleCommitment slotrng.L2BlockCommitment
	checkpointResult *checkpoint.Checkpoint // set for a finalization request, nil for TryExecBlock
	reply            chan error
}

// Worker is the single in-channel actor coupling chain execution to the
// Anchor State Machine's checkpoint finalization. All state mutation
// happens inside run(), so current_tip and prev_epoch never need a mutex.
type Worker struct {
	blocks  BlockSource
	outputs OutputStore
	stf     Stf
	engine  ExecEngineController

	requests chan request
	done     chan struct{}

	currentTip     slotrng.L2BlockCommitment
	finalizedEpoch slotrng.EpochCommitment
}

// New constructs a Worker seeded at genesisTip with no finalized epoch yet.
func New(blocks BlockSource, outputs OutputStore, stf Stf, engine ExecEngineController, genesisTip slotrng.L2BlockCommitment) *Worker {
	return &Worker{
		blocks:     blocks,
		outputs:    outputs,
		stf:        stf,
		engine:     engine,
		requests:   make(chan request, 64),
		done:       make(chan struct{}),
		currentTip: genesisTip,
	}
}

// Run processes requests until ctx is canceled.
func (w *Worker) Run(ctx context.Context) {
	defer close(w.done)
	for {
		select {
		case <-ctx.Done():
			return
		case req := <-w.requests:
			var err error
			if req.checkpointResult != nil {
				err = w.finalize(ctx, req.checkpointResult, req.bundleCommitment)
			} else {
				err = w.execBlock(ctx, req.bundleCommitment)
			}
			req.reply <- err
		}
	}
}

// TryExecBlock fetches l2bc's bundle, runs the chain STF against the
// current tip's stored output, and on success advances the tip and calls
// engine.UpdateSafeBlock. It never advances the tip on any failure.
func (w *Worker) TryExecBlock(ctx context.Context, l2bc slotrng.L2BlockCommitment) error {
	reply := make(chan error, 1)
	select {
	case w.requests <- request{bundleCommitment: l2bc, reply: reply}:
	case <-ctx.Done():
		return ctx.Err()
	}
	select {
	case err := <-reply:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (w *Worker) execBlock(ctx context.Context, l2bc slotrng.L2BlockCommitment) error {
	bundle, ok, err := w.blocks.FetchBundle(ctx, l2bc)
	if err != nil {
		return fmt.Errorf("chainworker: fetch bundle: %w", err)
	}
	if !ok {
		return ErrMissingBlock
	}

	parentOutput, ok, err := w.outputs.Get(w.currentTip.BlkID)
	if err != nil {
		return fmt.Errorf("chainworker: fetch parent output: %w", err)
	}
	if !ok {
		return ErrMissingBlockOutput
	}

	output, err := w.stf(parentOutput, bundle)
	if err != nil {
		return &StfRejected{Reason: err.Error()}
	}

	if err := w.outputs.Put(output); err != nil {
		return fmt.Errorf("chainworker: persist output: %w", err)
	}
	w.currentTip = l2bc
	return w.engine.UpdateSafeBlock(ctx, l2bc.BlkID)
}

// NotifyCheckpointFinalized is called by the Anchor State Machine's driver
// whenever the Core subprotocol admits a new verified checkpoint (see
// pkg/subprotocol/core.State.VerifiedCheckpoint). If no epoch has been
// finalized yet, or the checkpoint's epoch is later than the recorded one,
// the worker calls engine.UpdateFinalizedBlock with terminalBlock's id and
// records the new finalized epoch. It does not check that terminalBlock is
// part of the worker's own chain.
func (w *Worker) NotifyCheckpointFinalized(ctx context.Context, verified *checkpoint.Checkpoint, terminalBlock slotrng.L2BlockCommitment) error {
	reply := make(chan error, 1)
	req := request{checkpointResult: verified, bundleCommitment: terminalBlock, reply: reply}
	select {
	case w.requests <- req:
	case <-ctx.Done():
		return ctx.Err()
	}
	select {
	case err := <-reply:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (w *Worker) finalize(ctx context.Context, verified *checkpoint.Checkpoint, terminal slotrng.L2BlockCommitment) error {
	epoch := slotrng.EpochCommitment{
		Epoch:     verified.Epoch,
		LastSlot:  verified.L2Range.EndSlot,
		LastBlkID: terminal.BlkID,
	}
	if !w.finalizedEpoch.IsNull() && epoch.Epoch <= w.finalizedEpoch.Epoch {
		return nil // already finalized this or a later epoch; nothing to do
	}
	if err := w.engine.UpdateFinalizedBlock(ctx, epoch.LastBlkID); err != nil {
		return fmt.Errorf("chainworker: update finalized block: %w", err)
	}
	w.finalizedEpoch = epoch
	return nil
}

// CurrentTip returns the worker's current tip. It reads the field
// directly, not through the request channel, so it is not synchronized
// with Run; this package's tests call it only after the reply to their
// last request has been received.
func (w *Worker) CurrentTip() slotrng.L2BlockCommitment { return w.currentTip }

// FinalizedEpoch returns the worker's last recorded finalized epoch.
func (w *Worker) FinalizedEpoch() slotrng.EpochCommitment { return w.finalizedEpoch }
