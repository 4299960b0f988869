package chainworker

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/strata-rollup/strata-asm/pkg/checkpoint"
	"github.com/strata-rollup/strata-asm/pkg/slotrng"
)

type fakeSource struct {
	bundles map[[32]byte]BlockBundle
}

func newFakeSource() *fakeSource { return &fakeSource{bundles: make(map[[32]byte]BlockBundle)} }

func (f *fakeSource) put(bc slotrng.L2BlockCommitment) {
	f.bundles[bc.BlkID] = BlockBundle{Commitment: bc}
}

func (f *fakeSource) FetchBundle(_ context.Context, bc slotrng.L2BlockCommitment) (BlockBundle, bool, error) {
	b, ok := f.bundles[bc.BlkID]
	return b, ok, nil
}

type fakeStore struct {
	outputs map[[32]byte]BlockOutput
}

func newFakeStore() *fakeStore { return &fakeStore{outputs: make(map[[32]byte]BlockOutput)} }

func (s *fakeStore) Get(blkid [32]byte) (BlockOutput, bool, error) {
	o, ok := s.outputs[blkid]
	return o, ok, nil
}

func (s *fakeStore) Put(o BlockOutput) error {
	s.outputs[o.Commitment.BlkID] = o
	return nil
}

type fakeEngine struct {
	safe      [][32]byte
	finalized [][32]byte
}

func (e *fakeEngine) UpdateSafeBlock(_ context.Context, blkid [32]byte) error {
	e.safe = append(e.safe, blkid)
	return nil
}

func (e *fakeEngine) UpdateFinalizedBlock(_ context.Context, blkid [32]byte) error {
	e.finalized = append(e.finalized, blkid)
	return nil
}

func acceptStf(parent BlockOutput, bundle BlockBundle) (BlockOutput, error) {
	return BlockOutput{Commitment: bundle.Commitment, PostStateBytes: []byte("ok")}, nil
}

func rejectStf(parent BlockOutput, bundle BlockBundle) (BlockOutput, error) {
	return BlockOutput{}, errors.New("bad block")
}

func setup(t *testing.T, stf Stf) (*Worker, *fakeSource, *fakeStore, *fakeEngine, context.CancelFunc) {
	t.Helper()
	genesis := slotrng.L2BlockCommitment{Slot: 0, BlkID: [32]byte{0xff}}
	src := newFakeSource()
	store := newFakeStore()
	store.outputs[genesis.BlkID] = BlockOutput{Commitment: genesis}
	engine := &fakeEngine{}

	w := New(src, store, stf, engine, genesis)
	ctx, cancel := context.WithCancel(context.Background())
	go w.Run(ctx)
	return w, src, store, engine, cancel
}

func TestTryExecBlockAdvancesTipOnSuccess(t *testing.T) {
	w, src, _, engine, cancel := setup(t, acceptStf)
	defer cancel()

	next := slotrng.L2BlockCommitment{Slot: 1, BlkID: [32]byte{0x01}}
	src.put(next)

	if err := w.TryExecBlock(context.Background(), next); err != nil {
		t.Fatalf("TryExecBlock: %v", err)
	}
	if w.CurrentTip() != next {
		t.Fatalf("expected tip to advance to %v, got %v", next, w.CurrentTip())
	}
	if len(engine.safe) != 1 || engine.safe[0] != next.BlkID {
		t.Fatalf("expected UpdateSafeBlock called with %v, got %v", next.BlkID, engine.safe)
	}
}

func TestTryExecBlockMissingBlock(t *testing.T) {
	w, _, _, _, cancel := setup(t, acceptStf)
	defer cancel()

	next := slotrng.L2BlockCommitment{Slot: 1, BlkID: [32]byte{0x02}}
	err := w.TryExecBlock(context.Background(), next)
	if !errors.Is(err, ErrMissingBlock) {
		t.Fatalf("expected ErrMissingBlock, got %v", err)
	}
	if w.CurrentTip().BlkID == next.BlkID {
		t.Fatal("tip must not advance on missing block")
	}
}

func TestTryExecBlockMissingBlockOutput(t *testing.T) {
	w, src, store, _, cancel := setup(t, acceptStf)
	defer cancel()

	next := slotrng.L2BlockCommitment{Slot: 1, BlkID: [32]byte{0x03}}
	src.put(next)
	delete(store.outputs, w.CurrentTip().BlkID)

	err := w.TryExecBlock(context.Background(), next)
	if !errors.Is(err, ErrMissingBlockOutput) {
		t.Fatalf("expected ErrMissingBlockOutput, got %v", err)
	}
}

func TestTryExecBlockStfRejected(t *testing.T) {
	w, src, _, _, cancel := setup(t, rejectStf)
	defer cancel()

	next := slotrng.L2BlockCommitment{Slot: 1, BlkID: [32]byte{0x04}}
	src.put(next)

	err := w.TryExecBlock(context.Background(), next)
	var rejected *StfRejected
	if !errors.As(err, &rejected) {
		t.Fatalf("expected *StfRejected, got %v", err)
	}
	if w.CurrentTip().BlkID == next.BlkID {
		t.Fatal("tip must not advance when the stf rejects the block")
	}
}

func TestNotifyCheckpointFinalizedAdvancesFinalizedEpoch(t *testing.T) {
	w, _, _, engine, cancel := setup(t, acceptStf)
	defer cancel()

	terminal := slotrng.L2BlockCommitment{Slot: 10, BlkID: [32]byte{0x10}}
	verified := &checkpoint.Checkpoint{Epoch: 1, L2Range: checkpoint.L2Range{StartSlot: 1, EndSlot: 10}}

	if err := w.NotifyCheckpointFinalized(context.Background(), verified, terminal); err != nil {
		t.Fatalf("NotifyCheckpointFinalized: %v", err)
	}
	if len(engine.finalized) != 1 || engine.finalized[0] != terminal.BlkID {
		t.Fatalf("expected UpdateFinalizedBlock called with %v, got %v", terminal.BlkID, engine.finalized)
	}
	got := w.FinalizedEpoch()
	if got.Epoch != 1 || got.LastBlkID != terminal.BlkID {
		t.Fatalf("unexpected finalized epoch: %+v", got)
	}
}

func TestNotifyCheckpointFinalizedIsNoOpForAlreadyFinalizedEpoch(t *testing.T) {
	w, _, _, engine, cancel := setup(t, acceptStf)
	defer cancel()

	terminal1 := slotrng.L2BlockCommitment{Slot: 10, BlkID: [32]byte{0x10}}
	verified1 := &checkpoint.Checkpoint{Epoch: 2, L2Range: checkpoint.L2Range{StartSlot: 1, EndSlot: 10}}
	if err := w.NotifyCheckpointFinalized(context.Background(), verified1, terminal1); err != nil {
		t.Fatalf("first notify: %v", err)
	}

	// A stale notification for an earlier or equal epoch must be a no-op.
	terminal0 := slotrng.L2BlockCommitment{Slot: 5, BlkID: [32]byte{0x05}}
	verified0 := &checkpoint.Checkpoint{Epoch: 2, L2Range: checkpoint.L2Range{StartSlot: 1, EndSlot: 5}}
	if err := w.NotifyCheckpointFinalized(context.Background(), verified0, terminal0); err != nil {
		t.Fatalf("stale notify: %v", err)
	}

	if len(engine.finalized) != 1 {
		t.Fatalf("expected exactly one UpdateFinalizedBlock call, got %d", len(engine.finalized))
	}
	if w.FinalizedEpoch().LastBlkID != terminal1.BlkID {
		t.Fatalf("stale notification must not overwrite the finalized epoch")
	}
}

func TestTryExecBlockRespectsContextCancellation(t *testing.T) {
	w, _, _, _, cancel := setup(t, acceptStf)
	cancel() // cancel before calling, so Run has already (or is about to) exit

	ctx, callCancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer callCancel()
	err := w.TryExecBlock(ctx, slotrng.L2BlockCommitment{Slot: 1, BlkID: [32]byte{0x09}})
	if err == nil {
		t.Fatal("expected an error once the worker's context is canceled")
	}
}
