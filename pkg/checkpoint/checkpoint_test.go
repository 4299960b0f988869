package checkpoint

import "testing"

func sampleCheckpoint(epoch, l1start, l1end, l2start, l2end uint64, startRoot, endRoot [32]byte, accPow byte) Checkpoint {
	return Checkpoint{
		Epoch:        epoch,
		L1Range:      L1Range{StartHeight: l1start, EndHeight: l1end},
		L2Range:      L2Range{StartSlot: l2start, EndSlot: l2end},
		L2Transition: L2Transition{StartStateRoot: startRoot, EndStateRoot: endRoot},
		AccPow:       [16]byte{15: accPow},
	}
}

func TestCheckContinuityAcceptsGenesis(t *testing.T) {
	c := sampleCheckpoint(0, 100, 200, 0, 99, [32]byte{}, [32]byte{1}, 1)
	if err := checkContinuity(nil, &c, 100); err != nil {
		t.Fatalf("genesis checkpoint rejected: %v", err)
	}
}

func TestCheckContinuityRejectsNonZeroGenesisEpoch(t *testing.T) {
	c := sampleCheckpoint(1, 100, 200, 0, 99, [32]byte{}, [32]byte{1}, 1)
	if err := checkContinuity(nil, &c, 100); err == nil {
		t.Fatal("expected rejection of non-zero genesis epoch")
	}
}

func TestCheckContinuityRejectsGenesisWithWrongL1Start(t *testing.T) {
	c := sampleCheckpoint(0, 100, 200, 0, 99, [32]byte{}, [32]byte{1}, 1)
	if err := checkContinuity(nil, &c, 150); err == nil {
		t.Fatal("expected rejection of first checkpoint claiming the wrong l1 start height")
	}
}

func TestCheckContinuityAcceptsChain(t *testing.T) {
	root0 := [32]byte{1}
	root1 := [32]byte{2}
	prev := sampleCheckpoint(0, 100, 200, 0, 99, [32]byte{}, root0, 1)
	next := sampleCheckpoint(1, 201, 300, 100, 199, root0, root1, 2)
	if err := checkContinuity(&prev, &next, 100); err != nil {
		t.Fatalf("valid chain rejected: %v", err)
	}
}

func TestCheckContinuityRejectsEpochSkip(t *testing.T) {
	root0 := [32]byte{1}
	prev := sampleCheckpoint(0, 100, 200, 0, 99, [32]byte{}, root0, 1)
	next := sampleCheckpoint(2, 201, 300, 100, 199, root0, [32]byte{2}, 2)
	if err := checkContinuity(&prev, &next, 100); err == nil {
		t.Fatal("expected rejection of epoch skip")
	}
}

func TestCheckContinuityRejectsL1Gap(t *testing.T) {
	root0 := [32]byte{1}
	prev := sampleCheckpoint(0, 100, 200, 0, 99, [32]byte{}, root0, 1)
	next := sampleCheckpoint(1, 205, 300, 100, 199, root0, [32]byte{2}, 2)
	if err := checkContinuity(&prev, &next, 100); err == nil {
		t.Fatal("expected rejection of l1 range gap")
	}
}

func TestCheckContinuityRejectsStateRootMismatch(t *testing.T) {
	root0 := [32]byte{1}
	prev := sampleCheckpoint(0, 100, 200, 0, 99, [32]byte{}, root0, 1)
	next := sampleCheckpoint(1, 201, 300, 100, 199, [32]byte{9}, [32]byte{2}, 2)
	if err := checkContinuity(&prev, &next, 100); err == nil {
		t.Fatal("expected rejection of state root discontinuity")
	}
}

func TestCheckContinuityRejectsStalledWork(t *testing.T) {
	root0 := [32]byte{1}
	prev := sampleCheckpoint(0, 100, 200, 0, 99, [32]byte{}, root0, 5)
	next := sampleCheckpoint(1, 201, 300, 100, 199, root0, [32]byte{2}, 5)
	if err := checkContinuity(&prev, &next, 100); err == nil {
		t.Fatal("expected rejection of non-increasing accumulated work")
	}
}

func TestCanonicalEncodeRoundTripsThroughDecode(t *testing.T) {
	c := sampleCheckpoint(5, 100, 200, 10, 20, [32]byte{3}, [32]byte{4}, 9)
	sc := SignedCheckpoint{
		Checkpoint: c,
		Receipt:    ProofReceipt{Empty: true},
	}
	sc.SignerKey = [32]byte{7}
	sc.Signature = [64]byte{9}

	encoded := EncodeSignedCheckpoint(&sc)
	decoded, err := DecodeSignedCheckpoint(encoded)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if decoded.Checkpoint != c {
		t.Fatalf("checkpoint mismatch after round trip: got %+v want %+v", decoded.Checkpoint, c)
	}
	if !decoded.Receipt.Empty {
		t.Fatal("expected empty receipt to round trip as empty")
	}
}

func TestCanonicalEncodeRoundTripsWithReceipt(t *testing.T) {
	c := sampleCheckpoint(1, 1, 2, 0, 0, [32]byte{}, [32]byte{1}, 3)
	sc := SignedCheckpoint{
		Checkpoint: c,
		Receipt:    ProofReceipt{PublicValues: []byte{1, 2, 3}, ProofBytes: []byte{4, 5, 6, 7}},
	}

	encoded := EncodeSignedCheckpoint(&sc)
	decoded, err := DecodeSignedCheckpoint(encoded)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if decoded.Receipt.Empty {
		t.Fatal("expected non-empty receipt")
	}
	if string(decoded.Receipt.PublicValues) != string(sc.Receipt.PublicValues) {
		t.Fatalf("public values mismatch: got %v want %v", decoded.Receipt.PublicValues, sc.Receipt.PublicValues)
	}
	if string(decoded.Receipt.ProofBytes) != string(sc.Receipt.ProofBytes) {
		t.Fatalf("proof bytes mismatch: got %v want %v", decoded.Receipt.ProofBytes, sc.Receipt.ProofBytes)
	}
}
