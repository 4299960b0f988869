// Copyright 2025 Strata Contributors

package merkle

import (
	"crypto/sha256"
	"testing"
)

func TestEventReceiptRoundTripsThroughInclusionProof(t *testing.T) {
	leaves := make([][]byte, 4)
	for i := 0; i < 4; i++ {
		h := sha256.Sum256([]byte{byte(i)})
		leaves[i] = h[:]
	}
	tree, err := BuildTree(leaves)
	if err != nil {
		t.Fatalf("build tree: %v", err)
	}

	proof, err := tree.GenerateProof(2)
	if err != nil {
		t.Fatalf("generate proof: %v", err)
	}

	receipt, err := NewEventReceipt(7, 900000, proof)
	if err != nil {
		t.Fatalf("new event receipt: %v", err)
	}
	if receipt.SubprotocolID != 7 || receipt.L1Height != 900000 {
		t.Fatalf("receipt metadata mismatch: %+v", receipt)
	}

	var root [32]byte
	copy(root[:], tree.Root())
	if err := receipt.Validate(root); err != nil {
		t.Fatalf("receipt should validate against the tree's own root: %v", err)
	}

	var wrongRoot [32]byte
	wrongRoot[0] = 0x01
	if err := receipt.Validate(wrongRoot); err == nil {
		t.Fatal("receipt must not validate against an unrelated root")
	}
}

func TestEventReceiptJSONRoundTrip(t *testing.T) {
	leaves := make([][]byte, 2)
	for i := 0; i < 2; i++ {
		h := sha256.Sum256([]byte{byte(i)})
		leaves[i] = h[:]
	}
	tree, err := BuildTree(leaves)
	if err != nil {
		t.Fatalf("build tree: %v", err)
	}
	proof, err := tree.GenerateProof(0)
	if err != nil {
		t.Fatalf("generate proof: %v", err)
	}
	receipt, err := NewEventReceipt(3, 12345, proof)
	if err != nil {
		t.Fatalf("new event receipt: %v", err)
	}

	data, err := receipt.ToJSON()
	if err != nil {
		t.Fatalf("marshal receipt: %v", err)
	}
	restored, err := EventReceiptFromJSON(data)
	if err != nil {
		t.Fatalf("unmarshal receipt: %v", err)
	}

	var root [32]byte
	copy(root[:], tree.Root())
	if err := restored.Validate(root); err != nil {
		t.Fatalf("restored receipt should validate: %v", err)
	}
}

func TestEventReceiptRejectsTruncatedHash(t *testing.T) {
	receipt := &EventReceipt{
		SubprotocolID: 1,
		L1Height:      1,
		EventHash:     "abcd",
		EventRoot:     "abcd",
	}
	if err := receipt.Validate([32]byte{}); err == nil {
		t.Fatal("expected an error for a truncated event hash")
	}
}
