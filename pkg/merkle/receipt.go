// Copyright 2025 Strata Contributors
//
// Event receipt wire format: a portable, independently re-verifiable proof
// that a subprotocol's event hash was committed into a specific block's
// event root, without trusting whoever produced it or replaying the
// block's state transition.

package merkle

import (
	"bytes"
	"encoding/hex"
	"encoding/json"
	"fmt"
)

// EventReceipt is the portable form of an InclusionProof: a subprotocol id,
// the L1 height its event root was committed at, and the hex-encoded
// Merkle path from the subprotocol's event hash up to that root. It is what
// a watcher fetches over the wire to check "subprotocol X emitted this
// event in block Y" on its own.
//
// Verification invariants (fail-closed):
//  1. EventHash must be exactly 32 bytes
//  2. EventRoot must be exactly 32 bytes
//  3. Each Entries[i].Hash must be exactly 32 bytes
//  4. Recomputing the chain from EventHash through Entries, against the
//     root the caller already trusts, must reproduce that root
type EventReceipt struct {
	SubprotocolID uint8          `json:"subprotocol_id"`
	L1Height      uint64         `json:"l1_height"`
	EventHash     string         `json:"event_hash"`
	EventRoot     string         `json:"event_root"`
	Entries       []ReceiptEntry `json:"entries"`
}

// ReceiptEntry is one step of the Merkle path from EventHash to EventRoot.
type ReceiptEntry struct {
	// Hash is the sibling hash at this level, hex-encoded.
	Hash string `json:"hash"`
	// Right reports whether the sibling sits to the right of the hash
	// computed so far: true computes SHA256(current||sibling), false
	// computes SHA256(sibling||current).
	Right bool `json:"right"`
}

// NewEventReceipt converts a Tree-generated InclusionProof into the
// portable wire format, tagging it with the subprotocol id and L1 height it
// proves inclusion for.
func NewEventReceipt(subprotocolID uint8, l1Height uint64, proof *InclusionProof) (*EventReceipt, error) {
	if proof == nil {
		return nil, fmt.Errorf("event receipt: nil inclusion proof")
	}
	entries := make([]ReceiptEntry, len(proof.Path))
	for i, node := range proof.Path {
		entries[i] = ReceiptEntry{Hash: node.Hash, Right: node.Position == Right}
	}
	return &EventReceipt{
		SubprotocolID: subprotocolID,
		L1Height:      l1Height,
		EventHash:     proof.LeafHash,
		EventRoot:     proof.MerkleRoot,
		Entries:       entries,
	}, nil
}

// Validate recomputes the Merkle chain from EventHash through Entries and
// checks it equals wantRoot, the event root the caller already trusts (an
// AnchorState or checkpoint it has separately verified), not the EventRoot
// field this receipt self-reports. A receipt is only as trustworthy as the
// root it's checked against, never the root it carries.
func (r *EventReceipt) Validate(wantRoot [32]byte) error {
	eventHashHex, err := mustHex32Lower(r.EventHash, "event_receipt.event_hash")
	if err != nil {
		return err
	}
	current, _ := hex.DecodeString(eventHashHex)
	if _, err := mustHex32Lower(r.EventRoot, "event_receipt.event_root"); err != nil {
		return err
	}

	for i, entry := range r.Entries {
		siblingHex, err := mustHex32Lower(entry.Hash, fmt.Sprintf("event_receipt.entries[%d].hash", i))
		if err != nil {
			return err
		}
		sibling, _ := hex.DecodeString(siblingHex)

		if entry.Right {
			current = hashPair(current, sibling)
		} else {
			current = hashPair(sibling, current)
		}
	}

	if !bytes.Equal(current, wantRoot[:]) {
		return fmt.Errorf("event receipt: recomputed root %x does not match expected root %x", current, wantRoot)
	}
	return nil
}

// ToJSON serializes the receipt for transport to an external watcher.
func (r *EventReceipt) ToJSON() ([]byte, error) {
	return json.Marshal(r)
}

// EventReceiptFromJSON parses a receipt previously produced by ToJSON.
func EventReceiptFromJSON(data []byte) (*EventReceipt, error) {
	var r EventReceipt
	if err := json.Unmarshal(data, &r); err != nil {
		return nil, err
	}
	return &r, nil
}

// mustHex32Lower validates that a hex string decodes to exactly 32 bytes.
func mustHex32Lower(s string, label string) (string, error) {
	if s == "" {
		return "", fmt.Errorf("%s: empty", label)
	}
	if len(s) != 64 {
		return "", fmt.Errorf("%s: expected 64 hex chars (32 bytes), got len=%d", label, len(s))
	}
	if _, err := hex.DecodeString(s); err != nil {
		return "", fmt.Errorf("%s: invalid hex: %w", label, err)
	}
	return s, nil
}
