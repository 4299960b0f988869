package asm

import "github.com/strata-rollup/strata-asm/pkg/slotrng"

// SectionState is one subprotocol's opaque, serialized state as carried in
// an AnchorState snapshot.
type SectionState struct {
	SubprotocolID uint8
	Data          []byte
}

// ChainViewState is the ASM's view of the L1 chain it is anchored to: the
// current tip and the PoW continuity state needed to validate the next
// block.
type ChainViewState struct {
	Tip         slotrng.L1BlockCommitment
	HeaderState HeaderVerificationState
	// EventRoot is the Merkle root over every subprotocol's event hash from
	// the most recently applied block, ascending by subprotocol id. It lets
	// an external watcher prove a single subprotocol's event occurred in a
	// given block without replaying the whole state transition.
	EventRoot [32]byte
}

// AnchorState is the full state the Anchor State Machine carries between L1
// blocks: the chain view plus every subprotocol's section state, sorted
// ascending by subprotocol id with no duplicates.
type AnchorState struct {
	Chain    ChainViewState
	Sections []SectionState
}

// SectionFor returns the serialized state for id and whether it is present.
func (a AnchorState) SectionFor(id uint8) ([]byte, bool) {
	for _, s := range a.Sections {
		if s.SubprotocolID == id {
			return s.Data, true
		}
	}
	return nil, false
}

// withSections returns a copy of a with Sections replaced, sorted ascending
// by subprotocol id. AnchorState values are never mutated in place; every
// ASM transition produces a new value.
func (a AnchorState) withSections(byID map[uint8][]byte, order []uint8) AnchorState {
	sections := make([]SectionState, 0, len(order))
	for _, id := range order {
		sections = append(sections, SectionState{SubprotocolID: id, Data: byID[id]})
	}
	return AnchorState{Chain: a.Chain, Sections: sections}
}
