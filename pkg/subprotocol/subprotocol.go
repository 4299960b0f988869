// Copyright 2025 Strata Contributors
//
// Package subprotocol defines the Subprotocol contract and a
// compile-time Registry over the finite, statically-known set of
// subprotocols wired into this repository. Each subprotocol is a concrete
// Go type satisfying the same interface, and the registry is a plain
// sorted slice built once at process start, a tagged variant over a
// finite, compile-time-known set rather than runtime trait-object
// dispatch.
package subprotocol

import (
	"fmt"
	"sort"

	"github.com/strata-rollup/strata-asm/pkg/l1chain"
	"github.com/strata-rollup/strata-asm/pkg/slotrng"
)

// RelayedMsg is a message one subprotocol sends another during
// process_txs, buffered by the Relayer and delivered to the destination's
// finalize_state in a single pass after every subprotocol has run
// process_txs.
type RelayedMsg struct {
	DstID uint8
	Msg   []byte
}

// LogEntry is an application-level event a subprotocol emits during
// process_txs. The Relayer buffers it; logs do not feed the block's
// per-subprotocol event commitment, which each FinalizeState computes
// from its own state.
type LogEntry struct {
	Kind string
	Data []byte
}

// Relayer buffers inter-subprotocol messages and logs emitted during a
// single ASM STF invocation. It is an in-STF object, never
// persisted.
type Relayer interface {
	Relay(dstID uint8, msg []byte)
	EmitLog(log LogEntry)
}

// Subprotocol is the contract every registered protocol handler satisfies.
// State is carried as opaque bytes between stages; each subprotocol knows
// how to (de)serialize its own State.
type Subprotocol interface {
	// ID is this subprotocol's constant id, unique across the registry.
	ID() uint8

	// Init returns the deterministic initial serialized State for a fresh
	// chain, given RollupParams-derived construction the subprotocol was
	// built with.
	Init() []byte

	// ProcessTxs consumes the ordered txs routed to this subprotocol for
	// the current block, identified by blk. It may mutate state and call
	// relayer.Relay/EmitLog, but must never call Relay from FinalizeState;
	// that cycle restriction is enforced by the registry, not this method.
	ProcessTxs(state []byte, blk slotrng.L1BlockCommitment, txs []l1chain.TxEntry, relayer Relayer) ([]byte, error)

	// FinalizeState is handed this subprotocol's inbound messages in
	// arrival order after every subprotocol has run ProcessTxs. It returns
	// the reserialized state and the block's event hash, which the
	// implementations in this repository compute from their state; the
	// logs emitted this block are not part of it.
	FinalizeState(state []byte, inbound []RelayedMsg) (newState []byte, eventHash [32]byte, err error)
}

// Registry is the immutable, sorted set of known subprotocols. It is built
// once at process start from rollup parameters and never mutated
// afterward; ASM STF invocations only read it.
type Registry struct {
	byID map[uint8]Subprotocol
	ids  []uint8 // ascending, the iteration order requires
}

// NewRegistry builds a Registry from a fixed list of subprotocols. It
// returns an error if two subprotocols share an id, a construction-time
// invariant violation, not a runtime data error.
func NewRegistry(subs ...Subprotocol) (*Registry, error) {
	r := &Registry{byID: make(map[uint8]Subprotocol, len(subs))}
	for _, s := range subs {
		if _, dup := r.byID[s.ID()]; dup {
			return nil, fmt.Errorf("subprotocol: duplicate id %d in registry", s.ID())
		}
		r.byID[s.ID()] = s
		r.ids = append(r.ids, s.ID())
	}
	sort.Slice(r.ids, func(i, j int) bool { return r.ids[i] < r.ids[j] })
	return r, nil
}

// IDs returns the registered subprotocol ids in ascending order, the
// order ProcessTxs and FinalizeState must run in.
func (r *Registry) IDs() []uint8 {
	out := make([]uint8, len(r.ids))
	copy(out, r.ids)
	return out
}

// Get returns the subprotocol for id, or nil and false if id is unknown to
// this registry (the section passes through opaquely, step 3).
func (r *Registry) Get(id uint8) (Subprotocol, bool) {
	s, ok := r.byID[id]
	return s, ok
}

// BlockResult is what running one block through the registry produces: the
// advanced section state and the committed event hash, keyed by
// subprotocol id.
type BlockResult struct {
	States     map[uint8][]byte
	EventHashes map[uint8][32]byte
}

// ProcessBlock drives every registered subprotocol through one full
// process_txs/finalize_state cycle, in ascending id order, for a single L1
// block. txsByID holds the ordered tx entries routed to each subprotocol;
// subprotocols with no entries this block still run (with an empty tx
// slice) so they can react to relayed messages and advance their event
// hash. Any single subprotocol returning an error aborts the whole block:
// the caller must discard prevStates and retain whatever AnchorState it had
// before calling this, never a partially-applied result.
func (r *Registry) ProcessBlock(blk slotrng.L1BlockCommitment, prevStates map[uint8][]byte, txsByID map[uint8][]l1chain.TxEntry) (*BlockResult, error) {
	relayer := newBufferedRelayer()

	processed := make(map[uint8][]byte, len(r.ids))
	for _, id := range r.ids {
		sp := r.byID[id]
		state, ok := prevStates[id]
		if !ok {
			state = sp.Init()
		}
		next, err := sp.ProcessTxs(state, blk, txsByID[id], relayer.forSubprotocol(id))
		if err != nil {
			return nil, fmt.Errorf("subprotocol: process_txs failed for id %d: %w", id, err)
		}
		processed[id] = next
	}

	relayer.lock()

	result := &BlockResult{
		States:      make(map[uint8][]byte, len(r.ids)),
		EventHashes: make(map[uint8][32]byte, len(r.ids)),
	}
	for _, id := range r.ids {
		sp := r.byID[id]
		finalState, hash, err := sp.FinalizeState(processed[id], relayer.inboundFor(id))
		if err != nil {
			return nil, fmt.Errorf("subprotocol: finalize_state failed for id %d: %w", id, err)
		}
		result.States[id] = finalState
		result.EventHashes[id] = hash
	}

	return result, nil
}
