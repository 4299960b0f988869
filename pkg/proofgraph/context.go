// Copyright 2025 Strata Contributors
//
// Package proofgraph describes the proof dependency DAG this repository's
// scheduler (pkg/prooftask) drives to completion: the six node kinds a
// checkpoint proof composes from, how one node's inputs reference another's
// receipt, and the dependency-expansion rule that turns a top-level
// Checkpoint(epoch) request into its full leaf set.
//
// This package is a pure data-shape layer: it has no I/O and no proving
// logic of its own. The proving engines it names (prooftask.Prover.Prove) are external,
// the same split between a content-addressed description of what a
// circuit proves and the circuit implementation itself that the rest of
// this repository's checkpoint-verification code follows.
package proofgraph

import "fmt"

// Kind tags the six node kinds in the proof DAG.
type Kind uint8

const (
	KindBtcBlockspace Kind = iota
	KindEvmEeStf
	KindClStf
	KindL1Batch
	KindClAgg
	KindCheckpoint
)

func (k Kind) String() string {
	switch k {
	case KindBtcBlockspace:
		return "BtcBlockspace"
	case KindEvmEeStf:
		return "EvmEeStf"
	case KindClStf:
		return "ClStf"
	case KindL1Batch:
		return "L1Batch"
	case KindClAgg:
		return "ClAgg"
	case KindCheckpoint:
		return "Checkpoint"
	default:
		return fmt.Sprintf("Kind(%d)", uint8(k))
	}
}

// ProofContext names one node of the proof DAG. Only the fields relevant to
// its Kind are meaningful; the zero value of the others is ignored.
//
// BtcBlockspace(bstart,bend), EvmEeStf(estart,eend), L1Batch(bstart,bend)
// range over Start/End. ClStf(lstart,lend) and ClAgg(lstart,lend) range
// over the same fields read as L2 slots. Checkpoint(epoch) uses Epoch only.
type ProofContext struct {
	Kind  Kind
	Start uint64
	End   uint64
	Epoch uint64
}

func BtcBlockspace(start, end uint64) ProofContext {
	return ProofContext{Kind: KindBtcBlockspace, Start: start, End: end}
}

func EvmEeStf(start, end uint64) ProofContext {
	return ProofContext{Kind: KindEvmEeStf, Start: start, End: end}
}

func ClStf(start, end uint64) ProofContext {
	return ProofContext{Kind: KindClStf, Start: start, End: end}
}

func L1Batch(start, end uint64) ProofContext {
	return ProofContext{Kind: KindL1Batch, Start: start, End: end}
}

func ClAgg(start, end uint64) ProofContext {
	return ProofContext{Kind: KindClAgg, Start: start, End: end}
}

func Checkpoint(epoch uint64) ProofContext {
	return ProofContext{Kind: KindCheckpoint, Epoch: epoch}
}

// String renders a ProofContext the way it appears in logs and as a map
// key suffix, e.g. "L1Batch(100,103)" or "Checkpoint(5)".
func (c ProofContext) String() string {
	if c.Kind == KindCheckpoint {
		return fmt.Sprintf("%s(%d)", c.Kind, c.Epoch)
	}
	return fmt.Sprintf("%s(%d,%d)", c.Kind, c.Start, c.End)
}

// Host names a proving backend a task is scheduled against (e.g. an SP1
// prover cluster, a local Risc0 prover, or the native Groth16 backend).
// It is an opaque string identifier rather than a closed enum, since the
// set of hosts is an operational deployment concern, not a protocol one.
type Host string

// ProofKey is the scheduler's primary key: a DAG node plus the backend it
// is assigned to run on. Two submissions of the same (context, host) pair
// must resolve to the same task.
type ProofKey struct {
	Context ProofContext
	Host    Host
}

func (k ProofKey) String() string {
	return fmt.Sprintf("%s@%s", k.Context, k.Host)
}

// Deps returns the ProofContexts c depends on, per the fixed composition
// graph:
//
//	BtcBlockspace(bstart,bend)  ─┐
//	                             ├─► L1Batch(bstart,bend) ─┐
//	                             │                         │
//	EvmEeStf(estart,eend) ─► ClStf(lstart,lend) ─► ClAgg(lstart,lend) ─┴─► Checkpoint(epoch)
//
// BtcBlockspace and EvmEeStf are leaves (no dependencies). Deps panics on
// an unrecognized Kind, since that indicates a caller bug rather than
// protocol data: the set of node kinds is fixed at compile time.
func (c ProofContext) Deps() []ProofContext {
	switch c.Kind {
	case KindBtcBlockspace, KindEvmEeStf:
		return nil
	case KindL1Batch:
		return []ProofContext{BtcBlockspace(c.Start, c.End)}
	case KindClStf:
		return []ProofContext{EvmEeStf(c.Start, c.End)}
	case KindClAgg:
		return []ProofContext{ClStf(c.Start, c.End)}
	case KindCheckpoint:
		panic("proofgraph: Checkpoint dependencies require an explicit l1/l2 range, use CheckpointDeps")
	default:
		panic(fmt.Sprintf("proofgraph: unrecognized kind %v", c.Kind))
	}
}

// CheckpointRange is the L1/L2 block ranges a given epoch's checkpoint
// proof covers. Checkpoint's dependency set cannot be derived from its
// ProofContext alone (the epoch number doesn't encode block ranges), so
// callers must supply it explicitly via CheckpointDeps.
type CheckpointRange struct {
	L1Start, L1End uint64
	L2Start, L2End uint64
}

// CheckpointDeps returns the immediate dependencies of a Checkpoint(epoch)
// node given the L1/L2 ranges it covers: one L1Batch and one ClAgg.
func CheckpointDeps(r CheckpointRange) []ProofContext {
	return []ProofContext{
		L1Batch(r.L1Start, r.L1End),
		ClAgg(r.L2Start, r.L2End),
	}
}
