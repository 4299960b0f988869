// Copyright 2025 Strata Contributors

package proofgraph

// Expand walks root's dependency graph depth-first and returns every
// ProofContext reachable from it, root included, deduplicated, with each
// node preceded by all of its own dependencies (a valid bottom-up build
// order). checkpointDeps supplies the range-dependent dependency set for
// any Checkpoint node encountered, since ProofContext alone doesn't carry
// the L1/L2 ranges a checkpoint covers.
func Expand(root ProofContext, checkpointDeps map[uint64]CheckpointRange) []ProofContext {
	seen := make(map[ProofContext]bool)
	var order []ProofContext

	var visit func(c ProofContext)
	visit = func(c ProofContext) {
		if seen[c] {
			return
		}
		seen[c] = true

		var deps []ProofContext
		if c.Kind == KindCheckpoint {
			deps = CheckpointDeps(checkpointDeps[c.Epoch])
		} else {
			deps = c.Deps()
		}
		for _, d := range deps {
			visit(d)
		}
		order = append(order, c)
	}
	visit(root)
	return order
}
