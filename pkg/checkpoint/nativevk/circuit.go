// Copyright 2025 Strata Contributors
//
// Package nativevk implements the "native" checkpoint ProofBackend: a
// Groth16 circuit over BN254, proven and verified with gnark, that attests
// a checkpoint's public commitment was computed from the field values the
// prover committed to. It is grounded in the circuit-construction and
// prover-lifecycle pattern of the upstream BLS ZK prover (Initialize once,
// Prove per-receipt, Verify against a public witness), repurposed here from
// attesting a BLS aggregate signature to attesting a checkpoint's public
// field commitment.
package nativevk

import "github.com/consensys/gnark/frontend"

// checkpointCircuit proves that PublicCommitment is the polynomial
// commitment (base 7, matching the scheme the upstream circuit uses for
// its own public-input binding) of the six field chunks the checkpoint's
// 32-byte public hash (the double SHA-256 of its canonical encoding) is
// split into. It does not reprove the checkpoint's
// business logic (epoch progression, L1/L2 continuity), those are the
// Go-level checks in verify.go; this circuit only binds the receipt's
// public output to a specific private witness the STF proof backend
// produced off-chain.
type checkpointCircuit struct {
	PublicCommitment frontend.Variable `gnark:",public"`

	Field0 frontend.Variable
	Field1 frontend.Variable
	Field2 frontend.Variable
	Field3 frontend.Variable
	Field4 frontend.Variable
	Field5 frontend.Variable
}

func (c *checkpointCircuit) Define(api frontend.API) error {
	r := frontend.Variable(7)
	r2 := api.Mul(r, r)
	r3 := api.Mul(r2, r)
	r4 := api.Mul(r3, r)
	r5 := api.Mul(r4, r)

	computed := c.Field0
	computed = api.Add(computed, api.Mul(c.Field1, r))
	computed = api.Add(computed, api.Mul(c.Field2, r2))
	computed = api.Add(computed, api.Mul(c.Field3, r3))
	computed = api.Add(computed, api.Mul(c.Field4, r4))
	computed = api.Add(computed, api.Mul(c.Field5, r5))

	api.AssertIsEqual(c.PublicCommitment, computed)
	return nil
}
