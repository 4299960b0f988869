package nativevk

import (
	"bytes"
	"fmt"
	"sync"

	"github.com/consensys/gnark-crypto/ecc"
	"github.com/consensys/gnark/backend/groth16"
	"github.com/consensys/gnark/constraint"
	"github.com/consensys/gnark/frontend"
	"github.com/consensys/gnark/frontend/cs/r1cs"

	"github.com/strata-rollup/strata-asm/pkg/checkpoint"
	"github.com/strata-rollup/strata-asm/pkg/rollupcfg"
)

// Backend is the Native checkpoint.ProofBackend: a one-time-setup Groth16
// prover/verifier pair over the checkpointCircuit.
type Backend struct {
	mu sync.RWMutex

	cs constraint.ConstraintSystem
	pk groth16.ProvingKey
	vk groth16.VerifyingKey

	initialized bool
}

// New returns an uninitialized Backend; call Initialize before Prove or
// Verify.
func New() *Backend {
	return &Backend{}
}

// Initialize compiles checkpointCircuit and runs Groth16 setup. This is a
// one-time, possibly slow operation; callers run it once at process start,
// not per-checkpoint.
func (b *Backend) Initialize() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.initialized {
		return nil
	}

	var circuit checkpointCircuit
	cs, err := frontend.Compile(ecc.BN254.ScalarField(), r1cs.NewBuilder, &circuit)
	if err != nil {
		return fmt.Errorf("nativevk: compile circuit: %w", err)
	}
	pk, vk, err := groth16.Setup(cs)
	if err != nil {
		return fmt.Errorf("nativevk: groth16 setup: %w", err)
	}

	b.cs, b.pk, b.vk = cs, pk, vk
	b.initialized = true
	return nil
}

// Prove produces a ProofReceipt attesting that hash's base-7 field
// commitment equals the public value embedded in the returned receipt.
// Outside this package's tests nothing in this repository calls it
// (pkg/prooftask does not use this backend); the ASM driver only ever
// calls Verify.
func (b *Backend) Prove(hash [32]byte) (checkpoint.ProofReceipt, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if !b.initialized {
		return checkpoint.ProofReceipt{}, fmt.Errorf("nativevk: backend not initialized")
	}

	chunks := chunkFields(hash)
	assignment := &checkpointCircuit{
		PublicCommitment: computeCommitment(hash),
		Field0:           chunks[0],
		Field1:           chunks[1],
		Field2:           chunks[2],
		Field3:           chunks[3],
		Field4:           chunks[4],
		Field5:           chunks[5],
	}

	witness, err := frontend.NewWitness(assignment, ecc.BN254.ScalarField())
	if err != nil {
		return checkpoint.ProofReceipt{}, fmt.Errorf("nativevk: build witness: %w", err)
	}
	proof, err := groth16.Prove(b.cs, b.pk, witness)
	if err != nil {
		return checkpoint.ProofReceipt{}, fmt.Errorf("nativevk: prove: %w", err)
	}

	var proofBuf bytes.Buffer
	if _, err := proof.WriteTo(&proofBuf); err != nil {
		return checkpoint.ProofReceipt{}, fmt.Errorf("nativevk: serialize proof: %w", err)
	}

	return checkpoint.ProofReceipt{
		PublicValues: append([]byte(nil), hash[:]...),
		ProofBytes:   proofBuf.Bytes(),
	}, nil
}

// Verify implements checkpoint.ProofBackend. It requires receipt's public
// values to equal publicHash exactly, then verifies the Groth16 proof
// against the corresponding public witness.
func (b *Backend) Verify(vk rollupcfg.RollupVerifyingKey, receipt checkpoint.ProofReceipt, publicHash [32]byte) error {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if !b.initialized {
		return fmt.Errorf("nativevk: backend not initialized")
	}
	if vk.Tag != rollupcfg.VKTagNative {
		return fmt.Errorf("nativevk: verifying key tag %q is not native", vk.Tag)
	}
	if len(receipt.PublicValues) != 32 || !bytes.Equal(receipt.PublicValues, publicHash[:]) {
		return fmt.Errorf("nativevk: receipt public values do not match checkpoint hash")
	}

	proof := groth16.NewProof(ecc.BN254)
	if _, err := proof.ReadFrom(bytes.NewReader(receipt.ProofBytes)); err != nil {
		return fmt.Errorf("nativevk: malformed proof bytes: %w", err)
	}

	assignment := &checkpointCircuit{PublicCommitment: computeCommitment(publicHash)}
	publicWitness, err := frontend.NewWitness(assignment, ecc.BN254.ScalarField(), frontend.PublicOnly())
	if err != nil {
		return fmt.Errorf("nativevk: build public witness: %w", err)
	}

	if err := groth16.Verify(proof, b.vk, publicWitness); err != nil {
		return fmt.Errorf("nativevk: proof rejected: %w", err)
	}
	return nil
}
