package checkpoint

import (
	"fmt"

	"github.com/btcsuite/btcd/btcec/v2/schnorr"
	"github.com/btcsuite/btcd/chaincfg/chainhash"

	"github.com/strata-rollup/strata-asm/pkg/rollupcfg"
)

// ProofBackend verifies a ProofReceipt against a verifying key and the
// public-value hash the receipt claims to attest to.
// Implementations are selected by RollupVerifyingKey.Tag; the ASM driver
// never inspects receipt internals itself.
type ProofBackend interface {
	Verify(vk rollupcfg.RollupVerifyingKey, receipt ProofReceipt, publicHash [32]byte) error
}

// BackendSet dispatches to the ProofBackend matching a RollupVerifyingKey's
// tag. A nil entry means that backend family is not wired into this
// process; verification of a receipt claiming that tag fails closed.
type BackendSet struct {
	SP1    ProofBackend
	Risc0  ProofBackend
	Native ProofBackend
}

func (b BackendSet) dispatch(tag rollupcfg.RollupVKTag) (ProofBackend, error) {
	switch tag {
	case rollupcfg.VKTagSP1:
		if b.SP1 == nil {
			return nil, fmt.Errorf("checkpoint: no SP1 proof backend configured")
		}
		return b.SP1, nil
	case rollupcfg.VKTagRisc0:
		if b.Risc0 == nil {
			return nil, fmt.Errorf("checkpoint: no Risc0 proof backend configured")
		}
		return b.Risc0, nil
	case rollupcfg.VKTagNative:
		if b.Native == nil {
			return nil, fmt.Errorf("checkpoint: no Native proof backend configured")
		}
		return b.Native, nil
	default:
		return nil, fmt.Errorf("checkpoint: unrecognized verifying key tag %q", tag)
	}
}

// VerifySignature checks sc's BIP-340 Schnorr signature over the canonical
// encoding of its Checkpoint. The signer key must match the
// currently authorized batch producer key; the caller supplies that key
// from live Core subprotocol state rather than this package reaching for
// a global.
func VerifySignature(sc *SignedCheckpoint, batchProducerPubkey [32]byte) error {
	if sc.SignerKey != batchProducerPubkey {
		return fmt.Errorf("checkpoint: signer key is not the authorized batch producer")
	}
	pubKey, err := schnorr.ParsePubKey(sc.SignerKey[:])
	if err != nil {
		return fmt.Errorf("checkpoint: invalid signer key: %w", err)
	}
	sig, err := schnorr.ParseSignature(sc.Signature[:])
	if err != nil {
		return fmt.Errorf("checkpoint: invalid signature encoding: %w", err)
	}
	digest := chainhash.DoubleHashH(CanonicalEncode(sc.Checkpoint))
	if !sig.Verify(digest[:], pubKey) {
		return fmt.Errorf("checkpoint: schnorr signature verification failed")
	}
	return nil
}

// VerifyProof checks sc's ProofReceipt against the configured verifying
// key, honoring the devnet timeout escape hatch when the receipt is empty.
// publicHash is the double SHA-256 of the checkpoint's canonical encoding,
// the value every proof backend's public output must equal.
func VerifyProof(sc *SignedCheckpoint, vk rollupcfg.RollupVerifyingKey, mode rollupcfg.ProofPublishMode, backends BackendSet) error {
	publicHash := chainhash.DoubleHashH(CanonicalEncode(sc.Checkpoint))

	if sc.Receipt.Empty {
		if mode.Strict {
			return fmt.Errorf("checkpoint: empty proof receipt rejected under strict proof-publish mode")
		}
		return nil
	}

	backend, err := backends.dispatch(vk.Tag)
	if err != nil {
		return err
	}
	return backend.Verify(vk, sc.Receipt, publicHash)
}

// Verify runs the full checkpoint admission check: continuity
// against prev, Schnorr signature, and proof receipt, in that order so the
// cheapest checks reject first. genesisL1Height is the rollup's configured
// L1 anchor height, checked against the first checkpoint's L1 range start
// when prev is nil.
func Verify(prev *Checkpoint, sc *SignedCheckpoint, genesisL1Height uint64, batchProducerPubkey [32]byte, vk rollupcfg.RollupVerifyingKey, mode rollupcfg.ProofPublishMode, backends BackendSet) error {
	if err := checkContinuity(prev, &sc.Checkpoint, genesisL1Height); err != nil {
		return err
	}
	if err := VerifySignature(sc, batchProducerPubkey); err != nil {
		return err
	}
	if err := VerifyProof(sc, vk, mode, backends); err != nil {
		return err
	}
	return nil
}
