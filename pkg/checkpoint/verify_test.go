package checkpoint

import (
	"testing"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/btcec/v2/schnorr"
	"github.com/btcsuite/btcd/chaincfg/chainhash"

	"github.com/strata-rollup/strata-asm/pkg/rollupcfg"
)

func signCheckpoint(t *testing.T, priv *btcec.PrivateKey, c Checkpoint) SignedCheckpoint {
	t.Helper()
	digest := chainhash.DoubleHashH(CanonicalEncode(c))
	sig, err := schnorr.Sign(priv, digest[:])
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	var sigArr [64]byte
	copy(sigArr[:], sig.Serialize())
	var pkArr [32]byte
	copy(pkArr[:], priv.PubKey().SerializeCompressed()[1:])
	return SignedCheckpoint{
		Checkpoint: c,
		Signature:  sigArr,
		SignerKey:  pkArr,
		Receipt:    ProofReceipt{Empty: true},
	}
}

func TestVerifySignatureAccepts(t *testing.T) {
	priv, err := btcec.NewPrivateKey()
	if err != nil {
		t.Fatalf("gen key: %v", err)
	}
	c := sampleCheckpoint(0, 1, 2, 0, 0, [32]byte{}, [32]byte{1}, 1)
	sc := signCheckpoint(t, priv, c)

	if err := VerifySignature(&sc, sc.SignerKey); err != nil {
		t.Fatalf("valid signature rejected: %v", err)
	}
}

func TestVerifySignatureRejectsWrongSigner(t *testing.T) {
	priv, _ := btcec.NewPrivateKey()
	c := sampleCheckpoint(0, 1, 2, 0, 0, [32]byte{}, [32]byte{1}, 1)
	sc := signCheckpoint(t, priv, c)

	var otherKey [32]byte
	otherKey[0] = 0xff
	if err := VerifySignature(&sc, otherKey); err == nil {
		t.Fatal("expected rejection when signer != authorized batch producer")
	}
}

func TestVerifySignatureRejectsTamperedCheckpoint(t *testing.T) {
	priv, _ := btcec.NewPrivateKey()
	c := sampleCheckpoint(0, 1, 2, 0, 0, [32]byte{}, [32]byte{1}, 1)
	sc := signCheckpoint(t, priv, c)
	sc.Checkpoint.L1Range.EndHeight = 999

	if err := VerifySignature(&sc, sc.SignerKey); err == nil {
		t.Fatal("expected rejection of tampered checkpoint")
	}
}

func TestVerifyProofStrictRejectsEmptyReceipt(t *testing.T) {
	priv, _ := btcec.NewPrivateKey()
	c := sampleCheckpoint(0, 1, 2, 0, 0, [32]byte{}, [32]byte{1}, 1)
	sc := signCheckpoint(t, priv, c)

	err := VerifyProof(&sc, rollupcfg.RollupVerifyingKey{Tag: rollupcfg.VKTagNative}, rollupcfg.Strict(), BackendSet{})
	if err == nil {
		t.Fatal("expected strict mode to reject empty receipt")
	}
}

func TestVerifyProofTimeoutModeAcceptsEmptyReceipt(t *testing.T) {
	priv, _ := btcec.NewPrivateKey()
	c := sampleCheckpoint(0, 1, 2, 0, 0, [32]byte{}, [32]byte{1}, 1)
	sc := signCheckpoint(t, priv, c)

	err := VerifyProof(&sc, rollupcfg.RollupVerifyingKey{Tag: rollupcfg.VKTagNative}, rollupcfg.Timeout(30), BackendSet{})
	if err != nil {
		t.Fatalf("timeout mode rejected empty receipt: %v", err)
	}
}

func TestVerifyProofFailsClosedWithoutBackend(t *testing.T) {
	priv, _ := btcec.NewPrivateKey()
	c := sampleCheckpoint(0, 1, 2, 0, 0, [32]byte{}, [32]byte{1}, 1)
	sc := signCheckpoint(t, priv, c)
	sc.Receipt = ProofReceipt{PublicValues: []byte{1, 2, 3}, ProofBytes: []byte{4, 5, 6}}

	err := VerifyProof(&sc, rollupcfg.RollupVerifyingKey{Tag: rollupcfg.VKTagSP1}, rollupcfg.Strict(), BackendSet{})
	if err == nil {
		t.Fatal("expected failure when no SP1 backend is wired")
	}
}
