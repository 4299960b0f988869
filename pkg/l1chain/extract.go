package l1chain

import (
	"bytes"

	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/txscript"
	"github.com/btcsuite/btcd/wire"
)

// ExtractDeposit validates and extracts a Deposit operation from tx per
// : output 0 pays the current bridge Taproot address for
// exactly DepositAmountSats; output 1 is OP_RETURN<magic><EE address of
// AddressLength bytes>.
func ExtractDeposit(tx *wire.MsgTx, cfg *FilterConfig) (*ProtocolOperation, error) {
	if len(tx.TxOut) < 2 {
		return nil, fioErr("deposit tx needs at least 2 outputs")
	}

	out0 := tx.TxOut[0]
	if !bytes.Equal(out0.PkScript, cfg.BridgeTaprootPkScript) {
		return nil, fioErr("output 0 does not pay the bridge address")
	}
	if uint64(out0.Value) != cfg.DepositAmountSats {
		return nil, fioErr("deposit value %d != required %d", out0.Value, cfg.DepositAmountSats)
	}

	out1 := tx.TxOut[1]
	tokenizer := txscript.MakeScriptTokenizer(0, out1.PkScript)
	if !tokenizer.Next() || tokenizer.Opcode() != txscript.OP_RETURN {
		return nil, fioErr("output 1 is not OP_RETURN")
	}
	if !tokenizer.Next() {
		return nil, fioErr("output 1 OP_RETURN has no push data")
	}
	push := tokenizer.Data()
	if len(push) != len(cfg.Magic)+int(cfg.AddressLength) {
		return nil, fioErr("output 1 push has wrong length: %d", len(push))
	}
	if !bytes.Equal(push[:len(cfg.Magic)], cfg.Magic[:]) {
		return nil, fioErr("output 1 magic mismatch")
	}

	txHash := tx.TxHash()
	return &ProtocolOperation{
		Kind:       OpDeposit,
		AmountSats: uint64(out0.Value),
		Outpoint:   wire.OutPoint{Hash: txHash, Index: 0},
		EEAddress:  append([]byte(nil), push[len(cfg.Magic):]...),
	}, nil
}

// maxTaprootPush is Bitcoin script's maximum single push-data size:
// envelope chunks must each be <= 520 bytes.
const maxTaprootPush = 520

// extractWitnessEnvelope concatenates the contiguous push-data chunks of a
// tx input's witness script, per . The result is the raw
// envelope payload; callers decide whether it is a SignedCheckpoint or a
// DaCommitment.
func extractWitnessEnvelope(tx *wire.MsgTx, inputIdx int) ([]byte, error) {
	if inputIdx >= len(tx.TxIn) {
		return nil, fioErr("input %d out of range", inputIdx)
	}
	witness := tx.TxIn[inputIdx].Witness
	if len(witness) == 0 {
		return nil, fioErr("input %d carries no witness", inputIdx)
	}

	// The envelope script is conventionally the second-to-last witness
	// item (the last is the control block for the taproot script-path
	// spend). Scan every witness item that tokenizes as a script and pull
	// out its push-data chunks; non-script items (signatures, control
	// blocks) simply fail to tokenize as a sequence of standalone pushes
	// and are skipped.
	var payload []byte
	found := false
	for _, item := range witness {
		chunks, ok := scriptPushChunks(item)
		if !ok || len(chunks) == 0 {
			continue
		}
		for _, c := range chunks {
			if len(c) > maxTaprootPush {
				return nil, fioErr("envelope chunk exceeds %d bytes", maxTaprootPush)
			}
			payload = append(payload, c...)
		}
		found = true
	}
	if !found {
		return nil, fioErr("no envelope push-data found in witness")
	}
	return payload, nil
}

// scriptPushChunks tokenizes b as a script consisting entirely of
// push-data opcodes (plus OP_0/OP_FALSE, OP_IF and OP_ENDIF framing, which are
// ignored) and returns the pushed chunks in order. ok is false if b
// contains any other opcode, meaning b isn't an envelope-shaped script.
func scriptPushChunks(b []byte) (chunks [][]byte, ok bool) {
	tokenizer := txscript.MakeScriptTokenizer(0, b)
	for tokenizer.Next() {
		op := tokenizer.Opcode()
		switch {
		case op == txscript.OP_FALSE, op == txscript.OP_IF, op == txscript.OP_ENDIF:
			continue
		case op <= txscript.OP_PUSHDATA4:
			chunks = append(chunks, tokenizer.Data())
		default:
			return nil, false
		}
	}
	if tokenizer.Err() != nil {
		return nil, false
	}
	return chunks, true
}

// ExtractCheckpointEnvelope extracts the raw SignedCheckpoint bytes from a
// tx's first-input witness envelope.
func ExtractCheckpointEnvelope(tx *wire.MsgTx) (*ProtocolOperation, error) {
	payload, err := extractWitnessEnvelope(tx, 0)
	if err != nil {
		return nil, err
	}
	return &ProtocolOperation{Kind: OpCheckpoint, SignedCheckpointBytes: payload}, nil
}

// ExtractAdminRotation extracts the raw administrator-signed bridge-address
// rotation envelope from a tx's first-input witness, the same envelope
// shape Checkpoint and DaCommitment use. Decoding the payload itself
// (new Taproot pkScript, Schnorr signature) and verifying it against the
// authorized administrator key is the Core subprotocol's job, not this
// package's: l1chain only carries bytes between the Bitcoin layer and the
// subprotocol that understands them.
func ExtractAdminRotation(tx *wire.MsgTx) (*ProtocolOperation, error) {
	payload, err := extractWitnessEnvelope(tx, 0)
	if err != nil {
		return nil, err
	}
	return &ProtocolOperation{Kind: OpAdminRotateBridgeAddress, AdminRotationBytes: payload}, nil
}

// ExtractDaCommitment hashes a tx's first-input witness envelope with
// SHA-256d; the blob itself is never retained.
func ExtractDaCommitment(tx *wire.MsgTx) (*ProtocolOperation, error) {
	payload, err := extractWitnessEnvelope(tx, 0)
	if err != nil {
		return nil, err
	}
	h := chainhash.DoubleHashB(payload)
	var out [32]byte
	copy(out[:], h)
	return &ProtocolOperation{Kind: OpDaCommitment, DaHash: out}, nil
}
