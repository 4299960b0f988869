package l1chain

import (
	"bytes"
	"errors"

	"github.com/btcsuite/btcd/txscript"
	"github.com/btcsuite/btcd/wire"
)

// sps50Magic is the ASCII "ALPN" tag required in byte offset 0..4 of every
// SPS-50 header.
var sps50Magic = [4]byte{'A', 'L', 'P', 'N'}

// ErrFilterParse is the sentinel kind for a filter parse error: any
// parsing failure here means the tx is silently dropped, never that the
// block is rejected.
var ErrFilterParse = errors.New("l1chain: filter parse failure")

// sps50Header is the decoded fixed prefix of an SPS-50 tagged OP_RETURN
// push.
type sps50Header struct {
	SubprotocolID uint8
	TxType        uint8
	Aux           []byte
}

// parseSPS50Header parses an OP_RETURN push payload as an SPS-50 header.
// Returns ErrFilterParse (wrapped) on any malformed input; callers must
// treat that as "drop this tx", never as a block-level failure.
func parseSPS50Header(push []byte) (*sps50Header, error) {
	if len(push) < 6 {
		return nil, fioErr("push payload too short: %d bytes", len(push))
	}
	if !bytes.Equal(push[0:4], sps50Magic[:]) {
		return nil, fioErr("magic mismatch")
	}
	return &sps50Header{
		SubprotocolID: push[4],
		TxType:        push[5],
		Aux:           append([]byte(nil), push[6:]...),
	}, nil
}

func fioErr(format string, args ...interface{}) error {
	return errWrapf(ErrFilterParse, format, args...)
}

// extractOpReturnPush returns the single push-data payload of tx's output
// 0 if it is a standard OP_RETURN carrying one push of at least 6 bytes.
// Any other shape is a parse failure.
func extractOpReturnPush(tx *wire.MsgTx) ([]byte, error) {
	if len(tx.TxOut) == 0 {
		return nil, fioErr("tx has no outputs")
	}
	pkScript := tx.TxOut[0].PkScript

	tokenizer := txscript.MakeScriptTokenizer(0, pkScript)
	if !tokenizer.Next() || tokenizer.Opcode() != txscript.OP_RETURN {
		return nil, fioErr("output 0 is not OP_RETURN")
	}
	if !tokenizer.Next() {
		return nil, fioErr("OP_RETURN has no push data")
	}
	push := tokenizer.Data()
	if len(push) < 6 {
		return nil, fioErr("OP_RETURN push too short: %d bytes", len(push))
	}
	// A well-formed SPS-50 OP_RETURN carries exactly one push; a second
	// token (other than script end) means this isn't ours.
	if tokenizer.Next() {
		return nil, fioErr("OP_RETURN has more than one push")
	}
	return push, nil
}
