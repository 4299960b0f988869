package checkpoint

import (
	"bytes"
	"encoding/binary"
	"fmt"
)

// CanonicalEncode produces the deterministic byte encoding of a
// Checkpoint's public fields: a fixed-layout big-endian
// concatenation, never varint or map-ordering dependent, so every verifier
// (Schnorr signer, ZK circuit, Go verifier) agrees on the bytes being
// signed/proved over.
func CanonicalEncode(c Checkpoint) []byte {
	buf := new(bytes.Buffer)
	putU64(buf, c.Epoch)
	putU64(buf, c.L1Range.StartHeight)
	putU64(buf, c.L1Range.EndHeight)
	buf.Write(c.L1Range.StartHash[:])
	buf.Write(c.L1Range.EndHash[:])
	putU64(buf, c.L2Range.StartSlot)
	putU64(buf, c.L2Range.EndSlot)
	buf.Write(c.L2Transition.StartStateRoot[:])
	buf.Write(c.L2Transition.EndStateRoot[:])
	buf.Write(c.AccPow[:])
	return buf.Bytes()
}

func putU64(buf *bytes.Buffer, v uint64) {
	var b [8]byte
	binary.BigEndian.PutUint64(b[:], v)
	buf.Write(b[:])
}

// DecodeSignedCheckpoint parses the raw envelope bytes extracted from an L1
// witness into a SignedCheckpoint. The wire layout is the CanonicalEncode
// layout (184 bytes) followed by a 64-byte Schnorr signature, a 32-byte
// signer key, a 1-byte empty-receipt flag, and, when not empty, a
// varint-free length-prefixed public-values blob and proof blob.
func DecodeSignedCheckpoint(b []byte) (*SignedCheckpoint, error) {
	const fixedLen = 8 + 8 + 8 + 32 + 32 + 8 + 8 + 32 + 32 + 16 // = 184
	if len(b) < fixedLen+64+32+1 {
		return nil, fmt.Errorf("checkpoint: envelope too short: %d bytes", len(b))
	}

	r := bytes.NewReader(b)
	var sc SignedCheckpoint

	sc.Checkpoint.Epoch = readU64(r)
	sc.Checkpoint.L1Range.StartHeight = readU64(r)
	sc.Checkpoint.L1Range.EndHeight = readU64(r)
	readFull(r, sc.Checkpoint.L1Range.StartHash[:])
	readFull(r, sc.Checkpoint.L1Range.EndHash[:])
	sc.Checkpoint.L2Range.StartSlot = readU64(r)
	sc.Checkpoint.L2Range.EndSlot = readU64(r)
	readFull(r, sc.Checkpoint.L2Transition.StartStateRoot[:])
	readFull(r, sc.Checkpoint.L2Transition.EndStateRoot[:])
	readFull(r, sc.Checkpoint.AccPow[:])
	readFull(r, sc.Signature[:])
	readFull(r, sc.SignerKey[:])

	var emptyFlag [1]byte
	readFull(r, emptyFlag[:])
	sc.Receipt.Empty = emptyFlag[0] != 0

	if !sc.Receipt.Empty {
		pv, err := readLenPrefixed(r)
		if err != nil {
			return nil, fmt.Errorf("checkpoint: public values: %w", err)
		}
		pf, err := readLenPrefixed(r)
		if err != nil {
			return nil, fmt.Errorf("checkpoint: proof bytes: %w", err)
		}
		sc.Receipt.PublicValues = pv
		sc.Receipt.ProofBytes = pf
	}

	return &sc, nil
}

// EncodeSignedCheckpoint serializes sc into the envelope layout
// DecodeSignedCheckpoint parses: CanonicalEncode(Checkpoint), then
// Signature, SignerKey, an empty-receipt flag, and, when not empty,
// length-prefixed PublicValues and ProofBytes.
func EncodeSignedCheckpoint(sc *SignedCheckpoint) []byte {
	buf := CanonicalEncode(sc.Checkpoint)
	buf = append(buf, sc.Signature[:]...)
	buf = append(buf, sc.SignerKey[:]...)
	if sc.Receipt.Empty {
		return append(buf, 1)
	}
	buf = append(buf, 0)
	buf = append(buf, lenPrefix(sc.Receipt.PublicValues)...)
	buf = append(buf, lenPrefix(sc.Receipt.ProofBytes)...)
	return buf
}

func lenPrefix(b []byte) []byte {
	var out [4]byte
	binary.BigEndian.PutUint32(out[:], uint32(len(b)))
	return append(out[:], b...)
}

func readU64(r *bytes.Reader) uint64 {
	var b [8]byte
	readFull(r, b[:])
	return binary.BigEndian.Uint64(b[:])
}

func readFull(r *bytes.Reader, dst []byte) {
	// callers have already bounds-checked total length; io errors here
	// would indicate a malformed length prefix, handled by readLenPrefixed.
	_, _ = r.Read(dst)
}

func readLenPrefixed(r *bytes.Reader) ([]byte, error) {
	var lenBuf [4]byte
	if n, _ := r.Read(lenBuf[:]); n != 4 {
		return nil, fmt.Errorf("truncated length prefix")
	}
	n := binary.BigEndian.Uint32(lenBuf[:])
	out := make([]byte, n)
	read := 0
	for read < int(n) {
		m, err := r.Read(out[read:])
		if m == 0 && err != nil {
			return nil, fmt.Errorf("truncated payload: wanted %d, got %d", n, read)
		}
		read += m
	}
	return out, nil
}
