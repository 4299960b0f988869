// Copyright 2025 Strata Contributors
//
// Package slotrng implements the deterministic per-slot CSPRNG used for
// protocol tie-breaks (operator dispatch assignment) and the epoch/slot/L1
// commitment types threaded through the ASM and the chain worker.
package slotrng

import (
	"crypto/sha256"
	"encoding/binary"
	"errors"
	"fmt"

	"golang.org/x/crypto/chacha20"
)

// ErrNotSeeded is returned by Uint64/Fill when a Rng is used before Seed.
var ErrNotSeeded = errors.New("slotrng: generator not seeded")

// Rng is a deterministic CSPRNG backed by the XChaCha20 keystream (20
// rounds, 24-byte nonce); it reads the stream forward only and offers no
// seek. It is never
// used for key generation; its only purpose is reproducible protocol
// tie-breaks such as operator assignment for a dispatch window.
type Rng struct {
	cipher *chacha20.Cipher
}

// DeriveSeed computes the 32-byte seed for the slot RNG from the previous
// block's state root and the slot number: seed = SHA256(stateRoot || slot).
func DeriveSeed(prevBlockStateRoot [32]byte, slot uint64) [32]byte {
	var buf [40]byte
	copy(buf[:32], prevBlockStateRoot[:])
	binary.BigEndian.PutUint64(buf[32:], slot)
	return sha256.Sum256(buf[:])
}

// New constructs a Rng from a 32-byte seed, deterministically derived via
// DeriveSeed. The nonce is fixed at zero: the seed alone carries all the
// entropy the protocol needs, and a Rng is never reused across slots.
func New(seed [32]byte) (*Rng, error) {
	var nonce [chacha20.NonceSizeX]byte
	c, err := chacha20.NewUnauthenticatedCipher(seed[:], nonce[:])
	if err != nil {
		return nil, fmt.Errorf("slotrng: construct cipher: %w", err)
	}
	return &Rng{cipher: c}, nil
}

// NewForSlot is a convenience constructor combining DeriveSeed and New.
func NewForSlot(prevBlockStateRoot [32]byte, slot uint64) (*Rng, error) {
	return New(DeriveSeed(prevBlockStateRoot, slot))
}

// Fill writes len(p) pseudorandom bytes into p.
func (r *Rng) Fill(p []byte) error {
	if r == nil || r.cipher == nil {
		return ErrNotSeeded
	}
	for i := range p {
		p[i] = 0
	}
	r.cipher.XORKeyStream(p, p)
	return nil
}

// Uint64 returns the next 8 pseudorandom bytes as a big-endian uint64.
func (r *Rng) Uint64() (uint64, error) {
	var buf [8]byte
	if err := r.Fill(buf[:]); err != nil {
		return 0, err
	}
	return binary.BigEndian.Uint64(buf[:]), nil
}

// IndexN returns a pseudorandom index in [0, n). Used for operator
// assignment and any other small uniform choice. Panics if n <= 0, since
// that indicates a caller bug, not protocol data.
func (r *Rng) IndexN(n int) (int, error) {
	if n <= 0 {
		panic("slotrng: IndexN requires n > 0")
	}
	v, err := r.Uint64()
	if err != nil {
		return 0, err
	}
	return int(v % uint64(n)), nil
}
