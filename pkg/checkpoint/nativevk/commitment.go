package nativevk

import "math/big"

// bn254ScalarField is the BN254 scalar field modulus, the field every
// circuit witness here is reduced into.
var bn254ScalarField, _ = new(big.Int).SetString(
	"21888242871839275222246405745257275088548364400416034343698204186575808495617", 10)

// chunkFields splits a 32-byte public hash into six consecutive,
// non-overlapping big-endian chunks suitable as circuit field elements:
// five 5-byte chunks (32/6 rounded down) followed by a final chunk holding
// the remaining 7 bytes. Each chunk is reduced modulo the scalar field.
func chunkFields(hash [32]byte) [6]*big.Int {
	var out [6]*big.Int
	chunkLen := len(hash) / 6
	for i := 0; i < 6; i++ {
		start := i * chunkLen
		end := start + chunkLen
		if i == 5 {
			end = len(hash)
		}
		v := new(big.Int).SetBytes(hash[start:end])
		out[i] = v.Mod(v, bn254ScalarField)
	}
	return out
}

// computeCommitment computes the same base-7 polynomial commitment the
// circuit asserts, over a hash's six field chunks.
func computeCommitment(hash [32]byte) *big.Int {
	chunks := chunkFields(hash)
	r := big.NewInt(7)
	result := new(big.Int).Set(chunks[0])
	pow := new(big.Int).Set(r)
	for i := 1; i < 6; i++ {
		term := new(big.Int).Mul(chunks[i], pow)
		result.Add(result, term)
		pow.Mul(pow, r)
	}
	return result.Mod(result, bn254ScalarField)
}
