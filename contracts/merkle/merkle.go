// Package merkle is the commitment contract shared by the off-line tree builder,
// the claim engine and on-chain verifiers.
//
// Leaves are keccak256(abi.encode(address, uint256)) and interior nodes are
// keccak256 of the bytewise-sorted pair, so proofs carry no direction bits and
// verify against a Solidity MerkleProof.verify deployment unchanged.
// Changing anything here invalidates every published root.
package merkle

import (
	"bytes"
	"errors"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/math"
	"github.com/ethereum/go-ethereum/crypto"
)

const wordSize = 32

var (
	ErrAmountOutOfRange = errors.New("amount must be within [0, 2^256-1]")
	ErrZeroAddress      = errors.New("address must not be zero")
)

// CheckAmount reports whether amount fits the uint256 word used by the leaf encoding.
func CheckAmount(amount *big.Int) error {
	if amount == nil || amount.Sign() < 0 || amount.Cmp(math.MaxBig256) > 0 {
		return ErrAmountOutOfRange
	}
	return nil
}

// EncodeLeaf returns the 64-byte ABI encoding of (recipient, amount).
// The amount must already satisfy CheckAmount.
func EncodeLeaf(recipient common.Address, amount *big.Int) []byte {
	encoded := make([]byte, 0, 2*wordSize)
	encoded = append(encoded, common.LeftPadBytes(recipient.Bytes(), wordSize)...)
	encoded = append(encoded, common.LeftPadBytes(amount.Bytes(), wordSize)...)
	return encoded
}

// LeafHash is the commitment of a single allocation.
func LeafHash(recipient common.Address, amount *big.Int) common.Hash {
	return crypto.Keccak256Hash(EncodeLeaf(recipient, amount))
}

// HashPair combines two nodes after ordering them bytewise, so HashPair(a, b) == HashPair(b, a).
func HashPair(a, b common.Hash) common.Hash {
	if bytes.Compare(a[:], b[:]) > 0 {
		a, b = b, a
	}
	return crypto.Keccak256Hash(a[:], b[:])
}

// FoldProof folds leaf through the sibling sequence, leaf level first.
func FoldProof(leaf common.Hash, proof []common.Hash) common.Hash {
	current := leaf
	for _, sibling := range proof {
		current = HashPair(current, sibling)
	}
	return current
}

// VerifyProof reports whether proof links leaf to root.
func VerifyProof(proof []common.Hash, root common.Hash, leaf common.Hash) bool {
	return FoldProof(leaf, proof) == root
}

// Less orders hashes bytewise ascending.
func Less(a, b common.Hash) bool {
	return bytes.Compare(a[:], b[:]) < 0
}
