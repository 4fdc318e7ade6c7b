// Package merklecommitment builds the Merkle commitment of a token drop.
//
// It turns an allocation list into a root plus one inclusion proof per
// recipient. The result is published off-line next to the root registered in
// the claim engine.
package merklecommitment
