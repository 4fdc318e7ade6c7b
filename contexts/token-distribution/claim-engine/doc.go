// Package claimengine contains the on-line side of a token drop: the registered
// Merkle root, per-recipient entitlements, the claimed set and the bound asset.
//
// Every mutating operation runs inside one state transaction so a failed payout
// leaves no trace. Recipients move Unregistered -> Entitled -> Claimed, and
// Claimed is absorbing.
package claimengine
