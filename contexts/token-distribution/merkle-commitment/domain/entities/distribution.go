package entities

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

// DistributionEntry is what a single recipient needs to claim.
type DistributionEntry struct {
	Recipient common.Address
	Amount    *big.Int
	Leaf      common.Hash
	Proof     []common.Hash
}

// Distribution is the published artifact: the root plus every recipient's proof.
type Distribution struct {
	Root      common.Hash
	LeafCount int
	Depth     int
	Total     *big.Int
	Entries   []DistributionEntry
}

// Entry returns the first entry for recipient.
func (d Distribution) Entry(recipient common.Address) (DistributionEntry, bool) {
	for _, entry := range d.Entries {
		if entry.Recipient == recipient {
			return entry, true
		}
	}
	return DistributionEntry{}, false
}
