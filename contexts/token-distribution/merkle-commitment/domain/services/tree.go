package services

import (
	"bytes"
	"math/big"
	"sort"

	"merkledrop/contexts/token-distribution/merkle-commitment/domain/entities"
	domainerrors "merkledrop/contexts/token-distribution/merkle-commitment/domain/errors"
	"merkledrop/contracts/merkle"

	"github.com/ethereum/go-ethereum/common"
)

// Tree keeps every level of a sorted-pair Merkle tree so proofs are answered
// without rebuilding. levels[0] holds the sorted leaves, the last level holds the root.
type Tree struct {
	levels [][]common.Hash
	index  map[common.Hash]int
}

// BuildTree sorts the leaves bytewise and folds them pairwise. The lone last
// node of an odd level is promoted unchanged. Duplicate leaves are kept.
func BuildTree(allocations []entities.Allocation) (*Tree, error) {
	if len(allocations) == 0 {
		return nil, domainerrors.ErrEmptyAllocations
	}
	leaves := make([]common.Hash, 0, len(allocations))
	for _, allocation := range allocations {
		if err := allocation.Validate(); err != nil {
			return nil, err
		}
		leaves = append(leaves, allocation.Leaf())
	}
	sort.Slice(leaves, func(i, j int) bool { return merkle.Less(leaves[i], leaves[j]) })

	index := make(map[common.Hash]int, len(leaves))
	for i := len(leaves) - 1; i >= 0; i-- {
		index[leaves[i]] = i
	}

	levels := [][]common.Hash{leaves}
	level := leaves
	for len(level) > 1 {
		next := make([]common.Hash, 0, (len(level)+1)/2)
		for i := 0; i < len(level); i += 2 {
			if i+1 == len(level) {
				next = append(next, level[i])
				continue
			}
			next = append(next, merkle.HashPair(level[i], level[i+1]))
		}
		levels = append(levels, next)
		level = next
	}

	return &Tree{levels: levels, index: index}, nil
}

func (t *Tree) Root() common.Hash {
	return t.levels[len(t.levels)-1][0]
}

func (t *Tree) LeafCount() int {
	return len(t.levels[0])
}

// Depth is the number of levels above the leaves; the longest proof has this many siblings.
func (t *Tree) Depth() int {
	return len(t.levels) - 1
}

// Leaves returns the sorted leaf level.
func (t *Tree) Leaves() []common.Hash {
	return append([]common.Hash(nil), t.levels[0]...)
}

// ProofForLeaf returns the sibling path of leaf, leaf level first.
func (t *Tree) ProofForLeaf(leaf common.Hash) ([]common.Hash, error) {
	position, ok := t.index[leaf]
	if !ok {
		return nil, domainerrors.ErrNotFound
	}
	proof := make([]common.Hash, 0, t.Depth())
	for _, level := range t.levels[:len(t.levels)-1] {
		sibling := position ^ 1
		if sibling < len(level) {
			proof = append(proof, level[sibling])
		}
		position /= 2
	}
	return proof, nil
}

func (t *Tree) Proof(target entities.Allocation) ([]common.Hash, error) {
	if err := target.Validate(); err != nil {
		return nil, err
	}
	return t.ProofForLeaf(target.Leaf())
}

func BuildRoot(allocations []entities.Allocation) (common.Hash, error) {
	tree, err := BuildTree(allocations)
	if err != nil {
		return common.Hash{}, err
	}
	return tree.Root(), nil
}

func ProofFor(allocations []entities.Allocation, target entities.Allocation) ([]common.Hash, error) {
	tree, err := BuildTree(allocations)
	if err != nil {
		return nil, err
	}
	return tree.Proof(target)
}

// BuildDistribution returns the artifact for allocations, entries ordered by
// recipient then amount.
func BuildDistribution(allocations []entities.Allocation) (entities.Distribution, error) {
	tree, err := BuildTree(allocations)
	if err != nil {
		return entities.Distribution{}, err
	}

	total := new(big.Int)
	entries := make([]entities.DistributionEntry, 0, len(allocations))
	for _, allocation := range allocations {
		leaf := allocation.Leaf()
		proof, err := tree.ProofForLeaf(leaf)
		if err != nil {
			return entities.Distribution{}, err
		}
		total.Add(total, allocation.Amount)
		entries = append(entries, entities.DistributionEntry{
			Recipient: allocation.Recipient,
			Amount:    new(big.Int).Set(allocation.Amount),
			Leaf:      leaf,
			Proof:     proof,
		})
	}
	sort.SliceStable(entries, func(i, j int) bool {
		if cmp := bytes.Compare(entries[i].Recipient[:], entries[j].Recipient[:]); cmp != 0 {
			return cmp < 0
		}
		return entries[i].Amount.Cmp(entries[j].Amount) < 0
	})

	return entities.Distribution{
		Root:      tree.Root(),
		LeafCount: tree.LeafCount(),
		Depth:     tree.Depth(),
		Total:     total,
		Entries:   entries,
	}, nil
}

// VerifyEntry checks an artifact entry against root.
func VerifyEntry(root common.Hash, entry entities.DistributionEntry) bool {
	if merkle.CheckAmount(entry.Amount) != nil {
		return false
	}
	return merkle.VerifyProof(entry.Proof, root, merkle.LeafHash(entry.Recipient, entry.Amount))
}
