package merklecommitment

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"math/big"
	"os"
	"path/filepath"
	"testing"

	fileadapter "merkledrop/contexts/token-distribution/merkle-commitment/adapters/file"
	"merkledrop/contexts/token-distribution/merkle-commitment/application/commands"
	"merkledrop/contexts/token-distribution/merkle-commitment/application/queries"
	domainerrors "merkledrop/contexts/token-distribution/merkle-commitment/domain/errors"
	"merkledrop/contracts/merkle"

	"github.com/ethereum/go-ethereum/common"
)

var (
	user1 = common.HexToAddress("0x70997970C51812dc3A010C7d01b50e0d17dc79C8")
	user2 = common.HexToAddress("0x3C44CdDdB6a900fa2b585dd299e03d12FA4293BC")
	owner = common.HexToAddress("0xf39Fd6e51aad88F6F4ce6aB8827279cffFb92266")
)

func newTestModule(t *testing.T) (Module, string) {
	t.Helper()
	dir := t.TempDir()
	input := filepath.Join(dir, "allocations.csv")
	content := "address,amount\n" +
		user1.Hex() + ",10000\n" +
		user2.Hex() + ",500\n" +
		owner.Hex() + ",3500000\n"
	if err := os.WriteFile(input, []byte(content), 0o600); err != nil {
		t.Fatalf("write input: %v", err)
	}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return NewFileModule(fileadapter.NewStore(logger), logger), input
}

func TestBuildProofAndVerifyFlow(t *testing.T) {
	module, input := newTestModule(t)
	ctx := context.Background()
	output := filepath.Join(filepath.Dir(input), "distribution.json")

	built, err := module.Build.Execute(ctx, commands.BuildCommitmentCommand{Input: input, Output: output})
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	if built.Distribution.LeafCount != 3 {
		t.Fatalf("expected 3 leaves, got %d", built.Distribution.LeafCount)
	}

	proof, err := module.Proof.Execute(ctx, queries.GetProofQuery{Input: input, Recipient: user2})
	if err != nil {
		t.Fatalf("proof: %v", err)
	}
	if proof.Root != built.Distribution.Root {
		t.Fatalf("proof root differs from built root")
	}
	if proof.Allocation.Amount.Cmp(big.NewInt(500)) != 0 {
		t.Fatalf("expected amount 500, got %s", proof.Allocation.Amount)
	}
	if !merkle.VerifyProof(proof.Proof, proof.Root, merkle.LeafHash(user2, big.NewInt(500))) {
		t.Fatalf("expected proof to verify")
	}

	verified, err := module.Verify.Execute(ctx, queries.VerifyDistributionQuery{Location: output})
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if !verified.Valid() || verified.Checked != 3 {
		t.Fatalf("expected all 3 entries to verify, got %+v", verified)
	}

	otherRoot := common.HexToHash("0x01")
	mismatched, err := module.Verify.Execute(ctx, queries.VerifyDistributionQuery{Location: output, Root: &otherRoot})
	if err != nil {
		t.Fatalf("verify against other root: %v", err)
	}
	if mismatched.Valid() {
		t.Fatalf("expected entries to fail against a different root")
	}
}

func TestProofForUnknownRecipient(t *testing.T) {
	module, input := newTestModule(t)
	stranger := common.HexToAddress("0x00000000000000000000000000000000000000aa")
	_, err := module.Proof.Execute(context.Background(), queries.GetProofQuery{Input: input, Recipient: stranger})
	if !errors.Is(err, domainerrors.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	_, err = module.Proof.Execute(context.Background(), queries.GetProofQuery{Input: input, Recipient: user1, Amount: big.NewInt(10001)})
	if !errors.Is(err, domainerrors.ErrNotFound) {
		t.Fatalf("expected ErrNotFound for wrong amount, got %v", err)
	}
}

func TestBuildWithoutOutputDoesNotWrite(t *testing.T) {
	module, input := newTestModule(t)
	if _, err := module.Build.Execute(context.Background(), commands.BuildCommitmentCommand{Input: input}); err != nil {
		t.Fatalf("build: %v", err)
	}
	entries, err := os.ReadDir(filepath.Dir(input))
	if err != nil {
		t.Fatalf("read dir: %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("expected only the input file, found %d entries", len(entries))
	}
}
