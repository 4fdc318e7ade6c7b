package claimengine_test

import (
	"bytes"
	"context"
	"errors"
	"math/big"
	"sort"
	"sync"
	"testing"

	claimengine "merkledrop/contexts/token-distribution/claim-engine"
	"merkledrop/contexts/token-distribution/claim-engine/adapters/ledger"
	"merkledrop/contexts/token-distribution/claim-engine/adapters/memory"
	"merkledrop/contexts/token-distribution/claim-engine/application/commands"
	"merkledrop/contexts/token-distribution/claim-engine/application/workers"
	"merkledrop/contexts/token-distribution/claim-engine/domain/entities"
	domainerrors "merkledrop/contexts/token-distribution/claim-engine/domain/errors"
	"merkledrop/contexts/token-distribution/claim-engine/ports"
	"merkledrop/contracts/merkle"

	"github.com/ethereum/go-ethereum/common"
)

var (
	owner    = common.HexToAddress("0x70997970C51812dc3A010C7d01b50e0d17dc79C8")
	user1    = common.HexToAddress("0x3C44CdDdB6a900fa2b585dd299e03d12FA4293BC")
	user2    = common.HexToAddress("0x90F79bf6EB2c4f870365E785982E1f101E93b906")
	stranger = common.HexToAddress("0x15d34AAf54267DB7D7c367839AAf71A00a2C6A65")
	token    = common.HexToAddress("0x5FbDB2315678afecb367f032d93F642f64180aa3")
)

type allocation struct {
	recipient common.Address
	amount    *big.Int
}

// testTree folds sorted leaves pairwise and promotes the lone node of an odd level.
type testTree struct {
	levels [][]common.Hash
}

func buildTestTree(allocations []allocation) testTree {
	leaves := make([]common.Hash, 0, len(allocations))
	for _, a := range allocations {
		leaves = append(leaves, merkle.LeafHash(a.recipient, a.amount))
	}
	sort.Slice(leaves, func(i, j int) bool { return bytes.Compare(leaves[i][:], leaves[j][:]) < 0 })
	levels := [][]common.Hash{leaves}
	for level := leaves; len(level) > 1; {
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
	return testTree{levels: levels}
}

func (t testTree) root() common.Hash {
	return t.levels[len(t.levels)-1][0]
}

func (t testTree) proof(recipient common.Address, amount *big.Int) []common.Hash {
	leaf := merkle.LeafHash(recipient, amount)
	pos := -1
	for i, candidate := range t.levels[0] {
		if candidate == leaf {
			pos = i
			break
		}
	}
	if pos < 0 {
		return nil
	}
	proof := make([]common.Hash, 0, len(t.levels))
	for _, level := range t.levels[:len(t.levels)-1] {
		if sibling := pos ^ 1; sibling < len(level) {
			proof = append(proof, level[sibling])
		}
		pos /= 2
	}
	return proof
}

func scenario() []allocation {
	return []allocation{
		{recipient: user1, amount: big.NewInt(10000)},
		{recipient: user2, amount: big.NewInt(500)},
		{recipient: owner, amount: big.NewInt(3500000)},
	}
}

// newFundedModule registers the scenario allocations, binds the token and
// funds the owner with exactly the scenario total.
func newFundedModule(t *testing.T) (claimengine.Module, testTree) {
	t.Helper()
	ctx := context.Background()
	module, err := claimengine.NewInMemoryModule(ctx, "drop-test", owner, nil)
	if err != nil {
		t.Fatalf("new module: %v", err)
	}
	allocations := scenario()
	tree := buildTestTree(allocations)
	total := new(big.Int)
	for _, a := range allocations {
		if err := module.SetAmountForUser(ctx, owner, a.recipient, a.amount); err != nil {
			t.Fatalf("set amount for %s: %v", a.recipient.Hex(), err)
		}
		total.Add(total, a.amount)
	}
	if err := module.SetRoot(ctx, owner, tree.root()); err != nil {
		t.Fatalf("set root: %v", err)
	}
	if err := module.SetToken(ctx, owner, token); err != nil {
		t.Fatalf("set token: %v", err)
	}
	if err := module.Ledger.Mint(token, owner, total); err != nil {
		t.Fatalf("mint: %v", err)
	}
	return module, tree
}

func balanceOf(t *testing.T, module claimengine.Module, holder common.Address) int64 {
	t.Helper()
	balance, err := module.Ledger.BalanceOf(context.Background(), token, holder)
	if err != nil {
		t.Fatalf("balance of %s: %v", holder.Hex(), err)
	}
	return balance.Int64()
}

func TestScenarioClaimsPayEachRecipientOnce(t *testing.T) {
	module, tree := newFundedModule(t)
	ctx := context.Background()

	for _, a := range scenario() {
		claim, err := module.Claim(ctx, a.recipient, tree.proof(a.recipient, a.amount))
		if err != nil {
			t.Fatalf("claim for %s: %v", a.recipient.Hex(), err)
		}
		if claim.Amount.Cmp(a.amount) != 0 || claim.Root != tree.root() || claim.Token != token {
			t.Fatalf("unexpected claim record %+v", claim)
		}
		claimed, err := module.IsClaimed(ctx, a.recipient)
		if err != nil || !claimed {
			t.Fatalf("expected %s to be claimed, got %v err=%v", a.recipient.Hex(), claimed, err)
		}
	}

	if got := balanceOf(t, module, user1); got != 10000 {
		t.Fatalf("expected user1 balance 10000, got %d", got)
	}
	if got := balanceOf(t, module, user2); got != 500 {
		t.Fatalf("expected user2 balance 500, got %d", got)
	}
	// Owner paid itself its own allocation, so the funding balance is exactly its share.
	if got := balanceOf(t, module, owner); got != 3500000 {
		t.Fatalf("expected owner balance 3500000, got %d", got)
	}

	_, err := module.Claim(ctx, user1, tree.proof(user1, big.NewInt(10000)))
	if !errors.Is(err, domainerrors.ErrClaimed) {
		t.Fatalf("expected ErrClaimed on second claim, got %v", err)
	}
	if got := balanceOf(t, module, user1); got != 10000 {
		t.Fatalf("second claim must not pay, balance %d", got)
	}
}

func TestAuthorityOperationsRequireOwner(t *testing.T) {
	module, _ := newFundedModule(t)
	ctx := context.Background()

	if err := module.SetAmountForUser(ctx, stranger, stranger, big.NewInt(1)); !errors.Is(err, domainerrors.ErrUnauthorized) {
		t.Fatalf("expected ErrUnauthorized for set amount, got %v", err)
	}
	if err := module.SetRoot(ctx, stranger, common.Hash{1}); !errors.Is(err, domainerrors.ErrUnauthorized) {
		t.Fatalf("expected ErrUnauthorized for set root, got %v", err)
	}
	if err := module.SetToken(ctx, user1, common.Address{9}); !errors.Is(err, domainerrors.ErrUnauthorized) {
		t.Fatalf("expected ErrUnauthorized for set token, got %v", err)
	}
	if err := module.SetRoot(ctx, common.Address{}, common.Hash{1}); !errors.Is(err, domainerrors.ErrUnauthorized) {
		t.Fatalf("expected ErrUnauthorized for zero caller, got %v", err)
	}

	// Ownership is checked before the arguments, so invalid input from a
	// non-owner is still an authorization failure.
	invalid := []struct {
		name string
		call func() error
	}{
		{name: "zero token", call: func() error { return module.SetToken(ctx, stranger, common.Address{}) }},
		{name: "nil amount", call: func() error { return module.SetAmountForUser(ctx, stranger, user1, nil) }},
		{name: "negative amount", call: func() error { return module.SetAmountForUser(ctx, stranger, user1, big.NewInt(-1)) }},
		{name: "zero recipient", call: func() error { return module.SetAmountForUser(ctx, stranger, common.Address{}, big.NewInt(1)) }},
	}
	for _, tc := range invalid {
		if err := tc.call(); !errors.Is(err, domainerrors.ErrUnauthorized) {
			t.Fatalf("%s: expected ErrUnauthorized, got %v", tc.name, err)
		}
	}
	gotOwner, err := module.Owner(ctx)
	if err != nil || gotOwner != owner {
		t.Fatalf("expected owner %s, got %s err=%v", owner.Hex(), gotOwner.Hex(), err)
	}
}

func TestClaimRejections(t *testing.T) {
	module, tree := newFundedModule(t)
	ctx := context.Background()

	_, err := module.Claim(ctx, stranger, tree.proof(user1, big.NewInt(10000)))
	if !errors.Is(err, domainerrors.ErrNotParticipant) {
		t.Fatalf("expected ErrNotParticipant, got %v", err)
	}

	// user1's proof presented by user2 folds user2's own leaf and misses the root.
	_, err = module.Claim(ctx, user2, tree.proof(user1, big.NewInt(10000)))
	if !errors.Is(err, domainerrors.ErrInvalidProof) {
		t.Fatalf("expected ErrInvalidProof for foreign proof, got %v", err)
	}

	_, err = module.Claim(ctx, user2, nil)
	if !errors.Is(err, domainerrors.ErrInvalidProof) {
		t.Fatalf("expected ErrInvalidProof for empty proof, got %v", err)
	}

	tampered := tree.proof(user2, big.NewInt(500))
	tampered[0][0] ^= 0xff
	_, err = module.Claim(ctx, user2, tampered)
	if !errors.Is(err, domainerrors.ErrInvalidProof) {
		t.Fatalf("expected ErrInvalidProof for tampered proof, got %v", err)
	}

	status, err := module.RecipientStatus(ctx, user2)
	if err != nil || status != entities.RecipientStatusEntitled {
		t.Fatalf("rejected claims must leave user2 entitled, got %s err=%v", status, err)
	}
	status, err = module.RecipientStatus(ctx, stranger)
	if err != nil || status != entities.RecipientStatusUnregistered {
		t.Fatalf("expected stranger unregistered, got %s err=%v", status, err)
	}
}

func TestEntitlementMismatchWithCommittedTree(t *testing.T) {
	module, tree := newFundedModule(t)
	ctx := context.Background()

	// The stored amount no longer matches the committed leaf.
	if err := module.SetAmountForUser(ctx, owner, user1, big.NewInt(20000)); err != nil {
		t.Fatalf("set amount: %v", err)
	}
	_, err := module.Claim(ctx, user1, tree.proof(user1, big.NewInt(10000)))
	if !errors.Is(err, domainerrors.ErrInvalidProof) {
		t.Fatalf("expected ErrInvalidProof, got %v", err)
	}

	if err := module.SetAmountForUser(ctx, owner, user1, big.NewInt(0)); err != nil {
		t.Fatalf("zero amount: %v", err)
	}
	_, err = module.Claim(ctx, user1, tree.proof(user1, big.NewInt(10000)))
	if !errors.Is(err, domainerrors.ErrNotParticipant) {
		t.Fatalf("expected ErrNotParticipant after zeroing, got %v", err)
	}
}

func TestSetRootReplacesCommitment(t *testing.T) {
	module, tree := newFundedModule(t)
	ctx := context.Background()

	if _, err := module.Claim(ctx, user2, tree.proof(user2, big.NewInt(500))); err != nil {
		t.Fatalf("claim before replacement: %v", err)
	}

	replacement := buildTestTree([]allocation{
		{recipient: user1, amount: big.NewInt(10000)},
		{recipient: stranger, amount: big.NewInt(7)},
	})
	if err := module.SetRoot(ctx, owner, replacement.root()); err != nil {
		t.Fatalf("set root: %v", err)
	}
	root, err := module.Root(ctx)
	if err != nil || root != replacement.root() {
		t.Fatalf("expected replaced root, got %s err=%v", root.Hex(), err)
	}

	_, err = module.Claim(ctx, user1, tree.proof(user1, big.NewInt(10000)))
	if !errors.Is(err, domainerrors.ErrInvalidProof) {
		t.Fatalf("old proof must fail against the new root, got %v", err)
	}
	if _, err := module.Claim(ctx, user1, replacement.proof(user1, big.NewInt(10000))); err != nil {
		t.Fatalf("claim against new root: %v", err)
	}

	claimed, err := module.IsClaimed(ctx, user2)
	if err != nil || !claimed {
		t.Fatalf("root replacement must keep user2 claimed")
	}
}

func TestSetAmountAfterClaimDoesNotReopen(t *testing.T) {
	module, tree := newFundedModule(t)
	ctx := context.Background()

	if _, err := module.Claim(ctx, user2, tree.proof(user2, big.NewInt(500))); err != nil {
		t.Fatalf("claim: %v", err)
	}
	result, err := module.Handler.SetAmountForUser.Execute(ctx, commands.SetAmountForUserCommand{
		Caller:    owner,
		Recipient: user2,
		Amount:    big.NewInt(500),
	})
	if err != nil {
		t.Fatalf("set amount after claim: %v", err)
	}
	if !result.AlreadyClaimed {
		t.Fatalf("expected AlreadyClaimed to be reported")
	}
	_, err = module.Claim(ctx, user2, tree.proof(user2, big.NewInt(500)))
	if !errors.Is(err, domainerrors.ErrClaimed) {
		t.Fatalf("expected ErrClaimed, got %v", err)
	}
	status, err := module.RecipientStatus(ctx, user2)
	if err != nil || status != entities.RecipientStatusClaimed {
		t.Fatalf("expected claimed status, got %s err=%v", status, err)
	}
}

func TestTransferFailureRollsBackThenRetrySucceeds(t *testing.T) {
	ctx := context.Background()
	module, err := claimengine.NewInMemoryModule(ctx, "drop-test", owner, nil)
	if err != nil {
		t.Fatalf("new module: %v", err)
	}
	tree := buildTestTree(scenario())
	for _, a := range scenario() {
		if err := module.SetAmountForUser(ctx, owner, a.recipient, a.amount); err != nil {
			t.Fatalf("set amount: %v", err)
		}
	}
	if err := module.SetRoot(ctx, owner, tree.root()); err != nil {
		t.Fatalf("set root: %v", err)
	}
	proof := tree.proof(user1, big.NewInt(10000))

	_, err = module.Claim(ctx, user1, proof)
	if !errors.Is(err, domainerrors.ErrTransferFailed) || !errors.Is(err, domainerrors.ErrTokenNotSet) {
		t.Fatalf("expected ErrTransferFailed wrapping ErrTokenNotSet, got %v", err)
	}

	if err := module.SetToken(ctx, owner, token); err != nil {
		t.Fatalf("set token: %v", err)
	}
	_, err = module.Claim(ctx, user1, proof)
	if !errors.Is(err, domainerrors.ErrTransferFailed) || !errors.Is(err, ledger.ErrUnknownToken) {
		t.Fatalf("expected ErrTransferFailed from unfunded ledger, got %v", err)
	}

	if err := module.Ledger.Mint(token, owner, big.NewInt(9999)); err != nil {
		t.Fatalf("mint: %v", err)
	}
	_, err = module.Claim(ctx, user1, proof)
	if !errors.Is(err, ledger.ErrInsufficientBalance) {
		t.Fatalf("expected insufficient balance, got %v", err)
	}

	claimed, err := module.IsClaimed(ctx, user1)
	if err != nil || claimed {
		t.Fatalf("failed payouts must not record a claim")
	}
	for _, evt := range module.Store.OutboxEvents() {
		if evt.EventType == commands.EventClaimed {
			t.Fatalf("failed payouts must not emit %s", commands.EventClaimed)
		}
	}

	if err := module.Ledger.Mint(token, owner, big.NewInt(1)); err != nil {
		t.Fatalf("mint: %v", err)
	}
	if _, err := module.Claim(ctx, user1, proof); err != nil {
		t.Fatalf("retry after funding: %v", err)
	}
	if got := balanceOf(t, module, user1); got != 10000 {
		t.Fatalf("expected user1 balance 10000, got %d", got)
	}
}

// reentrantLedger claims again from inside the payout, reusing the payout context.
type reentrantLedger struct {
	next      *ledger.MemoryLedger
	claim     func(ctx context.Context, caller common.Address) error
	innerErrs []error
}

func (l *reentrantLedger) Transfer(ctx context.Context, tok common.Address, to common.Address, amount *big.Int) error {
	if len(l.innerErrs) == 0 {
		l.innerErrs = append(l.innerErrs, l.claim(ctx, to))
	}
	return l.next.Transfer(ctx, tok, to, amount)
}

func TestReentrantClaimDuringPayoutIsRejected(t *testing.T) {
	ctx := context.Background()
	store := memory.NewStore(nil)
	memLedger := ledger.NewMemoryLedger(owner, nil)
	reentrant := &reentrantLedger{next: memLedger}
	module := claimengine.NewModule(claimengine.Dependencies{
		Store:       store,
		Ledger:      reentrant,
		Balances:    memLedger,
		Clock:       store,
		IDGenerator: store,
	})
	tree := buildTestTree(scenario())
	proof := tree.proof(user2, big.NewInt(500))
	reentrant.claim = func(ctx context.Context, caller common.Address) error {
		_, err := module.Claim(ctx, caller, proof)
		return err
	}

	if _, err := module.Initialize(ctx, "drop-test", owner); err != nil {
		t.Fatalf("initialize: %v", err)
	}
	if err := module.SetAmountForUser(ctx, owner, user2, big.NewInt(500)); err != nil {
		t.Fatalf("set amount: %v", err)
	}
	if err := module.SetRoot(ctx, owner, tree.root()); err != nil {
		t.Fatalf("set root: %v", err)
	}
	if err := module.SetToken(ctx, owner, token); err != nil {
		t.Fatalf("set token: %v", err)
	}
	if err := memLedger.Mint(token, owner, big.NewInt(1000)); err != nil {
		t.Fatalf("mint: %v", err)
	}

	if _, err := module.Claim(ctx, user2, proof); err != nil {
		t.Fatalf("outer claim: %v", err)
	}
	if len(reentrant.innerErrs) != 1 || !errors.Is(reentrant.innerErrs[0], domainerrors.ErrClaimed) {
		t.Fatalf("expected inner claim to fail with ErrClaimed, got %v", reentrant.innerErrs)
	}
	balance, err := memLedger.BalanceOf(ctx, token, user2)
	if err != nil || balance.Int64() != 500 {
		t.Fatalf("expected a single payout of 500, got %v err=%v", balance, err)
	}
}

// pendingLedger reports every transfer as broadcast but unconfirmed.
type pendingLedger struct {
	calls int
}

func (l *pendingLedger) Transfer(context.Context, common.Address, common.Address, *big.Int) error {
	l.calls++
	return ports.ErrTransferPending
}

func newLedgerModule(t *testing.T, assets ports.AssetLedger) (claimengine.Module, []common.Hash) {
	t.Helper()
	ctx := context.Background()
	store := memory.NewStore(nil)
	module := claimengine.NewModule(claimengine.Dependencies{
		Store:       store,
		Ledger:      assets,
		Clock:       store,
		IDGenerator: store,
	})
	tree := buildTestTree(scenario())
	if _, err := module.Initialize(ctx, "drop-test", owner); err != nil {
		t.Fatalf("initialize: %v", err)
	}
	if err := module.SetAmountForUser(ctx, owner, user2, big.NewInt(500)); err != nil {
		t.Fatalf("set amount: %v", err)
	}
	if err := module.SetRoot(ctx, owner, tree.root()); err != nil {
		t.Fatalf("set root: %v", err)
	}
	if err := module.SetToken(ctx, owner, token); err != nil {
		t.Fatalf("set token: %v", err)
	}
	return module, tree.proof(user2, big.NewInt(500))
}

func TestPendingPayoutKeepsClaimRecorded(t *testing.T) {
	assets := &pendingLedger{}
	module, proof := newLedgerModule(t, assets)
	ctx := context.Background()

	result, err := module.Handler.Claim.Execute(ctx, commands.ClaimCommand{Caller: user2, Proof: proof})
	if err != nil {
		t.Fatalf("claim: %v", err)
	}
	if !result.PayoutPending {
		t.Fatal("expected the claim result to report a pending payout")
	}
	if _, err := module.Claim(ctx, user2, proof); !errors.Is(err, domainerrors.ErrClaimed) {
		t.Fatalf("expected ErrClaimed on retry, got %v", err)
	}
	if assets.calls != 1 {
		t.Fatalf("expected one transfer, got %d", assets.calls)
	}
	claimed, err := module.IsClaimed(ctx, user2)
	if err != nil || !claimed {
		t.Fatalf("expected user2 claimed, got %v err=%v", claimed, err)
	}
}

func TestCancelledClaimRollsBackBeforePayout(t *testing.T) {
	assets := &pendingLedger{}
	module, proof := newLedgerModule(t, assets)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := module.Claim(ctx, user2, proof); !errors.Is(err, domainerrors.ErrTransferFailed) {
		t.Fatalf("expected ErrTransferFailed, got %v", err)
	}
	if assets.calls != 0 {
		t.Fatalf("expected no transfer for a cancelled request, got %d", assets.calls)
	}
	claimed, err := module.IsClaimed(context.Background(), user2)
	if err != nil || claimed {
		t.Fatalf("expected user2 to stay unclaimed, got %v err=%v", claimed, err)
	}
}

func TestConcurrentClaimsPayExactlyOnce(t *testing.T) {
	module, tree := newFundedModule(t)
	ctx := context.Background()
	proof := tree.proof(user1, big.NewInt(10000))

	const claimants = 16
	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		successes int
		conflicts int
	)
	for i := 0; i < claimants; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := module.Claim(ctx, user1, proof)
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				successes++
			case errors.Is(err, domainerrors.ErrClaimed):
				conflicts++
			default:
				t.Errorf("unexpected claim error: %v", err)
			}
		}()
	}
	wg.Wait()

	if successes != 1 || conflicts != claimants-1 {
		t.Fatalf("expected 1 success and %d conflicts, got %d and %d", claimants-1, successes, conflicts)
	}
	if got := balanceOf(t, module, user1); got != 10000 {
		t.Fatalf("expected a single payout, balance %d", got)
	}
}

func TestReadsOnUnregisteredRecipient(t *testing.T) {
	ctx := context.Background()
	module, err := claimengine.NewInMemoryModule(ctx, "drop-test", owner, nil)
	if err != nil {
		t.Fatalf("new module: %v", err)
	}
	root, err := module.Root(ctx)
	if err != nil || root != (common.Hash{}) {
		t.Fatalf("expected zero root before commitment, got %s err=%v", root.Hex(), err)
	}
	tok, err := module.Token(ctx)
	if err != nil || tok != (common.Address{}) {
		t.Fatalf("expected zero token before binding, got %s err=%v", tok.Hex(), err)
	}
	amount, err := module.Entitlement(ctx, stranger)
	if err != nil || amount.Sign() != 0 {
		t.Fatalf("expected zero entitlement, got %v err=%v", amount, err)
	}
	claimed, err := module.IsClaimed(ctx, stranger)
	if err != nil || claimed {
		t.Fatalf("expected unclaimed, got %v err=%v", claimed, err)
	}
}

func TestInitializeKeepsStateAndReassertsOwner(t *testing.T) {
	module, _ := newFundedModule(t)
	ctx := context.Background()

	drop, err := module.Initialize(ctx, "drop-test", stranger)
	if err != nil {
		t.Fatalf("reinitialize: %v", err)
	}
	if drop.Owner != stranger || drop.Token != token {
		t.Fatalf("expected owner replaced and token kept, got %+v", drop)
	}
	amount, err := module.Entitlement(ctx, user1)
	if err != nil || amount.Int64() != 10000 {
		t.Fatalf("entitlements must survive reinitialization, got %v err=%v", amount, err)
	}
	if err := module.SetRoot(ctx, owner, common.Hash{1}); !errors.Is(err, domainerrors.ErrUnauthorized) {
		t.Fatalf("previous owner must lose authority, got %v", err)
	}
}

type recordingPublisher struct {
	topics []string
	events []ports.EventEnvelope
	fail   error
}

func (p *recordingPublisher) Publish(_ context.Context, topic string, event ports.EventEnvelope) error {
	if p.fail != nil {
		return p.fail
	}
	p.topics = append(p.topics, topic)
	p.events = append(p.events, event)
	return nil
}

func TestOutboxRelayPublishesCommittedEvents(t *testing.T) {
	module, tree := newFundedModule(t)
	ctx := context.Background()
	if _, err := module.Claim(ctx, user2, tree.proof(user2, big.NewInt(500))); err != nil {
		t.Fatalf("claim: %v", err)
	}

	failing := workers.OutboxRelay{
		Outbox:    module.Store,
		Publisher: &recordingPublisher{fail: errors.New("bus down")},
	}
	if _, err := failing.RunOnce(ctx); err == nil {
		t.Fatalf("expected publish failure to surface")
	}

	publisher := &recordingPublisher{}
	relay := workers.OutboxRelay{Outbox: module.Store, Publisher: publisher, BatchSize: 100}
	sent, err := relay.RunOnce(ctx)
	if err != nil {
		t.Fatalf("relay: %v", err)
	}

	want := []string{
		commands.EventEntitlementSet,
		commands.EventEntitlementSet,
		commands.EventEntitlementSet,
		commands.EventRootSet,
		commands.EventTokenSet,
		commands.EventClaimed,
	}
	if sent != len(want) || len(publisher.topics) != len(want) {
		t.Fatalf("expected %d events, sent %d topics %v", len(want), sent, publisher.topics)
	}
	for i, topic := range want {
		if publisher.topics[i] != topic {
			t.Fatalf("event %d: expected topic %s, got %s", i, topic, publisher.topics[i])
		}
		if err := publisher.events[i].Validate(); err != nil {
			t.Fatalf("event %d: invalid envelope: %v", i, err)
		}
	}
	claimed := publisher.events[len(want)-1]
	if claimed.PartitionKey != user2.Hex() || claimed.SourceService != "claim-engine" {
		t.Fatalf("unexpected claimed envelope %+v", claimed)
	}

	again, err := relay.RunOnce(ctx)
	if err != nil || again != 0 {
		t.Fatalf("expected nothing left to relay, got %d err=%v", again, err)
	}
}
