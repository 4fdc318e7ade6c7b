package ledger_test

import (
	"context"
	"errors"
	"math/big"
	"sync"
	"testing"
	"time"

	claimengine "merkledrop/contexts/token-distribution/claim-engine"
	"merkledrop/contexts/token-distribution/claim-engine/adapters/ledger"
	"merkledrop/contexts/token-distribution/claim-engine/adapters/memory"
	domainerrors "merkledrop/contexts/token-distribution/claim-engine/domain/errors"
	"merkledrop/contexts/token-distribution/claim-engine/ports"
	"merkledrop/contracts/merkle"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
)

// chainBackend accepts every transaction and serves receipts only when one is
// configured, which models a node whose transactions stay in the mempool.
type chainBackend struct {
	mu      sync.Mutex
	sent    []*types.Transaction
	sendErr error
	receipt *types.Receipt
}

func (b *chainBackend) broadcasts() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.sent)
}

func (b *chainBackend) CodeAt(context.Context, common.Address, *big.Int) ([]byte, error) {
	return []byte{0x60}, nil
}

func (b *chainBackend) CallContract(context.Context, ethereum.CallMsg, *big.Int) ([]byte, error) {
	return nil, errors.New("calls are not served")
}

func (b *chainBackend) EstimateGas(context.Context, ethereum.CallMsg) (uint64, error) {
	return 60_000, nil
}

func (b *chainBackend) SuggestGasPrice(context.Context) (*big.Int, error) {
	return big.NewInt(1_000_000_000), nil
}

func (b *chainBackend) SuggestGasTipCap(context.Context) (*big.Int, error) {
	return big.NewInt(1), nil
}

func (b *chainBackend) SendTransaction(_ context.Context, tx *types.Transaction) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.sendErr != nil {
		return b.sendErr
	}
	b.sent = append(b.sent, tx)
	return nil
}

// HeaderByNumber reports a pre-London head so transfers are built as legacy transactions.
func (b *chainBackend) HeaderByNumber(context.Context, *big.Int) (*types.Header, error) {
	return &types.Header{Number: big.NewInt(1)}, nil
}

func (b *chainBackend) PendingCodeAt(context.Context, common.Address) ([]byte, error) {
	return []byte{0x60}, nil
}

func (b *chainBackend) PendingNonceAt(context.Context, common.Address) (uint64, error) {
	return uint64(b.broadcasts()), nil
}

func (b *chainBackend) FilterLogs(context.Context, ethereum.FilterQuery) ([]types.Log, error) {
	return nil, nil
}

func (b *chainBackend) SubscribeFilterLogs(context.Context, ethereum.FilterQuery, chan<- types.Log) (ethereum.Subscription, error) {
	return nil, errors.New("subscriptions are not served")
}

func (b *chainBackend) TransactionReceipt(context.Context, common.Hash) (*types.Receipt, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.receipt == nil {
		return nil, ethereum.NotFound
	}
	return b.receipt, nil
}

type rpcRejection struct{ message string }

func (e rpcRejection) Error() string  { return e.message }
func (e rpcRejection) ErrorCode() int { return -32000 }

func newERC20Ledger(t *testing.T, backend *chainBackend, confirm time.Duration) *ledger.ERC20Ledger {
	t.Helper()
	key, err := crypto.GenerateKey()
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}
	transactor, err := bind.NewKeyedTransactorWithChainID(key, big.NewInt(31337))
	if err != nil {
		t.Fatalf("transactor: %v", err)
	}
	erc20, err := ledger.NewERC20Ledger(backend, transactor, ledger.ERC20Settings{
		SubmitTimeout:  time.Second,
		ConfirmTimeout: confirm,
	}, nil)
	if err != nil {
		t.Fatalf("new erc20 ledger: %v", err)
	}
	return erc20
}

var (
	erc20Token = common.HexToAddress("0x5FbDB2315678afecb367f032d93F642f64180aa3")
	recipient  = common.HexToAddress("0x70997970C51812dc3A010C7d01b50e0d17dc79C8")
)

func TestERC20TransferOutcomes(t *testing.T) {
	tests := []struct {
		name        string
		backend     *chainBackend
		wantPending bool
		wantErr     error
		wantSent    int
	}{
		{
			name:     "mined",
			backend:  &chainBackend{receipt: &types.Receipt{Status: types.ReceiptStatusSuccessful, BlockNumber: big.NewInt(2)}},
			wantSent: 1,
		},
		{
			name:     "reverted",
			backend:  &chainBackend{receipt: &types.Receipt{Status: types.ReceiptStatusFailed, BlockNumber: big.NewInt(2)}},
			wantErr:  ledger.ErrTransactionReverted,
			wantSent: 1,
		},
		{
			name:        "never mined",
			backend:     &chainBackend{},
			wantPending: true,
			wantSent:    1,
		},
		{
			name:    "rejected by node",
			backend: &chainBackend{sendErr: rpcRejection{message: "nonce too low"}},
		},
		{
			name:        "connection lost during send",
			backend:     &chainBackend{sendErr: errors.New("connection reset by peer")},
			wantPending: true,
		},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			erc20 := newERC20Ledger(t, tc.backend, 100*time.Millisecond)
			err := erc20.Transfer(context.Background(), erc20Token, recipient, big.NewInt(10))

			switch {
			case tc.wantPending:
				if !errors.Is(err, ports.ErrTransferPending) {
					t.Fatalf("expected ErrTransferPending, got %v", err)
				}
			case tc.wantErr != nil:
				if !errors.Is(err, tc.wantErr) {
					t.Fatalf("expected %v, got %v", tc.wantErr, err)
				}
			case tc.name == "rejected by node":
				if err == nil || errors.Is(err, ports.ErrTransferPending) {
					t.Fatalf("expected a definite failure, got %v", err)
				}
			default:
				if err != nil {
					t.Fatalf("transfer: %v", err)
				}
			}
			if got := tc.backend.broadcasts(); got != tc.wantSent {
				t.Fatalf("expected %d broadcasts, got %d", tc.wantSent, got)
			}
		})
	}
}

func TestERC20ConfirmationOutlivesCallerDeadline(t *testing.T) {
	backend := &chainBackend{}
	erc20 := newERC20Ledger(t, backend, 400*time.Millisecond)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	started := time.Now()
	err := erc20.Transfer(ctx, erc20Token, recipient, big.NewInt(10))
	if !errors.Is(err, ports.ErrTransferPending) {
		t.Fatalf("expected ErrTransferPending, got %v", err)
	}
	if errors.Is(err, context.Canceled) {
		t.Fatalf("confirmation must not follow caller cancellation: %v", err)
	}
	if elapsed := time.Since(started); elapsed < 400*time.Millisecond {
		t.Fatalf("expected the wait to run on the ledger timeout, returned after %s", elapsed)
	}
}

func TestClaimWithUnconfirmedTransferIsNotPaidTwice(t *testing.T) {
	owner := common.HexToAddress("0xf39Fd6e51aad88F6F4ce6aB8827279cffFb92266")
	other := common.HexToAddress("0x90F79bf6EB2c4f870365E785982E1f101E93b906")
	backend := &chainBackend{}
	erc20 := newERC20Ledger(t, backend, 300*time.Millisecond)
	store := memory.NewStore(nil)
	module := claimengine.NewModule(claimengine.Dependencies{
		Store:       store,
		Ledger:      erc20,
		Balances:    erc20,
		Clock:       store,
		IDGenerator: store,
	})

	ctx := context.Background()
	if _, err := module.Initialize(ctx, "drop-erc20", owner); err != nil {
		t.Fatalf("initialize: %v", err)
	}
	recipientLeaf := merkle.LeafHash(recipient, big.NewInt(1000))
	otherLeaf := merkle.LeafHash(other, big.NewInt(250))
	if err := module.SetAmountForUser(ctx, owner, recipient, big.NewInt(1000)); err != nil {
		t.Fatalf("set amount: %v", err)
	}
	if err := module.SetRoot(ctx, owner, merkle.HashPair(recipientLeaf, otherLeaf)); err != nil {
		t.Fatalf("set root: %v", err)
	}
	if err := module.SetToken(ctx, owner, erc20Token); err != nil {
		t.Fatalf("set token: %v", err)
	}
	proof := []common.Hash{otherLeaf}

	for attempt := 1; attempt <= 2; attempt++ {
		claimCtx, cancel := context.WithTimeout(ctx, 200*time.Millisecond)
		_, err := module.Claim(claimCtx, recipient, proof)
		cancel()
		switch attempt {
		case 1:
			if err != nil {
				t.Fatalf("expected the broadcast claim to be kept, got %v", err)
			}
		case 2:
			if !errors.Is(err, domainerrors.ErrClaimed) {
				t.Fatalf("expected ErrClaimed on retry, got %v", err)
			}
		}
	}

	if got := backend.broadcasts(); got != 1 {
		t.Fatalf("expected exactly one transfer broadcast, got %d", got)
	}
	claimed, err := module.IsClaimed(ctx, recipient)
	if err != nil {
		t.Fatalf("is claimed: %v", err)
	}
	if !claimed {
		t.Fatal("expected recipient to stay claimed while the transfer is pending")
	}
}
