package ledger

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/big"
	"strings"
	"time"

	application "merkledrop/contexts/token-distribution/claim-engine/application"
	"merkledrop/contexts/token-distribution/claim-engine/ports"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/rpc"
)

const erc20ABI = `[
	{"type":"function","name":"transfer","stateMutability":"nonpayable",
	 "inputs":[{"name":"to","type":"address"},{"name":"value","type":"uint256"}],
	 "outputs":[{"name":"","type":"bool"}]},
	{"type":"function","name":"balanceOf","stateMutability":"view",
	 "inputs":[{"name":"owner","type":"address"}],
	 "outputs":[{"name":"","type":"uint256"}]}
]`

var ErrTransactionReverted = errors.New("token transfer transaction reverted")

// Backend is the RPC surface the ERC20 ledger needs; *ethclient.Client satisfies it.
type Backend interface {
	bind.ContractBackend
	bind.DeployBackend
}

type ERC20Settings struct {
	// SubmitTimeout bounds handing the signed transaction to the node.
	SubmitTimeout time.Duration
	// ConfirmTimeout bounds waiting for the receipt. It runs on its own clock,
	// not the caller's deadline.
	ConfirmTimeout time.Duration
}

// ERC20Ledger pays claims from the signer's account of an ERC20 token and
// waits for the transfer to be mined.
type ERC20Ledger struct {
	backend    Backend
	transactor *bind.TransactOpts
	abi        abi.ABI
	settings   ERC20Settings
	logger     *slog.Logger
}

func NewERC20Ledger(backend Backend, transactor *bind.TransactOpts, settings ERC20Settings, logger *slog.Logger) (*ERC20Ledger, error) {
	if backend == nil || transactor == nil {
		return nil, errors.New("erc20 ledger requires a backend and a transactor")
	}
	parsed, err := abi.JSON(strings.NewReader(erc20ABI))
	if err != nil {
		return nil, err
	}
	if settings.SubmitTimeout <= 0 {
		settings.SubmitTimeout = 30 * time.Second
	}
	if settings.ConfirmTimeout <= 0 {
		settings.ConfirmTimeout = 2 * time.Minute
	}
	return &ERC20Ledger{
		backend:    backend,
		transactor: transactor,
		abi:        parsed,
		settings:   settings,
		logger:     application.ResolveLogger(logger),
	}, nil
}

// Holder is the account transfers are paid from.
func (l *ERC20Ledger) Holder() common.Address {
	return l.transactor.From
}

func (l *ERC20Ledger) contract(token common.Address) *bind.BoundContract {
	return bind.NewBoundContract(token, l.abi, l.backend, l.backend, l.backend)
}

// Transfer signs and sends an ERC20 transfer, then waits for its receipt.
// Once the node may hold the transaction, a missing outcome is reported as
// ports.ErrTransferPending rather than a failure.
func (l *ERC20Ledger) Transfer(ctx context.Context, token common.Address, to common.Address, amount *big.Int) error {
	opts := *l.transactor
	opts.Context = ctx
	opts.NoSend = true

	tx, err := l.contract(token).Transact(&opts, "transfer", to, amount)
	if err != nil {
		return fmt.Errorf("prepare transfer: %w", err)
	}

	sendCtx, cancelSend := context.WithTimeout(context.WithoutCancel(ctx), l.settings.SubmitTimeout)
	err = l.backend.SendTransaction(sendCtx, tx)
	cancelSend()
	if err != nil {
		var rejected rpc.Error
		if errors.As(err, &rejected) {
			return fmt.Errorf("submit transfer: %w", err)
		}
		// Transport errors leave it open whether the node accepted the transaction.
		return l.pending(token, to, amount, tx, err)
	}

	waitCtx, cancelWait := context.WithTimeout(context.WithoutCancel(ctx), l.settings.ConfirmTimeout)
	defer cancelWait()
	receipt, err := bind.WaitMined(waitCtx, l.backend, tx)
	if err != nil {
		return l.pending(token, to, amount, tx, err)
	}
	if receipt.Status != types.ReceiptStatusSuccessful {
		return fmt.Errorf("%w: %s", ErrTransactionReverted, tx.Hash().Hex())
	}

	l.logger.Info("erc20 transfer mined",
		"event", "claim_engine_erc20_transfer_mined",
		"module", "token-distribution/claim-engine",
		"layer", "adapter",
		"token", token.Hex(),
		"to", to.Hex(),
		"amount", amount.String(),
		"tx_hash", tx.Hash().Hex(),
		"block", receipt.BlockNumber.String(),
	)
	return nil
}

func (l *ERC20Ledger) pending(token, to common.Address, amount *big.Int, tx *types.Transaction, cause error) error {
	l.logger.Warn("erc20 transfer outcome pending",
		"event", "claim_engine_erc20_transfer_pending",
		"module", "token-distribution/claim-engine",
		"layer", "adapter",
		"token", token.Hex(),
		"to", to.Hex(),
		"amount", amount.String(),
		"tx_hash", tx.Hash().Hex(),
		"error", cause.Error(),
	)
	return fmt.Errorf("%w: tx %s: %w", ports.ErrTransferPending, tx.Hash().Hex(), cause)
}

func (l *ERC20Ledger) BalanceOf(ctx context.Context, token common.Address, holder common.Address) (*big.Int, error) {
	var out []interface{}
	if err := l.contract(token).Call(&bind.CallOpts{Context: ctx}, &out, "balanceOf", holder); err != nil {
		return nil, err
	}
	if len(out) != 1 {
		return nil, fmt.Errorf("balanceOf returned %d values", len(out))
	}
	balance := *abi.ConvertType(out[0], new(*big.Int)).(**big.Int)
	return balance, nil
}
