package chain

import (
	"context"
	"crypto/ecdsa"
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/ethclient"
	"go.uber.org/zap"

	"github.com/gridlabs/grid-api/internal/logger"
)

//go:generate mockgen -source=submitter.go -destination=../mocks/chain_submitter_mock.go -package=mocks

// Submitter signs and broadcasts execute transactions from the owner EOA
// and waits for their receipts. Waiting is unbounded: confirmation latency
// is unbounded and a locally imposed timeout could declare a transaction
// failed that later succeeds.
type Submitter interface {
	// From returns the owner EOA the submitter signs with.
	From() common.Address

	// SubmitExecute broadcasts a transaction calling the given TBA with
	// the given calldata and returns the transaction hash.
	SubmitExecute(ctx context.Context, tba common.Address, callData []byte) (common.Hash, error)

	// WaitMined blocks until the transaction has a receipt or the context
	// is cancelled.
	WaitMined(ctx context.Context, txHash common.Hash) (*types.Receipt, error)
}

// Wallet is the ethclient-backed Submitter.
type Wallet struct {
	client       *ethclient.Client
	chainID      *big.Int
	privateKey   *ecdsa.PrivateKey
	from         common.Address
	pollInterval time.Duration
	logger       *zap.Logger
}

// NewWallet creates a submitter from a hex-encoded private key.
func NewWallet(client *ethclient.Client, chainID int64, privateKeyHex string) (*Wallet, error) {
	key, err := crypto.HexToECDSA(strings.TrimPrefix(privateKeyHex, "0x"))
	if err != nil {
		return nil, fmt.Errorf("invalid owner private key: %w", err)
	}

	return &Wallet{
		client:       client,
		chainID:      big.NewInt(chainID),
		privateKey:   key,
		from:         crypto.PubkeyToAddress(key.PublicKey),
		pollInterval: 4 * time.Second,
		logger:       logger.Log,
	}, nil
}

// From returns the owner EOA address.
func (w *Wallet) From() common.Address {
	return w.from
}

// SubmitExecute builds, signs and broadcasts an EIP-1559 transaction to
// the TBA. It returns as soon as the transaction is accepted by the node;
// inclusion is observed separately via WaitMined.
func (w *Wallet) SubmitExecute(ctx context.Context, tba common.Address, callData []byte) (common.Hash, error) {
	nonce, err := w.client.PendingNonceAt(ctx, w.from)
	if err != nil {
		return common.Hash{}, fmt.Errorf("failed to get nonce: %w", err)
	}

	tipCap, err := w.client.SuggestGasTipCap(ctx)
	if err != nil {
		return common.Hash{}, fmt.Errorf("failed to get gas tip cap: %w", err)
	}

	head, err := w.client.HeaderByNumber(ctx, nil)
	if err != nil {
		return common.Hash{}, fmt.Errorf("failed to get chain head: %w", err)
	}

	// feeCap = 2*baseFee + tip leaves headroom for base fee growth while
	// the transaction is pending.
	feeCap := new(big.Int).Add(
		new(big.Int).Mul(head.BaseFee, big.NewInt(2)),
		tipCap,
	)

	gasLimit, err := w.client.EstimateGas(ctx, ethereum.CallMsg{
		From: w.from,
		To:   &tba,
		Data: callData,
	})
	if err != nil {
		return common.Hash{}, fmt.Errorf("failed to estimate gas: %w", err)
	}

	tx := types.NewTx(&types.DynamicFeeTx{
		ChainID:   w.chainID,
		Nonce:     nonce,
		GasTipCap: tipCap,
		GasFeeCap: feeCap,
		Gas:       gasLimit,
		To:        &tba,
		Value:     big.NewInt(0),
		Data:      callData,
	})

	signedTx, err := types.SignTx(tx, types.LatestSignerForChainID(w.chainID), w.privateKey)
	if err != nil {
		return common.Hash{}, fmt.Errorf("failed to sign transaction: %w", err)
	}

	if err := w.client.SendTransaction(ctx, signedTx); err != nil {
		return common.Hash{}, fmt.Errorf("failed to broadcast transaction: %w", err)
	}

	w.logger.Info("Transaction submitted",
		zap.String("tx_hash", signedTx.Hash().Hex()),
		zap.String("to", tba.Hex()),
		zap.Uint64("nonce", nonce),
	)

	return signedTx.Hash(), nil
}

// WaitMined polls for the receipt at a constant interval until one exists
// or the context is cancelled. There is no retry cap.
func (w *Wallet) WaitMined(ctx context.Context, txHash common.Hash) (*types.Receipt, error) {
	var receipt *types.Receipt

	operation := func() error {
		var err error
		receipt, err = w.client.TransactionReceipt(ctx, txHash)
		return err
	}

	poll := backoff.WithContext(backoff.NewConstantBackOff(w.pollInterval), ctx)
	if err := backoff.Retry(operation, poll); err != nil {
		return nil, fmt.Errorf("stopped waiting for receipt of %s: %w", txHash.Hex(), err)
	}

	return receipt, nil
}
