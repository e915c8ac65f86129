package chain

import (
	"context"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/ethclient"
	"golang.org/x/time/rate"

	"github.com/gridlabs/grid-api/internal/registry"
)

//go:generate mockgen -source=reader.go -destination=../mocks/chain_reader_mock.go -package=mocks

// EntryRead is the resolved registry state for one entry.
type EntryRead struct {
	Found bool
	Owner common.Address
	TBA   common.Address
}

// Reader is the read-only accessor for registry-contract state and
// balances. It is stateless; every method is a point-in-time chain read.
type Reader interface {
	// Entry resolves ownership and the token-bound account for a name.
	// Found is false when the entry has never been minted.
	Entry(ctx context.Context, entryName string) (EntryRead, error)

	// Implementation returns the implementation address a TBA runs.
	Implementation(ctx context.Context, tba common.Address) (common.Address, error)

	// Note returns the raw note bytes stored under an entry for a key.
	// The second return is false when no note is set.
	Note(ctx context.Context, entryName, key string) ([]byte, bool, error)

	// EthBalance returns the native balance of an account in wei.
	EthBalance(ctx context.Context, account common.Address) (*big.Int, error)

	// TokenBalance returns an ERC-20 balance.
	TokenBalance(ctx context.Context, token, account common.Address) (*big.Int, error)

	// Allowance returns an ERC-20 allowance from owner to spender.
	Allowance(ctx context.Context, token, owner, spender common.Address) (*big.Int, error)
}

// EthReader implements Reader over an ethclient connection. Reads are
// rate limited so a burst of status refreshes cannot exhaust the RPC
// provider quota.
type EthReader struct {
	client          *ethclient.Client
	registryAddress common.Address
	limiter         *rate.Limiter
}

// NewEthReader creates a reader bound to one registry deployment.
func NewEthReader(client *ethclient.Client, registryAddress common.Address, readsPerSecond int) *EthReader {
	if readsPerSecond <= 0 {
		readsPerSecond = 20
	}
	return &EthReader{
		client:          client,
		registryAddress: registryAddress,
		limiter:         rate.NewLimiter(rate.Limit(readsPerSecond), readsPerSecond),
	}
}

func (r *EthReader) call(ctx context.Context, to common.Address, data []byte) ([]byte, error) {
	if err := r.limiter.Wait(ctx); err != nil {
		return nil, err
	}
	return r.client.CallContract(ctx, ethereum.CallMsg{To: &to, Data: data}, nil)
}

// Entry resolves a registry entry by namehash.
func (r *EthReader) Entry(ctx context.Context, entryName string) (EntryRead, error) {
	node := registry.Namehash(entryName)

	ownerData, err := registry.PackOwnerOf(node)
	if err != nil {
		return EntryRead{}, err
	}
	ownerOut, err := r.call(ctx, r.registryAddress, ownerData)
	if err != nil {
		return EntryRead{}, fmt.Errorf("failed to read owner of %s: %w", entryName, err)
	}
	owner, err := registry.UnpackAddress(ownerOut)
	if err != nil {
		return EntryRead{}, fmt.Errorf("failed to decode owner of %s: %w", entryName, err)
	}

	// A zero owner means the node was never minted.
	if owner == (common.Address{}) {
		return EntryRead{Found: false}, nil
	}

	accountData, err := registry.PackAccountOf(node)
	if err != nil {
		return EntryRead{}, err
	}
	accountOut, err := r.call(ctx, r.registryAddress, accountData)
	if err != nil {
		return EntryRead{}, fmt.Errorf("failed to read account of %s: %w", entryName, err)
	}
	tba, err := registry.UnpackAddress(accountOut)
	if err != nil {
		return EntryRead{}, fmt.Errorf("failed to decode account of %s: %w", entryName, err)
	}

	return EntryRead{Found: true, Owner: owner, TBA: tba}, nil
}

// Implementation reads the implementation address behind a TBA.
func (r *EthReader) Implementation(ctx context.Context, tba common.Address) (common.Address, error) {
	data, err := registry.PackImplementationOf(tba)
	if err != nil {
		return common.Address{}, err
	}
	out, err := r.call(ctx, r.registryAddress, data)
	if err != nil {
		return common.Address{}, fmt.Errorf("failed to read implementation of %s: %w", tba.Hex(), err)
	}
	impl, err := registry.UnpackAddress(out)
	if err != nil {
		return common.Address{}, fmt.Errorf("failed to decode implementation of %s: %w", tba.Hex(), err)
	}
	return impl, nil
}

// Note reads raw note bytes for an entry and key. Empty bytes mean the
// note is unset; decode failures are the caller's concern.
func (r *EthReader) Note(ctx context.Context, entryName, key string) ([]byte, bool, error) {
	node := registry.Namehash(entryName)
	data, err := registry.PackNoteOf(node, key)
	if err != nil {
		return nil, false, err
	}
	out, err := r.call(ctx, r.registryAddress, data)
	if err != nil {
		return nil, false, fmt.Errorf("failed to read note %s of %s: %w", key, entryName, err)
	}
	value, err := registry.UnpackBytes(out)
	if err != nil {
		return nil, false, fmt.Errorf("failed to decode note %s of %s: %w", key, entryName, err)
	}
	if len(value) == 0 {
		return nil, false, nil
	}
	return value, true, nil
}

// EthBalance reads a native balance.
func (r *EthReader) EthBalance(ctx context.Context, account common.Address) (*big.Int, error) {
	if err := r.limiter.Wait(ctx); err != nil {
		return nil, err
	}
	balance, err := r.client.BalanceAt(ctx, account, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to read ETH balance of %s: %w", account.Hex(), err)
	}
	return balance, nil
}

// TokenBalance reads an ERC-20 balance.
func (r *EthReader) TokenBalance(ctx context.Context, token, account common.Address) (*big.Int, error) {
	data, err := registry.PackBalanceOf(account)
	if err != nil {
		return nil, err
	}
	out, err := r.call(ctx, token, data)
	if err != nil {
		return nil, fmt.Errorf("failed to read token balance of %s: %w", account.Hex(), err)
	}
	return registry.UnpackUint256(out)
}

// Allowance reads an ERC-20 allowance.
func (r *EthReader) Allowance(ctx context.Context, token, owner, spender common.Address) (*big.Int, error) {
	data, err := registry.PackAllowance(owner, spender)
	if err != nil {
		return nil, err
	}
	out, err := r.call(ctx, token, data)
	if err != nil {
		return nil, fmt.Errorf("failed to read allowance %s -> %s: %w", owner.Hex(), spender.Hex(), err)
	}
	return registry.UnpackUint256(out)
}
