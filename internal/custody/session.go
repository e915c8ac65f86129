package custody

import (
	"context"
	"sync"

	"github.com/ethereum/go-ethereum/common"
	"github.com/pkg/errors"
)

// Session models the custody service's single active-wallet slot as an
// explicit resource. At most one hot wallet is active for signing at a
// time; switching must complete before any delegation step that
// references "the active hot wallet" runs, so Select serializes against
// every other session operation.
type Session struct {
	api API
	mu  sync.Mutex
}

// NewSession wraps a custody API in a session.
func NewSession(api API) *Session {
	return &Session{api: api}
}

// ActiveWallet returns the wallet currently selected for signing, or nil
// when the slot is empty.
func (s *Session) ActiveWallet(ctx context.Context) (*WalletSummary, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.activeWalletLocked(ctx)
}

func (s *Session) activeWalletLocked(ctx context.Context) (*WalletSummary, error) {
	wallets, err := s.api.ListWallets(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "failed to read custody wallet list")
	}
	for i := range wallets {
		if wallets[i].IsActiveInMCP {
			w := wallets[i]
			return &w, nil
		}
	}
	return nil, nil
}

// ActiveWalletAddress returns the active wallet's address, or nil when no
// wallet is active. A malformed address from the custody service is an
// error, not an empty slot.
func (s *Session) ActiveWalletAddress(ctx context.Context) (*common.Address, error) {
	wallet, err := s.ActiveWallet(ctx)
	if err != nil {
		return nil, err
	}
	if wallet == nil {
		return nil, nil
	}
	addr, ok := wallet.EthAddress()
	if !ok {
		return nil, errors.Errorf("custody service returned invalid address %q for wallet %s", wallet.Address, wallet.ID)
	}
	return &addr, nil
}

// Select makes walletID the active wallet and returns the previously
// active wallet, if any. The swap is atomic with respect to other session
// operations.
func (s *Session) Select(ctx context.Context, walletID string) (*WalletSummary, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	previous, err := s.activeWalletLocked(ctx)
	if err != nil {
		return nil, err
	}
	if previous != nil && previous.ID == walletID {
		return previous, nil
	}

	if err := s.api.SelectWallet(ctx, walletID); err != nil {
		return nil, err
	}
	return previous, nil
}

// Activate unlocks the selected wallet.
func (s *Session) Activate(ctx context.Context, password string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.api.ActivateWallet(ctx, password)
}

// Deactivate clears the active slot and returns the wallet that occupied
// it, if any.
func (s *Session) Deactivate(ctx context.Context) (*WalletSummary, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	previous, err := s.activeWalletLocked(ctx)
	if err != nil {
		return nil, err
	}
	if previous == nil {
		return nil, nil
	}
	if err := s.api.DeactivateWallet(ctx); err != nil {
		return nil, err
	}
	return previous, nil
}

// ListWallets returns the custody wallet summaries.
func (s *Session) ListWallets(ctx context.Context) ([]WalletSummary, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.api.ListWallets(ctx)
}

// SetLimits updates spending caps for a wallet.
func (s *Session) SetLimits(ctx context.Context, walletID string, limits WalletLimits) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.api.SetWalletLimits(ctx, walletID, limits)
}

// Rename changes a wallet's display name.
func (s *Session) Rename(ctx context.Context, walletID, name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.api.RenameWallet(ctx, walletID, name)
}

// ExportPrivateKey passes through a key export request.
func (s *Session) ExportPrivateKey(ctx context.Context, password string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.api.ExportPrivateKey(ctx, password)
}
