package delegation

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

// IdentityState discriminates IdentityStatus variants.
type IdentityState string

const (
	IdentityVerified                  IdentityState = "verified"
	IdentityNotFound                  IdentityState = "not_found"
	IdentityImplementationCheckFailed IdentityState = "implementation_check_failed"
	IdentityIncorrectImplementation   IdentityState = "incorrect_implementation"
	IdentityCheckError                IdentityState = "check_error"
)

// IdentityStatus classifies the operator wallet entry. Only the fields
// relevant to the state are populated; consumers must switch on State
// before reading payload fields.
type IdentityStatus struct {
	State IdentityState `json:"state"`

	// Populated when State is verified or incorrect_implementation.
	EntryName    string         `json:"entry_name,omitempty"`
	TBAAddress   common.Address `json:"tba_address,omitempty"`
	OwnerAddress common.Address `json:"owner_address,omitempty"`

	// Populated when State is incorrect_implementation. Deprecated
	// distinguishes a known prior implementation, where the entry keeps
	// read-only display, from an implementation this deployment has
	// never shipped.
	FoundImplementation      common.Address `json:"found_implementation,omitempty"`
	ExpectedImplementation   common.Address `json:"expected_implementation,omitempty"`
	ImplementationDeprecated bool           `json:"implementation_deprecated,omitempty"`

	// Populated when State is check_error or implementation_check_failed.
	Err string `json:"error,omitempty"`
}

// DelegationState discriminates DelegationStatus variants.
type DelegationState string

const (
	DelegationVerified                  DelegationState = "verified"
	DelegationNeedsIdentity             DelegationState = "needs_identity"
	DelegationNeedsHotWallet            DelegationState = "needs_hot_wallet"
	DelegationAccessListNoteMissing     DelegationState = "access_list_note_missing"
	DelegationAccessListNoteInvalidData DelegationState = "access_list_note_invalid_data"
	DelegationSignersNoteLookupError    DelegationState = "signers_note_lookup_error"
	DelegationSignersNoteMissing        DelegationState = "signers_note_missing"
	DelegationSignersNoteInvalidData    DelegationState = "signers_note_invalid_data"
	DelegationHotWalletNotInList        DelegationState = "hot_wallet_not_in_list"
	DelegationCheckError                DelegationState = "check_error"
)

// DelegationStatus classifies the delegation chain. Reason carries the
// human-readable cause for error and invalid-data variants; it is display
// material, not a machine contract.
type DelegationStatus struct {
	State  DelegationState `json:"state"`
	Reason string          `json:"reason,omitempty"`
}

// FundingStatusDetails carries per-balance need flags. A read failure on
// one balance does not block computing the flags for balances that did
// succeed; CheckErr records the first failure for display.
type FundingStatusDetails struct {
	OperatorEthBalance  *big.Int `json:"operator_eth_balance,omitempty"`
	OperatorUSDCBalance *big.Int `json:"operator_usdc_balance,omitempty"`
	HotWalletEthBalance *big.Int `json:"hot_wallet_eth_balance,omitempty"`

	OperatorNeedsEth  bool `json:"operator_needs_eth"`
	OperatorNeedsUSDC bool `json:"operator_needs_usdc"`
	HotWalletNeedsEth bool `json:"hot_wallet_needs_eth"`

	CheckErr string `json:"check_error,omitempty"`
}

// Snapshot is one derived view of the whole delegation chain. It is
// recomputed from chain reads on every refresh and never persisted.
type Snapshot struct {
	OwnerEntryName    string               `json:"owner_entry_name"`
	OperatorEntryName string               `json:"operator_entry_name"`
	OwnerAddress      common.Address       `json:"owner_address,omitempty"`
	OwnerTBA          common.Address       `json:"owner_tba,omitempty"`
	Identity          IdentityStatus       `json:"identity"`
	Delegation        DelegationStatus     `json:"delegation"`
	Funding           FundingStatusDetails `json:"funding"`

	// Paymaster approval is derived from the on-chain allowance, never
	// tracked locally, so it cannot drift from chain truth.
	PaymasterAllowance *big.Int `json:"paymaster_allowance,omitempty"`
	PaymasterApproved  bool     `json:"paymaster_approved"`

	// ActiveHotWallet is the custody-side signing address, when one is
	// selected.
	ActiveHotWallet *common.Address `json:"active_hot_wallet,omitempty"`
}

// PaymasterAvailable reports whether gasless features may be offered:
// both notes verified and the operator TBA on the current implementation.
// Entries on a deprecated implementation keep read-only display but lose
// funding and gasless features.
func (s *Snapshot) PaymasterAvailable() bool {
	return s.Identity.State == IdentityVerified && s.Delegation.State == DelegationVerified
}
