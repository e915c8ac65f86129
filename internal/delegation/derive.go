package delegation

import (
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	"github.com/gridlabs/grid-api/internal/registry"
)

// Deriver is the pure status-derivation function plus the deployment
// constants it classifies against. It performs no I/O; every failure path
// is represented in the returned snapshot, never thrown.
type Deriver struct {
	// ExpectedImplementation is the TBA implementation required for a
	// fully verified identity.
	ExpectedImplementation common.Address

	// DeprecatedImplementations still resolve but disable funding and
	// gasless features.
	DeprecatedImplementations []common.Address

	MinOperatorEthWei  *big.Int
	MinOperatorUSDC    *big.Int
	MinHotWalletEthWei *big.Int
}

// Derive classifies identity, delegation and funding state from one set
// of gathered inputs. Rules apply in order; the first match wins, and any
// read failure short-circuits to a check-error variant rather than
// falling through, so partial state never classifies as more advanced
// than is provable.
func (d *Deriver) Derive(inputs *StatusInputs) *Snapshot {
	snap := &Snapshot{
		OwnerEntryName:    inputs.OwnerEntryName,
		OperatorEntryName: inputs.OperatorEntryName,
		ActiveHotWallet:   inputs.ActiveHotWallet,
	}
	if inputs.OwnerEntryErr == nil && inputs.OwnerEntry.Found {
		snap.OwnerAddress = inputs.OwnerEntry.Owner
		snap.OwnerTBA = inputs.OwnerEntry.TBA
	}

	snap.Identity = d.deriveIdentity(inputs)
	snap.Delegation = d.deriveDelegation(inputs, snap.Identity)
	snap.Funding = d.deriveFunding(inputs)

	if inputs.PaymasterAllowance.Err == nil && inputs.PaymasterAllowance.Value != nil {
		snap.PaymasterAllowance = inputs.PaymasterAllowance.Value
		snap.PaymasterApproved = inputs.PaymasterAllowance.Value.Sign() > 0
	}

	return snap
}

func (d *Deriver) deriveIdentity(inputs *StatusInputs) IdentityStatus {
	if inputs.OwnerEntryErr != nil {
		return IdentityStatus{State: IdentityCheckError, Err: inputs.OwnerEntryErr.Error()}
	}
	if inputs.OperatorEntryErr != nil {
		return IdentityStatus{State: IdentityCheckError, Err: inputs.OperatorEntryErr.Error()}
	}
	if !inputs.OperatorEntry.Found {
		return IdentityStatus{State: IdentityNotFound}
	}
	if inputs.OperatorImplementationErr != nil {
		return IdentityStatus{
			State: IdentityImplementationCheckFailed,
			Err:   inputs.OperatorImplementationErr.Error(),
		}
	}
	if inputs.OperatorImplementation != d.ExpectedImplementation {
		return IdentityStatus{
			State:                    IdentityIncorrectImplementation,
			EntryName:                inputs.OperatorEntryName,
			TBAAddress:               inputs.OperatorEntry.TBA,
			OwnerAddress:             inputs.OperatorEntry.Owner,
			FoundImplementation:      inputs.OperatorImplementation,
			ExpectedImplementation:   d.ExpectedImplementation,
			ImplementationDeprecated: d.isDeprecated(inputs.OperatorImplementation),
		}
	}
	return IdentityStatus{
		State:        IdentityVerified,
		EntryName:    inputs.OperatorEntryName,
		TBAAddress:   inputs.OperatorEntry.TBA,
		OwnerAddress: inputs.OperatorEntry.Owner,
	}
}

func (d *Deriver) isDeprecated(impl common.Address) bool {
	for _, known := range d.DeprecatedImplementations {
		if impl == known {
			return true
		}
	}
	return false
}

func (d *Deriver) deriveDelegation(inputs *StatusInputs, identity IdentityStatus) DelegationStatus {
	// Delegation is only evaluated when a TBA exists. Identity read
	// failures propagate as check errors; they are not "needs identity",
	// because an unreadable entry may well exist.
	switch identity.State {
	case IdentityCheckError, IdentityImplementationCheckFailed:
		return DelegationStatus{State: DelegationCheckError, Reason: identity.Err}
	case IdentityNotFound:
		return DelegationStatus{State: DelegationNeedsIdentity}
	}

	if inputs.ActiveHotWalletErr != nil {
		return DelegationStatus{State: DelegationCheckError, Reason: inputs.ActiveHotWalletErr.Error()}
	}
	if inputs.ActiveHotWallet == nil {
		return DelegationStatus{State: DelegationNeedsHotWallet}
	}

	if inputs.AccessListNote.Err != nil {
		return DelegationStatus{State: DelegationCheckError, Reason: inputs.AccessListNote.Err.Error()}
	}
	if !inputs.AccessListNote.Present {
		return DelegationStatus{State: DelegationAccessListNoteMissing}
	}

	pointer, err := registry.DecodeAccessListValue(inputs.AccessListNote.Value)
	if err != nil {
		return DelegationStatus{State: DelegationAccessListNoteInvalidData, Reason: err.Error()}
	}
	expected := registry.Namehash(registry.SignersNotePath(inputs.OperatorEntryName))
	if pointer != expected {
		return DelegationStatus{
			State: DelegationAccessListNoteInvalidData,
			Reason: fmt.Sprintf("access-list note points at %s, expected namehash of %s",
				pointer.Hex(), registry.SignersNotePath(inputs.OperatorEntryName)),
		}
	}

	if inputs.SignersNote.Err != nil {
		return DelegationStatus{State: DelegationSignersNoteLookupError, Reason: inputs.SignersNote.Err.Error()}
	}
	if !inputs.SignersNote.Present {
		return DelegationStatus{State: DelegationSignersNoteMissing}
	}

	signers, err := registry.DecodeSignersValue(inputs.SignersNote.Value)
	if err != nil {
		return DelegationStatus{State: DelegationSignersNoteInvalidData, Reason: err.Error()}
	}

	if !registry.SignersContain(signers, *inputs.ActiveHotWallet) {
		return DelegationStatus{State: DelegationHotWalletNotInList}
	}

	return DelegationStatus{State: DelegationVerified}
}

// deriveFunding is independent of identity and delegation: need flags are
// computed for every balance that read successfully, and the first read
// failure is recorded without blocking the others.
func (d *Deriver) deriveFunding(inputs *StatusInputs) FundingStatusDetails {
	details := FundingStatusDetails{}

	record := func(err error) {
		if err != nil && details.CheckErr == "" {
			details.CheckErr = err.Error()
		}
	}

	record(inputs.OperatorEth.Err)
	if inputs.OperatorEth.Err == nil && inputs.OperatorEth.Value != nil {
		details.OperatorEthBalance = inputs.OperatorEth.Value
		details.OperatorNeedsEth = inputs.OperatorEth.Value.Cmp(d.MinOperatorEthWei) < 0
	}

	record(inputs.OperatorUSDC.Err)
	if inputs.OperatorUSDC.Err == nil && inputs.OperatorUSDC.Value != nil {
		details.OperatorUSDCBalance = inputs.OperatorUSDC.Value
		details.OperatorNeedsUSDC = inputs.OperatorUSDC.Value.Cmp(d.MinOperatorUSDC) < 0
	}

	record(inputs.HotWalletEth.Err)
	if inputs.HotWalletEth.Err == nil && inputs.HotWalletEth.Value != nil {
		details.HotWalletEthBalance = inputs.HotWalletEth.Value
		details.HotWalletNeedsEth = inputs.HotWalletEth.Value.Cmp(d.MinHotWalletEthWei) < 0
	}

	return details
}
