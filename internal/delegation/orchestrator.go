package delegation

import (
	"context"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"

	"github.com/gridlabs/grid-api/internal/chain"
	"github.com/gridlabs/grid-api/internal/logger"
	"github.com/gridlabs/grid-api/internal/registry"
)

// PreconditionError rejects an operation invoked before its predecessor
// step is verified. It is returned synchronously, before any network
// call.
type PreconditionError struct {
	Op      OpKind
	Missing string
}

func (e *PreconditionError) Error() string {
	return fmt.Sprintf("cannot run %s: requires %s", e.Op, e.Missing)
}

// Orchestrator issues the delegation chain's transactions in the only
// valid order: mint, access-list note, signers note, paymaster approval.
// The ordering is enforced by per-operation preconditions against the
// current snapshot, not by a central sequencer.
type Orchestrator struct {
	submitter       chain.Submitter
	registryAddress common.Address
	implementation  common.Address
	trackers        map[OpKind]*Tracker

	// watchCtx bounds background confirmation watching to the process
	// lifetime, not to the request that submitted the transaction.
	watchCtx context.Context
	logger   *zap.Logger
}

// NewOrchestrator creates an orchestrator over the given trackers. The
// trackers map must contain an entry per operation kind it will submit.
func NewOrchestrator(watchCtx context.Context, submitter chain.Submitter, registryAddress, implementation common.Address, trackers map[OpKind]*Tracker) *Orchestrator {
	return &Orchestrator{
		submitter:       submitter,
		registryAddress: registryAddress,
		implementation:  implementation,
		trackers:        trackers,
		watchCtx:        watchCtx,
		logger:          logger.Log,
	}
}

// Tracker exposes the tracker for an operation kind.
func (o *Orchestrator) Tracker(kind OpKind) *Tracker {
	return o.trackers[kind]
}

// MintOperatorWallet mints the operator wallet sub-entry under the owner
// entry. The owner EOA calls execute on the owner TBA, which calls the
// registry's mint. The resulting TBA address resolves only after
// confirmation plus the settle delay.
func (o *Orchestrator) MintOperatorWallet(ctx context.Context, snap *Snapshot) (common.Hash, error) {
	switch snap.Identity.State {
	case IdentityVerified, IdentityIncorrectImplementation:
		return common.Hash{}, &PreconditionError{
			Op:      OpMintOperatorWallet,
			Missing: "an unminted operator entry (operator wallet already exists)",
		}
	case IdentityCheckError, IdentityImplementationCheckFailed:
		return common.Hash{}, &PreconditionError{
			Op:      OpMintOperatorWallet,
			Missing: "a readable operator entry (status check failed: " + snap.Identity.Err + ")",
		}
	}

	if snap.OwnerAddress == (common.Address{}) || snap.OwnerTBA == (common.Address{}) {
		return common.Hash{}, &PreconditionError{
			Op:      OpMintOperatorWallet,
			Missing: "an existing owner entry for " + snap.OwnerEntryName,
		}
	}
	if o.submitter.From() != snap.OwnerAddress {
		return common.Hash{}, &PreconditionError{
			Op: OpMintOperatorWallet,
			Missing: fmt.Sprintf("the entry owner's key (connected as %s, owner is %s)",
				o.submitter.From().Hex(), snap.OwnerAddress.Hex()),
		}
	}

	mintData, err := registry.PackMint(o.submitter.From(), registry.OperatorSubLabel, nil, o.implementation)
	if err != nil {
		return common.Hash{}, err
	}
	execData, err := registry.PackExecute(o.registryAddress, nil, mintData, registry.CallOperation)
	if err != nil {
		return common.Hash{}, err
	}

	return o.submit(ctx, OpMintOperatorWallet, snap.OwnerTBA, execData)
}

// SetAccessListNote writes the access-list note on the operator entry:
// the namehash of the signers note path under that entry. Re-issuing with
// the same entry writes the same value, so the operation is idempotent
// once confirmed.
func (o *Orchestrator) SetAccessListNote(ctx context.Context, snap *Snapshot) (common.Hash, error) {
	if snap.Identity.State != IdentityVerified && snap.Identity.State != IdentityIncorrectImplementation {
		return common.Hash{}, &PreconditionError{
			Op:      OpSetAccessListNote,
			Missing: "a minted operator wallet (run mint first)",
		}
	}

	noteData, err := registry.PackNote(registry.AccessListNoteKey, registry.EncodeAccessListValue(snap.OperatorEntryName))
	if err != nil {
		return common.Hash{}, err
	}
	execData, err := registry.PackExecute(o.registryAddress, nil, noteData, registry.CallOperation)
	if err != nil {
		return common.Hash{}, err
	}

	return o.submit(ctx, OpSetAccessListNote, snap.Identity.TBAAddress, execData)
}

// SetSignersNote writes the authorized hot wallet set. Each call replaces
// the full set; callers wanting to add a signer must pass the union.
func (o *Orchestrator) SetSignersNote(ctx context.Context, snap *Snapshot, signers []common.Address) (common.Hash, error) {
	switch snap.Delegation.State {
	case DelegationSignersNoteMissing, DelegationSignersNoteInvalidData,
		DelegationHotWalletNotInList, DelegationVerified:
		// Access-list note verified; proceed.
	case DelegationNeedsHotWallet:
		return common.Hash{}, &PreconditionError{
			Op:      OpSetSignersNote,
			Missing: "an active hot wallet (select one in the custody service first)",
		}
	default:
		return common.Hash{}, &PreconditionError{
			Op:      OpSetSignersNote,
			Missing: "a verified access-list note (set the access-list note first)",
		}
	}

	value, err := registry.EncodeSignersValue(signers)
	if err != nil {
		return common.Hash{}, err
	}
	noteData, err := registry.PackNote(registry.SignersNoteKey, value)
	if err != nil {
		return common.Hash{}, err
	}
	execData, err := registry.PackExecute(o.registryAddress, nil, noteData, registry.CallOperation)
	if err != nil {
		return common.Hash{}, err
	}

	return o.submit(ctx, OpSetSignersNote, snap.Identity.TBAAddress, execData)
}

// submit reserves the tracker, broadcasts, and hands the transaction to
// the tracker to follow. Submission failures release the reservation so a
// fresh attempt can be made immediately.
func (o *Orchestrator) submit(ctx context.Context, kind OpKind, tba common.Address, callData []byte) (common.Hash, error) {
	tracker, ok := o.trackers[kind]
	if !ok {
		return common.Hash{}, fmt.Errorf("no tracker configured for %s", kind)
	}
	if err := tracker.Begin(); err != nil {
		return common.Hash{}, err
	}

	txHash, err := o.submitter.SubmitExecute(ctx, tba, callData)
	if err != nil {
		tracker.Abort(o.watchCtx, err)
		return common.Hash{}, fmt.Errorf("failed to submit %s: %w", kind, err)
	}

	o.logger.Info("Delegation operation submitted",
		zap.String("op_kind", string(kind)),
		zap.String("tba", tba.Hex()),
		zap.String("tx_hash", txHash.Hex()),
	)

	tracker.Watch(o.watchCtx, txHash)
	return txHash, nil
}

// zeroAmount is used by revocations.
var zeroAmount = big.NewInt(0)
