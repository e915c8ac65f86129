package delegation

import (
	"context"
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	"github.com/gridlabs/grid-api/internal/registry"
)

// PaymasterManager handles the ERC-4337 gas-sponsorship allowance with
// the same confirmation discipline as the other delegation steps. It is
// additionally gated on both notes being verified and the operator TBA
// sitting on the current implementation. Approval state is always
// derived from the on-chain allowance, never assumed from a local write.
type PaymasterManager struct {
	orchestrator *Orchestrator
	paymaster    common.Address
	usdcToken    common.Address
}

// NewPaymasterManager creates a manager issuing approvals to the given
// paymaster for the given token.
func NewPaymasterManager(orchestrator *Orchestrator, paymaster, usdcToken common.Address) *PaymasterManager {
	return &PaymasterManager{
		orchestrator: orchestrator,
		paymaster:    paymaster,
		usdcToken:    usdcToken,
	}
}

// Approve grants the paymaster an allowance from the operator TBA.
func (m *PaymasterManager) Approve(ctx context.Context, snap *Snapshot, amount *big.Int) (common.Hash, error) {
	if amount == nil || amount.Sign() <= 0 {
		return common.Hash{}, &PreconditionError{
			Op:      OpPaymasterApproval,
			Missing: "a positive approval amount (use revoke to zero the allowance)",
		}
	}
	return m.submitApproval(ctx, snap, amount)
}

// Revoke zeroes the paymaster allowance. The revocation is an approve
// with amount zero; it carries the same gating as approval so a revoke
// is never broadcast against an unverified chain.
func (m *PaymasterManager) Revoke(ctx context.Context, snap *Snapshot) (common.Hash, error) {
	return m.submitApproval(ctx, snap, zeroAmount)
}

func (m *PaymasterManager) submitApproval(ctx context.Context, snap *Snapshot, amount *big.Int) (common.Hash, error) {
	if snap.Identity.State == IdentityIncorrectImplementation {
		found := "unrecognized implementation"
		if snap.Identity.ImplementationDeprecated {
			found = "deprecated implementation"
		}
		return common.Hash{}, &PreconditionError{
			Op: OpPaymasterApproval,
			Missing: "the current TBA implementation (entry is on " + found + " " +
				snap.Identity.FoundImplementation.Hex() + ")",
		}
	}
	if snap.Identity.State != IdentityVerified {
		return common.Hash{}, &PreconditionError{
			Op:      OpPaymasterApproval,
			Missing: "a verified operator identity",
		}
	}
	switch snap.Delegation.State {
	case DelegationVerified, DelegationHotWalletNotInList:
		// Both notes verified. Whether the active custody wallet is a
		// member is a custody-side fact and does not gate the allowance.
	default:
		return common.Hash{}, &PreconditionError{
			Op:      OpPaymasterApproval,
			Missing: "verified access-list and signers notes (current state: " + string(snap.Delegation.State) + ")",
		}
	}

	approveData, err := registry.PackApprove(m.paymaster, amount)
	if err != nil {
		return common.Hash{}, err
	}
	execData, err := registry.PackExecute(m.usdcToken, nil, approveData, registry.CallOperation)
	if err != nil {
		return common.Hash{}, err
	}

	return m.orchestrator.submit(ctx, OpPaymasterApproval, snap.Identity.TBAAddress, execData)
}
