package delegation_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/gridlabs/grid-api/internal/audit"
	"github.com/gridlabs/grid-api/internal/delegation"
	"github.com/gridlabs/grid-api/internal/mocks"
)

var (
	registryAddress = common.HexToAddress("0x8888888888888888888888888888888888888888")
	paymasterAddr   = common.HexToAddress("0x9999999999999999999999999999999999999999")
	usdcToken       = common.HexToAddress("0xaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa")
)

func newTestOrchestrator(submitter *mocks.MockSubmitter) *delegation.Orchestrator {
	trackers := make(map[delegation.OpKind]*delegation.Tracker)
	for _, kind := range []delegation.OpKind{
		delegation.OpMintOperatorWallet,
		delegation.OpSetAccessListNote,
		delegation.OpSetSignersNote,
		delegation.OpPaymasterApproval,
	} {
		trackers[kind] = delegation.NewTracker(
			kind, "alice.grid", 10*time.Millisecond,
			submitter.WaitMined, nil, audit.NopRecorder{},
		)
	}
	return delegation.NewOrchestrator(context.Background(), submitter, registryAddress, testImplementation, trackers)
}

// verifiedSnapshot derives the fully provisioned snapshot used as the
// operation baseline.
func verifiedSnapshot(t *testing.T) *delegation.Snapshot {
	t.Helper()
	return testDeriver().Derive(verifiedInputs(t))
}

func TestOrchestrator_MintRejectsExistingOperatorWallet(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	// No SubmitExecute expectation: a precondition failure must never
	// reach the chain.
	submitter := mocks.NewMockSubmitter(ctrl)
	orch := newTestOrchestrator(submitter)

	_, err := orch.MintOperatorWallet(context.Background(), verifiedSnapshot(t))

	var precondition *delegation.PreconditionError
	require.ErrorAs(t, err, &precondition)
	assert.Equal(t, delegation.OpMintOperatorWallet, precondition.Op)
}

func TestOrchestrator_MintRejectsUnreadableEntry(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()
	submitter := mocks.NewMockSubmitter(ctrl)
	orch := newTestOrchestrator(submitter)

	inputs := verifiedInputs(t)
	inputs.OperatorEntryErr = errors.New("rpc: connection refused")
	snap := testDeriver().Derive(inputs)

	_, err := orch.MintOperatorWallet(context.Background(), snap)

	var precondition *delegation.PreconditionError
	require.ErrorAs(t, err, &precondition)
	assert.Contains(t, err.Error(), "readable")
}

func TestOrchestrator_MintRejectsWrongSigner(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()
	submitter := mocks.NewMockSubmitter(ctrl)
	submitter.EXPECT().From().Return(otherWallet).AnyTimes()
	orch := newTestOrchestrator(submitter)

	inputs := verifiedInputs(t)
	inputs.OperatorEntry.Found = false
	snap := testDeriver().Derive(inputs)

	_, err := orch.MintOperatorWallet(context.Background(), snap)

	var precondition *delegation.PreconditionError
	require.ErrorAs(t, err, &precondition)
	assert.Contains(t, err.Error(), "owner")
}

func TestOrchestrator_MintSubmitsThroughOwnerTBA(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()
	submitter := mocks.NewMockSubmitter(ctrl)
	submitter.EXPECT().From().Return(ownerEOA).AnyTimes()

	txHash := common.HexToHash("0xfeed01")
	submitter.EXPECT().
		SubmitExecute(gomock.Any(), ownerTBA, gomock.Any()).
		Return(txHash, nil)
	submitter.EXPECT().
		WaitMined(gomock.Any(), txHash).
		Return(successReceipt(), nil)

	orch := newTestOrchestrator(submitter)

	inputs := verifiedInputs(t)
	inputs.OperatorEntry.Found = false
	snap := testDeriver().Derive(inputs)
	require.Equal(t, delegation.IdentityNotFound, snap.Identity.State)

	got, err := orch.MintOperatorWallet(context.Background(), snap)
	require.NoError(t, err)
	assert.Equal(t, txHash, got)

	waitForIdle(t, orch.Tracker(delegation.OpMintOperatorWallet))
}

func TestOrchestrator_AccessListNoteRequiresMintedOperator(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()
	submitter := mocks.NewMockSubmitter(ctrl)
	orch := newTestOrchestrator(submitter)

	inputs := verifiedInputs(t)
	inputs.OperatorEntry.Found = false
	snap := testDeriver().Derive(inputs)

	_, err := orch.SetAccessListNote(context.Background(), snap)

	var precondition *delegation.PreconditionError
	require.ErrorAs(t, err, &precondition)
	assert.Equal(t, delegation.OpSetAccessListNote, precondition.Op)
}

func TestOrchestrator_AccessListNoteAllowedOnDeprecatedImplementation(t *testing.T) {
	// Repairing the note chain on a deprecated implementation is legal;
	// only funding and paymaster features are gated on the current one.
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()
	submitter := mocks.NewMockSubmitter(ctrl)

	txHash := common.HexToHash("0xfeed02")
	submitter.EXPECT().
		SubmitExecute(gomock.Any(), operatorTBA, gomock.Any()).
		Return(txHash, nil)
	submitter.EXPECT().
		WaitMined(gomock.Any(), txHash).
		Return(successReceipt(), nil)

	orch := newTestOrchestrator(submitter)

	inputs := verifiedInputs(t)
	inputs.OperatorImplementation = oldImplementation
	snap := testDeriver().Derive(inputs)
	require.Equal(t, delegation.IdentityIncorrectImplementation, snap.Identity.State)

	got, err := orch.SetAccessListNote(context.Background(), snap)
	require.NoError(t, err)
	assert.Equal(t, txHash, got)

	waitForIdle(t, orch.Tracker(delegation.OpSetAccessListNote))
}

func TestOrchestrator_SignersNoteRequiresAccessListNote(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()
	submitter := mocks.NewMockSubmitter(ctrl)
	orch := newTestOrchestrator(submitter)

	inputs := verifiedInputs(t)
	inputs.AccessListNote = delegation.NoteRead{}
	snap := testDeriver().Derive(inputs)
	require.Equal(t, delegation.DelegationAccessListNoteMissing, snap.Delegation.State)

	_, err := orch.SetSignersNote(context.Background(), snap, []common.Address{hotWallet})

	var precondition *delegation.PreconditionError
	require.ErrorAs(t, err, &precondition)
	assert.Contains(t, err.Error(), "access-list")
}

func TestOrchestrator_SignersNoteRequiresActiveHotWallet(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()
	submitter := mocks.NewMockSubmitter(ctrl)
	orch := newTestOrchestrator(submitter)

	inputs := verifiedInputs(t)
	inputs.ActiveHotWallet = nil
	snap := testDeriver().Derive(inputs)

	_, err := orch.SetSignersNote(context.Background(), snap, []common.Address{hotWallet})

	var precondition *delegation.PreconditionError
	require.ErrorAs(t, err, &precondition)
	assert.Contains(t, err.Error(), "hot wallet")
}

func TestOrchestrator_SignersNoteReplacesFullSet(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()
	submitter := mocks.NewMockSubmitter(ctrl)

	txHash := common.HexToHash("0xfeed03")
	submitter.EXPECT().
		SubmitExecute(gomock.Any(), operatorTBA, gomock.Any()).
		Return(txHash, nil)
	submitter.EXPECT().
		WaitMined(gomock.Any(), txHash).
		Return(successReceipt(), nil)

	orch := newTestOrchestrator(submitter)

	// Re-writing while already verified is how a signer gets rotated.
	got, err := orch.SetSignersNote(context.Background(), verifiedSnapshot(t), []common.Address{hotWallet, otherWallet})
	require.NoError(t, err)
	assert.Equal(t, txHash, got)

	waitForIdle(t, orch.Tracker(delegation.OpSetSignersNote))
}

func TestOrchestrator_SignersNoteRejectsEmptySet(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()
	submitter := mocks.NewMockSubmitter(ctrl)
	orch := newTestOrchestrator(submitter)

	_, err := orch.SetSignersNote(context.Background(), verifiedSnapshot(t), nil)
	require.Error(t, err)

	// The tracker must be released for the next attempt.
	assert.NoError(t, orch.Tracker(delegation.OpSetSignersNote).Begin())
}

func TestOrchestrator_SubmissionFailureReleasesTracker(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()
	submitter := mocks.NewMockSubmitter(ctrl)
	submitter.EXPECT().
		SubmitExecute(gomock.Any(), operatorTBA, gomock.Any()).
		Return(common.Hash{}, errors.New("nonce too low"))

	orch := newTestOrchestrator(submitter)

	_, err := orch.SetSignersNote(context.Background(), verifiedSnapshot(t), []common.Address{hotWallet})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "nonce too low")

	state, _ := orch.Tracker(delegation.OpSetSignersNote).State()
	assert.Equal(t, delegation.TrackerIdle, state)
}

func TestOrchestrator_RejectsInFlightDuplicate(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()
	submitter := mocks.NewMockSubmitter(ctrl)

	blocked := make(chan struct{})
	defer close(blocked)

	txHash := common.HexToHash("0xfeed04")
	submitter.EXPECT().
		SubmitExecute(gomock.Any(), operatorTBA, gomock.Any()).
		Return(txHash, nil)
	submitter.EXPECT().
		WaitMined(gomock.Any(), txHash).
		DoAndReturn(func(ctx context.Context, _ common.Hash) (*types.Receipt, error) {
			<-blocked
			return nil, errors.New("abandoned")
		}).
		AnyTimes()

	orch := newTestOrchestrator(submitter)
	snap := verifiedSnapshot(t)

	_, err := orch.SetSignersNote(context.Background(), snap, []common.Address{hotWallet})
	require.NoError(t, err)

	_, err = orch.SetSignersNote(context.Background(), snap, []common.Address{hotWallet})
	assert.ErrorIs(t, err, delegation.ErrOperationInFlight)
}

func TestOrchestrator_AccessListNoteRewriteIsIdempotent(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()
	submitter := mocks.NewMockSubmitter(ctrl)

	var calls [][]byte
	submitter.EXPECT().
		SubmitExecute(gomock.Any(), operatorTBA, gomock.Any()).
		DoAndReturn(func(_ context.Context, _ common.Address, callData []byte) (common.Hash, error) {
			calls = append(calls, callData)
			return common.HexToHash("0xfeed05"), nil
		}).
		Times(2)
	submitter.EXPECT().
		WaitMined(gomock.Any(), gomock.Any()).
		Return(successReceipt(), nil).
		Times(2)

	orch := newTestOrchestrator(submitter)

	// The note is already set and verified; rewriting it must neither
	// error nor produce different calldata.
	snap := verifiedSnapshot(t)

	_, err := orch.SetAccessListNote(context.Background(), snap)
	require.NoError(t, err)
	waitForIdle(t, orch.Tracker(delegation.OpSetAccessListNote))

	_, err = orch.SetAccessListNote(context.Background(), snap)
	require.NoError(t, err)
	waitForIdle(t, orch.Tracker(delegation.OpSetAccessListNote))

	require.Len(t, calls, 2)
	assert.Equal(t, calls[0], calls[1])
	assert.Equal(t, delegation.DelegationVerified, testDeriver().Derive(verifiedInputs(t)).Delegation.State)
}
