package delegation_test

import (
	"context"
	"math/big"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/gridlabs/grid-api/internal/chain"
	"github.com/gridlabs/grid-api/internal/custody"
	"github.com/gridlabs/grid-api/internal/delegation"
	"github.com/gridlabs/grid-api/internal/mocks"
	"github.com/gridlabs/grid-api/internal/registry"
)

func newTestService(reader *mocks.MockReader, submitter *mocks.MockSubmitter, api *mocks.MockAPI) *delegation.Service {
	return delegation.NewService(context.Background(), delegation.ServiceConfig{
		Reader:             reader,
		Submitter:          submitter,
		Session:            custody.NewSession(api),
		RegistryAddress:    registryAddress,
		Implementation:     testImplementation,
		PaymasterAddress:   paymasterAddr,
		USDCTokenAddress:   usdcToken,
		SettleDelay:        10 * time.Millisecond,
		MinOperatorEthWei:  big.NewInt(1_000_000),
		MinOperatorUSDC:    big.NewInt(5_000_000),
		MinHotWalletEthWei: big.NewInt(500_000),
	})
}

func TestService_StatusForFreshOwner(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()
	reader := mocks.NewMockReader(ctrl)
	submitter := mocks.NewMockSubmitter(ctrl)
	api := mocks.NewMockAPI(ctrl)

	// Owner entry minted, operator sub-entry not. The dependent reads
	// never run when the operator entry is absent.
	reader.EXPECT().
		Entry(gomock.Any(), "alice.grid").
		Return(chain.EntryRead{Found: true, Owner: ownerEOA, TBA: ownerTBA}, nil)
	reader.EXPECT().
		Entry(gomock.Any(), "grid-wallet.alice.grid").
		Return(chain.EntryRead{Found: false}, nil)
	api.EXPECT().ListWallets(gomock.Any()).Return(nil, nil)

	service := newTestService(reader, submitter, api)

	snap, err := service.Status(context.Background(), "alice.grid")
	require.NoError(t, err)
	assert.Equal(t, delegation.IdentityNotFound, snap.Identity.State)
	assert.Equal(t, delegation.DelegationNeedsIdentity, snap.Delegation.State)
	assert.Equal(t, "grid-wallet.alice.grid", snap.OperatorEntryName)
}

func TestService_StatusNormalizesEntryName(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()
	reader := mocks.NewMockReader(ctrl)
	submitter := mocks.NewMockSubmitter(ctrl)
	api := mocks.NewMockAPI(ctrl)

	reader.EXPECT().
		Entry(gomock.Any(), "alice.grid").
		Return(chain.EntryRead{Found: true, Owner: ownerEOA, TBA: ownerTBA}, nil)
	reader.EXPECT().
		Entry(gomock.Any(), "grid-wallet.alice.grid").
		Return(chain.EntryRead{Found: false}, nil)
	api.EXPECT().ListWallets(gomock.Any()).Return(nil, nil)

	service := newTestService(reader, submitter, api)

	snap, err := service.Status(context.Background(), "  Alice.GRID  ")
	require.NoError(t, err)
	assert.Equal(t, "alice.grid", snap.OwnerEntryName)
}

func TestService_StatusRejectsInvalidEntryName(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()
	service := newTestService(mocks.NewMockReader(ctrl), mocks.NewMockSubmitter(ctrl), mocks.NewMockAPI(ctrl))

	_, err := service.Status(context.Background(), "")
	require.Error(t, err)
}

func TestService_OperationsStartIdle(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()
	service := newTestService(mocks.NewMockReader(ctrl), mocks.NewMockSubmitter(ctrl), mocks.NewMockAPI(ctrl))

	ops, err := service.Operations("alice.grid")
	require.NoError(t, err)
	require.Len(t, ops, 4)
	for _, op := range ops {
		assert.Equal(t, delegation.TrackerIdle, op.State)
		assert.Empty(t, op.TxHash)
	}
}

func TestService_OperationsRejectsInvalidEntryName(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()
	service := newTestService(mocks.NewMockReader(ctrl), mocks.NewMockSubmitter(ctrl), mocks.NewMockAPI(ctrl))

	for _, name := range []string{"", "bad..name", "."} {
		_, err := service.Operations(name)
		assert.ErrorIs(t, err, registry.ErrInvalidEntryName, name)
	}
}

// A manual status request landing inside the settle window must be served
// from the cached snapshot. The reader expectations are exact: one gather
// before the mint, one after settle, and nothing for the mid-window call.
func TestService_StatusDuringSettleWindowIsCoalesced(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()
	reader := mocks.NewMockReader(ctrl)
	submitter := mocks.NewMockSubmitter(ctrl)
	api := mocks.NewMockAPI(ctrl)

	settled := make(chan struct{})
	reader.EXPECT().
		Entry(gomock.Any(), "alice.grid").
		Return(chain.EntryRead{Found: true, Owner: ownerEOA, TBA: ownerTBA}, nil).
		Times(2)
	reader.EXPECT().
		Entry(gomock.Any(), "grid-wallet.alice.grid").
		Return(chain.EntryRead{Found: false}, nil).
		Times(2)
	gomock.InOrder(
		api.EXPECT().ListWallets(gomock.Any()).Return(nil, nil),
		api.EXPECT().ListWallets(gomock.Any()).
			DoAndReturn(func(context.Context) ([]custody.WalletSummary, error) {
				defer close(settled)
				return nil, nil
			}),
	)

	txHash := common.HexToHash("0xfade01")
	submitter.EXPECT().From().Return(ownerEOA).AnyTimes()
	submitter.EXPECT().
		SubmitExecute(gomock.Any(), ownerTBA, gomock.Any()).
		Return(txHash, nil)
	submitter.EXPECT().
		WaitMined(gomock.Any(), txHash).
		Return(successReceipt(), nil)

	service := delegation.NewService(context.Background(), delegation.ServiceConfig{
		Reader:             reader,
		Submitter:          submitter,
		Session:            custody.NewSession(api),
		RegistryAddress:    registryAddress,
		Implementation:     testImplementation,
		PaymasterAddress:   paymasterAddr,
		USDCTokenAddress:   usdcToken,
		SettleDelay:        250 * time.Millisecond,
		MinOperatorEthWei:  big.NewInt(1),
		MinOperatorUSDC:    big.NewInt(1),
		MinHotWalletEthWei: big.NewInt(1),
	})

	_, err := service.MintOperatorWallet(context.Background(), "alice.grid")
	require.NoError(t, err)

	// Wait for the confirmation to land, then query inside the window.
	deadline := time.Now().Add(2 * time.Second)
	for {
		require.True(t, time.Now().Before(deadline), "mint never reached the settle window")
		ops, err := service.Operations("alice.grid")
		require.NoError(t, err)
		if ops[0].State == delegation.TrackerConfirmed {
			break
		}
		time.Sleep(2 * time.Millisecond)
	}

	snap, err := service.Status(context.Background(), "alice.grid")
	require.NoError(t, err)
	assert.Equal(t, delegation.IdentityNotFound, snap.Identity.State)

	select {
	case <-settled:
	case <-time.After(2 * time.Second):
		t.Fatal("post-settle re-derivation never ran")
	}
	// Let the settle gather finish before the controller is checked.
	time.Sleep(50 * time.Millisecond)
}
