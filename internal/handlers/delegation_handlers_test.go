package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"math/big"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/gridlabs/grid-api/internal/chain"
	"github.com/gridlabs/grid-api/internal/custody"
	"github.com/gridlabs/grid-api/internal/delegation"
	"github.com/gridlabs/grid-api/internal/logger"
	"github.com/gridlabs/grid-api/internal/mocks"
)

func init() {
	logger.InitLogger("test")
	gin.SetMode(gin.TestMode)
}

var (
	testOwnerEOA = common.HexToAddress("0x3333333333333333333333333333333333333333")
	testOwnerTBA = common.HexToAddress("0x4444444444444444444444444444444444444444")
)

type handlerFixture struct {
	reader    *mocks.MockReader
	submitter *mocks.MockSubmitter
	api       *mocks.MockAPI
	router    *gin.Engine
}

func newHandlerFixture(t *testing.T) *handlerFixture {
	ctrl := gomock.NewController(t)
	t.Cleanup(ctrl.Finish)

	f := &handlerFixture{
		reader:    mocks.NewMockReader(ctrl),
		submitter: mocks.NewMockSubmitter(ctrl),
		api:       mocks.NewMockAPI(ctrl),
	}

	service := delegation.NewService(context.Background(), delegation.ServiceConfig{
		Reader:             f.reader,
		Submitter:          f.submitter,
		Session:            custody.NewSession(f.api),
		RegistryAddress:    common.HexToAddress("0x8888888888888888888888888888888888888888"),
		Implementation:     common.HexToAddress("0x1111111111111111111111111111111111111111"),
		PaymasterAddress:   common.HexToAddress("0x9999999999999999999999999999999999999999"),
		USDCTokenAddress:   common.HexToAddress("0xaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa"),
		SettleDelay:        10 * time.Millisecond,
		MinOperatorEthWei:  big.NewInt(1),
		MinOperatorUSDC:    big.NewInt(1),
		MinHotWalletEthWei: big.NewInt(1),
	})

	handler := NewDelegationHandler(service)
	f.router = gin.New()
	entry := f.router.Group("/api/v1/delegation/:entry")
	entry.GET("/status", handler.GetStatus)
	entry.GET("/operations", handler.GetOperations)
	entry.POST("/mint", handler.Mint)
	entry.POST("/signers", handler.SetSigners)
	entry.POST("/paymaster/approve", handler.ApprovePaymaster)
	return f
}

// expectFreshOwnerReads sets up the reads for an owner entry whose
// operator sub-entry was never minted.
func (f *handlerFixture) expectFreshOwnerReads() {
	f.reader.EXPECT().
		Entry(gomock.Any(), "alice.grid").
		Return(chain.EntryRead{Found: true, Owner: testOwnerEOA, TBA: testOwnerTBA}, nil).
		AnyTimes()
	f.reader.EXPECT().
		Entry(gomock.Any(), "grid-wallet.alice.grid").
		Return(chain.EntryRead{Found: false}, nil).
		AnyTimes()
	f.api.EXPECT().ListWallets(gomock.Any()).Return(nil, nil).AnyTimes()
}

func TestDelegationHandler_GetStatus(t *testing.T) {
	f := newHandlerFixture(t)
	f.expectFreshOwnerReads()

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/v1/delegation/alice.grid/status", nil)
	f.router.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)

	var snap delegation.Snapshot
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &snap))
	assert.Equal(t, delegation.IdentityNotFound, snap.Identity.State)
	assert.Equal(t, delegation.DelegationNeedsIdentity, snap.Delegation.State)
}

func TestDelegationHandler_GetOperations(t *testing.T) {
	f := newHandlerFixture(t)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/v1/delegation/alice.grid/operations", nil)
	f.router.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), string(delegation.TrackerIdle))
}

func TestDelegationHandler_SignersPreconditionIsConflict(t *testing.T) {
	f := newHandlerFixture(t)
	f.expectFreshOwnerReads()

	body, _ := json.Marshal(SetSignersRequest{Signers: []string{testOwnerEOA.Hex()}})
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/v1/delegation/alice.grid/signers", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	f.router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusConflict, w.Code)
}

func TestDelegationHandler_SignersRejectsBadAddress(t *testing.T) {
	f := newHandlerFixture(t)

	body, _ := json.Marshal(SetSignersRequest{Signers: []string{"not-an-address"}})
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/v1/delegation/alice.grid/signers", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	f.router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestDelegationHandler_ApproveRejectsBadAmount(t *testing.T) {
	f := newHandlerFixture(t)

	body, _ := json.Marshal(ApprovePaymasterRequest{Amount: "five"})
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/v1/delegation/alice.grid/paymaster/approve", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	f.router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestDelegationHandler_MintSubmits(t *testing.T) {
	f := newHandlerFixture(t)
	f.expectFreshOwnerReads()

	txHash := common.HexToHash("0xcafe01")
	f.submitter.EXPECT().From().Return(testOwnerEOA).AnyTimes()
	f.submitter.EXPECT().
		SubmitExecute(gomock.Any(), testOwnerTBA, gomock.Any()).
		Return(txHash, nil)
	waited := make(chan struct{})
	f.submitter.EXPECT().
		WaitMined(gomock.Any(), txHash).
		DoAndReturn(func(ctx context.Context, _ common.Hash) (*types.Receipt, error) {
			defer close(waited)
			return &types.Receipt{Status: types.ReceiptStatusSuccessful, BlockNumber: big.NewInt(1)}, nil
		})

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/v1/delegation/alice.grid/mint", nil)
	f.router.ServeHTTP(w, req)

	require.Equal(t, http.StatusAccepted, w.Code)

	var resp TxResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, txHash.Hex(), resp.TxHash)

	select {
	case <-waited:
	case <-time.After(2 * time.Second):
		t.Fatal("confirmation watcher never ran")
	}
	// Let the settle window drain before the mock controller is checked.
	time.Sleep(50 * time.Millisecond)
}

func TestDelegationHandler_GetStatusRejectsInvalidEntryName(t *testing.T) {
	f := newHandlerFixture(t)

	// No reader expectations: a malformed name must never reach the chain.
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/v1/delegation/bad..name/status", nil)
	f.router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "Invalid entry name")
}

func TestDelegationHandler_GetOperationsRejectsInvalidEntryName(t *testing.T) {
	f := newHandlerFixture(t)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/v1/delegation/bad..name/operations", nil)
	f.router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestDelegationHandler_MintRejectsInvalidEntryName(t *testing.T) {
	f := newHandlerFixture(t)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/v1/delegation/bad..name/mint", nil)
	f.router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}
