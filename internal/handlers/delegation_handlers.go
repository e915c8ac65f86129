package handlers

import (
	"errors"
	"math/big"
	"net/http"

	"github.com/ethereum/go-ethereum/common"
	"github.com/gin-gonic/gin"

	"github.com/gridlabs/grid-api/internal/delegation"
	"github.com/gridlabs/grid-api/internal/registry"
)

// DelegationHandler exposes delegation status and the chain of
// provisioning operations over HTTP.
type DelegationHandler struct {
	service *delegation.Service
}

// NewDelegationHandler creates a new DelegationHandler instance
func NewDelegationHandler(service *delegation.Service) *DelegationHandler {
	return &DelegationHandler{service: service}
}

// TxResponse carries the hash of a submitted transaction. Submission is
// not confirmation; poll status or operations for the outcome.
type TxResponse struct {
	TxHash string `json:"tx_hash"`
}

// SetSignersRequest is the full replacement signer set.
type SetSignersRequest struct {
	Signers []string `json:"signers" binding:"required"`
}

// ApprovePaymasterRequest carries the allowance amount in the token's
// smallest unit, as a decimal string.
type ApprovePaymasterRequest struct {
	Amount string `json:"amount" binding:"required"`
}

// GetStatus returns the derived delegation snapshot for an owner entry.
func (h *DelegationHandler) GetStatus(c *gin.Context) {
	snap, err := h.service.Status(c.Request.Context(), c.Param("entry"))
	if err != nil {
		if errors.Is(err, registry.ErrInvalidEntryName) {
			sendError(c, http.StatusBadRequest, "Invalid entry name", err)
			return
		}
		sendError(c, http.StatusBadGateway, "Failed to derive delegation status", err)
		return
	}
	sendSuccess(c, http.StatusOK, snap)
}

// GetOperations returns the per-kind tracker states for an owner entry.
func (h *DelegationHandler) GetOperations(c *gin.Context) {
	ops, err := h.service.Operations(c.Param("entry"))
	if err != nil {
		sendError(c, http.StatusBadRequest, "Invalid entry name", err)
		return
	}
	sendSuccess(c, http.StatusOK, gin.H{"operations": ops})
}

// Mint mints the operator wallet sub-entry.
func (h *DelegationHandler) Mint(c *gin.Context) {
	txHash, err := h.service.MintOperatorWallet(c.Request.Context(), c.Param("entry"))
	if err != nil {
		handleOperationError(c, err)
		return
	}
	sendSuccess(c, http.StatusAccepted, TxResponse{TxHash: txHash.Hex()})
}

// SetAccessList writes the access-list note on the operator entry.
func (h *DelegationHandler) SetAccessList(c *gin.Context) {
	txHash, err := h.service.SetAccessListNote(c.Request.Context(), c.Param("entry"))
	if err != nil {
		handleOperationError(c, err)
		return
	}
	sendSuccess(c, http.StatusAccepted, TxResponse{TxHash: txHash.Hex()})
}

// SetSigners replaces the authorized signer set.
func (h *DelegationHandler) SetSigners(c *gin.Context) {
	var req SetSignersRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		sendError(c, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	signers := make([]common.Address, 0, len(req.Signers))
	for _, raw := range req.Signers {
		if !common.IsHexAddress(raw) {
			sendError(c, http.StatusBadRequest, "Invalid signer address: "+raw, nil)
			return
		}
		signers = append(signers, common.HexToAddress(raw))
	}

	txHash, err := h.service.SetSignersNote(c.Request.Context(), c.Param("entry"), signers)
	if err != nil {
		handleOperationError(c, err)
		return
	}
	sendSuccess(c, http.StatusAccepted, TxResponse{TxHash: txHash.Hex()})
}

// ApprovePaymaster grants the paymaster allowance from the operator TBA.
func (h *DelegationHandler) ApprovePaymaster(c *gin.Context) {
	var req ApprovePaymasterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		sendError(c, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	amount, ok := new(big.Int).SetString(req.Amount, 10)
	if !ok {
		sendError(c, http.StatusBadRequest, "Invalid amount: "+req.Amount, nil)
		return
	}

	txHash, err := h.service.ApprovePaymaster(c.Request.Context(), c.Param("entry"), amount)
	if err != nil {
		handleOperationError(c, err)
		return
	}
	sendSuccess(c, http.StatusAccepted, TxResponse{TxHash: txHash.Hex()})
}

// RevokePaymaster zeroes the paymaster allowance.
func (h *DelegationHandler) RevokePaymaster(c *gin.Context) {
	txHash, err := h.service.RevokePaymaster(c.Request.Context(), c.Param("entry"))
	if err != nil {
		handleOperationError(c, err)
		return
	}
	sendSuccess(c, http.StatusAccepted, TxResponse{TxHash: txHash.Hex()})
}
