package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/gridlabs/grid-api/internal/custody"
)

// WalletHandler exposes the custody service's wallet session over HTTP.
type WalletHandler struct {
	session *custody.Session
}

// NewWalletHandler creates a new WalletHandler instance
func NewWalletHandler(session *custody.Session) *WalletHandler {
	return &WalletHandler{session: session}
}

// WalletListResponse wraps the custody wallet summaries.
type WalletListResponse struct {
	Object string                  `json:"object"`
	Data   []custody.WalletSummary `json:"data"`
}

// SelectWalletRequest names the wallet to make active.
type SelectWalletRequest struct {
	WalletID string `json:"wallet_id" binding:"required"`
}

// ActivateWalletRequest unlocks the selected wallet. The password is
// omitted for unencrypted wallets.
type ActivateWalletRequest struct {
	Password string `json:"password"`
}

// SetLimitsRequest updates spending caps for a wallet.
type SetLimitsRequest struct {
	WalletID string               `json:"wallet_id" binding:"required"`
	Limits   custody.WalletLimits `json:"limits" binding:"required"`
}

// RenameWalletRequest changes a wallet's display name.
type RenameWalletRequest struct {
	WalletID string `json:"wallet_id" binding:"required"`
	Name     string `json:"name" binding:"required"`
}

// SelectWalletResponse reports the swap, including the evicted wallet.
type SelectWalletResponse struct {
	Previous *custody.WalletSummary `json:"previous,omitempty"`
}

// ListWallets returns every custody-managed wallet.
func (h *WalletHandler) ListWallets(c *gin.Context) {
	wallets, err := h.session.ListWallets(c.Request.Context())
	if err != nil {
		sendError(c, http.StatusBadGateway, "Failed to list custody wallets", err)
		return
	}
	sendSuccess(c, http.StatusOK, WalletListResponse{Object: "list", Data: wallets})
}

// SelectWallet swaps the active signing wallet.
func (h *WalletHandler) SelectWallet(c *gin.Context) {
	var req SelectWalletRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		sendError(c, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	previous, err := h.session.Select(c.Request.Context(), req.WalletID)
	if err != nil {
		sendError(c, http.StatusBadGateway, "Failed to select wallet", err)
		return
	}
	sendSuccess(c, http.StatusOK, SelectWalletResponse{Previous: previous})
}

// ActivateWallet unlocks the selected wallet for signing.
func (h *WalletHandler) ActivateWallet(c *gin.Context) {
	var req ActivateWalletRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		sendError(c, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	if err := h.session.Activate(c.Request.Context(), req.Password); err != nil {
		sendError(c, http.StatusBadGateway, "Failed to activate wallet", err)
		return
	}
	sendSuccessMessage(c, http.StatusOK, "Wallet activated")
}

// DeactivateWallet clears the active slot.
func (h *WalletHandler) DeactivateWallet(c *gin.Context) {
	previous, err := h.session.Deactivate(c.Request.Context())
	if err != nil {
		sendError(c, http.StatusBadGateway, "Failed to deactivate wallet", err)
		return
	}
	sendSuccess(c, http.StatusOK, SelectWalletResponse{Previous: previous})
}

// SetLimits updates a wallet's spending caps.
func (h *WalletHandler) SetLimits(c *gin.Context) {
	var req SetLimitsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		sendError(c, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	if err := h.session.SetLimits(c.Request.Context(), req.WalletID, req.Limits); err != nil {
		sendError(c, http.StatusBadGateway, "Failed to update wallet limits", err)
		return
	}
	sendSuccessMessage(c, http.StatusOK, "Wallet limits updated")
}

// ExportKeyRequest unlocks a key export. The password is omitted for
// unencrypted wallets.
type ExportKeyRequest struct {
	Password string `json:"password"`
}

// ExportKeyResponse carries the exported key material.
type ExportKeyResponse struct {
	PrivateKey string `json:"private_key"`
}

// ExportKey passes a key export request through to the custody service.
// The key transits this process but is never logged or retained.
func (h *WalletHandler) ExportKey(c *gin.Context) {
	var req ExportKeyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		sendError(c, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	key, err := h.session.ExportPrivateKey(c.Request.Context(), req.Password)
	if err != nil {
		sendError(c, http.StatusBadGateway, "Failed to export private key", err)
		return
	}
	sendSuccess(c, http.StatusOK, ExportKeyResponse{PrivateKey: key})
}

// RenameWallet renames a custody wallet.
func (h *WalletHandler) RenameWallet(c *gin.Context) {
	var req RenameWalletRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		sendError(c, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	if err := h.session.Rename(c.Request.Context(), req.WalletID, req.Name); err != nil {
		sendError(c, http.StatusBadGateway, "Failed to rename wallet", err)
		return
	}
	sendSuccessMessage(c, http.StatusOK, "Wallet renamed")
}
