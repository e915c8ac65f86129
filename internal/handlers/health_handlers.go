package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/gin-gonic/gin"

	"github.com/gridlabs/grid-api/internal/custody"
)

type HealthHandler struct {
	ethClient *ethclient.Client
	session   *custody.Session
}

func NewHealthHandler(ethClient *ethclient.Client, session *custody.Session) *HealthHandler {
	return &HealthHandler{ethClient: ethClient, session: session}
}

type HealthResponse struct {
	Status string `json:"status"`
}

// ReadyResponse reports per-dependency reachability.
type ReadyResponse struct {
	Status  string `json:"status"`
	Chain   string `json:"chain"`
	Custody string `json:"custody"`
}

// Health reports process liveness.
func (h *HealthHandler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, HealthResponse{
		Status: "ok",
	})
}

// Ready checks the chain RPC and the custody service. Either failing
// makes the whole response 503; the per-dependency fields say which.
func (h *HealthHandler) Ready(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
	defer cancel()

	resp := ReadyResponse{Status: "ok", Chain: "ok", Custody: "ok"}
	status := http.StatusOK

	if _, err := h.ethClient.ChainID(ctx); err != nil {
		resp.Chain = err.Error()
		resp.Status = "degraded"
		status = http.StatusServiceUnavailable
	}
	if _, err := h.session.ListWallets(ctx); err != nil {
		resp.Custody = err.Error()
		resp.Status = "degraded"
		status = http.StatusServiceUnavailable
	}

	c.JSON(status, resp)
}
