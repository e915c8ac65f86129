package custody

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"go.uber.org/zap"

	gridhttp "github.com/gridlabs/grid-api/internal/client/http"
	"github.com/gridlabs/grid-api/internal/logger"
)

//go:generate mockgen -source=client.go -destination=../mocks/custody_api_mock.go -package=mocks

// API is the custody service boundary. Each call is a request/response
// pair over the local wallet API; failures surface as a single error
// message with no structured taxonomy guaranteed.
type API interface {
	ListWallets(ctx context.Context) ([]WalletSummary, error)
	SelectWallet(ctx context.Context, walletID string) error
	ActivateWallet(ctx context.Context, password string) error
	DeactivateWallet(ctx context.Context) error
	SetWalletLimits(ctx context.Context, walletID string, limits WalletLimits) error
	ExportPrivateKey(ctx context.Context, password string) (string, error)
	RenameWallet(ctx context.Context, walletID, name string) error
}

// Client talks to the custody service over its local HTTP API.
type Client struct {
	http   *gridhttp.HTTPClient
	logger *zap.Logger
}

// NewClient creates a custody client for the given base URL. The API key
// is optional for local deployments.
func NewClient(baseURL, apiKey string) *Client {
	options := []gridhttp.ClientOption{
		gridhttp.WithBaseURL(baseURL),
		gridhttp.WithTimeout(15 * time.Second),
		gridhttp.WithRetryConfig(gridhttp.DefaultRetryConfig()),
	}
	if apiKey != "" {
		options = append(options, gridhttp.WithDefaultHeader("X-API-Key", apiKey))
	}

	return &Client{
		http:   gridhttp.NewHTTPClient(options...),
		logger: logger.Log,
	}
}

type walletListResponse struct {
	Wallets []WalletSummary `json:"wallets"`
}

type exportKeyResponse struct {
	PrivateKey string `json:"private_key"`
}

type messageResponse struct {
	Message string `json:"message"`
}

// ListWallets returns summaries for every custody-managed wallet.
func (c *Client) ListWallets(ctx context.Context) ([]WalletSummary, error) {
	resp, err := c.http.Get(ctx, "/wallets")
	if err != nil {
		return nil, errors.Wrap(err, "failed to list wallets")
	}

	var list walletListResponse
	if err := c.http.ProcessJSONResponse(resp, &list); err != nil {
		return nil, errors.Wrap(err, "failed to decode wallet list")
	}
	return list.Wallets, nil
}

// SelectWallet makes the given wallet the signing wallet for the session.
func (c *Client) SelectWallet(ctx context.Context, walletID string) error {
	if walletID == "" {
		return errors.New("wallet id is required")
	}

	body := map[string]string{"wallet_id": walletID}
	resp, err := c.http.Post(ctx, "/wallets/select", body)
	if err != nil {
		return errors.Wrap(err, "failed to select wallet")
	}

	var msg messageResponse
	return c.http.ProcessJSONResponse(resp, &msg)
}

// ActivateWallet unlocks the selected wallet for signing. The password is
// only needed for encrypted wallets.
func (c *Client) ActivateWallet(ctx context.Context, password string) error {
	body := map[string]string{}
	if password != "" {
		body["password"] = password
	}
	resp, err := c.http.Post(ctx, "/wallets/activate", body)
	if err != nil {
		return errors.Wrap(err, "failed to activate wallet")
	}

	var msg messageResponse
	return c.http.ProcessJSONResponse(resp, &msg)
}

// DeactivateWallet clears the active wallet slot.
func (c *Client) DeactivateWallet(ctx context.Context) error {
	resp, err := c.http.Post(ctx, "/wallets/deactivate", nil)
	if err != nil {
		return errors.Wrap(err, "failed to deactivate wallet")
	}

	var msg messageResponse
	return c.http.ProcessJSONResponse(resp, &msg)
}

// SetWalletLimits updates the spending caps for a wallet.
func (c *Client) SetWalletLimits(ctx context.Context, walletID string, limits WalletLimits) error {
	if walletID == "" {
		return errors.New("wallet id is required")
	}

	body := map[string]interface{}{
		"wallet_id": walletID,
		"limits":    limits,
	}
	resp, err := c.http.Post(ctx, "/wallets/limits", body)
	if err != nil {
		return errors.Wrap(err, "failed to set wallet limits")
	}

	var msg messageResponse
	return c.http.ProcessJSONResponse(resp, &msg)
}

// ExportPrivateKey returns the active wallet's private key. The custody
// service enforces its own password check; the key is passed through and
// never logged.
func (c *Client) ExportPrivateKey(ctx context.Context, password string) (string, error) {
	body := map[string]string{}
	if password != "" {
		body["password"] = password
	}
	resp, err := c.http.Post(ctx, "/wallets/export", body)
	if err != nil {
		return "", errors.Wrap(err, "failed to export private key")
	}

	var export exportKeyResponse
	if err := c.http.ProcessJSONResponse(resp, &export); err != nil {
		return "", errors.Wrap(err, "failed to decode export response")
	}
	return export.PrivateKey, nil
}

// RenameWallet changes a wallet's display name.
func (c *Client) RenameWallet(ctx context.Context, walletID, name string) error {
	if walletID == "" {
		return errors.New("wallet id is required")
	}
	if name == "" {
		return errors.New("wallet name is required")
	}

	body := map[string]string{
		"wallet_id": walletID,
		"name":      name,
	}
	resp, err := c.http.Post(ctx, "/wallets/rename", body)
	if err != nil {
		return errors.Wrap(err, "failed to rename wallet")
	}

	var msg messageResponse
	return c.http.ProcessJSONResponse(resp, &msg)
}
