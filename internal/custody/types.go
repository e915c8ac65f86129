package custody

import "github.com/ethereum/go-ethereum/common"

// WalletLimits are the spending caps the custody service enforces per
// hot wallet. Amounts are decimal strings in the given currency.
type WalletLimits struct {
	MaxPerCall string `json:"max_per_call"`
	MaxTotal   string `json:"max_total"`
	Currency   string `json:"currency"`
	TotalSpent string `json:"total_spent"`
}

// WalletSummary describes one custody-managed hot wallet. Key material
// never crosses this boundary; the engine only sees the address and the
// session flags.
type WalletSummary struct {
	ID            string       `json:"id"`
	Name          string       `json:"name"`
	Address       string       `json:"address"`
	IsEncrypted   bool         `json:"is_encrypted"`
	IsUnlocked    bool         `json:"is_unlocked"`
	IsActiveInMCP bool         `json:"is_active_in_mcp"`
	Limits        WalletLimits `json:"limits"`
}

// EthAddress parses the summary's address field.
func (w WalletSummary) EthAddress() (common.Address, bool) {
	if !common.IsHexAddress(w.Address) {
		return common.Address{}, false
	}
	return common.HexToAddress(w.Address), true
}
