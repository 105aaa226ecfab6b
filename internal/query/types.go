package query

import "github.com/google/uuid"

// VaultBalancesResponse lists an account's ledger balances. Amounts are
// 18-decimal fixed-point values serialized as decimal strings.
type VaultBalancesResponse struct {
	Account      uuid.UUID      `json:"account"`
	Balances     []AssetBalance `json:"balances"`
	AsOfSequence int64          `json:"as_of_sequence"`
}

// AssetBalance is one asset position within a vault response.
type AssetBalance struct {
	AccountPath string `json:"account_path"`
	AssetID     uint16 `json:"asset_id"`
	Asset       string `json:"asset"`
	Balance     string `json:"balance"`
}

// JournalHistoryEntry represents a journal entry for API queries.
type JournalHistoryEntry struct {
	JournalID     string `json:"journal_id"`
	BatchID       string `json:"batch_id"`
	EventRef      string `json:"event_ref"`
	Sequence      int64  `json:"sequence"`
	DebitAccount  string `json:"debit_account"`
	CreditAccount string `json:"credit_account"`
	AssetID       uint16 `json:"asset_id"`
	Amount        string `json:"amount"`
	JournalType   string `json:"journal_type"`
	Timestamp     int64  `json:"timestamp"`
}

// LiquidationHistoryEntry represents a completed liquidation.
type LiquidationHistoryEntry struct {
	Sequence         int64  `json:"sequence"`
	MarketID         string `json:"market_id"`
	Target           string `json:"target"`
	Liquidator       string `json:"liquidator"`
	CollateralSeized string `json:"collateral_seized"`
	FeeCollateral    string `json:"fee_collateral"`
	DebtRepaid       string `json:"debt_repaid"`
	Timestamp        string `json:"timestamp"`
}

// ParamHistoryEntry represents one applied admin change.
type ParamHistoryEntry struct {
	Sequence  int64  `json:"sequence"`
	MarketID  string `json:"market_id"`
	Caller    string `json:"caller"`
	Field     string `json:"field"`
	Value     string `json:"value"`
	Timestamp string `json:"timestamp"`
}

// IntegrityReport is the result of an integrity verification check.
type IntegrityReport struct {
	IsHealthy        bool              `json:"is_healthy"`
	HashChainBreaks  []int64           `json:"hash_chain_breaks,omitempty"`
	UnbalancedAssets []UnbalancedAsset `json:"unbalanced_assets,omitempty"`
}

// UnbalancedAsset represents an asset whose global balance sum is non-zero.
type UnbalancedAsset struct {
	AssetID   uint16 `json:"asset_id"`
	Imbalance string `json:"imbalance"`
}
