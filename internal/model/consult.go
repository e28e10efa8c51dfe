package model

import (
	"encoding/json"
	"time"
)

// Consult is one completed fortune reading tied to a paid receipt. Created
// once after a successful fortune API call and never mutated afterwards
// except for UpdatedAt.
type Consult struct {
	ID            string          `json:"id"`
	Consult       string          `json:"consult"`
	Filename      string          `json:"filename,omitempty"`
	Lang          string          `json:"lang"`
	Short         string          `json:"short"`
	Long          string          `json:"long"`
	Sound         string          `json:"sound,omitempty"`
	Tarot         string          `json:"tarot,omitempty"`
	TarotName     string          `json:"tarot_name,omitempty"`
	TxHash        string          `json:"tx_hash"`
	WalletAddress string          `json:"wallet_address"`
	Network       string          `json:"network"`
	ChainID       uint64          `json:"chain_id,omitempty"`
	ReceiptID     string          `json:"receipt_id,omitempty"`
	Raw           json.RawMessage `json:"raw,omitempty"`
	CreatedAt     time.Time       `json:"created_at"`
	UpdatedAt     time.Time       `json:"updated_at"`
}
