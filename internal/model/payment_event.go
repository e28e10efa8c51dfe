package model

import "time"

// EventKind selects which payment event a listener tracks and which
// collection its records land in.
type EventKind string

const (
	// KindConsult tracks ConsultPaid events, stored in the fortunes collection.
	KindConsult EventKind = "consult"
	// KindMinting tracks MintingPaid events, stored in the nfts collection.
	KindMinting EventKind = "minting"
)

// Collection returns the store collection backing this event kind.
func (k EventKind) Collection() string {
	if k == KindMinting {
		return "nfts"
	}
	return "fortunes"
}

// EventName returns the contract event name for this kind.
func (k EventKind) EventName() string {
	if k == KindMinting {
		return "MintingPaid"
	}
	return "ConsultPaid"
}

// PaymentEvent is one detected on-chain payment, normalized for storage.
// The (WalletAddress, ReceiptID, Network) tuple is unique per collection.
type PaymentEvent struct {
	ID            string    `json:"id"`
	WalletAddress string    `json:"wallet_address"`
	ReceiptID     string    `json:"receipt_id"`
	Network       string    `json:"network"`
	ChainID       uint64    `json:"chain_id,omitempty"`
	BlockExplorer string    `json:"block_explorer,omitempty"`
	BlockNumber   uint64    `json:"block_number"`
	TxHash        string    `json:"tx_hash"`
	Used          bool      `json:"used"`
	CreatedAt     time.Time `json:"created_at"`
}

// EventQuery filters stored payment events. Zero-valued fields are ignored.
type EventQuery struct {
	WalletAddress string
	TxHash        string
	BlockNumber   uint64
}
