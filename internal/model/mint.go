package model

import "time"

// MintRecord is the persisted outcome of a successful NFT mint. Created
// exactly once per mint.
type MintRecord struct {
	ID              string    `json:"id"`
	ConsultID       string    `json:"consult_id"`
	ReceiptID       string    `json:"receipt_id"`
	TokenID         uint64    `json:"token_id"`
	TxHash          string    `json:"tx_hash"`
	ContractAddress string    `json:"contract_address"`
	MetadataURI     string    `json:"metadata_uri"`
	WalletAddress   string    `json:"wallet_address"`
	Network         string    `json:"network"`
	ChainID         uint64    `json:"chain_id"`
	CreatedAt       time.Time `json:"created_at"`
}

// MintResult is what the minting pipeline hands back to callers. Chain-level
// failures come back with Success=false and a classified Error rather than
// an error return.
type MintResult struct {
	Success         bool   `json:"success"`
	TxHash          string `json:"txHash,omitempty"`
	TokenID         uint64 `json:"tokenId,omitempty"`
	ContractAddress string `json:"contractAddress,omitempty"`
	ExplorerURL     string `json:"explorerUrl,omitempty"`
	MetadataURI     string `json:"metadataUri,omitempty"`
	HTTPMetadataURI string `json:"httpMetadataUri,omitempty"`
	Error           string `json:"error,omitempty"`
}

// NFTAttribute is one trait on NFT metadata.
type NFTAttribute struct {
	TraitType string `json:"trait_type"`
	Value     any    `json:"value"`
}

// NFTMetadata is the ERC-721 metadata document pinned to IPFS.
type NFTMetadata struct {
	Name        string         `json:"name"`
	Description string         `json:"description"`
	Image       string         `json:"image"`
	Attributes  []NFTAttribute `json:"attributes"`
}
