package model

// NetworkConfig is the static per-network configuration, immutable for the
// process lifetime.
type NetworkConfig struct {
	Key                string   `json:"key" mapstructure:"key"`
	ChainID            uint64   `json:"chain_id" mapstructure:"chain-id"`
	RPCURL             string   `json:"rpc_url" mapstructure:"rpc-url"`
	ContractAddress    string   `json:"contract_address" mapstructure:"contract-address"`
	NFTContractAddress string   `json:"nft_contract_address" mapstructure:"nft-contract-address"`
	Name               string   `json:"name" mapstructure:"name"`
	Symbol             string   `json:"symbol" mapstructure:"symbol"`
	BlockExplorer      string   `json:"block_explorer" mapstructure:"block-explorer"`
	Protocol           string   `json:"protocol" mapstructure:"protocol"`
	Network            string   `json:"network" mapstructure:"network"`
	NorditSupport      bool     `json:"nordit_support" mapstructure:"nordit-support"`
	SupportedTokens    []string `json:"supported_tokens" mapstructure:"supported-tokens"`
}
