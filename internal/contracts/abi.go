package contracts

import (
	"strings"
	"sync"

	"github.com/ethereum/go-ethereum/accounts/abi"
)

const paymentABIJSON = `[
  {
    "anonymous": false,
    "inputs": [
      {"indexed": true, "internalType": "address", "name": "user", "type": "address"},
      {"indexed": false, "internalType": "uint256", "name": "receiptId", "type": "uint256"}
    ],
    "name": "ConsultPaid",
    "type": "event"
  },
  {
    "anonymous": false,
    "inputs": [
      {"indexed": true, "internalType": "address", "name": "user", "type": "address"},
      {"indexed": false, "internalType": "uint256", "name": "receiptId", "type": "uint256"}
    ],
    "name": "MintingPaid",
    "type": "event"
  },
  {
    "inputs": [],
    "name": "getCurrentReceiptId",
    "outputs": [{"internalType": "uint256", "name": "", "type": "uint256"}],
    "stateMutability": "view",
    "type": "function"
  }
]`

const erc721ABIJSON = `[
  {
    "inputs": [
      {"internalType": "address", "name": "to", "type": "address"},
      {"internalType": "string", "name": "uri", "type": "string"}
    ],
    "name": "safeMint",
    "outputs": [{"internalType": "uint256", "name": "", "type": "uint256"}],
    "stateMutability": "nonpayable",
    "type": "function"
  },
  {
    "inputs": [{"internalType": "uint256", "name": "tokenId", "type": "uint256"}],
    "name": "tokenURI",
    "outputs": [{"internalType": "string", "name": "", "type": "string"}],
    "stateMutability": "view",
    "type": "function"
  },
  {
    "inputs": [{"internalType": "uint256", "name": "tokenId", "type": "uint256"}],
    "name": "ownerOf",
    "outputs": [{"internalType": "address", "name": "", "type": "address"}],
    "stateMutability": "view",
    "type": "function"
  },
  {
    "anonymous": false,
    "inputs": [
      {"indexed": true, "internalType": "address", "name": "from", "type": "address"},
      {"indexed": true, "internalType": "address", "name": "to", "type": "address"},
      {"indexed": true, "internalType": "uint256", "name": "tokenId", "type": "uint256"}
    ],
    "name": "Transfer",
    "type": "event"
  }
]`

var (
	paymentABI     abi.ABI
	paymentABIOnce sync.Once
	paymentABIErr  error

	erc721ABI     abi.ABI
	erc721ABIOnce sync.Once
	erc721ABIErr  error
)

// PaymentABI returns the parsed consult/minting payment contract ABI.
func PaymentABI() (abi.ABI, error) {
	paymentABIOnce.Do(func() {
		paymentABI, paymentABIErr = abi.JSON(strings.NewReader(paymentABIJSON))
	})
	return paymentABI, paymentABIErr
}

// ERC721ABI returns the parsed minimal ERC-721 mint interface.
func ERC721ABI() (abi.ABI, error) {
	erc721ABIOnce.Do(func() {
		erc721ABI, erc721ABIErr = abi.JSON(strings.NewReader(erc721ABIJSON))
	})
	return erc721ABI, erc721ABIErr
}
