// Package fortune orchestrates the consult lifecycle: calling the external
// fortune-generation API, persisting readings, and handing completed
// consults to the minting pipeline.
package fortune

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"
)

// Params is the payload for one fortune API call. ChainID carries the
// network key the payment was detected on.
type Params struct {
	TxHash        string `json:"txHash"`
	WalletAddress string `json:"walletAddress"`
	Consult       string `json:"consult"`
	Lang          string `json:"lang"`
	ReceiptID     string `json:"receiptId"`
	ChainID       string `json:"chainId"`
}

// Reading is one fortune result returned by the upstream API.
type Reading struct {
	DocumentID string `json:"documentId"`
	Consult    string `json:"consult"`
	Lang       string `json:"lang"`
	Sound      string `json:"sound"`
	Short      string `json:"short"`
	Long       string `json:"long"`
	Filename   string `json:"filename,omitempty"`
	Tarot      string `json:"tarot,omitempty"`
	TarotName  string `json:"tarotName,omitempty"`
}

// API is the outbound fortune-generation call.
type API interface {
	Call(ctx context.Context, p Params) ([]Reading, error)
}

// Client calls the fortune API over HTTP with an API-key header.
type Client struct {
	url    string
	apiKey string
	http   *http.Client
	logger *zap.Logger
}

func NewClient(url, apiKey string, logger *zap.Logger) *Client {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Client{
		url:    url,
		apiKey: apiKey,
		http:   &http.Client{Timeout: 60 * time.Second},
		logger: logger,
	}
}

func (c *Client) Call(ctx context.Context, p Params) ([]Reading, error) {
	body, err := json.Marshal(p)
	if err != nil {
		return nil, fmt.Errorf("marshal fortune params: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Fortun3-Key", c.apiKey)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("call fortune api: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, fmt.Errorf("fortune api status %d: %s", resp.StatusCode, strings.TrimSpace(string(raw)))
	}

	var readings []Reading
	if err := json.NewDecoder(resp.Body).Decode(&readings); err != nil {
		return nil, fmt.Errorf("decode fortune response: %w", err)
	}

	c.logger.Info("fortune api call successful", zap.Int("readings", len(readings)))
	return readings, nil
}
