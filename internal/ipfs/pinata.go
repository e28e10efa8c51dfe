// Package ipfs pins NFT assets through Pinata, with a deterministic mock
// fallback when credentials are absent so startup never blocks on it.
package ipfs

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"fortunebridge/internal/model"
)

const defaultBaseURL = "https://api.pinata.cloud"

// Uploader is the asset-upload collaborator surface.
type Uploader interface {
	UploadMetadata(ctx context.Context, metadata model.NFTMetadata) (string, error)
	UploadImage(ctx context.Context, image []byte) (string, error)
}

// Config holds Pinata credentials and the HTTP gateway used to dereference
// ipfs:// URIs.
type Config struct {
	APIKey    string
	APISecret string
	Gateway   string
	BaseURL   string
}

// Client talks to the Pinata pinning API. Without credentials it serves
// mock CIDs instead of failing.
type Client struct {
	cfg    Config
	http   *http.Client
	logger *zap.Logger
	nowFn  func() time.Time
}

// NewClient builds a Pinata client. When credentials are configured it
// probes authentication once, logging the outcome either way.
func NewClient(ctx context.Context, cfg Config, logger *zap.Logger) *Client {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = defaultBaseURL
	}

	c := &Client{
		cfg:    cfg,
		http:   &http.Client{Timeout: 30 * time.Second},
		logger: logger,
		nowFn:  time.Now,
	}

	if !c.hasCredentials() {
		logger.Warn("pinata credentials not configured, using mock ipfs uploads")
		return c
	}

	if err := c.testAuthentication(ctx); err != nil {
		logger.Warn("pinata authentication failed", zap.Error(err))
	} else {
		logger.Info("connected to pinata")
	}
	return c
}

func (c *Client) hasCredentials() bool {
	return c.cfg.APIKey != "" && c.cfg.APISecret != ""
}

func (c *Client) testAuthentication(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.cfg.BaseURL+"/data/testAuthentication", nil)
	if err != nil {
		return err
	}
	c.setAuthHeaders(req)

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unexpected status %d", resp.StatusCode)
	}
	return nil
}

func (c *Client) setAuthHeaders(req *http.Request) {
	req.Header.Set("pinata_api_key", c.cfg.APIKey)
	req.Header.Set("pinata_secret_api_key", c.cfg.APISecret)
}

type pinResponse struct {
	IpfsHash string `json:"IpfsHash"`
}

// UploadMetadata pins a metadata document and returns its ipfs:// URI. On
// Pinata failure it falls back to a mock URI rather than failing the mint.
func (c *Client) UploadMetadata(ctx context.Context, metadata model.NFTMetadata) (string, error) {
	if !c.hasCredentials() {
		return c.mockURI("bafybeih"), nil
	}

	body, err := json.Marshal(map[string]any{
		"pinataContent": metadata,
		"pinataMetadata": map[string]string{
			"name": fmt.Sprintf("NFT-Metadata-%s-%d", metadata.Name, c.nowFn().UnixMilli()),
		},
	})
	if err != nil {
		return "", fmt.Errorf("marshal metadata: %w", err)
	}

	uri, err := c.pin(ctx, "/pinning/pinJSONToIPFS", "application/json", bytes.NewReader(body))
	if err != nil {
		c.logger.Error("metadata pin failed, using mock uri", zap.Error(err))
		return c.mockURI("bafybeih"), nil
	}
	return uri, nil
}

// UploadImage pins raw image bytes and returns their ipfs:// URI.
func (c *Client) UploadImage(ctx context.Context, image []byte) (string, error) {
	if !c.hasCredentials() {
		return c.mockURI("bafkreib"), nil
	}

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	part, err := mw.CreateFormFile("file", fmt.Sprintf("nft-image-%d.png", c.nowFn().UnixMilli()))
	if err != nil {
		return "", err
	}
	if _, err := part.Write(image); err != nil {
		return "", err
	}
	meta, _ := json.Marshal(map[string]string{"name": fmt.Sprintf("NFT-Image-%d", c.nowFn().UnixMilli())})
	if err := mw.WriteField("pinataMetadata", string(meta)); err != nil {
		return "", err
	}
	if err := mw.Close(); err != nil {
		return "", err
	}

	uri, err := c.pin(ctx, "/pinning/pinFileToIPFS", mw.FormDataContentType(), &buf)
	if err != nil {
		c.logger.Error("image pin failed, using mock uri", zap.Error(err))
		return c.mockURI("bafkreib"), nil
	}
	return uri, nil
}

func (c *Client) pin(ctx context.Context, path, contentType string, body io.Reader) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.BaseURL+path, body)
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", contentType)
	c.setAuthHeaders(req)

	resp, err := c.http.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return "", fmt.Errorf("pinata status %d: %s", resp.StatusCode, strings.TrimSpace(string(raw)))
	}

	var pinned pinResponse
	if err := json.NewDecoder(resp.Body).Decode(&pinned); err != nil {
		return "", fmt.Errorf("decode pinata response: %w", err)
	}
	if pinned.IpfsHash == "" {
		return "", fmt.Errorf("pinata response missing hash")
	}
	return "ipfs://" + pinned.IpfsHash, nil
}

func (c *Client) mockURI(prefix string) string {
	return fmt.Sprintf("ipfs://%s%d", prefix, c.nowFn().UnixNano())
}

// GatewayURL translates an ipfs:// URI into a dereferenceable HTTP URL.
// Non-IPFS URIs pass through unchanged.
func (c *Client) GatewayURL(uri string) string {
	return GatewayURL(c.cfg.Gateway, uri)
}

// GatewayURL translates an ipfs:// URI using the given gateway base.
func GatewayURL(gateway, uri string) string {
	if !strings.HasPrefix(uri, "ipfs://") {
		return uri
	}
	cid := strings.TrimPrefix(uri, "ipfs://")
	if gateway == "" {
		return "https://ipfs.io/ipfs/" + cid
	}
	if !strings.HasSuffix(gateway, "/") {
		gateway += "/"
	}
	return gateway + cid
}
