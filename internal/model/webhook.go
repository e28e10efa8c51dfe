package model

import (
	"encoding/json"
	"time"
)

// NorditWebhook is the notification body pushed by the Nordit indexing
// provider. Only the fields the reconciliation trigger needs are typed; the
// audit log keeps the full raw payload separately.
type NorditWebhook struct {
	EventType string          `json:"eventType"`
	Protocol  string          `json:"protocol"`
	Network   string          `json:"network"`
	Messages  []NorditMessage `json:"messages,omitempty"`
}

// NorditMessage is one embedded token-transfer message.
type NorditMessage struct {
	BlockNumber     uint64 `json:"block_number"`
	FromAddress     string `json:"from_address"`
	ToAddress       string `json:"to_address"`
	Value           string `json:"value"`
	TransactionHash string `json:"transaction_hash"`
}

// WebhookAudit is the stored raw notification, kept even when processing
// fails so no notification is silently dropped.
type WebhookAudit struct {
	ID              string          `json:"id"`
	Chain           string          `json:"chain"`
	EventType       string          `json:"event_type"`
	Payload         json.RawMessage `json:"payload"`
	ProcessingError string          `json:"processing_error,omitempty"`
	CreatedAt       time.Time       `json:"created_at"`
}

// WebhookResponse acknowledges a received notification.
type WebhookResponse struct {
	Success     bool   `json:"success"`
	Message     string `json:"message"`
	Chain       string `json:"chain"`
	ProcessedAt string `json:"processedAt"`
}
