package model

import "time"

// ChatRequest is the request body for POST /ai-agent/chat.
type ChatRequest struct {
	Query          string `json:"query"`
	ConversationID string `json:"conversationId,omitempty"`
}

// ChatResult is the full payload produced for one answered query. It is what
// the query cache stores and what the chat endpoint returns.
type ChatResult struct {
	Message         string         `json:"message"`
	HTML            string         `json:"html"`
	ConversationID  string         `json:"conversationId"`
	Timestamp       time.Time      `json:"timestamp"`
	SearchMetadata  map[string]any `json:"searchMetadata,omitempty"`
	SessionMetadata map[string]any `json:"sessionMetadata,omitempty"`
}

// EnhancedSearchRequest is the request body for POST /ai-agent/search/enhanced.
type EnhancedSearchRequest struct {
	Query       string   `json:"query"`
	EntityTypes []string `json:"entityTypes,omitempty"`
	DateFrom    string   `json:"dateFrom,omitempty"`
	DateTo      string   `json:"dateTo,omitempty"`
	Limit       int      `json:"limit,omitempty"`
}

// ReindexRequest is the request body for POST /ai-agent/sync/reindex.
type ReindexRequest struct {
	EntityType string `json:"entityType"`
}

// SwitchProviderRequest is the request body for POST /ai-agent/provider/switch.
type SwitchProviderRequest struct {
	Provider string `json:"provider"`
}

// HealthReport aggregates readiness of the agent's collaborators.
type HealthReport struct {
	Status    bool           `json:"status"`
	Timestamp time.Time      `json:"timestamp"`
	Message   string         `json:"message"`
	Details   map[string]any `json:"details"`
}
