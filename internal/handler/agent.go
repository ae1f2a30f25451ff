// Package handler provides HTTP handlers for the API.
package handler

import (
	"encoding/json"
	"net/http"
	"strings"

	"go.uber.org/zap"

	"github.com/vstock/store-assistant/internal/llm"
	"github.com/vstock/store-assistant/internal/middleware"
	"github.com/vstock/store-assistant/internal/model"
	"github.com/vstock/store-assistant/internal/service"
	"github.com/vstock/store-assistant/pkg/logger"
)

// AgentHandler handles the AI agent endpoints.
type AgentHandler struct {
	orchestrator *service.Orchestrator
	logger       *logger.Logger
}

// NewAgentHandler creates a new agent handler.
func NewAgentHandler(orch *service.Orchestrator, log *logger.Logger) *AgentHandler {
	return &AgentHandler{
		orchestrator: orch,
		logger:       log,
	}
}

// Chat handles POST /ai-agent/chat
func (h *AgentHandler) Chat(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID := middleware.GetUserID(ctx)

	var req model.ChatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	result, err := h.orchestrator.HandleQuery(ctx, req.Query, userID, req.ConversationID)
	if err != nil {
		h.logger.Error("chat query failed",
			zap.String("request_id", middleware.GetRequestID(ctx)),
			zap.Error(err))
		writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, result)
}

// EnhancedSearch handles POST /ai-agent/search/enhanced
func (h *AgentHandler) EnhancedSearch(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req model.EnhancedSearchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	filters := llm.ExtractFilters(req.Query)
	if len(req.EntityTypes) > 0 {
		filters.EntityTypes = req.EntityTypes
	}
	if req.DateFrom != "" {
		filters.DateFrom = req.DateFrom
	}
	if req.DateTo != "" {
		filters.DateTo = req.DateTo
	}
	if req.Limit > 0 {
		filters.Limit = req.Limit
	}

	result, err := h.orchestrator.EnhancedSearch(ctx, req.Query, filters)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, result)
}

// SwitchProvider handles POST /ai-agent/provider/switch
func (h *AgentHandler) SwitchProvider(w http.ResponseWriter, r *http.Request) {
	var req model.SwitchProviderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	name := strings.TrimSpace(strings.ToLower(req.Provider))
	if name == "" {
		writeError(w, http.StatusBadRequest, "provider is required")
		return
	}

	if err := h.orchestrator.SwitchProvider(r.Context(), name); err != nil {
		// Registry errors name only providers, never backend internals.
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{
		"provider": h.orchestrator.CurrentProvider(),
	})
}

// CurrentProvider handles GET /ai-agent/provider/current
func (h *AgentHandler) CurrentProvider(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"provider": h.orchestrator.CurrentProvider(),
	})
}

// Health handles GET /ai-agent/health
func (h *AgentHandler) Health(w http.ResponseWriter, r *http.Request) {
	report := h.orchestrator.HealthCheck(r.Context())

	status := http.StatusOK
	if !report.Status {
		status = http.StatusServiceUnavailable
	}
	writeJSON(w, status, report)
}
