package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"go.uber.org/zap"

	"github.com/vstock/store-assistant/internal/middleware"
	"github.com/vstock/store-assistant/internal/model"
	syncpkg "github.com/vstock/store-assistant/internal/sync"
	"github.com/vstock/store-assistant/pkg/logger"
)

// Reindexer is the slice of the syncer the sync endpoints need.
type Reindexer interface {
	EntityTypes() []string
	Reindex(ctx context.Context, entityType string) (syncpkg.Report, error)
}

// SyncHandler handles the admin sync endpoints.
type SyncHandler struct {
	syncer Reindexer
	logger *logger.Logger
}

// NewSyncHandler creates a new sync handler.
func NewSyncHandler(syncer Reindexer, log *logger.Logger) *SyncHandler {
	return &SyncHandler{
		syncer: syncer,
		logger: log,
	}
}

// Reindex handles POST /ai-agent/sync/reindex. It rebuilds one entity type's
// documents from scratch.
func (h *SyncHandler) Reindex(w http.ResponseWriter, r *http.Request) {
	var req model.ReindexRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	entityType := strings.TrimSpace(strings.ToLower(req.EntityType))
	if !h.knownType(entityType) {
		writeError(w, http.StatusBadRequest, "unknown entity type")
		return
	}

	report, err := h.syncer.Reindex(r.Context(), entityType)
	if err != nil {
		h.logger.Error("reindex failed",
			zap.String("entity_type", entityType),
			zap.String("request_id", middleware.GetRequestID(r.Context())),
			zap.Error(err))
		writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, report)
}

func (h *SyncHandler) knownType(entityType string) bool {
	for _, t := range h.syncer.EntityTypes() {
		if t == entityType {
			return true
		}
	}
	return false
}
