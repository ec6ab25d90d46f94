// Package handler holds plain-HTTP endpoints that sit beside the RPC surface.
package handler

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	artifactrepo "redline/internal/gateway/repository/artifact"
)

// ArtifactHandler serves generated artifact content for stores without
// presigned URLs.
type ArtifactHandler struct {
	store artifactrepo.Store
}

func NewArtifactHandler(store artifactrepo.Store) *ArtifactHandler {
	return &ArtifactHandler{store: store}
}

// HandleGet serves GET /api/artifacts?session_id=...&path=...
func (h *ArtifactHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	sessionID := strings.TrimSpace(r.URL.Query().Get("session_id"))
	path := strings.TrimSpace(r.URL.Query().Get("path"))
	if sessionID == "" || path == "" {
		http.Error(w, "session_id and path are required", http.StatusBadRequest)
		return
	}
	content, err := h.store.Get(r.Context(), sessionID, path)
	if err != nil {
		if errors.Is(err, artifactrepo.ErrNotFound) {
			http.Error(w, "artifact not found", http.StatusNotFound)
			return
		}
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "image/png")
	_, _ = w.Write(content)
}

// HandleList serves GET /api/artifacts/list?session_id=...
func (h *ArtifactHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	sessionID := strings.TrimSpace(r.URL.Query().Get("session_id"))
	if sessionID == "" {
		http.Error(w, "session_id is required", http.StatusBadRequest)
		return
	}
	paths, err := h.store.List(r.Context(), sessionID)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]any{
		"sessionId": sessionID,
		"paths":     paths,
	})
}
