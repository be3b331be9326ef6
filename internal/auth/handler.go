package auth

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/gorilla/mux"
)

type Handler struct {
	service *Service
}

func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

type tokenResponse struct {
	Token string `json:"token"`
}

// Refresh exchanges a valid edit token for a fresh one. Mount it behind
// RequireSceneToken.
func (h *Handler) Refresh(w http.ResponseWriter, r *http.Request) {
	sceneID := mux.Vars(r)[SceneIDVar]

	token, err := h.service.IssueSceneToken(sceneID)
	if err != nil {
		slog.Error("refresh token failed", "scene", sceneID, "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal error"})
		return
	}

	writeJSON(w, http.StatusOK, tokenResponse{Token: token})
}

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}
