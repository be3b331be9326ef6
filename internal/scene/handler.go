package scene

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/inamate/rectscene/internal/document"
	"github.com/inamate/rectscene/internal/store"
)

const maxDocumentSize = 4 << 20 // 4MB

// TokenIssuer signs edit tokens for new scenes.
type TokenIssuer interface {
	IssueSceneToken(sceneID string) (string, error)
}

type Handler struct {
	service *Service
	tokens  TokenIssuer
}

func NewHandler(service *Service, tokens TokenIssuer) *Handler {
	return &Handler{service: service, tokens: tokens}
}

type createRequest struct {
	Name   string `json:"name"`
	Width  int    `json:"width"`
	Height int    `json:"height"`
	Sample bool   `json:"sample"`
}

type createResponse struct {
	Scene *store.Scene `json:"scene"`
	Token string       `json:"token"`
}

func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	var req createRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}

	sc, err := h.service.Create(r.Context(), CreateParams{
		Name:   req.Name,
		Width:  req.Width,
		Height: req.Height,
		Sample: req.Sample,
	})
	if err != nil {
		handleServiceError(w, err)
		return
	}

	token, err := h.tokens.IssueSceneToken(sc.ID)
	if err != nil {
		slog.Error("issue scene token failed", "scene", sc.ID, "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal error"})
		return
	}

	slog.Info("scene created", "scene", sc.ID, "width", sc.Width, "height", sc.Height)
	writeJSON(w, http.StatusCreated, createResponse{Scene: sc, Token: token})
}

func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	sceneID := mux.Vars(r)["sceneId"]

	sc, err := h.service.Get(r.Context(), sceneID)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, sc)
}

// GetDocument serves the scene JSON. With ?download=1 it is sent as a file.
func (h *Handler) GetDocument(w http.ResponseWriter, r *http.Request) {
	sceneID := mux.Vars(r)["sceneId"]

	data, err := h.service.Document(r.Context(), sceneID)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	raw, err := document.Encode(data)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	if r.URL.Query().Get("download") == "1" {
		w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="%s.json"`, sceneID))
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	w.Write(raw)
}

// PutDocument imports scene JSON, replacing the current scene.
func (h *Handler) PutDocument(w http.ResponseWriter, r *http.Request) {
	sceneID := mux.Vars(r)["sceneId"]

	raw, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxDocumentSize))
	if err != nil {
		writeJSON(w, http.StatusRequestEntityTooLarge, map[string]string{"error": "document too large"})
		return
	}

	data, err := h.service.Import(r.Context(), sceneID, raw)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	slog.Info("scene imported", "scene", sceneID, "elements", len(data.Elements))
	writeJSON(w, http.StatusOK, data)
}

func (h *Handler) Delete(w http.ResponseWriter, r *http.Request) {
	sceneID := mux.Vars(r)["sceneId"]

	if err := h.service.Delete(r.Context(), sceneID); err != nil {
		handleServiceError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func handleServiceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ErrNotFound):
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "not found"})
	case errors.Is(err, ErrInvalidRequest), errors.Is(err, ErrInvalidDocument):
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
	default:
		slog.Error("service error", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal error"})
	}
}

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}
