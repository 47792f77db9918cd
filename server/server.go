// Package server exposes dialogue turns over HTTP.
package server

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/bytedance/sonic"
	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/tbxark/rneagent/agent"
	"github.com/tbxark/rneagent/metrics"
)

const maxBodyBytes = 64 << 10

// Turner runs one dialogue turn. *agent.Orchestrator implements it.
type Turner interface {
	Turn(ctx context.Context, userID, message string) (string, error)
}

type Handler struct {
	turner Turner
}

func NewHandler(turner Turner) *Handler {
	return &Handler{turner: turner}
}

// Router mounts the chat, health and metrics routes.
func (h *Handler) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(chiMiddleware.RequestID)
	r.Use(chiMiddleware.RealIP)
	r.Use(chiMiddleware.Logger)
	r.Use(chiMiddleware.Recoverer)

	r.Get("/", h.Health)
	r.Post("/api/chat", h.Chat)
	r.Handle("/metrics", metrics.Handler())
	return r
}

func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	JSON(w, http.StatusOK, map[string]string{"status": "up"})
}

func (h *Handler) Chat(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes))
	if err != nil {
		Error(w, http.StatusBadRequest, "failed to read request body")
		return
	}
	var req agent.Request
	if err := sonic.Unmarshal(body, &req); err != nil {
		Error(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	reply, err := h.turner.Turn(r.Context(), req.UserID, req.Message)
	switch {
	case errors.Is(err, agent.ErrRequestValidation):
		Error(w, http.StatusBadRequest, "user_id and message are required")
		return
	case err != nil:
		slog.Error("Turn failed", "user_id", req.UserID, "request_id", chiMiddleware.GetReqID(r.Context()), "error", err)
		Error(w, http.StatusInternalServerError, "internal error")
		return
	}
	JSON(w, http.StatusOK, agent.Response{Reply: reply})
}

// JSON writes a JSON response with the given status code.
func JSON(w http.ResponseWriter, status int, v any) {
	data, err := sonic.Marshal(v)
	if err != nil {
		http.Error(w, `{"error": "failed to encode response"}`, http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(data)
}

// Error writes a JSON error response.
func Error(w http.ResponseWriter, status int, message string) {
	JSON(w, status, map[string]string{"error": message})
}
