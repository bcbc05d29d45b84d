package server

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/onnwee/garden-tender/telemetry"
	"github.com/onnwee/garden-tender/tracker"
)

// maxSendBody bounds /send-message request bodies.
const maxSendBody = 64 << 10

// Handlers holds dependencies for all HTTP handlers.
type Handlers struct {
	deps Deps
}

// NewHandlers creates a new Handlers instance with the given dependencies.
func NewHandlers(deps Deps) *Handlers {
	return &Handlers{deps: deps}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Warn("encode response", slog.Any("err", err))
	}
}

func (h *Handlers) connected() bool {
	return h.deps.Chat != nil && h.deps.Chat.Connected()
}

func (h *Handlers) commandNames() []string {
	if h.deps.Commands == nil {
		return []string{}
	}
	return h.deps.Commands.Names()
}

// HandleRoot reports that the service is up.
func (h *Handlers) HandleRoot(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"status":          "online",
		"bot_logged_in":   h.connected(),
		"commands_loaded": len(h.commandNames()),
		"timestamp":       time.Now().UTC().Format(time.RFC3339),
	})
}

// HandleStatus reports the chat connection and tracking sessions.
func (h *Handlers) HandleStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	botStatus := "disconnected"
	var userID any
	if h.connected() {
		botStatus = "connected"
		userID = h.deps.BotUserID
	}
	channels := []string{}
	if h.deps.Chat != nil {
		channels = h.deps.Chat.Channels()
	}
	sessions := []string{}
	if h.deps.Sessions != nil {
		sessions = h.deps.Sessions.Owners()
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"bot_status":      botStatus,
		"user_id":         userID,
		"login":           h.deps.BotLogin,
		"channels":        channels,
		"commands":        h.commandNames(),
		"active_sessions": len(sessions),
		"sessions":        sessions,
	})
}

type commandInfo struct {
	Name        string   `json:"name"`
	Description string   `json:"description"`
	Usage       string   `json:"usage"`
	Aliases     []string `json:"aliases,omitempty"`
	AdminOnly   bool     `json:"admin_only"`
}

// HandleCommands lists the loaded commands.
func (h *Handlers) HandleCommands(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	details := []commandInfo{}
	if h.deps.Commands != nil {
		for _, c := range h.deps.Commands.List() {
			details = append(details, commandInfo{
				Name:        c.Name,
				Description: c.Description,
				Usage:       c.Usage,
				Aliases:     c.Aliases,
				AdminOnly:   c.AdminOnly,
			})
		}
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"commands": h.commandNames(),
		"total":    len(details),
		"details":  details,
	})
}

type sendMessageRequest struct {
	ThreadID string `json:"threadID"`
	Message  string `json:"message"`
}

// HandleSendMessage posts a message into a joined channel.
func (h *Handlers) HandleSendMessage(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if !h.connected() {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"error": "Bot not logged in"})
		return
	}
	var req sendMessageRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxSendBody)).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid JSON body"})
		return
	}
	req.ThreadID = strings.TrimSpace(req.ThreadID)
	if req.ThreadID == "" || strings.TrimSpace(req.Message) == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "threadID and message are required"})
		return
	}

	logger := telemetry.LoggerWithCorr(r.Context())
	if err := h.deps.Chat.Send(r.Context(), req.ThreadID, req.Message); err != nil {
		logger.Warn("send-message failed", slog.String("thread", req.ThreadID), slog.Any("err", err))
		details := err.Error()
		if errors.Is(err, tracker.ErrUndeliverable) {
			details = "bot has not joined " + req.ThreadID
		}
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "Failed to send message", "details": details})
		return
	}
	logger.Info("send-message delivered", slog.String("thread", req.ThreadID))
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "threadID": req.ThreadID})
}
