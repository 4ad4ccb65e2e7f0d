package chat

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/log"

	"github.com/zhouzirui/chat-starter/internal/model/chat"
	chatService "github.com/zhouzirui/chat-starter/internal/service/chat"
	"github.com/zhouzirui/chat-starter/pkg/utils"
)

// Session is the part of a chat session the handler needs.
type Session interface {
	Identity() chat.ClientIdentity
	State() chat.ConnectionState
	Entries() []chat.LogEntry
	Send(text string) error
}

// Handler serves the chat session over HTTP.
type Handler struct {
	session Session
}

// New creates a chat handler.
func New(session Session) *Handler {
	return &Handler{session: session}
}

// RegisterRoutes mounts the session routes on r.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/session", h.handleGetSession)
	r.Post("/messages", h.handleSendMessage)
}

type sessionView struct {
	ClientID string               `json:"clientId"`
	Status   chat.ConnectionState `json:"status"`
	Entries  []chat.LogEntry      `json:"entries"`
}

func (h *Handler) handleGetSession(w http.ResponseWriter, r *http.Request) {
	utils.RespondJSON(w, http.StatusOK, sessionView{
		ClientID: string(h.session.Identity()),
		Status:   h.session.State(),
		Entries:  h.session.Entries(),
	})
}

func (h *Handler) handleSendMessage(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		Text string `json:"text"`
	}

	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		utils.RespondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if payload.Text == "" {
		w.WriteHeader(http.StatusNoContent)
		return
	}

	if err := h.session.Send(payload.Text); err != nil {
		if errors.Is(err, chatService.ErrNotConnected) {
			utils.RespondError(w, http.StatusConflict, err.Error())
			return
		}
		log.Warn().Err(err).Msg("[http] send failed")
		utils.RespondError(w, http.StatusBadGateway, "send failed")
		return
	}

	utils.RespondJSON(w, http.StatusAccepted, map[string]string{"status": "sent"})
}
