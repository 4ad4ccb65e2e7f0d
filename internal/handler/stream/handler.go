package stream

import (
	"net/http"

	"github.com/rs/zerolog/log"

	"github.com/zhouzirui/chat-starter/internal/model/chat"
	chatService "github.com/zhouzirui/chat-starter/internal/service/chat"
	"github.com/zhouzirui/chat-starter/pkg/utils"
)

const bufferSize = 64

// Source is the observable side of a chat session.
type Source interface {
	State() chat.ConnectionState
	Subscribe(fn func(chatService.Event)) (cancel func())
}

// Handler streams session changes as Server-Sent Events.
type Handler struct {
	source Source
}

// New creates a stream handler.
func New(source Source) *Handler {
	return &Handler{source: source}
}

type statusPayload struct {
	Status chat.ConnectionState `json:"status"`
}

// ServeHTTP sends the current status, then one event per state change or log entry
// until the client goes away.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		utils.RespondError(w, http.StatusInternalServerError, "streaming unsupported")
		return
	}

	ctx := r.Context()

	// Delivery blocks until the stream takes the event or the client leaves.
	events := make(chan chatService.Event, bufferSize)
	cancel := h.source.Subscribe(func(ev chatService.Event) {
		select {
		case events <- ev:
		case <-ctx.Done():
		}
	})
	defer cancel()

	utils.SetupSSEHeaders(w)
	w.WriteHeader(http.StatusOK)

	if err := utils.SendSSEEvent(w, flusher, "status", statusPayload{Status: h.source.State()}); err != nil {
		return
	}

	log.Debug().Msg("[sse] stream opened")
	for {
		select {
		case <-ctx.Done():
			log.Debug().Msg("[sse] stream closed")
			return
		case ev := <-events:
			var err error
			switch ev.Kind {
			case chatService.EventStateChanged:
				err = utils.SendSSEEvent(w, flusher, "status", statusPayload{Status: ev.State})
			case chatService.EventEntryAppended:
				err = utils.SendSSEEvent(w, flusher, "entry", ev.Entry)
			}
			if err != nil {
				return
			}
		}
	}
}
