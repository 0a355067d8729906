package handler

import (
	"fmt"
	"net/http"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/wellspring/marketplace-server-go/internal/middleware"
	"github.com/wellspring/marketplace-server-go/internal/sse"
)

type EventStream interface {
	Subscribe(userID string) *sse.Client
	Unsubscribe(client *sse.Client)
}

// EventsHandler streams a user's notifications as server-sent events.
type EventsHandler struct {
	stream    EventStream
	heartbeat time.Duration
}

func NewEventsHandler(stream EventStream) *EventsHandler {
	return &EventsHandler{
		stream:    stream,
		heartbeat: sse.HeartbeatInterval,
	}
}

// GET /v1/notifications/stream
func (h *EventsHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	identity := middleware.GetIdentity(r.Context())
	if identity == nil {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "Unauthorized"})
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "Streaming not supported"})
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")

	client := h.stream.Subscribe(identity.UserID)
	defer h.stream.Unsubscribe(client)

	log.Info().
		Str("userId", identity.UserID).
		Str("role", string(identity.Role)).
		Msg("notification stream opened")

	if err := h.sendEvent(w, flusher, "connected", map[string]any{
		"userId": identity.UserID,
	}); err != nil {
		return
	}

	heartbeat := time.NewTicker(h.heartbeat)
	defer heartbeat.Stop()

	ctx := r.Context()
	for {
		select {
		case <-ctx.Done():
			log.Info().
				Str("userId", identity.UserID).
				Msg("notification stream closed by client")
			return

		case <-client.Done:
			log.Info().
				Str("userId", identity.UserID).
				Msg("notification stream closed by broker")
			return

		case event := <-client.Events:
			if err := h.sendRawEvent(w, flusher, event); err != nil {
				log.Error().Err(err).Msg("failed to send event")
				return
			}

		case <-heartbeat.C:
			if _, err := fmt.Fprintf(w, ": ping\n\n"); err != nil {
				log.Debug().
					Str("userId", identity.UserID).
					Msg("heartbeat failed, closing stream")
				return
			}
			flusher.Flush()
		}
	}
}

func (h *EventsHandler) sendEvent(w http.ResponseWriter, flusher http.Flusher, eventType string, data any) error {
	jsonData, err := json.Marshal(data)
	if err != nil {
		return err
	}

	return h.sendRawEvent(w, flusher, sse.Event{Type: eventType, Data: jsonData})
}

func (h *EventsHandler) sendRawEvent(w http.ResponseWriter, flusher http.Flusher, event sse.Event) error {
	if _, err := fmt.Fprintf(w, "event: %s\n", event.Type); err != nil {
		return err
	}
	if _, err := fmt.Fprintf(w, "data: %s\n\n", event.Data); err != nil {
		return err
	}
	flusher.Flush()
	return nil
}
