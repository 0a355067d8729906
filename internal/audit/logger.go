package audit

import (
	"context"
	"net/http"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

type EventType string

const (
	EventAuthFailure        EventType = "auth_failure"
	EventForbidden          EventType = "forbidden"
	EventRateLimitExceed    EventType = "rate_limit_exceeded"
	EventReviewStatusChange EventType = "review_status_change"
	EventReviewDelete       EventType = "review_delete"
	EventSessionComplete    EventType = "session_complete"
	EventSessionCancel      EventType = "session_cancel"
	EventSessionDelete      EventType = "session_delete"
	EventAutoCompleteRun    EventType = "auto_complete_run"
)

type Event struct {
	Type       EventType
	ActorID    string
	ActorRole  string
	ResourceID string
	IP         string
	UserAgent  string
	Details    map[string]any
}

func Log(ctx context.Context, event Event) {
	logger := log.Ctx(ctx).With().
		Str("audit", "marketplace").
		Str("event_type", string(event.Type)).
		Time("timestamp", time.Now()).
		Logger()

	if event.ActorID != "" {
		logger = logger.With().Str("actor_id", event.ActorID).Logger()
	}
	if event.ActorRole != "" {
		logger = logger.With().Str("actor_role", event.ActorRole).Logger()
	}
	if event.ResourceID != "" {
		logger = logger.With().Str("resource_id", event.ResourceID).Logger()
	}
	if event.IP != "" {
		logger = logger.With().Str("ip", event.IP).Logger()
	}
	if event.UserAgent != "" {
		logger = logger.With().Str("user_agent", event.UserAgent).Logger()
	}

	logEvent := logger.Info()
	for k, v := range event.Details {
		logEvent = addField(logEvent, k, v)
	}
	logEvent.Msg("audit event")
}

func addField(e *zerolog.Event, key string, value any) *zerolog.Event {
	switch v := value.(type) {
	case string:
		return e.Str(key, v)
	case int:
		return e.Int(key, v)
	case int64:
		return e.Int64(key, v)
	case bool:
		return e.Bool(key, v)
	default:
		return e.Interface(key, v)
	}
}

func LogFromRequest(r *http.Request, event Event) {
	event.IP = getClientIP(r)
	event.UserAgent = r.UserAgent()
	Log(r.Context(), event)
}

func getClientIP(r *http.Request) string {
	if forwarded := r.Header.Get("X-Forwarded-For"); forwarded != "" {
		return forwarded
	}
	if realIP := r.Header.Get("X-Real-IP"); realIP != "" {
		return realIP
	}
	return r.RemoteAddr
}
