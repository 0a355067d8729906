package audit

import (
	"bytes"
	"context"
	"net/http/httptest"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLog(t *testing.T) {
	var buf bytes.Buffer
	ctx := zerolog.New(&buf).WithContext(context.Background())

	Log(ctx, Event{
		Type:       EventReviewStatusChange,
		ActorID:    "admin-1",
		ActorRole:  "admin",
		ResourceID: "review-1",
		Details:    map[string]any{"from": "pending", "to": "approved", "count": 2},
	})

	out := buf.String()
	require.NotEmpty(t, out)
	assert.Contains(t, out, `"event_type":"review_status_change"`)
	assert.Contains(t, out, `"actor_id":"admin-1"`)
	assert.Contains(t, out, `"resource_id":"review-1"`)
	assert.Contains(t, out, `"to":"approved"`)
	assert.Contains(t, out, `"count":2`)
}

func TestGetClientIP(t *testing.T) {
	r := httptest.NewRequest("GET", "/", nil)
	r.RemoteAddr = "10.0.0.1:1234"
	assert.Equal(t, "10.0.0.1:1234", getClientIP(r))

	r.Header.Set("X-Real-IP", "192.168.1.5")
	assert.Equal(t, "192.168.1.5", getClientIP(r))

	r.Header.Set("X-Forwarded-For", "203.0.113.7")
	assert.Equal(t, "203.0.113.7", getClientIP(r))
}
