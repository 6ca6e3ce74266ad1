package logger

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"testing"

	"github.com/BradenHooton/warden/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSanitizedLogin(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"alice", "a****"},
		{"a", "a"},
		{"", "[empty]"},
		{"alice@example.com", "a****@*******.com"},
		{"bob@localhost", "b**@localhost"},
		{"jörg", "j***"},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, SanitizedLogin(tt.in), "input %q", tt.in)
	}
}

func TestSanitizeQueryString(t *testing.T) {
	assert.True(t, SanitizeQueryString("password=x"))
	assert.True(t, SanitizeQueryString("Session=abc"))
	assert.False(t, SanitizeQueryString("page=2"))
}

func TestRedactedAttr(t *testing.T) {
	assert.Equal(t, "[REDACTED]", RedactedAttr("k", "v", "production").Value.String())
	assert.Equal(t, "v", RedactedAttr("k", "v", "development").Value.String())
}

func TestEventLogger_Observer(t *testing.T) {
	var buf bytes.Buffer
	el := NewEventLogger(slog.New(slog.NewJSONHandler(&buf, nil)))

	observer := el.Observer(models.BadLogin)
	err := observer(context.Background(), &models.Account{ID: "acc-1", LoginIdentifier: "alice", FailedLogins: 2})
	require.NoError(t, err)

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "WARN", entry["level"])
	assert.Equal(t, "bad_login", entry["event_type"])
	assert.Equal(t, "acc-1", entry["account_id"])
	assert.Equal(t, "a****", entry["login"])
	assert.EqualValues(t, 2, entry["failed_logins"])
}
