package adapter

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	kit "hwbot/internal/transport"
	logx "hwbot/pkg/logx"
)

func TestSplitTelegramText(t *testing.T) {
	t.Parallel()

	require.Equal(t, []string{"short"}, splitTelegramText("short", 10))

	long := strings.Repeat("a", 25)
	chunks := splitTelegramText(long, 10)
	require.Len(t, chunks, 3)
	assert.Equal(t, strings.Repeat("a", 10), chunks[0])
	assert.Equal(t, strings.Repeat("a", 5), chunks[2])

	// Prefers a newline close to the cut.
	chunks = splitTelegramText("aaaaaaa\nbbbbbbbbbb", 10)
	require.Len(t, chunks, 2)
	assert.Equal(t, "aaaaaaa", chunks[0])
	assert.Equal(t, "bbbbbbbbbb", chunks[1])

	// Limit is counted in runes, not bytes.
	ru := strings.Repeat("ж", 10)
	assert.Equal(t, []string{ru}, splitTelegramText(ru, 10))
}

func TestSendTextPostsToBotAPI(t *testing.T) {
	t.Parallel()

	var (
		mu   sync.Mutex
		seen []map[string]any
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasSuffix(r.URL.Path, "/sendMessage") {
			http.NotFound(w, r)
			return
		}
		var body map[string]any
		_ = json.NewDecoder(r.Body).Decode(&body)
		mu.Lock()
		seen = append(seen, body)
		mu.Unlock()
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"ok":true,"result":{"message_id":7,"date":1,"chat":{"id":42,"type":"private"},"text":"x"}}`))
	}))
	defer srv.Close()

	a, err := New(Config{Token: "123:abc", URL: srv.URL, Offline: true}, logx.Nop())
	require.NoError(t, err)

	ref, err := a.SendText(context.Background(), kit.ChatTarget{ChatID: 42}, "привет", nil)
	require.NoError(t, err)
	assert.Equal(t, 7, ref.MessageID)
	assert.Equal(t, int64(42), ref.ChatID)

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, seen, 1)
	assert.Equal(t, "42", seen[0]["chat_id"])
	assert.Equal(t, "привет", seen[0]["text"])
}

func TestSendTextReturnsAPIError(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"ok":false,"error_code":400,"description":"Bad Request: chat not found"}`))
	}))
	defer srv.Close()

	a, err := New(Config{Token: "123:abc", URL: srv.URL, Offline: true}, logx.Nop())
	require.NoError(t, err)

	_, err = a.SendText(context.Background(), kit.ChatTarget{ChatID: 1}, "hi", nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "chat not found")
}

func TestNewRejectsEmptyToken(t *testing.T) {
	t.Parallel()
	_, err := New(Config{Token: "  "}, logx.Nop())
	require.Error(t, err)
}
