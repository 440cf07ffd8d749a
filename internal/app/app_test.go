package app

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"hwbot/internal/config"
	"hwbot/internal/poller"
	kit "hwbot/internal/transport"
	logx "hwbot/pkg/logx"
)

type captureSender struct {
	mu   sync.Mutex
	sent []string
	to   []kit.ChatTarget
}

func (s *captureSender) SendText(_ context.Context, to kit.ChatTarget, text string, _ *kit.SendOptions) (kit.MessageRef, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sent = append(s.sent, text)
	s.to = append(s.to, to)
	return kit.MessageRef{ChatID: to.ChatID, MessageID: len(s.sent)}, nil
}

type staticAPI struct{ body any }

func (a staticAPI) GetAPIAnswer(context.Context, int64) (any, error) { return a.body, nil }

func envOf(m map[string]string) func(string) string {
	return func(k string) string { return m[k] }
}

func approvedBody() any {
	return map[string]any{
		"homeworks":    []any{map[string]any{"homework_name": "hw1", "status": "approved"}},
		"current_date": float64(1700000000),
	}
}

func noEnvFile(t *testing.T) string {
	return filepath.Join(t.TempDir(), "absent.env")
}

func TestNewMissingCredentials(t *testing.T) {
	var buf bytes.Buffer
	_, err := New(context.Background(), Options{
		EnvFile:    noEnvFile(t),
		Getenv:     envOf(nil),
		BootLogger: logx.NewWriter(&buf, "trace"),
	})
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrMissingCredentials))

	var fatal map[string]any
	for _, line := range strings.Split(strings.TrimSpace(buf.String()), "\n") {
		var rec map[string]any
		require.NoError(t, json.Unmarshal([]byte(line), &rec))
		if rec["level"] == "fatal" {
			fatal = rec
		}
	}
	require.NotNil(t, fatal, "no fatal record in %q", buf.String())
	assert.Equal(t, ErrMissingCredentials.Error(), fatal["message"])
	assert.Equal(t, "boot", fatal["comp"])
}

func TestOnceDeliversStatus(t *testing.T) {
	sender := &captureSender{}
	a, err := New(context.Background(), Options{
		EnvFile: noEnvFile(t),
		Getenv: envOf(map[string]string{
			"PRACTICUM_TOKEN":  "p",
			"TELEGRAM_TOKEN":   "t",
			"TELEGRAM_CHAT_ID": "123",
		}),
		Sender: sender,
		API:    staticAPI{body: approvedBody()},
	})
	require.NoError(t, err)
	defer a.Close()

	require.NoError(t, a.Once(context.Background()))

	require.Len(t, sender.sent, 1)
	assert.Equal(t, `Изменился статус проверки работы "hw1". Работа проверена: ревьюеру всё понравилось. Ура!`, sender.sent[0])
	assert.Equal(t, int64(123), sender.to[0].ChatID)
	assert.Equal(t, int64(1700000000), a.Poller().Cursor())
}

// Only the chat id is set: startup passes and the send fails at runtime.
func TestSingleVariableStartsAndFailsOnSend(t *testing.T) {
	a, err := New(context.Background(), Options{
		EnvFile: noEnvFile(t),
		Getenv:  envOf(map[string]string{"TELEGRAM_CHAT_ID": "42"}),
		API:     staticAPI{body: approvedBody()},
	})
	require.NoError(t, err)
	defer a.Close()

	err = a.Once(context.Background())
	require.Error(t, err)
	var sendErr *poller.SendError
	assert.True(t, errors.As(err, &sendErr))
	assert.Equal(t, "send", poller.ErrorKind(err))
}

func TestNewWithFileJournal(t *testing.T) {
	dir := t.TempDir()
	cfgPath := filepath.Join(dir, "bot.yaml")
	require.NoError(t, os.WriteFile(cfgPath, []byte(`
poller:
  retry_period: 10m
storage:
  driver: file
  path: `+filepath.Join(dir, "hwbot")+`
systemd:
  notify: false
`), 0o600))

	sender := &captureSender{}
	a, err := New(context.Background(), Options{
		ConfigPath: cfgPath,
		EnvFile:    noEnvFile(t),
		Getenv:     envOf(map[string]string{"PRACTICUM_TOKEN": "p", "TELEGRAM_CHAT_ID": "7"}),
		Sender:     sender,
		API:        staticAPI{body: approvedBody()},
	})
	require.NoError(t, err)
	defer a.Close()

	require.NoError(t, a.Once(context.Background()))
	_, err = os.Stat(filepath.Join(dir, "hwbot.cycles.jsonl"))
	assert.NoError(t, err)
}

func TestNewRejectsInvalidConfig(t *testing.T) {
	cfgPath := filepath.Join(t.TempDir(), "bot.json")
	require.NoError(t, os.WriteFile(cfgPath, []byte(`{"poller":{"retry_period":"soon"}}`), 0o600))

	_, err := New(context.Background(), Options{
		ConfigPath: cfgPath,
		EnvFile:    noEnvFile(t),
		Getenv:     envOf(map[string]string{"PRACTICUM_TOKEN": "p"}),
		Sender:     &captureSender{},
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "poller.retry_period")
}

func TestApplyConfigUpdatesThreadID(t *testing.T) {
	sender := &captureSender{}
	a, err := New(context.Background(), Options{
		EnvFile:    noEnvFile(t),
		Getenv:     envOf(map[string]string{"PRACTICUM_TOKEN": "p", "TELEGRAM_CHAT_ID": "9"}),
		Sender:     sender,
		API:        staticAPI{body: approvedBody()},
		BootLogger: logx.Nop(),
	})
	require.NoError(t, err)
	defer a.Close()

	cfg := config.Default()
	cfg.Telegram.ThreadID = 77
	cfg.Telegram.RatePerSec = 100
	a.applyConfig(cfg)

	require.NoError(t, a.Once(context.Background()))
	require.Len(t, sender.to, 1)
	assert.Equal(t, kit.ChatTarget{ChatID: 9, ThreadID: 77}, sender.to[0])
}
