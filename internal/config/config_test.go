package config

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCheckTokensIsPermissive(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name string
		c    Credentials
		want bool
	}{
		{name: "all absent", c: Credentials{}, want: false},
		{name: "only chat id", c: Credentials{TelegramChatID: "42"}, want: true},
		{name: "only practicum", c: Credentials{PracticumToken: "p"}, want: true},
		{name: "only telegram", c: Credentials{TelegramToken: "t"}, want: true},
		{name: "all present", c: Credentials{PracticumToken: "p", TelegramToken: "t", TelegramChatID: "1"}, want: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.c.CheckTokens())
		})
	}
}

func TestCredentialsFromEnv(t *testing.T) {
	t.Parallel()
	env := map[string]string{EnvPracticumToken: "p", EnvTelegramChatID: "-100"}
	c := CredentialsFromEnv(func(k string) string { return env[k] })

	assert.Equal(t, Credentials{PracticumToken: "p", TelegramChatID: "-100"}, c)
	assert.Equal(t, []string{EnvTelegramToken}, c.Missing())

	id, err := c.ChatID()
	require.NoError(t, err)
	assert.Equal(t, int64(-100), id)

	_, err = Credentials{TelegramChatID: "@channel"}.ChatID()
	require.Error(t, err)
}

func TestLoadDotEnv(t *testing.T) {
	dir := t.TempDir()

	loaded, err := LoadDotEnv(filepath.Join(dir, "absent.env"))
	require.NoError(t, err)
	assert.False(t, loaded)

	path := filepath.Join(dir, "bot.env")
	require.NoError(t, os.WriteFile(path, []byte("HWBOT_TEST_DOTENV=from-file\n"), 0o600))
	t.Setenv("HWBOT_TEST_DOTENV", "")
	require.NoError(t, os.Unsetenv("HWBOT_TEST_DOTENV"))

	loaded, err = LoadDotEnv(path)
	require.NoError(t, err)
	assert.True(t, loaded)
	assert.Equal(t, "from-file", os.Getenv("HWBOT_TEST_DOTENV"))
}

func TestParseMissingFileYieldsDefaults(t *testing.T) {
	t.Parallel()
	m := NewConfigManager(filepath.Join(t.TempDir(), "nope.yaml"))
	cfg, err := m.Load(context.Background())
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
	assert.True(t, cfg.NotifyOnFailure())
	assert.True(t, cfg.SystemdNotify())
}

func TestParseYAMLKeepsDefaultsForOmittedKeys(t *testing.T) {
	t.Parallel()
	path := filepath.Join(t.TempDir(), "bot.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
poller:
  retry_period: "@every 5m"
  notify_on_failure: false
logging:
  level: info
storage:
  driver: file
  path: ./journal
`), 0o600))

	cfg, err := NewConfigManager(path).Parse()
	require.NoError(t, err)
	assert.Equal(t, "@every 5m", cfg.Poller.RetryPeriod)
	assert.False(t, cfg.NotifyOnFailure())
	assert.Equal(t, "info", cfg.Logging.Level)
	assert.Equal(t, DefaultEndpoint, cfg.Practicum.Endpoint)
	require.NotNil(t, cfg.Storage)
	assert.Equal(t, "file", cfg.Storage.Driver)
}

func TestParseRejectsUnknownAndTrailing(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()

	unknown := filepath.Join(dir, "unknown.json")
	require.NoError(t, os.WriteFile(unknown, []byte(`{"practicum":{"token":"x"}}`), 0o600))
	_, err := NewConfigManager(unknown).Parse()
	require.Error(t, err)

	trailing := filepath.Join(dir, "trailing.json")
	require.NoError(t, os.WriteFile(trailing, []byte(`{} {}`), 0o600))
	_, err = NewConfigManager(trailing).Parse()
	require.Error(t, err)
}

func TestLoadRunsValidator(t *testing.T) {
	t.Parallel()
	m := NewConfigManager("")
	m.SetValidator(func(context.Context, *Config) error { return errors.New("nope") })
	_, err := m.Load(context.Background())
	require.EqualError(t, err, "nope")
}

func TestParseDurationOrDefault(t *testing.T) {
	t.Parallel()
	d, err := ParseDurationOrDefault("x", "", time.Second)
	require.NoError(t, err)
	assert.Equal(t, time.Second, d)

	d, err = ParseDurationOrDefault("x", "0s", time.Second)
	require.NoError(t, err)
	assert.Equal(t, time.Second, d)

	d, err = ParseDurationOrDefault("x", "2m", time.Second)
	require.NoError(t, err)
	assert.Equal(t, 2*time.Minute, d)

	_, err = ParseDurationOrDefault("practicum.timeout", "-1s", time.Second)
	require.ErrorContains(t, err, "practicum.timeout")
	_, err = ParseDurationOrDefault("x", "soon", time.Second)
	require.Error(t, err)
}

func TestReloadPublishesChangedConfig(t *testing.T) {
	t.Parallel()
	path := filepath.Join(t.TempDir(), "bot.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"logging":{"level":"info"}}`), 0o600))

	m := NewConfigManager(path)
	_, err := m.Load(context.Background())
	require.NoError(t, err)
	ch := m.Subscribe(1)

	// unchanged content is not republished
	assert.False(t, m.reload(context.Background()))

	require.NoError(t, os.WriteFile(path, []byte(`{"logging":{"level":"warn"}}`), 0o600))
	assert.True(t, m.reload(context.Background()))

	select {
	case cfg := <-ch:
		assert.Equal(t, "warn", cfg.Logging.Level)
	default:
		t.Fatal("expected a published config")
	}
	assert.Equal(t, "warn", m.Get().Logging.Level)

	// invalid content keeps the committed config
	require.NoError(t, os.WriteFile(path, []byte(`{"logging":`), 0o600))
	assert.False(t, m.reload(context.Background()))
	assert.Equal(t, "warn", m.Get().Logging.Level)

	m.Unsubscribe(ch)
	_, open := <-ch
	assert.False(t, open)
}
