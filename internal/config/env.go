package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

// Environment variable names. These are the only source of credentials.
const (
	EnvPracticumToken = "PRACTICUM_TOKEN"
	EnvTelegramToken  = "TELEGRAM_TOKEN"
	EnvTelegramChatID = "TELEGRAM_CHAT_ID"
)

// DefaultEnvFile is the dotenv file consulted when no explicit path is given.
const DefaultEnvFile = ".env"

// Credentials holds the three values read from the environment.
type Credentials struct {
	PracticumToken string
	TelegramToken  string
	TelegramChatID string
}

// LoadDotEnv seeds the process environment from a dotenv file. Variables that
// are already set are not overridden. A missing file is not an error; loaded
// reports whether a file was actually read.
func LoadDotEnv(path string) (loaded bool, err error) {
	if strings.TrimSpace(path) == "" {
		path = DefaultEnvFile
	}
	if err := godotenv.Load(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return false, nil
		}
		return false, fmt.Errorf("dotenv %s: %w", path, err)
	}
	return true, nil
}

// CredentialsFromEnv reads the credentials through getenv (os.Getenv when nil).
func CredentialsFromEnv(getenv func(string) string) Credentials {
	if getenv == nil {
		getenv = os.Getenv
	}
	return Credentials{
		PracticumToken: getenv(EnvPracticumToken),
		TelegramToken:  getenv(EnvTelegramToken),
		TelegramChatID: getenv(EnvTelegramChatID),
	}
}

// CheckTokens reports whether the bot may start.
//
// Known permissive check: it succeeds when ANY of the three values is present,
// not when all of them are. A half-configured bot starts and fails later, on
// the first API call or the first send.
func (c Credentials) CheckTokens() bool {
	return c.PracticumToken != "" || c.TelegramToken != "" || c.TelegramChatID != ""
}

// Missing lists the names of the variables that are empty.
func (c Credentials) Missing() []string {
	var out []string
	if c.PracticumToken == "" {
		out = append(out, EnvPracticumToken)
	}
	if c.TelegramToken == "" {
		out = append(out, EnvTelegramToken)
	}
	if c.TelegramChatID == "" {
		out = append(out, EnvTelegramChatID)
	}
	return out
}

// ChatID parses TELEGRAM_CHAT_ID as a numeric chat id.
func (c Credentials) ChatID() (int64, error) {
	raw := strings.TrimSpace(c.TelegramChatID)
	if raw == "" {
		return 0, fmt.Errorf("%s is empty", EnvTelegramChatID)
	}
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%s: invalid chat id %q: %w", EnvTelegramChatID, raw, err)
	}
	return id, nil
}
