package practicum

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	logx "hwbot/pkg/logx"
)

func newTestClient(t *testing.T, h http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	c, err := New(Config{Endpoint: srv.URL + "/api/user_api/homework_statuses/", Token: "secret"}, logx.Nop())
	require.NoError(t, err)
	return c
}

func TestGetAPIAnswerSendsAuthAndCursor(t *testing.T) {
	t.Parallel()
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		assert.Equal(t, "OAuth secret", r.Header.Get("Authorization"))
		assert.Equal(t, "1700000000", r.URL.Query().Get("from_date"))
		_, _ = w.Write([]byte(`{"homeworks":[{"homework_name":"hw1","status":"approved"}],"current_date":100}`))
	})

	body, err := c.GetAPIAnswer(context.Background(), 1700000000)
	require.NoError(t, err)

	m, ok := body.(map[string]any)
	require.True(t, ok)
	assert.Equal(t, json.Number("100"), m["current_date"])
	assert.Len(t, m["homeworks"], 1)
}

func TestGetAPIAnswerNon200IsStatusError(t *testing.T) {
	t.Parallel()
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	})

	_, err := c.GetAPIAnswer(context.Background(), 0)
	var apiErr *Error
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, KindStatus, apiErr.Kind)
	assert.Equal(t, http.StatusInternalServerError, apiErr.Code)
	// fixed message, no status code in the text
	assert.Equal(t, "Некорректный ответ от API!", err.Error())
}

func TestGetAPIAnswerTransportFailureIsConnectionError(t *testing.T) {
	t.Parallel()
	srv := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
	endpoint := srv.URL
	srv.Close()

	c, err := New(Config{Endpoint: endpoint, Token: "x", Timeout: time.Second}, logx.Nop())
	require.NoError(t, err)

	_, err = c.GetAPIAnswer(context.Background(), 0)
	var apiErr *Error
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, KindConnection, apiErr.Kind)
	assert.NotNil(t, errors.Unwrap(err))
}

func TestGetAPIAnswerBadJSONIsDecodeError(t *testing.T) {
	t.Parallel()
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`<html>`))
	})

	_, err := c.GetAPIAnswer(context.Background(), 0)
	var apiErr *Error
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, KindDecode, apiErr.Kind)
}

func TestGetAPIAnswerReturnsNonObjectBodies(t *testing.T) {
	t.Parallel()
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`["not","a","mapping"]`))
	})

	body, err := c.GetAPIAnswer(context.Background(), 0)
	require.NoError(t, err)
	assert.IsType(t, []any{}, body)
}

func TestNewRejectsEmptyEndpoint(t *testing.T) {
	t.Parallel()
	_, err := New(Config{Endpoint: " "}, logx.Nop())
	require.Error(t, err)
}
