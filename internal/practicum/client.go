package practicum

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	logx "hwbot/pkg/logx"
)

// maxBodyBytes caps how much of a response body is read.
const maxBodyBytes = 4 << 20

type Config struct {
	Endpoint string
	Token    string
	// Timeout bounds a single request. Zero means 30s.
	Timeout time.Duration
}

// Client queries the homework statuses endpoint.
type Client struct {
	cfg  Config
	log  logx.Logger
	http *http.Client
}

func New(cfg Config, log logx.Logger) (*Client, error) {
	if _, err := url.Parse(cfg.Endpoint); err != nil || strings.TrimSpace(cfg.Endpoint) == "" {
		return nil, errors.New("practicum endpoint is invalid")
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	if log.IsZero() {
		log = logx.Nop()
	}
	tr := http.DefaultTransport.(*http.Transport).Clone()
	return &Client{cfg: cfg, log: log, http: &http.Client{Timeout: cfg.Timeout, Transport: tr}}, nil
}

// Close drops idle keep-alive connections.
func (c *Client) Close() {
	c.http.CloseIdleConnections()
}

// GetAPIAnswer fetches statuses changed since cursor (unix seconds) and returns
// the decoded JSON body as a generic value (numbers as json.Number). No schema
// is enforced here.
func (c *Client) GetAPIAnswer(ctx context.Context, cursor int64) (any, error) {
	u, err := url.Parse(c.cfg.Endpoint)
	if err != nil {
		return nil, &Error{Kind: KindConnection, Msg: msgConnection, Err: err}
	}
	q := u.Query()
	q.Set("from_date", strconv.FormatInt(cursor, 10))
	u.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, &Error{Kind: KindConnection, Msg: msgConnection, Err: err}
	}
	req.Header.Set("Authorization", "OAuth "+c.cfg.Token)
	req.Header.Set("Accept", "application/json")

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		c.log.Error(msgConnection, logx.Err(err), logx.Int64("from_date", cursor))
		return nil, &Error{Kind: KindConnection, Msg: msgConnection, Err: err}
	}
	defer resp.Body.Close()

	c.log.Debug("api answered",
		logx.Int("status", resp.StatusCode),
		logx.Int64("from_date", cursor),
		logx.Duration("took", time.Since(start)),
	)

	if resp.StatusCode != http.StatusOK {
		// Drain a little so the connection can be reused.
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 64<<10))
		c.log.Error(msgStatus, logx.Int("status", resp.StatusCode))
		return nil, &Error{Kind: KindStatus, Code: resp.StatusCode, Msg: msgStatus}
	}

	// UseNumber keeps current_date an exact integer instead of a float64.
	dec := json.NewDecoder(io.LimitReader(resp.Body, maxBodyBytes))
	dec.UseNumber()
	var body any
	if err := dec.Decode(&body); err != nil {
		return nil, &Error{Kind: KindDecode, Code: resp.StatusCode, Msg: msgDecode, Err: err}
	}
	return body, nil
}
