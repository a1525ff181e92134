package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

// ErrDaemonUnavailable is returned when no daemon answers at the bind address.
var ErrDaemonUnavailable = errors.New("daemon API unavailable")

// StatusError is a non-2xx answer from the daemon.
type StatusError struct {
	StatusCode int
	Message    string
}

func (e *StatusError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("daemon returned status %d", e.StatusCode)
	}
	return fmt.Sprintf("daemon returned status %d: %s", e.StatusCode, e.Message)
}

// Client calls a running daemon over HTTP.
type Client struct {
	base  *url.URL
	token string
	http  *http.Client
}

// NewClient builds a client for bind ("host:port" or a URL). token is sent as
// a bearer token when non-empty.
func NewClient(bind, token string) (*Client, error) {
	bind = strings.TrimSpace(bind)
	if bind == "" {
		return nil, fmt.Errorf("daemon bind address is empty")
	}
	if !strings.Contains(bind, "://") {
		bind = "http://" + bind
	}
	base, err := url.Parse(bind)
	if err != nil {
		return nil, fmt.Errorf("parse daemon address: %w", err)
	}
	base.Path = ""
	base.RawQuery = ""
	base.Fragment = ""
	return &Client{
		base:  base,
		token: strings.TrimSpace(token),
		http:  &http.Client{Timeout: 60 * time.Second},
	}, nil
}

// Status fetches daemon status with preflight results.
func (c *Client) Status(ctx context.Context) (DaemonStatus, error) {
	var out DaemonStatus
	err := c.do(ctx, http.MethodGet, "/api/status", nil, nil, &out)
	return out, err
}

// Session fetches the editing session.
func (c *Client) Session(ctx context.Context) (Session, error) {
	var out Session
	err := c.do(ctx, http.MethodGet, "/api/session", nil, nil, &out)
	return out, err
}

// GenerateOutline requests a new outline and waits for it.
func (c *Client) GenerateOutline(ctx context.Context, req OutlineRequest) (Session, error) {
	var out Session
	err := c.do(ctx, http.MethodPost, "/api/session/outline", nil, req, &out)
	return out, err
}

// Confirm starts the render run.
func (c *Client) Confirm(ctx context.Context, req ConfirmRequest) (Session, error) {
	var out Session
	err := c.do(ctx, http.MethodPost, "/api/session/confirm", nil, req, &out)
	return out, err
}

// Control posts one of pause, resume, cancel, retry or reset.
func (c *Client) Control(ctx context.Context, action string) (Session, error) {
	var out Session
	err := c.do(ctx, http.MethodPost, "/api/session/"+url.PathEscape(action), nil, nil, &out)
	return out, err
}

// Save stores the session as a deck version.
func (c *Client) Save(ctx context.Context, label string) (Deck, error) {
	var out Deck
	err := c.do(ctx, http.MethodPost, "/api/session/save", nil, SaveRequest{Label: label}, &out)
	return out, err
}

// TestNotification asks the daemon to send a test notification.
func (c *Client) TestNotification(ctx context.Context) (TestNotificationResponse, error) {
	var out TestNotificationResponse
	err := c.do(ctx, http.MethodPost, "/api/notifications/test", nil, nil, &out)
	return out, err
}

// Download is a file returned by the daemon.
type Download struct {
	Data     []byte
	Filename string
}

// Export downloads the session in format.
func (c *Client) Export(ctx context.Context, format string) (Download, error) {
	q := url.Values{}
	if format != "" {
		q.Set("format", format)
	}
	var out Download
	err := c.do(ctx, http.MethodGet, "/api/session/export", q, nil, &out)
	return out, err
}

// Import replaces the session with a project file read from r.
func (c *Client) Import(ctx context.Context, r io.Reader) (Session, error) {
	var out Session
	err := c.do(ctx, http.MethodPost, "/api/session/import", nil, r, &out)
	return out, err
}

// Load opens a stored deck as the session.
func (c *Client) Load(ctx context.Context, deckID string) (Session, error) {
	var out Session
	err := c.do(ctx, http.MethodPost, "/api/session/load/"+url.PathEscape(deckID), nil, nil, &out)
	return out, err
}

// ListDecks lists stored decks.
func (c *Client) ListDecks(ctx context.Context, query string, limit int) ([]DeckSummary, error) {
	q := url.Values{}
	if strings.TrimSpace(query) != "" {
		q.Set("q", query)
	}
	if limit > 0 {
		q.Set("limit", strconv.Itoa(limit))
	}
	var out DeckListResponse
	if err := c.do(ctx, http.MethodGet, "/api/decks", q, nil, &out); err != nil {
		return nil, err
	}
	return out.Decks, nil
}

// LogQuery filters /api/logs.
type LogQuery struct {
	Since     uint64
	Limit     int
	Component string
	DeckID    string
	Level     string
}

// Logs fetches hub events after q.Since.
func (c *Client) Logs(ctx context.Context, q LogQuery) (LogStreamResponse, error) {
	values := url.Values{}
	if q.Since > 0 {
		values.Set("since", strconv.FormatUint(q.Since, 10))
	}
	if q.Limit > 0 {
		values.Set("limit", strconv.Itoa(q.Limit))
	}
	if strings.TrimSpace(q.Component) != "" {
		values.Set("component", q.Component)
	}
	if strings.TrimSpace(q.DeckID) != "" {
		values.Set("deck", q.DeckID)
	}
	if strings.TrimSpace(q.Level) != "" {
		values.Set("level", q.Level)
	}
	var out LogStreamResponse
	err := c.do(ctx, http.MethodGet, "/api/logs", values, nil, &out)
	return out, err
}

func (c *Client) do(ctx context.Context, method, path string, query url.Values, body, out any) error {
	endpoint := c.base.ResolveReference(&url.URL{Path: path, RawQuery: query.Encode()})
	var reader io.Reader
	switch b := body.(type) {
	case nil:
	case io.Reader:
		reader = b
	default:
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		reader = bytes.NewReader(data)
	}
	req, err := http.NewRequestWithContext(ctx, method, endpoint.String(), reader)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		if isUnavailable(err) {
			return fmt.Errorf("%w: %v", ErrDaemonUnavailable, err)
		}
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		var payload ErrorResponse
		data, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
		if json.Unmarshal(data, &payload) != nil {
			payload.Error = strings.TrimSpace(string(data))
		}
		return &StatusError{StatusCode: resp.StatusCode, Message: payload.Error}
	}
	switch dst := out.(type) {
	case nil:
		return nil
	case *Download:
		data, err := io.ReadAll(resp.Body)
		if err != nil {
			return fmt.Errorf("read download: %w", err)
		}
		dst.Data = data
		if _, params, err := mime.ParseMediaType(resp.Header.Get("Content-Disposition")); err == nil {
			dst.Filename = params["filename"]
		}
		return nil
	default:
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("decode response: %w", err)
		}
		return nil
	}
}

// IsUnavailable reports whether err means no daemon is listening.
func IsUnavailable(err error) bool {
	return errors.Is(err, ErrDaemonUnavailable)
}

func isUnavailable(err error) bool {
	var urlErr *url.Error
	if errors.As(err, &urlErr) && urlErr.Err != nil {
		err = urlErr.Err
	}
	var opErr *net.OpError
	return errors.As(err, &opErr)
}
