package feed

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"
)

// Client is an HTTP Source for a forum service exposing a JSON API.
// It is safe for concurrent use; a crawl loop and an inbox loop may
// share one client.
type Client struct {
	BaseURL    string
	User       string
	Password   string
	HTTPClient *http.Client
	Timeout    time.Duration

	mu    sync.Mutex
	token string
}

// NewClient creates a client with sane defaults.
func NewClient(baseURL, user, password string) *Client {
	return &Client{
		BaseURL:    baseURL,
		User:       user,
		Password:   password,
		Timeout:    30 * time.Second,
		HTTPClient: &http.Client{Timeout: 30 * time.Second},
	}
}

type wireItem struct {
	ID          string `json:"id"`
	Author      string `json:"author"`
	Body        string `json:"body"`
	CreatedAt   int64  `json:"created_at"`
	Destination string `json:"destination"`
	Kind        string `json:"kind"`
	ParentID    string `json:"parent_id,omitempty"`
}

func (w wireItem) item() Item {
	return Item{
		ID:          w.ID,
		Author:      w.Author,
		Body:        w.Body,
		CreatedAt:   time.Unix(w.CreatedAt, 0).UTC(),
		Destination: w.Destination,
		Kind:        Kind(w.Kind),
		ParentID:    w.ParentID,
	}
}

func (c *Client) Connect(ctx context.Context) error {
	body := map[string]any{"user": c.User, "password": c.Password}
	var resp struct {
		Token string `json:"token"`
	}
	if err := c.do(ctx, http.MethodPost, "session", body, &resp); err != nil {
		return fmt.Errorf("connect as %s: %w", c.User, err)
	}
	c.mu.Lock()
	c.token = resp.Token
	c.mu.Unlock()
	return nil
}

func (c *Client) Username() string { return c.User }

func (c *Client) Poll(ctx context.Context, destination string, kinds []Kind, limit int) ([]Item, error) {
	endpoint := fmt.Sprintf("destinations/%s/items?limit=%d", url.PathEscape(destination), limit)
	if len(kinds) > 0 {
		names := make([]string, len(kinds))
		for i, k := range kinds {
			names[i] = string(k)
		}
		endpoint += "&kinds=" + url.QueryEscape(strings.Join(names, ","))
	}
	var resp struct {
		Items []wireItem `json:"items"`
	}
	if err := c.do(ctx, http.MethodGet, endpoint, nil, &resp); err != nil {
		return nil, err
	}
	items := make([]Item, 0, len(resp.Items))
	for _, w := range resp.Items {
		items = append(items, w.item())
	}
	return items, nil
}

func (c *Client) Unread(ctx context.Context) ([]Item, error) {
	var resp struct {
		Items []wireItem `json:"items"`
	}
	if err := c.do(ctx, http.MethodGet, "inbox/unread", nil, &resp); err != nil {
		return nil, err
	}
	items := make([]Item, 0, len(resp.Items))
	for _, w := range resp.Items {
		items = append(items, w.item())
	}
	return items, nil
}

func (c *Client) Item(ctx context.Context, id string) (Item, error) {
	var resp wireItem
	endpoint := "items/" + url.PathEscape(id)
	if err := c.do(ctx, http.MethodGet, endpoint, nil, &resp); err != nil {
		return Item{}, err
	}
	return resp.item(), nil
}

func (c *Client) Reply(ctx context.Context, parentID, body string) (Item, error) {
	var resp wireItem
	endpoint := fmt.Sprintf("items/%s/replies", url.PathEscape(parentID))
	if err := c.do(ctx, http.MethodPost, endpoint, map[string]any{"body": body}, &resp); err != nil {
		return Item{}, err
	}
	return resp.item(), nil
}

func (c *Client) MarkRead(ctx context.Context, ids ...string) error {
	if len(ids) == 0 {
		return nil
	}
	return c.do(ctx, http.MethodPost, "inbox/read", map[string]any{"ids": ids}, nil)
}

func (c *Client) do(ctx context.Context, method, endpoint string, body any, out any) error {
	c.mu.Lock()
	if c.HTTPClient == nil {
		c.HTTPClient = &http.Client{Timeout: c.Timeout}
	}
	httpClient := c.HTTPClient
	token := c.token
	c.mu.Unlock()
	u := strings.TrimRight(c.BaseURL, "/") + "/" + strings.TrimLeft(endpoint, "/")
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			return err
		}
	}
	req, err := http.NewRequestWithContext(ctx, method, u, &buf)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if err := statusError(resp, endpoint); err != nil {
		return err
	}
	if out == nil {
		io.Copy(io.Discard, resp.Body)
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

// statusError maps non-2xx responses onto the package's typed errors
// so callers can branch on the failure class instead of status codes.
func statusError(resp *http.Response, endpoint string) error {
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return nil
	}
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	switch resp.StatusCode {
	case http.StatusTooManyRequests:
		return &RateLimitError{RetryAfter: retryAfter(resp)}
	case http.StatusForbidden:
		return &RejectedError{Destination: destinationOf(endpoint)}
	case http.StatusNotFound, http.StatusGone:
		return ErrDeleted
	default:
		return fmt.Errorf("feed: %s: status=%d body=%s", endpoint, resp.StatusCode, strings.TrimSpace(string(raw)))
	}
}

func retryAfter(resp *http.Response) time.Duration {
	if v := resp.Header.Get("Retry-After"); v != "" {
		if secs, err := strconv.Atoi(v); err == nil && secs > 0 {
			return time.Duration(secs) * time.Second
		}
	}
	return time.Minute
}

func destinationOf(endpoint string) string {
	parts := strings.Split(endpoint, "/")
	if len(parts) >= 2 && parts[0] == "destinations" {
		if d, err := url.PathUnescape(parts[1]); err == nil {
			return d
		}
		return parts[1]
	}
	return ""
}
