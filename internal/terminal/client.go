package terminal

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/example/comanda/internal/models"
	"github.com/example/comanda/internal/realtime"
	"github.com/example/comanda/internal/services"
)

// ErrConflict is the server's 409: the order moved since the terminal
// last looked.
var ErrConflict = services.ErrConflict

// APIError is a non-2xx answer from the server.
type APIError struct {
	Status  int
	Message string
	// Current is the order's status when Status is 409.
	Current models.OrderStatus
}

func (e *APIError) Error() string {
	return fmt.Sprintf("server returned %d: %s", e.Status, e.Message)
}

// Is maps status codes back to the service errors so callers such as the
// auto-accept loop handle remote and local failures alike.
func (e *APIError) Is(target error) bool {
	switch e.Status {
	case http.StatusConflict:
		return target == services.ErrConflict
	case http.StatusNotFound:
		return target == services.ErrNotFound
	case http.StatusBadRequest:
		return target == services.ErrInvalidTransition
	}
	return false
}

// Client talks to the order API and the change feed with a terminal token.
type Client struct {
	baseURL string
	feedURL string
	token   string
	http    *http.Client
	dialer  *websocket.Dialer
}

// NewClient takes the API base (http://host:8080) and the feed endpoint
// (ws://host:8081/ws).
func NewClient(baseURL, feedURL, token string) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		feedURL: feedURL,
		token:   token,
		http:    &http.Client{Timeout: 10 * time.Second},
		dialer:  &websocket.Dialer{HandshakeTimeout: 10 * time.Second},
	}
}

// orderPageSize matches the server's largest page.
const orderPageSize = 200

type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Meta    *pageMeta       `json:"meta"`
	Error   string          `json:"error"`
	Current string          `json:"current_status"`
}

type pageMeta struct {
	Page  int   `json:"page"`
	Limit int   `json:"limit"`
	Total int64 `json:"total"`
}

func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	_, err := c.send(ctx, method, path, body, out)
	return err
}

// send performs the request and decodes data into out, returning the
// envelope so list calls can read the pagination block.
func (c *Client) send(ctx context.Context, method, path string, body, out any) (*envelope, error) {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, err
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+c.token)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}

	var env envelope
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &env); err != nil {
			return nil, fmt.Errorf("decode %s %s: %w", method, path, err)
		}
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		msg := env.Error
		if msg == "" {
			msg = http.StatusText(resp.StatusCode)
		}
		return nil, &APIError{Status: resp.StatusCode, Message: msg, Current: models.OrderStatus(env.Current)}
	}

	if out != nil && len(env.Data) > 0 {
		if err := json.Unmarshal(env.Data, out); err != nil {
			return nil, err
		}
	}
	return &env, nil
}

// ListOpenOrders returns every order still on the board, walking pages
// until the server's total is reached. Orders that shift pages while the
// walk is in flight are kept once.
func (c *Client) ListOpenOrders(ctx context.Context) ([]models.Order, error) {
	var orders []models.Order
	seen := make(map[uuid.UUID]bool)
	for page := 1; ; page++ {
		var batch []models.Order
		path := fmt.Sprintf("/api/orders?open=true&limit=%d&page=%d", orderPageSize, page)
		env, err := c.send(ctx, http.MethodGet, path, nil, &batch)
		if err != nil {
			return nil, err
		}
		for _, o := range batch {
			if !seen[o.ID] {
				seen[o.ID] = true
				orders = append(orders, o)
			}
		}
		if env.Meta == nil || len(batch) == 0 || int64(page)*int64(max(env.Meta.Limit, 1)) >= env.Meta.Total {
			return orders, nil
		}
	}
}

func (c *Client) ListTables(ctx context.Context) ([]models.Table, error) {
	var tables []models.Table
	err := c.do(ctx, http.MethodGet, "/api/tables", nil, &tables)
	return tables, err
}

func (c *Client) ListTabs(ctx context.Context) ([]models.Tab, error) {
	var tabs []models.Tab
	err := c.do(ctx, http.MethodGet, "/api/tabs", nil, &tabs)
	return tabs, err
}

type transitionBody struct {
	ObservedStatus models.OrderStatus `json:"observed_status"`
}

func (c *Client) transition(ctx context.Context, orderID uuid.UUID, action string, observed models.OrderStatus) (*models.Order, error) {
	var order models.Order
	path := fmt.Sprintf("/api/orders/%s/%s", orderID, action)
	if err := c.do(ctx, http.MethodPost, path, transitionBody{ObservedStatus: observed}, &order); err != nil {
		return nil, err
	}
	return &order, nil
}

// Advance moves an order one step forward. The restaurant comes from the
// token; the parameter exists so the client can stand in for the order
// service in the auto-accept loop.
func (c *Client) Advance(ctx context.Context, _ uuid.UUID, orderID uuid.UUID, observed models.OrderStatus) (*models.Order, error) {
	return c.transition(ctx, orderID, "advance", observed)
}

func (c *Client) Cancel(ctx context.Context, orderID uuid.UUID, observed models.OrderStatus) (*models.Order, error) {
	return c.transition(ctx, orderID, "cancel", observed)
}

func (c *Client) Finalize(ctx context.Context, orderID uuid.UUID, observed models.OrderStatus) (*models.Order, error) {
	return c.transition(ctx, orderID, "finalize", observed)
}

// Listen connects to the change feed and hands every event to fn until
// the connection drops or ctx ends.
func (c *Client) Listen(ctx context.Context, fn func(realtime.Event)) error {
	u, err := url.Parse(c.feedURL)
	if err != nil {
		return err
	}
	q := u.Query()
	q.Set("token", c.token)
	u.RawQuery = q.Encode()

	conn, _, err := c.dialer.DialContext(ctx, u.String(), nil)
	if err != nil {
		return fmt.Errorf("dial feed: %w", err)
	}
	defer conn.Close()

	stop := make(chan struct{})
	defer close(stop)
	go func() {
		select {
		case <-ctx.Done():
			conn.Close()
		case <-stop:
		}
	}()

	for {
		var event realtime.Event
		if err := conn.ReadJSON(&event); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return fmt.Errorf("read feed: %w", err)
		}
		fn(event)
	}
}
