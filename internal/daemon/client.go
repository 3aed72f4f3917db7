package daemon

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"sync/atomic"
	"time"
)

// Client talks to a serving labsearch process over its control socket.
type Client struct {
	socketPath string
	timeout    time.Duration
	requestID  atomic.Uint64
}

// NewClient creates a control client.
func NewClient(cfg Config) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Client{
		socketPath: cfg.SocketPath,
		timeout:    timeout,
	}
}

// Connect dials the control socket.
func (c *Client) Connect() (net.Conn, error) {
	conn, err := net.DialTimeout("unix", c.socketPath, c.timeout)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to %s: %w", c.socketPath, err)
	}
	return conn, nil
}

// IsRunning checks if a server is accepting connections.
func (c *Client) IsRunning() bool {
	conn, err := c.Connect()
	if err != nil {
		return false
	}
	_ = conn.Close()
	return true
}

// Ping checks the server is responsive.
func (c *Client) Ping(ctx context.Context) error {
	var res PingResult
	if err := c.call(ctx, MethodPing, nil, &res); err != nil {
		return err
	}
	if !res.Pong {
		return fmt.Errorf("ping: unexpected response")
	}
	return nil
}

// Status retrieves service, queue and task state.
func (c *Client) Status(ctx context.Context) (*StatusResult, error) {
	var res StatusResult
	if err := c.call(ctx, MethodStatus, nil, &res); err != nil {
		return nil, err
	}
	return &res, nil
}

// Search runs a query on the server.
func (c *Client) Search(ctx context.Context, params SearchParams) (*SearchResult, error) {
	if err := params.Validate(); err != nil {
		return nil, fmt.Errorf("invalid params: %w", err)
	}
	var res SearchResult
	if err := c.call(ctx, MethodSearch, params, &res); err != nil {
		return nil, err
	}
	return &res, nil
}

// Add queues a resource for indexing. An empty priority uses the server
// default.
func (c *Client) Add(ctx context.Context, identifier, priority string) error {
	return c.call(ctx, MethodAdd, ResourceParams{Identifier: identifier, Priority: priority}, nil)
}

// Delete queues removal of a resource.
func (c *Client) Delete(ctx context.Context, identifier, priority string) error {
	return c.call(ctx, MethodDelete, ResourceParams{Identifier: identifier, Priority: priority}, nil)
}

// Crawl starts a crawl task and returns its id.
func (c *Client) Crawl(ctx context.Context, identifier, description string) (string, error) {
	var res CrawlResult
	err := c.call(ctx, MethodCrawl, CrawlParams{Identifier: identifier, Description: description}, &res)
	return res.TaskID, err
}

// Clear drops the server's index.
func (c *Client) Clear(ctx context.Context) error {
	return c.call(ctx, MethodClear, nil, nil)
}

// Pause holds the server's worker.
func (c *Client) Pause(ctx context.Context) error {
	return c.call(ctx, MethodPause, nil, nil)
}

// Resume releases the server's worker.
func (c *Client) Resume(ctx context.Context) error {
	return c.call(ctx, MethodResume, nil, nil)
}

// Purge abandons the server's queued items and returns how many there were.
func (c *Client) Purge(ctx context.Context) (int, error) {
	var res PurgeResult
	err := c.call(ctx, MethodPurge, nil, &res)
	return res.Purged, err
}

// rawResponse defers decoding the result until the method is known.
type rawResponse struct {
	JSONRPC string          `json:"jsonrpc"`
	Result  json.RawMessage `json:"result,omitempty"`
	Error   *Error          `json:"error,omitempty"`
	ID      string          `json:"id"`
}

// call sends one request on a fresh connection and decodes the result into
// out. An RPC error is returned as *Error.
func (c *Client) call(ctx context.Context, method string, params, out any) error {
	conn, err := c.Connect()
	if err != nil {
		return err
	}
	defer conn.Close()

	deadline := time.Now().Add(c.timeout)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}
	if err := conn.SetDeadline(deadline); err != nil {
		return fmt.Errorf("failed to set deadline: %w", err)
	}

	req := Request{
		JSONRPC: "2.0",
		Method:  method,
		Params:  params,
		ID:      c.nextID(),
	}
	if err := json.NewEncoder(conn).Encode(req); err != nil {
		return fmt.Errorf("failed to send request: %w", err)
	}

	var resp rawResponse
	if err := json.NewDecoder(conn).Decode(&resp); err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}
	if resp.Error != nil {
		return resp.Error
	}
	if out == nil || len(resp.Result) == 0 {
		return nil
	}
	if err := json.Unmarshal(resp.Result, out); err != nil {
		return fmt.Errorf("failed to decode %s result: %w", method, err)
	}
	return nil
}

func (c *Client) nextID() string {
	return fmt.Sprintf("req-%d", c.requestID.Add(1))
}
