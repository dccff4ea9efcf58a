package backfill

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"time"

	"github.com/google/uuid"
)

// Client connects to the Health Auto Export TCP server (JSON-RPC 2.0).
// Each method call opens a new TCP connection — the HAE server closes the
// socket after sending the response.
type Client struct {
	host      string
	port      int
	timeout   time.Duration
	waitDelay time.Duration // pause between reachability probes in waitForServer
}

// jsonRPCRequest is a JSON-RPC 2.0 request. HAE accepts string IDs, which
// keeps every request distinguishable in its logs.
type jsonRPCRequest struct {
	JSONRPC string `json:"jsonrpc"`
	ID      string `json:"id"`
	Method  string `json:"method"`
	Params  any    `json:"params"`
}

// callToolParams wraps the tool name and arguments for the callTool method.
type callToolParams struct {
	Name      string         `json:"name"`
	Arguments map[string]any `json:"arguments"`
}

// jsonRPCResponse is a JSON-RPC 2.0 response.
type jsonRPCResponse struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      string          `json:"id"`
	Result  json.RawMessage `json:"result"`
	Error   *jsonRPCError   `json:"error,omitempty"`
}

// jsonRPCError is the error object in a JSON-RPC 2.0 response.
type jsonRPCError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// NewClient creates a client for the HAE TCP server.
func NewClient(host string, port int) *Client {
	return &Client{
		host:      host,
		port:      port,
		timeout:   120 * time.Second,
		waitDelay: 3 * time.Second,
	}
}

// QueryMetrics queries health_metrics for a time range. The start and end
// strings must already be in HAE timestamp format ("2006-01-02 15:04:05
// -0700"). metrics is a comma-separated filter (empty string = all metrics).
func (c *Client) QueryMetrics(start, end, metrics string) (json.RawMessage, error) {
	args := map[string]any{
		"start":     start,
		"end":       end,
		"metrics":   metrics,
		"interval":  "",
		"aggregate": false,
	}
	return c.callTool("health_metrics", args)
}

// callTool sends a JSON-RPC callTool request and returns the result.
func (c *Client) callTool(toolName string, args map[string]any) (json.RawMessage, error) {
	req := jsonRPCRequest{
		JSONRPC: "2.0",
		ID:      uuid.NewString(),
		Method:  "callTool",
		Params: callToolParams{
			Name:      toolName,
			Arguments: args,
		},
	}

	reqData, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("marshaling request: %w", err)
	}

	addr := net.JoinHostPort(c.host, fmt.Sprintf("%d", c.port))
	conn, err := net.DialTimeout("tcp", addr, c.timeout)
	if err != nil {
		return nil, fmt.Errorf("connecting to %s: %w", addr, err)
	}
	defer conn.Close() //nolint:errcheck

	if err := conn.SetDeadline(time.Now().Add(c.timeout)); err != nil {
		return nil, fmt.Errorf("setting deadline: %w", err)
	}

	// HAE server uses newline-delimited JSON-RPC framing.
	reqData = append(reqData, '\n')

	if _, err := conn.Write(reqData); err != nil {
		return nil, fmt.Errorf("writing request: %w", err)
	}

	// HAE server closes the connection after sending the response, so read until EOF.
	respData, err := io.ReadAll(conn)
	if err != nil {
		return nil, fmt.Errorf("reading response: %w", err)
	}

	if len(respData) == 0 {
		return nil, fmt.Errorf("empty response from %s", addr)
	}

	var resp jsonRPCResponse
	if err := json.Unmarshal(respData, &resp); err != nil {
		return nil, fmt.Errorf("parsing response: %w", err)
	}

	if resp.Error != nil {
		return nil, fmt.Errorf("HAE error %d: %s", resp.Error.Code, resp.Error.Message)
	}

	return resp.Result, nil
}

// Ping checks whether the HAE server is accepting connections.
func (c *Client) Ping() bool {
	addr := net.JoinHostPort(c.host, fmt.Sprintf("%d", c.port))
	conn, err := net.DialTimeout("tcp", addr, 5*time.Second)
	if err != nil {
		return false
	}
	conn.Close() //nolint:errcheck
	return true
}

const maxRetries = 3

// errServerUnreachable means retries were exhausted without the server
// accepting a connection.
var errServerUnreachable = errors.New("server did not recover after crash")

// waitForServer polls the HAE server until it accepts connections or retries
// are exhausted. The HAE app crashes under heavy queries and restarts itself.
func (c *Client) waitForServer(log *slog.Logger) bool {
	for i := 0; i < 10; i++ {
		if c.Ping() {
			return true
		}
		log.Info("waiting for HAE server to come back...", "attempt", i+1)
		time.Sleep(c.waitDelay)
	}
	return false
}

// QueryMetricsWithRetry wraps QueryMetrics with retry logic for server crashes.
func (c *Client) QueryMetricsWithRetry(start, end, metrics string, log *slog.Logger) (json.RawMessage, error) {
	var lastErr error
	for attempt := 0; attempt < maxRetries; attempt++ {
		if attempt > 0 {
			log.Info("retrying metric query", "attempt", attempt+1)
			if !c.waitForServer(log) {
				return nil, errServerUnreachable
			}
		}
		result, err := c.QueryMetrics(start, end, metrics)
		if err == nil {
			return result, nil
		}
		lastErr = err
		log.Warn("query failed, will retry", "error", err)
	}
	return nil, lastErr
}
