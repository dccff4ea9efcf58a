package backfill

import (
	"encoding/json"
	"net"
	"testing"
	"time"
)

// startMockTCPServer starts a TCP server that reads a request and sends back a
// fixed response, then closes the connection. Returns the listener port.
func startMockTCPServer(t *testing.T, response []byte) int {
	t.Helper()

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { ln.Close() })

	port := ln.Addr().(*net.TCPAddr).Port

	go func() {
		conn, err := ln.Accept()
		if err != nil {
			return
		}
		defer conn.Close()

		// Read the request (consume all available data)
		buf := make([]byte, 4096)
		conn.SetReadDeadline(time.Now().Add(2 * time.Second))
		conn.Read(buf) //nolint:errcheck

		// Send the response
		conn.Write(response) //nolint:errcheck
	}()

	return port
}

// TestCallTool verifies that a successful JSON-RPC response returns the result.
func TestCallTool(t *testing.T) {
	resp := jsonRPCResponse{
		JSONRPC: "2.0",
		ID:      "test",
		Result:  json.RawMessage(`{"data":{"metrics":[]}}`),
	}
	respBytes, _ := json.Marshal(resp)

	port := startMockTCPServer(t, respBytes)

	client := NewClient("127.0.0.1", port)
	client.timeout = 5 * time.Second

	result, err := client.callTool("health_metrics", map[string]any{
		"start": "2025-01-01 00:00:00 +0000",
		"end":   "2025-01-31 00:00:00 +0000",
	})
	if err != nil {
		t.Fatalf("callTool returned error: %v", err)
	}

	if string(result) != `{"data":{"metrics":[]}}` {
		t.Errorf("unexpected result: %s", result)
	}
}

// TestCallToolError verifies that a JSON-RPC error response is surfaced.
func TestCallToolError(t *testing.T) {
	resp := jsonRPCResponse{
		JSONRPC: "2.0",
		ID:      "test",
		Error:   &jsonRPCError{Code: -32600, Message: "Invalid request"},
	}
	respBytes, _ := json.Marshal(resp)

	port := startMockTCPServer(t, respBytes)

	client := NewClient("127.0.0.1", port)
	client.timeout = 5 * time.Second

	_, err := client.callTool("health_metrics", map[string]any{})
	if err == nil {
		t.Fatal("expected error, got nil")
	}
	if got := err.Error(); got != "HAE error -32600: Invalid request" {
		t.Errorf("unexpected error: %s", got)
	}
}

// TestQueryMetrics verifies the JSON-RPC request structure for health_metrics.
func TestQueryMetrics(t *testing.T) {
	// Server reads the request and records it for inspection.
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { ln.Close() })

	port := ln.Addr().(*net.TCPAddr).Port

	var receivedReq jsonRPCRequest
	done := make(chan struct{})

	go func() {
		defer close(done)
		conn, err := ln.Accept()
		if err != nil {
			return
		}
		defer conn.Close()

		buf := make([]byte, 4096)
		conn.SetReadDeadline(time.Now().Add(2 * time.Second))
		n, _ := conn.Read(buf)

		json.Unmarshal(buf[:n], &receivedReq) //nolint:errcheck

		resp := jsonRPCResponse{
			JSONRPC: "2.0",
			ID:      receivedReq.ID,
			Result:  json.RawMessage(`{"data":{"metrics":[]}}`),
		}
		respBytes, _ := json.Marshal(resp)
		conn.Write(respBytes) //nolint:errcheck
	}()

	client := NewClient("127.0.0.1", port)
	client.timeout = 5 * time.Second

	_, err = client.QueryMetrics("2025-01-01 00:00:00 -0500", "2025-01-01 05:59:59 -0500", "heart_rate,hrv")
	if err != nil {
		t.Fatalf("QueryMetrics returned error: %v", err)
	}

	<-done

	if receivedReq.Method != "callTool" {
		t.Errorf("expected method callTool, got %s", receivedReq.Method)
	}
	if receivedReq.ID == "" {
		t.Error("expected a non-empty request ID")
	}

	// Parse the params to verify tool name and arguments
	paramsBytes, _ := json.Marshal(receivedReq.Params)
	var params callToolParams
	json.Unmarshal(paramsBytes, &params) //nolint:errcheck

	if params.Name != "health_metrics" {
		t.Errorf("expected tool name health_metrics, got %s", params.Name)
	}
	if params.Arguments["start"] != "2025-01-01 00:00:00 -0500" {
		t.Errorf("unexpected start argument: %v", params.Arguments["start"])
	}
	if params.Arguments["metrics"] != "heart_rate,hrv" {
		t.Errorf("expected metrics filter heart_rate,hrv, got %v", params.Arguments["metrics"])
	}
	if params.Arguments["aggregate"] != false {
		t.Errorf("expected aggregate=false, got %v", params.Arguments["aggregate"])
	}
}

// TestConnectionRefused verifies that a connection error is returned gracefully.
func TestConnectionRefused(t *testing.T) {
	// Use a port that's guaranteed to be unused
	client := NewClient("127.0.0.1", 1)
	client.timeout = 1 * time.Second

	_, err := client.callTool("health_metrics", map[string]any{})
	if err == nil {
		t.Fatal("expected error for refused connection")
	}
	if !isNetworkError(err) {
		t.Errorf("expected a network error, got %v", err)
	}
}

// TestEmptyResponse verifies that an empty response is handled as an error.
func TestEmptyResponse(t *testing.T) {
	port := startMockTCPServer(t, []byte{})

	client := NewClient("127.0.0.1", port)
	client.timeout = 5 * time.Second

	_, err := client.callTool("health_metrics", map[string]any{})
	if err == nil {
		t.Fatal("expected error for empty response")
	}
}

// TestPing verifies reachability checks against a live and a dead port.
func TestPing(t *testing.T) {
	port := startMockTCPServer(t, []byte{})

	if !NewClient("127.0.0.1", port).Ping() {
		t.Error("expected Ping to succeed against listening server")
	}
	if NewClient("127.0.0.1", 1).Ping() {
		t.Error("expected Ping to fail against closed port")
	}
}
