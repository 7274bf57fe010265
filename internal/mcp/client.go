package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/kunaaa123/ai-mcp-hub/internal/logging"
)

// DefaultRequestTimeout bounds every JSON-RPC round trip.
const DefaultRequestTimeout = 30 * time.Second

// Client speaks JSON-RPC to one external tool server over a Transport.
// Responses may arrive out of order; the pending table correlates them
// to their requests by id.
type Client struct {
	transport Transport
	serverID  string
	timeout   time.Duration

	serverInfo *ServerInfo
	tools      []*ToolInfo

	connected bool
	mu        sync.RWMutex

	nextID    int64
	pending   map[int64]chan *JSONRPCMessage
	pendingMu sync.Mutex

	ctx    context.Context
	cancel context.CancelFunc
	done   chan struct{}
}

// NewClient creates a client on an already-open transport and starts its
// receive loop. The caller still has to run the Connect handshake.
func NewClient(serverID string, transport Transport, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = DefaultRequestTimeout
	}

	ctx, cancel := context.WithCancel(context.Background())
	c := &Client{
		transport: transport,
		serverID:  serverID,
		timeout:   timeout,
		pending:   make(map[int64]chan *JSONRPCMessage),
		ctx:       ctx,
		cancel:    cancel,
		done:      make(chan struct{}),
	}

	go c.receiveLoop()
	return c
}

// receiveLoop reads messages from the transport and routes them until the
// transport closes or the client shuts down.
func (c *Client) receiveLoop() {
	defer close(c.done)

	for {
		select {
		case <-c.ctx.Done():
			return
		default:
		}

		msg, err := c.transport.Receive()
		if err != nil {
			if c.ctx.Err() != nil {
				return
			}
			logging.Warn("tool server receive error", "server_id", c.serverID, "error", err)
			// The child is gone; fail everything still waiting.
			c.markDisconnected()
			return
		}

		c.handleMessage(msg)
	}
}

// handleMessage routes an incoming message. Responses resolve pending
// requests; notifications are logged and dropped.
func (c *Client) handleMessage(msg *JSONRPCMessage) {
	if msg.IsResponse() {
		id, ok := msg.ID.(float64) // JSON numbers decode as float64
		if !ok {
			logging.Warn("response with invalid id type", "server_id", c.serverID, "id", msg.ID)
			return
		}

		c.pendingMu.Lock()
		ch, exists := c.pending[int64(id)]
		if exists {
			delete(c.pending, int64(id))
		}
		c.pendingMu.Unlock()

		if !exists {
			logging.Warn("response for unknown request", "server_id", c.serverID, "id", id)
			return
		}
		ch <- msg
	} else if msg.IsNotification() {
		logging.Debug("notification received", "server_id", c.serverID, "method", msg.Method)
	}
}

// request sends a request and waits for the matching response.
func (c *Client) request(ctx context.Context, method string, params any) (*JSONRPCMessage, error) {
	id := atomic.AddInt64(&c.nextID, 1)

	respCh := make(chan *JSONRPCMessage, 1)
	c.pendingMu.Lock()
	c.pending[id] = respCh
	c.pendingMu.Unlock()

	defer func() {
		c.pendingMu.Lock()
		delete(c.pending, id)
		c.pendingMu.Unlock()
	}()

	msg := &JSONRPCMessage{
		ID:     id,
		Method: method,
		Params: params,
	}
	if err := c.transport.Send(msg); err != nil {
		return nil, fmt.Errorf("failed to send request: %w", err)
	}

	select {
	case resp, ok := <-respCh:
		if !ok {
			return nil, fmt.Errorf("disconnected")
		}
		if resp.Error != nil {
			return nil, resp.Error
		}
		return resp, nil
	case <-time.After(c.timeout):
		return nil, fmt.Errorf("request timeout: %s", method)
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// notify sends a notification (no response expected).
func (c *Client) notify(method string, params any) error {
	return c.transport.Send(&JSONRPCMessage{Method: method, Params: params})
}

// decodeResult re-marshals a response result into a typed value.
func decodeResult(msg *JSONRPCMessage, out any) error {
	raw, err := json.Marshal(msg.Result)
	if err != nil {
		return fmt.Errorf("failed to marshal result: %w", err)
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("failed to parse result: %w", err)
	}
	return nil
}

// Connect performs the protocol handshake: initialize, the initialized
// notification, then tools/list to populate the tool cache.
func (c *Client) Connect(ctx context.Context) error {
	c.mu.RLock()
	alreadyUp := c.connected
	c.mu.RUnlock()
	if alreadyUp {
		return nil
	}

	params := &InitializeParams{
		ProtocolVersion: ProtocolVersion,
		ClientInfo: &ClientInfo{
			Name:    "ai-mcp-hub",
			Version: "1.0.0",
		},
		Capabilities: map[string]any{},
	}

	resp, err := c.request(ctx, MethodInitialize, params)
	if err != nil {
		return fmt.Errorf("initialize failed: %w", err)
	}

	var init InitializeResult
	if err := decodeResult(resp, &init); err != nil {
		return fmt.Errorf("initialize: %w", err)
	}

	if err := c.notify(MethodInitialized, nil); err != nil {
		return fmt.Errorf("failed to send initialized notification: %w", err)
	}

	listResp, err := c.request(ctx, MethodToolsList, nil)
	if err != nil {
		return fmt.Errorf("tools/list failed: %w", err)
	}

	var list ListToolsResult
	if err := decodeResult(listResp, &list); err != nil {
		return fmt.Errorf("tools/list: %w", err)
	}

	// The wire exchanges above run unlocked so readers of the client
	// never wait on a slow child. Only the final install is guarded.
	c.mu.Lock()
	c.serverInfo = init.ServerInfo
	c.tools = list.Tools
	c.connected = true
	c.mu.Unlock()

	serverName := c.serverID
	if init.ServerInfo != nil {
		serverName = init.ServerInfo.Name
	}
	logging.Info("tool server connected",
		"server_id", c.serverID,
		"server", serverName,
		"tools", len(c.tools))

	return nil
}

// CallTool invokes a tool on the server and flattens the result content
// into a single string. Non-text content blocks are JSON-serialized.
func (c *Client) CallTool(ctx context.Context, name string, args map[string]any) (string, error) {
	c.mu.RLock()
	if !c.connected {
		c.mu.RUnlock()
		return "", fmt.Errorf("server %s is not connected", c.serverID)
	}
	c.mu.RUnlock()

	resp, err := c.request(ctx, MethodToolsCall, &CallToolParams{Name: name, Arguments: args})
	if err != nil {
		return "", fmt.Errorf("tools/call failed: %w", err)
	}

	var result CallToolResult
	if err := decodeResult(resp, &result); err != nil {
		return "", fmt.Errorf("tools/call: %w", err)
	}

	text := flattenContent(result.Content)
	if result.IsError {
		return "", fmt.Errorf("tool %s failed: %s", name, text)
	}
	return text, nil
}

// flattenContent joins content blocks into newline-separated text.
func flattenContent(blocks []*ContentBlock) string {
	var parts []string
	for _, b := range blocks {
		if b == nil {
			continue
		}
		if b.Type == "text" {
			parts = append(parts, b.Text)
			continue
		}
		raw, err := json.Marshal(b)
		if err != nil {
			continue
		}
		parts = append(parts, string(raw))
	}
	return strings.Join(parts, "\n")
}

// Tools returns the cached tool list from the handshake.
func (c *Client) Tools() []*ToolInfo {
	c.mu.RLock()
	defer c.mu.RUnlock()

	out := make([]*ToolInfo, len(c.tools))
	copy(out, c.tools)
	return out
}

// ServerInfo returns the identity the server reported at initialize time.
func (c *Client) ServerInfo() *ServerInfo {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.serverInfo
}

// Connected reports whether the handshake completed and the transport is up.
func (c *Client) Connected() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.connected
}

// markDisconnected flips the connection state and fails all pending
// requests by closing their channels.
func (c *Client) markDisconnected() {
	c.mu.Lock()
	c.connected = false
	c.tools = nil
	c.mu.Unlock()

	c.pendingMu.Lock()
	for id, ch := range c.pending {
		close(ch)
		delete(c.pending, id)
	}
	c.pendingMu.Unlock()
}

// Close shuts down the client, fails pending requests, and terminates
// the transport.
func (c *Client) Close() error {
	c.cancel()
	c.markDisconnected()

	err := c.transport.Close()

	select {
	case <-c.done:
	case <-time.After(5 * time.Second):
		logging.Warn("receive loop did not stop in time", "server_id", c.serverID)
	}

	if err != nil {
		return fmt.Errorf("failed to close transport: %w", err)
	}
	logging.Debug("tool server client closed", "server_id", c.serverID)
	return nil
}
