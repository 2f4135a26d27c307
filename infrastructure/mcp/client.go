package mcp

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/felixgeelhaar/ragent/domain/config"
	"github.com/felixgeelhaar/ragent/domain/tool"
	"github.com/felixgeelhaar/ragent/infrastructure/logging"
)

// ClientConfig configures an MCP client.
type ClientConfig struct {
	// Name identifies this client to the server.
	Name string

	// Version is the client version.
	Version string

	// Command is the server command and its arguments.
	Command []string

	// Env is added to the server process environment.
	Env map[string]string
}

// ClientConfigFrom converts a file server entry into a ClientConfig.
func ClientConfigFrom(sc config.MCPServerConfig) ClientConfig {
	return ClientConfig{
		Name:    "ragent",
		Version: "1.0.0",
		Command: append([]string{sc.Command}, sc.Args...),
		Env:     sc.Env,
	}
}

// Client consumes tools from an MCP server over stdio.
type Client struct {
	config     ClientConfig
	serverInfo *PeerInfo
	connected  bool
	mu         sync.RWMutex

	cmd     *exec.Cmd
	stdin   io.WriteCloser
	stdout  io.ReadCloser
	encoder *json.Encoder
	writeMu sync.Mutex

	reqID     atomic.Int64
	responses map[int64]chan *rpcResponse
	respMu    sync.Mutex
	done      chan struct{}
}

// NewClient creates a client; Connect starts the server process.
func NewClient(cfg ClientConfig) *Client {
	if cfg.Name == "" {
		cfg.Name = "ragent"
	}
	if cfg.Version == "" {
		cfg.Version = "1.0.0"
	}
	return &Client{
		config:    cfg,
		responses: make(map[int64]chan *rpcResponse),
	}
}

// Connect launches the server process and performs the initialize handshake.
func (c *Client) Connect(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.connected {
		return ErrAlreadyConnected
	}
	if len(c.config.Command) == 0 || c.config.Command[0] == "" {
		return fmt.Errorf("%w: no command specified", ErrConnectionFailed)
	}

	// The process outlives Connect's context; Close stops it.
	cmd := exec.Command(c.config.Command[0], c.config.Command[1:]...)
	cmd.Env = os.Environ()
	for k, v := range c.config.Env {
		cmd.Env = append(cmd.Env, k+"="+v)
	}

	stdin, err := cmd.StdinPipe()
	if err != nil {
		return fmt.Errorf("%w: stdin pipe: %v", ErrConnectionFailed, err)
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		_ = stdin.Close()
		return fmt.Errorf("%w: stdout pipe: %v", ErrConnectionFailed, err)
	}
	if err := cmd.Start(); err != nil {
		_ = stdin.Close()
		_ = stdout.Close()
		return fmt.Errorf("%w: start command: %v", ErrConnectionFailed, err)
	}
	c.cmd = cmd

	return c.attach(ctx, stdout, stdin)
}

// attach runs the handshake over an established stream pair.
// Must be called with c.mu held.
func (c *Client) attach(ctx context.Context, r io.ReadCloser, w io.WriteCloser) error {
	c.stdout = r
	c.stdin = w
	c.encoder = json.NewEncoder(w)
	c.done = make(chan struct{})
	go c.readResponses(r)

	if err := c.initialize(ctx); err != nil {
		c.shutdown()
		return err
	}
	c.connected = true
	return nil
}

func (c *Client) readResponses(r io.Reader) {
	defer close(c.done)

	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 8*1024*1024)
	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}

		var resp rpcResponse
		if err := json.Unmarshal(line, &resp); err != nil {
			continue
		}
		id, ok := resp.ID.(float64)
		if !ok {
			continue // notification or server request
		}

		c.respMu.Lock()
		if ch, exists := c.responses[int64(id)]; exists {
			ch <- &resp
			delete(c.responses, int64(id))
		}
		c.respMu.Unlock()
	}
}

func (c *Client) initialize(ctx context.Context) error {
	var result initResult
	if err := c.call(ctx, "initialize", initParams{
		ProtocolVersion: ProtocolVersion,
		ClientInfo:      PeerInfo{Name: c.config.Name, Version: c.config.Version},
	}, &result); err != nil {
		return fmt.Errorf("initialize: %w", err)
	}
	c.serverInfo = &result.ServerInfo

	return c.write(rpcRequest{JSONRPC: "2.0", Method: "notifications/initialized"})
}

func (c *Client) write(req rpcRequest) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	return c.encoder.Encode(req)
}

// call sends a request and decodes the result into out.
func (c *Client) call(ctx context.Context, method string, params, out any) error {
	raw, err := json.Marshal(params)
	if err != nil {
		return fmt.Errorf("marshal params: %w", err)
	}

	id := c.reqID.Add(1)
	respCh := make(chan *rpcResponse, 1)
	c.respMu.Lock()
	c.responses[id] = respCh
	c.respMu.Unlock()

	forget := func() {
		c.respMu.Lock()
		delete(c.responses, id)
		c.respMu.Unlock()
	}

	if err := c.write(rpcRequest{JSONRPC: "2.0", ID: id, Method: method, Params: raw}); err != nil {
		forget()
		return fmt.Errorf("send request: %w", err)
	}

	select {
	case resp := <-respCh:
		if resp.Error != nil {
			return fmt.Errorf("%s: %s (code %d)", method, resp.Error.Message, resp.Error.Code)
		}
		if out == nil || len(resp.Result) == 0 {
			return nil
		}
		if err := json.Unmarshal(resp.Result, out); err != nil {
			return fmt.Errorf("parse %s result: %w", method, err)
		}
		return nil
	case <-c.done:
		forget()
		return ErrNotConnected
	case <-ctx.Done():
		forget()
		return ctx.Err()
	}
}

// Close stops the server process.
func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.connected {
		return nil
	}
	c.connected = false
	c.shutdown()
	return nil
}

func (c *Client) shutdown() {
	if c.stdin != nil {
		_ = c.stdin.Close()
	}
	if c.stdout != nil {
		_ = c.stdout.Close()
	}
	if c.cmd != nil && c.cmd.Process != nil {
		_ = c.cmd.Process.Kill()
		_ = c.cmd.Wait()
	}
}

func (c *Client) ready() error {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if !c.connected {
		return ErrNotConnected
	}
	return nil
}

// ServerInfo returns the server's self-description after Connect.
func (c *Client) ServerInfo() *PeerInfo {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.serverInfo
}

// ListTools returns the tools the server offers.
func (c *Client) ListTools(ctx context.Context) ([]ToolDef, error) {
	if err := c.ready(); err != nil {
		return nil, err
	}
	var result listToolsResult
	if err := c.call(ctx, "tools/list", struct{}{}, &result); err != nil {
		return nil, err
	}
	return result.Tools, nil
}

// CallTool invokes a tool on the server.
func (c *Client) CallTool(ctx context.Context, name string, args json.RawMessage) (*ToolResult, error) {
	if err := c.ready(); err != nil {
		return nil, err
	}
	var result ToolResult
	if err := c.call(ctx, "tools/call", callToolParams{Name: name, Arguments: args}, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// Tools returns the server's tools wrapped as registry tools.
func (c *Client) Tools(ctx context.Context) ([]tool.Tool, error) {
	defs, err := c.ListTools(ctx)
	if err != nil {
		return nil, err
	}
	tools := make([]tool.Tool, 0, len(defs))
	for _, def := range defs {
		tools = append(tools, newRemoteTool(def, c))
	}
	return tools, nil
}

// ImportTools registers every server tool in registry and returns how many
// were added. Names already taken by local tools are skipped with a warning.
func ImportTools(ctx context.Context, client *Client, registry tool.Registry) (int, error) {
	tools, err := client.Tools(ctx)
	if err != nil {
		return 0, err
	}

	var added int
	for _, t := range tools {
		if err := registry.Register(t); err != nil {
			logging.Warn().
				Add(logging.ToolName(t.Name())).
				Add(logging.ErrorField(err)).
				Msg("skipping remote tool")
			continue
		}
		added++
	}
	return added, nil
}

// remoteTool proxies a tool hosted by an MCP server.
type remoteTool struct {
	def    ToolDef
	client *Client
}

func newRemoteTool(def ToolDef, client *Client) *remoteTool {
	return &remoteTool{def: def, client: client}
}

func (t *remoteTool) Name() string        { return t.def.Name }
func (t *remoteTool) Description() string { return t.def.Description }

func (t *remoteTool) InputSchema() tool.Schema {
	if len(t.def.InputSchema) == 0 {
		return tool.EmptySchema()
	}
	return tool.NewSchema(t.def.InputSchema)
}

// Annotations are empty: remote tools are neither cached nor retried.
func (t *remoteTool) Annotations() tool.Annotations {
	return tool.Annotations{Tags: []string{"mcp"}}
}

func (t *remoteTool) Execute(ctx context.Context, input json.RawMessage) (tool.Result, error) {
	result, err := t.client.CallTool(ctx, t.def.Name, input)
	if err != nil {
		return tool.Result{}, err
	}
	return convertResult(result), nil
}

// convertResult joins the text blocks. A JSON object is passed through as the
// output; anything else is wrapped as {"content": text}.
func convertResult(r *ToolResult) tool.Result {
	var parts []string
	for _, c := range r.Content {
		if c.Type == "text" && c.Text != "" {
			parts = append(parts, c.Text)
		}
	}
	text := strings.Join(parts, "\n")

	if r.IsError {
		if text == "" {
			text = "remote tool failed"
		}
		return tool.NewErrorResult(errors.New(text))
	}

	trimmed := strings.TrimSpace(text)
	if strings.HasPrefix(trimmed, "{") && json.Valid([]byte(trimmed)) {
		return tool.NewResult(json.RawMessage(trimmed))
	}
	raw, _ := json.Marshal(map[string]string{"content": text})
	return tool.NewResult(raw)
}
