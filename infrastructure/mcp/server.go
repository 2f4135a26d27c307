package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	mcpgo "github.com/felixgeelhaar/mcp-go"

	"github.com/felixgeelhaar/ragent/domain/agent"
	"github.com/felixgeelhaar/ragent/domain/tool"
)

// AskToolName is the MCP tool that runs a full agent query.
const AskToolName = "ask"

// Asker answers a query; the orchestrator implements it.
type Asker interface {
	Run(ctx context.Context, query, sessionContext string) agent.Result
}

// ServerConfig configures the agent's MCP server.
type ServerConfig struct {
	Name         string
	Version      string
	Description  string
	Instructions string

	// Asker backs the ask tool. Nil leaves it out.
	Asker Asker

	// Registry tools are exposed alongside ask when set.
	Registry tool.Registry
}

// Server exposes the agent over MCP.
type Server struct {
	srv   *mcpgo.Server
	asker Asker
	names []string
}

// NewServer creates the server and registers its tools.
func NewServer(cfg ServerConfig) *Server {
	info := mcpgo.ServerInfo{
		Name:        cfg.Name,
		Version:     cfg.Version,
		Description: cfg.Description,
		Capabilities: mcpgo.Capabilities{
			Tools: true,
		},
	}

	var opts []mcpgo.Option
	if cfg.Instructions != "" {
		opts = append(opts, mcpgo.WithInstructions(cfg.Instructions))
	}

	s := &Server{srv: mcpgo.NewServer(info, opts...), asker: cfg.Asker}
	s.srv.Use(mcpgo.Recover(), mcpgo.RequestID())

	if cfg.Asker != nil {
		s.srv.Tool(AskToolName).
			Description("Answer a question using retrieval-augmented reasoning over the configured knowledge tools. Returns the answer with its sources.").
			Handler(s.handleAsk)
		s.names = append(s.names, AskToolName)
	}
	if cfg.Registry != nil {
		for _, t := range cfg.Registry.List() {
			if t.Name() == AskToolName {
				continue
			}
			s.registerTool(t)
		}
	}
	return s
}

type askInput struct {
	Query          string `json:"query"`
	SessionContext string `json:"session_context"`
}

func (s *Server) handleAsk(ctx context.Context, input json.RawMessage) (string, error) {
	var in askInput
	if len(input) > 0 {
		if err := json.Unmarshal(input, &in); err != nil {
			return "", fmt.Errorf("%w: %v", tool.ErrInvalidInput, err)
		}
	}
	if strings.TrimSpace(in.Query) == "" {
		return "", fmt.Errorf("%w: query is required", tool.ErrInvalidInput)
	}

	result := s.asker.Run(ctx, in.Query, in.SessionContext)
	out, err := json.Marshal(result)
	if err != nil {
		return "", err
	}
	return string(out), nil
}

func (s *Server) registerTool(t tool.Tool) {
	handler := func(ctx context.Context, input json.RawMessage) (string, error) {
		result, err := t.Execute(ctx, input)
		if err != nil {
			return "", err
		}
		if result.IsError() {
			return "", result.Error
		}
		return string(result.Output), nil
	}

	s.srv.Tool(t.Name()).
		Description(t.Description()).
		Handler(handler)
	s.names = append(s.names, t.Name())
}

// ToolNames lists the tools the server exposes, in registration order.
func (s *Server) ToolNames() []string {
	return append([]string(nil), s.names...)
}

// ServeStdio runs the server over stdin/stdout until ctx is done.
func (s *Server) ServeStdio(ctx context.Context) error {
	return ignoreCanceled(mcpgo.ServeStdio(ctx, s.srv))
}

// ServeHTTP runs the server over HTTP until ctx is done.
func (s *Server) ServeHTTP(ctx context.Context, addr string) error {
	return ignoreCanceled(mcpgo.ServeHTTP(ctx, s.srv, addr))
}

func ignoreCanceled(err error) error {
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}
