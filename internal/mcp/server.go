package mcp

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"sync"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/caesar-quant/caesar/internal/config"
	"github.com/caesar-quant/caesar/internal/data"
	"github.com/caesar-quant/caesar/internal/database"
	"github.com/caesar-quant/caesar/internal/factors/backtest"
)

const protocolVersion = "2024-11-05"

// Standard JSON-RPC 2.0 error codes.
const (
	codeParseError     = -32700
	codeInvalidRequest = -32600
	codeMethodNotFound = -32601
	codeInvalidParams  = -32602
	codeInternalError  = -32603
)

// Server speaks the Model Context Protocol over newline-delimited JSON-RPC
// 2.0, exposing the pipeline as tools an LLM can call.
type Server struct {
	cfg     *config.App
	symbols []string
	fetcher *data.Fetcher
	engine  *backtest.Engine
	db      *database.DB // nil when DATABASE_URL is unset
	logger  zerolog.Logger

	mu  sync.Mutex // serializes writes
	out io.Writer
}

// NewServer wires the MCP surface. db may be nil.
func NewServer(cfg *config.App, symbols []string, fetcher *data.Fetcher, engine *backtest.Engine, db *database.DB) *Server {
	return &Server{
		cfg:     cfg,
		symbols: symbols,
		fetcher: fetcher,
		engine:  engine,
		db:      db,
		logger:  log.With().Str("component", "mcp").Logger(),
	}
}

type request struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      json.RawMessage `json:"id,omitempty"`
	Method  string          `json:"method"`
	Params  json.RawMessage `json:"params,omitempty"`
}

type response struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      json.RawMessage `json:"id,omitempty"`
	Result  any             `json:"result,omitempty"`
	Error   *rpcError       `json:"error,omitempty"`
}

type rpcError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// Run processes requests from r and writes responses to w until EOF or
// context cancellation. Notifications (no id) get no response.
func (s *Server) Run(ctx context.Context, r io.Reader, w io.Writer) error {
	s.out = w

	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)

	for scanner.Scan() {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}

		var req request
		if err := json.Unmarshal(line, &req); err != nil {
			s.write(response{JSONRPC: "2.0", Error: &rpcError{Code: codeParseError, Message: "parse error"}})
			continue
		}

		s.dispatch(ctx, req)
	}
	return scanner.Err()
}

func (s *Server) dispatch(ctx context.Context, req request) {
	// Notifications carry no id and expect no reply.
	if req.ID == nil {
		s.logger.Debug().Str("method", req.Method).Msg("Notification")
		return
	}

	var result any
	var rpcErr *rpcError

	switch req.Method {
	case "initialize":
		result = map[string]any{
			"protocolVersion": protocolVersion,
			"capabilities": map[string]any{
				"tools": map[string]any{},
			},
			"serverInfo": map[string]any{
				"name":    "caesar",
				"version": "1.0.0",
			},
		}
	case "ping":
		result = map[string]any{}
	case "tools/list":
		result = map[string]any{"tools": toolDefinitions()}
	case "tools/call":
		result, rpcErr = s.callTool(ctx, req.Params)
	default:
		rpcErr = &rpcError{Code: codeMethodNotFound, Message: fmt.Sprintf("method %q not found", req.Method)}
	}

	s.write(response{JSONRPC: "2.0", ID: req.ID, Result: result, Error: rpcErr})
}

func (s *Server) write(resp response) {
	s.mu.Lock()
	defer s.mu.Unlock()

	raw, err := json.Marshal(resp)
	if err != nil {
		s.logger.Error().Err(err).Msg("Failed to marshal response")
		return
	}
	raw = append(raw, '\n')
	if _, err := s.out.Write(raw); err != nil {
		s.logger.Error().Err(err).Msg("Failed to write response")
	}
}
