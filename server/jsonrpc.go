package server

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/jonwraymond/toolops-mcp-server/registry"
	"github.com/jonwraymond/toolops-mcp-server/toolbase"
)

// maxStdioMessageBytes is §6's "messages > 1 MiB MAY be rejected with
// -32600" ceiling.
const maxStdioMessageBytes = 1 << 20

// JSON-RPC 2.0 error codes fixed by §6.
const (
	rpcCodeParseError     = -32600
	rpcCodeMethodNotFound = -32601
	rpcCodeInvalidParams  = -32602
	rpcCodeCircuitOpen    = -32001
	rpcCodeToolDisabled   = -32002
	rpcCodeExecutionError = -32000
)

type rpcRequest struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      json.RawMessage `json:"id,omitempty"`
	Method  string          `json:"method"`
	Params  json.RawMessage `json:"params,omitempty"`
}

type rpcResponse struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      json.RawMessage `json:"id,omitempty"`
	Result  any             `json:"result,omitempty"`
	Error   *rpcErrorBody   `json:"error,omitempty"`
}

type rpcErrorBody struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

type executeToolParams struct {
	Name  string              `json:"name"`
	Input executeToolInputDTO `json:"input"`
}

type executeToolInputDTO struct {
	Target        string  `json:"target"`
	ExtraArgs     string  `json:"extra_args,omitempty"`
	TimeoutSec    float64 `json:"timeout_sec,omitempty"`
	CorrelationID string  `json:"correlation_id,omitempty"`
}

// StdioTransport speaks newline-delimited JSON-RPC 2.0 on the given
// reader/writer pair (ordinarily os.Stdin/os.Stdout). It is a trusted
// local channel per SPEC_FULL.md §C.1: no authentication layer sits in
// front of it.
type StdioTransport struct {
	srv *Server
	in  *bufio.Scanner
	out io.Writer
}

// NewStdioTransport builds a transport reading newline-delimited
// requests from r and writing newline-delimited responses to w.
func NewStdioTransport(srv *Server, r io.Reader, w io.Writer) *StdioTransport {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), maxStdioMessageBytes+1)
	return &StdioTransport{srv: srv, in: scanner, out: w}
}

// Serve reads requests until ctx is cancelled or the input is
// exhausted, writing one response line per request. Malformed lines
// that cannot even be parsed into an ID get a parse-error response
// with a null ID, matching JSON-RPC 2.0 convention.
func (t *StdioTransport) Serve(ctx context.Context) error {
	for t.in.Scan() {
		if ctx.Err() != nil {
			return ctx.Err()
		}

		line := t.in.Bytes()
		if len(line) == 0 {
			continue
		}

		resp := t.handleLine(ctx, line)
		if resp == nil {
			continue // notification with no id: JSON-RPC allows silence, but every method here expects a reply
		}

		encoded, err := json.Marshal(resp)
		if err != nil {
			continue
		}
		if _, err := t.out.Write(append(encoded, '\n')); err != nil {
			return err
		}
	}
	return t.in.Err()
}

func (t *StdioTransport) handleLine(ctx context.Context, line []byte) *rpcResponse {
	if len(line) > maxStdioMessageBytes {
		return &rpcResponse{JSONRPC: "2.0", Error: &rpcErrorBody{Code: rpcCodeParseError, Message: "message exceeds 1 MiB"}}
	}

	var req rpcRequest
	if err := json.Unmarshal(line, &req); err != nil {
		return &rpcResponse{JSONRPC: "2.0", Error: &rpcErrorBody{Code: rpcCodeParseError, Message: "malformed JSON-RPC request"}}
	}

	switch req.Method {
	case "list_tools":
		return &rpcResponse{JSONRPC: "2.0", ID: req.ID, Result: t.srv.ListTools()}
	case "execute_tool":
		return t.handleExecuteTool(ctx, req)
	default:
		return &rpcResponse{JSONRPC: "2.0", ID: req.ID, Error: &rpcErrorBody{Code: rpcCodeMethodNotFound, Message: fmt.Sprintf("unknown method %q", req.Method)}}
	}
}

func (t *StdioTransport) handleExecuteTool(ctx context.Context, req rpcRequest) *rpcResponse {
	var params executeToolParams
	if err := json.Unmarshal(req.Params, &params); err != nil {
		return &rpcResponse{JSONRPC: "2.0", ID: req.ID, Error: &rpcErrorBody{Code: rpcCodeInvalidParams, Message: "malformed execute_tool params"}}
	}

	input := toolbase.ToolInput{
		Target:        params.Input.Target,
		ExtraArgs:     params.Input.ExtraArgs,
		TimeoutSec:    params.Input.TimeoutSec,
		CorrelationID: params.Input.CorrelationID,
	}

	out, err := t.srv.Registry.Execute(ctx, params.Name, input)
	switch {
	case errors.Is(err, registry.ErrUnknownTool):
		return &rpcResponse{JSONRPC: "2.0", ID: req.ID, Error: &rpcErrorBody{Code: rpcCodeMethodNotFound, Message: "unknown tool"}}
	case errors.Is(err, registry.ErrToolDisabled):
		return &rpcResponse{JSONRPC: "2.0", ID: req.ID, Error: &rpcErrorBody{Code: rpcCodeToolDisabled, Message: "tool is disabled"}}
	case err != nil:
		return &rpcResponse{JSONRPC: "2.0", ID: req.ID, Error: &rpcErrorBody{Code: rpcCodeExecutionError, Message: err.Error()}}
	}

	switch classifyExecErrorType(out) {
	case toolbase.ErrorValidation:
		return &rpcResponse{JSONRPC: "2.0", ID: req.ID, Error: &rpcErrorBody{Code: rpcCodeInvalidParams, Message: out.Error}}
	case toolbase.ErrorCircuitOpen:
		return &rpcResponse{JSONRPC: "2.0", ID: req.ID, Error: &rpcErrorBody{Code: rpcCodeCircuitOpen, Message: out.Error}}
	}

	return &rpcResponse{JSONRPC: "2.0", ID: req.ID, Result: out}
}
