package server

import (
	"bufio"
	"context"
	"encoding/json"
	"strings"
	"testing"

	"github.com/jonwraymond/toolops-mcp-server/config"
)

// rpcLine runs a single JSON-RPC request line through a fresh
// StdioTransport and returns the decoded response.
func rpcLine(t *testing.T, srv *Server, line string) rpcResponse {
	t.Helper()
	in := strings.NewReader(line + "\n")
	var out strings.Builder

	transport := NewStdioTransport(srv, in, &out)
	if err := transport.Serve(context.Background()); err != nil {
		t.Fatalf("Serve returned error: %v", err)
	}

	scanner := bufio.NewScanner(strings.NewReader(out.String()))
	if !scanner.Scan() {
		t.Fatalf("no response line written for request %q", line)
	}

	var resp rpcResponse
	if err := json.Unmarshal(scanner.Bytes(), &resp); err != nil {
		t.Fatalf("failed to decode response %q: %v", scanner.Text(), err)
	}
	return resp
}

func TestJSONRPC_ListTools(t *testing.T) {
	srv := newTestServer(t, config.Defaults())
	resp := rpcLine(t, srv, `{"jsonrpc":"2.0","id":1,"method":"list_tools"}`)

	if resp.Error != nil {
		t.Fatalf("unexpected error: %+v", resp.Error)
	}
	if resp.Result == nil {
		t.Fatal("expected a result for list_tools")
	}
}

func TestJSONRPC_UnknownMethod(t *testing.T) {
	srv := newTestServer(t, config.Defaults())
	resp := rpcLine(t, srv, `{"jsonrpc":"2.0","id":2,"method":"no_such_method"}`)

	if resp.Error == nil || resp.Error.Code != rpcCodeMethodNotFound {
		t.Fatalf("error = %+v, want code %d", resp.Error, rpcCodeMethodNotFound)
	}
}

func TestJSONRPC_MalformedJSON(t *testing.T) {
	srv := newTestServer(t, config.Defaults())
	resp := rpcLine(t, srv, `{not json`)

	if resp.Error == nil || resp.Error.Code != rpcCodeParseError {
		t.Fatalf("error = %+v, want code %d", resp.Error, rpcCodeParseError)
	}
}

func TestJSONRPC_OversizedMessage(t *testing.T) {
	srv := newTestServer(t, config.Defaults())
	huge := `{"jsonrpc":"2.0","id":3,"method":"list_tools","params":"` + strings.Repeat("a", maxStdioMessageBytes+10) + `"}`
	resp := rpcLine(t, srv, huge)

	if resp.Error == nil || resp.Error.Code != rpcCodeParseError {
		t.Fatalf("error = %+v, want code %d", resp.Error, rpcCodeParseError)
	}
}

func TestJSONRPC_ExecuteTool_UnknownTool(t *testing.T) {
	srv := newTestServer(t, config.Defaults())
	resp := rpcLine(t, srv, `{"jsonrpc":"2.0","id":4,"method":"execute_tool","params":{"name":"NoSuchTool","input":{"target":"10.0.0.1"}}}`)

	if resp.Error == nil || resp.Error.Code != rpcCodeMethodNotFound {
		t.Fatalf("error = %+v, want code %d", resp.Error, rpcCodeMethodNotFound)
	}
}

func TestJSONRPC_ExecuteTool_ValidationFailure(t *testing.T) {
	srv := newTestServer(t, config.Defaults())
	resp := rpcLine(t, srv, `{"jsonrpc":"2.0","id":5,"method":"execute_tool","params":{"name":"PortSweep","input":{"target":"8.8.8.8"}}}`)

	if resp.Error == nil || resp.Error.Code != rpcCodeInvalidParams {
		t.Fatalf("error = %+v, want code %d (invalid params / validation)", resp.Error, rpcCodeInvalidParams)
	}
}

func TestJSONRPC_ExecuteTool_MalformedParams(t *testing.T) {
	srv := newTestServer(t, config.Defaults())
	resp := rpcLine(t, srv, `{"jsonrpc":"2.0","id":6,"method":"execute_tool","params":"not-an-object"}`)

	if resp.Error == nil || resp.Error.Code != rpcCodeInvalidParams {
		t.Fatalf("error = %+v, want code %d", resp.Error, rpcCodeInvalidParams)
	}
}
