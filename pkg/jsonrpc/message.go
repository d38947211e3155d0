// Package jsonrpc implements the wire envelope for JSON-RPC 2.0 requests and
// responses used by the transport layer (§6). It does not know anything
// about A2A semantics; it is a thin, reusable framing layer in the style of
// the teacher's pkg/jsonrpc package.
package jsonrpc

import (
	"encoding/json"

	"github.com/driftwood-labs/a2a-core/pkg/errors"
)

// Request is a parsed JSON-RPC 2.0 request envelope. Params is left raw so
// each method handler can unmarshal its own params type.
type Request struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      json.RawMessage `json:"id,omitempty"`
	Method  string          `json:"method"`
	Params  json.RawMessage `json:"params,omitempty"`
}

// IsNotification reports whether the request omits an ID, per JSON-RPC 2.0
// (notifications get no response).
func (r *Request) IsNotification() bool {
	return len(r.ID) == 0
}

// Response is the JSON-RPC 2.0 response envelope.
type Response struct {
	JSONRPC string           `json:"jsonrpc"`
	ID      json.RawMessage  `json:"id,omitempty"`
	Result  any              `json:"result,omitempty"`
	Error   *errors.RpcError `json:"error,omitempty"`
}

// NewResponse builds a successful response echoing the request's ID.
func NewResponse(id json.RawMessage, result any) Response {
	return Response{JSONRPC: "2.0", ID: id, Result: result}
}

// NewErrorResponse builds an error response echoing the request's ID.
func NewErrorResponse(id json.RawMessage, rpcErr *errors.RpcError) Response {
	if rpcErr == nil {
		rpcErr = errors.ErrInternal
	}
	return Response{JSONRPC: "2.0", ID: id, Error: rpcErr}
}
