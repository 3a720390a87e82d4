// Package rpc exposes the marketplace engine over HTTP JSON-RPC and a
// websocket event stream. Requests use the envelope
// {"method": "...", "params": [{...}]}; responses carry the payload under
// "result" with a "status" field.
package rpc

import (
	"context"
	"encoding/json"
)

// Request is the JSON-RPC request envelope. Params holds at most one object.
type Request struct {
	Method string            `json:"method"`
	Params []json.RawMessage `json:"params,omitempty"`
}

// RpcContext carries request-scoped information into handlers.
type RpcContext struct {
	Context  context.Context
	ClientIP string
}

// MethodHandler is one RPC method.
type MethodHandler interface {
	// Name returns the wire name of the method.
	Name() string

	Handle(ctx *RpcContext, params json.RawMessage) (interface{}, *RpcError)

	// Mutating reports whether the method changes engine state. Read-only
	// methods may be served from the query cache.
	Mutating() bool
}

// method is the function-backed MethodHandler used throughout this package.
type method struct {
	name     string
	mutating bool
	fn       func(ctx *RpcContext, params json.RawMessage) (interface{}, *RpcError)
}

func (m *method) Name() string { return m.name }
func (m *method) Handle(ctx *RpcContext, params json.RawMessage) (interface{}, *RpcError) {
	return m.fn(ctx, params)
}
func (m *method) Mutating() bool { return m.mutating }

// WebSocket response envelope.
type wsResponse struct {
	Type   string      `json:"type"`
	ID     interface{} `json:"id,omitempty"`
	Status string      `json:"status,omitempty"`
	Result interface{} `json:"result,omitempty"`
}

// wsEvent is the envelope for pushed stream messages.
type wsEvent struct {
	Type   string      `json:"type"`
	Stream string      `json:"stream"`
	Event  string      `json:"event"`
	Data   interface{} `json:"data"`
}
