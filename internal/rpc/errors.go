package rpc

import (
	"fmt"

	"github.com/openmrkt/marketd/internal/core/market"
)

// RpcError is the wire form of a failed call. For engine failures Code is the
// engine result code; transport-level failures use the rpc* constants below.
type RpcError struct {
	Code        int    `json:"error_code"`
	ErrorString string `json:"error"`
	Message     string `json:"error_message"`
}

// Transport-level error codes, outside the engine result space.
const (
	rpcINVALID_JSON    = -32700
	rpcMISSING_COMMAND = -32600
	rpcUNKNOWN_METHOD  = -32601
	rpcINVALID_PARAMS  = -32602
	rpcINTERNAL        = -32603
	rpcNOT_FOUND       = -32000
	rpcNOT_SUPPORTED   = -32001
)

func NewRpcError(code int, errStr, message string) *RpcError {
	return &RpcError{Code: code, ErrorString: errStr, Message: message}
}

func (e *RpcError) Error() string {
	return fmt.Sprintf("%s (%d): %s", e.ErrorString, e.Code, e.Message)
}

func RpcErrorInvalidJSON(detail string) *RpcError {
	return NewRpcError(rpcINVALID_JSON, "jsonInvalid", detail)
}

func RpcErrorMissingCommand() *RpcError {
	return NewRpcError(rpcMISSING_COMMAND, "missingCommand", "Missing method field")
}

func RpcErrorMethodNotFound(method string) *RpcError {
	return NewRpcError(rpcUNKNOWN_METHOD, "unknownCmd", fmt.Sprintf("Unknown method: %s", method))
}

func RpcErrorInvalidParams(detail string) *RpcError {
	return NewRpcError(rpcINVALID_PARAMS, "invalidParams", detail)
}

func RpcErrorNotFound(detail string) *RpcError {
	return NewRpcError(rpcNOT_FOUND, "entryNotFound", detail)
}

func RpcErrorNotSupported(detail string) *RpcError {
	return NewRpcError(rpcNOT_SUPPORTED, "notSupported", detail)
}

func RpcErrorInternal(detail string) *RpcError {
	return NewRpcError(rpcINTERNAL, "internal", detail)
}

// errorFromResult converts a failed engine result into an RpcError. Callers
// must not pass Success.
func errorFromResult(res market.Result) *RpcError {
	return &RpcError{
		Code:        int(res),
		ErrorString: res.String(),
		Message:     res.Message(),
	}
}
