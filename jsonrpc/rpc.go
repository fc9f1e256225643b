// Package jsonrpc adapts the envelope/handler pipeline to a JSON-RPC 2.0
// tool-call surface: request/response framing, header<->meta marshalling,
// and a domain-error-to-JSON-RPC-code mapping shared with the gRPC
// adjacency helper in grpcstatus.go.
package jsonrpc

import (
	"encoding/json"
	"errors"

	"github.com/qollective/qollective-go/envelope"
	qerrors "github.com/qollective/qollective-go/errors"
)

// Standard JSON-RPC 2.0 error codes, plus the framework's -32000 band for
// domain errors with no closer JSON-RPC equivalent.
const (
	CodeParseError     = -32700
	CodeInvalidRequest = -32600
	CodeMethodNotFound = -32601
	CodeInvalidParams  = -32602
	CodeInternalError  = -32603
	CodeServerError    = -32000
)

// JsonRpcRequest wraps a tool/method call in the framework's envelope
// metadata so request identity, tenancy, and tracing ride alongside the
// RPC payload.
type JsonRpcRequest[T any] struct {
	JsonRPC string          `json:"jsonrpc"`
	Method  string          `json:"method"`
	Params  T               `json:"params"`
	ID      json.RawMessage `json:"id,omitempty"`
	Meta    envelope.Meta   `json:"meta"`
}

// JsonRpcEnvelopeError is the JSON-RPC error object, with an optional
// carried Meta so error responses still propagate tracing/tenant context.
type JsonRpcEnvelopeError struct {
	Code    int             `json:"code"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data,omitempty"`
	Meta    *envelope.Meta  `json:"meta,omitempty"`
}

// JsonRpcResponse carries either Result or Error, never both — enforced
// by MarshalJSON and exercised directly in rpc_test.go.
type JsonRpcResponse[R any] struct {
	JsonRPC string                `json:"jsonrpc"`
	Result  *R                    `json:"-"`
	Error   *JsonRpcEnvelopeError `json:"-"`
	ID      json.RawMessage       `json:"id"`
	Meta    envelope.Meta         `json:"meta"`
}

type jsonRpcResponseWire[R any] struct {
	JsonRPC string                `json:"jsonrpc"`
	Result  *R                    `json:"result,omitempty"`
	Error   *JsonRpcEnvelopeError `json:"error,omitempty"`
	ID      json.RawMessage       `json:"id"`
	Meta    envelope.Meta         `json:"meta"`
}

// MarshalJSON serializes exactly one of Result or Error per the JSON-RPC
// 2.0 spec; a response carrying both (or neither) is rejected so that
// invariant cannot leak onto the wire.
func (r JsonRpcResponse[R]) MarshalJSON() ([]byte, error) {
	if r.Result != nil && r.Error != nil {
		return nil, qerrors.New(qerrors.KindEnvelope, "JSON-RPC response cannot carry both result and error")
	}
	if r.Result == nil && r.Error == nil {
		return nil, qerrors.New(qerrors.KindEnvelope, "JSON-RPC response must carry either result or error")
	}
	return json.Marshal(jsonRpcResponseWire[R]{
		JsonRPC: r.JsonRPC,
		Result:  r.Result,
		Error:   r.Error,
		ID:      r.ID,
		Meta:    r.Meta,
	})
}

func (r *JsonRpcResponse[R]) UnmarshalJSON(data []byte) error {
	var wire jsonRpcResponseWire[R]
	if err := json.Unmarshal(data, &wire); err != nil {
		return qerrors.Wrap(qerrors.KindDeserialization, err, "failed to deserialize JSON-RPC response")
	}
	r.JsonRPC = wire.JsonRPC
	r.Result = wire.Result
	r.Error = wire.Error
	r.ID = wire.ID
	r.Meta = wire.Meta
	return nil
}

// NewResult builds a successful response, preserving id byte-for-byte
// (including a literal `null` id for notifications).
func NewResult[R any](id json.RawMessage, meta envelope.Meta, result R) JsonRpcResponse[R] {
	return JsonRpcResponse[R]{JsonRPC: "2.0", Result: &result, ID: id, Meta: meta}
}

// NewError builds an error response from a pre-built JsonRpcEnvelopeError.
func NewError[R any](id json.RawMessage, rpcErr JsonRpcEnvelopeError) JsonRpcResponse[R] {
	meta := envelope.Meta{}
	if rpcErr.Meta != nil {
		meta = *rpcErr.Meta
	}
	return JsonRpcResponse[R]{JsonRPC: "2.0", Error: &rpcErr, ID: id, Meta: meta}
}

func newErr(code int, message string) JsonRpcEnvelopeError {
	return JsonRpcEnvelopeError{Code: code, Message: message}
}

func ParseError(message string) JsonRpcEnvelopeError     { return newErr(CodeParseError, message) }
func InvalidRequest(message string) JsonRpcEnvelopeError { return newErr(CodeInvalidRequest, message) }
func MethodNotFound(method string) JsonRpcEnvelopeError {
	return newErr(CodeMethodNotFound, "method not found: "+method)
}
func InvalidParams(message string) JsonRpcEnvelopeError { return newErr(CodeInvalidParams, message) }
func InternalError(message string) JsonRpcEnvelopeError { return newErr(CodeInternalError, message) }
func ServerError(message string) JsonRpcEnvelopeError    { return newErr(CodeServerError, message) }

// CodeFromDomainError maps the framework's error taxonomy onto a
// JSON-RPC error code, per the framework error mapping table.
func CodeFromDomainError(err error) int {
	kind, ok := qerrors.KindOf(err)
	if !ok {
		return CodeInternalError
	}
	switch kind {
	case qerrors.KindValidation:
		return CodeInvalidParams
	case qerrors.KindSerialization, qerrors.KindDeserialization, qerrors.KindEnvelope, qerrors.KindInternal:
		return CodeInternalError
	case qerrors.KindTransport, qerrors.KindConnection, qerrors.KindSecurity, qerrors.KindExternal,
		qerrors.KindRemote, qerrors.KindFeatureNotEnabled,
		qerrors.KindNatsConnection, qerrors.KindNatsMessage, qerrors.KindNatsTimeout,
		qerrors.KindNatsDiscovery, qerrors.KindNatsSubject, qerrors.KindNatsAuth:
		return CodeServerError
	case qerrors.KindMethodNotFound, qerrors.KindMcpServerNotFound, qerrors.KindAgentNotFound:
		return CodeMethodNotFound
	case qerrors.KindParse:
		return CodeParseError
	default:
		return CodeInternalError
	}
}

// kindLabels humanize the taxonomy for JSON-RPC error messages, so a
// validation failure reads "Validation error: bad field" rather than
// leaking the internal kind tag.
var kindLabels = map[qerrors.Kind]string{
	qerrors.KindValidation:      "Validation error",
	qerrors.KindSerialization:   "Serialization error",
	qerrors.KindDeserialization: "Deserialization error",
	qerrors.KindEnvelope:        "Envelope error",
	qerrors.KindInternal:        "Internal error",
	qerrors.KindTransport:       "Transport error",
	qerrors.KindConnection:      "Connection error",
	qerrors.KindSecurity:        "Security error",
	qerrors.KindExternal:        "External error",
	qerrors.KindRemote:          "Remote error",
	qerrors.KindParse:           "Parse error",
	qerrors.KindMethodNotFound:  "Method not found",
}

// FromDomainError builds a JsonRpcEnvelopeError whose code follows
// CodeFromDomainError and whose message carries a humanized category
// label in front of the domain error's message.
func FromDomainError(err error) JsonRpcEnvelopeError {
	msg := err.Error()
	var qe *qerrors.Error
	if errors.As(err, &qe) {
		if label, ok := kindLabels[qe.Kind]; ok {
			msg = label + ": " + qe.Message
		}
	}
	return JsonRpcEnvelopeError{Code: CodeFromDomainError(err), Message: msg}
}
