// Package errors defines the framework's stable error taxonomy. Every
// category named here is a wire-stable identifier: consumers match on Kind,
// never on message text.
package errors

import (
	"errors"
	"fmt"
)

// Kind is a stable error category. New values may be appended; existing
// values never change meaning.
type Kind string

const (
	KindValidation      Kind = "validation"
	KindSerialization   Kind = "serialization"
	KindDeserialization Kind = "deserialization"
	KindEnvelope        Kind = "envelope"

	KindTransport      Kind = "transport"
	KindConnection     Kind = "connection"
	KindNatsConnection Kind = "nats_connection"
	KindNatsMessage    Kind = "nats_message"
	KindNatsTimeout    Kind = "nats_timeout"
	KindNatsDiscovery  Kind = "nats_discovery"
	KindNatsSubject    Kind = "nats_subject"
	KindNatsAuth       Kind = "nats_auth"

	KindConfig            Kind = "config"
	KindFeatureNotEnabled Kind = "feature_not_enabled"

	KindSecurity         Kind = "security"
	KindTenantExtraction Kind = "tenant_extraction"

	KindMcpProtocol           Kind = "mcp_protocol"
	KindMcpToolExecution      Kind = "mcp_tool_execution"
	KindMcpServerRegistration Kind = "mcp_server_registration"
	KindMcpClientConnection   Kind = "mcp_client_connection"
	KindMcpServerNotFound     Kind = "mcp_server_not_found"
	KindGrpc                  Kind = "grpc"

	KindInternal        Kind = "internal"
	KindExternal        Kind = "external"
	KindRemote          Kind = "remote"
	KindAgentNotFound   Kind = "agent_not_found"
	KindProtocolAdapter Kind = "protocol_adapter"

	KindMethodNotFound Kind = "method_not_found"
	KindParse          Kind = "parse"
)

// Error is the framework's single wrapped-error type. It carries a stable
// Kind alongside a human-readable message and supports errors.Is/errors.As
// via Unwrap, matching the %w-wrapping idiom used throughout the stack.
type Error struct {
	Kind    Kind
	Message string
	cause   error
}

func (e *Error) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.cause)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error { return e.cause }

// New creates an Error of the given kind with a formatted message.
func New(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// Wrap creates an Error of the given kind, wrapping an underlying cause.
func Wrap(kind Kind, cause error, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...), cause: cause}
}

// Is reports whether err is a *Error of the given kind.
func Is(err error, kind Kind) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind == kind
	}
	return false
}

// KindOf extracts the Kind of err, returning ok=false if err is not (or does
// not wrap) a framework *Error.
func KindOf(err error) (Kind, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind, true
	}
	return "", false
}
