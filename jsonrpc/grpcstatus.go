package jsonrpc

import (
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	qerrors "github.com/qollective/qollective-go/errors"
)

// GrpcStatusFromDomainError maps the same domain error taxonomy used by
// CodeFromDomainError onto grpc/codes.Code. This lets a component
// exposing both a JSON-RPC and a gRPC surface over the same handler
// pipeline return consistent statuses on both, without generated
// protobuf service stubs.
func GrpcStatusFromDomainError(err error) *status.Status {
	kind, ok := qerrors.KindOf(err)
	if !ok {
		return status.New(codes.Unknown, err.Error())
	}

	var code codes.Code
	switch kind {
	case qerrors.KindValidation:
		code = codes.InvalidArgument
	case qerrors.KindSecurity, qerrors.KindNatsAuth:
		code = codes.Unauthenticated
	case qerrors.KindFeatureNotEnabled:
		code = codes.Unimplemented
	case qerrors.KindMethodNotFound, qerrors.KindMcpServerNotFound, qerrors.KindAgentNotFound:
		code = codes.NotFound
	case qerrors.KindTransport, qerrors.KindConnection, qerrors.KindNatsConnection,
		qerrors.KindNatsMessage, qerrors.KindNatsDiscovery, qerrors.KindNatsSubject:
		code = codes.Unavailable
	case qerrors.KindNatsTimeout:
		code = codes.DeadlineExceeded
	case qerrors.KindExternal, qerrors.KindRemote:
		code = codes.Unknown
	case qerrors.KindSerialization, qerrors.KindDeserialization, qerrors.KindEnvelope,
		qerrors.KindInternal, qerrors.KindParse:
		code = codes.Internal
	default:
		code = codes.Internal
	}

	return status.New(code, err.Error())
}
