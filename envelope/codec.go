package envelope

import (
	"encoding/json"

	qerrors "github.com/qollective/qollective-go/errors"
)

// Encode validates the envelope and marshals it to its wire JSON form.
func Encode[T any](e Envelope[T]) ([]byte, error) {
	if err := Validate(e); err != nil {
		return nil, err
	}
	data, err := json.Marshal(e)
	if err != nil {
		return nil, qerrors.Wrap(qerrors.KindSerialization, err, "failed to serialize envelope")
	}
	return data, nil
}

// Decode unmarshals the wire JSON form into an envelope and validates it.
func Decode[T any](data []byte) (Envelope[T], error) {
	var e Envelope[T]
	if len(data) == 0 {
		return e, qerrors.New(qerrors.KindDeserialization, "cannot decode empty data")
	}
	if err := json.Unmarshal(data, &e); err != nil {
		return e, qerrors.Wrap(qerrors.KindDeserialization, err, "failed to deserialize envelope")
	}
	if err := Validate(e); err != nil {
		return e, err
	}
	return e, nil
}

// Validate applies the envelope's invariants. Pointer-typed optional Meta
// fields (Version, Tenant, OnBehalfOf, Duration) are only checked when
// explicitly present — nil means "absent", which is always valid.
func Validate[T any](e Envelope[T]) error {
	if e.Meta.RequestID == "" {
		return qerrors.New(qerrors.KindEnvelope, "Request ID cannot be empty")
	}
	if e.Meta.Version != nil && *e.Meta.Version == "" {
		return qerrors.New(qerrors.KindEnvelope, "Version cannot be empty")
	}
	if e.Meta.Tenant != nil && isWhitespaceOnly(*e.Meta.Tenant) {
		return qerrors.New(qerrors.KindEnvelope, "Tenant ID cannot be empty or whitespace-only")
	}
	if e.Meta.Duration != nil && *e.Meta.Duration < 0 {
		return qerrors.New(qerrors.KindEnvelope, "Duration cannot be negative")
	}
	if e.Error != nil {
		if e.Error.Code == "" {
			return qerrors.New(qerrors.KindEnvelope, "Error code cannot be empty")
		}
		if e.Error.Message == "" {
			return qerrors.New(qerrors.KindEnvelope, "Error message cannot be empty")
		}
	}
	return nil
}

// IsMalformedResponse reports whether a response envelope carries both a
// populated payload and an error — a response may carry one or the other.
// Callers that can compare the payload to its zero value should prefer a
// direct check; this helper is for the common case where presence is
// tracked by the caller (e.g. a *T payload or a populated-flag alongside T).
func IsMalformedResponse[T any](hasPayload bool, e Envelope[T]) bool {
	return hasPayload && e.Error != nil
}

// EstimateSize returns an advisory, monotonic size estimate in bytes. It is
// monotonic in the presence of added optional sections and error blocks
// because it is computed directly from the marshaled wire form.
func EstimateSize[T any](e Envelope[T]) (int, error) {
	data, err := json.Marshal(e)
	if err != nil {
		return 0, qerrors.Wrap(qerrors.KindSerialization, err, "failed to estimate envelope size")
	}
	return len(data), nil
}
