package envelope

import (
	"time"

	"github.com/google/uuid"
)

// EnvelopeError is the structured error carried by a failed response
// envelope. Code and Message are required once an EnvelopeError is present.
type EnvelopeError struct {
	Code           string         `json:"code"`
	Message        string         `json:"message"`
	Details        map[string]any `json:"details,omitempty"`
	Trace          string         `json:"trace,omitempty"`
	HTTPStatusCode *int           `json:"httpStatusCode,omitempty"`
}

// Envelope is the generic unit of communication: metadata, a typed payload,
// and an optional error. A well-formed response carries exactly one of
// Payload or Error meaningfully populated (see Validate).
type Envelope[T any] struct {
	Meta    Meta           `json:"meta"`
	Payload T              `json:"payload"`
	Error   *EnvelopeError `json:"error,omitempty"`
}

// New constructs a request envelope, applying the metadata construction
// rule: Timestamp defaults to now and RequestID defaults to a fresh
// time-ordered UUID when not already set on the supplied meta.
func New[T any](meta Meta, payload T) Envelope[T] {
	meta = applyConstructionDefaults(meta)
	return Envelope[T]{Meta: meta, Payload: payload}
}

// NewError constructs an error envelope carrying no meaningful payload.
func NewError[T any](meta Meta, errCode, errMessage string) Envelope[T] {
	meta = applyConstructionDefaults(meta)
	var zero T
	return Envelope[T]{
		Meta:    meta,
		Payload: zero,
		Error:   &EnvelopeError{Code: errCode, Message: errMessage},
	}
}

func applyConstructionDefaults(meta Meta) Meta {
	if meta.Timestamp.IsZero() {
		meta.Timestamp = time.Now().UTC()
	}
	if meta.RequestID == "" {
		meta.RequestID = newRequestID()
	}
	return meta
}

// newRequestID produces a time-ordered UUID (v7), falling back to a random
// v4 only if v7 generation returns an error.
func newRequestID() string {
	if id, err := uuid.NewV7(); err == nil {
		return id.String()
	}
	return uuid.NewString()
}

// HasError reports whether the envelope carries a populated error.
func (e Envelope[T]) HasError() bool {
	return e.Error != nil
}
