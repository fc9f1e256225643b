// Package metadata implements the metadata assembler: construction
// defaults, the preserve-for-response rule, and header<->meta marshalling
// for text protocols.
package metadata

import "github.com/qollective/qollective-go/envelope"

// Context is a read view over a request's Meta, handed to user handlers.
// It borrows from Meta only at construction time; building a response
// always produces a fresh Meta value (see PreserveForResponse).
type Context struct {
	meta envelope.Meta
}

// FromMeta builds a Context from a request's Meta.
func FromMeta(m envelope.Meta) *Context {
	return &Context{meta: m}
}

// Meta returns the underlying Meta this Context was built from.
func (c *Context) Meta() envelope.Meta {
	if c == nil {
		return envelope.Meta{}
	}
	return c.meta
}

// RequestID returns the originating request's id.
func (c *Context) RequestID() string {
	if c == nil {
		return ""
	}
	return c.meta.RequestID
}

// Tenant returns the originating request's tenant, or "" if unset.
func (c *Context) Tenant() string {
	if c == nil {
		return ""
	}
	return c.meta.TenantOrEmpty()
}

// OnBehalfOf returns the originating request's delegate subject, or "" if unset.
func (c *Context) OnBehalfOf() string {
	if c == nil {
		return ""
	}
	return c.meta.OnBehalfOfOrEmpty()
}

// Security returns the originating request's security metadata, or nil.
func (c *Context) Security() *envelope.SecurityMeta {
	if c == nil {
		return nil
	}
	return c.meta.Security
}

// Tracing returns the originating request's tracing metadata, or nil.
func (c *Context) Tracing() *envelope.TracingMeta {
	if c == nil {
		return nil
	}
	return c.meta.Tracing
}

// ToResponseMeta builds the response Meta for this context's request,
// applying the preserve-for-response rule.
func (c *Context) ToResponseMeta() envelope.Meta {
	if c == nil {
		return PreserveForResponse(nil)
	}
	return PreserveForResponse(&c.meta)
}
