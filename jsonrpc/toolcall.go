package jsonrpc

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/qollective/qollective-go/metadata"
)

// Every tool-serving component must answer these, regardless of what
// domain tools it also registers.
const (
	ToolHealthCheck    = "health_check"
	ToolGetServiceInfo = "get_service_info"
)

// ToolCallPayload is the MCP-style tool invocation carried inside an
// envelope or a JsonRpcRequest.
type ToolCallPayload struct {
	ToolName  string          `json:"tool_name"`
	Arguments json.RawMessage `json:"arguments,omitempty"`
}

// ContentBlock is one unit of a tool result's content array. Only Text is
// populated by the reference handlers in this package; MimeType/Data
// exist for binary content a caller's own tools may produce.
type ContentBlock struct {
	Type     string `json:"type"`
	Text     string `json:"text,omitempty"`
	MimeType string `json:"mime_type,omitempty"`
	Data     []byte `json:"data,omitempty"`
}

// ToolResultPayload is the structured result of a tool call.
type ToolResultPayload struct {
	Content []ContentBlock `json:"content"`
	IsError bool           `json:"is_error"`
}

func textResult(text string) ToolResultPayload {
	return ToolResultPayload{Content: []ContentBlock{{Type: "text", Text: text}}}
}

func errorResult(text string) ToolResultPayload {
	r := textResult(text)
	r.IsError = true
	return r
}

// Tool is one registered tool-call handler.
type Tool struct {
	Name        string
	Description string
	Handler     func(ctx context.Context, meta *metadata.Context, args json.RawMessage) (ToolResultPayload, error)
}

// ToolRegistry dispatches ToolCallPayload invocations to registered
// tools, always answering ToolHealthCheck and ToolGetServiceInfo, and
// returning an is_error result enumerating available tool names for any
// unrecognized tool_name.
type ToolRegistry struct {
	ServiceName    string
	ServiceVersion string
	tools          map[string]Tool
}

// NewToolRegistry builds a registry that always answers the two
// reserved tool names in addition to whatever domain tools are added.
func NewToolRegistry(serviceName, serviceVersion string) *ToolRegistry {
	return &ToolRegistry{
		ServiceName:    serviceName,
		ServiceVersion: serviceVersion,
		tools:          make(map[string]Tool),
	}
}

// Register adds or replaces a domain tool. Registering a tool named
// ToolHealthCheck or ToolGetServiceInfo overrides the registry's default
// implementation of that reserved tool.
func (r *ToolRegistry) Register(t Tool) {
	r.tools[t.Name] = t
}

func (r *ToolRegistry) names() []string {
	names := make([]string, 0, len(r.tools)+2)
	names = append(names, ToolHealthCheck, ToolGetServiceInfo)
	for name := range r.tools {
		if name != ToolHealthCheck && name != ToolGetServiceInfo {
			names = append(names, name)
		}
	}
	sort.Strings(names)
	return names
}

// Handle implements handler.ContextDataHandler[ToolCallPayload, ToolResultPayload].
func (r *ToolRegistry) Handle(ctx context.Context, meta *metadata.Context, data ToolCallPayload) (ToolResultPayload, error) {
	if t, ok := r.tools[data.ToolName]; ok {
		return t.Handler(ctx, meta, data.Arguments)
	}

	switch data.ToolName {
	case ToolHealthCheck:
		return textResult("ok"), nil
	case ToolGetServiceInfo:
		return textResult(fmt.Sprintf("%s %s", r.ServiceName, r.ServiceVersion)), nil
	}

	return errorResult(fmt.Sprintf(
		"Tool '%s' not found. Available tools: %s", data.ToolName, strings.Join(r.names(), ", "),
	)), nil
}
