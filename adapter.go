package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// AdapterOption represents the options for the ProtocolAdapter.
type AdapterOption func(*ProtocolAdapter)

// ProtocolAdapter translates between MCP protocol messages and the domain
// capability services. It is a stateless dispatcher: for each decoded request
// and calling session it invokes the matching capability service or session
// transition and packages the outcome as a protocol response or no reply.
//
// The adapter never lets an error escape its boundary. Decode failures and
// handler failures both collapse to a JSON-RPC failure with code -32000 and a
// generic message; the original cause is logged, never leaked to the client.
type ProtocolAdapter struct {
	info            Info
	instructions    string
	protocolVersion string
	capabilities    ServerCapabilities

	sessions  *SessionStore
	tools     ToolServer
	resources ResourceServer
	prompts   PromptServer

	logger *slog.Logger
	tracer trace.Tracer
}

// NewProtocolAdapter creates a new protocol adapter for the given server info
// and session store. Server capabilities are derived from the capability
// services configured through options: a capability is only advertised when a
// service for it is provided.
func NewProtocolAdapter(info Info, sessions *SessionStore, options ...AdapterOption) *ProtocolAdapter {
	a := &ProtocolAdapter{
		info:            info,
		protocolVersion: defaultProtocolVersion,
		sessions:        sessions,
		logger:          slog.Default(),
		tracer:          otel.Tracer("github.com/jpowersdev/gomcp"),
	}
	for _, opt := range options {
		opt(a)
	}

	a.capabilities = ServerCapabilities{}
	if a.tools != nil {
		a.capabilities.Tools = &ToolsCapability{}
	}
	if a.resources != nil {
		a.capabilities.Resources = &ResourcesCapability{}
	}
	if a.prompts != nil {
		a.capabilities.Prompts = &PromptsCapability{}
	}

	return a
}

// WithToolServer returns an AdapterOption that configures the tool service implementation.
func WithToolServer(srv ToolServer) AdapterOption {
	return func(a *ProtocolAdapter) {
		a.tools = srv
	}
}

// WithResourceServer returns an AdapterOption that configures the resource service implementation.
func WithResourceServer(srv ResourceServer) AdapterOption {
	return func(a *ProtocolAdapter) {
		a.resources = srv
	}
}

// WithPromptServer returns an AdapterOption that configures the prompt service implementation.
func WithPromptServer(srv PromptServer) AdapterOption {
	return func(a *ProtocolAdapter) {
		a.prompts = srv
	}
}

// WithInstructions returns an AdapterOption that configures the server
// instructions returned from initialize.
func WithInstructions(instructions string) AdapterOption {
	return func(a *ProtocolAdapter) {
		a.instructions = instructions
	}
}

// WithProtocolVersion returns an AdapterOption that overrides the protocol
// version string advertised to clients.
func WithProtocolVersion(version string) AdapterOption {
	return func(a *ProtocolAdapter) {
		a.protocolVersion = version
	}
}

// WithAdapterLogger sets the logger for the adapter.
func WithAdapterLogger(logger *slog.Logger) AdapterOption {
	return func(a *ProtocolAdapter) {
		a.logger = logger.With(
			slog.String("package", "gomcp"),
			slog.String("component", "adapter"),
		)
	}
}

// Handle processes one raw JSON-RPC message on behalf of the given session.
// It returns the response to publish, or nil when the message is a
// notification that produces no reply. Handle never panics and never returns
// an error: every failure path resolves to a JSON-RPC failure response (or,
// for failed notifications, to nil after logging).
func (a *ProtocolAdapter) Handle(ctx context.Context, sess Session, msg JSONRPCMessage) *JSONRPCMessage {
	ctx, span := a.tracer.Start(ctx, "ProtocolAdapter.Handle", trace.WithAttributes(
		attribute.String("mcp.method", msg.Method),
		attribute.String("mcp.id", string(msg.ID)),
		attribute.String("session.id", sess.ID),
	))
	defer span.End()

	req, err := decodeRequest(msg)
	if err != nil {
		a.logger.Error("failed to decode request",
			slog.String("sessionID", sess.ID),
			slog.String("method", msg.Method),
			slog.String("err", err.Error()))
		if msg.IsNotification() {
			return nil
		}
		if errors.Is(err, ErrMethodNotFound) {
			return errorResponse(msg.ID, jsonRPCMethodNotFoundCode, errMsgMethodNotFound)
		}
		return errorResponse(msg.ID, jsonRPCInternalErrorCode, errMsgInternalError)
	}

	result, err := a.dispatch(ctx, sess, req)
	if err != nil {
		a.logger.Error("failed to process request",
			slog.String("sessionID", sess.ID),
			slog.String("method", msg.Method),
			slog.String("err", err.Error()))
		if msg.IsNotification() {
			// Notifications never produce a reply, not even on failure.
			return nil
		}
		return errorResponse(msg.ID, jsonRPCInternalErrorCode, errMsgInternalError)
	}

	if result == nil {
		return nil
	}

	return successResponse(msg.ID, result)
}

// dispatch routes a decoded request to its handler. A nil result with a nil
// error means no reply. The type switch covers every variant of the
// clientRequest union produced by decodeRequest.
func (a *ProtocolAdapter) dispatch(ctx context.Context, sess Session, req clientRequest) (any, error) {
	switch req := req.(type) {
	case initializeRequest:
		return initializeResult{
			ProtocolVersion: a.protocolVersion,
			Capabilities:    a.capabilities,
			ServerInfo:      a.info,
			Instructions:    a.instructions,
		}, nil
	case pingRequest:
		return struct{}{}, nil
	case initializedNotification:
		if _, err := a.sessions.ActivateByID(sess.ID); err != nil {
			return nil, err
		}
		return nil, nil
	case cancelledNotification:
		a.sessions.DeactivateByID(sess.ID)
		return nil, nil
	case listToolsRequest:
		if a.tools == nil {
			return nil, errors.New("tools are not supported")
		}
		return a.tools.ListTools(ctx, req.params)
	case callToolRequest:
		return a.callTool(ctx, req.params)
	case listResourcesRequest:
		if a.resources == nil {
			return nil, errors.New("resources are not supported")
		}
		return a.resources.ListResources(ctx, req.params)
	case listResourceTemplatesRequest:
		if a.resources == nil {
			return nil, errors.New("resources are not supported")
		}
		return a.resources.ListResourceTemplates(ctx, req.params)
	case readResourceRequest:
		if a.resources == nil {
			return nil, errors.New("resources are not supported")
		}
		return a.resources.ReadResource(ctx, req.params)
	case listPromptsRequest:
		if a.prompts == nil {
			return nil, errors.New("prompts are not supported")
		}
		return a.prompts.ListPrompts(ctx, req.params)
	case getPromptRequest:
		if a.prompts == nil {
			return nil, errors.New("prompts are not supported")
		}
		return a.prompts.GetPrompt(ctx, req.params)
	default:
		// Unreachable: decodeRequest only produces the variants above.
		return nil, fmt.Errorf("unhandled request type %T", req)
	}
}

// callTool invokes the tool service, converting tool-level failures into an
// error-flagged result rather than a protocol error. "The RPC failed" and
// "the tool executed but reported failure" are distinct protocol outcomes;
// only the former uses the JSON-RPC error envelope.
func (a *ProtocolAdapter) callTool(ctx context.Context, params CallToolParams) (any, error) {
	if a.tools == nil {
		return nil, errors.New("tools are not supported")
	}

	result, err := a.tools.CallTool(ctx, params)
	if err != nil {
		a.logger.Warn("tool call failed",
			slog.String("tool", params.Name),
			slog.String("err", err.Error()))
		return CallToolResult{
			Content: []Content{
				{
					Type: ContentTypeText,
					Text: err.Error(),
				},
			},
			IsError: true,
		}, nil
	}
	return result, nil
}

func successResponse(id MustString, result any) *JSONRPCMessage {
	raw, err := json.Marshal(result)
	if err != nil {
		// Result types are plain structs; marshaling them cannot fail in
		// practice, but the envelope contract still holds if it does.
		return errorResponse(id, jsonRPCInternalErrorCode, errMsgInternalError)
	}
	return &JSONRPCMessage{
		JSONRPC: JSONRPCVersion,
		ID:      id,
		Result:  raw,
	}
}

func errorResponse(id MustString, code int, message string) *JSONRPCMessage {
	return &JSONRPCMessage{
		JSONRPC: JSONRPCVersion,
		ID:      id,
		Error: &JSONRPCError{
			Code:    code,
			Message: message,
		},
	}
}
