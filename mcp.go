package mcp

import (
	"context"
)

// ToolServer defines the interface for managing tools in the MCP protocol.
type ToolServer interface {
	// ListTools returns the list of available tools.
	// Returns error if the operation fails or the context is cancelled.
	ListTools(ctx context.Context, params ListToolsParams) (ListToolsResult, error)

	// CallTool executes a specific tool with the given arguments. A tool-level
	// failure may be reported either through the returned error or through an
	// IsError result; the protocol adapter folds both into an error-flagged
	// tool result rather than a protocol error.
	// Returns error if tool not found, arguments are invalid, or execution fails.
	CallTool(ctx context.Context, params CallToolParams) (CallToolResult, error)
}

// ResourceServer defines the interface for managing resources in the MCP protocol.
type ResourceServer interface {
	// ListResources returns the list of available resources.
	// Returns error if the operation fails or the context is cancelled.
	ListResources(ctx context.Context, params ListResourcesParams) (ListResourcesResult, error)

	// ReadResource retrieves a specific resource by its URI. The URI may name
	// a concrete resource or match one of the server's resource templates.
	// Returns error if resource not found or cannot be read.
	ReadResource(ctx context.Context, params ReadResourceParams) (ReadResourceResult, error)

	// ListResourceTemplates returns all available resource templates.
	ListResourceTemplates(ctx context.Context, params ListResourceTemplatesParams) (
		ListResourceTemplatesResult, error)
}

// PromptServer defines the interface for managing prompts in the MCP protocol.
type PromptServer interface {
	// ListPrompts returns the list of available prompts.
	// Returns error if the operation fails or the context is cancelled.
	ListPrompts(ctx context.Context, params ListPromptsParams) (ListPromptsResult, error)

	// GetPrompt retrieves a specific prompt template by name with the given arguments.
	// Returns error if prompt not found or arguments are invalid.
	GetPrompt(ctx context.Context, params GetPromptParams) (GetPromptResult, error)
}
