package mcp_test

import (
	"context"
	"fmt"

	"github.com/jpowersdev/gomcp"
)

type mockToolServer struct {
	listErr     error
	callErr     error
	panicOnCall bool
}

func (m *mockToolServer) ListTools(context.Context, mcp.ListToolsParams) (mcp.ListToolsResult, error) {
	if m.listErr != nil {
		return mcp.ListToolsResult{}, m.listErr
	}
	return mcp.ListToolsResult{
		Tools: []mcp.Tool{
			{Name: "test_tool", Description: "A tool for testing"},
		},
	}, nil
}

func (m *mockToolServer) CallTool(_ context.Context, params mcp.CallToolParams) (mcp.CallToolResult, error) {
	if m.panicOnCall {
		panic("tool exploded")
	}
	if m.callErr != nil {
		return mcp.CallToolResult{}, m.callErr
	}
	return mcp.CallToolResult{
		Content: []mcp.Content{
			{Type: mcp.ContentTypeText, Text: fmt.Sprintf("called %s", params.Name)},
		},
	}, nil
}

type mockResourceServer struct{}

func (m *mockResourceServer) ListResources(context.Context, mcp.ListResourcesParams) (mcp.ListResourcesResult, error) {
	return mcp.ListResourcesResult{
		Resources: []mcp.Resource{
			{URI: "test://resource", Name: "Test Resource"},
		},
	}, nil
}

func (m *mockResourceServer) ReadResource(_ context.Context, params mcp.ReadResourceParams) (mcp.ReadResourceResult, error) {
	if params.URI != "test://resource" {
		return mcp.ReadResourceResult{}, fmt.Errorf("resource not found: %s", params.URI)
	}
	return mcp.ReadResourceResult{
		Contents: []mcp.ResourceContents{
			{URI: params.URI, MimeType: "text/plain", Text: "test content"},
		},
	}, nil
}

func (m *mockResourceServer) ListResourceTemplates(context.Context, mcp.ListResourceTemplatesParams) (mcp.ListResourceTemplatesResult, error) {
	return mcp.ListResourceTemplatesResult{
		Templates: []mcp.ResourceTemplate{
			{URITemplate: "test://{name}", Name: "Test Template"},
		},
	}, nil
}

type mockPromptServer struct{}

func (m *mockPromptServer) ListPrompts(context.Context, mcp.ListPromptsParams) (mcp.ListPromptsResult, error) {
	return mcp.ListPromptsResult{
		Prompts: []mcp.Prompt{
			{Name: "test_prompt", Description: "A prompt for testing"},
		},
	}, nil
}

func (m *mockPromptServer) GetPrompt(_ context.Context, params mcp.GetPromptParams) (mcp.GetPromptResult, error) {
	if params.Name != "test_prompt" {
		return mcp.GetPromptResult{}, fmt.Errorf("prompt not found: %s", params.Name)
	}
	return mcp.GetPromptResult{
		Messages: []mcp.PromptMessage{
			{
				Role:    mcp.RoleUser,
				Content: mcp.Content{Type: mcp.ContentTypeText, Text: "test message"},
			},
		},
	}, nil
}
