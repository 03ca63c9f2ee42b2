package demo

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/jpowersdev/gomcp"
)

var promptList = []mcp.Prompt{
	{
		Name:        "chat",
		Description: "A simple chat prompt",
		Arguments: []mcp.PromptArgument{
			{
				Name:        "topic",
				Description: "The topic to chat about",
				Required:    true,
			},
		},
	},
	{
		Name:        "code-generation",
		Description: "Generate code based on requirements",
		Arguments: []mcp.PromptArgument{
			{
				Name:        "language",
				Description: "The programming language to use",
				Required:    true,
			},
			{
				Name:        "description",
				Description: "Description of what the code should do",
				Required:    true,
			},
			{
				Name:        "complexity",
				Description: "Desired complexity level (simple, medium, complex)",
			},
		},
	},
	{
		Name:        "summarize",
		Description: "Summarize a text",
		Arguments: []mcp.PromptArgument{
			{
				Name:        "text",
				Description: "The text to summarize",
				Required:    true,
			},
			{
				Name:        "length",
				Description: "Desired summary length (short, medium, long)",
			},
		},
	},
	{
		Name:        "document-code",
		Description: "Generate documentation for code",
		Arguments: []mcp.PromptArgument{
			{
				Name:        "code",
				Description: "The code to document",
				Required:    true,
			},
			{
				Name:        "format",
				Description: "Documentation format (godoc, markdown, etc.)",
			},
		},
	},
}

// ListPrompts implements mcp.PromptServer interface.
func (s *Server) ListPrompts(context.Context, mcp.ListPromptsParams) (mcp.ListPromptsResult, error) {
	s.logger.Debug("ListPrompts")

	return mcp.ListPromptsResult{
		Prompts: promptList,
	}, nil
}

// GetPrompt implements mcp.PromptServer interface.
func (s *Server) GetPrompt(_ context.Context, params mcp.GetPromptParams) (mcp.GetPromptResult, error) {
	s.logger.Debug("GetPrompt", slog.String("name", params.Name))

	switch params.Name {
	case "chat":
		return s.getChatPrompt(params)
	case "code-generation":
		return s.getCodeGenerationPrompt(params)
	case "summarize":
		return s.getSummarizePrompt(params)
	case "document-code":
		return s.getDocumentCodePrompt(params)
	default:
		return mcp.GetPromptResult{}, fmt.Errorf("prompt not found: %s", params.Name)
	}
}

func (s *Server) getChatPrompt(params mcp.GetPromptParams) (mcp.GetPromptResult, error) {
	topic, err := requiredArg(params, "topic")
	if err != nil {
		return mcp.GetPromptResult{}, err
	}

	return mcp.GetPromptResult{
		Description: "A simple chat prompt",
		Messages: []mcp.PromptMessage{
			userMessage(fmt.Sprintf("Let's talk about %s.", topic)),
		},
	}, nil
}

func (s *Server) getCodeGenerationPrompt(params mcp.GetPromptParams) (mcp.GetPromptResult, error) {
	language, err := requiredArg(params, "language")
	if err != nil {
		return mcp.GetPromptResult{}, err
	}
	description, err := requiredArg(params, "description")
	if err != nil {
		return mcp.GetPromptResult{}, err
	}

	text := fmt.Sprintf("Write %s code that does the following: %s", language, description)
	if complexity := params.Arguments["complexity"]; complexity != "" {
		text += fmt.Sprintf("\nComplexity level: %s", complexity)
	}

	return mcp.GetPromptResult{
		Description: "Generate code based on requirements",
		Messages: []mcp.PromptMessage{
			userMessage(text),
		},
	}, nil
}

func (s *Server) getSummarizePrompt(params mcp.GetPromptParams) (mcp.GetPromptResult, error) {
	text, err := requiredArg(params, "text")
	if err != nil {
		return mcp.GetPromptResult{}, err
	}

	prompt := "Please summarize the following text:"
	if length := params.Arguments["length"]; length != "" {
		prompt += fmt.Sprintf("\nSummary length: %s", length)
	}
	prompt += fmt.Sprintf("\n\n%s", text)

	return mcp.GetPromptResult{
		Description: "Summarize a text",
		Messages: []mcp.PromptMessage{
			userMessage(prompt),
		},
	}, nil
}

func (s *Server) getDocumentCodePrompt(params mcp.GetPromptParams) (mcp.GetPromptResult, error) {
	code, err := requiredArg(params, "code")
	if err != nil {
		return mcp.GetPromptResult{}, err
	}

	prompt := "Please generate documentation for this code"
	if format := params.Arguments["format"]; format != "" {
		prompt += fmt.Sprintf(" using %s format", format)
	}
	prompt += fmt.Sprintf(":\n\n```\n%s\n```", code)

	return mcp.GetPromptResult{
		Description: "Generate documentation for code",
		Messages: []mcp.PromptMessage{
			userMessage(prompt),
		},
	}, nil
}

func requiredArg(params mcp.GetPromptParams, name string) (string, error) {
	value := params.Arguments[name]
	if value == "" {
		return "", fmt.Errorf("missing required argument: %s", name)
	}
	return value, nil
}

func userMessage(text string) mcp.PromptMessage {
	return mcp.PromptMessage{
		Role: mcp.RoleUser,
		Content: mcp.Content{
			Type: mcp.ContentTypeText,
			Text: text,
		},
	}
}
