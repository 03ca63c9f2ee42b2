package demo

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"runtime"
	"strings"
	"time"

	"github.com/gobwas/glob"

	"github.com/jpowersdev/gomcp"
)

const systemInfoURI = "system://info"

var resourceList = []mcp.Resource{
	{
		URI:         systemInfoURI,
		Name:        "System Information",
		Description: "System information resource",
		MimeType:    "application/json",
	},
}

const snippetURITemplate = "snippet://{language}/{type}"

var templateList = []mcp.ResourceTemplate{
	{
		URITemplate: snippetURITemplate,
		Name:        "Code Snippet",
		Description: "Code snippet template",
		MimeType:    "text/plain",
	},
}

// snippetGlob matches URIs instantiating the snippet template, one path
// segment per template variable.
var snippetGlob = glob.MustCompile("snippet://*/*", '/')

var startTime = time.Now()

// ListResources implements mcp.ResourceServer interface.
func (s *Server) ListResources(context.Context, mcp.ListResourcesParams) (mcp.ListResourcesResult, error) {
	s.logger.Debug("ListResources")

	return mcp.ListResourcesResult{
		Resources: resourceList,
	}, nil
}

// ListResourceTemplates implements mcp.ResourceServer interface.
func (s *Server) ListResourceTemplates(context.Context, mcp.ListResourceTemplatesParams) (mcp.ListResourceTemplatesResult, error) {
	s.logger.Debug("ListResourceTemplates")

	return mcp.ListResourceTemplatesResult{
		Templates: templateList,
	}, nil
}

// ReadResource implements mcp.ResourceServer interface. Direct resources are
// checked first, then URI templates; an unmatched URI is an error.
func (s *Server) ReadResource(_ context.Context, params mcp.ReadResourceParams) (mcp.ReadResourceResult, error) {
	s.logger.Debug("ReadResource", slog.String("uri", params.URI))

	if params.URI == systemInfoURI {
		return s.readSystemInfo()
	}

	if snippetGlob.Match(params.URI) {
		return s.readSnippet(params.URI)
	}

	return mcp.ReadResourceResult{}, fmt.Errorf("resource not found: %s", params.URI)
}

func (s *Server) readSystemInfo() (mcp.ReadResourceResult, error) {
	hostname, err := os.Hostname()
	if err != nil {
		hostname = "unknown"
	}

	info := map[string]any{
		"platform": runtime.GOOS,
		"arch":     runtime.GOARCH,
		"cpus":     runtime.NumCPU(),
		"hostname": hostname,
		"type":     runtime.Version(),
		"uptime":   time.Since(startTime).Seconds(),
	}

	data, err := json.MarshalIndent(info, "", "  ")
	if err != nil {
		return mcp.ReadResourceResult{}, fmt.Errorf("failed to marshal system info: %w", err)
	}

	return mcp.ReadResourceResult{
		Contents: []mcp.ResourceContents{
			{
				URI:      systemInfoURI,
				MimeType: "application/json",
				Text:     string(data),
			},
		},
	}, nil
}

var snippets = map[string]map[string]struct {
	text     string
	mimeType string
}{
	"typescript": {
		"function": {
			text:     "function example(param: string): string {\n  return `Hello, ${param}!`;\n}",
			mimeType: "application/typescript",
		},
		"class": {
			text: "class Example {\n  private name: string;\n\n  constructor(name: string) {\n    this.name = name;\n  }\n\n" +
				"  greet(): string {\n    return `Hello, ${this.name}!`;\n  }\n}",
			mimeType: "application/typescript",
		},
		"api": {
			text: "import express from 'express';\n\nconst app = express();\nconst port = 3000;\n\n" +
				"app.get('/', (req: express.Request, res: express.Response) => {\n  res.json({ message: 'Hello, World!' });\n});\n\n" +
				"app.listen(port, () => {\n  console.log(`Server running at http://localhost:${port}`);\n});",
			mimeType: "application/typescript",
		},
	},
	"javascript": {
		"function": {
			text:     "function example(param) {\n  return `Hello, ${param}!`;\n}",
			mimeType: "application/javascript",
		},
		"class": {
			text: "class Example {\n  constructor(name) {\n    this.name = name;\n  }\n\n" +
				"  greet() {\n    return `Hello, ${this.name}!`;\n  }\n}",
			mimeType: "application/javascript",
		},
		"api": {
			text: "const express = require('express');\n\nconst app = express();\nconst port = 3000;\n\n" +
				"app.get('/', (req, res) => {\n  res.json({ message: 'Hello, World!' });\n});\n\n" +
				"app.listen(port, () => {\n  console.log(`Server running at http://localhost:${port}`);\n});",
			mimeType: "application/javascript",
		},
	},
	"python": {
		"function": {
			text:     "def example(param):\n    return f\"Hello, {param}!\"",
			mimeType: "text/x-python",
		},
		"class": {
			text: "class Example:\n    def __init__(self, name):\n        self.name = name\n        \n" +
				"    def greet(self):\n        return f\"Hello, {self.name}!\"",
			mimeType: "text/x-python",
		},
		"api": {
			text: "from flask import Flask, jsonify\n\napp = Flask(__name__)\n\n@app.route('/')\ndef hello():\n" +
				"    return jsonify(message=\"Hello, World!\")\n\nif __name__ == '__main__':\n    app.run(port=3000)",
			mimeType: "text/x-python",
		},
	},
}

func (s *Server) readSnippet(uri string) (mcp.ReadResourceResult, error) {
	rest := strings.TrimPrefix(uri, "snippet://")
	parts := strings.SplitN(rest, "/", 2)
	if len(parts) != 2 {
		return mcp.ReadResourceResult{}, fmt.Errorf("resource not found: %s", uri)
	}
	language, snippetType := parts[0], parts[1]

	byType, ok := snippets[language]
	if !ok {
		return mcp.ReadResourceResult{}, fmt.Errorf("unsupported snippet language: %s", language)
	}
	snippet, ok := byType[snippetType]
	if !ok {
		return mcp.ReadResourceResult{}, fmt.Errorf("unsupported snippet type: %s", snippetType)
	}

	return mcp.ReadResourceResult{
		Contents: []mcp.ResourceContents{
			{
				URI:      uri,
				MimeType: snippet.mimeType,
				Text:     snippet.text,
			},
		},
	}, nil
}
