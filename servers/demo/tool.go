package demo

import (
	"context"
	"fmt"
	"go/ast"
	"go/parser"
	"go/token"
	"log/slog"
	"strconv"
	"strings"

	"github.com/qri-io/jsonschema"

	"github.com/jpowersdev/gomcp"
)

var getNameSchema = jsonschema.Must(`{
  "type": "object",
  "properties": {}
}`)

var echoSchema = jsonschema.Must(`{
  "type": "object",
  "properties": {
    "message": { "type": "string" }
  },
  "required": ["message"]
}`)

var calculatorSchema = jsonschema.Must(`{
  "type": "object",
  "properties": {
    "expression": { "type": "string" }
  },
  "required": ["expression"]
}`)

var toolList = []mcp.Tool{
	{
		Name:        "get_name",
		Description: "Get the current user's name",
		InputSchema: getNameSchema,
	},
	{
		Name:        "echo",
		Description: "Echo back the input message",
		InputSchema: echoSchema,
	},
	{
		Name:        "calculator",
		Description: "Evaluate a mathematical expression",
		InputSchema: calculatorSchema,
	},
}

// ListTools implements mcp.ToolServer interface.
func (s *Server) ListTools(context.Context, mcp.ListToolsParams) (mcp.ListToolsResult, error) {
	s.logger.Debug("ListTools")

	return mcp.ListToolsResult{
		Tools: toolList,
	}, nil
}

// CallTool implements mcp.ToolServer interface. Returned errors describe
// tool-level failures; the protocol layer reports them to the client as a
// failed tool result rather than a protocol error.
func (s *Server) CallTool(ctx context.Context, params mcp.CallToolParams) (mcp.CallToolResult, error) {
	s.logger.Debug("CallTool", slog.String("name", params.Name))

	switch params.Name {
	case "get_name":
		return s.callGetName(ctx, params)
	case "echo":
		return s.callEcho(ctx, params)
	case "calculator":
		return s.callCalculator(ctx, params)
	default:
		return mcp.CallToolResult{}, fmt.Errorf("tool not found: %s", params.Name)
	}
}

func (s *Server) callGetName(_ context.Context, _ mcp.CallToolParams) (mcp.CallToolResult, error) {
	return textResult(s.userName), nil
}

func (s *Server) callEcho(ctx context.Context, params mcp.CallToolParams) (mcp.CallToolResult, error) {
	if err := validateArgs(ctx, echoSchema, params.Arguments); err != nil {
		return mcp.CallToolResult{}, err
	}

	message, _ := params.Arguments["message"].(string)

	return textResult(message), nil
}

func (s *Server) callCalculator(ctx context.Context, params mcp.CallToolParams) (mcp.CallToolResult, error) {
	if err := validateArgs(ctx, calculatorSchema, params.Arguments); err != nil {
		return mcp.CallToolResult{}, err
	}

	expression, _ := params.Arguments["expression"].(string)

	result, err := evaluate(expression)
	if err != nil {
		return mcp.CallToolResult{}, fmt.Errorf("failed to evaluate expression: %w", err)
	}

	return textResult(strconv.FormatFloat(result, 'f', -1, 64)), nil
}

func validateArgs(ctx context.Context, schema *jsonschema.Schema, args map[string]any) error {
	vs := schema.Validate(ctx, args)
	errs := *vs.Errs
	if len(errs) > 0 {
		var errStr []string
		for _, err := range errs {
			errStr = append(errStr, err.Message)
		}
		return fmt.Errorf("params validation failed: %s", strings.Join(errStr, ", "))
	}
	return nil
}

func textResult(text string) mcp.CallToolResult {
	return mcp.CallToolResult{
		Content: []mcp.Content{
			{
				Type: mcp.ContentTypeText,
				Text: text,
			},
		},
		IsError: false,
	}
}

// evaluate computes the value of a basic arithmetic expression. Only
// numeric literals, parentheses, unary +/-, and the four binary operators
// are accepted; anything else is rejected so arbitrary code can never run.
func evaluate(expression string) (float64, error) {
	expr, err := parser.ParseExpr(expression)
	if err != nil {
		return 0, fmt.Errorf("invalid expression: %w", err)
	}
	return evalNode(expr)
}

func evalNode(node ast.Expr) (float64, error) {
	switch n := node.(type) {
	case *ast.BasicLit:
		if n.Kind != token.INT && n.Kind != token.FLOAT {
			return 0, fmt.Errorf("unsupported literal: %s", n.Value)
		}
		return strconv.ParseFloat(n.Value, 64)
	case *ast.ParenExpr:
		return evalNode(n.X)
	case *ast.UnaryExpr:
		v, err := evalNode(n.X)
		if err != nil {
			return 0, err
		}
		switch n.Op {
		case token.ADD:
			return v, nil
		case token.SUB:
			return -v, nil
		default:
			return 0, fmt.Errorf("unsupported unary operator: %s", n.Op)
		}
	case *ast.BinaryExpr:
		x, err := evalNode(n.X)
		if err != nil {
			return 0, err
		}
		y, err := evalNode(n.Y)
		if err != nil {
			return 0, err
		}
		switch n.Op {
		case token.ADD:
			return x + y, nil
		case token.SUB:
			return x - y, nil
		case token.MUL:
			return x * y, nil
		case token.QUO:
			if y == 0 {
				return 0, fmt.Errorf("division by zero")
			}
			return x / y, nil
		default:
			return 0, fmt.Errorf("unsupported operator: %s", n.Op)
		}
	default:
		return 0, fmt.Errorf("unsupported expression")
	}
}
