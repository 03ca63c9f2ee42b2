package mcp

import (
	"encoding/json"
	"errors"
	"fmt"
)

// ErrMethodNotFound is returned by the codec when a message names a method
// outside the recognized MCP method set. It surfaces to clients as a JSON-RPC
// failure with code -32601.
var ErrMethodNotFound = errors.New("method not found")

// clientRequest is the closed union of requests a client can send. Each
// recognized MCP method has exactly one variant; decodeRequest is the only
// constructor, so the adapter's dispatch over this union is exhaustive by
// construction. Adding a method means adding a variant here, a case in
// decodeRequest, and a case in the adapter's dispatch.
type clientRequest interface {
	method() string
}

type initializeRequest struct {
	params initializeParams
}

type pingRequest struct{}

type initializedNotification struct{}

type cancelledNotification struct {
	params notificationsCancelledParams
}

type listToolsRequest struct {
	params ListToolsParams
}

type callToolRequest struct {
	params CallToolParams
}

type listResourcesRequest struct {
	params ListResourcesParams
}

type listResourceTemplatesRequest struct {
	params ListResourceTemplatesParams
}

type readResourceRequest struct {
	params ReadResourceParams
}

type listPromptsRequest struct {
	params ListPromptsParams
}

type getPromptRequest struct {
	params GetPromptParams
}

func (initializeRequest) method() string            { return MethodInitialize }
func (pingRequest) method() string                  { return MethodPing }
func (initializedNotification) method() string      { return MethodNotificationsInitialized }
func (cancelledNotification) method() string        { return MethodNotificationsCancelled }
func (listToolsRequest) method() string             { return MethodToolsList }
func (callToolRequest) method() string              { return MethodToolsCall }
func (listResourcesRequest) method() string         { return MethodResourcesList }
func (listResourceTemplatesRequest) method() string { return MethodResourcesTemplatesList }
func (readResourceRequest) method() string          { return MethodResourcesRead }
func (listPromptsRequest) method() string           { return MethodPromptsList }
func (getPromptRequest) method() string             { return MethodPromptsGet }

// decodeRequest translates a raw JSON-RPC message into its typed variant.
// Unrecognized methods fail with ErrMethodNotFound; recognized methods with
// malformed params fail with a decode error naming the method.
func decodeRequest(msg JSONRPCMessage) (clientRequest, error) {
	switch msg.Method {
	case MethodInitialize:
		var params initializeParams
		if err := decodeParams(msg, &params); err != nil {
			return nil, err
		}
		return initializeRequest{params: params}, nil
	case MethodPing:
		return pingRequest{}, nil
	case MethodNotificationsInitialized:
		return initializedNotification{}, nil
	case MethodNotificationsCancelled:
		var params notificationsCancelledParams
		if err := decodeParams(msg, &params); err != nil {
			return nil, err
		}
		return cancelledNotification{params: params}, nil
	case MethodToolsList:
		var params ListToolsParams
		if err := decodeParams(msg, &params); err != nil {
			return nil, err
		}
		return listToolsRequest{params: params}, nil
	case MethodToolsCall:
		var params CallToolParams
		if err := decodeParams(msg, &params); err != nil {
			return nil, err
		}
		return callToolRequest{params: params}, nil
	case MethodResourcesList:
		var params ListResourcesParams
		if err := decodeParams(msg, &params); err != nil {
			return nil, err
		}
		return listResourcesRequest{params: params}, nil
	case MethodResourcesTemplatesList:
		var params ListResourceTemplatesParams
		if err := decodeParams(msg, &params); err != nil {
			return nil, err
		}
		return listResourceTemplatesRequest{params: params}, nil
	case MethodResourcesRead:
		var params ReadResourceParams
		if err := decodeParams(msg, &params); err != nil {
			return nil, err
		}
		return readResourceRequest{params: params}, nil
	case MethodPromptsList:
		var params ListPromptsParams
		if err := decodeParams(msg, &params); err != nil {
			return nil, err
		}
		return listPromptsRequest{params: params}, nil
	case MethodPromptsGet:
		var params GetPromptParams
		if err := decodeParams(msg, &params); err != nil {
			return nil, err
		}
		return getPromptRequest{params: params}, nil
	default:
		return nil, fmt.Errorf("%w: %s", ErrMethodNotFound, msg.Method)
	}
}

func decodeParams(msg JSONRPCMessage, dst any) error {
	if len(msg.Params) == 0 {
		return nil
	}
	if err := json.Unmarshal(msg.Params, dst); err != nil {
		return fmt.Errorf("failed to decode %s params: %w", msg.Method, err)
	}
	return nil
}
