package mcp

import (
	"github.com/Laisky/zap"
	mcp "github.com/mark3labs/mcp-go/mcp"

	"github.com/Laisky/texpad/internal/project"
)

// toolErrorResult builds a structured MCP error response.
func toolErrorResult(code project.ErrorCode, message string, retryable bool) *mcp.CallToolResult {
	payload := map[string]any{
		"code":      string(code),
		"message":   message,
		"retryable": retryable,
	}
	result, err := mcp.NewToolResultJSON(payload)
	if err != nil {
		return mcp.NewToolResultError(message)
	}
	result.IsError = true
	return result
}

func invalidArgument(message string) *mcp.CallToolResult {
	return toolErrorResult(project.ErrCodeValidation, message, false)
}

// toolError converts store errors into tool responses. Untyped errors are
// logged and reported without their detail.
func (s *Server) toolError(tool string, err error) *mcp.CallToolResult {
	typed, ok := project.AsError(err)
	if !ok {
		s.logger.Error("mcp tool failed", zap.String("tool", tool), zap.Error(err))
		return toolErrorResult(project.ErrCodePersistence, "internal error", true)
	}

	retryable := typed.Code == project.ErrCodePersistence || typed.Code == project.ErrCodeBusy
	if retryable {
		s.logger.Warn("mcp tool failed", zap.String("tool", tool), zap.Error(err))
	}
	msg := typed.Message
	if msg == "" {
		msg = string(typed.Code)
	}
	return toolErrorResult(typed.Code, msg, retryable)
}

func jsonResult(payload any) *mcp.CallToolResult {
	result, err := mcp.NewToolResultJSON(payload)
	if err != nil {
		return toolErrorResult(project.ErrCodePersistence, "failed to encode response", false)
	}
	return result
}

// readStringArg extracts an optional string argument from the request.
func readStringArg(req mcp.CallToolRequest, key string) string {
	value, _ := optionalStringArg(req, key)
	return value
}

// optionalStringArg reports whether a string argument was sent, empty strings included.
func optionalStringArg(req mcp.CallToolRequest, key string) (string, bool) {
	raw, ok := req.Params.Arguments.(map[string]any)
	if !ok {
		return "", false
	}
	value, ok := raw[key].(string)
	return value, ok
}
