package mcpserver

import (
	"context"
	"errors"
	"fmt"

	"github.com/suntianc/toolcore/internal/toolerrors"
)

// MCP error codes for the retrieval server.
const (
	ErrCodeInvalidParams  = -32602
	ErrCodeMethodNotFound = -32601
	ErrCodeInternalError  = -32603
	ErrCodeTimeout        = -32003
	ErrCodeVectorDBError  = -32004
)

// ErrToolNotFound indicates the requested MCP tool does not exist.
var ErrToolNotFound = errors.New("tool not found")

// MCPError represents a JSON-RPC-shaped MCP protocol error.
type MCPError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func (e *MCPError) Error() string {
	return fmt.Sprintf("mcp error %d: %s", e.Code, e.Message)
}

// MapError converts a retrieval error into an MCPError, mapping
// toolerrors.Kind onto the closest JSON-RPC-ish error code.
func MapError(err error) *MCPError {
	if err == nil {
		return nil
	}

	var re *toolerrors.RetrievalError
	if errors.As(err, &re) {
		switch re.Kind {
		case toolerrors.KindVectorDB, toolerrors.KindVectorSearch:
			return &MCPError{Code: ErrCodeVectorDBError, Message: re.Message}
		case toolerrors.KindConfig:
			return &MCPError{Code: ErrCodeInternalError, Message: re.Message}
		default:
			return &MCPError{Code: ErrCodeInternalError, Message: re.Message}
		}
	}

	switch {
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
		return &MCPError{Code: ErrCodeTimeout, Message: "request timed out"}
	case errors.Is(err, ErrToolNotFound):
		return &MCPError{Code: ErrCodeMethodNotFound, Message: "tool not found"}
	default:
		return &MCPError{Code: ErrCodeInternalError, Message: "internal server error"}
	}
}

// NewInvalidParamsError builds an invalid-params MCPError with a custom message.
func NewInvalidParamsError(msg string) *MCPError {
	return &MCPError{Code: ErrCodeInvalidParams, Message: msg}
}
