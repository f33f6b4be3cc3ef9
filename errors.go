package main

import (
	"errors"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
)

// ErrSessionClosed はクローズ済みのセッションにメッセージが届いたときに返される
var ErrSessionClosed = errors.New("session closed")

// ValidationError はツール引数の検証エラー
type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string {
	return e.Message
}

// APIError はLinkedIn APIが2xx以外のステータスを返したときのエラー
type APIError struct {
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("LinkedIn API error: %d: %s", e.StatusCode, e.Body)
}

// TransportError はLinkedIn APIへの到達またはレスポンス解析に失敗したときのエラー
type TransportError struct {
	Op  string
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("HTTP client error: %s: %v", e.Op, e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// ProtocolError はJSON-RPCのエラーレスポンスとしてクライアントに返すエラー
type ProtocolError struct {
	Code    int
	Message string
}

func (e *ProtocolError) Error() string {
	return e.Message
}

func newInvalidRequest(format string, a ...any) *ProtocolError {
	return &ProtocolError{Code: mcp.INVALID_REQUEST, Message: fmt.Sprintf(format, a...)}
}

func newMethodNotFound(format string, a ...any) *ProtocolError {
	return &ProtocolError{Code: mcp.METHOD_NOT_FOUND, Message: fmt.Sprintf(format, a...)}
}

func newInvalidParams(format string, a ...any) *ProtocolError {
	return &ProtocolError{Code: mcp.INVALID_PARAMS, Message: fmt.Sprintf(format, a...)}
}
