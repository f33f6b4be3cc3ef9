package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sort"

	"github.com/mark3labs/mcp-go/mcp"
)

const msgPostCreated = "Post created successfully"

// ToolHandler はツールの定義と実行を担当するインターフェース
type ToolHandler interface {
	Tool() mcp.Tool
	Handle(ctx context.Context, rawArgs any) (*mcp.CallToolResult, error)
}

// createPostHandler はcreate_postツールのハンドラー
type createPostHandler struct {
	publisher PostPublisher
	logger    *slog.Logger
}

// NewCreatePostHandler はcreate_postツールのハンドラーを生成する
func NewCreatePostHandler(publisher PostPublisher, logger *slog.Logger) ToolHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &createPostHandler{
		publisher: publisher,
		logger:    logger,
	}
}

func (h *createPostHandler) Tool() mcp.Tool {
	return CreatePostTool()
}

// Handle は引数を検証して投稿を作成する。失敗はすべてツール結果として返す
func (h *createPostHandler) Handle(ctx context.Context, rawArgs any) (*mcp.CallToolResult, error) {
	req, err := ValidatePostRequest(rawArgs)
	if err != nil {
		h.logger.Warn("invalid create_post arguments", "error", err)
		return newPostToolResult(PostResult{Success: false, Message: err.Error()})
	}

	postID, err := h.publisher.Submit(ctx, req.Content, req.ScheduleTime)
	if err != nil {
		h.logger.Warn("failed to create LinkedIn post", "error", err)
		return newPostToolResult(PostResult{
			Success: false,
			Message: fmt.Sprintf("Failed to create post: %v", err),
		})
	}

	return newPostToolResult(PostResult{
		Success: true,
		PostID:  postID,
		Message: msgPostCreated,
	})
}

// newPostToolResult はPostResultをJSONテキストのツール結果に変換する
func newPostToolResult(result PostResult) (*mcp.CallToolResult, error) {
	jsonBytes, err := json.Marshal(result)
	if err != nil {
		return nil, fmt.Errorf("レスポンスのJSON変換に失敗: %w", err)
	}

	toolResult := mcp.NewToolResultText(string(jsonBytes))
	toolResult.IsError = !result.Success
	return toolResult, nil
}

// ToolDispatcher はツール名からハンドラーを引いて実行する
type ToolDispatcher struct {
	handlers map[string]ToolHandler
	logger   *slog.Logger
}

// NewToolDispatcher はハンドラーを登録したToolDispatcherを生成する
func NewToolDispatcher(logger *slog.Logger, handlers ...ToolHandler) *ToolDispatcher {
	if logger == nil {
		logger = slog.Default()
	}
	d := &ToolDispatcher{
		handlers: make(map[string]ToolHandler, len(handlers)),
		logger:   logger,
	}
	for _, h := range handlers {
		d.handlers[h.Tool().Name] = h
	}
	return d
}

// Tools は登録されているツールの定義を名前順に返す
func (d *ToolDispatcher) Tools() []mcp.Tool {
	tools := make([]mcp.Tool, 0, len(d.handlers))
	for _, h := range d.handlers {
		tools = append(tools, h.Tool())
	}
	sort.Slice(tools, func(i, j int) bool {
		return tools[i].Name < tools[j].Name
	})
	return tools
}

// HasTool は指定した名前のツールが登録されているかを返す
func (d *ToolDispatcher) HasTool(name string) bool {
	_, ok := d.handlers[name]
	return ok
}

// Invoke はツールを実行する。未登録のツール名の場合のみ*ProtocolErrorを返す
func (d *ToolDispatcher) Invoke(ctx context.Context, name string, rawArgs any) (result *mcp.CallToolResult, err error) {
	h, ok := d.handlers[name]
	if !ok {
		d.logger.Warn("unknown tool requested", "tool", name)
		toolCallsTotal.WithLabelValues("unknown", "not_found").Inc()
		return nil, newMethodNotFound("tool not found: %s", name)
	}

	d.logger.Info("tool called", "tool", name)

	defer func() {
		if r := recover(); r != nil {
			d.logger.Error("tool panicked", "tool", name, "panic", r)
			result = mcp.NewToolResultError(fmt.Sprintf("tool %s failed unexpectedly", name))
			err = nil
		}
		if result != nil {
			toolCallsTotal.WithLabelValues(name, toolResultLabel(result)).Inc()
		}
	}()

	result, err = h.Handle(ctx, rawArgs)
	if err != nil {
		d.logger.Error("tool failed", "tool", name, "error", err)
		return mcp.NewToolResultErrorFromErr(fmt.Sprintf("tool %s failed", name), err), nil
	}
	if result == nil {
		return mcp.NewToolResultError(fmt.Sprintf("tool %s returned no result", name)), nil
	}
	return result, nil
}

func toolResultLabel(result *mcp.CallToolResult) string {
	if result.IsError {
		return "error"
	}
	return "success"
}
