package main

import (
	"time"

	"github.com/mark3labs/mcp-go/mcp"
)

const (
	// ToolNameCreatePost は投稿作成ツールの名前
	ToolNameCreatePost = "create_post"

	argContent      = "content"
	argScheduleTime = "schedule_time"

	msgInvalidScheduleTime = "invalid schedule time format"
	msgInvalidContent      = "content must be a non-empty string"
)

// CreatePostTool はcreate_postツールの定義を返す
func CreatePostTool() mcp.Tool {
	return mcp.NewTool(ToolNameCreatePost,
		mcp.WithDescription("Create a LinkedIn post. Optionally schedule it for a future time."),
		mcp.WithString(argContent,
			mcp.Required(),
			mcp.MinLength(1),
			mcp.Description("The text content for the LinkedIn post"),
		),
		mcp.WithString(argScheduleTime,
			mcp.Description("Optional ISO 8601 timestamp for scheduling the post (e.g. 2025-06-01T09:00:00Z)"),
			withFormat("date-time"),
		),
		mcp.WithReadOnlyHintAnnotation(false),
		mcp.WithDestructiveHintAnnotation(false),
		mcp.WithIdempotentHintAnnotation(false),
		mcp.WithOpenWorldHintAnnotation(true),
	)
}

// withFormat はJSON Schemaのformatを指定する
func withFormat(format string) mcp.PropertyOption {
	return func(schema map[string]any) {
		schema["format"] = format
	}
}

// ValidatePostRequest はツール引数を検証してPostRequestに変換する
func ValidatePostRequest(raw any) (PostRequest, error) {
	args, _ := raw.(map[string]any)

	content, ok := args[argContent].(string)
	if !ok || content == "" {
		return PostRequest{}, &ValidationError{Message: msgInvalidContent}
	}

	req := PostRequest{Content: content}

	// nullは未指定として扱う
	value, exists := args[argScheduleTime]
	if !exists || value == nil {
		return req, nil
	}

	s, ok := value.(string)
	if !ok {
		return PostRequest{}, &ValidationError{Message: msgInvalidScheduleTime}
	}
	scheduleTime, err := parseScheduleTime(s)
	if err != nil {
		return PostRequest{}, &ValidationError{Message: msgInvalidScheduleTime}
	}
	req.ScheduleTime = &scheduleTime

	return req, nil
}

// scheduleTimeLayouts は受け付ける時刻の形式。日付と時刻の区切りは"T"か空白
var scheduleTimeLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02 15:04:05.999999999Z07:00",
}

// parseScheduleTime はタイムゾーン付きのISO 8601形式の時刻を解析する
func parseScheduleTime(s string) (time.Time, error) {
	var firstErr error
	for _, layout := range scheduleTimeLayouts {
		t, err := time.Parse(layout, s)
		if err == nil {
			return t, nil
		}
		if firstErr == nil {
			firstErr = err
		}
	}
	return time.Time{}, firstErr
}
