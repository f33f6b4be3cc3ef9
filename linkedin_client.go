package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"
	"unicode/utf8"
)

const (
	// linkedInAPIBaseURL はLinkedIn APIのベースURL
	linkedInAPIBaseURL = "https://api.linkedin.com/v2"

	// ugcPostsEndpoint は投稿作成のエンドポイント
	ugcPostsEndpoint = "/ugcPosts"

	// requestTimeout はLinkedIn APIへのリクエストのタイムアウト
	requestTimeout = 30 * time.Second

	// デバッグモードで返す固定の投稿IDと擬似的な待ち時間
	debugPostID  = "debug-post-12345"
	debugLatency = 500 * time.Millisecond
)

// PostPublisher は投稿の送信を担当するインターフェース
type PostPublisher interface {
	Submit(ctx context.Context, content string, scheduleTime *time.Time) (string, error)
}

// HTTPClientInterface はHTTPクライアントの操作をモック可能にするインターフェース
type HTTPClientInterface interface {
	Do(req *http.Request) (*http.Response, error)
}

// standardHTTPClient は標準のhttp.Clientをラップする構造体
type standardHTTPClient struct {
	client *http.Client
}

func (c *standardHTTPClient) Do(req *http.Request) (*http.Response, error) {
	return c.client.Do(req)
}

// NewHTTPClient は新しいHTTPClientInterfaceを返す
func NewHTTPClient(timeout time.Duration) HTTPClientInterface {
	return &standardHTTPClient{
		client: &http.Client{
			Timeout: timeout,
		},
	}
}

// SleepFunc はコンテキストを考慮して指定時間待機する関数
type SleepFunc func(ctx context.Context, d time.Duration) error

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// LinkedInClient はLinkedIn APIのクライアント
type LinkedInClient struct {
	httpClient HTTPClientInterface
	config     LinkedInConfig
	logger     *slog.Logger
	sleep      SleepFunc
}

// ClientOption はLinkedInClientの設定を変更する関数型
type ClientOption func(*LinkedInClient)

// WithClientLogger はクライアントのロガーを指定する
func WithClientLogger(logger *slog.Logger) ClientOption {
	return func(c *LinkedInClient) {
		c.logger = logger
	}
}

// WithSleepFunc はデバッグモードでの待機処理を差し替える
func WithSleepFunc(sleep SleepFunc) ClientOption {
	return func(c *LinkedInClient) {
		c.sleep = sleep
	}
}

// NewLinkedInClient は新しいLinkedInClientを作成する
func NewLinkedInClient(httpClient HTTPClientInterface, config LinkedInConfig, opts ...ClientOption) *LinkedInClient {
	c := &LinkedInClient{
		httpClient: httpClient,
		config:     config,
		logger:     slog.Default(),
		sleep:      sleepContext,
	}
	for _, opt := range opts {
		opt(c)
	}

	c.logger.Info("LinkedIn client created", "person_id", config.PersonID)
	if config.DebugMode {
		c.logger.Info("LinkedIn client running in debug mode, posts will be simulated")
	}

	return c
}

// Submit は投稿を作成し、作成された投稿のIDを返す
func (c *LinkedInClient) Submit(ctx context.Context, content string, scheduleTime *time.Time) (string, error) {
	c.logger.Info("creating LinkedIn post",
		"content_length", utf8.RuneCountInString(content),
		"scheduled", scheduleTime != nil)
	if scheduleTime != nil {
		c.logger.Info("post scheduled", "schedule_time", scheduleTime.UTC().Format(time.RFC3339))
	}

	payload := c.buildPayload(content, scheduleTime)

	// デバッグモードではAPIを呼び出さない
	if c.config.DebugMode {
		c.logger.Debug("simulating LinkedIn post", "author", payload.Author)
		if err := c.sleep(ctx, debugLatency); err != nil {
			postsTotal.WithLabelValues(outcomeTransportError).Inc()
			return "", &TransportError{Op: "simulate post", Err: err}
		}
		postsTotal.WithLabelValues(outcomeSimulated).Inc()
		c.logger.Info("simulated LinkedIn post", "post_id", debugPostID)
		return debugPostID, nil
	}

	postID, err := c.createPost(ctx, payload)
	if err != nil {
		var apiErr *APIError
		if errors.As(err, &apiErr) {
			postsTotal.WithLabelValues(outcomeAPIError).Inc()
		} else {
			postsTotal.WithLabelValues(outcomeTransportError).Inc()
		}
		c.logger.Error("failed to create LinkedIn post", "error", err)
		return "", err
	}

	postsTotal.WithLabelValues(outcomeCreated).Inc()
	c.logger.Info("created LinkedIn post", "post_id", postID)
	return postID, nil
}

func (c *LinkedInClient) buildPayload(content string, scheduleTime *time.Time) ugcPostPayload {
	payload := ugcPostPayload{
		Author:         fmt.Sprintf("urn:li:person:%s", c.config.PersonID),
		LifecycleState: "PUBLISHED",
		SpecificContent: specificContent{
			ShareContent: shareContent{
				ShareCommentary:    shareCommentary{Text: content},
				ShareMediaCategory: "NONE",
			},
		},
		Visibility: postVisibility{Visibility: "PUBLIC"},
	}
	if scheduleTime != nil {
		millis := scheduleTime.UnixMilli()
		payload.ScheduledAt = &millis
	}
	return payload
}

func (c *LinkedInClient) createPost(ctx context.Context, payload ugcPostPayload) (string, error) {
	jsonData, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("リクエストのJSON変換に失敗: %w", err)
	}

	// リクエストの作成
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, linkedInAPIBaseURL+ugcPostsEndpoint, bytes.NewBuffer(jsonData))
	if err != nil {
		return "", &TransportError{Op: "build request", Err: err}
	}
	req.Header.Add("Content-Type", "application/json")
	req.Header.Add("Authorization", "Bearer "+c.config.AccessToken)

	// リクエストの実行
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", &TransportError{Op: "send request", Err: err}
	}
	defer resp.Body.Close()

	// 2xx以外はレスポンスボディをそのまま返す
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, err := io.ReadAll(resp.Body)
		if err != nil {
			body = []byte("Unknown error")
		}
		return "", &APIError{StatusCode: resp.StatusCode, Body: string(body)}
	}

	var postResp ugcPostResponse
	if err := json.NewDecoder(resp.Body).Decode(&postResp); err != nil {
		return "", &TransportError{Op: "decode response", Err: err}
	}
	if postResp.ID == "" {
		return "", &TransportError{Op: "decode response", Err: errors.New("response has no post id")}
	}

	return postResp.ID, nil
}
