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
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// newTestLogger はテスト用に出力を捨てるロガーを返す
func newTestLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestResponse(statusCode int, body string) *http.Response {
	return &http.Response{
		StatusCode: statusCode,
		Body:       io.NopCloser(strings.NewReader(body)),
	}
}

func testLinkedInConfig() LinkedInConfig {
	return LinkedInConfig{
		AccessToken: "test-token",
		PersonID:    "abc123",
	}
}

// TestSubmit_Request はSubmitが正しいリクエストを送ることを検証する
func TestSubmit_Request(t *testing.T) {
	scheduleTime := time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC)

	tests := []struct {
		name                string
		scheduleTime        *time.Time
		expectedScheduledAt any
	}{
		{
			name:                "予約なし",
			scheduleTime:        nil,
			expectedScheduledAt: nil,
		},
		{
			name:                "予約あり",
			scheduleTime:        &scheduleTime,
			expectedScheduledAt: float64(scheduleTime.UnixMilli()),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mockHTTPClient := NewMockHTTPClientInterface(t)

			mockHTTPClient.EXPECT().Do(mock.MatchedBy(func(req *http.Request) bool {
				assert.Equal(t, http.MethodPost, req.Method)
				assert.Equal(t, "https://api.linkedin.com/v2/ugcPosts", req.URL.String())
				assert.Equal(t, "Bearer test-token", req.Header.Get("Authorization"))
				assert.Equal(t, "application/json", req.Header.Get("Content-Type"))

				bodyReader, err := req.GetBody()
				require.NoError(t, err)
				body, err := io.ReadAll(bodyReader)
				require.NoError(t, err)

				var payload map[string]any
				require.NoError(t, json.Unmarshal(body, &payload))

				assert.Equal(t, "urn:li:person:abc123", payload["author"])
				assert.Equal(t, "PUBLISHED", payload["lifecycleState"])
				assert.Equal(t, map[string]any{
					"com.linkedin.ugc.MemberNetworkVisibility": "PUBLIC",
				}, payload["visibility"])
				assert.Equal(t, map[string]any{
					"com.linkedin.ugc.ShareContent": map[string]any{
						"shareCommentary":    map[string]any{"text": "Hello LinkedIn"},
						"shareMediaCategory": "NONE",
					},
				}, payload["specificContent"])

				scheduledAt, exists := payload["scheduledAt"]
				if tt.expectedScheduledAt == nil {
					assert.False(t, exists, "scheduledAt should be omitted")
				} else {
					assert.Equal(t, tt.expectedScheduledAt, scheduledAt)
				}

				return true
			})).Return(newTestResponse(http.StatusCreated, `{"id":"urn:li:share:123"}`), nil)

			client := NewLinkedInClient(mockHTTPClient, testLinkedInConfig(), WithClientLogger(newTestLogger()))

			postID, err := client.Submit(context.Background(), "Hello LinkedIn", tt.scheduleTime)
			require.NoError(t, err)
			assert.Equal(t, "urn:li:share:123", postID)
		})
	}
}

// TestSubmit_ErrorHandling はレスポンスごとのエラーの種類を検証する
func TestSubmit_ErrorHandling(t *testing.T) {
	tests := []struct {
		name          string
		statusCode    int
		responseBody  string
		expectAPIErr  bool
		expectedError string
	}{
		{
			name:          "認証エラー",
			statusCode:    401,
			responseBody:  "unauthorized",
			expectAPIErr:  true,
			expectedError: "401: unauthorized",
		},
		{
			name:          "サーバーエラー",
			statusCode:    500,
			responseBody:  `{"message":"internal"}`,
			expectAPIErr:  true,
			expectedError: `500: {"message":"internal"}`,
		},
		{
			name:          "不正なJSONレスポンス",
			statusCode:    201,
			responseBody:  `{invalid json`,
			expectedError: "decode response",
		},
		{
			name:          "idが文字列でない",
			statusCode:    201,
			responseBody:  `{"id": 123}`,
			expectedError: "decode response",
		},
		{
			name:          "idがない",
			statusCode:    201,
			responseBody:  `{}`,
			expectedError: "response has no post id",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mockHTTPClient := NewMockHTTPClientInterface(t)
			mockHTTPClient.EXPECT().Do(mock.Anything).Return(newTestResponse(tt.statusCode, tt.responseBody), nil)

			client := NewLinkedInClient(mockHTTPClient, testLinkedInConfig(), WithClientLogger(newTestLogger()))

			postID, err := client.Submit(context.Background(), "content", nil)
			require.Error(t, err)
			assert.Empty(t, postID)
			assert.Contains(t, err.Error(), tt.expectedError)

			var apiErr *APIError
			var transportErr *TransportError
			if tt.expectAPIErr {
				require.ErrorAs(t, err, &apiErr)
				assert.Equal(t, tt.statusCode, apiErr.StatusCode)
				assert.Equal(t, tt.responseBody, apiErr.Body)
			} else {
				assert.ErrorAs(t, err, &transportErr)
			}
		})
	}
}

// TestSubmit_NetworkError はネットワークエラーとタイムアウトを検証する
func TestSubmit_NetworkError(t *testing.T) {
	tests := []struct {
		name  string
		cause error
	}{
		{name: "接続エラー", cause: fmt.Errorf("network error")},
		{name: "タイムアウト", cause: fmt.Errorf("Post \"https://api.linkedin.com/v2/ugcPosts\": %w", context.DeadlineExceeded)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mockHTTPClient := NewMockHTTPClientInterface(t)
			mockHTTPClient.EXPECT().Do(mock.Anything).Return(nil, tt.cause)

			client := NewLinkedInClient(mockHTTPClient, testLinkedInConfig(), WithClientLogger(newTestLogger()))

			_, err := client.Submit(context.Background(), "content", nil)
			require.Error(t, err)

			var transportErr *TransportError
			require.ErrorAs(t, err, &transportErr)
			assert.ErrorIs(t, err, tt.cause)
			assert.Contains(t, err.Error(), "send request")
		})
	}
}

// TestSubmit_DebugMode はデバッグモードでAPIを呼ばないことを検証する
func TestSubmit_DebugMode(t *testing.T) {
	t.Run("固定のIDを返す", func(t *testing.T) {
		// 期待値を設定しないのでDoが呼ばれるとテストが失敗する
		mockHTTPClient := NewMockHTTPClientInterface(t)

		var slept []time.Duration
		sleep := func(_ context.Context, d time.Duration) error {
			slept = append(slept, d)
			return nil
		}

		config := testLinkedInConfig()
		config.DebugMode = true
		client := NewLinkedInClient(mockHTTPClient, config,
			WithClientLogger(newTestLogger()),
			WithSleepFunc(sleep))

		scheduleTime := time.Now().Add(time.Hour)
		for _, scheduled := range []*time.Time{nil, &scheduleTime} {
			postID, err := client.Submit(context.Background(), "content", scheduled)
			require.NoError(t, err)
			assert.Equal(t, "debug-post-12345", postID)
		}
		assert.Equal(t, []time.Duration{500 * time.Millisecond, 500 * time.Millisecond}, slept)
	})

	t.Run("待機中のキャンセル", func(t *testing.T) {
		mockHTTPClient := NewMockHTTPClientInterface(t)

		config := testLinkedInConfig()
		config.DebugMode = true
		client := NewLinkedInClient(mockHTTPClient, config, WithClientLogger(newTestLogger()))

		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		_, err := client.Submit(ctx, "content", nil)
		var transportErr *TransportError
		require.ErrorAs(t, err, &transportErr)
		assert.ErrorIs(t, err, context.Canceled)
	})
}

// TestSubmit_DoesNotLogAccessToken はアクセストークンがログに出ないことを検証する
func TestSubmit_DoesNotLogAccessToken(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))

	mockHTTPClient := NewMockHTTPClientInterface(t)
	mockHTTPClient.EXPECT().Do(mock.Anything).Return(newTestResponse(http.StatusUnauthorized, "unauthorized"), nil)

	client := NewLinkedInClient(mockHTTPClient, testLinkedInConfig(), WithClientLogger(logger))
	_, err := client.Submit(context.Background(), "content", nil)
	require.Error(t, err)

	assert.NotContains(t, buf.String(), "test-token")
	assert.NotContains(t, err.Error(), "test-token")
	assert.Contains(t, buf.String(), "content_length=7")
}

func TestNewHTTPClient(t *testing.T) {
	client, ok := NewHTTPClient(requestTimeout).(*standardHTTPClient)
	require.True(t, ok)
	assert.Equal(t, 30*time.Second, client.client.Timeout)
}

func TestSleepContext(t *testing.T) {
	assert.NoError(t, sleepContext(context.Background(), time.Millisecond))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.True(t, errors.Is(sleepContext(ctx, time.Hour), context.Canceled))
}
