package main

import "time"

// LinkedInConfig はLinkedIn APIへの接続設定を保持する構造体
type LinkedInConfig struct {
	AccessToken string
	PersonID    string
	DebugMode   bool
}

// PostRequest は検証済みの投稿リクエスト
type PostRequest struct {
	Content      string
	ScheduleTime *time.Time
}

// PostResult はcreate_postツールの結果
type PostResult struct {
	Success bool   `json:"success"`
	PostID  string `json:"post_id,omitempty"`
	Message string `json:"message"`
}

// ugcPostPayload はLinkedIn UGC Post APIのリクエストボディ
type ugcPostPayload struct {
	Author          string          `json:"author"`
	LifecycleState  string          `json:"lifecycleState"`
	SpecificContent specificContent `json:"specificContent"`
	Visibility      postVisibility  `json:"visibility"`
	ScheduledAt     *int64          `json:"scheduledAt,omitempty"`
}

type specificContent struct {
	ShareContent shareContent `json:"com.linkedin.ugc.ShareContent"`
}

type shareContent struct {
	ShareCommentary    shareCommentary `json:"shareCommentary"`
	ShareMediaCategory string          `json:"shareMediaCategory"`
}

type shareCommentary struct {
	Text string `json:"text"`
}

type postVisibility struct {
	Visibility string `json:"com.linkedin.ugc.MemberNetworkVisibility"`
}

// ugcPostResponse は投稿作成成功時のレスポンス
type ugcPostResponse struct {
	ID string `json:"id"`
}
