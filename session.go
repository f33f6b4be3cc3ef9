package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sync"

	"github.com/mark3labs/mcp-go/mcp"
)

const (
	serverName         = "linkedin-mcp-server"
	serverInstructions = "A server for creating LinkedIn posts"

	methodNotificationCancelled   = "notifications/cancelled"
	methodNotificationInitialized = "notifications/initialized"
)

// SessionState はセッションのライフサイクル上の状態
type SessionState int

const (
	StateUninitialized SessionState = iota
	StateReady
	StateClosed
)

func (s SessionState) String() string {
	switch s {
	case StateUninitialized:
		return "uninitialized"
	case StateReady:
		return "ready"
	case StateClosed:
		return "closed"
	default:
		return fmt.Sprintf("SessionState(%d)", int(s))
	}
}

// Peer はセッションからクライアントへメッセージを送る口
type Peer interface {
	Send(ctx context.Context, msg mcp.JSONRPCMessage) error
}

// ServerInfo はinitializeで返すサーバー情報
type ServerInfo struct {
	Name         string
	Version      string
	Instructions string
}

// Session は1クライアントとの接続の状態機械。生成時にPeerと結び付けられる
type Session struct {
	id         string
	peer       Peer
	dispatcher *ToolDispatcher
	info       ServerInfo
	logger     *slog.Logger

	// ツール呼び出しの寿命はセッションに従う
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu              sync.Mutex
	state           SessionState
	protocolVersion string
	clientInfo      mcp.Implementation
	inflight        map[string]context.CancelFunc
}

// NewSession は新しいセッションを生成する
func NewSession(id string, peer Peer, dispatcher *ToolDispatcher, info ServerInfo, logger *slog.Logger) *Session {
	if logger == nil {
		logger = slog.Default()
	}
	ctx, cancel := context.WithCancel(context.Background())
	activeSessions.Inc()
	return &Session{
		id:         id,
		peer:       peer,
		dispatcher: dispatcher,
		info:       info,
		logger:     logger.With("session_id", id),
		ctx:        ctx,
		cancel:     cancel,
		state:      StateUninitialized,
		inflight:   make(map[string]context.CancelFunc),
	}
}

func (s *Session) ID() string {
	return s.id
}

// Done はセッションが閉じられたときにcloseされるチャネルを返す
func (s *Session) Done() <-chan struct{} {
	return s.ctx.Done()
}

func (s *Session) State() SessionState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// ProtocolVersion はネゴシエーション済みのプロトコルバージョンを返す
func (s *Session) ProtocolVersion() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.protocolVersion
}

func (s *Session) ClientInfo() mcp.Implementation {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.clientInfo
}

// HandleMessage は受信した1メッセージを処理する。
// 状態の更新はロックの中で行い、応答はロックを外してからPeer経由で送る。
// tools/callの応答は外部呼び出しの完了後に非同期で送られる。
func (s *Session) HandleMessage(ctx context.Context, message json.RawMessage) error {
	if !json.Valid(message) {
		return s.closeOnParseError(ctx)
	}

	s.mu.Lock()
	reply, err := s.handleLocked(message)
	s.mu.Unlock()

	if err != nil || reply == nil {
		return err
	}
	return s.peer.Send(ctx, reply)
}

// closeOnParseError はJSONとして読めない入力に応答してセッションを閉じる
func (s *Session) closeOnParseError(ctx context.Context) error {
	s.mu.Lock()
	if s.state == StateClosed {
		s.mu.Unlock()
		return ErrSessionClosed
	}
	s.logger.Error("received invalid JSON, closing session")
	s.markClosedLocked()
	s.mu.Unlock()

	// Doneを閉じる前に送ることでSSEのストリームにも届く
	sendErr := s.peer.Send(ctx, errorMessage(mcp.RequestId{}, &ProtocolError{Code: mcp.PARSE_ERROR, Message: "Parse error"}))
	s.finishClose()
	if sendErr != nil {
		return fmt.Errorf("send parse error: %w", sendErr)
	}
	return fmt.Errorf("decode message: %w", ErrSessionClosed)
}

// handleLocked はメッセージを処理し、送るべき応答を返す。応答がなければnil
func (s *Session) handleLocked(message json.RawMessage) (mcp.JSONRPCMessage, error) {
	if s.state == StateClosed {
		return nil, ErrSessionClosed
	}

	var base struct {
		JSONRPC string          `json:"jsonrpc"`
		Method  string          `json:"method"`
		ID      *mcp.RequestId  `json:"id,omitempty"`
		Result  json.RawMessage `json:"result,omitempty"`
		Error   json.RawMessage `json:"error,omitempty"`
	}
	if err := json.Unmarshal(message, &base); err != nil {
		s.logger.Warn("malformed JSON-RPC message", "error", err)
		return errorMessage(requestIDOf(message), newInvalidRequest("malformed JSON-RPC message: %v", err)), nil
	}

	// クライアントからのレスポンスは扱わない
	if len(base.Result) > 0 || len(base.Error) > 0 {
		return nil, nil
	}

	if base.ID == nil || base.ID.IsNil() {
		if base.JSONRPC != mcp.JSONRPC_VERSION {
			s.logger.Warn("ignoring notification with invalid JSON-RPC version", "method", base.Method)
			return nil, nil
		}
		s.handleNotificationLocked(base.Method, message)
		return nil, nil
	}

	id := *base.ID
	if base.JSONRPC != mcp.JSONRPC_VERSION {
		return errorMessage(id, newInvalidRequest("invalid JSON-RPC version")), nil
	}

	if s.state == StateUninitialized && base.Method != string(mcp.MethodInitialize) {
		s.logger.Warn("request before initialization", "method", base.Method)
		return errorMessage(id, newInvalidRequest("session not initialized: %s received before initialize", base.Method)), nil
	}

	switch mcp.MCPMethod(base.Method) {
	case mcp.MethodInitialize:
		return s.handleInitializeLocked(id, message), nil
	case mcp.MethodPing:
		return response(id, mcp.EmptyResult{}), nil
	case mcp.MethodToolsList:
		return response(id, mcp.NewListToolsResult(s.dispatcher.Tools(), "")), nil
	case mcp.MethodToolsCall:
		return s.handleToolCallLocked(id, message), nil
	default:
		s.logger.Warn("method not found", "method", base.Method)
		return errorMessage(id, newMethodNotFound("method not found: %s", base.Method)), nil
	}
}

// requestIDOf はidだけを取り出す。読めなければnullのid
func requestIDOf(message json.RawMessage) mcp.RequestId {
	var envelope struct {
		ID json.RawMessage `json:"id"`
	}
	var id mcp.RequestId
	if err := json.Unmarshal(message, &envelope); err != nil || len(envelope.ID) == 0 {
		return id
	}
	if err := json.Unmarshal(envelope.ID, &id); err != nil {
		return mcp.RequestId{}
	}
	return id
}

func (s *Session) handleInitializeLocked(id mcp.RequestId, message json.RawMessage) mcp.JSONRPCMessage {
	if s.state != StateUninitialized {
		return errorMessage(id, newInvalidRequest("session already initialized"))
	}

	var request mcp.InitializeRequest
	if err := json.Unmarshal(message, &request); err != nil {
		return errorMessage(id, newInvalidParams("invalid initialize params: %v", err))
	}

	version := mcp.LATEST_PROTOCOL_VERSION
	if slices.Contains(mcp.ValidProtocolVersions, request.Params.ProtocolVersion) {
		version = request.Params.ProtocolVersion
	}

	s.protocolVersion = version
	s.clientInfo = request.Params.ClientInfo
	s.state = StateReady

	s.logger.Info("session initialized",
		"client_name", request.Params.ClientInfo.Name,
		"client_version", request.Params.ClientInfo.Version,
		"protocol_version", version)

	capabilities := mcp.ServerCapabilities{
		Tools: &struct {
			ListChanged bool `json:"listChanged,omitempty"`
		}{},
	}
	result := mcp.NewInitializeResult(version, capabilities, mcp.Implementation{
		Name:    s.info.Name,
		Version: s.info.Version,
	}, s.info.Instructions)

	return response(id, result)
}

// handleToolCallLocked はツール呼び出しを開始する。即時に返すべきエラーがあればそれを返す
func (s *Session) handleToolCallLocked(id mcp.RequestId, message json.RawMessage) mcp.JSONRPCMessage {
	var request mcp.CallToolRequest
	if err := json.Unmarshal(message, &request); err != nil {
		return errorMessage(id, newInvalidParams("invalid tools/call params: %v", err))
	}
	if request.Params.Name == "" {
		return errorMessage(id, newInvalidParams("tool name is required"))
	}
	if !s.dispatcher.HasTool(request.Params.Name) {
		s.logger.Warn("unknown tool requested", "tool", request.Params.Name)
		return errorMessage(id, newMethodNotFound("tool not found: %s", request.Params.Name))
	}

	key := id.String()
	if _, exists := s.inflight[key]; exists {
		return errorMessage(id, newInvalidRequest("duplicate request id: %v", id.Value()))
	}

	callCtx, cancel := context.WithCancel(s.ctx)
	s.inflight[key] = cancel
	s.wg.Add(1)

	// 外部呼び出しの間も他のメッセージ（キャンセル通知など）を受け付ける
	go func() {
		defer s.wg.Done()
		defer cancel()

		result, err := s.dispatcher.Invoke(callCtx, request.Params.Name, request.Params.Arguments)

		s.mu.Lock()
		_, stillWanted := s.inflight[key]
		delete(s.inflight, key)
		s.mu.Unlock()

		if !stillWanted {
			s.logger.Info("dropping reply for cancelled request", "request_id", id.Value())
			return
		}

		var reply mcp.JSONRPCMessage
		var perr *ProtocolError
		switch {
		case err == nil:
			reply = response(id, result)
		case errors.As(err, &perr):
			reply = errorMessage(id, perr)
		default:
			reply = errorMessage(id, &ProtocolError{Code: mcp.INTERNAL_ERROR, Message: err.Error()})
		}
		if sendErr := s.peer.Send(s.ctx, reply); sendErr != nil {
			s.logger.Error("failed to send tools/call reply", "request_id", id.Value(), "error", sendErr)
		}
	}()

	return nil
}

func (s *Session) handleNotificationLocked(method string, message json.RawMessage) {
	switch method {
	case methodNotificationCancelled:
		var notification struct {
			Params mcp.CancelledNotificationParams `json:"params"`
		}
		if err := json.Unmarshal(message, &notification); err != nil {
			s.logger.Warn("ignoring malformed cancellation", "error", err)
			return
		}
		key := notification.Params.RequestId.String()
		if cancel, ok := s.inflight[key]; ok {
			cancel()
			delete(s.inflight, key)
			s.logger.Info("request cancelled",
				"request_id", notification.Params.RequestId.Value(),
				"reason", notification.Params.Reason)
		}
	case methodNotificationInitialized:
		s.logger.Debug("client reported initialized")
	default:
		s.logger.Debug("ignoring notification", "method", method)
	}
}

// Wait は実行中のツール呼び出しがすべて終わるまで待つ
func (s *Session) Wait() {
	s.wg.Wait()
}

// Close はセッションを終了し、実行中のツール呼び出しの完了を待つ
func (s *Session) Close() {
	s.mu.Lock()
	closed := s.markClosedLocked()
	s.mu.Unlock()
	if closed {
		s.finishClose()
	}
	s.wg.Wait()
}

// markClosedLocked は状態をclosedにして実行中の呼び出しを取り消す。
// 既に閉じていればfalseを返す
func (s *Session) markClosedLocked() bool {
	if s.state == StateClosed {
		return false
	}
	s.state = StateClosed
	for key, cancel := range s.inflight {
		cancel()
		delete(s.inflight, key)
	}
	return true
}

// finishClose はDoneを閉じる。markClosedLockedがtrueを返した後に一度だけ呼ぶ
func (s *Session) finishClose() {
	s.cancel()
	activeSessions.Dec()
	s.logger.Info("session closed")
}

func response(id mcp.RequestId, result any) mcp.JSONRPCMessage {
	return mcp.JSONRPCResponse{
		JSONRPC: mcp.JSONRPC_VERSION,
		ID:      id,
		Result:  result,
	}
}

func errorMessage(id mcp.RequestId, perr *ProtocolError) mcp.JSONRPCMessage {
	return mcp.NewJSONRPCError(id, perr.Code, perr.Message, nil)
}
