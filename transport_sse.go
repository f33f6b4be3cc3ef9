package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const (
	sseEndpoint     = "/sse"
	messageEndpoint = "/message"
	healthEndpoint  = "/health"
	metricsEndpoint = "/metrics"

	// maxMessageBytes はPOSTされる1メッセージの上限
	maxMessageBytes = 1 << 20

	defaultKeepAliveInterval = 30 * time.Second
	shutdownTimeout          = 5 * time.Second
)

// ssePeer はSSEストリームへイベントを積むPeer
type ssePeer struct {
	events chan []byte
	done   chan struct{}
}

func newSSEPeer() *ssePeer {
	return &ssePeer{
		events: make(chan []byte, 100),
		done:   make(chan struct{}),
	}
}

func (p *ssePeer) Send(ctx context.Context, msg mcp.JSONRPCMessage) error {
	data, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("marshal message: %w", err)
	}

	select {
	case p.events <- data:
		return nil
	case <-p.done:
		return ErrSessionClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

// SSEServer はServer-Sent Eventsで複数のセッションを提供する
type SSEServer struct {
	dispatcher        *ToolDispatcher
	info              ServerInfo
	logger            *slog.Logger
	keepAliveInterval time.Duration

	mu       sync.RWMutex
	sessions map[string]*Session
}

// SSEOption はSSEServerの設定を変更する関数型
type SSEOption func(*SSEServer)

// WithKeepAliveInterval はコメント行によるキープアライブの間隔を指定する。0で無効
func WithKeepAliveInterval(interval time.Duration) SSEOption {
	return func(s *SSEServer) {
		s.keepAliveInterval = interval
	}
}

// NewSSEServer は新しいSSEServerを生成する
func NewSSEServer(dispatcher *ToolDispatcher, info ServerInfo, logger *slog.Logger, opts ...SSEOption) *SSEServer {
	if logger == nil {
		logger = slog.Default()
	}
	s := &SSEServer{
		dispatcher:        dispatcher,
		info:              info,
		logger:            logger,
		keepAliveInterval: defaultKeepAliveInterval,
		sessions:          make(map[string]*Session),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Router はSSEサーバーのルーティングを返す
func (s *SSEServer) Router() *mux.Router {
	router := mux.NewRouter()
	router.Use(corsMiddleware)

	router.HandleFunc(sseEndpoint, s.handleSSE).Methods(http.MethodGet, http.MethodOptions)
	router.HandleFunc(messageEndpoint, s.handleMessage).Methods(http.MethodPost, http.MethodOptions)
	router.HandleFunc(healthEndpoint, healthHandler).Methods(http.MethodGet)
	router.Handle(metricsEndpoint, promhttp.Handler()).Methods(http.MethodGet)

	return router
}

// Start はaddrで待ち受け、ctxがキャンセルされるとシャットダウンする
func (s *SSEServer) Start(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:        addr,
		Handler:     s.Router(),
		ReadTimeout: 15 * time.Second,
		IdleTimeout: 60 * time.Second,
		// SSEのストリームはctxのキャンセルで終わらせる
		BaseContext: func(net.Listener) context.Context { return ctx },
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("serving MCP over SSE", "address", addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("listen on %s: %w", addr, err)
	case <-ctx.Done():
	}

	s.logger.Info("shutting down SSE server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}

func (s *SSEServer) handleSSE(w http.ResponseWriter, r *http.Request) {
	if r.Method == http.MethodOptions {
		w.WriteHeader(http.StatusNoContent)
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "Streaming unsupported", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	sessionID := uuid.NewString()
	peer := newSSEPeer()
	session := NewSession(sessionID, peer, s.dispatcher, s.info, s.logger)

	s.mu.Lock()
	s.sessions[sessionID] = session
	s.mu.Unlock()

	defer func() {
		close(peer.done)
		s.mu.Lock()
		delete(s.sessions, sessionID)
		s.mu.Unlock()
		session.Close()
	}()

	fmt.Fprintf(w, "event: endpoint\ndata: %s?sessionId=%s\n\n", messageEndpoint, sessionID)
	flusher.Flush()

	var keepAlive <-chan time.Time
	if s.keepAliveInterval > 0 {
		ticker := time.NewTicker(s.keepAliveInterval)
		defer ticker.Stop()
		keepAlive = ticker.C
	}

	for {
		select {
		case data := <-peer.events:
			fmt.Fprintf(w, "event: message\ndata: %s\n\n", data)
			flusher.Flush()
		case <-keepAlive:
			fmt.Fprint(w, ": ping\n\n")
			flusher.Flush()
		case <-session.Done():
			// デコードエラーで閉じられた場合も送信済みのイベントは流す
			s.drainEvents(w, flusher, peer)
			return
		case <-r.Context().Done():
			return
		}
	}
}

func (s *SSEServer) drainEvents(w io.Writer, flusher http.Flusher, peer *ssePeer) {
	for {
		select {
		case data := <-peer.events:
			fmt.Fprintf(w, "event: message\ndata: %s\n\n", data)
			flusher.Flush()
		default:
			return
		}
	}
}

func (s *SSEServer) handleMessage(w http.ResponseWriter, r *http.Request) {
	if r.Method == http.MethodOptions {
		w.WriteHeader(http.StatusNoContent)
		return
	}

	sessionID := r.URL.Query().Get("sessionId")
	if sessionID == "" {
		writeJSONRPCError(w, http.StatusBadRequest, mcp.INVALID_PARAMS, "Missing sessionId")
		return
	}

	s.mu.RLock()
	session, ok := s.sessions[sessionID]
	s.mu.RUnlock()
	if !ok {
		writeJSONRPCError(w, http.StatusNotFound, mcp.INVALID_PARAMS, "Invalid session ID")
		return
	}

	body, err := io.ReadAll(io.LimitReader(r.Body, maxMessageBytes))
	if err != nil {
		writeJSONRPCError(w, http.StatusBadRequest, mcp.PARSE_ERROR, "Failed to read request body")
		return
	}

	if err := session.HandleMessage(r.Context(), json.RawMessage(body)); err != nil {
		s.logger.Warn("failed to handle message", "session_id", sessionID, "error", err)
		if errors.Is(err, ErrSessionClosed) {
			writeJSONRPCError(w, http.StatusGone, mcp.INVALID_REQUEST, "Session closed")
			return
		}
		writeJSONRPCError(w, http.StatusInternalServerError, mcp.INTERNAL_ERROR, "Failed to handle message")
		return
	}

	// 応答はSSEストリームで返す
	w.WriteHeader(http.StatusAccepted)
}

// SessionCount は接続中のセッション数を返す
func (s *SSEServer) SessionCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.sessions)
}

func writeJSONRPCError(w http.ResponseWriter, status int, code int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(mcp.NewJSONRPCError(mcp.RequestId{}, code, message, nil))
}

func healthHandler(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("LinkedIn MCP Server - Status: Running"))
}

// corsMiddleware はブラウザのクライアントからの接続を許可する
func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
		next.ServeHTTP(w, r)
	})
}
