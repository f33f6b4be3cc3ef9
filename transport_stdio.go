package main

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"

	"github.com/mark3labs/mcp-go/mcp"
)

// stdioPeer は改行区切りのJSONを書き出すPeer
type stdioPeer struct {
	mu sync.Mutex
	w  io.Writer
}

func (p *stdioPeer) Send(_ context.Context, msg mcp.JSONRPCMessage) error {
	data, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("marshal message: %w", err)
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if _, err := fmt.Fprintf(p.w, "%s\n", data); err != nil {
		return fmt.Errorf("write message: %w", err)
	}
	return nil
}

// StdioServer は標準入出力で1つのセッションを提供する
type StdioServer struct {
	dispatcher *ToolDispatcher
	info       ServerInfo
	logger     *slog.Logger
}

// NewStdioServer は新しいStdioServerを生成する
func NewStdioServer(dispatcher *ToolDispatcher, info ServerInfo, logger *slog.Logger) *StdioServer {
	if logger == nil {
		logger = slog.Default()
	}
	return &StdioServer{
		dispatcher: dispatcher,
		info:       info,
		logger:     logger,
	}
}

// Listen はstdinからメッセージを読み、応答をstdoutに書く。
// EOFまたはctxのキャンセルで正常終了する
func (s *StdioServer) Listen(ctx context.Context, stdin io.Reader, stdout io.Writer) error {
	session := NewSession("stdio", &stdioPeer{w: stdout}, s.dispatcher, s.info, s.logger)
	defer session.Close()

	s.logger.Info("serving MCP over stdio")

	reader := bufio.NewReader(stdin)
	for {
		line, readErr := readNextLine(ctx, reader)
		if ctx.Err() != nil {
			return nil
		}
		if readErr != nil && !errors.Is(readErr, io.EOF) {
			return fmt.Errorf("read input: %w", readErr)
		}

		if strings.TrimSpace(line) != "" {
			if err := session.HandleMessage(ctx, json.RawMessage(line)); err != nil {
				return err
			}
		}

		if errors.Is(readErr, io.EOF) {
			// 入力が閉じても実行中のツール呼び出しの応答は返す
			session.Wait()
			return nil
		}
	}
}

// readNextLine はctxのキャンセルで中断できる形で1行読む
func readNextLine(ctx context.Context, reader *bufio.Reader) (string, error) {
	type result struct {
		line string
		err  error
	}

	resultCh := make(chan result, 1)
	go func() {
		line, err := reader.ReadString('\n')
		resultCh <- result{line: line, err: err}
	}()

	select {
	case <-ctx.Done():
		return "", ctx.Err()
	case res := <-resultCh:
		return res.line, res.err
	}
}
