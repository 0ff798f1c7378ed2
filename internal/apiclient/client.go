// Package apiclient は保存済みトークンを付けてAPIを呼び出すHTTPクライアントを提供する。
package apiclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"

	"github.com/hitoshi/miniwallet/internal/tokenstore"
)

// ErrUnauthorized はサーバーが401を返したことを表す。
// このときトークンは削除済みで、ログイン画面へ戻すフックも呼び出し済み。
var ErrUnauthorized = errors.New("unauthorized")

// maxResponseBytes はJSONレスポンスの読み取り上限。
const maxResponseBytes = 1 << 20

// Client は認証付きリクエストを送るHTTPクライアント。
type Client struct {
	httpClient     *http.Client
	baseURL        *url.URL
	tokens         *tokenstore.Tokens
	logger         *slog.Logger
	onUnauthorized func()
}

// Option はClientの設定を変更する。
type Option func(*Client)

// WithUnauthorizedHook は401を受けたときに呼ぶ関数を設定する。
func WithUnauthorizedHook(fn func()) Option {
	return func(c *Client) { c.onUnauthorized = fn }
}

// New はClientを生成する。
func New(httpClient *http.Client, baseURL string, tokens *tokenstore.Tokens, logger *slog.Logger, opts ...Option) (*Client, error) {
	u, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("invalid base URL: %w", err)
	}
	c := &Client{
		httpClient: httpClient,
		baseURL:    u,
		tokens:     tokens,
		logger:     logger,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// Do はリクエストを送る。bodyがnilでなければJSONにして送る。
// トークンが保存されていればAuthorizationヘッダーを付ける。
// 401の場合はトークンを削除してフックを呼び、ErrUnauthorizedを返す。
// それ以外のステータスはそのまま返すので、呼び出し側でBodyを閉じること。
func (c *Client) Do(ctx context.Context, method, path string, body any) (*http.Response, error) {
	ref, err := url.Parse(path)
	if err != nil {
		return nil, fmt.Errorf("invalid path %q: %w", path, err)
	}

	var reader io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("failed to encode request body: %w", err)
		}
		reader = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL.ResolveReference(ref).String(), reader)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	token, err := c.tokens.AuthToken(ctx)
	if err != nil {
		c.logger.Warn("トークンの読み取りに失敗したため認証ヘッダーなしで送信します",
			slog.String("error", err.Error()),
		)
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}

	if resp.StatusCode == http.StatusUnauthorized {
		resp.Body.Close()
		c.handleUnauthorized(ctx, req.URL.Path)
		return nil, ErrUnauthorized
	}
	return resp, nil
}

func (c *Client) handleUnauthorized(ctx context.Context, path string) {
	c.logger.Info("認証切れのためトークンを破棄します", slog.String("path", path))
	if err := c.tokens.RemoveAuthTokens(ctx); err != nil {
		c.logger.Warn("トークンの削除に失敗しました", slog.String("error", err.Error()))
	}
	if c.onUnauthorized != nil {
		c.onUnauthorized()
	}
}

// StatusError は2xx以外の応答を表す。
type StatusError struct {
	StatusCode int
	Body       []byte
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("unexpected status %d", e.StatusCode)
}

// JSON はリクエストを送り、2xxの応答をoutにデコードする。outがnilなら本文は読み捨てる。
func (c *Client) JSON(ctx context.Context, method, path string, body, out any) error {
	resp, err := c.Do(ctx, method, path, body)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return fmt.Errorf("failed to read response body: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &StatusError{StatusCode: resp.StatusCode, Body: data}
	}
	if out == nil || len(data) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("failed to decode response body: %w", err)
	}
	return nil
}
