// Package auth は外部認証サービスからのセッション解決を提供する。
// 認証プロトコル自体は実装せず、認証サービスの get-session API を呼び出す。
package auth

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/hitoshi/trackbox/internal/model"
)

const (
	// getSessionPath は認証サービスのセッション取得APIのパス。
	getSessionPath = "/api/get-session"
	// maxResponseSize はレスポンスボディの最大読み取りサイズ。
	maxResponseSize = 1 << 20
)

// ErrNotConfigured は認証サービスのベースURLが未設定であることを示す。
var ErrNotConfigured = errors.New("auth service is not configured")

// StatusError は認証サービスが2xx以外のステータスを返したことを示す。
type StatusError struct {
	StatusCode int
}

// Error はerrorインターフェースを実装する。
func (e *StatusError) Error() string {
	return fmt.Sprintf("auth service returned status %d", e.StatusCode)
}

// SessionPayload は認証サービスのレスポンスから取り出したセッションと非正規化ユーザー。
type SessionPayload struct {
	Session *model.Session
	User    *model.User
}

// getSessionResponse は get-session APIのレスポンスボディ。
// { data: { session: { id, userId, expiresAt }, user: { id, email, name } } }
type getSessionResponse struct {
	Data *struct {
		Session *sessionBody `json:"session"`
		User    *userBody    `json:"user"`
	} `json:"data"`
}

type sessionBody struct {
	ID        string          `json:"id"`
	UserID    string          `json:"userId"`
	ExpiresAt json.RawMessage `json:"expiresAt"`
}

type userBody struct {
	ID            string  `json:"id"`
	Email         string  `json:"email"`
	Name          *string `json:"name"`
	EmailVerified *bool   `json:"emailVerified"`
	Image         *string `json:"image"`
}

// Client は認証サービスのHTTPクライアント。
type Client struct {
	httpClient *http.Client
	baseURL    string
}

// NewClient はClientを生成する。baseURLが空の場合、Configuredはfalseを返す。
func NewClient(httpClient *http.Client, baseURL string) *Client {
	return &Client{
		httpClient: httpClient,
		baseURL:    strings.TrimRight(baseURL, "/"),
	}
}

// Configured は認証サービスのベースURLが設定されているかを返す。
func (c *Client) Configured() bool {
	return c != nil && c.baseURL != ""
}

// GetSession はリクエストのCookieヘッダーを転送してセッションを取得する。
// レスポンスにsessionまたはuserが含まれない場合は (nil, nil) を返す。
// ベースURL未設定の場合はネットワーク呼び出しを行わずErrNotConfiguredを返す。
func (c *Client) GetSession(ctx context.Context, cookieHeader string) (*SessionPayload, error) {
	if !c.Configured() {
		return nil, ErrNotConfigured
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+getSessionPath, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create get-session request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if cookieHeader != "" {
		req.Header.Set("Cookie", cookieHeader)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("get-session request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		io.Copy(io.Discard, io.LimitReader(resp.Body, maxResponseSize))
		return nil, &StatusError{StatusCode: resp.StatusCode}
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return nil, fmt.Errorf("failed to read get-session response: %w", err)
	}

	return parseSessionResponse(body)
}

// parseSessionResponse は get-session APIのレスポンスボディをパースする。
func parseSessionResponse(body []byte) (*SessionPayload, error) {
	// 未ログイン時は本文が "null" になる実装がある
	if len(bytes.TrimSpace(body)) == 0 || string(bytes.TrimSpace(body)) == "null" {
		return nil, nil
	}

	var result getSessionResponse
	if err := json.Unmarshal(body, &result); err != nil {
		return nil, fmt.Errorf("failed to decode get-session response: %w", err)
	}

	if result.Data == nil || result.Data.Session == nil || result.Data.User == nil {
		return nil, nil
	}

	// 解釈できないexpiresAtはゼロ値のままにし、セッション自体は維持する
	expiresAt, _ := parseTimestamp(result.Data.Session.ExpiresAt)

	u := result.Data.User
	user := &model.User{
		ID:            u.ID,
		Email:         u.Email,
		EmailVerified: u.EmailVerified,
	}
	if u.Name != nil {
		user.Name = *u.Name
	}
	if u.Image != nil {
		user.Image = *u.Image
	}

	return &SessionPayload{
		Session: &model.Session{
			ID:        result.Data.Session.ID,
			UserID:    result.Data.Session.UserID,
			ExpiresAt: expiresAt,
		},
		User: user,
	}, nil
}

// parseTimestamp はexpiresAtをtime.Timeに変換する。
// ISO 8601文字列、数値文字列、エポックミリ秒の数値を受け付ける。
func parseTimestamp(raw json.RawMessage) (time.Time, error) {
	if len(raw) == 0 || string(raw) == "null" {
		return time.Time{}, errors.New("expiresAt is missing")
	}

	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		for _, layout := range []string{time.RFC3339Nano, time.DateTime} {
			if t, err := time.Parse(layout, s); err == nil {
				return t, nil
			}
		}
		if ms, err := strconv.ParseInt(s, 10, 64); err == nil {
			return time.UnixMilli(ms).UTC(), nil
		}
		return time.Time{}, fmt.Errorf("unsupported timestamp format: %q", s)
	}

	var ms float64
	if err := json.Unmarshal(raw, &ms); err != nil {
		return time.Time{}, fmt.Errorf("unsupported timestamp value: %s", string(raw))
	}
	return time.UnixMilli(int64(ms)).UTC(), nil
}
