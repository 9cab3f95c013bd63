package blob

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
)

const (
	// DefaultAPIURL はVercel BlobのAPIエンドポイント。
	DefaultAPIURL = "https://blob.vercel-storage.com"
	// apiVersion はx-api-versionヘッダーで送るAPIバージョン。
	apiVersion = "7"
	// maxErrorBody はエラーレスポンスから読み取る最大バイト数。
	maxErrorBody = 4096
)

// HTTPStore はVercel Blob互換のHTTP APIを使うStore。
type HTTPStore struct {
	httpClient *http.Client
	logger     *slog.Logger
	apiURL     string
	token      string
}

var _ Store = (*HTTPStore)(nil)

// NewHTTPStore はHTTPStoreの新しいインスタンスを生成する。
// apiURLが空の場合はDefaultAPIURLを使う。
func NewHTTPStore(httpClient *http.Client, logger *slog.Logger, apiURL, token string) *HTTPStore {
	if apiURL == "" {
		apiURL = DefaultAPIURL
	}
	return &HTTPStore{
		httpClient: httpClient,
		logger:     logger,
		apiURL:     strings.TrimRight(apiURL, "/"),
		token:      token,
	}
}

// Configured はトークンが設定されているかを返す。
func (s *HTTPStore) Configured() bool {
	return s != nil && s.token != ""
}

// putResponse はPUT APIのレスポンスボディ。
type putResponse struct {
	URL         string `json:"url"`
	DownloadURL string `json:"downloadUrl"`
	Pathname    string `json:"pathname"`
	ContentType string `json:"contentType"`
}

// APIError はBlob APIが2xx以外を返したことを表す。
type APIError struct {
	StatusCode int
	Body       string
}

// Error はerrorインターフェースを実装する。
func (e *APIError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("blob API returned status %d", e.StatusCode)
	}
	return fmt.Sprintf("blob API returned status %d: %s", e.StatusCode, e.Body)
}

// Put はファイルを公開アクセスで保存する。
func (s *HTTPStore) Put(ctx context.Context, pathname string, data []byte, opts PutOptions) (*PutResult, error) {
	if !s.Configured() {
		return nil, ErrNotConfigured
	}
	if pathname == "" {
		return nil, fmt.Errorf("pathname is required")
	}

	q := url.Values{}
	q.Set("pathname", pathname)
	reqURL := s.apiURL + "/?" + q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodPut, reqURL, bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("failed to create blob put request: %w", err)
	}
	s.setHeaders(req)
	req.Header.Set("x-vercel-blob-access", "public")
	if opts.ContentType != "" {
		req.Header.Set("x-content-type", opts.ContentType)
	}
	if opts.AddRandomSuffix {
		req.Header.Set("x-add-random-suffix", "1")
	} else {
		req.Header.Set("x-add-random-suffix", "0")
	}
	req.ContentLength = int64(len(data))

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("blob put request failed: %w", err)
	}
	defer resp.Body.Close()

	if err := checkStatus(resp); err != nil {
		s.logger.Error("blob put rejected",
			slog.String("pathname", pathname),
			slog.Int("http_status", resp.StatusCode),
		)
		return nil, err
	}

	var body putResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, fmt.Errorf("failed to decode blob put response: %w", err)
	}
	if body.URL == "" {
		return nil, fmt.Errorf("blob put response has no url")
	}

	result := &PutResult{
		URL:         body.URL,
		Pathname:    body.Pathname,
		ContentType: body.ContentType,
	}
	if result.Pathname == "" {
		result.Pathname = pathname
	}
	if result.ContentType == "" {
		result.ContentType = opts.ContentType
	}
	return result, nil
}

// Delete はURLで指定したオブジェクトを削除する。
func (s *HTTPStore) Delete(ctx context.Context, blobURL string) error {
	if !s.Configured() {
		return ErrNotConfigured
	}

	payload, err := json.Marshal(map[string][]string{"urls": {blobURL}})
	if err != nil {
		return fmt.Errorf("failed to encode blob delete request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.apiURL+"/delete", bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("failed to create blob delete request: %w", err)
	}
	s.setHeaders(req)
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("blob delete request failed: %w", err)
	}
	defer resp.Body.Close()

	return checkStatus(resp)
}

func (s *HTTPStore) setHeaders(req *http.Request) {
	req.Header.Set("Authorization", "Bearer "+s.token)
	req.Header.Set("x-api-version", apiVersion)
	req.Header.Set("User-Agent", "Trackbox/1.0")
}

// checkStatus は2xx以外のレスポンスをAPIErrorに変換する。
func checkStatus(resp *http.Response) error {
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return nil
	}
	body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	return &APIError{StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(body))}
}
