package model

import "fmt"

// APIError は統一エラーフォーマットを表す。
// UIに表示する原因カテゴリと対処方法を含む。
type APIError struct {
	Code     string // エラーコード
	Message  string // エラーメッセージ
	Category string // カテゴリ: auth, validation, upload, system
	Action   string // ユーザー向け対処方法
}

// Error はerrorインターフェースを実装する。
func (e *APIError) Error() string {
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// 定義済みエラーコード
const (
	ErrCodeNotFound          = "NOT_FOUND"
	ErrCodeMethodNotAllowed  = "METHOD_NOT_ALLOWED"
	ErrCodeRateLimitExceeded = "RATE_LIMIT_EXCEEDED"
	ErrCodeCrossSiteForm     = "CROSS_SITE_FORM"
	ErrCodeInternal          = "INTERNAL_ERROR"
)

// NewNotFoundError は未定義ルートへのアクセスエラーを生成する。
func NewNotFoundError() *APIError {
	return &APIError{
		Code:     ErrCodeNotFound,
		Message:  "Not found",
		Category: "validation",
		Action:   "Check the requested path.",
	}
}

// NewMethodNotAllowedError は許可されていないHTTPメソッドのエラーを生成する。
func NewMethodNotAllowedError() *APIError {
	return &APIError{
		Code:     ErrCodeMethodNotAllowed,
		Message:  "Method not allowed",
		Category: "validation",
		Action:   "Check the HTTP method for this endpoint.",
	}
}

// NewRateLimitError はレート制限超過のエラーを生成する。
func NewRateLimitError() *APIError {
	return &APIError{
		Code:     ErrCodeRateLimitExceeded,
		Message:  "Too many requests. Please try again later.",
		Category: "upload",
		Action:   "Please wait and retry after the specified time.",
	}
}

// NewCrossSiteFormError はクロスサイトからのフォーム送信を拒否するエラーを生成する。
func NewCrossSiteFormError() *APIError {
	return &APIError{
		Code:     ErrCodeCrossSiteForm,
		Message:  "Cross-site POST form submissions are forbidden",
		Category: "auth",
		Action:   "Submit the form from the application page.",
	}
}

// NewInternalError は内部エラーを生成する。詳細はログのみに記録する。
func NewInternalError() *APIError {
	return &APIError{
		Code:     ErrCodeInternal,
		Message:  "Internal error",
		Category: "system",
		Action:   "Please wait and try again.",
	}
}

// アップロードアクションの失敗メッセージ。
const (
	MsgNoFileUploaded    = "No file uploaded"
	MsgNotMP3            = "File must be an MP3 audio file"
	MsgBlobNotConfigured = "Blob storage not configured"
	MsgUploadFailed      = "Upload failed"
	MsgFileTooLarge      = "File too large"
	MsgLibraryLoadFailed = "Could not load music library."
)

// ActionFailure はフォームアクションの失敗結果を表す。
// 例外として扱わず、HTTPステータス相当のコードとメッセージを呼び出し元へ返す。
type ActionFailure struct {
	Status  int
	Message string
	Err     error // ログ用の原因。レスポンスには含めない
}

// Error はerrorインターフェースを実装する。
func (f *ActionFailure) Error() string {
	if f.Err != nil {
		return fmt.Sprintf("%d %s: %v", f.Status, f.Message, f.Err)
	}
	return fmt.Sprintf("%d %s", f.Status, f.Message)
}

// Unwrap は原因エラーを返す。
func (f *ActionFailure) Unwrap() error {
	return f.Err
}
