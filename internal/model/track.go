package model

import "time"

// Track はアップロードされた音声ファイル1件のメタデータを表す。
// 実体はBlob Storageにあり、URLとpathnameで参照する。
type Track struct {
	ID        int64
	Name      string
	URL       string
	Pathname  string     // 未設定の場合は空文字
	UserID    string     // アップロードしたユーザー。未認証アップロードでは空文字
	CreatedAt *time.Time // DB側のデフォルト値で設定される
}

// NewTrack はINSERT対象のトラックを表す。
type NewTrack struct {
	Name     string
	URL      string
	Pathname string
	UserID   string
}

// UploadFile はフォームから受け取ったアップロードファイルを表す。
type UploadFile struct {
	Name        string
	ContentType string // クライアントが宣言したメディアタイプ
	Size        int64
	Data        []byte
}
