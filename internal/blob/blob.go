// Package blob はアップロードされた音声ファイルを公開Blob Storageへ保存する。
// Vercel Blob互換のHTTP APIとS3互換オブジェクトストレージの2種類のバックエンドを持つ。
package blob

import (
	"context"
	"errors"
	"path"
	"strings"

	"github.com/gabriel-vasile/mimetype"
	"github.com/google/uuid"
)

// ErrNotConfigured は書き込み資格情報が未設定のStoreで操作した場合のエラー。
var ErrNotConfigured = errors.New("blob storage not configured")

// octetStream はクライアントが種別を特定できなかった場合に送ってくるメディアタイプ。
const octetStream = "application/octet-stream"

// PutOptions はPut時のオプションを表す。
// 保存したオブジェクトは常に公開アクセスとなる。
type PutOptions struct {
	ContentType     string
	AddRandomSuffix bool
}

// PutResult は保存に成功したオブジェクトの参照を表す。
type PutResult struct {
	URL         string // 公開URL
	Pathname    string // ストア内のパス
	ContentType string
}

// Store はBlob Storageのバックエンドが実装するインターフェース。
type Store interface {
	// Configured は書き込み資格情報が設定されているかを返す。
	Configured() bool
	// Put はdataをpathnameに保存し、公開URLを返す。
	Put(ctx context.Context, pathname string, data []byte, opts PutOptions) (*PutResult, error)
	// Delete はPutが返したURLのオブジェクトを削除する。
	Delete(ctx context.Context, url string) error
}

// DetectContentType は保存時のContent-Typeを決定する。
// 宣言値が空またはapplication/octet-streamの場合のみ内容から判定する。
func DetectContentType(declared string, data []byte) string {
	declared = strings.TrimSpace(declared)
	if declared != "" && declared != octetStream {
		return declared
	}
	return mimetype.Detect(data).String()
}

// withRandomSuffix は拡張子の前にランダムな接尾辞を付与する。
// 同名ファイルのアップロードで既存オブジェクトを上書きしないために使う。
func withRandomSuffix(pathname string) string {
	ext := path.Ext(pathname)
	base := strings.TrimSuffix(pathname, ext)
	suffix := strings.ReplaceAll(uuid.NewString(), "-", "")[:12]
	return base + "-" + suffix + ext
}
