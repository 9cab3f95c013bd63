// Package config は環境変数からアプリケーション設定を読み込む。
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"github.com/caarlos0/env/v10"
	"github.com/joho/godotenv"
)

// Blobバックエンドの種別。
const (
	BlobBackendHTTP = "http"
	BlobBackendS3   = "s3"
)

// Config はアプリケーション全体の設定を保持する。
// 環境変数から起動時に1回読み込み、イミュータブルとして扱う。
type Config struct {
	// Database
	DatabaseURL string `env:"DATABASE_URL,required,notEmpty"`

	// Auth
	// 空の場合はセッション解決を行わない（未認証として扱う）
	AuthBaseURL string        `env:"PUBLIC_NEON_AUTH_URL"`
	AuthTimeout time.Duration `env:"AUTH_TIMEOUT" envDefault:"5s"`

	// Blob
	// 空の場合はアップロードを "Blob storage not configured" で拒否する
	BlobToken           string        `env:"BLOB_READ_WRITE_TOKEN"`
	BlobBackend         string        `env:"BLOB_BACKEND" envDefault:"http"`
	BlobAPIURL          string        `env:"BLOB_API_URL" envDefault:"https://blob.vercel-storage.com"`
	BlobAddRandomSuffix bool          `env:"BLOB_ADD_RANDOM_SUFFIX" envDefault:"false"`
	BlobTimeout         time.Duration `env:"BLOB_TIMEOUT" envDefault:"60s"`

	// S3 (BLOB_BACKEND=s3 のときのみ使用。シークレットキーはBLOB_READ_WRITE_TOKEN)
	S3Bucket        string `env:"S3_BUCKET"`
	S3Region        string `env:"S3_REGION" envDefault:"us-east-1"`
	S3Endpoint      string `env:"S3_ENDPOINT"`
	S3AccessKeyID   string `env:"S3_ACCESS_KEY_ID"`
	S3PublicBaseURL string `env:"S3_PUBLIC_BASE_URL"`

	// Upload
	MaxUploadBytes   int64 `env:"MAX_UPLOAD_BYTES" envDefault:"52428800"`
	UploadRatePerMin int   `env:"UPLOAD_RATE_PER_MIN" envDefault:"20"`

	// Server
	ServerPort string `env:"SERVER_PORT" envDefault:"8080"`
	BaseURL    string `env:"BASE_URL" envDefault:"http://localhost:8080"`

	// Logging
	LogLevel string `env:"LOG_LEVEL" envDefault:"info"`
}

// Load は環境変数からConfigを読み込む。
// カレントディレクトリに .env がある場合は先に読み込む（既存の環境変数は上書きしない）。
// 必須環境変数が未設定、または値が不正な場合はエラーを返す。
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env: %w", err)
	}

	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("failed to parse environment: %w", err)
	}

	cfg.AuthBaseURL = strings.TrimRight(cfg.AuthBaseURL, "/")
	cfg.BlobAPIURL = strings.TrimRight(cfg.BlobAPIURL, "/")

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// validate は環境変数間の整合性を検証する。
func (c *Config) validate() error {
	switch c.BlobBackend {
	case BlobBackendHTTP:
	case BlobBackendS3:
		if c.S3Bucket == "" {
			return fmt.Errorf("S3_BUCKET is required when BLOB_BACKEND=%s", BlobBackendS3)
		}
	default:
		return fmt.Errorf("unsupported BLOB_BACKEND: %q", c.BlobBackend)
	}

	if c.MaxUploadBytes <= 0 {
		return fmt.Errorf("MAX_UPLOAD_BYTES must be positive: %d", c.MaxUploadBytes)
	}
	if c.UploadRatePerMin <= 0 {
		return fmt.Errorf("UPLOAD_RATE_PER_MIN must be positive: %d", c.UploadRatePerMin)
	}

	return nil
}

// BlobConfigured はBlob Storageへの書き込み資格情報が設定されているかを返す。
func (c *Config) BlobConfigured() bool {
	if c.BlobToken == "" {
		return false
	}
	if c.BlobBackend == BlobBackendS3 {
		return c.S3AccessKeyID != ""
	}
	return true
}
