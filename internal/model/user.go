// Package model はドメインモデルを定義する。
package model

import "time"

// User は認証プロバイダーが管理するユーザーを表す。
// 正本はuserテーブルにあり、認証APIのレスポンスに含まれるコピーはフォールバックとしてのみ使う。
type User struct {
	ID            string
	Email         string
	Name          string // 未設定の場合は空文字
	EmailVerified *bool
	Image         string
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// Session は認証サービスが発行したログインセッションを表す。
// リクエストごとに認証サービスから取得し直し、このアプリケーションでは永続化しない。
type Session struct {
	ID        string
	UserID    string
	ExpiresAt time.Time
}
