package auth

import (
	"context"
	"errors"
	"log/slog"

	"github.com/hitoshi/trackbox/internal/model"
)

// Source はResolutionのユーザー情報をどこから取得したかを表す。
type Source string

const (
	// SourceNone は未認証（セッションなし）を表す。
	SourceNone Source = "none"
	// SourceDatabase はuserテーブルの正本から取得したことを表す。
	SourceDatabase Source = "database"
	// SourceAuthResponse は認証サービスのレスポンスに含まれる非正規化コピーを使ったことを表す。
	SourceAuthResponse Source = "auth_response"
)

// Resolution はリクエスト単位のセッション解決結果。
// ゼロ値は未認証を表し、そのままリクエスト処理を継続してよい。
type Resolution struct {
	Session *model.Session
	User    *model.User
	Source  Source
}

// Authenticated はセッションとユーザーの両方が解決できたかを返す。
func (r Resolution) Authenticated() bool {
	return r.Session != nil && r.User != nil
}

// Unauthenticated は未認証のResolutionを返す。
func Unauthenticated() Resolution {
	return Resolution{Source: SourceNone}
}

// SessionSource はセッション取得元のインターフェース。*Clientが実装する。
type SessionSource interface {
	Configured() bool
	GetSession(ctx context.Context, cookieHeader string) (*SessionPayload, error)
}

// UserFinder は正本のユーザー検索インターフェース。
// repository.UserRepositoryの部分集合として定義する。
type UserFinder interface {
	FindByID(ctx context.Context, id string) (*model.User, error)
}

// Resolver はセッションとユーザーをリクエストごとに解決する。
// キャッシュは持たず、毎回認証サービスに問い合わせる。
type Resolver struct {
	sessions SessionSource
	users    UserFinder
	logger   *slog.Logger
}

// NewResolver はResolverを生成する。
func NewResolver(sessions SessionSource, users UserFinder, logger *slog.Logger) *Resolver {
	return &Resolver{
		sessions: sessions,
		users:    users,
		logger:   logger,
	}
}

// Resolve はCookieヘッダーからセッションとユーザーを解決する。
//
// 返すResolutionは常に有効で、失敗時は未認証になる。
// errorは認証サービス呼び出しの失敗を呼び出し元がログに残すためのもので、
// リクエストを中断する理由にはならない。
// 認証サービスが未設定の場合はネットワーク呼び出しを行わずに未認証を返す。
func (r *Resolver) Resolve(ctx context.Context, cookieHeader string) (Resolution, error) {
	if r.sessions == nil || !r.sessions.Configured() {
		return Unauthenticated(), nil
	}

	payload, err := r.sessions.GetSession(ctx, cookieHeader)
	if err != nil {
		if errors.Is(err, ErrNotConfigured) {
			return Unauthenticated(), nil
		}
		return Unauthenticated(), err
	}
	if payload == nil || payload.Session == nil || payload.User == nil {
		return Unauthenticated(), nil
	}

	user, source := r.resolveUser(ctx, payload.Session.UserID, payload.User)

	return Resolution{
		Session: payload.Session,
		User:    user,
		Source:  source,
	}, nil
}

// resolveUser は正本（userテーブル）を優先してユーザーを決定する。
// 行が見つからない場合、または検索自体が失敗した場合は認証レスポンスのユーザーを使う。
func (r *Resolver) resolveUser(ctx context.Context, userID string, fallback *model.User) (*model.User, Source) {
	if r.users == nil {
		return fallback, SourceAuthResponse
	}

	user, err := r.users.FindByID(ctx, userID)
	if err != nil {
		r.logger.Error("failed to query user from database, falling back to auth response",
			slog.String("user_id", userID),
			slog.String("error", err.Error()),
		)
		return fallback, SourceAuthResponse
	}
	if user == nil {
		return fallback, SourceAuthResponse
	}

	return user, SourceDatabase
}
