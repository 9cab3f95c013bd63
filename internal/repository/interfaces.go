// Package repository はデータ永続化のインターフェースとPostgreSQL実装を提供する。
package repository

import (
	"context"

	"github.com/hitoshi/trackbox/internal/model"
)

// UserRepository はuserテーブルの参照インターフェース。
// userテーブルは認証プロバイダーが管理するため、読み取りのみを提供する。
type UserRepository interface {
	// FindByID は指定IDのユーザーのid、email、nameを取得する。見つからない場合はnilを返す。
	FindByID(ctx context.Context, id string) (*model.User, error)
}

// TrackRepository はトラックメタデータの永続化インターフェース。
type TrackRepository interface {
	// Create はトラックを1件INSERTし、採番されたIDと作成日時を含むトラックを返す。
	Create(ctx context.Context, track *model.NewTrack) (*model.Track, error)

	// ListNewestFirst は全トラックを作成日時の降順で返す。
	// created_atがNULLの行は末尾に並べる。
	ListNewestFirst(ctx context.Context) ([]model.Track, error)
}
