package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/hitoshi/trackbox/internal/model"
)

// PostgresTrackRepo はPostgreSQLを使用したトラックリポジトリ。
type PostgresTrackRepo struct {
	db *sql.DB
}

// NewPostgresTrackRepo はPostgresTrackRepoを生成する。
func NewPostgresTrackRepo(db *sql.DB) *PostgresTrackRepo {
	return &PostgresTrackRepo{db: db}
}

// Create はトラックを1件INSERTする。created_atはDBのデフォルト値（INSERT時刻）を使う。
func (r *PostgresTrackRepo) Create(ctx context.Context, track *model.NewTrack) (*model.Track, error) {
	created := &model.Track{
		Name:     track.Name,
		URL:      track.URL,
		Pathname: track.Pathname,
		UserID:   track.UserID,
	}
	var createdAt sql.NullTime

	err := r.db.QueryRowContext(ctx,
		`INSERT INTO tracks (name, url, pathname, user_id)
		 VALUES ($1, $2, $3, $4)
		 RETURNING id, created_at`,
		track.Name, track.URL, nullString(track.Pathname), nullString(track.UserID),
	).Scan(&created.ID, &createdAt)
	if err != nil {
		return nil, fmt.Errorf("failed to insert track: %w", err)
	}

	if createdAt.Valid {
		created.CreatedAt = &createdAt.Time
	}

	return created, nil
}

// ListNewestFirst は全トラックを作成日時の降順で返す。
// 同一時刻の場合はIDの降順（後から登録したものが先）に並べる。
func (r *PostgresTrackRepo) ListNewestFirst(ctx context.Context) ([]model.Track, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, name, url, pathname, user_id, created_at
		 FROM tracks
		 ORDER BY created_at DESC NULLS LAST, id DESC`,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list tracks: %w", err)
	}
	defer rows.Close()

	tracks := make([]model.Track, 0)
	for rows.Next() {
		var t model.Track
		var pathname, userID sql.NullString
		var createdAt sql.NullTime

		if err := rows.Scan(&t.ID, &t.Name, &t.URL, &pathname, &userID, &createdAt); err != nil {
			return nil, fmt.Errorf("failed to scan track: %w", err)
		}

		t.Pathname = nullStringValue(pathname)
		t.UserID = nullStringValue(userID)
		if createdAt.Valid {
			ts := createdAt.Time
			t.CreatedAt = &ts
		}
		tracks = append(tracks, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate tracks: %w", err)
	}

	return tracks, nil
}

// compile-time interface check
var _ TrackRepository = (*PostgresTrackRepo)(nil)
