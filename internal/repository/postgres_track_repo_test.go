package repository

import (
	"context"
	"testing"
	"time"

	"github.com/hitoshi/trackbox/internal/model"
)

func TestPostgresTrackRepo_ImplementsInterface(t *testing.T) {
	var _ TrackRepository = (*PostgresTrackRepo)(nil)
}

func TestPostgresTrackRepo_Create_ReturnsIDAndCreatedAt(t *testing.T) {
	db := setupTestDB(t)
	repo := NewPostgresTrackRepo(db)

	track, err := repo.Create(context.Background(), &model.NewTrack{
		Name:     "song.mp3",
		URL:      "https://store.public.blob.vercel-storage.com/song.mp3",
		Pathname: "song.mp3",
		UserID:   "user-1",
	})
	if err != nil {
		t.Fatalf("Create returned error: %v", err)
	}
	if track.ID == 0 {
		t.Error("expected generated ID")
	}
	if track.CreatedAt == nil {
		t.Error("expected created_at to be set by default")
	}
	if track.Name != "song.mp3" || track.Pathname != "song.mp3" || track.UserID != "user-1" {
		t.Errorf("track = %+v", track)
	}
}

func TestPostgresTrackRepo_Create_EmptyOptionalFieldsStoredAsNull(t *testing.T) {
	db := setupTestDB(t)
	repo := NewPostgresTrackRepo(db)

	if _, err := repo.Create(context.Background(), &model.NewTrack{
		Name: "anon.mp3",
		URL:  "https://blob.example.com/anon.mp3",
	}); err != nil {
		t.Fatalf("Create returned error: %v", err)
	}

	var nulls int
	if err := db.QueryRow(`SELECT count(*) FROM tracks WHERE pathname IS NULL AND user_id IS NULL`).Scan(&nulls); err != nil {
		t.Fatalf("確認クエリに失敗: %v", err)
	}
	if nulls != 1 {
		t.Errorf("NULL行数 = %d, want 1", nulls)
	}
}

func TestPostgresTrackRepo_ListNewestFirst_Order(t *testing.T) {
	db := setupTestDB(t)
	repo := NewPostgresTrackRepo(db)

	base := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	_, err := db.Exec(`
		INSERT INTO tracks (name, url, created_at) VALUES
			('old.mp3', 'https://b/old.mp3', $1),
			('new.mp3', 'https://b/new.mp3', $2),
			('undated.mp3', 'https://b/undated.mp3', NULL),
			('mid.mp3', 'https://b/mid.mp3', $3)`,
		base, base.Add(2*time.Hour), base.Add(time.Hour),
	)
	if err != nil {
		t.Fatalf("テストデータの投入に失敗: %v", err)
	}

	tracks, err := repo.ListNewestFirst(context.Background())
	if err != nil {
		t.Fatalf("ListNewestFirst returned error: %v", err)
	}

	want := []string{"new.mp3", "mid.mp3", "old.mp3", "undated.mp3"}
	if len(tracks) != len(want) {
		t.Fatalf("len(tracks) = %d, want %d", len(tracks), len(want))
	}
	for i, name := range want {
		if tracks[i].Name != name {
			t.Errorf("tracks[%d].Name = %q, want %q", i, tracks[i].Name, name)
		}
	}
	if tracks[3].CreatedAt != nil {
		t.Error("undated track should have nil CreatedAt")
	}
}

func TestPostgresTrackRepo_ListNewestFirst_Empty(t *testing.T) {
	db := setupTestDB(t)
	repo := NewPostgresTrackRepo(db)

	tracks, err := repo.ListNewestFirst(context.Background())
	if err != nil {
		t.Fatalf("ListNewestFirst returned error: %v", err)
	}
	if tracks == nil || len(tracks) != 0 {
		t.Errorf("tracks = %v, want empty non-nil slice", tracks)
	}
}
