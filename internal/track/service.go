// Package track は音声ファイルのアップロードとライブラリ取得のドメインロジックを提供する。
package track

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/hitoshi/trackbox/internal/blob"
	"github.com/hitoshi/trackbox/internal/metrics"
	"github.com/hitoshi/trackbox/internal/model"
	"github.com/hitoshi/trackbox/internal/repository"
)

// cleanupTimeout は登録失敗時のBlob削除に許容する時間。
// リクエストのコンテキストがキャンセルされていても削除を試みる。
const cleanupTimeout = 10 * time.Second

// Library はライブラリ画面の表示データを表す。
// 読み込みに失敗した場合、Tracksは空でErrorにユーザー向けメッセージが入る。
type Library struct {
	Tracks []model.Track
	Error  string
}

// Options はServiceの動作設定を表す。
type Options struct {
	AddRandomSuffix bool
}

// Service はトラック管理のサービス層。
type Service struct {
	trackRepo repository.TrackRepository
	store     blob.Store
	metrics   metrics.MetricsCollector
	logger    *slog.Logger
	opts      Options
}

// NewService はServiceの新しいインスタンスを生成する。
// storeがnilの場合はBlob Storage未設定として扱う。
func NewService(
	trackRepo repository.TrackRepository,
	store blob.Store,
	collector metrics.MetricsCollector,
	logger *slog.Logger,
	opts Options,
) *Service {
	return &Service{
		trackRepo: trackRepo,
		store:     store,
		metrics:   collector,
		logger:    logger,
		opts:      opts,
	}
}

// IsAudioFile は宣言されたメディアタイプまたはファイル名から音声ファイルかを判定する。
func IsAudioFile(name, contentType string) bool {
	return strings.HasPrefix(contentType, "audio/") || strings.HasSuffix(name, ".mp3")
}

// Upload はファイルを検証し、Blob Storageへ保存してトラックを登録する。
// 成功時はnilを返す。失敗はすべてActionFailureとして返し、panicやエラーの伝播はしない。
// userIDが空の場合は未認証アップロードとして登録する。
func (s *Service) Upload(ctx context.Context, file *model.UploadFile, userID string) *model.ActionFailure {
	if file == nil || file.Size <= 0 || len(file.Data) == 0 {
		s.metrics.RecordUpload(metrics.UploadInvalid)
		return &model.ActionFailure{Status: http.StatusBadRequest, Message: model.MsgNoFileUploaded}
	}

	if !IsAudioFile(file.Name, file.ContentType) {
		s.metrics.RecordUpload(metrics.UploadInvalid)
		return &model.ActionFailure{Status: http.StatusBadRequest, Message: model.MsgNotMP3}
	}

	if s.store == nil || !s.store.Configured() {
		s.metrics.RecordUpload(metrics.UploadNotConfigured)
		return &model.ActionFailure{Status: http.StatusInternalServerError, Message: model.MsgBlobNotConfigured}
	}

	start := time.Now()
	stored, err := s.store.Put(ctx, file.Name, file.Data, blob.PutOptions{
		ContentType:     blob.DetectContentType(file.ContentType, file.Data),
		AddRandomSuffix: s.opts.AddRandomSuffix,
	})
	s.metrics.RecordBlobLatency(time.Since(start))
	if err != nil {
		return s.uploadFailed(fmt.Errorf("failed to put blob: %w", err), file)
	}

	created, err := s.trackRepo.Create(ctx, &model.NewTrack{
		Name:     file.Name,
		URL:      stored.URL,
		Pathname: stored.Pathname,
		UserID:   userID,
	})
	if err != nil {
		s.deleteOrphan(ctx, stored.URL)
		return s.uploadFailed(fmt.Errorf("failed to insert track: %w", err), file)
	}

	s.metrics.RecordUpload(metrics.UploadSuccess)
	s.metrics.RecordUploadBytes(file.Size)
	s.logger.Info("track uploaded",
		slog.Int64("track_id", created.ID),
		slog.String("name", created.Name),
		slog.String("pathname", created.Pathname),
		slog.Int64("size", file.Size),
	)
	return nil
}

func (s *Service) uploadFailed(err error, file *model.UploadFile) *model.ActionFailure {
	s.metrics.RecordUpload(metrics.UploadFailed)
	s.logger.Error("upload failed",
		slog.String("name", file.Name),
		slog.String("error", err.Error()),
	)
	return &model.ActionFailure{Status: http.StatusInternalServerError, Message: model.MsgUploadFailed, Err: err}
}

// deleteOrphan は行の登録に失敗したBlobを削除する。
// 削除の失敗はログに記録するのみで、アップロード結果には影響しない。
func (s *Service) deleteOrphan(ctx context.Context, url string) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), cleanupTimeout)
	defer cancel()

	if err := s.store.Delete(ctx, url); err != nil {
		s.logger.Error("failed to delete orphaned blob",
			slog.String("url", url),
			slog.String("error", err.Error()),
		)
		return
	}
	s.logger.Warn("deleted orphaned blob after insert failure", slog.String("url", url))
}

// Library は全トラックを作成日時の新しい順で返す。
// 取得に失敗した場合はエラーを返さず、空のリストとユーザー向けメッセージを返す。
func (s *Service) Library(ctx context.Context) Library {
	tracks, err := s.trackRepo.ListNewestFirst(ctx)
	if err != nil {
		s.metrics.RecordLibraryLoad(false)
		s.logger.Error("failed to fetch tracks", slog.String("error", err.Error()))
		return Library{Tracks: []model.Track{}, Error: model.MsgLibraryLoadFailed}
	}

	s.metrics.RecordLibraryLoad(true)
	if tracks == nil {
		tracks = []model.Track{}
	}
	return Library{Tracks: tracks}
}
