package handler

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/hitoshi/trackbox/internal/metrics"
	"github.com/hitoshi/trackbox/internal/middleware"
	"github.com/hitoshi/trackbox/internal/model"
	"github.com/hitoshi/trackbox/internal/track"
)

const (
	// uploadFieldName はアップロードフォームのファイルフィールド名。
	uploadFieldName = "audio"
	// multipartMemory はマルチパート解析時にメモリへ保持する最大バイト数。超過分は一時ファイルに書き出す。
	multipartMemory = 10 << 20
	// multipartOverhead はファイル本体以外のマルチパートヘッダー分の余裕。
	multipartOverhead = 64 << 10
)

// TrackServiceInterface はトラックハンドラーが必要とするサービスインターフェース。
type TrackServiceInterface interface {
	// Upload はファイルを検証して保存し、トラックを登録する。成功時はnilを返す。
	Upload(ctx context.Context, file *model.UploadFile, userID string) *model.ActionFailure
	// Library は全トラックを新しい順で返す。失敗時も空のリストとメッセージを返す。
	Library(ctx context.Context) track.Library
}

// TrackHandler はライブラリ画面とアップロードアクションのHTTPハンドラー。
type TrackHandler struct {
	service        TrackServiceInterface
	page           *pageRenderer
	metrics        metrics.MetricsCollector
	maxUploadBytes int64
}

// NewTrackHandler はTrackHandlerを生成する。
func NewTrackHandler(service TrackServiceInterface, collector metrics.MetricsCollector, maxUploadBytes int64) *TrackHandler {
	return &TrackHandler{
		service:        service,
		page:           newPageRenderer(),
		metrics:        collector,
		maxUploadBytes: maxUploadBytes,
	}
}

// trackResponse はトラック一覧APIのレスポンス要素。
type trackResponse struct {
	ID        int64   `json:"id"`
	Name      string  `json:"name"`
	URL       string  `json:"url"`
	Pathname  *string `json:"pathname"`
	CreatedAt *string `json:"createdAt"`
}

// libraryResponse はトラック一覧APIのレスポンス。
type libraryResponse struct {
	Tracks []trackResponse `json:"tracks"`
	Error  string          `json:"error,omitempty"`
}

// Page はライブラリ画面を表示する。
// GET /
func (h *TrackHandler) Page(w http.ResponseWriter, r *http.Request) {
	lib := h.service.Library(r.Context())
	h.page.render(w, http.StatusOK, pageData{
		Library: lib,
		User:    middleware.ResolutionFromContext(r.Context()).User,
	})
}

// SubmitForm はアップロードフォームのアクションを処理する。
// POST /
// JSONを要求するクライアントにはアクション結果を返す。
// それ以外は成功時に/へリダイレクトし、失敗時はメッセージ付きで画面を再表示する。
func (h *TrackHandler) SubmitForm(w http.ResponseWriter, r *http.Request) {
	failure := h.upload(w, r)

	if wantsJSON(r) {
		writeActionResult(w, failure)
		return
	}

	if failure == nil {
		http.Redirect(w, r, "/", http.StatusSeeOther)
		return
	}

	h.page.render(w, failure.Status, pageData{
		Library: h.service.Library(r.Context()),
		User:    middleware.ResolutionFromContext(r.Context()).User,
		Form:    &formState{Message: failure.Message},
	})
}

// Upload はアップロードを処理し、常にJSONでアクション結果を返す。
// POST /api/tracks
func (h *TrackHandler) Upload(w http.ResponseWriter, r *http.Request) {
	writeActionResult(w, h.upload(w, r))
}

// ListTracks はトラック一覧をJSONで返す。
// GET /api/tracks
func (h *TrackHandler) ListTracks(w http.ResponseWriter, r *http.Request) {
	lib := h.service.Library(r.Context())

	resp := libraryResponse{
		Tracks: make([]trackResponse, len(lib.Tracks)),
		Error:  lib.Error,
	}
	for i, t := range lib.Tracks {
		resp.Tracks[i] = toTrackResponse(t)
	}

	writeJSON(w, http.StatusOK, resp)
}

// upload はマルチパートフォームからファイルを取り出してサービスに渡す。
func (h *TrackHandler) upload(w http.ResponseWriter, r *http.Request) *model.ActionFailure {
	limit := h.maxUploadBytes + multipartOverhead
	if r.ContentLength > limit {
		return h.tooLarge()
	}
	r.Body = http.MaxBytesReader(w, r.Body, limit)

	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			return h.tooLarge()
		}
		slog.Warn("failed to parse upload form", slog.String("error", err.Error()))
		return h.service.Upload(r.Context(), nil, "")
	}
	defer r.MultipartForm.RemoveAll()

	userID, _ := middleware.UserIDFromContext(r.Context())

	file, header, err := r.FormFile(uploadFieldName)
	if err != nil {
		// ファイルフィールドがない場合の判定はサービスに任せる
		return h.service.Upload(r.Context(), nil, userID)
	}
	defer file.Close()

	if header.Size > h.maxUploadBytes {
		return h.tooLarge()
	}

	data, err := io.ReadAll(file)
	if err != nil {
		slog.Error("failed to read uploaded file", slog.String("error", err.Error()))
		return &model.ActionFailure{Status: http.StatusInternalServerError, Message: model.MsgUploadFailed, Err: err}
	}

	return h.service.Upload(r.Context(), &model.UploadFile{
		Name:        header.Filename,
		ContentType: header.Header.Get("Content-Type"),
		Size:        header.Size,
		Data:        data,
	}, userID)
}

func (h *TrackHandler) tooLarge() *model.ActionFailure {
	h.metrics.RecordUpload(metrics.UploadTooLarge)
	return &model.ActionFailure{Status: http.StatusRequestEntityTooLarge, Message: model.MsgFileTooLarge}
}

func toTrackResponse(t model.Track) trackResponse {
	resp := trackResponse{
		ID:   t.ID,
		Name: t.Name,
		URL:  t.URL,
	}
	if t.Pathname != "" {
		p := t.Pathname
		resp.Pathname = &p
	}
	if t.CreatedAt != nil {
		s := t.CreatedAt.UTC().Format("2006-01-02T15:04:05.000Z07:00")
		resp.CreatedAt = &s
	}
	return resp
}
