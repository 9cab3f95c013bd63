package handler

import (
	"encoding/json"
	"log/slog"
	"mime"
	"net/http"
	"strings"

	"github.com/hitoshi/trackbox/internal/model"
)

// actionResult はフォームアクションのJSONレスポンス。
// ブラウザのprogressive enhancementから扱えるよう、type/status/dataの形で返す。
type actionResult struct {
	Type   string `json:"type"`
	Status int    `json:"status"`
	Data   any    `json:"data,omitempty"`
}

// writeJSON はJSONレスポンスを書き込む。
func writeJSON(w http.ResponseWriter, statusCode int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("failed to encode response", slog.String("error", err.Error()))
	}
}

// writeActionResult はアクション結果をJSONで書き込む。failureがnilの場合は成功を返す。
func writeActionResult(w http.ResponseWriter, failure *model.ActionFailure) {
	if failure == nil {
		writeJSON(w, http.StatusOK, actionResult{
			Type:   "success",
			Status: http.StatusOK,
			Data:   map[string]bool{"success": true},
		})
		return
	}

	writeJSON(w, failure.Status, actionResult{
		Type:   "failure",
		Status: failure.Status,
		Data:   map[string]string{"message": failure.Message},
	})
}

// wantsJSON はクライアントがアクション結果をJSONで要求しているかを判定する。
func wantsJSON(r *http.Request) bool {
	if r.Header.Get("x-sveltekit-action") == "true" {
		return true
	}
	for _, part := range strings.Split(r.Header.Get("Accept"), ",") {
		mediaType, _, err := mime.ParseMediaType(strings.TrimSpace(part))
		if err == nil && mediaType == "application/json" {
			return true
		}
	}
	return false
}
