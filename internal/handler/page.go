package handler

import (
	"bytes"
	"embed"
	"html/template"
	"log/slog"
	"net/http"
	"time"

	"github.com/hitoshi/trackbox/internal/model"
	"github.com/hitoshi/trackbox/internal/track"
)

//go:embed templates/*.html
var templateFS embed.FS

// pageData はライブラリ画面のテンプレートに渡すデータ。
type pageData struct {
	Library track.Library
	User    *model.User
	Form    *formState
}

// formState はアップロードアクション失敗時にフォームへ表示する内容。
type formState struct {
	Message string
}

// pageRenderer はライブラリ画面のHTMLを描画する。
type pageRenderer struct {
	tmpl *template.Template
}

func newPageRenderer() *pageRenderer {
	tmpl := template.Must(template.New("library.html").Funcs(template.FuncMap{
		"formatTime": formatTime,
	}).ParseFS(templateFS, "templates/library.html"))
	return &pageRenderer{tmpl: tmpl}
}

// render はテンプレートをバッファに描画してから書き込む。
// 描画に失敗した場合は途中までのHTMLを返さず500を返す。
func (p *pageRenderer) render(w http.ResponseWriter, statusCode int, data pageData) {
	var buf bytes.Buffer
	if err := p.tmpl.Execute(&buf, data); err != nil {
		slog.Error("failed to render page", slog.String("error", err.Error()))
		http.Error(w, "internal server error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(statusCode)
	buf.WriteTo(w)
}

func formatTime(t *time.Time) string {
	if t == nil {
		return ""
	}
	return t.Local().Format("2006-01-02 15:04")
}
