package handler

import (
	"net/http"
	"time"

	"github.com/hitoshi/trackbox/internal/middleware"
)

// sessionResponse は現在のセッション情報のレスポンス。
type sessionResponse struct {
	Session *sessionBody `json:"session"`
	User    *userBody    `json:"user"`
	Source  string       `json:"source"`
}

type sessionBody struct {
	ID        string    `json:"id"`
	UserID    string    `json:"userId"`
	ExpiresAt time.Time `json:"expiresAt"`
}

type userBody struct {
	ID    string  `json:"id"`
	Email string  `json:"email"`
	Name  *string `json:"name"`
}

// Session はリクエストに対して解決されたセッションとユーザーを返す。
// 未認証の場合はsessionとuserがnullになる。
// GET /api/session
func Session(w http.ResponseWriter, r *http.Request) {
	res := middleware.ResolutionFromContext(r.Context())

	resp := sessionResponse{Source: string(res.Source)}
	if res.Authenticated() {
		resp.Session = &sessionBody{
			ID:        res.Session.ID,
			UserID:    res.Session.UserID,
			ExpiresAt: res.Session.ExpiresAt,
		}
		resp.User = &userBody{
			ID:    res.User.ID,
			Email: res.User.Email,
		}
		if res.User.Name != "" {
			name := res.User.Name
			resp.User.Name = &name
		}
	}

	writeJSON(w, http.StatusOK, resp)
}
