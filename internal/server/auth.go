package server

import (
	"context"
	"encoding/json"
	"net/http"
	"path"
	"strings"

	"github.com/danielgtaylor/huma/v2"

	"riverwatch/internal/engine/gate"
)

// newGateMiddleware enforces the admin session cookie on the admin
// surface and on report deletion. The login and logout endpoints stay
// open so a session can be established or dropped without one.
func newGateMiddleware(basePath string, g *gate.Gate) func(http.Handler) http.Handler {
	adminPrefix := path.Join(basePath, "admin") + "/"
	loginPath := path.Join(basePath, "admin/auth")
	logoutPath := path.Join(basePath, "admin/auth/logout")
	reportsPrefix := path.Join(basePath, "reports") + "/"
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			p := req.URL.Path
			if p == loginPath || p == logoutPath {
				next.ServeHTTP(w, req)
				return
			}
			gated := strings.HasPrefix(p, adminPrefix) ||
				(req.Method == http.MethodDelete && strings.HasPrefix(p, reportsPrefix))
			if !gated {
				next.ServeHTTP(w, req)
				return
			}
			cookie, err := req.Cookie(gate.CookieName)
			if err != nil || g.VerifyToken(cookie.Value) != nil {
				respondStatusError(w, newAPIError(http.StatusUnauthorized, "unauthorized", "admin session required", nil))
				return
			}
			next.ServeHTTP(w, req)
		})
	}
}

func respondStatusError(w http.ResponseWriter, err huma.StatusError) {
	status := http.StatusInternalServerError
	if e, ok := err.(interface{ GetStatus() int }); ok {
		status = e.GetStatus()
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(err)
}

func registerAdminAuth(api huma.API, g *gate.Gate) {
	type sessionBody struct {
		Authenticated bool `json:"authenticated"`
	}
	huma.Register(api, huma.Operation{
		OperationID: "admin-login",
		Method:      http.MethodPost,
		Path:        "/admin/auth",
		Summary:     "Start an admin session",
		Errors:      []int{http.StatusBadRequest, http.StatusUnauthorized},
	}, func(ctx context.Context, input *struct {
		Body AdminLoginRequest `json:"body"`
	}) (*struct {
		SetCookie http.Cookie `header:"Set-Cookie"`
		Body      sessionBody `json:"body"`
	}, error) {
		if len(bodyBytes(ctx)) == 0 {
			return nil, newAPIError(http.StatusBadRequest, "bad_request", "body required", nil)
		}
		if input.Body.Password == "" {
			return nil, newAPIError(http.StatusBadRequest, "bad_request", "password is required", nil)
		}
		if err := g.CheckPassword(input.Body.Password); err != nil {
			return nil, handleError(err)
		}
		token, err := g.IssueToken()
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			SetCookie http.Cookie `header:"Set-Cookie"`
			Body      sessionBody `json:"body"`
		}{
			SetCookie: *gate.SessionCookie(token),
			Body:      sessionBody{Authenticated: true},
		}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "admin-logout",
		Method:      http.MethodPost,
		Path:        "/admin/auth/logout",
		Summary:     "End the admin session",
	}, func(ctx context.Context, _ *struct{}) (*struct {
		SetCookie http.Cookie `header:"Set-Cookie"`
		Body      sessionBody `json:"body"`
	}, error) {
		return &struct {
			SetCookie http.Cookie `header:"Set-Cookie"`
			Body      sessionBody `json:"body"`
		}{
			SetCookie: *gate.ExpiredCookie(),
			Body:      sessionBody{Authenticated: false},
		}, nil
	})
}
