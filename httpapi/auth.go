package httpapi

import (
	"context"
	"errors"
	"net/http"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/hlog"

	"github.com/unkn0wn-root/shopcache"
	"github.com/unkn0wn-root/shopcache/model"
)

type callerKey struct{}

// identify resolves X-User-ID to a user. Unknown ids are anonymous.
func (s *Server) identify(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get(UserHeader)
		if id == "" {
			next.ServeHTTP(w, r)
			return
		}
		u, err := s.svc.GetUser(r.Context(), id)
		switch {
		case errors.Is(err, shopcache.ErrNotFound):
		case err != nil:
			writeError(w, r, err)
			return
		default:
			hlog.FromRequest(r).UpdateContext(func(c zerolog.Context) zerolog.Context {
				return c.Str("user", u.ID)
			})
			r = r.WithContext(context.WithValue(r.Context(), callerKey{}, u))
		}
		next.ServeHTTP(w, r)
	})
}

func caller(r *http.Request) *model.User {
	u, _ := r.Context().Value(callerKey{}).(*model.User)
	return u
}

type authedHandler func(w http.ResponseWriter, r *http.Request, u *model.User)

func (s *Server) user(h authedHandler) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		u := caller(r)
		if u == nil {
			writeError(w, r, errUnauthorized)
			return
		}
		h(w, r, u)
	}
}

func (s *Server) admin(h authedHandler) http.HandlerFunc {
	return s.user(func(w http.ResponseWriter, r *http.Request, u *model.User) {
		if !u.IsAdmin {
			writeError(w, r, errForbidden)
			return
		}
		h(w, r, u)
	})
}
