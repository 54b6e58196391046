package middleware

import (
	"context"
	"errors"
	"net/http"
	"strings"

	speakauth "github.com/speaksim/speakauth"
)

type authResultContextKey struct{}

func AuthResultFromContext(ctx context.Context) (*speakauth.AuthResult, bool) {
	res, ok := ctx.Value(authResultContextKey{}).(*speakauth.AuthResult)
	return res, ok
}

func Guard(engine *speakauth.Engine) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if engine == nil {
				http.Error(w, "unauthorized", http.StatusUnauthorized)
				return
			}

			token, ok := bearerToken(r.Header.Get("Authorization"))
			if !ok {
				http.Error(w, "unauthorized", http.StatusUnauthorized)
				return
			}

			res, err := engine.Validate(r.Context(), token)
			if err != nil {
				switch {
				case errors.Is(err, speakauth.ErrStorageUnavailable):
					http.Error(w, "service unavailable", http.StatusServiceUnavailable)
				case errors.Is(err, speakauth.ErrValidateRateLimited):
					http.Error(w, "too many requests", http.StatusTooManyRequests)
				default:
					http.Error(w, "unauthorized", http.StatusUnauthorized)
				}
				return
			}

			ctx := context.WithValue(r.Context(), authResultContextKey{}, res)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func bearerToken(value string) (string, bool) {
	const bearer = "Bearer "
	if !strings.HasPrefix(value, bearer) {
		return "", false
	}

	token := value[len(bearer):]
	if token == "" {
		return "", false
	}

	return token, true
}
