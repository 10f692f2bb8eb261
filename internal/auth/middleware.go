package auth

import (
	"context"
	"log/slog"
	"net"
	"net/http"
	"strings"
)

type contextKey int

const (
	ctxUserID contextKey = iota
	ctxRemoteIP
)

// RequestUserID returns the authenticated user ID from the context, or "".
func RequestUserID(ctx context.Context) string {
	v, _ := ctx.Value(ctxUserID).(string)
	return v
}

// RequestRemoteIP returns the client IP from the context, or "".
func RequestRemoteIP(ctx context.Context) string {
	v, _ := ctx.Value(ctxRemoteIP).(string)
	return v
}

const (
	// RFC 6750 Section 3.1: no error attribute when no token was provided.
	wwwAuthNoToken = `Bearer realm="settings-sync"`
	wwwAuthInvalid = `Bearer realm="settings-sync", error="invalid_token"`
)

// Middleware returns HTTP middleware that requires a configured API key
// as a Bearer token. The key's user and the client IP are added to the
// request context for the tool call log.
func Middleware(keys *KeyStore, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ip := clientIP(r)

			token, ok := bearerToken(r)
			if !ok {
				logger.Debug("request without api key", slog.String("ip", ip), slog.String("path", r.URL.Path))
				unauthorized(w, wwwAuthNoToken)

				return
			}

			user := keys.Validate(token)
			if user == "" {
				logger.Warn("request with unknown api key", slog.String("ip", ip), slog.String("path", r.URL.Path))
				unauthorized(w, wwwAuthInvalid)

				return
			}

			ctx := context.WithValue(r.Context(), ctxUserID, user)
			ctx = context.WithValue(ctx, ctxRemoteIP, ip)

			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func bearerToken(r *http.Request) (string, bool) {
	token, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
	if !ok || token == "" {
		return "", false
	}

	return token, true
}

func clientIP(r *http.Request) string {
	ip, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}

	return ip
}

func unauthorized(w http.ResponseWriter, challenge string) {
	w.Header().Set("WWW-Authenticate", challenge)
	w.WriteHeader(http.StatusUnauthorized)
}
