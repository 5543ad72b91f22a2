package server

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/54b3r/helpdesk-rag/internal/access"
	"github.com/54b3r/helpdesk-rag/internal/logging"
)

type roleKey struct{}

// withRole stores the caller's role on ctx.
func withRole(ctx context.Context, role access.Role) context.Context {
	return context.WithValue(ctx, roleKey{}, role)
}

// roleFromContext returns the caller's role, or anonymous if none was set.
func roleFromContext(ctx context.Context) access.Role {
	if r, ok := ctx.Value(roleKey{}).(access.Role); ok {
		return r
	}
	return access.RoleAnonymous
}

// authMiddleware resolves the caller's role from an API key and stores it on
// the request context.
//
// The key is read from either header:
//
//	Authorization: Bearer <key>
//	X-API-Key: <key>
//
// A request without a key proceeds as anonymous. A key that is not in keys
// receives 401 Unauthorized with a WWW-Authenticate: Bearer challenge. The
// key value is never logged.
func authMiddleware(keys map[string]access.Role, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := apiKey(r)
		if token == "" {
			next.ServeHTTP(w, r.WithContext(withRole(r.Context(), access.RoleAnonymous)))
			return
		}

		role, ok := keys[token]
		if !ok {
			logging.FromContext(r.Context()).Warn("auth: invalid token",
				slog.String("path", r.URL.Path),
				slog.Bool("token_present", true),
			)
			w.Header().Set("WWW-Authenticate", `Bearer realm="helpdesk" error="invalid_token"`)
			writeError(w, r, http.StatusUnauthorized, "invalid API key")
			return
		}

		ctx := withRole(r.Context(), role)
		ctx = logging.WithLogger(ctx, logging.FromContext(ctx).With(slog.String("role", role.String())))
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// apiKey returns the bearer token, falling back to X-API-Key.
func apiKey(r *http.Request) string {
	if t := bearerToken(r); t != "" {
		return t
	}
	return strings.TrimSpace(r.Header.Get("X-API-Key"))
}

// bearerToken extracts the token from an "Authorization: Bearer <token>"
// header. Returns an empty string if the header is absent or malformed.
func bearerToken(r *http.Request) string {
	hdr := r.Header.Get("Authorization")
	if hdr == "" {
		return ""
	}
	parts := strings.SplitN(hdr, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") {
		return ""
	}
	return strings.TrimSpace(parts[1])
}

// ParseRoleKeys parses "key:role,key:role" into a key → role map. Unknown
// roles and malformed entries are errors.
func ParseRoleKeys(s string) (map[string]access.Role, error) {
	keys := make(map[string]access.Role)
	for _, entry := range strings.Split(s, ",") {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			continue
		}
		i := strings.LastIndex(entry, ":")
		if i <= 0 || i == len(entry)-1 {
			// The entry holds a secret, so it is not echoed.
			return nil, errors.New("server: malformed API key entry, want key:role")
		}
		role, err := access.ParseRole(entry[i+1:])
		if err != nil {
			return nil, err
		}
		keys[strings.TrimSpace(entry[:i])] = role
	}
	return keys, nil
}
