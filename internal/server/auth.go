package server

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"path"
	"strings"

	"github.com/danielgtaylor/huma/v2"
	"github.com/golang-jwt/jwt/v5"
)

// AuthConfig holds the two trigger secrets. ServiceToken guards the manual
// POST trigger and doubles as the HS256 signing secret for service-issued
// JWTs; CronSecret guards the scheduler GET trigger. An empty secret disables
// its surface.
type AuthConfig struct {
	ServiceToken string
	CronSecret   string
	Logger       *log.Logger
}

// Principal identifies which trigger surface authenticated the request.
type Principal struct {
	ActorID string
	Source  string // "service", "scheduler", or "jwt"
}

type principalKey struct{}

func withPrincipal(ctx context.Context, p Principal) context.Context {
	return context.WithValue(ctx, principalKey{}, p)
}

func principalFromContext(ctx context.Context) (Principal, bool) {
	p, ok := ctx.Value(principalKey{}).(Principal)
	return p, ok
}

func requireSource(ctx context.Context, sources ...string) huma.StatusError {
	p, ok := principalFromContext(ctx)
	if !ok {
		return newAPIError(http.StatusUnauthorized, "unauthorized", "authentication required", nil)
	}
	for _, s := range sources {
		if p.Source == s {
			return nil
		}
	}
	return newAPIError(http.StatusForbidden, "forbidden", "token not valid for this trigger", map[string]any{"source": p.Source})
}

func bearerToken(authz string) (string, bool) {
	parts := strings.Fields(authz)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") {
		return "", false
	}
	return parts[1], true
}

func tokenEqual(token, secret string) bool {
	if secret == "" {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(token), []byte(secret)) == 1
}

type jwtClaims struct {
	jwt.RegisteredClaims
}

func authenticateJWT(token, secret string) (Principal, error) {
	if strings.TrimSpace(secret) == "" {
		return Principal{}, errors.New("jwt secret not configured")
	}
	parser := jwt.NewParser(jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	claims := &jwtClaims{}
	parsed, err := parser.ParseWithClaims(token, claims, func(t *jwt.Token) (any, error) {
		return []byte(secret), nil
	})
	if err != nil {
		return Principal{}, err
	}
	if !parsed.Valid {
		return Principal{}, errors.New("invalid token")
	}
	if claims.Subject == "" {
		return Principal{}, errors.New("subject claim required")
	}
	return Principal{ActorID: claims.Subject, Source: "jwt"}, nil
}

func newAuthMiddleware(basePath string, cfg AuthConfig) func(http.Handler) http.Handler {
	healthPath := path.Join(basePath, "health")
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			if basePath != "" && !strings.HasPrefix(req.URL.Path, basePath) {
				next.ServeHTTP(w, req)
				return
			}
			if req.URL.Path == healthPath {
				next.ServeHTTP(w, req)
				return
			}

			authz := strings.TrimSpace(req.Header.Get("Authorization"))
			if authz == "" {
				respondStatusError(w, newAPIError(http.StatusUnauthorized, "unauthorized", "authentication required", nil))
				return
			}
			token, ok := bearerToken(authz)
			if !ok {
				respondStatusError(w, newAPIError(http.StatusUnauthorized, "invalid_credentials", "invalid credentials", nil))
				return
			}

			var principal Principal
			switch {
			case tokenEqual(token, cfg.ServiceToken):
				principal = Principal{ActorID: "service-bot", Source: "service"}
			case tokenEqual(token, cfg.CronSecret):
				principal = Principal{ActorID: "scheduler", Source: "scheduler"}
			default:
				p, err := authenticateJWT(token, cfg.ServiceToken)
				if err != nil {
					if cfg.Logger != nil {
						cfg.Logger.Printf("auth: rejected bearer token for %s %s: %v", req.Method, req.URL.Path, err)
					}
					respondStatusError(w, newAPIError(http.StatusUnauthorized, "invalid_credentials", "invalid credentials", nil))
					return
				}
				principal = p
			}
			next.ServeHTTP(w, req.WithContext(withPrincipal(req.Context(), principal)))
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
