package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"leitstelle/api/internal/config"

	"github.com/MicahParks/keyfunc/v3"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
)

// contextKey is a private type for context keys to avoid collisions.
type contextKey string

const (
	// UserContextKey is the context key for storing user claims.
	UserContextKey contextKey = "user"
)

// UserClaims are the JWT claims issued by the identity provider. The subject is the player id.
type UserClaims struct {
	jwt.RegisteredClaims
	Email             string `json:"email"`
	PreferredUsername string `json:"preferred_username"`
	UserMetadata      struct {
		Username string `json:"username"`
	} `json:"user_metadata"`
}

// UserID parses the subject claim.
func (c *UserClaims) UserID() (uuid.UUID, error) {
	return uuid.Parse(c.Subject)
}

// DisplayName picks the best available name for a new profile.
func (c *UserClaims) DisplayName() string {
	switch {
	case c.UserMetadata.Username != "":
		return c.UserMetadata.Username
	case c.PreferredUsername != "":
		return c.PreferredUsername
	case c.Email != "":
		name, _, _ := strings.Cut(c.Email, "@")
		return name
	}
	return "Disponent"
}

// AuthMiddleware validates bearer tokens either with a shared HS256 secret or against a JWKS endpoint.
type AuthMiddleware struct {
	keyfunc  jwt.Keyfunc
	options  []jwt.ParserOption
	cancelFn context.CancelFunc
	log      zerolog.Logger
}

// NewAuthMiddleware creates the middleware. A JWKS URL takes precedence over the secret.
func NewAuthMiddleware(ctx context.Context, cfg config.AuthConfig, log zerolog.Logger) (*AuthMiddleware, error) {
	a := &AuthMiddleware{
		options: []jwt.ParserOption{
			jwt.WithExpirationRequired(),
			jwt.WithLeeway(5 * time.Second),
		},
		log: log,
	}
	if cfg.Issuer != "" {
		a.options = append(a.options, jwt.WithIssuer(cfg.Issuer))
	}
	if cfg.Audience != "" {
		a.options = append(a.options, jwt.WithAudience(cfg.Audience))
	}

	switch {
	case cfg.JWKSURL != "":
		// Create a cancellable context for JWKS refresh goroutine
		jwksCtx, cancelFn := context.WithCancel(ctx)
		jwks, err := keyfunc.NewDefaultCtx(jwksCtx, []string{cfg.JWKSURL})
		if err != nil {
			cancelFn()
			return nil, fmt.Errorf("failed to create JWKS from %s: %w", cfg.JWKSURL, err)
		}
		a.keyfunc = jwks.Keyfunc
		a.cancelFn = cancelFn
		log.Info().Str("jwks_url", cfg.JWKSURL).Msg("JWT authentication via JWKS initialized")
	case cfg.Secret != "":
		secret := []byte(cfg.Secret)
		a.keyfunc = func(t *jwt.Token) (interface{}, error) {
			return secret, nil
		}
		a.options = append(a.options, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
		log.Info().Msg("JWT authentication via shared secret initialized")
	default:
		return nil, errors.New("no JWT secret or JWKS URL configured")
	}

	return a, nil
}

// Close releases resources used by the auth middleware.
func (a *AuthMiddleware) Close() {
	if a.cancelFn != nil {
		a.cancelFn()
	}
}

// Middleware returns an HTTP middleware that validates JWT tokens.
func (a *AuthMiddleware) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		claims, err := a.extractAndValidateToken(r)
		if err != nil {
			a.log.Debug().Err(err).Str("path", r.URL.Path).Msg("authentication failed")
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
			return
		}
		if _, err := claims.UserID(); err != nil {
			a.log.Debug().Str("sub", claims.Subject).Msg("subject is not a user id")
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
			return
		}

		ctx := context.WithValue(r.Context(), UserContextKey, claims)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// extractAndValidateToken reads the bearer token. Browsers cannot set headers
// on websocket upgrades, so those may pass it as the access_token query parameter.
func (a *AuthMiddleware) extractAndValidateToken(r *http.Request) (*UserClaims, error) {
	tokenString := ""
	if authHeader := r.Header.Get("Authorization"); authHeader != "" {
		parts := strings.Split(authHeader, " ")
		if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
			return nil, fmt.Errorf("invalid Authorization header format")
		}
		tokenString = parts[1]
	} else if websocket.IsWebSocketUpgrade(r) {
		tokenString = r.URL.Query().Get("access_token")
	}
	if tokenString == "" {
		return nil, fmt.Errorf("missing bearer token")
	}

	token, err := jwt.ParseWithClaims(tokenString, &UserClaims{}, a.keyfunc, a.options...)
	if err != nil {
		return nil, fmt.Errorf("invalid token: %w", err)
	}
	if !token.Valid {
		return nil, fmt.Errorf("token is not valid")
	}

	claims, ok := token.Claims.(*UserClaims)
	if !ok {
		return nil, fmt.Errorf("failed to extract claims")
	}
	return claims, nil
}

// GetUserFromContext retrieves the user claims from the request context.
func GetUserFromContext(ctx context.Context) (*UserClaims, bool) {
	claims, ok := ctx.Value(UserContextKey).(*UserClaims)
	return claims, ok
}

// userID returns the authenticated player id. The auth middleware guarantees it parses.
func userID(r *http.Request) uuid.UUID {
	claims, ok := GetUserFromContext(r.Context())
	if !ok {
		return uuid.Nil
	}
	id, _ := claims.UserID()
	return id
}

// profileMiddleware creates the player's profile on first contact.
func (s *Server) profileMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		claims, ok := GetUserFromContext(r.Context())
		if !ok {
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
			return
		}
		if _, err := s.game.EnsureProfile(r.Context(), userID(r), claims.DisplayName()); err != nil {
			s.log.Error().Err(err).Str("user_id", claims.Subject).Msg("ensure profile")
			s.writeError(w, http.StatusInternalServerError, "failed to load profile", nil)
			return
		}
		next.ServeHTTP(w, r)
	})
}
