package middleware

import (
	"errors"
	"net/http"
	"net/url"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/rs/zerolog"

	"github.com/CRMWizAI/sora2api/internal/config"
)

const UserIDKey = "user_id"

// AuthMiddleware verifies a Supabase access token (HS256, signed with the
// project JWT secret) and stores its subject under UserIDKey.
func AuthMiddleware(cfg *config.Config) gin.HandlerFunc {
	secret := []byte(cfg.SupabaseJWTSecret)

	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			unauthorized(c, "missing authorization header", "")
			return
		}

		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
			unauthorized(c, "invalid authorization header format", "")
			return
		}

		tokenString := strings.TrimSpace(parts[1])
		if tokenString == "" {
			unauthorized(c, "empty token", "")
			return
		}

		// Some clients URL-encode the token.
		if decoded, err := url.QueryUnescape(tokenString); err == nil {
			tokenString = decoded
		}

		claims := jwt.MapClaims{}
		token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
			if len(secret) == 0 {
				return nil, jwt.ErrSignatureInvalid
			}
			return secret, nil
		}, jwt.WithValidMethods([]string{"HS256"}))
		if err != nil || !token.Valid {
			unauthorized(c, "invalid token", tokenErrorMessage(err))
			return
		}

		sub, err := claims.GetSubject()
		if err != nil || sub == "" {
			unauthorized(c, "missing user id in token", "")
			return
		}

		c.Set(UserIDKey, sub)

		ctx := c.Request.Context()
		l := zerolog.Ctx(ctx).With().Str("user_id", sub).Logger()
		c.Request = c.Request.WithContext(l.WithContext(ctx))

		c.Next()
	}
}

// UserID returns the authenticated user, or "" outside AuthMiddleware.
func UserID(c *gin.Context) string {
	if v, ok := c.Get(UserIDKey); ok {
		if s, ok := v.(string); ok {
			return s
		}
	}
	return ""
}

func tokenErrorMessage(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, jwt.ErrTokenExpired):
		return "token has expired"
	case errors.Is(err, jwt.ErrTokenSignatureInvalid):
		return "token signature is invalid"
	case errors.Is(err, jwt.ErrTokenMalformed):
		return "token is malformed"
	case errors.Is(err, jwt.ErrTokenUnverifiable):
		return "token algorithm must be HS256"
	default:
		return err.Error()
	}
}

func unauthorized(c *gin.Context, msg, detail string) {
	body := gin.H{"error": msg}
	if detail != "" {
		body["message"] = detail
	}
	if rid := RequestIDFrom(c); rid != "" {
		body["request_id"] = rid
	}
	c.AbortWithStatusJSON(http.StatusUnauthorized, body)
}
