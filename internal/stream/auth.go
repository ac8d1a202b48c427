package stream

import (
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v4"

	"github.com/franz/sonora/internal/apperr"
)

// identityContextKey is the gin context key the core reads identity
// from. Per spec.md §6, the core never parses tokens itself — it
// trusts whatever middleware ran before it to have populated this key.
// Sonorad ships a default JWT-based middleware below so the server is
// runnable standalone; a real deployment can replace it with whatever
// its Auth collaborator does (session cookies, an API gateway header,
// mutual TLS) without touching a single handler.
const identityContextKey = "sonora.identity"

// Identity is the already-validated caller the core acts on behalf of.
type Identity struct {
	UserID  int64
	IsAdmin bool
}

func identityFromContext(c *gin.Context) (Identity, bool) {
	v, ok := c.Get(identityContextKey)
	if !ok {
		return Identity{}, false
	}
	id, ok := v.(Identity)
	return id, ok
}

func setIdentity(c *gin.Context, id Identity) {
	c.Set(identityContextKey, id)
}

// JWTIdentity is the default Identity middleware: it expects
// `Authorization: Bearer <token>` signed with HS256 against secret,
// carrying `sub` (user id) and optional `admin` claims.
func JWTIdentity(secret string) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		token := strings.TrimPrefix(header, "Bearer ")
		if token == "" || token == header {
			writeError(c, apperr.New(apperr.KindUnauthorized, "missing bearer token"))
			c.Abort()
			return
		}

		claims := jwt.MapClaims{}
		parsed, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (interface{}, error) {
			if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, apperr.New(apperr.KindUnauthorized, "unexpected signing method")
			}
			return []byte(secret), nil
		})
		if err != nil || !parsed.Valid {
			writeError(c, apperr.New(apperr.KindUnauthorized, "invalid or expired token"))
			c.Abort()
			return
		}

		userID, err := subjectToUserID(claims["sub"])
		if err != nil {
			writeError(c, apperr.New(apperr.KindUnauthorized, "token missing subject"))
			c.Abort()
			return
		}

		isAdmin, _ := claims["admin"].(bool)
		setIdentity(c, Identity{UserID: userID, IsAdmin: isAdmin})
		c.Next()
	}
}

func subjectToUserID(sub interface{}) (int64, error) {
	switch v := sub.(type) {
	case string:
		return strconv.ParseInt(v, 10, 64)
	case float64:
		return int64(v), nil
	default:
		return 0, apperr.New(apperr.KindUnauthorized, "unrecognized subject claim")
	}
}

// requireAdmin gates the admin-only endpoints (spec.md §7: Forbidden/403).
func requireAdmin(c *gin.Context) bool {
	id, ok := identityFromContext(c)
	if !ok {
		writeError(c, apperr.New(apperr.KindUnauthorized, "authentication required"))
		return false
	}
	if !id.IsAdmin {
		writeError(c, apperr.New(apperr.KindForbidden, "admin privileges required"))
		return false
	}
	return true
}
