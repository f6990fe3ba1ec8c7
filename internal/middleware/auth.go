package middleware

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/VictorVasquezZT2005/Prestamos/internal/apierror"
	"github.com/VictorVasquezZT2005/Prestamos/internal/service"
	"github.com/VictorVasquezZT2005/Prestamos/internal/session"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
)

const (
	SessionKey = "session"
)

// SessionResolver turns a bearer token into the caller's session.
type SessionResolver interface {
	ResolverSesion(ctx context.Context, accessToken string) (session.Session, error)
}

// JWTAuth resolves the Bearer token on every protected route. EventSource
// clients cannot set headers, so the token is also accepted as ?access_token=.
func JWTAuth(resolver SessionResolver) gin.HandlerFunc {
	return func(c *gin.Context) {
		tokenStr := ""
		if header := c.GetHeader("Authorization"); strings.HasPrefix(header, "Bearer ") {
			tokenStr = strings.TrimPrefix(header, "Bearer ")
		} else {
			tokenStr = c.Query("access_token")
		}
		if tokenStr == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, apierror.New("Autenticacion requerida"))
			return
		}

		sess, err := resolver.ResolverSesion(c.Request.Context(), tokenStr)
		switch {
		case err == nil:
		case errors.Is(err, service.ErrSinRol):
			c.AbortWithStatusJSON(http.StatusForbidden, apierror.New(err.Error()))
			return
		case errors.Is(err, service.ErrTokenInvalido), errors.Is(err, service.ErrSesionCerrada):
			c.AbortWithStatusJSON(http.StatusUnauthorized, apierror.New(err.Error()))
			return
		default:
			log.Error().Err(err).Str("request_id", c.GetString(RequestIDKey)).Msg("resolver sesion")
			c.AbortWithStatusJSON(http.StatusInternalServerError, apierror.New("Error interno del servidor"))
			return
		}

		c.Set(SessionKey, sess)
		c.Next()
	}
}

// RequireRole rejects requests whose session role is not in the allowed list.
func RequireRole(roles ...string) gin.HandlerFunc {
	allowed := make(map[string]bool, len(roles))
	for _, r := range roles {
		allowed[r] = true
	}
	return func(c *gin.Context) {
		sess, ok := c.MustGet(SessionKey).(session.Session)
		if !ok || !allowed[sess.Rol] {
			c.AbortWithStatusJSON(http.StatusForbidden, apierror.New("Permisos insuficientes"))
			return
		}
		c.Next()
	}
}

// GetSession is a helper to retrieve the typed session from the Gin context.
func GetSession(c *gin.Context) session.Session {
	sess, _ := c.MustGet(SessionKey).(session.Session)
	return sess
}
