package gateway

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/example/storefront/pkg/apperr"
	"github.com/example/storefront/pkg/config"
	"github.com/example/storefront/pkg/metrics"
	"github.com/example/storefront/pkg/models"
)

const (
	sessionCookie    = "sessionCartId"
	sessionCookieAge = 30 * 24 * 60 * 60

	ctxOwnerID = "owner_id"
	ctxUserID  = "user_id"
	ctxRole    = "role"

	roleAdmin = "admin"

	msgUnauthorized = "Please sign in to continue"
	msgForbidden    = "You are not allowed to do that"
	msgInvalidToken = "Invalid or expired token"
)

// Claims is the payload of the storefront bearer token. The user id travels in sub.
type Claims struct {
	Role string `json:"role"`
	jwt.RegisteredClaims
}

type tokenVerifier struct {
	secret []byte
	opts   []jwt.ParserOption
}

func newTokenVerifier(cfg *config.AuthConfig) *tokenVerifier {
	opts := []jwt.ParserOption{jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()})}
	if cfg.Issuer != "" {
		opts = append(opts, jwt.WithIssuer(cfg.Issuer))
	}
	return &tokenVerifier{secret: []byte(cfg.JWTSecret), opts: opts}
}

func (v *tokenVerifier) verify(header string) (*Claims, error) {
	raw, ok := strings.CutPrefix(header, "Bearer ")
	if !ok || raw == "" {
		return nil, errors.New("malformed authorization header")
	}
	if len(v.secret) == 0 {
		return nil, errors.New("token verification is not configured")
	}

	claims := &Claims{}
	if _, err := jwt.ParseWithClaims(raw, claims, func(*jwt.Token) (interface{}, error) {
		return v.secret, nil
	}, v.opts...); err != nil {
		return nil, err
	}
	if claims.Subject == "" {
		return nil, errors.New("token has no subject")
	}
	return claims, nil
}

// identity resolves the cart owner. A valid bearer token makes the caller user:<sub>; anyone
// else gets a session:<uuid> owner backed by the sessionCartId cookie. The first request that
// carries both folds the session cart into the user's cart and drops the cookie.
func (g *Gateway) identity() gin.HandlerFunc {
	return func(c *gin.Context) {
		sessionID, _ := c.Cookie(sessionCookie)
		if _, err := uuid.Parse(sessionID); err != nil {
			sessionID = ""
		}

		if header := c.GetHeader("Authorization"); header != "" {
			claims, err := g.verifier.verify(header)
			if err != nil {
				g.logger.Debug("Rejected bearer token", zap.Error(err))
				abort(c, http.StatusUnauthorized, msgInvalidToken)
				return
			}
			owner := models.UserOwner(claims.Subject)
			c.Set(ctxUserID, claims.Subject)
			c.Set(ctxRole, claims.Role)
			c.Set(ctxOwnerID, owner)

			if sessionID != "" {
				if _, err := g.carts.MergeCarts(c.Request.Context(), models.SessionOwner(sessionID), owner); err != nil {
					g.logger.Warn("Cart merge on sign-in failed", zap.String("user_id", claims.Subject), zap.Error(err))
				} else {
					g.setSessionCookie(c, "", -1)
				}
			}
			c.Next()
			return
		}

		if sessionID == "" {
			sessionID = uuid.NewString()
			g.setSessionCookie(c, sessionID, sessionCookieAge)
		}
		c.Set(ctxOwnerID, models.SessionOwner(sessionID))
		c.Next()
	}
}

func (g *Gateway) setSessionCookie(c *gin.Context, value string, maxAge int) {
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(sessionCookie, value, maxAge, "/", "", g.config.Gateway.CookieSecure, true)
}

func requireUser() gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.GetString(ctxUserID) == "" {
			abort(c, http.StatusUnauthorized, msgUnauthorized)
			return
		}
		c.Next()
	}
}

func requireAdmin() gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.GetString(ctxRole) != roleAdmin {
			abort(c, http.StatusForbidden, msgForbidden)
			return
		}
		c.Next()
	}
}

func abort(c *gin.Context, status int, message string) {
	c.AbortWithStatusJSON(status, apperr.Result{Success: false, Message: message})
}

func loggerMiddleware(logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path
		query := c.Request.URL.RawQuery

		c.Next()

		logger.Info("HTTP request",
			zap.String("method", c.Request.Method),
			zap.String("path", path),
			zap.String("query", query),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("latency", time.Since(start)),
		)
	}
}

func metricsMiddleware(m *metrics.Metrics) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		m.HTTPRequest(c.Request.Method, route, c.Writer.Status(), time.Since(start).Seconds())
	}
}
