package middleware

import (
	"crypto/subtle"
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
)

// APIAuth validates the Token header, or a bearer token, against the API key.
// An empty key disables the check for local development.
func APIAuth(apiKey string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if apiKey == "" {
				return next(c)
			}

			token := c.Request().Header.Get("Token")
			if token == "" {
				token = strings.TrimPrefix(c.Request().Header.Get(echo.HeaderAuthorization), "Bearer ")
			}
			if token == "" {
				return c.JSON(http.StatusUnauthorized, map[string]string{"error": "Token is required"})
			}
			if subtle.ConstantTimeCompare([]byte(token), []byte(apiKey)) != 1 {
				return c.JSON(http.StatusUnauthorized, map[string]string{"error": "Invalid token"})
			}
			return next(c)
		}
	}
}

// RequestLogger logs every request with its status and latency.
func RequestLogger(logger *zap.Logger) echo.MiddlewareFunc {
	logger = logger.Named("http")
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()
			err := next(c)
			if err != nil {
				c.Error(err)
			}

			req := c.Request()
			fields := []zap.Field{
				zap.String("method", req.Method),
				zap.String("path", req.URL.Path),
				zap.Int("status", c.Response().Status),
				zap.Duration("latency", time.Since(start)),
				zap.String("ip", c.RealIP()),
			}
			if c.Response().Status >= http.StatusInternalServerError {
				logger.Error("Request", fields...)
			} else {
				logger.Info("Request", fields...)
			}
			return nil
		}
	}
}
