package web

import (
	"net/http"
	"strings"

	gmw "github.com/Laisky/gin-middlewares/v7"
	"github.com/Laisky/zap"
	"github.com/gin-gonic/gin"
)

const ctxKeyUsername = "username"

// codeUnauthorized is only produced by the API layer.
const codeUnauthorized = "UNAUTHORIZED"

// authenticate verifies the bearer token when a signer is configured.
func (s *Server) authenticate(ctx *gin.Context) {
	if s.signer == nil {
		ctx.Next()
		return
	}

	token, ok := strings.CutPrefix(ctx.GetHeader("Authorization"), "Bearer ")
	if !ok || strings.TrimSpace(token) == "" {
		abortWithError(ctx, http.StatusUnauthorized, codeUnauthorized, "missing bearer token")
		return
	}

	claims, err := s.signer.Parse(strings.TrimSpace(token))
	if err != nil {
		gmw.GetLogger(ctx).Debug("reject token", zap.Error(err))
		abortWithError(ctx, http.StatusUnauthorized, codeUnauthorized, "invalid token")
		return
	}

	ctx.Set(ctxKeyUsername, claims.Username)
	ctx.Next()
}

// codeRateLimited is only produced by the API layer.
const codeRateLimited = "RATE_LIMITED"

// rateLimit rejects clients that exceed the configured throttle.
func (s *Server) rateLimit(ctx *gin.Context) {
	if s.throttle == nil {
		ctx.Next()
		return
	}

	key := ctx.GetString(ctxKeyUsername)
	if key == "" {
		key = "ip:" + ctx.ClientIP()
	}
	if !s.throttle.Allow(key) {
		gmw.GetLogger(ctx).Debug("rate limited", zap.String("client", key))
		abortWithError(ctx, http.StatusTooManyRequests, codeRateLimited, "too many requests")
		return
	}
	ctx.Next()
}
