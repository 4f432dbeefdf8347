// Package middleware holds the gin middlewares for bearer authentication and
// capability checks.
package middleware

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v4"
	"github.com/lshigami/padhoplus/config"
	"github.com/lshigami/padhoplus/internal/dto"
	"github.com/lshigami/padhoplus/internal/model"
	"github.com/lshigami/padhoplus/internal/policy"
	"github.com/rs/zerolog/log"
)

const principalKey = "principal"

var ErrInvalidToken = errors.New("invalid or expired token")

type Claims struct {
	Role string `json:"role"`
	jwt.RegisteredClaims
}

// JWTAuth issues and verifies HS256 access tokens.
type JWTAuth struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

func NewJWTAuth(cfg *config.Config) *JWTAuth {
	ttl := cfg.JWT.TTL
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &JWTAuth{secret: []byte(cfg.JWT.Secret), ttl: ttl, now: time.Now}
}

func (a *JWTAuth) Issue(user model.User) (string, time.Time, error) {
	now := a.now()
	expiresAt := now.Add(a.ttl)
	claims := Claims{
		Role: string(user.Role),
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   strconv.FormatUint(uint64(user.ID), 10),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(a.secret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("sign token: %w", err)
	}
	return signed, expiresAt, nil
}

func (a *JWTAuth) Parse(raw string) (policy.Principal, error) {
	var claims Claims
	token, err := jwt.ParseWithClaims(raw, &claims, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return a.secret, nil
	})
	if err != nil || !token.Valid {
		return policy.Principal{}, ErrInvalidToken
	}
	id, err := strconv.ParseUint(claims.Subject, 10, 32)
	if err != nil || id == 0 {
		return policy.Principal{}, ErrInvalidToken
	}
	role, err := policy.ParseRole(claims.Role)
	if err != nil {
		return policy.Principal{}, ErrInvalidToken
	}
	return policy.Principal{UserID: uint(id), Role: role}, nil
}

// RequireAuth rejects requests without a valid bearer token and stores the
// principal on the context.
func (a *JWTAuth) RequireAuth() gin.HandlerFunc {
	return func(ctx *gin.Context) {
		header := ctx.GetHeader("Authorization")
		raw, found := strings.CutPrefix(header, "Bearer ")
		if !found || strings.TrimSpace(raw) == "" {
			ctx.AbortWithStatusJSON(http.StatusUnauthorized, dto.ErrorResponse{Message: "Authentication credentials were not provided"})
			return
		}
		principal, err := a.Parse(strings.TrimSpace(raw))
		if err != nil {
			log.Debug().Err(err).Str("path", ctx.FullPath()).Msg("Rejected bearer token")
			ctx.AbortWithStatusJSON(http.StatusUnauthorized, dto.ErrorResponse{Message: ErrInvalidToken.Error()})
			return
		}
		ctx.Set(principalKey, principal)
		ctx.Next()
	}
}

// RequireCapability must run after RequireAuth.
func RequireCapability(c policy.Capability) gin.HandlerFunc {
	return func(ctx *gin.Context) {
		principal, ok := PrincipalFrom(ctx)
		if !ok {
			ctx.AbortWithStatusJSON(http.StatusUnauthorized, dto.ErrorResponse{Message: "Authentication credentials were not provided"})
			return
		}
		if !principal.Can(c) {
			log.Warn().Uint("userID", principal.UserID).Str("role", string(principal.Role)).Str("capability", c.String()).Msg("Capability check failed")
			ctx.AbortWithStatusJSON(http.StatusForbidden, dto.ErrorResponse{Message: "You do not have permission to perform this action"})
			return
		}
		ctx.Next()
	}
}

func PrincipalFrom(ctx *gin.Context) (policy.Principal, bool) {
	v, ok := ctx.Get(principalKey)
	if !ok {
		return policy.Principal{}, false
	}
	p, ok := v.(policy.Principal)
	return p, ok
}

// SetPrincipal is used by tests that bypass token parsing.
func SetPrincipal(ctx *gin.Context, p policy.Principal) {
	ctx.Set(principalKey, p)
}
