package auth

import (
	"context"

	"roomchat/internal/identity"

	"github.com/gin-gonic/gin"
)

const claimsKey = "auth.claims"

type ctxKey struct{}

// resolution 区分"未解析"（context 中没有）与"已解析但未认证"（claims 为 nil）。
type resolution struct {
	claims *identity.Claims
}

func WithClaims(ctx context.Context, claims *identity.Claims) context.Context {
	return context.WithValue(ctx, ctxKey{}, resolution{claims: claims})
}

// ClaimsFromContext 返回调用方身份；resolved 为 false 表示请求未经过中间件。
func ClaimsFromContext(ctx context.Context) (claims *identity.Claims, resolved bool) {
	res, ok := ctx.Value(ctxKey{}).(resolution)
	if !ok {
		return nil, false
	}
	return res.claims, true
}

// CurrentUser 返回 gin 请求上已解析的身份，未认证时为 nil。
func CurrentUser(c *gin.Context) *identity.Claims {
	if v, ok := c.Get(claimsKey); ok {
		if claims, ok2 := v.(*identity.Claims); ok2 {
			return claims
		}
	}
	claims, _ := ClaimsFromContext(c.Request.Context())
	return claims
}
