// Package auth 为两种 handler 调用约定提供统一的 bearer token 鉴权与错误兜底。
package auth

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"roomchat/internal/identity"
	"roomchat/internal/metrics"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
)

var errNilResponse = errors.New("handler returned no response")

type Middleware struct {
	verifier identity.Verifier
	loginURL string
	timeout  time.Duration
	log      zerolog.Logger
}

// New 创建中间件。verifier 与 loginURL 在进程内只读共享。
func New(verifier identity.Verifier, loginURL string, timeout time.Duration, logger zerolog.Logger) *Middleware {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &Middleware{verifier: verifier, loginURL: loginURL, timeout: timeout, log: logger}
}

type wrapOptions struct {
	requiresAuth bool
}

type Option func(*wrapOptions)

// RequiresAuth 控制未认证请求是否被重定向到登录页，默认 true。
func RequiresAuth(required bool) Option {
	return func(o *wrapOptions) { o.requiresAuth = required }
}

// Wrap 返回与 h 同一调用约定的 handler：先解析身份，再按需拒绝或转发，
// 内部 handler 的 error 与 panic 统一转成 500。
func (m *Middleware) Wrap(h Handler, opts ...Option) Handler {
	o := wrapOptions{requiresAuth: true}
	for _, opt := range opts {
		opt(&o)
	}
	switch h.kind {
	case KindFetch:
		return Fetch(m.wrapFetch(h.fetch, o))
	case KindFramework:
		return Framework(m.wrapFramework(h.framework, o))
	default:
		panic("auth: handler has no kind")
	}
}

func (m *Middleware) wrapFetch(next FetchHandler, o wrapOptions) FetchHandler {
	return func(r *http.Request, ec *ExecutionContext) (resp *Response, err error) {
		defer func() {
			if p := recover(); p != nil {
				resp, err = m.fail(r, KindFetch, panicError(p)), nil
			}
		}()

		r, claims := m.decorate(r)
		if o.requiresAuth && claims == nil {
			return Redirect(m.loginURL, http.StatusTemporaryRedirect), nil
		}

		resp, err = next(r, ec)
		if err == nil && resp == nil {
			err = errNilResponse
		}
		if err != nil {
			return m.fail(r, KindFetch, err), nil
		}
		return resp, nil
	}
}

func (m *Middleware) wrapFramework(next gin.HandlerFunc, o wrapOptions) gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			if p := recover(); p != nil {
				m.abort(c, panicError(p))
			}
		}()

		r, claims := m.decorate(c.Request)
		c.Request = r
		c.Set(claimsKey, claims)
		if o.requiresAuth && claims == nil {
			c.Redirect(http.StatusTemporaryRedirect, m.loginURL)
			c.Abort()
			return
		}

		before := len(c.Errors)
		next(c)
		if len(c.Errors) > before && !c.Writer.Written() {
			m.abort(c, c.Errors.Last().Err)
		}
	}
}

func (m *Middleware) abort(c *gin.Context, err error) {
	resp := m.fail(c.Request, KindFramework, err)
	if c.Writer.Written() {
		c.Abort()
		return
	}
	c.Data(resp.Status, "application/json; charset=utf-8", resp.Body)
	c.Abort()
}

// fail 记录原始错误，对外只返回通用 500。
func (m *Middleware) fail(r *http.Request, kind Kind, err error) *Response {
	m.log.Error().Err(err).
		Str("kind", kind.String()).
		Str("method", r.Method).
		Str("path", r.URL.Path).
		Msg("unhandled request error")
	return internalError()
}

// decorate 解析身份并写入请求 context。返回后身份状态一定已确定。
func (m *Middleware) decorate(r *http.Request) (*http.Request, *identity.Claims) {
	claims := m.resolve(r)
	return r.WithContext(WithClaims(r.Context(), claims)), claims
}

// resolve 不返回错误：缺少 token 与校验失败一律视为未认证。
func (m *Middleware) resolve(r *http.Request) *identity.Claims {
	token := BearerToken(r.Header.Get("Authorization"))
	if token == "" {
		metrics.ObserveAuth("anonymous")
		return nil
	}
	ctx, cancel := context.WithTimeout(r.Context(), m.timeout)
	defer cancel()

	claims, err := m.verify(ctx, token)
	if err != nil || claims == nil || claims.Subject == "" {
		m.log.Debug().Err(err).Str("path", r.URL.Path).Msg("bearer token rejected")
		metrics.ObserveAuth("rejected")
		return nil
	}
	metrics.ObserveAuth("authenticated")
	return claims
}

func (m *Middleware) verify(ctx context.Context, token string) (claims *identity.Claims, err error) {
	defer func() {
		if p := recover(); p != nil {
			claims, err = nil, panicError(p)
		}
	}()
	if m.verifier == nil {
		return nil, identity.ErrInvalidToken
	}
	return m.verifier.VerifyToken(ctx, token)
}

// BearerToken 从 Authorization 头中取出 token；格式不符时返回空串。
func BearerToken(header string) string {
	const prefix = "bearer "
	if len(header) < len(prefix) || !strings.EqualFold(header[:len(prefix)], prefix) {
		return ""
	}
	return strings.TrimSpace(header[len(prefix):])
}

func panicError(p any) error {
	if err, ok := p.(error); ok {
		return fmt.Errorf("panic: %w", err)
	}
	return fmt.Errorf("panic: %v", p)
}
