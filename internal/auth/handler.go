package auth

import (
	"encoding/json"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
)

// Kind 区分两种 handler 调用约定。
type Kind int

const (
	// KindFetch: 接收请求并返回一个响应值。
	KindFetch Kind = iota + 1
	// KindFramework: gin 风格，直接向 gin.Context 写出响应。
	KindFramework
)

func (k Kind) String() string {
	switch k {
	case KindFetch:
		return "fetch"
	case KindFramework:
		return "framework"
	default:
		return "unknown"
	}
}

// FetchHandler 返回的 error 会被中间件统一转换成 500。
type FetchHandler func(r *http.Request, ec *ExecutionContext) (*Response, error)

// Handler 是两种调用约定的标签联合，kind 决定哪个字段有效。
type Handler struct {
	kind      Kind
	fetch     FetchHandler
	framework gin.HandlerFunc
}

func Fetch(h FetchHandler) Handler {
	return Handler{kind: KindFetch, fetch: h}
}

func Framework(h gin.HandlerFunc) Handler {
	return Handler{kind: KindFramework, framework: h}
}

func (h Handler) Kind() Kind { return h.kind }

// ExecutionContext 携带 fetch 风格 handler 的路由参数。
type ExecutionContext struct {
	params map[string]string
}

func NewExecutionContext(params map[string]string) *ExecutionContext {
	return &ExecutionContext{params: params}
}

func (ec *ExecutionContext) Param(name string) string {
	if ec == nil {
		return ""
	}
	return ec.params[name]
}

// Response 是 fetch 风格 handler 的返回值。
type Response struct {
	Status int
	Header http.Header
	Body   []byte
}

var internalErrorBody = []byte(`{"error":"Internal Server Error"}`)

// JSON 构造 JSON 响应。
func JSON(status int, v any) *Response {
	body, err := json.Marshal(v)
	if err != nil {
		log.Error().Err(err).Msg("encode json response")
		status, body = http.StatusInternalServerError, internalErrorBody
	}
	h := http.Header{}
	h.Set("Content-Type", "application/json; charset=utf-8")
	return &Response{Status: status, Header: h, Body: body}
}

func Redirect(location string, status int) *Response {
	h := http.Header{}
	h.Set("Location", location)
	return &Response{Status: status, Header: h}
}

func internalError() *Response {
	return JSON(http.StatusInternalServerError, gin.H{"error": "Internal Server Error"})
}

func (resp *Response) WriteTo(w http.ResponseWriter) {
	for k, vs := range resp.Header {
		for _, v := range vs {
			w.Header().Add(k, v)
		}
	}
	status := resp.Status
	if status == 0 {
		status = http.StatusOK
	}
	w.WriteHeader(status)
	if len(resp.Body) > 0 {
		_, _ = w.Write(resp.Body)
	}
}

// Gin 把任一种 handler 挂载到 gin 路由上。
func (h Handler) Gin() gin.HandlerFunc {
	switch h.kind {
	case KindFramework:
		return h.framework
	case KindFetch:
		return func(c *gin.Context) {
			params := make(map[string]string, len(c.Params))
			for _, p := range c.Params {
				params[p.Key] = p.Value
			}
			resp, err := h.fetch(c.Request, NewExecutionContext(params))
			if err != nil || resp == nil {
				log.Error().Err(err).Str("path", c.Request.URL.Path).Msg("fetch handler failed")
				resp = internalError()
			}
			resp.WriteTo(c.Writer)
			c.Abort()
		}
	default:
		panic("auth: handler has no kind")
	}
}
