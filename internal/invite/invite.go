// Package invite 生成与校验按小时失效的房间邀请码。
//
// 邀请码不落库：同一 (房间, 小时窗口, 密钥) 总是得到同一个码，校验即重新计算后比较。
// 窗口之间没有宽限期，整点一过上一小时签发的码立即失效。
package invite

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"strconv"
	"time"
)

// CodeLength 是邀请码的字符数。
const CodeLength = 9

// Window 返回 now 所在小时窗口的起点。
func Window(now time.Time) time.Time {
	return now.Truncate(time.Hour)
}

// WindowEnd 返回窗口内最后一个毫秒。
func WindowEnd(window time.Time) time.Time {
	return window.Add(time.Hour - time.Millisecond)
}

// RemainingValiditySeconds 返回当前窗口剩余的整秒数，用作 Cache-Control 的 max-age。
func RemainingValiditySeconds(now time.Time) int {
	left := WindowEnd(Window(now)).Sub(now)
	if left < 0 {
		return 0
	}
	return int(left / time.Second)
}

type Engine struct {
	key []byte
}

func NewEngine(key string) *Engine {
	return &Engine{key: []byte(key)}
}

// Generate 计算 HMAC-SHA256(key, 窗口毫秒时间戳 + roomID)，取 base64url 编码中间的 9 个字符。
func (e *Engine) Generate(window time.Time, roomID string) string {
	mac := hmac.New(sha256.New, e.key)
	mac.Write([]byte(strconv.FormatInt(window.UnixMilli(), 10)))
	mac.Write([]byte(roomID))
	return middle(base64.RawURLEncoding.EncodeToString(mac.Sum(nil)))
}

func (e *Engine) Verify(code string, window time.Time, roomID string) bool {
	if len(code) != CodeLength {
		return false
	}
	return hmac.Equal([]byte(code), []byte(e.Generate(window, roomID)))
}

func middle(s string) string {
	start := len(s)/2 - CodeLength/2
	return s[start : start+CodeLength]
}
