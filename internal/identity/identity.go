// Package identity 封装外部身份服务：token 校验与用户目录查询。
package identity

import (
	"context"
	"errors"
)

// MaxLookupIDs 是单次批量查询允许的最大用户数。
const MaxLookupIDs = 100

var (
	ErrInvalidToken = errors.New("invalid token")
	ErrUserNotFound = errors.New("user not found")
	ErrTooManyIDs   = errors.New("too many user ids")
)

// Claims 是从已校验 token 中解出的调用方身份。
type Claims struct {
	Subject string `json:"sub"`
	Email   string `json:"email,omitempty"`
	Name    string `json:"name,omitempty"`
	Picture string `json:"picture,omitempty"`
}

// User 是目录查询返回的用户资料。
type User struct {
	ID       string `json:"id"`
	Email    string `json:"email,omitempty"`
	Name     string `json:"name"`
	PhotoURL string `json:"photo_url,omitempty"`
}

// Verifier 校验 bearer token。任何失败都以 error 返回，由调用方决定如何归一化。
type Verifier interface {
	VerifyToken(ctx context.Context, token string) (*Claims, error)
}

// Directory 按邮箱或 ID 查询用户。GetUsers 只返回找到的用户。
type Directory interface {
	GetUserByEmail(ctx context.Context, email string) (*User, error)
	GetUsers(ctx context.Context, ids []string) ([]User, error)
}

// metadata 中姓名与头像字段的常见写法，按优先级排列。
var (
	nameKeys    = []string{"name", "full_name", "display_name", "user_name"}
	pictureKeys = []string{"picture", "avatar_url", "photo_url"}
)

func firstString(m map[string]any, keys []string) string {
	for _, k := range keys {
		if v, ok := m[k].(string); ok && v != "" {
			return v
		}
	}
	return ""
}

// UniqueIDs 去掉空串与重复 ID，保持首次出现的顺序。
func UniqueIDs(ids []string) []string {
	out := make([]string, 0, len(ids))
	seen := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		if id == "" {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}
