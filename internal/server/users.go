package server

import (
	"errors"
	"net/http"
	"strings"

	"roomchat/internal/auth"
	"roomchat/internal/identity"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

type userDTO struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// GetUsers 按 ?id=a&id=b 批量查询用户名，找不到的 ID 直接跳过。
// 重复 ID 只查一次，去重后超过 identity.MaxLookupIDs 返回 400。
func (h *Handler) GetUsers(r *http.Request, _ *auth.ExecutionContext) (*auth.Response, error) {
	ids := identity.UniqueIDs(r.URL.Query()["id"])
	if len(ids) == 0 {
		return auth.JSON(http.StatusNotFound, gin.H{"error": "User IDs not found"}), nil
	}
	if len(ids) > identity.MaxLookupIDs {
		return auth.JSON(http.StatusBadRequest, gin.H{"error": "Too many user IDs"}), nil
	}
	users, err := h.dir.GetUsers(r.Context(), ids)
	if err != nil {
		if errors.Is(err, identity.ErrTooManyIDs) {
			return auth.JSON(http.StatusBadRequest, gin.H{"error": "Too many user IDs"}), nil
		}
		return nil, err
	}
	out := make([]userDTO, 0, len(users))
	for _, u := range users {
		out = append(out, userDTO{ID: u.ID, Name: u.Name})
	}
	return auth.JSON(http.StatusOK, gin.H{"data": out}), nil
}

// GetUserByEmail 按邮箱查询单个用户，用于邀请前确认对方身份。
// 只有 ErrUserNotFound 映射为 404，其余错误返回 500。
func (h *Handler) GetUserByEmail(r *http.Request, ec *auth.ExecutionContext) (*auth.Response, error) {
	email := strings.TrimSpace(ec.Param("email"))
	if email == "" {
		return auth.JSON(http.StatusNotFound, gin.H{"error": "Email not found"}), nil
	}
	user, err := h.dir.GetUserByEmail(r.Context(), email)
	if err != nil {
		if errors.Is(err, identity.ErrUserNotFound) {
			return auth.JSON(http.StatusNotFound, gin.H{"error": "User not found"}), nil
		}
		return nil, err
	}
	return auth.JSON(http.StatusOK, gin.H{"data": user}), nil
}

// logFrom 取请求 context 上的 logger，没有时退回全局 logger。
func logFrom(c *gin.Context) *zerolog.Logger {
	if l := zerolog.Ctx(c.Request.Context()); l.GetLevel() != zerolog.Disabled {
		return l
	}
	return &log.Logger
}
