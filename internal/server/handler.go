package server

import (
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"roomchat/internal/auth"
	"roomchat/internal/identity"
	"roomchat/internal/service"

	"github.com/gin-gonic/gin"
)

// Handler 聚合所有 HTTP handler，依赖注入 service 层。
type Handler struct {
	roomSvc   *service.RoomService
	msgSvc    *service.MessageService
	inviteSvc *service.InviteService
	dir       identity.Directory
}

func NewHandler(roomSvc *service.RoomService, msgSvc *service.MessageService, inviteSvc *service.InviteService, dir identity.Directory) *Handler {
	return &Handler{roomSvc: roomSvc, msgSvc: msgSvc, inviteSvc: inviteSvc, dir: dir}
}

// RoomCode 处理 /room/:id：GET 签发或校验邀请码，POST 兑换邀请码。
func (h *Handler) RoomCode(c *gin.Context) {
	roomID := c.Param("id")
	if roomID == "" {
		c.JSON(http.StatusNotFound, gin.H{"error": "Room ID not found"})
		return
	}
	switch c.Request.Method {
	case http.MethodGet:
		if code, ok := c.GetQuery("verify"); ok && code != "" {
			h.verifyCode(c, roomID, code)
			return
		}
		h.issueCode(c, roomID)
	case http.MethodPost:
		h.redeemCode(c, roomID)
	default:
		c.JSON(http.StatusNotImplemented, gin.H{"error": "Method not implemented"})
	}
}

func (h *Handler) verifyCode(c *gin.Context, roomID, code string) {
	if !h.inviteSvc.Check(roomID, code) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid Code"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": true})
}

func (h *Handler) issueCode(c *gin.Context, roomID string) {
	var userID string
	if user := auth.CurrentUser(c); user != nil {
		userID = user.Subject
	}
	inv, err := h.inviteSvc.Code(c.Request.Context(), roomID, userID)
	if err != nil {
		if errors.Is(err, service.ErrRoomNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Room ID not found"})
			return
		}
		_ = c.Error(err)
		return
	}
	c.Header("Cache-Control", "max-age="+strconv.Itoa(inv.MaxAge))
	c.JSON(http.StatusOK, gin.H{"data": inv.Code})
}

func (h *Handler) redeemCode(c *gin.Context, roomID string) {
	var req struct {
		Code string `json:"code"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid payload"})
		return
	}
	user := auth.CurrentUser(c)
	if user == nil {
		_ = c.Error(errors.New("redeem without resolved user"))
		return
	}
	err := h.inviteSvc.Redeem(c.Request.Context(), roomID, strings.TrimSpace(req.Code), *user)
	switch {
	case err == nil:
		c.JSON(http.StatusOK, gin.H{"data": true})
	case errors.Is(err, service.ErrRoomNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "Room ID not found"})
	case errors.Is(err, service.ErrCodeMissing):
		c.JSON(http.StatusNotFound, gin.H{"error": "Code not found"})
	case errors.Is(err, service.ErrInvalidCode):
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid Code"})
	case errors.Is(err, service.ErrMembershipWrite):
		logFrom(c).Error().Err(err).Str("room_id", roomID).Str("user_id", user.Subject).Msg("redeem invite")
		c.JSON(http.StatusBadRequest, gin.H{"error": "Unable to add user to room"})
	default:
		_ = c.Error(err)
	}
}

// CreateRoom 处理创建房间请求，调用方成为管理员。
func (h *Handler) CreateRoom(c *gin.Context) {
	var req struct {
		Name string `json:"name"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid payload"})
		return
	}
	room, err := h.roomSvc.Create(c.Request.Context(), req.Name, *auth.CurrentUser(c))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": room})
}

// ListRooms 返回调用方加入的房间。
func (h *Handler) ListRooms(c *gin.Context) {
	rooms, err := h.roomSvc.ListForUser(c.Request.Context(), auth.CurrentUser(c).Subject, queryInt(c, "limit"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": rooms})
}

// DeleteRoom 由房间管理员删除房间及其消息。
func (h *Handler) DeleteRoom(c *gin.Context) {
	if err := h.roomSvc.Delete(c.Request.Context(), c.Param("id"), auth.CurrentUser(c).Subject); err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": true})
}

// ListMessages 分页查询房间历史消息。游标取上一页第一条消息：
// before 为其 created_at（RFC3339），before_id 为其 id。
func (h *Handler) ListMessages(c *gin.Context) {
	var before service.Cursor
	if s := c.Query("before"); s != "" {
		t, err := time.Parse(time.RFC3339Nano, s)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid before"})
			return
		}
		before = service.Cursor{CreatedAt: t, ID: c.Query("before_id")}
	}
	msgs, err := h.msgSvc.ListByRoom(c.Request.Context(), c.Param("id"), auth.CurrentUser(c).Subject, queryInt(c, "limit"), before)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": msgs})
}

// PostMessage 以成员身份发送消息。
func (h *Handler) PostMessage(c *gin.Context) {
	var req struct {
		Content string `json:"content"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid payload"})
		return
	}
	msg, err := h.msgSvc.Post(c.Request.Context(), c.Param("id"), *auth.CurrentUser(c), req.Content)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": msg})
}

// writeError 把业务错误映射为 HTTP 响应，其余错误交给鉴权中间件统一返回 500。
func writeError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, service.ErrRoomNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "Room ID not found"})
	case errors.Is(err, service.ErrNotMember):
		c.JSON(http.StatusForbidden, gin.H{"error": "not a room member"})
	case errors.Is(err, service.ErrNotAdmin):
		c.JSON(http.StatusForbidden, gin.H{"error": "room admin required"})
	case errors.Is(err, service.ErrInvalidRoomName):
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid room name"})
	case errors.Is(err, service.ErrInvalidContent):
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid content"})
	default:
		_ = c.Error(err)
	}
}

func queryInt(c *gin.Context, key string) int {
	n, _ := strconv.Atoi(c.Query(key))
	return n
}
