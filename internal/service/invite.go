package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"roomchat/internal/identity"
	"roomchat/internal/invite"
	"roomchat/internal/metrics"
)

// InviteService 基于 invite.Engine 签发与兑换房间邀请码。
type InviteService struct {
	rooms  *RoomService
	engine *invite.Engine
	now    func() time.Time
}

func NewInviteService(rooms *RoomService, engine *invite.Engine) *InviteService {
	return &InviteService{rooms: rooms, engine: engine, now: time.Now}
}

// InviteCode 是签发给房间成员的邀请码及其剩余有效秒数。
type InviteCode struct {
	Code   string
	MaxAge int
}

// Code 为房间成员签发当前小时窗口的邀请码。非成员与房间不存在不作区分。
func (s *InviteService) Code(ctx context.Context, roomID, userID string) (*InviteCode, error) {
	if roomID == "" {
		return nil, ErrRoomNotFound
	}
	if _, err := s.rooms.Member(ctx, roomID, userID); err != nil {
		if errors.Is(err, ErrNotMember) {
			return nil, ErrRoomNotFound
		}
		return nil, err
	}
	now := s.now()
	return &InviteCode{
		Code:   s.engine.Generate(invite.Window(now), roomID),
		MaxAge: invite.RemainingValiditySeconds(now),
	}, nil
}

// Check 校验邀请码是否属于当前小时窗口。
func (s *InviteService) Check(roomID, code string) bool {
	ok := roomID != "" && s.engine.Verify(code, invite.Window(s.now()), roomID)
	metrics.ObserveInviteCheck(ok)
	return ok
}

// Redeem 校验邀请码并把调用方加入房间（非管理员）。
func (s *InviteService) Redeem(ctx context.Context, roomID, code string, user identity.Claims) error {
	if roomID == "" {
		return ErrRoomNotFound
	}
	if code == "" {
		return ErrCodeMissing
	}
	if !s.Check(roomID, code) {
		return ErrInvalidCode
	}
	if err := s.rooms.AddMember(ctx, roomID, user, false); err != nil {
		return fmt.Errorf("%w: %v", ErrMembershipWrite, err)
	}
	return nil
}
