package service

import "errors"

// 业务层通用错误，handler 可根据错误类型映射到合适的 HTTP 状态码。
var (
	ErrRoomNotFound    = errors.New("room not found")
	ErrNotMember       = errors.New("not a room member")
	ErrNotAdmin        = errors.New("room admin required")
	ErrInvalidRoomName = errors.New("invalid room name")
	ErrInvalidContent  = errors.New("invalid message content")
	ErrCodeMissing     = errors.New("code not found")
	ErrInvalidCode     = errors.New("invalid code")
	ErrMembershipWrite = errors.New("unable to add user to room")
)
