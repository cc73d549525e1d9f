package service

import (
	"context"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"roomchat/internal/identity"
	"roomchat/internal/metrics"
	"roomchat/internal/models"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// MaxMessageLength 是单条消息允许的最大字符数。
const MaxMessageLength = 4000

// MessageService 封装消息相关的业务逻辑。
type MessageService struct {
	db    *gorm.DB
	rooms *RoomService
	dir   identity.Directory
	now   func() time.Time
}

func NewMessageService(db *gorm.DB, rooms *RoomService, dir identity.Directory) *MessageService {
	return &MessageService{db: db, rooms: rooms, dir: dir, now: time.Now}
}

// MessageDTO 是对外输出的消息数据。
type MessageDTO struct {
	ID        string    `json:"id"`
	RoomID    string    `json:"room_id"`
	UserID    string    `json:"user_id"`
	UserName  string    `json:"user_name"`
	PhotoURL  string    `json:"photo_url"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"created_at"`
}

// Post 以成员身份在房间中发送一条消息。
func (s *MessageService) Post(ctx context.Context, roomID string, author identity.Claims, content string) (*MessageDTO, error) {
	if _, err := s.rooms.Member(ctx, roomID, author.Subject); err != nil {
		return nil, err
	}
	content = strings.TrimSpace(content)
	if content == "" || utf8.RuneCountInString(content) > MaxMessageLength {
		return nil, ErrInvalidContent
	}
	msg := models.Message{
		ID:        uuid.NewString(),
		RoomID:    roomID,
		UserID:    author.Subject,
		Content:   content,
		PhotoURL:  author.Picture,
		CreatedAt: s.now().UTC(),
	}
	if err := s.db.WithContext(ctx).Omit(clause.Associations).Create(&msg).Error; err != nil {
		return nil, fmt.Errorf("create message: %w", err)
	}
	metrics.MessagesTotal.Inc()
	return &MessageDTO{
		ID:        msg.ID,
		RoomID:    msg.RoomID,
		UserID:    msg.UserID,
		UserName:  author.Name,
		PhotoURL:  msg.PhotoURL,
		Content:   msg.Content,
		CreatedAt: msg.CreatedAt,
	}, nil
}

// Cursor 指向一条消息在 (CreatedAt, ID) 顺序中的位置，零值表示从最新一条开始。
type Cursor struct {
	CreatedAt time.Time
	ID        string
}

// ListByRoom 分页查询房间消息，按 (created_at, id) 升序返回。
// before 非零时只返回排在游标之前的消息；ID 为空时只按时间比较。
func (s *MessageService) ListByRoom(ctx context.Context, roomID, userID string, limit int, before Cursor) ([]MessageDTO, error) {
	if _, err := s.rooms.Member(ctx, roomID, userID); err != nil {
		return nil, err
	}
	if limit <= 0 || limit > 200 {
		limit = 50
	}

	q := s.db.WithContext(ctx).Where("room_id = ?", roomID)
	if !before.CreatedAt.IsZero() {
		at := before.CreatedAt.UTC()
		if before.ID == "" {
			q = q.Where("created_at < ?", at)
		} else {
			q = q.Where("(created_at < ? OR (created_at = ? AND id < ?))", at, at, before.ID)
		}
	}
	var msgs []models.Message
	if err := q.Order("created_at desc, id desc").Limit(limit).Find(&msgs).Error; err != nil {
		return nil, err
	}

	// 反转为升序
	for i, j := 0, len(msgs)-1; i < j; i, j = i+1, j-1 {
		msgs[i], msgs[j] = msgs[j], msgs[i]
	}

	names, err := s.resolveNames(ctx, roomID, msgs)
	if err != nil {
		return nil, err
	}

	out := make([]MessageDTO, 0, len(msgs))
	for _, m := range msgs {
		out = append(out, MessageDTO{
			ID:        m.ID,
			RoomID:    m.RoomID,
			UserID:    m.UserID,
			UserName:  names[m.UserID],
			PhotoURL:  m.PhotoURL,
			Content:   m.Content,
			CreatedAt: m.CreatedAt,
		})
	}
	return out, nil
}

// resolveNames 先用房间成员表中的名字，已离开房间的作者再去身份目录批量查询。
func (s *MessageService) resolveNames(ctx context.Context, roomID string, msgs []models.Message) (map[string]string, error) {
	members, err := s.rooms.Members(ctx, roomID)
	if err != nil {
		return nil, err
	}
	names := make(map[string]string, len(msgs))
	var missing []string
	for _, m := range msgs {
		if _, ok := names[m.UserID]; ok {
			continue
		}
		if mem, ok := members[m.UserID]; ok && mem.Name != "" {
			names[m.UserID] = mem.Name
			continue
		}
		names[m.UserID] = ""
		missing = append(missing, m.UserID)
	}
	if len(missing) == 0 || s.dir == nil {
		return names, nil
	}
	users, err := s.dir.GetUsers(ctx, missing)
	if err != nil {
		return nil, fmt.Errorf("resolve message authors: %w", err)
	}
	for _, u := range users {
		names[u.ID] = u.Name
	}
	return names, nil
}
