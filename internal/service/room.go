package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"roomchat/internal/identity"
	"roomchat/internal/models"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// DeleteBatchSize 是拆除房间时每批删除的消息数。
const DeleteBatchSize = 500

// RoomService 封装房间与成员相关的业务逻辑。
type RoomService struct {
	db  *gorm.DB
	now func() time.Time
}

func NewRoomService(db *gorm.DB) *RoomService {
	return &RoomService{db: db, now: time.Now}
}

// RoomDTO 是对外输出的房间数据，附带调用方在该房间的成员信息。
type RoomDTO struct {
	ID       string    `json:"id"`
	Name     string    `json:"name"`
	PhotoURL string    `json:"photo_url"`
	IsAdmin  bool      `json:"is_admin"`
	JoinedAt time.Time `json:"joined_at"`
}

// Create 创建房间，创建者作为管理员写入成员表。
func (s *RoomService) Create(ctx context.Context, name string, owner identity.Claims) (*RoomDTO, error) {
	name = strings.TrimSpace(name)
	if name == "" || len(name) > 128 {
		return nil, ErrInvalidRoomName
	}
	room := models.Room{ID: uuid.NewString(), Name: name}
	member := newMember(room.ID, owner, true, s.now())
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&room).Error; err != nil {
			return err
		}
		return tx.Omit(clause.Associations).Create(&member).Error
	})
	if err != nil {
		return nil, fmt.Errorf("create room: %w", err)
	}
	return &RoomDTO{ID: room.ID, Name: room.Name, PhotoURL: room.PhotoURL, IsAdmin: true, JoinedAt: member.JoinedAt}, nil
}

// Get 按 ID 读取房间。
func (s *RoomService) Get(ctx context.Context, roomID string) (*models.Room, error) {
	if roomID == "" {
		return nil, ErrRoomNotFound
	}
	var room models.Room
	if err := s.db.WithContext(ctx).First(&room, "id = ?", roomID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrRoomNotFound
		}
		return nil, err
	}
	return &room, nil
}

// Member 返回用户在房间中的成员记录，不是成员时返回 ErrNotMember。
func (s *RoomService) Member(ctx context.Context, roomID, userID string) (*models.RoomMember, error) {
	if roomID == "" || userID == "" {
		return nil, ErrNotMember
	}
	var m models.RoomMember
	err := s.db.WithContext(ctx).Where("room_id = ? AND user_id = ?", roomID, userID).First(&m).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotMember
		}
		return nil, err
	}
	return &m, nil
}

// Members 返回房间全部成员，按 user_id 索引。
func (s *RoomService) Members(ctx context.Context, roomID string) (map[string]models.RoomMember, error) {
	var rows []models.RoomMember
	if err := s.db.WithContext(ctx).Where("room_id = ?", roomID).Find(&rows).Error; err != nil {
		return nil, err
	}
	out := make(map[string]models.RoomMember, len(rows))
	for _, m := range rows {
		out[m.UserID] = m
	}
	return out, nil
}

// AddMember 以单行插入的方式加入成员；已是成员时保持原记录不变。
// 房间不存在时外键约束使插入失败。
func (s *RoomService) AddMember(ctx context.Context, roomID string, user identity.Claims, isAdmin bool) error {
	m := newMember(roomID, user, isAdmin, s.now())
	return s.db.WithContext(ctx).
		Omit(clause.Associations).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(&m).Error
}

// ListForUser 返回用户加入的房间，最近加入的在前。
func (s *RoomService) ListForUser(ctx context.Context, userID string, limit int) ([]RoomDTO, error) {
	if limit <= 0 || limit > 200 {
		limit = 100
	}
	var out []RoomDTO
	err := s.db.WithContext(ctx).
		Table("room_members AS m").
		Select("r.id AS id, r.name AS name, r.photo_url AS photo_url, m.is_admin AS is_admin, m.joined_at AS joined_at").
		Joins("JOIN rooms AS r ON r.id = m.room_id").
		Where("m.user_id = ?", userID).
		Order("m.joined_at DESC").
		Limit(limit).
		Scan(&out).Error
	if err != nil {
		return nil, err
	}
	if out == nil {
		out = []RoomDTO{}
	}
	return out, nil
}

// Delete 由管理员拆除房间：先分批删除消息，再在事务中删除成员和房间。
func (s *RoomService) Delete(ctx context.Context, roomID, userID string) error {
	m, err := s.Member(ctx, roomID, userID)
	if err != nil {
		if errors.Is(err, ErrNotMember) {
			return ErrRoomNotFound
		}
		return err
	}
	if !m.IsAdmin {
		return ErrNotAdmin
	}

	gdb := s.db.WithContext(ctx)
	for {
		var ids []string
		if err := gdb.Model(&models.Message{}).Where("room_id = ?", roomID).Limit(DeleteBatchSize).Pluck("id", &ids).Error; err != nil {
			return fmt.Errorf("list room messages: %w", err)
		}
		if len(ids) == 0 {
			break
		}
		if err := gdb.Where("id IN ?", ids).Delete(&models.Message{}).Error; err != nil {
			return fmt.Errorf("delete room messages: %w", err)
		}
		if len(ids) < DeleteBatchSize {
			break
		}
	}

	return gdb.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("room_id = ?", roomID).Delete(&models.RoomMember{}).Error; err != nil {
			return err
		}
		return tx.Where("id = ?", roomID).Delete(&models.Room{}).Error
	})
}

func newMember(roomID string, user identity.Claims, isAdmin bool, now time.Time) models.RoomMember {
	return models.RoomMember{
		RoomID:   roomID,
		UserID:   user.Subject,
		Name:     user.Name,
		PhotoURL: user.Picture,
		IsAdmin:  isAdmin,
		JoinedAt: now.UTC(),
	}
}
