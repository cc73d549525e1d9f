package models

import "time"

type Room struct {
	ID        string `gorm:"primaryKey;size:36"`
	Name      string `gorm:"size:128;not null"`
	PhotoURL  string `gorm:"size:512"`
	CreatedAt time.Time
	UpdatedAt time.Time
}

// RoomMember 是房间成员表中的一行，(RoomID, UserID) 唯一。
type RoomMember struct {
	RoomID   string    `gorm:"primaryKey;size:36"`
	UserID   string    `gorm:"primaryKey;size:128;index"`
	Name     string    `gorm:"size:256"`
	PhotoURL string    `gorm:"size:512"`
	IsAdmin  bool      `gorm:"not null;default:false"`
	JoinedAt time.Time `gorm:"not null"`
	Room     Room      `gorm:"foreignKey:RoomID;constraint:OnDelete:CASCADE"`
}

type Message struct {
	ID        string    `gorm:"primaryKey;size:36"`
	RoomID    string    `gorm:"index:idx_msg_room_created;size:36;not null"`
	UserID    string    `gorm:"index;size:128;not null"`
	Content   string    `gorm:"type:text;not null"`
	PhotoURL  string    `gorm:"size:512"`
	CreatedAt time.Time `gorm:"index:idx_msg_room_created"`
	Room      Room      `gorm:"foreignKey:RoomID;constraint:OnDelete:CASCADE"`
}
