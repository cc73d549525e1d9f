package db

import (
	"strings"
	"time"

	"roomchat/internal/models"

	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

const sqlitePrefix = "sqlite:"

// open 根据 DSN 选择驱动：以 sqlite: 开头的走 SQLite，其余走 Postgres。
func open(dsn string) gorm.Dialector {
	if strings.HasPrefix(dsn, sqlitePrefix) {
		return sqlite.Open(sqliteDSN(strings.TrimPrefix(dsn, sqlitePrefix)))
	}
	return postgres.Open(dsn)
}

// sqliteDSN 确保连接池里每个新连接都打开外键检查；SQLite 的 PRAGMA 只作用于单个连接。
func sqliteDSN(dsn string) string {
	if strings.Contains(dsn, "_foreign_keys=") || strings.Contains(dsn, "_fk=") {
		return dsn
	}
	if strings.Contains(dsn, "?") {
		return dsn + "&_foreign_keys=on"
	}
	return dsn + "?_foreign_keys=on"
}

// Connect 建立数据库连接，Postgres 下带简单重试等待容器就绪。
func Connect(dsn string) (*gorm.DB, error) {
	var gdb *gorm.DB
	var err error
	attempts := 10
	if strings.HasPrefix(dsn, sqlitePrefix) {
		attempts = 1
	}
	for i := 0; i < attempts; i++ {
		gdb, err = gorm.Open(open(dsn), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
		if err == nil {
			sqlDB, err2 := gdb.DB()
			if err2 == nil {
				sqlDB.SetMaxIdleConns(5)
				sqlDB.SetMaxOpenConns(20)
				sqlDB.SetConnMaxLifetime(time.Hour)
				if strings.HasPrefix(dsn, sqlitePrefix) {
					sqlDB.SetMaxOpenConns(1)
				}
				return gdb, nil
			}
			err = err2
		}
		time.Sleep(time.Duration(500+i*200) * time.Millisecond)
	}
	return nil, err
}

func Migrate(gdb *gorm.DB) error {
	return gdb.AutoMigrate(&models.Room{}, &models.RoomMember{}, &models.Message{})
}
