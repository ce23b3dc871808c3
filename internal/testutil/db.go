// Package testutil 提供测试共用的内存数据库与用户夹具。
package testutil

import (
	"fmt"
	"testing"

	"moringadaily/internal/auth"
	"moringadaily/internal/db"
	"moringadaily/internal/models"

	"github.com/google/uuid"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

// NewDB 打开一个独立的内存 SQLite 并完成迁移。单连接避免 SQLite 的表锁冲突。
func NewDB(t testing.TB) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared&_busy_timeout=5000", uuid.NewString())
	gdb, err := gorm.Open(sqlite.Open(dsn), db.Options())
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	sqlDB, err := gdb.DB()
	if err != nil {
		t.Fatalf("sqlite handle: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })
	if err := db.Migrate(gdb); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return gdb
}

// CreateUser 插入一个可登录的普通用户，密码固定为 "password"。
func CreateUser(t testing.TB, gdb *gorm.DB, username string) models.User {
	t.Helper()
	hash, err := auth.HashPassword("password")
	if err != nil {
		t.Fatalf("hash password: %v", err)
	}
	u := models.User{Username: username, Email: username + "@example.com", PasswordHash: hash, Role: models.RoleStandard, Active: true}
	if err := gdb.Create(&u).Error; err != nil {
		t.Fatalf("create user %s: %v", username, err)
	}
	return u
}

// CreateAdmin 插入一个管理员用户。
func CreateAdmin(t testing.TB, gdb *gorm.DB, username string) models.User {
	t.Helper()
	u := CreateUser(t, gdb, username)
	if err := gdb.Model(&u).Update("role", models.RoleAdmin).Error; err != nil {
		t.Fatalf("promote %s: %v", username, err)
	}
	u.Role = models.RoleAdmin
	return u
}

// CreateContent 插入一条已审核的内容及其分类。
func CreateContent(t testing.TB, gdb *gorm.DB, authorID uint, title string) models.Content {
	t.Helper()
	cat := models.Category{Name: "cat-" + uuid.NewString()[:8]}
	if err := gdb.Create(&cat).Error; err != nil {
		t.Fatalf("create category: %v", err)
	}
	c := models.Content{Title: title, Body: title + " body", Type: models.ContentArticle, CategoryID: cat.ID, AuthorID: authorID, Approved: true}
	if err := gdb.Create(&c).Error; err != nil {
		t.Fatalf("create content: %v", err)
	}
	return c
}
