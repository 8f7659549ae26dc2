package services

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/cppla/ephembbs/models"
)

type testClock struct {
	t time.Time
}

func (c *testClock) Now() time.Time { return c.t }

func (c *testClock) Advance(d time.Duration) { c.t = c.t.Add(d) }

type fakePublisher struct {
	channels []string
}

func (p *fakePublisher) Publish(_ context.Context, channel string, _ []byte) error {
	p.channels = append(p.channels, channel)
	return nil
}

func openTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dir := t.TempDir()
	db, err := gorm.Open(sqlite.Open(filepath.Join(dir, "test.sqlite")), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(models.All()...))
	return db
}

func newTestEngine(t *testing.T, opts ...Option) (*Engine, *testClock) {
	t.Helper()
	clock := &testClock{t: time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)}
	cfg := DefaultConfig()
	cfg.SweepOnRead = false
	e := New(openTestDB(t), cfg, append([]Option{WithClock(clock.Now)}, opts...)...)
	return e, clock
}

func mkUser(t *testing.T, e *Engine, name, role string) Actor {
	t.Helper()
	u := models.User{Username: name, PasswordHash: "x", Role: role}
	require.NoError(t, e.db.Create(&u).Error)
	return Actor{UserID: u.ID, Username: u.Username, Role: u.Role}
}

func mkPost(t *testing.T, e *Engine, author Actor, body string) *models.Content {
	t.Helper()
	c, err := e.CreateContent(context.Background(), author, CreateContentInput{Body: body})
	require.NoError(t, err)
	return c
}

func countNotifications(t *testing.T, e *Engine, userID uint, kind string) int64 {
	t.Helper()
	var n int64
	require.NoError(t, e.db.Model(&models.Notification{}).Where("user_id = ? AND kind = ?", userID, kind).Count(&n).Error)
	return n
}

func uintPtr(v uint) *uint { return &v }
