package services

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"testing"
	"time"
	_ "time/tzdata"

	"lucremais-task/models"

	"github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	require.NoError(t, db.AutoMigrate(models.All()...))
	return db
}

// setupConcurrentDB opens a file-backed SQLite in WAL mode with several
// connections, so transactions from different goroutines really overlap and
// are ordered by the database's own write lock.
func setupConcurrentDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := filepath.Join(t.TempDir(), "ledger.db") + "?_pragma=journal_mode(WAL)&_pragma=busy_timeout(10000)&_txlock=immediate"
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(8)
	t.Cleanup(func() { _ = sqlDB.Close() })

	require.NoError(t, db.AutoMigrate(models.All()...))
	return db
}

// recordingNotifier keeps every message instead of sending it.
type recordingNotifier struct {
	mu   sync.Mutex
	msgs []sentMessage
}

type sentMessage struct {
	userID int64
	text   string
}

func (n *recordingNotifier) Notify(userID int64, text string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.msgs = append(n.msgs, sentMessage{userID, text})
}

func (n *recordingNotifier) For(userID int64) []string {
	n.mu.Lock()
	defer n.mu.Unlock()
	var out []string
	for _, m := range n.msgs {
		if m.userID == userID {
			out = append(out, m.text)
		}
	}
	return out
}

// fixedClock returns a Clock pinned to the given local time in São Paulo.
func fixedClock(t *testing.T, value string) *Clock {
	t.Helper()
	loc, err := time.LoadLocation("America/Sao_Paulo")
	require.NoError(t, err)
	now, err := time.ParseInLocation("2006-01-02 15:04", value, loc)
	require.NoError(t, err)
	c := NewClock(loc)
	c.now = func() time.Time { return now }
	return c
}

func mustAccount(t *testing.T, db *gorm.DB, userID int64, name string) *models.Account {
	t.Helper()
	acc, err := NewAccountService(db).GetOrCreate(context.Background(), userID, name)
	require.NoError(t, err)
	return acc
}

func setPoints(t *testing.T, db *gorm.DB, userID, points int64, vip bool) {
	t.Helper()
	require.NoError(t, db.Model(&models.Account{}).Where("user_id = ?", userID).
		Updates(map[string]interface{}{"points": points, "vip": vip}).Error)
}

func mustTask(t *testing.T, db *gorm.DB, title, schedule string, points int64) *models.Task {
	t.Helper()
	task, err := NewCatalogService(db).CreateTask(context.Background(), CreateTaskInput{
		Title:    title,
		Link:     "https://t.me/lucremais/1",
		Schedule: schedule,
		Points:   points,
	})
	require.NoError(t, err)
	return task
}

func countEntries(t *testing.T, db *gorm.DB, userID int64) int64 {
	t.Helper()
	var n int64
	require.NoError(t, db.Model(&models.BalanceEntry{}).Where("user_id = ?", userID).Count(&n).Error)
	return n
}

// completeOnce records one completion of a fresh task for userID without
// touching referrals.
func completeOnce(t *testing.T, db *gorm.DB, userID int64) {
	t.Helper()
	task := mustTask(t, db, fmt.Sprintf("Tarefa %s", uuid.NewString()[:8]), "any", 10)
	_, err := NewCompletionService(db, nil).RecordCompletion(context.Background(), userID, task.ID, "2025-03-03", 0, "")
	require.NoError(t, err)
}
