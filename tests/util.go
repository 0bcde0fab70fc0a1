package testutil

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/trezcool/markalloc/core"
	"github.com/trezcool/markalloc/core/allocation"
	"github.com/trezcool/markalloc/storage/database"
)

func CreateSemester(t *testing.T, repo allocation.Repository, name string, limit int, isCurrent bool) allocation.Semester {
	tstamp := time.Now().UTC().Truncate(time.Microsecond)
	sem, err := repo.CreateSemester(context.Background(), allocation.Semester{
		ID:             uuid.New().String(),
		Name:           name,
		TotalMarkLimit: limit,
		IsCurrent:      isCurrent,
		CreatedAt:      tstamp,
		UpdatedAt:      tstamp,
	})
	if err != nil {
		t.Fatalf("createSemester() failed: %v", err)
	}
	return sem
}

func CreateContent(
	t *testing.T,
	repo allocation.Repository,
	semesterID, title string,
	ctype allocation.ContentType,
	marks int,
) allocation.ContentAllocation {
	content, err := repo.CreateContent(context.Background(), semesterID, allocation.ContentAllocation{
		ContentID:      uuid.New().String(),
		ContentTitle:   title,
		ContentType:    ctype,
		AllocatedMarks: marks,
	})
	if err != nil {
		t.Fatalf("createContent() failed: %v", err)
	}
	return content
}

// PrepareDB opens a migrated in-memory sqlite3 database, closed when the test ends.
func PrepareDB(t *testing.T) *sqlx.DB {
	conf := &core.Config{
		Database: core.DatabaseConfig{
			Engine: core.EngineSQLite,
			DSN:    fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.New().String()),
		},
	}
	db, err := database.Open(conf)
	if err != nil {
		t.Fatalf("prepareDB() failed: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	if err = database.Migrate(db); err != nil {
		t.Fatalf("prepareDB() failed: %v", err)
	}
	return db
}

// Log levels recorded by Logger.
const (
	LevelDebug = "debug"
	LevelInfo  = "info"
	LevelWarn  = "warn"
	LevelError = "error"
	LevelFatal = "fatal"
)

type LogEntry struct {
	Level string
	Msg   string
	Args  []interface{}
}

// Logger is a core.Logger that records entries for assertions.
type Logger struct {
	mu      sync.Mutex
	entries []LogEntry
}

var _ core.Logger = (*Logger)(nil)

func NewLogger() *Logger {
	return &Logger{}
}

func (l *Logger) log(level, msg string, args []interface{}) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.entries = append(l.entries, LogEntry{Level: level, Msg: msg, Args: args})
}

// Entries returns the recorded entries of the given level, or all of them when level is empty.
func (l *Logger) Entries(level string) []LogEntry {
	l.mu.Lock()
	defer l.mu.Unlock()

	var entries []LogEntry
	for _, e := range l.entries {
		if level == "" || e.Level == level {
			entries = append(entries, e)
		}
	}
	return entries
}

func (l *Logger) Debug(msg string, args ...interface{}) { l.log(LevelDebug, msg, args) }
func (l *Logger) Info(msg string, args ...interface{})  { l.log(LevelInfo, msg, args) }
func (l *Logger) Warn(msg string, args ...interface{})  { l.log(LevelWarn, msg, args) }
func (l *Logger) Error(msg string, args ...interface{}) { l.log(LevelError, msg, args) }
func (l *Logger) Fatal(msg string, args ...interface{}) { l.log(LevelFatal, msg, args) }
