// Package journal keeps a local SQLite history of resolved scans
package journal

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/thevladbog/idento-sub000/internal/checkin"
	"github.com/thevladbog/idento-sub000/internal/model"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// DefaultLimit is used by Recent when limit <= 0
const DefaultLimit = 50

// Entry is one journal row
type Entry struct {
	ID         uint      `gorm:"primaryKey" json:"id"`
	SessionID  string    `gorm:"index;size:64" json:"session_id"`
	EventID    string    `gorm:"index;size:64" json:"event_id"`
	Code       string    `gorm:"size:255" json:"code"`
	AttendeeID string    `gorm:"size:64" json:"attendee_id,omitempty"`
	Status     string    `gorm:"size:16" json:"status"`
	Message    string    `json:"message"`
	At         time.Time `gorm:"index" json:"at"`
}

func (Entry) TableName() string { return "checkin_journal" }

// Journal implements checkin.Recorder
type Journal struct {
	db *gorm.DB
}

var _ checkin.Recorder = (*Journal)(nil)

// Open opens or creates the journal database at path
func Open(path string) (*Journal, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create journal dir: %w", err)
		}
	}

	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open journal: %w", err)
	}

	if err := db.AutoMigrate(&Entry{}); err != nil {
		return nil, fmt.Errorf("failed to migrate journal: %w", err)
	}

	return &Journal{db: db}, nil
}

// Record appends a resolved scan
func (j *Journal) Record(ctx context.Context, rec checkin.Record) error {
	entry := Entry{
		SessionID:  rec.SessionID,
		EventID:    string(rec.EventID),
		Code:       rec.Code,
		AttendeeID: string(rec.AttendeeID),
		Status:     string(rec.Status),
		Message:    rec.Message,
		At:         rec.At,
	}
	return j.db.WithContext(ctx).Create(&entry).Error
}

// Recent returns the newest entries first. An empty eventID matches all
// events.
func (j *Journal) Recent(ctx context.Context, eventID model.ID, limit int) ([]Entry, error) {
	if limit <= 0 {
		limit = DefaultLimit
	}

	q := j.db.WithContext(ctx).Order("at DESC, id DESC").Limit(limit)
	if eventID != "" {
		q = q.Where("event_id = ?", string(eventID))
	}

	var entries []Entry
	if err := q.Find(&entries).Error; err != nil {
		return nil, err
	}
	return entries, nil
}

// Counts returns the number of entries per status for an event
func (j *Journal) Counts(ctx context.Context, eventID model.ID) (map[checkin.Status]int, error) {
	var rows []struct {
		Status string
		N      int
	}
	err := j.db.WithContext(ctx).Model(&Entry{}).
		Select("status, count(*) as n").
		Where("event_id = ?", string(eventID)).
		Group("status").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}

	counts := make(map[checkin.Status]int, len(rows))
	for _, r := range rows {
		counts[checkin.Status(r.Status)] = r.N
	}
	return counts, nil
}

// Close closes the database
func (j *Journal) Close() error {
	sqlDB, err := j.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
