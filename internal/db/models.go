package db

import (
	"database/sql"
	"time"

	"gorm.io/gorm"
)

// Session is one indexed coding session. The row carries the summary
// numbers the list endpoints need; the full replay JSON lives in the
// Replay table.
type Session struct {
	ID        int64  `gorm:"primaryKey;autoIncrement"`
	SessionID string `gorm:"uniqueIndex;not null"`
	Project   string `gorm:"index;not null"`
	Status    string `gorm:"type:text;check:status IN ('active', 'completed', 'analyzed');default:'active';index"`

	EventCount      int     `gorm:"default:0"`
	ErrorCount      int     `gorm:"default:0"`
	CodeChanges     int     `gorm:"default:0"`
	PhaseCount      int     `gorm:"default:0"`
	InsightCount    int     `gorm:"default:0"`
	DurationSeconds float64 `gorm:"type:real;default:0"`

	StartedAt        string `gorm:"not null"`
	StartedAtEpoch   int64  `gorm:"index:idx_sessions_started,sort:desc;not null"`
	CompletedAt      sql.NullString
	CompletedAtEpoch sql.NullInt64
	AnalyzedAtEpoch  sql.NullInt64
}

func (Session) TableName() string { return "sessions" }

// BeforeCreate hook to ensure timestamps are set.
func (s *Session) BeforeCreate(tx *gorm.DB) error {
	if s.StartedAtEpoch == 0 {
		s.StartedAtEpoch = time.Now().UnixMilli()
	}
	if s.StartedAt == "" {
		s.StartedAt = time.Now().Format(time.RFC3339)
	}
	if s.Status == "" {
		s.Status = "active"
	}
	return nil
}

// Replay holds the finished replay document for one session.
type Replay struct {
	ID              int64  `gorm:"primaryKey;autoIncrement"`
	SessionID       string `gorm:"uniqueIndex;not null"`
	Project         string `gorm:"index;not null"`
	Data            string `gorm:"type:text;not null"`
	AnalyzedAtEpoch int64  `gorm:"not null"`
}

func (Replay) TableName() string { return "replays" }

// BeforeCreate hook to ensure the analysis timestamp is set.
func (r *Replay) BeforeCreate(tx *gorm.DB) error {
	if r.AnalyzedAtEpoch == 0 {
		r.AnalyzedAtEpoch = time.Now().UnixMilli()
	}
	return nil
}

// InsightRow is one insight flattened out of a replay, indexed so
// wisdom queries and searches avoid parsing every replay document.
type InsightRow struct {
	ID             int64   `gorm:"primaryKey;autoIncrement"`
	SessionID      string  `gorm:"index;not null"`
	Project        string  `gorm:"index;not null"`
	Category       string  `gorm:"type:text;check:category IN ('hotspot', 'rhythm', 'difficulty', 'familiarity', 'other');index;not null"`
	Subject        string  `gorm:"index"`
	Statement      string  `gorm:"type:text;not null"`
	Metric         float64 `gorm:"type:real;default:0"`
	SessionEpoch   int64   `gorm:"index:idx_insights_session_epoch,sort:desc;not null"`
	CreatedAtEpoch int64   `gorm:"not null"`
}

func (InsightRow) TableName() string { return "insights" }

// BeforeCreate hook to ensure the creation timestamp is set.
func (i *InsightRow) BeforeCreate(tx *gorm.DB) error {
	if i.CreatedAtEpoch == 0 {
		i.CreatedAtEpoch = time.Now().UnixMilli()
	}
	return nil
}
