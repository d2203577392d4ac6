package db

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	json "github.com/goccy/go-json"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/thebtf/vibe-replay/pkg/models"
)

// EnsureSession creates the session row on first contact. Subsequent
// calls for the same id are no-ops.
func (s *Store) EnsureSession(ctx context.Context, sessionID, project string) error {
	now := time.Now()
	session := &Session{
		SessionID:      sessionID,
		Project:        project,
		Status:         "active",
		StartedAt:      now.Format(time.RFC3339),
		StartedAtEpoch: now.UnixMilli(),
	}
	return s.DB.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "session_id"}},
			DoNothing: true,
		}).
		Create(session).Error
}

// RecordEvent bumps the session's event counter.
func (s *Store) RecordEvent(ctx context.Context, sessionID string) error {
	return s.DB.WithContext(ctx).
		Model(&Session{}).
		Where("session_id = ?", sessionID).
		UpdateColumn("event_count", gorm.Expr("event_count + 1")).Error
}

// CompleteSession marks a session finished so the scheduler picks it
// up for analysis.
func (s *Store) CompleteSession(ctx context.Context, sessionID string) error {
	now := time.Now()
	result := s.DB.WithContext(ctx).
		Model(&Session{}).
		Where("session_id = ? AND status = ?", sessionID, "active").
		Updates(map[string]any{
			"status":             "completed",
			"completed_at":       sql.NullString{String: now.Format(time.RFC3339), Valid: true},
			"completed_at_epoch": sql.NullInt64{Int64: now.UnixMilli(), Valid: true},
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return fmt.Errorf("session %s not found or not active", sessionID)
	}
	return nil
}

// PendingSessions returns sessions completed but not yet analyzed.
func (s *Store) PendingSessions(ctx context.Context) ([]Session, error) {
	var sessions []Session
	err := s.DB.WithContext(ctx).
		Where("status = ?", "completed").
		Order("completed_at_epoch ASC").
		Find(&sessions).Error
	return sessions, err
}

// SaveReplay stores the finished replay and updates the session row.
// Re-analysis replaces the previous replay and its insight rows in one
// transaction.
func (s *Store) SaveReplay(ctx context.Context, replay *models.SessionReplay) error {
	data, err := json.Marshal(replay)
	if err != nil {
		return fmt.Errorf("marshal replay: %w", err)
	}

	now := time.Now().UnixMilli()
	sessionEpoch := replay.EndTime().UnixMilli()
	if replay.EndTime().IsZero() {
		sessionEpoch = now
	}

	return s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		row := &Replay{
			SessionID:       replay.SessionID,
			Project:         replay.Project,
			Data:            string(data),
			AnalyzedAtEpoch: now,
		}
		if err := tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "session_id"}},
			UpdateAll: true,
		}).Create(row).Error; err != nil {
			return err
		}

		if err := tx.Where("session_id = ?", replay.SessionID).
			Delete(&InsightRow{}).Error; err != nil {
			return err
		}
		for _, in := range replay.Insights {
			insight := &InsightRow{
				SessionID:    replay.SessionID,
				Project:      replay.Project,
				Category:     string(in.Category),
				Subject:      in.Subject,
				Statement:    in.Statement,
				Metric:       in.Metric,
				SessionEpoch: sessionEpoch,
			}
			if err := tx.Create(insight).Error; err != nil {
				return err
			}
		}

		stats := replay.Statistics
		return tx.Model(&Session{}).
			Where("session_id = ?", replay.SessionID).
			Updates(map[string]any{
				"status":            "analyzed",
				"event_count":       stats.TotalEvents,
				"error_count":       stats.ErrorCount,
				"code_changes":      stats.CodeChanges,
				"phase_count":       len(replay.Phases),
				"insight_count":     len(replay.Insights),
				"duration_seconds":  stats.DurationSeconds,
				"analyzed_at_epoch": sql.NullInt64{Int64: now, Valid: true},
			}).Error
	})
}

// GetReplay loads a stored replay. Returns nil without error when the
// session has not been analyzed.
func (s *Store) GetReplay(ctx context.Context, sessionID string) (*models.SessionReplay, error) {
	var row Replay
	err := s.DB.WithContext(ctx).
		Where("session_id = ?", sessionID).
		First(&row).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, err
	}

	var replay models.SessionReplay
	if err := json.Unmarshal([]byte(row.Data), &replay); err != nil {
		return nil, fmt.Errorf("parse stored replay: %w", err)
	}
	return &replay, nil
}

// AllReplays loads every stored replay, optionally filtered by
// project. Feeds the wisdom aggregator.
func (s *Store) AllReplays(ctx context.Context, project string) ([]*models.SessionReplay, error) {
	query := s.DB.WithContext(ctx).Model(&Replay{})
	if project != "" {
		query = query.Where("project = ?", project)
	}

	var rows []Replay
	if err := query.Order("analyzed_at_epoch ASC").Find(&rows).Error; err != nil {
		return nil, err
	}

	replays := make([]*models.SessionReplay, 0, len(rows))
	for _, row := range rows {
		var replay models.SessionReplay
		if err := json.Unmarshal([]byte(row.Data), &replay); err != nil {
			continue // one corrupt document must not sink the corpus
		}
		replays = append(replays, &replay)
	}
	return replays, nil
}

// ListSessions returns session rows newest first.
func (s *Store) ListSessions(ctx context.Context, project string, limit int) ([]Session, error) {
	if limit <= 0 {
		limit = 50
	}
	query := s.DB.WithContext(ctx).Model(&Session{})
	if project != "" {
		query = query.Where("project = ?", project)
	}

	var sessions []Session
	err := query.Order("started_at_epoch DESC").Limit(limit).Find(&sessions).Error
	return sessions, err
}

// GetSession looks up one session row.
func (s *Store) GetSession(ctx context.Context, sessionID string) (*Session, error) {
	var session Session
	err := s.DB.WithContext(ctx).
		Where("session_id = ?", sessionID).
		First(&session).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, err
	}
	return &session, nil
}

// DeleteSession removes a session, its replay, and its insights.
func (s *Store) DeleteSession(ctx context.Context, sessionID string) error {
	return s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("session_id = ?", sessionID).Delete(&InsightRow{}).Error; err != nil {
			return err
		}
		if err := tx.Where("session_id = ?", sessionID).Delete(&Replay{}).Error; err != nil {
			return err
		}
		return tx.Where("session_id = ?", sessionID).Delete(&Session{}).Error
	})
}

// SearchInsights runs an FTS5 MATCH over insight subjects and
// statements, newest sessions first.
func (s *Store) SearchInsights(ctx context.Context, query string, limit int) ([]InsightRow, error) {
	if limit <= 0 {
		limit = 20
	}

	rows, err := s.sqlDB.QueryContext(ctx, `
		SELECT i.id, i.session_id, i.project, i.category, i.subject,
		       i.statement, i.metric, i.session_epoch, i.created_at_epoch
		FROM insights i
		JOIN insights_fts f ON f.rowid = i.id
		WHERE insights_fts MATCH ?
		ORDER BY i.session_epoch DESC
		LIMIT ?`, query, limit)
	if err != nil {
		return nil, fmt.Errorf("search insights: %w", err)
	}
	defer rows.Close()

	var results []InsightRow
	for rows.Next() {
		var r InsightRow
		if err := rows.Scan(&r.ID, &r.SessionID, &r.Project, &r.Category,
			&r.Subject, &r.Statement, &r.Metric, &r.SessionEpoch, &r.CreatedAtEpoch); err != nil {
			return nil, err
		}
		results = append(results, r)
	}
	return results, rows.Err()
}
