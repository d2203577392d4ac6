package db

import (
	"github.com/go-gormigrate/gormigrate/v2"
	"gorm.io/gorm"
)

// runMigrations runs all database migrations using gormigrate.
func runMigrations(db *gorm.DB) error {
	m := gormigrate.New(db, gormigrate.DefaultOptions, []*gormigrate.Migration{
		// Migration 001: session index and replay documents
		{
			ID: "001_sessions_replays",
			Migrate: func(tx *gorm.DB) error {
				if err := tx.AutoMigrate(&Session{}); err != nil {
					return err
				}
				return tx.AutoMigrate(&Replay{})
			},
			Rollback: func(tx *gorm.DB) error {
				return tx.Migrator().DropTable("sessions", "replays")
			},
		},

		// Migration 002: flattened insights
		{
			ID: "002_insights",
			Migrate: func(tx *gorm.DB) error {
				return tx.AutoMigrate(&InsightRow{})
			},
			Rollback: func(tx *gorm.DB) error {
				return tx.Migrator().DropTable("insights")
			},
		},

		// Migration 003: FTS5 virtual table for insight statements
		{
			ID: "003_insights_fts",
			Migrate: func(tx *gorm.DB) error {
				sqls := []string{
					`CREATE VIRTUAL TABLE IF NOT EXISTS insights_fts USING fts5(
						subject, statement,
						content='insights',
						content_rowid='id'
					)`,
					`CREATE TRIGGER IF NOT EXISTS insights_ai AFTER INSERT ON insights BEGIN
						INSERT INTO insights_fts(rowid, subject, statement)
						VALUES (new.id, new.subject, new.statement);
					END`,
					`CREATE TRIGGER IF NOT EXISTS insights_ad AFTER DELETE ON insights BEGIN
						INSERT INTO insights_fts(insights_fts, rowid, subject, statement)
						VALUES('delete', old.id, old.subject, old.statement);
					END`,
					`CREATE TRIGGER IF NOT EXISTS insights_au AFTER UPDATE ON insights BEGIN
						INSERT INTO insights_fts(insights_fts, rowid, subject, statement)
						VALUES('delete', old.id, old.subject, old.statement);
						INSERT INTO insights_fts(rowid, subject, statement)
						VALUES (new.id, new.subject, new.statement);
					END`,
				}
				for _, s := range sqls {
					if err := tx.Exec(s).Error; err != nil {
						return err
					}
				}
				return nil
			},
			Rollback: func(tx *gorm.DB) error {
				sqls := []string{
					"DROP TRIGGER IF EXISTS insights_au",
					"DROP TRIGGER IF EXISTS insights_ad",
					"DROP TRIGGER IF EXISTS insights_ai",
					"DROP TABLE IF EXISTS insights_fts",
				}
				for _, s := range sqls {
					if err := tx.Exec(s).Error; err != nil {
						return err
					}
				}
				return nil
			},
		},
	})

	return m.Migrate()
}
