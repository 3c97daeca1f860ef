package postgres

import (
	"database/sql"
	"fmt"

	"github.com/ds124wfegd/notification-engine/config"

	_ "github.com/lib/pq"
	"github.com/sirupsen/logrus"
)

func NewPostgresDB(cfg *config.DatabaseConfig) (*sql.DB, error) {
	connStr := fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		cfg.Host, cfg.Port, cfg.User, cfg.Password, cfg.DBName, cfg.SSLMode,
	)

	db, err := sql.Open("postgres", connStr)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	db.SetMaxOpenConns(cfg.MaxOpenConns)
	db.SetMaxIdleConns(cfg.MaxIdleConns)
	db.SetConnMaxLifetime(cfg.ConnMaxLifetime)

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	logrus.Info("Successfully connected to PostgreSQL")
	return db, nil
}

func RunMigrations(db *sql.DB) error {
	migrations := []string{
		`CREATE TABLE IF NOT EXISTS notifications (
			id UUID PRIMARY KEY,
			target_type VARCHAR(10) NOT NULL,
			target_id VARCHAR(255),
			title VARCHAR(255) NOT NULL,
			message TEXT NOT NULL,
			category VARCHAR(100),
			link TEXT,
			priority VARCHAR(10) NOT NULL,
			metadata JSONB,
			repeat_interval_minutes INTEGER NOT NULL DEFAULT 0,
			max_repeats INTEGER NOT NULL DEFAULT 0,
			repeat_count INTEGER NOT NULL DEFAULT 0,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			expires_at TIMESTAMPTZ,
			expired BOOLEAN NOT NULL DEFAULT FALSE,
			CHECK (repeat_count <= max_repeats),
			CHECK (expires_at IS NULL OR expires_at > created_at)
		)`,

		`CREATE TABLE IF NOT EXISTS notification_receipts (
			notification_id UUID NOT NULL REFERENCES notifications(id),
			user_id VARCHAR(255) NOT NULL,
			is_read BOOLEAN NOT NULL DEFAULT FALSE,
			read_at TIMESTAMPTZ,
			acknowledged BOOLEAN NOT NULL DEFAULT FALSE,
			acknowledged_at TIMESTAMPTZ,
			PRIMARY KEY (notification_id, user_id)
		)`,

		`CREATE INDEX IF NOT EXISTS idx_notifications_target
			ON notifications (target_type, target_id)`,

		`CREATE INDEX IF NOT EXISTS idx_notifications_expires
			ON notifications (expires_at) WHERE NOT expired`,
	}

	for _, migration := range migrations {
		if _, err := db.Exec(migration); err != nil {
			return fmt.Errorf("failed to run migration: %w", err)
		}
	}

	logrus.Info("Database migrations completed")
	return nil
}
