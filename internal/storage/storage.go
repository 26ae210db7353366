// Package storage persists interview sessions, turns and the question bank
// in Postgres via GORM.
package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// Postgres error codes the repository cares about.
const (
	pgErrUniqueViolation     = "23505"
	pgErrForeignKeyViolation = "23503"
	pgErrConnectionFailure   = "08006"
)

const (
	connectAttempts = 10
	connectBackoff  = 2 * time.Second
)

// Connect opens the database, retrying while Postgres comes up. Containers
// routinely win the race against the database, so a fixed retry loop beats
// failing the whole process on the first refused connection.
func Connect(ctx context.Context, dsn string, log *zap.Logger) (*gorm.DB, error) {
	var lastErr error
	for attempt := 1; attempt <= connectAttempts; attempt++ {
		db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
			Logger: gormlogger.Default.LogMode(gormlogger.Silent),
		})
		if err == nil {
			log.Info("connected to postgres", zap.Int("attempt", attempt))
			return db, nil
		}

		lastErr = err
		log.Warn("postgres connection failed",
			zap.Int("attempt", attempt),
			zap.Error(err),
		)

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(connectBackoff):
		}
	}
	return nil, fmt.Errorf("connecting to postgres after %d attempts: %w", connectAttempts, lastErr)
}

// Migrate creates or updates the schema for all persisted models.
func Migrate(db *gorm.DB) error {
	if err := db.AutoMigrate(&SessionRow{}, &TurnRow{}, &QuestionRow{}); err != nil {
		return fmt.Errorf("migrating schema: %w", err)
	}
	return nil
}

// dbError annotates a database failure with the Postgres error code when
// one is available. Sentinel errors pass through untouched so callers can
// keep matching with errors.Is.
func dbError(op string, err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return fmt.Errorf("%s: %s (pg code %s)", op, pgErr.Message, pgErr.Code)
	}
	return fmt.Errorf("%s: %w", op, err)
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == pgErrUniqueViolation
}
