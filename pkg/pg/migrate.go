package pg

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"sync"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"
)

// MigrationLogger receives goose output. *slog.Logger satisfies it.
type MigrationLogger interface {
	InfoContext(ctx context.Context, msg string, args ...any)
	ErrorContext(ctx context.Context, msg string, args ...any)
}

// goose keeps dialect, table name and base FS in package globals.
var gooseMu sync.Mutex

// Migrate runs all pending goose migrations found at cfg.MigrationsPath.
// The path is looked up inside fsys when it is non-nil, so a package can
// embed its own schema; with a nil fsys it is a directory on disk.
func Migrate(ctx context.Context, pool *pgxpool.Pool, cfg Config, fsys fs.FS, log MigrationLogger) error {
	if err := checkMigrationsPath(cfg.MigrationsPath, fsys); err != nil {
		return err
	}

	db := stdlib.OpenDBFromPool(pool)
	defer func() {
		if err := db.Close(); err != nil {
			log.ErrorContext(ctx, "failed to close migration connection", "error", err)
		}
	}()

	gooseMu.Lock()
	defer gooseMu.Unlock()

	goose.SetBaseFS(fsys)
	defer goose.SetBaseFS(nil)
	goose.SetLogger(gooseLogger{ctx: ctx, log: log})
	goose.SetTableName(cfg.MigrationsTable)
	if err := goose.SetDialect("postgres"); err != nil {
		return errors.Join(ErrMigrate, err)
	}

	if err := goose.UpContext(ctx, db, cfg.MigrationsPath); err != nil {
		return errors.Join(ErrMigrate, err)
	}
	return nil
}

func checkMigrationsPath(path string, fsys fs.FS) error {
	if path == "" {
		return errors.Join(ErrMigrate, ErrNoMigrationsPath)
	}
	var err error
	if fsys != nil {
		_, err = fs.Stat(fsys, path)
	} else {
		_, err = os.Stat(path)
	}
	switch {
	case errors.Is(err, fs.ErrNotExist):
		return errors.Join(ErrMigrationsNotFound, err)
	case err != nil:
		return errors.Join(ErrMigrate, err)
	}
	return nil
}

// gooseLogger adapts goose's printf logging to a structured logger.
type gooseLogger struct {
	ctx context.Context
	log MigrationLogger
}

func (l gooseLogger) Printf(format string, v ...any) {
	l.log.InfoContext(l.ctx, fmt.Sprintf(format, v...))
}

func (l gooseLogger) Fatalf(format string, v ...any) {
	l.log.ErrorContext(l.ctx, fmt.Sprintf(format, v...))
}
