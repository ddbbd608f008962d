package persistence

import (
	"context"
	"database/sql"
	"embed"
	"fmt"

	gerrors "github.com/go-faster/errors"
	_ "github.com/lib/pq"
	"github.com/pressly/goose/v3"
)

//go:embed migrations/*.sql
var migrations embed.FS

const migrationsDir = "migrations"

// Migrate runs a goose command (up, down, status or version) against dsn
// using the embedded schema migrations.
func Migrate(ctx context.Context, dsn, command string) error {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return gerrors.Wrap(err, "open database")
	}
	defer db.Close()

	goose.SetBaseFS(migrations)
	if err := goose.SetDialect("postgres"); err != nil {
		return gerrors.Wrap(err, "goose dialect")
	}

	switch command {
	case "up":
		err = goose.UpContext(ctx, db, migrationsDir)
	case "down":
		err = goose.DownContext(ctx, db, migrationsDir)
	case "status":
		err = goose.StatusContext(ctx, db, migrationsDir)
	case "version":
		err = goose.VersionContext(ctx, db, migrationsDir)
	default:
		return fmt.Errorf("unknown migrate command %q (want up, down, status or version)", command)
	}
	if err != nil {
		return gerrors.Wrapf(err, "migrate %s", command)
	}
	return nil
}
