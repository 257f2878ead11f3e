package database

import (
	"database/sql"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/stdlib"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	"github.com/uptrace/bun/driver/sqliteshim"
	"github.com/uptrace/bun/extra/bundebug"
)

// IsSQLite reports whether databaseURL names a sqlite database
// ("file:..." or "sqlite:...").
func IsSQLite(databaseURL string) bool {
	return strings.HasPrefix(databaseURL, "file:") || strings.HasPrefix(databaseURL, "sqlite:")
}

// Open returns a bun DB for databaseURL. Postgres URLs go through pgx,
// sqlite URLs through sqliteshim. Open does not connect; call Ping to
// check the connection. With debug set every query is logged.
func Open(databaseURL string, debug bool) (*bun.DB, error) {
	var db *bun.DB

	if IsSQLite(databaseURL) {
		sqldb, err := sql.Open(sqliteshim.ShimName, strings.TrimPrefix(databaseURL, "sqlite:"))
		if err != nil {
			return nil, fmt.Errorf("failed to open database: %w", err)
		}
		db = bun.NewDB(sqldb, sqlitedialect.New())
	} else {
		pgcfg, err := pgx.ParseConfig(databaseURL)
		if err != nil {
			return nil, fmt.Errorf("failed to parse database url: %w", err)
		}
		sqldb := stdlib.OpenDB(*pgcfg)
		db = bun.NewDB(sqldb, pgdialect.New())
	}

	if debug {
		db.AddQueryHook(bundebug.NewQueryHook(bundebug.WithVerbose(true)))
	}

	return db, nil
}
