package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	"github.com/uptrace/bun/driver/pgdriver"
	_ "modernc.org/sqlite"
)

const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
)

type Config struct {
	Driver       string        `envconfig:"DRIVER" split_words:"true" default:"postgres"`
	DSN          string        `envconfig:"DSN" split_words:"true" required:"true"`
	MaxOpenConns int           `envconfig:"MAX_OPEN_CONNS" split_words:"true" default:"10"`
	DialTimeout  time.Duration `envconfig:"DIAL_TIMEOUT" split_words:"true" default:"5s"`
	LogQueries   bool          `envconfig:"LOG_QUERIES" split_words:"true" default:"false"`
}

// Open connects to the configured database. SQLite connections are capped at
// one so in-memory databases are shared by every query.
func Open(cfg Config) (*bun.DB, error) {
	dsn := strings.TrimSpace(cfg.DSN)
	if dsn == "" {
		return nil, fmt.Errorf("store: dsn is required")
	}

	var db *bun.DB
	switch strings.ToLower(strings.TrimSpace(cfg.Driver)) {
	case DriverPostgres, "":
		sqldb := sql.OpenDB(pgdriver.NewConnector(
			pgdriver.WithDSN(dsn),
			pgdriver.WithDialTimeout(cfg.DialTimeout),
		))
		if cfg.MaxOpenConns > 0 {
			sqldb.SetMaxOpenConns(cfg.MaxOpenConns)
		}
		db = bun.NewDB(sqldb, pgdialect.New())
	case DriverSQLite:
		sqldb, err := sql.Open("sqlite", dsn)
		if err != nil {
			return nil, fmt.Errorf("store: open sqlite: %w", err)
		}
		sqldb.SetMaxOpenConns(1)
		db = bun.NewDB(sqldb, sqlitedialect.New())
	default:
		return nil, fmt.Errorf("store: unsupported driver %q", cfg.Driver)
	}

	if cfg.LogQueries {
		db.AddQueryHook(queryLogger{})
	}
	return db, nil
}

// Migrate creates the tables the actions rely on when they do not exist.
func Migrate(ctx context.Context, db *bun.DB) error {
	models := []any{
		(*Ticket)(nil),
		(*MemberStats)(nil),
	}
	for _, model := range models {
		if _, err := db.NewCreateTable().Model(model).IfNotExists().Exec(ctx); err != nil {
			return fmt.Errorf("store: create table for %T: %w", model, err)
		}
	}

	indexes := []struct {
		name    string
		columns []string
	}{
		{"tickets_guild_status_idx", []string{"guild_id", "status"}},
		{"tickets_guild_owner_idx", []string{"guild_id", "owner_id"}},
	}
	for _, idx := range indexes {
		if _, err := db.NewCreateIndex().
			Model((*Ticket)(nil)).
			Index(idx.name).
			Column(idx.columns...).
			IfNotExists().
			Exec(ctx); err != nil {
			return fmt.Errorf("store: create index %s: %w", idx.name, err)
		}
	}
	return nil
}

type queryLogger struct{}

func (queryLogger) BeforeQuery(ctx context.Context, _ *bun.QueryEvent) context.Context {
	return ctx
}

func (queryLogger) AfterQuery(_ context.Context, event *bun.QueryEvent) {
	ev := log.Debug()
	if event.Err != nil && event.Err != sql.ErrNoRows {
		ev = log.Warn().Err(event.Err)
	}
	ev.Str("query", event.Query).
		Dur("duration", time.Since(event.StartTime)).
		Msg("store query")
}
