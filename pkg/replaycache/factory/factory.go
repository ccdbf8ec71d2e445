// Package factory opens the replay cache backend matching a url
package factory

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/pgx-contrib/pgxtrace"

	"github.com/mpapenbr/racereplay/log"
	"github.com/mpapenbr/racereplay/pkg/db/migrate"
	dbpg "github.com/mpapenbr/racereplay/pkg/db/postgres"
	"github.com/mpapenbr/racereplay/pkg/replaycache"
	"github.com/mpapenbr/racereplay/pkg/replaycache/memory"
	cachepg "github.com/mpapenbr/racereplay/pkg/replaycache/postgres"
	"github.com/mpapenbr/racereplay/pkg/replaycache/sqlite"
)

type Type string

const (
	TypePostgres Type = "postgres"
	TypeSqlite   Type = "sqlite"
	TypeMemory   Type = "memory"
)

type config struct {
	l         *log.Logger
	sqlLogger *log.Logger
	telemetry bool
	migrate   bool
}

type Option func(c *config)

func WithLogger(l *log.Logger) Option {
	return func(c *config) {
		c.l = l
	}
}

// WithSQLLogger sets the logger for executed postgres statements
func WithSQLLogger(l *log.Logger) Option {
	return func(c *config) {
		c.sqlLogger = l
	}
}

// WithTelemetry adds otel spans for postgres queries
func WithTelemetry(enabled bool) Option {
	return func(c *config) {
		c.telemetry = enabled
	}
}

// WithMigrate controls whether postgres migrations are applied on open.
// sqlite databases are always migrated.
func WithMigrate(enabled bool) Option {
	return func(c *config) {
		c.migrate = enabled
	}
}

// TypeOf returns the backend for url. Urls without a known scheme are
// treated as sqlite file paths.
func TypeOf(url string) (Type, error) {
	switch {
	case url == "":
		return "", fmt.Errorf("empty cache url")
	case strings.HasPrefix(url, "postgres://"), strings.HasPrefix(url, "postgresql://"):
		return TypePostgres, nil
	case strings.HasPrefix(url, sqlite.Scheme):
		return TypeSqlite, nil
	case strings.HasPrefix(url, memory.Scheme):
		return TypeMemory, nil
	case strings.Contains(url, "://"):
		return "", fmt.Errorf("unsupported cache url: %s", url)
	default:
		return TypeSqlite, nil
	}
}

func Open(ctx context.Context, url string, opts ...Option) (replaycache.Store, error) {
	c := &config{l: log.Default().Named("cache"), migrate: true}
	for _, opt := range opts {
		opt(c)
	}
	if c.sqlLogger == nil {
		c.sqlLogger = c.l.Named("sql")
	}
	t, err := TypeOf(url)
	if err != nil {
		return nil, err
	}
	switch t {
	case TypePostgres:
		return openPostgres(ctx, url, c)
	case TypeSqlite:
		return sqlite.Open(url, sqlite.WithLogger(c.l.Named("sqlite")))
	case TypeMemory:
		return openMemory(url, c)
	default:
		return nil, fmt.Errorf("unknown cache type: %s", t)
	}
}

//nolint:whitespace // can't make both editor and linter happy
func openPostgres(
	ctx context.Context,
	url string,
	c *config,
) (replaycache.Store, error) {
	if c.migrate {
		if err := migrate.MigrateDb(url); err != nil {
			return nil, fmt.Errorf("migrating cache database: %w", err)
		}
	}
	pgTracer := pgxtrace.CompositeQueryTracer{
		dbpg.NewMyTracer(c.sqlLogger, log.DebugLevel),
	}
	if c.telemetry {
		pgTracer = append(pgTracer, dbpg.NewOtlpTracer())
	}
	pool, err := dbpg.InitWithURL(ctx, url, dbpg.WithTracer(pgTracer))
	if err != nil {
		return nil, err
	}
	return cachepg.NewStore(pool, cachepg.WithLogger(c.l.Named("postgres"))), nil
}

// openMemory accepts memory:// with an optional ttl parameter,
// for example memory://?ttl=10m
func openMemory(cacheURL string, c *config) (replaycache.Store, error) {
	u, err := url.Parse(cacheURL)
	if err != nil {
		return nil, err
	}
	opts := []memory.Option{memory.WithLogger(c.l.Named("memory"))}
	if ttl := u.Query().Get("ttl"); ttl != "" {
		d, err := time.ParseDuration(ttl)
		if err != nil {
			return nil, fmt.Errorf("invalid ttl %q: %w", ttl, err)
		}
		opts = append(opts, memory.WithExpiration(d))
	}
	return memory.New(opts...), nil
}
