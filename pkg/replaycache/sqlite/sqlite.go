// Package sqlite is a file based replay cache backend
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/gofrs/uuid/v5"
	_ "modernc.org/sqlite"

	"github.com/mpapenbr/racereplay/log"
	"github.com/mpapenbr/racereplay/pkg/db/migrate"
	"github.com/mpapenbr/racereplay/pkg/replaycache"
)

const (
	Scheme       = "sqlite://"
	keyCondition = `season=? and round=? and session=? and fps=?`
)

type Store struct {
	db *sql.DB
	l  *log.Logger
}

var _ replaycache.Store = (*Store)(nil)

type StoreOption func(s *Store)

func WithLogger(l *log.Logger) StoreOption {
	return func(s *Store) {
		s.l = l
	}
}

// Open migrates and opens the database file. Both "sqlite://<path>"
// and a plain path are accepted.
func Open(url string, opts ...StoreOption) (*Store, error) {
	path := strings.TrimPrefix(url, Scheme)
	if err := migrate.MigrateDb(Scheme + path); err != nil {
		return nil, err
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	// sqlite allows a single writer
	db.SetMaxOpenConns(1)
	ret := &Store{db: db, l: log.Default().Named("cache.sqlite")}
	for _, opt := range opts {
		opt(ret)
	}
	return ret, nil
}

func (s *Store) Load(ctx context.Context, key replaycache.Key) (*replaycache.Entry, error) {
	var (
		runID   uuid.UUID
		created string
		blob    []byte
	)
	err := s.db.QueryRowContext(ctx,
		`select run_id, record_stamp, data from replay_cache where `+keyCondition,
		key.Season, key.Round, key.Session, key.FPS).
		Scan(&runID, &created, &blob)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, replaycache.ErrNotFound
		}
		return nil, err
	}
	ts, err := time.Parse(time.RFC3339Nano, created)
	if err != nil {
		return nil, err
	}
	r, err := replaycache.Decode(blob)
	if err != nil {
		return nil, err
	}
	s.l.Debug("cache hit", log.String("key", key.String()), log.Int("size", len(blob)))
	return &replaycache.Entry{RunID: runID, Created: ts, Replay: *r}, nil
}

//nolint:whitespace // can't make both editor and linter happy
func (s *Store) Save(
	ctx context.Context,
	key replaycache.Key,
	entry *replaycache.Entry,
) error {
	blob, err := replaycache.Encode(&entry.Replay)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, `
	insert into replay_cache (
		season, round, session, fps, run_id, record_stamp, frame_count, data
	) values (?,?,?,?,?,?,?,?)
	on conflict (season, round, session, fps) do update set
		run_id=excluded.run_id,
		record_stamp=excluded.record_stamp,
		frame_count=excluded.frame_count,
		data=excluded.data
	`,
		key.Season, key.Round, key.Session, key.FPS,
		entry.RunID.String(), entry.Created.UTC().Format(time.RFC3339Nano),
		len(entry.Replay.Frames), blob)
	return err
}

func (s *Store) Delete(ctx context.Context, key replaycache.Key) (int, error) {
	res, err := s.db.ExecContext(ctx,
		`delete from replay_cache where `+keyCondition,
		key.Season, key.Round, key.Session, key.FPS)
	if err != nil {
		return 0, err
	}
	n, err := res.RowsAffected()
	return int(n), err
}

func (s *Store) List(ctx context.Context) ([]replaycache.Info, error) {
	rows, err := s.db.QueryContext(ctx, `
	select season, round, session, fps, run_id, record_stamp, frame_count, length(data)
	from replay_cache
	order by season desc, round desc, session, fps
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	ret := make([]replaycache.Info, 0)
	for rows.Next() {
		var (
			item    replaycache.Info
			created string
		)
		if err := rows.Scan(
			&item.Key.Season, &item.Key.Round, &item.Key.Session, &item.Key.FPS,
			&item.RunID, &created, &item.FrameCount, &item.Size,
		); err != nil {
			return nil, err
		}
		if item.Created, err = time.Parse(time.RFC3339Nano, created); err != nil {
			return nil, err
		}
		ret = append(ret, item)
	}
	return ret, rows.Err()
}

func (s *Store) Close() error {
	return s.db.Close()
}
