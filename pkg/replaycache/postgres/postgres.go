// Package postgres is the replay cache backend for PostgreSQL
package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/gofrs/uuid/v5"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/mpapenbr/racereplay/log"
	"github.com/mpapenbr/racereplay/pkg/replaycache"
	"github.com/mpapenbr/racereplay/pkg/repository"
)

const keyCondition = `season=$1 and round=$2 and session=$3 and fps=$4`

// Upsert stores the encoded blob for key, replacing an existing entry
//
//nolint:whitespace // can't make both editor and linter happy
func Upsert(
	ctx context.Context,
	conn repository.Querier,
	key replaycache.Key,
	runID uuid.UUID,
	created time.Time,
	frameCount int,
	blob []byte,
) error {
	_, err := conn.Exec(ctx, `
	insert into replay_cache (
		season, round, session, fps, run_id, record_stamp, frame_count, data
	) values ($1,$2,$3,$4,$5,$6,$7,$8)
	on conflict (season, round, session, fps) do update set
		run_id=excluded.run_id,
		record_stamp=excluded.record_stamp,
		frame_count=excluded.frame_count,
		data=excluded.data
	`,
		key.Season, key.Round, key.Session, key.FPS,
		runID, created, frameCount, blob)
	return err
}

// Load returns the stored row. The blob is not decoded.
//
//nolint:whitespace // can't make both editor and linter happy
func Load(
	ctx context.Context,
	conn repository.Querier,
	key replaycache.Key,
) (runID uuid.UUID, created time.Time, blob []byte, err error) {
	row := conn.QueryRow(ctx,
		`select run_id, record_stamp, data from replay_cache where `+keyCondition,
		key.Season, key.Round, key.Session, key.FPS)
	if err = row.Scan(&runID, &created, &blob); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			err = replaycache.ErrNotFound
		}
		return uuid.Nil, time.Time{}, nil, err
	}
	return runID, created, blob, nil
}

// Delete removes the entry for key and returns the number of deleted rows
func Delete(ctx context.Context, conn repository.Querier, key replaycache.Key) (int, error) {
	cmdTag, err := conn.Exec(ctx,
		`delete from replay_cache where `+keyCondition,
		key.Season, key.Round, key.Session, key.FPS)
	if err != nil {
		return 0, err
	}
	return int(cmdTag.RowsAffected()), nil
}

// List returns all entries ordered by season, round, session and fps
func List(ctx context.Context, conn repository.Querier) ([]replaycache.Info, error) {
	rows, err := conn.Query(ctx, `
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
		var item replaycache.Info
		if err := rows.Scan(
			&item.Key.Season, &item.Key.Round, &item.Key.Session, &item.Key.FPS,
			&item.RunID, &item.Created, &item.FrameCount, &item.Size,
		); err != nil {
			return nil, err
		}
		ret = append(ret, item)
	}
	return ret, rows.Err()
}

// Store implements replaycache.Store on a connection pool
type Store struct {
	pool *pgxpool.Pool
	l    *log.Logger
}

var _ replaycache.Store = (*Store)(nil)

type StoreOption func(s *Store)

func WithLogger(l *log.Logger) StoreOption {
	return func(s *Store) {
		s.l = l
	}
}

func NewStore(pool *pgxpool.Pool, opts ...StoreOption) *Store {
	ret := &Store{pool: pool, l: log.Default().Named("cache.postgres")}
	for _, opt := range opts {
		opt(ret)
	}
	return ret
}

func (s *Store) Load(ctx context.Context, key replaycache.Key) (*replaycache.Entry, error) {
	runID, created, blob, err := Load(ctx, s.pool, key)
	if err != nil {
		return nil, err
	}
	r, err := replaycache.Decode(blob)
	if err != nil {
		return nil, err
	}
	s.l.Debug("cache hit", log.String("key", key.String()), log.Int("size", len(blob)))
	return &replaycache.Entry{RunID: runID, Created: created, Replay: *r}, nil
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
	return pgx.BeginFunc(ctx, s.pool, func(tx pgx.Tx) error {
		return Upsert(ctx, tx, key, entry.RunID, entry.Created,
			len(entry.Replay.Frames), blob)
	})
}

func (s *Store) Delete(ctx context.Context, key replaycache.Key) (int, error) {
	return Delete(ctx, s.pool, key)
}

func (s *Store) List(ctx context.Context) ([]replaycache.Info, error) {
	return List(ctx, s.pool)
}

func (s *Store) Close() error {
	s.pool.Close()
	return nil
}
