// Package memory is an in-process replay cache with optional expiration.
// Entries are stored encoded so a loaded replay never shares state with
// the saved one.
package memory

import (
	"cmp"
	"context"
	"slices"
	"sync"
	"time"

	"github.com/mpapenbr/racereplay/log"
	"github.com/mpapenbr/racereplay/pkg/replaycache"
)

const Scheme = "memory://"

type (
	item struct {
		info    replaycache.Info
		blob    []byte
		expires *time.Time
	}
	Store struct {
		mutex      sync.Mutex
		items      map[replaycache.Key]item
		expiration time.Duration
		l          *log.Logger
		now        func() time.Time
	}
	Option func(*Store)
)

var _ replaycache.Store = (*Store)(nil)

// WithExpiration sets the lifetime of an entry, 0 keeps entries forever
func WithExpiration(expiration time.Duration) Option {
	return func(s *Store) {
		s.expiration = expiration
	}
}

func WithLogger(l *log.Logger) Option {
	return func(s *Store) {
		s.l = l
	}
}

func New(opts ...Option) *Store {
	ret := &Store{
		items: make(map[replaycache.Key]item),
		l:     log.Default().Named("cache.memory"),
		now:   time.Now,
	}
	for _, opt := range opts {
		opt(ret)
	}
	return ret
}

// get returns the entry for key, expired entries are removed.
// The caller must hold the mutex.
func (s *Store) get(key replaycache.Key) (item, bool) {
	it, ok := s.items[key]
	if !ok {
		return item{}, false
	}
	if it.expires != nil && it.expires.Before(s.now()) {
		s.l.Debug("entry expired", log.String("key", key.String()))
		delete(s.items, key)
		return item{}, false
	}
	return it, true
}

func (s *Store) Load(ctx context.Context, key replaycache.Key) (*replaycache.Entry, error) {
	s.mutex.Lock()
	it, ok := s.get(key)
	s.mutex.Unlock()
	if !ok {
		return nil, replaycache.ErrNotFound
	}
	r, err := replaycache.Decode(it.blob)
	if err != nil {
		return nil, err
	}
	return &replaycache.Entry{RunID: it.info.RunID, Created: it.info.Created, Replay: *r}, nil
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
	it := item{
		info: replaycache.Info{
			Key:        key,
			RunID:      entry.RunID,
			Created:    entry.Created,
			FrameCount: len(entry.Replay.Frames),
			Size:       len(blob),
		},
		blob: blob,
	}
	if s.expiration > 0 {
		expires := s.now().Add(s.expiration)
		it.expires = &expires
	}
	s.mutex.Lock()
	defer s.mutex.Unlock()
	s.items[key] = it
	return nil
}

func (s *Store) Delete(ctx context.Context, key replaycache.Key) (int, error) {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	if _, ok := s.get(key); !ok {
		return 0, nil
	}
	delete(s.items, key)
	s.l.Debug("entry deleted", log.String("key", key.String()), log.Int("remain", len(s.items)))
	return 1, nil
}

// List returns the live entries in the same order as the database backends
func (s *Store) List(ctx context.Context) ([]replaycache.Info, error) {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	ret := make([]replaycache.Info, 0, len(s.items))
	for key := range s.items {
		if it, ok := s.get(key); ok {
			ret = append(ret, it.info)
		}
	}
	slices.SortFunc(ret, func(a, b replaycache.Info) int {
		return cmp.Or(
			cmp.Compare(b.Key.Season, a.Key.Season),
			cmp.Compare(b.Key.Round, a.Key.Round),
			cmp.Compare(a.Key.Session, b.Key.Session),
			cmp.Compare(a.Key.FPS, b.Key.FPS),
		)
	})
	return ret, nil
}

func (s *Store) Close() error {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	clear(s.items)
	return nil
}
