// Package replaycache stores processed replays keyed by session and fps.
package replaycache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/gofrs/uuid/v5"

	"github.com/mpapenbr/racereplay/pkg/model"
)

var ErrNotFound = errors.New("replay not found in cache")

// Key identifies a cached replay
type Key struct {
	Season  int
	Round   int
	Session string
	FPS     int
}

func KeyFor(info *model.SessionInfo, fps int) Key {
	return Key{Season: info.Season, Round: info.Round, Session: info.Session, FPS: fps}
}

func (k Key) String() string {
	return fmt.Sprintf("%d_R%02d_%s_fps%d", k.Season, k.Round, k.Session, k.FPS)
}

// Entry is the cached content. Only the replay is part of the encoded blob.
type Entry struct {
	RunID   uuid.UUID
	Created time.Time
	Replay  model.Replay
}

// Info describes a stored entry without loading the frames
type Info struct {
	Key        Key
	RunID      uuid.UUID
	Created    time.Time
	FrameCount int
	Size       int
}

type Store interface {
	// Load returns ErrNotFound if no entry exists for the key
	Load(ctx context.Context, key Key) (*Entry, error)
	Save(ctx context.Context, key Key, entry *Entry) error
	// Delete returns the number of removed entries
	Delete(ctx context.Context, key Key) (int, error)
	List(ctx context.Context) ([]Info, error)
	Close() error
}
