//nolint:thelper,funlen,lll // ok for tests
package sqlite

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/gofrs/uuid/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mpapenbr/racereplay/pkg/processing"
	"github.com/mpapenbr/racereplay/pkg/replaycache"
	"github.com/mpapenbr/racereplay/testsupport/sessiondata"
)

func openStore(t *testing.T) *Store {
	s, err := Open(Scheme + filepath.Join(t.TempDir(), "cache.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func sampleEntry(t *testing.T) *replaycache.Entry {
	opts := processing.DefaultOptions()
	opts.FPS = 5
	p, err := processing.NewProcessor(processing.WithOptions(opts))
	require.NoError(t, err)
	res, err := p.Run(context.Background(), sessiondata.Session(sessiondata.WithLaps(2)))
	require.NoError(t, err)
	return &replaycache.Entry{
		RunID:   res.RunID,
		Created: time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC),
		Replay:  res.Replay,
	}
}

func TestStoreRoundTrip(t *testing.T) {
	s := openStore(t)
	key := replaycache.Key{Season: 2024, Round: 5, Session: "R", FPS: 5}
	entry := sampleEntry(t)
	ctx := context.Background()

	_, err := s.Load(ctx, key)
	assert.ErrorIs(t, err, replaycache.ErrNotFound)

	require.NoError(t, s.Save(ctx, key, entry))
	got, err := s.Load(ctx, key)
	require.NoError(t, err)
	assert.Equal(t, entry.RunID, got.RunID)
	assert.True(t, entry.Created.Equal(got.Created))
	assert.Equal(t, entry.Replay.Timeline, got.Replay.Timeline)
	assert.Equal(t, entry.Replay.Frames, got.Replay.Frames)

	// save again replaces the entry
	entry.RunID = uuid.Must(uuid.NewV4())
	require.NoError(t, s.Save(ctx, key, entry))
	items, err := s.List(ctx)
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, key, items[0].Key)
	assert.Equal(t, entry.RunID, items[0].RunID)
	assert.Equal(t, len(entry.Replay.Frames), items[0].FrameCount)
	assert.Positive(t, items[0].Size)

	n, err := s.Delete(ctx, key)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	n, err = s.Delete(ctx, key)
	require.NoError(t, err)
	assert.Equal(t, 0, n)
}

func TestListOrder(t *testing.T) {
	s := openStore(t)
	ctx := context.Background()
	entry := sampleEntry(t)
	keys := []replaycache.Key{
		{Season: 2023, Round: 2, Session: "R", FPS: 5},
		{Season: 2024, Round: 1, Session: "Q", FPS: 5},
		{Season: 2024, Round: 3, Session: "R", FPS: 25},
		{Season: 2024, Round: 3, Session: "R", FPS: 5},
	}
	for _, k := range keys {
		require.NoError(t, s.Save(ctx, k, entry))
	}
	items, err := s.List(ctx)
	require.NoError(t, err)
	got := make([]replaycache.Key, len(items))
	for i := range items {
		got[i] = items[i].Key
	}
	assert.Equal(t, []replaycache.Key{keys[3], keys[2], keys[1], keys[0]}, got)
}
