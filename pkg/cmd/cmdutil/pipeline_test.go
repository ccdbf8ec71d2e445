package cmdutil

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mpapenbr/racereplay/log"
	"github.com/mpapenbr/racereplay/pkg/config"
	"github.com/mpapenbr/racereplay/pkg/replaycache/sqlite"
	"github.com/mpapenbr/racereplay/pkg/source"
	"github.com/mpapenbr/racereplay/testsupport/sessiondata"
)

func TestLoadOrBuild(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "session.json.gz")
	require.NoError(t, source.SaveFile(file, sessiondata.Session(sessiondata.WithLaps(2))))

	store, err := sqlite.Open(sqlite.Scheme + filepath.Join(dir, "cache.db"))
	require.NoError(t, err)
	defer store.Close()

	config.FPS = 5
	t.Cleanup(func() { config.FPS = 0 })
	ctx := log.AddToContext(context.Background(), log.Default())

	first, err := LoadOrBuild(ctx, BuildParams{SessionFile: file, Store: store})
	require.NoError(t, err)
	assert.False(t, first.FromCache)
	assert.Equal(t, 5, first.Replay.Timeline.FPS)

	second, err := LoadOrBuild(ctx, BuildParams{SessionFile: file, Store: store})
	require.NoError(t, err)
	assert.True(t, second.FromCache)
	assert.Equal(t, first.RunID, second.RunID)
	assert.Equal(t, first.Replay.Frames, second.Replay.Frames)

	forced, err := LoadOrBuild(ctx, BuildParams{SessionFile: file, Store: store, Force: true})
	require.NoError(t, err)
	assert.False(t, forced.FromCache)
	assert.NotEqual(t, first.RunID, forced.RunID)
	assert.Equal(t, first.Replay.Frames, forced.Replay.Frames)

	rows, stints := forced.Features()
	assert.NotEmpty(t, rows)
	assert.NotEmpty(t, stints)
}

func TestLoadOrBuildWithoutCache(t *testing.T) {
	file := filepath.Join(t.TempDir(), "session.json")
	require.NoError(t, source.SaveFile(file, sessiondata.Session(sessiondata.WithLaps(1))))
	config.FPS = 5
	t.Cleanup(func() { config.FPS = 0 })

	got, err := LoadOrBuild(context.Background(), BuildParams{SessionFile: file})
	require.NoError(t, err)
	assert.False(t, got.FromCache)
	assert.NotEmpty(t, got.Replay.Frames)

	_, err = LoadOrBuild(context.Background(), BuildParams{SessionFile: file + ".missing"})
	assert.Error(t, err)
}
