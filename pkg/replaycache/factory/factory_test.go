package factory

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mpapenbr/racereplay/pkg/replaycache"
	"github.com/mpapenbr/racereplay/pkg/replaycache/memory"
	"github.com/mpapenbr/racereplay/pkg/replaycache/sqlite"
)

func TestTypeOf(t *testing.T) {
	tests := []struct {
		url     string
		want    Type
		wantErr bool
	}{
		{url: "postgres://u:p@localhost/db", want: TypePostgres},
		{url: "postgresql://u:p@localhost/db", want: TypePostgres},
		{url: "sqlite:///tmp/cache.db", want: TypeSqlite},
		{url: "cache.db", want: TypeSqlite},
		{url: "memory://", want: TypeMemory},
		{url: "memory://?ttl=5m", want: TypeMemory},
		{url: "redis://localhost", wantErr: true},
		{url: "", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.url, func(t *testing.T) {
			got, err := TypeOf(tt.url)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestOpenSqlite(t *testing.T) {
	store, err := Open(context.Background(), filepath.Join(t.TempDir(), "cache.db"))
	require.NoError(t, err)
	defer store.Close()
	assert.IsType(t, &sqlite.Store{}, store)

	_, err = store.Load(context.Background(), replaycache.Key{Season: 2024, Round: 1, Session: "R", FPS: 5})
	assert.ErrorIs(t, err, replaycache.ErrNotFound)
}

func TestOpenMemory(t *testing.T) {
	store, err := Open(context.Background(), "memory://?ttl=1h")
	require.NoError(t, err)
	defer store.Close()
	assert.IsType(t, &memory.Store{}, store)

	_, err = Open(context.Background(), "memory://?ttl=soon")
	assert.Error(t, err)
}
