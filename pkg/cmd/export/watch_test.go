package export

import (
	"context"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mpapenbr/racereplay/log"
)

func TestWatchFile(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "session.json")
	other := filepath.Join(dir, "other.json")
	require.NoError(t, os.WriteFile(file, []byte("{}"), 0o600))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	var calls atomic.Int32
	done := make(chan error, 1)
	go func() {
		done <- watchFile(ctx, log.Default(), file, 100*time.Millisecond, func() error {
			calls.Add(1)
			return nil
		})
	}()
	// give the watcher time to register
	time.Sleep(200 * time.Millisecond)

	require.NoError(t, os.WriteFile(other, []byte("{}"), 0o600))
	for range 3 {
		require.NoError(t, os.WriteFile(file, []byte(`{"a":1}`), 0o600))
	}
	assert.Eventually(t, func() bool { return calls.Load() == 1 },
		2*time.Second, 20*time.Millisecond)

	time.Sleep(300 * time.Millisecond)
	assert.Equal(t, int32(1), calls.Load())

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("watch did not stop")
	}
}
