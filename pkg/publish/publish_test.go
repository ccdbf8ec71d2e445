//nolint:thelper,funlen,lll // ok for tests
package publish

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mpapenbr/racereplay/pkg/export"
	"github.com/mpapenbr/racereplay/pkg/model"
	"github.com/mpapenbr/racereplay/pkg/processing"
	"github.com/mpapenbr/racereplay/testsupport/sessiondata"
)

type message struct {
	subject string
	data    []byte
}

type recordingConn struct {
	mu       sync.Mutex
	msgs     []message
	flushes  int
	onPub    func(n int)
	failFrom int
}

func (c *recordingConn) Publish(subj string, data []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.failFrom > 0 && len(c.msgs) >= c.failFrom {
		return errors.New("connection closed")
	}
	c.msgs = append(c.msgs, message{subject: subj, data: data})
	if c.onPub != nil {
		c.onPub(len(c.msgs))
	}
	return nil
}

func (c *recordingConn) Flush() error {
	c.flushes++
	return nil
}

func (c *recordingConn) subjects() []string {
	ret := make([]string, len(c.msgs))
	for i := range c.msgs {
		ret[i] = c.msgs[i].subject
	}
	return ret
}

func buildReplay(t *testing.T) *model.Replay {
	opts := processing.DefaultOptions()
	opts.FPS = 5
	p, err := processing.NewProcessor(processing.WithOptions(opts))
	require.NoError(t, err)
	res, err := p.Run(context.Background(), sessiondata.Session(sessiondata.WithLaps(2)))
	require.NoError(t, err)
	return &res.Replay
}

func TestSubject(t *testing.T) {
	p := NewPublisher(&recordingConn{}, WithPrefix("f1"))
	assert.Equal(t, "f1.2024.5.R", p.Subject(&model.SessionInfo{Season: 2024, Round: 5, Session: "R"}))
	assert.Equal(t, "f1.2024.5.Sprint_Q", p.Subject(&model.SessionInfo{Season: 2024, Round: 5, Session: "Sprint Q"}))
	assert.Equal(t, "f1.2024.5.a_b_c", p.Subject(&model.SessionInfo{Season: 2024, Round: 5, Session: "a.b*c"}))
}

func TestPublishAsFastAsPossible(t *testing.T) {
	r := buildReplay(t)
	conn := &recordingConn{}
	p := NewPublisher(conn, WithSpeed(0), WithKeyframeInterval(50))
	require.NoError(t, p.Publish(context.Background(), r))

	n := len(r.Frames)
	require.Len(t, conn.msgs, n+2)
	subjects := conn.subjects()
	assert.Equal(t, "replay.2024.5.R.manifest", subjects[0])
	assert.Equal(t, "replay.2024.5.R.end", subjects[n+1])
	for _, s := range subjects[1 : n+1] {
		assert.Equal(t, "replay.2024.5.R.frames", s)
	}
	assert.Equal(t, 2, conn.flushes)

	var m export.Manifest
	require.NoError(t, json.Unmarshal(conn.msgs[0].data, &m))
	assert.Equal(t, n, m.TotalFrames)
	assert.Equal(t, 50, m.ChunkSize)

	for i := 1; i <= n; i++ {
		var f FrameMessage
		require.NoError(t, json.Unmarshal(conn.msgs[i].data, &f))
		assert.Equal(t, i-1, f.Index)
		assert.Len(t, f.Vehicles, 3)
		if f.Index%50 == 0 {
			assert.NotNil(t, f.TrackStatus, "keyframe %d without track status", f.Index)
		}
	}

	var end EndMessage
	require.NoError(t, json.Unmarshal(conn.msgs[n+1].data, &end))
	assert.Equal(t, EndMessage{Frames: n, Complete: true}, end)
}

func TestPublishPaced(t *testing.T) {
	r := buildReplay(t)
	r.Frames = r.Frames[:11] // 2 seconds of session time
	conn := &recordingConn{}
	p := NewPublisher(conn, WithSpeed(20))

	start := time.Now()
	require.NoError(t, p.Publish(context.Background(), r))
	assert.GreaterOrEqual(t, time.Since(start), 100*time.Millisecond)
	assert.Len(t, conn.msgs, 13)
}

func TestPublishCancel(t *testing.T) {
	r := buildReplay(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	conn := &recordingConn{onPub: func(n int) {
		if n == 3 {
			cancel()
		}
	}}
	p := NewPublisher(conn, WithSpeed(1))

	done := make(chan error, 1)
	go func() { done <- p.Publish(ctx, r) }()
	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(5 * time.Second):
		t.Fatal("publish did not stop after cancel")
	}

	conn.mu.Lock()
	defer conn.mu.Unlock()
	last := conn.msgs[len(conn.msgs)-1]
	assert.Equal(t, "replay.2024.5.R.end", last.subject)
	var end EndMessage
	require.NoError(t, json.Unmarshal(last.data, &end))
	assert.False(t, end.Complete)
	assert.Equal(t, 2, end.Frames)
}

func TestPublishErrors(t *testing.T) {
	p := NewPublisher(&recordingConn{})
	assert.ErrorIs(t, p.Publish(context.Background(), &model.Replay{}), model.ErrEmptyTimeline)

	r := buildReplay(t)
	conn := &recordingConn{failFrom: 5}
	err := NewPublisher(conn, WithSpeed(0)).Publish(context.Background(), r)
	assert.Error(t, err)
	assert.Len(t, conn.msgs, 5)
}
