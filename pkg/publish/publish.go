// Package publish streams replay frames to NATS subscribers.
//
// Subjects for a session below prefix:
//
//	<prefix>.<season>.<round>.<session>.manifest  one message with the session manifest
//	<prefix>.<season>.<round>.<session>.frames    one message per frame
//	<prefix>.<season>.<round>.<session>.end       end of stream marker
package publish

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/nats-io/nats.go/jetstream"

	"github.com/mpapenbr/racereplay/log"
	"github.com/mpapenbr/racereplay/pkg/export"
	"github.com/mpapenbr/racereplay/pkg/model"
)

const (
	DefaultPrefix = "replay"
	// frames between two frames carrying all delta encoded values
	DefaultKeyframeInterval = 250
)

// Conn is the subset of *nats.Conn used by the publisher
type Conn interface {
	Publish(subj string, data []byte) error
	Flush() error
}

// FrameMessage is the payload of a frames message
type FrameMessage struct {
	Index int `json:"i"`
	export.Frame
}

// EndMessage is sent after the last frame or when publishing was cancelled
type EndMessage struct {
	Frames   int  `json:"frames"`
	Complete bool `json:"complete"`
}

type Publisher struct {
	conn             Conn
	kv               jetstream.KeyValue
	l                *log.Logger
	prefix           string
	speed            float64
	keyframeInterval int
	now              func() time.Time
}

type Option func(p *Publisher)

func WithLogger(l *log.Logger) Option {
	return func(p *Publisher) {
		p.l = l
	}
}

func WithPrefix(prefix string) Option {
	return func(p *Publisher) {
		p.prefix = prefix
	}
}

// WithSpeed sets the playback speed. 1 publishes in real time,
// 0 publishes as fast as possible.
func WithSpeed(speed float64) Option {
	return func(p *Publisher) {
		p.speed = speed
	}
}

func WithKeyframeInterval(n int) Option {
	return func(p *Publisher) {
		if n > 0 {
			p.keyframeInterval = n
		}
	}
}

// WithKeyValue stores the manifest of each published session in kv
func WithKeyValue(kv jetstream.KeyValue) Option {
	return func(p *Publisher) {
		p.kv = kv
	}
}

func NewPublisher(conn Conn, opts ...Option) *Publisher {
	ret := &Publisher{
		conn:             conn,
		l:                log.Default().Named("publish"),
		prefix:           DefaultPrefix,
		speed:            1,
		keyframeInterval: DefaultKeyframeInterval,
		now:              time.Now,
	}
	for _, opt := range opts {
		opt(ret)
	}
	return ret
}

// Subject returns the base subject of a session
func (p *Publisher) Subject(info *model.SessionInfo) string {
	return fmt.Sprintf("%s.%d.%d.%s", p.prefix, info.Season, info.Round, token(info.Session))
}

// token replaces characters not allowed in a subject token
func token(s string) string {
	return strings.Map(func(r rune) rune {
		switch r {
		case '.', '*', '>', ' ', '\t':
			return '_'
		default:
			return r
		}
	}, s)
}

// Publish sends the manifest, all frames and the end marker. Frames are paced
// by the timeline step divided by the configured speed.
func (p *Publisher) Publish(ctx context.Context, r *model.Replay) error {
	if len(r.Frames) == 0 {
		return model.ErrEmptyTimeline
	}
	base := p.Subject(&r.Meta.Info)
	manifest := export.NewManifest(r, p.keyframeInterval, false, false)
	if err := p.send(base+".manifest", manifest); err != nil {
		return err
	}
	if err := p.storeManifest(ctx, base, manifest); err != nil {
		return err
	}
	if err := p.conn.Flush(); err != nil {
		return err
	}
	p.l.Info("publishing frames",
		log.String("subject", base+".frames"),
		log.Int("frames", len(r.Frames)),
		log.Float64("speed", p.speed))

	enc := export.NewEncoder()
	start := p.now()
	for i := range r.Frames {
		if i%p.keyframeInterval == 0 {
			enc.Reset()
		}
		if err := p.wait(ctx, start, r.Frames[i].T); err != nil {
			p.sendEnd(base, i, false)
			return err
		}
		msg := FrameMessage{Index: r.Frames[i].Index, Frame: enc.Encode(&r.Frames[i])}
		if err := p.send(base+".frames", &msg); err != nil {
			return err
		}
	}
	if err := p.sendEnd(base, len(r.Frames), true); err != nil {
		return err
	}
	return p.conn.Flush()
}

// wait blocks until the frame at relative time t is due
func (p *Publisher) wait(ctx context.Context, start time.Time, t float64) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if p.speed <= 0 {
		return nil
	}
	due := start.Add(time.Duration(t / p.speed * float64(time.Second)))
	d := due.Sub(p.now())
	if d <= 0 {
		return nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

func (p *Publisher) send(subject string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return p.conn.Publish(subject, data)
}

func (p *Publisher) sendEnd(base string, frames int, complete bool) error {
	err := p.send(base+".end", &EndMessage{Frames: frames, Complete: complete})
	if err != nil {
		p.l.Warn("could not send end marker", log.ErrorField(err))
	}
	return err
}

//nolint:whitespace // can't make both editor and linter happy
func (p *Publisher) storeManifest(
	ctx context.Context,
	base string,
	m *export.Manifest,
) error {
	if p.kv == nil {
		return nil
	}
	data, err := json.Marshal(m)
	if err != nil {
		return err
	}
	rev, err := p.kv.Put(ctx, base, data)
	if err != nil {
		return fmt.Errorf("storing manifest: %w", err)
	}
	p.l.Debug("manifest stored", log.String("key", base), log.Uint64("revision", rev))
	return nil
}
