package cmdutil

import (
	"context"
	"errors"
	"time"

	"github.com/gofrs/uuid/v5"

	"github.com/mpapenbr/racereplay/log"
	"github.com/mpapenbr/racereplay/pkg/config"
	"github.com/mpapenbr/racereplay/pkg/model"
	"github.com/mpapenbr/racereplay/pkg/processing"
	"github.com/mpapenbr/racereplay/pkg/processing/features"
	"github.com/mpapenbr/racereplay/pkg/processing/lapdata"
	"github.com/mpapenbr/racereplay/pkg/replaycache"
	"github.com/mpapenbr/racereplay/pkg/source"
)

// Built is a processed session, either fresh or from the cache
type Built struct {
	Session   *model.SessionData
	Replay    *model.Replay
	RunID     uuid.UUID
	Created   time.Time
	FromCache bool
	// only set for fresh results
	Dropped map[string]error
}

type BuildParams struct {
	SessionFile string
	Store       replaycache.Store // may be nil
	// ignore a cached entry
	Force bool
}

// ProcessingOptions returns the pipeline options from the config values
func ProcessingOptions() processing.Options {
	opts := processing.DefaultOptions()
	if config.FPS > 0 {
		opts.FPS = config.FPS
	}
	opts.Workers = config.Workers
	return opts
}

// LoadOrBuild loads the session file and returns the cached replay for it.
// If there is none (or Force is set) the pipeline runs and the result is
// stored in the cache. Logging goes to the logger attached to ctx.
func LoadOrBuild(ctx context.Context, p BuildParams) (*Built, error) {
	logger := log.GetFromContext(ctx)
	session, err := source.LoadFile(p.SessionFile)
	if err != nil {
		return nil, err
	}
	opts := ProcessingOptions()
	key := replaycache.KeyFor(&session.Info, opts.FPS)

	if p.Store != nil && !p.Force {
		entry, err := p.Store.Load(ctx, key)
		switch {
		case err == nil:
			logger.Info("using cached replay",
				log.String("key", key.String()),
				log.String("runID", entry.RunID.String()),
				log.Time("created", entry.Created))
			return &Built{
				Session:   session,
				Replay:    &entry.Replay,
				RunID:     entry.RunID,
				Created:   entry.Created,
				FromCache: true,
			}, nil
		case errors.Is(err, replaycache.ErrNotFound):
			logger.Debug("no cached replay", log.String("key", key.String()))
		default:
			// an unreadable entry is rebuilt and replaced
			logger.Warn("could not load cached replay",
				log.String("key", key.String()), log.ErrorField(err))
		}
	}

	proc, err := processing.NewProcessor(
		processing.WithLogger(logger.Named("processing")),
		processing.WithOptions(opts))
	if err != nil {
		return nil, err
	}
	res, err := proc.Run(ctx, session)
	if err != nil {
		return nil, err
	}
	ret := &Built{
		Session: session,
		Replay:  &res.Replay,
		RunID:   res.RunID,
		Created: time.Now().UTC(),
		Dropped: res.Dropped,
	}
	if p.Store != nil {
		entry := &replaycache.Entry{RunID: ret.RunID, Created: ret.Created, Replay: res.Replay}
		if err := p.Store.Save(ctx, key, entry); err != nil {
			return nil, err
		}
		logger.Info("replay cached", log.String("key", key.String()))
	}
	return ret, nil
}

// Features computes the per lap rows of the session
func (b *Built) Features() ([]features.LapFeature, []features.StintSummary) {
	rows := features.Extract(b.Session, lapdata.Build(b.Session.Vehicles))
	return rows, features.Stints(rows)
}
