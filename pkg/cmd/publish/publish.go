package publish

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
	"github.com/spf13/cobra"

	"github.com/mpapenbr/racereplay/log"
	"github.com/mpapenbr/racereplay/pkg/cmd/cmdutil"
	"github.com/mpapenbr/racereplay/pkg/config"
	"github.com/mpapenbr/racereplay/pkg/publish"
)

type publishFlags struct {
	prefix    string
	speed     float64
	keyframes int
	kvBucket  string
	force     bool
}

func NewPublishCmd() *cobra.Command {
	f := &publishFlags{}
	cmd := &cobra.Command{
		Use:   "publish <session-file>",
		Short: "streams the frames of a session to NATS",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runPublish(cmd, args[0], f)
		},
	}
	cmd.Flags().StringVar(&config.NatsURL, "nats-url", nats.DefaultURL,
		"URL of the NATS server")
	cmd.Flags().StringVar(&f.prefix, "prefix", publish.DefaultPrefix,
		"subject prefix")
	cmd.Flags().Float64Var(&f.speed, "speed", 1,
		"playback speed, 0 publishes as fast as possible")
	cmd.Flags().IntVar(&f.keyframes, "keyframe-interval", publish.DefaultKeyframeInterval,
		"frames between two frames carrying the complete state")
	cmd.Flags().StringVar(&f.kvBucket, "kv-bucket", "",
		"JetStream key value bucket for session manifests (disabled if empty)")
	cmd.Flags().BoolVar(&f.force, "force", false,
		"rebuild even if the cache holds an entry")
	return cmd
}

//nolint:funlen // long function
func runPublish(cmd *cobra.Command, file string, f *publishFlags) error {
	logger, sqlLogger, err := cmdutil.SetupLogger()
	if err != nil {
		return err
	}
	ctx, stop := signal.NotifyContext(log.AddToContext(cmd.Context(), logger), os.Interrupt, syscall.SIGTERM)
	defer stop()
	shutdown := cmdutil.StartTelemetry(ctx, logger)
	defer shutdown()

	store, err := cmdutil.OpenCache(ctx, logger, sqlLogger)
	if err != nil {
		return err
	}
	if store != nil {
		defer store.Close()
	}
	b, err := cmdutil.LoadOrBuild(ctx, cmdutil.BuildParams{
		SessionFile: file,
		Store:       store,
		Force:       f.force,
	})
	if err != nil {
		return err
	}

	if err := cmdutil.WaitForNats(ctx); err != nil {
		return err
	}
	conn, err := nats.Connect(config.NatsURL,
		nats.Name("racereplay"),
		nats.Timeout(10*time.Second))
	if err != nil {
		return err
	}
	defer conn.Close()

	opts := []publish.Option{
		publish.WithLogger(logger.Named("publish")),
		publish.WithPrefix(f.prefix),
		publish.WithSpeed(f.speed),
		publish.WithKeyframeInterval(f.keyframes),
	}
	if f.kvBucket != "" {
		kv, err := setupKV(ctx, conn, f.kvBucket)
		if err != nil {
			return err
		}
		opts = append(opts, publish.WithKeyValue(kv))
	}
	p := publish.NewPublisher(conn, opts...)
	if err := p.Publish(ctx, b.Replay); err != nil {
		return err
	}
	logger.Info("session published",
		log.String("subject", p.Subject(&b.Replay.Meta.Info)),
		log.Int("frames", len(b.Replay.Frames)))
	return nil
}

//nolint:whitespace // can't make both editor and linter happy
func setupKV(
	ctx context.Context,
	conn *nats.Conn,
	bucket string,
) (jetstream.KeyValue, error) {
	js, err := jetstream.New(conn)
	if err != nil {
		return nil, err
	}
	return js.CreateOrUpdateKeyValue(ctx, jetstream.KeyValueConfig{
		Bucket: bucket,
		TTL:    time.Hour * 24,
	})
}
