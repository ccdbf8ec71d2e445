package export

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/mpapenbr/racereplay/log"
	"github.com/mpapenbr/racereplay/pkg/cmd/cmdutil"
	webexport "github.com/mpapenbr/racereplay/pkg/export"
	"github.com/mpapenbr/racereplay/pkg/replaycache"
)

type exportFlags struct {
	out       string
	chunkSize int
	gzip      bool
	features  bool
	force     bool
	watch     bool
	debounce  time.Duration
}

func NewExportCmd() *cobra.Command {
	f := &exportFlags{}
	cmd := &cobra.Command{
		Use:   "export <session-file>",
		Short: "exports a session as chunked json for web clients",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runExport(cmd, args[0], f)
		},
	}
	cmd.Flags().StringVarP(&f.out, "out", "o", "web/data",
		"output directory")
	cmd.Flags().IntVar(&f.chunkSize, "chunk-size", webexport.DefaultChunkSize,
		"frames per chunk file")
	cmd.Flags().BoolVar(&f.gzip, "gzip", false,
		"write gzip compressed files")
	cmd.Flags().BoolVar(&f.features, "features", false,
		"write per lap features")
	cmd.Flags().BoolVar(&f.force, "force", false,
		"rebuild even if the cache holds an entry")
	cmd.Flags().BoolVar(&f.watch, "watch", false,
		"export again whenever the session file changes")
	cmd.Flags().DurationVar(&f.debounce, "debounce", 500*time.Millisecond,
		"wait time after the last change before exporting")
	return cmd
}

func runExport(cmd *cobra.Command, file string, f *exportFlags) error {
	logger, sqlLogger, err := cmdutil.SetupLogger()
	if err != nil {
		return err
	}
	ctx, stop := signal.NotifyContext(log.AddToContext(cmd.Context(), logger), os.Interrupt, syscall.SIGTERM)
	defer stop()
	shutdown := cmdutil.StartTelemetry(ctx, logger)
	defer shutdown()

	exporter, err := webexport.NewExporter(
		webexport.WithLogger(logger.Named("export")),
		webexport.WithOptions(webexport.Options{
			OutputDir: f.out,
			ChunkSize: f.chunkSize,
			Gzip:      f.gzip,
		}))
	if err != nil {
		return err
	}
	store, err := cmdutil.OpenCache(ctx, logger, sqlLogger)
	if err != nil {
		return err
	}
	if store != nil {
		defer store.Close()
	}

	if err := exportOnce(ctx, logger, exporter, store, file, f, f.force); err != nil {
		return err
	}
	if !f.watch {
		return nil
	}
	return watchFile(ctx, logger.Named("watch"), file, f.debounce, func() error {
		// the content changed, so a cached entry is outdated
		return exportOnce(ctx, logger, exporter, store, file, f, true)
	})
}

//nolint:whitespace // can't make both editor and linter happy
func exportOnce(
	ctx context.Context,
	logger *log.Logger,
	exporter *webexport.Exporter,
	store replaycache.Store,
	file string,
	f *exportFlags,
	force bool,
) error {
	b, err := cmdutil.LoadOrBuild(ctx, cmdutil.BuildParams{
		SessionFile: file,
		Store:       store,
		Force:       force,
	})
	if err != nil {
		return err
	}
	var feat *webexport.Features
	if f.features {
		laps, stints := b.Features()
		feat = &webexport.Features{Laps: laps, Stints: stints}
	}
	dir, err := exporter.Export(ctx, b.Replay, feat)
	if err != nil {
		return err
	}
	logger.Info("session exported", log.String("dir", dir))
	return nil
}
