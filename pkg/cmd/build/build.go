package build

import (
	"fmt"
	"slices"

	"github.com/samber/lo"
	"github.com/spf13/cobra"

	"github.com/mpapenbr/racereplay/log"
	"github.com/mpapenbr/racereplay/pkg/cmd/cmdutil"
)

var force bool

func NewBuildCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "build <session-file>",
		Short: "processes a session file and stores the result in the cache",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runBuild(cmd, args[0])
		},
	}
	cmd.Flags().BoolVar(&force, "force", false,
		"rebuild even if the cache holds an entry")
	return cmd
}

func runBuild(cmd *cobra.Command, file string) error {
	logger, sqlLogger, err := cmdutil.SetupLogger()
	if err != nil {
		return err
	}
	ctx := log.AddToContext(cmd.Context(), logger)
	shutdown := cmdutil.StartTelemetry(ctx, logger)
	defer shutdown()

	store, err := cmdutil.OpenCache(ctx, logger, sqlLogger)
	if err != nil {
		return err
	}
	if store != nil {
		defer store.Close()
	} else {
		logger.Warn("no cache configured, result is not stored")
	}

	b, err := cmdutil.LoadOrBuild(ctx, cmdutil.BuildParams{
		SessionFile: file,
		Store:       store,
		Force:       force,
	})
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()
	info := b.Replay.Meta.Info
	fmt.Fprintf(out, "session:  %d round %d %s (%s)\n",
		info.Season, info.Round, info.Session, info.EventName)
	fmt.Fprintf(out, "run:      %s (cached: %v)\n", b.RunID, b.FromCache)
	fmt.Fprintf(out, "frames:   %d at %d fps, %.1fs\n",
		len(b.Replay.Frames), b.Replay.Timeline.FPS, b.Replay.Timeline.Duration())
	fmt.Fprintf(out, "vehicles: %d\n", len(b.Replay.Meta.Vehicles))
	dropped := lo.Keys(b.Replay.Meta.Dropped)
	slices.Sort(dropped)
	for _, id := range dropped {
		fmt.Fprintf(out, "dropped:  %s: %s\n", id, b.Replay.Meta.Dropped[id])
	}
	log.Debug("build done", log.String("file", file))
	return nil
}
