package check

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/mpapenbr/racereplay/log"
	"github.com/mpapenbr/racereplay/pkg/cmd/cmdutil"
	"github.com/mpapenbr/racereplay/pkg/processing/verify"
)

var (
	issueLimit int
	force      bool
)

func NewCheckFramesCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "frames <session-file>",
		Short: "verifies timeline and frames of a processed session",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return checkFrames(cmd, args[0])
		},
	}
	cmd.Flags().IntVar(&issueLimit, "limit", 20,
		"stop after this number of issues (0 = report all)")
	cmd.Flags().BoolVar(&force, "force", false,
		"rebuild even if the cache holds an entry")
	return cmd
}

func checkFrames(cmd *cobra.Command, file string) error {
	logger, sqlLogger, err := cmdutil.SetupLogger()
	if err != nil {
		return err
	}
	ctx := log.AddToContext(cmd.Context(), logger)
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
		Force:       force,
	})
	if err != nil {
		return err
	}

	issues := verify.Replay(b.Replay, issueLimit)
	out := cmd.OutOrStdout()
	for _, issue := range issues {
		fmt.Fprintln(out, issue.Error())
	}
	logger.Info("frames checked",
		log.Int("frames", len(b.Replay.Frames)),
		log.Bool("cached", b.FromCache),
		log.Int("issues", len(issues)))
	if len(issues) > 0 {
		return fmt.Errorf("%d issues found", len(issues))
	}
	fmt.Fprintf(out, "%d frames ok\n", len(b.Replay.Frames))
	return nil
}
