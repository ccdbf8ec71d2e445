package cache

import (
	"errors"
	"fmt"
	"strconv"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/mpapenbr/racereplay/pkg/cmd/cmdutil"
	"github.com/mpapenbr/racereplay/pkg/config"
	"github.com/mpapenbr/racereplay/pkg/replaycache"
)

var errNoCache = errors.New("no cache configured (use --cache)")

func NewCacheCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cache",
		Short: "commands to manage the replay cache",
	}
	cmd.AddCommand(newListCmd())
	cmd.AddCommand(newDeleteCmd())
	return cmd
}

func newListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "lists cached replays",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := openStore(cmd)
			if err != nil {
				return err
			}
			defer store.Close()
			items, err := store.List(cmd.Context())
			if err != nil {
				return err
			}
			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "KEY\tRUN\tCREATED\tFRAMES\tSIZE")
			for _, item := range items {
				fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%d\n",
					item.Key, item.RunID, item.Created.Format("2006-01-02 15:04:05"),
					item.FrameCount, item.Size)
			}
			return w.Flush()
		},
	}
}

func newDeleteCmd() *cobra.Command {
	var fps int
	cmd := &cobra.Command{
		Use:   "delete <season> <round> <session>",
		Short: "deletes a cached replay",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			key, err := parseKey(args, fps)
			if err != nil {
				return err
			}
			store, err := openStore(cmd)
			if err != nil {
				return err
			}
			defer store.Close()
			n, err := store.Delete(cmd.Context(), key)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s: %d entries deleted\n", key, n)
			return nil
		},
	}
	cmd.Flags().IntVar(&fps, "fps", 25, "frames per second of the entry")
	return cmd
}

func parseKey(args []string, fps int) (replaycache.Key, error) {
	season, err := strconv.Atoi(args[0])
	if err != nil {
		return replaycache.Key{}, fmt.Errorf("invalid season: %w", err)
	}
	round, err := strconv.Atoi(args[1])
	if err != nil {
		return replaycache.Key{}, fmt.Errorf("invalid round: %w", err)
	}
	return replaycache.Key{Season: season, Round: round, Session: args[2], FPS: fps}, nil
}

func openStore(cmd *cobra.Command) (replaycache.Store, error) {
	if config.CacheURL == "" {
		return nil, errNoCache
	}
	logger, sqlLogger, err := cmdutil.SetupLogger()
	if err != nil {
		return nil, err
	}
	return cmdutil.OpenCache(cmd.Context(), logger, sqlLogger)
}
