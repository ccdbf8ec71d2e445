package check

import (
	"github.com/spf13/cobra"
)

func NewCheckCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "check",
		Short: "commands to check processed data",
	}

	cmd.AddCommand(NewCheckFramesCmd())

	return cmd
}
