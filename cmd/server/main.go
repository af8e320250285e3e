package main

import (
	"os"

	"github.com/spf13/cobra"
)

func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:          "goalpath",
		Short:        "Goal, milestone and daily schedule API",
		SilenceUsage: true,
	}

	cmd.AddCommand(newServeCmd())
	cmd.AddCommand(newRemindCmd())
	cmd.AddCommand(newUserCmd())
	return cmd
}

func main() {
	root := newRootCmd()
	// 不带子命令时直接启动服务
	root.RunE = newServeCmd().RunE
	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}
