// Command taskroute classifies tasks and routes them as workflows across
// execution platforms.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

func main() {
	if err := newRootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "taskroute",
		Short: "Task complexity classifier and workflow router",
		Long: `taskroute scores tasks for complexity, routes them to execution platforms
and runs the resulting five-step workflows.

Configuration is read from TASKROUTE_* environment variables; flags override them.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	cmd.AddCommand(newServeCommand(), newClassifyCommand())
	return cmd
}
