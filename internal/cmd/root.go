package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/turbolytics/patcher/internal/cmd/schema"
)

func NewRootCommand() *cobra.Command {
	var cmd = &cobra.Command{
		Use:   "patcher",
		Short: "Partial updates for postgres tables",
		Long: `patcher turns a set of changed fields into a parameterized UPDATE
statement, optionally executing it against a configured resource.`,
		SilenceUsage: true,
	}

	cmd.AddCommand(newRenderCommand())
	cmd.AddCommand(newUpdateCommand())
	cmd.AddCommand(newServeCommand())
	cmd.AddCommand(schema.NewCommand())

	return cmd
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cmd := NewRootCommand()
	if err := cmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		stop()
		os.Exit(1)
	}
}
