package main

import (
	"context"
	"os"
	"os/signal"

	"github.com/spf13/cobra"
	"github.com/templui/drive/cmd/do/cmd"
)

func main() {
	cmd.RebuildIfStale()

	rootCmd := &cobra.Command{
		Use:          "do",
		Short:        "Development and operations tools for drive",
		SilenceUsage: true,
	}

	rootCmd.AddCommand(
		cmd.DevCmd(),
		cmd.MigrateCmd(),
	)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	err := rootCmd.ExecuteContext(ctx)
	stop()
	if err != nil {
		os.Exit(1)
	}
}
