// Command blockvote runs a BlockVote node and the offline tools around it.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"

	"github.com/luca-patrignani/blockvote/config"
)

const configKey = "config"

func rootCommand() *cobra.Command {
	c := &cobra.Command{
		Use:           "blockvote",
		Short:         "Blockchain voting node",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	c.PersistentFlags().String(configKey, config.DefaultPath, "path of the YAML configuration file")
	c.AddCommand(
		serveCommand(),
		keygenCommand(),
		voteCommand(),
		splitCommand(),
		recoverCommand(),
		verifyChainCommand(),
	)
	return c
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if err := rootCommand().ExecuteContext(ctx); err != nil {
		pterm.Error.Println(err)
		stop()
		os.Exit(1)
	}
}
