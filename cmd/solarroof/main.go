// Command solarroof lays out solar panels on a roof described by a TOML
// scene file and reports the expected yield.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx); err != nil {
		if errors.Is(err, context.Canceled) {
			os.Exit(130)
		}
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(ctx context.Context) error {
	c := &cli{log: newLogger(os.Stderr, log.InfoLevel), out: os.Stdout}
	return c.rootCommand().ExecuteContext(ctx)
}

// cli holds the state shared by all commands.
type cli struct {
	log *log.Logger
	out io.Writer
}

func newLogger(w io.Writer, level log.Level) *log.Logger {
	return log.NewWithOptions(w, log.Options{
		ReportTimestamp: true,
		TimeFormat:      "15:04:05.00",
		Level:           level,
	})
}

func (c *cli) rootCommand() *cobra.Command {
	var verbose bool
	root := &cobra.Command{
		Use:           "solarroof",
		Short:         "Lay out solar panels on a roof",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if verbose {
				c.log.SetLevel(log.DebugLevel)
			}
			return nil
		},
	}
	root.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable verbose logging")

	root.AddCommand(c.layoutCommand())
	root.AddCommand(c.plotCommand())
	root.AddCommand(c.insolationCommand())
	return root
}
