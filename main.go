package main

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/briangreenhill/wooadmin/internal/app"
	"github.com/briangreenhill/wooadmin/internal/config"
)

const version = "0.1.0"

func main() {
	if err := newRootCmd(os.Stdin, os.Stdout, nil).Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// opener builds the cache and store client for a command
type opener func(ctx context.Context, log zerolog.Logger) (*app.Stack, error)

func openFromEnv(ctx context.Context, log zerolog.Logger) (*app.Stack, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return app.Open(ctx, cfg, nil, log)
}

type cli struct {
	in      io.Reader
	out     io.Writer
	open    opener
	verbose bool

	log   zerolog.Logger
	stack *app.Stack
}

// Stack opens the stack on first use.
func (c *cli) Stack(ctx context.Context) (*app.Stack, error) {
	if c.stack != nil {
		return c.stack, nil
	}
	st, err := c.open(ctx, c.log)
	if err != nil {
		return nil, err
	}
	c.stack = st
	return st, nil
}

func newRootCmd(in io.Reader, out io.Writer, open opener) *cobra.Command {
	if open == nil {
		open = openFromEnv
	}
	c := &cli{in: in, out: out, open: open}

	root := &cobra.Command{
		Use:           "wooadmin",
		Short:         "Browse and manage a WooCommerce store through its response cache",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, _ []string) {
			level := zerolog.WarnLevel
			if c.verbose {
				level = zerolog.DebugLevel
			}
			c.log = zerolog.New(zerolog.ConsoleWriter{Out: cmd.ErrOrStderr()}).With().Timestamp().Logger().Level(level)
		},
		PersistentPostRunE: func(*cobra.Command, []string) error {
			if c.stack == nil {
				return nil
			}
			return c.stack.Close()
		},
	}
	root.SetIn(in)
	root.SetOut(out)
	root.PersistentFlags().BoolVarP(&c.verbose, "verbose", "v", false, "log cache and store activity")

	root.AddCommand(
		newProductsCmd(c),
		newBrowseCmd(c),
		newCacheCmd(c),
		newCheckCmd(c),
	)
	return root
}

func newCheckCmd(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "check",
		Short: "Verify the store credentials",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			st, err := c.Stack(cmd.Context())
			if err != nil {
				return err
			}
			if err := st.Woo.TestConnection(cmd.Context()); err != nil {
				return err
			}
			fmt.Fprintln(c.out, "store connection ok")
			return nil
		},
	}
}
