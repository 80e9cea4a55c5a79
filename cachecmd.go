package main

import (
	"fmt"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/briangreenhill/wooadmin/cache"
)

func newCacheCmd(c *cli) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cache",
		Short: "Inspect and maintain the response cache",
	}
	cmd.AddCommand(
		&cobra.Command{
			Use:   "ls",
			Short: "List cached entries",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				st, err := c.Stack(cmd.Context())
				if err != nil {
					return err
				}
				entries := st.Cache.Entries(cmd.Context())
				if len(entries) == 0 {
					fmt.Fprintln(c.out, "cache is empty")
					return nil
				}
				now := time.Now()
				var total int
				tw := tabwriter.NewWriter(c.out, 0, 4, 2, ' ', 0)
				fmt.Fprintln(tw, "ENDPOINT\tSIZE\tSTORED\tKEY")
				for _, e := range entries {
					stored := humanize.Time(now.Add(-e.Age))
					if e.Corrupt {
						stored = "corrupt"
					}
					fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", e.Endpoint, humanize.Bytes(uint64(e.Size)), stored, e.Key)
					total += e.Size
				}
				tw.Flush() //nolint:errcheck
				fmt.Fprintf(c.out, "%d entries, %s\n", len(entries), humanize.Bytes(uint64(total)))
				return nil
			},
		},
		&cobra.Command{
			Use:   "get <endpoint> [key=value...]",
			Short: "Show the cached payload for an endpoint and its parameters",
			Args:  cobra.MinimumNArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				params, err := parseParams(args[1:])
				if err != nil {
					return err
				}
				st, err := c.Stack(cmd.Context())
				if err != nil {
					return err
				}
				res := st.Cache.Lookup(cmd.Context(), args[0], params, 0)
				if res.Status != cache.StatusHit {
					fmt.Fprintln(c.out, res.Status)
					return nil
				}
				fmt.Fprintf(c.out, "%s, stored %s\n%s\n", res.Status, humanize.Time(time.Now().Add(-res.Age)), res.Data)
				return nil
			},
		},
		&cobra.Command{
			Use:   "invalidate <endpoint>",
			Short: "Drop entries for an endpoint and its sub-paths",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				if !strings.HasPrefix(args[0], "/") {
					return fmt.Errorf("endpoint must start with /, got %q", args[0])
				}
				st, err := c.Stack(cmd.Context())
				if err != nil {
					return err
				}
				st.Cache.Invalidate(cmd.Context(), args[0])
				fmt.Fprintf(c.out, "invalidated %s\n", args[0])
				return nil
			},
		},
		&cobra.Command{
			Use:   "clear",
			Short: "Drop every cached entry",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				st, err := c.Stack(cmd.Context())
				if err != nil {
					return err
				}
				st.Cache.ClearAll(cmd.Context())
				fmt.Fprintln(c.out, "cache cleared")
				return nil
			},
		},
		&cobra.Command{
			Use:   "sweep",
			Short: "Drop stale and unreadable entries",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				st, err := c.Stack(cmd.Context())
				if err != nil {
					return err
				}
				n := st.Cache.ClearStale(cmd.Context())
				fmt.Fprintf(c.out, "removed %d stale entries\n", n)
				return nil
			},
		},
	)
	return cmd
}

// parseParams reads key=value pairs into request parameters
func parseParams(args []string) (map[string]string, error) {
	params := map[string]string{}
	for _, a := range args {
		k, v, ok := strings.Cut(a, "=")
		if !ok || k == "" {
			return nil, fmt.Errorf("parameter %q is not key=value", a)
		}
		params[k] = v
	}
	return params, nil
}
