package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/spf13/cobra"

	"github.com/briangreenhill/wooadmin/filters"
)

const browseHelp = `commands:
  search <text>     type a search (debounced)
  category <id>     set or clear (no id) the category
  min <price>       set or clear the lowest price
  max <price>       set or clear the highest price
  price <min> <max> set both bounds in one URL write ("-" clears one)
  clear             reset every filter
  url <query>       navigate to a query string
  state             print the current filters
  quit`

func newBrowseCmd(c *cli) *cobra.Command {
	var start string
	cmd := &cobra.Command{
		Use:   "browse",
		Short: "Filter products interactively; the listing follows the URL query",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return c.browse(cmd.Context(), start)
		},
	}
	cmd.Flags().StringVar(&start, "query", "", "initial query string, e.g. search=hat&category=5")
	return cmd
}

// browse drives a filters.Sync from stdin. Every URL write triggers a
// fetch of the first page for the new query.
func (c *cli) browse(ctx context.Context, start string) error {
	if _, err := c.Stack(ctx); err != nil {
		return err
	}
	// the listing goroutine and the prompt share the output
	bc := *c
	bc.out = &lockedWriter{w: c.out}
	c = &bc

	loc, err := filters.NewMemoryLocation(start)
	if err != nil {
		return fmt.Errorf("--query: %w", err)
	}

	// holds at most the latest query; older ones are superseded
	queries := make(chan url.Values, 1)
	push := func(q url.Values) {
		for {
			select {
			case queries <- q:
				return
			default:
				select {
				case <-queries:
				default:
				}
			}
		}
	}
	loc.OnReplace(push)

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for q := range queries {
			fmt.Fprintf(c.out, "-- ?%s\n", q.Encode())
			if err := c.listProducts(ctx, filters.FromQuery(q), 1, false); err != nil {
				fmt.Fprintf(c.out, "error: %v\n", err)
			}
		}
	}()

	s := filters.New(loc, filters.WithLogger(c.log))
	if st := s.State(); st.HasActiveFilters() {
		push(loc.Query())
	}
	fmt.Fprintln(c.out, browseHelp)

	scanner := bufio.NewScanner(c.in)
	for scanner.Scan() {
		if !browseLine(c, s, loc, push, scanner.Text()) {
			break
		}
	}

	// let a typed search land before tearing down
	if phase, deadline := s.Pending(); phase == filters.PendingDebounce {
		time.Sleep(time.Until(deadline) + 20*time.Millisecond)
	}
	s.Close()
	close(queries)
	wg.Wait()
	return scanner.Err()
}

// browseLine applies one command. It returns false on quit.
func browseLine(c *cli, s *filters.Sync, loc *filters.MemoryLocation, push func(url.Values), line string) bool {
	verb, arg, _ := strings.Cut(strings.TrimSpace(line), " ")
	arg = strings.TrimSpace(arg)

	switch verb {
	case "":
	case "search":
		s.SetSearchQuery(arg)
	case "category":
		s.SetCategory(arg)
	case "min":
		s.SetMinPrice(arg)
	case "max":
		s.SetMaxPrice(arg)
	case "price":
		bounds := strings.Fields(arg)
		if len(bounds) != 2 {
			fmt.Fprintln(c.out, "usage: price <min> <max>")
			return true
		}
		for i, b := range bounds {
			if b == "-" {
				bounds[i] = ""
			}
		}
		s.Batch(func(tx *filters.Tx) {
			tx.SetMinPrice(bounds[0])
			tx.SetMaxPrice(bounds[1])
		})
	case "clear":
		s.ClearFilters()
	case "url":
		q, err := url.ParseQuery(strings.TrimPrefix(arg, "?"))
		if err != nil {
			fmt.Fprintf(c.out, "bad query: %v\n", err)
			return true
		}
		loc.Navigate(q)
		s.URLChanged()
		// navigation is not a write, so the listing is asked for directly
		push(loc.Query())
	case "state":
		st := s.State()
		fmt.Fprintf(c.out, "search=%q debounced=%q category=%q min=%q max=%q active=%d\n",
			st.SearchQuery, st.DebouncedSearchQuery, st.Category, st.MinPrice, st.MaxPrice, st.ActiveFilterCount())
	case "quit", "exit":
		return false
	default:
		fmt.Fprintf(c.out, "unknown command %q\n%s\n", verb, browseHelp)
	}
	return true
}

type lockedWriter struct {
	mu sync.Mutex
	w  io.Writer
}

func (l *lockedWriter) Write(p []byte) (int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.w.Write(p)
}
