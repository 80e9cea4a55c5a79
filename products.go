package main

import (
	"context"
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/briangreenhill/wooadmin/filters"
	"github.com/briangreenhill/wooadmin/woocommerce"
)

func newProductsCmd(c *cli) *cobra.Command {
	var (
		st    filters.State
		page  int
		local bool
	)
	cmd := &cobra.Command{
		Use:   "products",
		Short: "List products, optionally filtered",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if page < 1 {
				return fmt.Errorf("--page must be at least 1")
			}
			st.DebouncedSearchQuery = st.SearchQuery
			return c.listProducts(cmd.Context(), st, page, local)
		},
	}
	f := cmd.Flags()
	f.StringVarP(&st.SearchQuery, "search", "s", "", "search text")
	f.StringVarP(&st.Category, "category", "c", "", "category id")
	f.StringVar(&st.MinPrice, "min-price", "", "lowest price")
	f.StringVar(&st.MaxPrice, "max-price", "", "highest price")
	f.IntVarP(&page, "page", "p", 1, "page number")
	f.BoolVar(&local, "local", false, "fetch the unfiltered page and filter it here (name and SKU search only)")
	return cmd
}

// listProducts fetches one page for st and prints it. With local set the
// store is asked for the plain page and st is applied in-process, so every
// filter combination shares one cache entry.
func (c *cli) listProducts(ctx context.Context, st filters.State, page int, local bool) error {
	stack, err := c.Stack(ctx)
	if err != nil {
		return err
	}

	q := woocommerce.ProductQuery(st, page)
	if local {
		q = woocommerce.ProductQuery(filters.State{}, page)
	}
	res, err := stack.Woo.ListProducts(ctx, q)
	if err != nil {
		return err
	}

	items := res.Items
	if local {
		items = woocommerce.FilterProducts(items, woocommerce.FilterFromState(st))
	}
	printProducts(c.out, items)

	summary := fmt.Sprintf("page %d of %d, %s products", page, max(res.TotalPages, 1), humanize.Comma(int64(res.Total)))
	if n := st.ActiveFilterCount(); n > 0 {
		summary += fmt.Sprintf(", %d active filters", n)
	}
	fmt.Fprintln(c.out, summary)
	return nil
}

func printProducts(out io.Writer, items []woocommerce.Product) {
	if len(items) == 0 {
		fmt.Fprintln(out, "no products")
		return
	}
	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tNAME\tSKU\tPRICE\tSTOCK")
	for _, p := range items {
		fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%s\n", p.ID, p.Name, p.SKU, p.Price, p.StockStatus)
	}
	tw.Flush() //nolint:errcheck
}
