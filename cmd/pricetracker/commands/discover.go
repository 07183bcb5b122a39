package commands

import (
	"fmt"
	"strings"

	"pricetracker-backend/internal/retailer"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
)

func init() {
	rootCmd.AddCommand(discoverCmd)
	discoverCmd.Flags().String("exclude", "", "Retailer to leave out of the search.")
}

var discoverCmd = &cobra.Command{
	Use:   "discover <product name>",
	Short: "Search every retailer for a product without tracking anything.",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		var exclude retailer.Retailer
		excludeFlag, _ := cmd.Flags().GetString("exclude")
		if excludeFlag != "" {
			var err error
			exclude, err = retailer.Parse(excludeFlag)
			if err != nil {
				return err
			}
		}

		name := strings.Join(args, " ")
		candidates := env.service.DiscoverSimilar(cmd.Context(), name, exclude)
		if len(candidates) == 0 {
			fmt.Println("No listings found.")
			return nil
		}

		t := newTable()
		t.AppendHeader(table.Row{"Retailer", "Name", "Estimated Price", "Similarity", "URL"})
		for _, c := range candidates {
			t.AppendRow(table.Row{
				c.Retailer.Title(),
				c.Name,
				formatPrice(retailer.DefaultCurrency, c.EstimatedPrice),
				fmt.Sprintf("%.2f", c.Similarity),
				c.URL,
			})
		}
		t.Render()
		return nil
	},
}
