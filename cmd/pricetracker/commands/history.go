package commands

import (
	"fmt"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
)

func init() {
	rootCmd.AddCommand(historyCmd)
	historyCmd.Flags().Bool("refresh", false, "Re-check the price first if it is stale.")
}

var historyCmd = &cobra.Command{
	Use:   "history <product id>",
	Short: "Show the price history of a product.",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		service := env.service
		id, err := parseID(args[0])
		if err != nil {
			return err
		}

		product, err := service.Store().GetProduct(ctx, id)
		if err != nil {
			return err
		}
		refresh, _ := cmd.Flags().GetBool("refresh")
		if refresh {
			product, _, err = service.RefreshIfStale(ctx, id)
			if err != nil {
				return err
			}
		}
		history, err := service.Store().History(ctx, id)
		if err != nil {
			return err
		}

		fmt.Printf("%s (%s)\n%s\n", product.Name, product.Retailer.Title(), product.URL)
		t := newTable()
		t.AppendHeader(table.Row{"Checked At", "Price", "Source"})
		for _, obs := range history {
			t.AppendRow(table.Row{
				formatTime(&obs.CheckedAt),
				formatPrice(product.Currency, &obs.Price),
				obs.Source,
			})
		}
		t.Render()
		return nil
	},
}
