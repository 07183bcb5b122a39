package commands

import (
	"fmt"

	"pricetracker-backend/lib/pricestore"

	"github.com/spf13/cobra"
)

func init() {
	rootCmd.AddCommand(listCmd)
	listCmd.Flags().Bool("all", false, "Include inactive products.")
}

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List tracked products with their current price.",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		status := pricestore.StatusActive
		all, _ := cmd.Flags().GetBool("all")
		if all {
			status = ""
		}
		products, err := env.service.Store().ListProducts(cmd.Context(), status)
		if err != nil {
			return err
		}
		if len(products) == 0 {
			fmt.Println("No products are tracked yet.")
			return nil
		}

		t := newTable()
		t.AppendHeader(productHeader)
		for _, p := range products {
			t.AppendRow(productRow(p))
		}
		t.Render()
		return nil
	},
}
