package commands

import (
	"fmt"

	"pricetracker-backend/lib/pricestore"

	"github.com/spf13/cobra"
)

func init() {
	rootCmd.AddCommand(deleteCmd)
	rootCmd.AddCommand(pauseCmd)
	rootCmd.AddCommand(resumeCmd)
}

var deleteCmd = &cobra.Command{
	Use:   "delete <product id>",
	Short: "Stop tracking a product and delete its price history.",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := parseID(args[0])
		if err != nil {
			return err
		}
		err = env.service.Store().DeleteProduct(cmd.Context(), id)
		if err != nil {
			return err
		}
		fmt.Printf("Deleted product #%d.\n", id)
		return nil
	},
}

func setStatusCmd(use, short string, status pricestore.Status) *cobra.Command {
	return &cobra.Command{
		Use:   use + " <product id>",
		Short: short,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			return env.service.Store().SetStatus(cmd.Context(), id, status)
		},
	}
}

var (
	pauseCmd  = setStatusCmd("pause", "Exclude a product from checks and comparisons.", pricestore.StatusInactive)
	resumeCmd = setStatusCmd("resume", "Include a paused product in checks and comparisons again.", pricestore.StatusActive)
)
