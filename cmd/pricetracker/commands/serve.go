package commands

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"pricetracker-backend/lib/pricestore"
	"pricetracker-backend/lib/telemetry"
	"pricetracker-backend/lib/timezone"
	"pricetracker-backend/lib/util/serviceutil"

	"github.com/spf13/cobra"
)

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().Bool("check", false, "Run a full check immediately instead of waiting for the checker.")
}

type statusResponse struct {
	CheckerRunning bool      `json:"checker_running"`
	Products       int       `json:"products"`
	Groups         int       `json:"groups"`
	Now            time.Time `json:"now"`
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the background checker until interrupted.",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		service := env.service

		check, _ := cmd.Flags().GetBool("check")
		if check {
			updated, err := service.RunFullCheck(ctx)
			if err != nil {
				return err
			}
			slog.Info("initial check done", "updated", updated)
		}

		telemetry.InstrumentPerfStats(ctx, time.Minute)

		service.StartBackgroundChecker()
		defer service.StopBackgroundChecker()

		if env.config.StatusPort == 0 {
			<-ctx.Done()
			return nil
		}

		mux := http.NewServeMux()
		mux.HandleFunc("/status", func(w http.ResponseWriter, r *http.Request) {
			products, err := service.Store().ListProducts(r.Context(), pricestore.StatusActive)
			if err != nil {
				http.Error(w, err.Error(), http.StatusInternalServerError)
				return
			}
			groups, err := service.Grouper().AllGroups(r.Context())
			if err != nil {
				http.Error(w, err.Error(), http.StatusInternalServerError)
				return
			}
			w.Header().Set("Content-Type", "application/json")
			json.NewEncoder(w).Encode(statusResponse{
				CheckerRunning: service.BackgroundCheckerRunning(),
				Products:       len(products),
				Groups:         len(groups),
				Now:            timezone.Now(),
			})
		})
		return serviceutil.StartHttpServer(ctx, env.config.StatusPort, mux)
	},
}
