package commands

import (
	"fmt"
	"strconv"
	"time"

	"pricetracker-backend/lib/pricestore"
	"pricetracker-backend/lib/timezone"

	"github.com/jedib0t/go-pretty/v6/table"
)

var productHeader = table.Row{"ID", "Retailer", "Name", "Price", "Target", "Group", "Status", "Last Checked"}

func secondsOf(n int) time.Duration {
	return time.Duration(n) * time.Second
}

func parseID(s string) (int64, error) {
	id, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid product id %q", s)
	}
	return id, nil
}

func formatPrice(currency string, price *float64) string {
	if price == nil {
		return "-"
	}
	return fmt.Sprintf("%s %.2f", currency, *price)
}

func formatTime(t *time.Time) string {
	if t == nil {
		return "never"
	}
	return t.In(timezone.Location).Format(time.DateTime)
}

func productRow(p pricestore.Product) table.Row {
	return table.Row{
		p.ID,
		p.Retailer.Title(),
		p.Name,
		formatPrice(p.Currency, p.CurrentPrice),
		formatPrice(p.Currency, p.TargetPrice),
		p.GroupID,
		p.Status,
		formatTime(p.LastChecked),
	}
}
