package main

import (
	"pricetracker-backend/cmd/pricetracker/commands"
	"pricetracker-backend/lib/util/serviceutil"
)

func main() {
	ctx := serviceutil.SignalContext()
	commands.ExecuteContext(ctx)
}
