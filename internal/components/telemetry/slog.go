package telemetry

import (
	"fmt"
	"log/slog"
)

// SlogAPI implements API using the log/slog package.
type SlogAPI struct{}

// formatParams turns positional params into slog pairs, errors get the conventional
// "err" key so they line up with the rest of the logs.
func (SlogAPI) formatParams(out *[]any, params []any) {
	for i, p := range params {
		key := fmt.Sprintf("params.%d", i)
		if _, ok := p.(error); ok {
			key = "err"
		}
		*out = append(*out, key, p)
	}
}

func (s SlogAPI) ReportBroken(id string, params ...any) {
	pairs := []any{"id", id}
	s.formatParams(&pairs, params)
	slog.Error("broken component", pairs...)
}

func (s SlogAPI) ReportWarning(id string, params ...any) {
	pairs := []any{"id", id}
	s.formatParams(&pairs, params)
	slog.Warn("warning", pairs...)
}

func (s SlogAPI) ReportDebug(message string, params ...any) {
	var pairs []any
	s.formatParams(&pairs, params)
	slog.Debug(message, pairs...)
}

func (s SlogAPI) ReportCount(id string, count int64) {
	slog.Info("count", "id", id, "n", count)
}
