package tracker

import "go.opentelemetry.io/otel"

const library_name = "pricetracker.services.tracker"

var (
	tracer = otel.Tracer(library_name)
	meter  = otel.Meter(library_name)
)

const (
	report_check_product   = "service.check-product"
	report_check_store     = "service.check-store"
	report_check_alert     = "service.check-alert"
	report_full_check      = "service.full-check"
	report_group_check     = "service.group-check"
	report_auto_compare    = "service.auto-compare"
	report_refresh_stale   = "service.refresh-stale"
	report_edit_product    = "service.edit-product"
	report_checker_pass    = "checker.pass"
	report_checker_stopped = "checker.stop"
)
