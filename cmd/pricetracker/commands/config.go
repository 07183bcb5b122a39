package commands

import (
	"fmt"
	"time"

	"pricetracker-backend/internal/scraper/discovery"
	"pricetracker-backend/internal/scraper/fetch"
	configlibsql "pricetracker-backend/lib/configutil/libsql"
	"pricetracker-backend/lib/telemetry"
	"pricetracker-backend/services/tracker"
)

type FetchConfig struct {
	TimeoutSeconds    int     `json:"timeout_seconds"`
	RequestsPerSecond float64 `json:"requests_per_second"`
	HumanDelayMinMs   int     `json:"human_delay_min_ms"`
	HumanDelayMaxMs   int     `json:"human_delay_max_ms"`
}

type CheckerConfig struct {
	IntervalMinutes   int `json:"interval_minutes"`
	ProductPauseMs    int `json:"product_pause_ms"`
	GroupPauseMs      int `json:"group_pause_ms"`
	StaleAfterMinutes int `json:"stale_after_minutes"`
}

type DiscoveryConfig struct {
	Workers       int     `json:"workers"`
	MinSimilarity float64 `json:"min_similarity"`
}

type AlertsConfig struct {
	Smtp tracker.SmtpConfig `json:"smtp"`
	To   []string           `json:"to"`
}

type Config struct {
	Database  configlibsql.Struct `json:"database"`
	Fetch     FetchConfig         `json:"fetch"`
	Checker   CheckerConfig       `json:"checker"`
	Discovery DiscoveryConfig     `json:"discovery"`
	Alerts    AlertsConfig        `json:"alerts"`
	// Telemetry falls back to a telemetry.json5 found up the directory tree when it has
	// no endpoints.
	Telemetry telemetry.Config `json:"telemetry"`
	// StatusPort is the port `serve` exposes /status on, 0 disables it.
	StatusPort int `json:"status_port"`
}

func (c *Config) SetDefaults() {
	if c.Database.File == "" && c.Database.Url == "" {
		c.Database.File = "data/prices.db"
	}
	if c.Fetch.TimeoutSeconds <= 0 {
		c.Fetch.TimeoutSeconds = 30
	}
	if c.Fetch.HumanDelayMinMs <= 0 {
		c.Fetch.HumanDelayMinMs = int(fetch.DefaultHumanDelay.Min / time.Millisecond)
	}
	if c.Fetch.HumanDelayMaxMs <= 0 {
		c.Fetch.HumanDelayMaxMs = int(fetch.DefaultHumanDelay.Max / time.Millisecond)
	}
	if c.Checker.IntervalMinutes <= 0 {
		c.Checker.IntervalMinutes = int(tracker.DefaultCheckInterval / time.Minute)
	}
	if c.Checker.ProductPauseMs <= 0 {
		c.Checker.ProductPauseMs = int(tracker.DefaultProductPause / time.Millisecond)
	}
	if c.Checker.GroupPauseMs <= 0 {
		c.Checker.GroupPauseMs = int(tracker.DefaultGroupPause / time.Millisecond)
	}
	if c.Checker.StaleAfterMinutes <= 0 {
		c.Checker.StaleAfterMinutes = int(tracker.DefaultStaleAfter / time.Minute)
	}
	if c.Discovery.Workers <= 0 {
		c.Discovery.Workers = discovery.DefaultWorkers
	}
	if c.Alerts.Smtp.Port == 0 {
		c.Alerts.Smtp.Port = 587
	}
}

func (c *Config) Validate() error {
	if c.Fetch.HumanDelayMinMs > c.Fetch.HumanDelayMaxMs {
		return fmt.Errorf(
			"fetch.human_delay_min_ms (%d) is larger than fetch.human_delay_max_ms (%d)",
			c.Fetch.HumanDelayMinMs, c.Fetch.HumanDelayMaxMs,
		)
	}
	if c.Fetch.RequestsPerSecond < 0 {
		return fmt.Errorf("fetch.requests_per_second must not be negative")
	}
	if c.Discovery.MinSimilarity < 0 || c.Discovery.MinSimilarity > 1 {
		return fmt.Errorf("discovery.min_similarity must be within [0, 1]")
	}
	if len(c.Alerts.To) > 0 && (c.Alerts.Smtp.Server == "" || c.Alerts.Smtp.EmailAddress == "") {
		return fmt.Errorf("alerts.to is set but alerts.smtp is incomplete")
	}
	return nil
}

func (c Config) humanDelay() *fetch.HumanDelay {
	delay := fetch.DefaultHumanDelay
	delay.Min = time.Duration(c.Fetch.HumanDelayMinMs) * time.Millisecond
	delay.Max = time.Duration(c.Fetch.HumanDelayMaxMs) * time.Millisecond
	return &delay
}

func (c Config) serviceOptions() tracker.Options {
	notifiers := tracker.Notifiers{tracker.LogNotifier{}}
	if len(c.Alerts.To) > 0 {
		notifiers = append(notifiers, tracker.EmailNotifier{Smtp: c.Alerts.Smtp, To: c.Alerts.To})
	}
	return tracker.Options{
		ProductPause:  time.Duration(c.Checker.ProductPauseMs) * time.Millisecond,
		GroupPause:    time.Duration(c.Checker.GroupPauseMs) * time.Millisecond,
		StaleAfter:    time.Duration(c.Checker.StaleAfterMinutes) * time.Minute,
		MinSimilarity: c.Discovery.MinSimilarity,
		Checker: tracker.CheckerOptions{
			Interval: time.Duration(c.Checker.IntervalMinutes) * time.Minute,
		},
		Notifier: notifiers,
	}
}
