// Package tracker assembles the scraping pipeline, the price history and the comparison
// groups into the operations the presentation layer calls.
package tracker

import (
	"context"
	"fmt"
	"time"

	"pricetracker-backend/internal/components/chrono"
	"pricetracker-backend/internal/components/telemetry"
	"pricetracker-backend/internal/grouping"
	"pricetracker-backend/internal/retailer"
	"pricetracker-backend/internal/scraper"
	"pricetracker-backend/internal/scraper/discovery"
	"pricetracker-backend/internal/scraper/stores"
	"pricetracker-backend/lib/pricestore"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
)

const (
	DefaultProductPause = 2 * time.Second
	DefaultGroupPause   = time.Second
	DefaultStaleAfter   = 5 * time.Minute
)

// Fetcher is the part of *fetch.Client the service needs.
type Fetcher interface {
	Fetch(ctx context.Context, url string) (string, error)
}

// Discoverer is the part of *discovery.Discoverer the service needs.
type Discoverer interface {
	Discover(ctx context.Context, productName string, exclude retailer.Retailer) []discovery.Candidate
}

type Options struct {
	// ProductPause is the wait between two products of a full check.
	ProductPause time.Duration
	// GroupPause is the wait between two products of a group check.
	GroupPause time.Duration
	// StaleAfter is how old the latest observation may get before RefreshIfStale re-checks.
	StaleAfter time.Duration
	// MinSimilarity drops discovered candidates whose name is less similar than this.
	MinSimilarity float64
	Checker       CheckerOptions
	Notifier      Notifier

	Sleep func(ctx context.Context, d time.Duration) error
	Clock chrono.TimeAPI
	Tel   telemetry.API
}

type Service struct {
	store      pricestore.Store
	grouper    grouping.Grouper
	fetcher    Fetcher
	registry   stores.Registry
	discoverer Discoverer
	notifier   Notifier
	checker    *Checker

	productPause  time.Duration
	groupPause    time.Duration
	staleAfter    time.Duration
	minSimilarity float64
	sleep         func(ctx context.Context, d time.Duration) error
	clock         chrono.TimeAPI
	tel           telemetry.API

	checksTotal metric.Int64Counter
	alertsTotal metric.Int64Counter
}

func NewService(
	store pricestore.Store,
	fetcher Fetcher,
	registry stores.Registry,
	discoverer Discoverer,
	opts Options,
) (*Service, error) {
	checksTotal, err := meter.Int64Counter(
		"tracker_checks_total",
		metric.WithDescription("The total amount of product price checks by outcome."),
	)
	if err != nil {
		return nil, err
	}
	alertsTotal, err := meter.Int64Counter(
		"tracker_alerts_total",
		metric.WithDescription("The total amount of target price alerts raised."),
	)
	if err != nil {
		return nil, err
	}

	s := &Service{
		store:         store,
		grouper:       grouping.NewGrouper(store),
		fetcher:       fetcher,
		registry:      registry,
		discoverer:    discoverer,
		notifier:      opts.Notifier,
		productPause:  opts.ProductPause,
		groupPause:    opts.GroupPause,
		staleAfter:    opts.StaleAfter,
		minSimilarity: opts.MinSimilarity,
		sleep:         opts.Sleep,
		clock:         opts.Clock,
		tel:           opts.Tel,
		checksTotal:   checksTotal,
		alertsTotal:   alertsTotal,
	}
	if s.productPause <= 0 {
		s.productPause = DefaultProductPause
	}
	if s.groupPause <= 0 {
		s.groupPause = DefaultGroupPause
	}
	if s.staleAfter <= 0 {
		s.staleAfter = DefaultStaleAfter
	}
	if s.notifier == nil {
		s.notifier = LogNotifier{}
	}
	if s.sleep == nil {
		s.sleep = sleepContext
	}
	if s.clock == nil {
		s.clock = chrono.NewStandardTime(nil)
	}
	if s.tel == nil {
		s.tel = telemetry.SlogAPI{}
	}
	s.tel = telemetry.NewScopedAPI("tracker", s.tel)

	checkerOpts := opts.Checker
	if checkerOpts.Tel == nil {
		checkerOpts.Tel = s.tel
	}
	s.checker = NewChecker(s.backgroundPass, checkerOpts)
	return s, nil
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

func (s *Service) Store() pricestore.Store {
	return s.store
}

func (s *Service) Grouper() grouping.Grouper {
	return s.grouper
}

func (s *Service) countCheck(ctx context.Context, product pricestore.Product, outcome string) {
	s.checksTotal.Add(ctx, 1, metric.WithAttributes(
		attribute.String("retailer", string(product.Retailer)),
		attribute.String("outcome", outcome),
	))
}

// CheckPriceNow fetches the product page, extracts the price and appends it to the
// history. It returns the latest observation, which is the one already stored for this
// second if another check beat this one to it.
func (s *Service) CheckPriceNow(ctx context.Context, product pricestore.Product) (pricestore.Observation, error) {
	ctx, span := tracer.Start(ctx, "CheckPriceNow")
	defer span.End()
	span.SetAttributes(
		attribute.Int64("product_id", product.ID),
		attribute.String("retailer", string(product.Retailer)),
	)

	markup, err := s.fetcher.Fetch(ctx, product.URL)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to fetch product page")
		s.countCheck(ctx, product, string(scraper.CauseOf(err)))
		return pricestore.Observation{}, fmt.Errorf("check product %d: %w", product.ID, err)
	}
	price, err := s.registry.ExtractPrice(ctx, product.Retailer, markup)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to extract price")
		s.countCheck(ctx, product, string(scraper.CauseOf(err)))
		return pricestore.Observation{}, fmt.Errorf("check product %d: %w", product.ID, err)
	}

	obs, inserted, err := s.store.Append(ctx, product.ID, price)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to append observation")
		s.countCheck(ctx, product, "store_error")
		return pricestore.Observation{}, fmt.Errorf("check product %d: %w", product.ID, err)
	}
	if !inserted {
		latest, ok, err := s.store.LatestObservation(ctx, product.ID)
		if err != nil {
			return pricestore.Observation{}, fmt.Errorf("check product %d: %w", product.ID, err)
		}
		if ok {
			obs = latest
		}
	}
	s.countCheck(ctx, product, "success")
	span.SetAttributes(attribute.Float64("price", price))

	if !inserted {
		return obs, nil
	}
	if alert, ok := shouldAlert(product, obs.Price); ok {
		s.alertsTotal.Add(ctx, 1)
		err := s.notifier.Notify(ctx, alert)
		if err != nil {
			s.tel.ReportWarning(report_check_alert, product.ID, err)
		}
	}
	return obs, nil
}

// reportCheckFailure keeps retailer trouble a warning, anything else is the store breaking.
func (s *Service) reportCheckFailure(product pricestore.Product, err error) {
	if scraper.CauseOf(err) != "" {
		s.tel.ReportWarning(report_check_product, product.ID, string(product.Retailer), err)
		return
	}
	s.tel.ReportBroken(report_check_store, product.ID, string(product.Retailer), err)
}

// checkAll checks every product one after another with a pause in between. A product that
// fails is reported and skipped, only a canceled context ends the run early.
func (s *Service) checkAll(ctx context.Context, products []pricestore.Product, pause time.Duration) (int, error) {
	updated := 0
	for i, product := range products {
		if i > 0 {
			err := s.sleep(ctx, pause)
			if err != nil {
				return updated, err
			}
		}
		_, err := s.CheckPriceNow(ctx, product)
		if err != nil {
			if ctx.Err() != nil {
				return updated, ctx.Err()
			}
			s.reportCheckFailure(product, err)
			continue
		}
		updated++
	}
	return updated, nil
}

// RunFullCheck checks every active product and returns how many got a price.
func (s *Service) RunFullCheck(ctx context.Context) (int, error) {
	ctx, span := tracer.Start(ctx, "RunFullCheck")
	defer span.End()

	products, err := s.store.ListProducts(ctx, pricestore.StatusActive)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to list products")
		return 0, fmt.Errorf("full check: %w", err)
	}
	updated, err := s.checkAll(ctx, products, s.productPause)
	span.SetAttributes(
		attribute.Int("products", len(products)),
		attribute.Int("updated", updated),
	)
	s.tel.ReportCount(report_full_check, int64(updated))
	return updated, err
}

// RunGroupCheck checks every active member of a group and returns how many got a price.
func (s *Service) RunGroupCheck(ctx context.Context, groupID string) (int, error) {
	ctx, span := tracer.Start(ctx, "RunGroupCheck")
	defer span.End()
	span.SetAttributes(attribute.String("group_id", groupID))

	members, err := s.grouper.MembersOf(ctx, groupID)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to list group members")
		return 0, fmt.Errorf("group check: %w", err)
	}
	updated, err := s.checkAll(ctx, members, s.groupPause)
	s.tel.ReportCount(report_group_check, int64(updated))
	return updated, err
}

func (s *Service) backgroundPass(ctx context.Context) {
	updated, err := s.RunFullCheck(ctx)
	if err != nil {
		s.tel.ReportBroken(report_checker_pass, err)
		return
	}
	s.tel.ReportDebug(report_checker_pass, "updated", updated)
}

func (s *Service) StartBackgroundChecker() {
	s.checker.Start()
}

func (s *Service) StopBackgroundChecker() {
	s.checker.Stop()
}

func (s *Service) BackgroundCheckerRunning() bool {
	return s.checker.IsRunning()
}

// DiscoverSimilar searches the other retailers for the product, it never fails.
func (s *Service) DiscoverSimilar(ctx context.Context, productName string, exclude retailer.Retailer) []discovery.Candidate {
	return s.discoverer.Discover(ctx, productName, exclude)
}
