// Package discovery searches the other retailers for listings of the same product.
package discovery

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"pricetracker-backend/internal/components/telemetry"
	"pricetracker-backend/internal/retailer"
	"pricetracker-backend/internal/scraper"
	"pricetracker-backend/internal/scraper/stores"
	"pricetracker-backend/lib/pricestore"

	"github.com/antzucaro/matchr"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"golang.org/x/sync/errgroup"
)

var tracer = otel.Tracer("pricetracker.internal.scraper.discovery")

const (
	report_discoverer_search  = "discoverer.search"
	report_discoverer_blocked = "discoverer.blocked"
	report_discoverer_found   = "discoverer.found"
)

// DefaultWorkers is the most retailers searched at once by a single Discover call.
const DefaultWorkers = 3

// Fetcher is the part of *fetch.Client discovery needs.
type Fetcher interface {
	Fetch(ctx context.Context, url string) (string, error)
}

// Candidate is a listing on another retailer that is probably the same product.
type Candidate struct {
	Retailer retailer.Retailer
	URL      string
	Name     string
	// EstimatedPrice is what the search page showed, it has not been checked against the
	// product page.
	EstimatedPrice *float64
	// Similarity is the Jaro-Winkler similarity of the searched name and Name in [0, 1].
	Similarity float64
	Provenance pricestore.Source
}

type Options struct {
	Workers int
	// Retailers defaults to every searchable retailer.
	Retailers []retailer.Retailer
	Tel       telemetry.API
}

type Discoverer struct {
	fetcher   Fetcher
	registry  stores.Registry
	workers   int
	retailers []retailer.Retailer
	tel       telemetry.API
}

func NewDiscoverer(fetcher Fetcher, registry stores.Registry, opts Options) *Discoverer {
	d := &Discoverer{
		fetcher:   fetcher,
		registry:  registry,
		workers:   opts.Workers,
		retailers: opts.Retailers,
		tel:       opts.Tel,
	}
	if d.workers <= 0 {
		d.workers = DefaultWorkers
	}
	if len(d.retailers) == 0 {
		d.retailers = retailer.Searchable()
	}
	if d.tel == nil {
		d.tel = telemetry.SlogAPI{}
	}
	d.tel = telemetry.NewScopedAPI("discovery", d.tel)
	return d
}

// Discover searches every retailer except `exclude` for productName. It never fails, a
// retailer that cannot be searched is reported and left out. The candidates are in the order
// the searches completed.
func (d *Discoverer) Discover(ctx context.Context, productName string, exclude retailer.Retailer) []Candidate {
	ctx, span := tracer.Start(ctx, "Discover")
	defer span.End()
	span.SetAttributes(
		attribute.String("product_name", productName),
		attribute.String("exclude", string(exclude)),
	)

	var mutex sync.Mutex
	candidates := []Candidate{}

	group := errgroup.Group{}
	group.SetLimit(d.workers)
	for _, r := range d.retailers {
		if r == exclude {
			continue
		}
		group.Go(func() error {
			candidate, err := d.search(ctx, productName, r)
			if err != nil {
				if scraper.CauseOf(err) == scraper.CauseForbidden {
					d.tel.ReportWarning(report_discoverer_blocked, string(r), err)
				} else {
					d.tel.ReportWarning(report_discoverer_search, string(r), err)
				}
				return nil
			}
			mutex.Lock()
			candidates = append(candidates, candidate)
			mutex.Unlock()
			return nil
		})
	}
	// searches never return an error, failures only leave out a candidate
	_ = group.Wait()

	span.SetAttributes(attribute.Int("candidates", len(candidates)))
	d.tel.ReportCount(report_discoverer_found, int64(len(candidates)))
	return candidates
}

func (d *Discoverer) search(ctx context.Context, productName string, r retailer.Retailer) (Candidate, error) {
	searchUrl, err := retailer.SearchURL(r, productName)
	if err != nil {
		return Candidate{}, err
	}
	markup, err := d.fetcher.Fetch(ctx, searchUrl)
	if err != nil {
		return Candidate{}, fmt.Errorf("search %s: %w", r, err)
	}
	result, err := d.registry.ExtractSearchResult(ctx, r, markup)
	if err != nil {
		return Candidate{}, fmt.Errorf("search %s: %w", r, err)
	}

	name := result.Name
	if name == "" {
		name = fmt.Sprintf("%s (%s)", productName, r.Title())
	}
	return Candidate{
		Retailer:       r,
		URL:            result.URL,
		Name:           name,
		EstimatedPrice: result.EstimatedPrice,
		Similarity:     Similarity(productName, result.Name),
		Provenance:     pricestore.SourceEstimated,
	}, nil
}

// Similarity compares two product names ignoring case, an empty name is never similar.
func Similarity(a, b string) float64 {
	a = strings.ToLower(strings.TrimSpace(a))
	b = strings.ToLower(strings.TrimSpace(b))
	if a == "" || b == "" {
		return 0
	}
	return matchr.JaroWinkler(a, b, false)
}
