package stores

import (
	"context"
	"fmt"
	"strings"

	"pricetracker-backend/internal/retailer"
	"pricetracker-backend/internal/scraper"

	"github.com/PuerkitoBio/goquery"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

var tracer = otel.Tracer("pricetracker.internal.scraper.stores")

// Registry maps every supported retailer to its adapter.
type Registry struct {
	adapters map[retailer.Retailer]Adapter
}

func NewRegistry() Registry {
	adapters := map[retailer.Retailer]Adapter{}
	for _, a := range []Adapter{amazonAdapter{}, flipkartAdapter{}, myntraAdapter{}} {
		adapters[a.Retailer()] = a
	}
	return Registry{adapters: adapters}
}

// Adapter fails with an unsupported ScraperError for retailers outside the closed set.
func (r Registry) Adapter(ret retailer.Retailer) (Adapter, error) {
	a, ok := r.adapters[ret]
	if !ok {
		return nil, scraper.Errorf(scraper.CauseUnsupported, "", "retailer %q is not supported", ret)
	}
	return a, nil
}

func (r Registry) parse(ctx context.Context, op string, ret retailer.Retailer, markup string) (Adapter, *goquery.Document, trace.Span, error) {
	_, span := tracer.Start(ctx, op)
	span.SetAttributes(
		attribute.String("retailer", string(ret)),
		attribute.Int("markup_len", len(markup)),
	)

	adapter, err := r.Adapter(ret)
	if err != nil {
		span.SetStatus(codes.Error, "unsupported retailer")
		return nil, nil, span, err
	}
	if strings.TrimSpace(markup) == "" {
		span.SetStatus(codes.Error, "empty markup")
		return nil, nil, span, scraper.Errorf(scraper.CauseNotFound, "", "no markup received from %s", ret.Title())
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(markup))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to parse markup")
		return nil, nil, span, scraper.Errorf(scraper.CauseNotFound, "", "parse %s markup: %w", ret.Title(), err)
	}
	return adapter, doc, span, nil
}

func (r Registry) ExtractPrice(ctx context.Context, ret retailer.Retailer, markup string) (float64, error) {
	adapter, doc, span, err := r.parse(ctx, "ExtractPrice", ret, markup)
	defer span.End()
	if err != nil {
		return 0, err
	}
	price, err := adapter.ExtractPrice(doc)
	if err != nil {
		span.SetStatus(codes.Error, "price not found")
		return 0, err
	}
	span.SetAttributes(attribute.Float64("price", price))
	return price, nil
}

// ExtractName only fails for unsupported retailers, a missing name is UnknownName.
func (r Registry) ExtractName(ctx context.Context, ret retailer.Retailer, markup string) (string, error) {
	adapter, doc, span, err := r.parse(ctx, "ExtractName", ret, markup)
	defer span.End()
	if scraper.CauseOf(err) == scraper.CauseUnsupported {
		return "", err
	}
	if err != nil {
		return UnknownName, nil
	}
	name := adapter.ExtractName(doc)
	if name == "" {
		return UnknownName, nil
	}
	return name, nil
}

func (r Registry) ExtractSearchResult(ctx context.Context, ret retailer.Retailer, markup string) (SearchResult, error) {
	adapter, doc, span, err := r.parse(ctx, "ExtractSearchResult", ret, markup)
	defer span.End()
	if err != nil {
		return SearchResult{}, err
	}
	result, err := adapter.ExtractSearchResult(doc)
	if err != nil {
		span.SetStatus(codes.Error, "search result not found")
		return SearchResult{}, err
	}
	span.SetAttributes(attribute.String("url", result.URL))
	return result, nil
}

type Details struct {
	Name  string
	Price float64
}

// Details extracts the name and price of a product page with a single parse.
func (r Registry) Details(ctx context.Context, ret retailer.Retailer, markup string) (Details, error) {
	adapter, doc, span, err := r.parse(ctx, "Details", ret, markup)
	defer span.End()
	if err != nil {
		return Details{}, err
	}
	price, err := adapter.ExtractPrice(doc)
	if err != nil {
		span.SetStatus(codes.Error, "price not found")
		return Details{}, fmt.Errorf("extract details: %w", err)
	}
	name := adapter.ExtractName(doc)
	if name == "" {
		name = UnknownName
	}
	return Details{Name: name, Price: price}, nil
}
