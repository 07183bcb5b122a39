package tracker

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"pricetracker-backend/internal/grouping"
	"pricetracker-backend/internal/retailer"
	"pricetracker-backend/internal/scraper/discovery"
	"pricetracker-backend/internal/scraper/stores"
	"pricetracker-backend/lib/pricestore"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

// AddProduct starts tracking the product at rawUrl. The page is fetched once to learn the
// name and the first price, which is stored as a checked observation.
func (s *Service) AddProduct(ctx context.Context, rawUrl string, targetPrice *float64) (pricestore.Product, error) {
	ctx, span := tracer.Start(ctx, "AddProduct")
	defer span.End()

	rawUrl = strings.TrimSpace(rawUrl)
	r, err := retailer.Detect(rawUrl)
	if err != nil {
		span.SetStatus(codes.Error, "unsupported url")
		return pricestore.Product{}, fmt.Errorf("add product: %w", err)
	}
	if targetPrice != nil && *targetPrice < 0 {
		return pricestore.Product{}, fmt.Errorf("add product: negative target price %v", *targetPrice)
	}

	// fail before spending a fetch on a url that cannot be stored anyway
	_, err = s.store.GetProductByURL(ctx, rawUrl)
	if err == nil {
		return pricestore.Product{}, fmt.Errorf("add product: %w", pricestore.ErrDuplicateURL)
	}
	if !errors.Is(err, pricestore.ErrNotFound) {
		return pricestore.Product{}, fmt.Errorf("add product: %w", err)
	}

	markup, err := s.fetcher.Fetch(ctx, rawUrl)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to fetch product page")
		return pricestore.Product{}, fmt.Errorf("add product: %w", err)
	}
	details, err := s.registry.Details(ctx, r, markup)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to extract details")
		return pricestore.Product{}, fmt.Errorf("add product: %w", err)
	}

	product, err := s.store.CreateProduct(ctx, pricestore.NewProduct{
		Name:        details.Name,
		Retailer:    r,
		URL:         rawUrl,
		TargetPrice: targetPrice,
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to create product")
		return pricestore.Product{}, fmt.Errorf("add product: %w", err)
	}
	span.SetAttributes(attribute.Int64("product_id", product.ID))

	_, _, err = s.store.Append(ctx, product.ID, details.Price)
	if err != nil {
		return pricestore.Product{}, fmt.Errorf("add product: first observation: %w", err)
	}
	return s.store.GetProduct(ctx, product.ID)
}

type AutoCompareResult struct {
	GroupID string
	// Added are the newly tracked products, in the order they were discovered.
	Added []pricestore.Product
	// Skipped are candidates that were already tracked or not similar enough.
	Skipped []discovery.Candidate
}

// AutoCompare puts the product in a group, searches the other retailers for it and tracks
// every listing found that is not tracked yet as a member of the same group. A listing's
// search page price is stored as an estimated observation.
func (s *Service) AutoCompare(ctx context.Context, productID int64) (AutoCompareResult, error) {
	ctx, span := tracer.Start(ctx, "AutoCompare")
	defer span.End()
	span.SetAttributes(attribute.Int64("product_id", productID))

	product, err := s.store.GetProduct(ctx, productID)
	if err != nil {
		return AutoCompareResult{}, fmt.Errorf("auto compare: %w", err)
	}
	groupID, err := s.grouper.GroupOf(ctx, productID)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to group product")
		return AutoCompareResult{}, fmt.Errorf("auto compare: %w", err)
	}

	result := AutoCompareResult{GroupID: groupID}
	for _, candidate := range s.DiscoverSimilar(ctx, product.Name, product.Retailer) {
		if candidate.Similarity < s.minSimilarity {
			s.tel.ReportDebug(report_auto_compare, "dissimilar", candidate.URL, candidate.Similarity)
			result.Skipped = append(result.Skipped, candidate)
			continue
		}
		added, err := s.trackCandidate(ctx, groupID, candidate)
		if errors.Is(err, pricestore.ErrDuplicateURL) {
			result.Skipped = append(result.Skipped, candidate)
			continue
		}
		if err != nil {
			s.tel.ReportWarning(report_auto_compare, string(candidate.Retailer), candidate.URL, err)
			continue
		}
		result.Added = append(result.Added, added)
	}
	span.SetAttributes(attribute.Int("added", len(result.Added)))
	return result, nil
}

func (s *Service) trackCandidate(ctx context.Context, groupID string, candidate discovery.Candidate) (pricestore.Product, error) {
	_, err := s.store.GetProductByURL(ctx, candidate.URL)
	if err == nil {
		return pricestore.Product{}, pricestore.ErrDuplicateURL
	}
	if !errors.Is(err, pricestore.ErrNotFound) {
		return pricestore.Product{}, err
	}

	// the group is written with the row so a tracked candidate is never left ungrouped
	product, err := s.store.CreateProduct(ctx, pricestore.NewProduct{
		Name:     candidate.Name,
		Retailer: candidate.Retailer,
		URL:      candidate.URL,
		GroupID:  groupID,
	})
	if err != nil {
		return pricestore.Product{}, err
	}
	if candidate.EstimatedPrice == nil {
		return product, nil
	}
	_, _, err = s.store.AppendEstimated(ctx, product.ID, *candidate.EstimatedPrice)
	if err != nil {
		s.tel.ReportWarning(report_auto_compare, "estimate", product.ID, err)
		return product, nil
	}
	return s.store.GetProduct(ctx, product.ID)
}

// EditProduct overwrites the name, url and target price of a product. An empty name or
// url keeps the current one and a nil target clears it. Changing the url re-detects the
// retailer, and when no name is given the name is read from the new page.
func (s *Service) EditProduct(ctx context.Context, productID int64, name, rawUrl string, targetPrice *float64) (pricestore.Product, error) {
	ctx, span := tracer.Start(ctx, "EditProduct")
	defer span.End()
	span.SetAttributes(attribute.Int64("product_id", productID))

	product, err := s.store.GetProduct(ctx, productID)
	if err != nil {
		return pricestore.Product{}, fmt.Errorf("edit product: %w", err)
	}
	if targetPrice != nil && *targetPrice < 0 {
		return pricestore.Product{}, fmt.Errorf("edit product: negative target price %v", *targetPrice)
	}

	name = strings.TrimSpace(name)
	rawUrl = strings.TrimSpace(rawUrl)
	if rawUrl != "" && rawUrl != product.URL {
		r, err := retailer.Detect(rawUrl)
		if err != nil {
			span.SetStatus(codes.Error, "unsupported url")
			return pricestore.Product{}, fmt.Errorf("edit product: %w", err)
		}
		existing, err := s.store.GetProductByURL(ctx, rawUrl)
		if err == nil && existing.ID != productID {
			return pricestore.Product{}, fmt.Errorf("edit product: %w", pricestore.ErrDuplicateURL)
		}
		if err != nil && !errors.Is(err, pricestore.ErrNotFound) {
			return pricestore.Product{}, fmt.Errorf("edit product: %w", err)
		}
		product.URL = rawUrl
		product.Retailer = r
		if name == "" {
			name = s.nameFromPage(ctx, product)
		}
	}
	if name != "" {
		product.Name = name
	}
	product.TargetPrice = targetPrice

	err = s.store.UpdateProduct(ctx, product)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to update product")
		return pricestore.Product{}, fmt.Errorf("edit product: %w", err)
	}
	return s.store.GetProduct(ctx, productID)
}

// nameFromPage returns "" when the page cannot be fetched or carries no name, the
// current name is kept in that case.
func (s *Service) nameFromPage(ctx context.Context, product pricestore.Product) string {
	markup, err := s.fetcher.Fetch(ctx, product.URL)
	if err != nil {
		s.tel.ReportWarning(report_edit_product, product.ID, product.URL, err)
		return ""
	}
	name, err := s.registry.ExtractName(ctx, product.Retailer, markup)
	if err != nil || name == stores.UnknownName {
		return ""
	}
	return name
}

// RefreshIfStale re-checks the product when it has no observation or its latest one is
// older than the staleness window. A failed re-check is reported and the product is
// returned as stored, refreshed is false in that case.
func (s *Service) RefreshIfStale(ctx context.Context, productID int64) (product pricestore.Product, refreshed bool, err error) {
	product, err = s.store.GetProduct(ctx, productID)
	if err != nil {
		return pricestore.Product{}, false, err
	}
	latest, ok, err := s.store.LatestObservation(ctx, productID)
	if err != nil {
		return pricestore.Product{}, false, err
	}
	if ok && s.clock.Now().Sub(latest.CheckedAt) <= s.staleAfter {
		return product, false, nil
	}

	_, err = s.CheckPriceNow(ctx, product)
	if err != nil {
		s.tel.ReportWarning(report_refresh_stale, productID, err)
		return product, false, nil
	}
	product, err = s.store.GetProduct(ctx, productID)
	if err != nil {
		return pricestore.Product{}, false, err
	}
	return product, true, nil
}

// CreateComparison groups the products under a group named by the user.
func (s *Service) CreateComparison(ctx context.Context, groupName string, productIDs []int64) (string, error) {
	if len(productIDs) == 0 {
		return "", fmt.Errorf("create comparison: no products given")
	}
	return s.grouper.NameGroup(ctx, groupName, productIDs...)
}

type Comparison struct {
	GroupID string
	// Members are ordered by current price, cheapest first and unpriced last.
	Members []pricestore.Product
	// Best is nil when no member has a price.
	Best    *pricestore.Product
	Savings float64
}

func (s *Service) Compare(ctx context.Context, groupID string) (Comparison, error) {
	members, err := s.grouper.MembersOf(ctx, groupID)
	if err != nil {
		return Comparison{}, err
	}
	if len(members) == 0 {
		return Comparison{}, fmt.Errorf("compare group %s: %w", groupID, pricestore.ErrNotFound)
	}
	comparison := Comparison{
		GroupID: groupID,
		Members: members,
		Savings: grouping.Savings(members),
	}
	if best, ok := grouping.BestPrice(members); ok {
		comparison.Best = &best
	}
	return comparison, nil
}
