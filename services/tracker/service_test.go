package tracker

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"pricetracker-backend/internal/components/chrono"
	"pricetracker-backend/internal/components/telemetry"
	"pricetracker-backend/internal/retailer"
	"pricetracker-backend/internal/scraper"
	"pricetracker-backend/internal/scraper/discovery"
	"pricetracker-backend/internal/scraper/stores"
	"pricetracker-backend/lib/pricestore"
	"pricetracker-backend/lib/testutil"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"
)

const (
	amazonUrl   = "https://www.amazon.in/dp/B0CHX1W1XY"
	flipkartUrl = "https://www.flipkart.com/apple-iphone-15-black-128-gb/p/itm6ac6485515ae4"
)

func ptr[T any](v T) *T {
	return &v
}

func amazonPage(name, price string) string {
	return fmt.Sprintf(`<html><body>
<span id="productTitle"> %s </span>
<div id="corePrice_feature_div"><span class="a-price"><span class="a-offscreen">₹%s</span></span></div>
</body></html>`, name, price)
}

type fakeFetcher struct {
	mutex sync.Mutex
	pages map[string]string
	errs  map[string]error
	calls map[string]int
}

func newFakeFetcher() *fakeFetcher {
	return &fakeFetcher{
		pages: map[string]string{},
		errs:  map[string]error{},
		calls: map[string]int{},
	}
}

func (f *fakeFetcher) set(url, markup string) {
	f.mutex.Lock()
	defer f.mutex.Unlock()
	f.pages[url] = markup
	delete(f.errs, url)
}

func (f *fakeFetcher) fail(url string, err error) {
	f.mutex.Lock()
	defer f.mutex.Unlock()
	f.errs[url] = err
}

func (f *fakeFetcher) Fetch(ctx context.Context, url string) (string, error) {
	f.mutex.Lock()
	defer f.mutex.Unlock()
	f.calls[url]++
	if err, ok := f.errs[url]; ok {
		return "", err
	}
	markup, ok := f.pages[url]
	if !ok {
		return "", scraper.Errorf(scraper.CauseConnectionFailed, url, "no such page")
	}
	return markup, nil
}

func (f *fakeFetcher) count(url string) int {
	f.mutex.Lock()
	defer f.mutex.Unlock()
	return f.calls[url]
}

type fakeDiscoverer struct {
	candidates []discovery.Candidate
	excluded   []retailer.Retailer
}

func (d *fakeDiscoverer) Discover(ctx context.Context, productName string, exclude retailer.Retailer) []discovery.Candidate {
	d.excluded = append(d.excluded, exclude)
	return d.candidates
}

type recordingNotifier struct {
	mutex  sync.Mutex
	alerts []Alert
}

func (n *recordingNotifier) Notify(ctx context.Context, alert Alert) error {
	n.mutex.Lock()
	defer n.mutex.Unlock()
	n.alerts = append(n.alerts, alert)
	return nil
}

type sleepRecorder struct {
	mutex  sync.Mutex
	sleeps []time.Duration
}

func (s *sleepRecorder) sleep(ctx context.Context, d time.Duration) error {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	s.sleeps = append(s.sleeps, d)
	return ctx.Err()
}

type harness struct {
	service    *Service
	store      pricestore.Store
	clock      *chrono.FrozenTime
	fetcher    *fakeFetcher
	discoverer *fakeDiscoverer
	notifier   *recordingNotifier
	sleeps     *sleepRecorder
	tel        *telemetry.Recorder
}

func setup(t *testing.T) harness {
	store, clock := testutil.SetupStore(t, "tracker")
	h := harness{
		store:      store,
		clock:      clock,
		fetcher:    newFakeFetcher(),
		discoverer: &fakeDiscoverer{},
		notifier:   &recordingNotifier{},
		sleeps:     &sleepRecorder{},
		tel:        &telemetry.Recorder{},
	}
	service, err := NewService(store, h.fetcher, stores.NewRegistry(), h.discoverer, Options{
		Notifier: h.notifier,
		Sleep:    h.sleeps.sleep,
		Clock:    clock,
		Tel:      h.tel,
	})
	if err != nil {
		t.Fatal(err)
	}
	h.service = service
	return h
}

func (h harness) track(t *testing.T, url string, r retailer.Retailer, target *float64) pricestore.Product {
	t.Helper()
	product, err := h.store.CreateProduct(context.Background(), pricestore.NewProduct{
		Name:        "Apple iPhone 15 (128 GB) - Black",
		Retailer:    r,
		URL:         url,
		TargetPrice: target,
	})
	if err != nil {
		t.Fatal(err)
	}
	return product
}

func TestAddProduct(t *testing.T) {
	h := setup(t)
	ctx := context.Background()
	h.fetcher.set(amazonUrl, amazonPage("Apple iPhone 15 (128 GB) - Black", "69,900"))

	product, err := h.service.AddProduct(ctx, " "+amazonUrl+" ", ptr(70000.0))
	if err != nil {
		t.Fatal(err)
	}
	require.Equal(t, "Apple iPhone 15 (128 GB) - Black", product.Name)
	require.Equal(t, retailer.Amazon, product.Retailer)
	require.Equal(t, amazonUrl, product.URL)
	require.NotNil(t, product.CurrentPrice)
	require.Equal(t, 69900.0, *product.CurrentPrice)

	history, err := h.store.History(ctx, product.ID)
	if err != nil {
		t.Fatal(err)
	}
	require.Len(t, history, 1)
	require.Equal(t, pricestore.SourceChecked, history[0].Source)

	_, err = h.service.AddProduct(ctx, amazonUrl, nil)
	require.ErrorIs(t, err, pricestore.ErrDuplicateURL)
	require.Equal(t, 1, h.fetcher.count(amazonUrl))
}

func TestAddProductFailures(t *testing.T) {
	h := setup(t)
	ctx := context.Background()

	_, err := h.service.AddProduct(ctx, "https://www.ebay.com/itm/1234", nil)
	require.ErrorIs(t, err, scraper.ErrUnsupported)

	h.fetcher.fail(amazonUrl, scraper.Errorf(scraper.CauseForbidden, amazonUrl, "blocked"))
	_, err = h.service.AddProduct(ctx, amazonUrl, nil)
	require.ErrorIs(t, err, scraper.ErrForbidden)

	h.fetcher.set(amazonUrl, `<html><body><span id="productTitle">No price here</span></body></html>`)
	_, err = h.service.AddProduct(ctx, amazonUrl, nil)
	require.ErrorIs(t, err, scraper.ErrNotFound)

	products, err := h.store.ListProducts(ctx, "")
	if err != nil {
		t.Fatal(err)
	}
	require.Empty(t, products)
}

func TestCheckPriceNowAlerts(t *testing.T) {
	h := setup(t)
	ctx := context.Background()
	product := h.track(t, amazonUrl, retailer.Amazon, ptr(70000.0))

	h.fetcher.set(amazonUrl, amazonPage("iPhone", "71,000"))
	obs, err := h.service.CheckPriceNow(ctx, product)
	if err != nil {
		t.Fatal(err)
	}
	require.Equal(t, 71000.0, obs.Price)
	require.Empty(t, h.notifier.alerts)

	h.clock.Advance(time.Minute)
	h.fetcher.set(amazonUrl, amazonPage("iPhone", "70,000"))
	_, err = h.service.CheckPriceNow(ctx, product)
	if err != nil {
		t.Fatal(err)
	}
	require.Len(t, h.notifier.alerts, 1)
	require.Equal(t, 70000.0, h.notifier.alerts[0].Price)
	require.Equal(t, 70000.0, h.notifier.alerts[0].Target)
	require.Equal(t, product.ID, h.notifier.alerts[0].Product.ID)
}

func TestCheckPriceNowSameSecond(t *testing.T) {
	h := setup(t)
	ctx := context.Background()
	product := h.track(t, amazonUrl, retailer.Amazon, nil)

	h.fetcher.set(amazonUrl, amazonPage("iPhone", "69,900"))
	first, err := h.service.CheckPriceNow(ctx, product)
	if err != nil {
		t.Fatal(err)
	}
	h.fetcher.set(amazonUrl, amazonPage("iPhone", "68,000"))
	second, err := h.service.CheckPriceNow(ctx, product)
	if err != nil {
		t.Fatal(err)
	}
	diff := cmp.Diff(first, second)
	if diff != "" {
		t.Fatal(diff)
	}

	history, err := h.store.History(ctx, product.ID)
	if err != nil {
		t.Fatal(err)
	}
	require.Len(t, history, 1)
	require.Equal(t, 69900.0, history[0].Price)
}

func TestCheckPriceNowSameSecondDoesNotAlert(t *testing.T) {
	h := setup(t)
	ctx := context.Background()
	product := h.track(t, amazonUrl, retailer.Amazon, ptr(70000.0))

	h.fetcher.set(amazonUrl, amazonPage("iPhone", "80,000"))
	_, err := h.service.CheckPriceNow(ctx, product)
	if err != nil {
		t.Fatal(err)
	}
	h.fetcher.set(amazonUrl, amazonPage("iPhone", "60,000"))
	obs, err := h.service.CheckPriceNow(ctx, product)
	if err != nil {
		t.Fatal(err)
	}
	require.Equal(t, 80000.0, obs.Price)
	require.Empty(t, h.notifier.alerts)

	h.clock.Advance(time.Second)
	_, err = h.service.CheckPriceNow(ctx, product)
	if err != nil {
		t.Fatal(err)
	}
	require.Len(t, h.notifier.alerts, 1)
	require.Equal(t, 60000.0, h.notifier.alerts[0].Price)
}

func TestRunFullCheckSkipsFailures(t *testing.T) {
	h := setup(t)
	ctx := context.Background()

	first := h.track(t, amazonUrl, retailer.Amazon, nil)
	blocked := h.track(t, "https://www.amazon.in/dp/B0CHX2F5QT", retailer.Amazon, nil)
	last := h.track(t, "https://www.amazon.in/dp/B0CHX3QBCH", retailer.Amazon, nil)
	inactive := h.track(t, "https://www.amazon.in/dp/B0CHX4ZZZZ", retailer.Amazon, nil)
	err := h.store.SetStatus(ctx, inactive.ID, pricestore.StatusInactive)
	if err != nil {
		t.Fatal(err)
	}

	h.fetcher.set(first.URL, amazonPage("iPhone", "69,900"))
	h.fetcher.fail(blocked.URL, scraper.Errorf(scraper.CauseForbidden, blocked.URL, "blocked"))
	h.fetcher.set(last.URL, amazonPage("iPhone", "79,900"))
	h.fetcher.set(inactive.URL, amazonPage("iPhone", "1"))

	updated, err := h.service.RunFullCheck(ctx)
	if err != nil {
		t.Fatal(err)
	}
	require.Equal(t, 2, updated)
	require.Equal(t, []time.Duration{DefaultProductPause, DefaultProductPause}, h.sleeps.sleeps)
	require.Zero(t, h.fetcher.count(inactive.URL))

	warnings := h.tel.Reports("warning", report_check_product)
	require.Len(t, warnings, 1)
	require.Equal(t, blocked.ID, warnings[0].Params[0])
	require.Empty(t, h.tel.Reports("broken", ""))

	for _, p := range []pricestore.Product{first, last} {
		history, err := h.store.History(ctx, p.ID)
		if err != nil {
			t.Fatal(err)
		}
		require.Len(t, history, 1)
	}
}

func TestRunFullCheckCanceled(t *testing.T) {
	h := setup(t)
	h.track(t, amazonUrl, retailer.Amazon, nil)
	h.track(t, "https://www.amazon.in/dp/B0CHX2F5QT", retailer.Amazon, nil)
	h.fetcher.set(amazonUrl, amazonPage("iPhone", "69,900"))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := h.service.RunFullCheck(ctx)
	require.ErrorIs(t, err, context.Canceled)
}

func TestRunGroupCheck(t *testing.T) {
	h := setup(t)
	ctx := context.Background()

	amazon := h.track(t, amazonUrl, retailer.Amazon, nil)
	flipkart := h.track(t, flipkartUrl, retailer.Flipkart, nil)
	outsider := h.track(t, "https://www.amazon.in/dp/B0CHX2F5QT", retailer.Amazon, nil)

	groupID, err := h.service.CreateComparison(ctx, "iPhone 15", []int64{amazon.ID, flipkart.ID})
	if err != nil {
		t.Fatal(err)
	}
	h.fetcher.set(amazon.URL, amazonPage("iPhone", "69,900"))
	h.fetcher.set(flipkart.URL, `<html><body><h1><span>APPLE iPhone 15</span></h1><div class="Nx9bqj CxhGGd">₹65,999</div></body></html>`)

	updated, err := h.service.RunGroupCheck(ctx, groupID)
	if err != nil {
		t.Fatal(err)
	}
	require.Equal(t, 2, updated)
	require.Equal(t, []time.Duration{DefaultGroupPause}, h.sleeps.sleeps)
	require.Zero(t, h.fetcher.count(outsider.URL))

	comparison, err := h.service.Compare(ctx, groupID)
	if err != nil {
		t.Fatal(err)
	}
	require.Len(t, comparison.Members, 2)
	require.NotNil(t, comparison.Best)
	require.Equal(t, flipkart.ID, comparison.Best.ID)
	require.Equal(t, 3901.0, comparison.Savings)

	_, err = h.service.Compare(ctx, "00000000")
	require.ErrorIs(t, err, pricestore.ErrNotFound)

	_, err = h.service.CreateComparison(ctx, "empty", nil)
	require.Error(t, err)
}

func TestAutoCompare(t *testing.T) {
	h := setup(t)
	ctx := context.Background()

	product := h.track(t, amazonUrl, retailer.Amazon, nil)
	existing := h.track(t, "https://www.myntra.com/mobiles/apple/iphone-15/123/buy", retailer.Myntra, nil)
	h.discoverer.candidates = []discovery.Candidate{
		{
			Retailer:       retailer.Flipkart,
			URL:            flipkartUrl,
			Name:           "APPLE iPhone 15 (Black, 128 GB)",
			EstimatedPrice: ptr(65999.0),
			Similarity:     0.9,
			Provenance:     pricestore.SourceEstimated,
		},
		{
			Retailer:   retailer.Myntra,
			URL:        existing.URL,
			Name:       "Apple iPhone 15",
			Similarity: 0.8,
			Provenance: pricestore.SourceEstimated,
		},
	}

	result, err := h.service.AutoCompare(ctx, product.ID)
	if err != nil {
		t.Fatal(err)
	}
	require.Equal(t, []retailer.Retailer{retailer.Amazon}, h.discoverer.excluded)
	require.Len(t, result.Added, 1)
	require.Len(t, result.Skipped, 1)
	require.Equal(t, existing.URL, result.Skipped[0].URL)

	added := result.Added[0]
	require.Equal(t, retailer.Flipkart, added.Retailer)
	require.Equal(t, result.GroupID, added.GroupID)

	latest, ok, err := h.store.LatestObservation(ctx, added.ID)
	if err != nil {
		t.Fatal(err)
	}
	require.True(t, ok)
	require.Equal(t, pricestore.SourceEstimated, latest.Source)
	require.Equal(t, 65999.0, latest.Price)

	members, err := h.service.Grouper().MembersOf(ctx, result.GroupID)
	if err != nil {
		t.Fatal(err)
	}
	require.Len(t, members, 2)
	require.Equal(t, added.ID, members[0].ID)
	require.Equal(t, product.ID, members[1].ID)

	// the existing listing was not moved into the group
	reloaded, err := h.store.GetProduct(ctx, existing.ID)
	if err != nil {
		t.Fatal(err)
	}
	require.Equal(t, "", reloaded.GroupID)

	// a second run finds everything already tracked
	again, err := h.service.AutoCompare(ctx, product.ID)
	if err != nil {
		t.Fatal(err)
	}
	require.Equal(t, result.GroupID, again.GroupID)
	require.Empty(t, again.Added)
	require.Len(t, again.Skipped, 2)
}

func TestAutoCompareMinSimilarity(t *testing.T) {
	h := setup(t)
	h.service.minSimilarity = 0.85
	product := h.track(t, amazonUrl, retailer.Amazon, nil)
	h.discoverer.candidates = []discovery.Candidate{{
		Retailer:   retailer.Flipkart,
		URL:        flipkartUrl,
		Name:       "iPhone 15 silicone case",
		Similarity: 0.6,
	}}

	result, err := h.service.AutoCompare(context.Background(), product.ID)
	if err != nil {
		t.Fatal(err)
	}
	require.Empty(t, result.Added)
	require.Len(t, result.Skipped, 1)
}

func TestAutoCompareKeepsGroupWhenEstimateFails(t *testing.T) {
	h := setup(t)
	ctx := context.Background()
	product := h.track(t, amazonUrl, retailer.Amazon, nil)
	h.discoverer.candidates = []discovery.Candidate{{
		Retailer:       retailer.Flipkart,
		URL:            flipkartUrl,
		Name:           "APPLE iPhone 15 (Black, 128 GB)",
		EstimatedPrice: ptr(-1.0),
		Similarity:     0.9,
		Provenance:     pricestore.SourceEstimated,
	}}

	result, err := h.service.AutoCompare(ctx, product.ID)
	if err != nil {
		t.Fatal(err)
	}
	require.Len(t, result.Added, 1)
	require.Equal(t, result.GroupID, result.Added[0].GroupID)
	require.Len(t, h.tel.Reports("warning", report_auto_compare), 1)

	history, err := h.store.History(ctx, result.Added[0].ID)
	if err != nil {
		t.Fatal(err)
	}
	require.Empty(t, history)

	members, err := h.service.Grouper().MembersOf(ctx, result.GroupID)
	if err != nil {
		t.Fatal(err)
	}
	require.Len(t, members, 2)
}

func TestEditProduct(t *testing.T) {
	h := setup(t)
	ctx := context.Background()
	product := h.track(t, amazonUrl, retailer.Amazon, ptr(70000.0))
	other := h.track(t, "https://www.amazon.in/dp/B0CHX2F5QT", retailer.Amazon, nil)

	edited, err := h.service.EditProduct(ctx, product.ID, "iPhone 15 Black", "", ptr(65000.0))
	if err != nil {
		t.Fatal(err)
	}
	require.Equal(t, "iPhone 15 Black", edited.Name)
	require.Equal(t, amazonUrl, edited.URL)
	require.Equal(t, 65000.0, *edited.TargetPrice)
	require.Zero(t, h.fetcher.count(amazonUrl))

	h.fetcher.set(flipkartUrl, `<html><body><h1><span>APPLE iPhone 15 (Black, 128 GB)</span></h1><div class="Nx9bqj CxhGGd">₹65,999</div></body></html>`)
	moved, err := h.service.EditProduct(ctx, product.ID, "", " "+flipkartUrl, nil)
	if err != nil {
		t.Fatal(err)
	}
	require.Equal(t, retailer.Flipkart, moved.Retailer)
	require.Equal(t, flipkartUrl, moved.URL)
	require.Equal(t, "APPLE iPhone 15 (Black, 128 GB)", moved.Name)
	require.Nil(t, moved.TargetPrice)

	_, err = h.service.EditProduct(ctx, other.ID, "", flipkartUrl, nil)
	require.ErrorIs(t, err, pricestore.ErrDuplicateURL)

	_, err = h.service.EditProduct(ctx, other.ID, "", "https://www.ebay.com/itm/1234", nil)
	require.ErrorIs(t, err, scraper.ErrUnsupported)

	_, err = h.service.EditProduct(ctx, other.ID, "", "", ptr(-5.0))
	require.Error(t, err)

	_, err = h.service.EditProduct(ctx, other.ID+100, "name", "", nil)
	require.ErrorIs(t, err, pricestore.ErrNotFound)

	unchanged, err := h.store.GetProduct(ctx, other.ID)
	if err != nil {
		t.Fatal(err)
	}
	require.Equal(t, "https://www.amazon.in/dp/B0CHX2F5QT", unchanged.URL)
}

func TestEditProductKeepsNameWhenPageFails(t *testing.T) {
	h := setup(t)
	ctx := context.Background()
	product := h.track(t, amazonUrl, retailer.Amazon, nil)

	h.fetcher.fail(flipkartUrl, scraper.Errorf(scraper.CauseForbidden, flipkartUrl, "blocked"))
	moved, err := h.service.EditProduct(ctx, product.ID, "", flipkartUrl, nil)
	if err != nil {
		t.Fatal(err)
	}
	require.Equal(t, product.Name, moved.Name)
	require.Equal(t, retailer.Flipkart, moved.Retailer)
	require.Len(t, h.tel.Reports("warning", report_edit_product), 1)
}

func TestRefreshIfStale(t *testing.T) {
	h := setup(t)
	ctx := context.Background()
	h.fetcher.set(amazonUrl, amazonPage("Apple iPhone 15", "69,900"))

	product, err := h.service.AddProduct(ctx, amazonUrl, nil)
	if err != nil {
		t.Fatal(err)
	}
	require.Equal(t, 1, h.fetcher.count(amazonUrl))

	h.clock.Advance(time.Minute)
	_, refreshed, err := h.service.RefreshIfStale(ctx, product.ID)
	if err != nil {
		t.Fatal(err)
	}
	require.False(t, refreshed)
	require.Equal(t, 1, h.fetcher.count(amazonUrl))

	h.clock.Advance(5 * time.Minute)
	h.fetcher.set(amazonUrl, amazonPage("Apple iPhone 15", "67,900"))
	refreshedProduct, refreshed, err := h.service.RefreshIfStale(ctx, product.ID)
	if err != nil {
		t.Fatal(err)
	}
	require.True(t, refreshed)
	require.Equal(t, 67900.0, *refreshedProduct.CurrentPrice)

	h.clock.Advance(time.Hour)
	h.fetcher.fail(amazonUrl, scraper.Errorf(scraper.CauseTimeout, amazonUrl, "timed out"))
	stale, refreshed, err := h.service.RefreshIfStale(ctx, product.ID)
	if err != nil {
		t.Fatal(err)
	}
	require.False(t, refreshed)
	require.Equal(t, 67900.0, *stale.CurrentPrice)
	require.Len(t, h.tel.Reports("warning", report_refresh_stale), 1)

	_, _, err = h.service.RefreshIfStale(ctx, product.ID+100)
	require.ErrorIs(t, err, pricestore.ErrNotFound)
}
