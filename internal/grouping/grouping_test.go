package grouping

import (
	"context"
	"sync"
	"testing"

	"pricetracker-backend/internal/retailer"
	"pricetracker-backend/lib/pricestore"
	"pricetracker-backend/lib/testutil"

	"github.com/stretchr/testify/require"
)

func ptr[T any](v T) *T {
	return &v
}

func TestDeriveID(t *testing.T) {
	id := DeriveID("Apple iPhone 15 (128 GB) - Black")
	require.Len(t, id, 8)
	require.Equal(t, id, DeriveID("  apple iphone 15 (128 gb) - black "))
	require.NotEqual(t, id, DeriveID("Apple iPhone 15 (256 GB) - Black"))
	// md5("") = d41d8cd98f00b204e9800998ecf8427e
	require.Equal(t, "d41d8cd9", DeriveID("   "))
}

func setup(t *testing.T) (Grouper, pricestore.Store) {
	store, _ := testutil.SetupStore(t, "grouping")
	return NewGrouper(store), store
}

func create(t *testing.T, store pricestore.Store, name, url string, r retailer.Retailer) pricestore.Product {
	t.Helper()
	p, err := store.CreateProduct(context.Background(), pricestore.NewProduct{
		Name:     name,
		Retailer: r,
		URL:      url,
	})
	if err != nil {
		t.Fatal(err)
	}
	return p
}

func TestGroupOfIsIdempotent(t *testing.T) {
	grouper, store := setup(t)
	ctx := context.Background()
	product := create(t, store, "Apple iPhone 15 (128 GB) - Black", "https://www.amazon.in/dp/B0CHX1W1XY", retailer.Amazon)

	first, err := grouper.GroupOf(ctx, product.ID)
	if err != nil {
		t.Fatal(err)
	}
	require.Equal(t, DeriveID(product.Name), first)

	// renaming must not move the product to another group
	product.Name = "iPhone 15"
	err = store.UpdateProduct(ctx, product)
	if err != nil {
		t.Fatal(err)
	}
	second, err := grouper.GroupOf(ctx, product.ID)
	if err != nil {
		t.Fatal(err)
	}
	require.Equal(t, first, second)
}

func TestGroupOfConcurrent(t *testing.T) {
	grouper, store := setup(t)
	ctx := context.Background()
	product := create(t, store, "Apple iPhone 15", "https://www.amazon.in/dp/B0CHX1W1XY", retailer.Amazon)

	var (
		wg    sync.WaitGroup
		mutex sync.Mutex
		seen  = map[string]bool{}
	)
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			id, err := grouper.GroupOf(ctx, product.ID)
			if err != nil {
				t.Error(err)
				return
			}
			mutex.Lock()
			seen[id] = true
			mutex.Unlock()
		}()
	}
	wg.Wait()
	require.Len(t, seen, 1)
}

func TestGroupOfMissingProduct(t *testing.T) {
	grouper, _ := setup(t)
	_, err := grouper.GroupOf(context.Background(), 42)
	require.ErrorIs(t, err, pricestore.ErrNotFound)
}

func TestMembersOf(t *testing.T) {
	grouper, store := setup(t)
	ctx := context.Background()

	amazon := create(t, store, "Apple iPhone 15 (128 GB) - Black", "https://www.amazon.in/dp/B0CHX1W1XY", retailer.Amazon)
	flipkart := create(t, store, "APPLE iPhone 15 (Black, 128 GB)", "https://www.flipkart.com/apple-iphone-15/p/itm6ac6485515ae4", retailer.Flipkart)
	myntra := create(t, store, "Apple iPhone 15 case", "https://www.myntra.com/cases/apple/12345/buy", retailer.Myntra)

	groupID, err := grouper.NameGroup(ctx, "iPhone 15 128GB", amazon.ID, flipkart.ID, myntra.ID)
	if err != nil {
		t.Fatal(err)
	}
	require.Equal(t, DeriveID("iPhone 15 128GB"), groupID)

	_, _, err = store.Append(ctx, amazon.ID, 69900)
	if err != nil {
		t.Fatal(err)
	}
	_, _, err = store.Append(ctx, flipkart.ID, 65999)
	if err != nil {
		t.Fatal(err)
	}

	members, err := grouper.MembersOf(ctx, groupID)
	if err != nil {
		t.Fatal(err)
	}
	require.Len(t, members, 3)
	require.Equal(t, flipkart.ID, members[0].ID)
	require.Equal(t, amazon.ID, members[1].ID)
	require.Equal(t, myntra.ID, members[2].ID)
	require.Nil(t, members[2].CurrentPrice)

	best, ok := BestPrice(members)
	require.True(t, ok)
	require.Equal(t, flipkart.ID, best.ID)
	require.Equal(t, 3901.0, Savings(members))

	err = store.SetStatus(ctx, flipkart.ID, pricestore.StatusInactive)
	if err != nil {
		t.Fatal(err)
	}
	members, err = grouper.MembersOf(ctx, groupID)
	if err != nil {
		t.Fatal(err)
	}
	require.Len(t, members, 2)
	require.Equal(t, amazon.ID, members[0].ID)

	err = grouper.Ungroup(ctx, myntra.ID)
	if err != nil {
		t.Fatal(err)
	}
	groups, err := grouper.AllGroups(ctx)
	if err != nil {
		t.Fatal(err)
	}
	require.Len(t, groups, 1)
	require.Equal(t, int64(1), groups[0].MemberCount)
}

func TestSetGroup(t *testing.T) {
	grouper, store := setup(t)
	ctx := context.Background()
	product := create(t, store, "Apple iPhone 15", "https://www.amazon.in/dp/B0CHX1W1XY", retailer.Amazon)

	require.Error(t, grouper.SetGroup(ctx, product.ID, " "))
	err := grouper.SetGroup(ctx, product.ID, "abcd1234")
	if err != nil {
		t.Fatal(err)
	}
	groupID, err := grouper.GroupOf(ctx, product.ID)
	if err != nil {
		t.Fatal(err)
	}
	require.Equal(t, "abcd1234", groupID)

	_, err = grouper.NameGroup(ctx, "", product.ID)
	require.Error(t, err)
}

func TestBestPriceWithoutPrices(t *testing.T) {
	_, ok := BestPrice([]pricestore.Product{{ID: 1}, {ID: 2}})
	require.False(t, ok)

	best, ok := BestPrice([]pricestore.Product{
		{ID: 1, CurrentPrice: ptr(10.0)},
		{ID: 2, CurrentPrice: ptr(10.0)},
		{ID: 3},
	})
	require.True(t, ok)
	require.Equal(t, int64(1), best.ID)
	require.Zero(t, Savings(nil))
}
