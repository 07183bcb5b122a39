// Package pricestore persists tracked products and their append-only price history.
package pricestore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"pricetracker-backend/internal/components/chrono"
	"pricetracker-backend/internal/retailer"
	"pricetracker-backend/lib/pricestore/db"
)

type Status string

const (
	StatusActive   Status = "active"
	StatusInactive Status = "inactive"
)

// Source is the provenance of an observation.
type Source string

const (
	// SourceChecked is a price read off the product page.
	SourceChecked Source = "checked"
	// SourceEstimated is a price seeded from a search results page, it was never verified
	// against the product page.
	SourceEstimated Source = "estimated"
)

type Product struct {
	ID          int64
	Name        string
	Retailer    retailer.Retailer
	URL         string
	TargetPrice *float64
	Currency    string
	Status      Status
	// GroupID is empty when the product is not part of a comparison group.
	GroupID     string
	CreatedAt   time.Time
	UpdatedAt   time.Time
	LastChecked *time.Time
	// CurrentPrice is the price of the latest observation, nil if there is none.
	CurrentPrice *float64
}

type Observation struct {
	ProductID int64
	Price     float64
	CheckedAt time.Time
	Source    Source
}

type Group struct {
	ID                 string
	MemberCount        int64
	RepresentativeName string
}

type NewProduct struct {
	Name        string
	Retailer    retailer.Retailer
	URL         string
	TargetPrice *float64
	// Currency defaults to retailer.DefaultCurrency.
	Currency string
	// GroupID places the product in a comparison group as it is created.
	GroupID string
}

type Store struct {
	db   *sql.DB
	qry  *db.Queries
	time chrono.TimeAPI
}

func NewStore(database *sql.DB, clock chrono.TimeAPI) Store {
	if clock == nil {
		clock = chrono.NewStandardTime(nil)
	}
	return Store{
		db:   database,
		qry:  db.New(database),
		time: clock,
	}
}

// now is truncated to the second, that is the resolution of every stored timestamp.
func (s Store) now() int64 {
	return s.time.Now().Unix()
}

func nullFloat(f *float64) sql.NullFloat64 {
	if f == nil {
		return sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: *f, Valid: true}
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func productFromRow(row db.ProductWithPrice) Product {
	p := Product{
		ID:        row.Product.ID,
		Name:      row.Product.Name,
		Retailer:  retailer.Retailer(row.Product.Retailer),
		URL:       row.Product.Url,
		Currency:  row.Product.Currency,
		Status:    Status(row.Product.Status),
		GroupID:   row.Product.GroupID.String,
		CreatedAt: time.Unix(row.Product.CreatedAt, 0),
		UpdatedAt: time.Unix(row.Product.UpdatedAt, 0),
	}
	if row.Product.TargetPrice.Valid {
		target := row.Product.TargetPrice.Float64
		p.TargetPrice = &target
	}
	if row.Product.LastChecked.Valid {
		lastChecked := time.Unix(row.Product.LastChecked.Int64, 0)
		p.LastChecked = &lastChecked
	}
	if row.CurrentPrice.Valid {
		current := row.CurrentPrice.Float64
		p.CurrentPrice = &current
	}
	return p
}

func productsFromRows(rows []db.ProductWithPrice) []Product {
	out := make([]Product, len(rows))
	for i, r := range rows {
		out[i] = productFromRow(r)
	}
	return out
}

func observationFromRow(row db.PriceObservation) Observation {
	return Observation{
		ProductID: row.ProductID,
		Price:     row.Price,
		CheckedAt: time.Unix(row.CheckedAt, 0),
		Source:    Source(row.Source),
	}
}

// CreateProduct fails with ErrDuplicateURL if a product with the same url already exists,
// nothing is created in that case.
func (s Store) CreateProduct(ctx context.Context, req NewProduct) (Product, error) {
	if strings.TrimSpace(req.URL) == "" {
		return Product{}, fmt.Errorf("create product: url is empty")
	}
	if !req.Retailer.Valid() {
		return Product{}, fmt.Errorf("create product: unknown retailer %q", req.Retailer)
	}
	currency := req.Currency
	if currency == "" {
		currency = retailer.DefaultCurrency
	}

	now := s.now()
	id, err := s.qry.CreateProduct(ctx, db.CreateProductParams{
		Name:        req.Name,
		Retailer:    string(req.Retailer),
		Url:         req.URL,
		TargetPrice: nullFloat(req.TargetPrice),
		Currency:    currency,
		GroupID:     nullString(req.GroupID),
		CreatedAt:   now,
		UpdatedAt:   now,
	})
	if isUniqueViolation(err) {
		return Product{}, &StoreError{Kind: KindDuplicateURL, Err: fmt.Errorf("%s", req.URL)}
	}
	if err != nil {
		return Product{}, fmt.Errorf("create product: %w", err)
	}
	return s.GetProduct(ctx, id)
}

func (s Store) GetProduct(ctx context.Context, id int64) (Product, error) {
	row, err := s.qry.GetProduct(ctx, id)
	if errors.Is(err, sql.ErrNoRows) {
		return Product{}, notFound("product %d", id)
	}
	if err != nil {
		return Product{}, err
	}
	return productFromRow(row), nil
}

func (s Store) GetProductByURL(ctx context.Context, url string) (Product, error) {
	row, err := s.qry.GetProductByUrl(ctx, url)
	if errors.Is(err, sql.ErrNoRows) {
		return Product{}, notFound("product with url %s", url)
	}
	if err != nil {
		return Product{}, err
	}
	return productFromRow(row), nil
}

// ListProducts lists the products with the given status, or every product if status is "".
func (s Store) ListProducts(ctx context.Context, status Status) ([]Product, error) {
	var (
		rows []db.ProductWithPrice
		err  error
	)
	if status == "" {
		rows, err = s.qry.ListProducts(ctx)
	} else {
		rows, err = s.qry.ListProductsByStatus(ctx, string(status))
	}
	if err != nil {
		return nil, err
	}
	return productsFromRows(rows), nil
}

// UpdateProduct overwrites the editable fields of a product: name, retailer, url,
// target price, currency and status.
func (s Store) UpdateProduct(ctx context.Context, p Product) error {
	if p.Status != StatusActive && p.Status != StatusInactive {
		return fmt.Errorf("update product: invalid status %q", p.Status)
	}
	if !p.Retailer.Valid() {
		return fmt.Errorf("update product: unknown retailer %q", p.Retailer)
	}
	currency := p.Currency
	if currency == "" {
		currency = retailer.DefaultCurrency
	}
	affected, err := s.qry.UpdateProduct(ctx, db.UpdateProductParams{
		Name:        p.Name,
		Retailer:    string(p.Retailer),
		Url:         p.URL,
		TargetPrice: nullFloat(p.TargetPrice),
		Currency:    currency,
		Status:      string(p.Status),
		UpdatedAt:   s.now(),
		ID:          p.ID,
	})
	if isUniqueViolation(err) {
		return &StoreError{Kind: KindDuplicateURL, Err: fmt.Errorf("%s", p.URL)}
	}
	if err != nil {
		return fmt.Errorf("update product: %w", err)
	}
	if affected == 0 {
		return notFound("product %d", p.ID)
	}
	return nil
}

func (s Store) SetStatus(ctx context.Context, id int64, status Status) error {
	if status != StatusActive && status != StatusInactive {
		return fmt.Errorf("set status: invalid status %q", status)
	}
	affected, err := s.qry.SetProductStatus(ctx, db.SetProductStatusParams{
		Status:    string(status),
		UpdatedAt: s.now(),
		ID:        id,
	})
	if err != nil {
		return err
	}
	if affected == 0 {
		return notFound("product %d", id)
	}
	return nil
}

// DeleteProduct removes a product with its whole price history. Deleting a product that does
// not exist (or was already deleted) fails with ErrNotFound.
func (s Store) DeleteProduct(ctx context.Context, id int64) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()
	txqry := s.qry.WithTx(tx)

	err = txqry.DeleteObservations(ctx, id)
	if err != nil {
		return err
	}
	affected, err := txqry.DeleteProduct(ctx, id)
	if err != nil {
		return err
	}
	if affected == 0 {
		return notFound("product %d", id)
	}
	return tx.Commit()
}

// SetGroup assigns a product to a group, an empty groupID removes it from its group.
func (s Store) SetGroup(ctx context.Context, id int64, groupID string) error {
	affected, err := s.qry.SetProductGroup(ctx, db.SetProductGroupParams{
		GroupID:   nullString(groupID),
		UpdatedAt: s.now(),
		ID:        id,
	})
	if err != nil {
		return err
	}
	if affected == 0 {
		return notFound("product %d", id)
	}
	return nil
}

// AssignGroupIfUnset sets the product's group to groupID only if it has none and returns the
// group the product ends up in. The check and the write happen in one transaction.
func (s Store) AssignGroupIfUnset(ctx context.Context, id int64, groupID string) (string, error) {
	if groupID == "" {
		return "", fmt.Errorf("assign group: group id is empty")
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return "", err
	}
	defer tx.Rollback()
	txqry := s.qry.WithTx(tx)

	row, err := txqry.GetProduct(ctx, id)
	if errors.Is(err, sql.ErrNoRows) {
		return "", notFound("product %d", id)
	}
	if err != nil {
		return "", err
	}
	if row.Product.GroupID.Valid && row.Product.GroupID.String != "" {
		return row.Product.GroupID.String, nil
	}

	_, err = txqry.SetProductGroupIfUnset(ctx, db.SetProductGroupParams{
		GroupID:   sql.NullString{String: groupID, Valid: true},
		UpdatedAt: s.now(),
		ID:        id,
	})
	if err != nil {
		return "", err
	}
	return groupID, tx.Commit()
}

// GroupMembers returns the active products of a group ordered by current price ascending,
// products without any observation come last.
func (s Store) GroupMembers(ctx context.Context, groupID string) ([]Product, error) {
	rows, err := s.qry.GetGroupMembers(ctx, groupID)
	if err != nil {
		return nil, err
	}
	return productsFromRows(rows), nil
}

// ListGroups returns every group that has at least one active member.
func (s Store) ListGroups(ctx context.Context) ([]Group, error) {
	rows, err := s.qry.ListGroups(ctx)
	if err != nil {
		return nil, err
	}
	groups := make([]Group, len(rows))
	for i, r := range rows {
		groups[i] = Group{
			ID:                 r.GroupID,
			MemberCount:        r.MemberCount,
			RepresentativeName: r.RepresentativeName,
		}
	}
	return groups, nil
}

// Append records a checked price for the product at the current second. If the product
// already has an observation at that second nothing is written and `inserted` is false.
func (s Store) Append(ctx context.Context, productID int64, price float64) (obs Observation, inserted bool, err error) {
	return s.append(ctx, productID, price, SourceChecked)
}

// AppendEstimated is Append for prices that were not read off the product page.
func (s Store) AppendEstimated(ctx context.Context, productID int64, price float64) (obs Observation, inserted bool, err error) {
	return s.append(ctx, productID, price, SourceEstimated)
}

func (s Store) append(ctx context.Context, productID int64, price float64, source Source) (Observation, bool, error) {
	if price < 0 {
		return Observation{}, false, fmt.Errorf("append observation: negative price %v", price)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return Observation{}, false, err
	}
	defer tx.Rollback()
	txqry := s.qry.WithTx(tx)

	_, err = txqry.GetProduct(ctx, productID)
	if errors.Is(err, sql.ErrNoRows) {
		return Observation{}, false, notFound("product %d", productID)
	}
	if err != nil {
		return Observation{}, false, err
	}

	now := s.now()
	affected, err := txqry.InsertObservation(ctx, db.InsertObservationParams{
		ProductID: productID,
		Price:     price,
		CheckedAt: now,
		Source:    string(source),
	})
	if err != nil {
		return Observation{}, false, fmt.Errorf("append observation: %w", err)
	}
	obs := Observation{
		ProductID: productID,
		Price:     price,
		CheckedAt: time.Unix(now, 0),
		Source:    source,
	}
	if affected == 0 {
		return obs, false, nil
	}

	err = txqry.TouchProductChecked(ctx, db.TouchProductCheckedParams{
		LastChecked: sql.NullInt64{Int64: now, Valid: true},
		UpdatedAt:   now,
		ID:          productID,
	})
	if err != nil {
		return Observation{}, false, err
	}
	err = tx.Commit()
	if err != nil {
		return Observation{}, false, err
	}
	return obs, true, nil
}

// History returns every observation of the product in ascending time order.
func (s Store) History(ctx context.Context, productID int64) ([]Observation, error) {
	rows, err := s.qry.GetObservations(ctx, productID)
	if err != nil {
		return nil, err
	}
	out := make([]Observation, len(rows))
	for i, r := range rows {
		out[i] = observationFromRow(r)
	}
	return out, nil
}

// LatestObservation returns the most recent observation, ok is false if there is none.
func (s Store) LatestObservation(ctx context.Context, productID int64) (obs Observation, ok bool, err error) {
	row, err := s.qry.GetLatestObservation(ctx, productID)
	if errors.Is(err, sql.ErrNoRows) {
		return Observation{}, false, nil
	}
	if err != nil {
		return Observation{}, false, err
	}
	return observationFromRow(row), true, nil
}
