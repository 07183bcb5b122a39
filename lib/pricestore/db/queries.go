package db

import (
	"context"
	"database/sql"
)

const productColumns = `
    product.id, product.name, product.retailer, product.url, product.target_price,
    product.currency, product.status, product.group_id, product.created_at,
    product.updated_at, product.last_checked`

// the latest observation is the current price of a product
const currentPriceColumn = `
    (
        select o.price from price_observation o
        where o.product_id = product.id
        order by o.checked_at desc
        limit 1
    ) as current_price`

type scanner interface {
	Scan(dest ...any) error
}

func scanProduct(row scanner, extra ...any) (Product, error) {
	var i Product
	dest := []any{
		&i.ID,
		&i.Name,
		&i.Retailer,
		&i.Url,
		&i.TargetPrice,
		&i.Currency,
		&i.Status,
		&i.GroupID,
		&i.CreatedAt,
		&i.UpdatedAt,
		&i.LastChecked,
	}
	err := row.Scan(append(dest, extra...)...)
	return i, err
}

type ProductWithPrice struct {
	Product      Product
	CurrentPrice sql.NullFloat64
}

func (q *Queries) listProductsWithPrice(ctx context.Context, query string, args ...any) ([]ProductWithPrice, error) {
	rows, err := q.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []ProductWithPrice
	for rows.Next() {
		var i ProductWithPrice
		i.Product, err = scanProduct(rows, &i.CurrentPrice)
		if err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	if err := rows.Close(); err != nil {
		return nil, err
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

const createProduct = `-- name: CreateProduct :one
insert into product (name, retailer, url, target_price, currency, group_id, created_at, updated_at)
values (?, ?, ?, ?, ?, ?, ?, ?)
returning id
`

type CreateProductParams struct {
	Name        string
	Retailer    string
	Url         string
	TargetPrice sql.NullFloat64
	Currency    string
	GroupID     sql.NullString
	CreatedAt   int64
	UpdatedAt   int64
}

func (q *Queries) CreateProduct(ctx context.Context, arg CreateProductParams) (int64, error) {
	row := q.db.QueryRowContext(ctx, createProduct,
		arg.Name,
		arg.Retailer,
		arg.Url,
		arg.TargetPrice,
		arg.Currency,
		arg.GroupID,
		arg.CreatedAt,
		arg.UpdatedAt,
	)
	var id int64
	err := row.Scan(&id)
	return id, err
}

const getProduct = `-- name: GetProduct :one
select ` + productColumns + `,` + currentPriceColumn + `
from product
where product.id = ?
`

func (q *Queries) GetProduct(ctx context.Context, id int64) (ProductWithPrice, error) {
	row := q.db.QueryRowContext(ctx, getProduct, id)
	var i ProductWithPrice
	var err error
	i.Product, err = scanProduct(row, &i.CurrentPrice)
	return i, err
}

const getProductByUrl = `-- name: GetProductByUrl :one
select ` + productColumns + `,` + currentPriceColumn + `
from product
where product.url = ?
`

func (q *Queries) GetProductByUrl(ctx context.Context, url string) (ProductWithPrice, error) {
	row := q.db.QueryRowContext(ctx, getProductByUrl, url)
	var i ProductWithPrice
	var err error
	i.Product, err = scanProduct(row, &i.CurrentPrice)
	return i, err
}

const listProducts = `-- name: ListProducts :many
select ` + productColumns + `,` + currentPriceColumn + `
from product
order by product.id
`

func (q *Queries) ListProducts(ctx context.Context) ([]ProductWithPrice, error) {
	return q.listProductsWithPrice(ctx, listProducts)
}

const listProductsByStatus = `-- name: ListProductsByStatus :many
select ` + productColumns + `,` + currentPriceColumn + `
from product
where product.status = ?
order by product.id
`

func (q *Queries) ListProductsByStatus(ctx context.Context, status string) ([]ProductWithPrice, error) {
	return q.listProductsWithPrice(ctx, listProductsByStatus, status)
}

const getGroupMembers = `-- name: GetGroupMembers :many
select ` + productColumns + `,` + currentPriceColumn + `
from product
where product.group_id = ? and product.status = 'active'
order by current_price is null, current_price asc, product.id
`

func (q *Queries) GetGroupMembers(ctx context.Context, groupID string) ([]ProductWithPrice, error) {
	return q.listProductsWithPrice(ctx, getGroupMembers, groupID)
}

const updateProduct = `-- name: UpdateProduct :execrows
update product
set name = ?, retailer = ?, url = ?, target_price = ?, currency = ?, status = ?, updated_at = ?
where id = ?
`

type UpdateProductParams struct {
	Name        string
	Retailer    string
	Url         string
	TargetPrice sql.NullFloat64
	Currency    string
	Status      string
	UpdatedAt   int64
	ID          int64
}

func (q *Queries) UpdateProduct(ctx context.Context, arg UpdateProductParams) (int64, error) {
	result, err := q.db.ExecContext(ctx, updateProduct,
		arg.Name,
		arg.Retailer,
		arg.Url,
		arg.TargetPrice,
		arg.Currency,
		arg.Status,
		arg.UpdatedAt,
		arg.ID,
	)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

const setProductStatus = `-- name: SetProductStatus :execrows
update product set status = ?, updated_at = ? where id = ?
`

type SetProductStatusParams struct {
	Status    string
	UpdatedAt int64
	ID        int64
}

func (q *Queries) SetProductStatus(ctx context.Context, arg SetProductStatusParams) (int64, error) {
	result, err := q.db.ExecContext(ctx, setProductStatus, arg.Status, arg.UpdatedAt, arg.ID)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

const setProductGroup = `-- name: SetProductGroup :execrows
update product set group_id = ?, updated_at = ? where id = ?
`

type SetProductGroupParams struct {
	GroupID   sql.NullString
	UpdatedAt int64
	ID        int64
}

func (q *Queries) SetProductGroup(ctx context.Context, arg SetProductGroupParams) (int64, error) {
	result, err := q.db.ExecContext(ctx, setProductGroup, arg.GroupID, arg.UpdatedAt, arg.ID)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

const setProductGroupIfUnset = `-- name: SetProductGroupIfUnset :execrows
update product set group_id = ?, updated_at = ? where id = ? and group_id is null
`

func (q *Queries) SetProductGroupIfUnset(ctx context.Context, arg SetProductGroupParams) (int64, error) {
	result, err := q.db.ExecContext(ctx, setProductGroupIfUnset, arg.GroupID, arg.UpdatedAt, arg.ID)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

const touchProductChecked = `-- name: TouchProductChecked :exec
update product set last_checked = ?, updated_at = ? where id = ?
`

type TouchProductCheckedParams struct {
	LastChecked sql.NullInt64
	UpdatedAt   int64
	ID          int64
}

func (q *Queries) TouchProductChecked(ctx context.Context, arg TouchProductCheckedParams) error {
	_, err := q.db.ExecContext(ctx, touchProductChecked, arg.LastChecked, arg.UpdatedAt, arg.ID)
	return err
}

const deleteProduct = `-- name: DeleteProduct :execrows
delete from product where id = ?
`

func (q *Queries) DeleteProduct(ctx context.Context, id int64) (int64, error) {
	result, err := q.db.ExecContext(ctx, deleteProduct, id)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

const deleteObservations = `-- name: DeleteObservations :exec
delete from price_observation where product_id = ?
`

func (q *Queries) DeleteObservations(ctx context.Context, productID int64) error {
	_, err := q.db.ExecContext(ctx, deleteObservations, productID)
	return err
}

const insertObservation = `-- name: InsertObservation :execrows
insert into price_observation (product_id, price, checked_at, source)
values (?, ?, ?, ?)
on conflict (product_id, checked_at) do nothing
`

type InsertObservationParams struct {
	ProductID int64
	Price     float64
	CheckedAt int64
	Source    string
}

func (q *Queries) InsertObservation(ctx context.Context, arg InsertObservationParams) (int64, error) {
	result, err := q.db.ExecContext(ctx, insertObservation,
		arg.ProductID,
		arg.Price,
		arg.CheckedAt,
		arg.Source,
	)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

const getObservations = `-- name: GetObservations :many
select product_id, price, checked_at, source from price_observation
where product_id = ?
order by checked_at asc
`

func (q *Queries) GetObservations(ctx context.Context, productID int64) ([]PriceObservation, error) {
	rows, err := q.db.QueryContext(ctx, getObservations, productID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []PriceObservation
	for rows.Next() {
		var i PriceObservation
		if err := rows.Scan(
			&i.ProductID,
			&i.Price,
			&i.CheckedAt,
			&i.Source,
		); err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	if err := rows.Close(); err != nil {
		return nil, err
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

const getLatestObservation = `-- name: GetLatestObservation :one
select product_id, price, checked_at, source from price_observation
where product_id = ?
order by checked_at desc
limit 1
`

func (q *Queries) GetLatestObservation(ctx context.Context, productID int64) (PriceObservation, error) {
	row := q.db.QueryRowContext(ctx, getLatestObservation, productID)
	var i PriceObservation
	err := row.Scan(
		&i.ProductID,
		&i.Price,
		&i.CheckedAt,
		&i.Source,
	)
	return i, err
}

const listGroups = `-- name: ListGroups :many
select group_id, count(*) as member_count, min(name) as representative_name
from product
where group_id is not null and status = 'active'
group by group_id
order by representative_name, group_id
`

type ListGroupsRow struct {
	GroupID            string
	MemberCount        int64
	RepresentativeName string
}

func (q *Queries) ListGroups(ctx context.Context) ([]ListGroupsRow, error) {
	rows, err := q.db.QueryContext(ctx, listGroups)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []ListGroupsRow
	for rows.Next() {
		var i ListGroupsRow
		if err := rows.Scan(&i.GroupID, &i.MemberCount, &i.RepresentativeName); err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	if err := rows.Close(); err != nil {
		return nil, err
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}
