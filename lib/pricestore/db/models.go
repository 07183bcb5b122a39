package db

import (
	"database/sql"
)

type Product struct {
	ID          int64
	Name        string
	Retailer    string
	Url         string
	TargetPrice sql.NullFloat64
	Currency    string
	Status      string
	GroupID     sql.NullString
	CreatedAt   int64
	UpdatedAt   int64
	LastChecked sql.NullInt64
}

type PriceObservation struct {
	ProductID int64
	Price     float64
	CheckedAt int64
	Source    string
}
