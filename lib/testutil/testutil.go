package testutil

import (
	"database/sql"
	"fmt"
	"testing"
	"time"

	"pricetracker-backend/internal/components/chrono"
	configlibsql "pricetracker-backend/lib/configutil/libsql"
	"pricetracker-backend/lib/pricestore"
	"pricetracker-backend/lib/pricestore/db"
	"pricetracker-backend/lib/telemetry"
)

type ServiceParams struct {
	Name string
	// if unspecified, it will use pricestore's schema
	DbSchema string
	// if unspecified, it will use `:memory:`
	DbPath string
}

type ServiceResult struct {
	DB *sql.DB
}

func SetupService(t testing.TB, params ServiceParams) ServiceResult {
	cleanup := telemetry.SetupForTesting(t, fmt.Sprintf("test:%s", params.Name))
	t.Cleanup(cleanup)

	schema := params.DbSchema
	if schema == "" {
		schema = db.Schema
	}
	dbpath := params.DbPath
	if dbpath == "" {
		dbpath = ":memory:"
	}

	sqlite, err := configlibsql.Struct{File: dbpath}.OpenDB(schema)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() {
		sqlite.Close()
	})

	return ServiceResult{
		DB: sqlite,
	}
}

// FrozenEpoch is the time frozen clocks handed out by SetupStore start at.
var FrozenEpoch = time.Date(2024, time.March, 4, 10, 30, 0, 0, time.UTC)

// SetupStore returns a store over a fresh in-memory database together with the frozen clock
// it stamps observations with.
func SetupStore(t testing.TB, name string) (pricestore.Store, *chrono.FrozenTime) {
	res := SetupService(t, ServiceParams{Name: name})
	clock := chrono.NewFrozenTime(FrozenEpoch)
	return pricestore.NewStore(res.DB, clock), clock
}
