package telemetry

import (
	"context"
	"os"
	"sync"
	"testing"
)

var (
	setupTestMutex        sync.Mutex
	setupTestEnvironments = map[string]bool{}
)

// sets up telemetry in a testing environment, ensuring that it isn't
// set up more than once. without a telemetry.json5 only logging is set up.
func SetupForTesting(t testing.TB, serviceName string) func() {
	setupTestMutex.Lock()
	defer setupTestMutex.Unlock()

	if setupTestEnvironments[serviceName] {
		return func() {}
	}
	setupTestEnvironments[serviceName] = true

	InitSlog(testing.Verbose())

	ctx := context.Background()
	tel, err := SetupFromEnv(ctx, serviceName)
	if os.IsNotExist(err) {
		return func() {}
	}
	if err != nil {
		t.Fatal(err)
	}
	return func() {
		err := tel.Shutdown(ctx)
		if err != nil {
			t.Log(err)
		}
	}
}
