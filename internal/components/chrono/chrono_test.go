package chrono

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestFrozenTime(t *testing.T) {
	start := time.Date(2024, time.March, 4, 10, 30, 0, 0, time.UTC)
	clock := NewFrozenTime(start)
	require.Equal(t, start, clock.Now())

	clock.Advance(90 * time.Second)
	require.Equal(t, start.Add(90*time.Second), clock.Now())

	clock.Set(start)
	require.Equal(t, start, clock.Now())
}

func TestStandardTime(t *testing.T) {
	loc := time.FixedZone("IST", 5*60*60+30*60)
	require.Equal(t, loc, NewStandardTime(loc).Now().Location())
	require.Equal(t, time.Local, NewStandardTime(nil).Now().Location())
}
