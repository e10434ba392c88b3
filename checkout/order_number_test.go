package checkout

import (
	"bytes"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/juju/clock/testclock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var orderNumberPattern = regexp.MustCompile(`^LUM-\d{8}-[A-HJ-NP-Z2-9]{6}$`)

func TestNumberGenerator_Format(t *testing.T) {
	g := NewNumberGenerator(testclock.NewClock(testNow))

	seen := make(map[string]bool)
	for i := 0; i < 200; i++ {
		n, err := g.Next()
		require.NoError(t, err)
		assert.Regexp(t, orderNumberPattern, n)
		seen[n] = true
	}
	assert.Greater(t, len(seen), 190)
}

func TestNumberGenerator_Deterministic(t *testing.T) {
	g := &NumberGenerator{
		clock: testclock.NewClock(testNow),
		rand:  bytes.NewReader([]byte{0, 1, 31, 32, 255, 8}),
	}
	n, err := g.Next()
	require.NoError(t, err)
	assert.Equal(t, "LUM-20260310-AB9A9J", n)
}

func TestNumberGenerator_UsesStoreDate(t *testing.T) {
	// 20:00 UTC on the 10th is already the 11th in India.
	clk := testclock.NewClock(time.Date(2026, 3, 10, 20, 0, 0, 0, time.UTC))
	g := NewNumberGenerator(clk)

	n, err := g.Next()
	require.NoError(t, err)
	assert.Contains(t, n, "LUM-20260311-")

	g = NewNumberGenerator(testclock.NewClock(time.Date(2026, 3, 10, 18, 0, 0, 0, time.UTC)))
	n, err = g.Next()
	require.NoError(t, err)
	assert.Contains(t, n, "LUM-20260310-")
}

type failingReader struct{}

func (failingReader) Read([]byte) (int, error) { return 0, errors.New("entropy exhausted") }

func TestNumberGenerator_RandomFailure(t *testing.T) {
	g := &NumberGenerator{clock: testclock.NewClock(testNow), rand: failingReader{}}
	_, err := g.Next()
	assert.Error(t, err)
}
