package checkout

import (
	"crypto/rand"
	"fmt"
	"io"
	"time"

	"github.com/juju/clock"
)

// Unambiguous characters only: no 0/O or 1/I.
const orderNumberAlphabet = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"

const orderNumberSuffixLen = 6

// ist is the store's business day.
var ist = time.FixedZone("IST", 5*60*60+30*60)

// NumberGenerator issues order numbers like LUM-20260310-7KQ2XM. With 32^6
// suffixes per day a collision is unlikely; the store's unique index catches
// the rest.
type NumberGenerator struct {
	clock clock.Clock
	rand  io.Reader
}

func NewNumberGenerator(clk clock.Clock) *NumberGenerator {
	if clk == nil {
		clk = clock.WallClock
	}
	return &NumberGenerator{clock: clk, rand: rand.Reader}
}

func (g *NumberGenerator) Next() (string, error) {
	buf := make([]byte, orderNumberSuffixLen)
	if _, err := io.ReadFull(g.rand, buf); err != nil {
		return "", fmt.Errorf("read random: %w", err)
	}
	suffix := make([]byte, orderNumberSuffixLen)
	for i, b := range buf {
		// 256 is a multiple of 32, so this is unbiased.
		suffix[i] = orderNumberAlphabet[int(b)%len(orderNumberAlphabet)]
	}
	return "LUM-" + g.clock.Now().In(ist).Format("20060102") + "-" + string(suffix), nil
}
