package pos

import (
	"fmt"
	"math/rand/v2"
	"time"
)

// NumberGenerator produces human-readable transaction numbers.
// Numbers are not guaranteed unique; the engine checks and regenerates.
type NumberGenerator interface {
	Next(at time.Time) string
}

// NumberGeneratorFunc adapts a function to NumberGenerator.
type NumberGeneratorFunc func(at time.Time) string

func (f NumberGeneratorFunc) Next(at time.Time) string { return f(at) }

// DefaultNumbers formats TXN-YYYYMMDD-HHMMSS-NNNN with four random digits.
var DefaultNumbers NumberGenerator = NumberGeneratorFunc(func(at time.Time) string {
	return fmt.Sprintf("TXN-%s-%04d", at.UTC().Format("20060102-150405"), rand.IntN(10000))
})

// maxNumberAttempts bounds regeneration when a number is already taken.
const maxNumberAttempts = 5
