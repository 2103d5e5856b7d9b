package testutil

import (
	"flag"
	"math/rand"
	"testing"
)

var RunStress = flag.Bool("stress", false, "run stress/heavy tests")

// RequireStress skips the test unless the -stress flag is set.
func RequireStress(t *testing.T) {
	t.Helper()
	if !*RunStress {
		t.Skip("skipping stress test (use -stress to enable)")
	}
}

// RepetitivePayload returns n bytes of low-entropy data, sized to exercise
// the compressed value path.
func RepetitivePayload(rng *rand.Rand, n int) []byte {
	pattern := []byte("linkcache-payload-")
	out := make([]byte, n)
	for i := range out {
		out[i] = pattern[i%len(pattern)]
	}
	if n > 0 {
		out[rng.Intn(n)] = byte(rng.Intn(256))
	}
	return out
}
